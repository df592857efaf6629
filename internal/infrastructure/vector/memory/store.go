package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/vaultgrid/dataroom-rag/internal/core/domain"
)

// Store is an in-memory vector store with the same semantics as the
// qdrant adapter: points keyed by PointID, cosine scoring, dataroom and
// file scoping. Meant for tests and single-node development setups.
type Store struct {
	mu          sync.RWMutex
	points      map[string]domain.VectorRecord
	initialized bool
}

func New() *Store {
	return &Store{points: make(map[string]domain.VectorRecord)}
}

func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = true
	return nil
}

func (s *Store) Initialized(ctx context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized, nil
}

func (s *Store) Count(ctx context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.points)), nil
}

func (s *Store) Upsert(ctx context.Context, records []domain.VectorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.points[r.PointID] = r
	}
	return nil
}

func (s *Store) DeleteByFile(ctx context.Context, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.points {
		if r.FileID == fileID {
			delete(s.points, id)
		}
	}
	return nil
}

func (s *Store) Search(
	ctx context.Context,
	queryVector []float32,
	scope domain.SearchScope,
	topK int,
) ([]domain.RetrievedChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	allowed := make(map[string]bool, len(scope.FileIDs))
	for _, id := range scope.FileIDs {
		allowed[id] = true
	}

	hits := make([]domain.RetrievedChunk, 0)
	for _, r := range s.points {
		if r.DataroomID != scope.DataroomID {
			continue
		}
		if len(allowed) > 0 && !allowed[r.FileID] {
			continue
		}
		hits = append(hits, domain.RetrievedChunk{
			PointID:    r.PointID,
			FileID:     r.FileID,
			Filename:   r.Filename,
			Category:   r.Category,
			Text:       r.Text,
			Score:      cosine(queryVector, r.Vector),
			ChunkIndex: r.ChunkIndex,
			Sheet:      r.Sheet,
			RowFrom:    r.RowFrom,
			RowTo:      r.RowTo,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkIndex > hits[j].ChunkIndex
	})
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

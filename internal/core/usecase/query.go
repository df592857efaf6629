package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/vaultgrid/dataroom-rag/internal/core/domain"
	"github.com/vaultgrid/dataroom-rag/internal/core/ports"
)

// notFoundAnswer is returned when retrieval comes back empty. A definite
// statement, never an empty string.
const notFoundAnswer = "No relevant information was found in this dataroom for your question."

// QueryUseCase answers natural-language questions against a dataroom scope.
// Streaming and one-shot delivery share the same retrieval core and differ
// only in how answer text leaves the generator.
type QueryUseCase struct {
	embedder  ports.Embedder
	vectors   ports.VectorStore
	generator ports.AnswerGenerator

	defaultTopK int
}

func NewQueryUseCase(
	embedder ports.Embedder,
	vectors ports.VectorStore,
	generator ports.AnswerGenerator,
	defaultTopK int,
) *QueryUseCase {
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	return &QueryUseCase{
		embedder:    embedder,
		vectors:     vectors,
		generator:   generator,
		defaultTopK: defaultTopK,
	}
}

func (uc *QueryUseCase) Answer(
	ctx context.Context,
	question string,
	scope domain.SearchScope,
	topK int,
) (*domain.Answer, error) {
	start := time.Now()

	hits, subQueries, err := uc.retrieve(ctx, question, scope, topK)
	if err != nil {
		return nil, err
	}

	if len(hits) == 0 {
		return &domain.Answer{
			Text:       notFoundAnswer,
			Sources:    []domain.RetrievedChunk{},
			SubQueries: subQueries,
			LatencyMS:  time.Since(start).Milliseconds(),
		}, nil
	}

	answerText, err := uc.generator.GenerateAnswer(ctx, question, hits)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	if answerText == "" {
		answerText = notFoundAnswer
	}

	return &domain.Answer{
		Text:       answerText,
		Sources:    hits,
		Category:   dominantCategory(hits),
		SubQueries: subQueries,
		LatencyMS:  time.Since(start).Milliseconds(),
	}, nil
}

// retrieve embeds the question (or its decomposed sub-queries), searches the
// scoped vector store per query, and merges hits deduplicated by pointId
// keeping the best score. Decomposition failures degrade to the original
// question.
func (uc *QueryUseCase) retrieve(
	ctx context.Context,
	question string,
	scope domain.SearchScope,
	topK int,
) ([]domain.RetrievedChunk, []string, error) {
	if question == "" {
		return nil, nil, domain.WrapError(domain.ErrInvalidInput, "answer question", errors.New("empty question"))
	}
	if scope.DataroomID == "" {
		return nil, nil, domain.WrapError(domain.ErrInvalidInput, "answer question", errors.New("empty dataroom scope"))
	}
	if topK <= 0 {
		topK = uc.defaultTopK
	}

	queries := []string{question}
	var subQueries []string
	if shouldDecompose(question) {
		parts, err := uc.generator.DecomposeQuestion(ctx, question)
		if err == nil && len(parts) >= 2 {
			queries = parts
			subQueries = parts
		}
	}

	merged := make(map[string]domain.RetrievedChunk)
	for _, q := range queries {
		vector, err := uc.embedder.EmbedQuery(ctx, q)
		if err != nil {
			return nil, nil, fmt.Errorf("embed query: %w", err)
		}

		hits, err := uc.vectors.Search(ctx, vector, scope, topK)
		if err != nil {
			return nil, nil, fmt.Errorf("search vector store: %w", err)
		}

		for _, hit := range hits {
			if prev, ok := merged[hit.PointID]; ok && prev.Score >= hit.Score {
				continue
			}
			merged[hit.PointID] = hit
		}
	}

	hits := make([]domain.RetrievedChunk, 0, len(merged))
	for _, hit := range merged {
		hits = append(hits, hit)
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkIndex > hits[j].ChunkIndex
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, subQueries, nil
}

func dominantCategory(hits []domain.RetrievedChunk) string {
	counts := make(map[string]int)
	best := ""
	for _, hit := range hits {
		if hit.Category == "" {
			continue
		}
		counts[hit.Category]++
		if best == "" || counts[hit.Category] > counts[best] {
			best = hit.Category
		}
	}
	return best
}

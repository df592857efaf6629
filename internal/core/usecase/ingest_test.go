package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/vaultgrid/dataroom-rag/internal/core/domain"
)

type statusCall struct {
	status domain.IngestionStatus
	errMsg string
	patch  domain.MetadataPatch
}

type ingestRepoFake struct {
	file           *domain.SourceFile
	getErr         error
	saveErr        error
	statusCalls    []statusCall
	classification domain.Classification
}

func (f *ingestRepoFake) Create(context.Context, *domain.SourceFile) error { return nil }

func (f *ingestRepoFake) GetByID(context.Context, string) (*domain.SourceFile, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	copyFile := *f.file
	return &copyFile, nil
}

func (f *ingestRepoFake) UpdateStatus(_ context.Context, _ string, status domain.IngestionStatus, errMessage string, patch domain.MetadataPatch) error {
	f.statusCalls = append(f.statusCalls, statusCall{status: status, errMsg: errMessage, patch: patch})
	return nil
}

func (f *ingestRepoFake) SaveClassification(_ context.Context, _ string, cls domain.Classification) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.classification = cls
	return nil
}

func (f *ingestRepoFake) Delete(context.Context, string) error { return nil }

type extractorFake struct {
	extraction domain.Extraction
	err        error
}

func (f *extractorFake) Extract(context.Context, *domain.SourceFile) (domain.Extraction, error) {
	if f.err != nil {
		return domain.Extraction{}, f.err
	}
	return f.extraction, nil
}

func (f *extractorFake) Supported(string) bool { return true }

type chunkerFake struct {
	chunks []domain.Chunk
}

func (f *chunkerFake) Split(extraction domain.Extraction) []domain.Chunk {
	if extraction.Empty() {
		return nil
	}
	return f.chunks
}

type classifierFake struct {
	cls domain.Classification
	err error
}

func (f *classifierFake) Classify(context.Context, string) (domain.Classification, error) {
	if f.err != nil {
		return domain.Classification{}, f.err
	}
	return f.cls, nil
}

// ingestEmbedderFake attaches unit vectors, leaving records whose text is in
// dropTexts without a vector, mirroring an exhausted retry batch.
type ingestEmbedderFake struct {
	dropTexts map[string]bool
	err       error
}

func (f *ingestEmbedderFake) EmbedRecords(_ context.Context, records []domain.VectorRecord) ([]domain.VectorRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.VectorRecord, len(records))
	copy(out, records)
	for i := range out {
		if f.dropTexts[out[i].Text] {
			continue
		}
		out[i].Vector = []float32{1}
	}
	return out, nil
}

func (f *ingestEmbedderFake) EmbedQuery(context.Context, string) ([]float32, error) {
	return []float32{1}, nil
}

type ingestVectorFake struct {
	upserted    []domain.VectorRecord
	deleteCalls []string
	upsertOrder []string // "delete" / "upsert" sequence
	upsertErr   error
	deleteErr   error
}

func (f *ingestVectorFake) Init(context.Context) error                { return nil }
func (f *ingestVectorFake) Count(context.Context) (uint64, error)     { return 0, nil }
func (f *ingestVectorFake) Initialized(context.Context) (bool, error) { return true, nil }

func (f *ingestVectorFake) Upsert(_ context.Context, records []domain.VectorRecord) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserted = append(f.upserted, records...)
	f.upsertOrder = append(f.upsertOrder, "upsert")
	return nil
}

func (f *ingestVectorFake) DeleteByFile(_ context.Context, fileID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleteCalls = append(f.deleteCalls, fileID)
	f.upsertOrder = append(f.upsertOrder, "delete")
	return nil
}

func (f *ingestVectorFake) Search(context.Context, []float32, domain.SearchScope, int) ([]domain.RetrievedChunk, error) {
	return nil, nil
}

func newIngestUseCase(repo *ingestRepoFake, ext *extractorFake, cls *classifierFake, emb *ingestEmbedderFake, vec *ingestVectorFake, chunks []domain.Chunk) *IngestFileUseCase {
	return NewIngestFileUseCase(repo, ext, &chunkerFake{chunks: chunks}, cls, emb, vec, 0, nil)
}

func textChunks(texts ...string) []domain.Chunk {
	chunks := make([]domain.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = domain.Chunk{Index: i, Text: text}
	}
	return chunks
}

func TestIngestByIDHappyPath(t *testing.T) {
	repo := &ingestRepoFake{file: &domain.SourceFile{ID: "file-1", DataroomID: "room-1", Filename: "lease.pdf"}}
	vec := &ingestVectorFake{}
	uc := newIngestUseCase(
		repo,
		&extractorFake{extraction: domain.Extraction{Plain: "the termination clause"}},
		&classifierFake{cls: domain.Classification{Category: "legal", Description: "lease agreement"}},
		&ingestEmbedderFake{},
		vec,
		textChunks("chunk a", "chunk b"),
	)

	if err := uc.IngestByID(context.Background(), "file-1"); err != nil {
		t.Fatalf("IngestByID: %v", err)
	}

	wantStatuses := []domain.IngestionStatus{domain.StatusProcessing, domain.StatusEmbedding, domain.StatusReady}
	if len(repo.statusCalls) != len(wantStatuses) {
		t.Fatalf("status calls = %d, want %d", len(repo.statusCalls), len(wantStatuses))
	}
	for i, want := range wantStatuses {
		if repo.statusCalls[i].status != want {
			t.Errorf("status[%d] = %s, want %s", i, repo.statusCalls[i].status, want)
		}
	}

	embedding := repo.statusCalls[1]
	if embedding.patch.ChunkCount == nil || *embedding.patch.ChunkCount != 2 {
		t.Errorf("embedding transition missing chunkCount=2 patch: %+v", embedding.patch)
	}
	ready := repo.statusCalls[2]
	if ready.patch.EmbeddingCount == nil || *ready.patch.EmbeddingCount != 2 {
		t.Errorf("ready transition missing embeddingCount=2 patch: %+v", ready.patch)
	}

	if repo.classification.Category != "legal" {
		t.Errorf("classification = %+v, want legal", repo.classification)
	}
	if len(vec.upserted) != 2 {
		t.Fatalf("upserted records = %d, want 2", len(vec.upserted))
	}
	if vec.upserted[0].PointID != domain.PointID("file-1", 0) {
		t.Errorf("point id not deterministic: %s", vec.upserted[0].PointID)
	}
	if vec.upserted[0].Category != "legal" || vec.upserted[0].DataroomID != "room-1" {
		t.Errorf("record payload incomplete: %+v", vec.upserted[0])
	}
}

func TestIngestDeletesPriorVectorsBeforeUpsert(t *testing.T) {
	repo := &ingestRepoFake{file: &domain.SourceFile{ID: "file-1", DataroomID: "room-1"}}
	vec := &ingestVectorFake{}
	uc := newIngestUseCase(
		repo,
		&extractorFake{extraction: domain.Extraction{Plain: "text"}},
		&classifierFake{cls: domain.Classification{Category: "legal"}},
		&ingestEmbedderFake{},
		vec,
		textChunks("only chunk"),
	)

	if err := uc.IngestByID(context.Background(), "file-1"); err != nil {
		t.Fatalf("IngestByID: %v", err)
	}
	if len(vec.upsertOrder) != 2 || vec.upsertOrder[0] != "delete" || vec.upsertOrder[1] != "upsert" {
		t.Fatalf("call order = %v, want [delete upsert]", vec.upsertOrder)
	}
}

func TestIngestExtractionFailureDegradesToZeroChunks(t *testing.T) {
	repo := &ingestRepoFake{file: &domain.SourceFile{ID: "file-1", DataroomID: "room-1"}}
	vec := &ingestVectorFake{}
	uc := newIngestUseCase(
		repo,
		&extractorFake{err: domain.WrapError(domain.ErrExtraction, "extract", errors.New("no text layer"))},
		&classifierFake{cls: domain.Classification{Category: "legal"}},
		&ingestEmbedderFake{},
		vec,
		textChunks("never used"),
	)

	if err := uc.IngestByID(context.Background(), "file-1"); err != nil {
		t.Fatalf("IngestByID: %v", err)
	}

	final := repo.statusCalls[len(repo.statusCalls)-1]
	if final.status != domain.StatusReady {
		t.Fatalf("final status = %s, want ready", final.status)
	}
	if final.patch.ChunkCount == nil || *final.patch.ChunkCount != 0 {
		t.Errorf("chunkCount patch = %+v, want 0", final.patch.ChunkCount)
	}
	if repo.classification.Category != domain.CategoryUncategorized {
		t.Errorf("empty extraction should classify as uncategorized, got %q", repo.classification.Category)
	}
	if len(vec.upserted) != 0 {
		t.Errorf("no vectors expected, got %d", len(vec.upserted))
	}
}

func TestIngestClassifierFailureNeverBlocksEmbedding(t *testing.T) {
	repo := &ingestRepoFake{file: &domain.SourceFile{ID: "file-1", DataroomID: "room-1"}}
	vec := &ingestVectorFake{}
	uc := newIngestUseCase(
		repo,
		&extractorFake{extraction: domain.Extraction{Plain: "text"}},
		&classifierFake{err: errors.New("model timeout")},
		&ingestEmbedderFake{},
		vec,
		textChunks("chunk a"),
	)

	if err := uc.IngestByID(context.Background(), "file-1"); err != nil {
		t.Fatalf("IngestByID: %v", err)
	}
	if repo.classification.Category != domain.CategoryUncategorized {
		t.Errorf("classification = %q, want uncategorized fallback", repo.classification.Category)
	}
	if len(vec.upserted) != 1 {
		t.Errorf("upserted = %d, want 1", len(vec.upserted))
	}
}

func TestIngestPartialEmbeddingStillReachesReady(t *testing.T) {
	repo := &ingestRepoFake{file: &domain.SourceFile{ID: "file-1", DataroomID: "room-1"}}
	vec := &ingestVectorFake{}
	uc := newIngestUseCase(
		repo,
		&extractorFake{extraction: domain.Extraction{Plain: "text"}},
		&classifierFake{cls: domain.Classification{Category: "legal"}},
		&ingestEmbedderFake{dropTexts: map[string]bool{"chunk c": true, "chunk d": true}},
		vec,
		textChunks("chunk a", "chunk b", "chunk c", "chunk d", "chunk e"),
	)

	if err := uc.IngestByID(context.Background(), "file-1"); err != nil {
		t.Fatalf("IngestByID: %v", err)
	}

	final := repo.statusCalls[len(repo.statusCalls)-1]
	if final.status != domain.StatusReady {
		t.Fatalf("final status = %s, want ready despite dropped batches", final.status)
	}
	if *final.patch.ChunkCount != 5 || *final.patch.EmbeddingCount != 3 {
		t.Errorf("counts = %d/%d, want chunk=5 embedding=3", *final.patch.ChunkCount, *final.patch.EmbeddingCount)
	}
	if len(vec.upserted) != 3 {
		t.Errorf("upserted = %d, want only embedded records", len(vec.upserted))
	}
}

func TestIngestVectorStoreFailureMovesFileToError(t *testing.T) {
	repo := &ingestRepoFake{file: &domain.SourceFile{ID: "file-1", DataroomID: "room-1"}}
	vec := &ingestVectorFake{upsertErr: domain.WrapError(domain.ErrVectorStoreUnavailable, "qdrant.Upsert", errors.New("connection refused"))}
	uc := newIngestUseCase(
		repo,
		&extractorFake{extraction: domain.Extraction{Plain: "text"}},
		&classifierFake{cls: domain.Classification{Category: "legal"}},
		&ingestEmbedderFake{},
		vec,
		textChunks("chunk a"),
	)

	err := uc.IngestByID(context.Background(), "file-1")
	if err == nil {
		t.Fatalf("expected error")
	}

	final := repo.statusCalls[len(repo.statusCalls)-1]
	if final.status != domain.StatusError {
		t.Fatalf("final status = %s, want error", final.status)
	}
	if final.errMsg == "" {
		t.Error("error status must capture the failure message")
	}
}

func TestIngestStatusNeverSkipsForward(t *testing.T) {
	repo := &ingestRepoFake{file: &domain.SourceFile{ID: "file-1", DataroomID: "room-1"}}
	uc := newIngestUseCase(
		repo,
		&extractorFake{extraction: domain.Extraction{Plain: "text"}},
		&classifierFake{cls: domain.Classification{Category: "legal"}},
		&ingestEmbedderFake{},
		&ingestVectorFake{},
		textChunks("chunk a"),
	)

	if err := uc.IngestByID(context.Background(), "file-1"); err != nil {
		t.Fatalf("IngestByID: %v", err)
	}

	rank := map[domain.IngestionStatus]int{
		domain.StatusProcessing: 1,
		domain.StatusEmbedding:  2,
		domain.StatusReady:      3,
	}
	prev := 0
	var reached domain.IngestionStatus
	for _, call := range repo.statusCalls {
		if reached.Terminal() {
			t.Fatalf("status %s recorded after terminal %s", call.status, reached)
		}
		if rank[call.status] <= prev {
			t.Fatalf("status %s observed out of order: %+v", call.status, repo.statusCalls)
		}
		prev = rank[call.status]
		reached = call.status
	}
}

package ports

import (
	"context"
	"io"

	"github.com/vaultgrid/dataroom-rag/internal/core/domain"
)

// FileRepository persists and reads source file state.
type FileRepository interface {
	Create(ctx context.Context, file *domain.SourceFile) error
	GetByID(ctx context.Context, id string) (*domain.SourceFile, error)
	UpdateStatus(ctx context.Context, id string, status domain.IngestionStatus, errMessage string, patch domain.MetadataPatch) error
	SaveClassification(ctx context.Context, id string, cls domain.Classification) error
	Delete(ctx context.Context, id string) error
}

// BlobStorage stores source file bytes.
type BlobStorage interface {
	Save(ctx context.Context, key string, data io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// IngestionQueue dispatches uploaded files to the background worker.
// Publishing is fire-and-forget relative to the upload request.
type IngestionQueue interface {
	PublishFileUploaded(ctx context.Context, fileID string) error
	SubscribeFileUploaded(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor converts stored file bytes into extracted content.
type TextExtractor interface {
	Extract(ctx context.Context, file *domain.SourceFile) (domain.Extraction, error)
	Supported(filename string) bool
}

// Chunker splits extracted content into bounded overlapping chunks.
type Chunker interface {
	Split(extraction domain.Extraction) []domain.Chunk
}

// Classifier assigns a coarse category from a bounded text sample.
type Classifier interface {
	Classify(ctx context.Context, sample string) (domain.Classification, error)
}

// Embedder attaches vectors to records and embeds query text. EmbedRecords
// leaves the vector empty on records whose batch exhausted its retries
// instead of failing the whole set.
type Embedder interface {
	EmbedRecords(ctx context.Context, records []domain.VectorRecord) ([]domain.VectorRecord, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorStore persists vector records and performs scoped similarity search.
type VectorStore interface {
	Init(ctx context.Context) error
	Upsert(ctx context.Context, records []domain.VectorRecord) error
	Search(ctx context.Context, queryVector []float32, scope domain.SearchScope, topK int) ([]domain.RetrievedChunk, error)
	DeleteByFile(ctx context.Context, fileID string) error
	Count(ctx context.Context) (uint64, error)
	Initialized(ctx context.Context) (bool, error)
}

// AnswerGenerator synthesizes the user-facing answer from retrieved context.
// The streaming variant invokes onDelta for each text fragment in emission
// order; their concatenation equals the one-shot answer for the same input.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question string, chunks []domain.RetrievedChunk) (string, error)
	GenerateAnswerStream(ctx context.Context, question string, chunks []domain.RetrievedChunk, onDelta func(string) error) error
	DecomposeQuestion(ctx context.Context, question string) ([]string, error)
}

// ChatStore persists chat messages. Invoked by the HTTP boundary around the
// retriever, never by the retriever itself.
type ChatStore interface {
	AppendMessage(ctx context.Context, sessionID, role, content string, metadata map[string]any) error
}

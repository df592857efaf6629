package ports

import (
	"context"
	"io"

	"github.com/vaultgrid/dataroom-rag/internal/core/domain"
)

// FileUploader is the inbound contract for the upload boundary.
type FileUploader interface {
	Upload(ctx context.Context, dataroomID, filename, mimeType string, body io.Reader) (*domain.SourceFile, error)
}

// FileIngestor drives one file through the ingestion state machine.
// Safe to re-trigger for the same file: prior vectors are superseded.
type FileIngestor interface {
	IngestByID(ctx context.Context, fileID string) error
}

// FileRemover deletes a file's blob, vectors, and metadata row.
type FileRemover interface {
	Remove(ctx context.Context, fileID string) error
}

// QueryService answers natural-language questions against a dataroom scope.
type QueryService interface {
	Answer(ctx context.Context, question string, scope domain.SearchScope, topK int) (*domain.Answer, error)
	AnswerStream(ctx context.Context, question string, scope domain.SearchScope, topK int) <-chan domain.StreamEvent
}

// FileReader is the inbound read model for file metadata/state.
type FileReader interface {
	GetByID(ctx context.Context, id string) (*domain.SourceFile, error)
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vaultgrid/dataroom-rag/internal/core/domain"
	"github.com/vaultgrid/dataroom-rag/internal/core/ports"
)

// UploadFileUseCase is the upload boundary: it rejects unsupported formats
// before any bytes hit storage, persists the file row, and hands the file id
// to the ingestion queue. Ingestion failures never surface here.
type UploadFileUseCase struct {
	repo      ports.FileRepository
	storage   ports.BlobStorage
	queue     ports.IngestionQueue
	extractor ports.TextExtractor
}

func NewUploadFileUseCase(
	repo ports.FileRepository,
	storage ports.BlobStorage,
	queue ports.IngestionQueue,
	extractor ports.TextExtractor,
) *UploadFileUseCase {
	return &UploadFileUseCase{
		repo:      repo,
		storage:   storage,
		queue:     queue,
		extractor: extractor,
	}
}

func (uc *UploadFileUseCase) Upload(
	ctx context.Context,
	dataroomID, filename, mimeType string,
	body io.Reader,
) (*domain.SourceFile, error) {
	if strings.TrimSpace(dataroomID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload file", errors.New("empty dataroom id"))
	}
	if !uc.extractor.Supported(filename) {
		return nil, domain.WrapError(domain.ErrUnsupportedFormat, "upload file",
			fmt.Errorf("unsupported file extension: %s", filepath.Ext(filename)))
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s/%s_%s", dataroomID, id, sanitizeFilename(filename))
	now := time.Now().UTC()

	size, err := uc.storage.Save(ctx, storageKey, body)
	if err != nil {
		return nil, fmt.Errorf("save to blob storage: %w", err)
	}

	file := &domain.SourceFile{
		ID:          id,
		DataroomID:  dataroomID,
		Filename:    filename,
		MimeType:    mimeType,
		StoragePath: storageKey,
		SizeBytes:   size,
		Status:      domain.StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := uc.repo.Create(ctx, file); err != nil {
		return nil, fmt.Errorf("create file metadata: %w", err)
	}

	if err := uc.queue.PublishFileUploaded(ctx, file.ID); err != nil {
		return nil, fmt.Errorf("publish upload event: %w", err)
	}

	return file, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "file.bin"
	}
	return base
}

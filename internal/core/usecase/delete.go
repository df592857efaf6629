package usecase

import (
	"context"
	"fmt"

	"github.com/vaultgrid/dataroom-rag/internal/core/ports"
)

// RemoveFileUseCase deletes a file's vectors, blob, and metadata row, in
// that order: the row goes last so a partial failure stays visible and the
// delete can be retried.
type RemoveFileUseCase struct {
	repo    ports.FileRepository
	storage ports.BlobStorage
	vectors ports.VectorStore
}

func NewRemoveFileUseCase(
	repo ports.FileRepository,
	storage ports.BlobStorage,
	vectors ports.VectorStore,
) *RemoveFileUseCase {
	return &RemoveFileUseCase{
		repo:    repo,
		storage: storage,
		vectors: vectors,
	}
}

func (uc *RemoveFileUseCase) Remove(ctx context.Context, fileID string) error {
	file, err := uc.repo.GetByID(ctx, fileID)
	if err != nil {
		return fmt.Errorf("fetch file by id: %w", err)
	}

	if err := uc.vectors.DeleteByFile(ctx, fileID); err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}
	if err := uc.storage.Delete(ctx, file.StoragePath); err != nil {
		return fmt.Errorf("delete blob: %w", err)
	}
	if err := uc.repo.Delete(ctx, fileID); err != nil {
		return fmt.Errorf("delete file metadata: %w", err)
	}
	return nil
}

package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat rejects a file at the upload boundary, before
	// any bytes are stored.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrExtraction marks a structurally successful extraction that yielded
	// no usable text. Downstream stages degrade to zero chunks.
	ErrExtraction = errors.New("extraction yielded no text")
	// ErrVectorStoreUnavailable is fatal to the current ingestion attempt;
	// re-ingesting the file is the recovery path.
	ErrVectorStoreUnavailable = errors.New("vector store unavailable")
	ErrFileNotFound           = errors.New("file not found")
	ErrInvalidInput           = errors.New("invalid input")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrTemporary              = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

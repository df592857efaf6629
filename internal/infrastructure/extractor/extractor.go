// Package extractor converts stored file bytes into extracted content,
// dispatching on the file extension.
package extractor

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/vaultgrid/dataroom-rag/internal/core/domain"
	"github.com/vaultgrid/dataroom-rag/internal/core/ports"
)

var supportedExtensions = map[string]struct{}{
	".pdf":  {},
	".docx": {},
	".odt":  {},
	".rtf":  {},
	".txt":  {},
	".md":   {},
	".csv":  {},
	".tsv":  {},
	".xlsx": {},
}

type Extractor struct {
	storage ports.BlobStorage
}

func New(storage ports.BlobStorage) *Extractor {
	return &Extractor{storage: storage}
}

// Supported reports whether the filename's extension is in the supported
// set. The upload boundary checks this before any bytes are stored.
func (e *Extractor) Supported(filename string) bool {
	_, ok := supportedExtensions[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// Extract reads the file's blob and extracts its content. A structurally
// successful extraction with no usable text returns an ErrExtraction-kind
// error alongside an empty extraction so the caller can degrade to a
// zero-chunk ingestion.
func (e *Extractor) Extract(ctx context.Context, file *domain.SourceFile) (domain.Extraction, error) {
	reader, err := e.storage.Open(ctx, file.StoragePath)
	if err != nil {
		return domain.Extraction{}, fmt.Errorf("open source blob: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return domain.Extraction{}, fmt.Errorf("read source blob: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	var extraction domain.Extraction
	switch ext {
	case ".pdf":
		extraction, err = extractPDF(raw)
	case ".docx", ".odt", ".rtf":
		extraction, err = extractOffice(raw)
	case ".xlsx":
		extraction, err = extractWorkbook(raw)
	case ".csv", ".tsv":
		extraction, err = extractDelimited(raw, ext, file.Filename)
	case ".txt", ".md":
		extraction, err = extractPlain(raw)
	default:
		return domain.Extraction{}, domain.WrapError(
			domain.ErrUnsupportedFormat, "extract", fmt.Errorf("extension %q", ext))
	}
	if err != nil {
		return domain.Extraction{}, err
	}

	if extraction.Empty() {
		return domain.Extraction{}, domain.WrapError(
			domain.ErrExtraction, "extract", fmt.Errorf("no usable text in %s", file.Filename))
	}
	return extraction, nil
}

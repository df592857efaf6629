package extractor

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/vaultgrid/dataroom-rag/internal/core/domain"
)

// extractDelimited parses csv/tsv into a single logical sheet named after
// the source file, so delimited uploads get the same row provenance as
// workbook sheets.
func extractDelimited(content []byte, ext, filename string) (domain.Extraction, error) {
	reader := csv.NewReader(bytes.NewReader(content))
	if ext == ".tsv" {
		reader.Comma = '\t'
	}
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return domain.Extraction{}, fmt.Errorf("parse delimited file: %w", err)
	}

	name := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	sheet := domain.SheetContent{Name: name, Rows: make([]string, 0, len(records))}
	for _, record := range records {
		sheet.Rows = append(sheet.Rows, strings.Join(record, "\t"))
	}
	return domain.Extraction{Sheets: []domain.SheetContent{sheet}}, nil
}

package extractor

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/vaultgrid/dataroom-rag/internal/core/domain"
)

// extractWorkbook reads every sheet of an xlsx file. Rows are flattened to
// tab-joined cell text; blank rows are kept so row numbers in chunk
// provenance line up with the spreadsheet.
func extractWorkbook(content []byte) (domain.Extraction, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return domain.Extraction{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	var sheets []domain.SheetContent
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return domain.Extraction{}, fmt.Errorf("read sheet %q: %w", name, err)
		}
		sheet := domain.SheetContent{Name: name, Rows: make([]string, 0, len(rows))}
		for _, row := range rows {
			sheet.Rows = append(sheet.Rows, strings.TrimRight(strings.Join(row, "\t"), "\t"))
		}
		sheets = append(sheets, sheet)
	}
	return domain.Extraction{Sheets: sheets}, nil
}

package extractor

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/vaultgrid/dataroom-rag/internal/core/domain"
)

// extractPDF pulls the text layer page by page. Pages that fail to parse
// are skipped so one broken page does not sink the document; a fully
// image-only PDF ends up with an empty extraction.
func extractPDF(content []byte) (domain.Extraction, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return domain.Extraction{}, fmt.Errorf("open pdf: %w", err)
	}

	var buf strings.Builder
	numPages := r.NumPage()
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		buf.WriteString(text)
		if i < numPages {
			buf.WriteString("\n\n")
		}
	}
	return domain.Extraction{Plain: strings.TrimSpace(buf.String())}, nil
}

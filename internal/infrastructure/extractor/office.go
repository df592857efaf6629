package extractor

import (
	"fmt"
	"strings"

	"github.com/lu4p/cat"

	"github.com/vaultgrid/dataroom-rag/internal/core/domain"
)

// extractOffice handles .docx, .odt, and .rtf through lu4p/cat, which
// sniffs the container format from the bytes.
func extractOffice(content []byte) (domain.Extraction, error) {
	text, err := cat.FromBytes(content)
	if err != nil {
		return domain.Extraction{}, fmt.Errorf("extract office document: %w", err)
	}
	return domain.Extraction{Plain: strings.TrimSpace(text)}, nil
}

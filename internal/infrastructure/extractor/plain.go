package extractor

import (
	"strings"
	"unicode/utf8"

	"github.com/vaultgrid/dataroom-rag/internal/core/domain"
)

func extractPlain(content []byte) (domain.Extraction, error) {
	text := string(content)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
	}
	return domain.Extraction{Plain: strings.TrimSpace(text)}, nil
}

// Package chunking splits extracted content into bounded, overlapping
// chunks suitable for embedding.
package chunking

import (
	"strings"

	"github.com/vaultgrid/dataroom-rag/internal/core/domain"
)

type Splitter struct {
	TargetSize int
	Overlap    int
}

func NewSplitter(targetSize, overlap int) *Splitter {
	if targetSize <= 0 {
		targetSize = 3000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= targetSize {
		overlap = targetSize / 10
	}
	return &Splitter{
		TargetSize: targetSize,
		Overlap:    overlap,
	}
}

// Split chunks plain text on paragraph boundaries with a character-window
// fallback, and tabular content on row boundaries with sheet/row
// provenance. Empty input produces an empty sequence.
func (s *Splitter) Split(extraction domain.Extraction) []domain.Chunk {
	var chunks []domain.Chunk

	for _, text := range s.splitPlain(extraction.Plain) {
		chunks = append(chunks, domain.Chunk{Index: len(chunks), Text: text})
	}
	for _, sheet := range extraction.Sheets {
		chunks = s.splitSheet(chunks, sheet)
	}
	return chunks
}

func (s *Splitter) splitPlain(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len([]rune(text)) <= s.TargetSize {
		return []string{text}
	}

	var units []string
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if len([]rune(para)) <= s.TargetSize {
			units = append(units, para)
			continue
		}
		units = append(units, s.window(para)...)
	}

	var out []string
	var current strings.Builder
	flush := func() {
		if current.Len() == 0 {
			return
		}
		chunk := current.String()
		out = append(out, chunk)
		current.Reset()
		if tail := overlapTail(chunk, s.Overlap); tail != "" {
			current.WriteString(tail)
		}
	}

	for _, unit := range units {
		joined := len([]rune(unit))
		if current.Len() > 0 {
			joined += len([]rune(current.String())) + 2
		}
		if joined > s.TargetSize && current.Len() > 0 {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(unit)
	}
	if current.Len() > 0 {
		out = append(out, current.String())
	}
	return out
}

// window is the fixed-size fallback for a single unit larger than the
// target. Adjacent windows share the configured overlap.
func (s *Splitter) window(text string) []string {
	runes := []rune(text)
	step := s.TargetSize - s.Overlap
	if step <= 0 {
		step = s.TargetSize
	}

	out := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := start + s.TargetSize
		if end > len(runes) {
			end = len(runes)
		}
		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			out = append(out, piece)
		}
		if end == len(runes) {
			break
		}
	}
	return out
}

// splitSheet groups rows up to the target size. Adjacent chunks share one
// row so tabular context survives the cut; row numbers are 1-based and
// inclusive.
func (s *Splitter) splitSheet(chunks []domain.Chunk, sheet domain.SheetContent) []domain.Chunk {
	var (
		current  []string
		rowFrom  int
		rowCount int
	)
	flush := func(rowTo int) {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, domain.Chunk{
			Index:   len(chunks),
			Text:    strings.Join(current, "\n"),
			Sheet:   sheet.Name,
			RowFrom: rowFrom,
			RowTo:   rowTo,
		})
	}

	for i, row := range sheet.Rows {
		rowNum := i + 1
		if strings.TrimSpace(row) == "" {
			continue
		}
		rowLen := len([]rune(row))
		if rowCount+rowLen+1 > s.TargetSize && len(current) > 0 {
			flush(rowNum - 1)
			// carry the last row over as overlap
			last := current[len(current)-1]
			current = []string{last}
			rowFrom = rowNum - 1
			rowCount = len([]rune(last))
		}
		if len(current) == 0 {
			rowFrom = rowNum
		}
		current = append(current, row)
		rowCount += rowLen + 1
	}
	flush(len(sheet.Rows))
	return chunks
}

func overlapTail(text string, overlap int) string {
	if overlap <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= overlap {
		return ""
	}
	tail := string(runes[len(runes)-overlap:])
	// snap to a word boundary so the overlap does not open mid-word
	if idx := strings.IndexAny(tail, " \n\t"); idx >= 0 && idx+1 < len(tail) {
		tail = tail[idx+1:]
	}
	return strings.TrimSpace(tail)
}

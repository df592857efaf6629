package domain

import (
	"strconv"

	"github.com/google/uuid"
)

// Extraction is the output of the text extractor. Exactly one of Plain or
// Sheets is populated depending on the source shape: free-form documents
// carry plain text, tabular sources carry per-sheet rows so chunk
// provenance can reference sheet name and row range.
type Extraction struct {
	Plain  string
	Sheets []SheetContent
}

type SheetContent struct {
	Name string
	Rows []string
}

func (e Extraction) Empty() bool {
	if e.Plain != "" {
		return false
	}
	for _, s := range e.Sheets {
		if len(s.Rows) > 0 {
			return false
		}
	}
	return true
}

// Chunk is an ephemeral bounded text slice of a source file, the unit of
// embedding. Sheet/RowFrom/RowTo are set only for tabular sources
// (RowFrom/RowTo are 1-based, inclusive).
type Chunk struct {
	Index   int
	Text    string
	Sheet   string
	RowFrom int
	RowTo   int
}

// VectorRecord is the durable vector unit persisted in the vector store.
// A zero-length Vector marks a record whose embedding batch exhausted its
// retries; the orchestrator filters those out before upsert.
type VectorRecord struct {
	PointID     string
	FileID      string
	DataroomID  string
	Filename    string
	Text        string
	Category    string
	Vector      []float32
	ChunkIndex  int
	TotalChunks int
	Sheet       string
	RowFrom     int
	RowTo       int
}

// pointIDNamespace anchors deterministic point ids so re-ingesting the same
// file upserts over the same points instead of duplicating them.
var pointIDNamespace = uuid.MustParse("8f6c2a54-1b9e-4c3d-9f21-7a5e0d4b6c81")

// PointID derives the stable vector point id for one chunk of one file.
func PointID(fileID string, chunkIndex int) string {
	return uuid.NewSHA1(pointIDNamespace, []byte(fileID+":"+strconv.Itoa(chunkIndex))).String()
}

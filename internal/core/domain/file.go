package domain

import "time"

type IngestionStatus string

const (
	StatusUploaded   IngestionStatus = "uploaded"
	StatusProcessing IngestionStatus = "processing"
	StatusEmbedding  IngestionStatus = "embedding"
	StatusReady      IngestionStatus = "ready"
	StatusError      IngestionStatus = "error"
)

// Terminal reports whether no further automatic transition applies.
func (s IngestionStatus) Terminal() bool {
	return s == StatusReady || s == StatusError
}

// SourceFile is the durable record of one uploaded file. It is created by
// the upload boundary and mutated only by the ingestion orchestrator.
type SourceFile struct {
	ID          string          `json:"id"`
	DataroomID  string          `json:"dataroom_id"`
	Filename    string          `json:"filename"`
	MimeType    string          `json:"mime_type"`
	StoragePath string          `json:"storage_path"`
	SizeBytes   int64           `json:"size_bytes"`
	Category    string          `json:"category,omitempty"`
	Description string          `json:"description,omitempty"`
	Status      IngestionStatus `json:"status"`
	Error       string          `json:"error,omitempty"`
	Metadata    FileMetadata    `json:"metadata"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// FileMetadata carries per-file ingestion counters. Counts only ever grow
// within one ingestion run; a re-ingestion resets them.
type FileMetadata struct {
	ChunkCount     int `json:"chunk_count"`
	EmbeddingCount int `json:"embedding_count"`
}

// MetadataPatch is a partial update applied alongside a status transition.
// Nil fields are left untouched.
type MetadataPatch struct {
	ChunkCount     *int
	EmbeddingCount *int
}

// Classification is the coarse label the classifier assigns from a bounded
// sample of the extracted text.
type Classification struct {
	Category    string `json:"category"`
	Description string `json:"description"`
}

// CategoryUncategorized is the fallback label when classification is
// ambiguous or the classifier fails. Classification never blocks embedding.
const CategoryUncategorized = "uncategorized"

// Categories is the closed set the classifier may choose from.
var Categories = []string{
	"financial",
	"legal",
	"technical",
	"hr",
	"marketing",
	"operations",
	CategoryUncategorized,
}

func ValidCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

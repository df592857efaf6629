package domain

// SearchScope restricts retrieval to one dataroom and, optionally, a
// file-id allow-list within it.
type SearchScope struct {
	DataroomID string
	FileIDs    []string
}

// RetrievedChunk is one ranked retrieval hit. Ephemeral, never persisted.
type RetrievedChunk struct {
	PointID    string  `json:"point_id"`
	FileID     string  `json:"file_id"`
	Filename   string  `json:"filename,omitempty"`
	Category   string  `json:"category,omitempty"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
	ChunkIndex int     `json:"chunk_index"`
	Sheet      string  `json:"sheet,omitempty"`
	RowFrom    int     `json:"row_from,omitempty"`
	RowTo      int     `json:"row_to,omitempty"`
}

// Answer is the synthesized result of one question. Sources is never nil:
// a zero-hit retrieval yields a definite "not found" text with an empty
// sources slice.
type Answer struct {
	Text       string           `json:"text"`
	Sources    []RetrievedChunk `json:"sources"`
	Category   string           `json:"category,omitempty"`
	SubQueries []string         `json:"sub_queries,omitempty"`
	LatencyMS  int64            `json:"latency_ms"`
}

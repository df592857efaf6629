package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/vaultgrid/dataroom-rag/internal/core/domain"
)

// Client talks to qdrant over its HTTP API. One Client serves one
// collection; all points carry dataroom_id and file_id payload fields so
// search can be scoped without extra collections.
type Client struct {
	baseURL    string
	collection string
	vectorSize int
	httpClient *http.Client
}

func New(baseURL, collection string, vectorSize int) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		vectorSize: vectorSize,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Init creates the collection and the payload indexes used by scoped
// search. It is idempotent: an existing collection or index is not an
// error, so it is safe to call on every deploy.
func (c *Client) Init(ctx context.Context) error {
	createBody := map[string]any{
		"vectors": map[string]any{
			"size":     c.vectorSize,
			"distance": "Cosine",
		},
	}
	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	if err := c.do(ctx, http.MethodPut, url, createBody, nil, http.StatusConflict); err != nil {
		return domain.WrapError(domain.ErrVectorStoreUnavailable, "qdrant.Init", err)
	}

	for _, field := range []string{"dataroom_id", "file_id"} {
		indexBody := map[string]any{
			"field_name":   field,
			"field_schema": "keyword",
		}
		url := fmt.Sprintf("%s/collections/%s/index", c.baseURL, c.collection)
		// 400 when the index already exists.
		if err := c.do(ctx, http.MethodPut, url, indexBody, nil, http.StatusBadRequest); err != nil {
			return domain.WrapError(domain.ErrVectorStoreUnavailable, "qdrant.Init", err)
		}
	}
	return nil
}

// Initialized reports whether the collection exists.
func (c *Client) Initialized(ctx context.Context) (bool, error) {
	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("create collection info request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, domain.WrapError(domain.ErrVectorStoreUnavailable, "qdrant.Initialized", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode >= 300:
		return false, domain.WrapError(domain.ErrVectorStoreUnavailable, "qdrant.Initialized",
			fmt.Errorf("qdrant collection info status: %s", resp.Status))
	}
	return true, nil
}

func (c *Client) Count(ctx context.Context) (uint64, error) {
	var countResp struct {
		Result struct {
			Count uint64 `json:"count"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/count", c.baseURL, c.collection)
	if err := c.do(ctx, http.MethodPost, url, map[string]any{"exact": true}, &countResp, 0); err != nil {
		return 0, domain.WrapError(domain.ErrVectorStoreUnavailable, "qdrant.Count", err)
	}
	return countResp.Result.Count, nil
}

// Upsert writes records as points keyed by their deterministic PointID,
// so re-ingesting a file overwrites its previous chunks in place.
func (c *Client) Upsert(ctx context.Context, records []domain.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  []float32      `json:"vector"`
		Payload map[string]any `json:"payload"`
	}

	points := make([]point, 0, len(records))
	for _, r := range records {
		points = append(points, point{
			ID:     r.PointID,
			Vector: r.Vector,
			Payload: map[string]any{
				"file_id":      r.FileID,
				"dataroom_id":  r.DataroomID,
				"filename":     r.Filename,
				"category":     r.Category,
				"text":         r.Text,
				"chunk_index":  r.ChunkIndex,
				"total_chunks": r.TotalChunks,
				"sheet":        r.Sheet,
				"row_from":     r.RowFrom,
				"row_to":       r.RowTo,
			},
		})
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, c.collection)
	if err := c.do(ctx, http.MethodPut, url, map[string]any{"points": points}, nil, 0); err != nil {
		return domain.WrapError(domain.ErrVectorStoreUnavailable, "qdrant.Upsert", err)
	}
	return nil
}

func (c *Client) Search(
	ctx context.Context,
	queryVector []float32,
	scope domain.SearchScope,
	topK int,
) ([]domain.RetrievedChunk, error) {
	must := []map[string]any{
		{
			"key":   "dataroom_id",
			"match": map[string]any{"value": scope.DataroomID},
		},
	}
	if len(scope.FileIDs) > 0 {
		must = append(must, map[string]any{
			"key":   "file_id",
			"match": map[string]any{"any": scope.FileIDs},
		})
	}

	reqBody := map[string]any{
		"vector":       queryVector,
		"limit":        topK,
		"with_payload": true,
		"filter":       map[string]any{"must": must},
	}

	var searchResp struct {
		Result []struct {
			ID      string         `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	if err := c.do(ctx, http.MethodPost, url, reqBody, &searchResp, 0); err != nil {
		return nil, domain.WrapError(domain.ErrVectorStoreUnavailable, "qdrant.Search", err)
	}

	out := make([]domain.RetrievedChunk, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		out = append(out, domain.RetrievedChunk{
			PointID:    r.ID,
			FileID:     getStringPayload(r.Payload, "file_id"),
			Filename:   getStringPayload(r.Payload, "filename"),
			Category:   getStringPayload(r.Payload, "category"),
			Text:       getStringPayload(r.Payload, "text"),
			Score:      r.Score,
			ChunkIndex: getIntPayload(r.Payload, "chunk_index"),
			Sheet:      getStringPayload(r.Payload, "sheet"),
			RowFrom:    getIntPayload(r.Payload, "row_from"),
			RowTo:      getIntPayload(r.Payload, "row_to"),
		})
	}

	// qdrant orders by score; pin ties to the later chunk so answers
	// prefer the most recent part of a document.
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ChunkIndex > out[j].ChunkIndex
	})
	return out, nil
}

// DeleteByFile removes every point belonging to one file. Used both on
// file deletion and before re-ingesting, so a shrunken file leaves no
// stale tail chunks behind.
func (c *Client) DeleteByFile(ctx context.Context, fileID string) error {
	reqBody := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{
					"key":   "file_id",
					"match": map[string]any{"value": fileID},
				},
			},
		},
	}
	url := fmt.Sprintf("%s/collections/%s/points/delete?wait=true", c.baseURL, c.collection)
	if err := c.do(ctx, http.MethodPost, url, reqBody, nil, 0); err != nil {
		return domain.WrapError(domain.ErrVectorStoreUnavailable, "qdrant.DeleteByFile", err)
	}
	return nil
}

// do sends a JSON request and decodes the response into out when given.
// tolerated is an extra status code treated as success, for idempotent
// create calls.
func (c *Client) do(ctx context.Context, method, url string, body any, out any, tolerated int) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode != tolerated {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if msg := strings.TrimSpace(string(raw)); msg != "" {
			return fmt.Errorf("qdrant status: %s: %s", resp.Status, msg)
		}
		return fmt.Errorf("qdrant status: %s", resp.Status)
	}

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func getIntPayload(payload map[string]any, key string) int {
	v, ok := payload[key]
	if !ok {
		return 0
	}
	f, ok := v.(float64)
	if !ok {
		return 0
	}
	return int(f)
}

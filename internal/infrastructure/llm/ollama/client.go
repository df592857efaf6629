package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/vaultgrid/dataroom-rag/internal/core/domain"
)

type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
}

func New(baseURL, genModel, embedModel string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// Classifier labels a bounded text sample with one of the closed dataroom
// categories plus a short description.
type Classifier struct {
	client *Client
}

func NewClassifier(client *Client) *Classifier {
	return &Classifier{client: client}
}

func (c *Classifier) Classify(ctx context.Context, sample string) (domain.Classification, error) {
	respText, err := c.client.generateJSON(ctx, buildClassificationPrompt(sample))
	if err != nil {
		return domain.Classification{}, WrapTemporary("ollama.classify", err)
	}

	var result domain.Classification
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &result); err != nil {
		return domain.Classification{}, fmt.Errorf("parse classification json: %w", err)
	}
	result.Category = strings.ToLower(strings.TrimSpace(result.Category))
	if !domain.ValidCategory(result.Category) {
		result.Category = domain.CategoryUncategorized
	}
	return result, nil
}

// Embedder exposes the raw embedding API. Batching, backoff, and partial
// failure handling live in the embedding package that wraps it.
type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := e.client.postJSON(ctx, "/api/embed", request, &response, "embed"); err != nil {
		return nil, WrapTemporary("ollama.embed", err)
	}
	if len(response.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embeddings/texts mismatch: %d/%d", len(response.Embeddings), len(texts))
	}
	return response.Embeddings, nil
}

type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) GenerateAnswer(ctx context.Context, question string, chunks []domain.RetrievedChunk) (string, error) {
	text, err := g.client.generateText(ctx, buildAnswerPrompt(question, chunks))
	if err != nil {
		return "", WrapTemporary("ollama.generate", err)
	}
	return text, nil
}

// GenerateAnswerStream yields the answer incrementally through onDelta.
// Concatenated deltas equal the one-shot answer for the same model output.
func (g *Generator) GenerateAnswerStream(ctx context.Context, question string, chunks []domain.RetrievedChunk, onDelta func(string) error) error {
	return WrapTemporary("ollama.generate_stream", g.client.generateStream(ctx, buildAnswerPrompt(question, chunks), onDelta))
}

// DecomposeQuestion asks the model to break a multi-aspect question into
// sub-queries. Returns nil when the question does not decompose.
func (g *Generator) DecomposeQuestion(ctx context.Context, question string) ([]string, error) {
	respText, err := g.client.generateJSON(ctx, buildDecomposePrompt(question))
	if err != nil {
		return nil, WrapTemporary("ollama.decompose", err)
	}

	var parsed struct {
		SubQueries []string `json:"sub_queries"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &parsed); err != nil {
		return nil, fmt.Errorf("parse decomposition json: %w", err)
	}

	out := make([]string, 0, len(parsed.SubQueries))
	for _, q := range parsed.SubQueries {
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, q)
		}
	}
	if len(out) < 2 {
		return nil, nil
	}
	return out, nil
}

func (c *Client) generateJSON(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
		"format": "json",
	}
	return c.generate(ctx, reqBody)
}

func (c *Client) generateText(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
	}
	return c.generate(ctx, reqBody)
}

func (c *Client) generate(ctx context.Context, reqBody map[string]any) (string, error) {
	var response struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, "/api/generate", reqBody, &response, "generate"); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

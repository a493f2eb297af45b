package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"nuvaru/src/core/rag"
	"nuvaru/src/log"
)

const (
	DefaultURL = "http://localhost:11434/api"
)

// EmbeddingRequest is the /embeddings request body.
type EmbeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// EmbeddingResponse is the /embeddings response body.
type EmbeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

// GenerateRequest is the /generate request body.
type GenerateRequest struct {
	Model   string                 `json:"model"`
	System  string                 `json:"system"`
	Prompt  string                 `json:"prompt"`
	Stream  bool                   `json:"stream"`
	Options map[string]interface{} `json:"options,omitempty"`
}

// GenerateResponse is one streamed /generate chunk.
type GenerateResponse struct {
	Model     string `json:"model"`
	Response  string `json:"response"`
	Done      bool   `json:"done"`
	Truncated bool   `json:"truncated,omitempty"`
}

// TagsResponse is the /tags response body, used for health checks.
type TagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Client talks to an Ollama server over its HTTP API.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

func NewClient(baseURL string, c *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if c == nil {
		c = http.DefaultClient
	}

	return &Client{
		httpClient: c,
		baseURL:    baseURL,
	}
}

// Models lists the models the server has pulled. An error means the server
// is unreachable.
func (c *Client) Models(ctx context.Context) ([]string, error) {
	url := fmt.Sprintf("%s/tags", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	var result TagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("error decoding response: %w", err)
	}

	names := make([]string, len(result.Models))
	for i, m := range result.Models {
		names[i] = m.Name
	}
	return names, nil
}

// GetEmbedding generates an embedding vector for the given text using the
// specified model.
func (c *Client) GetEmbedding(ctx context.Context, model string, text string) ([]float32, error) {
	reqBody := EmbeddingRequest{
		Model:  model,
		Prompt: text,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/embeddings", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embeddings request failed: %s: %s", resp.Status, body)
	}

	var result EmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("error decoding response: %w", err)
	}

	embedding32 := make([]float32, len(result.Embedding))
	for i, v := range result.Embedding {
		embedding32[i] = float32(v)
	}

	return embedding32, nil
}

// Generate runs streamed generation and returns the concatenated response.
func (c *Client) Generate(ctx context.Context, model, system, prompt string, options map[string]interface{}) (string, error) {
	reqBody := GenerateRequest{
		Model:   model,
		System:  system,
		Prompt:  prompt,
		Stream:  true,
		Options: options,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("error marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/generate", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error(err, "failed to make request to ollama")
		return "", fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("generate request failed: %s: %s", resp.Status, body)
	}

	reader := bufio.NewReader(resp.Body)
	var fullResponse strings.Builder

	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				break
			}
			return "", fmt.Errorf("error reading response: %w", err)
		}

		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var response GenerateResponse
		if err := json.Unmarshal(line, &response); err != nil {
			log.Error(err, "failed to unmarshal response line", "line", string(line))
			return "", fmt.Errorf("error unmarshaling response: %w", err)
		}

		fullResponse.WriteString(response.Response)

		if response.Truncated {
			return "", fmt.Errorf("response was truncated by the model")
		}

		if response.Done {
			return fullResponse.String(), nil
		}
	}

	if fullResponse.Len() > 0 {
		return fullResponse.String(), nil
	}
	return "", fmt.Errorf("no response received from ollama")
}

// EmbeddingProvider adapts the client to rag.EmbeddingProvider for one fixed
// embedding model.
type EmbeddingProvider struct {
	client    *Client
	model     string
	dimension int
}

func NewEmbeddingProvider(client *Client, model string, dimension int) *EmbeddingProvider {
	return &EmbeddingProvider{client: client, model: model, dimension: dimension}
}

func (p *EmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty input", rag.ErrEmbeddingFailed)
	}
	vec, err := p.client.GetEmbedding(ctx, p.model, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rag.ErrEmbeddingFailed, err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("%w: model returned an empty vector", rag.ErrEmbeddingFailed)
	}
	return vec, nil
}

func (p *EmbeddingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := p.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("batch item %d: %w", i, err)
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func (p *EmbeddingProvider) Dimension() int {
	return p.dimension
}

func (p *EmbeddingProvider) Name() string {
	return "ollama/" + p.model
}

// LLMProvider adapts the client to rag.LLMProvider for one fixed generation
// model.
type LLMProvider struct {
	client *Client
	model  string
}

func NewLLMProvider(client *Client, model string) *LLMProvider {
	return &LLMProvider{client: client, model: model}
}

func (p *LLMProvider) Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	options := map[string]interface{}{
		"temperature": temperature,
	}
	if maxTokens > 0 {
		options["num_predict"] = maxTokens
	}
	return p.client.Generate(ctx, p.model, "", prompt, options)
}

var (
	_ rag.EmbeddingProvider = (*EmbeddingProvider)(nil)
	_ rag.LLMProvider       = (*LLMProvider)(nil)
)

// Package ollama provides HTTP clients for the Ollama embedding and chat
// completion APIs. Both are treated as opaque network services; callers own
// the retry policy.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Embedding is one embedding-service response: a dense vector plus the model
// version that produced it. Vectors from different versions live in
// incompatible spaces and must never be compared.
type Embedding struct {
	Values       []float32
	ModelVersion string
}

// EmbedClient calls the Ollama embeddings endpoint.
type EmbedClient struct {
	baseURL string
	model   string
	client  *http.Client
	limiter *rate.Limiter
}

// NewEmbedClient creates an embedding client. Outbound calls are rate limited
// to rps requests per second (0 disables limiting) and capped by timeout.
func NewEmbedClient(baseURL, model string, rps float64, timeout time.Duration) *EmbedClient {
	var lim *rate.Limiter
	if rps > 0 {
		lim = rate.NewLimiter(rate.Limit(rps), int(rps)+1)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &EmbedClient{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: timeout},
		limiter: lim,
	}
}

type embedReq struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResp struct {
	Embedding []float64 `json:"embedding"`
}

// Embed returns the embedding for the given text. The reported model version
// is the configured model name; Ollama pins one model per endpoint.
func (c *EmbedClient) Embed(ctx context.Context, text string) (Embedding, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Embedding{}, err
		}
	}

	body, _ := json.Marshal(embedReq{Model: c.model, Prompt: text})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return Embedding{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Embedding{}, fmt.Errorf("ollama embed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Embedding{}, fmt.Errorf("ollama embed: status %d", resp.StatusCode)
	}

	var result embedResp
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Embedding{}, fmt.Errorf("ollama embed decode: %w", err)
	}

	out := make([]float32, len(result.Embedding))
	for i, v := range result.Embedding {
		out[i] = float32(v)
	}
	return Embedding{Values: out, ModelVersion: c.model}, nil
}

// ModelVersion returns the configured embedding model name.
func (c *EmbedClient) ModelVersion() string { return c.model }

// Package knowledge provides the dealer knowledge base: embedding generation
// over an OpenAI-compatible API and similarity search against pgvector.
package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Embedder turns text into fixed-length vectors. Opaque capability; the
// rest of the system only sees []float32.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedderConfig configures the HTTP embedding client.
type EmbedderConfig struct {
	APIKey  string
	BaseURL string // OpenAI-compatible, default https://api.openai.com/v1
	Model   string // default text-embedding-3-small
}

// HTTPEmbedder calls an OpenAI-compatible /embeddings endpoint.
type HTTPEmbedder struct {
	cfg    EmbedderConfig
	client *http.Client
}

// NewHTTPEmbedder creates an embedding client, filling config defaults.
func NewHTTPEmbedder(cfg EmbedderConfig) *HTTPEmbedder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	return &HTTPEmbedder{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

const embedBatchSize = 25

// Embed generates embeddings for texts, batching requests.
func (e *HTTPEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if e.cfg.APIKey == "" {
		return nil, fmt.Errorf("embedding API key not configured")
	}

	var all [][]float32
	for i := 0; i < len(texts); i += embedBatchSize {
		end := i + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}

		body, _ := json.Marshal(map[string]any{
			"model": e.cfg.Model,
			"input": texts[i:end],
		})

		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			strings.TrimRight(e.cfg.BaseURL, "/")+"/embeddings",
			bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)

		resp, err := e.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("embedding API call: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			raw, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return nil, fmt.Errorf("embedding API error %d: %s", resp.StatusCode, string(raw))
		}

		var result struct {
			Data []struct {
				Embedding []float32 `json:"embedding"`
			} `json:"data"`
		}
		err = json.NewDecoder(resp.Body).Decode(&result)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("parse embedding response: %w", err)
		}

		for _, d := range result.Data {
			all = append(all, d.Embedding)
		}
	}
	return all, nil
}

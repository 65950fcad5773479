package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"docmind/internal/rag"
)

// EmbeddingConfig holds API settings for text-embedding (OpenAI-compatible).
type EmbeddingConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// Embed returns the embedding vector for the given text.
func (c *OpenAICompatibleClient) Embed(ctx context.Context, cfg EmbeddingConfig, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("embedding input is empty")
	}

	reqBody := map[string]interface{}{
		"model": cfg.Model,
		"input": text,
	}
	resp, err := c.post(ctx, cfg.BaseURL, cfg.APIKey, "/embeddings", reqBody)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embedding response failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("embedding response status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse embedding json failed: %w", err)
	}
	if len(parsed.Data) == 0 || len(parsed.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding in response")
	}
	return parsed.Data[0].Embedding, nil
}

// Embedder binds the client to one embedding model. Every failure it returns
// wraps rag.ErrEmbedding; nothing is cached or retried.
type Embedder struct {
	client *OpenAICompatibleClient
	cfg    EmbeddingConfig
}

func NewEmbedder(client *OpenAICompatibleClient, cfg EmbeddingConfig) *Embedder {
	return &Embedder{client: client, cfg: cfg}
}

func (e *Embedder) Model() string {
	return e.cfg.Model
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.client.Embed(ctx, e.cfg, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rag.ErrEmbedding, err)
	}
	return vec, nil
}

// Package openai implements embedder.Provider on the OpenAI Embeddings API.
package openai

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

const defaultDimensions = 1536

// Config holds the OpenAI embedding settings.
type Config struct {
	// APIKey is required.
	APIKey string

	// Model selects the embedding model. Defaults to text-embedding-ada-002.
	Model string

	// BaseURL overrides the API endpoint, for proxies and compatible servers.
	BaseURL string

	// Dimensions is the expected vector size. Defaults to 1536.
	Dimensions int
}

// Client calls the OpenAI Embeddings API.
type Client struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

// NewClient validates cfg and returns a client.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, errors.New("openai: API key is required")
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}

	model, err := embeddingModel(cfg.Model)
	if err != nil {
		return nil, err
	}

	dimensions := cfg.Dimensions
	if dimensions <= 0 {
		dimensions = defaultDimensions
	}

	return &Client{
		client:     openai.NewClientWithConfig(apiCfg),
		model:      model,
		dimensions: dimensions,
	}, nil
}

// embeddingModel maps a configured model name onto the SDK's enum. An empty
// name defaults to Ada v2.
func embeddingModel(name string) (openai.EmbeddingModel, error) {
	switch name {
	case "", "text-embedding-ada-002":
		return openai.AdaEmbeddingV2, nil
	case "text-search-ada-doc-001":
		return openai.AdaSearchDocument, nil
	case "text-search-ada-query-001":
		return openai.AdaSearchQuery, nil
	case "text-similarity-ada-001":
		return openai.AdaSimilarity, nil
	default:
		return openai.Unknown, fmt.Errorf("openai: unsupported embedding model %q", name)
	}
}

// Embed converts one text into a vector.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: c.model,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("openai: embeddings response contained no data")
	}
	return widen(resp.Data[0].Embedding), nil
}

// EmbedBatch converts texts in one API call, preserving input order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: c.model,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai: got %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	out := make([][]float64, len(resp.Data))
	for i, d := range resp.Data {
		out[i] = widen(d.Embedding)
	}
	return out, nil
}

// Dimensions returns the configured vector size.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// Close is a no-op; the SDK client holds no persistent resources.
func (c *Client) Close() error {
	return nil
}

func widen(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

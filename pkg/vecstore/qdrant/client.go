// Package qdrant implements vecstore.VectorStore against a Qdrant server
// over its HTTP API.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jarvis-labs/neuromem-go/pkg/vecstore"
)

const (
	defaultBaseURL = "http://localhost:6333"
	defaultTimeout = 5 * time.Second

	maxResponseBytes = 4 << 20
)

// Config holds the Qdrant connection settings.
type Config struct {
	// BaseURL is the server root, e.g. "http://localhost:6333".
	BaseURL string

	// APIKey authenticates requests when the server requires it.
	APIKey string

	// VectorSize is the embedding dimensionality used when collections
	// are created. Required.
	VectorSize int

	// Timeout bounds each HTTP call. Defaults to 5s.
	Timeout time.Duration
}

// Client talks to one Qdrant server. Each partition maps to a collection
// of the same name, created on first use.
type Client struct {
	baseURL    string
	apiKey     string
	vectorSize int
	http       *http.Client

	mu      sync.Mutex
	created map[vecstore.Partition]bool
}

// NewClient validates the config and returns a client. No network call is
// made; collections are created lazily.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.VectorSize <= 0 {
		return nil, fmt.Errorf("qdrant: vector size must be positive, got %d", cfg.VectorSize)
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("qdrant: invalid base URL %q: %w", cfg.BaseURL, err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		vectorSize: cfg.VectorSize,
		http:       &http.Client{Timeout: timeout},
		created:    make(map[vecstore.Partition]bool),
	}, nil
}

// Upsert stores or replaces a point in the partition's collection.
func (c *Client) Upsert(ctx context.Context, partition vecstore.Partition, id int64, vector []float64, payload vecstore.Payload) error {
	if err := c.ensureCollection(ctx, partition); err != nil {
		return err
	}

	body := map[string]interface{}{
		"points": []map[string]interface{}{
			{
				"id":      id,
				"vector":  vector,
				"payload": payload,
			},
		},
	}
	path := fmt.Sprintf("/collections/%s/points?wait=true", url.PathEscape(string(partition)))
	if _, err := c.do(ctx, http.MethodPut, path, body); err != nil {
		return fmt.Errorf("qdrant: upsert point %d in %s: %w", id, partition, err)
	}
	return nil
}

type searchResponse struct {
	Result []struct {
		ID      int64                  `json:"id"`
		Score   float64                `json:"score"`
		Payload map[string]interface{} `json:"payload"`
	} `json:"result"`
}

// Query runs a similarity search scoped to filter.UserID.
func (c *Client) Query(ctx context.Context, partition vecstore.Partition, vector []float64, filter vecstore.Filter, limit int) ([]vecstore.Hit, error) {
	if limit <= 0 {
		return nil, nil
	}
	if err := c.ensureCollection(ctx, partition); err != nil {
		return nil, err
	}

	body := map[string]interface{}{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
		"filter": map[string]interface{}{
			"must": []map[string]interface{}{
				{
					"key":   "user_id",
					"match": map[string]interface{}{"value": filter.UserID},
				},
			},
		},
	}
	path := fmt.Sprintf("/collections/%s/points/search", url.PathEscape(string(partition)))
	raw, err := c.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, fmt.Errorf("qdrant: search %s: %w", partition, err)
	}

	var resp searchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("qdrant: decode search response: %w", err)
	}

	hits := make([]vecstore.Hit, 0, len(resp.Result))
	for _, r := range resp.Result {
		hits = append(hits, vecstore.Hit{
			ID:        r.ID,
			BaseScore: r.Score,
			Payload:   vecstore.Payload(r.Payload),
		})
	}
	return hits, nil
}

// Delete removes a point. Absent points are not an error.
func (c *Client) Delete(ctx context.Context, partition vecstore.Partition, id int64) error {
	if err := c.ensureCollection(ctx, partition); err != nil {
		return err
	}

	body := map[string]interface{}{
		"points": []int64{id},
	}
	path := fmt.Sprintf("/collections/%s/points/delete?wait=true", url.PathEscape(string(partition)))
	if _, err := c.do(ctx, http.MethodPost, path, body); err != nil {
		return fmt.Errorf("qdrant: delete point %d from %s: %w", id, partition, err)
	}
	return nil
}

// Close is a no-op; the HTTP client holds no persistent resources.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// ensureCollection creates the partition's collection if the server does not
// have it yet. Creation is memoized per client instance.
func (c *Client) ensureCollection(ctx context.Context, partition vecstore.Partition) error {
	c.mu.Lock()
	done := c.created[partition]
	c.mu.Unlock()
	if done {
		return nil
	}

	path := "/collections/" + url.PathEscape(string(partition))

	// Probe first; most of the time the collection already exists.
	_, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		var se *statusError
		if !errors.As(err, &se) || se.code != http.StatusNotFound {
			return fmt.Errorf("qdrant: check collection %s: %w", partition, err)
		}

		body := map[string]interface{}{
			"vectors": map[string]interface{}{
				"size":     c.vectorSize,
				"distance": "Cosine",
			},
		}
		if _, err := c.do(ctx, http.MethodPut, path, body); err != nil {
			// A concurrent creator may have won the race.
			if !strings.Contains(strings.ToLower(err.Error()), "already exists") {
				return fmt.Errorf("qdrant: create collection %s: %w", partition, err)
			}
		}
	}

	c.mu.Lock()
	c.created[partition] = true
	c.mu.Unlock()
	return nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.code, e.body)
}

// do issues one JSON request and returns the raw response body for 2xx
// responses, a *statusError otherwise.
func (c *Client) do(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(data))}
	}
	return data, nil
}

package core

import (
	"log/slog"

	"github.com/jarvis-labs/neuromem-go/pkg/cognition"
	"github.com/jarvis-labs/neuromem-go/pkg/embedder"
	"github.com/jarvis-labs/neuromem-go/pkg/storage"
	"github.com/jarvis-labs/neuromem-go/pkg/vecstore"
)

// Option configures a Client beyond what Config expresses, mainly backend
// injection.
type Option func(*Client)

// WithFragmentStore injects a prebuilt relational store, bypassing the
// provider selection in Config.
func WithFragmentStore(store storage.FragmentStore) Option {
	return func(c *Client) {
		c.store = store
	}
}

// WithVectorStore injects a prebuilt vector store.
func WithVectorStore(vs vecstore.VectorStore) Option {
	return func(c *Client) {
		c.vectors = vs
	}
}

// WithEmbedder injects a prebuilt embedding provider.
func WithEmbedder(p embedder.Provider) Option {
	return func(c *Client) {
		c.embed = p
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithPolicy overrides the consolidation/forgetting thresholds.
func WithPolicy(policy *cognition.Policy) Option {
	return func(c *Client) {
		c.policy = policy
	}
}

// WithAnalyzer replaces the emotional analyzer.
func WithAnalyzer(a EmotionAnalyzer) Option {
	return func(c *Client) {
		c.analyzer = a
	}
}

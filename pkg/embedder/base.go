// Package embedder defines the text-embedding provider contract.
//
// Every similarity write and query goes through a Provider; the orchestrator
// treats embedding failures as soft and falls back to keyword retrieval.
package embedder

import "context"

// Provider converts text into vectors suitable for similarity search.
type Provider interface {
	// Embed converts a single text into an embedding vector.
	Embed(ctx context.Context, text string) ([]float64, error)

	// EmbedBatch converts multiple texts in one round trip. The result
	// order matches the input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)

	// Dimensions returns the vector dimensionality this provider produces.
	Dimensions() int

	// Close releases provider resources.
	Close() error
}

// Package mock provides a deterministic, offline embedder.Provider for
// tests and for deployments that run without an embedding API.
package mock

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

const defaultDimensions = 64

// Provider derives vectors from token hashes. Identical texts always embed
// to identical vectors, and shared tokens give correlated vectors, which is
// enough for retrieval tests without any network dependency.
type Provider struct {
	dimensions int
}

// New returns a provider with the default dimensionality.
func New() *Provider {
	return &Provider{dimensions: defaultDimensions}
}

// NewWithDimensions returns a provider producing vectors of size dims.
func NewWithDimensions(dims int) *Provider {
	if dims <= 0 {
		dims = defaultDimensions
	}
	return &Provider{dimensions: dims}
}

// Embed hashes each token into a bucket and L2-normalizes the result.
func (p *Provider) Embed(_ context.Context, text string) ([]float64, error) {
	vec := make([]float64, p.dimensions)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()
		idx := int(sum % uint64(p.dimensions))
		if sum&(1<<63) != 0 {
			vec[idx] -= 1
		} else {
			vec[idx] += 1
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	} else {
		// Empty or all-cancelling input still yields a valid unit vector.
		vec[0] = 1
	}
	return vec, nil
}

// EmbedBatch embeds each text independently.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		vec, err := p.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions returns the vector size.
func (p *Provider) Dimensions() int {
	return p.dimensions
}

// Close is a no-op.
func (p *Provider) Close() error {
	return nil
}

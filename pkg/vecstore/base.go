// Package vecstore provides vector-store routing, hybrid scoring, and the
// VectorStore interface implemented by the similarity backends.
//
// The vector store is the best-effort half of the dual-persistence design:
// writes to it may fail without failing the caller, and reads degrade to
// relational-only retrieval when it is unreachable.
package vecstore

import (
	"context"
	"strconv"
	"time"

	"github.com/jarvis-labs/neuromem-go/pkg/storage"
)

// Partition is a logical subdivision of the vector store keyed by memory
// category. Exactly four partitions exist.
type Partition string

const (
	// PartitionEmotional holds strongly emotional fragments of any type.
	PartitionEmotional Partition = "emotional_memory"

	// PartitionEpisodic holds event and conversation memories.
	PartitionEpisodic Partition = "episodic_memory"

	// PartitionSemantic holds factual knowledge.
	PartitionSemantic Partition = "semantic_memory"

	// PartitionProcedural holds how-to knowledge.
	PartitionProcedural Partition = "procedural_memory"
)

// Partitions lists every partition, in routing-priority order.
var Partitions = []Partition{
	PartitionEmotional,
	PartitionEpisodic,
	PartitionSemantic,
	PartitionProcedural,
}

// emotionalRoutingThreshold is the emotional weight above which a fragment
// routes to the emotional partition regardless of its memory type.
const emotionalRoutingThreshold = 0.5

// Route maps a fragment to its vector-store partition.
//
// The mapping is total and deterministic: an emotional weight above the
// threshold always wins, otherwise the memory type decides. Working memory
// and unknown types fall back to the episodic partition.
func Route(memoryType storage.MemoryType, emotionalWeight float64) Partition {
	if emotionalWeight > emotionalRoutingThreshold {
		return PartitionEmotional
	}

	switch memoryType {
	case storage.TypeSemantic:
		return PartitionSemantic
	case storage.TypeProcedural:
		return PartitionProcedural
	default:
		return PartitionEpisodic
	}
}

// Payload is the metadata stored alongside a vector point.
type Payload map[string]interface{}

// Hit is one similarity-search result.
type Hit struct {
	// ID is the fragment ID the point was stored under.
	ID int64

	// BaseScore is the raw similarity score from the backend.
	BaseScore float64

	// Payload is the stored fragment metadata.
	Payload Payload
}

// Filter restricts a query to matching points.
type Filter struct {
	// UserID scopes results to one owner. Required; fragments are never
	// shared across users.
	UserID string
}

// VectorStore is the contract for similarity backends.
//
// Implementations must bound every call with the context deadline; callers
// treat failures as soft and fall back to relational retrieval.
type VectorStore interface {
	// Upsert stores or replaces a point in a partition.
	Upsert(ctx context.Context, partition Partition, id int64, vector []float64, payload Payload) error

	// Query returns up to limit hits most similar to vector, best first.
	Query(ctx context.Context, partition Partition, vector []float64, filter Filter, limit int) ([]Hit, error)

	// Delete removes a point. Deleting an absent point is not an error.
	Delete(ctx context.Context, partition Partition, id int64) error

	// Close releases backend resources.
	Close() error
}

// PayloadFromFragment builds the stored metadata for a fragment.
func PayloadFromFragment(f *storage.Fragment) Payload {
	return Payload{
		"user_id":           f.UserID,
		"content":           f.Content,
		"memory_type":       string(f.MemoryType),
		"importance_score":  f.ImportanceScore,
		"emotional_valence": f.Emotion.Valence,
		"created_at":        f.CreatedAt.UTC().Format(time.RFC3339),
		"access_count":      float64(f.AccessCount),
	}
}

// MetaFromPayload extracts the scoring metadata from a stored payload.
//
// Backends serialize numbers differently (JSON float64, string metadata), so
// extraction is defensive: missing or malformed fields degrade to zero values
// rather than failing the read path.
func MetaFromPayload(p Payload) FragmentMeta {
	meta := FragmentMeta{
		ImportanceScore:  payloadFloat(p["importance_score"]),
		EmotionalValence: payloadFloat(p["emotional_valence"]),
		AccessCount:      uint64(payloadFloat(p["access_count"])),
	}
	if s, ok := p["created_at"].(string); ok {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			meta.CreatedAt = t
		}
	}
	return meta
}

func payloadFloat(v interface{}) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case uint64:
		return float64(x)
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

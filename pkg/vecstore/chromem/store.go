// Package chromem implements vecstore.VectorStore on chromem-go, a pure Go
// embedded vector database. It needs no external service, which makes it
// the default backend for local deployments and tests.
package chromem

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/jarvis-labs/neuromem-go/pkg/vecstore"
)

// Store keeps one chromem collection per partition.
type Store struct {
	db *chromem.DB

	mu          sync.Mutex
	collections map[vecstore.Partition]*chromem.Collection
}

// New returns an in-memory store. Contents are lost on process exit.
func New() (*Store, error) {
	return &Store{
		db:          chromem.NewDB(),
		collections: make(map[vecstore.Partition]*chromem.Collection),
	}, nil
}

// NewPersistent returns a store backed by files under dir.
func NewPersistent(dir string) (*Store, error) {
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("chromem: open persistent db at %s: %w", dir, err)
	}
	return &Store{
		db:          db,
		collections: make(map[vecstore.Partition]*chromem.Collection),
	}, nil
}

func (s *Store) collection(partition vecstore.Partition) (*chromem.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if col, ok := s.collections[partition]; ok {
		return col, nil
	}
	col, err := s.db.GetOrCreateCollection(string(partition), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem: collection %s: %w", partition, err)
	}
	s.collections[partition] = col
	return col, nil
}

// Upsert stores or replaces a point keyed by the fragment ID.
func (s *Store) Upsert(ctx context.Context, partition vecstore.Partition, id int64, vector []float64, payload vecstore.Payload) error {
	col, err := s.collection(partition)
	if err != nil {
		return err
	}

	doc := chromem.Document{
		ID:        strconv.FormatInt(id, 10),
		Content:   stringValue(payload, "content"),
		Embedding: toFloat32(vector),
		Metadata:  flattenPayload(payload),
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("chromem: upsert point %d in %s: %w", id, partition, err)
	}
	return nil
}

// Query runs a similarity search scoped to filter.UserID. chromem rejects
// result counts above the collection size, so the limit is clamped first.
func (s *Store) Query(ctx context.Context, partition vecstore.Partition, vector []float64, filter vecstore.Filter, limit int) ([]vecstore.Hit, error) {
	if limit <= 0 {
		return nil, nil
	}
	col, err := s.collection(partition)
	if err != nil {
		return nil, err
	}

	if n := col.Count(); n < limit {
		if n == 0 {
			return nil, nil
		}
		limit = n
	}

	where := map[string]string{"user_id": filter.UserID}
	results, err := col.QueryEmbedding(ctx, toFloat32(vector), limit, where, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem: query %s: %w", partition, err)
	}

	hits := make([]vecstore.Hit, 0, len(results))
	for _, r := range results {
		id, err := strconv.ParseInt(r.ID, 10, 64)
		if err != nil {
			continue
		}
		payload := make(vecstore.Payload, len(r.Metadata)+1)
		for k, v := range r.Metadata {
			payload[k] = v
		}
		payload["content"] = r.Content
		hits = append(hits, vecstore.Hit{
			ID:        id,
			BaseScore: float64(r.Similarity),
			Payload:   payload,
		})
	}
	return hits, nil
}

// Delete removes a point. Absent points are not an error.
func (s *Store) Delete(ctx context.Context, partition vecstore.Partition, id int64) error {
	col, err := s.collection(partition)
	if err != nil {
		return err
	}
	if err := col.Delete(ctx, nil, nil, strconv.FormatInt(id, 10)); err != nil {
		return fmt.Errorf("chromem: delete point %d from %s: %w", id, partition, err)
	}
	return nil
}

// Close is a no-op; persistence happens on write.
func (s *Store) Close() error {
	return nil
}

func toFloat32(vector []float64) []float32 {
	out := make([]float32, len(vector))
	for i, v := range vector {
		out[i] = float32(v)
	}
	return out
}

// flattenPayload converts the payload to chromem's string-only metadata.
// Numeric values keep enough precision to round-trip through ParseFloat.
func flattenPayload(payload vecstore.Payload) map[string]string {
	meta := make(map[string]string, len(payload))
	for k, v := range payload {
		if k == "content" {
			continue
		}
		switch t := v.(type) {
		case string:
			meta[k] = t
		case float64:
			meta[k] = strconv.FormatFloat(t, 'g', -1, 64)
		case int64:
			meta[k] = strconv.FormatInt(t, 10)
		case int:
			meta[k] = strconv.Itoa(t)
		case bool:
			meta[k] = strconv.FormatBool(t)
		default:
			meta[k] = fmt.Sprint(t)
		}
	}
	return meta
}

func stringValue(payload vecstore.Payload, key string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}

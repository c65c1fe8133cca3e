package core_test

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jarvis-labs/neuromem-go/pkg/core"
	"github.com/jarvis-labs/neuromem-go/pkg/embedder/mock"
	"github.com/jarvis-labs/neuromem-go/pkg/emotion"
	"github.com/jarvis-labs/neuromem-go/pkg/storage"
	"github.com/jarvis-labs/neuromem-go/pkg/vecstore"
)

// fakeStore is an in-memory FragmentStore for orchestrator tests.
type fakeStore struct {
	mu         sync.Mutex
	nextID     int64
	rows       map[int64]*storage.Fragment
	failInsert bool

	// blockVolatile, when set, makes the first GetVolatile call signal
	// volatileEntered and wait until blockVolatile is closed, so a test can
	// hold a consolidation run open.
	blockVolatile   chan struct{}
	volatileEntered chan struct{}
	volatileOnce    sync.Once
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		nextID:          1,
		rows:            make(map[int64]*storage.Fragment),
		volatileEntered: make(chan struct{}),
	}
}

func (s *fakeStore) Insert(_ context.Context, f *storage.Fragment) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failInsert {
		return 0, errors.New("simulated relational outage")
	}
	cp := *f
	cp.ID = s.nextID
	s.nextID++
	s.rows[cp.ID] = &cp
	return cp.ID, nil
}

func (s *fakeStore) Get(_ context.Context, userID string, id int64) (*storage.Fragment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.rows[id]
	if !ok || f.UserID != userID {
		return nil, storage.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (s *fakeStore) GetVolatile(_ context.Context, userID string) ([]*storage.Fragment, error) {
	if s.blockVolatile != nil {
		first := false
		s.volatileOnce.Do(func() { first = true })
		if first {
			close(s.volatileEntered)
			<-s.blockVolatile
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*storage.Fragment
	for _, f := range s.rows {
		if f.UserID != userID {
			continue
		}
		if f.ConsolidationLevel == storage.LevelVolatile || f.ConsolidationLevel == storage.LevelConsolidating {
			cp := *f
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) GetRecent(_ context.Context, userID string, since time.Time, limit int) ([]*storage.Fragment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*storage.Fragment
	for _, f := range s.rows {
		if f.UserID == userID && f.CreatedAt.After(since) {
			cp := *f
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeStore) UpdateConsolidationLevel(_ context.Context, id int64, level storage.ConsolidationLevel, force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.rows[id]
	if !ok {
		return nil
	}
	if !force && f.ConsolidationLevel.Rank() > level.Rank() {
		return nil
	}
	f.ConsolidationLevel = level
	return nil
}

func (s *fakeStore) UpdateImportance(_ context.Context, id int64, score float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.rows[id]; ok {
		f.ImportanceScore = score
	}
	return nil
}

func (s *fakeStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
	return nil
}

func (s *fakeStore) SearchByKeyword(_ context.Context, userID, text string, limit int) ([]*storage.Fragment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*storage.Fragment
	for _, f := range s.rows {
		if f.UserID == userID && strings.Contains(strings.ToLower(f.Content), strings.ToLower(text)) {
			cp := *f
			cp.Relevance = 1.0
			out = append(out, &cp)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeStore) TouchAccess(_ context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for _, id := range ids {
		if f, ok := s.rows[id]; ok {
			f.AccessCount++
			f.LastAccessedAt = now
		}
	}
	return nil
}

func (s *fakeStore) ListUsers(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool)
	var users []string
	for _, f := range s.rows {
		if !seen[f.UserID] {
			seen[f.UserID] = true
			users = append(users, f.UserID)
		}
	}
	return users, nil
}

func (s *fakeStore) Close() error { return nil }

func (s *fakeStore) get(id int64) *storage.Fragment {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.rows[id]; ok {
		cp := *f
		return &cp
	}
	return nil
}

// fakeVectors is an in-memory VectorStore with optional failure injection.
type fakeVectors struct {
	mu      sync.Mutex
	points  map[vecstore.Partition]map[int64][]float64
	payload map[int64]vecstore.Payload
	fail    bool
	upserts int
}

func newFakeVectors() *fakeVectors {
	return &fakeVectors{
		points:  make(map[vecstore.Partition]map[int64][]float64),
		payload: make(map[int64]vecstore.Payload),
	}
}

func (v *fakeVectors) Upsert(_ context.Context, partition vecstore.Partition, id int64, vector []float64, payload vecstore.Payload) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.fail {
		return errors.New("simulated vector outage")
	}
	if v.points[partition] == nil {
		v.points[partition] = make(map[int64][]float64)
	}
	v.points[partition][id] = vector
	v.payload[id] = payload
	v.upserts++
	return nil
}

func (v *fakeVectors) Query(_ context.Context, partition vecstore.Partition, vector []float64, filter vecstore.Filter, limit int) ([]vecstore.Hit, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.fail {
		return nil, errors.New("simulated vector outage")
	}
	var hits []vecstore.Hit
	for id, stored := range v.points[partition] {
		p := v.payload[id]
		if uid, _ := p["user_id"].(string); uid != filter.UserID {
			continue
		}
		hits = append(hits, vecstore.Hit{ID: id, BaseScore: dot(vector, stored), Payload: p})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].BaseScore > hits[j].BaseScore })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (v *fakeVectors) Delete(_ context.Context, partition vecstore.Partition, id int64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.points[partition], id)
	delete(v.payload, id)
	return nil
}

func (v *fakeVectors) Close() error { return nil }

func dot(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

// flakyAnalyzer panics at the given rate; otherwise delegates to the real
// analyzer.
type flakyAnalyzer struct {
	inner *emotion.Analyzer
	rng   *rand.Rand
	rate  float64
}

func (a *flakyAnalyzer) Analyze(text string) emotion.Context {
	if a.rng.Float64() < a.rate {
		panic("simulated analysis failure")
	}
	return a.inner.Analyze(text)
}

func newTestClient(t *testing.T, store storage.FragmentStore, vectors vecstore.VectorStore, opts ...core.Option) *core.Client {
	t.Helper()
	opts = append([]core.Option{
		core.WithFragmentStore(store),
		core.WithVectorStore(vectors),
		core.WithEmbedder(mock.New()),
	}, opts...)
	client, err := core.New(core.DefaultConfig(), opts...)
	require.NoError(t, err)
	return client
}

func TestStoreInteractionScenario(t *testing.T) {
	store := newFakeStore()
	vectors := newFakeVectors()
	client := newTestClient(t, store, vectors)
	ctx := context.Background()

	ok, err := client.StoreInteraction(ctx, "u1", "I am thrilled, the launch was perfect!", "Great news!")
	require.NoError(t, err)
	require.True(t, ok)

	f := store.get(1)
	require.NotNil(t, f)
	assert.Greater(t, f.Emotion.Valence, 0.6)
	assert.Greater(t, f.ImportanceScore, 0.0)
	assert.Equal(t, storage.LevelVolatile, f.ConsolidationLevel)
	assert.Contains(t, f.Content, "User: I am thrilled")
	assert.Contains(t, f.Content, "Assistant: Great news!")

	// Strong emotion routes the vector to the emotional partition.
	assert.Len(t, vectors.points[vecstore.PartitionEmotional], 1)

	memories, err := client.GetContextualMemories(ctx, "u1", "how did the launch go?", 5)
	require.NoError(t, err)
	require.NotEmpty(t, memories)
	assert.Contains(t, memories[0].Content, "launch")

	// Retrieval bumped the access counter.
	assert.Equal(t, uint64(1), store.get(1).AccessCount)
}

func TestStoreInteractionRequiresRelationalWrite(t *testing.T) {
	store := newFakeStore()
	store.failInsert = true
	client := newTestClient(t, store, newFakeVectors())

	ok, err := client.StoreInteraction(context.Background(), "u1", "hello", "hi")
	assert.False(t, ok)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrStorageOperation)

	var memErr *core.MemoryError
	require.ErrorAs(t, err, &memErr)
	assert.Equal(t, "StoreInteraction", memErr.Op)
}

func TestStoreInteractionSurvivesVectorOutage(t *testing.T) {
	store := newFakeStore()
	vectors := newFakeVectors()
	vectors.fail = true
	client := newTestClient(t, store, vectors)

	ok, err := client.StoreInteraction(context.Background(), "u1", "remember this", "noted")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotNil(t, store.get(1), "relational write is the durability guarantee")
}

func TestStoreInteractionRejectsEmptyUser(t *testing.T) {
	client := newTestClient(t, newFakeStore(), newFakeVectors())

	ok, err := client.StoreInteraction(context.Background(), "", "hello", "hi")
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestStoreInteractionAbsorbsAnalysisFailures(t *testing.T) {
	store := newFakeStore()
	flaky := &flakyAnalyzer{
		inner: emotion.NewAnalyzer(),
		rng:   rand.New(rand.NewSource(42)),
		rate:  0.15,
	}
	client := newTestClient(t, store, newFakeVectors(), core.WithAnalyzer(flaky))
	ctx := context.Background()

	const trials = 1000
	succeeded := 0
	for i := 0; i < trials; i++ {
		ok, err := client.StoreInteraction(ctx, "u1", "what a wonderful day", "indeed")
		if err == nil && ok {
			succeeded++
		}
	}
	assert.GreaterOrEqual(t, succeeded, trials*80/100,
		"analysis panics default to a neutral context instead of failing the call")
}

func TestGetContextualMemoriesDegradesWithoutVectors(t *testing.T) {
	store := newFakeStore()
	vectors := newFakeVectors()
	client := newTestClient(t, store, vectors)
	ctx := context.Background()

	ok, err := client.StoreInteraction(ctx, "u1", "my dentist appointment is on monday", "noted")
	require.NoError(t, err)
	require.True(t, ok)

	vectors.fail = true
	memories, err := client.GetContextualMemories(ctx, "u1", "dentist appointment", 5)
	require.NoError(t, err, "vector outage never fails retrieval")
	require.NotEmpty(t, memories)
	assert.Contains(t, memories[0].Content, "dentist")
}

func TestGetContextualMemoriesIsolatesUsers(t *testing.T) {
	store := newFakeStore()
	client := newTestClient(t, store, newFakeVectors())
	ctx := context.Background()

	_, err := client.StoreInteraction(ctx, "alice", "my favorite color is teal", "nice")
	require.NoError(t, err)
	_, err = client.StoreInteraction(ctx, "bob", "my favorite color is mauve", "nice")
	require.NoError(t, err)

	memories, err := client.GetContextualMemories(ctx, "alice", "favorite color", 5)
	require.NoError(t, err)
	for _, m := range memories {
		assert.NotContains(t, m.Content, "mauve")
	}
}

func TestGetContextualMemoriesEmptyStore(t *testing.T) {
	client := newTestClient(t, newFakeStore(), newFakeVectors())

	memories, err := client.GetContextualMemories(context.Background(), "nobody", "anything at all", 5)
	require.NoError(t, err)
	assert.Empty(t, memories)
}

func TestPerformPeriodicConsolidationIdempotent(t *testing.T) {
	store := newFakeStore()
	client := newTestClient(t, store, newFakeVectors())
	ctx := context.Background()

	_, err := client.StoreInteraction(ctx, "u1", "urgent: don't forget the deadline tomorrow!", "I'll remind you")
	require.NoError(t, err)

	// Age the fragment past the dwell window and give it enough accesses
	// to consolidate.
	f := store.get(1)
	f.CreatedAt = f.CreatedAt.Add(-2 * time.Hour)
	f.LastAccessedAt = f.CreatedAt
	f.AccessCount = 6
	store.rows[1] = f

	first, err := client.PerformPeriodicConsolidation(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, first.Consolidated)

	second, err := client.PerformPeriodicConsolidation(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, second.Consolidated)
	assert.Equal(t, 0, second.Forgotten)
}

func TestForgottenFragmentNotRetrievable(t *testing.T) {
	store := newFakeStore()
	vectors := newFakeVectors()
	client := newTestClient(t, store, vectors)
	ctx := context.Background()

	_, err := client.StoreInteraction(ctx, "u1", "the plain weather report", "sunny")
	require.NoError(t, err)

	// Age the fragment past the forgetting window with no redeeming
	// importance or accesses.
	f := store.get(1)
	f.CreatedAt = f.CreatedAt.Add(-10 * 24 * time.Hour)
	f.LastAccessedAt = f.CreatedAt
	f.AccessCount = 0
	store.rows[1] = f

	report, err := client.PerformPeriodicConsolidation(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 1, report.Forgotten)

	// Neither the keyword path nor similarity search can resurrect it.
	memories, err := client.GetContextualMemories(ctx, "u1", "plain weather report", 5)
	require.NoError(t, err)
	assert.Empty(t, memories)
}

func TestPerformPeriodicConsolidationLeaseContended(t *testing.T) {
	store := newFakeStore()
	store.blockVolatile = make(chan struct{})
	client := newTestClient(t, store, newFakeVectors())
	ctx := context.Background()

	_, err := client.StoreInteraction(ctx, "u1", "hold the line", "ok")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = client.PerformPeriodicConsolidation(ctx, "u1")
	}()
	<-store.volatileEntered

	_, err = client.PerformPeriodicConsolidation(ctx, "u1")
	require.ErrorIs(t, err, core.ErrLeaseContended)
	var memErr *core.MemoryError
	require.ErrorAs(t, err, &memErr)
	assert.Equal(t, "PerformPeriodicConsolidation", memErr.Op)

	close(store.blockVolatile)
	<-done
}

func TestNewRejectsUnknownProviders(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.Relational.Provider = "graphdb"

	_, err := core.New(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

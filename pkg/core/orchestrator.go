package core

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jarvis-labs/neuromem-go/pkg/cognition"
	"github.com/jarvis-labs/neuromem-go/pkg/consolidation"
	"github.com/jarvis-labs/neuromem-go/pkg/embedder"
	"github.com/jarvis-labs/neuromem-go/pkg/embedder/mock"
	"github.com/jarvis-labs/neuromem-go/pkg/embedder/openai"
	"github.com/jarvis-labs/neuromem-go/pkg/emotion"
	"github.com/jarvis-labs/neuromem-go/pkg/storage"
	"github.com/jarvis-labs/neuromem-go/pkg/storage/mysql"
	"github.com/jarvis-labs/neuromem-go/pkg/storage/postgres"
	"github.com/jarvis-labs/neuromem-go/pkg/storage/sqlite"
	"github.com/jarvis-labs/neuromem-go/pkg/vecstore"
	"github.com/jarvis-labs/neuromem-go/pkg/vecstore/chromem"
	"github.com/jarvis-labs/neuromem-go/pkg/vecstore/qdrant"
)

const (
	defaultRetrievalLimit = 10

	// keywordBaseScore stands in for a similarity score on relational
	// keyword matches when they are ranked against vector hits.
	keywordBaseScore = 0.5
)

// Memory is the retrieval view of a stored fragment.
type Memory struct {
	// Content is the fragment text.
	Content string `json:"content"`

	// ImportanceScore is the current importance in [0, 1].
	ImportanceScore float64 `json:"importance_score"`

	// EmotionalContext is the emotion captured at storage time.
	EmotionalContext emotion.Context `json:"emotional_context"`

	// CreatedAt is the fragment creation time.
	CreatedAt time.Time `json:"created_at"`

	// MemoryType is the fragment's knowledge category.
	MemoryType storage.MemoryType `json:"memory_type"`
}

// EmotionAnalyzer produces an emotional context for raw text.
type EmotionAnalyzer interface {
	Analyze(text string) emotion.Context
}

// Client is the memory orchestrator. It owns the full pipeline: emotional
// analysis, importance scoring, dual-backend persistence, hybrid retrieval,
// and periodic consolidation.
//
// All methods are safe for concurrent use.
type Client struct {
	cfg *Config

	analyzer EmotionAnalyzer
	scorer   *cognition.Scorer
	planner  *cognition.Planner
	policy   *cognition.Policy
	ranker   *vecstore.Ranker

	store   storage.FragmentStore
	vectors vecstore.VectorStore
	embed   embedder.Provider

	engine *consolidation.Engine
	logger *slog.Logger
}

// New builds a client from cfg. Options may inject prebuilt backends, in
// which case the corresponding provider selection in cfg is skipped.
func New(cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, NewMemoryError("New", err)
	}

	c := &Client{
		cfg:      cfg,
		analyzer: emotion.NewAnalyzer(),
		scorer:   cognition.NewScorer(),
		planner:  cognition.NewPlanner(),
		policy:   cognition.DefaultPolicy(),
		ranker:   vecstore.NewRanker(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.store == nil {
		store, err := newFragmentStore(cfg)
		if err != nil {
			return nil, NewMemoryError("New", fmt.Errorf("%w: %v", ErrConnectionFailed, err))
		}
		c.store = store
	}
	if c.embed == nil {
		provider, err := newEmbedder(cfg)
		if err != nil {
			return nil, NewMemoryError("New", err)
		}
		c.embed = provider
	}
	if c.vectors == nil {
		vs, err := newVectorStore(cfg, c.embed)
		if err != nil {
			return nil, NewMemoryError("New", fmt.Errorf("%w: %v", ErrConnectionFailed, err))
		}
		c.vectors = vs
	}

	c.engine = consolidation.NewEngine(c.store, c.vectors, c.scorer, c.policy, c.logger)
	return c, nil
}

func newFragmentStore(cfg *Config) (storage.FragmentStore, error) {
	switch cfg.Relational.Provider {
	case RelationalSQLite:
		return sqlite.NewClient(&sqlite.Config{DBPath: cfg.Relational.DBPath})
	case RelationalPostgres:
		return postgres.NewClient(&postgres.Config{
			Host:     cfg.Relational.Host,
			Port:     cfg.Relational.Port,
			User:     cfg.Relational.User,
			Password: cfg.Relational.Password,
			DBName:   cfg.Relational.DBName,
			SSLMode:  cfg.Relational.SSLMode,
		})
	case RelationalMySQL:
		return mysql.NewClient(&mysql.Config{
			Host:     cfg.Relational.Host,
			Port:     cfg.Relational.Port,
			User:     cfg.Relational.User,
			Password: cfg.Relational.Password,
			DBName:   cfg.Relational.DBName,
		})
	default:
		return nil, fmt.Errorf("%w: relational provider %q", ErrInvalidConfig, cfg.Relational.Provider)
	}
}

func newEmbedder(cfg *Config) (embedder.Provider, error) {
	switch cfg.Embedder.Provider {
	case EmbedderOpenAI:
		return openai.NewClient(&openai.Config{
			APIKey:     cfg.Embedder.APIKey,
			Model:      cfg.Embedder.Model,
			BaseURL:    cfg.Embedder.BaseURL,
			Dimensions: cfg.Embedder.Dimensions,
		})
	case EmbedderMock:
		return mock.NewWithDimensions(cfg.Embedder.Dimensions), nil
	case "":
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: embedder provider %q", ErrInvalidConfig, cfg.Embedder.Provider)
	}
}

func newVectorStore(cfg *Config, embed embedder.Provider) (vecstore.VectorStore, error) {
	switch cfg.Vector.Provider {
	case VectorQdrant:
		size := 0
		if embed != nil {
			size = embed.Dimensions()
		}
		return qdrant.NewClient(&qdrant.Config{
			BaseURL:    cfg.Vector.BaseURL,
			APIKey:     cfg.Vector.APIKey,
			VectorSize: size,
			Timeout:    cfg.VectorTimeout,
		})
	case VectorChrome:
		if cfg.Vector.Dir != "" {
			return chromem.NewPersistent(cfg.Vector.Dir)
		}
		return chromem.New()
	case VectorNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: vector provider %q", ErrInvalidConfig, cfg.Vector.Provider)
	}
}

// StoreInteraction records one conversational turn as an episodic fragment.
//
// The relational write is the durability guarantee: it must succeed or the
// call fails with (false, error). The vector write is best-effort — any
// embedding or upsert failure is logged and the call still succeeds.
func (c *Client) StoreInteraction(ctx context.Context, userID, userMessage, assistantResponse string) (bool, error) {
	if userID == "" {
		return false, NewMemoryError("StoreInteraction", fmt.Errorf("%w: empty user id", ErrInvalidConfig))
	}

	content := fmt.Sprintf("User: %s\nAssistant: %s", userMessage, assistantResponse)
	emo := c.analyzeSafely(content)
	now := time.Now().UTC()

	f := &storage.Fragment{
		UserID:             userID,
		Content:            content,
		MemoryType:         storage.TypeEpisodic,
		Emotion:            emo,
		ConsolidationLevel: storage.LevelVolatile,
		CreatedAt:          now,
		LastAccessedAt:     now,
	}
	f.ImportanceScore = c.scorer.Score(f)

	insertCtx, cancel := context.WithTimeout(ctx, c.cfg.RelationalTimeout)
	defer cancel()
	id, err := c.store.Insert(insertCtx, f)
	if err != nil {
		return false, NewMemoryError("StoreInteraction", fmt.Errorf("%w: %v", ErrStorageOperation, err))
	}
	f.ID = id

	c.enrichVector(ctx, f)
	return true, nil
}

// analyzeSafely runs emotional analysis with a panic guard. Analysis of
// adversarial input must never take down a store call; the fallback is a
// neutral context.
func (c *Client) analyzeSafely(content string) (emo emotion.Context) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("emotion analysis panicked, using neutral context", "panic", r)
			emo = emotion.Neutral()
		}
	}()
	return c.analyzer.Analyze(content)
}

// enrichVector embeds the fragment and upserts it into its routed partition.
// Every failure is soft: logged, never returned.
func (c *Client) enrichVector(ctx context.Context, f *storage.Fragment) {
	if c.vectors == nil || c.embed == nil {
		return
	}

	embedCtx, cancel := context.WithTimeout(ctx, c.cfg.EmbedTimeout)
	vector, err := c.embed.Embed(embedCtx, f.Content)
	cancel()
	if err != nil {
		c.logger.Warn("embedding failed, fragment stored relationally only",
			"fragment_id", f.ID, "error", err)
		return
	}

	partition := vecstore.Route(f.MemoryType, emotion.Weight(f.Emotion))
	upsertCtx, cancel := context.WithTimeout(ctx, c.cfg.VectorTimeout)
	defer cancel()
	if err := c.vectors.Upsert(upsertCtx, partition, f.ID, vector, vecstore.PayloadFromFragment(f)); err != nil {
		c.logger.Warn("vector upsert failed, fragment stored relationally only",
			"fragment_id", f.ID, "partition", partition, "error", err)
	}
}

// GetContextualMemories retrieves the memories most relevant to query.
//
// Keyword and vector candidates are fetched in parallel, merged by fragment
// ID, ranked by enhanced score, and truncated to limit. Vector-backend
// failure degrades silently to keyword-only results; only a relational
// failure surfaces as an error, and even then an empty slice is returned so
// callers can degrade gracefully.
func (c *Client) GetContextualMemories(ctx context.Context, userID, query string, limit int) ([]Memory, error) {
	if limit <= 0 {
		limit = defaultRetrievalLimit
	}
	plan := c.planner.Plan(query)

	var (
		wg         sync.WaitGroup
		relational []*storage.Fragment
		relErr     error
		vectorHits []vecstore.Hit
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		relational, relErr = c.keywordCandidates(ctx, userID, plan, limit)
	}()

	if c.vectors != nil && c.embed != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			vectorHits = c.vectorCandidates(ctx, userID, query, limit)
		}()
	}
	wg.Wait()

	if relErr != nil {
		return []Memory{}, NewMemoryError("GetContextualMemories", fmt.Errorf("%w: %v", ErrStorageOperation, relErr))
	}

	ranked := c.rank(relational, vectorHits, plan)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	c.recordAccess(ctx, ranked)

	memories := make([]Memory, 0, len(ranked))
	for _, f := range ranked {
		memories = append(memories, Memory{
			Content:          f.Content,
			ImportanceScore:  f.ImportanceScore,
			EmotionalContext: f.Emotion,
			CreatedAt:        f.CreatedAt,
			MemoryType:       f.MemoryType,
		})
	}
	return memories, nil
}

// keywordCandidates runs the relational side of retrieval per the plan.
func (c *Client) keywordCandidates(ctx context.Context, userID string, plan cognition.Plan, limit int) ([]*storage.Fragment, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RelationalTimeout)
	defer cancel()

	// Fetch more than the final limit so ranking has something to choose
	// from after merging with vector hits.
	fetch := limit * 3

	if plan.OrderBy == cognition.OrderByRecency {
		since := time.Time{}
		if plan.TimeWindow > 0 {
			since = time.Now().UTC().Add(-plan.TimeWindow)
		}
		return c.store.GetRecent(ctx, userID, since, fetch)
	}

	if len(plan.Keywords) == 0 {
		return c.store.GetRecent(ctx, userID, time.Time{}, fetch)
	}

	// Union the per-keyword matches; dedup happens in rank().
	var out []*storage.Fragment
	for _, kw := range plan.Keywords {
		rows, err := c.store.SearchByKeyword(ctx, userID, kw, fetch)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

// vectorCandidates runs the similarity side of retrieval across all
// partitions. Failures are soft and yield no candidates.
func (c *Client) vectorCandidates(ctx context.Context, userID, query string, limit int) []vecstore.Hit {
	embedCtx, cancel := context.WithTimeout(ctx, c.cfg.EmbedTimeout)
	vector, err := c.embed.Embed(embedCtx, query)
	cancel()
	if err != nil {
		c.logger.Warn("query embedding failed, degrading to keyword retrieval", "error", err)
		return nil
	}

	var hits []vecstore.Hit
	filter := vecstore.Filter{UserID: userID}
	for _, partition := range vecstore.Partitions {
		queryCtx, cancel := context.WithTimeout(ctx, c.cfg.VectorTimeout)
		partHits, err := c.vectors.Query(queryCtx, partition, vector, filter, limit)
		cancel()
		if err != nil {
			c.logger.Warn("vector query failed, degrading to keyword retrieval",
				"partition", partition, "error", err)
			continue
		}
		hits = append(hits, partHits...)
	}
	return hits
}

// rank merges both candidate sets by fragment ID and orders them by
// enhanced score, best first.
func (c *Client) rank(relational []*storage.Fragment, hits []vecstore.Hit, plan cognition.Plan) []*storage.Fragment {
	type candidate struct {
		fragment *storage.Fragment
		score    float64
	}
	byID := make(map[int64]*candidate)

	for _, f := range relational {
		// Keyword matches have no similarity score; a flat moderate base
		// lets strong vector hits out-rank them and weak ones fall below.
		base := 0.0
		if f.Relevance > 0 {
			base = keywordBaseScore
		}
		meta := vecstore.FragmentMeta{
			ImportanceScore:  f.ImportanceScore,
			EmotionalValence: f.Emotion.Valence,
			CreatedAt:        f.CreatedAt,
			AccessCount:      f.AccessCount,
		}
		score := c.ranker.EnhancedScore(base, meta)
		if cur, ok := byID[f.ID]; !ok || score > cur.score {
			byID[f.ID] = &candidate{fragment: f, score: score}
		}
	}

	for i := range hits {
		h := hits[i]
		meta := vecstore.MetaFromPayload(h.Payload)
		score := c.ranker.EnhancedScore(h.BaseScore, meta)

		if cur, ok := byID[h.ID]; ok {
			// Relational copy wins on freshness of fields; keep the
			// better score.
			if score > cur.score {
				cur.score = score
			}
			continue
		}
		f := fragmentFromHit(h, meta)
		if f != nil {
			byID[h.ID] = &candidate{fragment: f, score: score}
		}
	}

	ordered := make([]*candidate, 0, len(byID))
	for _, cand := range byID {
		ordered = append(ordered, cand)
	}
	sort.Slice(ordered, func(i, j int) bool {
		// Temporal plans weigh freshness over everything else.
		if plan.OrderBy == cognition.OrderByRecency {
			ti, tj := ordered[i].fragment.CreatedAt, ordered[j].fragment.CreatedAt
			if !ti.Equal(tj) {
				return ti.After(tj)
			}
		}
		if ordered[i].score != ordered[j].score {
			return ordered[i].score > ordered[j].score
		}
		return ordered[i].fragment.ID < ordered[j].fragment.ID
	})

	out := make([]*storage.Fragment, len(ordered))
	for i, cand := range ordered {
		cand.fragment.Relevance = cand.score
		out[i] = cand.fragment
	}
	return out
}

// fragmentFromHit reconstructs a fragment view from a vector payload for
// hits that have no relational twin in the candidate set.
func fragmentFromHit(h vecstore.Hit, meta vecstore.FragmentMeta) *storage.Fragment {
	content, _ := h.Payload["content"].(string)
	if content == "" {
		return nil
	}
	memoryType, _ := h.Payload["memory_type"].(string)
	userID, _ := h.Payload["user_id"].(string)
	return &storage.Fragment{
		ID:              h.ID,
		UserID:          userID,
		Content:         content,
		MemoryType:      storage.MemoryType(memoryType),
		ImportanceScore: meta.ImportanceScore,
		Emotion:         emotion.NewContext(meta.EmotionalValence, 0, "", 0),
		CreatedAt:       meta.CreatedAt,
		AccessCount:     meta.AccessCount,
	}
}

// recordAccess bumps access counters for the returned fragments and applies
// access-triggered revival to archived ones. Both are best-effort.
func (c *Client) recordAccess(ctx context.Context, fragments []*storage.Fragment) {
	if len(fragments) == 0 {
		return
	}

	ids := make([]int64, 0, len(fragments))
	for _, f := range fragments {
		ids = append(ids, f.ID)
	}

	touchCtx, cancel := context.WithTimeout(ctx, c.cfg.RelationalTimeout)
	defer cancel()
	if err := c.store.TouchAccess(touchCtx, ids); err != nil {
		c.logger.Warn("access bookkeeping failed", "error", err)
		return
	}

	for _, f := range fragments {
		if f.ConsolidationLevel != storage.LevelArchived {
			continue
		}
		f.AccessCount++ // reflect the touch above
		if _, err := c.engine.ReviveIfEarned(touchCtx, f); err != nil {
			c.logger.Warn("archived revival failed", "fragment_id", f.ID, "error", err)
		}
	}
}

// PerformPeriodicConsolidation runs one consolidation batch for the user.
func (c *Client) PerformPeriodicConsolidation(ctx context.Context, userID string) (consolidation.Report, error) {
	report, err := c.engine.Run(ctx, userID)
	if err != nil {
		return report, NewMemoryError("PerformPeriodicConsolidation", err)
	}
	return report, nil
}

// DetectPatterns surfaces the engine's best-effort behavioral pattern scan.
func (c *Client) DetectPatterns(ctx context.Context, userID string) []consolidation.Pattern {
	return c.engine.DetectPatterns(ctx, userID)
}

// Close releases all backend resources.
func (c *Client) Close() error {
	var firstErr error
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			firstErr = err
		}
	}
	if c.vectors != nil {
		if err := c.vectors.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.embed != nil {
		if err := c.embed.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return NewMemoryError("Close", firstErr)
}

// Package consolidation implements the periodic memory maintenance pass:
// promoting fragments that earned durability, forgetting stale unimportant
// ones, detecting recurring behavioral patterns, and reviving archived
// fragments that are being accessed again.
package consolidation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jarvis-labs/neuromem-go/pkg/cognition"
	"github.com/jarvis-labs/neuromem-go/pkg/storage"
	"github.com/jarvis-labs/neuromem-go/pkg/vecstore"
)

// ErrLeaseContended is returned by Run when another run already holds the
// user's lease. Callers may retry after a backoff.
var ErrLeaseContended = errors.New("consolidation lease contended")

// leases serializes consolidation per user: at most one run per user at a
// time, runs for different users in parallel.
type leases struct {
	mu   sync.Mutex
	held map[string]bool
}

func newLeases() *leases {
	return &leases{held: make(map[string]bool)}
}

func (l *leases) tryAcquire(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[userID] {
		return false
	}
	l.held[userID] = true
	return true
}

func (l *leases) release(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, userID)
}

// Report summarizes one consolidation run.
type Report struct {
	// Processed counts fragments examined, valid or not.
	Processed int `json:"processed"`

	// Consolidated counts fragments promoted to the consolidated level.
	Consolidated int `json:"consolidated"`

	// Forgotten counts fragments hard-deleted.
	Forgotten int `json:"forgotten"`

	// SkippedCorrupt counts fragments that failed validation and were
	// left untouched.
	SkippedCorrupt int `json:"skipped_corrupt"`
}

// Engine runs maintenance batches over one store. A non-nil vector store
// lets the forget pass remove the fragment's vector point as well, so a
// forgotten fragment cannot resurface through similarity search.
type Engine struct {
	store   storage.FragmentStore
	vectors vecstore.VectorStore
	scorer  *cognition.Scorer
	policy  *cognition.Policy
	logger  *slog.Logger
	leases  *leases
}

// NewEngine wires an engine. A nil vector store skips vector cleanup; a nil
// policy gets the defaults; a nil logger writes to the default slog handler.
func NewEngine(store storage.FragmentStore, vectors vecstore.VectorStore, scorer *cognition.Scorer, policy *cognition.Policy, logger *slog.Logger) *Engine {
	if scorer == nil {
		scorer = cognition.NewScorer()
	}
	if policy == nil {
		policy = cognition.DefaultPolicy()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:   store,
		vectors: vectors,
		scorer:  scorer,
		policy:  policy,
		logger:  logger,
		leases:  newLeases(),
	}
}

// Run executes one consolidation batch for userID.
//
// Each fragment is handled independently: corrupt rows are skipped and
// counted, failed level writes or deletes are logged and do not abort the
// remainder. Only the initial fetch can fail the run.
//
// Runs are serialized per user: a second Run for the same user while one is
// in flight returns ErrLeaseContended without touching the store.
func (e *Engine) Run(ctx context.Context, userID string) (Report, error) {
	var report Report

	if !e.leases.tryAcquire(userID) {
		return report, fmt.Errorf("consolidation for %s: %w", userID, ErrLeaseContended)
	}
	defer e.leases.release(userID)

	fragments, err := e.store.GetVolatile(ctx, userID)
	if err != nil {
		return report, fmt.Errorf("fetch volatile fragments for %s: %w", userID, err)
	}

	for _, f := range fragments {
		report.Processed++

		if err := f.Validate(); err != nil {
			report.SkippedCorrupt++
			e.logger.Warn("skipping corrupt fragment",
				"fragment_id", f.ID,
				"user_id", userID,
				"error", err)
			continue
		}

		// Importance drifts as fragments age and accumulate accesses;
		// re-score before deciding its fate.
		score := e.scorer.Score(f)
		if score != f.ImportanceScore {
			if err := e.store.UpdateImportance(ctx, f.ID, score); err != nil {
				e.logger.Warn("importance update failed",
					"fragment_id", f.ID, "error", err)
			} else {
				f.ImportanceScore = score
			}
		}

		switch {
		case e.policy.ShouldForget(f):
			if err := e.store.Delete(ctx, f.ID); err != nil {
				e.logger.Warn("forget delete failed",
					"fragment_id", f.ID, "error", err)
				continue
			}
			e.dropVectorPoint(ctx, f.ID)
			report.Forgotten++

		case e.policy.ShouldConsolidate(f):
			if err := e.store.UpdateConsolidationLevel(ctx, f.ID, storage.LevelConsolidated, false); err != nil {
				e.logger.Warn("consolidation level update failed",
					"fragment_id", f.ID, "error", err)
				continue
			}
			report.Consolidated++
		}
	}

	e.logger.Info("consolidation run complete",
		"user_id", userID,
		"processed", report.Processed,
		"consolidated", report.Consolidated,
		"forgotten", report.Forgotten,
		"skipped_corrupt", report.SkippedCorrupt)

	return report, nil
}

// dropVectorPoint removes the fragment's vector point so similarity search
// cannot resurrect a forgotten memory. The partition the point was routed to
// is not recorded, so every partition is tried; failures are logged and do
// not fail the run.
func (e *Engine) dropVectorPoint(ctx context.Context, id int64) {
	if e.vectors == nil {
		return
	}
	for _, partition := range vecstore.Partitions {
		if err := e.vectors.Delete(ctx, partition, id); err != nil {
			e.logger.Warn("vector point cleanup failed",
				"fragment_id", id, "partition", string(partition), "error", err)
		}
	}
}

// ReviveIfEarned promotes an archived fragment back to the consolidated
// level when its access frequency has crossed the revival threshold. This is
// the single allowed backward level transition, so it uses a forced write.
//
// Returns true if the fragment was revived.
func (e *Engine) ReviveIfEarned(ctx context.Context, f *storage.Fragment) (bool, error) {
	if f == nil || !e.policy.ShouldRevive(f) {
		return false, nil
	}
	if err := e.store.UpdateConsolidationLevel(ctx, f.ID, storage.LevelConsolidated, true); err != nil {
		return false, fmt.Errorf("revive fragment %d: %w", f.ID, err)
	}
	e.logger.Info("revived archived fragment",
		"fragment_id", f.ID,
		"user_id", f.UserID,
		"access_count", f.AccessCount)
	return true, nil
}

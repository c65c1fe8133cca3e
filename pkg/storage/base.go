// Package storage defines the relational persistence layer for memory fragments.
//
// It declares the FragmentStore interface that all relational backends must
// satisfy (SQLite, PostgreSQL, MySQL), along with the Fragment entity and its
// lifecycle enums. The relational store is the durability guarantee of the
// system; vector persistence is best-effort and lives in pkg/vecstore.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jarvis-labs/neuromem-go/pkg/emotion"
)

// ErrNotFound reports that no fragment matched a lookup. Backends wrap it so
// callers can test with errors.Is regardless of the driver in use.
var ErrNotFound = errors.New("fragment not found")

// MemoryType categorizes what kind of knowledge a fragment holds.
type MemoryType string

const (
	// TypeWorking is transient task-scoped memory.
	TypeWorking MemoryType = "working"

	// TypeEpisodic is memory of a specific event or conversation turn.
	TypeEpisodic MemoryType = "episodic"

	// TypeSemantic is general factual knowledge about the user or world.
	TypeSemantic MemoryType = "semantic"

	// TypeProcedural is how-to knowledge and learned routines.
	TypeProcedural MemoryType = "procedural"
)

// Valid reports whether t is one of the declared memory types.
func (t MemoryType) Valid() bool {
	switch t {
	case TypeWorking, TypeEpisodic, TypeSemantic, TypeProcedural:
		return true
	}
	return false
}

// ConsolidationLevel is the retention tier of a fragment.
//
// Levels only advance forward, or the fragment is terminated by deletion.
// The single allowed backward transition is access-triggered revival of an
// archived fragment back to consolidated.
type ConsolidationLevel string

const (
	// LevelVolatile is the tier assigned at creation; volatile fragments are
	// the input of every consolidation run and the only forgetting candidates.
	LevelVolatile ConsolidationLevel = "volatile"

	// LevelConsolidating is a transient two-phase-write state. The engine
	// accepts it as input but never leaves a fragment parked there.
	LevelConsolidating ConsolidationLevel = "consolidating"

	// LevelConsolidated is the durable long-term tier.
	LevelConsolidated ConsolidationLevel = "consolidated"

	// LevelArchived is the retained low-priority tier.
	LevelArchived ConsolidationLevel = "archived"
)

// Rank orders levels for forward-only transition checks.
// Unknown levels rank negative so they are caught by validation.
func (l ConsolidationLevel) Rank() int {
	switch l {
	case LevelVolatile:
		return 0
	case LevelConsolidating:
		return 1
	case LevelConsolidated:
		return 2
	case LevelArchived:
		return 3
	}
	return -1
}

// Valid reports whether l is one of the declared levels.
func (l ConsolidationLevel) Valid() bool {
	return l.Rank() >= 0
}

// Fragment is a single stored memory unit derived from one conversational turn.
//
// Identity is assigned by the relational store at insert time. One fragment
// belongs to exactly one user. The orchestrator is the creating writer; the
// consolidation engine owns level transitions; read paths only bump access
// bookkeeping.
type Fragment struct {
	// ID is the store-assigned identifier (0 until inserted).
	ID int64

	// UserID is the owner of the fragment.
	UserID string

	// Content is the stored turn transcript.
	Content string

	// MemoryType categorizes the fragment.
	MemoryType MemoryType

	// Emotion is the emotional context captured at creation.
	Emotion emotion.Context

	// ImportanceScore is the retention priority in [0, 1].
	ImportanceScore float64

	// ConsolidationLevel is the current retention tier.
	ConsolidationLevel ConsolidationLevel

	// CreatedAt is when the fragment was stored.
	CreatedAt time.Time

	// LastAccessedAt is when the fragment was last returned by a read path.
	// Always >= CreatedAt for a valid fragment.
	LastAccessedAt time.Time

	// AccessCount is how many times read paths returned this fragment.
	// Monotonically non-decreasing while the fragment exists.
	AccessCount uint64

	// Relevance is the keyword-match relevance from search operations.
	// Not persisted; populated by SearchByKeyword.
	Relevance float64
}

// Validate checks the fragment's declared invariants.
//
// It exists so batch code can skip corrupt rows instead of crashing: any
// violation returns a descriptive error and the caller counts the fragment
// as skipped.
func (f *Fragment) Validate() error {
	if f.UserID == "" {
		return fmt.Errorf("fragment %d: empty user id", f.ID)
	}
	if !f.MemoryType.Valid() {
		return fmt.Errorf("fragment %d: unknown memory type %q", f.ID, f.MemoryType)
	}
	if !f.ConsolidationLevel.Valid() {
		return fmt.Errorf("fragment %d: unknown consolidation level %q", f.ID, f.ConsolidationLevel)
	}
	if f.ImportanceScore < 0 || f.ImportanceScore > 1 {
		return fmt.Errorf("fragment %d: importance %f out of range", f.ID, f.ImportanceScore)
	}
	if f.Emotion.Valence < -1 || f.Emotion.Valence > 1 {
		return fmt.Errorf("fragment %d: valence %f out of range", f.ID, f.Emotion.Valence)
	}
	if f.Emotion.Arousal < 0 || f.Emotion.Arousal > 1 {
		return fmt.Errorf("fragment %d: arousal %f out of range", f.ID, f.Emotion.Arousal)
	}
	if f.Emotion.Confidence < 0 || f.Emotion.Confidence > 1 {
		return fmt.Errorf("fragment %d: confidence %f out of range", f.ID, f.Emotion.Confidence)
	}
	if f.CreatedAt.IsZero() {
		return fmt.Errorf("fragment %d: zero creation time", f.ID)
	}
	if f.LastAccessedAt.Before(f.CreatedAt) {
		return fmt.Errorf("fragment %d: accessed before created", f.ID)
	}
	return nil
}

// Age returns how long the fragment has existed relative to now.
func (f *Fragment) Age(now time.Time) time.Duration {
	return now.Sub(f.CreatedAt)
}

// FragmentStore defines the relational storage contract.
//
// All backends must make Delete idempotent (deleting a missing row succeeds)
// and TouchAccess atomic in-database, so concurrent reads can never decrease
// an access counter.
type FragmentStore interface {
	// Insert persists a new fragment and returns its assigned ID.
	Insert(ctx context.Context, f *Fragment) (int64, error)

	// Get retrieves a fragment by ID, scoped to its owner.
	Get(ctx context.Context, userID string, id int64) (*Fragment, error)

	// GetVolatile returns the user's fragments at the volatile or
	// consolidating level, the working set of a consolidation run.
	GetVolatile(ctx context.Context, userID string) ([]*Fragment, error)

	// GetRecent returns the user's fragments created after since, newest
	// first, capped at limit. Used by pattern detection.
	GetRecent(ctx context.Context, userID string, since time.Time, limit int) ([]*Fragment, error)

	// UpdateConsolidationLevel moves a fragment to level. When force is
	// false the write is forward-only: backends refuse to move a fragment
	// to a lower-ranked level. Access-triggered revival passes force=true.
	UpdateConsolidationLevel(ctx context.Context, id int64, level ConsolidationLevel, force bool) error

	// UpdateImportance persists a recomputed importance score.
	UpdateImportance(ctx context.Context, id int64, score float64) error

	// Delete removes a fragment. Deleting an absent ID is not an error.
	Delete(ctx context.Context, id int64) error

	// SearchByKeyword returns fragments whose content matches text, ordered
	// by importance then recency of access.
	SearchByKeyword(ctx context.Context, userID, text string, limit int) ([]*Fragment, error)

	// TouchAccess bumps access_count and last_accessed_at for ids using an
	// in-database increment.
	TouchAccess(ctx context.Context, ids []int64) error

	// ListUsers returns the distinct owners present in the store, for the
	// consolidation scheduler.
	ListUsers(ctx context.Context) ([]string, error)

	// Close releases the backend's resources.
	Close() error
}

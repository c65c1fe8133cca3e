package cognition

import (
	"time"

	"github.com/jarvis-labs/neuromem-go/pkg/storage"
)

// Policy holds the thresholds that drive consolidation, forgetting, and
// access-triggered revival decisions.
//
// A fragment consolidates once it has dwelled long enough and is either
// important or repeatedly accessed. A fragment is forgotten once it has aged
// past the forgetting window while staying unimportant and unaccessed.
// Revival is the single allowed backward transition: an archived fragment
// whose access count crosses the revival threshold moves back to the
// consolidated tier.
type Policy struct {
	// MinDwell is the minimum age before a fragment may consolidate.
	MinDwell time.Duration

	// ConsolidateImportance is the importance threshold for consolidation.
	ConsolidateImportance float64

	// ConsolidateAccess is the access-count threshold for consolidation.
	ConsolidateAccess uint64

	// ForgetAfter is the minimum age before a fragment may be forgotten.
	ForgetAfter time.Duration

	// ForgetImportance is the importance ceiling for forgetting.
	ForgetImportance float64

	// ForgetAccess is the access-count ceiling for forgetting.
	ForgetAccess uint64

	// ReviveAccess is the access-count threshold for reviving an archived
	// fragment. Deliberately high so revival stays rare.
	ReviveAccess uint64

	// now is the clock, swappable in tests.
	now func() time.Time
}

// DefaultPolicy returns the standard thresholds:
// consolidate after 30 minutes at importance >= 0.7 or 5 accesses;
// forget after 7 days below importance 0.3 with at most one access;
// revive an archived fragment at 10 accesses.
func DefaultPolicy() *Policy {
	return &Policy{
		MinDwell:              30 * time.Minute,
		ConsolidateImportance: 0.7,
		ConsolidateAccess:     5,
		ForgetAfter:           7 * 24 * time.Hour,
		ForgetImportance:      0.3,
		ForgetAccess:          1,
		ReviveAccess:          10,
		now:                   time.Now,
	}
}

// WithClock returns a copy of the policy using the given clock.
// Intended for tests that need deterministic ages.
func (p *Policy) WithClock(now func() time.Time) *Policy {
	cp := *p
	cp.now = now
	return &cp
}

// Now returns the policy's current time. Batch passes that need a time
// reference use the same clock the thresholds are evaluated against.
func (p *Policy) Now() time.Time {
	return p.clock()()
}

// ShouldConsolidate reports whether the fragment has earned promotion to the
// consolidated tier.
func (p *Policy) ShouldConsolidate(f *storage.Fragment) bool {
	if f == nil {
		return false
	}
	if f.Age(p.clock()()) < p.MinDwell {
		return false
	}
	return f.ImportanceScore >= p.ConsolidateImportance || f.AccessCount >= p.ConsolidateAccess
}

// ShouldForget reports whether the fragment is an aged, unimportant,
// rarely-accessed forgetting candidate.
func (p *Policy) ShouldForget(f *storage.Fragment) bool {
	if f == nil {
		return false
	}
	if f.Age(p.clock()()) < p.ForgetAfter {
		return false
	}
	return f.ImportanceScore < p.ForgetImportance && f.AccessCount <= p.ForgetAccess
}

// ShouldRevive reports whether an archived fragment has been accessed often
// enough to return to the consolidated tier.
func (p *Policy) ShouldRevive(f *storage.Fragment) bool {
	if f == nil || f.ConsolidationLevel != storage.LevelArchived {
		return false
	}
	return f.AccessCount >= p.ReviveAccess
}

func (p *Policy) clock() func() time.Time {
	if p.now == nil {
		return time.Now
	}
	return p.now
}

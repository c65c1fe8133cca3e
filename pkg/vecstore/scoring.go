package vecstore

import (
	"math"
	"time"
)

// FragmentMeta is the stored metadata the ranker scores against. It is a
// plain value extracted from a payload; scoring never touches the network or
// a database.
type FragmentMeta struct {
	// ImportanceScore is the fragment's retention priority in [0, 1].
	ImportanceScore float64

	// EmotionalValence is the fragment's valence in [-1, 1]; the boost uses
	// its magnitude, not its sign.
	EmotionalValence float64

	// CreatedAt is when the fragment was stored.
	CreatedAt time.Time

	// AccessCount is how often read paths returned the fragment.
	AccessCount uint64
}

// Boost ceilings for each criterion. Their sum bounds how far a ranked score
// can rise above the raw similarity.
const (
	importanceBoostMax = 0.20
	emotionalBoostMax  = 0.10
	recencyBoostMax    = 0.15
	frequencyBoostMax  = 0.05
)

// Ranker computes enhanced retrieval scores from raw similarity plus stored
// fragment metadata.
//
// The enhancement is monotonic: raising importance, |valence|, or access
// count while holding everything else fixed never lowers the result, and the
// result is never below the (clamped) base similarity.
type Ranker struct {
	// decayRate controls how fast the recency boost fades with age.
	decayRate float64

	// now is the clock, swappable in tests.
	now func() time.Time
}

// NewRanker creates a ranker with the default recency decay rate.
func NewRanker() *Ranker {
	return &Ranker{decayRate: 0.1, now: time.Now}
}

// WithClock returns a copy of the ranker using the given clock.
func (r *Ranker) WithClock(now func() time.Time) *Ranker {
	cp := *r
	cp.now = now
	return &cp
}

// EnhancedScore ranks a hit by combining its raw similarity with importance,
// emotional, recency, and frequency boosts. The result is clamped to [0, 1].
func (r *Ranker) EnhancedScore(base float64, meta FragmentMeta) float64 {
	score := clamp01(base)

	score += importanceBoostMax * clamp01(meta.ImportanceScore)
	score += emotionalBoostMax * clamp01(math.Abs(meta.EmotionalValence))
	score += recencyBoostMax * r.recency(meta.CreatedAt)
	score += frequencyBoostMax * frequency(meta.AccessCount)

	return clamp01(score)
}

// recency decays exponentially with fragment age: 1.0 for a fragment created
// now, asymptotically zero for old fragments. A zero CreatedAt (missing
// metadata) earns no boost.
func (r *Ranker) recency(createdAt time.Time) float64 {
	if createdAt.IsZero() {
		return 0
	}
	hours := r.now().Sub(createdAt).Hours()
	if hours < 0 {
		hours = 0
	}
	return math.Exp(-r.decayRate * hours / 24.0)
}

// frequency saturates with diminishing returns; ten accesses reach the cap.
func frequency(accessCount uint64) float64 {
	return math.Min(1, math.Log1p(float64(accessCount))/math.Log1p(10))
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

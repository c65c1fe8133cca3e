// Package cognition scores memory fragments and plans their retrieval.
//
// It provides importance evaluation (how much a fragment deserves long-term
// retention), the consolidation/forgetting/revival policy, and a retrieval
// planner that picks an ordering strategy from query cues. Everything here is
// pure CPU-bound heuristics: no I/O, no errors, deterministic for identical
// input and a fixed clock.
package cognition

import (
	"math"
	"strings"
	"time"

	"github.com/jarvis-labs/neuromem-go/pkg/emotion"
	"github.com/jarvis-labs/neuromem-go/pkg/storage"
)

// maxScoreRunes caps how much content the scorer inspects, so adversarial or
// extremely long input cannot blow up scoring time.
const maxScoreRunes = 4096

// urgencyCues are lexical markers of temporal commitment or priority in
// fragment content. Each distinct cue found counts one hit. Single-word cues
// match whole tokens only, so "due" never fires on "residue".
var urgencyCues = []string{
	"urgent", "asap", "immediately", "critical", "important",
	"deadline", "due", "appointment", "meeting", "schedule",
	"tomorrow", "tonight", "next week", "on monday", "on friday",
	"remember", "reminder", "don't forget", "dont forget", "make sure",
	"must", "need to", "have to",
}

// Scorer evaluates the importance of memory fragments.
//
// The score is a weighted combination of the fragment's emotional weight,
// urgency cues in its content, recency, and historical access frequency.
// It is bounded to [0, 1] regardless of pathological input.
//
// Example usage:
//
//	scorer := cognition.NewScorer()
//	score := scorer.Score(fragment)
type Scorer struct {
	// emotionWeight, urgencyWeight, recencyWeight, frequencyWeight are the
	// shares of each criterion; they sum to 1.
	emotionWeight   float64
	urgencyWeight   float64
	recencyWeight   float64
	frequencyWeight float64

	// decayRate controls how fast the recency boost fades, in the same
	// exponential shape used for retrieval score decay.
	decayRate float64

	// now is the clock, swappable in tests.
	now func() time.Time
}

// NewScorer creates a scorer with the default criterion weights:
// emotion 0.40, urgency 0.35, recency 0.10, access frequency 0.15.
func NewScorer() *Scorer {
	return &Scorer{
		emotionWeight:   0.40,
		urgencyWeight:   0.35,
		recencyWeight:   0.10,
		frequencyWeight: 0.15,
		decayRate:       0.1,
		now:             time.Now,
	}
}

// WithClock returns a copy of the scorer using the given clock.
// Intended for tests that need deterministic recency.
func (s *Scorer) WithClock(now func() time.Time) *Scorer {
	cp := *s
	cp.now = now
	return &cp
}

// Score evaluates the importance of a fragment.
//
// The result is deterministic for identical input at a fixed time and always
// within [0, 1]. Content is normalized and size-capped before any lexical
// matching.
func (s *Scorer) Score(f *storage.Fragment) float64 {
	if f == nil {
		return 0
	}

	score := s.emotionWeight * emotion.Weight(f.Emotion)
	score += s.urgencyWeight * urgency(f.Content)
	score += s.recencyWeight * s.recency(f.CreatedAt)
	score += s.frequencyWeight * frequency(f.AccessCount)

	return clamp01(score)
}

// urgency counts distinct urgency cues in the normalized content and
// saturates at three hits. Multi-word cues match as substrings; single
// words only as whole tokens.
func urgency(content string) float64 {
	content = normalize(content)
	if content == "" {
		return 0
	}

	tokens := make(map[string]bool)
	for _, tok := range strings.Fields(content) {
		tokens[strings.Trim(tok, ".,;:!?'\"()")] = true
	}

	hits := 0
	for _, cue := range urgencyCues {
		if strings.ContainsRune(cue, ' ') {
			if strings.Contains(content, cue) {
				hits++
			}
		} else if tokens[cue] {
			hits++
		}
	}
	return math.Min(1, float64(hits)/3)
}

// recency is an exponential decay over fragment age: 1.0 at creation,
// approaching 0 for old fragments.
func (s *Scorer) recency(createdAt time.Time) float64 {
	if createdAt.IsZero() {
		return 0
	}
	hours := s.now().Sub(createdAt).Hours()
	if hours < 0 {
		hours = 0
	}
	return math.Exp(-s.decayRate * hours / 24.0)
}

// frequency rewards repeated access with diminishing returns; ten accesses
// already saturate the boost.
func frequency(accessCount uint64) float64 {
	return math.Min(1, math.Log1p(float64(accessCount))/math.Log1p(10))
}

// normalize lowercases, collapses whitespace, and caps the inspected window.
func normalize(content string) string {
	if content == "" {
		return ""
	}
	runes := 0
	cut := len(content)
	for i := range content {
		runes++
		if runes > maxScoreRunes {
			cut = i
			break
		}
	}
	return strings.Join(strings.Fields(strings.ToLower(content[:cut])), " ")
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

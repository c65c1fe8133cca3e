package consolidation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"
)

const (
	// patternLookback bounds how far DetectPatterns reaches into history.
	patternLookbackDays = 30

	// patternMinFrequency is the occurrence floor for emitting a pattern.
	patternMinFrequency = 3

	// patternFetchLimit caps the rows one detection pass examines.
	patternFetchLimit = 2000
)

// Pattern is a recurring behavioral signal derived from fragment history,
// e.g. the same topic coming up around the same hour of day.
type Pattern struct {
	// PatternType identifies the recurring content, keyed by its dominant
	// terms and hour bucket.
	PatternType string `json:"pattern_type"`

	// Frequency is the number of matching occurrences in the lookback.
	Frequency int `json:"frequency"`

	// Confidence grows with frequency and saturates below 1.
	Confidence float64 `json:"confidence"`
}

// DetectPatterns scans recent history for content that recurs at similar
// times of day. It is best-effort: storage errors are logged and produce an
// empty result, never an error.
func (e *Engine) DetectPatterns(ctx context.Context, userID string) []Pattern {
	since := e.policy.Now().AddDate(0, 0, -patternLookbackDays)
	fragments, err := e.store.GetRecent(ctx, userID, since, patternFetchLimit)
	if err != nil {
		e.logger.Warn("pattern detection fetch failed",
			"user_id", userID, "error", err)
		return nil
	}

	counts := make(map[string]int)
	for _, f := range fragments {
		key := patternKey(f.Content, f.CreatedAt.Hour())
		if key == "" {
			continue
		}
		counts[key]++
	}

	var patterns []Pattern
	for key, n := range counts {
		if n < patternMinFrequency {
			continue
		}
		patterns = append(patterns, Pattern{
			PatternType: key,
			Frequency:   n,
			Confidence:  patternConfidence(n),
		})
	}

	sort.Slice(patterns, func(i, j int) bool {
		if patterns[i].Frequency != patterns[j].Frequency {
			return patterns[i].Frequency > patterns[j].Frequency
		}
		return patterns[i].PatternType < patterns[j].PatternType
	})
	return patterns
}

// patternKey reduces content to its three leading significant terms plus an
// hour-of-day bucket, so "coffee at 8am" interactions collapse together.
func patternKey(content string, hour int) string {
	var terms []string
	for _, tok := range strings.Fields(strings.ToLower(content)) {
		tok = strings.TrimFunc(tok, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if len(tok) < 4 {
			continue
		}
		terms = append(terms, tok)
		if len(terms) == 3 {
			break
		}
	}
	if len(terms) == 0 {
		return ""
	}
	return fmt.Sprintf("%s@h%02d", strings.Join(terms, "+"), hour)
}

// patternConfidence maps a frequency to (0,1): 3 occurrences start at 0.5
// and each extra occurrence closes half the remaining gap toward 0.95.
func patternConfidence(frequency int) float64 {
	confidence := 0.5
	for i := patternMinFrequency; i < frequency; i++ {
		confidence += (0.95 - confidence) / 2
	}
	return confidence
}

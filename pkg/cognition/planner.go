package cognition

import (
	"strings"
	"time"
	"unicode"
)

// OrderBy is the ordering key of a retrieval plan.
type OrderBy string

const (
	// OrderByRecency orders candidates newest first.
	OrderByRecency OrderBy = "recency"

	// OrderByImportance orders candidates by importance score.
	OrderByImportance OrderBy = "importance"
)

// Plan is a small structured retrieval strategy. It carries an ordering key
// and optional filters; actual fetching is delegated to the storage adapters.
type Plan struct {
	// OrderBy is the primary ordering key.
	OrderBy OrderBy

	// TimeWindow restricts candidates to fragments created within the
	// window, when positive. Zero means no time filter.
	TimeWindow time.Duration

	// Keywords are the significant query terms for relational search.
	Keywords []string
}

// temporalCues bias the plan toward recency ordering, each with the time
// window it implies.
var temporalCues = []struct {
	cue    string
	window time.Duration
}{
	{"this morning", 24 * time.Hour},
	{"tonight", 24 * time.Hour},
	{"today", 24 * time.Hour},
	{"yesterday", 48 * time.Hour},
	{"last night", 48 * time.Hour},
	{"this week", 7 * 24 * time.Hour},
	{"last week", 14 * 24 * time.Hour},
	{"recently", 7 * 24 * time.Hour},
	{"last time", 30 * 24 * time.Hour},
	{"earlier", 7 * 24 * time.Hour},
	{" ago", 30 * 24 * time.Hour},
	{"when did", 0},
	{"when was", 0},
}

// profileCues mark open-ended "what do you know about me" style queries that
// bias toward importance ordering.
var profileCues = []string{
	"what do you know",
	"about me",
	"tell me about",
	"my preferences",
	"who am i",
	"remember about",
	"what have i",
}

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"is": true, "are": true, "was": true, "were": true, "be": true,
	"to": true, "of": true, "in": true, "on": true, "at": true,
	"for": true, "with": true, "about": true, "did": true, "do": true,
	"does": true, "how": true, "what": true, "when": true, "where": true,
	"who": true, "why": true, "you": true, "your": true, "my": true,
	"me": true, "i": true, "it": true, "this": true, "that": true,
	"know": true, "tell": true, "go": true, "get": true, "have": true,
}

// Planner chooses a retrieval strategy from query cues.
type Planner struct{}

// NewPlanner creates a retrieval planner.
func NewPlanner() *Planner {
	return &Planner{}
}

// Plan inspects the query and returns a retrieval strategy.
//
// Explicit time references bias toward temporal-recency ordering with an
// implied lookback window; open-ended profile queries bias toward
// importance-weighted ordering, which is also the default.
func (p *Planner) Plan(query string) Plan {
	normalized := normalize(query)

	plan := Plan{
		OrderBy:  OrderByImportance,
		Keywords: keywords(normalized),
	}

	for _, cue := range profileCues {
		if strings.Contains(normalized, cue) {
			return plan
		}
	}

	for _, tc := range temporalCues {
		if strings.Contains(normalized, tc.cue) {
			plan.OrderBy = OrderByRecency
			plan.TimeWindow = tc.window
			return plan
		}
	}

	return plan
}

// keywords extracts the significant terms of a normalized query.
func keywords(normalized string) []string {
	if normalized == "" {
		return nil
	}

	var out []string
	for _, tok := range strings.FieldsFunc(normalized, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		if len(tok) < 3 || stopwords[tok] {
			continue
		}
		out = append(out, tok)
	}
	return out
}

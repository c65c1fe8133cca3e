package cognition_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jarvis-labs/neuromem-go/pkg/cognition"
)

func TestPlanTemporalQuery(t *testing.T) {
	planner := cognition.NewPlanner()

	plan := planner.Plan("What happened yesterday?")

	assert.Equal(t, cognition.OrderByRecency, plan.OrderBy)
	assert.Equal(t, 48*time.Hour, plan.TimeWindow)
}

func TestPlanProfileQuery(t *testing.T) {
	planner := cognition.NewPlanner()

	plan := planner.Plan("What do you know about me?")

	assert.Equal(t, cognition.OrderByImportance, plan.OrderBy)
	assert.Zero(t, plan.TimeWindow)
}

func TestPlanDefaultsToImportance(t *testing.T) {
	planner := cognition.NewPlanner()

	plan := planner.Plan("how did the launch go?")

	assert.Equal(t, cognition.OrderByImportance, plan.OrderBy)
	assert.Contains(t, plan.Keywords, "launch")
}

func TestPlanKeywordsDropStopwords(t *testing.T) {
	planner := cognition.NewPlanner()

	plan := planner.Plan("tell me when is the next dentist appointment")

	assert.Contains(t, plan.Keywords, "dentist")
	assert.Contains(t, plan.Keywords, "appointment")
	assert.NotContains(t, plan.Keywords, "the")
	assert.NotContains(t, plan.Keywords, "is")
}

func TestPlanEmptyQuery(t *testing.T) {
	planner := cognition.NewPlanner()

	plan := planner.Plan("")

	assert.Equal(t, cognition.OrderByImportance, plan.OrderBy)
	assert.Empty(t, plan.Keywords)
}

func TestPlanRecencyWindows(t *testing.T) {
	planner := cognition.NewPlanner()

	tests := []struct {
		query  string
		window time.Duration
	}{
		{"what did we discuss today", 24 * time.Hour},
		{"remind me what happened last week", 14 * 24 * time.Hour},
		{"what did I say recently", 7 * 24 * time.Hour},
	}

	for _, tt := range tests {
		plan := planner.Plan(tt.query)
		assert.Equal(t, cognition.OrderByRecency, plan.OrderBy, "query: %s", tt.query)
		assert.Equal(t, tt.window, plan.TimeWindow, "query: %s", tt.query)
	}
}

package cognition_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jarvis-labs/neuromem-go/pkg/cognition"
	"github.com/jarvis-labs/neuromem-go/pkg/emotion"
	"github.com/jarvis-labs/neuromem-go/pkg/storage"
)

func newFragment(content string, ctx emotion.Context, age time.Duration, access uint64) *storage.Fragment {
	created := time.Now().Add(-age)
	return &storage.Fragment{
		UserID:             "u1",
		Content:            content,
		MemoryType:         storage.TypeEpisodic,
		Emotion:            ctx,
		ConsolidationLevel: storage.LevelVolatile,
		CreatedAt:          created,
		LastAccessedAt:     created,
		AccessCount:        access,
	}
}

func TestScoreUrgentContent(t *testing.T) {
	scorer := cognition.NewScorer()

	urgent := newFragment(
		"Urgent doctor appointment tomorrow at 2pm, don't forget",
		emotion.NewContext(0.2, 0.8, emotion.EmotionAnxiety, 0.9),
		0, 0,
	)

	score := scorer.Score(urgent)
	assert.Greater(t, score, 0.6, "urgent committed content should score high")
	assert.LessOrEqual(t, score, 1.0)
}

func TestScoreRoutineContent(t *testing.T) {
	scorer := cognition.NewScorer()

	routine := newFragment(
		"It is sunny outside",
		emotion.NewContext(0.1, 0.2, emotion.EmotionNeutral, 0.6),
		0, 0,
	)

	score := scorer.Score(routine)
	assert.Less(t, score, 0.4, "routine chatter should score low")
	assert.GreaterOrEqual(t, score, 0.0)
}

func TestScoreEmotionalBoost(t *testing.T) {
	scorer := cognition.NewScorer()

	thrilled := newFragment("the launch went well",
		emotion.NewContext(0.85, 0.5, emotion.EmotionJoy, 0.7), 0, 0)
	flat := newFragment("the launch went well",
		emotion.NewContext(0.0, 0.1, emotion.EmotionNeutral, 0.3), 0, 0)

	assert.Greater(t, scorer.Score(thrilled), scorer.Score(flat))
}

func TestScoreAccessFrequencyDiminishingReturns(t *testing.T) {
	scorer := cognition.NewScorer()

	base := newFragment("a note", emotion.Neutral(), time.Hour, 0)
	few := newFragment("a note", emotion.Neutral(), time.Hour, 3)
	many := newFragment("a note", emotion.Neutral(), time.Hour, 30)

	s0 := scorer.Score(base)
	s3 := scorer.Score(few)
	s30 := scorer.Score(many)

	assert.Greater(t, s3, s0, "repeated access should raise importance")
	assert.GreaterOrEqual(t, s30, s3)
	assert.Less(t, s30-s3, s3-s0, "returns should diminish")
}

func TestUrgencyCueTokenBoundaries(t *testing.T) {
	scorer := cognition.NewScorer()

	trailing := newFragment("the electricity bill is due", emotion.Neutral(), time.Hour, 0)
	punctuated := newFragment("the rent is due.", emotion.Neutral(), time.Hour, 0)
	embedded := newFragment("wiped the residue off the mustard jar", emotion.Neutral(), time.Hour, 0)

	assert.Greater(t, scorer.Score(trailing), scorer.Score(embedded),
		"a cue at the end of content counts")
	assert.Greater(t, scorer.Score(punctuated), scorer.Score(embedded),
		"trailing punctuation does not hide a cue")
}

func TestScoreBoundedForPathologicalInput(t *testing.T) {
	scorer := cognition.NewScorer()

	inputs := []*storage.Fragment{
		nil,
		newFragment("", emotion.Neutral(), 0, 0),
		newFragment(strings.Repeat("urgent deadline tomorrow ", 100000), emotion.NewContext(1, 1, emotion.EmotionJoy, 1), 0, ^uint64(0)),
		newFragment(strings.Repeat("\x00\xff", 1<<18), emotion.Neutral(), 0, 0),
		{UserID: "u1", Content: "x", Emotion: emotion.Context{Valence: 99, Arousal: -5, Confidence: 42}},
	}

	for _, f := range inputs {
		score := scorer.Score(f)
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 1.0)
	}
}

func TestScoreDeterministic(t *testing.T) {
	scorer := cognition.NewScorer()
	f := newFragment("remember the deadline tomorrow", emotion.NewContext(0.4, 0.5, emotion.EmotionEnthusiasm, 0.8), time.Hour, 2)

	first := scorer.Score(f)
	second := scorer.Score(f)

	assert.InDelta(t, first, second, 1e-6)
}

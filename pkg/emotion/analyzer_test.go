package emotion_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jarvis-labs/neuromem-go/pkg/emotion"
)

func TestAnalyzePositiveText(t *testing.T) {
	a := emotion.NewAnalyzer()

	ctx := a.Analyze("I love this, it's excellent and wonderful")

	assert.Greater(t, ctx.Valence, 0.5, "strongly positive text should score above 0.5")
	assert.Greater(t, ctx.Arousal, 0.3, "lexicon-laden text should carry intensity")
	assert.Contains(t, []string{
		emotion.EmotionJoy, emotion.EmotionEnthusiasm, emotion.EmotionSatisfaction,
	}, ctx.DetectedEmotion)
	assert.GreaterOrEqual(t, ctx.Confidence, 0.0)
	assert.LessOrEqual(t, ctx.Confidence, 1.0)
}

func TestAnalyzeNegativeText(t *testing.T) {
	a := emotion.NewAnalyzer()

	ctx := a.Analyze("I hate this horrible problem! It's awful and frustrating.")

	assert.Less(t, ctx.Valence, -0.3, "strongly negative text should score below -0.3")
	assert.Greater(t, ctx.Arousal, 0.4)
	assert.Contains(t, []string{
		emotion.EmotionAnger, emotion.EmotionFrustration, emotion.EmotionSadness,
	}, ctx.DetectedEmotion)
	assert.Greater(t, ctx.Confidence, 0.5)
}

func TestAnalyzeNeutralText(t *testing.T) {
	a := emotion.NewAnalyzer()

	ctx := a.Analyze("Here is some factual information about the system.")

	assert.GreaterOrEqual(t, ctx.Valence, -0.3)
	assert.LessOrEqual(t, ctx.Valence, 0.3)
	assert.Less(t, ctx.Arousal, 0.5)
	assert.Equal(t, emotion.EmotionNeutral, ctx.DetectedEmotion)
	assert.LessOrEqual(t, ctx.Confidence, 0.6, "match-free text must stay low confidence")
}

func TestAnalyzeIsTotal(t *testing.T) {
	a := emotion.NewAnalyzer()

	inputs := []string{
		"",
		"    \t\n  ",
		"!!!???...",
		"\x00\xff\xfe garbled \x80 bytes",
		"日本語のテキストです。感情分析のテスト。",
		strings.Repeat("wonderful terrible ", 50000), // well past the analysis window
		strings.Repeat("a", 1<<20),
	}

	for _, input := range inputs {
		ctx := a.Analyze(input)

		assert.GreaterOrEqual(t, ctx.Valence, -1.0)
		assert.LessOrEqual(t, ctx.Valence, 1.0)
		assert.GreaterOrEqual(t, ctx.Arousal, 0.0)
		assert.LessOrEqual(t, ctx.Arousal, 1.0)
		assert.GreaterOrEqual(t, ctx.Confidence, 0.0)
		assert.LessOrEqual(t, ctx.Confidence, 1.0)
		assert.NotEmpty(t, ctx.DetectedEmotion)
	}
}

func TestAnalyzeEmphasisRaisesArousal(t *testing.T) {
	a := emotion.NewAnalyzer()

	calm := a.Analyze("the launch was good")
	loud := a.Analyze("the launch was GOOD!!! AMAZING!")

	assert.Greater(t, loud.Arousal, calm.Arousal)
}

func TestWeightOrdersByStrength(t *testing.T) {
	strong := emotion.NewContext(0.8, 0.9, emotion.EmotionJoy, 0.9)
	weak := emotion.NewContext(0.1, 0.2, emotion.EmotionNeutral, 0.6)

	w1 := emotion.Weight(strong)
	w2 := emotion.Weight(weak)

	assert.Greater(t, w1, w2, "strong confident emotion must outweigh weak neutral")
	assert.GreaterOrEqual(t, w1, 0.0)
	assert.LessOrEqual(t, w1, 1.0)
	assert.GreaterOrEqual(t, w2, 0.0)
	assert.LessOrEqual(t, w2, 1.0)
}

func TestWeightPolarityIndependent(t *testing.T) {
	positive := emotion.NewContext(0.7, 0.6, emotion.EmotionJoy, 0.8)
	negative := emotion.NewContext(-0.7, 0.6, emotion.EmotionAnger, 0.8)

	assert.InDelta(t, emotion.Weight(positive), emotion.Weight(negative), 1e-9,
		"weight should depend on |valence|, not its sign")
}

func TestNewContextClamps(t *testing.T) {
	ctx := emotion.NewContext(3.5, -2.0, "", 17.0)

	assert.Equal(t, 1.0, ctx.Valence)
	assert.Equal(t, 0.0, ctx.Arousal)
	assert.Equal(t, emotion.EmotionNeutral, ctx.DetectedEmotion)
	assert.Equal(t, 1.0, ctx.Confidence)
}

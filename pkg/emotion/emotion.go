// Package emotion provides lexicon-based emotional analysis of conversational text.
//
// The analyzer is a total function: any input (empty, oversized, binary garbage)
// maps to a usable Context. Callers downstream use the derived emotional weight
// for importance scoring and storage routing.
package emotion

import "math"

// Context is the emotional signal extracted from a piece of text.
//
// It is an immutable value type; all fields are clamped to their declared
// ranges on construction. A Context is never persisted on its own — it is
// always attached to a memory fragment.
type Context struct {
	// Valence is the polarity of the detected emotion, from -1.0 (strongly
	// negative) to 1.0 (strongly positive). 0.0 is neutral.
	Valence float64 `json:"valence"`

	// Arousal is the intensity of the detected emotion, from 0.0 (calm)
	// to 1.0 (intense).
	Arousal float64 `json:"arousal"`

	// DetectedEmotion is the best single-label guess, e.g. "joy", "anger",
	// "neutral". See the Emotion* constants for the full label set.
	DetectedEmotion string `json:"detected_emotion"`

	// Confidence is how reliable the analysis is, from 0.0 to 1.0.
	// Match-free or very short text yields a low-confidence result.
	Confidence float64 `json:"confidence"`
}

// Emotion labels produced by the analyzer.
const (
	EmotionJoy          = "joy"
	EmotionEnthusiasm   = "enthusiasm"
	EmotionSatisfaction = "satisfaction"
	EmotionAnger        = "anger"
	EmotionFrustration  = "frustration"
	EmotionSadness      = "sadness"
	EmotionAnxiety      = "anxiety"
	EmotionNeutral      = "neutral"
)

// NewContext builds a Context with every field clamped to its declared range.
//
// Upstream heuristics are never trusted blindly: out-of-range values are
// clamped rather than rejected, and an unknown label falls back to "neutral".
func NewContext(valence, arousal float64, detectedEmotion string, confidence float64) Context {
	if detectedEmotion == "" {
		detectedEmotion = EmotionNeutral
	}
	return Context{
		Valence:         clamp(valence, -1, 1),
		Arousal:         clamp(arousal, 0, 1),
		DetectedEmotion: detectedEmotion,
		Confidence:      clamp(confidence, 0, 1),
	}
}

// Neutral returns the default context used when text carries no readable
// emotional signal, or when analysis had to be absorbed after a failure.
func Neutral() Context {
	return Context{
		Valence:         0,
		Arousal:         0.1,
		DetectedEmotion: EmotionNeutral,
		Confidence:      0.3,
	}
}

// Weight collapses a Context into a single scalar in [0, 1] used for
// prioritization and vector-store routing.
//
// Strong, confident, intense emotion of either polarity yields a higher
// weight than neutral or low-confidence signals. The combination is:
//
//	weight = 0.5*|valence| + 0.3*arousal + 0.2*confidence
func Weight(ctx Context) float64 {
	w := 0.5*math.Abs(ctx.Valence) + 0.3*ctx.Arousal + 0.2*ctx.Confidence
	return clamp(w, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

package emotion

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxAnalyzeRunes caps how much text the analyzer looks at. Oversized input
// is truncated, never rejected, so processing time stays bounded.
const maxAnalyzeRunes = 4096

// strongIntensity is the absolute lexicon intensity above which a match
// counts toward arousal.
const strongIntensity = 0.7

// Analyzer performs lexicon-based emotional analysis.
//
// Analysis is a pure CPU-bound function with no I/O; it is safe for
// concurrent use from multiple goroutines.
//
// Example usage:
//
//	a := emotion.NewAnalyzer()
//	ctx := a.Analyze("I am thrilled, the launch was perfect!")
//	// ctx.Valence > 0.6, ctx.DetectedEmotion == "joy" or "enthusiasm"
type Analyzer struct {
	// lexicon maps a lowercase keyword to a signed intensity in [-1, 1].
	lexicon map[string]float64
}

// NewAnalyzer creates an analyzer with the built-in English lexicon.
func NewAnalyzer() *Analyzer {
	return &Analyzer{lexicon: defaultLexicon}
}

// NewAnalyzerWithLexicon creates an analyzer with a custom keyword lexicon.
// Intensities outside [-1, 1] are clamped at match time.
func NewAnalyzerWithLexicon(lexicon map[string]float64) *Analyzer {
	if len(lexicon) == 0 {
		lexicon = defaultLexicon
	}
	return &Analyzer{lexicon: lexicon}
}

// Analyze extracts an emotional Context from text.
//
// The function is total: empty, garbled, or oversized input returns a
// low-confidence neutral context instead of an error. Valence is the mean
// signed intensity of matched keywords; arousal grows with the density of
// strong matches and with punctuation/emphasis signals; the label is chosen
// by thresholding valence and arousal into quadrants.
func (a *Analyzer) Analyze(text string) Context {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return Neutral()
	}

	var (
		sum     float64
		matches int
		strong  int
	)
	for _, tok := range tokens {
		if intensity, ok := a.lexicon[tok]; ok {
			intensity = clamp(intensity, -1, 1)
			sum += intensity
			matches++
			if intensity >= strongIntensity || intensity <= -strongIntensity {
				strong++
			}
		}
	}

	if matches == 0 {
		return Neutral()
	}

	valence := clamp(sum/float64(matches), -1, 1)
	arousal := a.arousal(text, strong)
	confidence := a.confidence(matches, len(tokens))

	return Context{
		Valence:         valence,
		Arousal:         arousal,
		DetectedEmotion: label(valence, arousal),
		Confidence:      confidence,
	}
}

// arousal estimates emotional intensity from strong-match density plus
// punctuation and ALL-CAPS emphasis.
func (a *Analyzer) arousal(text string, strong int) float64 {
	v := 0.1 + 0.15*float64(strong)

	exclaims := strings.Count(text, "!")
	if exclaims > 3 {
		exclaims = 3
	}
	v += 0.1 * float64(exclaims)

	// Emphasis check runs on the raw words so casing survives tokenization.
	caps := 0
	for _, word := range strings.Fields(text) {
		if utf8.RuneCountInString(word) >= 3 && word == strings.ToUpper(word) && hasLetter(word) {
			caps++
		}
	}
	if caps > 2 {
		caps = 2
	}
	v += 0.1 * float64(caps)

	return clamp(v, 0, 1)
}

// confidence scales with the number of keyword matches relative to text
// length, floored so short or sparse text still yields a usable result.
func (a *Analyzer) confidence(matches, tokens int) float64 {
	density := float64(matches) / float64(tokens)
	c := 0.3 + 0.12*float64(matches) + 0.5*density
	return clamp(c, 0.3, 0.95)
}

// label selects the emotion label from the valence/arousal quadrant.
func label(valence, arousal float64) string {
	switch {
	case valence > 0.3:
		if arousal > 0.6 {
			return EmotionJoy
		}
		if arousal > 0.35 {
			return EmotionEnthusiasm
		}
		return EmotionSatisfaction
	case valence < -0.3:
		if arousal > 0.55 {
			return EmotionAnger
		}
		if arousal > 0.3 {
			return EmotionFrustration
		}
		return EmotionSadness
	case valence < -0.1 && arousal > 0.5:
		return EmotionAnxiety
	default:
		return EmotionNeutral
	}
}

// tokenize case-folds, collapses whitespace, strips surrounding punctuation,
// and truncates the analysis window. Invalid UTF-8 bytes are dropped by the
// rune iteration, so binary-decoded garbage degrades to few or no tokens.
func tokenize(text string) []string {
	if text == "" {
		return nil
	}

	runes := 0
	cut := len(text)
	for i := range text {
		runes++
		if runes > maxAnalyzeRunes {
			cut = i
			break
		}
	}
	text = strings.ToLower(text[:cut])

	fields := strings.Fields(text)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

package emotion

// defaultLexicon maps lowercase keywords to signed intensities in [-1, 1].
// Positive values pull valence up, negative values pull it down; entries at
// or beyond ±0.7 also count toward arousal.
var defaultLexicon = map[string]float64{
	// Positive
	"love":       0.9,
	"adore":      0.9,
	"thrilled":   0.9,
	"ecstatic":   0.95,
	"amazing":    0.85,
	"fantastic":  0.85,
	"excellent":  0.8,
	"wonderful":  0.8,
	"perfect":    0.8,
	"awesome":    0.8,
	"excited":    0.8,
	"delighted":  0.8,
	"brilliant":  0.75,
	"happy":      0.7,
	"great":      0.6,
	"satisfied":  0.6,
	"enjoy":      0.6,
	"enjoyed":    0.6,
	"pleased":    0.6,
	"glad":       0.55,
	"good":       0.5,
	"nice":       0.45,
	"fine":       0.3,
	"like":       0.4,
	"thanks":     0.4,
	"thank":      0.4,
	"productive": 0.5,
	"success":    0.6,
	"successful": 0.6,
	"win":        0.6,
	"won":        0.6,

	// Negative
	"hate":         -0.9,
	"furious":      -0.9,
	"horrible":     -0.85,
	"terrible":     -0.8,
	"awful":        -0.8,
	"disgusting":   -0.8,
	"worst":        -0.8,
	"angry":        -0.7,
	"frustrated":   -0.7,
	"frustrating":  -0.7,
	"miserable":    -0.7,
	"scared":       -0.65,
	"anxious":      -0.6,
	"stressed":     -0.6,
	"upset":        -0.6,
	"sad":          -0.6,
	"disappointed": -0.6,
	"annoying":     -0.6,
	"annoyed":      -0.6,
	"fail":         -0.6,
	"failed":       -0.6,
	"failure":      -0.6,
	"broken":       -0.5,
	"worried":      -0.5,
	"nervous":      -0.5,
	"bad":          -0.5,
	"wrong":        -0.45,
	"problem":      -0.4,
	"issue":        -0.35,
	"tired":        -0.35,
}

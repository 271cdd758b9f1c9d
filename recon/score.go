package recon

import (
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/xrash/smetrics"
)

// Scorer produces a similarity score in [0,1] for two normalized
// strings. It is only consulted for key alignment against the billing
// master, never for field-level comparison.
type Scorer interface {
	Score(a, b string) float64
}

// NormalizeText case-folds and collapses whitespace for similarity
// scoring and text comparison.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// LevenshteinScorer scores by normalized edit distance:
// 1 - distance/maxLen. This is the default scorer.
type LevenshteinScorer struct{}

func (LevenshteinScorer) Score(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	la := len([]rune(a))
	lb := len([]rune(b))
	maxLen := la
	if lb > maxLen {
		maxLen = lb
	}
	d := levenshtein.ComputeDistance(a, b)
	return 1 - float64(d)/float64(maxLen)
}

// JaroWinklerScorer favors strings sharing a common prefix, which suits
// truncated item descriptions ("Wdgt A" vs "Widget A").
type JaroWinklerScorer struct{}

func (JaroWinklerScorer) Score(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	return smetrics.JaroWinkler(a, b, 0.7, 4)
}

// ScorerByName resolves a configured scorer name.
func ScorerByName(name string) (Scorer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "levenshtein":
		return LevenshteinScorer{}, nil
	case "jaro-winkler", "jarowinkler":
		return JaroWinklerScorer{}, nil
	default:
		return nil, fmt.Errorf("unknown scorer %q", name)
	}
}

package scoring

import (
	"math"

	"github.com/hyperjump/resumatch/internal/models"
)

const (
	DefaultHighThreshold   = 75
	DefaultMediumThreshold = 50
)

// Scorer turns similarities into integer scores and verdicts. Each tier is
// inclusive on its lower bound.
type Scorer struct {
	High   int
	Medium int
}

// NewScorer returns a Scorer, substituting defaults for non-positive thresholds.
func NewScorer(high, medium int) Scorer {
	if high <= 0 {
		high = DefaultHighThreshold
	}
	if medium <= 0 {
		medium = DefaultMediumThreshold
	}
	return Scorer{High: high, Medium: medium}
}

// Similarity is Cosine.
func (s Scorer) Similarity(a, b []float32) float64 {
	return Cosine(a, b)
}

// Score converts a similarity to round(sim*100), in [-100, 100].
func (s Scorer) Score(similarity float64) int {
	return int(math.Round(similarity * 100))
}

// Classify maps a score onto a verdict tier.
func (s Scorer) Classify(score int) models.Verdict {
	switch {
	case score >= s.High:
		return models.VerdictHigh
	case score >= s.Medium:
		return models.VerdictMedium
	default:
		return models.VerdictLow
	}
}

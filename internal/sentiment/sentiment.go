// Package sentiment scores text polarity with a VADER lexicon model.
package sentiment

import (
	"strings"

	"github.com/jonreiter/govader"
)

// Analyzer wraps the VADER sentiment model. Safe for reuse across
// calls; construction loads the lexicon once.
type Analyzer struct {
	vader *govader.SentimentIntensityAnalyzer
}

func NewAnalyzer() *Analyzer {
	return &Analyzer{vader: govader.NewSentimentIntensityAnalyzer()}
}

// Polarity returns the compound polarity of text in [-1, 1].
// Empty or whitespace text scores 0.
func (a *Analyzer) Polarity(text string) float64 {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	return a.vader.PolarityScores(text).Compound
}

// MoviePolarity averages the overview polarity with the mean polarity
// of up to maxReviews review texts. With no reviews the overview
// polarity stands alone; with no overview the review mean does.
func (a *Analyzer) MoviePolarity(overview string, reviews []string, maxReviews int) float64 {
	base := a.Polarity(overview)

	if maxReviews <= 0 {
		maxReviews = 5
	}
	var sum float64
	var n int
	for _, review := range reviews {
		if strings.TrimSpace(review) == "" {
			continue
		}
		sum += a.Polarity(review)
		n++
		if n >= maxReviews {
			break
		}
	}
	if n == 0 {
		return base
	}
	reviewMean := sum / float64(n)
	if strings.TrimSpace(overview) == "" {
		return reviewMean
	}
	return (base + reviewMean) / 2
}

package parser

import "math"

// Confidence weights. A question with a non-empty body, exactly four options,
// an explicit answer marker, and non-empty solution text scores exactly 1.0.
const (
	scoreBody     = 0.3
	scoreOptions  = 0.3
	scoreAnswer   = 0.2
	scoreSolution = 0.2
)

// confidence computes the extraction confidence score from the four partial
// signals, rounded to two decimals. The result is always within [0, 1].
func confidence(hasBody, hasFourOptions, answerExplicit, hasSolution bool) float64 {
	score := 0.0
	if hasBody {
		score += scoreBody
	}
	if hasFourOptions {
		score += scoreOptions
	}
	if answerExplicit {
		score += scoreAnswer
	}
	if hasSolution {
		score += scoreSolution
	}
	return math.Round(score*100) / 100
}

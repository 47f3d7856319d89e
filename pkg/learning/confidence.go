// Package learning records workflow outcomes, scores behavioural patterns and
// derives advisory optimizations from them.
package learning

const (
	initialSuccessConfidence = 60.0
	initialFailureConfidence = 40.0

	successDelta = 5.0
	failureDelta = -3.0

	maxHistoryWeight = 0.9
)

// InitialConfidence is the confidence of a pattern seen for the first time.
func InitialConfidence(success bool) float64 {
	if success {
		return initialSuccessConfidence
	}

	return initialFailureConfidence
}

// UpdateConfidence folds one more observation into a pattern's confidence.
// occurrences is the count before this observation; history weighs
// min(occurrences/10, 0.9). The result is clamped to [0, 100].
func UpdateConfidence(old float64, occurrences int, success bool) float64 {
	weight := min(float64(occurrences)/10, maxHistoryWeight)

	delta := failureDelta
	if success {
		delta = successDelta
	}

	return min(max(old*weight+delta*(1-weight), 0), 100)
}

// UpdateSuccessRate folds the n-th outcome of a template into its rolling success rate.
func UpdateSuccessRate(old float64, n int, success bool) float64 {
	if n < 1 {
		n = 1
	}

	outcome := 0.0
	if success {
		outcome = 100
	}

	return (old*float64(n-1) + outcome) / float64(n)
}

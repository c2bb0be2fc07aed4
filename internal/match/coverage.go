package match

import (
	"math"

	"github.com/impactlane/vouch/internal/types"
)

// CoveragePercent computes how much of the claim's own span is covered
// by the evidence interval, as an integer percentage in [0, 100],
// rounded half-up. Coverage is of the claim BY the evidence, never the
// reverse: a single-day claim inside a month-long evidence range is
// 100% covered.
func CoveragePercent(claim, evidence types.Interval) int {
	if !claim.IsRange() {
		day, _ := claim.Bounds()
		if evidence.ContainsDay(day) {
			return 100
		}
		// Non-overlapping inputs should not reach the calculator, but
		// tolerate them rather than panic.
		return 0
	}

	window, ok := claim.Intersect(evidence)
	if !ok {
		return 0
	}
	return clampPercent(roundHalfUp(float64(window.Days()) / float64(claim.Days()) * 100))
}

// AverageCoverage returns the unweighted mean of the given coverage
// percentages, rounded half-up. An empty set averages to 0.
func AverageCoverage(percents []int) int {
	if len(percents) == 0 {
		return 0
	}
	var sum int
	for _, p := range percents {
		sum += p
	}
	return clampPercent(roundHalfUp(float64(sum) / float64(len(percents))))
}

func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

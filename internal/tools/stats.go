package tools

import (
	"math"
	"sort"

	"github.com/firebase/genkit/go/ai"
)

// Statistics computes a four-part descriptive summary of a dataset:
// central tendency, dispersion, percentiles, and aggregations.
func (c *Calculator) Statistics(_ *ai.ToolContext, input StatisticsInput) (Result, error) {
	nums := input.Numbers
	if len(nums) == 0 {
		return Errf("List is empty."), nil
	}

	sorted := make([]float64, len(nums))
	copy(sorted, nums)
	sort.Float64s(sorted)

	n := float64(len(nums))
	var sum float64
	for _, v := range nums {
		sum += v
	}
	mean := sum / n

	var sqDev float64
	for _, v := range nums {
		d := v - mean
		sqDev += d * d
	}
	variance := sqDev / n // population variance
	std := math.Sqrt(variance)

	minimum := sorted[0]
	maximum := sorted[len(sorted)-1]
	p25 := percentile(sorted, 25)
	p75 := percentile(sorted, 75)

	return OKResult(map[string]any{
		"central_tendency": map[string]any{
			"mean":   round3(mean),
			"median": percentile(sorted, 50),
			"mode":   mode(nums),
		},
		"dispersion": map[string]any{
			"std":   round3(std),
			"var":   round3(variance),
			"range": maximum - minimum,
			"iqr":   p75 - p25,
		},
		"percentiles": map[string]any{
			"p10": percentile(sorted, 10),
			"p25": p25,
			"p75": p75,
			"p90": percentile(sorted, 90),
		},
		"aggregations": map[string]any{
			"count": len(nums),
			"sum":   sum,
			"min":   minimum,
			"max":   maximum,
		},
	}), nil
}

// percentile computes the p-th percentile of sorted data using linear
// interpolation between closest ranks.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := (float64(len(sorted)) - 1) * p / 100
	lower := int(math.Floor(pos))
	frac := pos - float64(lower)
	if lower+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	return sorted[lower] + frac*(sorted[lower+1]-sorted[lower])
}

// mode returns the most frequent value; ties break toward the value
// encountered first in the input.
func mode(nums []float64) float64 {
	counts := make(map[float64]int, len(nums))
	best := nums[0]
	bestCount := 0
	for _, v := range nums {
		counts[v]++
		if counts[v] > bestCount {
			best = v
			bestCount = counts[v]
		}
	}
	return best
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

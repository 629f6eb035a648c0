package analysis

import (
	"fmt"
	"math"
	"sort"
)

// RoundingStrategy selects how rescaled importance scores are rounded.
type RoundingStrategy string

const (
	// RoundingProportional rounds every rescaled score independently.
	// The sum can land a point or two away from 100.
	RoundingProportional RoundingStrategy = "proportional"
	// RoundingLargestRemainder floors every score and hands the leftover
	// points to the largest fractional parts, so integers sum to exactly 100.
	RoundingLargestRemainder RoundingStrategy = "largest_remainder"
)

// ParseRoundingStrategy maps a config value to a strategy. Empty means proportional.
func ParseRoundingStrategy(s string) (RoundingStrategy, error) {
	switch RoundingStrategy(s) {
	case "", RoundingProportional:
		return RoundingProportional, nil
	case RoundingLargestRemainder:
		return RoundingLargestRemainder, nil
	default:
		return "", fmt.Errorf("unknown rounding strategy %q (want %q or %q)", s, RoundingProportional, RoundingLargestRemainder)
	}
}

// rescaleProportional returns round(score/total*100) for every score.
func rescaleProportional(scores []float64, total float64) []float64 {
	out := make([]float64, len(scores))
	for i, s := range scores {
		out[i] = math.Round(s / total * 100)
	}
	return out
}

// rescaleLargestRemainder allocates exactly 100 integer points in proportion
// to scores. Ties on the remainder go to the earlier subject.
func rescaleLargestRemainder(scores []float64, total float64) []float64 {
	out := make([]float64, len(scores))
	type remainder struct {
		idx  int
		frac float64
	}
	rems := make([]remainder, len(scores))

	allocated := 0
	for i, s := range scores {
		exact := s / total * 100
		floor := math.Floor(exact)
		out[i] = floor
		allocated += int(floor)
		rems[i] = remainder{idx: i, frac: exact - floor}
	}

	sort.SliceStable(rems, func(a, b int) bool {
		return rems[a].frac > rems[b].frac
	})
	for i := 0; i < 100-allocated && i < len(rems); i++ {
		out[rems[i].idx]++
	}
	return out
}

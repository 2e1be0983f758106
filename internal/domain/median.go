package domain

import (
	"sort"
	"time"
)

// DatedWeight is one (date, weight) point fed into WeightedMedian.
type DatedWeight struct {
	Date   time.Time
	Weight float64
}

// WeightedMedian returns the date at which cumulative weight, walking the
// points sorted ascending by date, first reaches half of the total weight.
//
// The returned date is always a member of the input — no interpolation.
// An empty input returns fallback (call sites depend on always having a
// concrete date to display and compare against, so the result is never zero).
// A single point returns its date regardless of its weight.
//
// O(n log n) from the sort, no side effects; safe to run on the full
// observation set on every cache miss.
func WeightedMedian(points []DatedWeight, fallback time.Time) time.Time {
	if len(points) == 0 {
		return fallback
	}

	sorted := make([]DatedWeight, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	var total float64
	for _, p := range sorted {
		total += p.Weight
	}

	half := total / 2
	var cumulative float64
	for _, p := range sorted {
		cumulative += p.Weight
		if cumulative >= half {
			return p.Date
		}
	}

	// Unreachable with positive weights; guard against float rounding.
	return sorted[len(sorted)-1].Date
}

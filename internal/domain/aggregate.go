package domain

import "time"

// Aggregate is the derived summary over all live observations. It is never
// stored durably: the cache recomputes it on demand from a full ledger
// snapshot and throws it away on invalidation.
type Aggregate struct {
	// MedianDate is the weighted median of all observed dates. For an empty
	// ledger it equals the configured fallback (target) date.
	MedianDate time.Time
	MinDate    time.Time
	MaxDate    time.Time
	TotalCount int
	ComputedAt time.Time
}

// ComputeAggregate builds an Aggregate from a ledger snapshot.
// fallback is the median returned for an empty snapshot; now stamps
// ComputedAt. Pure function — the caller owns caching and invalidation.
func ComputeAggregate(observations []Observation, fallback time.Time, now time.Time) Aggregate {
	agg := Aggregate{
		MedianDate: fallback,
		TotalCount: len(observations),
		ComputedAt: now,
	}
	if len(observations) == 0 {
		return agg
	}

	points := make([]DatedWeight, len(observations))
	agg.MinDate = observations[0].ObservedDate
	agg.MaxDate = observations[0].ObservedDate
	for i, o := range observations {
		points[i] = DatedWeight{Date: o.ObservedDate, Weight: o.Weight}
		if o.ObservedDate.Before(agg.MinDate) {
			agg.MinDate = o.ObservedDate
		}
		if o.ObservedDate.After(agg.MaxDate) {
			agg.MaxDate = o.ObservedDate
		}
	}
	agg.MedianDate = WeightedMedian(points, fallback)
	return agg
}

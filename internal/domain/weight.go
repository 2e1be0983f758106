package domain

import (
	"math"
	"time"
)

// WeightPolicy holds the tiered influence-decay thresholds applied to every
// prediction at write time. These are policy constants, not derived values:
// tune them here (or via config) without touching the median algorithm.
//
// The three tiers exist so that trolling via absurd dates can neither
// silently disappear from the statistic nor dominate it. Every admitted
// prediction keeps a nonzero weight.
type WeightPolicy struct {
	// NearYears is the horizon within which a prediction carries full weight.
	NearYears float64
	// FarYears is the horizon beyond which a prediction is treated as an
	// outlier. Between NearYears and FarYears it is merely speculative.
	FarYears float64

	NearWeight float64
	MidWeight  float64
	FarWeight  float64
}

// DefaultWeightPolicy returns the standard three-tier decay:
// within 5 years of the target → 1.0, within 50 → 0.3, beyond → 0.1.
func DefaultWeightPolicy() WeightPolicy {
	return WeightPolicy{
		NearYears:  5,
		FarYears:   50,
		NearWeight: 1.0,
		MidWeight:  0.3,
		FarWeight:  0.1,
	}
}

// WeightFor returns the influence weight of a prediction relative to the
// reference date. The result is a non-increasing step function of
// |years between observed and reference| with exactly three plateaus.
func (p WeightPolicy) WeightFor(observed, reference time.Time) float64 {
	delta := yearsApart(observed, reference)
	switch {
	case delta <= p.NearYears:
		return p.NearWeight
	case delta <= p.FarYears:
		return p.MidWeight
	default:
		return p.FarWeight
	}
}

// yearsApart returns the absolute distance between two dates in fractional
// years, using the mean Gregorian year length.
func yearsApart(a, b time.Time) float64 {
	return math.Abs(a.Sub(b).Hours()) / (24 * 365.2425)
}

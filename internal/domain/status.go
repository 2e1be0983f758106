package domain

import "time"

// Status is the coarse sentiment label derived from the consensus median
// relative to the target date.
type Status string

const (
	StatusInsufficientData Status = "insufficient_data"
	StatusEarly            Status = "early"
	StatusOnTrack          Status = "on_track"
	StatusDelayLikely      Status = "delay_likely"
	StatusMajorDelay       Status = "major_delay"
)

// StatusResult is the classification of the current aggregate.
// Pure function of (median date, reference date, total count) — recomputed
// whenever the aggregate changes, never stored.
type StatusResult struct {
	Label Status
	// ColorTag is a coarse ordering tag for presentation layers
	// (gray < blue < green < orange < red).
	ColorTag string
	// DaysDifference is median minus reference in whole days; negative means
	// the crowd expects the date earlier than the reference.
	DaysDifference int
}

// Classification band boundaries in days. Both ±OnTrackWindowDays and
// DelayLikelyLimitDays are inclusive on the side of the milder band.
const (
	OnTrackWindowDays    = 60
	DelayLikelyLimitDays = 180
)

// DefaultMinSampleSize is the observation count below which no classification
// is attempted, preventing a handful of early submissions from producing a
// misleadingly confident label.
const DefaultMinSampleSize = 50

// Classify derives the status of the aggregate median relative to reference.
// Below minSampleSize the result is StatusInsufficientData regardless of the
// date math (DaysDifference is still reported).
func Classify(median, reference time.Time, totalCount, minSampleSize int) StatusResult {
	diff := DaysBetween(reference, median)

	if totalCount < minSampleSize {
		return StatusResult{Label: StatusInsufficientData, ColorTag: "gray", DaysDifference: diff}
	}

	switch {
	case diff < -OnTrackWindowDays:
		return StatusResult{Label: StatusEarly, ColorTag: "blue", DaysDifference: diff}
	case diff <= OnTrackWindowDays:
		return StatusResult{Label: StatusOnTrack, ColorTag: "green", DaysDifference: diff}
	case diff <= DelayLikelyLimitDays:
		return StatusResult{Label: StatusDelayLikely, ColorTag: "orange", DaysDifference: diff}
	default:
		return StatusResult{Label: StatusMajorDelay, ColorTag: "red", DaysDifference: diff}
	}
}

// Comparison relates a single prediction to the crowd median.
type Comparison string

const (
	ComparisonOptimistic  Comparison = "optimistic"
	ComparisonPessimistic Comparison = "pessimistic"
	ComparisonAligned     Comparison = "aligned"
)

// Compare labels a prediction relative to the aggregate median:
// earlier → optimistic, later → pessimistic, same date → aligned.
func Compare(observed, median time.Time) Comparison {
	switch {
	case observed.Before(median):
		return ComparisonOptimistic
	case observed.After(median):
		return ComparisonPessimistic
	default:
		return ComparisonAligned
	}
}

// DaysBetween returns the number of whole days from "from" to "to",
// negative when "to" precedes "from". Date values are assumed to be
// midnight-normalized, so the division is exact.
func DaysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

// SubmissionResult is everything reported back to a submitter after an
// accepted create or revision: the stored observation (whose UpdateToken is
// the revision credential), the post-write aggregate, and how this
// prediction sits relative to the crowd.
type SubmissionResult struct {
	Observation    Observation
	Aggregate      Aggregate
	DaysDifference int
	Comparison     Comparison
}

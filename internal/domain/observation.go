// Package domain contains the core data types and pure prediction math for
// the Datecast API: observations, the weighted-median aggregate, and the
// status classification derived from it.
// This package has zero external dependencies beyond uuid and is imported by
// every other internal package (repo, cache, service, handler).
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Observation is one submitter's current date prediction.
// Exactly one live observation exists per identity; revisions replace
// ObservedDate, Weight, and LastUpdatedAt in place while IdentityToken and
// FirstSubmittedAt never change.
type Observation struct {
	// IdentityToken is the salted one-way hash of the submitter's network
	// origin. Immutable and unique: it is the ledger's primary key.
	IdentityToken string

	// ObservedDate is the submitter-chosen prediction date. Any date inside
	// the accepted calendar range is admitted; extremity is handled by
	// weighting, never by refusal.
	ObservedDate time.Time

	// Weight is derived from ObservedDate at write time and recomputed on
	// every revision. Always in (0, 1].
	Weight float64

	// UpdateToken is the opaque capability credential handed to the submitter
	// at creation time. Possession of it is sufficient and necessary to
	// revise this observation; there is no server-side notion of "user".
	UpdateToken uuid.UUID

	FirstSubmittedAt time.Time
	LastUpdatedAt    time.Time
}

// Accepted calendar range for prediction dates. The HTTP layer validates
// first; the core re-checks defensively so a malformed date can never reach
// the weighting math.
const (
	MinObservedYear = 1900
	MaxObservedYear = 9999
)

// ValidateObservedDate rejects zero dates and dates outside the accepted
// calendar range with a ValidationError.
func ValidateObservedDate(d time.Time) error {
	if d.IsZero() {
		return Validationf("prediction date is required")
	}
	if y := d.Year(); y < MinObservedYear || y > MaxObservedYear {
		return Validationf("prediction date must be between years %d and %d", MinObservedYear, MaxObservedYear)
	}
	return nil
}

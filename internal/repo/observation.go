// Package repo contains all database access logic for the Datecast API.
// No business logic lives here — only SQL and type mapping.
package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/datecast/backend/internal/domain"
)

// db is the minimal interface satisfied by *pgxpool.Pool, pgx.Conn, and pgx.Tx.
// Accepting this interface instead of *pgxpool.Pool directly allows integration
// tests to pass a transaction that is rolled back after each test, giving free
// per-test isolation without any manual cleanup.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// uniqueViolation is the Postgres error code raised by a duplicate key.
const uniqueViolation = "23505"

// ObservationRepo is the submission ledger: one live row per identity.
// The service layer depends on this interface, not the concrete Postgres
// implementation, which allows the service to be unit-tested with a mock.
type ObservationRepo interface {
	// Create inserts a new observation for identityToken and returns the
	// persisted record with its DB-generated update token and timestamps.
	// Returns domain.ErrDuplicateIdentity when the identity already holds a
	// live observation. The check is the table's uniqueness constraint, so
	// concurrent creates for one identity serialize in the database and
	// exactly one wins.
	Create(ctx context.Context, identityToken string, observedDate time.Time, weight float64) (domain.Observation, error)

	// UpdateByToken replaces observed_date, weight, and last_updated_at on
	// the observation owned by updateToken, preserving identity_token and
	// first_submitted_at. Returns domain.ErrTokenNotFound when no live
	// observation matches.
	UpdateByToken(ctx context.Context, updateToken uuid.UUID, observedDate time.Time, weight float64) (domain.Observation, error)

	// SnapshotAll returns every live observation in observed_date order.
	// A single SELECT, so the ledger's read consistency guarantees no
	// half-written row is ever visible.
	SnapshotAll(ctx context.Context) ([]domain.Observation, error)
}

// pgObservationRepo is the Postgres implementation of ObservationRepo.
type pgObservationRepo struct {
	db db
}

// NewObservationRepo constructs an ObservationRepo backed by the provided db
// connection. In production pass *pgxpool.Pool; in tests pass a pgx.Tx for
// rollback isolation.
func NewObservationRepo(db db) ObservationRepo {
	return &pgObservationRepo{db: db}
}

// Create inserts the identity's one observation row.
func (r *pgObservationRepo) Create(ctx context.Context, identityToken string, observedDate time.Time, weight float64) (domain.Observation, error) {
	const q = `
		INSERT INTO observations (identity_token, observed_date, weight)
		VALUES (@identity_token, @observed_date, @weight)
		RETURNING identity_token, observed_date, weight, update_token, first_submitted_at, last_updated_at`

	args := pgx.NamedArgs{
		"identity_token": identityToken,
		"observed_date":  observedDate,
		"weight":         weight,
	}

	row := r.db.QueryRow(ctx, q, args)
	result, err := scanObservation(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.Observation{}, fmt.Errorf("repo.ObservationRepo.Create: %w", domain.ErrDuplicateIdentity)
		}
		return domain.Observation{}, fmt.Errorf("repo.ObservationRepo.Create: %w", err)
	}
	return result, nil
}

// UpdateByToken revises the observation owned by updateToken in place.
func (r *pgObservationRepo) UpdateByToken(ctx context.Context, updateToken uuid.UUID, observedDate time.Time, weight float64) (domain.Observation, error) {
	const q = `
		UPDATE observations
		SET observed_date   = @observed_date,
		    weight          = @weight,
		    last_updated_at = now()
		WHERE update_token = @update_token
		RETURNING identity_token, observed_date, weight, update_token, first_submitted_at, last_updated_at`

	args := pgx.NamedArgs{
		"update_token":  updateToken,
		"observed_date": observedDate,
		"weight":        weight,
	}

	row := r.db.QueryRow(ctx, q, args)
	result, err := scanObservation(row)
	if err != nil {
		if errors.Is(err, domain.ErrTokenNotFound) {
			return domain.Observation{}, fmt.Errorf("repo.ObservationRepo.UpdateByToken: %w", domain.ErrTokenNotFound)
		}
		return domain.Observation{}, fmt.Errorf("repo.ObservationRepo.UpdateByToken: %w", err)
	}
	return result, nil
}

// SnapshotAll returns every live observation ordered by observed_date, which
// the observed_date index serves without a sort at larger volumes.
func (r *pgObservationRepo) SnapshotAll(ctx context.Context) ([]domain.Observation, error) {
	const q = `
		SELECT identity_token, observed_date, weight, update_token, first_submitted_at, last_updated_at
		FROM observations
		ORDER BY observed_date`

	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("repo.ObservationRepo.SnapshotAll: %w", err)
	}
	defer rows.Close()

	var observations []domain.Observation
	for rows.Next() {
		o, err := scanObservation(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.ObservationRepo.SnapshotAll: scan: %w", err)
		}
		observations = append(observations, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.ObservationRepo.SnapshotAll: rows: %w", err)
	}

	return observations, nil
}

// scanner is satisfied by both pgx.Row and pgx.Rows, allowing scanObservation
// to be reused for both QueryRow and Query calls.
type scanner interface {
	Scan(dest ...any) error
}

// scanObservation maps a single database row into a domain.Observation.
// It handles the date and UUID conversions.
func scanObservation(s scanner) (domain.Observation, error) {
	var (
		o        domain.Observation
		observed pgtype.Date
		token    pgtype.UUID
	)

	err := s.Scan(&o.IdentityToken, &observed, &o.Weight, &token, &o.FirstSubmittedAt, &o.LastUpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Observation{}, domain.ErrTokenNotFound
		}
		return domain.Observation{}, err
	}

	o.ObservedDate = observed.Time
	o.UpdateToken = uuid.UUID(token.Bytes)

	return o, nil
}

// Package service contains the business logic for the Datecast API.
// The prediction service validates inputs, consults the bot-challenge oracle,
// derives identity and weight, and orchestrates ledger and cache calls.
// No SQL lives here — it depends on the repo interface, not the implementation.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/datecast/backend/internal/domain"
	"github.com/datecast/backend/internal/identity"
	"github.com/datecast/backend/internal/metrics"
	"github.com/datecast/backend/internal/repo"
	"github.com/datecast/backend/internal/verify"
)

// AggregateProvider is the cached view over the ledger the service reads
// from and eagerly invalidates after every accepted write.
type AggregateProvider interface {
	Get(ctx context.Context) (domain.Aggregate, error)
	Invalidate()
}

// Config carries the policy knobs of the prediction engine.
type Config struct {
	// TargetDate is the officially announced date the crowd is predicting
	// against. It anchors weighting, classification, and the empty-ledger
	// median fallback.
	TargetDate time.Time
	// MinSampleSize is the observation count below which Status reports
	// insufficient data.
	MinSampleSize int
	// Weights is the tiered influence-decay policy.
	Weights domain.WeightPolicy
}

// PredictionService implements the submit / revise / aggregate / status
// operations.
type PredictionService struct {
	ledger     repo.ObservationRepo
	aggregates AggregateProvider
	hasher     *identity.Hasher
	verifier   verify.Verifier
	cfg        Config
	metrics    *metrics.PredictionMetrics
}

// NewPredictionService constructs a PredictionService.
// metrics may be nil in tests.
func NewPredictionService(ledger repo.ObservationRepo, aggregates AggregateProvider, hasher *identity.Hasher, verifier verify.Verifier, cfg Config, m *metrics.PredictionMetrics) *PredictionService {
	return &PredictionService{
		ledger:     ledger,
		aggregates: aggregates,
		hasher:     hasher,
		verifier:   verifier,
		cfg:        cfg,
		metrics:    m,
	}
}

// Submit admits a first-time prediction for rawIdentity.
//
// The bot-challenge oracle is consulted first and fails open: when it is
// unreachable the admission proceeds as if verified (logged, never surfaced),
// since weighting already bounds any single submission's influence. An
// identity that already holds a live observation gets ErrDuplicateIdentity
// and should be directed to its update token instead.
func (s *PredictionService) Submit(ctx context.Context, rawIdentity, challengeToken string, observedDate time.Time) (domain.SubmissionResult, error) {
	if err := domain.ValidateObservedDate(observedDate); err != nil {
		s.countSubmission("rejected")
		return domain.SubmissionResult{}, fmt.Errorf("service.PredictionService.Submit: %w", err)
	}

	if err := s.verifier.Verify(ctx, challengeToken, rawIdentity); err != nil {
		if errors.Is(err, domain.ErrVerificationUnavailable) {
			slog.WarnContext(ctx, "bot verification unavailable, failing open", "error", err)
			s.countVerification("unavailable")
		} else {
			s.countVerification("blocked")
			s.countSubmission("rejected")
			return domain.SubmissionResult{}, fmt.Errorf("service.PredictionService.Submit: %w", err)
		}
	} else {
		s.countVerification("ok")
	}

	token, err := s.hasher.Hash(rawIdentity)
	if err != nil {
		s.countSubmission("rejected")
		return domain.SubmissionResult{}, fmt.Errorf("service.PredictionService.Submit: %w", err)
	}

	weight := s.cfg.Weights.WeightFor(observedDate, s.cfg.TargetDate)

	observation, err := s.ledger.Create(ctx, token, observedDate, weight)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateIdentity) {
			s.countSubmission("duplicate")
		} else {
			s.countSubmission("error")
		}
		return domain.SubmissionResult{}, fmt.Errorf("service.PredictionService.Submit: %w", err)
	}

	s.countSubmission("created")
	return s.finishWrite(ctx, observation)
}

// Revise replaces the observed date on the observation owned by updateToken.
// The weight is recomputed fresh from the new date; identity and
// first-submission time are untouched. Revisions are not challenge-gated and
// may repeat without limit.
func (s *PredictionService) Revise(ctx context.Context, updateToken uuid.UUID, observedDate time.Time) (domain.SubmissionResult, error) {
	if err := domain.ValidateObservedDate(observedDate); err != nil {
		s.countSubmission("rejected")
		return domain.SubmissionResult{}, fmt.Errorf("service.PredictionService.Revise: %w", err)
	}

	weight := s.cfg.Weights.WeightFor(observedDate, s.cfg.TargetDate)

	observation, err := s.ledger.UpdateByToken(ctx, updateToken, observedDate, weight)
	if err != nil {
		if errors.Is(err, domain.ErrTokenNotFound) {
			s.countSubmission("not_found")
		} else {
			s.countSubmission("error")
		}
		return domain.SubmissionResult{}, fmt.Errorf("service.PredictionService.Revise: %w", err)
	}

	s.countSubmission("revised")
	return s.finishWrite(ctx, observation)
}

// Aggregate returns the current (cached) aggregate.
func (s *PredictionService) Aggregate(ctx context.Context) (domain.Aggregate, error) {
	agg, err := s.aggregates.Get(ctx)
	if err != nil {
		return domain.Aggregate{}, fmt.Errorf("service.PredictionService.Aggregate: %w", err)
	}
	return agg, nil
}

// Status classifies the current aggregate against the configured target date.
func (s *PredictionService) Status(ctx context.Context) (domain.StatusResult, error) {
	agg, err := s.aggregates.Get(ctx)
	if err != nil {
		return domain.StatusResult{}, fmt.Errorf("service.PredictionService.Status: %w", err)
	}
	return domain.Classify(agg.MedianDate, s.cfg.TargetDate, agg.TotalCount, s.cfg.MinSampleSize), nil
}

// finishWrite invalidates the cached aggregate (eagerly, before the write's
// response is produced — this is what guarantees a submitter always sees
// their own effect) and assembles the submitter-facing result.
func (s *PredictionService) finishWrite(ctx context.Context, observation domain.Observation) (domain.SubmissionResult, error) {
	s.aggregates.Invalidate()

	agg, err := s.aggregates.Get(ctx)
	if err != nil {
		return domain.SubmissionResult{}, fmt.Errorf("service.PredictionService: aggregate after write: %w", err)
	}

	return domain.SubmissionResult{
		Observation:    observation,
		Aggregate:      agg,
		DaysDifference: domain.DaysBetween(agg.MedianDate, observation.ObservedDate),
		Comparison:     domain.Compare(observation.ObservedDate, agg.MedianDate),
	}, nil
}

func (s *PredictionService) countSubmission(outcome string) {
	if s.metrics != nil {
		s.metrics.SubmissionsTotal.WithLabelValues(outcome).Inc()
	}
}

func (s *PredictionService) countVerification(outcome string) {
	if s.metrics != nil {
		s.metrics.VerificationsTotal.WithLabelValues(outcome).Inc()
	}
}

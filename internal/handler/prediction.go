package handler

import (
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/datecast/backend/internal/domain"
)

// predictionRequest is the body of both POST /api/predictions and
// PUT /api/predictions/{updateToken}. Dates travel as "YYYY-MM-DD".
type predictionRequest struct {
	PredictedDate openapi_types.Date `json:"predicted_date"`
	// ChallengeToken is the bot-challenge response. Only consulted on create;
	// revisions are authorized by the update token alone.
	ChallengeToken string `json:"challenge_token,omitempty"`
}

// observationBody is the submitter-facing view of their stored observation.
// The identity token never leaves the server.
type observationBody struct {
	PredictedDate    openapi_types.Date `json:"predicted_date"`
	Weight           float64            `json:"weight"`
	FirstSubmittedAt time.Time          `json:"first_submitted_at"`
	LastUpdatedAt    time.Time          `json:"last_updated_at"`
}

type aggregateBody struct {
	MedianDate openapi_types.Date  `json:"median_date"`
	MinDate    *openapi_types.Date `json:"min_date,omitempty"`
	MaxDate    *openapi_types.Date `json:"max_date,omitempty"`
	TotalCount int                 `json:"total_count"`
	ComputedAt time.Time           `json:"computed_at"`
}

type submissionBody struct {
	Observation    observationBody   `json:"observation"`
	UpdateToken    uuid.UUID         `json:"update_token"`
	Aggregate      aggregateBody     `json:"aggregate"`
	DaysDifference int               `json:"days_difference"`
	Comparison     domain.Comparison `json:"comparison"`
}

type statusBody struct {
	Label          domain.Status `json:"label"`
	ColorTag       string        `json:"color_tag"`
	DaysDifference int           `json:"days_difference"`
}

// CreatePrediction handles POST /api/predictions.
// The submitter's identity is their network origin (RealIP middleware runs
// upstream); the response carries the update token that authorizes later
// revisions — the only credential there is.
func (s *Server) CreatePrediction(w http.ResponseWriter, r *http.Request) {
	var req predictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRequestError(w, "request body must be JSON with a predicted_date (YYYY-MM-DD)")
		return
	}

	rawIdentity := remoteIdentity(r)
	if rawIdentity == "" {
		writeRequestError(w, "submitter address unavailable")
		return
	}

	result, err := s.predictions.Submit(r.Context(), rawIdentity, req.ChallengeToken, req.PredictedDate.Time)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toSubmissionBody(result))
}

// RevisePrediction handles PUT /api/predictions/{updateToken}.
// Possession of the token is sufficient and necessary; revisions may repeat
// without limit.
func (s *Server) RevisePrediction(w http.ResponseWriter, r *http.Request) {
	token, err := uuid.Parse(chi.URLParam(r, "updateToken"))
	if err != nil {
		writeRequestError(w, "update token must be a UUID")
		return
	}

	var req predictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRequestError(w, "request body must be JSON with a predicted_date (YYYY-MM-DD)")
		return
	}

	result, err := s.predictions.Revise(r.Context(), token, req.PredictedDate.Time)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSubmissionBody(result))
}

// GetAggregate handles GET /api/aggregate.
func (s *Server) GetAggregate(w http.ResponseWriter, r *http.Request) {
	agg, err := s.predictions.Aggregate(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAggregateBody(agg))
}

// GetStatus handles GET /api/status.
func (s *Server) GetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.predictions.Status(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, statusBody{
		Label:          status.Label,
		ColorTag:       status.ColorTag,
		DaysDifference: status.DaysDifference,
	})
}

// --- mapping helpers --------------------------------------------------------

func toSubmissionBody(result domain.SubmissionResult) submissionBody {
	return submissionBody{
		Observation: observationBody{
			PredictedDate:    openapi_types.Date{Time: result.Observation.ObservedDate},
			Weight:           result.Observation.Weight,
			FirstSubmittedAt: result.Observation.FirstSubmittedAt,
			LastUpdatedAt:    result.Observation.LastUpdatedAt,
		},
		UpdateToken:    result.Observation.UpdateToken,
		Aggregate:      toAggregateBody(result.Aggregate),
		DaysDifference: result.DaysDifference,
		Comparison:     result.Comparison,
	}
}

func toAggregateBody(agg domain.Aggregate) aggregateBody {
	body := aggregateBody{
		MedianDate: openapi_types.Date{Time: agg.MedianDate},
		TotalCount: agg.TotalCount,
		ComputedAt: agg.ComputedAt,
	}
	if !agg.MinDate.IsZero() {
		d := openapi_types.Date{Time: agg.MinDate}
		body.MinDate = &d
	}
	if !agg.MaxDate.IsZero() {
		d := openapi_types.Date{Time: agg.MaxDate}
		body.MaxDate = &d
	}
	return body
}

// remoteIdentity extracts the submitter's address from the request.
// chi's RealIP middleware has already rewritten RemoteAddr from
// X-Forwarded-For / X-Real-IP when running behind a proxy.
func remoteIdentity(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr had no port — use it as-is.
		return r.RemoteAddr
	}
	return host
}

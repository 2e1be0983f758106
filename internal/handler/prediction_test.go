package handler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datecast/backend/internal/domain"
	"github.com/datecast/backend/internal/handler"
)

func day(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

// mockServicer is a hand-written test double for handler.PredictionServicer.
// Each method is a function field — set only the ones your test needs.
type mockServicer struct {
	submit    func(ctx context.Context, rawIdentity, challengeToken string, observedDate time.Time) (domain.SubmissionResult, error)
	revise    func(ctx context.Context, updateToken uuid.UUID, observedDate time.Time) (domain.SubmissionResult, error)
	aggregate func(ctx context.Context) (domain.Aggregate, error)
	status    func(ctx context.Context) (domain.StatusResult, error)
}

func (m *mockServicer) Submit(ctx context.Context, rawIdentity, challengeToken string, observedDate time.Time) (domain.SubmissionResult, error) {
	return m.submit(ctx, rawIdentity, challengeToken, observedDate)
}
func (m *mockServicer) Revise(ctx context.Context, updateToken uuid.UUID, observedDate time.Time) (domain.SubmissionResult, error) {
	return m.revise(ctx, updateToken, observedDate)
}
func (m *mockServicer) Aggregate(ctx context.Context) (domain.Aggregate, error) {
	return m.aggregate(ctx)
}
func (m *mockServicer) Status(ctx context.Context) (domain.StatusResult, error) {
	return m.status(ctx)
}

var _ handler.PredictionServicer = (*mockServicer)(nil)

func sampleResult() domain.SubmissionResult {
	return domain.SubmissionResult{
		Observation: domain.Observation{
			IdentityToken:    "deadbeef",
			ObservedDate:     day(2027, 6, 1),
			Weight:           1.0,
			UpdateToken:      uuid.MustParse("6f1a3f5e-8f55-4b68-b2ce-5b6f2f3f2f01"),
			FirstSubmittedAt: day(2026, 1, 2),
			LastUpdatedAt:    day(2026, 1, 2),
		},
		Aggregate: domain.Aggregate{
			MedianDate: day(2027, 6, 1),
			MinDate:    day(2027, 1, 1),
			MaxDate:    day(2099, 1, 1),
			TotalCount: 3,
			ComputedAt: day(2026, 1, 2),
		},
		DaysDifference: 0,
		Comparison:     domain.ComparisonAligned,
	}
}

func doRequest(t *testing.T, svc handler.PredictionServicer, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	handler.NewServer(svc).Routes().ServeHTTP(rec, req)
	return rec
}

// ---- Create ------------------------------------------------------------------

func TestCreatePrediction_Created(t *testing.T) {
	var gotIdentity, gotChallenge string
	var gotDate time.Time
	svc := &mockServicer{
		submit: func(_ context.Context, rawIdentity, challengeToken string, date time.Time) (domain.SubmissionResult, error) {
			gotIdentity, gotChallenge, gotDate = rawIdentity, challengeToken, date
			return sampleResult(), nil
		},
	}

	rec := doRequest(t, svc, http.MethodPost, "/api/predictions",
		`{"predicted_date":"2027-06-01","challenge_token":"tok-1"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	// httptest requests carry RemoteAddr "192.0.2.1:1234" — the handler must
	// strip the port before handing the address to the core.
	assert.Equal(t, "192.0.2.1", gotIdentity)
	assert.Equal(t, "tok-1", gotChallenge)
	assert.True(t, gotDate.Equal(day(2027, 6, 1)))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "6f1a3f5e-8f55-4b68-b2ce-5b6f2f3f2f01", body["update_token"])
	assert.Equal(t, "aligned", body["comparison"])

	observation, ok := body["observation"].(map[string]any)
	require.True(t, ok, "observation object expected")
	assert.Equal(t, "2027-06-01", observation["predicted_date"])
	assert.NotContains(t, observation, "identity_token", "identity must never leave the server")

	aggregate, ok := body["aggregate"].(map[string]any)
	require.True(t, ok, "aggregate object expected")
	assert.Equal(t, "2027-06-01", aggregate["median_date"])
	assert.EqualValues(t, 3, aggregate["total_count"])
}

func TestCreatePrediction_MalformedBody(t *testing.T) {
	svc := &mockServicer{
		submit: func(context.Context, string, string, time.Time) (domain.SubmissionResult, error) {
			t.Fatal("service must not be called for malformed bodies")
			return domain.SubmissionResult{}, nil
		},
	}

	rec := doRequest(t, svc, http.MethodPost, "/api/predictions", `{not json`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCreatePrediction_MalformedDate(t *testing.T) {
	svc := &mockServicer{
		submit: func(context.Context, string, string, time.Time) (domain.SubmissionResult, error) {
			t.Fatal("service must not be called for malformed dates")
			return domain.SubmissionResult{}, nil
		},
	}

	rec := doRequest(t, svc, http.MethodPost, "/api/predictions",
		`{"predicted_date":"June 1st, 2027"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCreatePrediction_DuplicateIdentity(t *testing.T) {
	svc := &mockServicer{
		submit: func(context.Context, string, string, time.Time) (domain.SubmissionResult, error) {
			return domain.SubmissionResult{}, fmt.Errorf("service.PredictionService.Submit: %w", domain.ErrDuplicateIdentity)
		},
	}

	rec := doRequest(t, svc, http.MethodPost, "/api/predictions",
		`{"predicted_date":"2027-06-01"}`)

	require.Equal(t, http.StatusConflict, rec.Code)

	var body map[string]map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "duplicate_identity", body["error"]["code"])
	assert.Contains(t, body["error"]["message"], "update token", "message must be actionable")
}

func TestCreatePrediction_ValidationError(t *testing.T) {
	svc := &mockServicer{
		submit: func(context.Context, string, string, time.Time) (domain.SubmissionResult, error) {
			return domain.SubmissionResult{}, fmt.Errorf("service.PredictionService.Submit: %w",
				domain.Validationf("prediction date must be between years 1900 and 9999"))
		},
	}

	rec := doRequest(t, svc, http.MethodPost, "/api/predictions",
		`{"predicted_date":"9999-12-31"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body map[string]map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "validation_error", body["error"]["code"])
	assert.Equal(t, "prediction date must be between years 1900 and 9999", body["error"]["message"])
}

// TestCreatePrediction_ValidationMessage_NoInternalPrefixes verifies that the
// submitter-facing message survives arbitrary wrap depth unchanged: extra
// layers add their own prefixes to the error string, but the response carries
// only the ValidationError text.
func TestCreatePrediction_ValidationMessage_NoInternalPrefixes(t *testing.T) {
	svc := &mockServicer{
		submit: func(context.Context, string, string, time.Time) (domain.SubmissionResult, error) {
			inner := fmt.Errorf("identity.Hasher.Hash: %w", domain.Validationf("raw identity is empty"))
			return domain.SubmissionResult{}, fmt.Errorf("service.PredictionService.Submit: %w", inner)
		},
	}

	rec := doRequest(t, svc, http.MethodPost, "/api/predictions",
		`{"predicted_date":"2027-06-01"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body map[string]map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "raw identity is empty", body["error"]["message"])
	assert.NotContains(t, rec.Body.String(), "service.PredictionService")
	assert.NotContains(t, rec.Body.String(), "identity.Hasher")
}

func TestCreatePrediction_InternalError(t *testing.T) {
	svc := &mockServicer{
		submit: func(context.Context, string, string, time.Time) (domain.SubmissionResult, error) {
			return domain.SubmissionResult{}, fmt.Errorf("db exploded")
		},
	}

	rec := doRequest(t, svc, http.MethodPost, "/api/predictions",
		`{"predicted_date":"2027-06-01"}`)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db exploded", "internals must not leak")
}

// ---- Revise ------------------------------------------------------------------

func TestRevisePrediction_OK(t *testing.T) {
	want := uuid.MustParse("6f1a3f5e-8f55-4b68-b2ce-5b6f2f3f2f01")
	var gotToken uuid.UUID
	svc := &mockServicer{
		revise: func(_ context.Context, token uuid.UUID, _ time.Time) (domain.SubmissionResult, error) {
			gotToken = token
			return sampleResult(), nil
		},
	}

	rec := doRequest(t, svc, http.MethodPut, "/api/predictions/"+want.String(),
		`{"predicted_date":"2028-01-01"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, want, gotToken)
}

func TestRevisePrediction_BadToken(t *testing.T) {
	svc := &mockServicer{
		revise: func(context.Context, uuid.UUID, time.Time) (domain.SubmissionResult, error) {
			t.Fatal("service must not be called for malformed tokens")
			return domain.SubmissionResult{}, nil
		},
	}

	rec := doRequest(t, svc, http.MethodPut, "/api/predictions/not-a-uuid",
		`{"predicted_date":"2028-01-01"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestRevisePrediction_NotFound(t *testing.T) {
	svc := &mockServicer{
		revise: func(context.Context, uuid.UUID, time.Time) (domain.SubmissionResult, error) {
			return domain.SubmissionResult{}, fmt.Errorf("service.PredictionService.Revise: %w", domain.ErrTokenNotFound)
		},
	}

	rec := doRequest(t, svc, http.MethodPut, "/api/predictions/"+uuid.NewString(),
		`{"predicted_date":"2028-01-01"}`)

	require.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "token_not_found", body["error"]["code"])
	assert.Contains(t, body["error"]["message"], "not found for this token")
}

// ---- Reads -------------------------------------------------------------------

func TestGetAggregate(t *testing.T) {
	svc := &mockServicer{
		aggregate: func(context.Context) (domain.Aggregate, error) {
			return sampleResult().Aggregate, nil
		},
	}

	rec := doRequest(t, svc, http.MethodGet, "/api/aggregate", "")

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "2027-06-01", body["median_date"])
	assert.Equal(t, "2027-01-01", body["min_date"])
	assert.Equal(t, "2099-01-01", body["max_date"])
	assert.EqualValues(t, 3, body["total_count"])
}

func TestGetAggregate_EmptyLedgerOmitsMinMax(t *testing.T) {
	svc := &mockServicer{
		aggregate: func(context.Context) (domain.Aggregate, error) {
			return domain.Aggregate{MedianDate: day(2026, 11, 19), ComputedAt: time.Now()}, nil
		},
	}

	rec := doRequest(t, svc, http.MethodGet, "/api/aggregate", "")

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "2026-11-19", body["median_date"], "median is concrete even with no data")
	assert.NotContains(t, body, "min_date")
	assert.NotContains(t, body, "max_date")
}

func TestGetStatus(t *testing.T) {
	svc := &mockServicer{
		status: func(context.Context) (domain.StatusResult, error) {
			return domain.StatusResult{Label: domain.StatusDelayLikely, ColorTag: "orange", DaysDifference: 90}, nil
		},
	}

	rec := doRequest(t, svc, http.MethodGet, "/api/status", "")

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "delay_likely", body["label"])
	assert.Equal(t, "orange", body["color_tag"])
	assert.EqualValues(t, 90, body["days_difference"])
}

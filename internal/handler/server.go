// Package handler implements the HTTP handlers for the Datecast API.
// All handlers are methods on Server; routing is declared in Routes.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/datecast/backend/internal/domain"
)

// PredictionServicer defines the business operations the handlers depend on.
// Defining the interface here (in the consumer package) follows the Go
// convention: "accept interfaces, return concrete types". It lets handler
// tests inject a mock without touching the database or service layer.
type PredictionServicer interface {
	Submit(ctx context.Context, rawIdentity, challengeToken string, observedDate time.Time) (domain.SubmissionResult, error)
	Revise(ctx context.Context, updateToken uuid.UUID, observedDate time.Time) (domain.SubmissionResult, error)
	Aggregate(ctx context.Context) (domain.Aggregate, error)
	Status(ctx context.Context) (domain.StatusResult, error)
}

// Server holds the handler dependencies. Methods are in domain-specific files
// but all operate on this struct.
type Server struct {
	predictions PredictionServicer
}

// NewServer constructs the Server with all its dependencies.
func NewServer(predictions PredictionServicer) *Server {
	return &Server{predictions: predictions}
}

// Routes returns the router for all API endpoints.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", s.GetHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/predictions", s.CreatePrediction)
		r.Put("/predictions/{updateToken}", s.RevisePrediction)
		r.Get("/aggregate", s.GetAggregate)
		r.Get("/status", s.GetStatus)
	})

	return r
}

// writeJSON serializes v with the given status code. Encoding failures are
// not recoverable at this point (headers are already out), so they are
// swallowed; chi's Recoverer has nothing to catch here.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

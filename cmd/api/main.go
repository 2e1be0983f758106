// Package main is the entry point for the Datecast API server.
// Its sole responsibility is wiring dependencies together and starting the server.
// No business logic belongs here.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" driver for database/sql (goose)
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"

	"github.com/datecast/backend/internal/cache"
	"github.com/datecast/backend/internal/config"
	"github.com/datecast/backend/internal/domain"
	"github.com/datecast/backend/internal/handler"
	"github.com/datecast/backend/internal/identity"
	"github.com/datecast/backend/internal/metrics"
	"github.com/datecast/backend/internal/middleware"
	"github.com/datecast/backend/internal/repo"
	"github.com/datecast/backend/internal/service"
	"github.com/datecast/backend/internal/verify"
	"github.com/datecast/backend/migrations"
	"github.com/datecast/backend/spec"
)

// maxBodyBytes caps prediction request bodies. A date plus a challenge token
// fits in well under a kilobyte; 4 KiB leaves headroom for token growth.
const maxBodyBytes = 4 << 10

func main() {
	// --- Config -----------------------------------------------------------
	// .env is a development convenience; in production the variables come
	// from the environment and the file simply does not exist.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		// Use plain stderr before the logger is configured.
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	// --- Logger -----------------------------------------------------------
	// log/slog is the stdlib structured logger introduced in Go 1.21.
	// JSON handler writes machine-readable output suitable for log aggregators.
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// --- Database ---------------------------------------------------------
	// pgxpool manages a pool of Postgres connections.
	// New() does not open connections immediately — the first query does.
	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Verify the DB is reachable before accepting traffic. The bounded
	// exponential backoff covers the common deploy race where the database
	// container comes up a few seconds after the API.
	backoff := retry.WithMaxRetries(5, retry.NewExponential(500*time.Millisecond))
	err = retry.Do(context.Background(), backoff, func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			slog.Warn("database not ready, retrying", "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	slog.Info("database connection established")

	if err := runMigrations(cfg.DatabaseURL); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("migrations applied")

	// --- Metrics ----------------------------------------------------------
	registry := metrics.NewRegistry()
	predictionMetrics := metrics.NewPredictionMetrics(registry)
	cacheMetrics := metrics.NewCacheMetrics(registry)

	// --- Services ---------------------------------------------------------
	ledger := repo.NewObservationRepo(pool)

	aggregates := cache.New(ledger, clockwork.NewRealClock(), cfg.AggregateTTL, cfg.TargetDate, cacheMetrics)

	var verifier verify.Verifier
	if cfg.ChallengeURL != "" {
		verifier = verify.NewChallengeVerifier(cfg.ChallengeURL, cfg.ChallengeSecret, cfg.ChallengeTimeout)
	} else {
		// Development mode: every submission is admitted unverified.
		slog.Warn("CHALLENGE_URL not set, bot verification disabled")
		verifier = verify.AllowAll{}
	}

	predictions := service.NewPredictionService(
		ledger,
		aggregates,
		identity.NewHasher(cfg.IdentitySalt),
		verifier,
		service.Config{
			TargetDate:    cfg.TargetDate,
			MinSampleSize: cfg.MinSampleSize,
			Weights:       domain.DefaultWeightPolicy(),
		},
		predictionMetrics,
	)

	// --- Router -----------------------------------------------------------
	// Middleware is applied in order: RequestID → RealIP → Logger → Recoverer → CORS → body cap.
	// RequestID generates a unique trace ID per request.
	// RealIP sets r.RemoteAddr from X-Forwarded-For / X-Real-IP (safe behind a
	// proxy) — the identity hash is derived from it, so the proxy chain must
	// be trusted.
	// SlogLogger writes one structured JSON log line per request.
	// Recoverer catches panics and returns HTTP 500 instead of crashing.
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewSlogLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewCORSHandler(cfg.CORSOrigins))
	r.Use(middleware.NewMaxBodySizeHandler(maxBodyBytes))

	r.Mount("/", handler.NewServer(predictions).Routes())
	r.Method(http.MethodGet, "/metrics", metrics.Handler(registry))
	r.Get("/openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(spec.OpenAPI)
	})

	// --- HTTP Server ------------------------------------------------------
	// Explicit timeouts prevent slowloris and resource exhaustion attacks.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown: wait for OS signal, then give in-flight requests
	// up to 15 seconds to complete before forcefully closing.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", srv.Addr, "target_date", cfg.TargetDate.Format("2006-01-02"))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-stop
	slog.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// runMigrations applies all pending migrations from the embedded FS.
// goose needs a database/sql connection, so a short-lived one is opened
// alongside the pgx pool and closed once the schema is current.
func runMigrations(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	if err != nil {
		return err
	}

	_, err = provider.Up(context.Background())
	return err
}

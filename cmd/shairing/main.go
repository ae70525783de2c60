package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"shairing/internal/building"
	"shairing/internal/httpmw"
	"shairing/internal/lifecycle"
	"shairing/internal/logging"
	"shairing/internal/registry"
	"shairing/internal/residents"
	"shairing/internal/telemetry"
)

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func main() {
	logging.Setup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		shutdown, err := telemetry.Setup(ctx, "shairing", endpoint)
		if err != nil {
			slog.Error("telemetry setup failed", "error", err)
			os.Exit(1)
		}
		defer shutdown(context.Background())
		slog.Info("tracing enabled", "endpoint", endpoint)
	}

	var (
		ledger    lifecycle.Ledger
		items     registry.Service
		directory residents.Service
		err       error
	)
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		db, dbErr := sql.Open("postgres", dbURL)
		if dbErr != nil {
			slog.Error("database open failed", "error", dbErr)
			os.Exit(1)
		}
		defer db.Close()
		if pingErr := db.PingContext(ctx); pingErr != nil {
			slog.Error("database unreachable", "error", pingErr)
			os.Exit(1)
		}

		ledger, err = lifecycle.NewPostgresLedger(db)
		if err == nil {
			items, err = registry.NewPostgresService(db, lifecycle.ReferenceChecker(ledger))
		}
		if err == nil {
			directory, err = residents.NewPostgresService(db)
		}
		if err != nil {
			slog.Error("storage setup failed", "error", err)
			os.Exit(1)
		}
		slog.Info("storage initialized", "backend", "postgres")
	} else {
		ledger = lifecycle.NewMemoryLedger()
		items = registry.NewMemoryService(lifecycle.ReferenceChecker(ledger))
		directory = residents.NewMemoryService()
		slog.Info("storage initialized", "backend", "memory")
	}

	ttl, err := time.ParseDuration(getEnv("REQUEST_TTL", "0s"))
	if err != nil {
		slog.Error("invalid REQUEST_TTL", "error", err)
		os.Exit(1)
	}
	svc := lifecycle.NewService(ledger, items, directory, lifecycle.Config{RequestTTL: ttl})

	flats, err := strconv.Atoi(getEnv("BUILDING_FLATS", "0"))
	if err != nil {
		slog.Error("invalid BUILDING_FLATS", "error", err)
		os.Exit(1)
	}
	buildingSvc := building.NewService(building.Info{
		ID:         getEnv("BUILDING_ID", "main"),
		Name:       getEnv("BUILDING_NAME", "shAIring House"),
		City:       getEnv("BUILDING_CITY", ""),
		FlatsCount: flats,
	}, items, directory, ledger)

	rps, err := strconv.ParseFloat(getEnv("RATE_LIMIT_RPS", "0"), 64)
	if err != nil {
		slog.Error("invalid RATE_LIMIT_RPS", "error", err)
		os.Exit(1)
	}

	r := chi.NewRouter()
	r.Use(httpmw.Logging, httpmw.Metrics, httpmw.RateLimit(rps))
	r.Route("/api", func(r chi.Router) {
		r.Mount("/items", registry.NewHandler(items).Routes())
		r.Mount("/residents", residents.NewHandler(directory).Routes())
		r.Mount("/borrowings", lifecycle.NewHandler(svc).Routes())
		r.Get("/building-state", building.NewHandler(buildingSvc).HandleState)
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.Handler())

	addr := getEnv("ADDR", ":8080")
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown failed", "error", err)
	}
}

// Package main implements the part pricing API server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/WessleyAI/wessley-parts/engine/bootstrap"
	"github.com/WessleyAI/wessley-parts/engine/domain"
	"github.com/WessleyAI/wessley-parts/pkg/config"
	"github.com/WessleyAI/wessley-parts/pkg/mid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close(context.Background())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth(app))
	mux.HandleFunc("GET /api/part", handlePart(app.Engine, cfg.RequestTimeout, logger))
	mux.Handle("GET /metrics", app.Metrics.Handler())

	handler := mid.Chain(mid.Routes(mux),
		mid.RequestID(),
		mid.Recover(logger),
		mid.Logger(logger, app.Metrics),
		mid.CORS(cfg.CORSOrigin),
		mid.OTel("parts-api"),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// --- Handlers ---

type breakerReporter interface {
	Breakers() map[string]string
}

// handleHealth reports liveness and the breaker state of each marketplace.
func handleHealth(b breakerReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"status": "ok", "breakers": b.Breakers()})
	}
}

// pricer is the engine surface the part handler needs.
type pricer interface {
	ResolveAndPrice(ctx context.Context, query string) (domain.Result, error)
}

// handlePart prices ?q=. Pricing, scraping included, is cancelled after
// timeout.
func handlePart(p pricer, timeout time.Duration, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		res, err := p.ResolveAndPrice(ctx, r.URL.Query().Get("q"))
		var verr *domain.ValidationError
		switch {
		case err == nil:
		case errors.As(err, &verr):
			writeError(w, http.StatusBadRequest, verr.Wrapped.Error())
			return
		case errors.Is(err, context.DeadlineExceeded):
			logger.Warn("part request timed out", "request_id", mid.RequestIDFrom(r.Context()), "timeout", timeout)
			writeError(w, http.StatusGatewayTimeout, "request timed out")
			return
		case errors.Is(err, context.Canceled):
			logger.Info("part request abandoned", "request_id", mid.RequestIDFrom(r.Context()), "err", err)
			writeError(w, http.StatusServiceUnavailable, "request cancelled")
			return
		default:
			logger.Error("part pricing failed", "request_id", mid.RequestIDFrom(r.Context()), "err", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(res)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

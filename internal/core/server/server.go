// Package server wires the placement HTTP routes onto chi and runs them.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/cache-placement/internal/core/config"
	"github.com/mohammed-shakir/cache-placement/internal/core/health"
	middleware "github.com/mohammed-shakir/cache-placement/internal/core/middleware"
	"github.com/mohammed-shakir/cache-placement/internal/core/router"
)

type Deps struct {
	Solver  router.Solver
	Metrics http.Handler
	Checks  map[string]health.Check
}

// NewRouter builds the route table. Metrics is mounted only when non-nil.
func NewRouter(cfg config.Config, logger *slog.Logger, d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS())

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(2*time.Second, d.Checks))
	if d.Metrics != nil {
		path := cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, d.Metrics)
	}
	r.Get("/strategies", router.HandleStrategies())
	r.Post("/solve", router.HandleSolve(logger, cfg, d.Solver))
	return r
}

// Run serves until ctx is done, then shuts down gracefully.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, d Deps) error {
	writeTimeout := 60 * time.Second
	if cfg.SolveTimeout+10*time.Second > writeTimeout {
		writeTimeout = cfg.SolveTimeout + 10*time.Second
	}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           NewRouter(cfg, logger, d),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", "err", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}

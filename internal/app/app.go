// Package app assembles a solver and its optional Redis and Kafka outputs
// from configuration. Both binaries start here.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mohammed-shakir/cache-placement/internal/core/config"
	"github.com/mohammed-shakir/cache-placement/internal/core/health"
	"github.com/mohammed-shakir/cache-placement/internal/events"
	"github.com/mohammed-shakir/cache-placement/internal/parser"
	"github.com/mohammed-shakir/cache-placement/internal/solver"
	"github.com/mohammed-shakir/cache-placement/internal/store/redisstore"
)

type App struct {
	Solver *solver.Solver
	Checks map[string]health.Check

	closers []func() error
}

// New connects the outputs enabled in cfg. An enabled output that cannot be
// reached is an error; nothing is left open in that case.
func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	a := &App{Checks: map[string]health.Check{}}
	var opts []solver.Option

	if cfg.Redis.Enabled {
		pctx, cancel := context.WithTimeout(ctx, cfg.Redis.OpTimeout)
		rc, err := redisstore.New(pctx, cfg.Redis.Addr, redisOptions(cfg.Redis)...)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("assignment sink: %w", err)
		}
		a.closers = append(a.closers, rc.Close)
		a.Checks["redis"] = rc.Ping
		opts = append(opts, solver.WithSink(rc))
		log.Info("assignment sink enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.TTL)
	}

	if cfg.Events.Enabled {
		if len(cfg.Events.Brokers) == 0 {
			_ = a.Close()
			return nil, errors.New("placement events: KAFKA_BROKERS is empty")
		}
		pub, err := events.NewPublisher(cfg.Events.Brokers, cfg.Events.Topic, cfg.Events.QueueSize, log)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("placement events: %w", err)
		}
		a.closers = append(a.closers, pub.Close)
		opts = append(opts, solver.WithPublisher(pub))
		log.Info("placement events enabled", "brokers", cfg.Events.Brokers, "topic", cfg.Events.Topic)
	}

	s, err := solver.New(solver.Config{
		Strategy:        cfg.Strategy,
		Policy:          cfg.ScoringPolicy,
		SkipNonPositive: cfg.SkipNonPositive,
		MaxIterations:   cfg.AmendMaxIter,
		MemoSize:        cfg.MemoSize,
		SinkTTL:         cfg.Redis.TTL,
		SinkTimeout:     cfg.Redis.OpTimeout,
		Limits: parser.Limits{
			MaxCaches: cfg.MaxCaches,
			MaxPairs:  cfg.MaxPairs,
		},
	}, log, opts...)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Solver = s
	return a, nil
}

// redisOptions bounds every round trip by the configured op timeout.
func redisOptions(rc config.RedisCfg) []redisstore.Option {
	var opts []redisstore.Option
	if rc.OpTimeout > 0 {
		opts = append(opts,
			redisstore.WithDialTimeout(rc.OpTimeout),
			redisstore.WithReadTimeout(rc.OpTimeout),
			redisstore.WithWriteTimeout(rc.OpTimeout),
		)
	}
	if rc.PoolSize > 0 {
		opts = append(opts, redisstore.WithPoolSize(rc.PoolSize))
	}
	return opts
}

// Close releases outputs in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

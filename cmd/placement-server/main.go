package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mohammed-shakir/cache-placement/internal/app"
	"github.com/mohammed-shakir/cache-placement/internal/core/config"
	"github.com/mohammed-shakir/cache-placement/internal/core/observability"
	"github.com/mohammed-shakir/cache-placement/internal/core/server"
	"github.com/mohammed-shakir/cache-placement/internal/logger"
	"github.com/mohammed-shakir/cache-placement/internal/metrics"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// overriding default strategy via flag
	strategyFlag := flag.String("strategy", "", "default placement strategy")
	flag.Parse()

	cfg := config.FromEnv()
	if *strategyFlag != "" {
		cfg.Strategy = strings.TrimSpace(*strategyFlag)
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Component: "placement-server",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// /metrics is served on the API listener; METRICS_ADDR only matters for the batch tool
	p := metrics.Init(metrics.Config{
		Enabled: cfg.Metrics.Enabled,
		Addr:    cfg.Metrics.Addr,
		Path:    cfg.Metrics.Path,
		Build:   metrics.BuildInfo{Version: Version, Revision: os.Getenv("BUILD_REVISION"), BuildDate: os.Getenv("BUILD_DATE")},
	})
	observability.Init(p.Registerer(), cfg.Metrics.Enabled)

	a, err := app.New(ctx, cfg, appLog)
	if err != nil {
		appLog.Error("setup failed", "err", err)
		return 1
	}
	defer func() {
		if err := a.Close(); err != nil {
			appLog.Warn("close outputs", "err", err)
		}
	}()

	appLog.Info("starting placement server",
		"addr", cfg.Addr,
		"version", Version,
		"strategy", cfg.Strategy,
		"policy", cfg.ScoringPolicy,
		"metrics", cfg.Metrics.Enabled)

	deps := server.Deps{Solver: a.Solver, Checks: a.Checks}
	if cfg.Metrics.Enabled {
		deps.Metrics = p.Handler()
	}
	if err := server.Run(ctx, cfg, appLog, deps); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}

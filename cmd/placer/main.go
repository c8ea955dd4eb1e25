package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mohammed-shakir/cache-placement/internal/app"
	"github.com/mohammed-shakir/cache-placement/internal/core/config"
	"github.com/mohammed-shakir/cache-placement/internal/core/observability"
	"github.com/mohammed-shakir/cache-placement/internal/logger"
	"github.com/mohammed-shakir/cache-placement/internal/metrics"
	"github.com/mohammed-shakir/cache-placement/internal/placement/strategy"
	"github.com/mohammed-shakir/cache-placement/internal/solver"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.FromEnv()

	strategyFlag := flag.String("strategy", cfg.Strategy, "placement strategy ("+strings.Join(strategy.Names(), ", ")+")")
	policyFlag := flag.String("policy", cfg.ScoringPolicy, "scoring policy (pure, cost, audience)")
	inFlag := flag.String("in", cfg.InputDir, "directory holding the .in files")
	outFlag := flag.String("out", cfg.OutputDir, "directory the .out files are written to")
	allFlag := flag.Bool("all", false, "solve every .in file in -in instead of the default problem set")
	flag.Parse()

	cfg.Strategy = strings.TrimSpace(*strategyFlag)
	cfg.ScoringPolicy = strings.TrimSpace(*policyFlag)
	cfg.InputDir = *inFlag
	cfg.OutputDir = *outFlag

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Strategy:  cfg.Strategy,
		Component: "placer",
	}, os.Stderr)
	appLog := logger.NewSlog(&zl)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Enabled {
		p := metrics.Init(metrics.Config{
			Enabled: true,
			Addr:    cfg.Metrics.Addr,
			Path:    cfg.Metrics.Path,
			Build:   metrics.BuildInfo{Version: Version, Revision: os.Getenv("BUILD_REVISION"), BuildDate: os.Getenv("BUILD_DATE")},
		})
		observability.Init(p.Registerer(), true)
		go func() {
			if err := p.Serve(ctx, appLog); err != nil {
				appLog.Error("metrics server exited", "err", err)
			}
		}()
	}

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

	names := solver.DefaultInputs
	if *allFlag {
		names, err = solver.ListInputs(cfg.InputDir)
		if err != nil {
			appLog.Error("list inputs", "err", err)
			return 1
		}
	}

	appLog.Info("starting batch",
		"version", Version,
		"policy", cfg.ScoringPolicy,
		"in", cfg.InputDir,
		"out", cfg.OutputDir,
		"inputs", len(names))

	results, err := a.Solver.RunBatch(ctx, cfg.InputDir, cfg.OutputDir, names, solver.Request{})
	if err != nil {
		appLog.Error("batch aborted", "err", err)
		return 1
	}

	failed := 0
	var total int64
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(os.Stdout, "%-28s FAILED %v\n", r.Input, r.Err)
			continue
		}
		total += r.Result.Eval.Score
		fmt.Fprintf(os.Stdout, "%-28s score=%-10d placed=%-6d caches=%-4d %s\n",
			r.Input, r.Result.Eval.Score, r.Result.Stats.Placed, r.Result.Assignment.Used(), r.Output)
	}
	fmt.Fprintf(os.Stdout, "total score %d\n", total)

	if failed > 0 {
		return 1
	}
	return 0
}

package app

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/mohammed-shakir/cache-placement/internal/core/config"
	"github.com/mohammed-shakir/cache-placement/internal/solver"
	"github.com/mohammed-shakir/cache-placement/internal/store/keys"
)

const tiny = "2 1 1 1 100\n50 60\n1000 1\n0 100\n1 0 10\n"

func baseCfg() config.Config {
	return config.Config{
		Strategy:      "descent",
		ScoringPolicy: "pure",
		Redis:         config.RedisCfg{TTL: time.Hour, OpTimeout: time.Second},
	}
}

func TestNew_NoOutputs(t *testing.T) {
	a, err := New(context.Background(), baseCfg(), slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = a.Close() }()
	if len(a.Checks) != 0 {
		t.Fatalf("no checks expected, got %v", a.Checks)
	}
	if _, err := a.Solver.Solve(context.Background(), solver.Request{Raw: []byte(tiny)}); err != nil {
		t.Fatalf("Solve: %v", err)
	}
}

func TestNew_RedisSinkPublishes(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	cfg := baseCfg()
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = mr.Addr()

	a, err := New(context.Background(), cfg, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = a.Close() }()

	if err := a.Checks["redis"](context.Background()); err != nil {
		t.Fatalf("redis check: %v", err)
	}

	res, err := a.Solver.Solve(context.Background(), solver.Request{Name: "tiny.in", Raw: []byte(tiny)})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	got, err := mr.Get(keys.CacheKey(res.RunKey, 0))
	if err != nil || got != "1" {
		t.Fatalf("cache 0 key=%q err=%v", got, err)
	}
	if ttl := mr.TTL(keys.CacheKey(res.RunKey, 0)); ttl != time.Hour {
		t.Fatalf("ttl=%v", ttl)
	}
}

func TestNew_UnreachableRedisFails(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	addr := mr.Addr()
	mr.Close()

	cfg := baseCfg()
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = addr
	if _, err := New(context.Background(), cfg, slog.New(slog.DiscardHandler)); err == nil {
		t.Fatalf("expected error for unreachable redis")
	}
}

func TestNew_EventsWithoutBrokers(t *testing.T) {
	cfg := baseCfg()
	cfg.Events.Enabled = true
	_, err := New(context.Background(), cfg, slog.New(slog.DiscardHandler))
	if err == nil || !strings.Contains(err.Error(), "KAFKA_BROKERS") {
		t.Fatalf("err=%v", err)
	}
}

func TestNew_UnknownStrategy(t *testing.T) {
	cfg := baseCfg()
	cfg.Strategy = "annealing"
	if _, err := New(context.Background(), cfg, slog.New(slog.DiscardHandler)); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRedisOptions_UseOpTimeoutAndPool(t *testing.T) {
	var ro redis.Options
	for _, o := range redisOptions(config.RedisCfg{OpTimeout: 750 * time.Millisecond, PoolSize: 3}) {
		o(&ro)
	}
	if ro.DialTimeout != 750*time.Millisecond || ro.ReadTimeout != 750*time.Millisecond || ro.WriteTimeout != 750*time.Millisecond {
		t.Fatalf("timeouts dial=%v read=%v write=%v", ro.DialTimeout, ro.ReadTimeout, ro.WriteTimeout)
	}
	if ro.PoolSize != 3 {
		t.Fatalf("pool=%d", ro.PoolSize)
	}

	if opts := redisOptions(config.RedisCfg{}); len(opts) != 0 {
		t.Fatalf("zero config should keep client defaults, got %d options", len(opts))
	}
}

func TestNew_InputLimitsReachSolver(t *testing.T) {
	cfg := baseCfg()
	cfg.MaxCaches = 1
	a, err := New(context.Background(), cfg, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = a.Close() }()

	if _, err := a.Solver.Solve(context.Background(), solver.Request{Raw: []byte(tiny)}); err != nil {
		t.Fatalf("one cache is within the limit: %v", err)
	}
	twoCaches := "1 0 0 2 100\n50\n"
	_, err = a.Solver.Solve(context.Background(), solver.Request{Raw: []byte(twoCaches)})
	if !errors.Is(err, solver.ErrBadRequest) {
		t.Fatalf("err=%v, want ErrBadRequest", err)
	}
}

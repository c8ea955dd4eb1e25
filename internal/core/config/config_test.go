package config

import (
	"reflect"
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg := FromEnv()
	if cfg.Strategy != "descent" || cfg.ScoringPolicy != "pure" {
		t.Fatalf("strategy/policy defaults: %q/%q", cfg.Strategy, cfg.ScoringPolicy)
	}
	if cfg.Redis.Enabled || cfg.Events.Enabled || cfg.Metrics.Enabled {
		t.Fatalf("sinks must be off by default: %+v", cfg)
	}
	if cfg.MemoSize != 32 || cfg.AmendMaxIter != 0 {
		t.Fatalf("memo=%d iter=%d", cfg.MemoSize, cfg.AmendMaxIter)
	}
	if cfg.MaxCaches != 10_000 || cfg.MaxPairs != 1<<23 {
		t.Fatalf("limits: caches=%d pairs=%d", cfg.MaxCaches, cfg.MaxPairs)
	}
	if cfg.Redis.PoolSize != 16 {
		t.Fatalf("redis pool=%d", cfg.Redis.PoolSize)
	}
}

func TestFromEnv_InputLimits(t *testing.T) {
	t.Setenv("MAX_CACHES", "64")
	t.Setenv("MAX_PAIRS", "4096")
	t.Setenv("REDIS_POOL_SIZE", "4")

	cfg := FromEnv()
	if cfg.MaxCaches != 64 || cfg.MaxPairs != 4096 {
		t.Fatalf("limits: caches=%d pairs=%d", cfg.MaxCaches, cfg.MaxPairs)
	}
	if cfg.Redis.PoolSize != 4 {
		t.Fatalf("redis pool=%d", cfg.Redis.PoolSize)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("STRATEGY", "descent-amend")
	t.Setenv("SCORING_POLICY", "audience")
	t.Setenv("SKIP_NON_POSITIVE", "yes")
	t.Setenv("AMEND_MAX_ITERATIONS", "-4")
	t.Setenv("REDIS_TTL", "90s")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", " a:9092, ,b:9092 ")
	t.Setenv("MEMO_SIZE", "not-a-number")

	cfg := FromEnv()
	if cfg.Strategy != "descent-amend" || cfg.ScoringPolicy != "audience" || !cfg.SkipNonPositive {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.AmendMaxIter != 0 {
		t.Fatalf("negative budget should clamp to 0, got %d", cfg.AmendMaxIter)
	}
	if !cfg.Redis.Enabled || cfg.Redis.TTL != 90*time.Second {
		t.Fatalf("redis cfg: %+v", cfg.Redis)
	}
	if want := []string{"a:9092", "b:9092"}; !reflect.DeepEqual(cfg.Events.Brokers, want) {
		t.Fatalf("brokers=%v want %v", cfg.Events.Brokers, want)
	}
	if cfg.MemoSize != 32 {
		t.Fatalf("unparseable value should fall back to default, got %d", cfg.MemoSize)
	}
}

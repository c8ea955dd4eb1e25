package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type RedisCfg struct {
	Enabled   bool
	Addr      string
	TTL       time.Duration
	OpTimeout time.Duration
	PoolSize  int
}

type EventsCfg struct {
	Enabled   bool
	Brokers   []string
	Topic     string
	QueueSize int
}

type MetricsCfg struct {
	Enabled bool
	Addr    string
	Path    string
}

type Config struct {
	Addr            string
	LogLevel        string
	LogConsole      bool
	LogSampleN      int
	InputDir        string
	OutputDir       string
	Strategy        string
	ScoringPolicy   string
	SkipNonPositive bool
	AmendMaxIter    int
	MemoSize        int
	MaxInputBytes   int64
	MaxCaches       int
	MaxPairs        int
	SolveTimeout    time.Duration
	Redis           RedisCfg
	Events          EventsCfg
	Metrics         MetricsCfg
}

func FromEnv() Config {
	memo := getint("MEMO_SIZE", 32)
	if memo < 0 {
		memo = 0
	}
	iter := getint("AMEND_MAX_ITERATIONS", 0)
	if iter < 0 {
		iter = 0
	}

	return Config{
		Addr:            getenv("ADDR", ":8090"),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		LogConsole:      getbool("LOG_CONSOLE", false),
		LogSampleN:      getint("LOG_SAMPLE_N", 0),
		InputDir:        getenv("INPUT_DIR", "resources"),
		OutputDir:       getenv("OUTPUT_DIR", "output"),
		Strategy:        getenv("STRATEGY", "descent"),
		ScoringPolicy:   getenv("SCORING_POLICY", "pure"),
		SkipNonPositive: getbool("SKIP_NON_POSITIVE", false),
		AmendMaxIter:    iter,
		MemoSize:        memo,
		MaxInputBytes:   int64(getint("MAX_INPUT_BYTES", 64<<20)),
		MaxCaches:       getint("MAX_CACHES", 10_000),
		MaxPairs:        getint("MAX_PAIRS", 1<<23),
		SolveTimeout:    getduration("SOLVE_TIMEOUT", 2*time.Minute),
		Redis: RedisCfg{
			Enabled:   getbool("REDIS_ENABLED", false),
			Addr:      getenv("REDIS_ADDR", "localhost:6379"),
			TTL:       getduration("REDIS_TTL", 24*time.Hour),
			OpTimeout: getduration("REDIS_OP_TIMEOUT", 2*time.Second),
			PoolSize:  getint("REDIS_POOL_SIZE", 16),
		},
		Events: EventsCfg{
			Enabled:   getbool("EVENTS_ENABLED", false),
			Brokers:   splitCSV(getenv("KAFKA_BROKERS", "localhost:9092")),
			Topic:     getenv("KAFKA_TOPIC", "placement-events"),
			QueueSize: getint("EVENTS_QUEUE", 256),
		},
		Metrics: MetricsCfg{
			Enabled: getbool("METRICS_ENABLED", false),
			Addr:    getenv("METRICS_ADDR", ":9090"),
			Path:    getenv("METRICS_PATH", "/metrics"),
		},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// "a:9092, b:9092" -> ["a:9092" "b:9092"]
func splitCSV(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Package observability holds the placement service's Prometheus collectors.
// Collectors exist from package init so callers can record unconditionally;
// Init attaches them to a registry when metrics are enabled.
package observability

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "placement_runs_total",
			Help: "Solved inputs by strategy, policy and result.",
		},
		[]string{"strategy", "policy", "result"},
	)

	runDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "placement_run_duration_seconds",
			Help:    "Wall time of one solve, parse to validated assignment.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 16), // 1ms to ~32s
		},
		[]string{"strategy"},
	)

	itemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "placement_items_total",
			Help: "Placement attempts by outcome.",
		},
		[]string{"strategy", "outcome"},
	)

	savedLatency = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "placement_saved_latency",
			Help: "Normalised latency saved by the last assignment (saved*1000/requests).",
		},
		[]string{"strategy"},
	)

	cacheFill = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "placement_cache_fill_ratio",
			Help:    "Fraction of capacity used per cache after a solve.",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"method", "route", "status"},
	)

	sinkOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sink_op_total",
			Help: "Assignment sink operations by result.",
		},
		[]string{"op", "result"},
	)

	sinkOpSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sink_operation_duration_seconds",
			Help:    "Latency of assignment sink operations.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
		[]string{"op"},
	)

	eventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Placement events handed to the producer, by result.",
		},
		[]string{"result"},
	)

	memoLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solver_memo_lookups_total",
			Help: "Solver memo lookups by outcome.",
		},
		[]string{"outcome"},
	)
)

var registered sync.Map // prometheus.Registerer -> struct{}

func collectorsList() []prometheus.Collector {
	return []prometheus.Collector{
		runsTotal, runDurationSeconds, itemsTotal, savedLatency, cacheFill,
		httpRequestsTotal, httpRequestDurationSeconds,
		sinkOps, sinkOpSeconds, eventsPublished, memoLookups,
	}
}

// Init registers the collectors on reg once. Disabled or nil reg is a no-op.
func Init(reg prometheus.Registerer, enabled bool) {
	if !enabled || reg == nil {
		return
	}
	if _, loaded := registered.LoadOrStore(reg, struct{}{}); loaded {
		return
	}
	reg.MustRegister(collectorsList()...)
}

func ObserveRun(strategy, policy string, err error, durationSeconds float64) {
	runsTotal.WithLabelValues(strategy, policy, result(err)).Inc()
	runDurationSeconds.WithLabelValues(strategy).Observe(durationSeconds)
}

func AddAttempts(strategy string, placed, rejected int) {
	if placed > 0 {
		itemsTotal.WithLabelValues(strategy, "placed").Add(float64(placed))
	}
	if rejected > 0 {
		itemsTotal.WithLabelValues(strategy, "rejected").Add(float64(rejected))
	}
}

func SetScore(strategy string, score int64) {
	savedLatency.WithLabelValues(strategy).Set(float64(score))
}

func ObserveCacheFill(used, capacity int) {
	if capacity <= 0 {
		return
	}
	cacheFill.Observe(float64(used) / float64(capacity))
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveSinkOp(op string, err error, durationSeconds float64) {
	sinkOps.WithLabelValues(op, result(err)).Inc()
	sinkOpSeconds.WithLabelValues(op).Observe(durationSeconds)
}

func IncEvent(res string) {
	eventsPublished.WithLabelValues(res).Inc()
}

func IncMemo(hit bool) {
	if hit {
		memoLookups.WithLabelValues("hit").Inc()
		return
	}
	memoLookups.WithLabelValues("miss").Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

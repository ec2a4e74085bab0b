package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "familygrove",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "familygrove",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "familygrove",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	ledgerTransactions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "familygrove",
			Subsystem: "ledger",
			Name:      "transactions_total",
			Help:      "Total number of ledger transactions appended.",
		},
		[]string{"kind"},
	)

	taskCompletions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "familygrove",
			Subsystem: "tasks",
			Name:      "completions_total",
			Help:      "Total number of tasks completed.",
		},
	)

	rewardRedemptions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "familygrove",
			Subsystem: "rewards",
			Name:      "redemptions_total",
			Help:      "Total number of reward redemptions.",
		},
	)

	treesGrown = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "familygrove",
			Subsystem: "trees",
			Name:      "grown_total",
			Help:      "Total number of trees grown to completion.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		ledgerTransactions,
		taskCompletions,
		rewardRedemptions,
		treesGrown,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordTransaction counts one appended ledger transaction by kind.
func RecordTransaction(kind string) {
	if kind == "" {
		kind = "unknown"
	}
	ledgerTransactions.WithLabelValues(kind).Inc()
}

// RecordTaskCompletion counts one completed task.
func RecordTaskCompletion() { taskCompletions.Inc() }

// RecordRedemption counts one reward redemption.
func RecordRedemption() { rewardRedemptions.Inc() }

// RecordTreeGrown counts one fully grown tree.
func RecordTreeGrown() { treesGrown.Inc() }

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// canonicalPath collapses resource IDs out of request paths so the metric
// label set stays bounded.
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	switch len(parts) {
	case 1:
		return "/" + parts[0]
	case 2:
		return "/" + parts[0] + "/:id"
	default:
		return "/" + parts[0] + "/:id/" + parts[2]
	}
}

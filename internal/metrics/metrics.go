package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Upstream request outcomes.
const (
	UpstreamOK           = "ok"
	UpstreamRateLimited  = "rate_limited"
	UpstreamHTTPError    = "http_error"
	UpstreamNetworkError = "network_error"
)

var (
	// Registry holds the collector's Prometheus collectors.
	Registry = prometheus.NewRegistry()

	upstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pricecollector",
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Upstream price API attempts by outcome.",
		},
		[]string{"outcome"},
	)

	backfillResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pricecollector",
			Subsystem: "backfill",
			Name:      "results_total",
			Help:      "Daily price backfill results by mode and outcome.",
		},
		[]string{"mode", "outcome"},
	)

	samples = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pricecollector",
			Subsystem: "sampler",
			Name:      "samples_total",
			Help:      "Instant price samples by status.",
		},
		[]string{"status"},
	)

	jobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pricecollector",
			Subsystem: "scheduler",
			Name:      "job_runs_total",
			Help:      "Scheduled job runs by job and result.",
		},
		[]string{"job", "result"},
	)

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pricecollector",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pricecollector",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pricecollector",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)
)

func init() {
	Registry.MustRegister(
		upstreamRequests,
		backfillResults,
		samples,
		jobRuns,
		httpInFlight,
		httpRequests,
		httpDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// RecordUpstream counts one upstream attempt.
func RecordUpstream(outcome string) {
	upstreamRequests.WithLabelValues(outcome).Inc()
}

// RecordBackfill counts one backfill result.
func RecordBackfill(mode, outcome string) {
	backfillResults.WithLabelValues(mode, outcome).Inc()
}

// RecordSample counts one sampler run.
func RecordSample(status string) {
	samples.WithLabelValues(status).Inc()
}

// RecordJob counts one scheduled job run. result is "ok" or "error".
func RecordJob(job, result string) {
	jobRuns.WithLabelValues(job, result).Inc()
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware records HTTP metrics for each request, labelled by route template.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				path = tpl
			}
		}

		httpRequests.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// Hijack lets websocket upgrades pass through the wrapper.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	rw.written = true
	return h.Hijack()
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Package metrics wraps the Prometheus collectors the run server exposes
// under --metrics-addr. Recording is nil-safe so callers never need to
// branch on whether metrics are enabled.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder collects counters and histograms for one run of the harness.
type Recorder struct {
	registry *prometheus.Registry

	modelCalls        *prometheus.CounterVec
	modelCallDuration *prometheus.HistogramVec
	modelErrors       *prometheus.CounterVec

	resultsByStatus *prometheus.CounterVec
	scoreHistogram  *prometheus.HistogramVec

	inFlight prometheus.Gauge
	retries  *prometheus.CounterVec
}

// New builds a Recorder registered against a fresh, isolated registry. A
// nil *Recorder is valid everywhere below: every Record* method and Handler
// degrade to no-ops/503 when the receiver is nil, matching how callers skip
// metrics entirely when --metrics-addr was not supplied.
func New() *Recorder {
	r := &Recorder{registry: prometheus.NewRegistry()}

	r.modelCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lcbench",
			Subsystem: "model",
			Name:      "calls_total",
			Help:      "Total number of model invocations.",
		},
		[]string{"status"},
	)

	r.modelCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lcbench",
			Subsystem: "model",
			Name:      "call_duration_seconds",
			Help:      "Model call latency in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"status"},
	)

	r.modelErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lcbench",
			Subsystem: "model",
			Name:      "errors_total",
			Help:      "Total number of model call errors by kind.",
		},
		[]string{"error_type"},
	)

	r.resultsByStatus = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lcbench",
			Subsystem: "eval",
			Name:      "results_total",
			Help:      "Total number of evaluation results by status.",
		},
		[]string{"status"},
	)

	r.scoreHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lcbench",
			Subsystem: "eval",
			Name:      "score",
			Help:      "Distribution of per-question scores.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		},
		[]string{"kind"},
	)

	r.inFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "lcbench",
			Subsystem: "eval",
			Name:      "assignments_in_flight",
			Help:      "Number of assignments currently dispatched to the model.",
		},
	)

	r.retries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lcbench",
			Subsystem: "http",
			Name:      "retries_total",
			Help:      "Total number of HTTP retry attempts by status code.",
		},
		[]string{"status_code"},
	)

	r.registry.MustRegister(
		r.modelCalls, r.modelCallDuration, r.modelErrors,
		r.resultsByStatus, r.scoreHistogram, r.inFlight, r.retries,
	)
	return r
}

// RecordModelCall records one model invocation's outcome and latency.
func (r *Recorder) RecordModelCall(status string, duration time.Duration) {
	if r == nil {
		return
	}
	r.modelCalls.WithLabelValues(status).Inc()
	r.modelCallDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordModelError records a model call failure by error kind (e.g. "timeout", "http_5xx").
func (r *Recorder) RecordModelError(errorType string) {
	if r == nil {
		return
	}
	r.modelErrors.WithLabelValues(errorType).Inc()
}

// RecordResult records one evaluation result's terminal status and, when
// scoring completed, its score bucketed by question kind.
func (r *Recorder) RecordResult(status, kind string, score float64, scored bool) {
	if r == nil {
		return
	}
	r.resultsByStatus.WithLabelValues(status).Inc()
	if scored {
		r.scoreHistogram.WithLabelValues(kind).Observe(score)
	}
}

// IncInFlight and DecInFlight track the number of assignments currently
// dispatched to the model, mirroring pipeline.Progress's in-flight counter.
func (r *Recorder) IncInFlight() {
	if r == nil {
		return
	}
	r.inFlight.Inc()
}

func (r *Recorder) DecInFlight() {
	if r == nil {
		return
	}
	r.inFlight.Dec()
}

// RecordRetry records one HTTP retry attempt keyed by the response status
// code (or "0" for a transport-level error) that triggered it.
func (r *Recorder) RecordRetry(statusCode int) {
	if r == nil {
		return
	}
	label := "0"
	if statusCode > 0 {
		label = statusCodeLabel(statusCode)
	}
	r.retries.WithLabelValues(label).Inc()
}

func statusCodeLabel(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}

// Handler serves the registry's collected metrics. A nil Recorder serves
// 503 so a misconfigured --metrics-addr fails loudly instead of silently
// returning an empty page.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, e.g. for tests that want to
// scrape collected samples directly instead of parsing the HTTP handler's
// text output.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Package telemetry provides the optional Prometheus metrics and
// OpenTelemetry tracing for the engine and the dnet API client. Every hook is
// nil-safe so callers can run without telemetry.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "dnetui"

// Metrics holds the collectors, registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	cycles             prometheus.Counter
	presents           prometheus.Counter
	ticks              prometheus.Counter
	inputErrors        prometheus.Counter
	invalidTransitions *prometheus.CounterVec
	windowErrors       *prometheus.CounterVec
	focusChanges       *prometheus.CounterVec
	cycleSeconds       prometheus.Histogram

	apiRequests       *prometheus.CounterVec
	apiRequestSeconds *prometheus.HistogramVec
}

// NewMetrics creates and registers all collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "cycles_total",
			Help:      "Total number of scheduler cycles",
		}),
		presents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "presents_total",
			Help:      "Total number of frames presented",
		}),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "ticks_total",
			Help:      "Total number of tick boundaries crossed",
		}),
		inputErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "input_errors_total",
			Help:      "Input polls that failed and were treated as no event",
		}),
		invalidTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "invalid_transitions_total",
			Help:      "View transitions rejected because they are not declared",
		}, []string{"window"}),
		windowErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "window_errors_total",
			Help:      "Tick or handle calls that returned an error",
		}, []string{"window", "op"}),
		focusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "focus_changes_total",
			Help:      "Focus changes applied by the scheduler",
		}, []string{"from", "to"}),
		cycleSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "cycle_seconds",
			Help:      "Time spent handling, ticking and drawing one cycle",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12), // 100µs to ~200ms
		}),
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "dnet API requests by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),
		apiRequestSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_seconds",
			Help:      "dnet API request latency",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~2.5s
		}, []string{"endpoint"}),
	}

	reg.MustRegister(
		m.cycles, m.presents, m.ticks, m.inputErrors,
		m.invalidTransitions, m.windowErrors, m.focusChanges, m.cycleSeconds,
		m.apiRequests, m.apiRequestSeconds,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Cycle records one completed scheduler cycle.
func (m *Metrics) Cycle(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.cycles.Inc()
	m.cycleSeconds.Observe(elapsed.Seconds())
}

// Present records one presented frame.
func (m *Metrics) Present() {
	if m == nil {
		return
	}
	m.presents.Inc()
}

// Tick records one tick boundary.
func (m *Metrics) Tick() {
	if m == nil {
		return
	}
	m.ticks.Inc()
}

// InputError records a failed poll.
func (m *Metrics) InputError() {
	if m == nil {
		return
	}
	m.inputErrors.Inc()
}

// InvalidTransition records a rejected view transition.
func (m *Metrics) InvalidTransition(window string) {
	if m == nil {
		return
	}
	m.invalidTransitions.WithLabelValues(window).Inc()
}

// WindowError records a failed tick or handle call.
func (m *Metrics) WindowError(window, op string) {
	if m == nil {
		return
	}
	m.windowErrors.WithLabelValues(window, op).Inc()
}

// FocusChange records a focus change.
func (m *Metrics) FocusChange(from, to string) {
	if m == nil {
		return
	}
	m.focusChanges.WithLabelValues(from, to).Inc()
}

// APIRequest records one dnet API call.
func (m *Metrics) APIRequest(endpoint string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.apiRequests.WithLabelValues(endpoint, outcome).Inc()
	m.apiRequestSeconds.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

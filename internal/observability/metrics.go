// Package observability exposes Prometheus metrics and the ops HTTP server.
package observability

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/m3rciful/aviabot/internal/dialog"
)

// Metrics groups all Prometheus instruments of the bot. Each Metrics owns its
// registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry
	active   atomic.Pointer[func() int]

	DialogEvents     *prometheus.CounterVec
	DialogSteps      *prometheus.CounterVec
	ExternalCalls    *prometheus.CounterVec
	ExternalLatency  *prometheus.HistogramVec
	AirportFallbacks prometheus.Counter
	HistoryWrites    *prometheus.CounterVec
	Updates          *prometheus.CounterVec
	UpdateLatency    prometheus.Histogram
	MessagesSent     prometheus.Counter
}

// NewMetrics registers all instruments under namespace, plus Go runtime and
// process collectors.
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	m := &Metrics{
		registry: reg,
		DialogEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dialog_events_total",
			Help:      "Dialog lifecycle events by kind and event.",
		}, []string{"kind", "event"}),
		DialogSteps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dialog_steps_total",
			Help:      "Dialog inputs by kind, step and outcome.",
		}, []string{"kind", "step", "outcome"}),
		ExternalCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "external_calls_total",
			Help:      "External API calls by api and outcome.",
		}, []string{"api", "outcome"}),
		ExternalLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "external_call_duration_ms",
			Help:      "External API latency in milliseconds.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2000, 5000, 10000},
		}, []string{"api"}),
		AirportFallbacks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "airport_fallback_total",
			Help:      "Flight rows shown with a raw airport code.",
		}),
		HistoryWrites: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_writes_total",
			Help:      "Command history writes by result.",
		}, []string{"result"}),
		Updates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_total",
			Help:      "Telegram updates handled by kind and status.",
		}, []string{"kind", "status"}),
		UpdateLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "update_duration_ms",
			Help:      "Update handling time in milliseconds.",
			Buckets:   []float64{5, 25, 100, 250, 500, 1000, 3000, 10000},
		}),
		MessagesSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Messages sent synchronously by handlers.",
		}),
	}
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_dialogs",
		Help:      "Users with an open dialog.",
	}, func() float64 {
		if fn := m.active.Load(); fn != nil {
			return float64((*fn)())
		}
		return 0
	})
	return m
}

// TrackActiveDialogs sets the source of the active_dialogs gauge.
func (m *Metrics) TrackActiveDialogs(fn func() int) {
	m.active.Store(&fn)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// DialogEvent implements dialog.Metrics.
func (m *Metrics) DialogEvent(kind dialog.Kind, event string) {
	m.DialogEvents.WithLabelValues(string(kind), event).Inc()
}

// DialogStep implements dialog.Metrics.
func (m *Metrics) DialogStep(kind dialog.Kind, step dialog.StepName, outcome dialog.Outcome) {
	m.DialogSteps.WithLabelValues(string(kind), string(step), string(outcome)).Inc()
}

// ExternalCall implements flights.Metrics and weather.Metrics.
func (m *Metrics) ExternalCall(api, outcome string, took time.Duration) {
	m.ExternalCalls.WithLabelValues(api, outcome).Inc()
	m.ExternalLatency.WithLabelValues(api).Observe(float64(took.Milliseconds()))
}

// AirportFallback implements flights.Metrics.
func (m *Metrics) AirportFallback() { m.AirportFallbacks.Inc() }

// HistoryWrite implements history.Metrics.
func (m *Metrics) HistoryWrite(ok, evicted bool) {
	switch {
	case !ok:
		m.HistoryWrites.WithLabelValues("fail").Inc()
	case evicted:
		m.HistoryWrites.WithLabelValues("evicted").Inc()
	default:
		m.HistoryWrites.WithLabelValues("ok").Inc()
	}
}

// ObserveUpdate implements the telegram metrics middleware observer.
func (m *Metrics) ObserveUpdate(kind string, failed bool, took time.Duration, messages int) {
	status := "ok"
	if failed {
		status = "fail"
	}
	m.Updates.WithLabelValues(kind, status).Inc()
	m.UpdateLatency.Observe(float64(took.Milliseconds()))
	m.MessagesSent.Add(float64(messages))
}

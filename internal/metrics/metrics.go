// Package metrics exports Prometheus collectors for the prompt pipeline
// and its backends.
//
// All methods are safe on a nil *Metrics, so components can be built
// without metrics in tests and one-shot CLI commands.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "axiom"

// Metrics holds the registry and every collector AXIOM exports.
type Metrics struct {
	registry *prometheus.Registry

	prompts        *prometheus.CounterVec
	commands       *prometheus.CounterVec
	backendLatency *prometheus.HistogramVec
	backendErrors  *prometheus.CounterVec
	cacheRefreshes prometheus.Counter
	mqttMessages   *prometheus.CounterVec
	filesProcessed *prometheus.CounterVec
	breakerState   *prometheus.GaugeVec
	historyLength  prometheus.Gauge
	serviceUp      *prometheus.GaugeVec
}

// New creates a Metrics with its own registry, including Go runtime and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		prompts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "prompts_total",
			Help:      "Prompts processed, by outcome.",
		}, []string{"outcome"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "commands_total",
			Help:      "Commands dispatched, by action and outcome.",
		}, []string{"action", "outcome"}),
		backendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "request_duration_seconds",
			Help:      "Latency of calls to external backends.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"backend", "op"}),
		backendErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "errors_total",
			Help:      "Failed calls to external backends.",
		}, []string{"backend", "op"}),
		cacheRefreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "area_cache_refreshes_total",
			Help:      "Area map fetches from Home Assistant.",
		}),
		mqttMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mqtt",
			Name:      "messages_total",
			Help:      "MQTT messages handled, by bridge and direction.",
		}, []string{"bridge", "direction"}),
		filesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "filesorter",
			Name:      "files_total",
			Help:      "Files processed by the sorter, by outcome.",
		}, []string{"outcome"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "breaker_state",
			Help:      "Circuit breaker state per provider (0 closed, 1 half-open, 2 open).",
		}, []string{"provider"}),
		historyLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "history_turns",
			Help:      "Conversation turns currently retained.",
		}),
		serviceUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "up",
			Help:      "Whether a watched backend answered its last health probe.",
		}, []string{"backend"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.prompts,
		m.commands,
		m.backendLatency,
		m.backendErrors,
		m.cacheRefreshes,
		m.mqttMessages,
		m.filesProcessed,
		m.breakerState,
		m.historyLength,
		m.serviceUp,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Prompt counts one processed prompt.
func (m *Metrics) Prompt(outcome string) {
	if m == nil {
		return
	}
	m.prompts.WithLabelValues(outcome).Inc()
}

// Command counts one dispatched command.
func (m *Metrics) Command(action string, ok bool) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(action, outcomeLabel(ok)).Inc()
}

// ObserveBackend records the latency of a backend call started at start,
// and counts it as an error when err is non-nil.
func (m *Metrics) ObserveBackend(backend, op string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.backendLatency.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
	if err != nil {
		m.backendErrors.WithLabelValues(backend, op).Inc()
	}
}

// AreaCacheRefreshed counts one area map fetch.
func (m *Metrics) AreaCacheRefreshed() {
	if m == nil {
		return
	}
	m.cacheRefreshes.Inc()
}

// MQTTMessage counts one bridge message. direction is "in" or "out".
func (m *Metrics) MQTTMessage(bridge, direction string) {
	if m == nil {
		return
	}
	m.mqttMessages.WithLabelValues(bridge, direction).Inc()
}

// FileProcessed counts one file handled by the sorter.
func (m *Metrics) FileProcessed(ok bool) {
	if m == nil {
		return
	}
	m.filesProcessed.WithLabelValues(outcomeLabel(ok)).Inc()
}

// BreakerState records a circuit breaker transition.
func (m *Metrics) BreakerState(provider string, state int) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(provider).Set(float64(state))
}

// HistoryLength records the retained conversation length.
func (m *Metrics) HistoryLength(n int) {
	if m == nil {
		return
	}
	m.historyLength.Set(float64(n))
}

// ServiceUp records the result of a backend health probe.
func (m *Metrics) ServiceUp(backend string, up bool) {
	if m == nil {
		return
	}
	v := 0.0
	if up {
		v = 1
	}
	m.serviceUp.WithLabelValues(backend).Set(v)
}

func outcomeLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

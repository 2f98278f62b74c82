// Package metrics exposes daemon counters to Prometheus.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/llehouerou/noticed/internal/notification"
)

// Metrics holds the daemon's collectors on a private registry.
// All methods are no-ops on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	received   *prometheus.CounterVec
	closed     *prometheus.CounterVec
	evictions  prometheus.Counter
	emitErrors *prometheus.CounterVec
	sounds     *prometheus.CounterVec
	active     prometheus.Gauge
	history    prometheus.Gauge
	dnd        prometheus.Gauge
}

// New registers the daemon collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		received: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "noticed_notifications_received_total",
				Help: "Notify calls accepted, by urgency and whether they replaced an existing id",
			},
			[]string{"urgency", "replaced"},
		),
		closed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "noticed_notifications_closed_total",
				Help: "Notifications closed, by reason",
			},
			[]string{"reason"},
		),
		evictions: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "noticed_evictions_total",
				Help: "Active notifications evicted to history by the active bound",
			},
		),
		emitErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "noticed_signal_emit_errors_total",
				Help: "Bus signals that failed to emit, by signal name",
			},
			[]string{"signal"},
		),
		sounds: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "noticed_sounds_total",
				Help: "Sound decisions, by outcome",
			},
			[]string{"outcome"},
		),
		active: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "noticed_active_notifications",
				Help: "Notifications currently active",
			},
		),
		history: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "noticed_history_notifications",
				Help: "Notifications currently retained in history",
			},
		),
		dnd: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "noticed_dnd_enabled",
				Help: "1 when do-not-disturb is enabled",
			},
		),
	}
}

// Handler returns the Prometheus scrape handler for this registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordReceived counts an accepted Notify call.
func (m *Metrics) RecordReceived(u notification.Urgency, replaced bool) {
	if m == nil {
		return
	}
	m.received.WithLabelValues(u.String(), strconv.FormatBool(replaced)).Inc()
}

// RecordClosed counts a closed notification.
func (m *Metrics) RecordClosed(reason notification.CloseReason) {
	if m == nil {
		return
	}
	m.closed.WithLabelValues(reason.String()).Inc()
}

// RecordEvicted counts n evictions.
func (m *Metrics) RecordEvicted(n int) {
	if m == nil || n == 0 {
		return
	}
	m.evictions.Add(float64(n))
}

// RecordEmitError counts a failed signal emission.
func (m *Metrics) RecordEmitError(signal string) {
	if m == nil {
		return
	}
	m.emitErrors.WithLabelValues(signal).Inc()
}

// RecordSound counts a sound decision outcome such as "played" or "skipped".
func (m *Metrics) RecordSound(outcome string) {
	if m == nil {
		return
	}
	m.sounds.WithLabelValues(outcome).Inc()
}

// SetSizes updates the partition gauges.
func (m *Metrics) SetSizes(active, history int) {
	if m == nil {
		return
	}
	m.active.Set(float64(active))
	m.history.Set(float64(history))
}

// SetDND updates the do-not-disturb gauge.
func (m *Metrics) SetDND(enabled bool) {
	if m == nil {
		return
	}
	if enabled {
		m.dnd.Set(1)
	} else {
		m.dnd.Set(0)
	}
}

// Package instrument exposes Prometheus metrics for the relay core.
package instrument

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Drop reasons recorded on the packets-dropped counter.
const (
	DropMissingField   = "missing_field"
	DropSpoofedFrom    = "spoofed_from"
	DropEmptyRecipient = "empty_recipient"
	DropOversized      = "oversized"
)

// Metrics holds the relay counters. All components receive the same instance
// via constructor injection.
type Metrics struct {
	registry *prometheus.Registry

	PacketsRelayed prometheus.Counter
	PacketsDropped *prometheus.CounterVec
	HistoryBatches prometheus.Counter
	ActiveSessions prometheus.Gauge
}

// NewMetrics creates and registers the relay metrics on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		PacketsRelayed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "whisperline_packets_relayed_total",
			Help: "Number of packets persisted and relayed",
		}),
		PacketsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "whisperline_packets_dropped_total",
			Help: "Number of packets dropped before persistence",
		}, []string{"reason"}),
		HistoryBatches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "whisperline_history_batches_total",
			Help: "Number of history replay batches served",
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "whisperline_active_sessions",
			Help: "Number of currently registered sessions",
		}),
	}

	m.registry.MustRegister(m.PacketsRelayed, m.PacketsDropped, m.HistoryBatches, m.ActiveSessions)
	return m
}

// Handler serves the registered metrics in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

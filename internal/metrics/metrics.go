// Package metrics exposes Prometheus collectors for the session host.
package metrics

import (
	"database/sql"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Engine metrics
	FixesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geosession",
		Name:      "fixes_total",
		Help:      "Total location fixes processed, by outcome",
	}, []string{"outcome"})

	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geosession",
		Name:      "events_total",
		Help:      "Total gameplay events emitted, by kind",
	}, []string{"kind"})

	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "geosession",
		Name:      "events_dropped_total",
		Help:      "Events dropped because the outbox was full",
	})

	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geosession",
		Name:      "commands_total",
		Help:      "Total session commands handled, by method and status code",
	}, []string{"method", "status"})

	CommandDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "geosession",
		Name:      "command_duration_seconds",
		Help:      "Session command latency in seconds",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
	}, []string{"method"})

	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "geosession",
		Name:      "sessions_active",
		Help:      "Player sessions currently hosted",
	})

	SessionsEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "geosession",
		Name:      "sessions_evicted_total",
		Help:      "Player sessions dropped after sitting idle",
	})

	// Sink metrics
	SinkErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geosession",
		Name:      "sink_errors_total",
		Help:      "Failed writes to the store or the event stream",
	}, []string{"sink"})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "geosession",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsInUse = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "geosession",
		Subsystem: "db",
		Name:      "pool_conns_in_use",
		Help:      "Connections currently in use",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "geosession",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})
)

// Handler serves the Prometheus /metrics endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}

// UpdateDBPoolMetrics copies database/sql pool stats into the gauges
func UpdateDBPoolMetrics(stats sql.DBStats) {
	DBPoolConnsOpen.Set(float64(stats.OpenConnections))
	DBPoolConnsInUse.Set(float64(stats.InUse))
	DBPoolConnsIdle.Set(float64(stats.Idle))
}

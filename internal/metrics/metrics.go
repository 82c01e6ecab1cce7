// Package metrics provides Prometheus metrics for the board server.
package metrics

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	Registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Upstream provider metrics, labelled by provider (tfl, rtt) and endpoint
	UpstreamRequestsTotal   *prometheus.CounterVec
	UpstreamRequestDuration *prometheus.HistogramVec

	// Board metrics
	ActiveSessions       prometheus.Gauge
	ReconciliationsTotal *prometheus.CounterVec
	NoticesTotal         *prometheus.CounterVec
	ArrivalFetchesShared prometheus.Counter
	ArrivalFetchesTotal  prometheus.Counter
	StationsIndexed      prometheus.Gauge

	// Preferences database pool
	DBConnectionsOpen  prometheus.Gauge
	DBConnectionsInUse prometheus.Gauge
	DBConnectionsIdle  prometheus.Gauge
	DBWaitSecondsTotal prometheus.Counter

	logger *slog.Logger

	// collectorStarted prevents spawning multiple collector goroutines
	collectorStarted atomic.Bool
	cancel           context.CancelFunc
	wg               sync.WaitGroup
}

func New() *Metrics {
	return NewWithLogger(nil)
}

// NewWithLogger creates metrics on a fresh registry.
func NewWithLogger(logger *slog.Logger) *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tubeboard_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tubeboard_http_request_duration_seconds",
			Help:    "HTTP request latency distribution",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		UpstreamRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tubeboard_upstream_requests_total",
			Help: "Requests made to transit data providers, by outcome",
		}, []string{"provider", "endpoint", "outcome"}),
		UpstreamRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tubeboard_upstream_request_duration_seconds",
			Help:    "Latency of transit data provider requests including retries",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 30},
		}, []string{"provider", "endpoint"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tubeboard_active_sessions",
			Help: "Board sessions currently held in memory",
		}),
		ReconciliationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tubeboard_reconciliations_total",
			Help: "Tracked arrival refreshes by outcome",
		}, []string{"outcome", "method"}),
		NoticesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tubeboard_notices_total",
			Help: "Banners raised on sessions, by kind",
		}, []string{"kind"}),
		ArrivalFetchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tubeboard_arrival_fetches_total",
			Help: "Arrival lookups requested by sessions and handlers",
		}),
		ArrivalFetchesShared: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tubeboard_arrival_fetches_shared_total",
			Help: "Arrival lookups answered by an in-flight or recently cached fetch",
		}),
		StationsIndexed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tubeboard_stations_indexed",
			Help: "Stations held in the nearby-station index",
		}),
		DBConnectionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tubeboard_db_connections_open",
			Help: "Number of open preferences database connections",
		}),
		DBConnectionsInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tubeboard_db_connections_in_use",
			Help: "Number of preferences database connections currently in use",
		}),
		DBConnectionsIdle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tubeboard_db_connections_idle",
			Help: "Number of idle preferences database connections",
		}),
		DBWaitSecondsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tubeboard_db_wait_seconds_total",
			Help: "Total time blocked waiting for a preferences database connection",
		}),
		logger: logger,
	}

	m.Registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.UpstreamRequestsTotal,
		m.UpstreamRequestDuration,
		m.ActiveSessions,
		m.ReconciliationsTotal,
		m.NoticesTotal,
		m.ArrivalFetchesTotal,
		m.ArrivalFetchesShared,
		m.StationsIndexed,
		m.DBConnectionsOpen,
		m.DBConnectionsInUse,
		m.DBConnectionsIdle,
		m.DBWaitSecondsTotal,
	)
	return m
}

// ObserveUpstream records one provider call. A nil *Metrics is a no-op so
// provider clients can run without metrics in tests and the CLI.
func (m *Metrics) ObserveUpstream(provider, endpoint, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.UpstreamRequestsTotal.WithLabelValues(provider, endpoint, outcome).Inc()
	m.UpstreamRequestDuration.WithLabelValues(provider, endpoint).Observe(seconds)
}

// ObserveReconciliation counts a tracked-arrival refresh. method is
// "vehicle" or "heuristic".
func (m *Metrics) ObserveReconciliation(outcome, method string) {
	if m == nil {
		return
	}
	m.ReconciliationsTotal.WithLabelValues(outcome, method).Inc()
}

func (m *Metrics) ObserveNotice(kind string) {
	if m == nil {
		return
	}
	m.NoticesTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}

func (m *Metrics) SetStationsIndexed(n int) {
	if m == nil {
		return
	}
	m.StationsIndexed.Set(float64(n))
}

// ObserveArrivalFetch counts an arrivals lookup; shared is true when it did
// not reach the provider itself.
func (m *Metrics) ObserveArrivalFetch(shared bool) {
	if m == nil {
		return
	}
	m.ArrivalFetchesTotal.Inc()
	if shared {
		m.ArrivalFetchesShared.Inc()
	}
}

// StartDBStatsCollector samples db.Stats every interval until Shutdown.
// Repeated calls are ignored.
func (m *Metrics) StartDBStatsCollector(db *sql.DB, interval time.Duration) {
	if db == nil || interval <= 0 {
		return
	}
	if !m.collectorStarted.CompareAndSwap(false, true) {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())

	// Add before exposing cancel to avoid racing Shutdown.
	m.wg.Add(1)
	m.cancel = cancel

	go func() {
		defer m.wg.Done()
		defer func() {
			if r := recover(); r != nil && m.logger != nil {
				m.logger.Error("panic in DB stats collector", "error", r)
			}
		}()

		var lastWait time.Duration
		sample := func() {
			stats := db.Stats()
			m.DBConnectionsOpen.Set(float64(stats.OpenConnections))
			m.DBConnectionsInUse.Set(float64(stats.InUse))
			m.DBConnectionsIdle.Set(float64(stats.Idle))
			if delta := stats.WaitDuration - lastWait; delta > 0 {
				m.DBWaitSecondsTotal.Add(delta.Seconds())
			}
			lastWait = stats.WaitDuration
		}

		sample()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				sample()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Shutdown stops the DB stats collector and waits for it to exit. Safe to
// call more than once.
func (m *Metrics) Shutdown() {
	if m == nil {
		return
	}
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

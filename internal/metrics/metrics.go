package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"gearshelf/internal/models"
)

// Metrics holds all application metrics
type Metrics struct {
	// Scan metrics
	ScansTotal          *prometheus.CounterVec
	ScanDurationSeconds *prometheus.HistogramVec
	ScanWarningsTotal   prometheus.Counter
	DiscoveredPlugins   *prometheus.GaugeVec

	// Catalog metrics
	ActivePlugins       prometheus.Gauge
	UniquePlugins       prometheus.Gauge
	CleanupDeletedTotal prometheus.Counter

	// HTTP metrics
	RequestCount    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Health metrics
	HealthStatus *prometheus.GaugeVec
}

// NewMetrics registers every collector with reg. Passing nil uses the
// prometheus default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		ScansTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gearshelf_scans_total",
				Help: "Total number of plugin scans",
			},
			[]string{"mode", "status"},
		),
		ScanDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gearshelf_scan_duration_seconds",
				Help:    "Duration of plugin scans in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"mode"},
		),
		ScanWarningsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gearshelf_scan_warnings_total",
				Help: "Total number of non-fatal scan warnings",
			},
		),
		DiscoveredPlugins: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gearshelf_discovered_plugins",
				Help: "Plugin bundles found by the last scan, by type",
			},
			[]string{"type"},
		),

		ActivePlugins: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "gearshelf_catalog_active_plugins",
				Help: "Active plugin rows in the catalog",
			},
		),
		UniquePlugins: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "gearshelf_catalog_unique_plugins",
				Help: "Unique plugins in the catalog after the last scan",
			},
		),
		CleanupDeletedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gearshelf_cleanup_deleted_total",
				Help: "Inactive plugin rows removed by retention cleanup",
			},
		),

		RequestCount: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gearshelf_api_requests_total",
				Help: "Total number of API requests by method, route, and status",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gearshelf_api_request_duration_seconds",
				Help:    "Histogram of request durations by method and route",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),

		HealthStatus: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gearshelf_health_status",
				Help: "Health status of dependencies (1=ok, 0=down)",
			},
			[]string{"dependency"},
		),
	}
}

// ObserveScan records the outcome of one scan
func (m *Metrics) ObserveScan(quick bool, duration time.Duration, result models.ScanResult, session *models.ScanSession, err error) {
	mode := "full"
	if quick {
		mode = "quick"
	}

	m.ScanDurationSeconds.WithLabelValues(mode).Observe(duration.Seconds())
	m.ScanWarningsTotal.Add(float64(len(result.Errors)))

	if err != nil {
		m.ScansTotal.WithLabelValues(mode, "error").Inc()
		return
	}
	m.ScansTotal.WithLabelValues(mode, "success").Inc()

	counts := make(map[models.PluginType]int)
	for _, p := range result.Plugins {
		counts[p.Type]++
	}
	for _, t := range models.ScannableTypes {
		m.DiscoveredPlugins.WithLabelValues(string(t)).Set(float64(counts[t]))
	}

	if session != nil {
		m.ActivePlugins.Set(float64(session.TotalFiles))
		m.UniquePlugins.Set(float64(session.UniquePlugins))
	}
}

// ObserveCleanup records rows deleted by a retention sweep
func (m *Metrics) ObserveCleanup(deleted int64) {
	if deleted > 0 {
		m.CleanupDeletedTotal.Add(float64(deleted))
	}
}

// SetHealth records whether a dependency is reachable
func (m *Metrics) SetHealth(dependency string, ok bool) {
	value := 0.0
	if ok {
		value = 1
	}
	m.HealthStatus.WithLabelValues(dependency).Set(value)
}

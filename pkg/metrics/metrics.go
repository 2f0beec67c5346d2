// Package metrics exposes Prometheus metrics for registry and broker
// lifecycles. Nothing is recorded until Initialize is called.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "karapace_tc"

// Registry is the metrics registry, nil while metrics are disabled.
var Registry *prometheus.Registry

var (
	// Registry lifecycle
	RegistryStartsTotal   *prometheus.CounterVec
	RegistryStopsTotal    *prometheus.CounterVec
	RegistryStartDuration *prometheus.HistogramVec
	RegistriesRunning     *prometheus.GaugeVec

	// Readiness workarounds
	ReadinessDelaySeconds *prometheus.CounterVec

	// Container operations
	ContainerOperationDuration *prometheus.HistogramVec
	ContainerOperationsTotal   *prometheus.CounterVec
	ContainerErrorsTotal       *prometheus.CounterVec
)

// Initialize creates a fresh registry and registers all metrics with it.
// Calling it again discards previously recorded values.
func Initialize() {
	Registry = prometheus.NewRegistry()
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(Registry)

	RegistryStartsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registry_starts_total",
			Help:      "Total number of registry start attempts",
		},
		[]string{"registry", "storage", "status"},
	)

	RegistryStopsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registry_stops_total",
			Help:      "Total number of registry stops",
		},
		[]string{"registry", "status"},
	)

	RegistryStartDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "registry_start_duration_seconds",
			Help:      "Time from Start until the registry is usable, delays included",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 60, 120},
		},
		[]string{"registry", "storage"},
	)

	RegistriesRunning = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registry_running",
			Help:      "Registry state (0=not running, 1=running)",
		},
		[]string{"registry"},
	)

	ReadinessDelaySeconds = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readiness_delay_seconds_total",
			Help:      "Total time spent in broker readiness delays",
		},
		[]string{"storage", "phase"},
	)

	ContainerOperationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "container_operation_duration_seconds",
			Help:      "Container start and stop latency in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"role", "operation"},
	)

	ContainerOperationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "container_operations_total",
			Help:      "Total number of container start and stop calls",
		},
		[]string{"role", "operation"},
	)

	ContainerErrorsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "container_errors_total",
			Help:      "Total number of failed container start and stop calls",
		},
		[]string{"role", "operation"},
	)
}

// Enabled reports whether Initialize has been called.
func Enabled() bool {
	return Registry != nil
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	if !Enabled() {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordStart records a registry start attempt.
func RecordStart(registry, storage string, duration time.Duration, err error) {
	if !Enabled() {
		return
	}
	RegistryStartsTotal.WithLabelValues(registry, storage, status(err)).Inc()
	if err == nil {
		RegistryStartDuration.WithLabelValues(registry, storage).Observe(duration.Seconds())
	}
}

// RecordStop records a registry stop.
func RecordStop(registry string, err error) {
	if !Enabled() {
		return
	}
	RegistryStopsTotal.WithLabelValues(registry, status(err)).Inc()
}

// RecordDelay records time spent in a readiness delay.
func RecordDelay(storage, phase string, d time.Duration) {
	if !Enabled() {
		return
	}
	ReadinessDelaySeconds.WithLabelValues(storage, phase).Add(d.Seconds())
}

// SetRunning sets the running state of a registry.
func SetRunning(registry string, running bool) {
	if !Enabled() {
		return
	}
	value := 0.0
	if running {
		value = 1.0
	}
	RegistriesRunning.WithLabelValues(registry).Set(value)
}

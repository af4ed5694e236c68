package metrics

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"
)

var (
	// defaultRegistry is the default Prometheus registry
	defaultRegistry = prometheus.DefaultRegisterer
)

// Config holds metrics configuration.
type Config struct {
	EnableBucketLabel bool
}

// Metrics holds all application metrics. The push/pull throughput and ETA
// figures that get logged every second live in Collector (collector.go);
// these are the always-on counters an external Prometheus scrapes.
type Metrics struct {
	config                Config
	storeOperationsTotal  *prometheus.CounterVec
	storeOperationDuration *prometheus.HistogramVec
	storeOperationErrors  *prometheus.CounterVec
	encryptionOperations  *prometheus.CounterVec
	encryptionDuration    *prometheus.HistogramVec
	encryptionErrors      *prometheus.CounterVec
	encryptionBytes       *prometheus.CounterVec
	chunksProcessedTotal  *prometheus.CounterVec
	bytesTransferredTotal *prometheus.CounterVec
	goroutines            prometheus.Gauge
	memoryAllocBytes      prometheus.Gauge
	memorySysBytes        prometheus.Gauge
	hardwareAccelerationEnabled *prometheus.GaugeVec
}

// NewMetrics creates a new metrics instance with default configuration.
func NewMetrics() *Metrics {
	return NewMetricsWithConfig(Config{EnableBucketLabel: true})
}

// NewMetricsWithConfig creates a new metrics instance with the provided configuration.
func NewMetricsWithConfig(cfg Config) *Metrics {
	return newMetricsWithRegistry(defaultRegistry, cfg)
}

// NewMetricsWithRegistry creates a new metrics instance with a custom registry.
// This is useful for testing to avoid metric registration conflicts.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	return newMetricsWithRegistry(reg, Config{EnableBucketLabel: true})
}

// newMetricsWithRegistry creates a new metrics instance with a custom registry (for testing).
func newMetricsWithRegistry(reg prometheus.Registerer, cfg Config) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		config: cfg,
		storeOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "store_operations_total",
				Help: "Total number of object store put/get operations",
			},
			[]string{"operation", "backend"},
		),
		storeOperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "store_operation_duration_seconds",
				Help:    "Object store operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "backend"},
		),
		storeOperationErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "store_operation_errors_total",
				Help: "Total number of object store operation errors",
			},
			[]string{"operation", "backend", "error_type"},
		),
		encryptionOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "encryption_operations_total",
				Help: "Total number of encryption/decryption operations",
			},
			[]string{"operation"}, // "encrypt" or "decrypt"
		),
		encryptionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "encryption_duration_seconds",
				Help:    "Encryption/decryption operation duration in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"operation"},
		),
		encryptionErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "encryption_errors_total",
				Help: "Total number of encryption/decryption errors",
			},
			[]string{"operation", "error_type"},
		),
		encryptionBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "encryption_bytes_total",
				Help: "Total bytes encrypted/decrypted",
			},
			[]string{"operation"},
		),
		chunksProcessedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chunks_processed_total",
				Help: "Total number of chunks pushed or pulled",
			},
			[]string{"direction"}, // "push" or "pull"
		),
		bytesTransferredTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bytes_transferred_total",
				Help: "Total clear bytes pushed or pulled",
			},
			[]string{"direction"},
		),
		goroutines: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "goroutines_total",
				Help: "Number of goroutines",
			},
		),
		memoryAllocBytes: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "memory_alloc_bytes",
				Help: "Number of bytes allocated and not yet freed",
			},
		),
		memorySysBytes: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "memory_sys_bytes",
				Help: "Total bytes of memory obtained from OS",
			},
		),
		hardwareAccelerationEnabled: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "hardware_acceleration_enabled",
				Help: "Hardware acceleration status (1=enabled, 0=disabled)",
			},
			[]string{"type"},
		),
	}
}

// SetHardwareAccelerationStatus sets the hardware acceleration status metric.
func (m *Metrics) SetHardwareAccelerationStatus(accelType string, enabled bool) {
	val := 0.0
	if enabled {
		val = 1.0
	}
	m.hardwareAccelerationEnabled.WithLabelValues(accelType).Set(val)
}

// GetHardwareAccelerationEnabledMetric returns the hardware acceleration enabled metric (for testing).
func (m *Metrics) GetHardwareAccelerationEnabledMetric() *prometheus.GaugeVec {
	return m.hardwareAccelerationEnabled
}

// RecordStoreOperation records a Store put/get metric.
func (m *Metrics) RecordStoreOperation(ctx context.Context, operation, backend string, duration time.Duration) {
	backendLabel := backend
	if !m.config.EnableBucketLabel {
		backendLabel = "*"
	}

	if exemplar := getExemplar(ctx); exemplar != nil {
		if adder, ok := m.storeOperationsTotal.WithLabelValues(operation, backendLabel).(prometheus.ExemplarAdder); ok {
			adder.AddWithExemplar(1, exemplar)
		} else {
			m.storeOperationsTotal.WithLabelValues(operation, backendLabel).Inc()
		}

		if observer, ok := m.storeOperationDuration.WithLabelValues(operation, backendLabel).(prometheus.ExemplarObserver); ok {
			observer.ObserveWithExemplar(duration.Seconds(), exemplar)
		} else {
			m.storeOperationDuration.WithLabelValues(operation, backendLabel).Observe(duration.Seconds())
		}
	} else {
		m.storeOperationsTotal.WithLabelValues(operation, backendLabel).Inc()
		m.storeOperationDuration.WithLabelValues(operation, backendLabel).Observe(duration.Seconds())
	}
}

// RecordStoreError records a Store operation error.
func (m *Metrics) RecordStoreError(ctx context.Context, operation, backend, errorType string) {
	backendLabel := backend
	if !m.config.EnableBucketLabel {
		backendLabel = "*"
	}

	if exemplar := getExemplar(ctx); exemplar != nil {
		if adder, ok := m.storeOperationErrors.WithLabelValues(operation, backendLabel, errorType).(prometheus.ExemplarAdder); ok {
			adder.AddWithExemplar(1, exemplar)
		} else {
			m.storeOperationErrors.WithLabelValues(operation, backendLabel, errorType).Inc()
		}
	} else {
		m.storeOperationErrors.WithLabelValues(operation, backendLabel, errorType).Inc()
	}
}

// RecordEncryptionOperation records an encryption operation metric.
func (m *Metrics) RecordEncryptionOperation(ctx context.Context, operation string, duration time.Duration, bytes int64) {
	if exemplar := getExemplar(ctx); exemplar != nil {
		if adder, ok := m.encryptionOperations.WithLabelValues(operation).(prometheus.ExemplarAdder); ok {
			adder.AddWithExemplar(1, exemplar)
		} else {
			m.encryptionOperations.WithLabelValues(operation).Inc()
		}

		if observer, ok := m.encryptionDuration.WithLabelValues(operation).(prometheus.ExemplarObserver); ok {
			observer.ObserveWithExemplar(duration.Seconds(), exemplar)
		} else {
			m.encryptionDuration.WithLabelValues(operation).Observe(duration.Seconds())
		}
	} else {
		m.encryptionOperations.WithLabelValues(operation).Inc()
		m.encryptionDuration.WithLabelValues(operation).Observe(duration.Seconds())
	}

	m.encryptionBytes.WithLabelValues(operation).Add(float64(bytes))
}

// RecordEncryptionError records an encryption operation error.
func (m *Metrics) RecordEncryptionError(ctx context.Context, operation, errorType string) {
	if exemplar := getExemplar(ctx); exemplar != nil {
		if adder, ok := m.encryptionErrors.WithLabelValues(operation, errorType).(prometheus.ExemplarAdder); ok {
			adder.AddWithExemplar(1, exemplar)
		} else {
			m.encryptionErrors.WithLabelValues(operation, errorType).Inc()
		}
	} else {
		m.encryptionErrors.WithLabelValues(operation, errorType).Inc()
	}
}

// RecordChunkProcessed increments the push/pull chunk and byte counters.
// direction is "push" or "pull".
func (m *Metrics) RecordChunkProcessed(direction string, bytes int64) {
	m.chunksProcessedTotal.WithLabelValues(direction).Inc()
	m.bytesTransferredTotal.WithLabelValues(direction).Add(float64(bytes))
}

// UpdateSystemMetrics updates system-level metrics (goroutines, memory).
func (m *Metrics) UpdateSystemMetrics() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	m.goroutines.Set(float64(runtime.NumGoroutine()))
	m.memoryAllocBytes.Set(float64(memStats.Alloc))
	m.memorySysBytes.Set(float64(memStats.Sys))
}

// StartSystemMetricsCollector starts a goroutine that periodically updates system metrics.
func (m *Metrics) StartSystemMetricsCollector() {
	ticker := time.NewTicker(5 * time.Second)
	go func() {
		for range ticker.C {
			m.UpdateSystemMetrics()
		}
	}()
}

// Handler returns the HTTP handler for metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}

// getExemplar extracts trace ID from context and returns prometheus Labels for exemplar.
func getExemplar(ctx context.Context) prometheus.Labels {
	if ctx == nil {
		return nil
	}
	spanContext := trace.SpanFromContext(ctx).SpanContext()
	if spanContext.IsValid() {
		return prometheus.Labels{"trace_id": spanContext.TraceID().String()}
	}
	return nil
}

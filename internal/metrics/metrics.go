// Package metrics wires Prometheus counters and gauges for both daemons,
// following the teacher's pattern of a package-level registry gate
// (IsEnabled/InitRegistry) so callers can skip instrumentation entirely
// when metrics are disabled.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	registry *prometheus.Registry
	enabled  atomic.Bool
)

// InitRegistry creates the package-level Prometheus registry. Must be
// called before any New*Metrics constructor if metrics are desired.
func InitRegistry() *prometheus.Registry {
	registry = prometheus.NewRegistry()
	enabled.Store(true)
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool { return enabled.Load() }

// GetRegistry returns the package-level registry, or nil if not initialized.
func GetRegistry() *prometheus.Registry { return registry }

// ClientMetrics instruments the client daemon: connection pool health,
// per-API command counts, and reconnect/backoff state (P7).
type ClientMetrics struct {
	ConnectionsActive  *prometheus.GaugeVec
	ReconnectAttempts  *prometheus.CounterVec
	CurrentBackoffMS   *prometheus.GaugeVec
	CudaCommandsTotal  prometheus.Counter
	VulkanCommandsTotal prometheus.Counter
	RequestsTotal      prometheus.Counter
	ErrorsTotal        *prometheus.CounterVec
	RequestDuration    prometheus.Histogram
	PoolGpuCount       prometheus.Gauge
}

// NewClientMetrics returns nil if metrics are disabled, matching the
// teacher's zero-overhead-when-nil convention.
func NewClientMetrics() *ClientMetrics {
	if !IsEnabled() {
		return nil
	}
	reg := GetRegistry()
	return &ClientMetrics{
		ConnectionsActive: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rgpu_client_connections_active",
				Help: "Whether each configured backend connection is currently up (1) or down (0).",
			},
			[]string{"backend"},
		),
		ReconnectAttempts: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "rgpu_client_reconnect_attempts_total",
				Help: "Total reconnect attempts per backend.",
			},
			[]string{"backend"},
		),
		CurrentBackoffMS: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rgpu_client_reconnect_backoff_milliseconds",
				Help: "Current reconnect backoff interval per backend.",
			},
			[]string{"backend"},
		),
		CudaCommandsTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "rgpu_client_cuda_commands_total",
			Help: "Total CUDA commands forwarded.",
		}),
		VulkanCommandsTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "rgpu_client_vulkan_commands_total",
			Help: "Total Vulkan commands forwarded.",
		}),
		RequestsTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "rgpu_client_requests_total",
			Help: "Total requests forwarded to any backend.",
		}),
		ErrorsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "rgpu_client_errors_total",
				Help: "Total errors by kind.",
			},
			[]string{"kind"},
		),
		RequestDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "rgpu_client_request_duration_milliseconds",
			Help:    "Round-trip duration of a forwarded command.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		}),
		PoolGpuCount: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "rgpu_client_pool_gpu_count",
			Help: "Total GPU count across all connected backends.",
		}),
	}
}

// ServerMetrics instruments the backend daemon, mirroring the atomic
// counters original_source's server.rs ServerMetrics carries and exposing
// them identically through both the Prometheus registry and the
// QueryMetrics/MetricsData wire message.
type ServerMetrics struct {
	ConnectionsTotal  prometheus.Counter
	ConnectionsActive prometheus.Gauge
	RequestsTotal     prometheus.Counter
	ErrorsTotal       prometheus.Counter
	CudaCommands      prometheus.Counter
	VulkanCommands    prometheus.Counter

	connectionsTotalRaw  atomic.Uint64
	connectionsActiveRaw atomic.Int64
	requestsTotalRaw     atomic.Uint64
	errorsTotalRaw       atomic.Uint64
	cudaCommandsRaw      atomic.Uint64
	vulkanCommandsRaw    atomic.Uint64
	startTime            time.Time
	bindAddress          string
}

// NewServerMetrics always returns a usable value (unlike NewClientMetrics):
// the backend's in-process counters back the QueryMetrics wire response
// whether or not the Prometheus registry is enabled, so callers never need
// a nil check before recording.
func NewServerMetrics(bindAddress string) *ServerMetrics {
	m := &ServerMetrics{startTime: time.Now(), bindAddress: bindAddress}
	if IsEnabled() {
		reg := GetRegistry()
		m.ConnectionsTotal = promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "rgpu_server_connections_total", Help: "Total client connections accepted.",
		})
		m.ConnectionsActive = promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "rgpu_server_connections_active", Help: "Currently connected clients.",
		})
		m.RequestsTotal = promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "rgpu_server_requests_total", Help: "Total requests handled.",
		})
		m.ErrorsTotal = promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "rgpu_server_errors_total", Help: "Total requests that errored.",
		})
		m.CudaCommands = promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "rgpu_server_cuda_commands_total", Help: "Total CUDA commands executed.",
		})
		m.VulkanCommands = promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "rgpu_server_vulkan_commands_total", Help: "Total Vulkan commands executed.",
		})
	}
	return m
}

func (m *ServerMetrics) RecordConnect() {
	m.connectionsTotalRaw.Add(1)
	m.connectionsActiveRaw.Add(1)
	if m.ConnectionsTotal != nil {
		m.ConnectionsTotal.Inc()
		m.ConnectionsActive.Inc()
	}
}

func (m *ServerMetrics) RecordDisconnect() {
	m.connectionsActiveRaw.Add(-1)
	if m.ConnectionsActive != nil {
		m.ConnectionsActive.Dec()
	}
}

func (m *ServerMetrics) RecordRequest(isError bool) {
	m.requestsTotalRaw.Add(1)
	if isError {
		m.errorsTotalRaw.Add(1)
	}
	if m.RequestsTotal != nil {
		m.RequestsTotal.Inc()
		if isError {
			m.ErrorsTotal.Inc()
		}
	}
}

func (m *ServerMetrics) RecordCudaCommand() {
	m.cudaCommandsRaw.Add(1)
	if m.CudaCommands != nil {
		m.CudaCommands.Inc()
	}
}

func (m *ServerMetrics) RecordVulkanCommand() {
	m.vulkanCommandsRaw.Add(1)
	if m.VulkanCommands != nil {
		m.VulkanCommands.Inc()
	}
}

// Snapshot returns the current counters in the shape the MetricsData wire
// message carries (§4.15), read from the raw atomics the Record* methods
// increment. The Prometheus counters are separate values bumped by the
// same Record* calls, and are nil when the registry is disabled.
type Snapshot struct {
	ConnectionsTotal  uint64
	ConnectionsActive uint64
	RequestsTotal     uint64
	ErrorsTotal       uint64
	CudaCommands      uint64
	VulkanCommands    uint64
	UptimeSeconds     uint64
}

func (m *ServerMetrics) Snapshot() Snapshot {
	return Snapshot{
		ConnectionsTotal:  m.connectionsTotalRaw.Load(),
		ConnectionsActive: uint64(m.connectionsActiveRaw.Load()),
		RequestsTotal:     m.requestsTotalRaw.Load(),
		ErrorsTotal:       m.errorsTotalRaw.Load(),
		CudaCommands:      m.cudaCommandsRaw.Load(),
		VulkanCommands:    m.vulkanCommandsRaw.Load(),
		UptimeSeconds:     uint64(time.Since(m.startTime).Seconds()),
	}
}

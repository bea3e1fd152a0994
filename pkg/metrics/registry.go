// Package metrics holds the Prometheus collectors of the causalview service.
// Every series is prefixed causalview_ and registered on a private registry
// served at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "causalview"

// Registry owns the collectors. Call the Record methods rather than the
// fields; the fields are exported for tests and custom exporters.
type Registry struct {
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestsInFlight  prometheus.Gauge
	HTTPResponseSizeBytes *prometheus.HistogramVec

	VirtualizationsTotal    *prometheus.CounterVec
	VirtualizationDuration  *prometheus.HistogramVec
	VisibleNodes            prometheus.Histogram
	CulledNodesTotal        prometheus.Counter
	ClusteredNodesTotal     prometheus.Counter
	LODSelectionsTotal      *prometheus.CounterVec
	MalformedNodesTotal     *prometheus.CounterVec
	ClusterCacheHitsTotal   prometheus.Counter
	ClusterCacheMissesTotal prometheus.Counter
	ClusterCacheSize        prometheus.Gauge
	ConfigUpdatesTotal      prometheus.Counter

	SceneNodesTotal       prometheus.Gauge
	SceneConnectionsTotal prometheus.Gauge
	GraphLoadsTotal       *prometheus.CounterVec

	UptimeSeconds    prometheus.Gauge
	GoRoutines       prometheus.Gauge
	MemoryAllocBytes prometheus.Gauge
	MemorySysBytes   prometheus.Gauge

	registry *prometheus.Registry
}

// NewRegistry creates every collector on a fresh prometheus.Registry
func NewRegistry() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}
	f := promauto.With(r.registry)

	r.registerHTTP(f)
	r.registerEngine(f)
	r.registerScene(f)
	r.registerRuntime(f)
	return r
}

// GetPrometheusRegistry returns the registry to serve or gather from
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}

func counter(subsystem, name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: namespace, Subsystem: subsystem, Name: name, Help: help}
}

func gauge(subsystem, name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: namespace, Subsystem: subsystem, Name: name, Help: help}
}

func histogram(subsystem, name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{Namespace: namespace, Subsystem: subsystem, Name: name, Help: help, Buckets: buckets}
}

func (r *Registry) registerHTTP(f promauto.Factory) {
	labels := []string{"method", "path", "status"}

	r.HTTPRequestsTotal = f.NewCounterVec(counter("http", "requests_total", "HTTP requests served"), labels)
	r.HTTPRequestDuration = f.NewHistogramVec(
		histogram("http", "request_duration_seconds", "HTTP request latency", prometheus.DefBuckets), labels)
	r.HTTPRequestsInFlight = f.NewGauge(gauge("http", "requests_in_flight", "HTTP requests being served"))
	// 100B to 1MB
	r.HTTPResponseSizeBytes = f.NewHistogramVec(
		histogram("http", "response_size_bytes", "HTTP response body size", prometheus.ExponentialBuckets(100, 10, 5)),
		[]string{"method", "path"})
}

func (r *Registry) registerEngine(f promauto.Factory) {
	r.VirtualizationsTotal = f.NewCounterVec(
		counter("", "virtualizations_total", "Virtualize calls by outcome, bypass or virtualized"), []string{"outcome"})
	r.VirtualizationDuration = f.NewHistogramVec(
		histogram("", "virtualization_duration_seconds", "Virtualize call duration",
			[]float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5}),
		[]string{"outcome"})
	// bucket edges sit on the LOD node budgets
	r.VisibleNodes = f.NewHistogram(histogram("", "visible_nodes", "Nodes returned for drawing per call",
		[]float64{10, 50, 150, 300, 500, 1000, 5000}))
	r.CulledNodesTotal = f.NewCounter(counter("", "culled_nodes_total", "Nodes removed by viewport culling"))
	r.ClusteredNodesTotal = f.NewCounter(counter("", "clustered_nodes_total", "Nodes hidden inside cluster nodes"))
	r.LODSelectionsTotal = f.NewCounterVec(counter("", "lod_selections_total", "Virtualize calls per level of detail"),
		[]string{"lod"})
	r.MalformedNodesTotal = f.NewCounterVec(counter("", "malformed_nodes_total", "Malformed input nodes by diagnostic kind"),
		[]string{"kind"})

	r.ClusterCacheHitsTotal = f.NewCounter(counter("cluster_cache", "hits_total", "Cluster cache hits"))
	r.ClusterCacheMissesTotal = f.NewCounter(counter("cluster_cache", "misses_total", "Cluster cache misses"))
	r.ClusterCacheSize = f.NewGauge(gauge("cluster_cache", "entries", "Cached cluster nodes"))
	r.ConfigUpdatesTotal = f.NewCounter(counter("", "config_updates_total", "Engine configuration updates"))
}

func (r *Registry) registerScene(f promauto.Factory) {
	r.SceneNodesTotal = f.NewGauge(gauge("scene", "nodes_total", "Nodes in the loaded scene graph"))
	r.SceneConnectionsTotal = f.NewGauge(gauge("scene", "connections_total", "Connections in the loaded scene graph"))
	r.GraphLoadsTotal = f.NewCounterVec(counter("", "graph_loads_total", "Scene graph loads by source and status"),
		[]string{"source", "status"})
}

func (r *Registry) registerRuntime(f promauto.Factory) {
	r.UptimeSeconds = f.NewGauge(gauge("", "uptime_seconds", "Seconds since the server started"))
	r.GoRoutines = f.NewGauge(gauge("", "goroutines", "Live goroutines"))
	r.MemoryAllocBytes = f.NewGauge(gauge("memory", "alloc_bytes", "Bytes of allocated heap objects"))
	r.MemorySysBytes = f.NewGauge(gauge("memory", "sys_bytes", "Bytes of memory obtained from the OS"))
}

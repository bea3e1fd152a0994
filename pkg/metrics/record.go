package metrics

import "time"

// Outcome labels of causalview_virtualizations_total
const (
	OutcomeBypass      = "bypass"
	OutcomeVirtualized = "virtualized"
)

func (r *Registry) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	r.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	r.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

func (r *Registry) RecordResponseSize(method, path string, size float64) {
	r.HTTPResponseSizeBytes.WithLabelValues(method, path).Observe(size)
}

func (r *Registry) IncHTTPRequestsInFlight() { r.HTTPRequestsInFlight.Inc() }
func (r *Registry) DecHTTPRequestsInFlight() { r.HTTPRequestsInFlight.Dec() }

// RecordVirtualization records one virtualize call. outcome is OutcomeBypass
// or OutcomeVirtualized.
func (r *Registry) RecordVirtualization(outcome, lod string, duration time.Duration, visible, culled, clustered int) {
	r.VirtualizationsTotal.WithLabelValues(outcome).Inc()
	r.VirtualizationDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	r.LODSelectionsTotal.WithLabelValues(lod).Inc()
	r.VisibleNodes.Observe(float64(visible))
	if culled > 0 {
		r.CulledNodesTotal.Add(float64(culled))
	}
	if clustered > 0 {
		r.ClusteredNodesTotal.Add(float64(clustered))
	}
}

// RecordDiagnostic counts one malformed input node
func (r *Registry) RecordDiagnostic(kind string) {
	r.MalformedNodesTotal.WithLabelValues(kind).Inc()
}

func (r *Registry) RecordClusterCacheLookup(hit bool) {
	if hit {
		r.ClusterCacheHitsTotal.Inc()
		return
	}
	r.ClusterCacheMissesTotal.Inc()
}

func (r *Registry) SetClusterCacheSize(n int) {
	r.ClusterCacheSize.Set(float64(n))
}

func (r *Registry) RecordConfigUpdate() {
	r.ConfigUpdatesTotal.Inc()
}

// RecordGraphLoad counts a scene load from source. A successful load also
// sets the scene size gauges; a failed one leaves them on the previous scene.
func (r *Registry) RecordGraphLoad(source string, err error, nodes, connections int) {
	status := "success"
	if err != nil {
		status = "error"
	}
	r.GraphLoadsTotal.WithLabelValues(source, status).Inc()
	if err != nil {
		return
	}
	r.SceneNodesTotal.Set(float64(nodes))
	r.SceneConnectionsTotal.Set(float64(connections))
}

// RecordRuntime sets the process gauges
func (r *Registry) RecordRuntime(uptime time.Duration, goroutines int, heapAlloc, sys uint64) {
	r.UptimeSeconds.Set(uptime.Seconds())
	r.GoRoutines.Set(float64(goroutines))
	r.MemoryAllocBytes.Set(float64(heapAlloc))
	r.MemorySysBytes.Set(float64(sys))
}

package metrics

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func histogramOf(t *testing.T, o prometheus.Observer) *dto.Histogram {
	t.Helper()
	var m dto.Metric
	require.NoError(t, o.(prometheus.Metric).Write(&m))
	return m.GetHistogram()
}

func TestRegistry_SeriesNames(t *testing.T) {
	r := NewRegistry()
	r.RecordHTTPRequest("GET", "/health", "200", time.Millisecond)
	r.RecordResponseSize("GET", "/health", 64)
	r.RecordVirtualization(OutcomeBypass, "very-high", time.Millisecond, 1, 0, 0)
	r.RecordDiagnostic("missing_id")
	r.RecordGraphLoad("file", nil, 1, 0)

	families, err := r.GetPrometheusRegistry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, mf := range families {
		assert.True(t, strings.HasPrefix(mf.GetName(), "causalview_"), mf.GetName())
		names[mf.GetName()] = true
	}
	for _, want := range []string{
		"causalview_http_requests_total",
		"causalview_http_request_duration_seconds",
		"causalview_http_requests_in_flight",
		"causalview_http_response_size_bytes",
		"causalview_virtualizations_total",
		"causalview_virtualization_duration_seconds",
		"causalview_visible_nodes",
		"causalview_culled_nodes_total",
		"causalview_lod_selections_total",
		"causalview_malformed_nodes_total",
		"causalview_cluster_cache_hits_total",
		"causalview_cluster_cache_misses_total",
		"causalview_cluster_cache_entries",
		"causalview_config_updates_total",
		"causalview_scene_nodes_total",
		"causalview_scene_connections_total",
		"causalview_graph_loads_total",
		"causalview_uptime_seconds",
		"causalview_goroutines",
		"causalview_memory_alloc_bytes",
		"causalview_memory_sys_bytes",
	} {
		assert.True(t, names[want], "missing %s", want)
	}
}

func TestRegistry_Independent(t *testing.T) {
	a, b := NewRegistry(), NewRegistry()
	a.RecordConfigUpdate()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.ConfigUpdatesTotal))
	assert.Zero(t, testutil.ToFloat64(b.ConfigUpdatesTotal))
}

func TestRecordHTTP(t *testing.T) {
	r := NewRegistry()
	r.RecordHTTPRequest("POST", "/api/v1/virtualize", "200", 100*time.Millisecond)
	r.RecordHTTPRequest("POST", "/api/v1/virtualize", "200", 50*time.Millisecond)
	r.RecordHTTPRequest("POST", "/api/v1/virtualize", "400", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.HTTPRequestsTotal.WithLabelValues("POST", "/api/v1/virtualize", "200")))
	assert.Equal(t, 2, testutil.CollectAndCount(r.HTTPRequestsTotal))

	h := histogramOf(t, r.HTTPRequestDuration.WithLabelValues("POST", "/api/v1/virtualize", "200"))
	assert.EqualValues(t, 2, h.GetSampleCount())
	assert.InDelta(t, 0.15, h.GetSampleSum(), 1e-9)

	r.IncHTTPRequestsInFlight()
	r.IncHTTPRequestsInFlight()
	r.DecHTTPRequestsInFlight()
	assert.Equal(t, 1.0, testutil.ToFloat64(r.HTTPRequestsInFlight))

	r.RecordResponseSize("GET", "/api/v1/stats", 512)
	size := histogramOf(t, r.HTTPResponseSizeBytes.WithLabelValues("GET", "/api/v1/stats"))
	assert.Equal(t, 512.0, size.GetSampleSum())
	require.Len(t, size.GetBucket(), 5)
	assert.Equal(t, 1e6, size.GetBucket()[4].GetUpperBound())
}

func TestRecordVirtualization(t *testing.T) {
	r := NewRegistry()
	r.RecordVirtualization(OutcomeVirtualized, "very-low", 2*time.Millisecond, 50, 400, 120)
	r.RecordVirtualization(OutcomeVirtualized, "very-low", 3*time.Millisecond, 48, 100, 30)
	r.RecordVirtualization(OutcomeBypass, "very-high", time.Microsecond, 20, 0, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.VirtualizationsTotal.WithLabelValues(OutcomeVirtualized)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.VirtualizationsTotal.WithLabelValues(OutcomeBypass)))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.LODSelectionsTotal.WithLabelValues("very-low")))
	assert.Equal(t, 500.0, testutil.ToFloat64(r.CulledNodesTotal))
	assert.Equal(t, 150.0, testutil.ToFloat64(r.ClusteredNodesTotal))

	visible := histogramOf(t, r.VisibleNodes)
	assert.EqualValues(t, 3, visible.GetSampleCount())
	assert.Equal(t, 118.0, visible.GetSampleSum())
	// 48 and 20 fit the 50 bucket, 50 is on its edge
	assert.EqualValues(t, 3, visible.GetBucket()[1].GetCumulativeCount())
}

func TestClusterCacheAndDiagnostics(t *testing.T) {
	r := NewRegistry()
	r.RecordClusterCacheLookup(true)
	r.RecordClusterCacheLookup(true)
	r.RecordClusterCacheLookup(false)
	r.SetClusterCacheSize(7)
	r.RecordDiagnostic("missing_id")
	r.RecordDiagnostic("missing_id")
	r.RecordDiagnostic("missing_position")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.ClusterCacheHitsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ClusterCacheMissesTotal))
	assert.Equal(t, 7.0, testutil.ToFloat64(r.ClusterCacheSize))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.MalformedNodesTotal.WithLabelValues("missing_id")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.MalformedNodesTotal.WithLabelValues("missing_position")))
}

func TestRecordGraphLoad(t *testing.T) {
	r := NewRegistry()
	r.RecordGraphLoad("upload", nil, 1200, 3400)
	r.RecordGraphLoad("upload", errors.New("bad yaml"), 0, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.GraphLoadsTotal.WithLabelValues("upload", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.GraphLoadsTotal.WithLabelValues("upload", "error")))
	assert.Equal(t, 1200.0, testutil.ToFloat64(r.SceneNodesTotal), "failed load keeps the previous size")
	assert.Equal(t, 3400.0, testutil.ToFloat64(r.SceneConnectionsTotal))
}

func TestRecordRuntime(t *testing.T) {
	r := NewRegistry()
	r.RecordRuntime(90*time.Minute, 42, 100<<20, 200<<20)

	expected := `
# HELP causalview_goroutines Live goroutines
# TYPE causalview_goroutines gauge
causalview_goroutines 42
# HELP causalview_uptime_seconds Seconds since the server started
# TYPE causalview_uptime_seconds gauge
causalview_uptime_seconds 5400
`
	require.NoError(t, testutil.GatherAndCompare(r.GetPrometheusRegistry(), strings.NewReader(expected),
		"causalview_goroutines", "causalview_uptime_seconds"))
	assert.Equal(t, float64(100<<20), testutil.ToFloat64(r.MemoryAllocBytes))
	assert.Equal(t, float64(200<<20), testutil.ToFloat64(r.MemorySysBytes))
}

func TestRegistry_ConcurrentRecording(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.RecordVirtualization(OutcomeVirtualized, "low", time.Millisecond, 10, 1, 0)
				r.RecordClusterCacheLookup(j%2 == 0)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1000.0, testutil.ToFloat64(r.VirtualizationsTotal.WithLabelValues(OutcomeVirtualized)))
	assert.Equal(t, 1000.0, testutil.ToFloat64(r.CulledNodesTotal))
	assert.Equal(t, 500.0, testutil.ToFloat64(r.ClusterCacheHitsTotal))
}

func BenchmarkRecordHTTPRequest(b *testing.B) {
	r := NewRegistry()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		r.RecordHTTPRequest("POST", "/api/v1/viewport", "200", 10*time.Millisecond)
	}
}

func BenchmarkRecordVirtualization(b *testing.B) {
	r := NewRegistry()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		r.RecordVirtualization(OutcomeVirtualized, "medium", time.Millisecond, 300, 700, 0)
	}
}

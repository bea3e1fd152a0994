package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang/snappy"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-causalview/pkg/metrics"
	"github.com/dd0wney/cluso-causalview/pkg/validation"
	"github.com/dd0wney/cluso-causalview/pkg/visualization"
)

func newTestServer(t *testing.T, cfg visualization.PartialConfig) *Server {
	t.Helper()
	reg := metrics.NewRegistry()
	engine := visualization.NewVirtualizer(
		visualization.WithSeed(1),
		visualization.WithConfig(cfg),
		visualization.WithMetrics(reg),
	)
	s, err := NewServer(engine, nil, reg)
	require.NoError(t, err)
	return s
}

// gridNodes lays n combat nodes on a 20-column grid with 10-unit spacing
func gridNodes(n int) ([]validation.NodeRequest, []validation.ConnectionRequest) {
	nodes := make([]validation.NodeRequest, n)
	var conns []validation.ConnectionRequest
	for i := range nodes {
		impact := float64(i%10) / 10
		x, y := float64(i%20)*10, float64(i/20)*10
		nodes[i] = validation.NodeRequest{
			ID:     fmt.Sprintf("e%04d", i),
			Type:   "normal",
			System: "combat",
			Impact: &impact,
			X:      &x,
			Y:      &y,
		}
		if i > 0 {
			conns = append(conns, validation.ConnectionRequest{Source: nodes[i-1].ID, Target: nodes[i].ID})
		}
	}
	return nodes, conns
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	case []byte:
		r = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

// resultBody mirrors the JSON shape of visualization.Result
type resultBody struct {
	VisibleNodes       []visualization.Node       `json:"visibleNodes"`
	VisibleConnections []visualization.Connection `json:"visibleConnections"`
	TotalNodes         int                        `json:"totalNodes"`
	VisibleNodeCount   int                        `json:"visibleNodeCount"`
	CulledNodeCount    int                        `json:"culledNodeCount"`
	ClusteredNodeCount int                        `json:"clusteredNodeCount"`
	DroppedNodeCount   int                        `json:"droppedNodeCount"`
	LODLevel           string                     `json:"lodLevel"`
	IsVirtualized      bool                       `json:"isVirtualized"`
	Diagnostics        []visualization.Diagnostic `json:"diagnostics"`
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func loadGrid(t *testing.T, h http.Handler, n int) {
	t.Helper()
	nodes, conns := gridNodes(n)
	rr := do(t, h, http.MethodPut, "/api/v1/graph", validation.GraphRequest{Nodes: nodes, Connections: conns})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

func TestVirtualize_Bypass(t *testing.T) {
	h := newTestServer(t, visualization.PartialConfig{}).Handler()
	nodes, conns := gridNodes(30)

	rr := do(t, h, http.MethodPost, "/api/v1/virtualize", validation.VirtualizeRequest{
		Nodes:       nodes,
		Connections: conns,
		Viewport:    &validation.ViewportRequest{Width: 10, Height: 10, Zoom: 0.1},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	res := decode[resultBody](t, rr)
	assert.False(t, res.IsVirtualized)
	assert.Equal(t, visualization.MaxDetail(), res.LODLevel)
	assert.Equal(t, 30, res.VisibleNodeCount)
	assert.Len(t, res.VisibleConnections, 29)
	assert.Empty(t, res.Diagnostics)
}

func TestVirtualize_Culls(t *testing.T) {
	h := newTestServer(t, visualization.PartialConfig{MaxNodes: visualization.Ptr(100)}).Handler()
	nodes, conns := gridNodes(400)

	rr := do(t, h, http.MethodPost, "/api/v1/virtualize", validation.VirtualizeRequest{
		Nodes:       nodes,
		Connections: conns,
		Viewport:    &validation.ViewportRequest{Width: 50, Height: 50, Zoom: 1},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	res := decode[resultBody](t, rr)
	assert.True(t, res.IsVirtualized)
	assert.Equal(t, "high", res.LODLevel)
	assert.Equal(t, 400, res.TotalNodes)
	// Buffered bounds [-100, 150] keep a 16x16 block of the grid
	assert.Equal(t, 256, res.VisibleNodeCount)
	assert.Equal(t, 400-256, res.CulledNodeCount)
	for _, n := range res.VisibleNodes {
		assert.LessOrEqual(t, n.X.Or(0), 150.0)
		assert.LessOrEqual(t, n.Y.Or(0), 150.0)
	}
}

func TestVirtualize_RenderFormat(t *testing.T) {
	h := newTestServer(t, visualization.PartialConfig{}).Handler()
	nodes, conns := gridNodes(3)
	nodes[2].X = nil

	rr := do(t, h, http.MethodPost, "/api/v1/virtualize?format=render", validation.VirtualizeRequest{
		Nodes:       nodes,
		Connections: conns,
		Viewport:    &validation.ViewportRequest{Width: 10, Height: 10, Zoom: 1},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var payload struct {
		Nodes []struct {
			ID string  `json:"id"`
			X  float64 `json:"x"`
		} `json:"nodes"`
		Edges []struct {
			From string `json:"from"`
			To   string `json:"to"`
		} `json:"edges"`
		Stats struct {
			TotalNodes int `json:"totalNodes"`
		} `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	require.Len(t, payload.Nodes, 3)
	assert.Equal(t, visualization.MissingCoordinate, payload.Nodes[2].X)
	require.Len(t, payload.Edges, 2)
	assert.Equal(t, "e0000", payload.Edges[0].From)
	assert.Equal(t, 3, payload.Stats.TotalNodes)
}

func TestVirtualize_Diagnostics(t *testing.T) {
	h := newTestServer(t, visualization.PartialConfig{MaxNodes: visualization.Ptr(0)}).Handler()
	nodes, _ := gridNodes(4)
	nodes[1].Impact = nil
	nodes[3].ID = ""

	rr := do(t, h, http.MethodPost, "/api/v1/virtualize", validation.VirtualizeRequest{
		Nodes:    nodes,
		Viewport: &validation.ViewportRequest{Width: 100, Height: 100, Zoom: 1},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	res := decode[resultBody](t, rr)
	require.Len(t, res.Diagnostics, 2)
	assert.Equal(t, visualization.DiagnosticMissingImpact, res.Diagnostics[0].Kind)
	assert.Equal(t, "e0001", res.Diagnostics[0].NodeID)
	assert.Equal(t, visualization.DiagnosticMissingID, res.Diagnostics[1].Kind)
	assert.Equal(t, 3, res.Diagnostics[1].Index)
	assert.Equal(t, 3, res.VisibleNodeCount)
	assert.Equal(t, 1, res.DroppedNodeCount)
	assert.Equal(t, res.TotalNodes, res.VisibleNodeCount+res.CulledNodeCount+res.DroppedNodeCount)
}

func TestVirtualize_Rejections(t *testing.T) {
	h := newTestServer(t, visualization.PartialConfig{}).Handler()
	nodes, _ := gridNodes(2)

	tests := []struct {
		name    string
		method  string
		body    any
		status  int
		message string
	}{
		{"zero zoom", http.MethodPost, validation.VirtualizeRequest{Nodes: nodes, Viewport: &validation.ViewportRequest{Zoom: 0}}, http.StatusBadRequest, "viewport.zoom"},
		{"missing viewport", http.MethodPost, validation.VirtualizeRequest{Nodes: nodes}, http.StatusBadRequest, "viewport"},
		{"bad json", http.MethodPost, `{"nodes": [`, http.StatusBadRequest, "invalid request body"},
		{"empty body", http.MethodPost, "", http.StatusBadRequest, "empty"},
		{"wrong method", http.MethodGet, nil, http.StatusMethodNotAllowed, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, h, tt.method, "/api/v1/virtualize", tt.body)
			require.Equal(t, tt.status, rr.Code, rr.Body.String())
			if tt.message != "" {
				resp := decode[ErrorResponse](t, rr)
				assert.Equal(t, tt.status, resp.Code)
				assert.Contains(t, resp.Message, tt.message)
			}
		})
	}
}

func TestScene_LoadAndViewport(t *testing.T) {
	h := newTestServer(t, visualization.PartialConfig{MaxNodes: visualization.Ptr(100)}).Handler()
	viewport := validation.ViewportRequest{Width: 50, Height: 50, Zoom: 1}

	rr := do(t, h, http.MethodPost, "/api/v1/viewport", viewport)
	require.Equal(t, http.StatusConflict, rr.Code)

	summary := decode[GraphSummary](t, do(t, h, http.MethodGet, "/api/v1/graph", nil))
	assert.False(t, summary.Loaded)

	nodes, conns := gridNodes(400)
	nodes[5].Impact = nil
	rr = do(t, h, http.MethodPut, "/api/v1/graph", validation.GraphRequest{Nodes: nodes, Connections: conns})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	put := decode[PutGraphResponse](t, rr)
	assert.True(t, put.Loaded)
	assert.Equal(t, 400, put.Nodes)
	assert.Equal(t, 399, put.Connections)
	assert.Equal(t, map[string]int{"combat": 400}, put.Systems)
	assert.Equal(t, "api", put.Source)
	require.Len(t, put.Diagnostics, 1)
	assert.Equal(t, visualization.DiagnosticMissingImpact, put.Diagnostics[0].Kind)

	rr = do(t, h, http.MethodPost, "/api/v1/viewport", viewport)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	res := decode[resultBody](t, rr)
	assert.Equal(t, 400, res.TotalNodes)
	assert.Equal(t, 256, res.VisibleNodeCount)

	rr = do(t, h, http.MethodPost, "/api/v1/viewport", validation.ViewportRequest{Width: -1, Zoom: 1})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestScene_RejectedUpload(t *testing.T) {
	s := newTestServer(t, visualization.PartialConfig{})
	h := s.Handler()

	rr := do(t, h, http.MethodPut, "/api/v1/graph", validation.GraphRequest{
		Connections: []validation.ConnectionRequest{{Source: "a"}},
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decode[ErrorResponse](t, rr).Message, "connections[0].target")
	assert.False(t, s.Scene().Loaded)
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metricsRegistry.GraphLoadsTotal.WithLabelValues("api", "error")))
}

func TestScene_YAMLRoundTrip(t *testing.T) {
	h := newTestServer(t, visualization.PartialConfig{}).Handler()

	g := visualization.Graph{
		Nodes: []visualization.Node{
			{ID: "a", Type: visualization.NodeTypeNormal, System: "economic", Impact: 0.4, X: visualization.At(1), Y: visualization.At(2)},
			{ID: "b", System: "economic", Impact: 0.9},
		},
		Connections: []visualization.Connection{{Source: "a", Target: "b", Strength: 0.5}},
	}
	var doc bytes.Buffer
	require.NoError(t, visualization.EncodeGraph(&doc, g, visualization.FormatYAML))

	req := httptest.NewRequest(http.MethodPut, "/api/v1/graph", &doc)
	req.Header.Set("Content-Type", "application/yaml")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, 2, decode[PutGraphResponse](t, rr).Nodes)

	rr = do(t, h, http.MethodGet, "/api/v1/graph?format=yaml", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/yaml", rr.Header().Get("Content-Type"))
	back, err := visualization.DecodeGraph(rr.Body, visualization.FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, g, back)

	rr = do(t, h, http.MethodGet, "/api/v1/graph?format=json", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	back, err = visualization.DecodeGraph(rr.Body, visualization.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, g, back)

	rr = do(t, h, http.MethodGet, "/api/v1/graph?format=xml", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestConfig_GetAndPatch(t *testing.T) {
	h := newTestServer(t, visualization.PartialConfig{}).Handler()

	cfg := decode[visualization.Config](t, do(t, h, http.MethodGet, "/api/v1/config", nil))
	assert.Equal(t, visualization.DefaultConfig(), cfg)

	rr := do(t, h, http.MethodPatch, "/api/v1/config", map[string]any{"maxNodes": 10, "enableCulling": false})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	cfg = decode[visualization.Config](t, rr)
	assert.Equal(t, 10, cfg.MaxNodes)
	assert.False(t, cfg.EnableCulling)
	assert.Equal(t, visualization.DefaultViewportBuffer, cfg.ViewportBuffer)

	for _, body := range []map[string]any{
		{"maxNodes": -1},
		{"lodLevels": []float64{2, 1}},
		{"clusteringThreshold": 500},
	} {
		rr := do(t, h, http.MethodPatch, "/api/v1/config", body)
		assert.Equal(t, http.StatusBadRequest, rr.Code, "%v", body)
	}

	cfg = decode[visualization.Config](t, do(t, h, http.MethodGet, "/api/v1/config", nil))
	assert.Equal(t, 10, cfg.MaxNodes, "rejected updates must not change the config")
}

func TestClusters_ExpandAndClear(t *testing.T) {
	h := newTestServer(t, visualization.PartialConfig{
		MaxNodes:      visualization.Ptr(0),
		EnableCulling: visualization.Ptr(false),
	}).Handler()
	loadGrid(t, h, 400)

	rr := do(t, h, http.MethodPost, "/api/v1/viewport", validation.ViewportRequest{Width: 100, Height: 100, Zoom: 0.2})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	res := decode[resultBody](t, rr)
	require.Positive(t, res.ClusteredNodeCount)
	assert.Empty(t, res.VisibleConnections)

	var cluster visualization.Node
	for _, n := range res.VisibleNodes {
		if n.IsCluster() {
			cluster = n
			break
		}
	}
	require.NotEmpty(t, cluster.ID)

	rr = do(t, h, http.MethodGet, "/api/v1/clusters/"+cluster.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	expanded := decode[visualization.Node](t, rr)
	assert.Equal(t, cluster.ID, expanded.ID)
	assert.Len(t, expanded.NodeIDs, expanded.NodeCount)

	stats := decode[StatsResponse](t, do(t, h, http.MethodGet, "/api/v1/stats", nil))
	assert.Positive(t, stats.Engine.CacheSize)
	require.NotNil(t, stats.Engine.LastViewport)
	assert.Equal(t, 0.2, stats.Engine.LastViewport.Zoom)
	assert.True(t, stats.Scene.Loaded)
	assert.Equal(t, Version, stats.Version)

	rr = do(t, h, http.MethodDelete, "/api/v1/cache", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, stats.Engine.CacheSize, decode[ClearCacheResponse](t, rr).Cleared)

	rr = do(t, h, http.MethodGet, "/api/v1/clusters/"+cluster.ID, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/v1/clusters/not-a-cluster", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	stats = decode[StatsResponse](t, do(t, h, http.MethodGet, "/api/v1/stats", nil))
	assert.Zero(t, stats.Engine.CacheSize)
	assert.Nil(t, stats.Engine.LastViewport)
}

func TestSnappyTransport(t *testing.T) {
	h := newTestServer(t, visualization.PartialConfig{}).Handler()
	nodes, conns := gridNodes(10)
	body, err := json.Marshal(validation.VirtualizeRequest{
		Nodes:       nodes,
		Connections: conns,
		Viewport:    &validation.ViewportRequest{Width: 10, Height: 10, Zoom: 1},
	})
	require.NoError(t, err)

	var compressed bytes.Buffer
	sw := snappy.NewBufferedWriter(&compressed)
	_, err = sw.Write(body)
	require.NoError(t, err)
	require.NoError(t, sw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/virtualize", &compressed)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "snappy")
	req.Header.Set("Accept-Encoding", "snappy")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "snappy", rr.Header().Get("Content-Encoding"))

	plain, err := io.ReadAll(snappy.NewReader(rr.Body))
	require.NoError(t, err)
	var res resultBody
	require.NoError(t, json.Unmarshal(plain, &res))
	assert.Equal(t, 10, res.VisibleNodeCount)
}

func TestBodySizeLimit(t *testing.T) {
	s := newTestServer(t, visualization.PartialConfig{})
	s.SetMaxBodyBytes(64)
	h := s.Handler()

	nodes, _ := gridNodes(20)
	rr := do(t, h, http.MethodPut, "/api/v1/graph", validation.GraphRequest{Nodes: nodes})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestHealthEndpoints(t *testing.T) {
	h := newTestServer(t, visualization.PartialConfig{}).Handler()

	rr := do(t, h, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var health struct {
		Status string                    `json:"status"`
		Checks map[string]map[string]any `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &health))
	assert.Equal(t, "degraded", health.Status)
	assert.Equal(t, "degraded", health.Checks["scene"]["status"])
	assert.Contains(t, health.Checks, "cluster_cache")

	loadGrid(t, h, 5)
	rr = do(t, h, http.MethodGet, "/health", nil)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Checks["scene"]["status"])

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health/ready", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health/live", nil).Code)
}

func TestHealth_OutOfRangeConfigIsDegraded(t *testing.T) {
	h := newTestServer(t, visualization.PartialConfig{ViewportBuffer: visualization.Ptr(-5.0)}).Handler()
	loadGrid(t, h, 5)

	rr := do(t, h, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var health struct {
		Status string                    `json:"status"`
		Checks map[string]map[string]any `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &health))
	assert.Equal(t, "degraded", health.Status)
	assert.Equal(t, "degraded", health.Checks["engine"]["status"])
	assert.Contains(t, health.Checks["engine"]["message"], "viewport buffer -5")
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(t, visualization.PartialConfig{}).Handler()
	loadGrid(t, h, 5)
	do(t, h, http.MethodPost, "/api/v1/viewport", validation.ViewportRequest{Width: 1, Height: 1, Zoom: 1})

	rr := do(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `causalview_virtualizations_total{outcome="bypass"} 1`)
	assert.Contains(t, body, `causalview_scene_nodes`)
	assert.Contains(t, body, `path="/api/v1/viewport"`)
}

func TestGraphQLEndpoint(t *testing.T) {
	h := newTestServer(t, visualization.PartialConfig{}).Handler()
	loadGrid(t, h, 12)

	rr := do(t, h, http.MethodPost, "/graphql", map[string]any{
		"query": `{ scene { loaded nodes } viewport(width: 10, height: 10, zoom: 1) { totalNodes } }`,
	})
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Data struct {
			Scene struct {
				Loaded bool `json:"loaded"`
				Nodes  int  `json:"nodes"`
			} `json:"scene"`
			Viewport struct {
				TotalNodes int `json:"totalNodes"`
			} `json:"viewport"`
		} `json:"data"`
		Errors []any `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Empty(t, resp.Errors)
	assert.True(t, resp.Data.Scene.Loaded)
	assert.Equal(t, 12, resp.Data.Scene.Nodes)
	assert.Equal(t, 12, resp.Data.Viewport.TotalNodes)
}

func TestStartMetricsCollector(t *testing.T) {
	s := newTestServer(t, visualization.PartialConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.StartMetricsCollector(ctx, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(s.metricsRegistry.GoRoutines) > 0 &&
			testutil.ToFloat64(s.metricsRegistry.MemorySysBytes) > 0
	}, time.Second, 10*time.Millisecond)
}

func TestNewServer_RequiresEngine(t *testing.T) {
	_, err := NewServer(nil, nil, nil)
	require.Error(t, err)
}

func TestServerWithoutMetrics(t *testing.T) {
	s, err := NewServer(visualization.NewVirtualizer(), nil, nil)
	require.NoError(t, err)
	h := s.Handler()

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/metrics", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/v1/stats", nil).Code)
	s.StartMetricsCollector(context.Background(), time.Millisecond)
}

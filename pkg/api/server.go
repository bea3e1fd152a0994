package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dd0wney/cluso-causalview/pkg/api/middleware"
	"github.com/dd0wney/cluso-causalview/pkg/graphql"
	"github.com/dd0wney/cluso-causalview/pkg/health"
	"github.com/dd0wney/cluso-causalview/pkg/logging"
	"github.com/dd0wney/cluso-causalview/pkg/metrics"
	"github.com/dd0wney/cluso-causalview/pkg/visualization"
)

// Version is reported by /api/v1/stats
const Version = "1.0.0"

// DefaultMaxBodyBytes bounds request bodies after snappy decoding
const DefaultMaxBodyBytes = 32 << 20

// Thresholds past which health checks report degraded
const (
	maxHealthyCacheEntries = 100000
	maxHealthyHeapBytes    = 4 << 30
)

// Server represents the HTTP API server: one shared engine plus the scene
// graph that viewport requests are answered from
type Server struct {
	engine          *visualization.Virtualizer
	logger          logging.Logger
	metricsRegistry *metrics.Registry
	healthChecker   *health.Checker
	graphqlHandler  *graphql.GraphQLHandler
	corsConfig      *middleware.CORSConfig
	maxBodyBytes    int64
	tlsEnabled      bool
	startTime       time.Time
	version         string

	sceneMu       sync.RWMutex
	scene         *visualization.Graph
	sceneSource   string
	sceneLoadedAt time.Time
}

// NewServer creates a new API server around engine. A nil logger discards
// logs and a nil registry disables metrics.
func NewServer(engine *visualization.Virtualizer, logger logging.Logger, registry *metrics.Registry) (*Server, error) {
	if engine == nil {
		return nil, errors.New("api: engine is required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	s := &Server{
		engine:          engine,
		logger:          logger.With(logging.Component("api")),
		metricsRegistry: registry,
		healthChecker:   health.NewChecker(),
		corsConfig:      middleware.DefaultCORSConfig(),
		maxBodyBytes:    DefaultMaxBodyBytes,
		startTime:       time.Now(),
		version:         Version,
	}

	schema, err := graphql.GenerateSchema(s, nil)
	if err != nil {
		return nil, err
	}
	s.graphqlHandler = graphql.NewGraphQLHandler(schema, logger)

	s.registerHealthChecks()
	return s, nil
}

// SetCORSConfig sets the CORS configuration for the server
func (s *Server) SetCORSConfig(cfg *middleware.CORSConfig) {
	s.corsConfig = cfg
}

// SetMaxBodyBytes sets the request body limit
func (s *Server) SetMaxBodyBytes(n int64) {
	if n > 0 {
		s.maxBodyBytes = n
	}
}

// SetTLSEnabled turns on HSTS
func (s *Server) SetTLSEnabled(enabled bool) {
	s.tlsEnabled = enabled
}

// Handler returns the routed API wrapped in the middleware chain
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/virtualize", s.handleVirtualize)
	mux.HandleFunc("GET /api/v1/graph", s.handleGetGraph)
	mux.HandleFunc("PUT /api/v1/graph", s.handlePutGraph)
	mux.HandleFunc("POST /api/v1/viewport", s.handleViewport)
	mux.HandleFunc("GET /api/v1/config", s.handleGetConfig)
	mux.HandleFunc("PATCH /api/v1/config", s.handlePatchConfig)
	mux.HandleFunc("DELETE /api/v1/cache", s.handleClearCache)
	mux.HandleFunc("GET /api/v1/stats", s.handleStats)
	mux.HandleFunc("GET /api/v1/clusters/{id}", s.handleCluster)

	mux.Handle("/graphql", s.graphqlHandler)
	mux.HandleFunc("GET /health", s.healthChecker.HTTPHandler())
	mux.HandleFunc("GET /health/ready", s.healthChecker.ReadinessHandler())
	mux.HandleFunc("GET /health/live", s.healthChecker.LivenessHandler())
	if s.metricsRegistry != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.metricsRegistry.GetPrometheusRegistry(), promhttp.HandlerOpts{}))
	}

	var handler http.Handler = mux
	if s.metricsRegistry != nil {
		handler = middleware.Metrics(s.metricsRegistry)(handler)
	}
	handler = middleware.BodySizeLimit(s.maxBodyBytes)(handler)
	handler = middleware.Snappy()(handler)
	handler = middleware.CORS(s.corsConfig)(handler)
	handler = middleware.SecurityHeaders(&middleware.SecurityHeadersConfig{TLSEnabled: s.tlsEnabled})(handler)
	handler = middleware.Logging(s.logger, middleware.GetRequestID)(handler)
	handler = middleware.RequestID()(handler)
	handler = middleware.PanicRecovery(s.logger)(handler)
	return handler
}

// LoadScene replaces the scene graph. Cached clusters of the previous scene
// are dropped.
func (s *Server) LoadScene(g visualization.Graph, source string) {
	scene := visualization.Graph{
		Nodes:       slices.Clone(g.Nodes),
		Connections: slices.Clone(g.Connections),
	}

	s.sceneMu.Lock()
	s.scene = &scene
	s.sceneSource = source
	s.sceneLoadedAt = time.Now()
	s.sceneMu.Unlock()

	s.engine.ClearCache()
	if s.metricsRegistry != nil {
		s.metricsRegistry.RecordGraphLoad(source, nil, len(scene.Nodes), len(scene.Connections))
	}
	s.logger.Info("scene loaded",
		logging.String("source", source),
		logging.Int("nodes", len(scene.Nodes)),
		logging.Int("connections", len(scene.Connections)))
}

// recordLoadFailure counts a rejected scene upload
func (s *Server) recordLoadFailure(source string, err error) {
	if s.metricsRegistry != nil {
		s.metricsRegistry.RecordGraphLoad(source, err, 0, 0)
	}
}

// VirtualizeScene runs the engine over the loaded scene
func (s *Server) VirtualizeScene(vp visualization.Viewport) (visualization.Result, error) {
	s.sceneMu.RLock()
	scene := s.scene
	s.sceneMu.RUnlock()

	if scene == nil {
		return visualization.Result{}, graphql.ErrNoScene
	}
	return s.engine.Virtualize(scene.Nodes, scene.Connections, vp), nil
}

// Scene summarizes the loaded scene
func (s *Server) Scene() graphql.SceneSummary {
	s.sceneMu.RLock()
	defer s.sceneMu.RUnlock()

	if s.scene == nil {
		return graphql.SceneSummary{}
	}
	return graphql.SceneSummary{
		Loaded:      true,
		Nodes:       len(s.scene.Nodes),
		Connections: len(s.scene.Connections),
	}
}

// EngineStats returns the engine snapshot
func (s *Server) EngineStats() visualization.EngineStats {
	return s.engine.Stats()
}

// ExpandCluster looks up a cached cluster
func (s *Server) ExpandCluster(id string) (visualization.Node, bool) {
	return s.engine.ExpandCluster(id)
}

// graphSummary describes the scene with per-system node counts
func (s *Server) graphSummary() GraphSummary {
	s.sceneMu.RLock()
	defer s.sceneMu.RUnlock()

	if s.scene == nil {
		return GraphSummary{}
	}
	systems := make(map[string]int)
	for _, n := range s.scene.Nodes {
		systems[n.System]++
	}
	loadedAt := s.sceneLoadedAt
	return GraphSummary{
		Loaded:      true,
		Nodes:       len(s.scene.Nodes),
		Connections: len(s.scene.Connections),
		Systems:     systems,
		Source:      s.sceneSource,
		LoadedAt:    &loadedAt,
	}
}

func (s *Server) registerHealthChecks() {
	s.healthChecker.Register("scene", health.SceneCheck(func() (bool, int, int) {
		sum := s.Scene()
		return sum.Loaded, sum.Nodes, sum.Connections
	}), health.ProbeHealth)
	s.healthChecker.Register("cluster_cache", health.ClusterCacheCheck(maxHealthyCacheEntries, func() (int, uint64, uint64) {
		stats := s.engine.Stats()
		return stats.CacheSize, stats.CacheHits, stats.CacheMisses
	}), health.ProbeHealth)
	s.healthChecker.Register("memory", health.MemoryCheck(maxHealthyHeapBytes, health.RuntimeMemory), health.ProbeHealth)
	s.healthChecker.Register("engine", health.EngineCheck(s.probeEngine), health.ProbeAll)
}

// probeEngine checks that the engine answers and resolves a sane config
func (s *Server) probeEngine(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// The engine applies out-of-range values as given, so they degrade rather than fail.
	cfg := s.engine.Config()
	switch {
	case cfg.MaxNodes < 0:
		return fmt.Errorf("%w: max nodes %d disables the small-graph bypass", health.ErrDegraded, cfg.MaxNodes)
	case cfg.ViewportBuffer < 0:
		return fmt.Errorf("%w: viewport buffer %g shrinks the culling rectangle", health.ErrDegraded, cfg.ViewportBuffer)
	}
	return nil
}

// StartMetricsCollector updates system and scene gauges every interval until
// ctx is done
func (s *Server) StartMetricsCollector(ctx context.Context, interval time.Duration) {
	if s.metricsRegistry == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			s.updateSystemMetrics()
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func (s *Server) updateSystemMetrics() {
	alloc, sys := health.RuntimeMemory()
	s.metricsRegistry.RecordRuntime(time.Since(s.startTime), runtime.NumGoroutine(), alloc, sys)

	stats := s.engine.Stats()
	s.metricsRegistry.SetClusterCacheSize(stats.CacheSize)
}

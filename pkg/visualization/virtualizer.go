package visualization

import (
	"math/rand"
	"sync"
	"time"

	"github.com/dd0wney/cluso-causalview/pkg/logging"
	"github.com/dd0wney/cluso-causalview/pkg/metrics"
)

// Virtualizer decides which nodes and connections of a large causal graph the
// renderer should draw for a viewport. Each instance owns its cluster cache.
//
// Calls are synchronous and run to completion. A mutex guards the config, the
// cache and the last-viewport bookkeeping so one instance can back an HTTP host.
type Virtualizer struct {
	mu           sync.Mutex
	config       Config
	cache        *clusterCache
	lastViewport *Viewport
	rng          *rand.Rand
	logger       logging.Logger
	metrics      *metrics.Registry
}

// EngineStats is a side-effect free snapshot of engine state
type EngineStats struct {
	Config       Config    `json:"config"`
	CacheSize    int       `json:"cacheSize"`
	CacheHits    uint64    `json:"cacheHits"`
	CacheMisses  uint64    `json:"cacheMisses"`
	LastViewport *Viewport `json:"lastViewport"`
}

// Option configures a Virtualizer
type Option func(*Virtualizer)

// WithConfig merges options over the defaults
func WithConfig(p PartialConfig) Option {
	return func(v *Virtualizer) {
		v.config = v.config.Merge(p)
	}
}

// WithRand sets the source used to pick the first cluster center. Center
// selection is randomized on purpose; seed it to make clustering reproducible.
func WithRand(rng *rand.Rand) Option {
	return func(v *Virtualizer) {
		v.rng = rng
	}
}

// WithSeed is WithRand over a fresh source
func WithSeed(seed int64) Option {
	return WithRand(rand.New(rand.NewSource(seed)))
}

// WithLogger sets the engine logger
func WithLogger(logger logging.Logger) Option {
	return func(v *Virtualizer) {
		v.logger = logger
	}
}

// WithMetrics records engine activity into a metrics registry
func WithMetrics(r *metrics.Registry) Option {
	return func(v *Virtualizer) {
		v.metrics = r
	}
}

// NewVirtualizer creates an engine with default configuration unless overridden
func NewVirtualizer(opts ...Option) *Virtualizer {
	v := &Virtualizer{
		config: DefaultConfig(),
		cache:  newClusterCache(),
		logger: logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.rng == nil {
		v.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	v.logger = v.logger.With(logging.Component("virtualizer"))
	return v
}

// Virtualize reduces nodes and connections to what should be drawn for vp.
// Caller slices are never modified. Small graphs (at most MaxNodes) come back
// unchanged with IsVirtualized false.
func (v *Virtualizer) Virtualize(nodes []Node, connections []Connection, vp Viewport) Result {
	v.mu.Lock()
	defer v.mu.Unlock()

	start := time.Now()
	cfg := v.config
	seen := vp
	v.lastViewport = &seen

	if len(nodes) <= cfg.MaxNodes {
		result := Result{
			VisibleNodes:       nodes,
			VisibleConnections: connections,
			NodeMap:            buildNodeMap(nodes),
			TotalNodes:         len(nodes),
			VisibleNodeCount:   len(nodes),
			LODLevel:           MaxDetail(),
		}
		v.record(result, time.Since(start))
		return result
	}

	working, diags := ValidateNodes(nodes)
	dropped := len(nodes) - len(working)
	lod := LODFor(vp.Zoom)
	visibleConns := connections

	culled := 0
	if cfg.EnableCulling {
		working, culled = cullNodes(working, vp, cfg.ViewportBuffer)
	}

	var hidden map[string]int
	if cfg.EnableClustering && vp.Zoom < cfg.ClusteringThreshold && len(working) > lod.NodeLimit {
		working, hidden = v.clusterNodes(working, lod.NodeLimit)
		visibleConns = []Connection{}
	}

	if len(working) > lod.NodeLimit {
		working = limitByImpact(working, lod.NodeLimit)
		visibleConns = []Connection{}
	}
	// Counted after limiting so clusters the limiter dropped hide nothing
	clustered := hiddenCount(working, hidden)

	result := Result{
		VisibleNodes:       working,
		VisibleConnections: visibleConns,
		NodeMap:            buildNodeMap(working),
		TotalNodes:         len(nodes),
		VisibleNodeCount:   len(working),
		CulledNodeCount:    culled,
		ClusteredNodeCount: clustered,
		DroppedNodeCount:   dropped,
		LODLevel:           lod.Detail,
		IsVirtualized:      true,
		Diagnostics:        diags,
	}
	v.record(result, time.Since(start))
	return result
}

// UpdateConfig merges p over the current configuration and clears the cluster cache
func (v *Virtualizer) UpdateConfig(p PartialConfig) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.config = v.config.Merge(p)
	v.cache.reset()
	v.updateCacheGauge()
	if v.metrics != nil {
		v.metrics.RecordConfigUpdate()
	}

	v.logger.Info("configuration updated",
		logging.Int("max_nodes", v.config.MaxNodes),
		logging.Float64("viewport_buffer", v.config.ViewportBuffer),
		logging.Float64("clustering_threshold", v.config.ClusteringThreshold),
		logging.Bool("culling", v.config.EnableCulling),
		logging.Bool("clustering", v.config.EnableClustering),
	)
}

// ClearCache drops every cached cluster and forgets the last viewport
func (v *Virtualizer) ClearCache() {
	v.mu.Lock()
	defer v.mu.Unlock()

	dropped, hits := v.cache.len(), v.cache.hits
	v.cache.reset()
	v.lastViewport = nil
	v.updateCacheGauge()

	v.logger.Info("cluster cache cleared", logging.Count(dropped), logging.Uint64("hits", hits))
}

// Stats returns the current configuration, cache size and last viewport
func (v *Virtualizer) Stats() EngineStats {
	v.mu.Lock()
	defer v.mu.Unlock()

	stats := EngineStats{
		Config:      v.config.Merge(PartialConfig{}),
		CacheSize:   v.cache.len(),
		CacheHits:   v.cache.hits,
		CacheMisses: v.cache.misses,
	}
	if v.lastViewport != nil {
		last := *v.lastViewport
		stats.LastViewport = &last
	}
	return stats
}

// Config returns the resolved configuration
func (v *Virtualizer) Config() Config {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.config.Merge(PartialConfig{})
}

// ExpandCluster returns a cached cluster so a renderer can reveal its members
func (v *Virtualizer) ExpandCluster(id string) (Node, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cache.peek(id)
}

func buildNodeMap(nodes []Node) map[string]Node {
	m := make(map[string]Node, len(nodes))
	for _, n := range nodes {
		m[n.ID] = n
	}
	return m
}

func (v *Virtualizer) record(r Result, elapsed time.Duration) {
	outcome := metrics.OutcomeBypass
	if r.IsVirtualized {
		outcome = metrics.OutcomeVirtualized
	}

	v.logger.Debug("virtualize",
		logging.String("outcome", outcome),
		logging.LODLevel(r.LODLevel),
		logging.Int("total", r.TotalNodes),
		logging.Int("visible", r.VisibleNodeCount),
		logging.Int("culled", r.CulledNodeCount),
		logging.Int("clustered", r.ClusteredNodeCount),
		logging.Int("dropped", r.DroppedNodeCount),
		logging.Latency(elapsed),
	)
	for _, d := range r.Diagnostics {
		v.logger.Warn("malformed node", logging.String("kind", string(d.Kind)),
			logging.NodeID(d.NodeID), logging.Int("index", d.Index))
	}

	if v.metrics == nil {
		return
	}
	v.metrics.RecordVirtualization(outcome, r.LODLevel, elapsed,
		r.VisibleNodeCount, r.CulledNodeCount, r.ClusteredNodeCount)
	for _, d := range r.Diagnostics {
		v.metrics.RecordDiagnostic(string(d.Kind))
	}
	v.updateCacheGauge()
}

func (v *Virtualizer) recordCacheLookup(hit bool) {
	if v.metrics != nil {
		v.metrics.RecordClusterCacheLookup(hit)
	}
}

func (v *Virtualizer) updateCacheGauge() {
	if v.metrics != nil {
		v.metrics.SetClusterCacheSize(v.cache.len())
	}
}

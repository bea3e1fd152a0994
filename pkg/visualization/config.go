package visualization

import "slices"

// Config is a fully resolved engine configuration
type Config struct {
	// MaxNodes is the bypass threshold: inputs at or below it pass through untouched
	MaxNodes int `json:"maxNodes" yaml:"max_nodes" toml:"max_nodes"`
	// ViewportBuffer grows the culling rectangle on every side, in canvas units
	ViewportBuffer float64 `json:"viewportBuffer" yaml:"viewport_buffer" toml:"viewport_buffer"`
	// ClusteringThreshold is the zoom below which clustering may activate
	ClusteringThreshold float64 `json:"clusteringThreshold" yaml:"clustering_threshold" toml:"clustering_threshold"`
	// LODLevels is reported back to callers only; the LOD table is authoritative
	LODLevels        []float64 `json:"lodLevels" yaml:"lod_levels" toml:"lod_levels"`
	EnableCulling    bool      `json:"enableCulling" yaml:"enable_culling" toml:"enable_culling"`
	EnableClustering bool      `json:"enableClustering" yaml:"enable_clustering" toml:"enable_clustering"`
}

// PartialConfig carries only the options a caller wants to change
type PartialConfig struct {
	MaxNodes            *int      `json:"maxNodes,omitempty" yaml:"max_nodes,omitempty" toml:"max_nodes,omitempty"`
	ViewportBuffer      *float64  `json:"viewportBuffer,omitempty" yaml:"viewport_buffer,omitempty" toml:"viewport_buffer,omitempty"`
	ClusteringThreshold *float64  `json:"clusteringThreshold,omitempty" yaml:"clustering_threshold,omitempty" toml:"clustering_threshold,omitempty"`
	LODLevels           []float64 `json:"lodLevels,omitempty" yaml:"lod_levels,omitempty" toml:"lod_levels,omitempty"`
	EnableCulling       *bool     `json:"enableCulling,omitempty" yaml:"enable_culling,omitempty" toml:"enable_culling,omitempty"`
	EnableClustering    *bool     `json:"enableClustering,omitempty" yaml:"enable_clustering,omitempty" toml:"enable_clustering,omitempty"`
}

const (
	DefaultMaxNodes            = 500
	DefaultViewportBuffer      = 100.0
	DefaultClusteringThreshold = 0.5
)

// DefaultConfig returns the documented defaults
func DefaultConfig() Config {
	return Config{
		MaxNodes:            DefaultMaxNodes,
		ViewportBuffer:      DefaultViewportBuffer,
		ClusteringThreshold: DefaultClusteringThreshold,
		LODLevels:           []float64{0.25, 0.5, 0.75, 1.0, 2.0},
		EnableCulling:       true,
		EnableClustering:    true,
	}
}

// ResolveConfig fills every option the partial config omits with its default.
// Values are not range checked.
func ResolveConfig(p PartialConfig) Config {
	return DefaultConfig().Merge(p)
}

// Merge returns c with every option set in p overriding it
func (c Config) Merge(p PartialConfig) Config {
	out := c
	out.LODLevels = slices.Clone(c.LODLevels)
	if p.MaxNodes != nil {
		out.MaxNodes = *p.MaxNodes
	}
	if p.ViewportBuffer != nil {
		out.ViewportBuffer = *p.ViewportBuffer
	}
	if p.ClusteringThreshold != nil {
		out.ClusteringThreshold = *p.ClusteringThreshold
	}
	if p.LODLevels != nil {
		out.LODLevels = slices.Clone(p.LODLevels)
	}
	if p.EnableCulling != nil {
		out.EnableCulling = *p.EnableCulling
	}
	if p.EnableClustering != nil {
		out.EnableClustering = *p.EnableClustering
	}
	return out
}

// IsEmpty reports whether the partial config sets nothing
func (p PartialConfig) IsEmpty() bool {
	return p.MaxNodes == nil && p.ViewportBuffer == nil && p.ClusteringThreshold == nil &&
		p.LODLevels == nil && p.EnableCulling == nil && p.EnableClustering == nil
}

// Ptr returns a pointer to v, for building partial configs inline
func Ptr[T any](v T) *T {
	return &v
}

package visualization

import (
	"fmt"
	"math"
)

// Position is a point on the canvas
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance is the Euclidean distance between p and o
func (p Position) Distance(o Position) float64 {
	return math.Hypot(p.X-o.X, p.Y-o.Y)
}

// LayoutConfig sizes the canvas a layout fills. Zero fields take defaults.
type LayoutConfig struct {
	Width   float64
	Height  float64
	Padding float64
	// Iterations of the force simulation
	Iterations int
	// Seed of the force layout's initial placement
	Seed int64
}

const (
	defaultLayoutPadding    = 50
	defaultLayoutIterations = 50
)

func (c LayoutConfig) withDefaults() LayoutConfig {
	if c.Padding == 0 {
		c.Padding = defaultLayoutPadding
	}
	if c.Iterations == 0 {
		c.Iterations = defaultLayoutIterations
	}
	return c
}

// inner is the drawable area inside the padding
func (c LayoutConfig) inner() (w, h float64) {
	return math.Max(c.Width-2*c.Padding, 0), math.Max(c.Height-2*c.Padding, 0)
}

// Layout places the nodes of a graph. Nodes it leaves out keep their
// coordinates.
type Layout interface {
	ComputeLayout(g Graph) (map[string]Position, error)
}

// NewLayout returns the layout called name: force (force-directed),
// circular, or hierarchical (causal)
func NewLayout(name string, cfg LayoutConfig) (Layout, error) {
	switch name {
	case "force", "force-directed":
		return NewForceDirectedLayout(cfg), nil
	case "circular":
		return NewCircularLayout(cfg), nil
	case "hierarchical", "causal":
		return NewHierarchicalLayout(cfg), nil
	}
	return nil, fmt.Errorf("unknown layout %q", name)
}

// ApplyLayout returns a copy of g positioned by layout. g is not modified.
func ApplyLayout(g Graph, layout Layout) (Graph, error) {
	positions, err := layout.ComputeLayout(g)
	if err != nil {
		return Graph{}, fmt.Errorf("compute layout: %w", err)
	}

	nodes := make([]Node, len(g.Nodes))
	for i, n := range g.Nodes {
		if p, ok := positions[n.ID]; ok {
			n.X, n.Y = At(p.X), At(p.Y)
		}
		nodes[i] = n
	}
	return Graph{Nodes: nodes, Connections: g.Connections}, nil
}

// linkIndex resolves connections to node indexes, dropping dangling links,
// self links and duplicates (in either direction when undirected)
func linkIndex(g Graph, undirected bool) [][2]int {
	index := make(map[string]int, len(g.Nodes))
	for i, n := range g.Nodes {
		index[n.ID] = i
	}

	seen := make(map[[2]int]bool, len(g.Connections))
	links := make([][2]int, 0, len(g.Connections))
	for _, c := range g.Connections {
		s, ok1 := index[c.Source]
		t, ok2 := index[c.Target]
		if !ok1 || !ok2 || s == t {
			continue
		}
		key := [2]int{s, t}
		if undirected && t < s {
			key = [2]int{t, s}
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		links = append(links, key)
	}
	return links
}

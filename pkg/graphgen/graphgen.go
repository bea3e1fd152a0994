// Package graphgen builds synthetic causal graphs for benchmarks, demos and tests.
//
// Generation is a pure function of Options: the same seed always yields the
// same ids, positions, impacts and links.
package graphgen

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/google/uuid"

	"github.com/dd0wney/cluso-causalview/pkg/visualization"
)

// idNamespace scopes generated node ids
var idNamespace = uuid.MustParse("0b7c6a52-91d4-4e0f-8a3b-5c2d7e9f1a04")

// DefaultSystems are the subsystems the renderer has colors for
var DefaultSystems = []string{"combat", "social", "environment", "economic"}

var connectionTypes = []string{"causes", "triggers", "amplifies", "dampens"}

// Options controls the shape of a generated graph
type Options struct {
	Nodes   int
	Systems []string
	// Spread is the half-extent of the canvas region blob centers fall in
	Spread float64
	// BlobRadius is the standard deviation of node offsets around a system's center
	BlobRadius float64
	// LinksPerNode is the number of causes each non-root event gets
	LinksPerNode int
	// Unpositioned is the fraction of nodes generated without coordinates
	Unpositioned float64
	// Layout, when set, names a layout that positions every node afterwards
	Layout string
	Seed   int64
}

// DefaultOptions returns options for a mid-sized scene
func DefaultOptions() Options {
	return Options{
		Nodes:        2000,
		Systems:      DefaultSystems,
		Spread:       3000,
		BlobRadius:   400,
		LinksPerNode: 1,
		Seed:         1,
	}
}

// Generate builds a causal graph. Every connection points from an earlier
// event to a later one, so the result is acyclic.
func Generate(opts Options) (visualization.Graph, error) {
	if opts.Nodes < 0 {
		return visualization.Graph{}, fmt.Errorf("node count must be non-negative, got %d", opts.Nodes)
	}
	if opts.Unpositioned < 0 || opts.Unpositioned > 1 {
		return visualization.Graph{}, fmt.Errorf("unpositioned fraction must be within [0, 1], got %v", opts.Unpositioned)
	}
	systems := opts.Systems
	if len(systems) == 0 {
		systems = DefaultSystems
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	centers := make([]visualization.Position, len(systems))
	for i := range centers {
		centers[i] = visualization.Position{
			X: (rng.Float64()*2 - 1) * opts.Spread,
			Y: (rng.Float64()*2 - 1) * opts.Spread,
		}
	}

	g := visualization.Graph{
		Nodes:       make([]visualization.Node, opts.Nodes),
		Connections: []visualization.Connection{},
	}
	depth := make([]int, opts.Nodes)
	bySystem := make([][]int, len(systems))

	for i := range g.Nodes {
		s := rng.Intn(len(systems))
		node := visualization.Node{
			ID:       NodeID(opts.Seed, i),
			Type:     visualization.NodeTypeNormal,
			Label:    fmt.Sprintf("%s event %d", systems[s], i),
			System:   systems[s],
			Impact:   math.Round(math.Pow(rng.Float64(), 2)*1000) / 1000,
			Duration: 0.3,
		}
		if rng.Float64() >= opts.Unpositioned {
			node.X = visualization.At(math.Round(centers[s].X + rng.NormFloat64()*opts.BlobRadius))
			node.Y = visualization.At(math.Round(centers[s].Y + rng.NormFloat64()*opts.BlobRadius))
		}

		for l := 0; l < opts.LinksPerNode && i > 0; l++ {
			cause := pickCause(rng, bySystem[s], i)
			g.Connections = append(g.Connections, visualization.Connection{
				ID:       fmt.Sprintf("link-%d-%d", i, l),
				Source:   g.Nodes[cause].ID,
				Target:   node.ID,
				Type:     connectionTypes[rng.Intn(len(connectionTypes))],
				Strength: math.Round(rng.Float64()*100) / 100,
			})
			depth[i] = max(depth[i], depth[cause]+1)
		}
		node.Delay = float64(depth[i]) * 0.05

		g.Nodes[i] = node
		bySystem[s] = append(bySystem[s], i)
	}

	if opts.Layout == "" {
		return g, nil
	}
	layout, err := visualization.NewLayout(opts.Layout, visualization.LayoutConfig{
		Width:      opts.Spread * 2,
		Height:     opts.Spread * 2,
		Iterations: 50,
		Padding:    opts.BlobRadius,
		Seed:       opts.Seed,
	})
	if err != nil {
		return visualization.Graph{}, err
	}
	return visualization.ApplyLayout(g, layout)
}

// pickCause prefers a recent event of the same system and falls back to any
// earlier event
func pickCause(rng *rand.Rand, sameSystem []int, i int) int {
	if len(sameSystem) > 0 && rng.Float64() < 0.8 {
		window := min(len(sameSystem), 20)
		return sameSystem[len(sameSystem)-1-rng.Intn(window)]
	}
	return rng.Intn(i)
}

// NodeID returns the id of the i-th node generated from seed
func NodeID(seed int64, i int) string {
	return uuid.NewSHA1(idNamespace, fmt.Appendf(nil, "%d/%d", seed, i)).String()
}

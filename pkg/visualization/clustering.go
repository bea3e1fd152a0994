package visualization

import (
	"math"
	"math/rand"
)

const (
	// minClusterGroupSize is the largest subsystem group rendered in full
	minClusterGroupSize = 10
	// clusterRadius is the assignment radius around each center, in canvas units
	clusterRadius = 200.0
)

// systemGroup is the set of nodes sharing one subsystem tag
type systemGroup struct {
	system string
	nodes  []Node
}

// groupBySystem partitions nodes by subsystem, groups in first-seen order
func groupBySystem(nodes []Node) []systemGroup {
	index := make(map[string]int)
	var groups []systemGroup
	for _, n := range nodes {
		i, ok := index[n.System]
		if !ok {
			i = len(groups)
			index[n.System] = i
			groups = append(groups, systemGroup{system: n.System})
		}
		groups[i].nodes = append(groups[i].nodes, n)
	}
	return groups
}

// clusterNodes replaces dense subsystem groups with cluster nodes. It returns the
// new working set and, per synthesized cluster id, how many members it hides.
func (v *Virtualizer) clusterNodes(nodes []Node, budget int) ([]Node, map[string]int) {
	groups := groupBySystem(nodes)
	hidden := make(map[string]int)
	if len(groups) == 0 {
		return nodes, hidden
	}

	k := int(math.Ceil(float64(budget) / float64(len(groups))))
	if k < 1 {
		k = 1
	}

	out := make([]Node, 0, len(nodes))
	for _, g := range groups {
		if len(g.nodes) <= minClusterGroupSize {
			out = append(out, g.nodes...)
			continue
		}
		for _, members := range spatialClusters(g.nodes, k, v.rng) {
			if len(members) == 1 {
				out = append(out, members[0])
				continue
			}
			c := v.clusterNode(g.system, members)
			out = append(out, c)
			hidden[c.ID] = len(members) - 1
		}
	}
	return out, hidden
}

// hiddenCount sums the members hidden by the synthesized clusters present in nodes
func hiddenCount(nodes []Node, hidden map[string]int) int {
	total := 0
	for _, n := range nodes {
		total += hidden[n.ID]
	}
	return total
}

// spatialClusters splits one group into at most k clusters: farthest-point
// centers, then radius assignment, then nearest-center assignment for the rest.
func spatialClusters(nodes []Node, k int, rng *rand.Rand) [][]Node {
	pos := make([]Position, len(nodes))
	for i, n := range nodes {
		pos[i] = n.Position()
	}

	centers := selectCenters(pos, k, rng)

	clusters := make([][]Node, len(centers))
	assigned := make([]bool, len(nodes))
	for ci, c := range centers {
		clusters[ci] = []Node{nodes[c]}
		assigned[c] = true
	}

	for ci, c := range centers {
		for i := range nodes {
			if assigned[i] {
				continue
			}
			if pos[i].Distance(pos[c]) <= clusterRadius {
				clusters[ci] = append(clusters[ci], nodes[i])
				assigned[i] = true
			}
		}
	}

	for i := range nodes {
		if assigned[i] {
			continue
		}
		nearest, best := 0, math.Inf(1)
		for ci, c := range centers {
			if d := pos[i].Distance(pos[c]); d < best {
				nearest, best = ci, d
			}
		}
		clusters[nearest] = append(clusters[nearest], nodes[i])
		assigned[i] = true
	}

	return clusters
}

// selectCenters picks up to k indices. The first is uniformly random so repeated
// calls spread differently; each next one is the point farthest from all chosen.
func selectCenters(pos []Position, k int, rng *rand.Rand) []int {
	if len(pos) == 0 || k <= 0 {
		return nil
	}
	if k > len(pos) {
		k = len(pos)
	}

	first := rng.Intn(len(pos))
	centers := make([]int, 1, k)
	centers[0] = first

	chosen := make([]bool, len(pos))
	chosen[first] = true

	// minDist[i] is the distance from i to its nearest chosen center
	minDist := make([]float64, len(pos))
	for i := range pos {
		minDist[i] = pos[i].Distance(pos[first])
	}

	for len(centers) < k {
		next, farthest := -1, -1.0
		for i, d := range minDist {
			if !chosen[i] && d > farthest {
				next, farthest = i, d
			}
		}
		if next < 0 {
			break
		}
		centers = append(centers, next)
		chosen[next] = true
		for i := range pos {
			if d := pos[i].Distance(pos[next]); d < minDist[i] {
				minDist[i] = d
			}
		}
	}
	return centers
}

// clusterNode returns the cached cluster for this membership, building it on a miss
func (v *Virtualizer) clusterNode(system string, members []Node) Node {
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}
	id := ClusterID(system, ids)

	if cached, ok := v.cache.get(id); ok {
		v.recordCacheLookup(true)
		return cached
	}
	v.recordCacheLookup(false)

	cluster := synthesizeCluster(id, system, members)
	v.cache.put(cluster)
	return cluster
}

package visualization

import (
	"cmp"
	"slices"
)

// HierarchicalLayout stacks events in rows by causal depth, causes above
// effects. Depth is the longest causal chain leading to an event, so every
// link of an acyclic graph points down. Events on a cycle go on the row below
// the deepest acyclic event.
type HierarchicalLayout struct {
	cfg LayoutConfig
}

func NewHierarchicalLayout(cfg LayoutConfig) *HierarchicalLayout {
	return &HierarchicalLayout{cfg: cfg.withDefaults()}
}

func (l *HierarchicalLayout) ComputeLayout(g Graph) (map[string]Position, error) {
	out := make(map[string]Position, len(g.Nodes))
	if len(g.Nodes) == 0 {
		return out, nil
	}

	rows := causalRows(g)
	w, h := l.cfg.inner()
	rowHeight := h / float64(len(rows))
	for r, row := range rows {
		y := l.cfg.Padding + (float64(r)+0.5)*rowHeight
		gap := w / float64(len(row)+1)
		for c, i := range row {
			out[g.Nodes[i].ID] = Position{X: l.cfg.Padding + gap*float64(c+1), Y: y}
		}
	}
	return out, nil
}

// causalRows groups node indexes by longest-path depth (Kahn's algorithm).
// Within a row nodes are ordered by system, then id.
func causalRows(g Graph) [][]int {
	n := len(g.Nodes)
	effects := make([][]int, n)
	causes := make([]int, n)
	for _, link := range linkIndex(g, false) {
		effects[link[0]] = append(effects[link[0]], link[1])
		causes[link[1]]++
	}

	depth := make([]int, n)
	placed := make([]bool, n)
	queue := make([]int, 0, n)
	for i := range n {
		if causes[i] == 0 {
			queue = append(queue, i)
		}
	}
	deepest := 0
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		placed[i] = true
		deepest = max(deepest, depth[i])
		for _, e := range effects[i] {
			depth[e] = max(depth[e], depth[i]+1)
			if causes[e]--; causes[e] == 0 {
				queue = append(queue, e)
			}
		}
	}

	cyclic := false
	for i := range n {
		if !placed[i] {
			cyclic = true
			break
		}
	}
	last := deepest
	if cyclic && slices.Contains(placed, true) {
		last = deepest + 1
	}

	rows := make([][]int, last+1)
	for i := range n {
		d := depth[i]
		if !placed[i] {
			d = last
		}
		rows[d] = append(rows[d], i)
	}
	for _, row := range rows {
		slices.SortFunc(row, func(a, b int) int {
			return cmp.Or(cmp.Compare(g.Nodes[a].System, g.Nodes[b].System), cmp.Compare(g.Nodes[a].ID, g.Nodes[b].ID))
		})
	}
	return rows
}

package visualization

import (
	"cmp"
	"math"
	"slices"
)

// CircularLayout puts every event on one ring. Each system gets a contiguous
// arc, heaviest impact first, with an empty slot between systems.
type CircularLayout struct {
	cfg LayoutConfig
}

func NewCircularLayout(cfg LayoutConfig) *CircularLayout {
	return &CircularLayout{cfg: cfg.withDefaults()}
}

func (l *CircularLayout) ComputeLayout(g Graph) (map[string]Position, error) {
	out := make(map[string]Position, len(g.Nodes))
	if len(g.Nodes) == 0 {
		return out, nil
	}

	ring := slices.Clone(g.Nodes)
	slices.SortStableFunc(ring, func(a, b Node) int {
		return cmp.Or(cmp.Compare(a.System, b.System), cmp.Compare(b.Impact, a.Impact))
	})

	slots := len(ring)
	for i := 1; i < len(ring); i++ {
		if ring[i].System != ring[i-1].System {
			slots++
		}
	}
	if slots > len(ring) {
		// gap after the last system too, so the ring closes evenly
		slots++
	}

	cx, cy := l.cfg.Width/2, l.cfg.Height/2
	radius := math.Max(math.Min(cx, cy)-l.cfg.Padding, 0)
	step := 2 * math.Pi / float64(slots)

	slot := 0
	for i, n := range ring {
		if i > 0 && n.System != ring[i-1].System {
			slot++
		}
		angle := float64(slot) * step
		out[n.ID] = Position{X: cx + radius*math.Cos(angle), Y: cy + radius*math.Sin(angle)}
		slot++
	}
	return out, nil
}

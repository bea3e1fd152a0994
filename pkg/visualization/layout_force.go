package visualization

import (
	"math"
	"math/rand"
)

// ForceDirectedLayout is a Fruchterman-Reingold simulation: every pair of
// events repels and causal links pull their ends together. The result is
// scaled to fill the canvas.
type ForceDirectedLayout struct {
	cfg LayoutConfig
}

func NewForceDirectedLayout(cfg LayoutConfig) *ForceDirectedLayout {
	return &ForceDirectedLayout{cfg: cfg.withDefaults()}
}

func (l *ForceDirectedLayout) ComputeLayout(g Graph) (map[string]Position, error) {
	n := len(g.Nodes)
	switch n {
	case 0:
		return map[string]Position{}, nil
	case 1:
		return map[string]Position{g.Nodes[0].ID: {X: l.cfg.Width / 2, Y: l.cfg.Height / 2}}, nil
	}

	w, h := l.cfg.inner()
	rng := rand.New(rand.NewSource(l.cfg.Seed))
	pos := make([]Position, n)
	for i := range pos {
		pos[i] = Position{X: l.cfg.Padding + rng.Float64()*w, Y: l.cfg.Padding + rng.Float64()*h}
	}

	links := linkIndex(g, true)
	k := math.Sqrt(l.cfg.Width * l.cfg.Height / float64(n))
	temp := l.cfg.Width / 10
	disp := make([]Position, n)

	for iter := 0; iter < l.cfg.Iterations; iter++ {
		clear(disp)

		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				dx, dy, d := delta(pos[i], pos[j], 0.01)
				f := k * k / d
				disp[i].X += dx / d * f
				disp[i].Y += dy / d * f
				disp[j].X -= dx / d * f
				disp[j].Y -= dy / d * f
			}
		}

		for _, link := range links {
			a, b := link[0], link[1]
			dx, dy, d := delta(pos[a], pos[b], 0)
			if d < 0.01 {
				continue
			}
			f := d * d / k
			disp[a].X -= dx / d * f
			disp[a].Y -= dy / d * f
			disp[b].X += dx / d * f
			disp[b].Y += dy / d * f
		}

		cooling := 1 - float64(iter)/float64(l.cfg.Iterations)
		for i := range pos {
			mag := math.Hypot(disp[i].X, disp[i].Y)
			if mag == 0 {
				continue
			}
			step := math.Min(mag, temp) * cooling
			pos[i].X += disp[i].X / mag * step
			pos[i].Y += disp[i].Y / mag * step
		}
		temp *= 0.95
	}

	fitToCanvas(pos, l.cfg)
	out := make(map[string]Position, n)
	for i, node := range g.Nodes {
		out[node.ID] = pos[i]
	}
	return out, nil
}

// delta returns a-b and its length, floored at minDist
func delta(a, b Position, minDist float64) (dx, dy, d float64) {
	dx, dy = a.X-b.X, a.Y-b.Y
	return dx, dy, math.Max(math.Hypot(dx, dy), minDist)
}

// fitToCanvas scales pos in place onto the padded canvas. A degenerate axis
// (all points equal) is left at the padding edge.
func fitToCanvas(pos []Position, cfg LayoutConfig) {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range pos {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	spanX, spanY := maxX-minX, maxY-minY
	if spanX < 0.01 {
		spanX = 1
	}
	if spanY < 0.01 {
		spanY = 1
	}

	w, h := cfg.inner()
	for i, p := range pos {
		pos[i] = Position{
			X: cfg.Padding + (p.X-minX)/spanX*w,
			Y: cfg.Padding + (p.Y-minY)/spanY*h,
		}
	}
}

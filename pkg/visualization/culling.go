package visualization

// cullNodes keeps the nodes whose position (missing axes at MissingCoordinate)
// lies inside the viewport grown by buffer. Connections are left to the renderer.
func cullNodes(nodes []Node, vp Viewport, buffer float64) ([]Node, int) {
	bounds := vp.Bounds(buffer)

	kept := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		if bounds.Contains(n.Position()) {
			kept = append(kept, n)
		}
	}
	return kept, len(nodes) - len(kept)
}

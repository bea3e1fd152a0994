package visualization

import (
	"cmp"
	"slices"
)

// LODThreshold maps a minimum zoom to a node budget
type LODThreshold struct {
	Zoom      float64 `json:"zoom"`
	NodeLimit int     `json:"nodeLimit"`
	Detail    string  `json:"detail"`
}

// lodThresholds is ordered by ascending zoom
var lodThresholds = []LODThreshold{
	{Zoom: 0.25, NodeLimit: 50, Detail: "very-low"},
	{Zoom: 0.5, NodeLimit: 150, Detail: "low"},
	{Zoom: 0.75, NodeLimit: 300, Detail: "medium"},
	{Zoom: 1.0, NodeLimit: 500, Detail: "high"},
	{Zoom: 2.0, NodeLimit: 1000, Detail: "very-high"},
}

// LODThresholds returns a copy of the level-of-detail table
func LODThresholds() []LODThreshold {
	return slices.Clone(lodThresholds)
}

// MaxDetail is the label reported when virtualization is bypassed
func MaxDetail() string {
	return lodThresholds[len(lodThresholds)-1].Detail
}

// DetermineLOD returns the index of the highest threshold at or below zoom.
// Zooms below the smallest threshold (and NaN) map to index 0.
func DetermineLOD(zoom float64) int {
	for i := len(lodThresholds) - 1; i >= 0; i-- {
		if zoom >= lodThresholds[i].Zoom {
			return i
		}
	}
	return 0
}

// LODFor returns the threshold entry selected for zoom
func LODFor(zoom float64) LODThreshold {
	return lodThresholds[DetermineLOD(zoom)]
}

// limitByImpact keeps the limit highest-impact nodes. Equal impacts keep the
// lower id first so truncation is reproducible.
func limitByImpact(nodes []Node, limit int) []Node {
	if limit < 0 {
		limit = 0
	}
	if len(nodes) <= limit {
		return nodes
	}
	ranked := slices.Clone(nodes)
	slices.SortStableFunc(ranked, func(a, b Node) int {
		if c := cmp.Compare(b.Impact, a.Impact); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return ranked[:limit:limit]
}

package api

import (
	"github.com/dd0wney/cluso-causalview/pkg/validation"
	"github.com/dd0wney/cluso-causalview/pkg/visualization"
)

// toNodes converts request nodes. JSON cannot carry NaN, so the one content
// problem only visible here is an absent impact; it becomes 0 with a diagnostic.
func toNodes(reqs []validation.NodeRequest) ([]visualization.Node, []visualization.Diagnostic) {
	nodes := make([]visualization.Node, len(reqs))
	var diags []visualization.Diagnostic

	for i, req := range reqs {
		n := visualization.Node{
			ID:       req.ID,
			Type:     visualization.NodeType(req.Type),
			Label:    req.Label,
			System:   req.System,
			Color:    req.Color,
			Delay:    req.Delay,
			Duration: req.Duration,
		}
		if req.X != nil {
			n.X = visualization.At(*req.X)
		}
		if req.Y != nil {
			n.Y = visualization.At(*req.Y)
		}
		if req.Impact != nil {
			n.Impact = *req.Impact
		} else if req.ID != "" {
			diags = append(diags, visualization.Diagnostic{
				Kind:    visualization.DiagnosticMissingImpact,
				Index:   i,
				NodeID:  req.ID,
				Message: "impact not set, treated as 0",
			})
		}
		nodes[i] = n
	}
	return nodes, diags
}

func toConnections(reqs []validation.ConnectionRequest) []visualization.Connection {
	conns := make([]visualization.Connection, len(reqs))
	for i, req := range reqs {
		conns[i] = visualization.Connection{
			ID:     req.ID,
			Source: req.Source,
			Target: req.Target,
			Type:   req.Type,
		}
		if req.Strength != nil {
			conns[i].Strength = *req.Strength
		}
	}
	return conns
}

func toViewport(req *validation.ViewportRequest) visualization.Viewport {
	return visualization.Viewport{
		X:      req.X,
		Y:      req.Y,
		Width:  req.Width,
		Height: req.Height,
		Zoom:   req.Zoom,
	}
}

func toPartialConfig(req *validation.ConfigRequest) visualization.PartialConfig {
	return visualization.PartialConfig{
		MaxNodes:            req.MaxNodes,
		ViewportBuffer:      req.ViewportBuffer,
		ClusteringThreshold: req.ClusteringThreshold,
		LODLevels:           req.LODLevels,
		EnableCulling:       req.EnableCulling,
		EnableClustering:    req.EnableClustering,
	}
}

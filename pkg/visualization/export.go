package visualization

import "encoding/json"

// ExportJSON renders the result as the payload a canvas renderer consumes:
// every node gets concrete coordinates and cluster membership is kept for expansion.
func (r Result) ExportJSON() ([]byte, error) {
	type NodeViz struct {
		ID        string   `json:"id"`
		Type      NodeType `json:"type"`
		Label     string   `json:"label"`
		System    string   `json:"system"`
		Impact    float64  `json:"impact"`
		X         float64  `json:"x"`
		Y         float64  `json:"y"`
		Color     string   `json:"color,omitempty"`
		Delay     float64  `json:"delay,omitempty"`
		Duration  float64  `json:"duration,omitempty"`
		NodeIDs   []string `json:"nodeIds,omitempty"`
		NodeCount int      `json:"nodeCount,omitempty"`
	}

	type EdgeViz struct {
		ID       string  `json:"id,omitempty"`
		From     string  `json:"from"`
		To       string  `json:"to"`
		Type     string  `json:"type,omitempty"`
		Strength float64 `json:"strength,omitempty"`
	}

	type StatsViz struct {
		TotalNodes         int    `json:"totalNodes"`
		VisibleNodeCount   int    `json:"visibleNodeCount"`
		CulledNodeCount    int    `json:"culledNodeCount"`
		ClusteredNodeCount int    `json:"clusteredNodeCount"`
		DroppedNodeCount   int    `json:"droppedNodeCount,omitempty"`
		LODLevel           string `json:"lodLevel"`
		IsVirtualized      bool   `json:"isVirtualized"`
	}

	type VizData struct {
		Nodes       []NodeViz    `json:"nodes"`
		Edges       []EdgeViz    `json:"edges"`
		Stats       StatsViz     `json:"stats"`
		Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
	}

	data := VizData{
		Nodes: make([]NodeViz, 0, len(r.VisibleNodes)),
		Edges: make([]EdgeViz, 0, len(r.VisibleConnections)),
		Stats: StatsViz{
			TotalNodes:         r.TotalNodes,
			VisibleNodeCount:   r.VisibleNodeCount,
			CulledNodeCount:    r.CulledNodeCount,
			ClusteredNodeCount: r.ClusteredNodeCount,
			DroppedNodeCount:   r.DroppedNodeCount,
			LODLevel:           r.LODLevel,
			IsVirtualized:      r.IsVirtualized,
		},
		Diagnostics: r.Diagnostics,
	}

	for _, n := range r.VisibleNodes {
		pos := n.Position()
		nodeType := n.Type
		if nodeType == "" {
			nodeType = NodeTypeNormal
		}
		data.Nodes = append(data.Nodes, NodeViz{
			ID:        n.ID,
			Type:      nodeType,
			Label:     n.Label,
			System:    n.System,
			Impact:    n.Impact,
			X:         pos.X,
			Y:         pos.Y,
			Color:     n.Color,
			Delay:     n.Delay,
			Duration:  n.Duration,
			NodeIDs:   n.NodeIDs,
			NodeCount: n.NodeCount,
		})
	}

	for _, c := range r.VisibleConnections {
		data.Edges = append(data.Edges, EdgeViz{
			ID:       c.ID,
			From:     c.Source,
			To:       c.Target,
			Type:     c.Type,
			Strength: c.Strength,
		})
	}

	return json.Marshal(data)
}

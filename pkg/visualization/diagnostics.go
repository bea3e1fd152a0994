package visualization

import (
	"fmt"
	"math"
)

// DiagnosticKind classifies a malformed input entry
type DiagnosticKind string

const (
	DiagnosticMissingID         DiagnosticKind = "missing-id"
	DiagnosticDuplicateID       DiagnosticKind = "duplicate-id"
	DiagnosticMissingImpact     DiagnosticKind = "missing-impact"
	DiagnosticInvalidImpact     DiagnosticKind = "invalid-impact"
	DiagnosticInvalidCoordinate DiagnosticKind = "invalid-coordinate"
	DiagnosticUnknownType       DiagnosticKind = "unknown-type"
)

// Diagnostic describes one malformed node and what was done about it
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind"`
	Index   int            `json:"index"`
	NodeID  string         `json:"nodeId,omitempty"`
	Message string         `json:"message"`
}

func (d Diagnostic) String() string {
	if d.NodeID == "" {
		return fmt.Sprintf("%s at index %d: %s", d.Kind, d.Index, d.Message)
	}
	return fmt.Sprintf("%s at index %d (%s): %s", d.Kind, d.Index, d.NodeID, d.Message)
}

// ValidateNodes returns a sanitized copy of nodes plus one diagnostic per problem.
//
//   - empty id: node dropped
//   - repeated id: later occurrence dropped
//   - NaN or infinite impact: impact 0
//   - NaN or infinite coordinate: axis treated as missing
//   - unrecognised type: treated as normal
//
// The input slice is never modified.
func ValidateNodes(nodes []Node) ([]Node, []Diagnostic) {
	var diags []Diagnostic
	seen := make(map[string]struct{}, len(nodes))
	out := make([]Node, 0, len(nodes))

	for i, n := range nodes {
		if n.ID == "" {
			diags = append(diags, Diagnostic{
				Kind: DiagnosticMissingID, Index: i,
				Message: "node has no id and was dropped",
			})
			continue
		}
		if _, dup := seen[n.ID]; dup {
			diags = append(diags, Diagnostic{
				Kind: DiagnosticDuplicateID, Index: i, NodeID: n.ID,
				Message: "id already used earlier in the batch, node dropped",
			})
			continue
		}
		seen[n.ID] = struct{}{}

		if math.IsNaN(n.Impact) || math.IsInf(n.Impact, 0) {
			diags = append(diags, Diagnostic{
				Kind: DiagnosticInvalidImpact, Index: i, NodeID: n.ID,
				Message: fmt.Sprintf("impact %v is not finite, using 0", n.Impact),
			})
			n.Impact = 0
		}
		if !finiteCoord(n.X) || !finiteCoord(n.Y) {
			diags = append(diags, Diagnostic{
				Kind: DiagnosticInvalidCoordinate, Index: i, NodeID: n.ID,
				Message: fmt.Sprintf("coordinate (%s, %s) is not finite, axis treated as missing", n.X, n.Y),
			})
			if !finiteCoord(n.X) {
				n.X = Coord{}
			}
			if !finiteCoord(n.Y) {
				n.Y = Coord{}
			}
		}
		switch n.Type {
		case NodeTypeNormal, NodeTypeCluster:
		default:
			if n.Type != "" {
				diags = append(diags, Diagnostic{
					Kind: DiagnosticUnknownType, Index: i, NodeID: n.ID,
					Message: fmt.Sprintf("type %q is not recognised, treated as normal", n.Type),
				})
			}
			n.Type = NodeTypeNormal
		}
		out = append(out, n)
	}
	return out, diags
}

func finiteCoord(c Coord) bool {
	if !c.Valid() {
		return true
	}
	v := c.Or(0)
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

package visualization

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// systemColors holds the cluster fill per subsystem
var systemColors = map[string]string{
	"combat":      "#e74c3c",
	"social":      "#3498db",
	"environment": "#2ecc71",
	"economic":    "#f1c40f",
}

// NeutralClusterColor is used for subsystems without an entry in the color table
const NeutralClusterColor = "#95a5a6"

// clusterNamespace scopes the name-based UUIDs used for cluster ids
var clusterNamespace = uuid.MustParse("6f1c2a7e-3b4d-5e8f-9a0b-1c2d3e4f5a6b")

// SystemColor returns the cluster color for a subsystem
func SystemColor(system string) string {
	if c, ok := systemColors[system]; ok {
		return c
	}
	return NeutralClusterColor
}

// ClusterID derives the cluster id for a membership. Member ids are sorted first,
// so the same membership always yields the same id regardless of input order.
func ClusterID(system string, memberIDs []string) string {
	ids := slices.Clone(memberIDs)
	slices.Sort(ids)

	var b strings.Builder
	b.WriteString(system)
	for _, id := range ids {
		b.WriteByte(0)
		b.WriteString(id)
	}
	return "cluster-" + system + "-" + uuid.NewSHA1(clusterNamespace, []byte(b.String())).String()
}

// synthesizeCluster builds the aggregate node for members of one subsystem
func synthesizeCluster(id, system string, members []Node) Node {
	ids := make([]string, len(members))
	var impactSum, sumX, sumY float64
	positioned := 0

	for i, m := range members {
		ids[i] = m.ID
		impactSum += m.Impact
		// Members with neither axis stay out of the centroid.
		if m.X.Valid() || m.Y.Valid() {
			sumX += m.X.Or(MissingCoordinate)
			sumY += m.Y.Or(MissingCoordinate)
			positioned++
		}
	}

	cluster := Node{
		ID:        id,
		Type:      NodeTypeCluster,
		Label:     fmt.Sprintf("%s (%d)", system, len(members)),
		System:    system,
		Impact:    impactSum / float64(len(members)),
		Color:     SystemColor(system),
		NodeIDs:   ids,
		NodeCount: len(members),
	}
	if positioned > 0 {
		cluster.X = At(sumX / float64(positioned))
		cluster.Y = At(sumY / float64(positioned))
	}
	return cluster
}

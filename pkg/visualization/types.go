package visualization

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"gopkg.in/yaml.v3"
)

// NodeType distinguishes caller-supplied nodes from synthesized aggregates
type NodeType string

const (
	NodeTypeNormal  NodeType = "normal"
	NodeTypeCluster NodeType = "cluster"
)

// MissingCoordinate is the value culling and distance math use for an absent axis.
// Centroid averaging does not use it: members without coordinates are skipped there.
const MissingCoordinate = 0.0

// Coord is an optional coordinate on one axis
type Coord struct {
	value float64
	set   bool
}

// At returns a defined coordinate
func At(v float64) Coord {
	return Coord{value: v, set: true}
}

// Valid reports whether the coordinate was supplied
func (c Coord) Valid() bool {
	return c.set
}

// Or returns the coordinate, or def when it is absent
func (c Coord) Or(def float64) float64 {
	if !c.set {
		return def
	}
	return c.value
}

// IsZero reports an absent coordinate so omitzero/omitempty drop it
func (c Coord) IsZero() bool {
	return !c.set
}

func (c Coord) String() string {
	if !c.set {
		return "<unset>"
	}
	return strconv.FormatFloat(c.value, 'g', -1, 64)
}

// MarshalJSON encodes an absent coordinate as null
func (c Coord) MarshalJSON() ([]byte, error) {
	if !c.set || math.IsNaN(c.value) || math.IsInf(c.value, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, c.value, 'g', -1, 64), nil
}

// UnmarshalJSON accepts a number or null
func (c *Coord) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*c = Coord{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("coordinate: %w", err)
	}
	*c = At(v)
	return nil
}

// MarshalYAML encodes an absent coordinate as null
func (c Coord) MarshalYAML() (any, error) {
	if !c.set {
		return nil, nil
	}
	return c.value, nil
}

// UnmarshalYAML accepts a number or null
func (c *Coord) UnmarshalYAML(node *yaml.Node) error {
	if node.Tag == "!!null" || node.Value == "" || node.Value == "~" {
		*c = Coord{}
		return nil
	}
	var v float64
	if err := node.Decode(&v); err != nil {
		return fmt.Errorf("coordinate: %w", err)
	}
	*c = At(v)
	return nil
}

// Node is one event or system in a causal graph. Cluster nodes also carry membership.
type Node struct {
	ID        string   `json:"id" yaml:"id"`
	Type      NodeType `json:"type" yaml:"type"`
	Label     string   `json:"label" yaml:"label"`
	System    string   `json:"system" yaml:"system"`
	Impact    float64  `json:"impact" yaml:"impact"`
	X         Coord    `json:"x,omitzero" yaml:"x,omitempty"`
	Y         Coord    `json:"y,omitzero" yaml:"y,omitempty"`
	Color     string   `json:"color,omitempty" yaml:"color,omitempty"`
	Delay     float64  `json:"delay,omitempty" yaml:"delay,omitempty"`
	Duration  float64  `json:"duration,omitempty" yaml:"duration,omitempty"`
	NodeIDs   []string `json:"nodeIds,omitempty" yaml:"node_ids,omitempty"`
	NodeCount int      `json:"nodeCount,omitempty" yaml:"node_count,omitempty"`
}

// IsCluster reports whether the node is a synthesized aggregate
func (n Node) IsCluster() bool {
	return n.Type == NodeTypeCluster
}

// Position returns the node position with missing axes at MissingCoordinate
func (n Node) Position() Position {
	return Position{
		X: n.X.Or(MissingCoordinate),
		Y: n.Y.Or(MissingCoordinate),
	}
}

// Connection is a causal link between two node ids. The engine treats it opaquely.
type Connection struct {
	ID       string  `json:"id,omitempty" yaml:"id,omitempty"`
	Source   string  `json:"source" yaml:"source"`
	Target   string  `json:"target" yaml:"target"`
	Type     string  `json:"type,omitempty" yaml:"type,omitempty"`
	Strength float64 `json:"strength,omitempty" yaml:"strength,omitempty"`
}

// Graph is a complete node/connection set as supplied by a caller or read from a file
type Graph struct {
	Nodes       []Node       `json:"nodes" yaml:"nodes"`
	Connections []Connection `json:"connections" yaml:"connections"`
}

// Viewport is the visible region of the canvas plus its zoom factor (1.0 = native)
type Viewport struct {
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
	Zoom   float64 `json:"zoom" yaml:"zoom"`
}

// Bounds returns the viewport rectangle grown by buffer on every side
func (v Viewport) Bounds(buffer float64) Bounds {
	return Bounds{
		MinX: v.X - buffer,
		MinY: v.Y - buffer,
		MaxX: v.X + v.Width + buffer,
		MaxY: v.Y + v.Height + buffer,
	}
}

// Bounds is an axis-aligned rectangle
type Bounds struct {
	MinX float64 `json:"minX"`
	MinY float64 `json:"minY"`
	MaxX float64 `json:"maxX"`
	MaxY float64 `json:"maxY"`
}

// Contains reports whether (x, y) lies inside the rectangle, edges included
func (b Bounds) Contains(p Position) bool {
	return p.X >= b.MinX && p.X <= b.MaxX && p.Y >= b.MinY && p.Y <= b.MaxY
}

// Result is what the renderer receives for one viewport
type Result struct {
	VisibleNodes       []Node          `json:"visibleNodes"`
	VisibleConnections []Connection    `json:"visibleConnections"`
	NodeMap            map[string]Node `json:"-"`
	TotalNodes         int             `json:"totalNodes"`
	VisibleNodeCount   int             `json:"visibleNodeCount"`
	CulledNodeCount    int             `json:"culledNodeCount"`
	ClusteredNodeCount int             `json:"clusteredNodeCount"`
	// DroppedNodeCount is the number of malformed inputs removed before culling
	DroppedNodeCount   int             `json:"droppedNodeCount,omitempty"`
	LODLevel           string          `json:"lodLevel"`
	IsVirtualized      bool            `json:"isVirtualized"`
	Diagnostics        []Diagnostic    `json:"diagnostics,omitempty"`
}

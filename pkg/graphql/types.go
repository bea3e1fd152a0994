package graphql

import (
	"github.com/graphql-go/graphql"

	"github.com/dd0wney/cluso-causalview/pkg/visualization"
)

// schemaTypes holds the object types of one schema
type schemaTypes struct {
	node           *graphql.Object
	connection     *graphql.Object
	diagnostic     *graphql.Object
	viewport       *graphql.Object
	viewportResult *graphql.Object
	engineStats    *graphql.Object
	scene          *graphql.Object
}

func newSchemaTypes(limits *LimitConfig) schemaTypes {
	var t schemaTypes

	t.node = graphql.NewObject(graphql.ObjectConfig{
		Name: "Node",
		Fields: graphql.Fields{
			"id":     nodeField(graphql.NewNonNull(graphql.ID), func(n visualization.Node) any { return n.ID }),
			"type":   nodeField(graphql.String, func(n visualization.Node) any { return string(n.Type) }),
			"label":  nodeField(graphql.String, func(n visualization.Node) any { return n.Label }),
			"system": nodeField(graphql.String, func(n visualization.Node) any { return n.System }),
			"impact": nodeField(graphql.Float, func(n visualization.Node) any { return n.Impact }),
			"x":      nodeField(graphql.Float, func(n visualization.Node) any { return coordValue(n.X) }),
			"y":      nodeField(graphql.Float, func(n visualization.Node) any { return coordValue(n.Y) }),
			"color":  nodeField(graphql.String, func(n visualization.Node) any { return n.Color }),
			"nodeIds": nodeField(graphql.NewList(graphql.String), func(n visualization.Node) any {
				return n.NodeIDs
			}),
			"nodeCount": nodeField(graphql.Int, func(n visualization.Node) any { return n.NodeCount }),
		},
	})

	t.connection = graphql.NewObject(graphql.ObjectConfig{
		Name: "Connection",
		Fields: graphql.Fields{
			"source":   connectionField(graphql.String, func(c visualization.Connection) any { return c.Source }),
			"target":   connectionField(graphql.String, func(c visualization.Connection) any { return c.Target }),
			"type":     connectionField(graphql.String, func(c visualization.Connection) any { return c.Type }),
			"strength": connectionField(graphql.Float, func(c visualization.Connection) any { return c.Strength }),
		},
	})

	t.diagnostic = graphql.NewObject(graphql.ObjectConfig{
		Name: "Diagnostic",
		Fields: graphql.Fields{
			"kind":    diagnosticField(graphql.String, func(d visualization.Diagnostic) any { return string(d.Kind) }),
			"index":   diagnosticField(graphql.Int, func(d visualization.Diagnostic) any { return d.Index }),
			"nodeId":  diagnosticField(graphql.String, func(d visualization.Diagnostic) any { return d.NodeID }),
			"message": diagnosticField(graphql.String, func(d visualization.Diagnostic) any { return d.Message }),
		},
	})

	t.viewport = graphql.NewObject(graphql.ObjectConfig{
		Name: "Viewport",
		Fields: graphql.Fields{
			"x":      viewportField(func(v visualization.Viewport) float64 { return v.X }),
			"y":      viewportField(func(v visualization.Viewport) float64 { return v.Y }),
			"width":  viewportField(func(v visualization.Viewport) float64 { return v.Width }),
			"height": viewportField(func(v visualization.Viewport) float64 { return v.Height }),
			"zoom":   viewportField(func(v visualization.Viewport) float64 { return v.Zoom }),
		},
	})

	listArgs := graphql.FieldConfigArgument{
		"limit":  &graphql.ArgumentConfig{Type: graphql.Int},
		"offset": &graphql.ArgumentConfig{Type: graphql.Int},
	}
	t.viewportResult = graphql.NewObject(graphql.ObjectConfig{
		Name: "ViewportResult",
		Fields: graphql.Fields{
			"totalNodes":         resultField(graphql.Int, func(r visualization.Result) any { return r.TotalNodes }),
			"visibleNodeCount":   resultField(graphql.Int, func(r visualization.Result) any { return r.VisibleNodeCount }),
			"culledNodeCount":    resultField(graphql.Int, func(r visualization.Result) any { return r.CulledNodeCount }),
			"clusteredNodeCount": resultField(graphql.Int, func(r visualization.Result) any { return r.ClusteredNodeCount }),
			"droppedNodeCount":   resultField(graphql.Int, func(r visualization.Result) any { return r.DroppedNodeCount }),
			"lodLevel":           resultField(graphql.String, func(r visualization.Result) any { return r.LODLevel }),
			"isVirtualized":      resultField(graphql.Boolean, func(r visualization.Result) any { return r.IsVirtualized }),
			"nodes": &graphql.Field{
				Type: graphql.NewList(t.node),
				Args: listArgs,
				Resolve: func(p graphql.ResolveParams) (any, error) {
					r, ok := p.Source.(visualization.Result)
					if !ok {
						return nil, nil
					}
					return page(r.VisibleNodes, p.Args, limits), nil
				},
			},
			"connections": &graphql.Field{
				Type: graphql.NewList(t.connection),
				Args: listArgs,
				Resolve: func(p graphql.ResolveParams) (any, error) {
					r, ok := p.Source.(visualization.Result)
					if !ok {
						return nil, nil
					}
					return page(r.VisibleConnections, p.Args, limits), nil
				},
			},
			"diagnostics": resultField(graphql.NewList(t.diagnostic), func(r visualization.Result) any {
				return r.Diagnostics
			}),
		},
	})

	t.engineStats = graphql.NewObject(graphql.ObjectConfig{
		Name: "EngineStats",
		Fields: graphql.Fields{
			"cacheSize":   statsField(graphql.Int, func(s visualization.EngineStats) any { return s.CacheSize }),
			"cacheHits":   statsField(graphql.Int, func(s visualization.EngineStats) any { return int(s.CacheHits) }),
			"cacheMisses": statsField(graphql.Int, func(s visualization.EngineStats) any { return int(s.CacheMisses) }),
			"maxNodes":    statsField(graphql.Int, func(s visualization.EngineStats) any { return s.Config.MaxNodes }),
			"viewportBuffer": statsField(graphql.Float, func(s visualization.EngineStats) any {
				return s.Config.ViewportBuffer
			}),
			"clusteringThreshold": statsField(graphql.Float, func(s visualization.EngineStats) any {
				return s.Config.ClusteringThreshold
			}),
			"lodLevels": statsField(graphql.NewList(graphql.Float), func(s visualization.EngineStats) any {
				return s.Config.LODLevels
			}),
			"enableCulling": statsField(graphql.Boolean, func(s visualization.EngineStats) any {
				return s.Config.EnableCulling
			}),
			"enableClustering": statsField(graphql.Boolean, func(s visualization.EngineStats) any {
				return s.Config.EnableClustering
			}),
			"lastViewport": statsField(t.viewport, func(s visualization.EngineStats) any {
				if s.LastViewport == nil {
					return nil
				}
				return *s.LastViewport
			}),
		},
	})

	t.scene = graphql.NewObject(graphql.ObjectConfig{
		Name: "Scene",
		Fields: graphql.Fields{
			"loaded":      sceneField(graphql.Boolean, func(s SceneSummary) any { return s.Loaded }),
			"nodes":       sceneField(graphql.Int, func(s SceneSummary) any { return s.Nodes }),
			"connections": sceneField(graphql.Int, func(s SceneSummary) any { return s.Connections }),
		},
	})

	return t
}

// coordValue maps an absent coordinate to null
func coordValue(c visualization.Coord) any {
	if !c.Valid() {
		return nil
	}
	return c.Or(visualization.MissingCoordinate)
}

// field builds a resolver that reads one value off a typed source
func field[T any](typ graphql.Output, get func(T) any) *graphql.Field {
	return &graphql.Field{
		Type: typ,
		Resolve: func(p graphql.ResolveParams) (any, error) {
			if src, ok := p.Source.(T); ok {
				return get(src), nil
			}
			return nil, nil
		},
	}
}

func nodeField(typ graphql.Output, get func(visualization.Node) any) *graphql.Field {
	return field(typ, get)
}

func connectionField(typ graphql.Output, get func(visualization.Connection) any) *graphql.Field {
	return field(typ, get)
}

func diagnosticField(typ graphql.Output, get func(visualization.Diagnostic) any) *graphql.Field {
	return field(typ, get)
}

func resultField(typ graphql.Output, get func(visualization.Result) any) *graphql.Field {
	return field(typ, get)
}

func statsField(typ graphql.Output, get func(visualization.EngineStats) any) *graphql.Field {
	return field(typ, get)
}

func sceneField(typ graphql.Output, get func(SceneSummary) any) *graphql.Field {
	return field(typ, get)
}

func viewportField(get func(visualization.Viewport) float64) *graphql.Field {
	return field(graphql.Float, func(v visualization.Viewport) any { return get(v) })
}

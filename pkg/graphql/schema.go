package graphql

import (
	"errors"
	"fmt"

	"github.com/graphql-go/graphql"

	"github.com/dd0wney/cluso-causalview/pkg/visualization"
)

// ErrNoScene is returned by viewport queries before a scene graph is loaded
var ErrNoScene = errors.New("no scene graph loaded")

// SceneSummary describes the scene graph held by a backend
type SceneSummary struct {
	Loaded      bool `json:"loaded"`
	Nodes       int  `json:"nodes"`
	Connections int  `json:"connections"`
}

// Backend is what the schema resolves against: one shared engine plus the
// scene graph it virtualizes
type Backend interface {
	VirtualizeScene(vp visualization.Viewport) (visualization.Result, error)
	Scene() SceneSummary
	EngineStats() visualization.EngineStats
	ExpandCluster(id string) (visualization.Node, bool)
}

// GenerateSchema builds the query schema over a backend
func GenerateSchema(b Backend, limits *LimitConfig) (graphql.Schema, error) {
	if limits == nil {
		limits = DefaultLimitConfig()
	}
	if err := limits.Validate(); err != nil {
		return graphql.Schema{}, err
	}

	types := newSchemaTypes(limits)

	queryFields := graphql.Fields{
		// Always include a health check query
		"health": &graphql.Field{
			Type: graphql.String,
			Resolve: func(p graphql.ResolveParams) (any, error) {
				return "ok", nil
			},
		},
		"scene": &graphql.Field{
			Type: types.scene,
			Resolve: func(p graphql.ResolveParams) (any, error) {
				return b.Scene(), nil
			},
		},
		"engine": &graphql.Field{
			Type: types.engineStats,
			Resolve: func(p graphql.ResolveParams) (any, error) {
				return b.EngineStats(), nil
			},
		},
		"viewport": &graphql.Field{
			Type: types.viewportResult,
			Args: graphql.FieldConfigArgument{
				"x":      &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 0.0},
				"y":      &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 0.0},
				"width":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
				"height": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
				"zoom":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
			},
			Resolve: createViewportResolver(b),
		},
		"cluster": &graphql.Field{
			Type: types.node,
			Args: graphql.FieldConfigArgument{
				"id": &graphql.ArgumentConfig{
					Type: graphql.NewNonNull(graphql.ID),
				},
			},
			Resolve: func(p graphql.ResolveParams) (any, error) {
				id, _ := p.Args["id"].(string)
				node, ok := b.ExpandCluster(id)
				if !ok {
					return nil, nil
				}
				return node, nil
			},
		},
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name:   "Query",
		Fields: queryFields,
	})

	schema, err := graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
	if err != nil {
		return graphql.Schema{}, fmt.Errorf("failed to create schema: %w", err)
	}

	return schema, nil
}

// createViewportResolver virtualizes the backend scene for the requested viewport
func createViewportResolver(b Backend) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		vp := visualization.Viewport{
			X:      floatArg(p.Args, "x"),
			Y:      floatArg(p.Args, "y"),
			Width:  floatArg(p.Args, "width"),
			Height: floatArg(p.Args, "height"),
			Zoom:   floatArg(p.Args, "zoom"),
		}
		if vp.Width < 0 || vp.Height < 0 {
			return nil, fmt.Errorf("viewport size must be non-negative, got %vx%v", vp.Width, vp.Height)
		}
		if vp.Zoom <= 0 {
			return nil, fmt.Errorf("zoom must be greater than 0, got %v", vp.Zoom)
		}
		return b.VirtualizeScene(vp)
	}
}

func floatArg(args map[string]any, name string) float64 {
	switch v := args[name].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

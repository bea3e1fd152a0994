package api

import (
	"time"

	"github.com/dd0wney/cluso-causalview/pkg/graphql"
	"github.com/dd0wney/cluso-causalview/pkg/visualization"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// GraphSummary describes the scene graph held by the server
type GraphSummary struct {
	Loaded      bool           `json:"loaded"`
	Nodes       int            `json:"nodes"`
	Connections int            `json:"connections"`
	Systems     map[string]int `json:"systems,omitempty"`
	Source      string         `json:"source,omitempty"`
	LoadedAt    *time.Time     `json:"loadedAt,omitempty"`
}

// StatsResponse combines engine state with the scene and server uptime
type StatsResponse struct {
	Engine  visualization.EngineStats `json:"engine"`
	Scene   graphql.SceneSummary      `json:"scene"`
	Uptime  string                    `json:"uptime"`
	Version string                    `json:"version"`
}

// ClearCacheResponse reports how many cached clusters were dropped
type ClearCacheResponse struct {
	Cleared int `json:"cleared"`
}

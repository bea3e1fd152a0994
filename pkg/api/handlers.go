package api

import (
	"bytes"
	"errors"
	"mime"
	"net/http"
	"time"

	"github.com/dd0wney/cluso-causalview/pkg/graphql"
	"github.com/dd0wney/cluso-causalview/pkg/logging"
	"github.com/dd0wney/cluso-causalview/pkg/validation"
	"github.com/dd0wney/cluso-causalview/pkg/visualization"
)

// renderFormat selects the renderer payload from Result.ExportJSON
const renderFormat = "render"

// PutGraphResponse is the scene summary after an upload plus any
// conversion diagnostics
type PutGraphResponse struct {
	GraphSummary
	Diagnostics []visualization.Diagnostic `json:"diagnostics,omitempty"`
}

func (s *Server) handleVirtualize(w http.ResponseWriter, r *http.Request) {
	req, err := decodeJSON(r, validation.ValidateVirtualizeRequest)
	if err != nil {
		s.respondFailure(w, r, "Virtualize", err)
		return
	}

	nodes, diags := toNodes(req.Nodes)
	result := s.engine.Virtualize(nodes, toConnections(req.Connections), toViewport(req.Viewport))
	if len(diags) > 0 {
		result.Diagnostics = append(diags, result.Diagnostics...)
	}
	s.respondResult(w, r, result)
}

func (s *Server) handleViewport(w http.ResponseWriter, r *http.Request) {
	req, err := decodeJSON(r, validation.ValidateViewportRequest)
	if err != nil {
		s.respondFailure(w, r, "Viewport", err)
		return
	}

	result, err := s.VirtualizeScene(toViewport(&req))
	if errors.Is(err, graphql.ErrNoScene) {
		s.respondError(w, http.StatusConflict, "No scene graph loaded, PUT /api/v1/graph first")
		return
	}
	if err != nil {
		s.respondFailure(w, r, "Viewport", err)
		return
	}
	s.respondResult(w, r, result)
}

// respondResult writes a result as the engine shape, or as the renderer
// payload when ?format=render
func (s *Server) respondResult(w http.ResponseWriter, r *http.Request, result visualization.Result) {
	if r.URL.Query().Get("format") != renderFormat {
		s.respondJSON(w, http.StatusOK, result)
		return
	}
	body, err := result.ExportJSON()
	if err != nil {
		s.respondFailure(w, r, "Export", err)
		return
	}
	s.respondRaw(w, http.StatusOK, "application/json", body)
}

func (s *Server) handleGetGraph(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		s.respondJSON(w, http.StatusOK, s.graphSummary())
		return
	}

	s.sceneMu.RLock()
	scene := s.scene
	s.sceneMu.RUnlock()
	if scene == nil {
		s.respondError(w, http.StatusNotFound, "No scene graph loaded")
		return
	}

	var buf bytes.Buffer
	if err := visualization.EncodeGraph(&buf, *scene, visualization.Format(format)); err != nil {
		if errors.Is(err, visualization.ErrUnsupportedFormat) {
			err = badRequest(err)
		}
		s.respondFailure(w, r, "Graph export", err)
		return
	}
	contentType := "application/json"
	if visualization.Format(format) == visualization.FormatYAML {
		contentType = "application/yaml"
	}
	s.respondRaw(w, http.StatusOK, contentType, buf.Bytes())
}

func (s *Server) handlePutGraph(w http.ResponseWriter, r *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/yaml" || mediaType == "application/x-yaml" {
		s.putYAMLGraph(w, r)
		return
	}

	req, err := decodeJSON(r, validation.ValidateGraphRequest)
	if err != nil {
		s.recordLoadFailure("api", err)
		s.respondFailure(w, r, "Graph upload", err)
		return
	}

	nodes, diags := toNodes(req.Nodes)
	s.LoadScene(visualization.Graph{Nodes: nodes, Connections: toConnections(req.Connections)}, "api")
	s.respondJSON(w, http.StatusOK, PutGraphResponse{GraphSummary: s.graphSummary(), Diagnostics: diags})
}

// putYAMLGraph loads a graph document in the graph file format
func (s *Server) putYAMLGraph(w http.ResponseWriter, r *http.Request) {
	g, err := visualization.DecodeGraph(r.Body, visualization.FormatYAML)
	if err != nil {
		err = bodyError(err)
	} else if err = validation.ValidateGraphSize(len(g.Nodes), len(g.Connections)); err != nil {
		err = badRequest(err)
	}
	if err != nil {
		s.recordLoadFailure("api", err)
		s.respondFailure(w, r, "Graph upload", err)
		return
	}

	s.LoadScene(g, "api")
	s.respondJSON(w, http.StatusOK, PutGraphResponse{GraphSummary: s.graphSummary()})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.engine.Config())
}

func (s *Server) handlePatchConfig(w http.ResponseWriter, r *http.Request) {
	req, err := decodeJSON(r, validation.ValidateConfigRequest)
	if err != nil {
		s.respondFailure(w, r, "Config update", err)
		return
	}

	s.engine.UpdateConfig(toPartialConfig(&req))
	s.respondJSON(w, http.StatusOK, s.engine.Config())
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	cleared := s.engine.Stats().CacheSize
	s.engine.ClearCache()
	s.respondJSON(w, http.StatusOK, ClearCacheResponse{Cleared: cleared})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, StatsResponse{
		Engine:  s.engine.Stats(),
		Scene:   s.Scene(),
		Uptime:  time.Since(s.startTime).Round(time.Second).String(),
		Version: s.version,
	})
}

func (s *Server) handleCluster(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := validation.ValidateClusterID(id); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	node, ok := s.engine.ExpandCluster(id)
	if !ok {
		s.logger.Debug("cluster not cached", logging.ClusterID(id))
		s.respondError(w, http.StatusNotFound, "Cluster not found, it may have been evicted by a config update or cache clear")
		return
	}
	s.respondJSON(w, http.StatusOK, node)
}

package graphql

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/gqlerrors"

	"github.com/dd0wney/cluso-causalview/pkg/logging"
)

// GraphQLRequest is the POST body of /graphql
type GraphQLRequest struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
	OperationName string         `json:"operationName,omitempty"`
}

// GraphQLResponse is the response document. Data is omitted when the query
// never ran.
type GraphQLResponse struct {
	Data   any            `json:"data,omitempty"`
	Errors []GraphQLError `json:"errors,omitempty"`
}

// GraphQLError is one entry of the errors list
type GraphQLError struct {
	Message   string     `json:"message"`
	Locations []Location `json:"locations,omitempty"`
	Path      []any      `json:"path,omitempty"`
}

// Location points into the query text
type Location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// GraphQLHandler serves a schema over HTTP POST with a depth limit
type GraphQLHandler struct {
	schema   graphql.Schema
	maxDepth int
	logger   logging.Logger
}

// NewGraphQLHandler serves schema with DefaultMaxDepth
func NewGraphQLHandler(schema graphql.Schema, logger logging.Logger) *GraphQLHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &GraphQLHandler{
		schema:   schema,
		maxDepth: DefaultMaxDepth,
		logger:   logger.With(logging.Component("graphql")),
	}
}

func (h *GraphQLHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		h.reply(w, http.StatusMethodNotAllowed, GraphQLResponse{Errors: []GraphQLError{{Message: "use POST"}}})
		return
	}

	var req GraphQLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		msg := "invalid request body"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			msg = "request body too large"
		}
		h.reply(w, http.StatusBadRequest, GraphQLResponse{Errors: []GraphQLError{{Message: msg}}})
		return
	}
	if req.Query == "" {
		h.reply(w, http.StatusBadRequest, GraphQLResponse{Errors: []GraphQLError{{Message: "query is required"}}})
		return
	}

	result := execute(r.Context(), h.schema, req, h.maxDepth)

	resp := GraphQLResponse{Data: result.Data, Errors: convertErrors(result.Errors)}
	if len(resp.Errors) > 0 {
		h.logger.Warn("graphql query failed",
			logging.Operation(req.OperationName),
			logging.Count(len(resp.Errors)),
			logging.String("error", resp.Errors[0].Message))
	}
	h.reply(w, http.StatusOK, resp)
}

func (h *GraphQLHandler) reply(w http.ResponseWriter, status int, resp GraphQLResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode graphql response", logging.Error(err))
	}
}

func convertErrors(errs []gqlerrors.FormattedError) []GraphQLError {
	if len(errs) == 0 {
		return nil
	}
	out := make([]GraphQLError, len(errs))
	for i, e := range errs {
		out[i] = GraphQLError{Message: e.Message, Path: e.Path}
		for _, loc := range e.Locations {
			out[i].Locations = append(out[i].Locations, Location{Line: loc.Line, Column: loc.Column})
		}
	}
	return out
}

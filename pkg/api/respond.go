package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dd0wney/cluso-causalview/pkg/api/middleware"
	"github.com/dd0wney/cluso-causalview/pkg/logging"
)

// requestError is a client mistake; its message is safe to return
type requestError struct {
	status int
	err    error
}

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

func badRequest(err error) error {
	return &requestError{status: http.StatusBadRequest, err: err}
}

// bodyError classifies a failure reading or parsing a request body
func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return &requestError{status: http.StatusRequestEntityTooLarge, err: fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)}
	case errors.Is(err, io.EOF):
		return badRequest(errors.New("request body is empty"))
	default:
		return badRequest(fmt.Errorf("invalid request body: %w", err))
	}
}

// decodeJSON reads a T from the body and runs validate over it. Failures are
// *requestError.
func decodeJSON[T any](r *http.Request, validate func(*T) error) (T, error) {
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		return v, bodyError(err)
	}
	if validate != nil {
		if err := validate(&v); err != nil {
			return v, badRequest(err)
		}
	}
	return v, nil
}

// respondFailure answers a *requestError with its own status and message.
// Anything else is logged and reported as "<operation> failed" so internal
// details stay out of the response.
func (s *Server) respondFailure(w http.ResponseWriter, r *http.Request, operation string, err error) {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		s.respondError(w, reqErr.status, reqErr.Error())
		return
	}
	s.logger.Error("request failed",
		logging.Operation(operation),
		logging.RequestID(middleware.GetRequestID(r)),
		logging.Error(err))
	s.respondError(w, http.StatusInternalServerError, operation+" failed")
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		s.logger.Error("failed to encode JSON response", logging.Error(err))
		s.respondError(w, http.StatusInternalServerError, "response encoding failed")
		return
	}
	s.respondRaw(w, status, "application/json", append(body, '\n'))
}

// respondRaw writes an already encoded body
func (s *Server) respondRaw(w http.ResponseWriter, status int, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		s.logger.Debug("response write failed", logging.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	body, _ := json.Marshal(ErrorResponse{Error: http.StatusText(status), Message: message, Code: status})
	s.respondRaw(w, status, "application/json", append(body, '\n'))
}

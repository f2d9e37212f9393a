package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"inferd/internal/dispatch"
	"inferd/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// NotFound returns an error that maps to a 404 response.
func NotFound(msg string) error { return notFoundError{msg: msg} }

type notFoundError struct{ msg string }

func (e notFoundError) Error() string   { return e.msg }
func (e notFoundError) StatusCode() int { return http.StatusNotFound }

// statusForError maps dispatcher errors onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case dispatch.IsValidation(err):
		return http.StatusBadRequest
	case dispatch.IsSessionBusy(err):
		return http.StatusConflict
	case dispatch.IsOverloaded(err):
		return http.StatusServiceUnavailable
	case dispatch.IsServiceUnavailable(err):
		return http.StatusServiceUnavailable
	case dispatch.IsInferenceTimeout(err):
		return http.StatusBadGateway
	case dispatch.IsInference(err):
		return http.StatusBadGateway
	}
	if he, ok := err.(HTTPError); ok {
		return he.StatusCode()
	}
	return http.StatusInternalServerError
}

// writeServiceError maps and writes an inference-path error. A request whose
// own context is already done gets no body; the client went away.
func writeServiceError(w http.ResponseWriter, r *http.Request, start time.Time, err error) {
	if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
		return
	}
	status := statusForError(err)
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	writeJSONError(w, status, err.Error())
	logEnd(r, status, time.Since(start), err)
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

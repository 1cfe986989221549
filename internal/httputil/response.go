// Package httputil holds the JSON response helpers shared by the debug
// handlers.
package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/banshee-data/xrstate/internal/monitoring"
	"github.com/banshee-data/xrstate/internal/xrerr"
)

// WriteJSON writes data as a JSON body with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		monitoring.Logf("[http] failed to encode json response: %v", err)
	}
}

// WriteJSONOK writes data with 200 OK.
func WriteJSONOK(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, data)
}

// ErrorBody is the JSON shape of every error response. Result carries the
// XR result code when the error came from the runtime.
type ErrorBody struct {
	Error  string `json:"error"`
	Result string `json:"result,omitempty"`
}

// WriteJSONError writes msg as an ErrorBody with the given status code.
func WriteJSONError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, ErrorBody{Error: msg})
}

// MethodNotAllowed writes a 405 response.
func MethodNotAllowed(w http.ResponseWriter) {
	WriteJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// BadRequest writes a 400 response.
func BadRequest(w http.ResponseWriter, msg string) {
	WriteJSONError(w, http.StatusBadRequest, msg)
}

// NotFound writes a 404 response.
func NotFound(w http.ResponseWriter, msg string) {
	WriteJSONError(w, http.StatusNotFound, msg)
}

// InternalServerError writes a 500 response.
func InternalServerError(w http.ResponseWriter, msg string) {
	WriteJSONError(w, http.StatusInternalServerError, msg)
}

// WriteXRError writes a runtime error with a status derived from its
// result code.
func WriteXRError(w http.ResponseWriter, err error) {
	kind := xrerr.KindOf(err)
	WriteJSON(w, StatusFor(kind), ErrorBody{Error: err.Error(), Result: kind.String()})
}

// StatusFor maps an XR result code onto an HTTP status.
func StatusFor(kind xrerr.Kind) int {
	switch kind {
	case xrerr.KindNone:
		return http.StatusOK
	case xrerr.HandleInvalid:
		return http.StatusNotFound
	case xrerr.ArgumentInvalid, xrerr.ValidationFailure, xrerr.TimeInvalid,
		xrerr.SizeInsufficient, xrerr.PoseInvalid, xrerr.LayerInvalid:
		return http.StatusBadRequest
	case xrerr.SessionLost:
		return http.StatusGone
	case xrerr.SessionNotRunning, xrerr.SessionRunning:
		return http.StatusConflict
	case xrerr.FeatureUnsupported, xrerr.FunctionUnsupported,
		xrerr.ViewConfigurationTypeUnsupported, xrerr.ReferenceSpaceUnsupported,
		xrerr.EnvironmentBlendModeUnsupported, xrerr.DisplayRefreshRateUnsupported:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

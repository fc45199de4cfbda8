package api

import (
	"encoding/json"
	"net/http"

	"github.com/nerrad567/gray-logic-cameras/internal/bridges/camera"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeNotFound     = "not_found"
	ErrCodeInternal     = "internal_error"
	ErrCodeValidation   = "validation_error"
	ErrCodeUnreachable  = "camera_unreachable"
	ErrCodeTimeout      = "camera_timeout"
	ErrCodeProtocol     = "camera_protocol_error"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeUnauthorized writes a 401 error response with a bearer challenge.
func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="graycam"`)
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeCameraError maps a camera command error onto an HTTP status.
func writeCameraError(w http.ResponseWriter, err error) {
	switch camera.ErrorCode(err) {
	case camera.ErrCodeNotConfigured:
		writeNotFound(w, err.Error())
	case camera.ErrCodeInvalidCommand, camera.ErrCodeInvalidParameters:
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case camera.ErrCodeTimeout:
		writeError(w, http.StatusGatewayTimeout, ErrCodeTimeout, err.Error())
	case camera.ErrCodeDeviceUnreachable:
		writeError(w, http.StatusBadGateway, ErrCodeUnreachable, err.Error())
	case camera.ErrCodeProtocolError:
		writeError(w, http.StatusBadGateway, ErrCodeProtocol, err.Error())
	default:
		writeInternalError(w, err.Error())
	}
}

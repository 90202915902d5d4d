package errors

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

var codeStatus = map[string]int{
	ErrCodeUnauthorized:           http.StatusUnauthorized,
	ErrCodeInvalidToken:           http.StatusUnauthorized,
	ErrCodeTokenExpired:           http.StatusUnauthorized,
	ErrCodeAuthenticationRequired: http.StatusUnauthorized,
	ErrCodeInvalidRequest:         http.StatusBadRequest,
	ErrCodeInvalidPayload:         http.StatusBadRequest,
	ErrCodeMissingField:           http.StatusBadRequest,
	ErrCodeUnknownMessageType:     http.StatusBadRequest,
	ErrCodeEmptyAnswer:            http.StatusBadRequest,
	ErrCodeUnknownQuestion:        http.StatusNotFound,
	ErrCodeSessionNotReady:        http.StatusConflict,
	ErrCodeAlreadyStarted:         http.StatusConflict,
	ErrCodeAlreadySubmitted:       http.StatusConflict,
	ErrCodeSubmitInFlight:         http.StatusConflict,
	ErrCodeSessionClosed:          http.StatusGone,
	ErrCodeLoadFailed:             http.StatusBadGateway,
	ErrCodeSubmitFailed:           http.StatusBadGateway,
	ErrCodeScoreFetchFailed:       http.StatusBadGateway,
	ErrCodeUpstreamError:          http.StatusBadGateway,
	ErrCodeServiceUnavailable:     http.StatusServiceUnavailable,
}

// StatusFor returns the HTTP status for an error code. Unknown codes map to 500.
func StatusFor(code string) int {
	if status, ok := codeStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// RespondError writes a standardized error response to the HTTP response writer
func RespondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   code,
		Message: message,
	})
}

// RespondCode writes an error response with the status that belongs to code.
func RespondCode(w http.ResponseWriter, code, message string) {
	RespondError(w, StatusFor(code), code, message)
}

// RespondUnauthorized writes an unauthorized error response
func RespondUnauthorized(w http.ResponseWriter, code, message string) {
	RespondError(w, http.StatusUnauthorized, code, message)
}

// RespondBadRequest writes a bad request error response
func RespondBadRequest(w http.ResponseWriter, code, message string) {
	RespondError(w, http.StatusBadRequest, code, message)
}

// RespondServiceUnavailable writes a service unavailable error response
func RespondServiceUnavailable(w http.ResponseWriter, message string) {
	RespondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, message)
}

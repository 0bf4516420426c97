package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/desertthunder/cosmic/internal/shared"
)

// ErrorResponse is the JSON body of every failed API request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, ErrorResponse{Error: code})
}

// StatusFor maps an error onto the HTTP status and error code returned to clients.
func StatusFor(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.Is(err, ErrNoSession), errors.Is(err, ErrInvalidSession),
		errors.Is(err, shared.ErrNotAuthenticated), errors.Is(err, shared.ErrRefreshFailed):
		return http.StatusUnauthorized, "not_authenticated"
	case errors.Is(err, shared.ErrInvalidInput), errors.Is(err, shared.ErrMissingArgument):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, shared.ErrCodeSpaceExhausted):
		return http.StatusServiceUnavailable, "unable_to_allocate_code"
	case errors.Is(err, shared.ErrServiceUnavailable):
		return http.StatusServiceUnavailable, "service_unavailable"
	case errors.Is(err, shared.ErrUpstream):
		switch shared.StatusCode(err) {
		case http.StatusUnauthorized:
			return http.StatusUnauthorized, "upstream_unauthorized"
		case http.StatusTooManyRequests:
			return http.StatusTooManyRequests, "upstream_rate_limited"
		default:
			return http.StatusBadGateway, "upstream_error"
		}
	default:
		return http.StatusInternalServerError, "server_error"
	}
}

// fail writes the mapped error response for err. Validation errors carry their message.
func fail(w http.ResponseWriter, err error) {
	status, code := StatusFor(err)
	resp := ErrorResponse{Error: code}
	if status == http.StatusBadRequest {
		resp.Message = err.Error()
	}
	writeJSON(w, status, resp)
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
	return false
}

package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"jobscout-engine/internal/domain"
)

type APIError struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	WriteJSON(w, status, APIError{
		Error:     message,
		Code:      code,
		RequestID: RequestIDFrom(r.Context()),
	})
}

// statusFor maps a domain error to its HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, domain.ErrAuth):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrTimeout):
		return http.StatusGatewayTimeout, "scrape_timeout"
	case errors.Is(err, domain.ErrUpstream):
		return http.StatusBadGateway, "upstream_error"
	case errors.Is(err, domain.ErrPersistence):
		return http.StatusInternalServerError, "persistence_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeDomainError reports err to the client. Server-side failures are
// logged and their details kept out of the response.
func writeDomainError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError && code != "upstream_error" && code != "scrape_timeout" {
		log.Error("request failed",
			"request_id", RequestIDFrom(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
		msg = http.StatusText(status)
	}
	WriteError(w, r, status, code, msg)
}

package httpapi

import (
	"log/slog"
	"net/http"
	"strings"
)

type SecretsHandler struct {
	Token TokenStore
	Log   *slog.Logger
}

type setTokenReq struct {
	Token string `json:"token"`
}

// SetScraperToken stores the remote scraper API token. Loopback callers only.
func (h SecretsHandler) SetScraperToken(w http.ResponseWriter, r *http.Request) {
	if !isLoopback(r) {
		WriteError(w, r, http.StatusForbidden, "forbidden", "forbidden")
		return
	}
	var req setTokenReq
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, h.Log, err)
		return
	}
	tok := strings.TrimSpace(req.Token)
	if tok == "" {
		WriteError(w, r, http.StatusBadRequest, "validation_error", "token is required")
		return
	}
	if err := h.Token.Set(tok); err != nil {
		h.Log.Error("store scraper token", "error", err)
		WriteError(w, r, http.StatusInternalServerError, "keyring_error", "failed to store token")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h SecretsHandler) DeleteScraperToken(w http.ResponseWriter, r *http.Request) {
	if !isLoopback(r) {
		WriteError(w, r, http.StatusForbidden, "forbidden", "forbidden")
		return
	}
	if err := h.Token.Delete(); err != nil {
		h.Log.Error("delete scraper token", "error", err)
		WriteError(w, r, http.StatusInternalServerError, "keyring_error", "failed to delete token")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

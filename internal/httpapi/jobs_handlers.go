package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"jobscout-engine/internal/domain"
	"jobscout-engine/internal/jobs"
)

type JobsHandler struct {
	Jobs     *jobs.Service
	Sessions sessions
	Log      *slog.Logger
}

type jobIDRequest struct {
	JobID string `json:"job_id"`
}

// List is open to anonymous callers; with a session it shows that user's
// jobs minus the ones already applied to.
func (h JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	filters, err := jobs.ParseFilters(r.URL.Query())
	if err != nil {
		writeDomainError(w, r, h.Log, err)
		return
	}
	id, err := h.Sessions.identify(r)
	if err != nil {
		writeDomainError(w, r, h.Log, err)
		return
	}
	list, err := h.Jobs.List(r.Context(), userIDOf(id), filters)
	if errors.Is(err, domain.ErrPersistence) {
		// the listing is still well formed, just empty
		WriteJSON(w, http.StatusInternalServerError, map[string]any{
			"success":    false,
			"error":      "Failed to load jobs",
			"code":       "persistence_error",
			"request_id": RequestIDFrom(r.Context()),
			"jobs":       list,
		})
		return
	}
	if err != nil {
		writeDomainError(w, r, h.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, list)
}

func (h JobsHandler) Applied(w http.ResponseWriter, r *http.Request) {
	id, err := h.Sessions.require(r)
	if err != nil {
		writeDomainError(w, r, h.Log, err)
		return
	}
	list, err := h.Jobs.Applied(r.Context(), id.UserID)
	if err != nil {
		writeDomainError(w, r, h.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, list)
}

func (h JobsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	id, err := h.Sessions.require(r)
	if err != nil {
		writeDomainError(w, r, h.Log, err)
		return
	}
	st, err := h.Jobs.Stats(r.Context(), &id.UserID)
	if err != nil {
		writeDomainError(w, r, h.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, st)
}

func (h JobsHandler) MarkApplied(w http.ResponseWriter, r *http.Request) {
	id, err := h.Sessions.require(r)
	if err != nil {
		writeDomainError(w, r, h.Log, err)
		return
	}
	var req jobIDRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, h.Log, err)
		return
	}
	created, err := h.Jobs.MarkApplied(r.Context(), id.UserID, req.JobID)
	if err != nil {
		writeDomainError(w, r, h.Log, err)
		return
	}
	msg := "Job marked as applied"
	if !created {
		msg = "Job was already marked as applied"
	}
	WriteJSON(w, http.StatusOK, message{Success: true, Message: msg})
}

func (h JobsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := h.Sessions.require(r)
	if err != nil {
		writeDomainError(w, r, h.Log, err)
		return
	}
	var req jobIDRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, h.Log, err)
		return
	}
	if err := h.Jobs.Delete(r.Context(), id.UserID, req.JobID); err != nil {
		writeDomainError(w, r, h.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, message{Success: true, Message: "Job deleted successfully"})
}

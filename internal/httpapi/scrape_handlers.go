package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"jobscout-engine/internal/domain"
	"jobscout-engine/internal/ingest"
	"jobscout-engine/internal/tracker"
)

type ScrapeHandler struct {
	Tracker  *tracker.Tracker
	Sessions sessions
	Log      *slog.Logger
	RunCtx   context.Context
}

type startRequest struct {
	ingest.Request
	// Wait holds the response until the run settles.
	Wait bool `json:"wait"`
}

type startResponse struct {
	Success   bool     `json:"success"`
	JobsCount int      `json:"jobs_count"`
	Message   string   `json:"message,omitempty"`
	Error     string   `json:"error,omitempty"`
	Code      string   `json:"code,omitempty"`
	Errors    []string `json:"errors,omitempty"`
}

func (h ScrapeHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, h.Log, err)
		return
	}
	req.SearchTerm = strings.TrimSpace(req.SearchTerm)
	req.Location = strings.TrimSpace(req.Location)
	if req.SearchTerm == "" || req.Location == "" {
		writeDomainError(w, r, h.Log, domain.Invalid("search_term and location are required"))
		return
	}
	if req.ResultsWanted < 0 || req.HoursOld < 0 {
		writeDomainError(w, r, h.Log, domain.Invalid("results_wanted and hours_old must not be negative"))
		return
	}

	id, err := h.Sessions.identify(r)
	if err != nil {
		writeDomainError(w, r, h.Log, err)
		return
	}
	req.OwnerUserID = userIDOf(id)

	done, err := h.Tracker.Start(h.RunCtx, req.Request)
	if err != nil {
		writeDomainError(w, r, h.Log, err)
		return
	}

	if !req.Wait {
		WriteJSON(w, http.StatusOK, startResponse{
			Success: true,
			Message: fmt.Sprintf("Searching for %s jobs in %s...", req.SearchTerm, req.Location),
		})
		return
	}

	select {
	case <-r.Context().Done():
		// the run carries on without the client
	case st := <-done:
		if st.State == tracker.StateFailed {
			status, code := statusFor(st.Err())
			if code == "internal_error" || code == "persistence_error" {
				h.Log.Error("scrape run failed",
					"request_id", RequestIDFrom(r.Context()),
					"error", st.Err(),
				)
			}
			WriteJSON(w, status, startResponse{
				Success: false,
				Error:   st.Message,
				Code:    code,
				Errors:  st.Errors,
			})
			return
		}
		WriteJSON(w, http.StatusOK, startResponse{
			Success:   true,
			JobsCount: st.JobsCount,
			Message:   st.Message,
			Errors:    st.Errors,
		})
	}
}

func (h ScrapeHandler) Status(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.Tracker.Status())
}

package httpapi

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"jobscout-engine/internal/domain"
	"jobscout-engine/internal/events"
	"jobscout-engine/internal/jobs"
	"jobscout-engine/internal/store"
)

type ExportHandler struct {
	Export *store.CSVExport
	Jobs   *jobs.Service
	Hub    *events.Hub
	Log    *slog.Logger
	Now    func() time.Time
}

// Download serves the last exported batch as a dated attachment.
func (h ExportHandler) Download(w http.ResponseWriter, r *http.Request) {
	if h.Export == nil {
		WriteError(w, r, http.StatusNotFound, "not_found", "No jobs file found. Please run a job search first.")
		return
	}
	b, mod, err := h.Export.Read(r.Context())
	if errors.Is(err, domain.ErrNotFound) {
		WriteError(w, r, http.StatusNotFound, "not_found", "No jobs file found. Please run a job search first.")
		return
	}
	if err != nil {
		writeDomainError(w, r, h.Log, err)
		return
	}
	name := "scout_jobs_" + h.Now().Format("20060102_150405") + ".csv"
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	http.ServeContent(w, r, name, mod, bytes.NewReader(b))
}

func (h ExportHandler) List(w http.ResponseWriter, r *http.Request) {
	filters, err := jobs.ParseFilters(r.URL.Query())
	if err != nil {
		writeDomainError(w, r, h.Log, err)
		return
	}
	rows, err := h.Jobs.ListCSV(r.Context(), filters)
	if errors.Is(err, domain.ErrNotFound) {
		WriteError(w, r, http.StatusNotFound, "not_found", "No jobs file found")
		return
	}
	if err != nil {
		writeDomainError(w, r, h.Log, err)
		return
	}
	WriteJSON(w, http.StatusOK, rows)
}

func (h ExportHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if h.Export != nil {
		if err := h.Export.Remove(r.Context()); err != nil {
			writeDomainError(w, r, h.Log, err)
			return
		}
	}
	if h.Hub != nil {
		h.Hub.Publish(events.Make(RequestIDFrom(r.Context()), events.TypeJobsCleared, nil))
	}
	WriteJSON(w, http.StatusOK, message{Success: true, Message: "Jobs cleared successfully"})
}

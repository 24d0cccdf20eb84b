package httpapi

import (
	"net/http"
	"time"

	"jobscout-engine/internal/tracker"
)

type HealthHandler struct {
	Tracker *tracker.Tracker
	Now     func() time.Time
}

func (h HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	running := false
	if h.Tracker != nil {
		running = h.Tracker.Status().IsRunning
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"status":          "healthy",
		"timestamp":       h.Now().Format(time.RFC3339),
		"scraping_status": running,
	})
}

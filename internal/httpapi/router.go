package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// NewMux returns the raw mux so main() can still attach /shutdown (needs srv+token).
func NewMux(d Deps) *http.ServeMux {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.RunCtx == nil {
		d.RunCtx = context.Background()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	sess := sessions{auth: d.Auth}

	mux := http.NewServeMux()

	// Jobs
	jh := JobsHandler{Jobs: d.Jobs, Sessions: sess, Log: d.Log}
	mux.HandleFunc("/api/jobs", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: jh.List,
	}))
	mux.HandleFunc("/api/applied-jobs", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: jh.Applied,
	}))
	mux.HandleFunc("/api/stats", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: jh.Stats,
	}))
	mux.HandleFunc("/api/mark-applied", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: jh.MarkApplied,
	}))
	mux.HandleFunc("/api/delete-job", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: jh.Delete,
	}))

	// Sessions
	ah := AuthHandler{Auth: d.Auth, Sessions: sess, Log: d.Log}
	mux.HandleFunc("/api/signup", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: ah.Signup,
	}))
	mux.HandleFunc("/api/login", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: ah.Login,
	}))
	mux.HandleFunc("/api/logout", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: ah.Logout,
	}))
	mux.HandleFunc("/api/check-session", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ah.CheckSession,
	}))

	// Scrape
	sch := ScrapeHandler{Tracker: d.Tracker, Sessions: sess, Log: d.Log, RunCtx: d.RunCtx}
	start := methodMux(map[string]http.HandlerFunc{
		http.MethodPost: sch.Start,
	})
	mux.HandleFunc("/api/search-jobs", start)
	mux.HandleFunc("/api/start-scraping", start)
	mux.HandleFunc("/api/scraping-status", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: sch.Status,
	}))

	// CSV export
	xh := ExportHandler{Export: d.Export, Jobs: d.Jobs, Hub: d.Hub, Log: d.Log, Now: d.Now}
	mux.HandleFunc("/api/download-jobs", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: xh.Download,
	}))
	mux.HandleFunc("/api/jobs.csv", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: xh.List,
	}))
	mux.HandleFunc("/api/clear-jobs", methodMux(map[string]http.HandlerFunc{
		http.MethodPost:   xh.Clear,
		http.MethodDelete: xh.Clear,
	}))

	// Health
	hh := HealthHandler{Tracker: d.Tracker, Now: d.Now}
	mux.HandleFunc("/api/health", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: hh.Health,
	}))

	// SSE events
	if d.Hub != nil {
		eh := EventsHandler{Hub: d.Hub}
		mux.HandleFunc("/api/events", methodMux(map[string]http.HandlerFunc{
			http.MethodGet: eh.ServeSSE,
		}))
	}

	// Secrets
	if d.Token != nil {
		sh := SecretsHandler{Token: d.Token, Log: d.Log}
		mux.HandleFunc("/api/secrets/scraper", methodMux(map[string]http.HandlerFunc{
			http.MethodPost:   sh.SetScraperToken,
			http.MethodDelete: sh.DeleteScraperToken,
		}))
	}

	return mux
}

package httpapi

import (
	"context"
	"log/slog"
	"time"

	"jobscout-engine/internal/auth"
	"jobscout-engine/internal/events"
	"jobscout-engine/internal/jobs"
	"jobscout-engine/internal/store"
	"jobscout-engine/internal/tracker"
)

// TokenStore keeps the remote scraper API token.
type TokenStore interface {
	Set(token string) error
	Delete() error
}

type Deps struct {
	Jobs    *jobs.Service
	Tracker *tracker.Tracker
	Auth    *auth.Service
	Hub     *events.Hub
	Export  *store.CSVExport
	Token   TokenStore // nil disables /api/secrets/scraper
	Log     *slog.Logger

	// RunCtx bounds background scrape runs; it outlives any request.
	RunCtx context.Context

	Now func() time.Time
}

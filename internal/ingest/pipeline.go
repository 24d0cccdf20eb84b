package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"jobscout-engine/internal/domain"
	"jobscout-engine/internal/scrape"
)

const (
	DefaultTimeout       = 300 * time.Second
	DefaultResultsWanted = 20
	DefaultHoursOld      = 72

	NoResultsMessage = "No jobs found. Try adjusting your search parameters."
)

// Inserter persists one job. Inserts are independent; a failed insert does
// not affect the others.
type Inserter interface {
	InsertJob(ctx context.Context, j *domain.Job) error
}

// Exporter receives every job a run saved.
type Exporter interface {
	Export(ctx context.Context, jobs []domain.Job) error
}

// Step is a progress report emitted while a run advances.
type Step struct {
	Progress int
	Message  string
	Site     string
}

type Reporter func(Step)

type Request struct {
	SearchTerm    string  `json:"search_term"`
	Location      string  `json:"location"`
	ResultsWanted int     `json:"results_wanted"`
	HoursOld      int     `json:"hours_old"`
	OwnerUserID   *string `json:"-"`
}

type Result struct {
	JobsSaved int      `json:"jobs_saved"`
	Found     int      `json:"found"`
	Errors    []string `json:"errors"`
	Message   string   `json:"message"`
}

type Pipeline struct {
	Scraper  scrape.Scraper
	Store    Inserter
	Exporter Exporter
	Log      *slog.Logger

	Timeout       time.Duration
	Sites         []string
	Country       string
	ResultsWanted int
	HoursOld      int

	now   func() time.Time
	newID func() string
}

func NewPipeline(s scrape.Scraper, st Inserter, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		Scraper:       s,
		Store:         st,
		Log:           log,
		Timeout:       DefaultTimeout,
		ResultsWanted: DefaultResultsWanted,
		HoursOld:      DefaultHoursOld,
		now:           time.Now,
		newID:         uuid.NewString,
	}
}

// Ingest runs one search end to end. The returned error is non-nil when the
// run as a whole failed (bad input, scraper failure or timeout). Save
// failures never fail the run, even when no row could be stored; they show
// up in Result.Errors and settle progress at 90.
func (p *Pipeline) Ingest(ctx context.Context, req Request, report Reporter) (Result, error) {
	if report == nil {
		report = func(Step) {}
	}
	term := strings.TrimSpace(req.SearchTerm)
	loc := strings.TrimSpace(req.Location)
	if term == "" || loc == "" {
		return Result{}, domain.Invalid("search_term and location are required")
	}
	if req.ResultsWanted <= 0 {
		req.ResultsWanted = p.ResultsWanted
	}
	if req.HoursOld <= 0 {
		req.HoursOld = p.HoursOld
	}
	report(Step{Progress: 10, Message: fmt.Sprintf("Searching for %s jobs in %s...", term, loc)})

	params := scrape.NewParams(term, loc, req.ResultsWanted, req.HoursOld, p.Sites, p.Country)
	report(Step{
		Progress: 20,
		Message:  fmt.Sprintf("Starting search across %d job boards...", len(params.Sites)),
		Site:     strings.Join(params.Sites, ","),
	})

	start := p.now()
	rows, err := p.scrape(ctx, params)
	if err != nil {
		p.Log.Warn("scrape failed", "scraper", p.Scraper.Name(), "error", err)
		return Result{Errors: []string{err.Error()}}, err
	}
	p.Log.Info("scrape done", "scraper", p.Scraper.Name(), "rows", len(rows), "dur_ms", p.now().Sub(start).Milliseconds())

	if len(rows) == 0 {
		report(Step{Progress: 100, Message: NoResultsMessage})
		return Result{Message: NoResultsMessage}, nil
	}

	report(Step{Progress: 80, Message: fmt.Sprintf("Found %d jobs. Processing results...", len(rows))})

	now := p.now().UTC()
	drafts, soft := Normalize(rows, now)
	res := Result{Found: len(drafts), Errors: soft}

	saved := make([]domain.Job, 0, len(drafts))
	for _, d := range drafts {
		j := domain.Job{
			ID:        p.newID(),
			Draft:     d,
			Status:    domain.JobActive,
			UserID:    req.OwnerUserID,
			CreatedAt: now,
		}
		if err := p.Store.InsertJob(ctx, &j); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("save %q at %q: %v", d.Title, d.Company, err))
			continue
		}
		saved = append(saved, j)
	}
	res.JobsSaved = len(saved)
	failed := res.JobsSaved < len(drafts)

	if p.Exporter != nil && len(saved) > 0 {
		if err := p.Exporter.Export(ctx, saved); err != nil {
			p.Log.Warn("csv export failed", "error", err)
			res.Errors = append(res.Errors, fmt.Sprintf("export: %v", err))
		}
	}

	switch {
	case len(drafts) > 0 && res.JobsSaved == 0:
		res.Message = fmt.Sprintf("Found %d jobs but failed to save. Please try again.", len(drafts))
		p.Log.Error("no jobs persisted", "found", len(drafts), "errors", len(res.Errors))
		report(Step{Progress: 90, Message: res.Message})
	case failed:
		res.Message = fmt.Sprintf("Saved %d of %d jobs.", res.JobsSaved, len(drafts))
		report(Step{Progress: 90, Message: res.Message})
	default:
		res.Message = fmt.Sprintf("Successfully found and saved %d jobs!", res.JobsSaved)
		report(Step{Progress: 100, Message: res.Message})
	}
	p.Log.Info("ingest done", "saved", res.JobsSaved, "found", res.Found, "errors", len(res.Errors))
	return res, nil
}

// scrape bounds the collaborator call by Timeout regardless of whether the
// scraper itself honors ctx.
func (p *Pipeline) scrape(ctx context.Context, params scrape.Params) ([]any, error) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		rows []any
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("scraper panic: %v", r)}
			}
		}()
		rows, err := p.Scraper.Scrape(cctx, params)
		done <- outcome{rows: rows, err: err}
	}()

	select {
	case out := <-done:
		if out.err == nil {
			return out.rows, nil
		}
		if errors.Is(out.err, context.DeadlineExceeded) && cctx.Err() != nil {
			return nil, timeoutErr(timeout)
		}
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrUpstream, p.Scraper.Name(), out.err)
	case <-cctx.Done():
		if errors.Is(cctx.Err(), context.DeadlineExceeded) {
			return nil, timeoutErr(timeout)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstream, cctx.Err())
	}
}

func timeoutErr(d time.Duration) error {
	return fmt.Errorf("%w: no response from scraper within %s: %w", domain.ErrTimeout, d, domain.ErrUpstream)
}

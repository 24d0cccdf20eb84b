// Package tracker owns the process-wide scrape status register. At most one
// ingestion run is in flight; a second start is rejected, never queued.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"jobscout-engine/internal/domain"
	"jobscout-engine/internal/ingest"
)

type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Status is a point-in-time copy of the register.
type Status struct {
	IsRunning   bool       `json:"is_running"`
	Progress    int        `json:"progress"`
	Message     string     `json:"message"`
	JobsCount   int        `json:"jobs_count"`
	Errors      []string   `json:"errors"`
	CurrentSite string     `json:"current_site"`
	State       State      `json:"state"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`

	err error
}

// Err is the error that failed the run, nil unless State is StateFailed.
func (s Status) Err() error { return s.err }

func (s Status) clone() Status {
	out := s
	out.Errors = append([]string{}, s.Errors...)
	if s.StartedAt != nil {
		t := *s.StartedAt
		out.StartedAt = &t
	}
	if s.FinishedAt != nil {
		t := *s.FinishedAt
		out.FinishedAt = &t
	}
	return out
}

// Runner is the ingestion pipeline as seen by the tracker.
type Runner interface {
	Ingest(ctx context.Context, req ingest.Request, report ingest.Reporter) (ingest.Result, error)
}

type Tracker struct {
	runner Runner
	log    *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	st       Status
	onChange func(Status)
}

func New(r Runner, log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{
		runner: r,
		log:    log,
		now:    time.Now,
		st:     Status{State: StateIdle, Errors: []string{}},
	}
}

// OnChange registers fn to receive a snapshot after every transition. fn is
// called without the register lock held and must not block for long.
func (t *Tracker) OnChange(fn func(Status)) {
	t.mu.Lock()
	t.onChange = fn
	t.mu.Unlock()
}

// Status returns a snapshot; it has no side effects.
func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.st.clone()
}

// Start launches a run in the background and returns at once. The returned
// channel yields the settled status and is then closed. ctx bounds the run
// itself, so pass a process-lifetime context rather than a request's.
func (t *Tracker) Start(ctx context.Context, req ingest.Request) (<-chan Status, error) {
	t.mu.Lock()
	if t.st.IsRunning {
		t.mu.Unlock()
		return nil, domain.Conflict("A job search is already running. Please wait for it to finish.")
	}
	started := t.now().UTC()
	t.st = Status{
		IsRunning: true,
		Progress:  0,
		Message:   "Initializing job search...",
		Errors:    []string{},
		State:     StateRunning,
		StartedAt: &started,
	}
	snap, fn := t.st.clone(), t.onChange
	t.mu.Unlock()
	notify(fn, snap)

	t.log.Info("scrape run started", "search_term", req.SearchTerm, "location", req.Location)

	done := make(chan Status, 1)
	go t.run(ctx, req, done)
	return done, nil
}

func (t *Tracker) run(ctx context.Context, req ingest.Request, done chan<- Status) {
	defer func() {
		if r := recover(); r != nil {
			t.log.Error("scrape run panicked", "panic", r)
			t.fail(ingest.Result{}, fmt.Errorf("internal error: %v", r))
		}
		final := t.release()
		done <- final
		close(done)
	}()

	res, err := t.runner.Ingest(ctx, req, t.report)
	if err != nil {
		t.log.Warn("scrape run failed", "error", err)
		t.fail(res, err)
		return
	}
	t.complete(res)
}

// report applies a progress step. Progress never moves backwards within a run.
func (t *Tracker) report(s ingest.Step) {
	t.mu.Lock()
	if !t.st.IsRunning {
		t.mu.Unlock()
		return
	}
	if s.Progress > t.st.Progress {
		t.st.Progress = min(s.Progress, 100)
	}
	if s.Message != "" {
		t.st.Message = s.Message
	}
	if s.Site != "" {
		t.st.CurrentSite = s.Site
	}
	snap, fn := t.st.clone(), t.onChange
	t.mu.Unlock()
	notify(fn, snap)
}

func (t *Tracker) complete(res ingest.Result) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.st.Progress < 90 {
		t.st.Progress = 100
	}
	t.st.Message = res.Message
	t.st.JobsCount = res.JobsSaved
	t.st.Errors = append([]string{}, res.Errors...)
	t.st.State = StateCompleted
}

// fail settles the run as failed. The run error is recorded exactly once even
// when the pipeline already listed it among the result errors.
func (t *Tracker) fail(res ingest.Result, err error) {
	msg := err.Error()
	errs := make([]string, 0, len(res.Errors)+1)
	for _, e := range res.Errors {
		if e != msg {
			errs = append(errs, e)
		}
	}
	errs = append(errs, msg)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.st.Progress = 0
	t.st.Message = "Job search failed: " + msg
	t.st.JobsCount = res.JobsSaved
	t.st.Errors = errs
	t.st.State = StateFailed
	t.st.err = err
}

// release clears is_running. It runs on every exit path of a run.
func (t *Tracker) release() Status {
	t.mu.Lock()
	finished := t.now().UTC()
	t.st.IsRunning = false
	t.st.CurrentSite = ""
	t.st.FinishedAt = &finished
	if t.st.State == StateRunning {
		t.st.State = StateFailed
		t.st.err = fmt.Errorf("run ended without settling")
	}
	snap, fn := t.st.clone(), t.onChange
	t.mu.Unlock()

	notify(fn, snap)
	t.log.Info("scrape run settled", "state", snap.State, "jobs", snap.JobsCount, "errors", len(snap.Errors))
	return snap
}

func notify(fn func(Status), s Status) {
	if fn != nil {
		fn(s)
	}
}

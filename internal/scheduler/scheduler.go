// Package scheduler runs maintenance tasks on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

type Task func(ctx context.Context) error

// Scheduler wraps robfig/cron. Overlapping runs of the same task are skipped.
type Scheduler struct {
	cron *cron.Cron
	log  *slog.Logger
	ctx  context.Context
}

func New(ctx context.Context, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		cron: cron.New(cron.WithChain(cron.Recover(cronLogger{log}))),
		log:  log,
		ctx:  ctx,
	}
}

// Add registers task under spec ("@daily", "@every 15m", "0 3 * * *").
func (s *Scheduler) Add(spec, name string, task Task) error {
	job := cron.NewChain(cron.SkipIfStillRunning(cronLogger{s.log})).Then(cron.FuncJob(func() {
		s.run(name, task)
	}))
	if _, err := s.cron.AddJob(spec, job); err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	return nil
}

// RunNow runs task once in the background, outside the schedule.
func (s *Scheduler) RunNow(name string, task Task) {
	go s.run(name, task)
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop waits for running tasks to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

func (s *Scheduler) run(name string, task Task) {
	if s.ctx.Err() != nil {
		return
	}
	start := time.Now()
	if err := task(s.ctx); err != nil {
		s.log.Error("scheduled task failed", "task", name, "error", err)
		return
	}
	s.log.Debug("scheduled task done", "task", name, "dur_ms", time.Since(start).Milliseconds())
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct{ log *slog.Logger }

func (l cronLogger) Info(msg string, kv ...any) { l.log.Debug("cron: "+msg, kv...) }

func (l cronLogger) Error(err error, msg string, kv ...any) {
	l.log.Error("cron: "+msg, append(kv, "error", err)...)
}

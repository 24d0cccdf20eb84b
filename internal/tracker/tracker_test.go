package tracker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobscout-engine/internal/domain"
	"jobscout-engine/internal/ingest"
	"jobscout-engine/internal/scrape"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// runnerFunc adapts a plain function to Runner.
type runnerFunc func(ctx context.Context, req ingest.Request, report ingest.Reporter) (ingest.Result, error)

func (f runnerFunc) Ingest(ctx context.Context, req ingest.Request, report ingest.Reporter) (ingest.Result, error) {
	return f(ctx, req, report)
}

func wait(t *testing.T, done <-chan Status) Status {
	t.Helper()
	select {
	case s := <-done:
		return s
	case <-time.After(5 * time.Second):
		t.Fatal("run did not settle")
		return Status{}
	}
}

func TestRunCompletes(t *testing.T) {
	tr := New(runnerFunc(func(_ context.Context, _ ingest.Request, report ingest.Reporter) (ingest.Result, error) {
		for _, p := range []int{10, 20, 80, 100} {
			report(ingest.Step{Progress: p, Message: "step", Site: "indeed"})
		}
		return ingest.Result{JobsSaved: 2, Message: "Successfully found and saved 2 jobs!"}, nil
	}), quiet)

	done, err := tr.Start(context.Background(), ingest.Request{SearchTerm: "go", Location: "Austin"})
	require.NoError(t, err)
	final := wait(t, done)

	assert.False(t, final.IsRunning)
	assert.Equal(t, StateCompleted, final.State)
	assert.Equal(t, 100, final.Progress)
	assert.Equal(t, 2, final.JobsCount)
	assert.Empty(t, final.Errors)
	assert.Empty(t, final.CurrentSite)
	assert.NotNil(t, final.FinishedAt)
	assert.Equal(t, final, tr.Status())
}

func TestStartWhileRunningIsRejected(t *testing.T) {
	release := make(chan struct{})
	tr := New(runnerFunc(func(_ context.Context, _ ingest.Request, report ingest.Reporter) (ingest.Result, error) {
		report(ingest.Step{Progress: 20, Message: "Starting search across 4 job boards..."})
		<-release
		return ingest.Result{JobsSaved: 1, Message: "ok"}, nil
	}), quiet)

	done, err := tr.Start(context.Background(), ingest.Request{SearchTerm: "go", Location: "Austin"})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return tr.Status().Progress == 20 }, time.Second, 5*time.Millisecond)

	before := tr.Status()
	_, err = tr.Start(context.Background(), ingest.Request{SearchTerm: "rust", Location: "Dallas"})
	require.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, before, tr.Status(), "rejected start must not touch the in-flight run")

	close(release)
	final := wait(t, done)
	assert.Equal(t, 1, final.JobsCount)

	// terminal state resets implicitly on the next start
	done, err = tr.Start(context.Background(), ingest.Request{SearchTerm: "rust", Location: "Dallas"})
	require.NoError(t, err)
	wait(t, done)
}

func TestPanicStillClearsRunning(t *testing.T) {
	tr := New(runnerFunc(func(_ context.Context, _ ingest.Request, report ingest.Reporter) (ingest.Result, error) {
		report(ingest.Step{Progress: 80})
		panic("storage driver exploded")
	}), quiet)

	done, err := tr.Start(context.Background(), ingest.Request{SearchTerm: "go", Location: "Austin"})
	require.NoError(t, err)
	final := wait(t, done)

	assert.False(t, final.IsRunning)
	assert.Equal(t, StateFailed, final.State)
	assert.Zero(t, final.Progress)
	require.Len(t, final.Errors, 1)
	assert.Contains(t, final.Errors[0], "storage driver exploded")
	assert.True(t, strings.HasPrefix(final.Message, "Job search failed: "))
}

func TestFailureAtEveryStep(t *testing.T) {
	for _, stop := range []int{0, 10, 20, 80, 90} {
		tr := New(runnerFunc(func(_ context.Context, _ ingest.Request, report ingest.Reporter) (ingest.Result, error) {
			for _, p := range []int{10, 20, 80, 90} {
				if p > stop {
					break
				}
				report(ingest.Step{Progress: p})
			}
			return ingest.Result{}, errors.New("injected")
		}), quiet)

		done, err := tr.Start(context.Background(), ingest.Request{SearchTerm: "go", Location: "Austin"})
		require.NoError(t, err)
		final := wait(t, done)
		assert.False(t, final.IsRunning, "stop=%d", stop)
		assert.Zero(t, final.Progress, "stop=%d", stop)
		assert.Equal(t, []string{"injected"}, final.Errors, "stop=%d", stop)
	}
}

func TestProgressNeverDecreases(t *testing.T) {
	tr := New(runnerFunc(func(_ context.Context, _ ingest.Request, report ingest.Reporter) (ingest.Result, error) {
		report(ingest.Step{Progress: 80})
		report(ingest.Step{Progress: 20, Message: "late"})
		return ingest.Result{Message: "partial"}, nil
	}), quiet)

	var (
		mu   sync.Mutex
		seen []int
	)
	tr.OnChange(func(s Status) {
		mu.Lock()
		seen = append(seen, s.Progress)
		mu.Unlock()
	})

	done, err := tr.Start(context.Background(), ingest.Request{SearchTerm: "go", Location: "Austin"})
	require.NoError(t, err)
	wait(t, done)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 80, 80, 100}, seen)
}

func TestTimeoutSettlesAsFailure(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })

	p := ingest.NewPipeline(blockingScraper{block}, nopStore{}, quiet)
	p.Timeout = 50 * time.Millisecond
	tr := New(p, quiet)

	done, err := tr.Start(context.Background(), ingest.Request{SearchTerm: "go", Location: "Austin"})
	require.NoError(t, err)
	final := wait(t, done)

	assert.False(t, final.IsRunning)
	assert.Zero(t, final.Progress)
	require.Len(t, final.Errors, 1)
	assert.Contains(t, final.Errors[0], "timeout")
	assert.ErrorIs(t, final.Err(), domain.ErrTimeout)
}

func TestNothingSavedCompletesAtNinety(t *testing.T) {
	rows := []any{
		domain.RawRow{"title": "A", "company": "C"},
		domain.RawRow{"title": "B", "company": "C"},
	}
	p := ingest.NewPipeline(fixedScraper{rows}, failingStore{}, quiet)
	tr := New(p, quiet)

	done, err := tr.Start(context.Background(), ingest.Request{SearchTerm: "go", Location: "Austin"})
	require.NoError(t, err)
	final := wait(t, done)

	assert.False(t, final.IsRunning)
	assert.Equal(t, StateCompleted, final.State)
	assert.Equal(t, 90, final.Progress)
	assert.Equal(t, "Found 2 jobs but failed to save. Please try again.", final.Message)
	assert.Zero(t, final.JobsCount)
	assert.Len(t, final.Errors, 2)
	assert.NoError(t, final.Err())
}

func TestConcurrentPolling(t *testing.T) {
	step := make(chan int)
	tr := New(runnerFunc(func(_ context.Context, _ ingest.Request, report ingest.Reporter) (ingest.Result, error) {
		for p := range step {
			report(ingest.Step{Progress: p, Message: "working"})
		}
		return ingest.Result{JobsSaved: 3, Message: "done"}, nil
	}), quiet)

	done, err := tr.Start(context.Background(), ingest.Request{SearchTerm: "go", Location: "Austin"})
	require.NoError(t, err)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			last := 0
			for {
				select {
				case <-stop:
					return
				default:
				}
				s := tr.Status()
				if s.IsRunning && s.Progress < last {
					t.Errorf("progress went backwards: %d -> %d", last, s.Progress)
					return
				}
				if s.IsRunning {
					last = s.Progress
				}
			}
		}()
	}

	for _, p := range []int{10, 20, 80, 100} {
		step <- p
	}
	close(step)
	wait(t, done)
	close(stop)
	wg.Wait()

	assert.False(t, tr.Status().IsRunning)
}

func TestStatusIsACopy(t *testing.T) {
	tr := New(runnerFunc(func(context.Context, ingest.Request, ingest.Reporter) (ingest.Result, error) {
		return ingest.Result{Errors: []string{"row 1: not a mapping (string)"}, Message: "ok"}, nil
	}), quiet)
	done, err := tr.Start(context.Background(), ingest.Request{SearchTerm: "go", Location: "Austin"})
	require.NoError(t, err)
	wait(t, done)

	s := tr.Status()
	s.Errors[0] = "mutated"
	assert.Equal(t, "row 1: not a mapping (string)", tr.Status().Errors[0])
}

type blockingScraper struct{ block chan struct{} }

func (blockingScraper) Name() string { return "blocking" }

func (b blockingScraper) Scrape(context.Context, scrape.Params) ([]any, error) {
	<-b.block
	return nil, nil
}

type fixedScraper struct{ rows []any }

func (fixedScraper) Name() string { return "fixed" }

func (f fixedScraper) Scrape(context.Context, scrape.Params) ([]any, error) { return f.rows, nil }

type failingStore struct{}

func (failingStore) InsertJob(context.Context, *domain.Job) error {
	return fmt.Errorf("%w: database is locked", domain.ErrPersistence)
}

type nopStore struct{}

func (nopStore) InsertJob(context.Context, *domain.Job) error { return nil }

// Package jobs serves persisted postings: filtered listings, the applied
// view, mark-applied, soft delete and stats.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"time"

	"jobscout-engine/internal/domain"
	"jobscout-engine/internal/store"
)

// MaxListed caps every listing handed to clients.
const MaxListed = 50

type Service struct {
	store  store.JobStore
	export *store.CSVExport
	log    *slog.Logger
	now    func() time.Time
}

func NewService(st store.JobStore, export *store.CSVExport, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: st, export: export, log: log, now: time.Now}
}

// ParseFilters keeps the non-empty exact-match filters from q. Unknown keys
// are a validation error; ignore lists keys that are not filters at all.
func ParseFilters(q url.Values, ignore ...string) (map[string]string, error) {
	skip := make(map[string]bool, len(ignore))
	for _, k := range ignore {
		skip[k] = true
	}
	out := make(map[string]string)
	var unknown []string
	for k, vs := range q {
		if skip[k] {
			continue
		}
		if _, ok := store.FilterColumns[k]; !ok {
			unknown = append(unknown, k)
			continue
		}
		if len(vs) == 0 {
			continue
		}
		if v := strings.TrimSpace(vs[0]); v != "" {
			out[k] = v
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, domain.Invalid(fmt.Sprintf("unsupported filter(s): %s", strings.Join(unknown, ", ")))
	}
	return out, nil
}

// List returns active jobs matching filters. With a user, only that user's
// jobs are considered and the ones they applied to are left out. A storage
// failure yields an empty listing; the error is logged and returned wrapped
// in ErrPersistence so callers can still report it.
func (s *Service) List(ctx context.Context, userID *string, filters map[string]string) ([]domain.Job, error) {
	for k := range filters {
		if _, ok := store.FilterColumns[k]; !ok {
			return nil, domain.Invalid(fmt.Sprintf("unsupported filter %q", k))
		}
	}

	f := store.JobFilter{Status: domain.JobActive, OwnerID: userID, Equals: filters}
	var applied map[string]struct{}
	if userID == nil {
		// nothing to exclude, so the cap can go to the store
		f.Limit = MaxListed
	} else {
		ids, err := s.store.AppliedJobIDs(ctx, *userID)
		if err != nil {
			return s.listFailed(err)
		}
		applied = ids
	}

	all, err := s.store.ListJobs(ctx, f)
	if err != nil {
		return s.listFailed(err)
	}

	out := make([]domain.Job, 0, min(len(all), MaxListed))
	for _, j := range all {
		if _, done := applied[j.ID]; done {
			continue
		}
		out = append(out, j)
		if len(out) == MaxListed {
			break
		}
	}
	return out, nil
}

func (s *Service) listFailed(err error) ([]domain.Job, error) {
	s.log.Error("list jobs failed", "error", err)
	if !errors.Is(err, domain.ErrPersistence) {
		err = fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	return []domain.Job{}, err
}

func (s *Service) Applied(ctx context.Context, userID string) ([]domain.Job, error) {
	jobs, err := s.store.ListAppliedJobs(ctx, userID)
	if err != nil {
		s.log.Error("list applied jobs failed", "user_id", userID, "error", err)
		return []domain.Job{}, err
	}
	if jobs == nil {
		jobs = []domain.Job{}
	}
	return jobs, nil
}

// MarkApplied records that userID applied to jobID. Repeating it is a no-op.
func (s *Service) MarkApplied(ctx context.Context, userID, jobID string) (bool, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return false, domain.Invalid("job_id is required")
	}
	created, err := s.store.MarkApplied(ctx, domain.Application{
		JobID:     jobID,
		UserID:    userID,
		AppliedAt: s.now().UTC(),
		Status:    domain.ApplicationApplied,
	})
	if err != nil {
		return false, err
	}
	s.log.Info("job marked applied", "job_id", jobID, "user_id", userID, "new", created)
	return created, nil
}

// Delete soft-deletes a job. Users may delete unowned jobs and their own;
// anyone else's job reads as not found.
func (s *Service) Delete(ctx context.Context, userID, jobID string) error {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return domain.Invalid("job_id is required")
	}
	j, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if j.UserID != nil && !j.OwnedBy(userID) {
		return fmt.Errorf("job %s: %w", jobID, domain.ErrNotFound)
	}
	if err := s.store.SoftDelete(ctx, jobID, userID, s.now().UTC()); err != nil {
		return err
	}
	s.log.Info("job deleted", "job_id", jobID, "user_id", userID)
	return nil
}

// Stats merges the global figures with userID's own when userID is set.
func (s *Service) Stats(ctx context.Context, userID *string) (domain.Stats, error) {
	st, err := s.store.GlobalStats(ctx)
	if err != nil {
		return domain.Stats{}, err
	}
	if userID == nil {
		return st, nil
	}
	us, err := s.store.UserStats(ctx, *userID)
	if err != nil {
		return domain.Stats{}, err
	}
	st.AppliedJobs = us.AppliedJobs
	st.SearchesPerformed = us.SearchesPerformed
	st.TotalJobsAvailable = us.TotalJobsAvailable
	return st, nil
}

// Purge hard-deletes jobs that have been inactive for longer than age.
func (s *Service) Purge(ctx context.Context, age time.Duration) (int64, error) {
	n, err := s.store.PurgeInactive(ctx, s.now().Add(-age))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info("purged inactive jobs", "count", n, "older_than", age.String())
	}
	return n, nil
}

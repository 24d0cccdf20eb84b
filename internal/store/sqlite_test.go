package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"jobscout-engine/internal/domain"
)

var t0 = time.Date(2025, 3, 14, 9, 30, 0, 123456789, time.UTC)

func ptr[T any](v T) *T { return &v }

func newTestDB(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedJob(t *testing.T, s JobStore, id string, mod func(*domain.Job)) domain.Job {
	t.Helper()
	j := domain.Job{
		ID: id,
		Draft: domain.Draft{
			Title:       "Title " + id,
			Company:     "Acme",
			Location:    "Austin, TX",
			Description: "desc",
			PostedDate:  "2025-03-14",
			JobType:     "Full Time",
		},
		Status:    domain.JobActive,
		CreatedAt: t0,
	}
	if mod != nil {
		mod(&j)
	}
	if err := s.InsertJob(context.Background(), &j); err != nil {
		t.Fatalf("insert %s: %v", id, err)
	}
	return j
}

func TestInsertAndGetJobRoundTrip(t *testing.T) {
	s := newTestDB(t)
	want := seedJob(t, s, "j1", func(j *domain.Job) {
		j.Salary = ptr("$100k")
		j.MinAmount = ptr(80000.0)
		j.MaxAmount = ptr(120000.0)
		j.IsRemote = ptr(true)
		j.UserID = ptr("user-a")
		j.Site = "indeed"
		j.Extra = map[string]any{"rating": 4.5, "emails": nil}
	})

	got, err := s.GetJob(context.Background(), "j1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("job mismatch (-want +got):\n%s", diff)
	}

	_, err = s.GetJob(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestListJobsFilters(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)
	seedJob(t, s, "a", func(j *domain.Job) { j.UserID = ptr("u1"); j.Location = "Dallas, TX" })
	seedJob(t, s, "b", func(j *domain.Job) { j.UserID = ptr("u1"); j.Company = "Initech" })
	seedJob(t, s, "c", func(j *domain.Job) { j.UserID = ptr("u2") })
	seedJob(t, s, "d", func(j *domain.Job) { j.Status = domain.JobInactive })
	seedJob(t, s, "e", nil)

	tests := []struct {
		name string
		f    JobFilter
		want []string
	}{
		{name: "active only", f: JobFilter{Status: domain.JobActive}, want: []string{"a", "b", "c", "e"}},
		{name: "owner", f: JobFilter{Status: domain.JobActive, OwnerID: ptr("u1")}, want: []string{"a", "b"}},
		{name: "exact company", f: JobFilter{Status: domain.JobActive, Equals: map[string]string{"company": "Initech"}}, want: []string{"b"}},
		{name: "case sensitive", f: JobFilter{Status: domain.JobActive, Equals: map[string]string{"company": "initech"}}, want: nil},
		{name: "two filters", f: JobFilter{Status: domain.JobActive, Equals: map[string]string{"company": "Acme", "location": "Dallas, TX"}}, want: []string{"a"}},
		{name: "limit", f: JobFilter{Status: domain.JobActive, Limit: 2}, want: []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs, err := s.ListJobs(ctx, tt.f)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			var ids []string
			for _, j := range jobs {
				ids = append(ids, j.ID)
			}
			if diff := cmp.Diff(tt.want, ids); diff != "" {
				t.Errorf("ids mismatch (-want +got):\n%s", diff)
			}
		})
	}

	_, err := s.ListJobs(ctx, JobFilter{Equals: map[string]string{"description; DROP TABLE jobs": "x"}})
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("unknown filter should be rejected, got %v", err)
	}
}

func TestMarkAppliedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)
	seedJob(t, s, "j1", nil)

	app := domain.Application{JobID: "j1", UserID: "u1", AppliedAt: t0}
	created, err := s.MarkApplied(ctx, app)
	if err != nil || !created {
		t.Fatalf("first mark: created=%v err=%v", created, err)
	}
	created, err = s.MarkApplied(ctx, app)
	if err != nil || created {
		t.Fatalf("second mark: created=%v err=%v", created, err)
	}

	j, _ := s.GetJob(ctx, "j1")
	if j.Applications != 1 {
		t.Errorf("applications = %d, want 1", j.Applications)
	}

	ids, err := s.AppliedJobIDs(ctx, "u1")
	if err != nil {
		t.Fatalf("applied ids: %v", err)
	}
	if diff := cmp.Diff(map[string]struct{}{"j1": {}}, ids); diff != "" {
		t.Errorf("applied ids mismatch (-want +got):\n%s", diff)
	}

	applied, err := s.ListAppliedJobs(ctx, "u1")
	if err != nil {
		t.Fatalf("applied jobs: %v", err)
	}
	if len(applied) != 1 || applied[0].ApplicationStatus != "applied" || !applied[0].AppliedAt.Equal(t0) {
		t.Errorf("applied = %+v", applied)
	}

	_, err = s.MarkApplied(ctx, domain.Application{JobID: "nope", UserID: "u1", AppliedAt: t0})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestSoftDeleteAndPurge(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)
	seedJob(t, s, "old", nil)
	seedJob(t, s, "recent", nil)
	seedJob(t, s, "live", nil)

	if err := s.SoftDelete(ctx, "old", "u1", t0.Add(-40*24*time.Hour)); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	if err := s.SoftDelete(ctx, "recent", "u1", t0.Add(-time.Hour)); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	if _, err := s.MarkApplied(ctx, domain.Application{JobID: "old", UserID: "u1", AppliedAt: t0}); err != nil {
		t.Fatalf("mark: %v", err)
	}

	j, _ := s.GetJob(ctx, "old")
	if j.Status != domain.JobInactive || j.DeletedBy == nil || *j.DeletedBy != "u1" || j.DeletedAt == nil {
		t.Errorf("soft delete not recorded: %+v", j)
	}

	n, err := s.PurgeInactive(ctx, t0.Add(-30*24*time.Hour))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d, want 1", n)
	}
	if _, err := s.GetJob(ctx, "old"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("old job should be gone, got %v", err)
	}
	if _, err := s.GetJob(ctx, "recent"); err != nil {
		t.Errorf("recent job should stay: %v", err)
	}
	ids, _ := s.AppliedJobIDs(ctx, "u1")
	if len(ids) != 0 {
		t.Errorf("applications of purged job should be gone, got %v", ids)
	}

	if err := s.SoftDelete(ctx, "nope", "u1", t0); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)
	seedJob(t, s, "a", func(j *domain.Job) {
		j.UserID = ptr("u1")
		j.IsRemote = ptr(true)
		j.MinAmount, j.MaxAmount = ptr(80000.0), ptr(100000.0)
	})
	seedJob(t, s, "b", func(j *domain.Job) {
		j.UserID = ptr("u1")
		j.Company = "Initech"
		j.MinAmount, j.MaxAmount = ptr(100000.0), ptr(121001.0)
	})
	seedJob(t, s, "c", func(j *domain.Job) { j.MinAmount = ptr(1.0) })
	seedJob(t, s, "d", func(j *domain.Job) { j.Status = domain.JobInactive; j.UserID = ptr("u1") })
	if _, err := s.MarkApplied(ctx, domain.Application{JobID: "a", UserID: "u1", AppliedAt: t0}); err != nil {
		t.Fatal(err)
	}

	g, err := s.GlobalStats(ctx)
	if err != nil {
		t.Fatalf("global: %v", err)
	}
	want := domain.Stats{TotalJobs: 3, RemoteJobs: 1, AvgSalary: 100250, UniqueCompanies: 2, TotalJobsAvailable: 3}
	if diff := cmp.Diff(want, g); diff != "" {
		t.Errorf("global stats mismatch (-want +got):\n%s", diff)
	}

	u, err := s.UserStats(ctx, "u1")
	if err != nil {
		t.Fatalf("user: %v", err)
	}
	if diff := cmp.Diff(domain.Stats{AppliedJobs: 1, SearchesPerformed: 3, TotalJobsAvailable: 3}, u); diff != "" {
		t.Errorf("user stats mismatch (-want +got):\n%s", diff)
	}
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)
	u := domain.User{ID: "u1", Email: "Ada@Example.com ", Name: "Ada", PasswordHash: "hash", CreatedAt: t0}
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := s.CreateUser(ctx, domain.User{ID: "u2", Email: "ada@example.com", PasswordHash: "x", CreatedAt: t0})
	if !errors.Is(err, domain.ErrConflict) {
		t.Errorf("duplicate email should conflict, got %v", err)
	}

	got, err := s.GetUserByEmail(ctx, "ADA@example.com")
	if err != nil {
		t.Fatalf("by email: %v", err)
	}
	want := domain.User{ID: "u1", Email: "ada@example.com", Name: "Ada", PasswordHash: "hash", CreatedAt: t0}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("user mismatch (-want +got):\n%s", diff)
	}
	if _, err := s.GetUser(ctx, "u1"); err != nil {
		t.Errorf("by id: %v", err)
	}
	if _, err := s.GetUser(ctx, "u9"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

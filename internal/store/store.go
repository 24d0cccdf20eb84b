// Package store persists jobs, applications and users.
package store

import (
	"context"
	"time"

	"jobscout-engine/internal/domain"
)

// FilterColumns maps the exact-match filters callers may use to columns.
// Anything outside this set must be rejected before it reaches SQL.
var FilterColumns = map[string]string{
	"location": "location",
	"company":  "company",
	"job_type": "job_type",
	"title":    "title",
	"site":     "site",
}

type JobFilter struct {
	Status  domain.JobStatus
	OwnerID *string
	Equals  map[string]string
	Limit   int // <= 0 means no limit
}

type JobStore interface {
	InsertJob(ctx context.Context, j *domain.Job) error
	GetJob(ctx context.Context, id string) (domain.Job, error)
	ListJobs(ctx context.Context, f JobFilter) ([]domain.Job, error)

	// MarkApplied records one application per (user, job) pair and bumps the
	// job's counter only when the application is new.
	MarkApplied(ctx context.Context, a domain.Application) (created bool, err error)
	AppliedJobIDs(ctx context.Context, userID string) (map[string]struct{}, error)
	ListAppliedJobs(ctx context.Context, userID string) ([]domain.Job, error)

	SoftDelete(ctx context.Context, jobID, deletedBy string, at time.Time) error
	// PurgeInactive hard-deletes jobs soft-deleted before cutoff, with their
	// applications.
	PurgeInactive(ctx context.Context, cutoff time.Time) (int64, error)

	GlobalStats(ctx context.Context) (domain.Stats, error)
	UserStats(ctx context.Context, userID string) (domain.Stats, error)
}

type UserStore interface {
	CreateUser(ctx context.Context, u domain.User) error
	GetUser(ctx context.Context, id string) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
}

type Store interface {
	JobStore
	UserStore
	Close() error
}

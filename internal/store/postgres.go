package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"jobscout-engine/internal/domain"
)

// pgSchema is idempotent; it runs on every start.
const pgSchema = `
CREATE TABLE IF NOT EXISTS users (
    id            TEXT PRIMARY KEY,
    email         TEXT NOT NULL UNIQUE,
    name          TEXT NOT NULL DEFAULT '',
    password_hash TEXT NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS jobs (
    id           TEXT PRIMARY KEY,
    title        TEXT NOT NULL,
    company      TEXT NOT NULL,
    location     TEXT NOT NULL,
    description  TEXT NOT NULL,
    job_url      TEXT NOT NULL DEFAULT '',
    posted_date  TEXT NOT NULL,
    job_type     TEXT NOT NULL,
    site         TEXT NOT NULL DEFAULT '',
    salary       TEXT,
    min_amount   DOUBLE PRECISION,
    max_amount   DOUBLE PRECISION,
    is_remote    BOOLEAN,
    extra        JSONB NOT NULL DEFAULT '{}',
    status       TEXT NOT NULL DEFAULT 'active',
    user_id      TEXT,
    created_at   TIMESTAMPTZ NOT NULL,
    applications INTEGER NOT NULL DEFAULT 0,
    deleted_by   TEXT,
    deleted_at   TIMESTAMPTZ,
    seq          BIGSERIAL
);
CREATE INDEX IF NOT EXISTS idx_jobs_status_user ON jobs(status, user_id);
CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at);
CREATE TABLE IF NOT EXISTS applications (
    user_id    TEXT NOT NULL,
    job_id     TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL,
    status     TEXT NOT NULL DEFAULT 'applied',
    PRIMARY KEY (user_id, job_id)
);
CREATE INDEX IF NOT EXISTS idx_applications_job ON applications(job_id);
`

const uniqueViolation = "23505"

type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to databaseURL and ensures the schema exists.
func OpenPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func (p *Postgres) InsertJob(ctx context.Context, j *domain.Job) error {
	extra, err := encodeExtra(j.Extra)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	if j.Status == "" {
		j.Status = domain.JobActive
	}
	_, err = p.pool.Exec(ctx, `
INSERT INTO jobs (`+jobColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14::jsonb,$15,$16,$17,$18,$19,$20)`,
		j.ID, j.Title, j.Company, j.Location, j.Description, j.JobURL, j.PostedDate, j.JobType, j.Site,
		j.Salary, j.MinAmount, j.MaxAmount, j.IsRemote, extra, string(j.Status), j.UserID,
		j.CreatedAt.UTC(), j.Applications, j.DeletedBy, j.DeletedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: insert job: %v", domain.ErrPersistence, err)
	}
	return nil
}

func (p *Postgres) GetJob(ctx context.Context, id string) (domain.Job, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	j, err := scanPgJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Job{}, fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Job{}, fmt.Errorf("%w: get job: %v", domain.ErrPersistence, err)
	}
	return j, nil
}

func (p *Postgres) ListJobs(ctx context.Context, f JobFilter) ([]domain.Job, error) {
	where, args, err := buildWhere(f, func(n int) string { return fmt.Sprintf("$%d", n) })
	if err != nil {
		return nil, err
	}
	q := `SELECT ` + jobColumns + ` FROM jobs` + where + ` ORDER BY created_at DESC, seq ASC`
	if f.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", f.Limit)
	}
	rows, err := p.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list jobs: %v", domain.ErrPersistence, err)
	}
	defer rows.Close()

	var out []domain.Job
	for rows.Next() {
		j, err := scanPgJob(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan job: %v", domain.ErrPersistence, err)
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list jobs: %v", domain.ErrPersistence, err)
	}
	return out, nil
}

func (p *Postgres) MarkApplied(ctx context.Context, a domain.Application) (bool, error) {
	created := false
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		var one int
		if err := tx.QueryRow(ctx, `SELECT 1 FROM jobs WHERE id = $1`, a.JobID).Scan(&one); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("job %s: %w", a.JobID, domain.ErrNotFound)
			}
			return err
		}
		tag, err := tx.Exec(ctx, `
INSERT INTO applications (user_id, job_id, applied_at, status)
VALUES ($1,$2,$3,$4)
ON CONFLICT (user_id, job_id) DO NOTHING`,
			a.UserID, a.JobID, a.AppliedAt.UTC(), statusOrApplied(a.Status))
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		if _, err := tx.Exec(ctx, `UPDATE jobs SET applications = applications + 1 WHERE id = $1`, a.JobID); err != nil {
			return err
		}
		created = true
		return nil
	})
	if errors.Is(err, domain.ErrNotFound) {
		return false, err
	}
	if err != nil {
		return false, fmt.Errorf("%w: mark applied: %v", domain.ErrPersistence, err)
	}
	return created, nil
}

func (p *Postgres) AppliedJobIDs(ctx context.Context, userID string) (map[string]struct{}, error) {
	rows, err := p.pool.Query(ctx, `SELECT job_id FROM applications WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: applied ids: %v", domain.ErrPersistence, err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("%w: applied ids: %v", domain.ErrPersistence, err)
	}
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

func (p *Postgres) ListAppliedJobs(ctx context.Context, userID string) ([]domain.Job, error) {
	rows, err := p.pool.Query(ctx, `
SELECT `+prefixed("j.", jobColumns)+`, a.applied_at, a.status
FROM applications a JOIN jobs j ON j.id = a.job_id
WHERE a.user_id = $1
ORDER BY a.applied_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: applied jobs: %v", domain.ErrPersistence, err)
	}
	defer rows.Close()

	var out []domain.Job
	for rows.Next() {
		var (
			at     time.Time
			status string
		)
		j, err := scanPgJob(rows, &at, &status)
		if err != nil {
			return nil, fmt.Errorf("%w: scan applied job: %v", domain.ErrPersistence, err)
		}
		at = at.UTC()
		j.AppliedAt = &at
		j.ApplicationStatus = status
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: applied jobs: %v", domain.ErrPersistence, err)
	}
	return out, nil
}

func (p *Postgres) SoftDelete(ctx context.Context, jobID, deletedBy string, at time.Time) error {
	tag, err := p.pool.Exec(ctx, `
UPDATE jobs SET status = $1, deleted_by = $2, deleted_at = $3 WHERE id = $4`,
		string(domain.JobInactive), deletedBy, at.UTC(), jobID)
	if err != nil {
		return fmt.Errorf("%w: soft delete: %v", domain.ErrPersistence, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s: %w", jobID, domain.ErrNotFound)
	}
	return nil
}

func (p *Postgres) PurgeInactive(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
DELETE FROM applications WHERE job_id IN (
  SELECT id FROM jobs WHERE status = 'inactive' AND deleted_at < $1
)`, cutoff.UTC()); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM jobs WHERE status = 'inactive' AND deleted_at < $1`, cutoff.UTC())
		if err != nil {
			return err
		}
		n = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: purge inactive: %v", domain.ErrPersistence, err)
	}
	return n, nil
}

func (p *Postgres) GlobalStats(ctx context.Context) (domain.Stats, error) {
	var (
		st  domain.Stats
		avg *float64
	)
	err := p.pool.QueryRow(ctx, `
SELECT
  COUNT(*),
  COUNT(*) FILTER (WHERE is_remote),
  AVG((min_amount + max_amount) / 2.0) FILTER (WHERE min_amount IS NOT NULL AND max_amount IS NOT NULL),
  COUNT(DISTINCT company)
FROM jobs WHERE status = 'active'`).Scan(&st.TotalJobs, &st.RemoteJobs, &avg, &st.UniqueCompanies)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("%w: global stats: %v", domain.ErrPersistence, err)
	}
	if avg != nil {
		st.AvgSalary = int(*avg)
	}
	st.TotalJobsAvailable = st.TotalJobs
	return st, nil
}

func (p *Postgres) UserStats(ctx context.Context, userID string) (domain.Stats, error) {
	var st domain.Stats
	err := p.pool.QueryRow(ctx, `
SELECT
  (SELECT COUNT(*) FROM applications WHERE user_id = $1),
  (SELECT COUNT(*) FROM jobs WHERE user_id = $1),
  (SELECT COUNT(*) FROM jobs WHERE status = 'active')`, userID).
		Scan(&st.AppliedJobs, &st.SearchesPerformed, &st.TotalJobsAvailable)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("%w: user stats: %v", domain.ErrPersistence, err)
	}
	return st, nil
}

func (p *Postgres) CreateUser(ctx context.Context, u domain.User) error {
	_, err := p.pool.Exec(ctx, `
INSERT INTO users (id, email, name, password_hash, created_at) VALUES ($1,$2,$3,$4,$5)`,
		u.ID, normalizeEmail(u.Email), u.Name, u.PasswordHash, u.CreatedAt.UTC())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.Conflict("User already exists")
	}
	if err != nil {
		return fmt.Errorf("%w: create user: %v", domain.ErrPersistence, err)
	}
	return nil
}

func (p *Postgres) GetUser(ctx context.Context, id string) (domain.User, error) {
	return p.getUser(ctx, `id = $1`, id)
}

func (p *Postgres) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return p.getUser(ctx, `email = $1`, normalizeEmail(email))
}

func (p *Postgres) getUser(ctx context.Context, cond string, arg any) (domain.User, error) {
	var u domain.User
	err := p.pool.QueryRow(ctx,
		`SELECT id, email, name, password_hash, created_at FROM users WHERE `+cond, arg).
		Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, fmt.Errorf("user: %w", domain.ErrNotFound)
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: get user: %v", domain.ErrPersistence, err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}

func scanPgJob(row pgx.Row, trailing ...any) (domain.Job, error) {
	var (
		j      domain.Job
		extra  []byte
		status string
	)
	dest := []any{
		&j.ID, &j.Title, &j.Company, &j.Location, &j.Description, &j.JobURL, &j.PostedDate, &j.JobType, &j.Site,
		&j.Salary, &j.MinAmount, &j.MaxAmount, &j.IsRemote, &extra, &status, &j.UserID, &j.CreatedAt, &j.Applications,
		&j.DeletedBy, &j.DeletedAt,
	}
	if err := row.Scan(append(dest, trailing...)...); err != nil {
		return domain.Job{}, err
	}
	j.Status = domain.JobStatus(status)
	j.CreatedAt = j.CreatedAt.UTC()
	if j.DeletedAt != nil {
		t := j.DeletedAt.UTC()
		j.DeletedAt = &t
	}
	j.Extra = decodeExtra(string(extra))
	return j, nil
}

func prefixed(prefix, cols string) string {
	parts := strings.Split(cols, ",")
	for i := range parts {
		parts[i] = prefix + strings.TrimSpace(parts[i])
	}
	return strings.Join(parts, ", ")
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"jobscout-engine/internal/domain"
	"jobscout-engine/migrations"
)

// fixed width so that text ordering matches time ordering
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const jobColumns = `id, title, company, location, description, job_url, posted_date, job_type, site,
salary, min_amount, max_amount, is_remote, extra, status, user_id, created_at, applications,
deleted_by, deleted_at`

type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and migrates it.
// ":memory:" gives a private in-memory database.
func OpenSQLite(path string) (*SQLite, error) {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	}
	pool, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer; also keeps a :memory: database on a single connection
	pool.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := pool.PingContext(ctx); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := migrations.Run(pool); err != nil {
		_ = pool.Close()
		return nil, err
	}
	return &SQLite{db: pool}, nil
}

func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLite) InsertJob(ctx context.Context, j *domain.Job) error {
	extra, err := encodeExtra(j.Extra)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	if j.Status == "" {
		j.Status = domain.JobActive
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO jobs (`+jobColumns+`)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?);`,
		j.ID, j.Title, j.Company, j.Location, j.Description, j.JobURL, j.PostedDate, j.JobType, j.Site,
		orNull(j.Salary), orNull(j.MinAmount), orNull(j.MaxAmount), boolToInt(j.IsRemote), extra, string(j.Status),
		orNull(j.UserID), fmtTime(j.CreatedAt), j.Applications, orNull(j.DeletedBy), timeOrNull(j.DeletedAt),
	)
	if err != nil {
		return fmt.Errorf("%w: insert job: %v", domain.ErrPersistence, err)
	}
	return nil
}

func (s *SQLite) GetJob(ctx context.Context, id string) (domain.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?;`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Job{}, fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Job{}, fmt.Errorf("%w: get job: %v", domain.ErrPersistence, err)
	}
	return j, nil
}

func (s *SQLite) ListJobs(ctx context.Context, f JobFilter) ([]domain.Job, error) {
	where, args, err := buildWhere(f, func(int) string { return "?" })
	if err != nil {
		return nil, err
	}
	q := `SELECT ` + jobColumns + ` FROM jobs` + where + ` ORDER BY created_at DESC, rowid ASC`
	if f.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q+";", args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list jobs: %v", domain.ErrPersistence, err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

func (s *SQLite) MarkApplied(ctx context.Context, a domain.Application) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("%w: begin: %v", domain.ErrPersistence, err)
	}
	defer func() { _ = tx.Rollback() }()

	var one int
	if err := tx.QueryRowContext(ctx, `SELECT 1 FROM jobs WHERE id = ?;`, a.JobID).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, fmt.Errorf("job %s: %w", a.JobID, domain.ErrNotFound)
		}
		return false, fmt.Errorf("%w: lookup job: %v", domain.ErrPersistence, err)
	}

	res, err := tx.ExecContext(ctx, `
INSERT INTO applications (user_id, job_id, applied_at, status)
VALUES (?,?,?,?)
ON CONFLICT (user_id, job_id) DO NOTHING;`,
		a.UserID, a.JobID, fmtTime(a.AppliedAt), statusOrApplied(a.Status))
	if err != nil {
		return false, fmt.Errorf("%w: insert application: %v", domain.ErrPersistence, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, tx.Commit()
	}
	if _, err := tx.ExecContext(ctx, `UPDATE jobs SET applications = applications + 1 WHERE id = ?;`, a.JobID); err != nil {
		return false, fmt.Errorf("%w: bump applications: %v", domain.ErrPersistence, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("%w: commit: %v", domain.ErrPersistence, err)
	}
	return true, nil
}

func (s *SQLite) AppliedJobIDs(ctx context.Context, userID string) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT job_id FROM applications WHERE user_id = ?;`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: applied ids: %v", domain.ErrPersistence, err)
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: scan applied id: %v", domain.ErrPersistence, err)
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}

func (s *SQLite) ListAppliedJobs(ctx context.Context, userID string) ([]domain.Job, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT a.job_id, a.applied_at, a.status FROM applications a
WHERE a.user_id = ?
ORDER BY a.applied_at DESC;`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: applied jobs: %v", domain.ErrPersistence, err)
	}
	type app struct {
		jobID, at, status string
	}
	var apps []app
	for rows.Next() {
		var a app
		if err := rows.Scan(&a.jobID, &a.at, &a.status); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%w: scan application: %v", domain.ErrPersistence, err)
		}
		apps = append(apps, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: applied jobs: %v", domain.ErrPersistence, err)
	}

	// applications of purged jobs are skipped
	out := make([]domain.Job, 0, len(apps))
	for _, a := range apps {
		j, err := s.GetJob(ctx, a.jobID)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		at := parseTime(a.at)
		j.AppliedAt = &at
		j.ApplicationStatus = a.status
		out = append(out, j)
	}
	return out, nil
}

func (s *SQLite) SoftDelete(ctx context.Context, jobID, deletedBy string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE jobs SET status = ?, deleted_by = ?, deleted_at = ?
WHERE id = ?;`, string(domain.JobInactive), deletedBy, fmtTime(at), jobID)
	if err != nil {
		return fmt.Errorf("%w: soft delete: %v", domain.ErrPersistence, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("job %s: %w", jobID, domain.ErrNotFound)
	}
	return nil
}

func (s *SQLite) PurgeInactive(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: begin: %v", domain.ErrPersistence, err)
	}
	defer func() { _ = tx.Rollback() }()

	c := fmtTime(cutoff)
	if _, err := tx.ExecContext(ctx, `
DELETE FROM applications WHERE job_id IN (
  SELECT id FROM jobs WHERE status = 'inactive' AND deleted_at IS NOT NULL AND deleted_at < ?
);`, c); err != nil {
		return 0, fmt.Errorf("%w: purge applications: %v", domain.ErrPersistence, err)
	}
	res, err := tx.ExecContext(ctx, `
DELETE FROM jobs WHERE status = 'inactive' AND deleted_at IS NOT NULL AND deleted_at < ?;`, c)
	if err != nil {
		return 0, fmt.Errorf("%w: purge jobs: %v", domain.ErrPersistence, err)
	}
	n, _ := res.RowsAffected()
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit: %v", domain.ErrPersistence, err)
	}
	return n, nil
}

func (s *SQLite) GlobalStats(ctx context.Context) (domain.Stats, error) {
	var (
		st  domain.Stats
		avg sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, `
SELECT
  COUNT(*),
  COALESCE(SUM(CASE WHEN is_remote = 1 THEN 1 ELSE 0 END), 0),
  AVG(CASE WHEN min_amount IS NOT NULL AND max_amount IS NOT NULL THEN (min_amount + max_amount) / 2.0 END),
  COUNT(DISTINCT company)
FROM jobs WHERE status = 'active';`).Scan(&st.TotalJobs, &st.RemoteJobs, &avg, &st.UniqueCompanies)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("%w: global stats: %v", domain.ErrPersistence, err)
	}
	if avg.Valid {
		st.AvgSalary = int(avg.Float64)
	}
	st.TotalJobsAvailable = st.TotalJobs
	return st, nil
}

func (s *SQLite) UserStats(ctx context.Context, userID string) (domain.Stats, error) {
	var st domain.Stats
	err := s.db.QueryRowContext(ctx, `
SELECT
  (SELECT COUNT(*) FROM applications WHERE user_id = ?),
  (SELECT COUNT(*) FROM jobs WHERE user_id = ?),
  (SELECT COUNT(*) FROM jobs WHERE status = 'active');`, userID, userID).
		Scan(&st.AppliedJobs, &st.SearchesPerformed, &st.TotalJobsAvailable)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("%w: user stats: %v", domain.ErrPersistence, err)
	}
	return st, nil
}

func (s *SQLite) CreateUser(ctx context.Context, u domain.User) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO users (id, email, name, password_hash, created_at) VALUES (?,?,?,?,?);`,
		u.ID, normalizeEmail(u.Email), u.Name, u.PasswordHash, fmtTime(u.CreatedAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return domain.Conflict("User already exists")
		}
		return fmt.Errorf("%w: create user: %v", domain.ErrPersistence, err)
	}
	return nil
}

func (s *SQLite) GetUser(ctx context.Context, id string) (domain.User, error) {
	return s.getUser(ctx, `id = ?`, id)
}

func (s *SQLite) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return s.getUser(ctx, `email = ?`, normalizeEmail(email))
}

func (s *SQLite) getUser(ctx context.Context, cond string, arg any) (domain.User, error) {
	var (
		u       domain.User
		created string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, name, password_hash, created_at FROM users WHERE `+cond+`;`, arg).
		Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, fmt.Errorf("user: %w", domain.ErrNotFound)
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: get user: %v", domain.ErrPersistence, err)
	}
	u.CreatedAt = parseTime(created)
	return u, nil
}

// buildWhere renders the shared WHERE clause. ph renders the n-th (1-based)
// placeholder so the same code serves both SQL dialects.
func buildWhere(f JobFilter, ph func(n int) string) (string, []any, error) {
	var (
		conds []string
		args  []any
	)
	add := func(col string, v any) {
		args = append(args, v)
		conds = append(conds, col+" = "+ph(len(args)))
	}
	if f.Status != "" {
		add("status", string(f.Status))
	}
	if f.OwnerID != nil {
		add("user_id", *f.OwnerID)
	}

	keys := make([]string, 0, len(f.Equals))
	for k := range f.Equals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		col, ok := FilterColumns[k]
		if !ok {
			return "", nil, domain.Invalid(fmt.Sprintf("unsupported filter %q", k))
		}
		add(col, f.Equals[k])
	}
	if len(conds) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(sc scanner) (domain.Job, error) {
	var (
		j                   domain.Job
		salary, userID      sql.NullString
		deletedBy, deleted  sql.NullString
		minAmt, maxAmt      sql.NullFloat64
		remote              sql.NullInt64
		extra, status, crtd string
	)
	if err := sc.Scan(
		&j.ID, &j.Title, &j.Company, &j.Location, &j.Description, &j.JobURL, &j.PostedDate, &j.JobType, &j.Site,
		&salary, &minAmt, &maxAmt, &remote, &extra, &status, &userID, &crtd, &j.Applications,
		&deletedBy, &deleted,
	); err != nil {
		return domain.Job{}, err
	}
	j.Salary = nullString(salary)
	j.UserID = nullString(userID)
	j.DeletedBy = nullString(deletedBy)
	if deleted.Valid {
		t := parseTime(deleted.String)
		j.DeletedAt = &t
	}
	if minAmt.Valid {
		j.MinAmount = &minAmt.Float64
	}
	if maxAmt.Valid {
		j.MaxAmount = &maxAmt.Float64
	}
	if remote.Valid {
		b := remote.Int64 != 0
		j.IsRemote = &b
	}
	j.Status = domain.JobStatus(status)
	j.CreatedAt = parseTime(crtd)
	j.Extra = decodeExtra(extra)
	return j, nil
}

func collectJobs(rows *sql.Rows) ([]domain.Job, error) {
	var out []domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
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

func encodeExtra(m map[string]any) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode extra: %w", err)
	}
	return string(b), nil
}

func decodeExtra(s string) map[string]any {
	if s == "" || s == "{}" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil || len(m) == 0 {
		return nil
	}
	return m
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func timeOrNull(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

// orNull unwraps optional columns; drivers get a plain value or nil.
func orNull[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func boolToInt(b *bool) any {
	if b == nil {
		return nil
	}
	if *b {
		return int64(1)
	}
	return int64(0)
}

func statusOrApplied(s string) string {
	if s == "" {
		return domain.ApplicationApplied
	}
	return s
}

func normalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

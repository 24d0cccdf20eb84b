package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"jobscout-engine/internal/domain"
	"jobscout-engine/internal/jobcsv"
)

const lockRetry = 25 * time.Millisecond

// CSVExport is the file artifact holding the last saved scrape batch. Writers
// replace it atomically; a sidecar lock file serializes readers and writers
// across processes.
type CSVExport struct {
	path string
	lock *flock.Flock
}

func NewCSVExport(path string) *CSVExport {
	return &CSVExport{path: path, lock: flock.New(path + ".lock")}
}

func (c *CSVExport) Path() string { return c.path }

// Export replaces the file with jobs.
func (c *CSVExport) Export(ctx context.Context, jobs []domain.Job) error {
	var buf bytes.Buffer
	if err := jobcsv.WriteJobs(&buf, jobs); err != nil {
		return fmt.Errorf("encode csv: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("mkdir export dir: %w", err)
	}
	return c.withLock(ctx, false, func() error {
		tmp, err := os.CreateTemp(filepath.Dir(c.path), filepath.Base(c.path)+".*.tmp")
		if err != nil {
			return err
		}
		defer func() { _ = os.Remove(tmp.Name()) }()
		if _, err := tmp.Write(buf.Bytes()); err != nil {
			_ = tmp.Close()
			return err
		}
		if err := tmp.Close(); err != nil {
			return err
		}
		return os.Rename(tmp.Name(), c.path)
	})
}

// Read returns the raw file and its modification time. A missing file is
// ErrNotFound.
func (c *CSVExport) Read(ctx context.Context) ([]byte, time.Time, error) {
	var (
		b   []byte
		mod time.Time
	)
	err := c.withLock(ctx, true, func() error {
		st, err := os.Stat(c.path)
		if err != nil {
			return err
		}
		mod = st.ModTime()
		b, err = os.ReadFile(c.path)
		return err
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, time.Time{}, fmt.Errorf("csv export: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("%w: read csv export: %v", domain.ErrPersistence, err)
	}
	return b, mod, nil
}

// Rows parses the exported file back into raw rows.
func (c *CSVExport) Rows(ctx context.Context) ([]domain.RawRow, error) {
	b, _, err := c.Read(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := jobcsv.ReadRows(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("%w: parse csv export: %v", domain.ErrPersistence, err)
	}
	return rows, nil
}

// Remove deletes the file. Removing a missing file is not an error.
func (c *CSVExport) Remove(ctx context.Context) error {
	err := c.withLock(ctx, false, func() error {
		return os.Remove(c.path)
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: remove csv export: %v", domain.ErrPersistence, err)
	}
	return nil
}

func (c *CSVExport) withLock(ctx context.Context, shared bool, fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return err
	}
	var (
		ok  bool
		err error
	)
	if shared {
		ok, err = c.lock.TryRLockContext(ctx, lockRetry)
	} else {
		ok, err = c.lock.TryLockContext(ctx, lockRetry)
	}
	if err != nil {
		return fmt.Errorf("lock %s: %w", c.lock.Path(), err)
	}
	if !ok {
		return fmt.Errorf("lock %s: not acquired", c.lock.Path())
	}
	defer func() { _ = c.lock.Unlock() }()
	return fn()
}

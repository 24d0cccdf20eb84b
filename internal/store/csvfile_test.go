package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobscout-engine/internal/domain"
)

func TestCSVExportLifecycle(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "export", "jobs.csv")
	c := NewCSVExport(path)

	_, _, err := c.Read(ctx)
	require.ErrorIs(t, err, domain.ErrNotFound)

	jobs := []domain.Job{
		{ID: "1", Draft: domain.Draft{Title: `Senior "Go" Dev`, Company: "Acme", MinAmount: ptr(90000.0), IsRemote: ptr(true)}, CreatedAt: t0},
		{ID: "2", Draft: domain.Draft{Title: "SRE", Company: `C:\corp`, Description: "line1\nline2"}, CreatedAt: t0},
	}
	require.NoError(t, c.Export(ctx, jobs))

	rows, err := c.Rows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, `Senior "Go" Dev`, rows[0]["title"])
	assert.Equal(t, 90000.0, rows[0]["min_amount"])
	assert.Equal(t, true, rows[0]["is_remote"])
	assert.Equal(t, `C:\corp`, rows[1]["company"])
	assert.Equal(t, "line1\nline2", rows[1]["description"])
	assert.Nil(t, rows[1]["min_amount"])

	// a second export replaces the first batch
	require.NoError(t, c.Export(ctx, jobs[:1]))
	rows, err = c.Rows(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	leftovers, _ := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	assert.Empty(t, leftovers)

	require.NoError(t, c.Remove(ctx))
	_, err = os.Stat(path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
	require.NoError(t, c.Remove(ctx), "removing twice is fine")
}

func TestCSVExportCancelledWhileLocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.csv")
	holder := NewCSVExport(path)
	ok, err := holder.lock.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	defer func() { _ = holder.lock.Unlock() }()

	other := NewCSVExport(path)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = other.Export(ctx, nil)
	require.Error(t, err)
}

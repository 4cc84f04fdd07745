package archive

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSource(t *testing.T, body string, mtime time.Time) string {
	t.Helper()
	src := filepath.Join(t.TempDir(), "inspection_20260301_090000.mp4")
	require.NoError(t, os.WriteFile(src, []byte(body), 0o644))
	require.NoError(t, os.Chtimes(src, mtime, mtime))
	return src
}

func TestArchive_copiesAndPreservesModTime(t *testing.T) {
	mtime := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	src := writeSource(t, "video-bytes", mtime)
	dir := filepath.Join(t.TempDir(), "usb", "Videos")

	a := New(dir, "", nil)
	dst, err := a.Archive(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "inspection_20260301_090000.mp4"), dst)
	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "video-bytes", string(got))

	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(mtime), "mtime = %v, want %v", info.ModTime(), mtime)

	_, err = os.Stat(dst + ".partial")
	assert.True(t, os.IsNotExist(err))
}

func TestArchive_writesProbe(t *testing.T) {
	src := writeSource(t, "x", time.Now())
	dir := t.TempDir()

	a := New(dir, "probe.txt", nil)
	a.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }
	_, err := a.Archive(context.Background(), src)
	require.NoError(t, err)

	probe, err := os.ReadFile(filepath.Join(dir, "probe.txt"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(probe), "Write test successful at 2026-03-01T09:00:00Z"))
}

func TestArchive_notWritable(t *testing.T) {
	src := writeSource(t, "x", time.Now())

	// A regular file where the directory should be makes MkdirAll fail.
	blocker := filepath.Join(t.TempDir(), "usb")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	a := New(filepath.Join(blocker, "Videos"), "", nil)
	_, err := a.Archive(context.Background(), src)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotWritable), "err = %v", err)
}

func TestArchive_missingSource(t *testing.T) {
	a := New(t.TempDir(), "", nil)
	_, err := a.Archive(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotWritable))
}

func TestArchive_cancelled(t *testing.T) {
	src := writeSource(t, "video-bytes", time.Now())
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(dir, "", nil).Archive(ctx, src)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	_, statErr := os.Stat(filepath.Join(dir, filepath.Base(src)))
	assert.True(t, os.IsNotExist(statErr))
}

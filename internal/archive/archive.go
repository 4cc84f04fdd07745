// Package archive copies finished session files to secondary storage.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// ErrNotWritable is returned when the destination fails the write probe.
var ErrNotWritable = errors.New("archive: destination not writable")

// DefaultProbeFile is written to the destination before every copy.
const DefaultProbeFile = "test_write.txt"

// Archiver copies files into Dir. It verifies the destination on every call
// since removable media may come and go.
type Archiver struct {
	dir    string
	probe  string
	logger *zap.Logger
	now    func() time.Time
}

// New returns an Archiver writing into dir.
func New(dir, probeFile string, logger *zap.Logger) *Archiver {
	if probeFile == "" {
		probeFile = DefaultProbeFile
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archiver{dir: dir, probe: probeFile, logger: logger, now: time.Now}
}

// Dir returns the destination directory.
func (a *Archiver) Dir() string { return a.dir }

// Archive copies src into the destination directory under its base name and
// returns the destination path. The copy keeps the source modification time.
func (a *Archiver) Archive(ctx context.Context, src string) (string, error) {
	if err := a.Probe(); err != nil {
		return "", err
	}

	info, err := os.Stat(src)
	if err != nil {
		return "", fmt.Errorf("archive: source: %w", err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("archive: source %s is not a regular file", src)
	}

	dst := filepath.Join(a.dir, filepath.Base(src))
	if err := copyFile(ctx, src, dst, info); err != nil {
		return "", err
	}

	a.logger.Info("session archived",
		zap.String("source", src),
		zap.String("destination", dst),
		zap.Int64("bytes", info.Size()),
	)
	return dst, nil
}

// Probe creates the destination directory and writes the probe file.
func (a *Archiver) Probe() error {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrNotWritable, a.dir, err)
	}
	path := filepath.Join(a.dir, a.probe)
	line := fmt.Sprintf("Write test successful at %s\n", a.now().Format(time.RFC3339))
	if err := os.WriteFile(path, []byte(line), 0o644); err != nil {
		return fmt.Errorf("%w: probe %s: %v", ErrNotWritable, path, err)
	}
	a.logger.Debug("archive probe written", zap.String("path", path))
	return nil
}

func copyFile(ctx context.Context, src, dst string, info os.FileInfo) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("archive: open source: %w", err)
	}
	defer in.Close()

	tmp := dst + ".partial"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("archive: create destination: %w", err)
	}
	defer func() {
		if err != nil {
			out.Close()
			os.Remove(tmp)
		}
	}()

	if _, err = io.Copy(out, &ctxReader{ctx: ctx, r: in}); err != nil {
		return fmt.Errorf("archive: copy: %w", err)
	}
	if err = out.Sync(); err != nil {
		return fmt.Errorf("archive: sync: %w", err)
	}
	if err = out.Close(); err != nil {
		return fmt.Errorf("archive: close: %w", err)
	}
	if err = os.Chtimes(tmp, info.ModTime(), info.ModTime()); err != nil {
		return fmt.Errorf("archive: set times: %w", err)
	}
	if err = os.Rename(tmp, dst); err != nil {
		return fmt.Errorf("archive: rename: %w", err)
	}
	return nil
}

// ctxReader stops a copy between reads once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

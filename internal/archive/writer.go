package archive

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zip"
)

// ErrClosed is returned when a committed or aborted writer is used.
var ErrClosed = errors.New("archive writer closed")

// Writer builds a new archive at a destination path.
type Writer struct {
	dest    string
	tmp     *os.File
	zw      *zip.Writer
	modTime time.Time
	closed  bool
}

// Create starts a new archive that will appear at dest on Commit.
func Create(dest string) (*Writer, error) {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*.zip")
	if err != nil {
		return nil, fmt.Errorf("create temp archive in %s: %w", dir, err)
	}
	return &Writer{
		dest:    dest,
		tmp:     tmp,
		zw:      zip.NewWriter(tmp),
		modTime: time.Now(),
	}, nil
}

// Dest returns the final archive path.
func (w *Writer) Dest() string { return w.dest }

// Create adds a member and returns a stream for its content. The stream is
// valid until the next call to Create, Commit or Abort.
func (w *Writer) Create(name string) (io.Writer, error) {
	if w.closed {
		return nil, ErrClosed
	}
	return w.zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: w.modTime,
	})
}

// Commit finishes the archive and moves it to its destination.
func (w *Writer) Commit() error {
	if w.closed {
		return ErrClosed
	}
	w.closed = true
	tmpPath := w.tmp.Name()

	if err := w.zw.Close(); err != nil {
		_ = w.tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("finish archive %s: %w", w.dest, err)
	}
	if err := w.tmp.Sync(); err != nil {
		_ = w.tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("sync archive %s: %w", w.dest, err)
	}
	if err := w.tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close archive %s: %w", w.dest, err)
	}
	if err := os.Rename(tmpPath, w.dest); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("move archive into place %s: %w", w.dest, err)
	}
	return nil
}

// Abort discards the partial archive. It is a no-op after Commit.
func (w *Writer) Abort() error {
	if w.closed {
		return nil
	}
	w.closed = true
	_ = w.zw.Close()
	_ = w.tmp.Close()
	return os.Remove(w.tmp.Name())
}

// Package archive reads and writes release packages as ZIP containers.
//
// Reading is forward-only per member: each member is decompressed as a stream
// and never held in memory. Writing goes to a temporary file next to the
// destination and is renamed into place only when the caller commits, so a
// failed run never leaves a partial package behind.
package archive

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/zip"
)

// HiddenMarker prefixes platform metadata entries that are never release files.
const HiddenMarker = "._"

// Member is one file entry of an archive.
type Member struct {
	Name string
	f    *zip.File
}

// Open returns a decompressing stream over the member content.
func (m Member) Open() (io.ReadCloser, error) {
	return m.f.Open()
}

// Size returns the uncompressed size.
func (m Member) Size() int64 {
	return int64(m.f.UncompressedSize64)
}

// Reader is an open archive.
type Reader struct {
	path string
	rc   *zip.ReadCloser
}

// Open opens the archive at p.
func Open(p string) (*Reader, error) {
	rc, err := zip.OpenReader(p)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", p, err)
	}
	return &Reader{path: p, rc: rc}, nil
}

// Path returns the archive location.
func (r *Reader) Path() string { return r.path }

// Name returns the archive base name.
func (r *Reader) Name() string { return path.Base(strings.ReplaceAll(r.path, "\\", "/")) }

// Members returns file entries in archive order, excluding directories and
// hidden metadata entries.
func (r *Reader) Members() []Member {
	members := make([]Member, 0, len(r.rc.File))
	for _, f := range r.rc.File {
		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			continue
		}
		if IsHidden(f.Name) {
			continue
		}
		members = append(members, Member{Name: f.Name, f: f})
	}
	return members
}

// Walk calls fn for every member, stopping at the first error or when ctx is
// cancelled.
func (r *Reader) Walk(ctx context.Context, fn func(Member) error) error {
	for _, m := range r.Members() {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("operation cancelled: %w", err)
		}
		if err := fn(m); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the archive.
func (r *Reader) Close() error {
	return r.rc.Close()
}

// IsHidden reports whether name is a platform metadata entry.
func IsHidden(name string) bool {
	return strings.HasPrefix(path.Base(name), HiddenMarker)
}

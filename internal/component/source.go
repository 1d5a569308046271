// Package component provides the collaborators that describe components
// outside the archives being merged: the last published field values of a
// component, and the entity that owns it.
package component

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/releasemerge/internal/delta"
	"github.com/JonMunkholm/releasemerge/internal/rf2"
)

// Source returns the last published row of a component. A component that has
// never been published is reported with found == false and a nil error.
type Source interface {
	Lookup(ctx context.Context, id string) (row rf2.Row, found bool, err error)
}

// MapSource is an in-memory Source keyed by id.
type MapSource map[string]rf2.Row

// NewMapSource indexes rows by id. Later rows replace earlier ones.
func NewMapSource(rows ...rf2.Row) MapSource {
	m := make(MapSource, len(rows))
	for _, r := range rows {
		m[r.ID()] = r
	}
	return m
}

// Lookup implements Source.
func (m MapSource) Lookup(_ context.Context, id string) (rf2.Row, bool, error) {
	r, ok := m[id]
	return r, ok, nil
}

// ConflictError reports one id carried by two different snapshot files.
type ConflictError struct {
	ID     string
	First  string
	Second string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("component %s appears in both %s and %s", e.ID, e.First, e.Second)
}

// SnapshotSource serves published values from a Snapshot release package.
type SnapshotSource struct {
	rows map[string]rf2.Row
	keys map[string]string // id -> short key it was loaded from
}

// LoadSnapshot indexes every Snapshot member of the archive at path. Ids
// must be unique across the whole package.
func LoadSnapshot(ctx context.Context, path string, codec rf2.FilenameCodec, logger *slog.Logger) (*SnapshotSource, error) {
	ix, _, err := delta.Load(ctx, path, delta.Options{
		Codec:  codec,
		Only:   rf2.ReleaseSnapshot,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("load baseline: %w", err)
	}
	return NewSnapshotSource(ix)
}

// NewSnapshotSource flattens an index into an id lookup.
func NewSnapshotSource(ix *delta.Index) (*SnapshotSource, error) {
	s := &SnapshotSource{
		rows: make(map[string]rf2.Row, ix.Len()),
		keys: make(map[string]string, ix.Len()),
	}
	for _, key := range ix.ShortKeys() {
		f, _ := ix.File(key)
		for _, r := range f.Rows() {
			if prev, dup := s.keys[r.ID()]; dup {
				return nil, &ConflictError{ID: r.ID(), First: prev, Second: key}
			}
			s.rows[r.ID()] = r
			s.keys[r.ID()] = key
		}
	}
	return s, nil
}

// Lookup implements Source.
func (s *SnapshotSource) Lookup(_ context.Context, id string) (rf2.Row, bool, error) {
	r, ok := s.rows[id]
	return r, ok, nil
}

// Len returns the number of components indexed.
func (s *SnapshotSource) Len() int { return len(s.rows) }

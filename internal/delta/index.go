// Package delta loads delta archives into an in-memory index keyed by file
// short key and component id.
//
// An [Index] is built once per archive and is read-only afterwards. The same
// id appearing twice under one short key makes the source ambiguous, so
// loading fails with a [DuplicateRowError] rather than picking a winner.
package delta

import (
	"fmt"

	"github.com/JonMunkholm/releasemerge/internal/rf2"
)

// DuplicateRowError reports a second row for an id already indexed under the
// same short key.
type DuplicateRowError struct {
	ShortKey string
	ID       string
	Archive  string
	Member   string
	Line     int
}

func (e *DuplicateRowError) Error() string {
	return fmt.Sprintf("duplicate row: id %s appears twice for %s (%s: %s line %d)",
		e.ID, e.ShortKey, e.Archive, e.Member, e.Line)
}

// File holds the rows indexed under one short key, in load order.
type File struct {
	ShortKey      string
	ComponentType rf2.ComponentType
	// Header is the header line of the first member loaded for this key.
	Header string
	// Members lists the archive members that contributed rows.
	Members []string

	ids  []string
	rows map[string]rf2.Row
}

func newFile(shortKey string) *File {
	return &File{
		ShortKey:      shortKey,
		ComponentType: rf2.ClassifyPrefix(shortKey).Type,
		rows:          make(map[string]rf2.Row),
	}
}

// Get returns the row for id.
func (f *File) Get(id string) (rf2.Row, bool) {
	r, ok := f.rows[id]
	return r, ok
}

// Has reports whether id is indexed.
func (f *File) Has(id string) bool {
	_, ok := f.rows[id]
	return ok
}

// Len returns the number of indexed rows.
func (f *File) Len() int { return len(f.ids) }

// IDs returns indexed ids in load order.
func (f *File) IDs() []string {
	return append([]string(nil), f.ids...)
}

// Rows returns indexed rows in load order.
func (f *File) Rows() []rf2.Row {
	out := make([]rf2.Row, 0, len(f.ids))
	for _, id := range f.ids {
		out = append(out, f.rows[id])
	}
	return out
}

// Index maps short key to the rows loaded for it.
type Index struct {
	source string
	files  map[string]*File
	order  []string
}

func newIndex(source string) *Index {
	return &Index{source: source, files: make(map[string]*File)}
}

// Empty returns an index with no content.
func Empty(source string) *Index {
	return newIndex(source)
}

// Source names the archive the index was built from.
func (ix *Index) Source() string { return ix.source }

// File returns the rows for a short key.
func (ix *Index) File(shortKey string) (*File, bool) {
	f, ok := ix.files[shortKey]
	return f, ok
}

// Lookup returns the row for id under shortKey.
func (ix *Index) Lookup(shortKey, id string) (rf2.Row, bool) {
	f, ok := ix.files[shortKey]
	if !ok {
		return rf2.Row{}, false
	}
	return f.Get(id)
}

// ShortKeys returns every short key in load order.
func (ix *Index) ShortKeys() []string {
	return append([]string(nil), ix.order...)
}

// Len returns the total number of indexed rows.
func (ix *Index) Len() int {
	n := 0
	for _, f := range ix.files {
		n += f.Len()
	}
	return n
}

// add indexes a row. Only the loader and FromRows call it, so an Index is
// never modified once returned.
func (ix *Index) add(shortKey string, row rf2.Row, member string, line int) error {
	f := ix.fileFor(shortKey)
	if f.Has(row.ID()) {
		return &DuplicateRowError{
			ShortKey: shortKey,
			ID:       row.ID(),
			Archive:  ix.source,
			Member:   member,
			Line:     line,
		}
	}
	f.ids = append(f.ids, row.ID())
	f.rows[row.ID()] = row
	return nil
}

// fileFor returns the file for shortKey, creating it so header and member
// bookkeeping exist even for members without data rows.
func (ix *Index) fileFor(shortKey string) *File {
	f, ok := ix.files[shortKey]
	if !ok {
		f = newFile(shortKey)
		ix.files[shortKey] = f
		ix.order = append(ix.order, shortKey)
	}
	return f
}

// FromRows builds an index from in-memory rows, applying the same duplicate
// check as Load. Keys are added in the order given by shortKeys.
func FromRows(source string, shortKeys []string, rows map[string][]rf2.Row) (*Index, error) {
	ix := newIndex(source)
	for _, key := range shortKeys {
		ix.fileFor(key)
		for i, r := range rows[key] {
			if err := ix.add(key, r, "", i+2); err != nil {
				return nil, err
			}
		}
	}
	return ix, nil
}

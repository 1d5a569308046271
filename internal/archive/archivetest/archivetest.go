// Package archivetest builds small release archives for tests.
package archivetest

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
)

// Entry is one archive member. A Name ending in "/" creates a directory entry.
type Entry struct {
	Name string
	Body string
}

// Write creates dir/name with the given entries in order and returns its path.
func Write(t testing.TB, dir, name string, entries ...Entry) string {
	t.Helper()

	p := filepath.Join(dir, name)
	f, err := os.Create(p)
	if err != nil {
		t.Fatalf("create archive: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, e := range entries {
		w, err := zw.Create(e.Name)
		if err != nil {
			t.Fatalf("create member %s: %v", e.Name, err)
		}
		if _, err := io.WriteString(w, e.Body); err != nil {
			t.Fatalf("write member %s: %v", e.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close archive: %v", err)
	}
	return p
}

// Read returns every file member of the archive at p keyed by name.
func Read(t testing.TB, p string) map[string]string {
	t.Helper()

	rc, err := zip.OpenReader(p)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer rc.Close()

	out := make(map[string]string)
	for _, f := range rc.File {
		if f.FileInfo().IsDir() {
			continue
		}
		r, err := f.Open()
		if err != nil {
			t.Fatalf("open member %s: %v", f.Name, err)
		}
		b, err := io.ReadAll(r)
		r.Close()
		if err != nil {
			t.Fatalf("read member %s: %v", f.Name, err)
		}
		out[f.Name] = string(b)
	}
	return out
}

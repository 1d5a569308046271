package archive

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/JonMunkholm/releasemerge/internal/archive/archivetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMembersSkipsDirectoriesAndHiddenEntries(t *testing.T) {
	dir := t.TempDir()
	p := archivetest.Write(t, dir, "base_20180131.zip",
		archivetest.Entry{Name: "Snapshot/"},
		archivetest.Entry{Name: "Snapshot/sct2_Concept_Snapshot_INT_20180131.txt", Body: "h\n"},
		archivetest.Entry{Name: "__MACOSX/Snapshot/._sct2_Concept_Snapshot_INT_20180131.txt", Body: "junk"},
		archivetest.Entry{Name: "Snapshot/sct2_Description_Snapshot-en_INT_20180131.txt", Body: "h\n"},
	)

	r, err := Open(p)
	require.NoError(t, err)
	defer r.Close()

	var names []string
	for _, m := range r.Members() {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{
		"Snapshot/sct2_Concept_Snapshot_INT_20180131.txt",
		"Snapshot/sct2_Description_Snapshot-en_INT_20180131.txt",
	}, names)
	assert.Equal(t, "base_20180131.zip", r.Name())
}

func TestOpenCorruptArchive(t *testing.T) {
	p := filepath.Join(t.TempDir(), "broken.zip")
	require.NoError(t, os.WriteFile(p, []byte("not a zip"), 0o644))

	_, err := Open(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.zip")
}

func TestWalkStopsOnCancel(t *testing.T) {
	p := archivetest.Write(t, t.TempDir(), "a.zip", archivetest.Entry{Name: "x.txt", Body: "x"})
	r, err := Open(p)
	require.NoError(t, err)
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = r.Walk(ctx, func(Member) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWriterCommit(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out", "pkg_20180731.zip")

	w, err := Create(dest)
	require.NoError(t, err)
	mw, err := w.Create("pkg/sct2_Concept_Snapshot_INT_20180731.txt")
	require.NoError(t, err)
	_, err = io.WriteString(mw, "h\r\n1\t20180731\t1\tM1\r\n")
	require.NoError(t, err)
	require.NoError(t, w.Commit())

	got := archivetest.Read(t, dest)
	assert.Equal(t, "h\r\n1\t20180731\t1\tM1\r\n", got["pkg/sct2_Concept_Snapshot_INT_20180731.txt"])

	entries, err := os.ReadDir(filepath.Dir(dest))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must be renamed, not left behind")

	assert.ErrorIs(t, w.Commit(), ErrClosed)
	assert.NoError(t, w.Abort())
}

func TestWriterAbortLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "pkg.zip")

	w, err := Create(dest)
	require.NoError(t, err)
	_, err = w.Create("member.txt")
	require.NoError(t, err)
	require.NoError(t, w.Abort())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = w.Create("again.txt")
	assert.ErrorIs(t, err, ErrClosed)
}

package component

import (
	"context"
	"errors"
	"testing"

	"github.com/JonMunkholm/releasemerge/internal/archive/archivetest"
	"github.com/JonMunkholm/releasemerge/internal/delta"
	"github.com/JonMunkholm/releasemerge/internal/rf2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCodec = rf2.FilenameCodec{ModuleToken: "INT", SecondaryLocaleMarker: "-fr_"}

func TestMapSource(t *testing.T) {
	src := NewMapSource(
		rf2.NewRow("1", "20170101", "1", "M1", "A"),
		rf2.NewRow("2", "20170101", "1", "M1", "B"),
	)

	row, found, err := src.Lookup(context.Background(), "2")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "B", row.Fields()[4])

	_, found, err = src.Lookup(context.Background(), "3")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestLoadSnapshot(t *testing.T) {
	p := archivetest.Write(t, t.TempDir(), "base_20170731.zip",
		archivetest.Entry{
			Name: "Snapshot/sct2_Concept_Snapshot_INT_20170731.txt",
			Body: "id\teffectiveTime\tactive\tmoduleId\tdefinitionStatusId\r\n100\t20170101\t1\tM1\tx\r\n",
		},
		archivetest.Entry{
			Name: "Snapshot/sct2_Description_Snapshot-en_INT_20170731.txt",
			Body: "id\teffectiveTime\tactive\tmoduleId\r\n300\t20170101\t1\tM1\r\n",
		},
		archivetest.Entry{
			Name: "Delta/sct2_Concept_Delta_INT_20170731.txt",
			Body: "id\teffectiveTime\tactive\tmoduleId\tdefinitionStatusId\r\n999\t20170731\t1\tM1\tx\r\n",
		},
	)

	src, err := LoadSnapshot(context.Background(), p, testCodec, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, src.Len())

	row, found, err := src.Lookup(context.Background(), "100")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "20170101", row.EffectiveTime())

	_, found, err = src.Lookup(context.Background(), "999")
	require.NoError(t, err)
	assert.False(t, found, "delta members are not part of the baseline")
}

func TestNewSnapshotSourceConflict(t *testing.T) {
	ix, err := delta.FromRows("base", []string{"a_", "b_"}, map[string][]rf2.Row{
		"a_": {rf2.NewRow("1", "20170101", "1", "M1")},
		"b_": {rf2.NewRow("1", "20170101", "1", "M1")},
	})
	require.NoError(t, err)

	_, err = NewSnapshotSource(ix)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "1", conflict.ID)
	assert.Equal(t, "a_", conflict.First)
	assert.Equal(t, "b_", conflict.Second)
}

type fakeRow struct {
	value any
	err   error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	switch d := dest[0].(type) {
	case *[]string:
		*d = r.value.([]string)
	case *string:
		*d = r.value.(string)
	}
	return nil
}

type fakeDB struct {
	row     fakeRow
	lastSQL string
	args    []any
}

func (f *fakeDB) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (f *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.lastSQL = sql
	f.args = args
	return f.row
}

func TestPostgresSource(t *testing.T) {
	tests := []struct {
		name      string
		row       fakeRow
		wantFound bool
		wantErr   bool
	}{
		{"found", fakeRow{value: []string{"1", "20170101", "1", "M1", "A"}}, true, false},
		{"not found", fakeRow{err: pgx.ErrNoRows}, false, false},
		{"query error", fakeRow{err: errors.New("connection reset")}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := &fakeDB{row: tt.row}
			row, found, err := NewPostgresSource(db).Lookup(context.Background(), "1")

			assert.Equal(t, []any{"1"}, db.args)
			assert.Contains(t, db.lastSQL, "component_values")
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantFound, found)
			if tt.wantFound {
				assert.Equal(t, "A", row.Fields()[4])
			}
		})
	}
}

func TestPostgresOwners(t *testing.T) {
	owner, err := NewPostgresOwners(&fakeDB{row: fakeRow{value: "Team A"}}).Owner(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "Team A", owner)

	owner, err = NewPostgresOwners(&fakeDB{row: fakeRow{err: pgx.ErrNoRows}}).Owner(context.Background(), "1")
	require.NoError(t, err)
	assert.Empty(t, owner)

	_, err = NewPostgresOwners(&fakeDB{row: fakeRow{err: errors.New("boom")}}).Owner(context.Background(), "1")
	require.Error(t, err)

	owner, err = NoOwners{}.Owner(context.Background(), "1")
	require.NoError(t, err)
	assert.Empty(t, owner)
}

package core

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JonMunkholm/releasemerge/internal/archive/archivetest"
	"github.com/JonMunkholm/releasemerge/internal/audit"
	"github.com/JonMunkholm/releasemerge/internal/component"
	"github.com/JonMunkholm/releasemerge/internal/config"
	"github.com/JonMunkholm/releasemerge/internal/merge"
	"github.com/JonMunkholm/releasemerge/internal/metrics"
	"github.com/JonMunkholm/releasemerge/internal/rf2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const conceptHeader = "id\teffectiveTime\tactive\tmoduleId\tdefinitionStatusId"

func crlf(lines ...string) string {
	return strings.Join(lines, "\r\n") + "\r\n"
}

func testConfig() *config.Config {
	return &config.Config{
		Release: config.ReleaseConfig{
			ModuleToken:           "INT",
			DesignatedLocale:      "-en_",
			SecondaryLocaleMarker: "-fr_",
		},
		Logging: config.LoggingConfig{Level: "info", Format: "text"},
	}
}

func newTestService(t *testing.T, cfg *config.Config, deps Deps) *Service {
	t.Helper()
	s, err := NewService(cfg, deps)
	require.NoError(t, err)
	return s
}

func writeBase(t *testing.T, dir string) string {
	t.Helper()
	return archivetest.Write(t, dir, "Pkg_PRODUCTION_20170731T120000Z.zip",
		archivetest.Entry{
			Name: "Pkg_PRODUCTION_20170731T120000Z/Snapshot/sct2_Concept_Snapshot_INT_20170731.txt",
			Body: crlf(conceptHeader, "100\t20170101\t1\tM1\tx"),
		},
	)
}

func writeDelta(t *testing.T, dir, name, body string) string {
	t.Helper()
	return archivetest.Write(t, dir, name,
		archivetest.Entry{Name: "Delta/sct2_Concept_Delta_INT_20180131.txt", Body: body},
	)
}

func TestNewServiceRequiresConfig(t *testing.T) {
	_, err := NewService(nil, Deps{})
	require.Error(t, err)
}

func TestApplyDelta(t *testing.T) {
	dir := t.TempDir()
	m := metrics.New()
	sink := audit.NewMemorySink()
	s := newTestService(t, testConfig(), Deps{Metrics: m, Sink: sink})

	report, err := s.ApplyDelta(context.Background(), ApplyRequest{
		Base:   writeBase(t, dir),
		Delta:  writeDelta(t, dir, "delta_20180131.zip", crlf(conceptHeader, "100\t20180131\t1\tM1\ty", "200\t20180131\t1\tM1\tz")),
		OutDir: filepath.Join(dir, "out"),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, "20180131", report.EffectiveTime)
	assert.Equal(t, "Pkg_PRODUCTION_20180131T120000Z", report.PackageDir)
	assert.Equal(t, filepath.Join(dir, "out", "Pkg_PRODUCTION_20180131T120000Z.zip"), report.Output)
	assert.Equal(t, 2, report.DeltaStats.Rows)
	assert.Equal(t, 1, report.Result.Replaced)
	assert.Equal(t, 1, report.Result.New)

	members := archivetest.Read(t, report.Output)
	assert.Equal(t, map[string]string{
		"Pkg_PRODUCTION_20180131T120000Z/Snapshot/sct2_Concept_Snapshot_INT_20180131.txt": crlf(conceptHeader, "100\t20180131\t1\tM1\ty", "200\t20180131\t1\tM1\tz"),
	}, members)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues(OpApplyDelta, "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RowsTotal.WithLabelValues("replaced")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RowsLoadedTotal.WithLabelValues("delta")))
}

func TestApplyDeltaExplicitNames(t *testing.T) {
	dir := t.TempDir()
	s := newTestService(t, testConfig(), Deps{})

	report, err := s.ApplyDelta(context.Background(), ApplyRequest{
		Base:          writeBase(t, dir),
		Delta:         writeDelta(t, dir, "delta.zip", crlf(conceptHeader)),
		OutDir:        dir,
		EffectiveTime: "20180731",
		PackageDir:    "Custom",
	})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "Custom.zip"), report.Output)
	members := archivetest.Read(t, report.Output)
	assert.Contains(t, members, "Custom/Snapshot/sct2_Concept_Snapshot_INT_20180731.txt")
}

func TestApplyDeltaFailureLeavesNoOutput(t *testing.T) {
	tests := []struct {
		name      string
		deltaName string
		body      string
		check     func(t *testing.T, err error)
	}{
		{
			name:      "duplicate id in delta",
			deltaName: "delta_20180131.zip",
			body:      crlf(conceptHeader, "100\t20180131\t1\tM1\ty", "100\t20180131\t0\tM1\ty"),
			check: func(t *testing.T, err error) {
				var runErr *RunError
				require.ErrorAs(t, err, &runErr)
				assert.Equal(t, OpApplyDelta, runErr.Op)
				assert.Equal(t, 3, runErr.Line)
				assert.Equal(t, "IDX001", MapError(err).Code)
			},
		},
		{
			name:      "no effective time anywhere",
			deltaName: "delta.zip",
			body:      crlf(conceptHeader),
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, rf2.ErrNoEffectiveTime)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			out := filepath.Join(dir, "out")
			m := metrics.New()
			s := newTestService(t, testConfig(), Deps{Metrics: m})

			_, err := s.ApplyDelta(context.Background(), ApplyRequest{
				Base:   writeBase(t, dir),
				Delta:  writeDelta(t, dir, tt.deltaName, tt.body),
				OutDir: out,
			})
			require.Error(t, err)
			tt.check(t, err)

			entries, _ := os.ReadDir(out)
			assert.Empty(t, entries)
			assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues(OpApplyDelta, "error")))
		})
	}
}

func TestApplyDeltaMalformedBaseRemovesTempFile(t *testing.T) {
	dir := t.TempDir()
	base := archivetest.Write(t, dir, "Pkg_20170731.zip",
		archivetest.Entry{
			Name: "Pkg_20170731/sct2_Concept_Snapshot_INT_20170731.txt",
			Body: crlf(conceptHeader, "broken"),
		},
	)
	out := filepath.Join(dir, "out")
	s := newTestService(t, testConfig(), Deps{})

	_, err := s.ApplyDelta(context.Background(), ApplyRequest{
		Base:   base,
		Delta:  writeDelta(t, dir, "delta_20180131.zip", crlf(conceptHeader)),
		OutDir: out,
	})
	require.ErrorIs(t, err, rf2.ErrMalformedRow)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary archive must be removed")
}

func TestApplyDeltaPrimaryLocaleDelta(t *testing.T) {
	dir := t.TempDir()
	const langHeader = "id\teffectiveTime\tactive\tmoduleId\trefsetId\treferencedComponentId\tacceptabilityId"

	base := archivetest.Write(t, dir, "Pkg_20170731.zip",
		archivetest.Entry{
			Name: "Pkg_20170731/der2_cRefset_LanguageSnapshot-fr-ca_INT_20170731.txt",
			Body: crlf(langHeader, "c1\t20170101\t1\tM1\tR3\t100\tA", "c2\t20170101\t1\tM1\tR3\t200\tA"),
		},
	)
	deltaPath := archivetest.Write(t, dir, "delta_20180131.zip",
		archivetest.Entry{
			Name: "der2_cRefset_LanguageDelta-fr-ca_INT_20180131.txt",
			Body: crlf(langHeader, "c1\t20180131\t0\tM1\tR3\t100\tA", "c2\t20180131\t0\tM1\tR3\t200\tA"),
		},
	)
	primary := archivetest.Write(t, dir, "primary_20180131.zip",
		archivetest.Entry{
			Name: "der2_cRefset_LanguageDelta-fr_INT_20180131.txt",
			Body: crlf(langHeader, "c1\t20180131\t1\tM1\tR2\t100\tP"),
		},
	)

	cfg := testConfig()
	cfg.Release.RegionalShortKey = "der2_cRefset_Language-fr-ca_"
	cfg.Release.PrimaryLocaleShortKey = "der2_cRefset_Language-fr_"
	s := newTestService(t, cfg, Deps{})

	report, err := s.ApplyDelta(context.Background(), ApplyRequest{
		Base:               base,
		Delta:              deltaPath,
		PrimaryLocaleDelta: primary,
		OutDir:             dir,
		PackageDir:         "Out",
	})
	require.NoError(t, err)

	members := archivetest.Read(t, report.Output)
	assert.Equal(t, crlf(langHeader, "c1\t20170101\t1\tM1\tR3\t100\tA"),
		members["Out/der2_cRefset_LanguageSnapshot-fr-ca_INT_20180131.txt"])
	assert.Equal(t, 1, report.Result.Overridden)
	assert.Equal(t, 1, report.Result.Dropped)
}

func TestMergeFix(t *testing.T) {
	dir := t.TempDir()
	fixPath := writeDelta(t, dir, "fix_20180131.zip", crlf(conceptHeader,
		"1\t20180101\t1\tM1\tA",
		"2\t20180201\t1\tM1\tA",
	))
	currentPath := writeDelta(t, dir, "current_20180131.zip", crlf(conceptHeader,
		"2\t\t1\tM1\tB",
	))
	baseline := archivetest.Write(t, dir, "published_20170731.zip",
		archivetest.Entry{
			Name: "Snapshot/sct2_Concept_Snapshot_INT_20170731.txt",
			Body: crlf(conceptHeader, "2\t20170101\t1\tM1\tA"),
		},
	)

	m := metrics.New()
	sink := audit.NewMemorySink()
	s := newTestService(t, testConfig(), Deps{Metrics: m, Sink: sink})

	report, err := s.MergeFix(context.Background(), FixRequest{
		Current:         currentPath,
		Fix:             fixPath,
		Out:             filepath.Join(dir, "out", "merged.zip"),
		PublishedBefore: "20180131",
		Baseline:        baseline,
	})
	require.NoError(t, err)

	members := archivetest.Read(t, report.Output)
	assert.Equal(t, map[string]string{
		"Delta/sct2_Concept_Delta_INT_20180131.txt": crlf(conceptHeader, "1\t20180101\t1\tM1\tA", "2\t\t1\tM1\tB"),
	}, members)
	assert.Equal(t, 1, report.Result.Outcomes[merge.OutcomeEmitFix])
	assert.Equal(t, 1, report.Result.Outcomes[merge.OutcomeMerged])

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FixOutcomesTotal.WithLabelValues(string(merge.OutcomeMerged))))
	assert.Len(t, sink.ByAction(audit.ActionFieldsMerged), 1)
}

func TestMergeFixUsesConfiguredSource(t *testing.T) {
	dir := t.TempDir()
	fixPath := writeDelta(t, dir, "fix.zip", crlf(conceptHeader, "2\t20180201\t1\tM1\tA"))
	currentPath := writeDelta(t, dir, "current.zip", crlf(conceptHeader, "2\t\t1\tM1\tA"))

	cfg := testConfig()
	cfg.Merge.PublishedBefore = "20180131"
	s := newTestService(t, cfg, Deps{
		Source: component.NewMapSource(rf2.NewRow("2", "20170101", "1", "M1", "A")),
	})

	report, err := s.MergeFix(context.Background(), FixRequest{
		Current: currentPath,
		Fix:     fixPath,
		Out:     filepath.Join(dir, "merged.zip"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Result.Outcomes[merge.OutcomeTimestampCollapsed])

	members := archivetest.Read(t, report.Output)
	assert.Equal(t, crlf(conceptHeader, "2\t20180201\t1\tM1\tA"), members["Delta/sct2_Concept_Delta_INT_20180131.txt"])
}

func TestMergeFixFailures(t *testing.T) {
	dir := t.TempDir()
	fixPath := writeDelta(t, dir, "fix.zip", crlf(conceptHeader, "2\t20180201\t1\tM1\tA"))
	currentPath := writeDelta(t, dir, "current.zip", crlf(conceptHeader, "2\t\t1\tM1\tB"))

	tests := []struct {
		name   string
		cutoff string
		want   error
		code   string
	}{
		{"no baseline", "20180131", merge.ErrNoBaseline, "BAS001"},
		{"missing cutoff", "", nil, "BAS003"},
		{"invalid cutoff", "2018", nil, "BAS003"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "merged.zip")
			s := newTestService(t, testConfig(), Deps{})

			_, err := s.MergeFix(context.Background(), FixRequest{
				Current:         currentPath,
				Fix:             fixPath,
				Out:             out,
				PublishedBefore: tt.cutoff,
			})
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
			assert.Equal(t, tt.code, MapError(err).Code)
			assert.NoFileExists(t, out)
		})
	}
}

func TestApplyDeltaCancelled(t *testing.T) {
	dir := t.TempDir()
	s := newTestService(t, testConfig(), Deps{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.ApplyDelta(ctx, ApplyRequest{
		Base:   writeBase(t, dir),
		Delta:  writeDelta(t, dir, "delta_20180131.zip", crlf(conceptHeader)),
		OutDir: filepath.Join(dir, "out"),
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "RUN001", MapError(err).Code)
}

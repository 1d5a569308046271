package delta

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/JonMunkholm/releasemerge/internal/archive"
	"github.com/JonMunkholm/releasemerge/internal/rf2"
)

// Options controls which members are indexed.
type Options struct {
	Codec rf2.FilenameCodec
	// Only restricts indexing to members of one release type; empty admits
	// every type. Delta packages are loaded with Only set to ReleaseDelta.
	Only rf2.ReleaseType
	// Logger receives skip notices; slog.Default() when nil.
	Logger *slog.Logger
}

// Stats summarises a load.
type Stats struct {
	Members   int
	Skipped   int
	Rows      int
	BytesRead int64
	// HeaderMismatches counts members whose header does not start with the
	// registered columns of their component type.
	HeaderMismatches int
}

// progressInterval is how many rows pass between progress log lines.
var progressInterval = 100000

// Load indexes the archive at path.
func Load(ctx context.Context, path string, opts Options) (*Index, Stats, error) {
	r, err := archive.Open(path)
	if err != nil {
		return nil, Stats{}, err
	}
	defer r.Close()

	return LoadArchive(ctx, r, opts)
}

// LoadArchive indexes an open archive. Any malformed row or duplicate id
// aborts the load; no partial index is returned.
func LoadArchive(ctx context.Context, r *archive.Reader, opts Options) (*Index, Stats, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("archive", r.Name())

	ix := newIndex(r.Name())
	var stats Stats

	err := r.Walk(ctx, func(m archive.Member) error {
		name, ok := opts.Codec.Parse(m.Name)
		if !ok {
			logger.Debug("skipping member without release type", "member", m.Name)
			stats.Skipped++
			return nil
		}
		if opts.Only != "" && name.ReleaseType != opts.Only {
			logger.Debug("skipping member of another release type", "member", m.Name, "release_type", name.ReleaseType)
			stats.Skipped++
			return nil
		}
		if name.IsLanguageRefset() && !name.ModuleTokenFound {
			// Language refsets are matched per locale; a guessed modifier
			// could fold one locale's rows into another's file.
			logger.Warn("skipping language refset member without module token",
				"member", m.Name,
				"module_token", opts.Codec.ModuleToken,
			)
			stats.Skipped++
			return nil
		}

		ml, err := ix.loadMember(m, name.ShortKey, logger)
		stats.BytesRead += ml.bytes
		if err != nil {
			return err
		}
		stats.Members++
		stats.Rows += ml.rows
		if ml.headerMismatch {
			stats.HeaderMismatches++
		}
		logger.Debug("indexed member", "member", m.Name, "short_key", name.ShortKey, "rows", ml.rows)
		return nil
	})
	if err != nil {
		return nil, stats, err
	}

	logger.Info("delta index loaded",
		"members", stats.Members,
		"skipped", stats.Skipped,
		"rows", stats.Rows,
		"short_keys", len(ix.order),
	)
	return ix, stats, nil
}

// memberLoad summarises one indexed member.
type memberLoad struct {
	rows           int
	bytes          int64
	headerMismatch bool
}

// loadMember indexes every data row of one member under shortKey.
func (ix *Index) loadMember(m archive.Member, shortKey string, logger *slog.Logger) (memberLoad, error) {
	var ml memberLoad

	rc, err := m.Open()
	if err != nil {
		return ml, fmt.Errorf("open member %s: %w", m.Name, err)
	}
	defer rc.Close()

	counter := rf2.NewCountingReader(rc, m.Size())
	lr := rf2.NewLineReader(counter, true)

	f := ix.fileFor(shortKey)
	f.Members = append(f.Members, m.Name)
	def, known := rf2.Lookup(f.ComponentType)

	for {
		line, err := lr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			ml.bytes = counter.BytesRead
			return ml, &rf2.RowError{Archive: ix.source, Member: m.Name, Line: lr.Number() + 1, Err: err}
		}
		if line.Number == 1 {
			if f.Header == "" {
				f.Header = line.Text
			}
			if known && !def.MatchesHeader(line.Text) {
				ml.headerMismatch = true
				logger.Warn("member header does not match component layout",
					"member", m.Name,
					"component", def.Label,
					"header", line.Text,
					"want", strings.Join(def.Fields, rf2.Separator),
				)
			}
			continue
		}
		if line.Text == "" {
			continue
		}

		row, err := rf2.ParseRow(line.Text)
		if err != nil {
			ml.bytes = counter.BytesRead
			return ml, &rf2.RowError{Archive: ix.source, Member: m.Name, Line: line.Number, Err: err}
		}
		if err := ix.add(shortKey, row, m.Name, line.Number); err != nil {
			ml.bytes = counter.BytesRead
			return ml, err
		}
		ml.rows++
		if ml.rows%progressInterval == 0 {
			logger.Debug("indexing member",
				"member", m.Name,
				"rows", ml.rows,
				"progress_pct", counter.Progress(),
			)
		}
	}
	ml.bytes = counter.BytesRead
	return ml, nil
}

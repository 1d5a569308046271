// Package merge implements the two reconciliation paths of a release cycle:
// folding a delta into an existing release package, and reconciling a fix
// delta with the delta of work done since its baseline.
//
// Both paths stream their inputs member by member and write through an
// [archive.Writer]; the caller decides whether to commit or abort the output.
package merge

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/JonMunkholm/releasemerge/internal/archive"
	"github.com/JonMunkholm/releasemerge/internal/audit"
	"github.com/JonMunkholm/releasemerge/internal/delta"
	"github.com/JonMunkholm/releasemerge/internal/logging"
	"github.com/JonMunkholm/releasemerge/internal/rf2"
)

// ApplyOptions configures an ArchiveMerger.
type ApplyOptions struct {
	Codec rf2.FilenameCodec

	// DesignatedLocale is the language modifier whose language refsets are
	// always merged, e.g. "-en_". Every other locale's language refset
	// content is withheld.
	DesignatedLocale string

	// RegionalShortKey names the regional language refset variant that keeps
	// its own rows for ids changed in the primary locale.
	RegionalShortKey string
	// PrimaryLocaleShortKey is the key looked up in PrimaryLocale.
	PrimaryLocaleShortKey string
	// PrimaryLocale is the primary-locale delta; the merged delta is used
	// when nil.
	PrimaryLocale *delta.Index

	// PackageDir is the top-level directory of the output package.
	PackageDir string
	// EffectiveTime replaces the effective-time token of every member name.
	EffectiveTime string

	Audit *audit.Recorder
}

// ApplyResult summarises a package merge.
type ApplyResult struct {
	Members int
	// Passed counts base lines copied unchanged, headers excluded.
	Passed int
	// Replaced counts snapshot rows superseded by a delta row.
	Replaced int
	// Appended counts delta rows added to Delta and Full files.
	Appended int
	// New counts delta rows added to Snapshot files for unseen ids.
	New int
	// Suppressed counts withheld language refset delta rows, per member.
	Suppressed int
	// Dropped counts base rows removed because their locale's delta was
	// withheld.
	Dropped int
	// Overridden counts regional rows kept because the primary locale
	// changed the same id.
	Overridden int
	// Unmerged lists delta short keys with no matching base member.
	Unmerged []string
}

// ArchiveMerger folds a delta index into a release package.
type ArchiveMerger struct {
	opts ApplyOptions
}

// NewArchiveMerger validates opts.
func NewArchiveMerger(opts ApplyOptions) (*ArchiveMerger, error) {
	if _, ok := rf2.EffectiveTime(opts.EffectiveTime); !ok {
		return nil, fmt.Errorf("target effective time %q: %w", opts.EffectiveTime, rf2.ErrNoEffectiveTime)
	}
	if opts.DesignatedLocale == "" {
		return nil, errors.New("designated locale is required")
	}
	return &ArchiveMerger{opts: opts}, nil
}

// Merge writes every member of base to out, merged with ix.
func (m *ArchiveMerger) Merge(ctx context.Context, base *archive.Reader, ix *delta.Index, out *archive.Writer) (ApplyResult, error) {
	logger := logging.WithFields(ctx, "base", base.Name(), "delta", ix.Source())

	var res ApplyResult
	consumed := make(map[string]bool)

	err := base.Walk(ctx, func(member archive.Member) error {
		name, isRelease := m.opts.Codec.Parse(member.Name)

		target, err := m.TargetPath(member.Name)
		if err != nil {
			if isRelease {
				return err
			}
			// Readme and notice files need not carry a date.
			target = path.Join(m.opts.PackageDir, stripRoot(member.Name))
		}

		w, err := out.Create(target)
		if err != nil {
			return fmt.Errorf("create member %s: %w", target, err)
		}
		res.Members++

		switch {
		case !isRelease:
			return copyMember(member, w)
		case name.ReleaseType == rf2.ReleaseSnapshot:
			consumed[name.ShortKey] = true
			return m.mergeSnapshot(ctx, base.Name(), member, name.ShortKey, ix, w, &res)
		default:
			consumed[name.ShortKey] = true
			return m.mergeHistory(ctx, base.Name(), member, name.ShortKey, ix, w, &res)
		}
	})
	if err != nil {
		return res, err
	}

	for _, key := range ix.ShortKeys() {
		f, _ := ix.File(key)
		if consumed[key] || f.Len() == 0 {
			continue
		}
		res.Unmerged = append(res.Unmerged, key)
		logger.Warn("delta content not merged: no matching file in base package",
			"short_key", key,
			"rows", f.Len(),
		)
		m.opts.Audit.Record(ctx, audit.Params{
			Action:        audit.ActionContentUnmerged,
			ComponentType: string(f.ComponentType),
			ShortKey:      key,
			Message:       fmt.Sprintf("%d delta rows have no matching base file", f.Len()),
		})
	}

	logger.Info("package merged",
		"members", res.Members,
		"passed", res.Passed,
		"replaced", res.Replaced,
		"appended", res.Appended,
		"new", res.New,
		"suppressed", res.Suppressed,
		"dropped", res.Dropped,
		"unmerged", len(res.Unmerged),
	)
	return res, nil
}

// TargetPath relocates a base member under the package directory and
// substitutes its effective time. The base's own top-level directory is
// replaced; deeper structure is kept.
func (m *ArchiveMerger) TargetPath(member string) (string, error) {
	dir, base := path.Split(stripRoot(member))
	renamed, err := rf2.ReplaceEffectiveTime(base, m.opts.EffectiveTime)
	if err != nil {
		return "", fmt.Errorf("member %s: %w", member, err)
	}
	return path.Join(m.opts.PackageDir, dir, renamed), nil
}

// stripRoot drops the first path element of a nested member name.
func stripRoot(member string) string {
	p := strings.ReplaceAll(member, "\\", "/")
	if i := strings.Index(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}

// withheld reports whether delta content for shortKey must not be merged.
func (m *ArchiveMerger) withheld(shortKey string) bool {
	return rf2.IsLanguageRefsetKey(shortKey) && !rf2.HasLocale(shortKey, m.opts.DesignatedLocale)
}

// keepsRegionalRow reports whether a regional language refset row survives
// its withheld delta because the primary locale changed the same id.
func (m *ArchiveMerger) keepsRegionalRow(shortKey, id string, ix *delta.Index) bool {
	if m.opts.RegionalShortKey == "" || shortKey != m.opts.RegionalShortKey {
		return false
	}
	primary := m.opts.PrimaryLocale
	if primary == nil {
		primary = ix
	}
	_, ok := primary.Lookup(m.opts.PrimaryLocaleShortKey, id)
	return ok
}

// mergeHistory copies a Delta or Full member and appends the delta rows.
func (m *ArchiveMerger) mergeHistory(ctx context.Context, archiveName string, member archive.Member, shortKey string, ix *delta.Index, w io.Writer, res *ApplyResult) error {
	rc, err := member.Open()
	if err != nil {
		return fmt.Errorf("open member %s: %w", member.Name, err)
	}
	defer rc.Close()

	bw := bufio.NewWriter(w)
	lw := rf2.NewLineWriter(bw, "")
	lr := rf2.NewLineReader(rc, false)

	for {
		line, err := lr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return &rf2.RowError{Archive: archiveName, Member: member.Name, Line: lr.Number() + 1, Err: err}
		}
		if line.Number == 1 {
			lw.SetTerminator(line.Terminator)
		} else {
			res.Passed++
		}
		if err := lw.Copy(line); err != nil {
			return fmt.Errorf("write %s: %w", member.Name, err)
		}
	}

	if f, ok := ix.File(shortKey); ok && f.Len() > 0 {
		if m.withheld(shortKey) {
			m.reportWithheld(ctx, member.Name, f, res)
		} else {
			for _, row := range f.Rows() {
				if err := lw.WriteRow(row); err != nil {
					return fmt.Errorf("write %s: %w", member.Name, err)
				}
				res.Appended++
			}
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write %s: %w", member.Name, err)
	}
	return nil
}

// mergeSnapshot streams a Snapshot member, replacing rows by id and
// appending rows for ids the snapshot did not have.
func (m *ArchiveMerger) mergeSnapshot(ctx context.Context, archiveName string, member archive.Member, shortKey string, ix *delta.Index, w io.Writer, res *ApplyResult) error {
	rc, err := member.Open()
	if err != nil {
		return fmt.Errorf("open member %s: %w", member.Name, err)
	}
	defer rc.Close()

	f, hasDelta := ix.File(shortKey)
	withheld := hasDelta && m.withheld(shortKey)
	if withheld {
		m.reportWithheld(ctx, member.Name, f, res)
	}

	bw := bufio.NewWriter(w)
	lw := rf2.NewLineWriter(bw, "")
	lr := rf2.NewLineReader(rc, false)
	seen := make(map[string]struct{})
	logger := logging.WithFields(ctx, "member", member.Name, "short_key", shortKey)

	for {
		line, err := lr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return &rf2.RowError{Archive: archiveName, Member: member.Name, Line: lr.Number() + 1, Err: err}
		}
		if line.Number == 1 {
			lw.SetTerminator(line.Terminator)
			if err := lw.Copy(line); err != nil {
				return fmt.Errorf("write %s: %w", member.Name, err)
			}
			continue
		}
		if line.Text == "" {
			if err := lw.Copy(line); err != nil {
				return fmt.Errorf("write %s: %w", member.Name, err)
			}
			continue
		}

		row, err := rf2.ParseRow(line.Text)
		if err != nil {
			return &rf2.RowError{Archive: archiveName, Member: member.Name, Line: line.Number, Err: err}
		}
		id := row.ID()
		if _, dup := seen[id]; dup {
			return &delta.DuplicateRowError{ShortKey: shortKey, ID: id, Archive: archiveName, Member: member.Name, Line: line.Number}
		}
		seen[id] = struct{}{}

		var replacement rf2.Row
		if hasDelta {
			replacement, _ = f.Get(id)
		}

		switch {
		case replacement.IsZero():
			res.Passed++
			err = lw.Copy(line)
		case withheld && m.keepsRegionalRow(shortKey, id, ix):
			res.Overridden++
			logger.Info("keeping regional row changed in primary locale", "id", id)
			m.opts.Audit.Record(ctx, audit.Params{
				Action:        audit.ActionLocaleOverride,
				ComponentType: string(f.ComponentType),
				ComponentID:   id,
				ShortKey:      shortKey,
				Message:       "regional row kept: id changed in primary locale",
				FieldValues:   row.Fields(),
			})
			err = lw.Copy(line)
		case withheld:
			res.Dropped++
			logger.Warn("dropping row changed in withheld locale delta", "id", id)
			m.opts.Audit.Record(ctx, audit.Params{
				Action:        audit.ActionRowDropped,
				ComponentType: string(f.ComponentType),
				ComponentID:   id,
				ShortKey:      shortKey,
				Message:       "row dropped: locale delta withheld",
				FieldValues:   row.Fields(),
			})
		default:
			res.Replaced++
			err = lw.WriteRow(replacement)
		}
		if err != nil {
			return fmt.Errorf("write %s: %w", member.Name, err)
		}
	}

	if hasDelta && !withheld {
		for _, row := range f.Rows() {
			if _, ok := seen[row.ID()]; ok {
				continue
			}
			if err := lw.WriteRow(row); err != nil {
				return fmt.Errorf("write %s: %w", member.Name, err)
			}
			res.New++
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write %s: %w", member.Name, err)
	}
	return nil
}

func (m *ArchiveMerger) reportWithheld(ctx context.Context, member string, f *delta.File, res *ApplyResult) {
	res.Suppressed += f.Len()
	logging.FromContext(ctx).Warn("withholding language refset delta for non-designated locale",
		"member", member,
		"short_key", f.ShortKey,
		"rows", f.Len(),
		"designated_locale", m.opts.DesignatedLocale,
	)
	m.opts.Audit.Record(ctx, audit.Params{
		Action:        audit.ActionLocaleSuppressed,
		ComponentType: string(f.ComponentType),
		ShortKey:      f.ShortKey,
		Message:       fmt.Sprintf("%d language refset delta rows withheld from %s", f.Len(), member),
	})
}

// copyMember copies a non-release member byte for byte.
func copyMember(member archive.Member, w io.Writer) error {
	rc, err := member.Open()
	if err != nil {
		return fmt.Errorf("open member %s: %w", member.Name, err)
	}
	defer rc.Close()

	if _, err := io.Copy(w, rc); err != nil {
		return fmt.Errorf("copy member %s: %w", member.Name, err)
	}
	return nil
}

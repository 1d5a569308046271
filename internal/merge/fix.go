package merge

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/JonMunkholm/releasemerge/internal/archive"
	"github.com/JonMunkholm/releasemerge/internal/audit"
	"github.com/JonMunkholm/releasemerge/internal/component"
	"github.com/JonMunkholm/releasemerge/internal/delta"
	"github.com/JonMunkholm/releasemerge/internal/logging"
	"github.com/JonMunkholm/releasemerge/internal/rf2"
)

var (
	// ErrNoBaseline is returned when a field comparison needs published
	// values and no component value source is configured.
	ErrNoBaseline = errors.New("no baseline configured for field comparison")

	// ErrFieldCountMismatch is returned when fix and current rows for one id
	// have a different number of fields.
	ErrFieldCountMismatch = errors.New("fix and current rows differ in field count")
)

// OutcomeKind is the terminal state reached for one id.
type OutcomeKind string

const (
	// OutcomeEmitFix: no current row, the fix is used as is.
	OutcomeEmitFix OutcomeKind = "emit_fix"
	// OutcomeDiscard: the fix reverts a published state over unpublished work.
	OutcomeDiscard OutcomeKind = "discard"
	// OutcomeTimestampCollapsed: the merge differed from the fix only in
	// effective time, so the fix is used as is.
	OutcomeTimestampCollapsed OutcomeKind = "emit_fix_only_time_differs"
	// OutcomeMerged: fields were combined from both sides.
	OutcomeMerged OutcomeKind = "emit_merged"
)

// Outcome is the decision for one id.
type Outcome struct {
	Kind     OutcomeKind
	ID       string
	ShortKey string
	// Row is the emitted row; zero for OutcomeDiscard.
	Row rf2.Row
	// FromCurrent and FromFix list the field positions taken from each side
	// by the field merge. Both are empty when no field merge ran.
	FromCurrent []int
	FromFix     []int
}

// Emitted reports whether the outcome produces a row.
func (o Outcome) Emitted() bool { return o.Kind != OutcomeDiscard }

// FixOptions configures a FieldMerger.
type FixOptions struct {
	// PublishedBefore is the cutoff: a fix row with an earlier effective
	// time reasserts published history.
	PublishedBefore int
	// Source supplies last published values. A nil source fails any field
	// comparison with ErrNoBaseline.
	Source component.Source
	Audit  *audit.Recorder
}

// FixResult summarises a fix merge.
type FixResult struct {
	Members int
	// Lines counts every line written, headers included.
	Lines    int
	Outcomes map[OutcomeKind]int
}

// FieldMerger reconciles a fix delta with the current delta field by field.
type FieldMerger struct {
	opts FixOptions
}

// NewFieldMerger validates opts.
func NewFieldMerger(opts FixOptions) (*FieldMerger, error) {
	if opts.PublishedBefore <= 0 {
		return nil, fmt.Errorf("published-before cutoff must be a positive effective time, got %d", opts.PublishedBefore)
	}
	return &FieldMerger{opts: opts}, nil
}

// ParseEffectiveTime converts an 8-digit effective time to its numeric form.
func ParseEffectiveTime(s string) (int, error) {
	if len(s) != 8 {
		return 0, fmt.Errorf("effective time %q: want 8 digits", s)
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("effective time %q: want 8 digits", s)
	}
	return n, nil
}

// isReversion reports whether fix reasserts published history over
// unpublished work in current.
func (m *FieldMerger) isReversion(fix, current rf2.Row) bool {
	if !fix.Published() || current.Published() {
		return false
	}
	et, err := ParseEffectiveTime(fix.EffectiveTime())
	if err != nil {
		return false
	}
	return et < m.opts.PublishedBefore
}

// Resolve decides the outcome for one fix row. current is the zero Row when
// the component has no current delta row.
func (m *FieldMerger) Resolve(ctx context.Context, shortKey string, fix, current rf2.Row) (Outcome, error) {
	out := Outcome{ID: fix.ID(), ShortKey: shortKey}

	if current.IsZero() {
		out.Kind = OutcomeEmitFix
		out.Row = fix
		return out, nil
	}

	if m.isReversion(fix, current) {
		out.Kind = OutcomeDiscard
		return out, nil
	}

	if fix.Len() != current.Len() {
		return out, fmt.Errorf("%w: id %s in %s: fix has %d, current has %d",
			ErrFieldCountMismatch, fix.ID(), shortKey, fix.Len(), current.Len())
	}
	if m.opts.Source == nil {
		return out, fmt.Errorf("%w: id %s in %s", ErrNoBaseline, fix.ID(), shortKey)
	}
	alpha, found, err := m.opts.Source.Lookup(ctx, fix.ID())
	if err != nil {
		return out, fmt.Errorf("baseline lookup for %s: %w", fix.ID(), err)
	}

	fixFields := fix.Fields()
	currentFields := current.Fields()
	merged := make([]string, len(fixFields))
	for i := range merged {
		var published string
		var ok bool
		if found {
			published, ok = alpha.Field(i)
		}
		if !ok || published != currentFields[i] {
			merged[i] = currentFields[i]
			out.FromCurrent = append(out.FromCurrent, i)
		} else {
			merged[i] = fixFields[i]
			out.FromFix = append(out.FromFix, i)
		}
	}

	row := rf2.NewRow(merged...)
	if diff := row.DiffIndexes(fix); len(diff) == 1 && diff[0] == rf2.FieldEffectiveTime {
		out.Kind = OutcomeTimestampCollapsed
		out.Row = fix
		return out, nil
	}
	out.Kind = OutcomeMerged
	out.Row = row
	return out, nil
}

// Merge resolves every row of fix against current and writes the emitted
// rows to out. Each fix file becomes one member named after the first fix
// member that contributed to it, with the fix header.
func (m *FieldMerger) Merge(ctx context.Context, fix, current *delta.Index, out *archive.Writer) (FixResult, error) {
	logger := logging.WithFields(ctx, "fix", fix.Source(), "current", current.Source())
	res := FixResult{Outcomes: make(map[OutcomeKind]int)}

	for _, key := range fix.ShortKeys() {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("operation cancelled: %w", err)
		}

		f, _ := fix.File(key)
		if len(f.Members) == 0 {
			continue
		}
		name := f.Members[0]

		w, err := out.Create(name)
		if err != nil {
			return res, fmt.Errorf("create member %s: %w", name, err)
		}
		bw := bufio.NewWriter(w)
		lw := rf2.NewLineWriter(bw, "")
		if f.Header != "" {
			if err := lw.WriteText(f.Header); err != nil {
				return res, fmt.Errorf("write %s: %w", name, err)
			}
		}

		for _, row := range f.Rows() {
			cur, _ := current.Lookup(key, row.ID())
			o, err := m.Resolve(ctx, key, row, cur)
			if err != nil {
				return res, err
			}
			res.Outcomes[o.Kind]++
			m.report(ctx, f.ComponentType, o, row, cur)

			if !o.Emitted() {
				continue
			}
			if err := lw.WriteRow(o.Row); err != nil {
				return res, fmt.Errorf("write %s: %w", name, err)
			}
		}

		if err := bw.Flush(); err != nil {
			return res, fmt.Errorf("write %s: %w", name, err)
		}
		res.Members++
		res.Lines += lw.Lines()
	}

	logger.Info("fix merged",
		"members", res.Members,
		"lines", res.Lines,
		"emit_fix", res.Outcomes[OutcomeEmitFix],
		"merged", res.Outcomes[OutcomeMerged],
		"collapsed", res.Outcomes[OutcomeTimestampCollapsed],
		"discarded", res.Outcomes[OutcomeDiscard],
	)
	return res, nil
}

func (m *FieldMerger) report(ctx context.Context, ct rf2.ComponentType, o Outcome, fix, current rf2.Row) {
	params := audit.Params{
		ComponentType: string(ct),
		ComponentID:   o.ID,
		ShortKey:      o.ShortKey,
		FromCurrent:   o.FromCurrent,
		FromFix:       o.FromFix,
	}

	switch o.Kind {
	case OutcomeEmitFix:
		params.Action = audit.ActionFixAccepted
		params.Message = "used fix, unseen since versioning"
		params.FieldValues = fix.Fields()
	case OutcomeDiscard:
		params.Action = audit.ActionReversionDiscarded
		params.Message = fmt.Sprintf("fix reverts to %s over unpublished work", fix.EffectiveTime())
		params.FieldValues = current.Fields()
		logging.FromContext(ctx).Info("discarding reversion",
			"id", o.ID,
			"short_key", o.ShortKey,
			"fix_effective_time", fix.EffectiveTime(),
		)
	case OutcomeTimestampCollapsed:
		params.Action = audit.ActionTimestampCollapsed
		params.Message = "merge differed from fix only in effective time"
		params.FieldValues = fix.Fields()
	case OutcomeMerged:
		def, _ := rf2.Lookup(ct)
		params.Action = audit.ActionFieldsMerged
		params.Message = fmt.Sprintf("kept from current: %s; taken from fix: %s",
			fieldNames(def, o.FromCurrent), fieldNames(def, o.FromFix))
		params.FieldValues = o.Row.Fields()
	}
	m.opts.Audit.Record(ctx, params)
}

// fieldNames names the columns at positions idx.
func fieldNames(def rf2.ComponentDefinition, idx []int) string {
	if len(idx) == 0 {
		return "none"
	}
	names := make([]string, len(idx))
	for i, n := range idx {
		names[i] = def.FieldName(n)
	}
	return strings.Join(names, ", ")
}

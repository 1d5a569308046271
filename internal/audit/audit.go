// Package audit records merge decisions.
//
// The audit trail is purely observational: a merge never changes its output
// because of what a sink does, and sink failures are logged rather than
// propagated into the merge result.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/JonMunkholm/releasemerge/internal/logging"
	"github.com/google/uuid"
)

// Action represents the kind of decision being audited.
type Action string

const (
	// Three-way field merge outcomes.
	ActionFixAccepted        Action = "fix_accepted"
	ActionFieldsMerged       Action = "fields_merged"
	ActionTimestampCollapsed Action = "timestamp_collapsed"
	ActionReversionDiscarded Action = "reversion_discarded"

	// Archive merge decisions.
	ActionLocaleSuppressed Action = "locale_suppressed"
	ActionLocaleOverride   Action = "locale_override"
	ActionRowDropped       Action = "row_dropped"
	ActionContentUnmerged  Action = "content_unmerged"
)

// Severity represents the severity level of an audit entry.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Entry represents a single audit log entry.
type Entry struct {
	ID            string    `json:"id"`
	RunID         string    `json:"runId,omitempty"`
	Action        Action    `json:"action"`
	Severity      Severity  `json:"severity"`
	ComponentType string    `json:"componentType"`
	ComponentID   string    `json:"componentId,omitempty"`
	ShortKey      string    `json:"shortKey,omitempty"`
	Owner         string    `json:"owner,omitempty"`
	Message       string    `json:"message"`
	FieldValues   []string  `json:"fieldValues,omitempty"`
	FromCurrent   []int     `json:"fromCurrent,omitempty"`
	FromFix       []int     `json:"fromFix,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Params contains parameters for creating an audit log entry.
type Params struct {
	Action        Action
	ComponentType string
	ComponentID   string
	ShortKey      string
	Message       string
	FieldValues   []string
	FromCurrent   []int
	FromFix       []int
}

// Sink stores audit entries.
type Sink interface {
	Record(ctx context.Context, e Entry) error
}

// OwnerLookup resolves a component id to a human-readable owner.
type OwnerLookup interface {
	Owner(ctx context.Context, componentID string) (string, error)
}

// determineSeverity returns the appropriate severity for an action.
func determineSeverity(action Action) Severity {
	switch action {
	case ActionReversionDiscarded, ActionRowDropped:
		return SeverityHigh
	case ActionLocaleSuppressed, ActionLocaleOverride, ActionContentUnmerged, ActionFieldsMerged:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Recorder stamps entries and forwards them to a sink.
type Recorder struct {
	sink   Sink
	owners OwnerLookup
	now    func() time.Time
}

// NewRecorder creates a recorder. A nil sink discards entries; a nil owners
// lookup leaves Owner empty.
func NewRecorder(sink Sink, owners OwnerLookup) *Recorder {
	return &Recorder{sink: sink, owners: owners, now: time.Now}
}

// Log creates an entry from params and hands it to the sink. Owner lookup
// failures are logged and never fail the call.
func (r *Recorder) Log(ctx context.Context, params Params) (*Entry, error) {
	entry := &Entry{
		ID:            uuid.NewString(),
		RunID:         logging.RunID(ctx),
		Action:        params.Action,
		Severity:      determineSeverity(params.Action),
		ComponentType: params.ComponentType,
		ComponentID:   params.ComponentID,
		ShortKey:      params.ShortKey,
		Message:       params.Message,
		FieldValues:   params.FieldValues,
		FromCurrent:   params.FromCurrent,
		FromFix:       params.FromFix,
		CreatedAt:     r.now().UTC(),
	}

	if r.owners != nil && params.ComponentID != "" {
		owner, err := r.owners.Owner(ctx, params.ComponentID)
		if err != nil {
			logging.FromContext(ctx).Debug("owner lookup failed",
				"component_id", params.ComponentID,
				"error", err,
			)
		} else {
			entry.Owner = owner
		}
	}

	if r.sink == nil {
		return entry, nil
	}
	if err := r.sink.Record(ctx, *entry); err != nil {
		return entry, err
	}
	return entry, nil
}

// Record is Log for callers that only care about the merge continuing: sink
// errors are logged as warnings.
func (r *Recorder) Record(ctx context.Context, params Params) {
	if r == nil {
		return
	}
	if _, err := r.Log(ctx, params); err != nil {
		logging.FromContext(ctx).Warn("audit sink failed",
			"action", params.Action,
			"component_id", params.ComponentID,
			"error", err,
		)
	}
}

// LogSink writes entries to a slog logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink writing to logger; slog.Default() when nil.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Record implements Sink.
func (s *LogSink) Record(ctx context.Context, e Entry) error {
	level := slog.LevelDebug
	switch e.Severity {
	case SeverityMedium:
		level = slog.LevelInfo
	case SeverityHigh, SeverityCritical:
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, e.Message,
		"audit_id", e.ID,
		"run_id", e.RunID,
		"action", e.Action,
		"severity", e.Severity,
		"component_type", e.ComponentType,
		"component_id", e.ComponentID,
		"short_key", e.ShortKey,
		"owner", e.Owner,
		"fields", e.FieldValues,
	)
	return nil
}

// MultiSink fans an entry out to several sinks, returning the first error
// after trying all of them.
type MultiSink []Sink

// Record implements Sink.
func (m MultiSink) Record(ctx context.Context, e Entry) error {
	var first error
	for _, s := range m {
		if err := s.Record(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}

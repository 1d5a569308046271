package audit

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/releasemerge/internal/database"
)

const insertEntry = `
INSERT INTO merge_audit (
	id, run_id, action, severity, component_type, component_id, short_key,
	owner, message, field_values, from_current, from_fix, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

// PostgresSink appends entries to the merge_audit table.
type PostgresSink struct {
	db database.DBTX
}

// NewPostgresSink creates a sink writing through db.
func NewPostgresSink(db database.DBTX) *PostgresSink {
	return &PostgresSink{db: db}
}

// Record implements Sink.
func (s *PostgresSink) Record(ctx context.Context, e Entry) error {
	_, err := s.db.Exec(ctx, insertEntry,
		database.UUID(e.ID),
		database.UUID(e.RunID),
		string(e.Action),
		string(e.Severity),
		e.ComponentType,
		database.Text(e.ComponentID),
		database.Text(e.ShortKey),
		database.Text(e.Owner),
		e.Message,
		e.FieldValues,
		toInt32s(e.FromCurrent),
		toInt32s(e.FromFix),
		database.Timestamptz(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert audit entry %s: %w", e.ID, err)
	}
	return nil
}

func toInt32s(in []int) []int32 {
	if in == nil {
		return nil
	}
	out := make([]int32, len(in))
	for i, v := range in {
		out[i] = int32(v)
	}
	return out
}

package rf2

import (
	"errors"
	"fmt"
	"strings"
)

// Positions of the fields every row carries, plus the two fixed positions of
// reference-set-member rows.
const (
	FieldID                    = 0
	FieldEffectiveTime         = 1
	FieldActive                = 2
	FieldModuleID              = 3
	FieldRefsetID              = 4
	FieldReferencedComponentID = 5
)

// minFields is the number of fields shared by every component type.
const minFields = 4

// Separator is the field delimiter of release files.
const Separator = "\t"

// ErrMalformedRow is returned when a line cannot yield a row id.
var ErrMalformedRow = errors.New("malformed row")

// Row is one release record. Rows are never mutated; merge decisions build
// new rows instead.
type Row struct {
	fields []string
}

// ParseRow parses a single data line. Trailing CR/LF is ignored.
func ParseRow(line string) (Row, error) {
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")

	fields := strings.Split(line, Separator)
	if len(fields) < minFields {
		return Row{}, fmt.Errorf("%w: want at least %d fields, got %d", ErrMalformedRow, minFields, len(fields))
	}
	if strings.TrimSpace(fields[FieldID]) == "" {
		return Row{}, fmt.Errorf("%w: empty id", ErrMalformedRow)
	}
	return Row{fields: fields}, nil
}

// NewRow builds a row from field values. The slice is copied.
func NewRow(fields ...string) Row {
	return Row{fields: append([]string(nil), fields...)}
}

// IsZero reports whether r holds no fields.
func (r Row) IsZero() bool { return len(r.fields) == 0 }

// Len returns the number of fields.
func (r Row) Len() int { return len(r.fields) }

// Field returns the value at index i.
func (r Row) Field(i int) (string, bool) {
	if i < 0 || i >= len(r.fields) {
		return "", false
	}
	return r.fields[i], true
}

// Fields returns a copy of all field values.
func (r Row) Fields() []string {
	return append([]string(nil), r.fields...)
}

func (r Row) get(i int) string {
	v, _ := r.Field(i)
	return v
}

// ID returns the component identifier.
func (r Row) ID() string { return r.get(FieldID) }

// EffectiveTime returns the effective time; empty means unpublished.
func (r Row) EffectiveTime() string { return r.get(FieldEffectiveTime) }

// Active reports whether the active flag is "1".
func (r Row) Active() bool { return r.get(FieldActive) == "1" }

// ModuleID returns the owning module.
func (r Row) ModuleID() string { return r.get(FieldModuleID) }

// RefsetID returns the refset id of a reference-set-member row.
func (r Row) RefsetID() string { return r.get(FieldRefsetID) }

// ReferencedComponentID returns the referenced component of a
// reference-set-member row.
func (r Row) ReferencedComponentID() string { return r.get(FieldReferencedComponentID) }

// Published reports whether the row carries an effective time.
func (r Row) Published() bool { return r.EffectiveTime() != "" }

// Line serialises the row without a line terminator.
func (r Row) Line() string {
	return strings.Join(r.fields, Separator)
}

// String implements fmt.Stringer.
func (r Row) String() string { return r.Line() }

// Equal reports whether both rows hold identical field values.
func (r Row) Equal(o Row) bool {
	if len(r.fields) != len(o.fields) {
		return false
	}
	for i := range r.fields {
		if r.fields[i] != o.fields[i] {
			return false
		}
	}
	return true
}

// DiffIndexes returns the field positions at which r and o differ. Positions
// present in only one of the rows count as different.
func (r Row) DiffIndexes(o Row) []int {
	n := max(len(r.fields), len(o.fields))
	var diff []int
	for i := 0; i < n; i++ {
		a, okA := r.Field(i)
		b, okB := o.Field(i)
		if okA != okB || a != b {
			diff = append(diff, i)
		}
	}
	return diff
}

package core

import (
	"errors"
	"fmt"

	"github.com/JonMunkholm/releasemerge/internal/delta"
	"github.com/JonMunkholm/releasemerge/internal/rf2"
)

// Operation names used in errors, logs and metrics.
const (
	OpApplyDelta = "apply-delta"
	OpMergeFix   = "merge-fix"
)

// RunError is the single failure reported for a run. Archive, Member and Line
// locate the offending row when the cause carries a location.
type RunError struct {
	Op      string
	Archive string
	Member  string
	Line    int
	Err     error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// Location returns "archive: member line N", or "" when the cause carries no
// row position.
func (e *RunError) Location() string {
	if e.Line <= 0 {
		return ""
	}
	return fmt.Sprintf("%s: %s line %d", e.Archive, e.Member, e.Line)
}

// newRunError wraps err, copying location details from row-level errors.
func newRunError(op string, err error) error {
	if err == nil {
		return nil
	}
	var runErr *RunError
	if errors.As(err, &runErr) {
		return err
	}

	re := &RunError{Op: op, Err: err}
	var rowErr *rf2.RowError
	var dupErr *delta.DuplicateRowError
	switch {
	case errors.As(err, &rowErr):
		re.Archive, re.Member, re.Line = rowErr.Archive, rowErr.Member, rowErr.Line
	case errors.As(err, &dupErr):
		re.Archive, re.Member, re.Line = dupErr.Archive, dupErr.Member, dupErr.Line
	}
	return re
}

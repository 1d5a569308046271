package rf2

import "fmt"

// RowError locates a failure on a specific line of an archive member.
type RowError struct {
	Archive string
	Member  string
	Line    int
	Err     error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("%s: %s line %d: %v", e.Archive, e.Member, e.Line, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

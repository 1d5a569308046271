package audit

import (
	"context"
	"sync"
)

// MemorySink keeps entries in memory. It backs tests and the end-of-run
// summary.
type MemorySink struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemorySink creates an empty sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Record implements Sink.
func (m *MemorySink) Record(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

// Entries returns a copy of all recorded entries.
func (m *MemorySink) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...)
}

// ByAction returns entries with the given action, in record order.
func (m *MemorySink) ByAction(action Action) []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Entry
	for _, e := range m.entries {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

// CountBySeverity tallies entries per severity.
func (m *MemorySink) CountBySeverity() map[Severity]int {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[Severity]int)
	for _, e := range m.entries {
		out[e.Severity]++
	}
	return out
}

package events

import (
	"context"
	"sync"
)

// MemorySink buffers events in memory. Used when no broker is configured
// and as the capture sink in tests.
type MemorySink struct {
	mu     sync.Mutex
	events []AskEvent
}

// NewMemorySink constructs an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Publish appends the event.
func (s *MemorySink) Publish(_ context.Context, event AskEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a copy of everything published so far.
func (s *MemorySink) Events() []AskEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AskEvent, len(s.events))
	copy(out, s.events)
	return out
}

// Close is a no-op.
func (s *MemorySink) Close() error { return nil }

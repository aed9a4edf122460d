// Package store persists reusable cohorts. The in-memory implementation is
// the default; Redis and PostgreSQL variants back multi-instance and durable
// deployments.
package store

import (
	"context"
	"sync"

	"github.com/civicpulse/civicpulse/internal/cohort"
	"github.com/civicpulse/civicpulse/pkg/platform/sentinel"
)

// Memory is a process-local cohort store.
type Memory struct {
	mu      sync.RWMutex
	cohorts map[string]cohort.Cohort
}

// NewMemory creates an empty in-memory cohort store.
func NewMemory() *Memory {
	return &Memory{cohorts: make(map[string]cohort.Cohort)}
}

// Save stores a cohort, rejecting duplicate ids.
func (m *Memory) Save(ctx context.Context, c cohort.Cohort) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.cohorts[c.ID]; exists {
		return sentinel.ErrConflict
	}
	m.cohorts[c.ID] = c
	return nil
}

// Get returns a cohort by id.
func (m *Memory) Get(ctx context.Context, id string) (cohort.Cohort, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.cohorts[id]
	if !ok {
		return cohort.Cohort{}, sentinel.ErrNotFound
	}
	return c, nil
}

// Delete removes a cohort by id.
func (m *Memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cohorts[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(m.cohorts, id)
	return nil
}

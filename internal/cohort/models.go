package cohort

import (
	"context"
	"time"
)

// Cohort is a persisted, reusable sample: the filter that produced it and the
// ids of its members. Persona records themselves are not duplicated; the
// store resolves ids against the population at ask time.
type Cohort struct {
	ID         string        `json:"id"`
	Name       string        `json:"name,omitempty"`
	Filter     FilterRequest `json:"filter"`
	PersonaIDs []string      `json:"persona_ids"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Store persists cohorts. Implementations: in-memory (default), Redis
// (shared cache), PostgreSQL (durable).
type Store interface {
	Save(ctx context.Context, c Cohort) error
	Get(ctx context.Context, id string) (Cohort, error)
	Delete(ctx context.Context, id string) error
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/civicpulse/civicpulse/internal/cohort"
	"github.com/civicpulse/civicpulse/pkg/platform/sentinel"
)

// Postgres is the durable cohort store.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed cohort store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Migrate creates the cohorts table if it does not exist. Called once at
// startup; the schema is small enough not to warrant a migration tool.
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS cohorts (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL DEFAULT '',
			filter      JSONB NOT NULL,
			persona_ids TEXT[] NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("migrate cohorts: %w", err)
	}
	return nil
}

// Save stores a cohort, rejecting duplicate ids.
func (p *Postgres) Save(ctx context.Context, c cohort.Cohort) error {
	filter, err := json.Marshal(c.Filter)
	if err != nil {
		return fmt.Errorf("marshal cohort filter: %w", err)
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO cohorts (id, name, filter, persona_ids, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.Name, filter, pq.Array(c.PersonaIDs), c.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("save cohort: %w", err)
	}
	return nil
}

// Get returns a cohort by id.
func (p *Postgres) Get(ctx context.Context, id string) (cohort.Cohort, error) {
	var (
		c      cohort.Cohort
		filter []byte
		ids    pq.StringArray
	)
	err := p.db.QueryRowContext(ctx, `
		SELECT id, name, filter, persona_ids, created_at
		FROM cohorts WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &filter, &ids, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return cohort.Cohort{}, sentinel.ErrNotFound
		}
		return cohort.Cohort{}, fmt.Errorf("get cohort: %w", err)
	}
	if err := json.Unmarshal(filter, &c.Filter); err != nil {
		return cohort.Cohort{}, fmt.Errorf("decode cohort filter: %w", err)
	}
	c.PersonaIDs = []string(ids)
	return c, nil
}

// Delete removes a cohort by id.
func (p *Postgres) Delete(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM cohorts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete cohort: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

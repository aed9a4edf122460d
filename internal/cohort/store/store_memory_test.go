package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicpulse/civicpulse/internal/cohort"
	"github.com/civicpulse/civicpulse/pkg/platform/sentinel"
)

func sampleCohort(id string) cohort.Cohort {
	return cohort.Cohort{
		ID:   id,
		Name: "seniors in the east",
		Filter: cohort.FilterRequest{
			AgeMin: 55, AgeMax: 90, SampleSize: 10,
			PlanningAreas: []string{"tampines", "bedok"},
		},
		PersonaIDs: []string{"p1", "p2", "p3"},
		CreatedAt:  time.Now().UTC().Truncate(time.Second),
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	saved := sampleCohort("c1")
	require.NoError(t, s.Save(ctx, saved))

	got, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, saved, got)
}

func TestMemoryStoreDuplicateID(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	require.NoError(t, s.Save(ctx, sampleCohort("c1")))
	err := s.Save(ctx, sampleCohort("c1"))
	assert.ErrorIs(t, err, sentinel.ErrConflict)
}

func TestMemoryStoreMissing(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	_, err := s.Get(ctx, "absent")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "absent"), sentinel.ErrNotFound)
}

func TestMemoryStoreDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	require.NoError(t, s.Save(ctx, sampleCohort("c1")))
	require.NoError(t, s.Delete(ctx, "c1"))
	_, err := s.Get(ctx, "c1")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

package cohort

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicpulse/civicpulse/internal/persona"
	dErrors "github.com/civicpulse/civicpulse/pkg/domain-errors"
)

func testPersonas() []persona.Persona {
	return []persona.Persona{
		{ID: "p1", Age: 25, Sex: "Female", Occupation: "Staff Nurse", PlanningArea: "TAMPINES"},
		{ID: "p2", Age: 40, Sex: "Male", Occupation: "Taxi Driver", PlanningArea: "BEDOK"},
		{ID: "p3", Age: 63, Sex: "Female", Occupation: "Retired Teacher", PlanningArea: "TAMPINES"},
		{ID: "p4", Age: 33, Sex: "Male", Occupation: "Software Engineer", PlanningArea: "JURONG EAST"},
	}
}

func mustSpec(t *testing.T, req FilterRequest) FilterSpec {
	t.Helper()
	spec, err := NewFilterSpec(req, MaxSampleSize)
	require.NoError(t, err)
	return spec
}

func TestNewFilterSpecValidation(t *testing.T) {
	t.Run("swapped age bounds are corrected", func(t *testing.T) {
		spec := mustSpec(t, FilterRequest{AgeMin: 60, AgeMax: 20, SampleSize: 10})
		assert.Equal(t, 20, spec.AgeMin)
		assert.Equal(t, 60, spec.AgeMax)
	})

	t.Run("age outside bounds rejected", func(t *testing.T) {
		_, err := NewFilterSpec(FilterRequest{AgeMin: 12, AgeMax: 60, SampleSize: 10}, MaxSampleSize)
		require.Error(t, err)
		assert.True(t, dErrors.Is(err, dErrors.CodeBadRequest))
	})

	t.Run("sample size bounds depend on surface", func(t *testing.T) {
		_, err := NewFilterSpec(FilterRequest{AgeMin: 18, AgeMax: 60, SampleSize: 50}, MaxCohortSampleSize)
		require.Error(t, err)

		_, err = NewFilterSpec(FilterRequest{AgeMin: 18, AgeMax: 60, SampleSize: 50}, MaxSampleSize)
		require.NoError(t, err)

		_, err = NewFilterSpec(FilterRequest{AgeMin: 18, AgeMax: 60, SampleSize: 3}, MaxSampleSize)
		require.Error(t, err)
	})

	t.Run("oversized lists rejected", func(t *testing.T) {
		occupations := make([]string, MaxOccupationsList+1)
		for i := range occupations {
			occupations[i] = "job"
		}
		_, err := NewFilterSpec(FilterRequest{AgeMin: 18, AgeMax: 60, SampleSize: 10, Occupations: occupations}, MaxSampleSize)
		require.Error(t, err)
	})
}

func TestFilterPredicates(t *testing.T) {
	personas := testPersonas()

	t.Run("age range", func(t *testing.T) {
		got := Filter(personas, mustSpec(t, FilterRequest{AgeMin: 30, AgeMax: 65, SampleSize: 10}))
		assert.Len(t, got, 3)
		for _, p := range got {
			assert.GreaterOrEqual(t, p.Age, 30)
			assert.LessOrEqual(t, p.Age, 65)
		}
	})

	t.Run("sex is case-insensitive", func(t *testing.T) {
		got := Filter(personas, mustSpec(t, FilterRequest{AgeMin: 18, AgeMax: 120, SampleSize: 10, Sex: "FEMALE"}))
		assert.Len(t, got, 2)
	})

	t.Run("occupation substring query", func(t *testing.T) {
		got := Filter(personas, mustSpec(t, FilterRequest{AgeMin: 18, AgeMax: 120, SampleSize: 10, OccupationQuery: "nurse"}))
		require.Len(t, got, 1)
		assert.Equal(t, "p1", got[0].ID)
	})

	t.Run("explicit occupation set is exact case-insensitive membership", func(t *testing.T) {
		got := Filter(personas, mustSpec(t, FilterRequest{
			AgeMin: 18, AgeMax: 120, SampleSize: 10,
			Occupations: []string{"taxi driver", "STAFF NURSE"},
		}))
		assert.Len(t, got, 2)
	})

	t.Run("set and query both enforced when both present", func(t *testing.T) {
		got := Filter(personas, mustSpec(t, FilterRequest{
			AgeMin: 18, AgeMax: 120, SampleSize: 10,
			Occupations:     []string{"taxi driver", "staff nurse"},
			OccupationQuery: "driver",
		}))
		require.Len(t, got, 1)
		assert.Equal(t, "p2", got[0].ID)
	})

	t.Run("area set and area query", func(t *testing.T) {
		got := Filter(personas, mustSpec(t, FilterRequest{
			AgeMin: 18, AgeMax: 120, SampleSize: 10,
			PlanningAreas: []string{"tampines", "bedok"},
		}))
		assert.Len(t, got, 3)

		got = Filter(personas, mustSpec(t, FilterRequest{
			AgeMin: 18, AgeMax: 120, SampleSize: 10,
			PlanningAreas:     []string{"tampines", "bedok"},
			PlanningAreaQuery: "bed",
		}))
		require.Len(t, got, 1)
		assert.Equal(t, "p2", got[0].ID)
	})

	t.Run("empty result is valid", func(t *testing.T) {
		got := Filter(personas, mustSpec(t, FilterRequest{AgeMin: 18, AgeMax: 120, SampleSize: 10, OccupationQuery: "astronaut"}))
		assert.Empty(t, got)
	})

	t.Run("order preserved and output is subset", func(t *testing.T) {
		spec := mustSpec(t, FilterRequest{AgeMin: 18, AgeMax: 120, SampleSize: 10})
		got := Filter(personas, spec)
		require.Len(t, got, len(personas))
		for i, p := range got {
			assert.Equal(t, personas[i].ID, p.ID)
			assert.True(t, spec.Matches(p))
		}
	})
}

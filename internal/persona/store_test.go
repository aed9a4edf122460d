package persona

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const personaJSON = `[
  {"uuid":"p1","age":34,"sex":"Female","occupation":"Nurse","education_level":"Diploma","marital_status":"Married","planning_area":"tampines","persona":"A nurse.","cultural_background":"","skills_and_expertise":"","hobbies_and_interests":"","career_goals_and_ambitions":""},
  {"uuid":"p2","age":52,"sex":"Male","occupation":"Taxi Driver","education_level":"Secondary","marital_status":"Married","planning_area":"Bukit  Merah","persona":"A driver.","cultural_background":"","skills_and_expertise":"","hobbies_and_interests":"","career_goals_and_ambitions":""}
]`

const profileJSON = `[
  {"planning_area":"Tampines","population":240000,"summary":"Tampines has a population of ~240,000."}
]`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestSourceLoad(t *testing.T) {
	dir := t.TempDir()
	personaPath := writeFile(t, dir, "personas.json", personaJSON)
	profilePath := writeFile(t, dir, "profiles.json", profileJSON)

	src := NewSource(personaPath, profilePath)
	store, err := src.Load()
	require.NoError(t, err)

	assert.Equal(t, 2, store.Len())
	assert.False(t, store.Degraded())

	// Areas are normalized at load time.
	assert.Equal(t, "TAMPINES", store.All()[0].PlanningArea)
	assert.Equal(t, "BUKIT MERAH", store.All()[1].PlanningArea)

	opts := store.Options()
	assert.Equal(t, []string{"Nurse", "Taxi Driver"}, opts.Occupations)
	assert.Equal(t, []string{"BUKIT MERAH", "TAMPINES"}, opts.PlanningAreas)

	profile, ok := store.ProfileFor("TAMPINES")
	require.True(t, ok)
	assert.Equal(t, 240000, profile.Population)
	assert.Contains(t, store.AreaContext("tampines"), "240,000")
}

func TestSourceLoadIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	personaPath := writeFile(t, dir, "personas.json", personaJSON)

	src := NewSource(personaPath, "")
	first, err := src.Load()
	require.NoError(t, err)

	// Delete the dataset: a second Load must serve the cached store without
	// touching disk again.
	require.NoError(t, os.Remove(personaPath))
	second, err := src.Load()
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestSourceLoadMissingPersonasFailsHard(t *testing.T) {
	src := NewSource(filepath.Join(t.TempDir(), "nope.json"), "")
	_, err := src.Load()
	require.Error(t, err)
}

func TestSourceLoadMissingProfilesIsDegraded(t *testing.T) {
	dir := t.TempDir()
	personaPath := writeFile(t, dir, "personas.json", personaJSON)

	src := NewSource(personaPath, filepath.Join(dir, "absent.json"))
	store, err := src.Load()
	require.NoError(t, err)
	assert.True(t, store.Degraded())
	assert.Equal(t, "", store.AreaContext("TAMPINES"))
}

func TestNewStoreFailsFastOnMalformedRecord(t *testing.T) {
	_, err := NewStore([]Persona{
		{ID: "ok", Age: 30, Sex: "Female", Occupation: "Chef", PlanningArea: "YISHUN"},
		{ID: "bad", Age: 0, Sex: "Male", Occupation: "Chef", PlanningArea: "YISHUN"},
	}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record 1")
}

func TestNewStoreFailsFastOnDuplicateUUID(t *testing.T) {
	_, err := NewStore([]Persona{
		{ID: "p1", Age: 30, Sex: "Female", Occupation: "Chef", PlanningArea: "YISHUN"},
		{ID: "p1", Age: 41, Sex: "Male", Occupation: "Clerk", PlanningArea: "BEDOK"},
	}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record 1")
	assert.Contains(t, err.Error(), "duplicate uuid")
}

func TestNormalizeArea(t *testing.T) {
	assert.Equal(t, "ANG MO KIO", NormalizeArea("  ang  mo   kio "))
	assert.Equal(t, "TAMPINES", NormalizeArea("Tampines"))
}

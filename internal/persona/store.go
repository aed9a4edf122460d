package persona

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	platformstrings "github.com/civicpulse/civicpulse/pkg/platform/strings"
)

// Options are the distinct filterable values exposed to filter UIs.
type Options struct {
	Occupations   []string `json:"occupations"`
	PlanningAreas []string `json:"planning_areas"`
}

// Store is the in-memory population index. It is immutable after construction
// and safe for concurrent reads without synchronization.
type Store struct {
	personas []Persona
	byID     map[string]int
	profiles map[string]AreaProfile
	options  Options
	degraded bool
}

// Source loads the Store from disk exactly once. Repeated Load calls return
// the same pointer without re-reading the dataset, which keeps the population
// reference-stable for the process lifetime. Tests build fresh Sources (or
// call NewStore directly) instead of resetting global state.
type Source struct {
	personaPath string
	profilePath string

	once  sync.Once
	store *Store
	err   error
}

// NewSource creates a lazy dataset loader. profilePath may be "" to skip area
// profiles entirely.
func NewSource(personaPath, profilePath string) *Source {
	return &Source{personaPath: personaPath, profilePath: profilePath}
}

// Load parses and indexes the datasets on first call and caches the result.
// The persona dataset is mandatory: a missing or malformed file is a hard
// failure since nothing can be answered without a population. A missing
// area-profiles file is a degraded mode: replies simply lose their
// neighborhood context.
func (s *Source) Load() (*Store, error) {
	s.once.Do(func() {
		s.store, s.err = s.load()
	})
	return s.store, s.err
}

func (s *Source) load() (*Store, error) {
	raw, err := os.ReadFile(s.personaPath)
	if err != nil {
		return nil, fmt.Errorf("read persona dataset %s: %w", s.personaPath, err)
	}

	var personas []Persona
	if err := json.Unmarshal(raw, &personas); err != nil {
		return nil, fmt.Errorf("decode persona dataset: %w", err)
	}

	profiles, degraded, err := loadProfiles(s.profilePath)
	if err != nil {
		return nil, err
	}

	store, err := NewStore(personas, profiles)
	if err != nil {
		return nil, err
	}
	store.degraded = degraded
	return store, nil
}

func loadProfiles(path string) (profiles []AreaProfile, degraded bool, err error) {
	if path == "" {
		return nil, true, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, true, nil
		}
		return nil, false, fmt.Errorf("read area profiles %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, &profiles); err != nil {
		return nil, false, fmt.Errorf("decode area profiles: %w", err)
	}
	return profiles, false, nil
}

// NewStore validates every record, normalizes planning areas, and builds the
// id and options indexes. It fails on the first invalid persona or the first
// repeated uuid.
func NewStore(personas []Persona, profiles []AreaProfile) (*Store, error) {
	store := &Store{
		personas: make([]Persona, len(personas)),
		byID:     make(map[string]int, len(personas)),
		profiles: make(map[string]AreaProfile, len(profiles)),
	}

	occupations := make([]string, 0, len(personas))
	areas := make([]string, 0, len(personas))

	for i, p := range personas {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("persona dataset record %d: %w", i, err)
		}
		if _, dup := store.byID[p.ID]; dup {
			return nil, fmt.Errorf("persona dataset record %d: duplicate uuid %s", i, p.ID)
		}
		store.personas[i] = p
		store.byID[p.ID] = i
		occupations = append(occupations, p.Occupation)
		areas = append(areas, p.PlanningArea)
	}

	for _, profile := range profiles {
		area := NormalizeArea(profile.PlanningArea)
		profile.PlanningArea = area
		store.profiles[area] = profile
	}

	store.options = Options{
		Occupations:   platformstrings.UniqueSorted(occupations),
		PlanningAreas: platformstrings.UniqueSorted(areas),
	}
	return store, nil
}

// All returns the full population. Callers must not mutate the slice.
func (s *Store) All() []Persona {
	return s.personas
}

// Len returns the population size.
func (s *Store) Len() int {
	return len(s.personas)
}

// ByID looks up one persona. Persisted cohorts resolve their members
// through this on every ask.
func (s *Store) ByID(id string) (Persona, bool) {
	if i, ok := s.byID[id]; ok {
		return s.personas[i], true
	}
	return Persona{}, false
}

// ProfileFor looks up the enrichment profile for a planning area.
func (s *Store) ProfileFor(area string) (AreaProfile, bool) {
	p, ok := s.profiles[NormalizeArea(area)]
	return p, ok
}

// AreaContext returns the profile summary text for an area, or "" when the
// store runs without profiles.
func (s *Store) AreaContext(area string) string {
	if p, ok := s.ProfileFor(area); ok {
		return p.Summary
	}
	return ""
}

// Options returns the sorted distinct occupations and planning areas.
func (s *Store) Options() Options {
	return s.options
}

// Degraded reports whether the store loaded without area profiles.
func (s *Store) Degraded() bool {
	return s.degraded
}

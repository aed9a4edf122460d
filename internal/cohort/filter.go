// Package cohort selects the subset of the population that answers a
// question: a validated filter over the persona store followed by an
// area-stratified sample.
package cohort

import (
	"strings"

	"github.com/civicpulse/civicpulse/internal/persona"
	dErrors "github.com/civicpulse/civicpulse/pkg/domain-errors"
	platformstrings "github.com/civicpulse/civicpulse/pkg/platform/strings"
)

// Bounds enforced on filter requests before any work happens.
const (
	MinAge = 18
	MaxAge = 120

	MinSampleSize       = 5
	MaxSampleSize       = 200
	MaxCohortSampleSize = 30

	MaxQueryLen        = 80
	MaxOccupationsList = 40
	MaxAreasList       = 80
)

// FilterSpec is a validated, normalized filter. Construct it with
// NewFilterSpec; the zero value matches nothing useful.
//
// Occupation and planning area each carry two independent predicates: an
// explicit case-insensitive set (exact membership) and a free-text substring
// query. When both are present a persona must satisfy both.
type FilterSpec struct {
	AgeMin     int
	AgeMax     int
	SampleSize int

	Sex             string
	OccupationQuery string
	AreaQuery       string

	occupationSet map[string]struct{}
	areaSet       map[string]struct{}

	// Kept for serialization of persisted cohorts.
	Occupations   []string
	PlanningAreas []string
}

// FilterRequest is the raw, untrusted shape decoded from a request body.
type FilterRequest struct {
	AgeMin            int      `json:"age_min"`
	AgeMax            int      `json:"age_max"`
	SampleSize        int      `json:"sample_size"`
	Sex               string   `json:"sex,omitempty"`
	OccupationQuery   string   `json:"occupation_query,omitempty"`
	PlanningAreaQuery string   `json:"planning_area_query,omitempty"`
	Occupations       []string `json:"occupations,omitempty"`
	PlanningAreas     []string `json:"planning_areas,omitempty"`
}

// NewFilterSpec validates and normalizes a request. maxSample distinguishes
// the ad-hoc ask surface (200) from the persisted-cohort surface (30).
// Swapped age bounds are corrected rather than rejected.
func NewFilterSpec(req FilterRequest, maxSample int) (FilterSpec, error) {
	ageMin, ageMax := req.AgeMin, req.AgeMax
	if ageMin > ageMax {
		ageMin, ageMax = ageMax, ageMin
	}
	if ageMin < MinAge || ageMax > MaxAge {
		return FilterSpec{}, dErrors.Newf(dErrors.CodeBadRequest,
			"age range must lie within [%d,%d]", MinAge, MaxAge)
	}
	if req.SampleSize < MinSampleSize || req.SampleSize > maxSample {
		return FilterSpec{}, dErrors.Newf(dErrors.CodeBadRequest,
			"sample_size must lie within [%d,%d]", MinSampleSize, maxSample)
	}
	if len(req.OccupationQuery) > MaxQueryLen || len(req.PlanningAreaQuery) > MaxQueryLen {
		return FilterSpec{}, dErrors.Newf(dErrors.CodeBadRequest,
			"text queries are limited to %d characters", MaxQueryLen)
	}
	if len(req.Occupations) > MaxOccupationsList {
		return FilterSpec{}, dErrors.Newf(dErrors.CodeBadRequest,
			"occupations list is limited to %d entries", MaxOccupationsList)
	}
	if len(req.PlanningAreas) > MaxAreasList {
		return FilterSpec{}, dErrors.Newf(dErrors.CodeBadRequest,
			"planning_areas list is limited to %d entries", MaxAreasList)
	}

	spec := FilterSpec{
		AgeMin:          ageMin,
		AgeMax:          ageMax,
		SampleSize:      req.SampleSize,
		Sex:             strings.ToLower(strings.TrimSpace(req.Sex)),
		OccupationQuery: strings.ToLower(strings.TrimSpace(req.OccupationQuery)),
		AreaQuery:       strings.ToLower(strings.TrimSpace(req.PlanningAreaQuery)),
		Occupations:     platformstrings.DedupeAndTrimLower(req.Occupations),
		PlanningAreas:   platformstrings.DedupeAndTrimLower(req.PlanningAreas),
	}
	spec.occupationSet = toSet(spec.Occupations)
	spec.areaSet = toSet(spec.PlanningAreas)
	return spec, nil
}

func toSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

// Matches reports whether one persona satisfies every active predicate.
func (s FilterSpec) Matches(p persona.Persona) bool {
	if p.Age < s.AgeMin || p.Age > s.AgeMax {
		return false
	}
	if s.Sex != "" && !strings.EqualFold(p.Sex, s.Sex) {
		return false
	}

	occupation := strings.ToLower(p.Occupation)
	if s.occupationSet != nil {
		if _, ok := s.occupationSet[occupation]; !ok {
			return false
		}
	}
	if s.OccupationQuery != "" && !strings.Contains(occupation, s.OccupationQuery) {
		return false
	}

	area := strings.ToLower(p.PlanningArea)
	if s.areaSet != nil {
		if _, ok := s.areaSet[area]; !ok {
			return false
		}
	}
	if s.AreaQuery != "" && !strings.Contains(area, s.AreaQuery) {
		return false
	}

	return true
}

// Filter returns the personas matching the filter, preserving input order. An
// empty result is a valid outcome, not an error; callers decide whether to
// surface it as a no-match condition.
func Filter(personas []persona.Persona, spec FilterSpec) []persona.Persona {
	var out []persona.Persona
	for _, p := range personas {
		if spec.Matches(p) {
			out = append(out, p)
		}
	}
	return out
}

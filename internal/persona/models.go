// Package persona loads and indexes the simulated-resident population that
// every question is answered from.
package persona

import (
	"fmt"
	"strings"

	platformstrings "github.com/civicpulse/civicpulse/pkg/platform/strings"
)

// Persona is one simulated resident. Records are immutable after load; the
// whole population is shared read-only across requests.
type Persona struct {
	ID             string `json:"uuid"`
	Age            int    `json:"age"`
	Sex            string `json:"sex"`
	Occupation     string `json:"occupation"`
	EducationLevel string `json:"education_level"`
	MaritalStatus  string `json:"marital_status"`
	PlanningArea   string `json:"planning_area"`
	Biography      string `json:"persona"`
	Cultural       string `json:"cultural_background"`
	Skills         string `json:"skills_and_expertise"`
	Hobbies        string `json:"hobbies_and_interests"`
	CareerGoals    string `json:"career_goals_and_ambitions"`
}

// NormalizeArea converts a planning-area label to its canonical form:
// uppercase with single internal spaces. Every index, filter, and grouping
// key goes through this so "bukit  merah" and "Bukit Merah" collide.
func NormalizeArea(area string) string {
	return platformstrings.CollapseWhitespace(strings.ToUpper(area))
}

// Validate checks a decoded record and normalizes its planning area in place.
// Dataset loading fails fast on the first invalid record rather than serving
// a silently truncated population.
func (p *Persona) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("persona missing uuid")
	}
	if p.Age <= 0 {
		return fmt.Errorf("persona %s: age %d out of range", p.ID, p.Age)
	}
	if p.Sex == "" {
		return fmt.Errorf("persona %s: missing sex", p.ID)
	}
	if p.Occupation == "" {
		return fmt.Errorf("persona %s: missing occupation", p.ID)
	}
	if p.PlanningArea == "" {
		return fmt.Errorf("persona %s: missing planning area", p.ID)
	}
	p.PlanningArea = NormalizeArea(p.PlanningArea)
	return nil
}

// AreaProfile is the optional neighborhood enrichment passed to the model as
// grounding context for each reply.
type AreaProfile struct {
	PlanningArea       string   `json:"planning_area"`
	Population         int      `json:"population"`
	DominantAgeGroup   string   `json:"dominant_age_group"`
	DominantEthnic     string   `json:"dominant_ethnic_group"`
	DominantDwelling   string   `json:"dominant_dwelling_type"`
	MedianIncome       string   `json:"median_income_bracket"`
	PrimaryTransport   string   `json:"primary_transport_mode"`
	OwnerOccupierPct   float64  `json:"owner_occupier_pct"`
	MedianHDBResale4RM *float64 `json:"median_hdb_resale_4room"`
	HawkerCentres      int      `json:"hawker_centre_count"`
	Supermarkets       int      `json:"supermarket_count"`
	Schools            int      `json:"school_count"`
	Clinics            int      `json:"clinic_count"`
	Summary            string   `json:"summary"`
}

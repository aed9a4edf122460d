package cohort

import (
	"math/rand"
	"sync"

	"github.com/civicpulse/civicpulse/internal/persona"
)

// Sampler draws an area-stratified cohort from filtered candidates.
//
// Two phases:
//  1. Diversity: visit planning areas in random order and take one uniform
//     pick per area, so the cohort spans as many distinct areas as the target
//     allows before concentrating anywhere.
//  2. Fill: if slots remain (more slots than areas), draw uniformly without
//     replacement from all remaining candidates.
//
// The returned cohort never contains two personas with the same id.
type Sampler struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSampler builds a sampler around the given source. Production passes a
// time-seeded source; tests pass a fixed seed for reproducible draws.
func NewSampler(rnd *rand.Rand) *Sampler {
	return &Sampler{rnd: rnd}
}

// Sample selects min(target, len(candidates)) distinct personas.
func (s *Sampler) Sample(candidates []persona.Persona, target int) []persona.Persona {
	if target > len(candidates) {
		target = len(candidates)
	}
	if target <= 0 {
		return nil
	}

	// rand.Rand is not safe for concurrent use; requests share one sampler.
	s.mu.Lock()
	defer s.mu.Unlock()

	byArea := make(map[string][]persona.Persona)
	areas := make([]string, 0)
	for _, p := range candidates {
		if _, seen := byArea[p.PlanningArea]; !seen {
			areas = append(areas, p.PlanningArea)
		}
		byArea[p.PlanningArea] = append(byArea[p.PlanningArea], p)
	}

	picked := make([]persona.Persona, 0, target)
	taken := make(map[string]struct{}, target)

	// Diversity phase: one pick per area, areas in random order.
	s.rnd.Shuffle(len(areas), func(i, j int) { areas[i], areas[j] = areas[j], areas[i] })
	for _, area := range areas {
		if len(picked) == target {
			break
		}
		group := byArea[area]
		p := group[s.rnd.Intn(len(group))]
		if _, ok := taken[p.ID]; ok {
			continue
		}
		picked = append(picked, p)
		taken[p.ID] = struct{}{}
	}

	if len(picked) == target {
		return picked
	}

	// Fill phase: uniform draw without replacement from the rest.
	remaining := make([]persona.Persona, 0, len(candidates)-len(picked))
	for _, p := range candidates {
		if _, ok := taken[p.ID]; !ok {
			remaining = append(remaining, p)
		}
	}
	s.rnd.Shuffle(len(remaining), func(i, j int) { remaining[i], remaining[j] = remaining[j], remaining[i] })
	for _, p := range remaining {
		if len(picked) == target {
			break
		}
		if _, ok := taken[p.ID]; ok {
			continue
		}
		picked = append(picked, p)
		taken[p.ID] = struct{}{}
	}

	return picked
}

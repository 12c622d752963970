package engine

import (
	"fmt"

	"github.com/talgya/flatten-sim/internal/entropy"
	"github.com/talgya/flatten-sim/internal/health"
	"github.com/talgya/flatten-sim/internal/schedule"
	"github.com/talgya/flatten-sim/internal/world"
)

// ExposureConfig controls how outings turn into destination exposure.
type ExposureConfig struct {
	// Multipliers scale an infectious visitor's weight per activity.
	Multipliers [schedule.NumActivities]float64

	// GatheringDestinations is how many distinct destinations a gathering
	// day touches.
	GatheringDestinations int

	// SymptomaticOutingProbability is the daily chance a symptomatic
	// person keeps their schedule instead of staying home.
	SymptomaticOutingProbability float64
}

// DefaultExposureConfig weights leisure and gatherings above errands and work.
func DefaultExposureConfig() ExposureConfig {
	return ExposureConfig{
		Multipliers: [schedule.NumActivities]float64{
			schedule.Essentials: 1.0,
			schedule.Work:       1.0,
			schedule.Leisure:    1.5,
			schedule.Gathering:  2.0,
		},
		GatheringDestinations:        3,
		SymptomaticOutingProbability: 0.5,
	}
}

// Validate checks the exposure parameters.
func (c ExposureConfig) Validate() error {
	for a, m := range c.Multipliers {
		if m < 0 {
			return fmt.Errorf("%s multiplier must be non-negative, got %f", schedule.Activity(a), m)
		}
	}
	if c.GatheringDestinations < 1 {
		return fmt.Errorf("gathering destinations must be positive, got %d", c.GatheringDestinations)
	}
	if c.SymptomaticOutingProbability < 0 || c.SymptomaticOutingProbability > 1 {
		return fmt.Errorf("symptomatic outing probability must be in [0, 1], got %f", c.SymptomaticOutingProbability)
	}
	return nil
}

// travel fills in each record's visits for the weekday from the track's
// schedules and the person's reachable destinations.
func (s *Simulation) travel(t *Track, next []DayRecord, weekday int, src *entropy.Source) {
	people := s.World.Population.People
	for i := range next {
		rec := &next[i]
		if !s.goesOut(rec, src) {
			continue
		}
		home := s.World.Graph.Home(people[i].Household)
		if len(home.Reachable) == 0 {
			continue
		}
		sched := t.schedules[i]
		for a := schedule.Activity(0); a < schedule.NumActivities; a++ {
			if !sched.On(a, weekday) {
				continue
			}
			k := 1
			if a == schedule.Gathering {
				k = s.opts.Exposure.GatheringDestinations
			}
			for _, d := range pickDistinct(home.Reachable, k, src) {
				rec.Visits = append(rec.Visits, Visit{Activity: a, Destination: d})
			}
		}
	}
}

// goesOut applies the stay-home rules. Only symptomatic people consume a draw.
func (s *Simulation) goesOut(rec *DayRecord, src *entropy.Source) bool {
	switch rec.Health {
	case health.Hospitalized, health.Deceased:
		return false
	case health.Symptomatic:
		return src.Bernoulli(s.opts.Exposure.SymptomaticOutingProbability)
	}
	return true
}

// pickDistinct draws min(k, len(from)) distinct destinations.
func pickDistinct(from []world.DestinationID, k int, src *entropy.Source) []world.DestinationID {
	if k > len(from) {
		k = len(from)
	}
	if k == 1 {
		return []world.DestinationID{from[src.Intn(len(from))]}
	}
	picked := make([]world.DestinationID, 0, k)
	for len(picked) < k {
		d := from[src.Intn(len(from))]
		dup := false
		for _, p := range picked {
			if p == d {
				dup = true
				break
			}
		}
		if !dup {
			picked = append(picked, d)
		}
	}
	return picked
}

// householdLoad sums the previous day's infectious weight per household.
func (s *Simulation) householdLoad(prev []DayRecord) []float64 {
	people := s.World.Population.People
	load := make([]float64, len(s.World.Population.Households))
	for i, pr := range prev {
		if pr.Infectious > 0 {
			load[people[i].Household] += pr.Infectious
		}
	}
	return load
}

// destinationLoad sums today's infectious visitors per destination, scaled
// by the activity multiplier.
func (s *Simulation) destinationLoad(next []DayRecord) []float64 {
	load := make([]float64, len(s.World.Graph.Destinations))
	for _, rec := range next {
		if rec.Infectious <= 0 {
			continue
		}
		for _, v := range rec.Visits {
			load[v.Destination] += rec.Infectious * s.opts.Exposure.Multipliers[v.Activity]
		}
	}
	return load
}

package engine

import (
	"math"

	"github.com/talgya/flatten-sim/internal/entropy"
	"github.com/talgya/flatten-sim/internal/health"
)

// resolve infects healthy people from the household and destination loads.
// Both loads are tallied before anyone is infected, so people infected today
// do not spread until their clock reaches the infectious window.
func (s *Simulation) resolve(prev, next []DayRecord, src *entropy.Source) {
	people := s.World.Population.People
	household := s.householdLoad(prev)
	destination := s.destinationLoad(next)

	for i := range next {
		rec := &next[i]
		if rec.Health != health.Healthy {
			continue
		}
		exposure := household[people[i].Household]
		for _, v := range rec.Visits {
			exposure += destination[v.Destination]
		}
		if exposure <= 0 {
			continue
		}
		if src.Float() < InfectionProbability(people[i].Susceptibility, exposure) {
			rec.DaysSinceInfection = 1
			rec.Health = health.Asymptomatic
			rec.Infectious = 0
		}
	}
}

// InfectionProbability is 1 - (1 - susceptibility)^exposure.
func InfectionProbability(susceptibility, exposure float64) float64 {
	if exposure <= 0 || susceptibility <= 0 {
		return 0
	}
	if susceptibility >= 1 {
		return 1
	}
	return 1 - math.Pow(1-susceptibility, exposure)
}

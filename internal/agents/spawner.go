// Population spawning: builds households, assigns ages without replacement
// from the bracket targets and draws each person's destiny flags.
package agents

import (
	"fmt"

	"github.com/talgya/flatten-sim/internal/entropy"
	"github.com/talgya/flatten-sim/internal/health"
)

// SpawnConfig controls household sizing.
type SpawnConfig struct {
	HouseholdMin int `json:"household_min" yaml:"household_min"`
	HouseholdMax int `json:"household_max" yaml:"household_max"`
}

// DefaultSpawnConfig returns households of 2–5 people.
func DefaultSpawnConfig() SpawnConfig {
	return SpawnConfig{HouseholdMin: 2, HouseholdMax: 5}
}

// Validate checks the household size range.
func (c SpawnConfig) Validate() error {
	if c.HouseholdMin < 1 || c.HouseholdMax < c.HouseholdMin {
		return fmt.Errorf("household size range [%d, %d] is invalid", c.HouseholdMin, c.HouseholdMax)
	}
	return nil
}

// SusceptibilityField scales a person's base susceptibility by where their
// household sits. A nil field leaves susceptibility at the bracket rate.
type SusceptibilityField interface {
	Modifier(h HouseholdID) float64
}

// Spawner creates the population for a session.
type Spawner struct {
	src      *entropy.Source
	clinical ClinicalTable
	cfg      SpawnConfig
	field    SusceptibilityField
}

// NewSpawner creates a spawner drawing from src.
func NewSpawner(src *entropy.Source, clinical ClinicalTable, cfg SpawnConfig, field SusceptibilityField) *Spawner {
	return &Spawner{src: src, clinical: clinical, cfg: cfg, field: field}
}

// Spawn builds a population matching the demographics.
func (s *Spawner) Spawn(demo Demographics) (*Population, error) {
	if err := demo.Validate(); err != nil {
		return nil, err
	}
	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}
	if err := s.clinical.Validate(); err != nil {
		return nil, err
	}

	remaining := demo.Normalized()
	left := demo.Total

	pop := &Population{
		Region:     demo.Region,
		People:     make([]Person, 0, demo.Total),
		Households: make([]Household, 0, demo.Total/s.cfg.HouseholdMin+1),
	}

	for left > 0 {
		size := s.src.IntRange(s.cfg.HouseholdMin, s.cfg.HouseholdMax)
		if size > left {
			size = left
		}

		hid := HouseholdID(len(pop.Households))
		house := Household{ID: hid, Members: make([]PersonID, 0, size)}
		for i := 0; i < size; i++ {
			p := s.spawnOne(PersonID(len(pop.People)), hid, &remaining, left)
			pop.People = append(pop.People, p)
			house.Members = append(house.Members, p.ID)
			left--
		}
		pop.Households = append(pop.Households, house)
	}

	return pop, nil
}

func (s *Spawner) spawnOne(id PersonID, hid HouseholdID, remaining *[NumBrackets]int, left int) Person {
	bracket := s.drawBracket(remaining, left)
	age := BracketMinAge(bracket) + s.src.Intn(BracketWidth)
	rates := s.clinical[bracket]

	destiny := health.Destiny{
		Symptomatic:           s.src.Bernoulli(rates.Symptomatic),
		HospitalIfSymptomatic: s.src.Bernoulli(rates.HospitalIfSymptomatic),
		DieIfHospitalized:     s.src.Bernoulli(rates.DieIfHospitalized),
		DieIfNotHospitalized:  s.src.Bernoulli(rates.DieIfNotHospitalized),
	}

	susc := rates.Susceptibility
	if s.field != nil {
		susc *= s.field.Modifier(hid)
	}

	return Person{
		ID:             id,
		Household:      hid,
		Age:            age,
		Bracket:        bracket,
		Destiny:        destiny,
		Susceptibility: clampOpen(susc),
	}
}

// drawBracket picks a bracket weighted by how many slots it has left and
// consumes one slot. left is the sum of remaining.
func (s *Spawner) drawBracket(remaining *[NumBrackets]int, left int) int {
	r := s.src.Intn(left)
	for b, n := range remaining {
		if r < n {
			remaining[b]--
			return b
		}
		r -= n
	}
	// Unreachable while left equals the sum of remaining.
	for b := NumBrackets - 1; b >= 0; b-- {
		if remaining[b] > 0 {
			remaining[b]--
			return b
		}
	}
	return NumBrackets - 1
}

const minSusceptibility = 1e-6

func clampOpen(v float64) float64 {
	if v < minSusceptibility {
		return minSusceptibility
	}
	if v > 1-minSusceptibility {
		return 1 - minSusceptibility
	}
	return v
}

// Package agents provides the person/household data model, the clinical
// rate table and the population spawner.
package agents

import (
	"fmt"

	"github.com/talgya/flatten-sim/internal/health"
)

// PersonID indexes Population.People.
type PersonID int

// HouseholdID indexes Population.Households.
type HouseholdID int

// NumBrackets is the number of 20-year age brackets (0–19 … 80–99).
const NumBrackets = 5

// BracketWidth is the span of one age bracket in years.
const BracketWidth = 20

// BracketKeys are the column names used by the population tables.
var BracketKeys = [NumBrackets]string{"0", "20", "40", "60", "80"}

// BracketMinAge returns the youngest age in bracket b.
func BracketMinAge(b int) int {
	return b * BracketWidth
}

// BracketOf returns the bracket containing age.
func BracketOf(age int) int {
	b := age / BracketWidth
	if b < 0 {
		return 0
	}
	if b >= NumBrackets {
		return NumBrackets - 1
	}
	return b
}

// Person is one simulated individual. Nothing on a Person changes after the
// spawner creates it; per-day state lives in the engine's day records.
type Person struct {
	ID             PersonID       `json:"id"`
	Household      HouseholdID    `json:"household"`
	Age            int            `json:"age"`
	Bracket        int            `json:"bracket"`
	Destiny        health.Destiny `json:"destiny"`
	Susceptibility float64        `json:"susceptibility"` // per unit of exposure, in (0,1)
}

// Household is a group of people sharing overnight exposure.
type Household struct {
	ID      HouseholdID `json:"id"`
	Members []PersonID  `json:"members"`
}

// Demographics is the population target for a region.
type Demographics struct {
	Region   string           `json:"region"`
	Total    int              `json:"total"`
	Brackets [NumBrackets]int `json:"brackets"`
}

// Validate checks that the demographics can seed a population.
func (d Demographics) Validate() error {
	if d.Total <= 0 {
		return fmt.Errorf("region %q: population must be positive, got %d", d.Region, d.Total)
	}
	sum := 0
	for i, n := range d.Brackets {
		if n < 0 {
			return fmt.Errorf("region %q: bracket %s count is negative", d.Region, BracketKeys[i])
		}
		sum += n
	}
	if sum == 0 {
		return fmt.Errorf("region %q: no people in any age bracket", d.Region)
	}
	return nil
}

// Normalized rescales the bracket counts so they sum to Total, distributing
// rounding by largest remainder.
func (d Demographics) Normalized() [NumBrackets]int {
	sum := 0
	for _, n := range d.Brackets {
		sum += n
	}
	if sum == d.Total || sum == 0 {
		return d.Brackets
	}

	var out [NumBrackets]int
	var rem [NumBrackets]float64
	assigned := 0
	for i, n := range d.Brackets {
		exact := float64(n) * float64(d.Total) / float64(sum)
		out[i] = int(exact)
		rem[i] = exact - float64(out[i])
		assigned += out[i]
	}
	for assigned < d.Total {
		best := 0
		for i := 1; i < NumBrackets; i++ {
			if rem[i] > rem[best] {
				best = i
			}
		}
		out[best]++
		rem[best] = -1
		assigned++
	}
	return out
}

// Population is the immutable set of people and households for a session.
type Population struct {
	Region     string      `json:"region"`
	People     []Person    `json:"people"`
	Households []Household `json:"households"`
}

// Size returns the number of people.
func (p *Population) Size() int {
	return len(p.People)
}

// BracketCounts tallies people per age bracket.
func (p *Population) BracketCounts() [NumBrackets]int {
	var counts [NumBrackets]int
	for i := range p.People {
		counts[p.People[i].Bracket]++
	}
	return counts
}

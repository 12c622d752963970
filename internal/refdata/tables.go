// Package refdata holds the already-parsed regional reference tables and the
// lookups the simulation needs from them: a region's demographics and its
// hospital bed count.
package refdata

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/talgya/flatten-sim/internal/agents"
)

var (
	// ErrNoDataForRegion means the region is missing or has no population.
	ErrNoDataForRegion = errors.New("no data for region")

	// ErrZeroPopulation means a beds-per-person denominator was zero.
	ErrZeroPopulation = errors.New("zero population denominator")
)

// PopulationRow is one region's population by age bracket.
type PopulationRow struct {
	Region   string
	County   string
	Total    int
	Brackets [agents.NumBrackets]int
}

// HospitalRow is one hospital's bed count and the region it sits in.
type HospitalRow struct {
	Region string
	Beds   int
}

// Tables bundles the reference data for lookups.
type Tables struct {
	Population []PopulationRow
	Hospitals  []HospitalRow
}

func normalizeRegion(id string) string {
	return strings.TrimSpace(id)
}

// Row returns the population row for region.
func (t *Tables) Row(region string) (PopulationRow, error) {
	region = normalizeRegion(region)
	for _, r := range t.Population {
		if r.Region == region {
			if r.Total <= 0 {
				return PopulationRow{}, fmt.Errorf("region %q: %w", region, ErrNoDataForRegion)
			}
			return r, nil
		}
	}
	return PopulationRow{}, fmt.Errorf("region %q: %w", region, ErrNoDataForRegion)
}

// Demographics returns the population target for region.
func (t *Tables) Demographics(region string) (agents.Demographics, error) {
	row, err := t.Row(region)
	if err != nil {
		return agents.Demographics{}, err
	}
	return agents.Demographics{Region: row.Region, Total: row.Total, Brackets: row.Brackets}, nil
}

// CapacityLookup is a closed set of strategies for finding a region's bed
// count. Implementations: ByRegion, ByCounty, ByRatio.
type CapacityLookup interface {
	beds(t *Tables, row PopulationRow) (int, error)
	String() string
}

// ByRegion counts the beds of hospitals located in the region itself.
type ByRegion struct{}

func (ByRegion) String() string { return "region" }

func (ByRegion) beds(t *Tables, row PopulationRow) (int, error) {
	total := 0
	for _, h := range t.Hospitals {
		if h.Region == row.Region {
			total += h.Beds
		}
	}
	return total, nil
}

// ByCounty scales the county's beds-per-person ratio to the region's
// population, so regions without a hospital still get a share of nearby beds.
type ByCounty struct{}

func (ByCounty) String() string { return "county" }

func (ByCounty) beds(t *Tables, row PopulationRow) (int, error) {
	if row.County == "" {
		return 0, fmt.Errorf("region %q has no county for county capacity lookup", row.Region)
	}
	inCounty := make(map[string]bool)
	countyPop := 0
	for _, r := range t.Population {
		if r.County == row.County {
			inCounty[r.Region] = true
			countyPop += r.Total
		}
	}
	if countyPop <= 0 {
		return 0, fmt.Errorf("county %q: %w", row.County, ErrZeroPopulation)
	}
	countyBeds := 0
	for _, h := range t.Hospitals {
		if inCounty[h.Region] {
			countyBeds += h.Beds
		}
	}
	perPerson := float64(countyBeds) / float64(countyPop)
	return int(math.Floor(float64(row.Total) * perPerson)), nil
}

// ByRatio assumes a fixed number of beds per thousand people.
type ByRatio struct {
	BedsPerThousand float64
}

func (r ByRatio) String() string { return fmt.Sprintf("ratio(%g/1000)", r.BedsPerThousand) }

func (r ByRatio) beds(_ *Tables, row PopulationRow) (int, error) {
	if r.BedsPerThousand < 0 {
		return 0, fmt.Errorf("beds per thousand must be non-negative, got %f", r.BedsPerThousand)
	}
	return int(math.Floor(float64(row.Total) * r.BedsPerThousand / 1000)), nil
}

// ParseCapacityLookup maps a config strategy name to a lookup.
func ParseCapacityLookup(strategy string, bedsPerThousand float64) (CapacityLookup, error) {
	switch strings.ToLower(strategy) {
	case "", "county":
		return ByCounty{}, nil
	case "region":
		return ByRegion{}, nil
	case "ratio":
		if bedsPerThousand <= 0 {
			return nil, fmt.Errorf("ratio capacity lookup needs beds_per_thousand > 0")
		}
		return ByRatio{BedsPerThousand: bedsPerThousand}, nil
	default:
		return nil, fmt.Errorf("unknown capacity strategy %q (valid: county, region, ratio)", strategy)
	}
}

// TotalBeds returns the region's hospital beds using lookup.
func (t *Tables) TotalBeds(region string, lookup CapacityLookup) (int, error) {
	row, err := t.Row(region)
	if err != nil {
		return 0, err
	}
	beds, err := lookup.beds(t, row)
	if err != nil {
		return 0, fmt.Errorf("%s capacity lookup: %w", lookup, err)
	}
	return beds, nil
}

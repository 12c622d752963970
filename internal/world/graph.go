// Package world builds the contact topology: destinations, locality groups
// and the set of destinations each household can reach.
package world

import (
	"fmt"
	"math"
	"sort"

	"github.com/talgya/flatten-sim/internal/agents"
	"github.com/talgya/flatten-sim/internal/entropy"
)

// DestinationID indexes Graph.Destinations.
type DestinationID int

// Destination is a synthetic place people visit outside the household.
type Destination struct {
	ID    DestinationID `json:"id"`
	Group int           `json:"group"`
}

// Locality is a household's place in the graph.
type Locality struct {
	Group     int             `json:"group"`
	Reachable []DestinationID `json:"reachable"` // sorted, no duplicates
}

// GraphConfig controls destination density and long-range bridges.
type GraphConfig struct {
	DestinationsPerPerson float64 `json:"destinations_per_person" yaml:"destinations_per_person"`
	DestinationsPerGroup  int     `json:"destinations_per_group" yaml:"destinations_per_group"`
	BridgeMinOffset       int     `json:"bridge_min_offset" yaml:"bridge_min_offset"`
	BridgeMaxOffset       int     `json:"bridge_max_offset" yaml:"bridge_max_offset"`
	BridgesPerGroup       int     `json:"bridges_per_group" yaml:"bridges_per_group"`
}

// DefaultGraphConfig returns one destination per 20 people, seven per group
// and one bridge into each of the groups two to four ahead.
func DefaultGraphConfig() GraphConfig {
	return GraphConfig{
		DestinationsPerPerson: 0.05,
		DestinationsPerGroup:  7,
		BridgeMinOffset:       2,
		BridgeMaxOffset:       4,
		BridgesPerGroup:       1,
	}
}

// Validate checks the graph parameters.
func (c GraphConfig) Validate() error {
	if c.DestinationsPerPerson <= 0 || c.DestinationsPerPerson > 1 {
		return fmt.Errorf("destinations_per_person must be in (0, 1], got %f", c.DestinationsPerPerson)
	}
	if c.DestinationsPerGroup < 1 {
		return fmt.Errorf("destinations_per_group must be positive, got %d", c.DestinationsPerGroup)
	}
	if c.BridgeMinOffset < 1 || c.BridgeMaxOffset < c.BridgeMinOffset {
		return fmt.Errorf("bridge offsets [%d, %d] are invalid", c.BridgeMinOffset, c.BridgeMaxOffset)
	}
	if c.BridgesPerGroup < 0 {
		return fmt.Errorf("bridges_per_group must be non-negative, got %d", c.BridgesPerGroup)
	}
	return nil
}

// Graph is the immutable contact topology for a session.
type Graph struct {
	Destinations []Destination `json:"destinations"`
	Groups       int           `json:"groups"`
	Homes        []Locality    `json:"homes"` // indexed by agents.HouseholdID

	groupDest [][]DestinationID
}

// Home returns the locality of household h.
func (g *Graph) Home(h agents.HouseholdID) *Locality {
	return &g.Homes[h]
}

// GroupDestinations returns the destinations belonging to group.
func (g *Graph) GroupDestinations(group int) []DestinationID {
	return g.groupDest[group]
}

// Build partitions destinations and households into locality groups and
// links each household to its own group plus a few bridged groups ahead.
func Build(pop *agents.Population, cfg GraphConfig, src *entropy.Source) (*Graph, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if pop.Size() == 0 || len(pop.Households) == 0 {
		return nil, fmt.Errorf("build graph: empty population")
	}

	numDest := int(math.Floor(cfg.DestinationsPerPerson * float64(pop.Size())))
	if numDest < 1 {
		numDest = 1
	}
	numGroups := (numDest + cfg.DestinationsPerGroup - 1) / cfg.DestinationsPerGroup
	housesPerGroup := (len(pop.Households) + numGroups - 1) / numGroups

	g := &Graph{
		Destinations: make([]Destination, numDest),
		Groups:       numGroups,
		Homes:        make([]Locality, len(pop.Households)),
		groupDest:    make([][]DestinationID, numGroups),
	}
	for i := range g.Destinations {
		group := i / cfg.DestinationsPerGroup
		g.Destinations[i] = Destination{ID: DestinationID(i), Group: group}
		g.groupDest[group] = append(g.groupDest[group], DestinationID(i))
	}

	for h := range pop.Households {
		group := h / housesPerGroup
		if group >= numGroups {
			group = numGroups - 1
		}
		g.Homes[h] = Locality{
			Group:     group,
			Reachable: g.reachable(group, cfg, src),
		}
	}

	return g, nil
}

func (g *Graph) reachable(group int, cfg GraphConfig, src *entropy.Source) []DestinationID {
	own := g.groupDest[group]
	set := make(map[DestinationID]struct{}, len(own)+cfg.BridgesPerGroup*(cfg.BridgeMaxOffset-cfg.BridgeMinOffset+1))
	for _, d := range own {
		set[d] = struct{}{}
	}

	for off := cfg.BridgeMinOffset; off <= cfg.BridgeMaxOffset; off++ {
		target := (group + off) % g.Groups
		if target == group {
			continue
		}
		pool := g.groupDest[target]
		for i := 0; i < cfg.BridgesPerGroup; i++ {
			set[pool[src.Intn(len(pool))]] = struct{}{}
		}
	}

	out := make([]DestinationID, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Stats summarizes the topology for logging.
type Stats struct {
	Destinations  int     `json:"destinations"`
	Groups        int     `json:"groups"`
	AvgReachable  float64 `json:"avg_reachable"`
	BridgedHomes  int     `json:"bridged_homes"`
	CrossGroupPct float64 `json:"cross_group_pct"`
}

// Summarize counts how many reachable links leave the household's group.
func (g *Graph) Summarize() Stats {
	s := Stats{Destinations: len(g.Destinations), Groups: g.Groups}
	if len(g.Homes) == 0 {
		return s
	}
	links, cross := 0, 0
	for _, home := range g.Homes {
		bridged := false
		for _, d := range home.Reachable {
			links++
			if g.Destinations[d].Group != home.Group {
				cross++
				bridged = true
			}
		}
		if bridged {
			s.BridgedHomes++
		}
	}
	s.AvgReachable = float64(links) / float64(len(g.Homes))
	if links > 0 {
		s.CrossGroupPct = 100 * float64(cross) / float64(links)
	}
	return s
}

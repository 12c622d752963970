// Session setup: spawn the population, build the contact graph and size the
// hospital once, so every track shares the same starting world.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/talgya/flatten-sim/internal/agents"
	"github.com/talgya/flatten-sim/internal/entropy"
	"github.com/talgya/flatten-sim/internal/world"
)

// Setup describes the world to generate for a session.
type Setup struct {
	Demographics agents.Demographics
	TotalBeds    int
	Clinical     agents.ClinicalTable
	Spawn        agents.SpawnConfig
	Graph        world.GraphConfig
	Field        world.FieldConfig
}

// World is the immutable shared state of a session.
type World struct {
	Region     string
	Population *agents.Population
	Graph      *world.Graph
	TotalBeds  int
}

// Generate spawns the population and builds its contact graph from src.
func Generate(setup Setup, src *entropy.Source) (*World, error) {
	if err := setup.Demographics.Validate(); err != nil {
		return nil, err
	}
	if err := setup.Clinical.Validate(); err != nil {
		return nil, fmt.Errorf("clinical table: %w", err)
	}
	if setup.TotalBeds < 0 {
		return nil, fmt.Errorf("total beds must be non-negative, got %d", setup.TotalBeds)
	}

	field := world.NewSusceptibilityField(src.Seed(), setup.Field)
	var modifier agents.SusceptibilityField
	if field != nil {
		modifier = field
	}

	pop, err := agents.NewSpawner(src, setup.Clinical, setup.Spawn, modifier).Spawn(setup.Demographics)
	if err != nil {
		return nil, fmt.Errorf("spawn population: %w", err)
	}

	graph, err := world.Build(pop, setup.Graph, src)
	if err != nil {
		return nil, fmt.Errorf("build contact graph: %w", err)
	}

	stats := graph.Summarize()
	slog.Info("world generated",
		"region", setup.Demographics.Region,
		"people", pop.Size(),
		"households", len(pop.Households),
		"destinations", len(graph.Destinations),
		"groups", graph.Groups,
		"avg_reachable", fmt.Sprintf("%.1f", stats.AvgReachable),
		"beds", setup.TotalBeds,
	)

	return &World{
		Region:     setup.Demographics.Region,
		Population: pop,
		Graph:      graph,
		TotalBeds:  setup.TotalBeds,
	}, nil
}

package world

import (
	"sort"
	"testing"

	"github.com/talgya/flatten-sim/internal/agents"
	"github.com/talgya/flatten-sim/internal/entropy"
)

func spawn(t *testing.T, total int) *agents.Population {
	t.Helper()
	demo := agents.Demographics{
		Region:   "test",
		Total:    total,
		Brackets: [agents.NumBrackets]int{total / 5, total / 5, total / 5, total / 5, total - 4*(total/5)},
	}
	pop, err := agents.NewSpawner(entropy.New(1), agents.DefaultClinicalTable(), agents.DefaultSpawnConfig(), nil).Spawn(demo)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	return pop
}

func TestBuildSizes(t *testing.T) {
	pop := spawn(t, 2000)
	g, err := Build(pop, DefaultGraphConfig(), entropy.New(2))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(g.Destinations) != 100 {
		t.Errorf("destinations = %d, want 100", len(g.Destinations))
	}
	if g.Groups != 15 {
		t.Errorf("groups = %d, want 15", g.Groups)
	}
	if len(g.Homes) != len(pop.Households) {
		t.Errorf("homes = %d, want %d", len(g.Homes), len(pop.Households))
	}
}

func TestReachableIsOwnGroupPlusBridges(t *testing.T) {
	pop := spawn(t, 2000)
	cfg := DefaultGraphConfig()
	g, err := Build(pop, cfg, entropy.New(3))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	for h, home := range g.Homes {
		if !sort.SliceIsSorted(home.Reachable, func(i, j int) bool { return home.Reachable[i] < home.Reachable[j] }) {
			t.Fatalf("household %d reachable set not sorted", h)
		}
		inSet := make(map[DestinationID]bool)
		for _, d := range home.Reachable {
			if inSet[d] {
				t.Fatalf("household %d reaches destination %d twice", h, d)
			}
			inSet[d] = true
		}
		for _, d := range g.GroupDestinations(home.Group) {
			if !inSet[d] {
				t.Fatalf("household %d misses own-group destination %d", h, d)
			}
		}

		foreign := 0
		for _, d := range home.Reachable {
			dg := g.Destinations[d].Group
			if dg == home.Group {
				continue
			}
			foreign++
			ahead := (dg - home.Group + g.Groups) % g.Groups
			if ahead < cfg.BridgeMinOffset || ahead > cfg.BridgeMaxOffset {
				t.Fatalf("household %d bridges %d groups ahead", h, ahead)
			}
		}
		maxForeign := cfg.BridgesPerGroup * (cfg.BridgeMaxOffset - cfg.BridgeMinOffset + 1)
		if foreign == 0 || foreign > maxForeign {
			t.Fatalf("household %d has %d bridged destinations, want 1..%d", h, foreign, maxForeign)
		}
	}
}

func TestBuildGroupsAreContiguous(t *testing.T) {
	pop := spawn(t, 1000)
	g, err := Build(pop, DefaultGraphConfig(), entropy.New(4))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	prev := 0
	for h, home := range g.Homes {
		if home.Group < prev {
			t.Fatalf("household %d group %d after group %d", h, home.Group, prev)
		}
		prev = home.Group
	}
}

func TestBuildTinyPopulation(t *testing.T) {
	pop := spawn(t, 10)
	g, err := Build(pop, DefaultGraphConfig(), entropy.New(5))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(g.Destinations) != 1 || g.Groups != 1 {
		t.Errorf("got %d destinations in %d groups, want 1 in 1", len(g.Destinations), g.Groups)
	}
	for h, home := range g.Homes {
		if len(home.Reachable) != 1 {
			t.Errorf("household %d reaches %d destinations, want 1", h, len(home.Reachable))
		}
	}
}

func TestGraphConfigValidate(t *testing.T) {
	bad := DefaultGraphConfig()
	bad.BridgeMaxOffset = 1
	if err := bad.Validate(); err == nil {
		t.Error("expected error when max offset is below min offset")
	}
	bad = DefaultGraphConfig()
	bad.DestinationsPerGroup = 0
	if err := bad.Validate(); err == nil {
		t.Error("expected error for zero destinations per group")
	}
}

func TestSummarize(t *testing.T) {
	pop := spawn(t, 2000)
	g, _ := Build(pop, DefaultGraphConfig(), entropy.New(6))
	s := g.Summarize()
	if s.BridgedHomes != len(g.Homes) {
		t.Errorf("bridged homes = %d, want all %d", s.BridgedHomes, len(g.Homes))
	}
	if s.CrossGroupPct <= 0 || s.CrossGroupPct >= 50 {
		t.Errorf("cross group links = %.1f%%, want a small minority", s.CrossGroupPct)
	}
}

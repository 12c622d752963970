// Simulation ties the shared world to its decision tracks and steps them
// forward one day at a time.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/talgya/flatten-sim/internal/agents"
	"github.com/talgya/flatten-sim/internal/entropy"
	"github.com/talgya/flatten-sim/internal/health"
	"github.com/talgya/flatten-sim/internal/schedule"
)

// Options tunes the infection model and lists the tracks to run.
type Options struct {
	Weights      health.Weights
	Exposure     ExposureConfig
	BedOccupancy float64
	Policies     []schedule.Policy

	// InitialInfections are drawn at random when Seeded is empty.
	InitialInfections int
	Seeded            []agents.PersonID

	// Parallel steps tracks concurrently. Results are identical either way.
	Parallel bool
}

// DefaultOptions returns the standard model with no tracks.
func DefaultOptions() Options {
	return Options{
		Weights:           health.DefaultWeights(),
		Exposure:          DefaultExposureConfig(),
		BedOccupancy:      DefaultBedOccupancy,
		InitialInfections: 1,
	}
}

// Validate checks the model parameters.
func (o Options) Validate() error {
	if err := o.Weights.Validate(); err != nil {
		return err
	}
	if err := o.Exposure.Validate(); err != nil {
		return err
	}
	if o.BedOccupancy < 0 || o.BedOccupancy > 1 {
		return fmt.Errorf("bed occupancy must be in [0, 1], got %f", o.BedOccupancy)
	}
	if len(o.Policies) == 0 {
		return errors.New("at least one track is required")
	}
	seen := make(map[string]bool, len(o.Policies))
	for _, p := range o.Policies {
		if seen[p.Name()] {
			return fmt.Errorf("duplicate track name %q", p.Name())
		}
		seen[p.Name()] = true
	}
	if o.InitialInfections < 0 {
		return fmt.Errorf("initial infections must be non-negative, got %d", o.InitialInfections)
	}
	return nil
}

// Simulation is one game session: a shared world and its tracks.
type Simulation struct {
	World    *World
	Tracks   []*Track
	Day      int // Last committed day
	Capacity int // Beds available to the epidemic

	opts Options
	src  *entropy.Source
}

// NewSimulation seeds day 1 on every track. The initial infections are the
// same people on every track.
func NewSimulation(w *World, src *entropy.Source, opts Options) (*Simulation, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	s := &Simulation{
		World:    w,
		Capacity: AvailableBeds(w.TotalBeds, opts.BedOccupancy),
		opts:     opts,
		src:      src,
	}

	seeded, err := s.pickSeeds()
	if err != nil {
		return nil, err
	}

	n := w.Population.Size()
	for _, p := range opts.Policies {
		s.Tracks = append(s.Tracks, newTrack(p, n))
	}

	for i, t := range s.Tracks {
		t.plan(0, src.Derive())
		day1 := make([]DayRecord, n)
		for _, id := range seeded {
			day1[id] = DayRecord{DaysSinceInfection: 1, Health: health.Asymptomatic}
		}
		t.commit(day1, Aggregate(1, nil, day1))
		slog.Debug("track seeded", "track", t.Name, "index", i, "infections", len(seeded))
	}
	s.Day = 1

	slog.Info("simulation created",
		"region", w.Region,
		"people", n,
		"tracks", len(s.Tracks),
		"capacity", s.Capacity,
		"seeded", len(seeded),
	)
	return s, nil
}

func (s *Simulation) pickSeeds() ([]agents.PersonID, error) {
	n := s.World.Population.Size()
	if len(s.opts.Seeded) > 0 {
		for _, id := range s.opts.Seeded {
			if int(id) < 0 || int(id) >= n {
				return nil, fmt.Errorf("seeded person %d outside population of %d", id, n)
			}
		}
		return s.opts.Seeded, nil
	}

	k := s.opts.InitialInfections
	if k > n {
		k = n
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	// Partial Fisher-Yates over the first k slots.
	for i := 0; i < k; i++ {
		j := i + s.src.Intn(n-i)
		order[i], order[j] = order[j], order[i]
	}
	ids := make([]agents.PersonID, k)
	for i := range ids {
		ids[i] = agents.PersonID(order[i])
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Seed returns the session's root seed.
func (s *Simulation) Seed() int64 {
	return s.src.Seed()
}

// Track returns the named track, or nil.
func (s *Simulation) Track(name string) *Track {
	for _, t := range s.Tracks {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// StepDay produces the next day on every track. Each track draws from its
// own source, derived from the session source in track order, so parallel
// and sequential stepping give the same results.
func (s *Simulation) StepDay(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	day := s.Day + 1
	sources := make([]*entropy.Source, len(s.Tracks))
	for i := range s.Tracks {
		sources[i] = s.src.Derive()
	}

	if s.opts.Parallel && len(s.Tracks) > 1 {
		var g errgroup.Group
		for i, t := range s.Tracks {
			g.Go(func() error {
				s.stepTrack(t, day, sources[i])
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return fmt.Errorf("step day %d: %w", day, err)
		}
	} else {
		for i, t := range s.Tracks {
			s.stepTrack(t, day, sources[i])
		}
	}

	s.Day = day
	return nil
}

// stepTrack advances one track by one day.
func (s *Simulation) stepTrack(t *Track, day int, src *entropy.Source) {
	if week := WeekOf(day); week != t.week {
		t.plan(week, src)
	}

	prev := t.Latest()
	next, refused := s.progress(prev)
	s.travel(t, next, (day-1)%schedule.DaysPerWeek, src)
	s.resolve(prev, next, src)

	stats := Aggregate(day, prev, next)
	stats.NotAdmitted = refused
	t.commit(next, stats)
}

// progress advances every record's clock, evaluates its health and runs the
// hospital gate in person order.
func (s *Simulation) progress(prev []DayRecord) ([]DayRecord, int) {
	people := s.World.Population.People
	next := make([]DayRecord, len(prev))
	gate := newAdmissionGate(s.Capacity)

	for i, pr := range prev {
		switch {
		case pr.Health.Terminal():
			next[i] = DayRecord{DaysSinceInfection: pr.DaysSinceInfection, Health: pr.Health}
		case pr.DaysSinceInfection == 0:
			next[i] = DayRecord{}
		default:
			days := pr.DaysSinceInfection + 1
			code, weight := health.Evaluate(people[i].Destiny, days, pr.InHospital, s.opts.Weights)
			next[i] = DayRecord{DaysSinceInfection: days, Health: code, Infectious: weight}
			if code == health.Hospitalized && pr.InHospital {
				next[i].InHospital = true
				gate.hold()
			}
		}
	}

	for i := range next {
		if next[i].Health == health.Hospitalized && !next[i].InHospital {
			next[i].InHospital = gate.admit()
		}
	}
	return next, gate.refused
}

// Result is the summary of a session suitable for storage.
type Result struct {
	Seed       int64                   `json:"seed"`
	Region     string                  `json:"region"`
	Population int                     `json:"population"`
	Brackets   [agents.NumBrackets]int `json:"brackets"`
	TotalBeds  int                     `json:"total_beds"`
	Capacity   int                     `json:"capacity"`
	Days       int                     `json:"days"`
	Tracks     []TrackResult           `json:"tracks"`
}

// TrackResult is one track's decisions and daily stats.
type TrackResult struct {
	Name      string            `json:"name"`
	Decisions []schedule.Weekly `json:"decisions"`
	Stats     []DayStats        `json:"stats"`
}

// Final returns the last day's stats.
func (r TrackResult) Final() DayStats {
	if len(r.Stats) == 0 {
		return DayStats{}
	}
	return r.Stats[len(r.Stats)-1]
}

// Result snapshots the session. Per-person records are not included.
func (s *Simulation) Result() Result {
	r := Result{
		Seed:       s.Seed(),
		Region:     s.World.Region,
		Population: s.World.Population.Size(),
		TotalBeds:  s.World.TotalBeds,
		Capacity:   s.Capacity,
		Days:       s.Day,
		Brackets:   s.World.Population.BracketCounts(),
	}
	for _, t := range s.Tracks {
		r.Tracks = append(r.Tracks, TrackResult{
			Name:      t.Name,
			Decisions: append([]schedule.Weekly(nil), t.Decisions...),
			Stats:     append([]DayStats(nil), t.Stats...),
		})
	}
	return r
}

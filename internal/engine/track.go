package engine

import (
	"log/slog"

	"github.com/talgya/flatten-sim/internal/entropy"
	"github.com/talgya/flatten-sim/internal/health"
	"github.com/talgya/flatten-sim/internal/schedule"
	"github.com/talgya/flatten-sim/internal/world"
)

// Visit is one outing on one day.
type Visit struct {
	Activity    schedule.Activity   `json:"activity"`
	Destination world.DestinationID `json:"destination"`
}

// DayRecord is one person's state on one day of one track.
type DayRecord struct {
	DaysSinceInfection int         `json:"days_since_infection"`
	Health             health.Code `json:"health"`
	Infectious         float64     `json:"infectious"`
	InHospital         bool        `json:"in_hospital"`
	Visits             []Visit     `json:"visits,omitempty"` // empty when the person stayed home
}

// Track is one decision policy simulated over the shared population. Its
// records, schedules and tallies are never read by another track.
type Track struct {
	Name string

	policy schedule.Policy

	// Days[d-1] holds every person's record for day d. Appended, never
	// mutated after the day commits.
	Days  [][]DayRecord
	Stats []DayStats

	// Decisions[w] is the weekly decision the policy made for week w.
	Decisions []schedule.Weekly

	schedules []schedule.Schedule
	week      int
}

func newTrack(policy schedule.Policy, people int) *Track {
	return &Track{
		Name:      policy.Name(),
		policy:    policy,
		schedules: make([]schedule.Schedule, people),
		week:      -1,
	}
}

// Latest returns the most recent day's records.
func (t *Track) Latest() []DayRecord {
	if len(t.Days) == 0 {
		return nil
	}
	return t.Days[len(t.Days)-1]
}

// LatestStats returns the most recent day's stats.
func (t *Track) LatestStats() DayStats {
	if len(t.Stats) == 0 {
		return DayStats{}
	}
	return t.Stats[len(t.Stats)-1]
}

// plan asks the policy for the week's decision and expands it into a fresh
// randomized schedule for every person.
func (t *Track) plan(week int, src *entropy.Source) {
	decision := t.policy.Decide(week).Clamp()
	for i := range t.schedules {
		t.schedules[i] = schedule.Build(decision, src)
	}
	t.Decisions = append(t.Decisions, decision)
	t.week = week

	slog.Debug("weekly plan", "track", t.Name, "week", week+1, "decision", decision.String())
}

func (t *Track) commit(records []DayRecord, stats DayStats) {
	t.Days = append(t.Days, records)
	t.Stats = append(t.Stats, stats)
}

package engine

import (
	"testing"

	"github.com/talgya/flatten-sim/internal/agents"
	"github.com/talgya/flatten-sim/internal/health"
)

func TestAvailableBeds(t *testing.T) {
	tests := []struct {
		beds      int
		occupancy float64
		want      int
	}{
		{100, 0.66, 34},
		{1000, 0.66, 340},
		{7, 0.5, 3},
		{100, 0, 100},
		{100, 1, 0},
		{0, 0.66, 0},
		{100, 1.5, 0},
	}
	for _, tt := range tests {
		if got := AvailableBeds(tt.beds, tt.occupancy); got != tt.want {
			t.Errorf("AvailableBeds(%d, %v) = %d, want %d", tt.beds, tt.occupancy, got, tt.want)
		}
	}
}

// severeSim builds a bare simulation of n people who will all need a bed.
func severeSim(n int, destiny health.Destiny, capacity int) *Simulation {
	pop := &agents.Population{Region: "test"}
	for i := 0; i < n; i++ {
		pop.People = append(pop.People, agents.Person{ID: agents.PersonID(i), Destiny: destiny, Susceptibility: 0.05})
	}
	return &Simulation{
		World:    &World{Region: "test", Population: pop},
		Capacity: capacity,
		opts:     DefaultOptions(),
	}
}

func TestAdmissionGateCapacity(t *testing.T) {
	destiny := health.Destiny{Symptomatic: true, HospitalIfSymptomatic: true, DieIfNotHospitalized: true}
	s := severeSim(40, destiny, AvailableBeds(100, 0.66))

	prev := make([]DayRecord, 40)
	for i := range prev {
		prev[i] = DayRecord{DaysSinceInfection: 6, Health: health.Symptomatic, Infectious: 1}
	}
	next, refused := s.progress(prev)

	admitted := 0
	for i, rec := range next {
		if rec.Health != health.Hospitalized {
			t.Fatalf("person %d health = %s, want hospitalized", i, rec.Health)
		}
		if rec.InHospital {
			admitted++
			if i >= 34 {
				t.Errorf("person %d admitted out of order", i)
			}
		}
	}
	if admitted != 34 || refused != 6 {
		t.Errorf("admitted = %d, refused = %d, want 34 and 6", admitted, refused)
	}

	// Carry the same cohort to the terminal day: the refused six die.
	for day := 8; day <= 14; day++ {
		next, _ = s.progress(next)
	}
	for i, rec := range next {
		want := health.Recovered
		if i >= 34 {
			want = health.Deceased
		}
		if rec.Health != want {
			t.Errorf("person %d terminal health = %s, want %s", i, rec.Health, want)
		}
		if rec.InHospital {
			t.Errorf("person %d still in hospital after terminal day", i)
		}
	}
}

func TestAdmissionIsSticky(t *testing.T) {
	destiny := health.Destiny{Symptomatic: true, HospitalIfSymptomatic: true}
	s := severeSim(4, destiny, 2)

	prev := []DayRecord{
		{DaysSinceInfection: 8, Health: health.Hospitalized, Infectious: 1},
		{DaysSinceInfection: 8, Health: health.Hospitalized, Infectious: 1},
		{DaysSinceInfection: 8, Health: health.Hospitalized, Infectious: 1, InHospital: true},
		{DaysSinceInfection: 8, Health: health.Hospitalized, Infectious: 1, InHospital: true},
	}
	next, refused := s.progress(prev)
	if next[0].InHospital || next[1].InHospital {
		t.Error("lower ids took beds already held by earlier admissions")
	}
	if !next[2].InHospital || !next[3].InHospital {
		t.Error("admitted patients lost their beds")
	}
	if refused != 2 {
		t.Errorf("refused = %d, want 2", refused)
	}
}

func TestAdmissionGateBedsFreeUp(t *testing.T) {
	destiny := health.Destiny{Symptomatic: true, HospitalIfSymptomatic: true}
	s := severeSim(2, destiny, 1)

	prev := []DayRecord{
		{DaysSinceInfection: 13, Health: health.Hospitalized, Infectious: 1, InHospital: true},
		{DaysSinceInfection: 9, Health: health.Hospitalized, Infectious: 1},
	}
	next, _ := s.progress(prev)
	if next[0].Health != health.Recovered {
		t.Fatalf("person 0 health = %s, want recovered", next[0].Health)
	}
	if !next[1].InHospital {
		t.Error("freed bed was not given to the waiting patient")
	}
}

func TestSummaryCountsPeopleTurnedAway(t *testing.T) {
	destiny := health.Destiny{Symptomatic: true, HospitalIfSymptomatic: true, DieIfNotHospitalized: true}
	tests := []struct {
		name     string
		n        int
		capacity int
		want     int
	}{
		{"over capacity", 40, 34, 6},
		{"enough beds", 10, 10, 0},
		{"no beds", 5, 0, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := severeSim(tt.n, destiny, tt.capacity)
			prev := make([]DayRecord, tt.n)
			for i := range prev {
				prev[i] = DayRecord{DaysSinceInfection: 6, Health: health.Symptomatic, Infectious: 1}
			}

			var r TrackResult
			for day := 7; day <= 14; day++ {
				next, refused := s.progress(prev)
				st := Aggregate(day, prev, next)
				st.NotAdmitted = refused
				r.Stats = append(r.Stats, st)
				prev = next
			}

			if got := r.Summary().NotAdmitted; got != tt.want {
				t.Errorf("summary not admitted = %d, want %d", got, tt.want)
			}
			if tt.want > 0 && r.Stats[0].NotAdmitted != tt.want {
				t.Errorf("day 7 not admitted = %d, want %d", r.Stats[0].NotAdmitted, tt.want)
			}
		})
	}
}

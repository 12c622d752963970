package engine

import "github.com/talgya/flatten-sim/internal/health"

// DayStats aggregates one track's records for one day.
type DayStats struct {
	Day           int              `json:"day"`
	Histogram     health.Histogram `json:"histogram"`
	Infectious    int              `json:"infectious"`     // weight > 0
	InHospital    int              `json:"in_hospital"`    // admitted
	NotAdmitted   int              `json:"not_admitted"`   // hospitalized without a bed
	NewlyRefused  int              `json:"newly_refused"`  // first day without a bed
	NewInfections int              `json:"new_infections"` // clock started today
	NewAdmissions int              `json:"new_admissions"`
	NewDeaths     int              `json:"new_deaths"`
	EverInfected  int              `json:"ever_infected"`
	Outings       int              `json:"outings"`
}

// Aggregate summarizes next against prev. prev is nil for the seeded day.
func Aggregate(day int, prev, next []DayRecord) DayStats {
	st := DayStats{Day: day}
	for i, rec := range next {
		st.Histogram[rec.Health]++
		if rec.Infectious > 0 {
			st.Infectious++
		}
		if rec.InHospital {
			st.InHospital++
		}
		if rec.DaysSinceInfection > 0 {
			st.EverInfected++
		}
		st.Outings += len(rec.Visits)

		var before DayRecord
		if prev != nil {
			before = prev[i]
		}
		if rec.DaysSinceInfection > 0 && before.DaysSinceInfection == 0 {
			st.NewInfections++
		}
		if rec.InHospital && !before.InHospital {
			st.NewAdmissions++
		}
		if rec.Health == health.Deceased && before.Health != health.Deceased {
			st.NewDeaths++
		}
		if waiting(rec) && !waiting(before) {
			st.NewlyRefused++
		}
	}
	return st
}

// waiting reports a severe case the hospital has not admitted.
func waiting(rec DayRecord) bool {
	return rec.Health == health.Hospitalized && !rec.InHospital
}

// Hospitalized is the number of people in the Hospitalized state, admitted
// or not.
func (s DayStats) Hospitalized() int {
	return s.Histogram[health.Hospitalized]
}

// Deaths is the cumulative death count.
func (s DayStats) Deaths() int {
	return s.Histogram[health.Deceased]
}

// Peak returns the stats with the most people in the Hospitalized state.
func Peak(stats []DayStats) DayStats {
	var best DayStats
	for _, st := range stats {
		if st.Hospitalized() > best.Hospitalized() {
			best = st
		}
	}
	return best
}

// TrackSummary is the headline outcome of one track.
type TrackSummary struct {
	Name             string `json:"name"`
	Deaths           int    `json:"deaths"`
	Recovered        int    `json:"recovered"`
	EverInfected     int    `json:"ever_infected"`
	PeakHospitalized int    `json:"peak_hospitalized"`
	PeakDay          int    `json:"peak_day"`
	NotAdmitted      int    `json:"not_admitted"` // people ever refused a bed
}

// Summary condenses the track's stats.
func (r TrackResult) Summary() TrackSummary {
	final := r.Final()
	peak := Peak(r.Stats)
	s := TrackSummary{
		Name:             r.Name,
		Deaths:           final.Deaths(),
		Recovered:        final.Histogram[health.Recovered],
		EverInfected:     final.EverInfected,
		PeakHospitalized: peak.Hospitalized(),
		PeakDay:          peak.Day,
	}
	for _, st := range r.Stats {
		s.NotAdmitted += st.NewlyRefused
	}
	return s
}

package persistence

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/flatten-sim/internal/engine"
	"github.com/talgya/flatten-sim/internal/health"
	"github.com/talgya/flatten-sim/internal/schedule"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

var baseTime = time.Date(2020, 4, 1, 12, 0, 0, 0, time.UTC)

func testRun(team, region string, weeks int, minutes int) *Run {
	var hist health.Histogram
	hist[health.Healthy] = 990
	hist[health.Deceased] = 10
	return &Run{
		Team:      team,
		Region:    region,
		Weeks:     weeks,
		CreatedAt: baseTime.Add(time.Duration(minutes) * time.Minute),
		Result: engine.Result{
			Seed:       42,
			Region:     region,
			Population: 1000,
			TotalBeds:  100,
			Capacity:   34,
			Days:       weeks * 7,
			Tracks: []engine.TrackResult{{
				Name:      "actual",
				Decisions: []schedule.Weekly{{2, 5, 2, 1}},
				Stats:     []engine.DayStats{{Day: 1, Histogram: hist, NewDeaths: 10}},
			}},
		},
	}
}

func TestSaveAndGetRun(t *testing.T) {
	db := openTestDB(t)

	run := testRun(" Blue Herons ", "94110", 5, 0)
	if err := db.SaveRun(run); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if _, err := uuid.Parse(run.ID); err != nil {
		t.Errorf("assigned id %q is not a UUID: %v", run.ID, err)
	}
	if run.Team != "Blue Herons" || run.Locale != DefaultLocale {
		t.Errorf("SaveRun did not normalize team/locale: %+v", run)
	}

	got, err := db.GetRun(run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Team != "Blue Herons" || got.Region != "94110" || got.Weeks != 5 {
		t.Errorf("unexpected run %+v", got)
	}
	if !got.CreatedAt.Equal(baseTime) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, baseTime)
	}
	if got.Result.Capacity != 34 || len(got.Result.Tracks) != 1 {
		t.Fatalf("result not round-tripped: %+v", got.Result)
	}
	final := got.Result.Tracks[0].Final()
	if final.Deaths() != 10 || final.NewDeaths != 10 {
		t.Errorf("final stats = %+v", final)
	}
	if got.Result.Tracks[0].Decisions[0] != (schedule.Weekly{2, 5, 2, 1}) {
		t.Errorf("decisions = %v", got.Result.Tracks[0].Decisions)
	}

	last, err := db.GetMeta("last_run")
	if err != nil || last != run.ID {
		t.Errorf("last_run meta = %q, %v", last, err)
	}
}

func TestGetRunNotFound(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.GetRun("nope"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestFindRuns(t *testing.T) {
	db := openTestDB(t)
	runs := []*Run{
		testRun("Blue Herons", "94110", 5, 0),
		testRun("blue herons", "94112", 5, 1),
		testRun("Red Foxes", "94110", 8, 2),
		testRun("", "95014", 5, 3),
	}
	runs[3].Locale = "es"
	for _, r := range runs {
		if err := db.SaveRun(r); err != nil {
			t.Fatalf("SaveRun: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter Filter
		want   []string // teams, newest first
	}{
		{"all", Filter{}, []string{"", "Red Foxes", "blue herons", "Blue Herons"}},
		{"team case-insensitive", Filter{Team: "BLUE HERONS"}, []string{"blue herons", "Blue Herons"}},
		{"region", Filter{Region: "94110"}, []string{"Red Foxes", "Blue Herons"}},
		{"weeks", Filter{Weeks: 8}, []string{"Red Foxes"}},
		{"english matches all", Filter{Locale: "en", Weeks: 5}, []string{"", "blue herons", "Blue Herons"}},
		{"locale", Filter{Locale: "es"}, []string{""}},
		{"limit", Filter{Limit: 2}, []string{"", "Red Foxes"}},
		{"no match", Filter{Team: "green"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.FindRuns(tt.filter)
			if err != nil {
				t.Fatalf("FindRuns: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d runs, want %d", len(got), len(tt.want))
			}
			for i, r := range got {
				if r.Team != tt.want[i] {
					t.Errorf("run %d team = %q, want %q", i, r.Team, tt.want[i])
				}
			}
		})
	}
}

func TestFindRunsWithDefault(t *testing.T) {
	db := openTestDB(t)
	for i := 0; i < 3; i++ {
		if err := db.SaveRun(testRun("Team", "94110", 5, i)); err != nil {
			t.Fatal(err)
		}
	}

	got, err := db.FindRunsWithDefault(Filter{Team: "nobody"})
	if err != nil {
		t.Fatalf("FindRunsWithDefault: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("fallback returned %d runs, want 3", len(got))
	}

	got, err = db.FindRunsWithDefault(Filter{Team: "team", Limit: 1})
	if err != nil {
		t.Fatalf("FindRunsWithDefault: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("matching filter returned %d runs, want 1", len(got))
	}
}

func TestTeamNames(t *testing.T) {
	db := openTestDB(t)
	for _, r := range []*Run{
		testRun("Blue Herons", "94110", 5, 0),
		testRun("Red Foxes", "94110", 5, 1),
		testRun("BLUE HERONS", "94110", 5, 2),
		testRun("", "94110", 5, 3),
	} {
		if err := db.SaveRun(r); err != nil {
			t.Fatal(err)
		}
	}

	names, err := db.TeamNames()
	if err != nil {
		t.Fatalf("TeamNames: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("got %d names, want 2: %+v", len(names), names)
	}
	if names[0].Name != "BLUE HERONS" || names[0].Runs != 2 {
		t.Errorf("first team = %+v, want newest spelling with 2 runs", names[0])
	}
	if names[1].Name != "Red Foxes" {
		t.Errorf("second team = %+v", names[1])
	}
	if !names[0].LastRun.Equal(baseTime.Add(2 * time.Minute)) {
		t.Errorf("last run = %v", names[0].LastRun)
	}

	n, err := db.CountRuns()
	if err != nil || n != 4 {
		t.Errorf("CountRuns = %d, %v", n, err)
	}
}

func TestSaveRunReplaces(t *testing.T) {
	db := openTestDB(t)
	run := testRun("A", "94110", 5, 0)
	if err := db.SaveRun(run); err != nil {
		t.Fatal(err)
	}
	run.Team = "B"
	if err := db.SaveRun(run); err != nil {
		t.Fatal(err)
	}
	if n, _ := db.CountRuns(); n != 1 {
		t.Errorf("CountRuns = %d, want 1", n)
	}
	got, err := db.GetRun(run.ID)
	if err != nil || got.Team != "B" {
		t.Errorf("GetRun = %+v, %v", got, err)
	}
}

func TestMeta(t *testing.T) {
	db := openTestDB(t)
	if v, err := db.GetMeta("missing"); err != nil || v != "" {
		t.Errorf("GetMeta(missing) = %q, %v", v, err)
	}
	if err := db.SaveMeta("k", "v"); err != nil {
		t.Fatal(err)
	}
	if v, _ := db.GetMeta("k"); v != "v" {
		t.Errorf("GetMeta = %q", v)
	}
}

func TestNormalizeLocale(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", "en"},
		{"en", "en"},
		{"en-US", "en"},
		{" ES ", "es"},
		{"pt-BR", "pt"},
		{"not a tag!", "not a tag!"},
	}
	for _, tt := range tests {
		if got := normalizeLocale(tt.in); got != tt.want {
			t.Errorf("normalizeLocale(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFindRunsRegionalLocale(t *testing.T) {
	db := openTestDB(t)
	spanish := testRun("A", "94110", 5, 0)
	spanish.Locale = "es-MX"
	english := testRun("B", "94110", 5, 1)
	english.Locale = "en-GB"
	for _, r := range []*Run{spanish, english} {
		if err := db.SaveRun(r); err != nil {
			t.Fatal(err)
		}
	}
	if spanish.Locale != "es" {
		t.Errorf("stored locale = %q, want es", spanish.Locale)
	}

	got, err := db.FindRuns(Filter{Locale: "es"})
	if err != nil || len(got) != 1 || got[0].Team != "A" {
		t.Errorf("FindRuns(es) = %+v, %v", got, err)
	}
	got, err = db.FindRuns(Filter{Locale: "en-US"})
	if err != nil || len(got) != 2 {
		t.Errorf("English filter should match every run, got %d, %v", len(got), err)
	}
}

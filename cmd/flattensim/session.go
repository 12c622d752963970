package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/talgya/flatten-sim/internal/api"
	"github.com/talgya/flatten-sim/internal/config"
	"github.com/talgya/flatten-sim/internal/engine"
	"github.com/talgya/flatten-sim/internal/entropy"
	"github.com/talgya/flatten-sim/internal/logging"
	"github.com/talgya/flatten-sim/internal/persistence"
	"github.com/talgya/flatten-sim/internal/refdata"
	"github.com/talgya/flatten-sim/internal/schedule"
)

// runSession generates the world for cfg and plays every track through
// cfg.Weeks. The returned run is not yet saved.
func runSession(ctx context.Context, cfg *config.Config, tables *refdata.Tables, days *logging.DayLogger) (*persistence.Run, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	setup, err := cfg.Setup(tables)
	if err != nil {
		return nil, err
	}
	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}
	seed, err := cfg.ResolveSeed()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	src := entropy.New(seed)
	w, err := engine.Generate(setup, src)
	if err != nil {
		return nil, fmt.Errorf("generate world: %w", err)
	}
	sim, err := engine.NewSimulation(w, src, opts)
	if err != nil {
		return nil, fmt.Errorf("create simulation: %w", err)
	}
	traceDay(days, sim, 1)

	eng := engine.NewEngine()
	eng.OnDay = func(ctx context.Context, day int) error {
		if err := sim.StepDay(ctx); err != nil {
			return err
		}
		traceDay(days, sim, day)
		return nil
	}
	eng.OnWeek = func(ctx context.Context, week int) error {
		for _, t := range sim.Tracks {
			st := t.LatestStats()
			slog.Info("weekly summary",
				"track", t.Name,
				"week", week,
				"decision", t.Decisions[len(t.Decisions)-1].String(),
				"infectious", st.Infectious,
				"hospitalized", st.Hospitalized(),
				"capacity", sim.Capacity,
				"deaths", st.Deaths(),
				"ever_infected", st.EverInfected,
			)
		}
		return nil
	}

	if err := eng.Run(ctx, cfg.Weeks*schedule.DaysPerWeek); err != nil {
		return nil, fmt.Errorf("run simulation: %w", err)
	}

	slog.Info("session complete",
		"region", w.Region,
		"seed", seed,
		"days", sim.Day,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return &persistence.Run{
		Team:   cfg.Team,
		Region: w.Region,
		Weeks:  cfg.Weeks,
		Result: sim.Result(),
	}, nil
}

// traceDay reports the latest day of every track at debug level and to the
// day trace.
func traceDay(days *logging.DayLogger, sim *engine.Simulation, day int) {
	for _, t := range sim.Tracks {
		st := t.LatestStats()
		slog.Debug("daily report",
			"track", t.Name,
			"day", engine.DayLabel(day),
			"new_infections", st.NewInfections,
			"hospitalized", st.Hospitalized(),
			"not_admitted", st.NotAdmitted,
			"deaths", st.Deaths(),
		)
		days.Log(map[string]any{
			"event": "day",
			"track": t.Name,
			"day":   day,
			"stats": st,
		})
	}
}

// parseDecisions reads weekly decisions written as "2,5,2,1;1,3,1,0".
func parseDecisions(s string) ([]schedule.Weekly, error) {
	var weeks []schedule.Weekly
	for i, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		w, err := schedule.ParseWeekly(part)
		if err != nil {
			return nil, fmt.Errorf("week %d: %w", i+1, err)
		}
		weeks = append(weeks, w)
	}
	if len(weeks) == 0 {
		return nil, errors.New("no decisions given")
	}
	return weeks, nil
}

// requestConfig derives a per-request config from base. An inline
// population keeps its own region.
func requestConfig(base *config.Config, req api.RunRequest) (*config.Config, error) {
	cfg := base.Clone()
	if cfg.Data.Population.Total <= 0 {
		cfg.Region = strings.TrimSpace(req.Region)
	}
	cfg.Team = strings.TrimSpace(req.Team)
	cfg.Seed = req.Seed
	if req.Weeks > 0 {
		cfg.Weeks = req.Weeks
	}
	if len(req.Decisions) > 0 {
		track, err := cfg.PlayerTrack()
		if err != nil {
			return nil, err
		}
		if err := cfg.SetDecisions(track, req.Decisions); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newRunner adapts runSession to the API. Config and lookup failures are
// reported as bad requests.
func newRunner(base *config.Config, tables *refdata.Tables, days *logging.DayLogger) api.Runner {
	return func(ctx context.Context, req api.RunRequest) (*persistence.Run, error) {
		cfg, err := requestConfig(base, req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", api.ErrBadRequest, err)
		}
		run, err := runSession(ctx, cfg, tables, days)
		if errors.Is(err, refdata.ErrNoDataForRegion) || errors.Is(err, refdata.ErrZeroPopulation) {
			return nil, fmt.Errorf("%w: %v", api.ErrBadRequest, err)
		}
		if err != nil {
			return nil, err
		}
		run.Locale = req.Locale
		return run, nil
	}
}

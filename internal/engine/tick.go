// Package engine provides the day-stepping simulation loop and the
// per-track infection model it drives.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/talgya/flatten-sim/internal/schedule"
)

// Engine drives the simulation forward one day at a time.
type Engine struct {
	Day      int           // Last completed day (1 is the seeded day)
	Interval time.Duration // Minimum wall time per day; 0 runs flat out

	// Callbacks, populated during setup.
	OnDay  func(ctx context.Context, day int) error  // Every day
	OnWeek func(ctx context.Context, week int) error // After each seventh day
}

// NewEngine creates an engine positioned after the seeded first day.
func NewEngine() *Engine {
	return &Engine{Day: 1}
}

// Run steps until lastDay has been produced or ctx is cancelled. Cancellation
// is only observed between days, so a day is either fully committed or not
// attempted.
func (e *Engine) Run(ctx context.Context, lastDay int) error {
	slog.Debug("simulation engine started", "day", e.Day, "last_day", lastDay)

	for e.Day < lastDay {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := time.Now()
		if err := e.step(ctx); err != nil {
			return err
		}

		if e.Interval > 0 {
			if wait := e.Interval - time.Since(start); wait > 0 {
				timer := time.NewTimer(wait)
				select {
				case <-ctx.Done():
					timer.Stop()
					return ctx.Err()
				case <-timer.C:
				}
			}
		}
	}

	slog.Debug("simulation engine stopped", "day", e.Day)
	return nil
}

func (e *Engine) step(ctx context.Context) error {
	day := e.Day + 1

	if e.OnDay != nil {
		if err := e.OnDay(ctx, day); err != nil {
			return fmt.Errorf("day %d: %w", day, err)
		}
	}
	e.Day = day

	if day%schedule.DaysPerWeek == 0 && e.OnWeek != nil {
		if err := e.OnWeek(ctx, day/schedule.DaysPerWeek); err != nil {
			return fmt.Errorf("week %d: %w", day/schedule.DaysPerWeek, err)
		}
	}
	return nil
}

// DayLabel returns a human-readable "Week W, Day D" string for a 1-based day.
func DayLabel(day int) string {
	if day < 1 {
		return "before start"
	}
	return fmt.Sprintf("Week %d, Day %d", WeekOf(day)+1, (day-1)%schedule.DaysPerWeek+1)
}

// WeekOf returns the 0-based week containing a 1-based day.
func WeekOf(day int) int {
	if day < 1 {
		return 0
	}
	return (day - 1) / schedule.DaysPerWeek
}

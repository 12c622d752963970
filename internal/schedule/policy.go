package schedule

import "fmt"

// Policy supplies the weekly decision for a track. Week is 0-based.
type Policy interface {
	Name() string
	Decide(week int) Weekly
}

// Scripted replays a fixed list of decisions, repeating the last one once the
// list runs out. It models the player's own choices.
type Scripted struct {
	name  string
	weeks []Weekly
}

// NewScripted validates every decision up front.
func NewScripted(name string, weeks []Weekly) (*Scripted, error) {
	if len(weeks) == 0 {
		return nil, fmt.Errorf("scripted policy %q: no decisions", name)
	}
	for i, w := range weeks {
		if err := w.Validate(); err != nil {
			return nil, fmt.Errorf("scripted policy %q week %d: %w", name, i+1, err)
		}
	}
	cp := make([]Weekly, len(weeks))
	copy(cp, weeks)
	return &Scripted{name: name, weeks: cp}, nil
}

func (p *Scripted) Name() string { return p.name }

func (p *Scripted) Decide(week int) Weekly {
	if week < 0 {
		week = 0
	}
	if week >= len(p.weeks) {
		return p.weeks[len(p.weeks)-1]
	}
	return p.weeks[week]
}

// Maximal goes out every day for every activity: the worst case.
type Maximal struct {
	name string
}

// NewMaximal creates the worst-case policy.
func NewMaximal(name string) *Maximal {
	return &Maximal{name: name}
}

func (p *Maximal) Name() string { return p.name }

func (p *Maximal) Decide(int) Weekly {
	var w Weekly
	for i := range w {
		w[i] = DaysPerWeek
	}
	return w
}

// Minimal keeps the first week's decision and then drops to the minimal
// vector: the best case once people react after week one.
type Minimal struct {
	name    string
	first   Weekly
	minimal Weekly
}

// DefaultMinimal is one essentials trip a week and nothing else.
var DefaultMinimal = Weekly{Essentials: 1}

// NewMinimal creates the best-case policy.
func NewMinimal(name string, first, minimal Weekly) (*Minimal, error) {
	if err := first.Validate(); err != nil {
		return nil, fmt.Errorf("minimal policy %q first week: %w", name, err)
	}
	if err := minimal.Validate(); err != nil {
		return nil, fmt.Errorf("minimal policy %q: %w", name, err)
	}
	return &Minimal{name: name, first: first, minimal: minimal}, nil
}

func (p *Minimal) Name() string { return p.name }

func (p *Minimal) Decide(week int) Weekly {
	if week <= 0 {
		return p.first
	}
	return p.minimal
}

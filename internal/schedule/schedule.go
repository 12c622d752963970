// Package schedule turns weekly "go out N times" decisions into per-person
// day-by-day outing schedules.
package schedule

import (
	"errors"
	"fmt"
	"strings"

	"github.com/talgya/flatten-sim/internal/entropy"
)

// DaysPerWeek is the length of one decision period.
const DaysPerWeek = 7

// Activity is a category of outing.
type Activity uint8

const (
	Essentials Activity = iota // groceries, pharmacy
	Work
	Leisure   // restaurants, friends
	Gathering // large events; visits several destinations at once
)

// NumActivities is the number of activity categories.
const NumActivities = 4

var activityNames = [NumActivities]string{"essentials", "work", "leisure", "gathering"}

// String returns the lowercase name of the activity.
func (a Activity) String() string {
	if int(a) < NumActivities {
		return activityNames[a]
	}
	return fmt.Sprintf("activity(%d)", a)
}

// MarshalText encodes the activity by name.
func (a Activity) MarshalText() ([]byte, error) {
	if int(a) >= NumActivities {
		return nil, fmt.Errorf("unknown activity %d", a)
	}
	return []byte(activityNames[a]), nil
}

// UnmarshalText decodes an activity name.
func (a *Activity) UnmarshalText(b []byte) error {
	act, err := ParseActivity(string(b))
	if err != nil {
		return err
	}
	*a = act
	return nil
}

// ParseActivity maps a name to its Activity.
func ParseActivity(s string) (Activity, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range activityNames {
		if name == s {
			return Activity(i), nil
		}
	}
	return 0, fmt.Errorf("unknown activity %q", s)
}

// ErrDecisionOutOfRange is returned for weekly counts outside [0, 7].
var ErrDecisionOutOfRange = errors.New("weekly decision out of range")

// Weekly is how many days per week each activity happens.
type Weekly [NumActivities]int

// Validate rejects counts outside [0, DaysPerWeek].
func (w Weekly) Validate() error {
	for i, n := range w {
		if n < 0 || n > DaysPerWeek {
			return fmt.Errorf("%s=%d: %w", Activity(i), n, ErrDecisionOutOfRange)
		}
	}
	return nil
}

// Clamp returns a copy with every count forced into [0, DaysPerWeek].
func (w Weekly) Clamp() Weekly {
	for i, n := range w {
		if n < 0 {
			w[i] = 0
		} else if n > DaysPerWeek {
			w[i] = DaysPerWeek
		}
	}
	return w
}

// String renders the decision as "essentials=2 work=5 ...".
func (w Weekly) String() string {
	parts := make([]string, NumActivities)
	for i, n := range w {
		parts[i] = fmt.Sprintf("%s=%d", Activity(i), n)
	}
	return strings.Join(parts, " ")
}

// ParseWeekly reads a comma separated list of counts in activity order,
// e.g. "3,5,1,0". Missing trailing counts are zero.
func ParseWeekly(s string) (Weekly, error) {
	var w Weekly
	fields := strings.Split(s, ",")
	if len(fields) > NumActivities {
		return w, fmt.Errorf("parse weekly %q: want at most %d counts", s, NumActivities)
	}
	for i, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		var n int
		if _, err := fmt.Sscanf(f, "%d", &n); err != nil {
			return w, fmt.Errorf("parse weekly %q: %w", s, err)
		}
		w[i] = n
	}
	if err := w.Validate(); err != nil {
		return w, err
	}
	return w, nil
}

// Days is one activity's outings over a week.
type Days [DaysPerWeek]bool

// Count returns how many days are set.
func (d Days) Count() int {
	n := 0
	for _, on := range d {
		if on {
			n++
		}
	}
	return n
}

// Expand spreads n outings uniformly over the week. n must already be in
// [0, DaysPerWeek]; use Weekly.Validate or Weekly.Clamp at the input boundary.
func Expand(n int, src *entropy.Source) Days {
	var d Days
	switch {
	case n <= 0:
		return d
	case n >= DaysPerWeek:
		for i := range d {
			d[i] = true
		}
		return d
	}
	for i := 0; i < n; i++ {
		d[i] = true
	}
	src.Shuffle(DaysPerWeek, func(i, j int) { d[i], d[j] = d[j], d[i] })
	return d
}

// Schedule is one person's outings for a week, per activity.
type Schedule [NumActivities]Days

// Build expands every activity of w into a week schedule.
func Build(w Weekly, src *entropy.Source) Schedule {
	var s Schedule
	for a, n := range w {
		s[a] = Expand(n, src)
	}
	return s
}

// On reports whether activity a happens on weekday day (0-based).
func (s Schedule) On(a Activity, day int) bool {
	return s[a][day%DaysPerWeek]
}

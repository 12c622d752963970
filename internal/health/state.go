// Package health holds the per-person disease progression rule.
// Evaluate is pure: the same destiny, day count and hospitalization status
// always produce the same code and infectious weight.
package health

import (
	"encoding/json"
	"fmt"
)

// Code is a person's clinical state on a given day.
type Code uint8

const (
	Healthy      Code = iota
	Asymptomatic      // infected, no symptoms
	Symptomatic       // mild symptoms, stays mostly home
	Hospitalized      // severe case, needs a bed
	Recovered         // terminal
	Deceased          // terminal
)

// NumCodes is the number of health codes.
const NumCodes = 6

// Day thresholds of the progression table.
const (
	InfectiousFromDay = 4
	SymptomsFromDay   = 6
	SevereFromDay     = 7
	TerminalFromDay   = 14
)

var codeNames = [NumCodes]string{
	"healthy", "asymptomatic", "symptomatic", "hospitalized", "recovered", "deceased",
}

// String returns the lowercase name of the code.
func (c Code) String() string {
	if int(c) < NumCodes {
		return codeNames[c]
	}
	return fmt.Sprintf("code(%d)", c)
}

// Terminal reports whether no further transition can happen.
func (c Code) Terminal() bool {
	return c == Recovered || c == Deceased
}

// Infected reports whether the person has ever been infected.
func (c Code) Infected() bool {
	return c != Healthy
}

// MarshalText encodes the code by name.
func (c Code) MarshalText() ([]byte, error) {
	if int(c) >= NumCodes {
		return nil, fmt.Errorf("unknown health code %d", c)
	}
	return []byte(codeNames[c]), nil
}

// UnmarshalText decodes a code name.
func (c *Code) UnmarshalText(b []byte) error {
	code, err := ParseCode(string(b))
	if err != nil {
		return err
	}
	*c = code
	return nil
}

// ParseCode maps a name back to its Code.
func ParseCode(s string) (Code, error) {
	for i, name := range codeNames {
		if name == s {
			return Code(i), nil
		}
	}
	return Healthy, fmt.Errorf("unknown health code %q", s)
}

// Destiny holds the outcome propensities drawn once when a person is created.
type Destiny struct {
	Symptomatic           bool `json:"symptomatic"`
	HospitalIfSymptomatic bool `json:"hospital_if_symptomatic"`
	DieIfHospitalized     bool `json:"die_if_hospitalized"`
	DieIfNotHospitalized  bool `json:"die_if_not_hospitalized"`
}

// Weights sets how much infectious pressure a carrier exerts.
type Weights struct {
	// Asymptomatic applies to infectious carriers without symptoms (days 4+).
	Asymptomatic float64 `json:"asymptomatic" yaml:"asymptomatic"`
	// Symptomatic applies to symptomatic and hospitalized carriers.
	Symptomatic float64 `json:"symptomatic" yaml:"symptomatic"`
}

// DefaultWeights returns the shipped infectiousness weights.
func DefaultWeights() Weights {
	return Weights{Asymptomatic: 0.5, Symptomatic: 1.0}
}

// Validate checks both weights are in (0, 1].
func (w Weights) Validate() error {
	if w.Asymptomatic <= 0 || w.Asymptomatic > 1 {
		return fmt.Errorf("asymptomatic weight must be in (0, 1], got %f", w.Asymptomatic)
	}
	if w.Symptomatic <= 0 || w.Symptomatic > 1 {
		return fmt.Errorf("symptomatic weight must be in (0, 1], got %f", w.Symptomatic)
	}
	return nil
}

// Evaluate maps a person's destiny and days since infection to a health code
// and infectious weight. wasHospitalized is the person's admission status on
// the previous day and only matters on the terminal day.
func Evaluate(d Destiny, days int, wasHospitalized bool, w Weights) (Code, float64) {
	switch {
	case days <= 0:
		return Healthy, 0
	case days < InfectiousFromDay:
		return Asymptomatic, 0
	case days < SymptomsFromDay:
		return Asymptomatic, w.Asymptomatic
	case days < SevereFromDay:
		return mildBranch(d, w)
	case days < TerminalFromDay:
		if d.Symptomatic && d.HospitalIfSymptomatic {
			return Hospitalized, w.Symptomatic
		}
		return mildBranch(d, w)
	}

	dies := d.DieIfNotHospitalized
	if wasHospitalized {
		dies = d.DieIfHospitalized
	}
	if dies {
		return Deceased, 0
	}
	return Recovered, 0
}

func mildBranch(d Destiny, w Weights) (Code, float64) {
	if d.Symptomatic {
		return Symptomatic, w.Symptomatic
	}
	return Asymptomatic, w.Asymptomatic
}

// Histogram counts people per health code.
type Histogram [NumCodes]int

// MarshalJSON encodes the histogram keyed by code name.
func (h Histogram) MarshalJSON() ([]byte, error) {
	m := make(map[string]int, NumCodes)
	for i, n := range h {
		m[codeNames[i]] = n
	}
	return json.Marshal(m)
}

// UnmarshalJSON decodes a histogram keyed by code name.
func (h *Histogram) UnmarshalJSON(b []byte) error {
	var m map[string]int
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	*h = Histogram{}
	for name, n := range m {
		c, err := ParseCode(name)
		if err != nil {
			return err
		}
		h[c] = n
	}
	return nil
}

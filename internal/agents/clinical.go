package agents

import "fmt"

// ClinicalRates are the per-bracket probabilities used to draw a person's
// destiny flags, plus the bracket's base susceptibility.
type ClinicalRates struct {
	Susceptibility        float64 `json:"susceptibility" yaml:"susceptibility"`
	Symptomatic           float64 `json:"symptomatic" yaml:"symptomatic"`
	HospitalIfSymptomatic float64 `json:"hospital_if_symptomatic" yaml:"hospital_if_symptomatic"`
	DieIfHospitalized     float64 `json:"die_if_hospitalized" yaml:"die_if_hospitalized"`
	DieIfNotHospitalized  float64 `json:"die_if_not_hospitalized" yaml:"die_if_not_hospitalized"`
}

// ClinicalTable holds rates for every age bracket, youngest first.
type ClinicalTable [NumBrackets]ClinicalRates

// DefaultClinicalTable returns the shipped rates. Mortality without a bed is
// several times mortality with one, which is what makes bed capacity matter.
func DefaultClinicalTable() ClinicalTable {
	return ClinicalTable{
		{Susceptibility: 0.03, Symptomatic: 0.30, HospitalIfSymptomatic: 0.01, DieIfHospitalized: 0.001, DieIfNotHospitalized: 0.005},
		{Susceptibility: 0.05, Symptomatic: 0.50, HospitalIfSymptomatic: 0.05, DieIfHospitalized: 0.01, DieIfNotHospitalized: 0.05},
		{Susceptibility: 0.05, Symptomatic: 0.60, HospitalIfSymptomatic: 0.10, DieIfHospitalized: 0.03, DieIfNotHospitalized: 0.10},
		{Susceptibility: 0.06, Symptomatic: 0.70, HospitalIfSymptomatic: 0.20, DieIfHospitalized: 0.10, DieIfNotHospitalized: 0.30},
		{Susceptibility: 0.07, Symptomatic: 0.80, HospitalIfSymptomatic: 0.30, DieIfHospitalized: 0.20, DieIfNotHospitalized: 0.50},
	}
}

// Validate checks every probability is in [0,1] and susceptibility in (0,1).
func (t ClinicalTable) Validate() error {
	for i, r := range t {
		if r.Susceptibility <= 0 || r.Susceptibility >= 1 {
			return fmt.Errorf("bracket %s: susceptibility must be in (0, 1), got %f", BracketKeys[i], r.Susceptibility)
		}
		probs := []struct {
			name string
			p    float64
		}{
			{"symptomatic", r.Symptomatic},
			{"hospital_if_symptomatic", r.HospitalIfSymptomatic},
			{"die_if_hospitalized", r.DieIfHospitalized},
			{"die_if_not_hospitalized", r.DieIfNotHospitalized},
		}
		for _, pr := range probs {
			if pr.p < 0 || pr.p > 1 {
				return fmt.Errorf("bracket %s: %s must be in [0, 1], got %f", BracketKeys[i], pr.name, pr.p)
			}
		}
	}
	return nil
}

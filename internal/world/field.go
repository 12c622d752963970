// Locality susceptibility field using layered simplex noise.
// Neighbouring households sample nearby noise, so susceptibility varies
// smoothly across the population instead of independently per person.
package world

import (
	"fmt"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/flatten-sim/internal/agents"
)

// FieldConfig controls the susceptibility field.
type FieldConfig struct {
	Variance  float64 `json:"variance" yaml:"variance"`   // modifier spans [1-v, 1+v]; 0 disables
	Frequency float64 `json:"frequency" yaml:"frequency"` // noise cycles per household
}

// DefaultFieldConfig returns a ±20% field correlated over roughly fifty households.
func DefaultFieldConfig() FieldConfig {
	return FieldConfig{Variance: 0.2, Frequency: 0.02}
}

// Validate checks the field parameters.
func (c FieldConfig) Validate() error {
	if c.Variance < 0 || c.Variance >= 1 {
		return fmt.Errorf("field variance must be in [0, 1), got %f", c.Variance)
	}
	if c.Frequency <= 0 {
		return fmt.Errorf("field frequency must be positive, got %f", c.Frequency)
	}
	return nil
}

// SusceptibilityField implements agents.SusceptibilityField.
type SusceptibilityField struct {
	noise opensimplex.Noise
	cfg   FieldConfig
}

// NewSusceptibilityField returns nil when the variance is zero so the
// spawner skips the field entirely.
func NewSusceptibilityField(seed int64, cfg FieldConfig) *SusceptibilityField {
	if cfg.Variance == 0 {
		return nil
	}
	return &SusceptibilityField{
		noise: opensimplex.NewNormalized(seed),
		cfg:   cfg,
	}
}

// Modifier returns the multiplier for household h, in [1-v, 1+v].
// Safe to call on a nil receiver.
func (f *SusceptibilityField) Modifier(h agents.HouseholdID) float64 {
	if f == nil {
		return 1
	}
	n := octaveNoise(f.noise, float64(h)*f.cfg.Frequency, 0.5, 3, 1.0, 0.5)
	return 1 + f.cfg.Variance*(2*n-1)
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}

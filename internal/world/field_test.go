package world

import (
	"math"
	"testing"

	"github.com/talgya/flatten-sim/internal/agents"
)

func TestFieldBounds(t *testing.T) {
	cfg := DefaultFieldConfig()
	f := NewSusceptibilityField(42, cfg)
	for h := 0; h < 5000; h++ {
		m := f.Modifier(agents.HouseholdID(h))
		if m < 1-cfg.Variance-1e-9 || m > 1+cfg.Variance+1e-9 {
			t.Fatalf("household %d modifier %f outside [%f, %f]", h, m, 1-cfg.Variance, 1+cfg.Variance)
		}
	}
}

func TestFieldIsSmoothBetweenNeighbours(t *testing.T) {
	f := NewSusceptibilityField(7, DefaultFieldConfig())
	var neighbourDiff, distantDiff float64
	n := 0
	for h := 0; h < 2000; h += 10 {
		a := f.Modifier(agents.HouseholdID(h))
		neighbourDiff += math.Abs(a - f.Modifier(agents.HouseholdID(h+1)))
		distantDiff += math.Abs(a - f.Modifier(agents.HouseholdID(h+500)))
		n++
	}
	if neighbourDiff >= distantDiff {
		t.Errorf("neighbour diff %.4f not below distant diff %.4f", neighbourDiff/float64(n), distantDiff/float64(n))
	}
}

func TestFieldDisabled(t *testing.T) {
	f := NewSusceptibilityField(1, FieldConfig{Variance: 0, Frequency: 0.02})
	if f != nil {
		t.Fatal("expected nil field for zero variance")
	}
	if got := f.Modifier(3); got != 1 {
		t.Errorf("nil field modifier = %f, want 1", got)
	}
}

func TestFieldDeterministic(t *testing.T) {
	a := NewSusceptibilityField(5, DefaultFieldConfig())
	b := NewSusceptibilityField(5, DefaultFieldConfig())
	for h := 0; h < 100; h++ {
		if a.Modifier(agents.HouseholdID(h)) != b.Modifier(agents.HouseholdID(h)) {
			t.Fatalf("household %d differs for identical seeds", h)
		}
	}
}

func TestFieldConfigValidate(t *testing.T) {
	if err := DefaultFieldConfig().Validate(); err != nil {
		t.Errorf("default invalid: %v", err)
	}
	if err := (FieldConfig{Variance: 1, Frequency: 0.1}).Validate(); err == nil {
		t.Error("expected error for variance 1")
	}
	if err := (FieldConfig{Variance: 0.1, Frequency: 0}).Validate(); err == nil {
		t.Error("expected error for zero frequency")
	}
}

package schedule

import "testing"

func TestScriptedRepeatsLastDecision(t *testing.T) {
	p, err := NewScripted("actual", []Weekly{{3, 5, 2, 1}, {1, 0, 0, 0}})
	if err != nil {
		t.Fatalf("NewScripted: %v", err)
	}
	if got := p.Decide(0); got != (Weekly{3, 5, 2, 1}) {
		t.Errorf("week 0 = %v", got)
	}
	if got := p.Decide(5); got != (Weekly{1, 0, 0, 0}) {
		t.Errorf("week 5 = %v", got)
	}
	if p.Name() != "actual" {
		t.Errorf("Name = %q", p.Name())
	}
}

func TestScriptedRejectsBadInput(t *testing.T) {
	if _, err := NewScripted("x", nil); err == nil {
		t.Error("expected error for empty decisions")
	}
	if _, err := NewScripted("x", []Weekly{{8, 0, 0, 0}}); err == nil {
		t.Error("expected error for out of range decision")
	}
}

func TestMaximal(t *testing.T) {
	w := NewMaximal("worst").Decide(3)
	for a, n := range w {
		if n != DaysPerWeek {
			t.Errorf("%s = %d, want %d", Activity(a), n, DaysPerWeek)
		}
	}
}

func TestMinimalAfterFirstWeek(t *testing.T) {
	first := Weekly{2, 5, 1, 1}
	p, err := NewMinimal("best", first, DefaultMinimal)
	if err != nil {
		t.Fatalf("NewMinimal: %v", err)
	}
	if got := p.Decide(0); got != first {
		t.Errorf("week 0 = %v, want %v", got, first)
	}
	if got := p.Decide(1); got != DefaultMinimal {
		t.Errorf("week 1 = %v, want %v", got, DefaultMinimal)
	}
	if _, err := NewMinimal("best", Weekly{0, 0, 0, 9}, DefaultMinimal); err == nil {
		t.Error("expected error for bad first week")
	}
}

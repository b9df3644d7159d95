package tomo

import (
	"math"
	"testing"
)

func TestNewModel_Validation(t *testing.T) {
	g := testGrid(2, 2, 2, 1)
	if _, err := NewModel(g, make([]float64, 7)); err == nil {
		t.Error("expected error for short value slice")
	}
	if _, err := NewUniformModel(g, 0); err == nil {
		t.Error("expected error for non-positive velocity")
	}
	m, err := NewUniformModel(g, 5.8)
	if err != nil {
		t.Fatalf("expected model, got %v", err)
	}
	if len(m.V) != 8 || m.V[3] != 5.8 {
		t.Errorf("expected 8 nodes at 5.8, got %d nodes, V[3]=%g", len(m.V), m.V[3])
	}
}

func TestModel_Clone(t *testing.T) {
	m, _ := NewUniformModel(testGrid(2, 1, 1, 1), 4)
	c := m.Clone()
	c.V[0] = 1
	if m.V[0] != 4 {
		t.Errorf("clone aliases source: expected 4, got %g", m.V[0])
	}
}

func TestModel_ApplySlownessUpdate(t *testing.T) {
	m, _ := NewUniformModel(testGrid(3, 1, 1, 1), 4) // slowness 0.25
	next, clamped, err := m.ApplySlownessUpdate([]float64{0.05, -0.05, 0})
	if err != nil {
		t.Fatalf("expected update to apply, got %v", err)
	}
	if clamped != 0 {
		t.Errorf("expected no clamped nodes, got %d", clamped)
	}
	want := []float64{1 / 0.30, 1 / 0.20, 4}
	for i, w := range want {
		if math.Abs(next.V[i]-w) > 1e-12 {
			t.Errorf("node %d: expected %g, got %g", i, w, next.V[i])
		}
	}
	// The source model is never mutated in place.
	if m.V[0] != 4 {
		t.Errorf("source model mutated: expected 4, got %g", m.V[0])
	}
}

func TestModel_ApplySlownessUpdate_Clamps(t *testing.T) {
	m, _ := NewUniformModel(testGrid(2, 1, 1, 1), 4)
	next, clamped, err := m.ApplySlownessUpdate([]float64{-1, 0})
	if err != nil {
		t.Fatalf("expected update to apply, got %v", err)
	}
	if clamped != 1 {
		t.Errorf("expected 1 clamped node, got %d", clamped)
	}
	if next.V[0] <= 0 || math.IsInf(next.V[0], 0) {
		t.Errorf("expected finite positive velocity after clamp, got %g", next.V[0])
	}
}

func TestModel_ApplySlownessUpdate_LengthMismatch(t *testing.T) {
	m, _ := NewUniformModel(testGrid(2, 1, 1, 1), 4)
	if _, _, err := m.ApplySlownessUpdate([]float64{0.1}); err == nil {
		t.Error("expected error for mismatched update length")
	}
}

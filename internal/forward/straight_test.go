package forward

import (
	"errors"
	"math"
	"testing"

	"github.com/banshee-data/tomo.report/internal/tomo"
)

func TestUniformField_ValueIsDistanceOverVelocity(t *testing.T) {
	f, err := NewUniformField(tomo.Point{}, 2, 0.5)
	if err != nil {
		t.Fatalf("NewUniformField: %v", err)
	}
	got, err := f.Value(tomo.Point{X: 4})
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if got != 2 {
		t.Errorf("expected travel time 2, got %g", got)
	}
}

func TestUniformField_TraceRayReachesStation(t *testing.T) {
	station := tomo.Point{X: 1, Y: 1, Z: 0}
	f, err := NewUniformField(station, 2, 0.5)
	if err != nil {
		t.Fatalf("NewUniformField: %v", err)
	}
	from := tomo.Point{X: 5, Y: 1, Z: 0}
	pts, err := f.TraceRay(from)
	if err != nil {
		t.Fatalf("TraceRay: %v", err)
	}
	if len(pts) != 9 {
		t.Fatalf("expected 9 samples over 4km at 0.5km steps, got %d", len(pts))
	}
	if pts[0] != from {
		t.Errorf("expected ray to start at source, got %+v", pts[0])
	}
	if last := pts[len(pts)-1]; last.Dist(station) > 1e-12 {
		t.Errorf("expected final sample at the station, got %+v", last)
	}
	for i := 1; i < len(pts); i++ {
		if d := pts[i].Dist(pts[i-1]); math.Abs(d-0.5) > 1e-12 {
			t.Fatalf("sample %d spacing %g, want 0.5", i, d)
		}
	}
}

func TestNewUniformField_Validation(t *testing.T) {
	if _, err := NewUniformField(tomo.Point{}, 0, 0.5); err == nil {
		t.Error("expected error for zero velocity")
	}
	if _, err := NewUniformField(tomo.Point{}, 2, 0); err == nil {
		t.Error("expected error for zero step")
	}
}

func TestStraightRayField_UniformModelValue(t *testing.T) {
	m, err := tomo.NewUniformModel(testGrid(5, 3, 3, 1), 2)
	if err != nil {
		t.Fatalf("NewUniformModel: %v", err)
	}
	c := NewStraightRayComputer(map[string]tomo.Point{"S1": {X: 4, Y: 1, Z: 1}})
	f, err := c.Compute(m, "S1", tomo.PhaseP)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if got := f.Step(); got != 0.25 {
		t.Errorf("expected step 0.25, got %g", got)
	}

	// The quadrature sums slowness over int(d/step)+1 samples of weight
	// step: 17 samples over 4km at 0.25km and half slowness.
	got, err := f.Value(tomo.Point{X: 0, Y: 1, Z: 1})
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	want := 17 * 0.25 / 2.0
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("expected travel time %g, got %g", want, got)
	}
}

func TestStraightRayField_RespondsToModelChange(t *testing.T) {
	slow, err := tomo.NewUniformModel(testGrid(5, 3, 3, 1), 2)
	if err != nil {
		t.Fatalf("NewUniformModel: %v", err)
	}
	fast, err := tomo.NewUniformModel(slow.Grid, 4)
	if err != nil {
		t.Fatalf("NewUniformModel: %v", err)
	}
	c := NewStraightRayComputer(map[string]tomo.Point{"S1": {X: 4, Y: 1, Z: 1}})
	src := tomo.Point{X: 0, Y: 1, Z: 1}

	fSlow, err := c.Compute(slow, "S1", tomo.PhaseP)
	if err != nil {
		t.Fatalf("Compute slow: %v", err)
	}
	fFast, err := c.Compute(fast, "S1", tomo.PhaseP)
	if err != nil {
		t.Fatalf("Compute fast: %v", err)
	}
	tSlow, err := fSlow.Value(src)
	if err != nil {
		t.Fatalf("Value slow: %v", err)
	}
	tFast, err := fFast.Value(src)
	if err != nil {
		t.Fatalf("Value fast: %v", err)
	}
	if math.Abs(tSlow-2*tFast) > 1e-12 {
		t.Errorf("expected doubling velocity to halve travel time, got %g and %g", tSlow, tFast)
	}
}

func TestStraightRayField_OutsideBounds(t *testing.T) {
	m, err := tomo.NewUniformModel(testGrid(3, 3, 3, 1), 2)
	if err != nil {
		t.Fatalf("NewUniformModel: %v", err)
	}
	c := NewStraightRayComputer(map[string]tomo.Point{"S1": {X: 2, Y: 1, Z: 1}})
	f, err := c.Compute(m, "S1", tomo.PhaseP)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	outside := tomo.Point{X: -5, Y: 0, Z: 0}
	if _, err := f.Value(outside); err == nil {
		t.Error("expected Value error outside bounds")
	}
	if _, err := f.TraceRay(outside); err == nil {
		t.Error("expected TraceRay error outside bounds")
	}
}

func TestStraightRayComputer_UnknownStation(t *testing.T) {
	m, err := tomo.NewUniformModel(testGrid(3, 3, 3, 1), 2)
	if err != nil {
		t.Fatalf("NewUniformModel: %v", err)
	}
	c := NewStraightRayComputer(nil)
	_, err = c.Compute(m, "S9", tomo.PhaseP)
	if !errors.Is(err, tomo.ErrFieldUnavailable) {
		t.Errorf("expected ErrFieldUnavailable, got %v", err)
	}
}

func TestUniformComputer(t *testing.T) {
	stations := map[string]tomo.Point{"S1": {X: 1}}
	c, err := NewUniformComputer(stations, 3, 0.5)
	if err != nil {
		t.Fatalf("NewUniformComputer: %v", err)
	}
	f, err := c.Compute(nil, "S1", tomo.PhaseP)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	got, err := f.Value(tomo.Point{X: 7})
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if got != 2 {
		t.Errorf("expected travel time 2, got %g", got)
	}
	if _, err := c.Compute(nil, "S9", tomo.PhaseP); !errors.Is(err, tomo.ErrFieldUnavailable) {
		t.Errorf("expected ErrFieldUnavailable, got %v", err)
	}
	if _, err := NewUniformComputer(stations, -1, 0.5); err == nil {
		t.Error("expected error for negative velocity")
	}
}

func TestSegmentPoints_ZeroDistance(t *testing.T) {
	p := tomo.Point{X: 1, Y: 2, Z: 3}
	pts := segmentPoints(p, p, 0.5)
	if len(pts) != 1 || pts[0] != p {
		t.Errorf("expected single sample at the point, got %v", pts)
	}
}

package forward

import (
	"fmt"

	"github.com/banshee-data/tomo.report/internal/tomo"
)

// StraightRayComputer approximates forward travel times by integrating
// slowness along the straight source-station segment through the current
// model. It is model-aware: the provider recomputes its fields whenever the
// controller installs an updated model, so residuals keep tightening across
// iterations without an external eikonal run.
type StraightRayComputer struct {
	stations map[string]tomo.Point
}

// NewStraightRayComputer returns a computer over the given station
// positions, keyed by station ID. The map is copied.
func NewStraightRayComputer(stations map[string]tomo.Point) *StraightRayComputer {
	m := make(map[string]tomo.Point, len(stations))
	for id, p := range stations {
		m[id] = p
	}
	return &StraightRayComputer{stations: m}
}

// Compute returns the straight-ray field for station under m.
func (c *StraightRayComputer) Compute(m *tomo.Model, station string, phase tomo.Phase) (tomo.TraveltimeField, error) {
	at, ok := c.stations[station]
	if !ok {
		return nil, fmt.Errorf("forward: station %s: %w", station, tomo.ErrFieldUnavailable)
	}
	return &StraightRayField{model: m, station: at, step: traceStep(m.Grid)}, nil
}

// StraightRayField evaluates travel times by sampling model slowness along
// the straight segment to the station. Samples past the model boundary
// (stations may sit on or just outside it) take boundary values.
type StraightRayField struct {
	model   *tomo.Model
	station tomo.Point
	step    float64
}

// Step returns the ray sampling interval.
func (f *StraightRayField) Step() float64 { return f.step }

// Value integrates slowness from p to the station.
func (f *StraightRayField) Value(p tomo.Point) (float64, error) {
	if !f.model.Grid.Contains(p) {
		return 0, fmt.Errorf("forward: point (%g, %g, %g) outside model bounds", p.X, p.Y, p.Z)
	}
	var t float64
	for _, q := range segmentPoints(p, f.station, f.step) {
		t += f.step / trilinear(f.model.Grid, f.model.V, q)
	}
	return t, nil
}

// TraceRay returns the straight segment from p toward the station, sampled
// at Step intervals with p first.
func (f *StraightRayField) TraceRay(from tomo.Point) ([]tomo.Point, error) {
	if !f.model.Grid.Contains(from) {
		return nil, fmt.Errorf("forward: ray start (%g, %g, %g) outside model bounds", from.X, from.Y, from.Z)
	}
	return segmentPoints(from, f.station, f.step), nil
}

// UniformField is the analytic travel-time field of a constant-velocity
// medium: time is distance over velocity and rays are straight. Used by
// synthetic runs and as the reference field in tests.
type UniformField struct {
	station tomo.Point
	v       float64
	step    float64
}

// NewUniformField returns a uniform field for a station at the given
// position.
func NewUniformField(station tomo.Point, velocity, step float64) (*UniformField, error) {
	if velocity <= 0 {
		return nil, fmt.Errorf("forward: velocity must be positive, got %g", velocity)
	}
	if step <= 0 {
		return nil, fmt.Errorf("forward: step must be positive, got %g", step)
	}
	return &UniformField{station: station, v: velocity, step: step}, nil
}

// Step returns the ray sampling interval.
func (f *UniformField) Step() float64 { return f.step }

// Value returns the straight-line travel time from p to the station.
func (f *UniformField) Value(p tomo.Point) (float64, error) {
	return p.Dist(f.station) / f.v, nil
}

// TraceRay returns the straight segment from p toward the station.
func (f *UniformField) TraceRay(from tomo.Point) ([]tomo.Point, error) {
	return segmentPoints(from, f.station, f.step), nil
}

// UniformComputer serves one UniformField per station; it ignores the model.
type UniformComputer struct {
	stations map[string]tomo.Point
	velocity float64
	step     float64
}

// NewUniformComputer returns a computer producing uniform fields with the
// given velocity and ray step for each listed station.
func NewUniformComputer(stations map[string]tomo.Point, velocity, step float64) (*UniformComputer, error) {
	if velocity <= 0 {
		return nil, fmt.Errorf("forward: velocity must be positive, got %g", velocity)
	}
	if step <= 0 {
		return nil, fmt.Errorf("forward: step must be positive, got %g", step)
	}
	m := make(map[string]tomo.Point, len(stations))
	for id, p := range stations {
		m[id] = p
	}
	return &UniformComputer{stations: m, velocity: velocity, step: step}, nil
}

// Compute returns the uniform field for station.
func (c *UniformComputer) Compute(_ *tomo.Model, station string, _ tomo.Phase) (tomo.TraveltimeField, error) {
	at, ok := c.stations[station]
	if !ok {
		return nil, fmt.Errorf("forward: station %s: %w", station, tomo.ErrFieldUnavailable)
	}
	return &UniformField{station: at, v: c.velocity, step: c.step}, nil
}

// segmentPoints samples the straight segment from a to b at step intervals,
// a first. The final sample may fall short of b by up to one step.
func segmentPoints(a, b tomo.Point, step float64) []tomo.Point {
	d := a.Dist(b)
	n := int(d/step) + 1
	pts := make([]tomo.Point, n)
	pts[0] = a
	if d == 0 {
		return pts
	}
	dir := tomo.Point{X: (b.X - a.X) / d, Y: (b.Y - a.Y) / d, Z: (b.Z - a.Z) / d}
	for i := 1; i < n; i++ {
		s := float64(i) * step
		pts[i] = tomo.Point{X: a.X + s*dir.X, Y: a.Y + s*dir.Y, Z: a.Z + s*dir.Z}
	}
	return pts
}

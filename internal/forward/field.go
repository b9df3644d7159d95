package forward

import (
	"fmt"
	"math"

	"github.com/banshee-data/tomo.report/internal/tomo"
)

// GridField is a travel-time field sampled on a regular grid: one time (s)
// per node, measured from the station. Queries interpolate trilinearly and
// rays are traced by steepest descent on the interpolated field, so the
// grid does not have to match the model grid. Fields come from an external
// eikonal solver and are immutable once built.
type GridField struct {
	station   string
	phase     tomo.Phase
	stationAt tomo.Point
	grid      tomo.Grid
	times     []float64
	step      float64
}

// NewGridField wraps per-node travel times as a queryable field. len(times)
// must match the grid; times are taken over without copying.
func NewGridField(station string, phase tomo.Phase, stationAt tomo.Point, g tomo.Grid, times []float64) (*GridField, error) {
	if err := g.Check(); err != nil {
		return nil, err
	}
	if len(times) != g.NumNodes() {
		return nil, fmt.Errorf("forward: field for %s has %d times for %d nodes", station, len(times), g.NumNodes())
	}
	return &GridField{
		station:   station,
		phase:     phase,
		stationAt: stationAt,
		grid:      g,
		times:     times,
		step:      traceStep(g),
	}, nil
}

// Station returns the station ID the field belongs to.
func (f *GridField) Station() string { return f.station }

// Grid returns the lattice the field is sampled on.
func (f *GridField) Grid() tomo.Grid { return f.grid }

// Step returns the ray sampling interval.
func (f *GridField) Step() float64 { return f.step }

// Value returns the interpolated travel time at p.
func (f *GridField) Value(p tomo.Point) (float64, error) {
	if !f.grid.Contains(p) {
		return 0, fmt.Errorf("forward: point (%g, %g, %g) outside field bounds for %s", p.X, p.Y, p.Z, f.station)
	}
	return trilinear(f.grid, f.times, p), nil
}

// TraceRay follows the travel-time gradient downhill from p to the station
// and returns the path sampled at Step intervals, p first. The descent is
// clamped to the field bounds; a flat gradient or a path that fails to close
// on the station is an error and the arrival is dropped by the caller.
func (f *GridField) TraceRay(from tomo.Point) ([]tomo.Point, error) {
	if !f.grid.Contains(from) {
		return nil, fmt.Errorf("forward: ray start (%g, %g, %g) outside field bounds for %s", from.X, from.Y, from.Z, f.station)
	}
	lo, hi := f.grid.Bounds()
	maxSteps := int(8*lo.Dist(hi)/f.step) + 16

	pts := make([]tomo.Point, 0, int(from.Dist(f.stationAt)/f.step)+2)
	pts = append(pts, from)
	p := from
	for n := 0; n < maxSteps; n++ {
		if p.Dist(f.stationAt) <= f.step {
			pts = append(pts, f.stationAt)
			return pts, nil
		}
		gx, gy, gz := f.gradient(p)
		norm := math.Sqrt(gx*gx + gy*gy + gz*gz)
		if norm == 0 {
			return nil, fmt.Errorf("forward: ray from (%g, %g, %g) stalled on a flat gradient", from.X, from.Y, from.Z)
		}
		p = clampPoint(tomo.Point{
			X: p.X - f.step*gx/norm,
			Y: p.Y - f.step*gy/norm,
			Z: p.Z - f.step*gz/norm,
		}, lo, hi)
		pts = append(pts, p)
	}
	return nil, fmt.Errorf("forward: ray from (%g, %g, %g) did not reach station %s in %d steps", from.X, from.Y, from.Z, f.station, maxSteps)
}

// gradient estimates the travel-time gradient at p with central differences
// over half a node spacing, falling back to one-sided differences against
// the field boundary. Axes with a single node plane have zero gradient.
func (f *GridField) gradient(p tomo.Point) (gx, gy, gz float64) {
	lo, hi := f.grid.Bounds()
	diff := func(plus, minus tomo.Point, span float64) float64 {
		if span == 0 {
			return 0
		}
		return (trilinear(f.grid, f.times, plus) - trilinear(f.grid, f.times, minus)) / span
	}
	xp := math.Min(p.X+f.grid.Dx/2, hi.X)
	xm := math.Max(p.X-f.grid.Dx/2, lo.X)
	gx = diff(tomo.Point{X: xp, Y: p.Y, Z: p.Z}, tomo.Point{X: xm, Y: p.Y, Z: p.Z}, xp-xm)
	yp := math.Min(p.Y+f.grid.Dy/2, hi.Y)
	ym := math.Max(p.Y-f.grid.Dy/2, lo.Y)
	gy = diff(tomo.Point{X: p.X, Y: yp, Z: p.Z}, tomo.Point{X: p.X, Y: ym, Z: p.Z}, yp-ym)
	zp := math.Min(p.Z+f.grid.Dz/2, hi.Z)
	zm := math.Max(p.Z-f.grid.Dz/2, lo.Z)
	gz = diff(tomo.Point{X: p.X, Y: p.Y, Z: zp}, tomo.Point{X: p.X, Y: p.Y, Z: zm}, zp-zm)
	return gx, gy, gz
}

// traceStep fixes the ray sampling interval at a quarter of the smallest
// node spacing.
func traceStep(g tomo.Grid) float64 {
	return math.Min(g.Dx, math.Min(g.Dy, g.Dz)) / 4
}

func clampPoint(p, lo, hi tomo.Point) tomo.Point {
	return tomo.Point{
		X: math.Min(math.Max(p.X, lo.X), hi.X),
		Y: math.Min(math.Max(p.Y, lo.Y), hi.Y),
		Z: math.Min(math.Max(p.Z, lo.Z), hi.Z),
	}
}

// trilinear interpolates vals (one per node of g) at p. Coordinates outside
// the lattice clamp to the boundary value, so callers gate with Contains
// where out-of-bounds must be an error.
func trilinear(g tomo.Grid, vals []float64, p tomo.Point) float64 {
	fx, i0, i1 := axisFrac(p.X-g.Origin.X, g.Dx, g.Nx)
	fy, j0, j1 := axisFrac(p.Y-g.Origin.Y, g.Dy, g.Ny)
	fz, k0, k1 := axisFrac(p.Z-g.Origin.Z, g.Dz, g.Nz)

	c000 := vals[g.NodeIndex(i0, j0, k0)]
	c100 := vals[g.NodeIndex(i1, j0, k0)]
	c010 := vals[g.NodeIndex(i0, j1, k0)]
	c110 := vals[g.NodeIndex(i1, j1, k0)]
	c001 := vals[g.NodeIndex(i0, j0, k1)]
	c101 := vals[g.NodeIndex(i1, j0, k1)]
	c011 := vals[g.NodeIndex(i0, j1, k1)]
	c111 := vals[g.NodeIndex(i1, j1, k1)]

	c00 := c000*(1-fx) + c100*fx
	c10 := c010*(1-fx) + c110*fx
	c01 := c001*(1-fx) + c101*fx
	c11 := c011*(1-fx) + c111*fx
	c0 := c00*(1-fy) + c10*fy
	c1 := c01*(1-fy) + c11*fy
	return c0*(1-fz) + c1*fz
}

// axisFrac maps a coordinate offset along one axis to its bracketing node
// pair and interpolation fraction, clamped to the lattice.
func axisFrac(off, d float64, n int) (frac float64, lo, hi int) {
	if n == 1 {
		return 0, 0, 0
	}
	t := off / d
	lo = int(math.Floor(t))
	if lo < 0 {
		lo = 0
	}
	if lo > n-2 {
		lo = n - 2
	}
	frac = t - float64(lo)
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	return frac, lo, lo + 1
}

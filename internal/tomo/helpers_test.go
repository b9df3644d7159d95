package tomo

import "fmt"

// uniformTestField is an analytic straight-ray travel-time field over a
// uniform velocity, standing in for the external forward solver in tests.
type uniformTestField struct {
	station Point
	v       float64
	step    float64
}

func (f *uniformTestField) Value(p Point) (float64, error) {
	return p.Dist(f.station) / f.v, nil
}

func (f *uniformTestField) Step() float64 { return f.step }

// TraceRay samples the straight segment from p toward the station every
// step, starting at p. The station endpoint itself may be short of the last
// sample; path-length proxies only need the sample count.
func (f *uniformTestField) TraceRay(p Point) ([]Point, error) {
	d := p.Dist(f.station)
	if d == 0 {
		return []Point{p}, nil
	}
	n := int(d/f.step) + 1
	pts := make([]Point, n)
	for i := range pts {
		t := float64(i) * f.step / d
		pts[i] = Point{
			X: p.X + t*(f.station.X-p.X),
			Y: p.Y + t*(f.station.Y-p.Y),
			Z: p.Z + t*(f.station.Z-p.Z),
		}
	}
	return pts, nil
}

// testProvider resolves stations to uniform fields, ignoring the model;
// unknown stations report ErrFieldUnavailable like the production provider.
type testProvider struct {
	fields map[string]*uniformTestField
}

func (tp *testProvider) Field(m *Model, station string, phase Phase) (TraveltimeField, error) {
	f, ok := tp.fields[station]
	if !ok {
		return nil, fmt.Errorf("station %s phase %s: %w", station, phase, ErrFieldUnavailable)
	}
	return f, nil
}

func testGrid(nx, ny, nz int, d float64) Grid {
	return Grid{Dx: d, Dy: d, Dz: d, Nx: nx, Ny: ny, Nz: nz}
}

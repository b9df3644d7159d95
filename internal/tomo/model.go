package tomo

import "fmt"

// Model is a velocity field sampled on a regular grid: one velocity (km/s)
// per node in row-major order. A model is immutable during an iteration's
// realizations and replaced wholesale by the update step.
type Model struct {
	Grid Grid
	V    []float64
}

// NewModel wraps a value slice as a model. len(v) must match the grid.
func NewModel(g Grid, v []float64) (*Model, error) {
	if err := g.Check(); err != nil {
		return nil, err
	}
	if len(v) != g.NumNodes() {
		return nil, fmt.Errorf("model: got %d values for %d nodes", len(v), g.NumNodes())
	}
	return &Model{Grid: g, V: v}, nil
}

// NewUniformModel returns a model with velocity v at every node.
func NewUniformModel(g Grid, v float64) (*Model, error) {
	if v <= 0 {
		return nil, fmt.Errorf("model: velocity must be positive, got %g", v)
	}
	vals := make([]float64, g.NumNodes())
	for i := range vals {
		vals[i] = v
	}
	return NewModel(g, vals)
}

// Clone returns a deep copy of the model.
func (m *Model) Clone() *Model {
	v := make([]float64, len(m.V))
	copy(v, m.V)
	return &Model{Grid: m.Grid, V: v}
}

// minSlowness floors the additive slowness update so velocities stay finite
// and positive. Nodes that would cross zero are clamped and counted.
const minSlowness = 1e-6

// ApplySlownessUpdate returns a new model whose per-node slowness is the
// receiver's plus delta, clamped to minSlowness, along with the number of
// clamped nodes. delta holds one delta-slowness value per node (s/km).
func (m *Model) ApplySlownessUpdate(delta []float64) (*Model, int, error) {
	if len(delta) != len(m.V) {
		return nil, 0, fmt.Errorf("model: update has %d values for %d nodes", len(delta), len(m.V))
	}
	out := make([]float64, len(m.V))
	clamped := 0
	for i, v := range m.V {
		s := 1/v + delta[i]
		if s < minSlowness {
			s = minSlowness
			clamped++
		}
		out[i] = 1 / s
	}
	return &Model{Grid: m.Grid, V: out}, clamped, nil
}

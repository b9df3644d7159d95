// Package tomo implements a stochastic ensemble tomography engine: it refines
// a gridded seismic velocity model by repeatedly partitioning the model domain
// into random Voronoi cells, solving a damped sparse least-squares system that
// maps per-cell slowness perturbations to observed travel-time residuals, and
// aggregating many such randomized realizations, with outlier rejection, into
// a smoothed model update.
//
// The engine is organized as a pipeline run by Controller:
//
//	for each iteration (sequential):
//	    for each realization (parallel, independently seeded):
//	        sample arrivals -> tessellate -> build sensitivity -> solve -> back-project
//	    Tukey-filter the ensemble per grid node -> mean -> apply slowness update
//
// Forward travel-time fields and model persistence are collaborator
// interfaces; implementations live in internal/forward and internal/modelio.
package tomo

// TraveltimeField is a queryable travel-time field for one station and phase,
// produced by an external eikonal solver. Value returns the travel time
// between the station and p. TraceRay returns the ray path from p back to the
// station as a polyline sampled at Step intervals, p first.
type TraveltimeField interface {
	Value(p Point) (float64, error)
	TraceRay(from Point) ([]Point, error)
	Step() float64
}

// FieldProvider resolves the travel-time field for a station and phase
// against a velocity model. The model argument lets providers recompute or
// invalidate cached fields when the controller swaps models between
// iterations. Implementations must be safe for concurrent use: fields are
// shared read-only across realizations within an iteration. A missing field
// is reported with ErrFieldUnavailable in the error chain.
type FieldProvider interface {
	Field(m *Model, station string, phase Phase) (TraveltimeField, error)
}

// ModelWriter persists the model produced by an iteration's update step.
type ModelWriter interface {
	WriteModel(m *Model, phase Phase, iteration int) error
}

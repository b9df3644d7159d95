package tomo

import (
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// RealizationParams configure one randomized realization.
type RealizationParams struct {
	NVoronoi int     // generator points per tessellation
	Adaptive bool    // density-adaptive generator placement
	NArrival int     // arrivals sampled per realization, 0 keeps all
	OutlierK float64 // Tukey factor for the residual prefilter
	Solver   SolverParams
}

// RealizationStats records one realization's diagnostics for the iteration
// summary and the run store.
type RealizationStats struct {
	Index              int
	Arrivals           int // sensitivity rows
	PrefilterRejected  int // arrivals outside the residual fences
	DroppedRays        int // arrivals without a traceable ray
	Stop               SolverStop
	SolverIters        int
	ResidualNorm       float64
	NormalResidualNorm float64
	CondEstimate       float64
	PerturbationNorm   float64 // euclidean norm of the per-cell solution
	Failed             bool
	Err                string
}

// RunRealization executes one realization against the iteration's shared
// inputs: sample arrivals, tessellate the domain, assemble the sensitivity
// system, solve it, and back-project the per-cell perturbation onto the
// grid. The returned field holds one delta-slowness value per grid node.
// All randomness comes from rng, so a realization is a pure function of the
// model, candidate set and seed.
func RunRealization(m *Model, cands []ArrivalResidual, provider FieldProvider, p RealizationParams, rng *rand.Rand) ([]float64, RealizationStats, error) {
	var stats RealizationStats

	samples, rejected := SampleArrivals(cands, p.OutlierK, p.NArrival, rng)
	stats.PrefilterRejected = rejected
	if len(samples) == 0 {
		return nil, stats, ErrNoArrivals
	}

	var gens []Point
	if p.Adaptive {
		gens = AdaptiveGenerators(m, p.NVoronoi, samples, provider, rng)
	} else {
		min, max := m.Grid.Bounds()
		gens = UniformGenerators(min, max, p.NVoronoi, rng)
	}
	tess, err := NewTessellation(gens)
	if err != nil {
		return nil, stats, err
	}

	a, residuals, bstats, err := BuildSensitivity(m, tess, samples, provider)
	if err != nil {
		return nil, stats, err
	}
	stats.Arrivals = bstats.Rows
	stats.DroppedRays = bstats.DroppedRays
	if bstats.Rows == 0 {
		return nil, stats, ErrNoArrivals
	}

	res, err := SolveLSMR(a, residuals, p.Solver)
	if err != nil {
		return nil, stats, err
	}
	stats.Stop = res.Stop
	stats.SolverIters = res.Iters
	stats.ResidualNorm = res.ResidualNorm
	stats.NormalResidualNorm = res.NormalResidualNorm
	stats.CondEstimate = res.CondEstimate
	stats.PerturbationNorm = floats.Norm(res.X, 2)

	// Broadcast each cell's perturbation to its member nodes.
	assign := tess.Assign(m.Grid)
	field := make([]float64, len(assign))
	for idx, cell := range assign {
		field[idx] = res.X[cell]
	}
	return field, stats, nil
}

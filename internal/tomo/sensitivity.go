package tomo

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/banshee-data/tomo.report/internal/monitoring"
)

// ComputeResiduals evaluates the forward field at each arrival's source and
// pairs the arrival with its travel-time residual (observed minus
// predicted). Arrivals with a missing field or a non-finite prediction are
// dropped and counted, not fatal. Residuals depend only on the model, so the
// controller computes them once per iteration and shares them read-only
// across that iteration's realizations.
func ComputeResiduals(m *Model, arrivals []Arrival, provider FieldProvider) ([]ArrivalResidual, int) {
	cands := make([]ArrivalResidual, 0, len(arrivals))
	dropped := 0
	for _, arr := range arrivals {
		f, err := provider.Field(m, arr.Station, arr.Phase)
		if err != nil {
			monitoring.Debugf("tomo: dropping arrival %s/%s: %v", arr.EventID, arr.Station, err)
			dropped++
			continue
		}
		pred, err := f.Value(arr.Source)
		if err != nil || math.IsNaN(pred) || math.IsInf(pred, 0) {
			monitoring.Debugf("tomo: dropping arrival %s/%s: no field coverage at source", arr.EventID, arr.Station)
			dropped++
			continue
		}
		cands = append(cands, ArrivalResidual{Arrival: arr, Residual: arr.Time - pred})
	}
	return cands, dropped
}

// SampleArrivals prepares one realization's arrival subset: candidates whose
// residual falls outside the Tukey fences of the candidate residual
// distribution are rejected (k <= 0 disables the prefilter), then the
// survivors are sampled without replacement down to narrival using the
// realization's stream (narrival <= 0 keeps all). Returned arrivals keep
// their candidate order so row layout is independent of sampling order.
func SampleArrivals(cands []ArrivalResidual, k float64, narrival int, rng *rand.Rand) ([]ArrivalResidual, int) {
	kept := cands
	rejected := 0
	if k > 0 && len(cands) > 1 {
		res := make([]float64, len(cands))
		for i, c := range cands {
			res[i] = c.Residual
		}
		sort.Float64s(res)
		lo, hi := tukeyFences(res, k)
		kept = make([]ArrivalResidual, 0, len(cands))
		for _, c := range cands {
			if c.Residual < lo || c.Residual > hi {
				rejected++
				continue
			}
			kept = append(kept, c)
		}
	}
	if narrival > 0 && narrival < len(kept) {
		idx := rng.Perm(len(kept))[:narrival]
		sort.Ints(idx)
		sampled := make([]ArrivalResidual, narrival)
		for i, j := range idx {
			sampled[i] = kept[j]
		}
		kept = sampled
	}
	return kept, rejected
}

// BuildStats reports what sensitivity assembly kept and dropped.
type BuildStats struct {
	Rows        int // arrivals with a usable ray, one matrix row each
	DroppedRays int // arrivals dropped because no ray could be traced
}

// BuildSensitivity assembles the sparse sensitivity system for one
// realization: one row per arrival with a traceable ray, one column per
// Voronoi cell, entry (i,j) the path length of arrival i's ray inside cell
// j (ray sample count times the field's step), plus the matching residual
// vector. Arrivals whose ray cannot be traced are dropped and counted.
func BuildSensitivity(m *Model, tess *Tessellation, samples []ArrivalResidual, provider FieldProvider) (*SparseMatrix, []float64, BuildStats, error) {
	a := NewSparseMatrix(tess.NumCells())
	residuals := make([]float64, 0, len(samples))
	var stats BuildStats
	for _, s := range samples {
		f, err := provider.Field(m, s.Arrival.Station, s.Arrival.Phase)
		if err != nil {
			stats.DroppedRays++
			continue
		}
		ray, err := f.TraceRay(s.Arrival.Source)
		if err != nil || len(ray) == 0 {
			monitoring.Debugf("tomo: no ray for arrival %s/%s: %v", s.Arrival.EventID, s.Arrival.Station, err)
			stats.DroppedRays++
			continue
		}
		counts := make(map[int]int)
		for _, p := range ray {
			counts[tess.CellOf(p)]++
		}
		cols := make([]int, 0, len(counts))
		for c := range counts {
			cols = append(cols, c)
		}
		sort.Ints(cols)
		vals := make([]float64, len(cols))
		step := f.Step()
		for i, c := range cols {
			vals[i] = float64(counts[c]) * step
		}
		if err := a.AppendRow(cols, vals); err != nil {
			return nil, nil, stats, fmt.Errorf("sensitivity row for %s/%s: %w", s.Arrival.EventID, s.Arrival.Station, err)
		}
		residuals = append(residuals, s.Residual)
		stats.Rows++
	}
	return a, residuals, stats, nil
}

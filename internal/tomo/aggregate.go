package tomo

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// FilterStats summarizes outlier rejection across one ensemble.
type FilterStats struct {
	TotalSamples    int
	RejectedSamples int
	NodesFiltered   int // nodes that had at least one sample rejected
}

// RejectedFraction returns the share of ensemble samples rejected.
func (s FilterStats) RejectedFraction() float64 {
	if s.TotalSamples == 0 {
		return 0
	}
	return float64(s.RejectedSamples) / float64(s.TotalSamples)
}

// AggregateEnsemble reduces an ensemble of realization fields, shape
// (nreal, nnodes), to one update value per node: each node's samples are
// Tukey-filtered with factor k, then the retained samples are averaged.
// Nodes are treated independently because retained counts vary by node.
func AggregateEnsemble(ens *mat.Dense, k float64) ([]float64, FilterStats) {
	nreal, nnodes := ens.Dims()
	update := make([]float64, nnodes)
	fs := FilterStats{TotalSamples: nreal * nnodes}
	col := make([]float64, nreal)
	for j := 0; j < nnodes; j++ {
		mat.Col(col, j, ens)
		kept := FilterSamples(col, k)
		if len(kept) < nreal {
			fs.RejectedSamples += nreal - len(kept)
			fs.NodesFiltered++
		}
		update[j] = stat.Mean(kept, nil)
	}
	return update, fs
}

// VarianceField returns the per-node sample variance of the raw ensemble,
// before any outlier filtering. High-variance nodes mark regions the data
// constrain poorly, so the field doubles as a resolution diagnostic.
func VarianceField(ens *mat.Dense) []float64 {
	nreal, nnodes := ens.Dims()
	variance := make([]float64, nnodes)
	if nreal < 2 {
		return variance
	}
	col := make([]float64, nreal)
	for j := 0; j < nnodes; j++ {
		mat.Col(col, j, ens)
		variance[j] = stat.Variance(col, nil)
	}
	return variance
}

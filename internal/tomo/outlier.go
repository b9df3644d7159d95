package tomo

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// tukeyFences returns [Q1 - k*IQR, Q3 + k*IQR] over sorted samples.
func tukeyFences(sorted []float64, k float64) (lo, hi float64) {
	q1 := stat.Quantile(0.25, stat.LinInterp, sorted, nil)
	q3 := stat.Quantile(0.75, stat.LinInterp, sorted, nil)
	iqr := q3 - q1
	return q1 - k*iqr, q3 + k*iqr
}

// FilterSamples returns the samples lying inside the Tukey fences
// [Q1 - k*IQR, Q3 + k*IQR] of the sample set. Tukey's convention puts k at
// 1.5 for outliers and 3 for far-off values; the factor is always caller
// supplied. If fewer than two samples survive, the full input is returned
// unchanged so the aggregate is never empty.
func FilterSamples(samples []float64, k float64) []float64 {
	if len(samples) < 2 {
		return samples
	}
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)
	lo, hi := tukeyFences(sorted, k)
	kept := make([]float64, 0, len(samples))
	for _, v := range samples {
		if v >= lo && v <= hi {
			kept = append(kept, v)
		}
	}
	if len(kept) < 2 {
		return samples
	}
	return kept
}

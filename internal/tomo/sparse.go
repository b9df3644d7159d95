package tomo

import (
	"fmt"
	"sort"
)

// SparseMatrix is a compressed sparse row matrix assembled one row at a
// time: the sensitivity builder appends one row per kept arrival, with one
// column per Voronoi cell. Entries within a row are kept ordered by column
// so matrix-vector products are deterministic.
type SparseMatrix struct {
	cols   int
	rowPtr []int
	colIdx []int
	vals   []float64
}

// NewSparseMatrix returns an empty matrix with a fixed column count.
func NewSparseMatrix(cols int) *SparseMatrix {
	return &SparseMatrix{cols: cols, rowPtr: []int{0}}
}

// Dims returns the current row count and the column count.
func (m *SparseMatrix) Dims() (rows, cols int) { return len(m.rowPtr) - 1, m.cols }

// NNZ returns the number of stored entries.
func (m *SparseMatrix) NNZ() int { return len(m.vals) }

// AppendRow adds one row from parallel column-index and value slices.
// Zero values are skipped; columns within a row must be unique.
func (m *SparseMatrix) AppendRow(cols []int, vals []float64) error {
	if len(cols) != len(vals) {
		return fmt.Errorf("sparse: %d columns for %d values", len(cols), len(vals))
	}
	start := len(m.colIdx)
	for i, c := range cols {
		if c < 0 || c >= m.cols {
			return fmt.Errorf("sparse: column %d out of range [0,%d)", c, m.cols)
		}
		if vals[i] == 0 {
			continue
		}
		m.colIdx = append(m.colIdx, c)
		m.vals = append(m.vals, vals[i])
	}
	sort.Sort(rowView{cols: m.colIdx[start:], vals: m.vals[start:]})
	m.rowPtr = append(m.rowPtr, len(m.colIdx))
	return nil
}

type rowView struct {
	cols []int
	vals []float64
}

func (r rowView) Len() int           { return len(r.cols) }
func (r rowView) Less(i, j int) bool { return r.cols[i] < r.cols[j] }
func (r rowView) Swap(i, j int) {
	r.cols[i], r.cols[j] = r.cols[j], r.cols[i]
	r.vals[i], r.vals[j] = r.vals[j], r.vals[i]
}

// MulVec computes dst = M·x. dst must have the row count, x the column count.
func (m *SparseMatrix) MulVec(dst, x []float64) {
	rows, cols := m.Dims()
	if len(dst) != rows || len(x) != cols {
		panic("tomo: sparse dimension mismatch")
	}
	for i := 0; i < rows; i++ {
		var sum float64
		for p := m.rowPtr[i]; p < m.rowPtr[i+1]; p++ {
			sum += m.vals[p] * x[m.colIdx[p]]
		}
		dst[i] = sum
	}
}

// MulTransVec computes dst = Mᵀ·y. dst must have the column count, y the
// row count.
func (m *SparseMatrix) MulTransVec(dst, y []float64) {
	rows, cols := m.Dims()
	if len(dst) != cols || len(y) != rows {
		panic("tomo: sparse dimension mismatch")
	}
	for i := range dst {
		dst[i] = 0
	}
	for i := 0; i < rows; i++ {
		yi := y[i]
		if yi == 0 {
			continue
		}
		for p := m.rowPtr[i]; p < m.rowPtr[i+1]; p++ {
			dst[m.colIdx[p]] += m.vals[p] * yi
		}
	}
}

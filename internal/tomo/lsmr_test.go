package tomo

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"
)

// lsmrTestSystem builds a full-rank 6x4 sparse system with a known sparse
// solution and a consistent right-hand side.
func lsmrTestSystem(t *testing.T) (*SparseMatrix, []float64, []float64) {
	t.Helper()
	a := NewSparseMatrix(4)
	rows := []struct {
		cols []int
		vals []float64
	}{
		{[]int{0, 1}, []float64{1, 2}},
		{[]int{1, 2}, []float64{3, 1}},
		{[]int{2, 3}, []float64{2, 2}},
		{[]int{0, 3}, []float64{1, 4}},
		{[]int{0, 2}, []float64{2, 1}},
		{[]int{1, 3}, []float64{1, 1}},
	}
	for _, r := range rows {
		if err := a.AppendRow(r.cols, r.vals); err != nil {
			t.Fatalf("append row: %v", err)
		}
	}
	xtrue := []float64{0, 2, 0, -1}
	b := make([]float64, 6)
	a.MulVec(b, xtrue)
	return a, xtrue, b
}

func TestSolveLSMR_RecoversTruePerturbation(t *testing.T) {
	a, xtrue, b := lsmrTestSystem(t)
	res, err := SolveLSMR(a, b, SolverParams{ATol: 1e-12, BTol: 1e-12, ConLim: 1e10, MaxIter: 200})
	if err != nil {
		t.Fatalf("expected solve, got %v", err)
	}
	if !res.Stop.Converged() {
		t.Fatalf("expected convergence, got stop %v after %d iters", res.Stop, res.Iters)
	}
	for i := range xtrue {
		if math.Abs(res.X[i]-xtrue[i]) > 1e-8 {
			t.Errorf("x[%d]: expected %g, got %g", i, xtrue[i], res.X[i])
		}
	}
}

func TestSolveLSMR_DampShrinksSolution(t *testing.T) {
	a, _, b := lsmrTestSystem(t)
	damps := []float64{0, 0.1, 1, 5, 50}
	prev := math.Inf(1)
	for _, damp := range damps {
		res, err := SolveLSMR(a, b, SolverParams{Damp: damp, ATol: 1e-12, BTol: 1e-12, ConLim: 1e10, MaxIter: 200})
		if err != nil {
			t.Fatalf("damp %g: %v", damp, err)
		}
		norm := floats.Norm(res.X, 2)
		if norm > prev+1e-8 {
			t.Errorf("damp %g: expected norm <= %g, got %g", damp, prev, norm)
		}
		prev = norm
	}
	if prev > 0.1 {
		t.Errorf("expected heavy damping to shrink solution toward zero, got norm %g", prev)
	}
}

func TestSolveLSMR_ZeroRHS(t *testing.T) {
	a, _, _ := lsmrTestSystem(t)
	res, err := SolveLSMR(a, make([]float64, 6), DefaultSolverParams())
	if err != nil {
		t.Fatalf("expected solve, got %v", err)
	}
	if res.Stop != StopZero {
		t.Errorf("expected StopZero, got %v", res.Stop)
	}
	for i, v := range res.X {
		if v != 0 {
			t.Errorf("x[%d]: expected 0, got %g", i, v)
		}
	}
}

func TestSolveLSMR_MaxIterReturnsBestIterate(t *testing.T) {
	a, _, b := lsmrTestSystem(t)
	res, err := SolveLSMR(a, b, SolverParams{ATol: 1e-14, BTol: 1e-14, ConLim: 1e12, MaxIter: 1})
	if err != nil {
		t.Fatalf("expected solve, got %v", err)
	}
	if res.Stop != StopMaxIter {
		t.Errorf("expected StopMaxIter, got %v", res.Stop)
	}
	if res.Stop.Converged() {
		t.Error("maxiter stop must not report convergence")
	}
	if res.Iters != 1 {
		t.Errorf("expected 1 iteration, got %d", res.Iters)
	}
	for i, v := range res.X {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("x[%d] not finite: %g", i, v)
		}
	}
}

func TestSolveLSMR_ConditionLimit(t *testing.T) {
	// Column scales spread over orders of magnitude give a condition number
	// far above the limit; with zero tolerances only the condition guard or
	// the machine guards can stop the iteration, and the condition guard
	// takes precedence.
	a := NewSparseMatrix(6)
	scales := []float64{10, 7, 5, 3, 2, 1, 0.5, 0.02}
	for i, s := range scales {
		cols := []int{i % 6, (i + 1) % 6}
		vals := []float64{s, 0.1}
		if err := a.AppendRow(cols, vals); err != nil {
			t.Fatal(err)
		}
	}
	b := []float64{1.1, -0.9, 1.2, 0.8, -1.1, 1.0, -0.8, 0.9}
	res, err := SolveLSMR(a, b, SolverParams{ConLim: 5, MaxIter: 100})
	if err != nil {
		t.Fatalf("expected solve, got %v", err)
	}
	if !res.Stop.IllConditioned() {
		t.Fatalf("expected condition-limit stop, got %v (cond estimate %g)", res.Stop, res.CondEstimate)
	}
	if res.Stop.Converged() {
		t.Error("condition-limit stop must not report convergence")
	}
	for i, v := range res.X {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("x[%d] not finite: %g", i, v)
		}
	}

	// The same system with a loose limit runs to convergence.
	loose, err := SolveLSMR(a, b, SolverParams{ATol: 1e-12, BTol: 1e-12, ConLim: 1e10, MaxIter: 100})
	if err != nil {
		t.Fatalf("expected solve, got %v", err)
	}
	if !loose.Stop.Converged() {
		t.Errorf("expected convergence with loose limit, got %v", loose.Stop)
	}
}

func TestSolveLSMR_UntouchedColumnStaysZero(t *testing.T) {
	// Column 1 is crossed by no row; damping keeps it exactly zero.
	a := NewSparseMatrix(3)
	if err := a.AppendRow([]int{0}, []float64{2}); err != nil {
		t.Fatal(err)
	}
	if err := a.AppendRow([]int{2}, []float64{1}); err != nil {
		t.Fatal(err)
	}
	res, err := SolveLSMR(a, []float64{4, 3}, SolverParams{Damp: 0.5, ATol: 1e-12, BTol: 1e-12, ConLim: 1e10, MaxIter: 100})
	if err != nil {
		t.Fatalf("expected solve, got %v", err)
	}
	if res.X[1] != 0 {
		t.Errorf("expected untouched column to stay zero, got %g", res.X[1])
	}
	for i, v := range res.X {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("x[%d] not finite: %g", i, v)
		}
	}
}

func TestSolveLSMR_DimensionMismatch(t *testing.T) {
	a, _, _ := lsmrTestSystem(t)
	if _, err := SolveLSMR(a, make([]float64, 5), DefaultSolverParams()); err == nil {
		t.Error("expected error for mismatched right-hand side length")
	}
}

func TestSolverStop_Labels(t *testing.T) {
	cases := []struct {
		stop      SolverStop
		converged bool
		illCond   bool
	}{
		{StopZero, true, false},
		{StopResidual, true, false},
		{StopLeastSquares, true, false},
		{StopCondLim, false, true},
		{StopResidualMachine, true, false},
		{StopLeastSquaresMachine, true, false},
		{StopCondMachine, false, true},
		{StopMaxIter, false, false},
	}
	for _, c := range cases {
		if c.stop.Converged() != c.converged {
			t.Errorf("%v: expected Converged()=%v", c.stop, c.converged)
		}
		if c.stop.IllConditioned() != c.illCond {
			t.Errorf("%v: expected IllConditioned()=%v", c.stop, c.illCond)
		}
		if c.stop.String() == "" {
			t.Errorf("%v: expected non-empty label", int(c.stop))
		}
	}
}

package tomo

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// lsmr implements the LSMR algorithm of Fong & Saunders (2011) for the
// regularized least-squares problem
//
//	min ‖(A; damp·I)·x − (b; 0)‖₂
//
// via Golub–Kahan bidiagonalization. The recurrences, residual estimates and
// stopping tests follow the reference formulation, so the tolerances behave
// the way they do there: btol and atol are relative tolerances on the system
// and normal-equation residuals, conlim halts iteration when the
// condition-number estimate of the damped operator exceeds it, and maxiter
// caps the iteration count.
//
// The solver never fails outright: it always returns the best iterate found
// together with a stop reason describing its quality. Cells crossed by no
// ray yield zero columns; with damp > 0 their solution components stay zero
// and the system remains well posed.

// LeastSquaresOperator is the matrix view the solver needs: forward and
// transposed matrix-vector products. SparseMatrix satisfies it.
type LeastSquaresOperator interface {
	Dims() (rows, cols int)
	MulVec(dst, x []float64)
	MulTransVec(dst, y []float64)
}

// SolverParams configure a damped least-squares solve.
type SolverParams struct {
	Damp    float64 // Tikhonov damping factor
	ATol    float64 // relative tolerance on the normal-equation residual
	BTol    float64 // relative tolerance on the system residual
	ConLim  float64 // condition-number limit, 0 disables the guard
	MaxIter int     // iteration cap, 0 means min(rows, cols)
}

// DefaultSolverParams mirrors the reference defaults: tolerances 1e-6,
// condition limit 1e8, no damping.
func DefaultSolverParams() SolverParams {
	return SolverParams{ATol: 1e-6, BTol: 1e-6, ConLim: 1e8}
}

// SolverStop explains why the iteration stopped. None of the reasons is an
// error; the returned iterate is always usable.
type SolverStop int

const (
	// StopZero: the right-hand side is zero, x = 0 is the exact solution.
	StopZero SolverStop = iota
	// StopResidual: Ax ≈ b holds within atol and btol (consistent system).
	StopResidual
	// StopLeastSquares: the normal-equation residual met atol.
	StopLeastSquares
	// StopCondLim: the condition estimate exceeded conlim.
	StopCondLim
	// StopResidualMachine: the residual test was met at machine precision.
	StopResidualMachine
	// StopLeastSquaresMachine: the normal-equation test was met at machine
	// precision.
	StopLeastSquaresMachine
	// StopCondMachine: the condition estimate exceeds machine limits.
	StopCondMachine
	// StopMaxIter: the iteration cap was reached before any tolerance test.
	StopMaxIter
)

func (s SolverStop) String() string {
	switch s {
	case StopZero:
		return "zero-rhs"
	case StopResidual:
		return "residual-tol"
	case StopLeastSquares:
		return "normal-eq-tol"
	case StopCondLim:
		return "cond-limit"
	case StopResidualMachine:
		return "residual-machine"
	case StopLeastSquaresMachine:
		return "normal-eq-machine"
	case StopCondMachine:
		return "cond-machine"
	case StopMaxIter:
		return "maxiter"
	}
	return fmt.Sprintf("stop(%d)", int(s))
}

// Converged reports whether a tolerance test was met. Condition-limit and
// iteration-cap stops return false; callers treat those as quality warnings,
// not failures.
func (s SolverStop) Converged() bool {
	switch s {
	case StopZero, StopResidual, StopLeastSquares, StopResidualMachine, StopLeastSquaresMachine:
		return true
	}
	return false
}

// IllConditioned reports whether the stop was caused by the condition
// estimate exceeding its limit.
func (s SolverStop) IllConditioned() bool {
	return s == StopCondLim || s == StopCondMachine
}

// SolverResult carries the returned iterate and its quality diagnostics.
// ResidualNorm and NormalResidualNorm are estimates for the damped system
// ‖(b;0) − (A; damp·I)x‖ and the corresponding normal-equation residual.
type SolverResult struct {
	X                  []float64
	Stop               SolverStop
	Iters              int
	ResidualNorm       float64
	NormalResidualNorm float64
	CondEstimate       float64
}

// SolveLSMR solves min ‖(A; damp·I)x − (b; 0)‖₂ by the LSMR iteration.
// len(b) must equal the operator's row count; that is the only error case.
func SolveLSMR(a LeastSquaresOperator, b []float64, p SolverParams) (*SolverResult, error) {
	rows, cols := a.Dims()
	if len(b) != rows {
		return nil, fmt.Errorf("lsmr: got %d observations for %d matrix rows", len(b), rows)
	}
	if rows == 0 || cols == 0 {
		return &SolverResult{X: make([]float64, cols), Stop: StopZero, CondEstimate: 1}, nil
	}

	damp := math.Max(0, p.Damp)
	atol := math.Max(0, p.ATol)
	btol := math.Max(0, p.BTol)
	maxiter := p.MaxIter
	if maxiter <= 0 {
		maxiter = min(rows, cols)
	}
	ctol := 0.0
	if p.ConLim > 0 {
		ctol = 1 / p.ConLim
	}

	u := make([]float64, rows)
	copy(u, b)
	normb := floats.Norm(u, 2)

	x := make([]float64, cols)
	v := make([]float64, cols)
	av := make([]float64, rows)  // A·v scratch
	atu := make([]float64, cols) // Aᵀ·u scratch

	beta := normb
	var alpha float64
	if beta > 0 {
		floats.Scale(1/beta, u)
		a.MulTransVec(v, u)
		alpha = floats.Norm(v, 2)
	}
	if alpha > 0 {
		floats.Scale(1/alpha, v)
	}

	// Variables for the main recurrences.
	zetabar := alpha * beta
	alphabar := alpha
	rho, rhobar, cbar, sbar := 1.0, 1.0, 1.0, 0.0

	h := make([]float64, cols)
	copy(h, v)
	hbar := make([]float64, cols)

	// Variables for the ‖r‖ estimate.
	betadd := beta
	betad := 0.0
	rhodold := 1.0
	tautildeold := 0.0
	thetatilde := 0.0
	zeta := 0.0
	d := 0.0

	// Variables for the ‖A‖ and cond(A) estimates.
	normA2 := alpha * alpha
	maxrbar := 0.0
	minrbar := 1e+100
	normA := math.Sqrt(normA2)
	condA := 1.0

	normr := beta
	normar := alpha * beta
	if normar == 0 {
		// x = 0 is the exact solution.
		return &SolverResult{X: x, Stop: StopZero, ResidualNorm: normr, CondEstimate: 1}, nil
	}

	var istop SolverStop
	itn := 0
	for itn < maxiter {
		itn++

		// Next step of the bidiagonalization: u = A·v − alpha·u,
		// then v = Aᵀ·u − beta·v.
		a.MulVec(av, v)
		floats.Scale(-alpha, u)
		floats.Add(u, av)
		beta = floats.Norm(u, 2)
		if beta > 0 {
			floats.Scale(1/beta, u)
			a.MulTransVec(atu, u)
			floats.Scale(-beta, v)
			floats.Add(v, atu)
			alpha = floats.Norm(v, 2)
			if alpha > 0 {
				floats.Scale(1/alpha, v)
			}
		}

		// Fold the damping into the bidiagonal via rotation Qhat.
		chat, shat, alphahat := symOrtho(alphabar, damp)

		// Rotation Q turns the bidiagonal B into upper-bidiagonal R.
		rhoold := rho
		var c, s float64
		c, s, rho = symOrtho(alphahat, beta)
		thetanew := s * alpha
		alphabar = c * alpha

		// Rotation Qbar solves the least-squares subproblem for R.
		rhobarold := rhobar
		zetaold := zeta
		thetabar := sbar * rho
		rhotemp := cbar * rho
		cbar, sbar, rhobar = symOrtho(cbar*rho, thetanew)
		zeta = cbar * zetabar
		zetabar = -sbar * zetabar

		// Update hbar, x, h.
		coef := thetabar * rho / (rhoold * rhobarold)
		floats.Scale(-coef, hbar)
		floats.Add(hbar, h)
		floats.AddScaled(x, zeta/(rho*rhobar), hbar)
		floats.Scale(-thetanew/rho, h)
		floats.Add(h, v)

		// Residual-norm estimate.
		betaacute := chat * betadd
		betacheck := -shat * betadd
		betahat := c * betaacute
		betadd = -s * betaacute

		thetatildeold := thetatilde
		ctildeold, stildeold, rhotildeold := symOrtho(rhodold, thetabar)
		thetatilde = stildeold * rhobar
		rhodold = ctildeold * rhobar
		betad = -stildeold*betad + ctildeold*betahat

		tautildeold = (zetaold - thetatildeold*tautildeold) / rhotildeold
		taud := (zeta - thetatilde*tautildeold) / rhodold
		d += betacheck * betacheck
		normr = math.Sqrt(d + (betad-taud)*(betad-taud) + betadd*betadd)

		// ‖A‖ and cond(A) estimates for the damped operator.
		normA2 += beta * beta
		normA = math.Sqrt(normA2)
		normA2 += alpha * alpha

		if rhobarold > maxrbar {
			maxrbar = rhobarold
		}
		if itn > 1 && rhobarold < minrbar {
			minrbar = rhobarold
		}
		condA = math.Max(maxrbar, rhotemp) / math.Min(minrbar, rhotemp)

		// Stopping tests, cheapest guards last so they take precedence.
		normar = math.Abs(zetabar)
		normx := floats.Norm(x, 2)

		test1 := normr / normb
		test2 := math.Inf(1)
		if normA*normr != 0 {
			test2 = normar / (normA * normr)
		}
		test3 := 1 / condA
		t1 := test1 / (1 + normA*normx/normb)
		rtol := btol + atol*normA*normx/normb

		if itn >= maxiter {
			istop = StopMaxIter
		}
		if 1+test3 <= 1 {
			istop = StopCondMachine
		}
		if 1+test2 <= 1 {
			istop = StopLeastSquaresMachine
		}
		if 1+t1 <= 1 {
			istop = StopResidualMachine
		}
		if test3 <= ctol {
			istop = StopCondLim
		}
		if test2 <= atol {
			istop = StopLeastSquares
		}
		if test1 <= rtol {
			istop = StopResidual
		}
		if istop != StopZero {
			break
		}
	}

	return &SolverResult{
		X:                  x,
		Stop:               istop,
		Iters:              itn,
		ResidualNorm:       normr,
		NormalResidualNorm: normar,
		CondEstimate:       condA,
	}, nil
}

// symOrtho computes a stable Givens rotation: c, s, r with
// [c s; s -c]·[a; b] = [r; 0].
func symOrtho(a, b float64) (c, s, r float64) {
	switch {
	case b == 0:
		return math.Copysign(1, a), 0, math.Abs(a)
	case a == 0:
		return 0, math.Copysign(1, b), math.Abs(b)
	case math.Abs(b) > math.Abs(a):
		tau := a / b
		s = math.Copysign(1, b) / math.Sqrt(1+tau*tau)
		c = s * tau
		r = b / s
	default:
		tau := b / a
		c = math.Copysign(1, a) / math.Sqrt(1+tau*tau)
		s = c * tau
		r = a / c
	}
	return c, s, r
}

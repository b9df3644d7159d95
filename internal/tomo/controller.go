package tomo

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/tomo.report/internal/monitoring"
)

// Status reports where a run currently is in its state machine.
type Status string

const (
	StatusInitializing        Status = "initializing"
	StatusRunningRealizations Status = "running_realizations"
	StatusAggregating         Status = "aggregating"
	StatusUpdatingModel       Status = "updating_model"
	StatusDone                Status = "done"
	StatusFailed              Status = "failed"
)

// Params is the immutable run configuration, materialized once from the
// parameter file before the run starts.
type Params struct {
	NIter    int     // outer iteration count
	NReal    int     // realizations per iteration
	NVoronoi int     // generator points per realization
	Adaptive bool    // density-adaptive tessellation
	NArrival int     // arrivals sampled per realization, 0 keeps all
	OutlierK float64 // Tukey fence multiplier
	Solver   SolverParams
	Workers  int   // realization worker pool size, 0 means GOMAXPROCS
	Seed     int64 // base seed for realization streams
}

// Validate surfaces configuration errors before any computation starts.
func (p Params) Validate() error {
	switch {
	case p.NIter <= 0:
		return &ConfigurationError{Param: "niter", Reason: fmt.Sprintf("must be positive, got %d", p.NIter)}
	case p.NReal <= 0:
		return &ConfigurationError{Param: "nreal", Reason: fmt.Sprintf("must be positive, got %d", p.NReal)}
	case p.NVoronoi <= 0:
		return &ConfigurationError{Param: "nvoronoi", Reason: fmt.Sprintf("must be positive, got %d", p.NVoronoi)}
	case p.NArrival < 0:
		return &ConfigurationError{Param: "narrival", Reason: fmt.Sprintf("must not be negative, got %d", p.NArrival)}
	case p.OutlierK <= 0:
		return &ConfigurationError{Param: "outlier_removal_factor", Reason: fmt.Sprintf("must be positive, got %g", p.OutlierK)}
	case p.Solver.ATol < 0:
		return &ConfigurationError{Param: "atol", Reason: "must not be negative"}
	case p.Solver.BTol < 0:
		return &ConfigurationError{Param: "btol", Reason: "must not be negative"}
	case p.Solver.ConLim < 0:
		return &ConfigurationError{Param: "conlim", Reason: "must not be negative"}
	case p.Solver.MaxIter < 0:
		return &ConfigurationError{Param: "maxiter", Reason: "must not be negative"}
	case p.Solver.Damp < 0:
		return &ConfigurationError{Param: "damp", Reason: "must not be negative"}
	case p.Workers < 0:
		return &ConfigurationError{Param: "workers", Reason: "must not be negative"}
	}
	return nil
}

// String renders the run configuration on one line for the startup log.
func (p Params) String() string {
	return fmt.Sprintf("niter=%d nreal=%d nvoronoi=%d adaptive=%t narrival=%d outlier_k=%g damp=%g atol=%g btol=%g conlim=%g maxiter=%d workers=%d seed=%d",
		p.NIter, p.NReal, p.NVoronoi, p.Adaptive, p.NArrival, p.OutlierK,
		p.Solver.Damp, p.Solver.ATol, p.Solver.BTol, p.Solver.ConLim, p.Solver.MaxIter,
		p.Workers, p.Seed)
}

// IterationSummary reports one phase loop of one iteration.
type IterationSummary struct {
	Iteration         int
	Phase             Phase
	Realizations      int // attempted
	Failures          int // excluded from aggregation
	CandidateArrivals int // arrivals with usable residuals
	DroppedArrivals   int // arrivals dropped at residual computation
	FilterStats       FilterStats
	ClampedNodes      int     // nodes clamped by the slowness floor
	UpdateNorm        float64 // euclidean norm of the aggregated update
	MeanResidualNorm  float64 // mean solver residual norm over successes
	MeanNodeVariance  float64 // ensemble variance averaged over grid nodes
	Duration          time.Duration
	RealizationStats  []RealizationStats
}

type phaseState struct {
	phase    Phase
	model    *Model
	arrivals []Arrival
}

// Controller owns the velocity models across iterations and drives the
// {Initializing, RunningRealizations, Aggregating, UpdatingModel, Done}
// state machine. Models are replaced wholesale between iterations and never
// mutated in place, so a cancelled or failed run leaves the last persisted
// iteration as a valid checkpoint.
type Controller struct {
	params   Params
	provider FieldProvider
	writer   ModelWriter

	mu        sync.RWMutex
	phases    []phaseState
	status    Status
	iteration int
}

// NewController validates params and assembles a run over the supplied
// initial models and arrival set. The P model is required; the S loop runs
// only when an S model is supplied and the arrival set contains S phases.
// writer may be nil to skip persistence.
func NewController(params Params, provider FieldProvider, writer ModelWriter, pModel, sModel *Model, arrivals []Arrival) (*Controller, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, &ConfigurationError{Param: "provider", Reason: "field provider required"}
	}
	if pModel == nil {
		return nil, &ConfigurationError{Param: "initial_pwave_path", Reason: "initial P model required"}
	}

	c := &Controller{params: params, provider: provider, writer: writer, status: StatusInitializing}
	if pArr := filterPhase(arrivals, PhaseP); len(pArr) > 0 {
		c.phases = append(c.phases, phaseState{phase: PhaseP, model: pModel, arrivals: pArr})
	}
	if sArr := filterPhase(arrivals, PhaseS); sModel != nil && len(sArr) > 0 {
		c.phases = append(c.phases, phaseState{phase: PhaseS, model: sModel, arrivals: sArr})
	}
	if len(c.phases) == 0 {
		return nil, &ConfigurationError{Param: "arrivals", Reason: "no phase has both a model and arrivals"}
	}
	return c, nil
}

func filterPhase(arrivals []Arrival, phase Phase) []Arrival {
	out := make([]Arrival, 0, len(arrivals))
	for _, a := range arrivals {
		if a.Phase == phase {
			out = append(out, a)
		}
	}
	return out
}

// Status returns the current state-machine position.
func (c *Controller) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Iteration returns the current outer iteration index.
func (c *Controller) Iteration() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.iteration
}

// Model returns the current model for phase, or nil if the phase is not run.
func (c *Controller) Model(phase Phase) *Model {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, ps := range c.phases {
		if ps.phase == phase {
			return ps.model
		}
	}
	return nil
}

func (c *Controller) setState(s Status, iteration int) {
	c.mu.Lock()
	c.status = s
	c.iteration = iteration
	c.mu.Unlock()
}

// Run executes the full inversion: niter sequential iterations, each
// running the P loop and then the S loop. It blocks until Done, a fatal
// error, or ctx cancellation, and returns a summary for every completed
// phase loop. Cancellation is honored between realizations and between
// iterations; a partially run iteration is never aggregated or persisted.
func (c *Controller) Run(ctx context.Context) ([]IterationSummary, error) {
	summaries := make([]IterationSummary, 0, c.params.NIter*len(c.phases))
	for iter := 0; iter < c.params.NIter; iter++ {
		for pi := range c.phases {
			if err := ctx.Err(); err != nil {
				c.setState(StatusFailed, iter)
				return summaries, fmt.Errorf("run cancelled before iteration %d: %w", iter, err)
			}
			summary, err := c.runPhase(ctx, iter, pi)
			if err != nil {
				c.setState(StatusFailed, iter)
				return summaries, err
			}
			summaries = append(summaries, summary)
			monitoring.Logf("tomo: iter %d/%d %s: %d/%d realizations ok, %d arrivals, filtered %.2f%% of samples, |update|=%.4g, clamped %d nodes (%s)",
				iter+1, c.params.NIter, summary.Phase,
				summary.Realizations-summary.Failures, summary.Realizations,
				summary.CandidateArrivals, 100*summary.FilterStats.RejectedFraction(),
				summary.UpdateNorm, summary.ClampedNodes, summary.Duration.Round(time.Millisecond))
		}
	}
	c.setState(StatusDone, c.params.NIter)
	return summaries, nil
}

func (c *Controller) runPhase(ctx context.Context, iter, pi int) (IterationSummary, error) {
	start := time.Now()
	c.setState(StatusRunningRealizations, iter)
	c.mu.RLock()
	ps := c.phases[pi]
	c.mu.RUnlock()

	summary := IterationSummary{Iteration: iter, Phase: ps.phase, Realizations: c.params.NReal}

	cands, dropped := ComputeResiduals(ps.model, ps.arrivals, c.provider)
	summary.CandidateArrivals = len(cands)
	summary.DroppedArrivals = dropped
	if len(cands) == 0 {
		return summary, &IterationError{Iteration: iter, Phase: ps.phase, Attempted: c.params.NReal, Err: ErrNoArrivals}
	}

	// Fan the realizations over the worker pool. Each owns its own stream,
	// tessellation and solve; the ensemble slots are indexed per
	// realization so workers never contend.
	nreal := c.params.NReal
	fields := make([][]float64, nreal)
	stats := make([]RealizationStats, nreal)
	errs := make([]error, nreal)
	rp := RealizationParams{
		NVoronoi: c.params.NVoronoi,
		Adaptive: c.params.Adaptive,
		NArrival: c.params.NArrival,
		OutlierK: c.params.OutlierK,
		Solver:   c.params.Solver,
	}

	workers := c.params.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > nreal {
		workers = nreal
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ireal := range jobs {
				rng := rand.New(rand.NewSource(realizationSeed(c.params.Seed, iter, ireal, ps.phase)))
				field, rstats, err := RunRealization(ps.model, cands, c.provider, rp, rng)
				rstats.Index = ireal
				if err != nil {
					rerr := &RealizationError{Iteration: iter, Realization: ireal, Phase: ps.phase, Err: err}
					monitoring.Logf("tomo: %v (excluded from aggregation)", rerr)
					rstats.Failed = true
					rstats.Err = err.Error()
					errs[ireal] = rerr
				} else {
					fields[ireal] = field
				}
				stats[ireal] = rstats
			}
		}()
	}
dispatch:
	for ireal := 0; ireal < nreal; ireal++ {
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- ireal:
		}
	}
	close(jobs)
	// Aggregating barrier: all dispatched realizations finish first.
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("iteration %d %s-phase cancelled: %w", iter, ps.phase, err)
	}

	summary.RealizationStats = stats
	succ := 0
	var lastErr error
	var residSum float64
	for ireal := range fields {
		switch {
		case fields[ireal] != nil:
			succ++
			residSum += stats[ireal].ResidualNorm
		default:
			summary.Failures++
			if errs[ireal] != nil {
				lastErr = errs[ireal]
			}
		}
	}
	if succ == 0 {
		return summary, &IterationError{Iteration: iter, Phase: ps.phase, Attempted: nreal, Err: lastErr}
	}
	summary.MeanResidualNorm = residSum / float64(succ)

	c.setState(StatusAggregating, iter)
	nnodes := ps.model.Grid.NumNodes()
	ens := mat.NewDense(succ, nnodes, nil)
	row := 0
	for ireal := range fields {
		if fields[ireal] != nil {
			ens.SetRow(row, fields[ireal])
			row++
		}
	}
	update, fstats := AggregateEnsemble(ens, c.params.OutlierK)
	summary.FilterStats = fstats
	if variance := VarianceField(ens); len(variance) > 0 {
		summary.MeanNodeVariance = floats.Sum(variance) / float64(len(variance))
	}

	c.setState(StatusUpdatingModel, iter)
	next, clamped, err := ps.model.ApplySlownessUpdate(update)
	if err != nil {
		return summary, fmt.Errorf("iteration %d %s-phase: %w", iter, ps.phase, err)
	}
	summary.ClampedNodes = clamped
	summary.UpdateNorm = floats.Norm(update, 2)

	c.mu.Lock()
	c.phases[pi].model = next
	c.mu.Unlock()

	if c.writer != nil {
		if err := c.writer.WriteModel(next, ps.phase, iter); err != nil {
			return summary, fmt.Errorf("iteration %d: persist %s model: %w", iter, ps.phase, err)
		}
	}
	summary.Duration = time.Since(start)
	return summary, nil
}

// realizationSeed derives the deterministic stream seed for one realization
// from the base seed, iteration, realization index and phase, so results
// are reproducible regardless of worker scheduling or completion order.
func realizationSeed(base int64, iteration, realization int, phase Phase) int64 {
	h := uint64(base)
	h ^= uint64(iteration+1) * 0x9e3779b97f4a7c15
	h ^= uint64(realization+1) * 0xbf58476d1ce4e5b9
	if phase == PhaseS {
		h ^= 0x94d049bb133111eb
	}
	h ^= h >> 30
	h *= 0xbf58476d1ce4e5b9
	h ^= h >> 27
	h *= 0x94d049bb133111eb
	h ^= h >> 31
	return int64(h)
}

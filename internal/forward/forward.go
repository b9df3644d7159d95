// Package forward supplies the travel-time fields the inversion consumes:
// per-station fields precomputed by an external eikonal solver and loaded
// from disk, straight-ray fields integrated through the current model, and
// an analytic uniform-velocity field for synthetic runs. A Provider fronts
// whichever source is configured, caching fields per model so realizations
// within an iteration share them read-only.
package forward

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/banshee-data/tomo.report/internal/tomo"
)

// Computer produces the travel-time field for one station and phase against
// a velocity model. Implementations must be safe for concurrent use.
type Computer interface {
	Compute(m *tomo.Model, station string, phase tomo.Phase) (tomo.TraveltimeField, error)
}

type fieldKey struct {
	station string
	phase   tomo.Phase
}

// Provider caches computed fields and satisfies tomo.FieldProvider. The
// cache is keyed by station and phase and valid for exactly one model: when
// the controller swaps models between iterations (or between the P and S
// loops), the next Field call sees a different model pointer and drops every
// cached entry, so stale fields never outlive the model they were computed
// against.
type Provider struct {
	computer Computer

	mu    sync.Mutex
	model *tomo.Model
	cache map[fieldKey]tomo.TraveltimeField
}

// NewProvider returns a Provider backed by computer.
func NewProvider(computer Computer) *Provider {
	return &Provider{
		computer: computer,
		cache:    make(map[fieldKey]tomo.TraveltimeField),
	}
}

// Field returns the travel-time field for station and phase under model m,
// computing and caching it on first use.
func (p *Provider) Field(m *tomo.Model, station string, phase tomo.Phase) (tomo.TraveltimeField, error) {
	key := fieldKey{station: station, phase: phase}

	p.mu.Lock()
	if p.model != m {
		p.model = m
		clear(p.cache)
	}
	if f, ok := p.cache[key]; ok {
		p.mu.Unlock()
		return f, nil
	}
	p.mu.Unlock()

	// Compute outside the lock; concurrent misses on the same key may
	// duplicate work but settle on one cached value.
	f, err := p.computer.Compute(m, station, phase)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.model == m {
		p.cache[key] = f
	}
	p.mu.Unlock()
	return f, nil
}

// prewarmConcurrency bounds parallel field computation during Prewarm so a
// disk-backed computer does not thrash on seeks.
const prewarmConcurrency = 4

// Prewarm computes the fields for the given stations ahead of the iteration
// loop. Stations whose field is unavailable are skipped; their arrivals get
// dropped and counted once residuals are computed. Any other failure aborts
// the warmup.
func (p *Provider) Prewarm(ctx context.Context, m *tomo.Model, stations []string, phase tomo.Phase) error {
	g, ctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(prewarmConcurrency)
	for _, station := range stations {
		station := station // per-iteration copy; required for Go <1.22 loop semantics
		g.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)
			_, err := p.Field(m, station, phase)
			if err != nil && !errors.Is(err, tomo.ErrFieldUnavailable) {
				return fmt.Errorf("prewarm %s %s-phase: %w", station, phase, err)
			}
			return nil
		})
	}
	return g.Wait()
}

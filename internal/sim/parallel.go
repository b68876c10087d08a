package sim

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Factory builds an independent simulator and initial state for one run.
type Factory func(seed int64) (*Simulator, State, error)

// Ensemble runs members seeded seedStart, seedStart+1, ... in parallel.
// Each member gets its own controller from the factory.
type Ensemble struct {
	factory   Factory
	numRuns   int
	seedStart int64
	workers   int
}

func NewEnsemble(factory Factory, numRuns int, seedStart int64) *Ensemble {
	return &Ensemble{factory: factory, numRuns: numRuns, seedStart: seedStart, workers: runtime.NumCPU()}
}

// SetWorkers bounds how many members run at once.
func (e *Ensemble) SetWorkers(n int) {
	if n > 0 {
		e.workers = n
	}
}

// Run returns results in seed order. The first member error cancels the
// others.
func (e *Ensemble) Run(ctx context.Context, cfg Config) ([]*Result, error) {
	results := make([]*Result, e.numRuns)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := 0; i < e.numRuns; i++ {
		idx := i
		g.Go(func() error {
			member := cfg
			member.Seed = e.seedStart + int64(idx)

			s, x0, err := e.factory(member.Seed)
			if err != nil {
				return err
			}
			r, err := s.Run(ctx, x0, member)
			if err != nil {
				return err
			}
			results[idx] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

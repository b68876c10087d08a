package experiment

import (
	"context"
	"math"
	"math/rand"

	"github.com/golang/geo/r2"

	"github.com/san-kum/legbalance/internal/config"
	"github.com/san-kum/legbalance/internal/control"
	"github.com/san-kum/legbalance/internal/legged"
	"github.com/san-kum/legbalance/internal/sim"
)

// MonteCarloConfig shoves the robot once per trial, at a random time in
// [EarliestPush, LatestPush] and a random heading.
type MonteCarloConfig struct {
	Trials       int
	Magnitude    float64
	EarliestPush float64
	LatestPush   float64
	Seed         int64
}

// MonteCarloResult holds one trial
type MonteCarloResult struct {
	Seed       int64
	Push       sim.Push
	Metrics    map[string]float64
	SafetyStop bool
	FinalMode  control.Mode
}

// RandomPush draws the disturbance for a trial seed.
func RandomPush(mc MonteCarloConfig, seed int64) sim.Push {
	rng := rand.New(rand.NewSource(seed))
	t := mc.EarliestPush + rng.Float64()*(mc.LatestPush-mc.EarliestPush)
	s, c := math.Sincos(rng.Float64() * 2 * math.Pi)
	return sim.Push{Time: t, DeltaICP: r2.Point{X: c * mc.Magnitude, Y: s * mc.Magnitude}}
}

// RunMonteCarlo executes the trials concurrently, one controller per trial.
func RunMonteCarlo(ctx context.Context, cfg *config.Config, plan []legged.TimedFootstep, mc MonteCarloConfig) ([]MonteCarloResult, error) {
	pushes := make(map[int64]sim.Push, mc.Trials)
	for i := 0; i < mc.Trials; i++ {
		seed := mc.Seed + int64(i)
		pushes[seed] = RandomPush(mc, seed)
	}

	factory := func(seed int64) (*sim.Simulator, sim.State, error) {
		s, x0, err := Build(cfg, plan, control.Collaborators{}, nil)
		if err != nil {
			return nil, nil, err
		}
		s.AddPush(pushes[seed])
		return s, x0, nil
	}

	results, err := sim.NewEnsemble(factory, mc.Trials, mc.Seed).Run(ctx, cfg.SimConfig())
	if err != nil {
		return nil, err
	}

	out := make([]MonteCarloResult, 0, len(results))
	for i, r := range results {
		seed := mc.Seed + int64(i)
		res := MonteCarloResult{Seed: seed, Push: pushes[seed], Metrics: r.Metrics}
		if n := len(r.Samples); n > 0 {
			res.FinalMode = r.Samples[n-1].Output.Mode
			res.SafetyStop = res.FinalMode == control.ModeSafetyStop
		}
		out = append(out, res)
	}
	return out, nil
}

// MonteCarloStats counts trials that finished without a safety stop
func MonteCarloStats(results []MonteCarloResult) (stableCount int, unstableCount int) {
	for _, r := range results {
		if r.SafetyStop {
			unstableCount++
		} else {
			stableCount++
		}
	}
	return
}

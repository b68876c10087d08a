// Package experiment wires a configuration and a footstep plan into a
// closed-loop simulation of the balance controller on the LIPM plant.
package experiment

import (
	"context"
	"fmt"

	"github.com/san-kum/legbalance/internal/config"
	"github.com/san-kum/legbalance/internal/control"
	"github.com/san-kum/legbalance/internal/integrators"
	"github.com/san-kum/legbalance/internal/legged"
	"github.com/san-kum/legbalance/internal/metrics"
	"github.com/san-kum/legbalance/internal/sim"
)

type Experiment struct {
	cfg       *config.Config
	plan      []legged.TimedFootstep
	simulator *sim.Simulator
	x0        sim.State
}

func New(cfg *config.Config, plan []legged.TimedFootstep) *Experiment {
	return &Experiment{cfg: cfg, plan: plan}
}

// Setup builds the controller and simulator. A nil metric slice selects
// the default set.
func (e *Experiment) Setup(col control.Collaborators, ms []sim.Metric) error {
	s, x0, err := Build(e.cfg, e.plan, col, ms)
	if err != nil {
		return err
	}
	e.simulator = s
	e.x0 = x0
	return nil
}

func (e *Experiment) Run(ctx context.Context) (*sim.Result, error) {
	if e.simulator == nil {
		return nil, fmt.Errorf("experiment not setup")
	}
	return e.simulator.Run(ctx, e.x0, e.cfg.SimConfig())
}

func (e *Experiment) RunWithCallback(ctx context.Context, callback func(sim.Sample) bool) error {
	if e.simulator == nil {
		return fmt.Errorf("experiment not setup")
	}
	return e.simulator.RunWithCallback(ctx, e.x0, e.cfg.SimConfig(), callback)
}

// GetSimulator returns the underlying simulator for adding observers
func (e *Experiment) GetSimulator() *sim.Simulator {
	return e.simulator
}

// Build assembles one independent closed loop: controller, plant, pushes
// and metrics. The plan is queued through the controller's mailbox and
// picked up on the first tick.
func Build(cfg *config.Config, plan []legged.TimedFootstep, col control.Collaborators, ms []sim.Metric) (*sim.Simulator, sim.State, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	integ, err := integrators.Get(cfg.Integrator)
	if err != nil {
		return nil, nil, err
	}
	ctrl, err := control.New(cfg.ControlConfig(), col)
	if err != nil {
		return nil, nil, err
	}
	if len(plan) > 0 {
		ctrl.SubmitPlan(control.PlanRequest{Steps: plan})
	}

	s := sim.New(cfg.Plant(), integ, ctrl)
	for _, p := range cfg.Pushes {
		s.AddPush(p)
	}
	if ms == nil {
		ms = metrics.Default()
	}
	for _, m := range ms {
		s.AddMetric(m)
	}
	return s, cfg.InitState(), nil
}

package sim

import (
	"context"
	"fmt"
	"sort"

	"github.com/golang/geo/r2"

	"github.com/san-kum/legbalance/internal/control"
)

type Simulator struct {
	plant      *Plant
	integrator Integrator
	controller *control.Controller
	metrics    []Metric
	observers  []Observer
	pushes     []Push
}

func New(plant *Plant, integrator Integrator, controller *control.Controller) *Simulator {
	return &Simulator{
		plant:      plant,
		integrator: integrator,
		controller: controller,
		metrics:    make([]Metric, 0),
		observers:  make([]Observer, 0),
	}
}

func (s *Simulator) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }

func (s *Simulator) AddPush(p Push) {
	s.pushes = append(s.pushes, p)
	sort.Slice(s.pushes, func(i, j int) bool { return s.pushes[i].Time < s.pushes[j].Time })
}

func (s *Simulator) Controller() *control.Controller { return s.controller }

func (s *Simulator) Run(ctx context.Context, x0 State, cfg Config) (*Result, error) {
	if err := s.validateConfig(cfg); err != nil {
		return nil, err
	}

	steps := int(cfg.Duration/cfg.Dt + 0.5)
	result := &Result{
		Samples: make([]Sample, 0, steps),
		Metrics: make(map[string]float64),
		Errors:  make([]error, 0),
	}
	for _, m := range s.metrics {
		m.Reset()
	}

	err := s.loop(ctx, x0, cfg, steps, func(sample Sample) bool {
		result.Samples = append(result.Samples, sample)
		result.StepsTaken++
		return true
	}, result)

	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	return result, err
}

// RunWithCallback ticks until the duration elapses or callback returns false.
func (s *Simulator) RunWithCallback(ctx context.Context, x0 State, cfg Config, callback func(Sample) bool) error {
	if err := s.validateConfig(cfg); err != nil {
		return err
	}
	steps := int(cfg.Duration/cfg.Dt + 0.5)
	result := &Result{}
	if err := s.loop(ctx, x0, cfg, steps, callback, result); err != nil {
		return err
	}
	if len(result.Errors) > 0 {
		return result.Errors[0]
	}
	return nil
}

func (s *Simulator) loop(ctx context.Context, x0 State, cfg Config, steps int, visit func(Sample) bool, result *Result) error {
	ss := s.session(x0, cfg, steps)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		sample, ok := ss.Step()
		if !ok {
			break
		}
		if !visit(sample) {
			return nil
		}
	}
	if ss.err != nil {
		result.Errors = append(result.Errors, ss.err)
	}
	return nil
}

// Session advances a closed loop one tick at a time.
type Session struct {
	s     *Simulator
	cfg   Config
	x     State
	i     int
	steps int
	next  int
	done  bool
	err   error
}

// NewSession starts a loop that the caller drives with Step.
func (s *Simulator) NewSession(x0 State, cfg Config) (*Session, error) {
	if err := s.validateConfig(cfg); err != nil {
		return nil, err
	}
	for _, m := range s.metrics {
		m.Reset()
	}
	return s.session(x0, cfg, int(cfg.Duration/cfg.Dt+0.5)), nil
}

func (s *Simulator) session(x0 State, cfg Config, steps int) *Session {
	return &Session{s: s, cfg: cfg, x: x0.Clone(), steps: steps}
}

// Step runs one tick. It reports false once the duration has elapsed, the
// controller stopped, or the state went invalid.
func (ss *Session) Step() (Sample, bool) {
	if ss.done || ss.i >= ss.steps {
		ss.done = true
		return Sample{}, false
	}
	s := ss.s
	t := float64(ss.i) * ss.cfg.Dt
	for ss.next < len(s.pushes) && s.pushes[ss.next].Time <= t+1e-9 {
		ss.x = s.plant.Push(ss.x, s.pushes[ss.next].DeltaICP)
		ss.next++
	}

	out := s.controller.Tick(s.plant.Feedback(ss.x, t))
	sample := Sample{Time: t, State: ss.x, Output: out}
	for _, m := range s.metrics {
		m.Observe(sample)
	}
	for _, obs := range s.observers {
		obs.OnStep(sample)
	}

	if out.Mode == control.ModeSafetyStop {
		ss.err = SimError{Time: t, Step: ss.i, Message: "controller safety stop"}
		ss.done = true
		return sample, true
	}
	newX := s.integrator.Step(s.plant, ss.x, s.plant.Control(ss.x, out), t, ss.cfg.Dt)
	if ss.cfg.ValidateState && !newX.IsValid() {
		ss.err = SimError{Time: t, Step: ss.i, Message: "invalid state (NaN/Inf)"}
		ss.done = true
		return sample, true
	}
	ss.x = newX
	ss.i++
	return sample, true
}

// Push shoves the plant immediately.
func (ss *Session) Push(d r2.Point) {
	ss.x = ss.s.plant.Push(ss.x, d)
}

func (ss *Session) State() State { return ss.x.Clone() }

func (ss *Session) Time() float64 { return float64(ss.i) * ss.cfg.Dt }

func (ss *Session) Done() bool { return ss.done }

func (ss *Session) Err() error { return ss.err }

func (s *Simulator) validateConfig(cfg Config) error {
	if cfg.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %f", cfg.Dt)
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %f", cfg.Duration)
	}
	return nil
}

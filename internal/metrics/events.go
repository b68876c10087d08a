package metrics

import (
	"github.com/san-kum/legbalance/internal/sim"
)

// Counter counts ticks on which pred holds.
type Counter struct {
	name  string
	pred  func(sim.Sample) bool
	count int
}

func NewCounter(name string, pred func(sim.Sample) bool) *Counter {
	return &Counter{name: name, pred: pred}
}

func (c *Counter) Name() string { return c.name }

func (c *Counter) Observe(s sim.Sample) {
	if c.pred(s) {
		c.count++
	}
}

func (c *Counter) Value() float64 { return float64(c.count) }
func (c *Counter) Reset()         { c.count = 0 }

func NewAdjustedTicks() *Counter {
	return NewCounter("adjusted_ticks", func(s sim.Sample) bool {
		return s.Output.Desired.FootstepWasAdjusted
	})
}

func NewDegradedTicks() *Counter {
	return NewCounter("degraded_ticks", func(s sim.Sample) bool {
		return s.Output.Status.Degraded
	})
}

func NewInfeasibleTicks() *Counter {
	return NewCounter("infeasible_ticks", func(s sim.Sample) bool {
		return s.Output.Status.InfeasibleOptimization
	})
}

// NewLateTouchdowns counts swings that ended by timeout rather than contact.
func NewLateTouchdowns() *Counter {
	return NewCounter("late_touchdowns", func(s sim.Sample) bool {
		return s.Output.Status.LateTouchdown
	})
}

// Default is the metric set every run reports.
func Default() []sim.Metric {
	return []sim.Metric{
		NewTrackingError(),
		NewSupportViolations(1e-6),
		NewPeakCMPOffset(),
		NewStability(0.05),
		NewControlEffort(),
		NewAdjustedTicks(),
		NewDegradedTicks(),
		NewInfeasibleTicks(),
		NewLateTouchdowns(),
	}
}

package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/legbalance/internal/sim"
)

// ControlEffort is the RMS horizontal rate of change of linear momentum.
// On the LIPM that is m*omega^2 times the CoM to CMP offset, so it grows
// with how hard the CMP is pushed away from under the CoM.
type ControlEffort struct {
	rates []float64
}

func NewControlEffort() *ControlEffort {
	return &ControlEffort{}
}

func (c *ControlEffort) Name() string { return "control_effort" }

func (c *ControlEffort) Observe(s sim.Sample) {
	l := s.Output.Momentum.Linear
	c.rates = append(c.rates, math.Hypot(l.X, l.Y))
}

func (c *ControlEffort) Value() float64 {
	if len(c.rates) == 0 {
		return 0
	}
	return floats.Norm(c.rates, 2) / math.Sqrt(float64(len(c.rates)))
}

func (c *ControlEffort) Reset() { c.rates = c.rates[:0] }

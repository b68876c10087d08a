package sim

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"github.com/san-kum/legbalance/internal/control"
)

// Plant is a linear inverted pendulum at constant height. State is
// [x, y, vx, vy]; the control is the CMP, held over each step.
type Plant struct {
	Mass    float64
	Height  float64
	Gravity float64
}

func (p *Plant) StateDim() int   { return 4 }
func (p *Plant) ControlDim() int { return 2 }

func (p *Plant) Derivative(x State, u Control, t float64) State {
	w2 := p.Gravity / p.Height
	return State{x[2], x[3], w2 * (x[0] - u[0]), w2 * (x[1] - u[1])}
}

func (p *Plant) Omega() float64 {
	return math.Sqrt(p.Gravity / p.Height)
}

// Feedback is what a perfect estimator would report for x.
func (p *Plant) Feedback(x State, t float64) control.Feedback {
	return control.Feedback{
		Time:        t,
		CoM:         r3.Vector{X: x[0], Y: x[1], Z: p.Height},
		CoMVelocity: r3.Vector{X: x[2], Y: x[3]},
	}
}

// CapturePoint of state x.
func (p *Plant) CapturePoint(x State) r2.Point {
	w := p.Omega()
	return r2.Point{X: x[0] + x[2]/w, Y: x[1] + x[3]/w}
}

// Push shifts the capture point by d through an instantaneous velocity
// change.
func (p *Plant) Push(x State, d r2.Point) State {
	w := p.Omega()
	out := x.Clone()
	out[2] += d.X * w
	out[3] += d.Y * w
	return out
}

// Control recovers the CMP the commanded horizontal momentum rate implies
// at state x.
func (p *Plant) Control(x State, out control.Output) Control {
	k := p.Gravity / p.Height * p.Mass
	return Control{x[0] - out.Momentum.Linear.X/k, x[1] - out.Momentum.Linear.Y/k}
}

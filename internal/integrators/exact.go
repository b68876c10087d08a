package integrators

import (
	"math"

	"github.com/san-kum/legbalance/internal/sim"
)

// Pendulum is a linear inverted pendulum with natural frequency Omega,
// state [com..., com velocity...] and the CMP as control, one entry per axis.
type Pendulum interface {
	sim.Dynamics
	Omega() float64
}

// Exact advances a Pendulum in closed form under a CMP held over the step:
//
//	x(dt) = u + (x0-u) cosh(w dt) + v0/w sinh(w dt)
//	v(dt) = (x0-u) w sinh(w dt) + v0 cosh(w dt)
//
// Other dynamics, or a pendulum without a positive frequency, fall back to
// RK4.
type Exact struct {
	fallback *RungeKutta
}

func NewExact() *Exact {
	return &Exact{fallback: NewRK4()}
}

func (e *Exact) Step(dyn sim.Dynamics, x sim.State, u sim.Control, t, dt float64) sim.State {
	p, ok := dyn.(Pendulum)
	axes := len(x) / 2
	if !ok || len(u) < axes || !(p.Omega() > 0) {
		return e.fallback.Step(dyn, x, u, t, dt)
	}

	w := p.Omega()
	ch, sh := math.Cosh(w*dt), math.Sinh(w*dt)
	next := make(sim.State, len(x))
	for i := 0; i < axes; i++ {
		d, v := x[i]-u[i], x[axes+i]
		next[i] = u[i] + d*ch + v/w*sh
		next[axes+i] = d*w*sh + v*ch
	}
	return next
}

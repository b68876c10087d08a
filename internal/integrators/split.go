package integrators

import "github.com/san-kum/legbalance/internal/sim"

// Split steppers treat the state as [com..., com velocity...] and alternate
// velocity kicks with position drifts. The LIPM acceleration depends on the
// CoM position only, so velocity Verlet and kick-drift-kick leapfrog are the
// same scheme here.
type Split struct {
	// leapfrog kicks half a step on each side of the drift. Otherwise one
	// full kick precedes the drift (symplectic Euler).
	leapfrog bool
	scratch  sim.State
}

func NewLeapfrog() *Split        { return &Split{leapfrog: true} }
func NewSymplecticEuler() *Split { return &Split{} }

func (s *Split) Step(dyn sim.Dynamics, x sim.State, u sim.Control, t, dt float64) sim.State {
	n := len(x)
	axes := n / 2
	next := x.Clone()

	kick := dt
	if s.leapfrog {
		kick = dt / 2
	}
	s.kick(dyn, next, u, t, kick, axes)
	for i := 0; i < axes; i++ {
		next[i] += dt * next[axes+i]
	}
	if s.leapfrog {
		s.kick(dyn, next, u, t+dt, kick, axes)
	}
	return next
}

// kick adds h times the acceleration at x to the velocities of x.
func (s *Split) kick(dyn sim.Dynamics, x sim.State, u sim.Control, t, h float64, axes int) {
	if len(s.scratch) != len(x) {
		s.scratch = make(sim.State, len(x))
	}
	copy(s.scratch, dyn.Derivative(x, u, t))
	for i := 0; i < axes; i++ {
		x[axes+i] += h * s.scratch[axes+i]
	}
}

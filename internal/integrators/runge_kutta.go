// Package integrators advances the harness plant over one control tick. The
// commanded CMP is held for the whole tick, as the controller output is.
package integrators

import "github.com/san-kum/legbalance/internal/sim"

// Tableau is the Butcher tableau of an explicit Runge-Kutta method. A is
// strictly lower triangular.
type Tableau struct {
	A [][]float64
	B []float64
	C []float64
}

var (
	eulerTableau = Tableau{
		A: [][]float64{{}},
		B: []float64{1},
		C: []float64{0},
	}
	midpointTableau = Tableau{
		A: [][]float64{{}, {0.5}},
		B: []float64{0, 1},
		C: []float64{0, 0.5},
	}
	rk4Tableau = Tableau{
		A: [][]float64{{}, {0.5}, {0, 0.5}, {0, 0, 1}},
		B: []float64{1.0 / 6, 1.0 / 3, 1.0 / 3, 1.0 / 6},
		C: []float64{0, 0.5, 0.5, 1},
	}
)

// RungeKutta steps any sim.Dynamics with an explicit tableau. Stage buffers
// are reused between steps, so one value must not be shared by goroutines.
type RungeKutta struct {
	tableau Tableau
	k       []sim.State
	stage   sim.State
}

func NewRungeKutta(t Tableau) *RungeKutta {
	return &RungeKutta{tableau: t, k: make([]sim.State, len(t.B))}
}

func NewEuler() *RungeKutta    { return NewRungeKutta(eulerTableau) }
func NewMidpoint() *RungeKutta { return NewRungeKutta(midpointTableau) }
func NewRK4() *RungeKutta      { return NewRungeKutta(rk4Tableau) }

func (r *RungeKutta) Stages() int { return len(r.tableau.B) }

func (r *RungeKutta) Step(dyn sim.Dynamics, x sim.State, u sim.Control, t, dt float64) sim.State {
	n := len(x)
	if len(r.stage) != n {
		r.stage = make(sim.State, n)
		for s := range r.k {
			r.k[s] = make(sim.State, n)
		}
	}

	tb := r.tableau
	for s := range tb.B {
		copy(r.stage, x)
		for j, a := range tb.A[s] {
			if a == 0 {
				continue
			}
			for i := range r.stage {
				r.stage[i] += dt * a * r.k[j][i]
			}
		}
		copy(r.k[s], dyn.Derivative(r.stage, u, t+tb.C[s]*dt))
	}

	next := x.Clone()
	for s, b := range tb.B {
		if b == 0 {
			continue
		}
		for i := range next {
			next[i] += dt * b * r.k[s][i]
		}
	}
	return next
}

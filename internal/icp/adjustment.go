package icp

import (
	"math"

	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/legbalance/internal/geometry"
	"github.com/san-kum/legbalance/internal/legged"
)

// adjustmentProblem is the step adjustment QP over x = [cmp_x, cmp_y, d_x, d_y]:
//
//	min  wt*|(1-E)*cmp + E*icp - (td + beta*d)|^2 + wf*|cmp - perfect|^2 + ws*|d|^2
//	s.t. cmp in area, d in box, |d| <= maxMagnitude
//
// with E = exp(omega * remaining swing time). The first term is the predicted
// touchdown ICP error once the footstep has been moved by d.
type adjustmentProblem struct {
	growth       float64
	icp          r2.Point
	touchdown    r2.Point
	beta         float64
	perfectCMP   r2.Point
	area         geometry.ConvexPolygon
	box          r2.Rect
	maxMagnitude float64
	weights      Weights
	iterations   int
	tolerance    float64
}

type adjustmentSolution struct {
	cmp        r2.Point
	offset     r2.Point
	iterations int
}

func (p *adjustmentProblem) hessian() *mat.SymDense {
	a := 1 - p.growth
	w := p.weights
	h := mat.NewSymDense(4, nil)
	for axis := 0; axis < 2; axis++ {
		r, d := axis, axis+2
		h.SetSym(r, r, 2*(w.TouchdownError*a*a+w.Feedback))
		h.SetSym(d, d, 2*(w.TouchdownError*p.beta*p.beta+w.Footstep))
		h.SetSym(r, d, -2*w.TouchdownError*a*p.beta)
	}
	return h
}

func (p *adjustmentProblem) linear() *mat.VecDense {
	a := 1 - p.growth
	w := p.weights
	b := p.touchdown.Sub(p.icp.Mul(p.growth))
	return mat.NewVecDense(4, []float64{
		-2 * (w.TouchdownError*a*b.X + w.Feedback*p.perfectCMP.X),
		-2 * (w.TouchdownError*a*b.Y + w.Feedback*p.perfectCMP.Y),
		2 * w.TouchdownError * p.beta * b.X,
		2 * w.TouchdownError * p.beta * b.Y,
	})
}

func (p *adjustmentProblem) project(x *mat.VecDense) {
	cmp := r2.Point{X: x.AtVec(0), Y: x.AtVec(1)}
	if !p.area.IsEmpty() && !p.area.Contains(cmp) {
		cmp = p.area.ClosestPoint(cmp)
	}
	d := p.box.ClampPoint(r2.Point{X: x.AtVec(2), Y: x.AtVec(3)})
	if n := d.Norm(); n > p.maxMagnitude {
		if p.maxMagnitude == 0 {
			d = r2.Point{}
		} else {
			d = d.Mul(p.maxMagnitude / n)
		}
	}
	x.SetVec(0, cmp.X)
	x.SetVec(1, cmp.Y)
	x.SetVec(2, d.X)
	x.SetVec(3, d.Y)
}

func (p *adjustmentProblem) feasible(x *mat.VecDense) bool {
	cmp := r2.Point{X: x.AtVec(0), Y: x.AtVec(1)}
	d := r2.Point{X: x.AtVec(2), Y: x.AtVec(3)}
	if !p.area.IsEmpty() && !p.area.Contains(cmp) {
		return false
	}
	return p.box.ContainsPoint(d) && d.Norm() <= p.maxMagnitude+geometry.Epsilon
}

// solve tries the unconstrained minimiser first and falls back to
// accelerated projected gradient when it violates the constraints.
func (p *adjustmentProblem) solve() (adjustmentSolution, error) {
	h := p.hessian()
	g := p.linear()

	var chol mat.Cholesky
	if !chol.Factorize(h) {
		return adjustmentSolution{}, legged.ErrInfeasibleOptimization
	}
	x := mat.NewVecDense(4, nil)
	rhs := mat.NewVecDense(4, nil)
	rhs.ScaleVec(-1, g)
	if err := chol.SolveVecTo(x, rhs); err != nil {
		return adjustmentSolution{}, legged.ErrInfeasibleOptimization
	}
	if p.feasible(x) {
		return p.solution(x, 0)
	}

	var eig mat.EigenSym
	if !eig.Factorize(h, false) {
		return adjustmentSolution{}, legged.ErrInfeasibleOptimization
	}
	values := eig.Values(nil)
	lipschitz := values[len(values)-1]
	if lipschitz <= 0 {
		return adjustmentSolution{}, legged.ErrInfeasibleOptimization
	}
	step := 1 / lipschitz

	p.project(x)
	y := mat.VecDenseCopyOf(x)
	next := mat.NewVecDense(4, nil)
	grad := mat.NewVecDense(4, nil)
	diff := mat.NewVecDense(4, nil)
	momentum := 1.0
	for k := 1; k <= p.iterations; k++ {
		grad.MulVec(h, y)
		grad.AddVec(grad, g)
		next.AddScaledVec(y, -step, grad)
		p.project(next)

		diff.SubVec(next, x)
		if mat.Norm(diff, 2) <= p.tolerance {
			return p.solution(next, k)
		}
		// restart the momentum when it points uphill
		grad.SubVec(y, next)
		if mat.Dot(grad, diff) > 0 {
			momentum = 1
		}
		nextMomentum := (1 + math.Sqrt(1+4*momentum*momentum)) / 2
		y.AddScaledVec(next, (momentum-1)/nextMomentum, diff)
		x.CopyVec(next)
		momentum = nextMomentum
	}
	return adjustmentSolution{}, legged.ErrInfeasibleOptimization
}

func (p *adjustmentProblem) solution(x *mat.VecDense, iterations int) (adjustmentSolution, error) {
	s := adjustmentSolution{
		cmp:        r2.Point{X: x.AtVec(0), Y: x.AtVec(1)},
		offset:     r2.Point{X: x.AtVec(2), Y: x.AtVec(3)},
		iterations: iterations,
	}
	if !legged.IsFinitePoint(s.cmp) || !legged.IsFinitePoint(s.offset) {
		return adjustmentSolution{}, legged.ErrInfeasibleOptimization
	}
	return s, nil
}

package icp

import (
	"math"

	"github.com/golang/geo/r2"
)

// feedback is the PI law on the ICP error. The proportional part splits the
// error along and across the desired ICP velocity.
type feedback struct {
	integral r2.Point
	last     r2.Point
}

func (f *feedback) reset() {
	f.integral = r2.Point{}
	f.last = r2.Point{}
}

// delta returns the CMP offset for error = measured - desired.
func (f *feedback) delta(g Gains, minVelocity float64, err, desiredVel r2.Point, dt float64) r2.Point {
	var p r2.Point
	if speed := desiredVel.Norm(); speed > minVelocity {
		dir := desiredVel.Mul(1 / speed)
		parallel := dir.Mul(err.Dot(dir))
		orthogonal := err.Sub(parallel)
		p = parallel.Mul(g.KpParallel).Add(orthogonal.Mul(g.KpOrthogonal))
	} else {
		p = err.Mul(g.KpOrthogonal)
	}

	f.integral = f.integral.Mul(g.IntegralLeakRatio).Add(err.Mul(dt))
	if n := f.integral.Norm(); n > g.MaxIntegralError {
		if g.MaxIntegralError == 0 {
			f.integral = r2.Point{}
		} else {
			f.integral = f.integral.Mul(g.MaxIntegralError / n)
		}
	}
	return p.Add(f.integral.Mul(g.Ki))
}

// limit bounds the change of the feedback offset since the last tick.
func (f *feedback) limit(want r2.Point, maxStep float64) r2.Point {
	step := want.Sub(f.last)
	if n := step.Norm(); n > maxStep && !math.IsInf(maxStep, 1) {
		step = step.Mul(maxStep / n)
	}
	f.last = f.last.Add(step)
	return f.last
}

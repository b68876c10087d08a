package icp

import (
	"math"

	"github.com/golang/geo/r2"

	"github.com/san-kum/legbalance/internal/geometry"
)

// settleRate is the number of time constants a standing settle covers over
// its duration.
const settleRate = 3.0

type referenceKind uint8

const (
	referenceHold referenceKind = iota
	referenceSegment
	referenceSettle
)

// reference is one piece of the desired ICP trajectory. Segments hold the
// CMP constant, so xi(t) = cmp + (xi0 - cmp) * exp(omega * t). Settles
// decay exponentially onto a fixed target and derive the CMP from the LIPM.
type reference struct {
	kind     referenceKind
	start    float64
	duration float64
	omega    float64
	icp0     r2.Point
	cmp      r2.Point
	target   r2.Point
}

func holdReference(at r2.Point) reference {
	return reference{kind: referenceHold, icp0: at, cmp: at, target: at}
}

// newSegment builds the constant-CMP segment that carries the ICP from
// `from` to `to` in duration. The solved CMP is clamped into area when it
// falls outside, in which case the segment ends short of `to`.
func newSegment(start, duration, omega float64, from, to r2.Point, area geometry.ConvexPolygon) reference {
	if duration <= 0 || omega <= 0 {
		return holdReference(to)
	}
	e := math.Exp(omega * duration)
	cmp := to.Sub(from.Mul(e)).Mul(1 / (1 - e))
	if !area.IsEmpty() && !area.Contains(cmp) {
		cmp = area.ClosestPoint(cmp)
	}
	r := reference{
		kind:     referenceSegment,
		start:    start,
		duration: duration,
		omega:    omega,
		icp0:     from,
		cmp:      cmp,
	}
	r.target = r.icpAt(duration)
	return r
}

func newSettle(start, duration, omega float64, from, to r2.Point) reference {
	if duration <= 0 || omega <= 0 {
		return holdReference(to)
	}
	return reference{
		kind:     referenceSettle,
		start:    start,
		duration: duration,
		omega:    omega,
		icp0:     from,
		target:   to,
	}
}

func (r reference) icpAt(tau float64) r2.Point {
	return r.cmp.Add(r.icp0.Sub(r.cmp).Mul(math.Exp(r.omega * tau)))
}

// at evaluates the desired ICP, its velocity and the perfect CMP at time t.
// A finished segment holds its end point at rest.
func (r reference) at(t float64) (icp, vel, cmp r2.Point) {
	tau := t - r.start
	if tau < 0 {
		tau = 0
	}
	switch r.kind {
	case referenceSegment:
		if tau >= r.duration {
			return r.target, r2.Point{}, r.target
		}
		icp = r.icpAt(tau)
		return icp, icp.Sub(r.cmp).Mul(r.omega), r.cmp
	case referenceSettle:
		k := settleRate / r.duration
		offset := r.icp0.Sub(r.target).Mul(math.Exp(-k * tau))
		icp = r.target.Add(offset)
		vel = offset.Mul(-k)
		return icp, vel, r.target.Add(offset.Mul(1 + k/r.omega))
	default:
		return r.target, r2.Point{}, r.target
	}
}

// end is the ICP the reference arrives at.
func (r reference) end() r2.Point { return r.target }

// remaining reports the time left in the piece at t.
func (r reference) remaining(t float64) float64 {
	if r.kind == referenceHold {
		return 0
	}
	return math.Max(0, r.start+r.duration-t)
}

func (r reference) isSettle() bool { return r.kind == referenceSettle }

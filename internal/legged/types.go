package legged

import (
	"errors"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
)

// Pose is a world-frame foot pose: sole position plus heading.
type Pose struct {
	Position r3.Vector
	Yaw      float64
}

func (p Pose) XY() r2.Point {
	return r2.Point{X: p.Position.X, Y: p.Position.Y}
}

// Transform maps a point from the pose's local frame into the world XY plane.
func (p Pose) Transform(local r2.Point) r2.Point {
	s, c := math.Sincos(p.Yaw)
	return r2.Point{
		X: p.Position.X + c*local.X - s*local.Y,
		Y: p.Position.Y + s*local.X + c*local.Y,
	}
}

// Translate returns the pose shifted in the XY plane.
func (p Pose) Translate(d r2.Point) Pose {
	p.Position.X += d.X
	p.Position.Y += d.Y
	return p
}

func (p Pose) IsFinite() bool {
	return isFinite(p.Position.X) && isFinite(p.Position.Y) && isFinite(p.Position.Z) && isFinite(p.Yaw)
}

type Footstep struct {
	Limb            Limb
	Goal            Pose
	GroundClearance float64
}

type FootstepTiming struct {
	SwingDuration    float64
	TransferDuration float64
}

// TimedFootstep is one entry of the footstep queue.
type TimedFootstep struct {
	Step   Footstep
	Timing FootstepTiming
}

// Validate reports why the pair cannot be queued, or nil.
func (f TimedFootstep) Validate() error {
	if f.Step.Limb == NoLimb {
		return &PlanError{Field: "limb", Value: 0, Wrapped: ErrInvalidPlan}
	}
	checks := []struct {
		name  string
		value float64
	}{
		{"goal.x", f.Step.Goal.Position.X},
		{"goal.y", f.Step.Goal.Position.Y},
		{"goal.z", f.Step.Goal.Position.Z},
		{"goal.yaw", f.Step.Goal.Yaw},
		{"ground_clearance", f.Step.GroundClearance},
	}
	for _, c := range checks {
		if !isFinite(c.value) {
			return &PlanError{Field: c.name, Value: c.value, Wrapped: ErrInvalidPlan}
		}
	}
	if !(f.Timing.SwingDuration > 0) || math.IsInf(f.Timing.SwingDuration, 0) {
		return &PlanError{Field: "swing_duration", Value: f.Timing.SwingDuration, Wrapped: ErrInvalidPlan}
	}
	if !(f.Timing.TransferDuration > 0) || math.IsInf(f.Timing.TransferDuration, 0) {
		return &PlanError{Field: "transfer_duration", Value: f.Timing.TransferDuration, Wrapped: ErrInvalidPlan}
	}
	return nil
}

// CapturePointState is the estimator feedback reduced to the linear
// inverted pendulum. It is recomputed every tick.
type CapturePointState struct {
	ComPosition          r3.Vector
	ComVelocity          r3.Vector
	CapturePoint         r2.Point
	CapturePointVelocity r2.Point
	Omega0               float64
}

// NewCapturePointState derives omega0 and the capture point from the CoM.
// A non-positive CoM height yields omega0 = 0, which callers treat as
// degraded feedback.
func NewCapturePointState(com, comVel r3.Vector, gravity float64) CapturePointState {
	s := CapturePointState{ComPosition: com, ComVelocity: comVel}
	if com.Z <= 0 || gravity <= 0 {
		return s
	}
	s.Omega0 = math.Sqrt(gravity / com.Z)
	s.CapturePoint = r2.Point{
		X: com.X + comVel.X/s.Omega0,
		Y: com.Y + comVel.Y/s.Omega0,
	}
	return s
}

func (s CapturePointState) ComXY() r2.Point {
	return r2.Point{X: s.ComPosition.X, Y: s.ComPosition.Y}
}

func (s CapturePointState) IsFinite() bool {
	vals := []float64{
		s.ComPosition.X, s.ComPosition.Y, s.ComPosition.Z,
		s.ComVelocity.X, s.ComVelocity.Y, s.ComVelocity.Z,
		s.CapturePoint.X, s.CapturePoint.Y,
		s.CapturePointVelocity.X, s.CapturePointVelocity.Y,
		s.Omega0,
	}
	for _, v := range vals {
		if !isFinite(v) {
			return false
		}
	}
	return true
}

type Phase uint8

const (
	Standing Phase = iota
	Transfer
	SingleSupport
)

func (p Phase) String() string {
	switch p {
	case Standing:
		return "STANDING"
	case Transfer:
		return "TRANSFER"
	case SingleSupport:
		return "SINGLE_SUPPORT"
	}
	return "UNKNOWN"
}

type ConstraintType uint8

const (
	Unconstrained ConstraintType = iota
	Full
	Toes
	Heel
)

func (c ConstraintType) String() string {
	switch c {
	case Unconstrained:
		return "UNCONSTRAINED"
	case Full:
		return "FULL"
	case Toes:
		return "TOES"
	case Heel:
		return "HEEL"
	}
	return "UNKNOWN"
}

// Supporting reports whether bodies in this constraint contribute to the
// support polygon.
func (c ConstraintType) Supporting() bool {
	return c == Full || c == Toes || c == Heel
}

// ContactState is the ground-contact constraint of one rigid body.
// Points are expressed in the body's sole frame.
type ContactState struct {
	Constraint ConstraintType
	Points     []r2.Point
	Friction   float64
	Normal     r3.Vector
}

func (c ContactState) Clone() ContactState {
	out := c
	out.Points = append([]r2.Point(nil), c.Points...)
	return out
}

// DesiredOutputs is the per-tick result of the balance controller.
type DesiredOutputs struct {
	GroundReactionPoint         r2.Point
	DesiredCapturePoint         r2.Point
	DesiredCapturePointVelocity r2.Point
	AngularMomentumResidual     r2.Point
	AdjustedFootstep            *Footstep
	FootstepWasAdjusted         bool
	Degraded                    bool
}

// Status carries the observability flags of one tick.
type Status struct {
	Degraded               bool
	LateTouchdown          bool
	InfeasibleOptimization bool
	SafetyStop             bool
	RejectedPlanEntries    int
}

// Err joins the sentinel errors of the raised flags, or returns nil.
func (s Status) Err() error {
	var errs []error
	if s.SafetyStop {
		errs = append(errs, ErrNonFiniteFeedback)
	}
	if s.Degraded {
		errs = append(errs, ErrDegradedMode)
	}
	if s.InfeasibleOptimization {
		errs = append(errs, ErrInfeasibleOptimization)
	}
	return errors.Join(errs...)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// IsFinitePoint reports whether both coordinates are finite.
func IsFinitePoint(p r2.Point) bool {
	return isFinite(p.X) && isFinite(p.Y)
}

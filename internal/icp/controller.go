package icp

import (
	"math"
	"sync/atomic"

	"github.com/golang/geo/r2"
	"github.com/sirupsen/logrus"

	"github.com/san-kum/legbalance/internal/geometry"
	"github.com/san-kum/legbalance/internal/legged"
)

var log = logrus.WithFields(logrus.Fields{"pkg": "icp"})

// SupportPolygons is satisfied by *support.Tracker.
type SupportPolygons interface {
	Combined() geometry.ConvexPolygon
	PolygonExcluding(limb legged.Limb) geometry.ConvexPolygon
}

type Controller struct {
	params  Parameters
	support SupportPolygons
	queue   FootstepQueue
	terrain terrain

	finalTransfer float64

	keepInside      atomic.Bool
	angularMomentum atomic.Bool
	stepAdjustment  atomic.Bool

	phase     legged.Phase
	swingLimb legged.Limb
	omega0    float64
	ref       reference
	started   bool
	fb        feedback
	now       float64

	// single support bookkeeping
	swingEnd  float64
	touchdown r2.Point
	beta      float64
	offset    r2.Point
	adjusted  bool

	degraded   bool
	omegaHold  bool
	frozenAt   float64
	infeasible bool
	outputs    legged.DesiredOutputs
}

func NewController(params Parameters, polygons SupportPolygons) *Controller {
	c := &Controller{
		params:        params,
		support:       polygons,
		finalTransfer: params.FinalTransferDuration,
		phase:         legged.Standing,
	}
	c.keepInside.Store(params.KeepInsidePolygon)
	c.angularMomentum.Store(params.UseAngularMomentum)
	c.stepAdjustment.Store(params.UseStepAdjustment)
	return c
}

// ClearPlan empties the queue. Idempotent.
func (c *Controller) ClearPlan() {
	c.queue.Clear()
}

// AddFootstepToPlan appends one entry. Invalid entries are rejected with
// legged.ErrInvalidPlan and leave the queue unchanged.
func (c *Controller) AddFootstepToPlan(step legged.Footstep, timing legged.FootstepTiming) error {
	return c.queue.Append(legged.TimedFootstep{Step: step, Timing: timing})
}

func (c *Controller) NumberOfFootstepsInPlan() int { return c.queue.Len() }

// UpcomingFootstep returns the i-th queued entry without the adjustment.
func (c *Controller) UpcomingFootstep(i int) (legged.TimedFootstep, bool) {
	return c.queue.At(i)
}

// CompleteFootstep consumes the head entry after touchdown.
func (c *Controller) CompleteFootstep() (legged.TimedFootstep, bool) {
	return c.queue.PopHead()
}

func (c *Controller) SetFinalTransferDuration(d float64) error {
	if d < 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return &legged.PlanError{Field: "final transfer duration", Value: d, Wrapped: legged.ErrInvalidDuration}
	}
	c.finalTransfer = d
	return nil
}

func (c *Controller) FinalTransferDuration() float64 { return c.finalTransfer }

func (c *Controller) SetKeepInsidePolygon(v bool)  { c.keepInside.Store(v) }
func (c *Controller) SetUseAngularMomentum(v bool) { c.angularMomentum.Store(v) }
func (c *Controller) SetUseStepAdjustment(v bool)  { c.stepAdjustment.Store(v) }

func (c *Controller) Phase() legged.Phase { return c.phase }

// currentICP is the desired ICP the next reference starts from.
func (c *Controller) currentICP(t float64) r2.Point {
	if !c.started {
		return c.support.Combined().Centroid()
	}
	icp, _, _ := c.Reference(t)
	return icp
}

func (c *Controller) resetStep() {
	c.offset = r2.Point{}
	c.adjusted = false
	c.degraded = false
}

// InitializeForStanding resets the feedback and settles the reference onto
// the combined support polygon centroid.
func (c *Controller) InitializeForStanding(t float64) {
	from := c.currentICP(t)
	c.phase = legged.Standing
	c.swingLimb = legged.NoLimb
	c.fb.reset()
	c.resetStep()

	combined := c.support.Combined()
	target := from
	if !combined.IsEmpty() {
		target = combined.Centroid()
	}
	if c.started {
		c.ref = newSettle(t, c.finalTransfer, c.omega0, from, target)
	} else {
		c.ref = holdReference(target)
	}
	c.started = true
	log.Debugf("standing at %.3f, icp target (%.3f, %.3f)", t, target.X, target.Y)
}

// InitializeForTransfer plans the double support segment that brings the
// ICP to where the next single support must start.
func (c *Controller) InitializeForTransfer(t float64, toSide legged.Limb, omega0 float64) {
	from := c.currentICP(t)
	c.started = true
	c.phase = legged.Transfer
	c.resetStep()
	if omega0 > 0 {
		c.omega0 = omega0
	}

	head, ok := c.queue.Head()
	if !ok {
		target := c.support.Combined().Centroid()
		c.ref = newSettle(t, c.finalTransfer, c.omega0, from, target)
		return
	}
	if c.omega0 <= 0 {
		c.enterDegraded(t, "transfer without a valid omega0")
		return
	}
	c.swingLimb = head.Step.Limb
	stance := c.stanceArea(head.Step.Limb)
	anchor := stance.Centroid()
	touchdown, _ := c.touchdownTarget(anchor, c.omega0)
	ssStart := anchor.Add(touchdown.Sub(anchor).Mul(math.Exp(-c.omega0 * head.Timing.SwingDuration)))
	if !stance.IsEmpty() && !stance.Contains(ssStart) {
		ssStart = stance.ClosestPoint(ssStart)
	}
	area := c.support.Combined().Shrink(c.params.SafeAreaMargin)
	c.ref = newSegment(t, head.Timing.TransferDuration, c.omega0, from, ssStart, area)
	log.Debugf("transfer to %s at %.3f over %.3fs", toSide, t, head.Timing.TransferDuration)
}

// InitializeForSingleSupport plans the swing segment of the head footstep.
func (c *Controller) InitializeForSingleSupport(t float64, supportSide legged.Limb, omega0 float64) {
	from := c.currentICP(t)
	c.started = true
	c.phase = legged.SingleSupport
	c.resetStep()
	if omega0 > 0 {
		c.omega0 = omega0
	}

	head, ok := c.queue.Head()
	if !ok {
		c.enterDegraded(t, "single support with an empty plan")
		return
	}
	if c.omega0 <= 0 {
		c.enterDegraded(t, "single support without a valid omega0")
		return
	}
	c.swingLimb = head.Step.Limb
	stance := c.stanceArea(head.Step.Limb)
	touchdown, beta := c.touchdownTarget(stance.Centroid(), c.omega0)
	c.ref = newSegment(t, head.Timing.SwingDuration, c.omega0, from, touchdown, stance)
	c.touchdown = c.ref.end()
	c.beta = beta
	c.swingEnd = t + head.Timing.SwingDuration
	log.Debugf("single support on %s at %.3f, swing %s for %.3fs",
		supportSide, t, head.Step.Limb, head.Timing.SwingDuration)
}

// stanceArea is the safe area while limb swings: the stance polygon shrunk
// by the safe margin.
func (c *Controller) stanceArea(limb legged.Limb) geometry.ConvexPolygon {
	return c.support.PolygonExcluding(limb).Shrink(c.params.SafeAreaMargin)
}

// touchdownTarget looks ahead over the next two footsteps for the ICP at the
// end of the head swing. beta is its sensitivity to the head goal.
func (c *Controller) touchdownTarget(stance r2.Point, omega float64) (r2.Point, float64) {
	head, _ := c.queue.Head()
	landing := head.Step.Goal.XY()
	next, ok := c.queue.At(1)
	if !ok {
		return stance.Add(landing).Mul(0.5), 0.5
	}
	after := next.Step.Goal.XY()
	decay := math.Exp(-omega * (next.Timing.TransferDuration + next.Timing.SwingDuration))
	between := landing.Add(after).Mul(0.5)
	return landing.Add(between.Sub(landing).Mul(decay)), 1 - 0.5*decay
}

func (c *Controller) enterDegraded(t float64, reason string) {
	if !c.degraded {
		log.Warnf("degraded at %.3f: %s", t, reason)
		c.frozenAt = t
	}
	c.degraded = true
}

// Reference returns the internally planned desired ICP, ICP velocity and
// perfect CMP at t. A degraded controller keeps returning the reference at
// the moment it degraded.
func (c *Controller) Reference(t float64) (icp, icpVelocity, perfectCMP r2.Point) {
	if c.degraded {
		t = c.frozenAt
	}
	return c.ref.at(t)
}

// Compute runs one control tick from the measured CoM state. Toggles are
// sampled once at entry.
func (c *Controller) Compute(t float64, desiredICP, desiredICPVelocity, perfectCMP, com, comVelocity r2.Point, omega0 float64) {
	keepInside := c.keepInside.Load()
	useAngular := c.angularMomentum.Load()
	useAdjustment := c.stepAdjustment.Load()
	c.now = t
	c.infeasible = false

	if !(omega0 > 0) || math.IsInf(omega0, 0) {
		if !c.omegaHold {
			log.Warnf("holding output at %.3f: omega0 %v", t, omega0)
		}
		c.omegaHold = true
		c.outputs.Degraded = true
		return
	}
	c.omegaHold = false
	c.omega0 = omega0
	icp := com.Add(comVelocity.Mul(1 / omega0))
	if c.queue.Len() == 0 && (c.phase == legged.SingleSupport || (c.phase == legged.Transfer && !c.ref.isSettle())) {
		c.enterDegraded(t, "plan emptied mid-step")
	}
	if c.degraded {
		c.outputs.Degraded = true
		return
	}

	icpError := icp.Sub(desiredICP)
	delta := c.fb.delta(c.params.Gains, c.params.MinimumVelocityForDirection, icpError, desiredICPVelocity, c.params.ControlDT)
	cmp := perfectCMP.Add(delta)

	if useAdjustment && c.phase == legged.SingleSupport {
		cmp = c.adjust(t, cmp, icp, perfectCMP, omega0, useAngular)
	}

	limited := c.fb.limit(cmp.Sub(perfectCMP), c.params.Gains.FeedbackMaxRate*c.params.ControlDT)
	cmp = perfectCMP.Add(limited)

	var residual r2.Point
	if polygon := c.support.Combined(); keepInside && !polygon.IsEmpty() && !polygon.Contains(cmp) {
		if useAngular {
			projected := polygon.ClosestPoint(cmp)
			residual = cmp.Sub(projected)
			cmp = projected
		} else {
			cmp = polygon.ProjectTowards(cmp, icp)
		}
	}

	c.outputs = legged.DesiredOutputs{
		GroundReactionPoint:         cmp,
		DesiredCapturePoint:         desiredICP,
		DesiredCapturePointVelocity: desiredICPVelocity,
		AngularMomentumResidual:     residual,
		FootstepWasAdjusted:         c.adjusted,
	}
	if step, ok := c.FootstepSolution(); ok && c.phase == legged.SingleSupport {
		c.outputs.AdjustedFootstep = &step
	}
}

// adjust moves the head footstep when the feedback CMP leaves the safe area.
// It returns the CMP to command.
func (c *Controller) adjust(t float64, cmp, icp, perfectCMP r2.Point, omega0 float64, useAngular bool) r2.Point {
	remaining := c.swingEnd - t
	if remaining < c.params.MinimumTimeRemaining {
		return cmp
	}
	head, ok := c.queue.Head()
	if !ok {
		return cmp
	}
	area := c.safeArea(t, useAngular)
	if area.DistanceOutside(cmp) <= c.params.AdjustmentTrigger {
		return cmp
	}

	box := r2.RectFromCenterSize(r2.Point{}, r2.Point{X: 2 * c.params.MaxAdjustmentX, Y: 2 * c.params.MaxAdjustmentY})
	if c.terrain.refresh(t, c.params.PlanningCycle) {
		box = c.terrain.clipBox(box, head.Step.Goal.XY(), c.params.RegionMargin)
	}
	problem := adjustmentProblem{
		growth:       math.Exp(omega0 * remaining),
		icp:          icp,
		touchdown:    c.touchdown,
		beta:         c.beta,
		perfectCMP:   perfectCMP,
		area:         area,
		box:          box,
		maxMagnitude: c.params.MaxAdjustment,
		weights:      c.params.Weights,
		iterations:   c.params.SolverIterations,
		tolerance:    c.params.SolverTolerance,
	}
	sol, err := problem.solve()
	if err != nil {
		if !c.infeasible {
			log.WithError(err).Warnf("step adjustment at %.3f dropped", t)
		}
		c.infeasible = true
		return cmp
	}
	c.offset = sol.offset
	c.adjusted = sol.offset.Norm() > c.params.AdjustedTolerance
	return sol.cmp
}

// safeArea is the region the adjusted CMP is constrained to.
func (c *Controller) safeArea(t float64, useAngular bool) geometry.ConvexPolygon {
	area := c.stanceArea(c.swingLimb)
	if c.terrain.refresh(t, c.params.PlanningCycle) {
		area = c.terrain.clipArea(area, area.Centroid())
	}
	if useAngular {
		area = area.Expand(c.params.AngularMomentumExpansion)
	}
	return area
}

// DesiredGroundReactionPoint returns the CMP of the last Compute.
func (c *Controller) DesiredGroundReactionPoint() r2.Point {
	return c.outputs.GroundReactionPoint
}

// Outputs returns a copy of the last computed outputs.
func (c *Controller) Outputs() legged.DesiredOutputs {
	out := c.outputs
	if out.AdjustedFootstep != nil {
		step := *out.AdjustedFootstep
		out.AdjustedFootstep = &step
	}
	return out
}

// FootstepSolution is the head footstep with the current adjustment applied.
func (c *Controller) FootstepSolution() (legged.Footstep, bool) {
	head, ok := c.queue.Head()
	if !ok {
		return legged.Footstep{}, false
	}
	step := head.Step
	step.Goal = step.Goal.Translate(c.offset)
	return step, true
}

func (c *Controller) WasFootstepAdjusted() bool { return c.adjusted }

// Status reports the flags raised by the last Compute.
func (c *Controller) Status() legged.Status {
	return legged.Status{
		Degraded:               c.degraded || c.omegaHold,
		InfeasibleOptimization: c.infeasible,
	}
}

// SubmitRemainingTimeInSwingUnderDisturbance replans the rest of the swing
// to end after remaining seconds. It only has effect in single support.
func (c *Controller) SubmitRemainingTimeInSwingUnderDisturbance(remaining float64) error {
	if remaining < 0 || math.IsNaN(remaining) || math.IsInf(remaining, 0) {
		return &legged.PlanError{Field: "remaining swing time", Value: remaining, Wrapped: legged.ErrInvalidDuration}
	}
	if c.phase != legged.SingleSupport || c.degraded {
		return nil
	}
	from, _, _ := c.ref.at(c.now)
	c.ref = newSegment(c.now, remaining, c.omega0, from, c.touchdown, c.stanceArea(c.swingLimb))
	c.swingEnd = c.now + remaining
	return nil
}

// SubmitCurrentPlanarRegions stores the terrain used to clip the safe area
// and the admissible footstep box. Each region ages from its own Timestamp,
// not from t.
func (c *Controller) SubmitCurrentPlanarRegions(regions []geometry.PlanarRegion, t float64) {
	c.terrain.submit(regions)
	log.Debugf("%d planar regions at %.3f", len(regions), t)
}

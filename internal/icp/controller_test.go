package icp

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"github.com/san-kum/legbalance/internal/geometry"
	"github.com/san-kum/legbalance/internal/legged"
)

// fixedSupport serves a static stance: the left foot at y=+0.1 and the
// right foot at y=-0.1, each 0.2 by 0.1.
type fixedSupport struct {
	feet map[legged.Limb]geometry.ConvexPolygon
}

func foot(cx, cy float64) geometry.ConvexPolygon {
	return geometry.RectPolygon(r2.RectFromCenterSize(r2.Point{X: cx, Y: cy}, r2.Point{X: 0.2, Y: 0.1}))
}

func newFixedSupport() *fixedSupport {
	return &fixedSupport{feet: map[legged.Limb]geometry.ConvexPolygon{
		legged.Left:  foot(0, 0.1),
		legged.Right: foot(0, -0.1),
	}}
}

func (f *fixedSupport) Combined() geometry.ConvexPolygon {
	return f.PolygonExcluding(legged.NoLimb)
}

func (f *fixedSupport) PolygonExcluding(limb legged.Limb) geometry.ConvexPolygon {
	var polys []geometry.ConvexPolygon
	for l, p := range f.feet {
		if l != limb {
			polys = append(polys, p)
		}
	}
	return geometry.Combine(polys...)
}

func step(limb legged.Limb, x, y float64) legged.Footstep {
	return legged.Footstep{Limb: limb, Goal: legged.Pose{Position: r3.Vector{X: x, Y: y}}}
}

var nominalTiming = legged.FootstepTiming{SwingDuration: 0.6, TransferDuration: 0.2}

func TestAddFootstepRejectsInvalid(t *testing.T) {
	c := NewController(DefaultParameters(), newFixedSupport())
	if err := c.AddFootstepToPlan(step(legged.Left, 0.3, 0.1), nominalTiming); err != nil {
		t.Fatalf("valid footstep rejected: %v", err)
	}

	tests := []struct {
		name   string
		step   legged.Footstep
		timing legged.FootstepTiming
	}{
		{"zero swing", step(legged.Left, 0.3, 0.1), legged.FootstepTiming{SwingDuration: 0, TransferDuration: 0.2}},
		{"negative transfer", step(legged.Left, 0.3, 0.1), legged.FootstepTiming{SwingDuration: 0.6, TransferDuration: -1}},
		{"nan goal", step(legged.Left, math.NaN(), 0.1), nominalTiming},
		{"inf goal", step(legged.Right, 0.3, math.Inf(1)), nominalTiming},
		{"no limb", step(legged.NoLimb, 0.3, 0.1), nominalTiming},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.AddFootstepToPlan(tt.step, tt.timing)
			if !errors.Is(err, legged.ErrInvalidPlan) {
				t.Errorf("expected ErrInvalidPlan, got %v", err)
			}
			if c.NumberOfFootstepsInPlan() != 1 {
				t.Errorf("queue changed: %d entries", c.NumberOfFootstepsInPlan())
			}
		})
	}
}

func TestClearPlanIdempotent(t *testing.T) {
	c := NewController(DefaultParameters(), newFixedSupport())
	for i := 0; i < 3; i++ {
		if err := c.AddFootstepToPlan(step(legged.Left, 0.3*float64(i+1), 0.1), nominalTiming); err != nil {
			t.Fatal(err)
		}
	}
	c.ClearPlan()
	c.ClearPlan()
	if c.NumberOfFootstepsInPlan() != 0 {
		t.Errorf("expected empty plan, got %d", c.NumberOfFootstepsInPlan())
	}
	if _, ok := c.FootstepSolution(); ok {
		t.Error("footstep solution should be absent for an empty plan")
	}
}

func TestSetFinalTransferDuration(t *testing.T) {
	c := NewController(DefaultParameters(), newFixedSupport())
	if err := c.SetFinalTransferDuration(-0.1); !errors.Is(err, legged.ErrInvalidDuration) {
		t.Errorf("expected ErrInvalidDuration, got %v", err)
	}
	if err := c.SetFinalTransferDuration(0); err != nil {
		t.Errorf("zero duration should be accepted: %v", err)
	}
	if c.FinalTransferDuration() != 0 {
		t.Errorf("expected 0, got %f", c.FinalTransferDuration())
	}
}

func TestZeroErrorCommandsPerfectCMP(t *testing.T) {
	c := NewController(DefaultParameters(), newFixedSupport())
	c.InitializeForStanding(0)

	desired := r2.Point{X: 0.02, Y: 0.01}
	c.Compute(0.004, desired, r2.Point{}, desired, desired, r2.Point{}, 3.0)

	if got := c.DesiredGroundReactionPoint(); got != desired {
		t.Errorf("expected CMP %v, got %v", desired, got)
	}
	if c.Status().Degraded {
		t.Error("controller should not be degraded")
	}
}

func TestFeedbackPushesCMPTowardError(t *testing.T) {
	c := NewController(DefaultParameters(), newFixedSupport())
	c.InitializeForStanding(0)

	measured := r2.Point{X: 0.01, Y: 0}
	c.Compute(0.004, r2.Point{}, r2.Point{}, r2.Point{}, measured, r2.Point{}, 3.0)

	if got := c.DesiredGroundReactionPoint(); got.X <= 0 {
		t.Errorf("CMP should move toward the measured ICP, got %v", got)
	}
}

func TestCMPAlwaysInsideSupport(t *testing.T) {
	support := newFixedSupport()
	polygon := support.Combined()
	rng := rand.New(rand.NewSource(7))

	for _, angular := range []bool{false, true} {
		params := DefaultParameters()
		params.UseAngularMomentum = angular
		params.Gains.FeedbackMaxRate = math.Inf(1)
		c := NewController(params, support)
		c.InitializeForStanding(0)

		for i := 0; i < 300; i++ {
			desired := r2.Point{X: rng.Float64()*0.4 - 0.2, Y: rng.Float64()*0.6 - 0.3}
			measured := desired.Add(r2.Point{X: rng.NormFloat64() * 0.2, Y: rng.NormFloat64() * 0.2})
			c.Compute(float64(i)*0.004, desired, r2.Point{}, desired, measured, r2.Point{}, 3.0)

			cmp := c.DesiredGroundReactionPoint()
			if !polygon.Contains(cmp) {
				t.Fatalf("angular=%v iteration %d: CMP %v outside support", angular, i, cmp)
			}
			if !angular && c.Outputs().AngularMomentumResidual != (r2.Point{}) {
				t.Fatalf("residual reported without angular momentum")
			}
		}
	}
}

func TestAngularMomentumResidual(t *testing.T) {
	params := DefaultParameters()
	params.UseAngularMomentum = true
	params.Gains.FeedbackMaxRate = math.Inf(1)
	c := NewController(params, newFixedSupport())
	c.InitializeForStanding(0)

	outside := r2.Point{X: 0.3, Y: 0}
	c.Compute(0.004, outside, r2.Point{}, outside, outside, r2.Point{}, 3.0)

	out := c.Outputs()
	if math.Abs(out.GroundReactionPoint.X-0.1) > 1e-9 {
		t.Errorf("expected projection onto x=0.1, got %v", out.GroundReactionPoint)
	}
	if math.Abs(out.AngularMomentumResidual.X-0.2) > 1e-9 {
		t.Errorf("expected residual 0.2, got %v", out.AngularMomentumResidual)
	}
}

func TestDesiredGroundReactionPointIsPure(t *testing.T) {
	c := NewController(DefaultParameters(), newFixedSupport())
	c.InitializeForStanding(0)
	c.Compute(0.004, r2.Point{}, r2.Point{}, r2.Point{}, r2.Point{X: 0.01, Y: -0.02}, r2.Point{}, 3.0)

	first := c.DesiredGroundReactionPoint()
	second := c.DesiredGroundReactionPoint()
	if first != second {
		t.Errorf("repeated reads differ: %v vs %v", first, second)
	}
}

// swinging sets up single support on the right foot with the left foot
// stepping to (0.3, 0.1).
func swinging(t *testing.T, params Parameters) (*Controller, *fixedSupport) {
	t.Helper()
	support := newFixedSupport()
	c := NewController(params, support)
	if err := c.AddFootstepToPlan(step(legged.Left, 0.3, 0.1), nominalTiming); err != nil {
		t.Fatal(err)
	}
	c.InitializeForStanding(0)
	delete(support.feet, legged.Left)
	c.InitializeForSingleSupport(0, legged.Right, 3.0)
	return c, support
}

func TestStepAdjustmentBounded(t *testing.T) {
	params := DefaultParameters()
	c, support := swinging(t, params)

	desired, vel, perfect := c.Reference(0.1)
	measured := desired.Add(r2.Point{Y: 0.08})
	c.Compute(0.1, desired, vel, perfect, measured, r2.Point{}, 3.0)

	if !c.WasFootstepAdjusted() {
		t.Fatal("expected the footstep to be adjusted")
	}
	solution, ok := c.FootstepSolution()
	if !ok {
		t.Fatal("missing footstep solution")
	}
	offset := solution.Goal.XY().Sub(r2.Point{X: 0.3, Y: 0.1})
	if offset.Norm() > params.MaxAdjustment+1e-9 {
		t.Errorf("adjustment %v exceeds %f", offset, params.MaxAdjustment)
	}
	if offset.Y <= 0 {
		t.Errorf("footstep should move toward the disturbance, got %v", offset)
	}
	if !support.Combined().Contains(c.DesiredGroundReactionPoint()) {
		t.Errorf("CMP %v left the stance foot", c.DesiredGroundReactionPoint())
	}
	if out := c.Outputs(); out.AdjustedFootstep == nil || !out.FootstepWasAdjusted {
		t.Error("outputs should carry the adjusted footstep")
	}
}

func TestNoAdjustmentWhenDisabled(t *testing.T) {
	params := DefaultParameters()
	params.UseStepAdjustment = false
	c, _ := swinging(t, params)

	desired, vel, perfect := c.Reference(0.1)
	c.Compute(0.1, desired, vel, perfect, desired.Add(r2.Point{Y: 0.08}), r2.Point{}, 3.0)
	if c.WasFootstepAdjusted() {
		t.Error("adjustment disabled but footstep moved")
	}
}

func TestNoAdjustmentNearTouchdown(t *testing.T) {
	c, _ := swinging(t, DefaultParameters())

	desired, vel, perfect := c.Reference(0.58)
	c.Compute(0.58, desired, vel, perfect, desired.Add(r2.Point{Y: 0.08}), r2.Point{}, 3.0)
	if c.WasFootstepAdjusted() {
		t.Error("footstep moved with too little swing time left")
	}
}

func TestNominalSwingNotAdjusted(t *testing.T) {
	c, _ := swinging(t, DefaultParameters())
	for i := 0; i <= 150; i++ {
		now := float64(i) * 0.004
		desired, vel, perfect := c.Reference(now)
		c.Compute(now, desired, vel, perfect, desired, r2.Point{}, 3.0)
		if c.WasFootstepAdjusted() {
			t.Fatalf("nominal tracking adjusted the footstep at %.3f", now)
		}
	}
}

func TestDegradedOnEmptyPlan(t *testing.T) {
	c, _ := swinging(t, DefaultParameters())
	desired, vel, perfect := c.Reference(0.1)
	c.Compute(0.1, desired, vel, perfect, desired, r2.Point{}, 3.0)
	held := c.DesiredGroundReactionPoint()

	c.ClearPlan()
	c.Compute(0.2, desired, vel, perfect, desired.Add(r2.Point{X: 0.05}), r2.Point{}, 3.0)

	if !c.Status().Degraded {
		t.Fatal("expected degraded status")
	}
	if got := c.DesiredGroundReactionPoint(); got != held {
		t.Errorf("output not held: %v vs %v", got, held)
	}
	frozen, _, _ := c.Reference(0.3)
	if again, _, _ := c.Reference(0.5); again != frozen {
		t.Errorf("reference not frozen: %v vs %v", frozen, again)
	}

	c.InitializeForStanding(0.3)
	if c.Status().Degraded {
		t.Error("standing should clear the degraded state")
	}
}

func TestNonPositiveOmegaHoldsOutput(t *testing.T) {
	c := NewController(DefaultParameters(), newFixedSupport())
	c.InitializeForStanding(0)
	c.Compute(0.004, r2.Point{}, r2.Point{}, r2.Point{}, r2.Point{X: 0.02}, r2.Point{}, 3.0)
	held := c.DesiredGroundReactionPoint()

	c.Compute(0.008, r2.Point{}, r2.Point{}, r2.Point{}, r2.Point{X: -0.05}, r2.Point{}, 0)
	if got := c.DesiredGroundReactionPoint(); got != held {
		t.Errorf("output changed with omega0 = 0: %v vs %v", got, held)
	}
	if !c.Status().Degraded {
		t.Error("expected degraded status")
	}

	c.Compute(0.012, r2.Point{}, r2.Point{}, r2.Point{}, r2.Point{X: 0.02}, r2.Point{}, 3.0)
	if c.Status().Degraded {
		t.Error("valid omega0 should resume control")
	}
}

func TestRemainingSwingTime(t *testing.T) {
	c, _ := swinging(t, DefaultParameters())
	if err := c.SubmitRemainingTimeInSwingUnderDisturbance(-0.1); !errors.Is(err, legged.ErrInvalidDuration) {
		t.Errorf("expected ErrInvalidDuration, got %v", err)
	}

	desired, vel, perfect := c.Reference(0.2)
	c.Compute(0.2, desired, vel, perfect, desired, r2.Point{}, 3.0)
	if err := c.SubmitRemainingTimeInSwingUnderDisturbance(0.2); err != nil {
		t.Fatal(err)
	}
	end, _, _ := c.Reference(0.4)
	target, _, _ := c.Reference(10)
	if end.Sub(target).Norm() > 1e-9 {
		t.Errorf("reference should end at 0.4, got %v vs %v", end, target)
	}
}

func TestTerrainClipsAdjustment(t *testing.T) {
	params := DefaultParameters()
	c, _ := swinging(t, params)

	region := geometry.PlanarRegion{
		ID:      1,
		Polygon: geometry.RectPolygon(r2.RectFromCenterSize(r2.Point{X: 0.3, Y: 0.1}, r2.Point{X: 0.2, Y: 0.14})),
	}
	c.SubmitCurrentPlanarRegions([]geometry.PlanarRegion{region}, 0)

	desired, vel, perfect := c.Reference(0.1)
	c.Compute(0.1, desired, vel, perfect, desired.Add(r2.Point{Y: 0.08}), r2.Point{}, 3.0)

	solution, _ := c.FootstepSolution()
	offset := solution.Goal.XY().Sub(r2.Point{X: 0.3, Y: 0.1})
	if offset.Y > 0.02+1e-9 {
		t.Errorf("footstep left its region: offset %v", offset)
	}
}

func TestStaleRegionIgnored(t *testing.T) {
	params := DefaultParameters()
	free, _ := swinging(t, params)
	stale, _ := swinging(t, params)

	region := geometry.PlanarRegion{
		ID:        1,
		Polygon:   geometry.RectPolygon(r2.RectFromCenterSize(r2.Point{X: 0.3, Y: 0.1}, r2.Point{X: 0.2, Y: 0.14})),
		Timestamp: -100,
	}
	stale.SubmitCurrentPlanarRegions([]geometry.PlanarRegion{region}, 0.1)

	desired, vel, perfect := free.Reference(0.1)
	measured := desired.Add(r2.Point{Y: 0.08})
	free.Compute(0.1, desired, vel, perfect, measured, r2.Point{}, 3.0)
	stale.Compute(0.1, desired, vel, perfect, measured, r2.Point{}, 3.0)

	want, _ := free.FootstepSolution()
	got, _ := stale.FootstepSolution()
	if got.Goal.XY().Sub(want.Goal.XY()).Norm() > 1e-12 {
		t.Errorf("region observed 100s ago clipped the footstep: %v, want %v", got.Goal.XY(), want.Goal.XY())
	}
	if got.Goal.XY().Y-0.1 <= 0.02+1e-9 {
		t.Errorf("expected the unclipped offset, got %v", got.Goal.XY())
	}
}

func TestInfeasibleAdjustmentFallsBack(t *testing.T) {
	params := DefaultParameters()
	params.SolverIterations = 1
	params.SolverTolerance = 1e-15
	c, support := swinging(t, params)

	plain := params
	plain.UseStepAdjustment = false
	reference, _ := swinging(t, plain)

	desired, vel, perfect := c.Reference(0.1)
	measured := desired.Add(r2.Point{Y: 0.08})
	c.Compute(0.1, desired, vel, perfect, measured, r2.Point{}, 3.0)
	reference.Compute(0.1, desired, vel, perfect, measured, r2.Point{}, 3.0)

	if !c.Status().InfeasibleOptimization {
		t.Fatal("expected InfeasibleOptimization after a single solver iteration")
	}
	if got, want := c.DesiredGroundReactionPoint(), reference.DesiredGroundReactionPoint(); got.Sub(want).Norm() > 1e-12 {
		t.Errorf("expected the projected feedback CMP %v, got %v", want, got)
	}
	if !support.Combined().Contains(c.DesiredGroundReactionPoint()) {
		t.Errorf("fallback CMP %v outside support", c.DesiredGroundReactionPoint())
	}
	if c.WasFootstepAdjusted() {
		t.Error("footstep adjusted by a failed solve")
	}
	if solution, _ := c.FootstepSolution(); solution.Goal.XY() != (r2.Point{X: 0.3, Y: 0.1}) {
		t.Errorf("footstep moved to %v", solution.Goal.XY())
	}
	if c.Status().Degraded {
		t.Error("an infeasible solve is not degraded mode")
	}
}

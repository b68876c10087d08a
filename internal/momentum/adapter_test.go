package momentum

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
)

func TestConvertBalanced(t *testing.T) {
	p := DefaultParameters()
	a := NewAdapter(p, nil)

	cmd := a.Convert(Input{
		CoM:                 r3.Vector{X: 0.1, Y: -0.05, Z: p.NominalHeight},
		Omega0:              3,
		GroundReactionPoint: r2.Point{X: 0.1, Y: -0.05},
	})
	if cmd.Linear.Norm() > 1e-9 {
		t.Errorf("expected zero momentum rate, got %v", cmd.Linear)
	}
	if cmd.Angular.Norm() != 0 {
		t.Errorf("expected no torque, got %v", cmd.Angular)
	}
}

func TestConvertPushesAwayFromCMP(t *testing.T) {
	p := DefaultParameters()
	a := NewAdapter(p, nil)

	cmd := a.Convert(Input{
		CoM:                 r3.Vector{X: 0, Y: 0, Z: p.NominalHeight},
		Omega0:              3,
		GroundReactionPoint: r2.Point{X: -0.02, Y: 0},
	})
	want := p.Mass * 9 * 0.02
	if math.Abs(cmd.Linear.X-want) > 1e-9 {
		t.Errorf("expected %f, got %f", want, cmd.Linear.X)
	}
}

func TestConvertFeedForward(t *testing.T) {
	p := DefaultParameters()
	a := NewAdapter(p, nil)
	in := Input{
		CoM:                 r3.Vector{Z: p.NominalHeight},
		Omega0:              3,
		GroundReactionPoint: r2.Point{},
		PerfectCMP:          r2.Point{X: 0.03},
		PerfectCoP:          r2.Point{X: 0.01},
	}

	without := a.Convert(in)
	if without.Linear.X != 0 {
		t.Errorf("feed forward applied without an estimate: %v", without.Linear)
	}

	in.HasPerfectCoP = true
	with := a.Convert(in)
	want := -p.Mass * 9 * 0.02
	if math.Abs(with.Linear.X-want) > 1e-9 {
		t.Errorf("expected %f, got %f", want, with.Linear.X)
	}
}

func TestConvertResidualTorque(t *testing.T) {
	p := DefaultParameters()
	a := NewAdapter(p, nil)

	cmd := a.Convert(Input{
		CoM:                     r3.Vector{Z: p.NominalHeight},
		Omega0:                  3,
		AngularMomentumResidual: r2.Point{X: 0.01, Y: 0.02},
	})
	weight := p.Mass * p.Gravity
	if math.Abs(cmd.Angular.X+0.02*weight) > 1e-9 || math.Abs(cmd.Angular.Y-0.01*weight) > 1e-9 {
		t.Errorf("unexpected torque %v", cmd.Angular)
	}
}

func TestHeightPD(t *testing.T) {
	h := HeightPD{Mass: 10, Gravity: 10, Height: 1, Kp: 100, Kd: 0}
	tests := []struct {
		name   string
		height float64
		want   float64
	}{
		{"nominal", 1, 100},
		{"low", 0.9, 200},
		{"high", 1.05, 50},
		{"far too high", 2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := h.VerticalForce(tt.height, 0); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("expected %f, got %f", tt.want, got)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	if err := DefaultParameters().Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
	p := DefaultParameters()
	p.Mass = 0
	if err := p.Validate(); err == nil {
		t.Error("expected error for zero mass")
	}
}

// Package momentum turns the desired ground reaction point into a centroidal
// momentum rate command for inverse dynamics.
package momentum

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
)

type Parameters struct {
	Mass          float64 `yaml:"mass"`
	Gravity       float64 `yaml:"gravity"`
	NominalHeight float64 `yaml:"nominal_height"`
	HeightKp      float64 `yaml:"height_kp"`
	HeightKd      float64 `yaml:"height_kd"`
}

func DefaultParameters() Parameters {
	return Parameters{
		Mass:          40,
		Gravity:       9.81,
		NominalHeight: 9.81 / 9,
		HeightKp:      50,
		HeightKd:      10,
	}
}

func (p Parameters) Validate() error {
	if p.Mass <= 0 {
		return fmt.Errorf("mass must be positive, got %f", p.Mass)
	}
	if p.Gravity <= 0 {
		return fmt.Errorf("gravity must be positive, got %f", p.Gravity)
	}
	if p.NominalHeight <= 0 {
		return fmt.Errorf("nominal height must be positive, got %f", p.NominalHeight)
	}
	return nil
}

// VerticalForcePolicy chooses the total vertical ground reaction force.
type VerticalForcePolicy interface {
	VerticalForce(height, heightVelocity float64) float64
}

// HeightPD supports the weight and servoes the CoM height. The ground can
// only push, so the force is never negative.
type HeightPD struct {
	Mass    float64
	Gravity float64
	Height  float64
	Kp, Kd  float64
}

func NewHeightPD(p Parameters) HeightPD {
	return HeightPD{Mass: p.Mass, Gravity: p.Gravity, Height: p.NominalHeight, Kp: p.HeightKp, Kd: p.HeightKd}
}

func (h HeightPD) VerticalForce(height, heightVelocity float64) float64 {
	acc := h.Gravity + h.Kp*(h.Height-height) - h.Kd*heightVelocity
	return math.Max(0, h.Mass*acc)
}

type Input struct {
	CoM         r3.Vector
	CoMVelocity r3.Vector
	Omega0      float64

	GroundReactionPoint r2.Point
	PerfectCMP          r2.Point
	// PerfectCoP is the open-loop reaction point estimate, used only when
	// HasPerfectCoP is set.
	PerfectCoP    r2.Point
	HasPerfectCoP bool

	AngularMomentumResidual r2.Point
}

// Command is the desired rate of change of centroidal momentum.
type Command struct {
	Linear  r3.Vector
	Angular r3.Vector
}

type Adapter struct {
	params Parameters
	policy VerticalForcePolicy
}

func NewAdapter(params Parameters, policy VerticalForcePolicy) *Adapter {
	if policy == nil {
		policy = NewHeightPD(params)
	}
	return &Adapter{params: params, policy: policy}
}

// Convert remaps the reaction point to a momentum rate. The horizontal
// force follows the LIPM, m*omega0^2*(com - cmp); the CMP residual the
// polygon could not hold becomes a torque about the CoM.
func (a *Adapter) Convert(in Input) Command {
	fz := a.policy.VerticalForce(in.CoM.Z, in.CoMVelocity.Z)

	cmp := in.GroundReactionPoint
	if in.HasPerfectCoP {
		cmp = cmp.Add(in.PerfectCMP.Sub(in.PerfectCoP))
	}
	k := a.params.Mass * in.Omega0 * in.Omega0
	com := r2.Point{X: in.CoM.X, Y: in.CoM.Y}
	horizontal := com.Sub(cmp).Mul(k)

	res := in.AngularMomentumResidual
	return Command{
		Linear:  r3.Vector{X: horizontal.X, Y: horizontal.Y, Z: fz - a.params.Mass*a.params.Gravity},
		Angular: r3.Vector{X: -res.Y * fz, Y: res.X * fz},
	}
}

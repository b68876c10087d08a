package icp

import (
	"fmt"
)

// Gains of the capture-point feedback law.
type Gains struct {
	KpParallel        float64 `yaml:"kp_parallel"`
	KpOrthogonal      float64 `yaml:"kp_orthogonal"`
	Ki                float64 `yaml:"ki"`
	IntegralLeakRatio float64 `yaml:"integral_leak_ratio"`
	MaxIntegralError  float64 `yaml:"max_integral_error"`
	FeedbackMaxRate   float64 `yaml:"feedback_max_rate"`
}

// Weights of the step adjustment cost terms.
type Weights struct {
	TouchdownError float64 `yaml:"touchdown_error"`
	Feedback       float64 `yaml:"feedback"`
	Footstep       float64 `yaml:"footstep"`
}

type Parameters struct {
	ControlDT float64
	Gains     Gains

	KeepInsidePolygon  bool
	UseAngularMomentum bool
	UseStepAdjustment  bool

	// Inward margin of the safe area used for the reference CMP and the
	// adjustment constraint.
	SafeAreaMargin float64
	// Outward growth of the safe area when angular momentum may be used.
	AngularMomentumExpansion float64

	// Admissible adjustment box half extents and magnitude bound.
	MaxAdjustmentX float64
	MaxAdjustmentY float64
	MaxAdjustment  float64
	Weights        Weights

	// No adjustment when less swing time than this remains.
	MinimumTimeRemaining float64
	// Distance the feedback CMP must leave the safe area before the footstep
	// is moved.
	AdjustmentTrigger float64
	// Displacement below which the footstep counts as unadjusted.
	AdjustedTolerance float64

	SolverIterations int
	SolverTolerance  float64

	// Planar regions older than this are ignored.
	PlanningCycle float64
	// Margin kept between an adjusted foothold and its region boundary.
	RegionMargin float64

	FinalTransferDuration float64

	// Below this desired ICP speed the orthogonal gain is used isotropically.
	MinimumVelocityForDirection float64
}

func DefaultParameters() Parameters {
	return Parameters{
		ControlDT: 0.004,
		Gains: Gains{
			KpParallel:        2.0,
			KpOrthogonal:      1.5,
			Ki:                0.0,
			IntegralLeakRatio: 0.97,
			MaxIntegralError:  0.05,
			FeedbackMaxRate:   10.0,
		},
		KeepInsidePolygon:        true,
		UseAngularMomentum:       false,
		UseStepAdjustment:        true,
		SafeAreaMargin:           0.01,
		AngularMomentumExpansion: 0.02,
		MaxAdjustmentX:           0.1,
		MaxAdjustmentY:           0.1,
		MaxAdjustment:            0.1,
		Weights: Weights{
			TouchdownError: 1.0,
			Feedback:       0.5,
			Footstep:       0.5,
		},
		MinimumTimeRemaining:        0.05,
		AdjustmentTrigger:           1e-3,
		AdjustedTolerance:           1e-6,
		SolverIterations:            1000,
		SolverTolerance:             1e-8,
		PlanningCycle:               0.5,
		RegionMargin:                0.05,
		FinalTransferDuration:       0.5,
		MinimumVelocityForDirection: 1e-3,
	}
}

func (p Parameters) Validate() error {
	if p.ControlDT <= 0 {
		return fmt.Errorf("control dt must be positive, got %f", p.ControlDT)
	}
	g := p.Gains
	if g.KpParallel < 0 || g.KpOrthogonal < 0 || g.Ki < 0 {
		return fmt.Errorf("icp gains must be non-negative")
	}
	if g.IntegralLeakRatio < 0 || g.IntegralLeakRatio > 1 {
		return fmt.Errorf("integral leak ratio must be in [0,1], got %f", g.IntegralLeakRatio)
	}
	if g.MaxIntegralError < 0 || g.FeedbackMaxRate <= 0 {
		return fmt.Errorf("max integral error must be >= 0 and feedback max rate > 0")
	}
	if p.MaxAdjustment < 0 || p.MaxAdjustmentX < 0 || p.MaxAdjustmentY < 0 {
		return fmt.Errorf("adjustment bounds must be non-negative")
	}
	w := p.Weights
	if w.TouchdownError <= 0 || w.Feedback < 0 || w.Footstep <= 0 {
		return fmt.Errorf("adjustment weights: touchdown and footstep must be positive")
	}
	if p.SolverIterations <= 0 || p.SolverTolerance <= 0 {
		return fmt.Errorf("solver iterations and tolerance must be positive")
	}
	if p.FinalTransferDuration < 0 {
		return fmt.Errorf("final transfer duration must be >= 0, got %f", p.FinalTransferDuration)
	}
	return nil
}

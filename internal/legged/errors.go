package legged

import (
	"errors"
	"fmt"
)

// Domain errors for balance control operations.
var (
	// ErrInvalidPlan indicates a footstep or timing that cannot be queued.
	ErrInvalidPlan = errors.New("legged: invalid footstep plan")

	// ErrInvalidDuration indicates a negative or non-finite duration.
	ErrInvalidDuration = errors.New("legged: invalid duration")

	// ErrDegradedMode indicates the controller froze its last valid output.
	ErrDegradedMode = errors.New("legged: controller in degraded mode")

	// ErrInfeasibleOptimization indicates the step adjustment solve did not converge.
	ErrInfeasibleOptimization = errors.New("legged: step adjustment infeasible")

	// ErrNonFiniteFeedback indicates NaN or Inf in the estimator feedback.
	ErrNonFiniteFeedback = errors.New("legged: non-finite estimator feedback")

	// ErrUnknownBody indicates a contactable body that was never registered.
	ErrUnknownBody = errors.New("legged: unknown contactable body")

	// ErrInvalidTransition indicates a contact transition not in the table.
	ErrInvalidTransition = errors.New("legged: invalid contact transition")
)

// PlanError wraps a plan rejection with the offending field.
type PlanError struct {
	Field   string
	Value   float64
	Wrapped error
}

func (e *PlanError) Error() string {
	return fmt.Sprintf("%v: %s=%g", e.Wrapped, e.Field, e.Value)
}

func (e *PlanError) Unwrap() error {
	return e.Wrapped
}

// Package icp implements the instantaneous-capture-point balance controller.
//
// Each control tick the [Controller] compares the measured capture point with
// a LIPM reference, computes a desired centroidal moment pivot (the ground
// reaction point) through a parallel/orthogonal PI law, and, when the support
// polygon alone cannot absorb the predicted error, solves a small QP that
// also moves the next footstep:
//
//	c := icp.NewController(icp.DefaultParameters(), tracker)
//	c.AddFootstepToPlan(step, timing)
//	c.InitializeForTransfer(t, legged.Right, omega0)
//	icpRef, icpVel, cmpRef := c.Reference(t)
//	c.Compute(t, icpRef, icpVel, cmpRef, com, comVelocity, omega0)
//	cmp := c.DesiredGroundReactionPoint()
//
// # Failure policy
//
// Nothing on the tick path returns an error. Empty plans mid-step and
// non-positive omega0 freeze the previous output and raise the degraded flag
// in [Controller.Status]; solver failures drop only the footstep adjustment.
package icp

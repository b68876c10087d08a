// Package control composes the balance components into one real-time
// controller driven once per tick.
//
// Each [Controller.Tick] drains the mailboxes, updates contacts and the
// support polygon, advances the walking phase, asks the ICP controller for a
// ground reaction point and converts it to a momentum rate command:
//
//	c, err := control.New(cfg, control.Collaborators{Sink: sink})
//	c.SubmitPlan(control.PlanRequest{Clear: true, Steps: steps})
//	for {
//		out := c.Tick(feedback)
//		// hand out.Momentum to inverse dynamics
//	}
//
// Submit* and RequestAbort may be called from any goroutine; Tick must be
// called from a single one.
package control

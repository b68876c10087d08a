// Package legged provides the core data model shared by the balance
// control modules of a legged robot.
//
// The package defines the value types exchanged on the control tick:
//
//   - [Limb]: side (biped) or quadrant (quadruped) tag
//   - [Footstep] and [FootstepTiming]: one queued step of the plan
//   - [CapturePointState]: estimator feedback reduced to the LIPM
//   - [Phase]: walking phase of the state machine
//   - [ContactState]: per-body ground-contact constraint
//   - [DesiredOutputs]: per-tick result of the balance controller
//
// # Thread Safety
//
// All types are plain values. They are produced and consumed on the single
// control goroutine; other goroutines hand them over through a mailbox.
package legged

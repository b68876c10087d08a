package control

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"github.com/san-kum/legbalance/internal/contact"
	"github.com/san-kum/legbalance/internal/geometry"
	"github.com/san-kum/legbalance/internal/legged"
	"github.com/san-kum/legbalance/internal/momentum"
)

// Mode tags what the controller is doing this tick.
type Mode uint8

const (
	// ModeHold balances in place with no footstep in progress.
	ModeHold Mode = iota
	// ModeWalking executes the queued plan.
	ModeWalking
	// ModeSafetyStop froze the outputs after invalid feedback.
	ModeSafetyStop
)

func (m Mode) String() string {
	switch m {
	case ModeHold:
		return "hold"
	case ModeWalking:
		return "walking"
	case ModeSafetyStop:
		return "safety_stop"
	}
	return "unknown"
}

type Feedback struct {
	Time        float64
	CoM         r3.Vector
	CoMVelocity r3.Vector

	// LoadBearing holds raw contact readings keyed by body name. Bodies
	// listed here are driven by sensing; the rest follow the walking phase.
	LoadBearing map[string]bool
	// FootPoses overrides the tracked world sole pose of bodies.
	FootPoses map[string]legged.Pose

	PerfectCoP    r2.Point
	HasPerfectCoP bool
}

func (f Feedback) finite() bool {
	for _, v := range []float64{
		f.Time,
		f.CoM.X, f.CoM.Y, f.CoM.Z,
		f.CoMVelocity.X, f.CoMVelocity.Y, f.CoMVelocity.Z,
		f.PerfectCoP.X, f.PerfectCoP.Y,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	for _, p := range f.FootPoses {
		if !p.IsFinite() {
			return false
		}
	}
	return true
}

// Output is the snapshot published every tick.
type Output struct {
	Time         float64
	Mode         Mode
	Phase        legged.Phase
	SwingLimb    legged.Limb
	CapturePoint legged.CapturePointState
	Desired      legged.DesiredOutputs
	Momentum     momentum.Command
	Status       legged.Status
	Support      []r2.Point
}

// PlanRequest is one edit of the footstep plan. Clear empties the queue
// before Steps are appended.
type PlanRequest struct {
	Clear                 bool
	Steps                 []legged.TimedFootstep
	FinalTransferDuration *float64
}

type RegionUpdate struct {
	Regions []geometry.PlanarRegion
	Time    float64
}

// LoadBearingRequest edits contacts on named bodies. States are applied
// first, then heel strikes, heel-off changes and parameter updates.
type LoadBearingRequest struct {
	States map[string]bool
	// HeelOff lifts a flat foot onto its toes (true) or sets it back down.
	HeelOff    map[string]bool
	HeelStrike []string
	Commands   map[string]contact.LoadBearingCommand
}

type SafetyStopper interface {
	RequestSafetyStop(reason error)
}

type Sink interface {
	Publish(out Output)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Output)

func (f SinkFunc) Publish(out Output) { f(out) }

package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/legbalance/internal/control"
	"github.com/san-kum/legbalance/internal/geometry"
	"github.com/san-kum/legbalance/internal/sim"
)

// TrackingError is the RMS distance between measured and desired capture
// point over the walking ticks.
type TrackingError struct {
	name   string
	errors []float64
}

func NewTrackingError() *TrackingError {
	return &TrackingError{name: "icp_rms"}
}

func (e *TrackingError) Name() string { return e.name }

func (e *TrackingError) Observe(s sim.Sample) {
	if s.Output.Mode != control.ModeWalking {
		return
	}
	d := s.Output.CapturePoint.CapturePoint.Sub(s.Output.Desired.DesiredCapturePoint)
	e.errors = append(e.errors, d.Norm())
}

func (e *TrackingError) Value() float64 {
	if len(e.errors) == 0 {
		return 0
	}
	return floats.Norm(e.errors, 2) / math.Sqrt(float64(len(e.errors)))
}

func (e *TrackingError) Reset() {
	e.errors = e.errors[:0]
}

// SupportViolations counts ticks whose commanded CMP lies outside the
// published support polygon by more than tolerance.
type SupportViolations struct {
	name      string
	tolerance float64
	count     int
}

func NewSupportViolations(tolerance float64) *SupportViolations {
	return &SupportViolations{name: "support_violations", tolerance: tolerance}
}

func (v *SupportViolations) Name() string { return v.name }

func (v *SupportViolations) Observe(s sim.Sample) {
	if s.Output.Mode != control.ModeWalking {
		return
	}
	support := geometry.NewConvexPolygon(s.Output.Support...)
	if support.IsEmpty() {
		return
	}
	if support.DistanceOutside(s.Output.Desired.GroundReactionPoint) > v.tolerance {
		v.count++
	}
}

func (v *SupportViolations) Value() float64 { return float64(v.count) }
func (v *SupportViolations) Reset()         { v.count = 0 }

// PeakCMPOffset is the largest distance between the commanded CMP and the
// desired capture point, a proxy for how hard feedback worked.
type PeakCMPOffset struct {
	name    string
	offsets []float64
}

func NewPeakCMPOffset() *PeakCMPOffset {
	return &PeakCMPOffset{name: "peak_cmp_offset"}
}

func (p *PeakCMPOffset) Name() string { return p.name }

func (p *PeakCMPOffset) Observe(s sim.Sample) {
	d := s.Output.Desired
	p.offsets = append(p.offsets, d.GroundReactionPoint.Sub(d.DesiredCapturePoint).Norm())
}

func (p *PeakCMPOffset) Value() float64 {
	if len(p.offsets) == 0 {
		return 0
	}
	return floats.Max(p.offsets)
}

func (p *PeakCMPOffset) Reset() { p.offsets = p.offsets[:0] }

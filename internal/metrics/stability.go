package metrics

import (
	"github.com/san-kum/legbalance/internal/geometry"
	"github.com/san-kum/legbalance/internal/sim"
)

// Stability is the fraction of ticks whose measured capture point stays
// within threshold of the support polygon.
type Stability struct {
	name       string
	threshold  float64
	violations int
	samples    int
}

func NewStability(threshold float64) *Stability {
	return &Stability{
		name:      "stability",
		threshold: threshold,
	}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) Observe(sample sim.Sample) {
	s.samples++
	support := geometry.NewConvexPolygon(sample.Output.Support...)
	if support.IsEmpty() {
		s.violations++
		return
	}
	if support.DistanceOutside(sample.Output.CapturePoint.CapturePoint) > s.threshold {
		s.violations++
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}

package tui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/legbalance/internal/sim"
)

const (
	width       = 70
	height      = 17
	historySize = 120
	clearScreen = "\033[2J\033[H"
	hideCursor  = "\033[?25l"
	showCursor  = "\033[?25h"
)

// LiveRenderer redraws the ground view on a terminal while a run is in
// progress. It is a sim.Observer and drops frames above frameRate.
type LiveRenderer struct {
	title     string
	frameRate int
	lastFrame time.Time
	view      *groundView
	errs      []float64
	out       io.Writer
}

func NewLiveRenderer(title string, frameRate int) *LiveRenderer {
	if frameRate < 1 {
		frameRate = 30
	}
	return &LiveRenderer{
		title:     title,
		frameRate: frameRate,
		view:      newGroundView(width, height),
		errs:      make([]float64, 0, historySize),
		out:       os.Stdout,
	}
}

func (r *LiveRenderer) OnStep(s sim.Sample) {
	r.errs = appendHistory(r.errs, trackingError(s))

	if time.Since(r.lastFrame) < time.Second/time.Duration(r.frameRate) {
		return
	}
	r.lastFrame = time.Now()
	r.view.draw(s.Output)
	fmt.Fprint(r.out, r.frame(s))
}

func (r *LiveRenderer) frame(s sim.Sample) string {
	out := s.Output
	var b strings.Builder
	b.WriteString(clearScreen)
	b.WriteString(fmt.Sprintf("  %s  t=%.2fs  %s  %s", r.title, s.Time, out.Mode, out.Phase))
	if out.SwingLimb.String() != "none" {
		b.WriteString("  swing=" + out.SwingLimb.String())
	}
	b.WriteString("\n  " + strings.Repeat("-", width) + "\n")
	for _, row := range r.view.rows() {
		b.WriteString("  " + row + "\n")
	}
	b.WriteString("  " + strings.Repeat("-", width) + "\n")

	icp := out.CapturePoint.CapturePoint
	cmp := out.Desired.GroundReactionPoint
	b.WriteString(fmt.Sprintf("  icp=(%.3f, %.3f)  cmp=(%.3f, %.3f)", icp.X, icp.Y, cmp.X, cmp.Y))
	if out.Desired.FootstepWasAdjusted {
		b.WriteString("  ADJUSTED")
	}
	if out.Status.Degraded {
		b.WriteString("  DEGRADED")
	}
	b.WriteString("\n")

	if len(r.errs) > 1 {
		b.WriteString(asciigraph.Plot(r.errs,
			asciigraph.Height(6),
			asciigraph.Width(width-10),
			asciigraph.Offset(4),
			asciigraph.Caption("icp error (m)")))
		b.WriteString("\n")
	}
	return b.String()
}

func (r *LiveRenderer) Start() { fmt.Fprint(r.out, hideCursor) }
func (r *LiveRenderer) Stop()  { fmt.Fprint(r.out, showCursor) }

func trackingError(s sim.Sample) float64 {
	return s.Output.CapturePoint.CapturePoint.Sub(s.Output.Desired.DesiredCapturePoint).Norm()
}

func appendHistory(h []float64, v float64) []float64 {
	h = append(h, v)
	if len(h) > historySize {
		h = h[1:]
	}
	return h
}

package tui

import (
	"math"
	"strings"

	"github.com/golang/geo/r2"

	"github.com/san-kum/legbalance/internal/control"
)

// Terminal cells are roughly twice as tall as they are wide.
const (
	cellsPerMeterX = 40.0
	cellsPerMeterY = 20.0
	trailLength    = 60
)

// groundView is a top-down character canvas of the ground plane. Forward
// runs left to right and the view follows the CoM along x.
type groundView struct {
	w, h  int
	cells [][]rune
	trail []r2.Point
}

func newGroundView(w, h int) *groundView {
	g := &groundView{w: w, h: h, cells: make([][]rune, h)}
	for i := range g.cells {
		g.cells[i] = make([]rune, w)
	}
	g.clear()
	return g
}

func (g *groundView) clear() {
	for y := range g.cells {
		for x := range g.cells[y] {
			g.cells[y][x] = ' '
		}
	}
}

func (g *groundView) reset() {
	g.trail = g.trail[:0]
	g.clear()
}

func (g *groundView) set(x, y int, c rune) {
	if x >= 0 && x < g.w && y >= 0 && y < g.h {
		g.cells[y][x] = c
	}
}

func (g *groundView) line(x1, y1, x2, y2 int, c rune) {
	dx := intAbs(x2 - x1)
	dy := intAbs(y2 - y1)
	sx, sy := 1, 1
	if x1 > x2 {
		sx = -1
	}
	if y1 > y2 {
		sy = -1
	}
	err := dx - dy
	for {
		g.set(x1, y1, c)
		if x1 == x2 && y1 == y2 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

// cell maps a world point to canvas coordinates around origin. Positive y
// (left of the robot) is drawn upwards.
func (g *groundView) cell(p, origin r2.Point) (int, int) {
	x := g.w/2 + int(math.Round((p.X-origin.X)*cellsPerMeterX))
	y := g.h/2 - int(math.Round((p.Y-origin.Y)*cellsPerMeterY))
	return x, y
}

func (g *groundView) polygon(pts []r2.Point, origin r2.Point) {
	if len(pts) == 0 {
		return
	}
	for i := range pts {
		x1, y1 := g.cell(pts[i], origin)
		x2, y2 := g.cell(pts[(i+1)%len(pts)], origin)
		g.line(x1, y1, x2, y2, '.')
	}
	for _, p := range pts {
		x, y := g.cell(p, origin)
		g.set(x, y, '#')
	}
}

// draw renders one controller snapshot: the support polygon, the capture
// point trail, and the markers for CoM (@), desired ICP (o), ICP (x) and
// CMP (+).
func (g *groundView) draw(out control.Output) {
	g.clear()
	com := out.CapturePoint.ComXY()
	origin := r2.Point{X: com.X}

	g.trail = append(g.trail, out.CapturePoint.CapturePoint)
	if len(g.trail) > trailLength {
		g.trail = g.trail[1:]
	}

	for x := 0; x < g.w; x++ {
		g.set(x, g.h/2, '·')
	}
	g.polygon(out.Support, origin)
	if step := out.Desired.AdjustedFootstep; step != nil {
		x, y := g.cell(step.Goal.XY(), origin)
		g.set(x, y, 'F')
	}
	for _, p := range g.trail {
		x, y := g.cell(p, origin)
		g.set(x, y, '˙')
	}

	marks := []struct {
		p r2.Point
		c rune
	}{
		{com, '@'},
		{out.Desired.DesiredCapturePoint, 'o'},
		{out.CapturePoint.CapturePoint, 'x'},
		{out.Desired.GroundReactionPoint, '+'},
	}
	for _, mk := range marks {
		x, y := g.cell(mk.p, origin)
		g.set(x, y, mk.c)
	}
}

func (g *groundView) rows() []string {
	out := make([]string, len(g.cells))
	for i, row := range g.cells {
		out[i] = string(row)
	}
	return out
}

func (g *groundView) String() string {
	return strings.Join(g.rows(), "\n")
}

func intAbs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Package export renders stored runs as plots.
package export

import (
	"fmt"
	"image/color"
	"path/filepath"

	"github.com/golang/geo/r2"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/san-kum/legbalance/internal/storage"
)

var (
	colorICP     = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
	colorDesired = color.RGBA{R: 0x7f, G: 0x7f, B: 0x7f, A: 0xff}
	colorCMP     = color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff}
	colorCoM     = color.RGBA{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff}
	colorAdjust  = color.RGBA{R: 0xff, G: 0x7f, B: 0x0e, A: 0xff}
)

type series struct {
	label string
	color color.Color
	dash  bool
	pts   plotter.XYs
}

func addLines(p *plot.Plot, all ...series) error {
	for _, s := range all {
		if len(s.pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(s.pts)
		if err != nil {
			return fmt.Errorf("%s: %w", s.label, err)
		}
		line.Color = s.color
		line.Width = vg.Points(1)
		if s.dash {
			line.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		}
		p.Add(line)
		p.Legend.Add(s.label, line)
	}
	return nil
}

func xy(rows []storage.Row, pick func(storage.Row) r2.Point) plotter.XYs {
	pts := make(plotter.XYs, len(rows))
	for i, r := range rows {
		p := pick(r)
		pts[i] = plotter.XY{X: p.X, Y: p.Y}
	}
	return pts
}

// GroundTrack draws the capture point, its reference, the CMP and the CoM
// in the ground plane. Ticks with an adjusted footstep are marked.
func GroundTrack(title string, rows []storage.Row) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "x (m)"
	p.Y.Label.Text = "y (m)"
	p.Legend.Top = true

	err := addLines(p,
		series{"desired icp", colorDesired, true, xy(rows, func(r storage.Row) r2.Point { return r.DesiredICP })},
		series{"icp", colorICP, false, xy(rows, func(r storage.Row) r2.Point { return r.ICP })},
		series{"cmp", colorCMP, false, xy(rows, func(r storage.Row) r2.Point { return r.CMP })},
		series{"com", colorCoM, false, xy(rows, func(r storage.Row) r2.Point { return r.CoM })},
	)
	if err != nil {
		return nil, err
	}

	adjusted := make(plotter.XYs, 0)
	for _, r := range rows {
		if r.Adjusted {
			adjusted = append(adjusted, plotter.XY{X: r.CMP.X, Y: r.CMP.Y})
		}
	}
	if len(adjusted) > 0 {
		sc, err := plotter.NewScatter(adjusted)
		if err != nil {
			return nil, err
		}
		sc.GlyphStyle.Color = colorAdjust
		sc.GlyphStyle.Radius = vg.Points(1.5)
		p.Add(sc)
		p.Legend.Add("adjusted", sc)
	}
	p.Add(plotter.NewGrid())
	return p, nil
}

// Axis selects one coordinate of a point.
type Axis int

const (
	AxisX Axis = iota
	AxisY
)

func (a Axis) String() string {
	if a == AxisY {
		return "y"
	}
	return "x"
}

func (a Axis) of(p r2.Point) float64 {
	if a == AxisY {
		return p.Y
	}
	return p.X
}

// TimeSeries plots one axis of the capture point, its reference and the
// CMP against time.
func TimeSeries(title string, rows []storage.Row, axis Axis) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s (%s)", title, axis)
	p.X.Label.Text = "t (s)"
	p.Y.Label.Text = axis.String() + " (m)"

	over := func(pick func(storage.Row) r2.Point) plotter.XYs {
		pts := make(plotter.XYs, len(rows))
		for i, r := range rows {
			pts[i] = plotter.XY{X: r.Time, Y: axis.of(pick(r))}
		}
		return pts
	}
	err := addLines(p,
		series{"desired icp", colorDesired, true, over(func(r storage.Row) r2.Point { return r.DesiredICP })},
		series{"icp", colorICP, false, over(func(r storage.Row) r2.Point { return r.ICP })},
		series{"cmp", colorCMP, false, over(func(r storage.Row) r2.Point { return r.CMP })},
	)
	if err != nil {
		return nil, err
	}
	p.Add(plotter.NewGrid())
	return p, nil
}

// SavePlots writes the ground track and both time series into dir. format
// is any extension gonum/plot can encode, e.g. "png" or "svg".
func SavePlots(dir, name, format string, rows []storage.Row) ([]string, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("no samples to plot")
	}

	track, err := GroundTrack(name, rows)
	if err != nil {
		return nil, err
	}
	plots := []struct {
		file string
		p    *plot.Plot
		w, h vg.Length
	}{
		{fmt.Sprintf("%s_track.%s", name, format), track, 8 * vg.Inch, 6 * vg.Inch},
	}
	for _, axis := range []Axis{AxisX, AxisY} {
		ts, err := TimeSeries(name, rows, axis)
		if err != nil {
			return nil, err
		}
		plots = append(plots, struct {
			file string
			p    *plot.Plot
			w, h vg.Length
		}{fmt.Sprintf("%s_%s.%s", name, axis, format), ts, 10 * vg.Inch, 4 * vg.Inch})
	}

	written := make([]string, 0, len(plots))
	for _, pl := range plots {
		path := filepath.Join(dir, pl.file)
		if err := pl.p.Save(pl.w, pl.h, path); err != nil {
			return written, fmt.Errorf("save %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}

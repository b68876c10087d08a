// Package geometry implements the planar convex-polygon algebra used for
// support polygons, safe areas and terrain footholds.
package geometry

import (
	"math"
	"sort"

	"github.com/golang/geo/r2"
)

// Epsilon is the containment tolerance in metres.
const Epsilon = 1e-9

// ConvexPolygon is a convex hull stored counter-clockwise. One vertex is a
// point, two vertices are a segment.
type ConvexPolygon struct {
	vertices []r2.Point
}

// NewConvexPolygon returns the convex hull of the given points. Duplicate and
// collinear points are dropped.
func NewConvexPolygon(points ...r2.Point) ConvexPolygon {
	if len(points) == 0 {
		return ConvexPolygon{}
	}
	pts := append([]r2.Point(nil), points...)
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].X != pts[j].X {
			return pts[i].X < pts[j].X
		}
		return pts[i].Y < pts[j].Y
	})

	uniq := pts[:1]
	for _, p := range pts[1:] {
		if !approxEqual(p, uniq[len(uniq)-1]) {
			uniq = append(uniq, p)
		}
	}
	if len(uniq) < 3 {
		return ConvexPolygon{vertices: append([]r2.Point(nil), uniq...)}
	}

	hull := make([]r2.Point, 0, 2*len(uniq))
	for _, p := range uniq {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= Epsilon {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(uniq) - 2; i >= 0; i-- {
		p := uniq[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= Epsilon {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	hull = hull[:len(hull)-1]

	if len(hull) < 2 {
		// all points collinear: keep the extreme pair
		return ConvexPolygon{vertices: []r2.Point{uniq[0], uniq[len(uniq)-1]}}
	}
	return ConvexPolygon{vertices: hull}
}

// Combine returns the hull of all vertices of the given polygons.
func Combine(polys ...ConvexPolygon) ConvexPolygon {
	var pts []r2.Point
	for _, p := range polys {
		pts = append(pts, p.vertices...)
	}
	return NewConvexPolygon(pts...)
}

func (c ConvexPolygon) IsEmpty() bool { return len(c.vertices) == 0 }
func (c ConvexPolygon) Len() int      { return len(c.vertices) }

func (c ConvexPolygon) Vertex(i int) r2.Point {
	return c.vertices[i%len(c.vertices)]
}

func (c ConvexPolygon) Vertices() []r2.Point {
	return append([]r2.Point(nil), c.vertices...)
}

func (c ConvexPolygon) Area() float64 {
	if len(c.vertices) < 3 {
		return 0
	}
	sum := 0.0
	for i := range c.vertices {
		a, b := c.vertices[i], c.Vertex(i+1)
		sum += a.Cross(b)
	}
	return 0.5 * sum
}

// Centroid returns the area centroid, or the vertex mean for degenerate
// polygons.
func (c ConvexPolygon) Centroid() r2.Point {
	n := len(c.vertices)
	if n == 0 {
		return r2.Point{}
	}
	area := c.Area()
	if n < 3 || math.Abs(area) < Epsilon {
		var sum r2.Point
		for _, v := range c.vertices {
			sum = sum.Add(v)
		}
		return sum.Mul(1 / float64(n))
	}
	var cx, cy float64
	for i := range c.vertices {
		a, b := c.vertices[i], c.Vertex(i+1)
		w := a.Cross(b)
		cx += (a.X + b.X) * w
		cy += (a.Y + b.Y) * w
	}
	return r2.Point{X: cx / (6 * area), Y: cy / (6 * area)}
}

// Contains reports whether p is inside or on the boundary.
func (c ConvexPolygon) Contains(p r2.Point) bool {
	switch len(c.vertices) {
	case 0:
		return false
	case 1, 2:
		return c.ClosestPoint(p).Sub(p).Norm() <= Epsilon
	}
	for i := range c.vertices {
		if cross(c.vertices[i], c.Vertex(i+1), p) < -Epsilon {
			return false
		}
	}
	return true
}

// ClosestPoint returns the orthogonal projection of p onto the polygon.
func (c ConvexPolygon) ClosestPoint(p r2.Point) r2.Point {
	switch len(c.vertices) {
	case 0:
		return p
	case 1:
		return c.vertices[0]
	case 2:
		return closestOnSegment(c.vertices[0], c.vertices[1], p)
	}
	if c.Contains(p) {
		return p
	}
	best := c.vertices[0]
	bestDist := math.Inf(1)
	for i := range c.vertices {
		q := closestOnSegment(c.vertices[i], c.Vertex(i+1), p)
		if d := q.Sub(p).Norm(); d < bestDist {
			best, bestDist = q, d
		}
	}
	return best
}

// DistanceOutside is zero for contained points and the distance to the
// polygon otherwise.
func (c ConvexPolygon) DistanceOutside(p r2.Point) float64 {
	if c.IsEmpty() || c.Contains(p) {
		return 0
	}
	return c.ClosestPoint(p).Sub(p).Norm()
}

// ProjectTowards moves an outside point p along the segment toward target
// until it reaches the boundary. When the segment misses the polygon the
// orthogonal projection is returned.
func (c ConvexPolygon) ProjectTowards(p, target r2.Point) r2.Point {
	if c.IsEmpty() || c.Contains(p) {
		return p
	}
	if len(c.vertices) < 3 {
		return c.ClosestPoint(p)
	}
	bestT := math.Inf(1)
	for i := range c.vertices {
		if t, ok := segmentIntersection(p, target, c.vertices[i], c.Vertex(i+1)); ok && t < bestT {
			bestT = t
		}
	}
	if math.IsInf(bestT, 1) {
		return c.ClosestPoint(p)
	}
	q := p.Add(target.Sub(p).Mul(bestT))
	if !c.Contains(q) {
		return c.ClosestPoint(q)
	}
	return q
}

// Translate shifts every vertex by d.
func (c ConvexPolygon) Translate(d r2.Point) ConvexPolygon {
	out := make([]r2.Point, len(c.vertices))
	for i, v := range c.vertices {
		out[i] = v.Add(d)
	}
	return ConvexPolygon{vertices: out}
}

func (c ConvexPolygon) BoundingBox() r2.Rect {
	if c.IsEmpty() {
		return r2.EmptyRect()
	}
	return r2.RectFromPoints(c.vertices...)
}

// Shrink offsets every edge inward by margin. A polygon too small for the
// margin collapses to its centroid. Negative margins expand.
func (c ConvexPolygon) Shrink(margin float64) ConvexPolygon {
	if c.IsEmpty() || margin == 0 {
		return c
	}
	if margin < 0 {
		return c.Expand(-margin)
	}
	if len(c.vertices) < 3 {
		return NewConvexPolygon(c.Centroid())
	}
	out := c.vertices
	for i := range c.vertices {
		a, b := c.vertices[i], c.Vertex(i+1)
		n := b.Sub(a).Ortho().Normalize()
		out = clipHalfPlane(out, a.Add(n.Mul(margin)), b.Add(n.Mul(margin)))
		if len(out) == 0 {
			return NewConvexPolygon(c.Centroid())
		}
	}
	return NewConvexPolygon(out...)
}

// Expand grows the polygon outward by margin (Minkowski sum with an
// octagon inscribed in the disc of that radius).
func (c ConvexPolygon) Expand(margin float64) ConvexPolygon {
	if c.IsEmpty() || margin <= 0 {
		return c
	}
	pts := make([]r2.Point, 0, 8*len(c.vertices))
	for _, v := range c.vertices {
		for k := 0; k < 8; k++ {
			s, co := math.Sincos(float64(k) * math.Pi / 4)
			pts = append(pts, v.Add(r2.Point{X: margin * co, Y: margin * s}))
		}
	}
	return NewConvexPolygon(pts...)
}

// Intersect clips c against other. Degenerate operands keep only the points
// contained in the other polygon.
func (c ConvexPolygon) Intersect(other ConvexPolygon) ConvexPolygon {
	if c.IsEmpty() || other.IsEmpty() {
		return ConvexPolygon{}
	}
	if len(other.vertices) < 3 || len(c.vertices) < 3 {
		var kept []r2.Point
		for _, v := range c.vertices {
			if other.Contains(v) {
				kept = append(kept, v)
			}
		}
		for _, v := range other.vertices {
			if c.Contains(v) {
				kept = append(kept, v)
			}
		}
		return NewConvexPolygon(kept...)
	}
	out := c.vertices
	for i := range other.vertices {
		out = clipHalfPlane(out, other.vertices[i], other.Vertex(i+1))
		if len(out) == 0 {
			return ConvexPolygon{}
		}
	}
	return NewConvexPolygon(out...)
}

// clipHalfPlane keeps the part of poly on the left of the directed line a->b.
func clipHalfPlane(poly []r2.Point, a, b r2.Point) []r2.Point {
	var out []r2.Point
	n := len(poly)
	for i := 0; i < n; i++ {
		cur, next := poly[i], poly[(i+1)%n]
		dc, dn := cross(a, b, cur), cross(a, b, next)
		if dc >= -Epsilon {
			out = append(out, cur)
		}
		if (dc >= -Epsilon) != (dn >= -Epsilon) {
			t := dc / (dc - dn)
			out = append(out, cur.Add(next.Sub(cur).Mul(t)))
		}
	}
	return out
}

// cross is the z component of (b-a) x (p-a); positive when p is left of a->b.
func cross(a, b, p r2.Point) float64 {
	return b.Sub(a).Cross(p.Sub(a))
}

func closestOnSegment(a, b, p r2.Point) r2.Point {
	ab := b.Sub(a)
	l2 := ab.Dot(ab)
	if l2 < Epsilon*Epsilon {
		return a
	}
	t := p.Sub(a).Dot(ab) / l2
	t = math.Max(0, math.Min(1, t))
	return a.Add(ab.Mul(t))
}

// segmentIntersection returns the parameter along p->q where it crosses a->b.
func segmentIntersection(p, q, a, b r2.Point) (float64, bool) {
	r := q.Sub(p)
	s := b.Sub(a)
	denom := r.Cross(s)
	if math.Abs(denom) < Epsilon*Epsilon {
		return 0, false
	}
	ap := a.Sub(p)
	t := ap.Cross(s) / denom
	u := ap.Cross(r) / denom
	if t < -Epsilon || t > 1+Epsilon || u < -Epsilon || u > 1+Epsilon {
		return 0, false
	}
	return math.Max(0, t), true
}

func approxEqual(a, b r2.Point) bool {
	return math.Abs(a.X-b.X) <= Epsilon && math.Abs(a.Y-b.Y) <= Epsilon
}

package geometry

import "github.com/golang/geo/r2"

// PlanarRegion is a flat patch of terrain reported by perception. Polygon is
// its XY footprint in world frame; Timestamp is in controller time.
type PlanarRegion struct {
	ID        int
	Polygon   ConvexPolygon
	Height    float64
	Timestamp float64
}

// RegionContaining returns the first region whose footprint contains p.
func RegionContaining(regions []PlanarRegion, p r2.Point) (PlanarRegion, bool) {
	for _, r := range regions {
		if r.Polygon.Contains(p) {
			return r, true
		}
	}
	return PlanarRegion{}, false
}

// RectPolygon returns the rectangle as a polygon.
func RectPolygon(r r2.Rect) ConvexPolygon {
	if r.IsEmpty() {
		return ConvexPolygon{}
	}
	v := r.Vertices()
	return NewConvexPolygon(v[:]...)
}

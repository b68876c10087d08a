package icp

import (
	"github.com/golang/geo/r2"

	"github.com/san-kum/legbalance/internal/geometry"
)

// terrain holds the latest planar regions from perception.
type terrain struct {
	regions []geometry.PlanarRegion
	current []geometry.PlanarRegion
}

func (tr *terrain) submit(regions []geometry.PlanarRegion) {
	tr.regions = append(tr.regions[:0], regions...)
}

// refresh keeps the regions observed no more than maxAge before t. It
// reports whether any are left.
func (tr *terrain) refresh(t, maxAge float64) bool {
	tr.current = tr.current[:0]
	for _, r := range tr.regions {
		if t-r.Timestamp <= maxAge {
			tr.current = append(tr.current, r)
		}
	}
	return len(tr.current) > 0
}

// clipArea intersects area with the region under p. The area is returned
// unchanged when no region covers p or the intersection is empty.
func (tr *terrain) clipArea(area geometry.ConvexPolygon, p r2.Point) geometry.ConvexPolygon {
	region, ok := geometry.RegionContaining(tr.current, p)
	if !ok {
		return area
	}
	clipped := area.Intersect(region.Polygon)
	if clipped.IsEmpty() {
		return area
	}
	return clipped
}

// clipBox limits offsets from goal so the moved foothold stays margin inside
// the region holding goal. A box that no longer contains the zero offset
// collapses to it.
func (tr *terrain) clipBox(box r2.Rect, goal r2.Point, margin float64) r2.Rect {
	region, ok := geometry.RegionContaining(tr.current, goal)
	if !ok {
		return box
	}
	bounds := region.Polygon.Shrink(margin).BoundingBox()
	if bounds.IsEmpty() {
		return r2.RectFromPoints(r2.Point{})
	}
	offsets := r2.RectFromPoints(bounds.Lo().Sub(goal), bounds.Hi().Sub(goal))
	clipped := box.Intersection(offsets)
	if clipped.IsEmpty() || !clipped.ContainsPoint(r2.Point{}) {
		return r2.RectFromPoints(r2.Point{})
	}
	return clipped
}

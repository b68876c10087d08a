// Package support derives per-foot and combined support polygons from the
// current contact state.
package support

import (
	"github.com/golang/geo/r2"

	"github.com/san-kum/legbalance/internal/contact"
	"github.com/san-kum/legbalance/internal/geometry"
	"github.com/san-kum/legbalance/internal/legged"
)

// ContactReader is satisfied by *contact.Manager.
type ContactReader interface {
	Each(fn func(b contact.Body, s legged.ContactState))
}

// PoseProvider returns the world sole pose of a body.
type PoseProvider interface {
	BodyPose(name string) (legged.Pose, bool)
}

// Poses is a PoseProvider backed by a map.
type Poses map[string]legged.Pose

func (p Poses) BodyPose(name string) (legged.Pose, bool) {
	pose, ok := p[name]
	return pose, ok
}

type Tracker struct {
	byLimb   map[legged.Limb]geometry.ConvexPolygon
	bodies   []bodyPolygon
	combined geometry.ConvexPolygon
}

type bodyPolygon struct {
	limb    legged.Limb
	polygon geometry.ConvexPolygon
}

func NewTracker() *Tracker {
	return &Tracker{
		byLimb: make(map[legged.Limb]geometry.ConvexPolygon),
	}
}

// Update rebuilds every polygon. Bodies without a pose are skipped.
func (t *Tracker) Update(contacts ContactReader, poses PoseProvider) {
	for k := range t.byLimb {
		delete(t.byLimb, k)
	}
	t.bodies = t.bodies[:0]

	var all []r2.Point
	contacts.Each(func(b contact.Body, s legged.ContactState) {
		if !s.Constraint.Supporting() || len(s.Points) == 0 {
			return
		}
		pose, ok := poses.BodyPose(b.Name)
		if !ok {
			return
		}
		world := make([]r2.Point, len(s.Points))
		for i, p := range s.Points {
			world[i] = pose.Transform(p)
		}
		poly := geometry.NewConvexPolygon(world...)
		t.bodies = append(t.bodies, bodyPolygon{limb: b.Limb, polygon: poly})
		if b.Limb != legged.NoLimb {
			t.byLimb[b.Limb] = poly
		}
		all = append(all, world...)
	})
	t.combined = geometry.NewConvexPolygon(all...)
}

// Combined is the hull of every supporting contact point.
func (t *Tracker) Combined() geometry.ConvexPolygon {
	return t.combined
}

// FootPolygon returns the polygon of one loaded foot.
func (t *Tracker) FootPolygon(limb legged.Limb) (geometry.ConvexPolygon, bool) {
	p, ok := t.byLimb[limb]
	return p, ok
}

func (t *Tracker) InContact(limb legged.Limb) bool {
	_, ok := t.byLimb[limb]
	return ok
}

// PolygonExcluding is the hull of every supporting body except the limb,
// i.e. the stance polygon while that limb swings.
func (t *Tracker) PolygonExcluding(limb legged.Limb) geometry.ConvexPolygon {
	polys := make([]geometry.ConvexPolygon, 0, len(t.bodies))
	for _, b := range t.bodies {
		if b.limb == limb && limb != legged.NoLimb {
			continue
		}
		polys = append(polys, b.polygon)
	}
	return geometry.Combine(polys...)
}

// LoadedLimbs lists the limbs currently in contact.
func (t *Tracker) LoadedLimbs() []legged.Limb {
	out := make([]legged.Limb, 0, len(t.byLimb))
	for _, b := range t.bodies {
		if b.limb != legged.NoLimb {
			out = append(out, b.limb)
		}
	}
	return out
}

// Package contact manages the ground-contact constraint of every
// contactable body (feet, hands, thighs) and publishes contact commands to
// the inverse-dynamics collaborator.
package contact

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/sirupsen/logrus"

	"github.com/san-kum/legbalance/internal/legged"
)

var log = logrus.WithFields(logrus.Fields{
	"pkg": "contact",
})

const (
	DefaultFriction = 0.8

	// Points within this distance of the front or rear edge of the footprint
	// form the toe and heel contact lines.
	edgeTolerance = 1e-3
)

// Body is a contactable rigid body. Footprint holds its full-contact points
// in the sole frame.
type Body struct {
	Name      string
	Limb      legged.Limb
	Footprint []r2.Point
	Friction  float64
	Normal    r3.Vector
}

// ContactCommand is what the inverse-dynamics solver receives on every
// contact transition.
type ContactCommand struct {
	Body       string
	Limb       legged.Limb
	Constraint legged.ConstraintType
	Points     []r2.Point
	Normal     r3.Vector
	Friction   float64
}

type ContactCommandSink interface {
	SubmitContactCommand(cmd ContactCommand)
}

// SingularityEscaper is the end-effector controller coupled to a body. It is
// asked to move away from a degenerate configuration before contact is
// asserted on a body that had none.
type SingularityEscaper interface {
	RequestSingularityEscape(body string)
}

// LoadBearingCommand updates the contact parameters of a body.
type LoadBearingCommand struct {
	Friction float64
	Normal   r3.Vector
}

type Event uint8

const (
	EventLoad Event = iota
	EventUnload
	EventHeelOff
	EventHeelDown
	EventHeelStrike
)

func (e Event) String() string {
	switch e {
	case EventLoad:
		return "load"
	case EventUnload:
		return "unload"
	case EventHeelOff:
		return "heel_off"
	case EventHeelDown:
		return "heel_down"
	case EventHeelStrike:
		return "heel_strike"
	}
	return "unknown"
}

type transitionKey struct {
	from  legged.ConstraintType
	event Event
}

var transitions = map[transitionKey]legged.ConstraintType{
	{legged.Unconstrained, EventLoad}:       legged.Full,
	{legged.Unconstrained, EventHeelStrike}: legged.Heel,
	{legged.Full, EventUnload}:              legged.Unconstrained,
	{legged.Full, EventHeelOff}:             legged.Toes,
	{legged.Toes, EventHeelDown}:            legged.Full,
	{legged.Toes, EventUnload}:              legged.Unconstrained,
	{legged.Heel, EventLoad}:                legged.Full,
	{legged.Heel, EventUnload}:              legged.Unconstrained,
}

type bodyState struct {
	body  Body
	state legged.ContactState
	toes  []r2.Point
	heel  []r2.Point
}

type Manager struct {
	bodies  []*bodyState
	byName  map[string]*bodyState
	escaper SingularityEscaper
	sink    ContactCommandSink
}

// NewManager registers the bodies, all starting unconstrained. Either
// collaborator may be nil.
func NewManager(bodies []Body, escaper SingularityEscaper, sink ContactCommandSink) (*Manager, error) {
	m := &Manager{
		bodies:  make([]*bodyState, 0, len(bodies)),
		byName:  make(map[string]*bodyState, len(bodies)),
		escaper: escaper,
		sink:    sink,
	}
	for _, b := range bodies {
		if b.Name == "" {
			return nil, fmt.Errorf("contact: body without name")
		}
		if _, dup := m.byName[b.Name]; dup {
			return nil, fmt.Errorf("contact: duplicate body %q", b.Name)
		}
		if len(b.Footprint) == 0 {
			return nil, fmt.Errorf("contact: body %q has no footprint", b.Name)
		}
		if b.Friction <= 0 {
			b.Friction = DefaultFriction
		}
		if b.Normal == (r3.Vector{}) {
			b.Normal = r3.Vector{Z: 1}
		}
		bs := &bodyState{
			body: b,
			state: legged.ContactState{
				Constraint: legged.Unconstrained,
				Friction:   b.Friction,
				Normal:     b.Normal,
			},
		}
		bs.toes, bs.heel = edgeLines(b.Footprint)
		m.bodies = append(m.bodies, bs)
		m.byName[b.Name] = bs
	}
	return m, nil
}

// SetLoadBearing asserts or releases ground contact on the body.
// Requests matching the current state are no-ops.
func (m *Manager) SetLoadBearing(name string, loaded bool) error {
	bs, ok := m.byName[name]
	if !ok {
		return fmt.Errorf("%w: %s", legged.ErrUnknownBody, name)
	}
	switch {
	case loaded && bs.state.Constraint.Supporting():
		return nil
	case !loaded && bs.state.Constraint == legged.Unconstrained:
		return nil
	case loaded:
		return m.apply(bs, EventLoad)
	default:
		return m.apply(bs, EventUnload)
	}
}

// SetHeelOff moves a flat foot onto its toes, or back down.
func (m *Manager) SetHeelOff(name string, off bool) error {
	bs, ok := m.byName[name]
	if !ok {
		return fmt.Errorf("%w: %s", legged.ErrUnknownBody, name)
	}
	if off {
		if bs.state.Constraint == legged.Toes {
			return nil
		}
		return m.apply(bs, EventHeelOff)
	}
	if bs.state.Constraint == legged.Full {
		return nil
	}
	return m.apply(bs, EventHeelDown)
}

// SetHeelStrike lands an airborne foot on its heel line.
func (m *Manager) SetHeelStrike(name string) error {
	bs, ok := m.byName[name]
	if !ok {
		return fmt.Errorf("%w: %s", legged.ErrUnknownBody, name)
	}
	if bs.state.Constraint == legged.Heel {
		return nil
	}
	return m.apply(bs, EventHeelStrike)
}

// HandleLoadBearingCommand updates friction and normal, republishing when
// the body is in contact.
func (m *Manager) HandleLoadBearingCommand(name string, cmd LoadBearingCommand) error {
	bs, ok := m.byName[name]
	if !ok {
		return fmt.Errorf("%w: %s", legged.ErrUnknownBody, name)
	}
	if cmd.Friction <= 0 || math.IsNaN(cmd.Friction) || math.IsInf(cmd.Friction, 0) {
		return fmt.Errorf("contact: invalid friction %g for %s", cmd.Friction, name)
	}
	n := cmd.Normal
	if n.Norm() == 0 {
		return fmt.Errorf("contact: zero contact normal for %s", name)
	}
	bs.state.Friction = cmd.Friction
	bs.state.Normal = n.Normalize()
	if bs.state.Constraint.Supporting() {
		m.publish(bs)
	}
	return nil
}

func (m *Manager) apply(bs *bodyState, ev Event) error {
	from := bs.state.Constraint
	to, ok := transitions[transitionKey{from: from, event: ev}]
	if !ok {
		log.Warnf("rejected %s on %s in %s", ev, bs.body.Name, from)
		return fmt.Errorf("%w: %s on %s in %s", legged.ErrInvalidTransition, ev, bs.body.Name, from)
	}

	points := m.pointsFor(bs, to)
	if len(bs.state.Points) == 0 && len(points) > 0 && m.escaper != nil {
		m.escaper.RequestSingularityEscape(bs.body.Name)
	}

	bs.state.Constraint = to
	bs.state.Points = points
	log.Debugf("%s: %s -> %s (%s)", bs.body.Name, from, to, ev)
	m.publish(bs)
	return nil
}

func (m *Manager) pointsFor(bs *bodyState, c legged.ConstraintType) []r2.Point {
	switch c {
	case legged.Full:
		return append([]r2.Point(nil), bs.body.Footprint...)
	case legged.Toes:
		return append([]r2.Point(nil), bs.toes...)
	case legged.Heel:
		return append([]r2.Point(nil), bs.heel...)
	}
	return nil
}

func (m *Manager) publish(bs *bodyState) {
	if m.sink == nil {
		return
	}
	m.sink.SubmitContactCommand(ContactCommand{
		Body:       bs.body.Name,
		Limb:       bs.body.Limb,
		Constraint: bs.state.Constraint,
		Points:     append([]r2.Point(nil), bs.state.Points...),
		Normal:     bs.state.Normal,
		Friction:   bs.state.Friction,
	})
}

// State returns a copy of the body's contact state.
func (m *Manager) State(name string) (legged.ContactState, bool) {
	bs, ok := m.byName[name]
	if !ok {
		return legged.ContactState{}, false
	}
	return bs.state.Clone(), true
}

func (m *Manager) InContact(name string) bool {
	bs, ok := m.byName[name]
	return ok && bs.state.Constraint.Supporting()
}

// BodyForLimb returns the foot body tagged with the limb.
func (m *Manager) BodyForLimb(limb legged.Limb) (Body, bool) {
	for _, bs := range m.bodies {
		if bs.body.Limb == limb && limb != legged.NoLimb {
			return bs.body, true
		}
	}
	return Body{}, false
}

func (m *Manager) Bodies() []Body {
	out := make([]Body, len(m.bodies))
	for i, bs := range m.bodies {
		out[i] = bs.body
	}
	return out
}

// Each visits every body in registration order. The state slice must not be
// retained.
func (m *Manager) Each(fn func(b Body, s legged.ContactState)) {
	for _, bs := range m.bodies {
		fn(bs.body, bs.state)
	}
}

// edgeLines picks the front-most and rear-most points of a footprint.
func edgeLines(footprint []r2.Point) (toes, heel []r2.Point) {
	maxX, minX := math.Inf(-1), math.Inf(1)
	for _, p := range footprint {
		maxX = math.Max(maxX, p.X)
		minX = math.Min(minX, p.X)
	}
	for _, p := range footprint {
		if p.X >= maxX-edgeTolerance {
			toes = append(toes, p)
		}
		if p.X <= minX+edgeTolerance {
			heel = append(heel, p)
		}
	}
	return toes, heel
}

// RectangularFootprint returns the four corners of a length x width sole
// centred on the sole frame origin.
func RectangularFootprint(length, width float64) []r2.Point {
	hl, hw := length/2, width/2
	return []r2.Point{
		{X: hl, Y: hw},
		{X: hl, Y: -hw},
		{X: -hl, Y: -hw},
		{X: -hl, Y: hw},
	}
}

package contact

import (
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/legbalance/internal/legged"
)

type recordingEscaper struct {
	manager *Manager
	calls   []string
	// number of contact points the body had when the escape was requested
	pointsAtCall []int
}

func (r *recordingEscaper) RequestSingularityEscape(body string) {
	r.calls = append(r.calls, body)
	s, _ := r.manager.State(body)
	r.pointsAtCall = append(r.pointsAtCall, len(s.Points))
}

type recordingSink struct {
	commands []ContactCommand
}

func (r *recordingSink) SubmitContactCommand(cmd ContactCommand) {
	r.commands = append(r.commands, cmd)
}

func newTestManager(t *testing.T) (*Manager, *recordingEscaper, *recordingSink) {
	t.Helper()
	esc := &recordingEscaper{}
	sink := &recordingSink{}
	m, err := NewManager([]Body{
		{Name: "left_foot", Limb: legged.Left, Footprint: RectangularFootprint(0.2, 0.1)},
		{Name: "right_foot", Limb: legged.Right, Footprint: RectangularFootprint(0.2, 0.1)},
		{Name: "left_hand", Footprint: []r2.Point{{}}, Friction: 0.5},
	}, esc, sink)
	require.NoError(t, err)
	esc.manager = m
	return m, esc, sink
}

func TestNewManagerValidatesBodies(t *testing.T) {
	_, err := NewManager([]Body{{Name: "a"}}, nil, nil)
	assert.Error(t, err)

	fp := RectangularFootprint(0.2, 0.1)
	_, err = NewManager([]Body{{Name: "a", Footprint: fp}, {Name: "a", Footprint: fp}}, nil, nil)
	assert.Error(t, err)

	m, err := NewManager([]Body{{Name: "a", Footprint: fp}}, nil, nil)
	require.NoError(t, err)
	s, ok := m.State("a")
	require.True(t, ok)
	assert.Equal(t, legged.Unconstrained, s.Constraint)
	assert.Empty(t, s.Points)
	assert.Equal(t, DefaultFriction, s.Friction)
	assert.Equal(t, r3.Vector{Z: 1}, s.Normal)
}

func TestLoadBearingTriggersSingleEscapeBeforeContact(t *testing.T) {
	m, esc, sink := newTestManager(t)

	require.NoError(t, m.SetLoadBearing("left_foot", true))

	require.Len(t, esc.calls, 1)
	assert.Equal(t, "left_foot", esc.calls[0])
	assert.Equal(t, 0, esc.pointsAtCall[0], "escape must run before points are asserted")

	s, _ := m.State("left_foot")
	assert.Equal(t, legged.Full, s.Constraint)
	assert.Len(t, s.Points, 4)

	require.Len(t, sink.commands, 1)
	assert.Equal(t, legged.Full, sink.commands[0].Constraint)
	assert.Len(t, sink.commands[0].Points, 4)

	// repeated request is a no-op
	require.NoError(t, m.SetLoadBearing("left_foot", true))
	assert.Len(t, esc.calls, 1)
	assert.Len(t, sink.commands, 1)
}

func TestHeelOffKeepsContactWithoutEscape(t *testing.T) {
	m, esc, sink := newTestManager(t)
	require.NoError(t, m.SetLoadBearing("right_foot", true))
	require.NoError(t, m.SetHeelOff("right_foot", true))

	s, _ := m.State("right_foot")
	assert.Equal(t, legged.Toes, s.Constraint)
	require.Len(t, s.Points, 2)
	for _, p := range s.Points {
		assert.InDelta(t, 0.1, p.X, 1e-12)
	}
	assert.Len(t, esc.calls, 1, "toes keep non-zero points, no new escape")

	require.NoError(t, m.SetHeelOff("right_foot", false))
	s, _ = m.State("right_foot")
	assert.Equal(t, legged.Full, s.Constraint)
	assert.Len(t, sink.commands, 3)
}

func TestUnloadClearsPoints(t *testing.T) {
	m, esc, _ := newTestManager(t)
	require.NoError(t, m.SetLoadBearing("left_foot", true))
	require.NoError(t, m.SetLoadBearing("left_foot", false))

	s, _ := m.State("left_foot")
	assert.Equal(t, legged.Unconstrained, s.Constraint)
	assert.Empty(t, s.Points)
	assert.False(t, m.InContact("left_foot"))

	require.NoError(t, m.SetLoadBearing("left_foot", true))
	assert.Len(t, esc.calls, 2)
}

func TestHeelStrikeThenFlatten(t *testing.T) {
	m, esc, _ := newTestManager(t)
	require.NoError(t, m.SetHeelStrike("left_foot"))
	s, _ := m.State("left_foot")
	assert.Equal(t, legged.Heel, s.Constraint)
	for _, p := range s.Points {
		assert.InDelta(t, -0.1, p.X, 1e-12)
	}
	require.NoError(t, m.SetLoadBearing("left_foot", true))
	s, _ = m.State("left_foot")
	assert.Equal(t, legged.Full, s.Constraint)
	assert.Len(t, esc.calls, 1)
}

func TestInvalidTransitions(t *testing.T) {
	m, _, _ := newTestManager(t)
	err := m.SetHeelOff("left_foot", true)
	assert.ErrorIs(t, err, legged.ErrInvalidTransition)

	err = m.SetLoadBearing("tail", true)
	assert.ErrorIs(t, err, legged.ErrUnknownBody)
}

func TestHandleLoadBearingCommand(t *testing.T) {
	m, _, sink := newTestManager(t)
	require.NoError(t, m.HandleLoadBearingCommand("left_hand", LoadBearingCommand{Friction: 0.3, Normal: r3.Vector{X: 1}}))
	assert.Empty(t, sink.commands, "no publish while unconstrained")

	require.NoError(t, m.SetLoadBearing("left_hand", true))
	s, _ := m.State("left_hand")
	assert.Equal(t, 0.3, s.Friction)
	assert.Equal(t, r3.Vector{X: 1}, s.Normal)

	assert.Error(t, m.HandleLoadBearingCommand("left_hand", LoadBearingCommand{Friction: -1, Normal: r3.Vector{Z: 1}}))
	assert.Error(t, m.HandleLoadBearingCommand("left_hand", LoadBearingCommand{Friction: 1}))
}

func TestBodyForLimb(t *testing.T) {
	m, _, _ := newTestManager(t)
	b, ok := m.BodyForLimb(legged.Right)
	require.True(t, ok)
	assert.Equal(t, "right_foot", b.Name)
	_, ok = m.BodyForLimb(legged.FrontLeft)
	assert.False(t, ok)
}

func TestDebouncer(t *testing.T) {
	d := NewDebouncer(3)
	seq := []bool{true, true, false, true, true, true}
	var commits []int
	for i, v := range seq {
		if _, changed := d.Sample("foot", v); changed {
			commits = append(commits, i)
		}
	}
	assert.Equal(t, []int{5}, commits)

	d.Seed("foot", false)
	v, changed := d.Sample("foot", false)
	assert.False(t, v)
	assert.False(t, changed)
}

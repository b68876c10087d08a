package control

import (
	"github.com/san-kum/legbalance/internal/legged"
	"github.com/san-kum/legbalance/internal/walking"
)

// phaseHooks keeps contacts and foot poses in step with the walking phase
// for bodies that are not driven by sensing.
type phaseHooks struct {
	c *Controller
}

func (h phaseHooks) OnStanding(t float64) {
	c := h.c
	for _, b := range c.contacts.Bodies() {
		if b.Limb == legged.NoLimb || c.sensed[b.Name] {
			continue
		}
		if _, placed := c.poses[b.Name]; placed && !c.contacts.InContact(b.Name) {
			h.setLoad(b.Name, true)
		}
	}
	c.tracker.Update(c.contacts, c.poses)
}

func (h phaseHooks) OnTransfer(t float64, next legged.TimedFootstep) {}

func (h phaseHooks) OnSingleSupport(t float64, step legged.TimedFootstep) {
	c := h.c
	if b, ok := c.contacts.BodyForLimb(step.Step.Limb); ok && !c.sensed[b.Name] {
		h.setLoad(b.Name, false)
	}
	c.tracker.Update(c.contacts, c.poses)
}

func (h phaseHooks) OnFootstepCompleted(t float64, landed legged.Footstep) {
	c := h.c
	b, ok := c.contacts.BodyForLimb(landed.Limb)
	if !ok {
		return
	}
	c.poses[b.Name] = landed.Goal
	if !c.sensed[b.Name] {
		h.setLoad(b.Name, true)
	}
	c.tracker.Update(c.contacts, c.poses)
}

func (h phaseHooks) setLoad(name string, loaded bool) {
	if err := h.c.contacts.SetLoadBearing(name, loaded); err != nil {
		log.WithError(err).Warnf("phase contact change on %s", name)
		return
	}
	h.c.debouncer.Seed(name, loaded)
}

// sensedTouchdown confirms touchdown from sensed contact when the swing
// body is sensed and from the planned timing otherwise.
type sensedTouchdown struct {
	c *Controller
}

func (s sensedTouchdown) TouchdownConfirmed(limb legged.Limb, timeInSwing, plannedSwing float64) bool {
	if b, ok := s.c.contacts.BodyForLimb(limb); ok && s.c.sensed[b.Name] {
		return s.c.contacts.InContact(b.Name)
	}
	return walking.TimedDetector{}.TouchdownConfirmed(limb, timeInSwing, plannedSwing)
}

// Package walking sequences standing, transfer and single support phases
// for the footstep plan held by the balance controller.
package walking

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/legbalance/internal/legged"
)

var log = logrus.WithFields(logrus.Fields{
	"pkg": "walking",
})

// timeTolerance absorbs float drift when tick times are compared with
// phase durations.
const timeTolerance = 1e-9

// BalanceController is the part of *icp.Controller the machine drives.
type BalanceController interface {
	NumberOfFootstepsInPlan() int
	UpcomingFootstep(i int) (legged.TimedFootstep, bool)
	CompleteFootstep() (legged.TimedFootstep, bool)
	FootstepSolution() (legged.Footstep, bool)
	InitializeForStanding(t float64)
	InitializeForTransfer(t float64, toSide legged.Limb, omega0 float64)
	InitializeForSingleSupport(t float64, supportSide legged.Limb, omega0 float64)
}

// TouchdownDetector reports ground contact of the swing foot.
type TouchdownDetector interface {
	TouchdownConfirmed(limb legged.Limb, timeInSwing, plannedSwing float64) bool
}

// PhaseObserver is told about every transition before the balance
// controller is initialised for the new phase, so contacts and foot poses
// are already up to date when the reference is planned.
type PhaseObserver interface {
	OnStanding(t float64)
	OnTransfer(t float64, next legged.TimedFootstep)
	OnSingleSupport(t float64, step legged.TimedFootstep)
	OnFootstepCompleted(t float64, landed legged.Footstep)
}

type Parameters struct {
	// A swing may run this fraction past its planned duration before
	// touchdown is forced.
	OverrunFactor float64 `yaml:"overrun_factor"`
}

func DefaultParameters() Parameters {
	return Parameters{OverrunFactor: 0.25}
}

func (p Parameters) Validate() error {
	if p.OverrunFactor < 0 {
		return fmt.Errorf("overrun factor must be >= 0, got %f", p.OverrunFactor)
	}
	return nil
}

type Machine struct {
	params    Parameters
	balance   BalanceController
	touchdown TouchdownDetector
	observer  PhaseObserver

	phase    legged.Phase
	limb     legged.Limb
	entered  float64
	duration float64
	current  legged.TimedFootstep

	late        bool
	lateCount   int
	transitions int
}

// New builds a machine in Standing. observer may be nil.
func New(params Parameters, balance BalanceController, touchdown TouchdownDetector, observer PhaseObserver) *Machine {
	return &Machine{
		params:    params,
		balance:   balance,
		touchdown: touchdown,
		observer:  observer,
		phase:     legged.Standing,
	}
}

// Start initialises the balance controller for standing at t.
func (m *Machine) Start(t float64) {
	m.enterStanding(t)
}

func (m *Machine) Phase() legged.Phase { return m.phase }

// Limb is the swing limb in single support and the upcoming swing limb in
// transfer.
func (m *Machine) Limb() legged.Limb { return m.limb }

func (m *Machine) TimeInPhase(t float64) float64 { return t - m.entered }

// LateTouchdown reports whether the last CheckTransitions forced a
// touchdown that the detector never confirmed.
func (m *Machine) LateTouchdown() bool { return m.late }

func (m *Machine) LateTouchdowns() int { return m.lateCount }

func (m *Machine) Transitions() int { return m.transitions }

// CheckTransitions advances the machine by at most one phase.
func (m *Machine) CheckTransitions(t, omega0 float64) {
	m.late = false
	queued := m.balance.NumberOfFootstepsInPlan()

	switch m.phase {
	case legged.Standing:
		if queued > 0 {
			m.enterTransfer(t, omega0)
		}
	case legged.Transfer:
		if queued == 0 {
			m.enterStanding(t)
			return
		}
		if t-m.entered >= m.duration-timeTolerance {
			m.enterSingleSupport(t, omega0)
		}
	case legged.SingleSupport:
		elapsed := t - m.entered
		swing := m.current.Timing.SwingDuration
		confirmed := elapsed >= swing-timeTolerance && m.touchdown.TouchdownConfirmed(m.limb, elapsed, swing)
		overdue := elapsed >= swing*(1+m.params.OverrunFactor)-timeTolerance
		if !confirmed && !overdue {
			return
		}
		if !confirmed {
			m.late = true
			m.lateCount++
			log.Warnf("late touchdown of %s at %.3f after %.3fs (planned %.3fs)", m.limb, t, elapsed, swing)
		}
		m.completeStep(t)
		if m.balance.NumberOfFootstepsInPlan() > 0 {
			m.enterTransfer(t, omega0)
		} else {
			m.enterStanding(t)
		}
	}
}

// ForceStanding abandons the current phase. The plan is left to the caller.
func (m *Machine) ForceStanding(t float64) {
	if m.phase == legged.Standing {
		return
	}
	log.Infof("forced standing at %.3f from %s", t, m.phase)
	m.enterStanding(t)
}

func (m *Machine) completeStep(t float64) {
	landed := m.current.Step
	if solution, ok := m.balance.FootstepSolution(); ok && solution.Limb == m.limb {
		landed = solution
	}
	if m.observer != nil {
		m.observer.OnFootstepCompleted(t, landed)
	}
	if head, ok := m.balance.UpcomingFootstep(0); ok && head == m.current {
		m.balance.CompleteFootstep()
	}
	log.Debugf("footstep %s completed at %.3f", landed.Limb, t)
}

func (m *Machine) enterStanding(t float64) {
	m.set(legged.Standing, legged.NoLimb, t, 0)
	if m.observer != nil {
		m.observer.OnStanding(t)
	}
	m.balance.InitializeForStanding(t)
}

func (m *Machine) enterTransfer(t, omega0 float64) {
	head, ok := m.balance.UpcomingFootstep(0)
	if !ok {
		m.enterStanding(t)
		return
	}
	m.current = head
	m.set(legged.Transfer, head.Step.Limb, t, head.Timing.TransferDuration)
	if m.observer != nil {
		m.observer.OnTransfer(t, head)
	}
	m.balance.InitializeForTransfer(t, head.Step.Limb.Opposite(), omega0)
}

func (m *Machine) enterSingleSupport(t, omega0 float64) {
	head, ok := m.balance.UpcomingFootstep(0)
	if !ok {
		m.enterStanding(t)
		return
	}
	m.current = head
	m.set(legged.SingleSupport, head.Step.Limb, t, head.Timing.SwingDuration)
	if m.observer != nil {
		m.observer.OnSingleSupport(t, head)
	}
	m.balance.InitializeForSingleSupport(t, head.Step.Limb.Opposite(), omega0)
}

func (m *Machine) set(phase legged.Phase, limb legged.Limb, t, duration float64) {
	if phase != m.phase {
		log.Debugf("%s -> %s at %.3f", m.phase, phase, t)
	}
	m.phase = phase
	m.limb = limb
	m.entered = t
	m.duration = duration
	m.transitions++
}

// TimedDetector confirms touchdown once the planned swing has elapsed.
type TimedDetector struct{}

func (TimedDetector) TouchdownConfirmed(_ legged.Limb, timeInSwing, plannedSwing float64) bool {
	return timeInSwing >= plannedSwing-timeTolerance
}

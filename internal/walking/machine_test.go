package walking_test

import (
	"fmt"

	"github.com/golang/geo/r3"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/legbalance/internal/legged"
	"github.com/san-kum/legbalance/internal/walking"
)

// fakeBalance records initialisations and serves a plain queue.
type fakeBalance struct {
	queue []legged.TimedFootstep
	calls []string
}

func (f *fakeBalance) NumberOfFootstepsInPlan() int { return len(f.queue) }

func (f *fakeBalance) UpcomingFootstep(i int) (legged.TimedFootstep, bool) {
	if i >= len(f.queue) {
		return legged.TimedFootstep{}, false
	}
	return f.queue[i], true
}

func (f *fakeBalance) CompleteFootstep() (legged.TimedFootstep, bool) {
	if len(f.queue) == 0 {
		return legged.TimedFootstep{}, false
	}
	head := f.queue[0]
	f.queue = f.queue[1:]
	return head, true
}

func (f *fakeBalance) FootstepSolution() (legged.Footstep, bool) {
	if len(f.queue) == 0 {
		return legged.Footstep{}, false
	}
	return f.queue[0].Step, true
}

func (f *fakeBalance) InitializeForStanding(t float64) {
	f.calls = append(f.calls, "standing")
}

func (f *fakeBalance) InitializeForTransfer(t float64, toSide legged.Limb, omega0 float64) {
	f.calls = append(f.calls, fmt.Sprintf("transfer:%s", toSide))
}

func (f *fakeBalance) InitializeForSingleSupport(t float64, supportSide legged.Limb, omega0 float64) {
	f.calls = append(f.calls, fmt.Sprintf("single:%s", supportSide))
}

type neverDetector struct{}

func (neverDetector) TouchdownConfirmed(legged.Limb, float64, float64) bool { return false }

// orderObserver checks that it always runs before the balance controller.
type orderObserver struct {
	balance *fakeBalance
	seen    []int
	landed  []legged.Footstep
}

func (o *orderObserver) OnStanding(float64)                           { o.seen = append(o.seen, len(o.balance.calls)) }
func (o *orderObserver) OnTransfer(float64, legged.TimedFootstep)      { o.seen = append(o.seen, len(o.balance.calls)) }
func (o *orderObserver) OnSingleSupport(float64, legged.TimedFootstep) { o.seen = append(o.seen, len(o.balance.calls)) }
func (o *orderObserver) OnFootstepCompleted(_ float64, s legged.Footstep) {
	o.landed = append(o.landed, s)
}

func plan(n int) []legged.TimedFootstep {
	steps := make([]legged.TimedFootstep, n)
	limb := legged.Left
	for i := range steps {
		steps[i] = legged.TimedFootstep{
			Step: legged.Footstep{
				Limb: limb,
				Goal: legged.Pose{Position: r3.Vector{X: 0.3 * float64(i+1), Y: 0.1}},
			},
			Timing: legged.FootstepTiming{SwingDuration: 0.6, TransferDuration: 0.2},
		}
		limb = limb.Opposite()
	}
	return steps
}

const dt = 0.004

var _ = Describe("Machine", func() {
	var (
		balance  *fakeBalance
		observer *orderObserver
		machine  *walking.Machine
		visits   map[legged.Phase]int
		now      float64
	)

	// run ticks the machine and counts every phase entry.
	run := func(ticks int) {
		for i := 0; i < ticks; i++ {
			before := machine.Transitions()
			machine.CheckTransitions(now, 3.0)
			if machine.Transitions() != before {
				visits[machine.Phase()]++
			}
			now += dt
		}
	}

	setup := func(detector walking.TouchdownDetector, steps int) {
		balance = &fakeBalance{queue: plan(steps)}
		observer = &orderObserver{balance: balance}
		machine = walking.New(walking.DefaultParameters(), balance, detector, observer)
		visits = map[legged.Phase]int{}
		now = 0
		machine.Start(now)
	}

	Context("with a three step plan", func() {
		BeforeEach(func() {
			setup(walking.TimedDetector{}, 3)
		})

		It("visits transfer and single support three times each", func() {
			run(610)

			Expect(visits[legged.Transfer]).To(Equal(3))
			Expect(visits[legged.SingleSupport]).To(Equal(3))
			Expect(machine.Phase()).To(Equal(legged.Standing))
			Expect(balance.queue).To(BeEmpty())
			Expect(machine.LateTouchdowns()).To(BeZero())
		})

		It("notifies the observer before initialising the controller", func() {
			run(610)

			for i, at := range observer.seen {
				Expect(at).To(Equal(i), "observer call %d ran after the controller", i)
			}
			Expect(observer.landed).To(HaveLen(3))
			Expect(observer.landed[2].Goal.Position.X).To(BeNumerically("~", 0.9, 1e-12))
		})

		It("alternates support sides", func() {
			run(610)

			Expect(balance.calls).To(Equal([]string{
				"standing",
				"transfer:right", "single:right",
				"transfer:left", "single:left",
				"transfer:right", "single:right",
				"standing",
			}))
		})

		It("returns to standing when forced", func() {
			run(125)
			Expect(machine.Phase()).To(Equal(legged.SingleSupport))

			machine.ForceStanding(now)
			Expect(machine.Phase()).To(Equal(legged.Standing))
			Expect(balance.calls[len(balance.calls)-1]).To(Equal("standing"))
		})

		It("drops to standing when the plan is cleared during transfer", func() {
			run(5)
			Expect(machine.Phase()).To(Equal(legged.Transfer))

			balance.queue = nil
			run(1)
			Expect(machine.Phase()).To(Equal(legged.Standing))
		})
	})

	Context("without touchdown confirmation", func() {
		BeforeEach(func() {
			setup(neverDetector{}, 1)
		})

		It("forces a late touchdown after the overrun", func() {
			run(51)
			Expect(machine.Phase()).To(Equal(legged.SingleSupport))

			run(150)
			Expect(machine.Phase()).To(Equal(legged.SingleSupport))

			forced := false
			for i := 0; i < 50 && !forced; i++ {
				run(1)
				forced = machine.LateTouchdown()
			}
			Expect(forced).To(BeTrue())
			Expect(machine.Phase()).To(Equal(legged.Standing))
			Expect(machine.LateTouchdowns()).To(Equal(1))
		})
	})

	It("rejects a negative overrun factor", func() {
		Expect(walking.Parameters{OverrunFactor: -1}.Validate()).To(HaveOccurred())
		Expect(walking.DefaultParameters().Validate()).To(Succeed())
	})
})

package control

import (
	"fmt"

	"github.com/golang/geo/r2"
	"github.com/sirupsen/logrus"

	"github.com/san-kum/legbalance/internal/contact"
	"github.com/san-kum/legbalance/internal/geometry"
	"github.com/san-kum/legbalance/internal/icp"
	"github.com/san-kum/legbalance/internal/legged"
	"github.com/san-kum/legbalance/internal/mailbox"
	"github.com/san-kum/legbalance/internal/momentum"
	"github.com/san-kum/legbalance/internal/support"
	"github.com/san-kum/legbalance/internal/walking"
)

var log = logrus.WithFields(logrus.Fields{
	"pkg": "control",
})

type Config struct {
	ICP      icp.Parameters
	Walking  walking.Parameters
	Momentum momentum.Parameters

	Bodies []contact.Body
	// InitialPoses places bodies in the world. Bodies with a pose start
	// loaded.
	InitialPoses  map[string]legged.Pose
	DebounceTicks int
}

func (c Config) Validate() error {
	if err := c.ICP.Validate(); err != nil {
		return fmt.Errorf("icp: %w", err)
	}
	if err := c.Walking.Validate(); err != nil {
		return fmt.Errorf("walking: %w", err)
	}
	if err := c.Momentum.Validate(); err != nil {
		return fmt.Errorf("momentum: %w", err)
	}
	if len(c.Bodies) == 0 {
		return fmt.Errorf("no contactable bodies")
	}
	return nil
}

// Collaborators are the external parties the controller talks to. Any may
// be nil.
type Collaborators struct {
	Escaper   contact.SingularityEscaper
	Contacts  contact.ContactCommandSink
	Touchdown walking.TouchdownDetector
	Stopper   SafetyStopper
	Sink      Sink
}

type Controller struct {
	cfg Config

	contacts  *contact.Manager
	debouncer *contact.Debouncer
	tracker   *support.Tracker
	balance   *icp.Controller
	machine   *walking.Machine
	adapter   *momentum.Adapter

	plans   *mailbox.Mailbox[PlanRequest]
	regions *mailbox.Mailbox[RegionUpdate]
	loads   *mailbox.Mailbox[LoadBearingRequest]
	abort   mailbox.Flag

	stopper SafetyStopper
	sink    Sink

	poses    support.Poses
	sensed   map[string]bool
	mode     Mode
	started  bool
	rejected int
	last     Output
}

func New(cfg Config, col Collaborators) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	contacts, err := contact.NewManager(cfg.Bodies, col.Escaper, col.Contacts)
	if err != nil {
		return nil, err
	}

	c := &Controller{
		cfg:       cfg,
		contacts:  contacts,
		debouncer: contact.NewDebouncer(cfg.DebounceTicks),
		tracker:   support.NewTracker(),
		adapter:   momentum.NewAdapter(cfg.Momentum, nil),
		plans:     mailbox.New[PlanRequest](),
		regions:   mailbox.New[RegionUpdate](),
		loads:     mailbox.New[LoadBearingRequest](),
		stopper:   col.Stopper,
		sink:      col.Sink,
		poses:     make(support.Poses, len(cfg.Bodies)),
		sensed:    make(map[string]bool),
		mode:      ModeHold,
	}
	c.balance = icp.NewController(cfg.ICP, c.tracker)

	touchdown := col.Touchdown
	if touchdown == nil {
		touchdown = sensedTouchdown{c: c}
	}
	c.machine = walking.New(cfg.Walking, c.balance, touchdown, phaseHooks{c: c})

	for _, b := range contacts.Bodies() {
		pose, ok := cfg.InitialPoses[b.Name]
		if !ok {
			continue
		}
		c.poses[b.Name] = pose
		if err := contacts.SetLoadBearing(b.Name, true); err != nil {
			return nil, err
		}
		c.debouncer.Seed(b.Name, true)
	}
	c.tracker.Update(c.contacts, c.poses)
	return c, nil
}

// SubmitPlan hands a plan edit to the control goroutine. Only the latest
// pending edit is applied.
func (c *Controller) SubmitPlan(req PlanRequest) { c.plans.Put(req) }

func (c *Controller) SubmitRegions(regions []geometry.PlanarRegion, t float64) {
	c.regions.Put(RegionUpdate{Regions: regions, Time: t})
}

func (c *Controller) SubmitLoadBearing(req LoadBearingRequest) { c.loads.Put(req) }

// RequestAbort clears the plan and stands at the next tick boundary.
func (c *Controller) RequestAbort() { c.abort.Raise() }

func (c *Controller) SetKeepInsidePolygon(v bool)  { c.balance.SetKeepInsidePolygon(v) }
func (c *Controller) SetUseAngularMomentum(v bool) { c.balance.SetUseAngularMomentum(v) }
func (c *Controller) SetUseStepAdjustment(v bool)  { c.balance.SetUseStepAdjustment(v) }

func (c *Controller) Mode() Mode { return c.mode }

// PlannedSteps is the number of footsteps still queued.
func (c *Controller) PlannedSteps() int { return c.balance.NumberOfFootstepsInPlan() }

// Last returns the most recent output.
func (c *Controller) Last() Output { return c.last }

// FootPose returns the tracked world sole pose of a body.
func (c *Controller) FootPose(name string) (legged.Pose, bool) {
	return c.poses.BodyPose(name)
}

// Tick runs one control cycle. It never blocks and never panics on bad
// feedback: non-finite input latches ModeSafetyStop and freezes the output.
func (c *Controller) Tick(fb Feedback) Output {
	if c.mode == ModeSafetyStop {
		return c.last
	}
	if !fb.finite() {
		c.safetyStop(fb.Time, legged.ErrNonFiniteFeedback)
		return c.last
	}
	t := fb.Time
	state := legged.NewCapturePointState(fb.CoM, fb.CoMVelocity, c.cfg.Momentum.Gravity)

	c.drain()
	c.senseContacts(fb)
	for name, pose := range fb.FootPoses {
		c.poses[name] = pose
	}
	c.tracker.Update(c.contacts, c.poses)

	if !c.started {
		c.machine.Start(t)
		c.started = true
	}
	if c.abort.Consume() {
		log.Infof("abort at %.3f", t)
		c.balance.ClearPlan()
		c.machine.ForceStanding(t)
	}
	c.machine.CheckTransitions(t, state.Omega0)

	desired, velocity, perfect := c.balance.Reference(t)
	comVelocity := r2.Point{X: fb.CoMVelocity.X, Y: fb.CoMVelocity.Y}
	c.balance.Compute(t, desired, velocity, perfect, state.ComXY(), comVelocity, state.Omega0)
	outputs := c.balance.Outputs()

	// a held reaction point keeps the command it was converted with
	cmd := c.last.Momentum
	if !outputs.Degraded && state.Omega0 > 0 {
		cmd = c.adapter.Convert(momentum.Input{
			CoM:                     fb.CoM,
			CoMVelocity:             fb.CoMVelocity,
			Omega0:                  state.Omega0,
			GroundReactionPoint:     outputs.GroundReactionPoint,
			PerfectCMP:              perfect,
			PerfectCoP:              fb.PerfectCoP,
			HasPerfectCoP:           fb.HasPerfectCoP,
			AngularMomentumResidual: outputs.AngularMomentumResidual,
		})
	}

	c.mode = ModeHold
	if c.machine.Phase() != legged.Standing {
		c.mode = ModeWalking
	}
	status := c.balance.Status()
	status.LateTouchdown = c.machine.LateTouchdown()
	status.RejectedPlanEntries = c.rejected

	c.last = Output{
		Time:         t,
		Mode:         c.mode,
		Phase:        c.machine.Phase(),
		SwingLimb:    c.swingLimb(),
		CapturePoint: state,
		Desired:      outputs,
		Momentum:     cmd,
		Status:       status,
		Support:      c.tracker.Combined().Vertices(),
	}
	c.publish()
	return c.last
}

func (c *Controller) swingLimb() legged.Limb {
	if c.machine.Phase() == legged.SingleSupport {
		return c.machine.Limb()
	}
	return legged.NoLimb
}

func (c *Controller) drain() {
	if req, ok := c.plans.Take(); ok {
		c.applyPlan(req)
	}
	if upd, ok := c.regions.Take(); ok {
		c.balance.SubmitCurrentPlanarRegions(upd.Regions, upd.Time)
	}
	if req, ok := c.loads.Take(); ok {
		c.applyLoads(req)
	}
}

func (c *Controller) applyLoads(req LoadBearingRequest) {
	for name, loaded := range req.States {
		if err := c.contacts.SetLoadBearing(name, loaded); err != nil {
			log.WithError(err).Warn("load bearing request rejected")
			continue
		}
		c.debouncer.Seed(name, loaded)
	}
	for _, name := range req.HeelStrike {
		if err := c.contacts.SetHeelStrike(name); err != nil {
			log.WithError(err).Warn("heel strike rejected")
			continue
		}
		c.debouncer.Seed(name, true)
	}
	for name, off := range req.HeelOff {
		if err := c.contacts.SetHeelOff(name, off); err != nil {
			log.WithError(err).Warn("heel-off request rejected")
		}
	}
	for name, cmd := range req.Commands {
		if err := c.contacts.HandleLoadBearingCommand(name, cmd); err != nil {
			log.WithError(err).Warn("load bearing command rejected")
		}
	}
}

func (c *Controller) applyPlan(req PlanRequest) {
	if req.Clear {
		c.balance.ClearPlan()
	}
	if req.FinalTransferDuration != nil {
		if err := c.balance.SetFinalTransferDuration(*req.FinalTransferDuration); err != nil {
			log.WithError(err).Warn("final transfer duration rejected")
		}
	}
	for i, entry := range req.Steps {
		if err := c.balance.AddFootstepToPlan(entry.Step, entry.Timing); err != nil {
			c.rejected++
			log.WithError(err).Warnf("plan entry %d rejected", i)
		}
	}
}

func (c *Controller) senseContacts(fb Feedback) {
	for name, raw := range fb.LoadBearing {
		c.sensed[name] = true
		loaded, changed := c.debouncer.Sample(name, raw)
		if !changed {
			continue
		}
		if err := c.contacts.SetLoadBearing(name, loaded); err != nil {
			log.WithError(err).Warnf("sensed contact on %s dropped", name)
		}
	}
}

func (c *Controller) safetyStop(t float64, reason error) {
	c.mode = ModeSafetyStop
	log.WithError(reason).Errorf("safety stop at %.3f", t)
	if c.stopper != nil {
		c.stopper.RequestSafetyStop(reason)
	}
	c.last.Mode = ModeSafetyStop
	c.last.Status.SafetyStop = true
	c.publish()
}

func (c *Controller) publish() {
	if c.sink != nil {
		c.sink.Publish(c.last)
	}
}

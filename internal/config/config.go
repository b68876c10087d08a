package config

import (
	"fmt"
	"os"

	"github.com/golang/geo/r3"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/legbalance/internal/contact"
	"github.com/san-kum/legbalance/internal/control"
	"github.com/san-kum/legbalance/internal/icp"
	"github.com/san-kum/legbalance/internal/integrators"
	"github.com/san-kum/legbalance/internal/legged"
	"github.com/san-kum/legbalance/internal/momentum"
	"github.com/san-kum/legbalance/internal/sim"
	"github.com/san-kum/legbalance/internal/walking"
)

const (
	DefaultDt        = 0.004
	DefaultDuration  = 4.0
	DefaultGravity   = 9.81
	DefaultMass      = 40.0
	DefaultComHeight = DefaultGravity / 9
	DefaultSwing     = 0.6
	DefaultTransfer  = 0.2

	RobotBiped     = "biped"
	RobotQuadruped = "quadruped"
)

type Config struct {
	Robot         string         `yaml:"robot"`
	Integrator    string         `yaml:"integrator"`
	Dt            float64        `yaml:"dt"`
	Duration      float64        `yaml:"duration"`
	Seed          int64          `yaml:"seed"`
	DebounceTicks int            `yaml:"debounce_ticks"`
	Body          BodyConfig     `yaml:"body"`
	Feet          FeetConfig     `yaml:"feet"`
	Walk          WalkConfig     `yaml:"walk"`
	Pushes        []sim.Push     `yaml:"pushes"`
	ICP           ICPConfig      `yaml:"icp"`
	Walking       WalkingConfig  `yaml:"walking"`
	Momentum      MomentumConfig `yaml:"momentum"`
}

type BodyConfig struct {
	Mass      float64 `yaml:"mass"`
	ComHeight float64 `yaml:"com_height"`
	Gravity   float64 `yaml:"gravity"`
}

// FeetConfig sizes the soles and places them at start. Quadrupeds also use
// StanceLength between front and hind feet.
type FeetConfig struct {
	Length       float64 `yaml:"length"`
	Width        float64 `yaml:"width"`
	StanceWidth  float64 `yaml:"stance_width"`
	StanceLength float64 `yaml:"stance_length"`
}

type WalkConfig struct {
	Steps            int     `yaml:"steps"`
	StepLength       float64 `yaml:"step_length"`
	SwingDuration    float64 `yaml:"swing_duration"`
	TransferDuration float64 `yaml:"transfer_duration"`
}

type ICPConfig struct {
	Gains                 icp.Gains   `yaml:"gains"`
	Weights               icp.Weights `yaml:"weights"`
	KeepInsidePolygon     bool        `yaml:"keep_inside_polygon"`
	UseAngularMomentum    bool        `yaml:"use_angular_momentum"`
	UseStepAdjustment     bool        `yaml:"use_step_adjustment"`
	SafeAreaMargin        float64     `yaml:"safe_area_margin"`
	MaxAdjustment         float64     `yaml:"max_adjustment"`
	AdjustmentTrigger     float64     `yaml:"adjustment_trigger"`
	MinimumTimeRemaining  float64     `yaml:"minimum_time_remaining"`
	FinalTransferDuration float64     `yaml:"final_transfer_duration"`
}

type WalkingConfig struct {
	OverrunFactor float64 `yaml:"overrun_factor"`
}

type MomentumConfig struct {
	HeightKp float64 `yaml:"height_kp"`
	HeightKd float64 `yaml:"height_kd"`
}

func DefaultConfig() *Config {
	ip := icp.DefaultParameters()
	mp := momentum.DefaultParameters()
	return &Config{
		Robot:         RobotBiped,
		Integrator:    "exact",
		Dt:            DefaultDt,
		Duration:      DefaultDuration,
		DebounceTicks: 3,
		Body: BodyConfig{
			Mass:      DefaultMass,
			ComHeight: DefaultComHeight,
			Gravity:   DefaultGravity,
		},
		Feet: FeetConfig{
			Length:       0.2,
			Width:        0.1,
			StanceWidth:  0.2,
			StanceLength: 0.5,
		},
		Walk: WalkConfig{
			Steps:            4,
			StepLength:       0.3,
			SwingDuration:    DefaultSwing,
			TransferDuration: DefaultTransfer,
		},
		ICP: ICPConfig{
			Gains:                 ip.Gains,
			Weights:               ip.Weights,
			KeepInsidePolygon:     ip.KeepInsidePolygon,
			UseAngularMomentum:    ip.UseAngularMomentum,
			UseStepAdjustment:     ip.UseStepAdjustment,
			SafeAreaMargin:        ip.SafeAreaMargin,
			MaxAdjustment:         ip.MaxAdjustment,
			AdjustmentTrigger:     ip.AdjustmentTrigger,
			MinimumTimeRemaining:  ip.MinimumTimeRemaining,
			FinalTransferDuration: ip.FinalTransferDuration,
		},
		Walking: WalkingConfig{
			OverrunFactor: walking.DefaultParameters().OverrunFactor,
		},
		Momentum: MomentumConfig{
			HeightKp: mp.HeightKp,
			HeightKd: mp.HeightKd,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if c.Robot != RobotBiped && c.Robot != RobotQuadruped {
		return fmt.Errorf("unknown robot: %s", c.Robot)
	}
	if _, err := integrators.Get(c.Integrator); err != nil {
		return err
	}
	if c.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %f", c.Dt)
	}
	if c.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %f", c.Duration)
	}
	if c.Feet.Length <= 0 || c.Feet.Width <= 0 {
		return fmt.Errorf("foot size must be positive")
	}
	if c.Walk.Steps < 0 {
		return fmt.Errorf("steps must be >= 0, got %d", c.Walk.Steps)
	}
	if c.Walk.Steps > 0 && (c.Walk.SwingDuration <= 0 || c.Walk.TransferDuration <= 0) {
		return fmt.Errorf("swing and transfer durations must be positive")
	}
	return c.ControlConfig().Validate()
}

func (c *Config) ICPParameters() icp.Parameters {
	p := icp.DefaultParameters()
	p.ControlDT = c.Dt
	p.Gains = c.ICP.Gains
	p.Weights = c.ICP.Weights
	p.KeepInsidePolygon = c.ICP.KeepInsidePolygon
	p.UseAngularMomentum = c.ICP.UseAngularMomentum
	p.UseStepAdjustment = c.ICP.UseStepAdjustment
	p.SafeAreaMargin = c.ICP.SafeAreaMargin
	p.MaxAdjustment = c.ICP.MaxAdjustment
	p.MaxAdjustmentX = c.ICP.MaxAdjustment
	p.MaxAdjustmentY = c.ICP.MaxAdjustment
	p.AdjustmentTrigger = c.ICP.AdjustmentTrigger
	p.MinimumTimeRemaining = c.ICP.MinimumTimeRemaining
	p.FinalTransferDuration = c.ICP.FinalTransferDuration
	return p
}

func (c *Config) MomentumParameters() momentum.Parameters {
	return momentum.Parameters{
		Mass:          c.Body.Mass,
		Gravity:       c.Body.Gravity,
		NominalHeight: c.Body.ComHeight,
		HeightKp:      c.Momentum.HeightKp,
		HeightKd:      c.Momentum.HeightKd,
	}
}

// Limbs lists the feet of the configured robot.
func (c *Config) Limbs() []legged.Limb {
	if c.Robot == RobotQuadruped {
		return legged.QuadrupedLimbs
	}
	return legged.BipedLimbs
}

// BodyName is the contact body of a foot.
func BodyName(limb legged.Limb) string {
	return limb.String() + "_foot"
}

// FootHome is the starting sole position of a limb.
func (c *Config) FootHome(limb legged.Limb) r3.Vector {
	w := c.Feet.StanceWidth / 2
	l := c.Feet.StanceLength / 2
	switch limb {
	case legged.Left:
		return r3.Vector{Y: w}
	case legged.Right:
		return r3.Vector{Y: -w}
	case legged.FrontLeft:
		return r3.Vector{X: l, Y: w}
	case legged.FrontRight:
		return r3.Vector{X: l, Y: -w}
	case legged.HindLeft:
		return r3.Vector{X: -l, Y: w}
	case legged.HindRight:
		return r3.Vector{X: -l, Y: -w}
	}
	return r3.Vector{}
}

func (c *Config) ControlConfig() control.Config {
	limbs := c.Limbs()
	bodies := make([]contact.Body, 0, len(limbs))
	poses := make(map[string]legged.Pose, len(limbs))
	for _, limb := range limbs {
		name := BodyName(limb)
		bodies = append(bodies, contact.Body{
			Name:      name,
			Limb:      limb,
			Footprint: contact.RectangularFootprint(c.Feet.Length, c.Feet.Width),
		})
		poses[name] = legged.Pose{Position: c.FootHome(limb)}
	}
	return control.Config{
		ICP:           c.ICPParameters(),
		Walking:       walking.Parameters{OverrunFactor: c.Walking.OverrunFactor},
		Momentum:      c.MomentumParameters(),
		Bodies:        bodies,
		InitialPoses:  poses,
		DebounceTicks: c.DebounceTicks,
	}
}

func (c *Config) SimConfig() sim.Config {
	return sim.Config{
		Dt:            c.Dt,
		Duration:      c.Duration,
		Seed:          c.Seed,
		ValidateState: true,
	}
}

func (c *Config) Plant() *sim.Plant {
	return &sim.Plant{Mass: c.Body.Mass, Height: c.Body.ComHeight, Gravity: c.Body.Gravity}
}

// InitState puts the CoM at rest over the centre of the starting feet.
func (c *Config) InitState() sim.State {
	var x, y float64
	limbs := c.Limbs()
	for _, limb := range limbs {
		p := c.FootHome(limb)
		x += p.X
		y += p.Y
	}
	n := float64(len(limbs))
	return sim.State{x / n, y / n, 0, 0}
}

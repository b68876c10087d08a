// Package scenario loads and generates scripted walking bouts: a footstep
// plan plus the pushes applied while it runs.
package scenario

import (
	"fmt"
	"os"

	"github.com/golang/geo/r3"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/legbalance/internal/config"
	"github.com/san-kum/legbalance/internal/legged"
	"github.com/san-kum/legbalance/internal/sim"
)

// Scenario defines a scripted walking bout
type Scenario struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Preset      string     `yaml:"preset,omitempty"`
	Steps       []Step     `yaml:"steps"`
	Pushes      []sim.Push `yaml:"pushes,omitempty"`
}

// Step is one footstep in world coordinates
type Step struct {
	Limb      legged.Limb `yaml:"limb"`
	X         float64     `yaml:"x"`
	Y         float64     `yaml:"y"`
	Z         float64     `yaml:"z,omitempty"`
	Yaw       float64     `yaml:"yaw,omitempty"`
	Clearance float64     `yaml:"clearance,omitempty"`
	Swing     float64     `yaml:"swing"`
	Transfer  float64     `yaml:"transfer"`
}

func (s Step) TimedFootstep() legged.TimedFootstep {
	return legged.TimedFootstep{
		Step: legged.Footstep{
			Limb:            s.Limb,
			Goal:            legged.Pose{Position: r3.Vector{X: s.X, Y: s.Y, Z: s.Z}, Yaw: s.Yaw},
			GroundClearance: s.Clearance,
		},
		Timing: legged.FootstepTiming{SwingDuration: s.Swing, TransferDuration: s.Transfer},
	}
}

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	if _, err := sc.Footsteps(); err != nil {
		return nil, err
	}
	return &sc, nil
}

func SaveScenario(path string, sc *Scenario) error {
	data, err := yaml.Marshal(sc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Footsteps converts the steps into a plan, rejecting the first invalid one.
func (sc *Scenario) Footsteps() ([]legged.TimedFootstep, error) {
	plan := make([]legged.TimedFootstep, 0, len(sc.Steps))
	for i, s := range sc.Steps {
		f := s.TimedFootstep()
		if err := f.Validate(); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		plan = append(plan, f)
	}
	return plan, nil
}

// Apply overlays the scenario's pushes onto cfg when it has any.
func (sc *Scenario) Apply(cfg *config.Config) {
	if len(sc.Pushes) > 0 {
		cfg.Pushes = append([]sim.Push(nil), sc.Pushes...)
	}
}

// StraightWalk generates a forward walk for the configured robot. Bipeds
// alternate starting with the left foot and square up on the last step;
// quadrupeds crawl one leg at a time, hind before front.
func StraightWalk(cfg *config.Config) *Scenario {
	sc := &Scenario{
		Name:        fmt.Sprintf("%s-straight-%d", cfg.Robot, cfg.Walk.Steps),
		Description: "generated straight walk",
		Pushes:      append([]sim.Push(nil), cfg.Pushes...),
	}
	if cfg.Robot == config.RobotQuadruped {
		sc.Steps = crawl(cfg)
	} else {
		sc.Steps = biped(cfg)
	}
	return sc
}

func biped(cfg *config.Config) []Step {
	n := cfg.Walk.Steps
	steps := make([]Step, 0, n)
	for i := 0; i < n; i++ {
		limb := legged.Left
		if i%2 == 1 {
			limb = legged.Right
		}
		advance := float64(i+1) * cfg.Walk.StepLength
		if i == n-1 && n > 1 {
			advance = float64(i) * cfg.Walk.StepLength
		}
		steps = append(steps, step(cfg, limb, advance))
	}
	return steps
}

var crawlOrder = []legged.Limb{legged.HindLeft, legged.FrontLeft, legged.HindRight, legged.FrontRight}

func crawl(cfg *config.Config) []Step {
	n := cfg.Walk.Steps
	steps := make([]Step, 0, n)
	moved := make(map[legged.Limb]int, len(crawlOrder))
	for i := 0; i < n; i++ {
		limb := crawlOrder[i%len(crawlOrder)]
		moved[limb]++
		steps = append(steps, step(cfg, limb, float64(moved[limb])*cfg.Walk.StepLength))
	}
	return steps
}

func step(cfg *config.Config, limb legged.Limb, advance float64) Step {
	home := cfg.FootHome(limb)
	return Step{
		Limb:      limb,
		X:         home.X + advance,
		Y:         home.Y,
		Z:         home.Z,
		Clearance: 0.05,
		Swing:     cfg.Walk.SwingDuration,
		Transfer:  cfg.Walk.TransferDuration,
	}
}

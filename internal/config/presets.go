package config

import (
	"sort"

	"github.com/golang/geo/r2"

	"github.com/san-kum/legbalance/internal/sim"
)

var Presets = map[string]func() *Config{
	"walk": func() *Config {
		return DefaultConfig()
	},
	"push": func() *Config {
		c := DefaultConfig()
		c.Walk.Steps = 1
		c.Duration = 2.0
		c.Pushes = []sim.Push{{Time: 0.4, DeltaICP: r2.Point{Y: 0.05}}}
		return c
	},
	"stand": func() *Config {
		c := DefaultConfig()
		c.Walk.Steps = 0
		c.Duration = 2.0
		c.Pushes = []sim.Push{{Time: 0.5, DeltaICP: r2.Point{X: 0.03}}}
		return c
	},
	"crawl": func() *Config {
		c := DefaultConfig()
		c.Robot = RobotQuadruped
		c.Feet = FeetConfig{Length: 0.06, Width: 0.06, StanceWidth: 0.3, StanceLength: 0.5}
		c.Walk = WalkConfig{Steps: 8, StepLength: 0.1, SwingDuration: 0.4, TransferDuration: 0.3}
		c.Duration = 7.0
		return c
	},
}

// GetPreset returns a fresh copy of the named preset, or nil.
func GetPreset(name string) *Config {
	f, ok := Presets[name]
	if !ok {
		return nil
	}
	return f()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package integrators

import (
	"fmt"
	"sort"

	"github.com/san-kum/legbalance/internal/sim"
)

var registry = map[string]func() sim.Integrator{
	"exact":      func() sim.Integrator { return NewExact() },
	"euler":      func() sim.Integrator { return NewEuler() },
	"midpoint":   func() sim.Integrator { return NewMidpoint() },
	"rk4":        func() sim.Integrator { return NewRK4() },
	"symplectic": func() sim.Integrator { return NewSymplecticEuler() },
	"leapfrog":   func() sim.Integrator { return NewLeapfrog() },
	"verlet":     func() sim.Integrator { return NewLeapfrog() },
}

// Get returns a fresh integrator by name.
func Get(name string) (sim.Integrator, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s", name)
	}
	return f(), nil
}

func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

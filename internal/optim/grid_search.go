// Package optim tunes controller parameters by exhaustive search over a
// grid of candidate values, scoring each candidate with a closed-loop run.
package optim

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/san-kum/legbalance/internal/config"
	"github.com/san-kum/legbalance/internal/control"
	"github.com/san-kum/legbalance/internal/experiment"
	"github.com/san-kum/legbalance/internal/legged"
)

// Setters maps tunable parameter names onto the configuration.
var Setters = map[string]func(*config.Config, float64){
	"kp_parallel":    func(c *config.Config, v float64) { c.ICP.Gains.KpParallel = v },
	"kp_orthogonal":  func(c *config.Config, v float64) { c.ICP.Gains.KpOrthogonal = v },
	"ki":             func(c *config.Config, v float64) { c.ICP.Gains.Ki = v },
	"w_touchdown":    func(c *config.Config, v float64) { c.ICP.Weights.TouchdownError = v },
	"w_feedback":     func(c *config.Config, v float64) { c.ICP.Weights.Feedback = v },
	"w_footstep":     func(c *config.Config, v float64) { c.ICP.Weights.Footstep = v },
	"max_adjustment": func(c *config.Config, v float64) { c.ICP.MaxAdjustment = v },
	"trigger":        func(c *config.Config, v float64) { c.ICP.AdjustmentTrigger = v },
}

type Param struct {
	Name   string
	Values []float64
}

// ParseParam reads "name=v1,v2,..." or "name=start:stop:step".
func ParseParam(s string) (Param, error) {
	name, rng, ok := strings.Cut(s, "=")
	if !ok {
		return Param{}, fmt.Errorf("parameter %q: expected name=values", s)
	}
	name = strings.TrimSpace(name)
	if _, ok := Setters[name]; !ok {
		return Param{}, fmt.Errorf("unknown parameter: %s (available: %v)", name, Names())
	}

	p := Param{Name: name}
	if parts := strings.Split(rng, ":"); len(parts) == 3 {
		var r [3]float64
		for i, part := range parts {
			v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
			if err != nil {
				return Param{}, fmt.Errorf("parameter %s: %w", name, err)
			}
			r[i] = v
		}
		if r[2] <= 0 || r[1] < r[0] {
			return Param{}, fmt.Errorf("parameter %s: bad range %s", name, rng)
		}
		for v := r[0]; v <= r[1]+r[2]*1e-9; v += r[2] {
			p.Values = append(p.Values, v)
		}
		return p, nil
	}
	for _, part := range strings.Split(rng, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return Param{}, fmt.Errorf("parameter %s: %w", name, err)
		}
		p.Values = append(p.Values, v)
	}
	return p, nil
}

func Names() []string {
	names := make([]string, 0, len(Setters))
	for n := range Setters {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

type GridSearch struct {
	params []Param
}

func NewGridSearch(params []Param) *GridSearch {
	return &GridSearch{params: params}
}

// Size is the number of candidates in the grid.
func (g *GridSearch) Size() int {
	n := 1
	for _, p := range g.params {
		n *= len(p.Values)
	}
	return n
}

// Evaluate runs the plan under one candidate. Invalid configurations, run
// errors and safety stops score +Inf.
func Evaluate(ctx context.Context, base *config.Config, plan []legged.TimedFootstep, params map[string]float64, metricName string) (float64, error) {
	cfg := *base
	for name, v := range params {
		set, ok := Setters[name]
		if !ok {
			return 0, fmt.Errorf("unknown parameter: %s", name)
		}
		set(&cfg, v)
	}
	if err := cfg.Validate(); err != nil {
		return math.Inf(1), nil
	}

	exp := experiment.New(&cfg, plan)
	if err := exp.Setup(control.Collaborators{}, nil); err != nil {
		return math.Inf(1), nil
	}
	result, err := exp.Run(ctx)
	if err != nil {
		return 0, err
	}
	if len(result.Errors) > 0 {
		return math.Inf(1), nil
	}
	val, ok := result.Metrics[metricName]
	if !ok {
		return 0, fmt.Errorf("unknown metric: %s", metricName)
	}
	return val, nil
}

// Search returns the candidate minimising the metric.
func (g *GridSearch) Search(
	ctx context.Context,
	base *config.Config,
	plan []legged.TimedFootstep,
	metricName string,
) (map[string]float64, float64, error) {

	best := math.Inf(1)
	var bestParams map[string]float64

	err := g.searchRecursive(ctx, 0, make(map[string]float64), base, plan, metricName, &best, &bestParams)
	if err != nil {
		return nil, 0, err
	}
	if bestParams == nil {
		return nil, best, fmt.Errorf("no candidate completed a run")
	}
	return bestParams, best, nil
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	current map[string]float64,
	base *config.Config,
	plan []legged.TimedFootstep,
	metricName string,
	best *float64,
	bestParams *map[string]float64,
) error {
	if depth == len(g.params) {
		val, err := Evaluate(ctx, base, plan, current, metricName)
		if err != nil {
			return err
		}
		if val < *best {
			*best = val
			*bestParams = make(map[string]float64, len(current))
			for k, v := range current {
				(*bestParams)[k] = v
			}
		}
		return nil
	}

	p := g.params[depth]
	for _, val := range p.Values {
		next := make(map[string]float64, len(current)+1)
		for k, v := range current {
			next[k] = v
		}
		next[p.Name] = val

		if err := g.searchRecursive(ctx, depth+1, next, base, plan, metricName, best, bestParams); err != nil {
			return err
		}
	}
	return nil
}

package scenario

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r2"

	"github.com/san-kum/legbalance/internal/config"
	"github.com/san-kum/legbalance/internal/legged"
	"github.com/san-kum/legbalance/internal/sim"
)

func TestStraightWalkBiped(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Walk.Steps = 4
	cfg.Walk.StepLength = 0.3

	sc := StraightWalk(cfg)
	if len(sc.Steps) != 4 {
		t.Fatalf("expected 4 steps, got %d", len(sc.Steps))
	}

	tests := []struct {
		limb legged.Limb
		x    float64
	}{
		{legged.Left, 0.3},
		{legged.Right, 0.6},
		{legged.Left, 0.9},
		{legged.Right, 0.9},
	}
	for i, tt := range tests {
		s := sc.Steps[i]
		if s.Limb != tt.limb {
			t.Errorf("step %d: expected %s, got %s", i, tt.limb, s.Limb)
		}
		if math.Abs(s.X-tt.x) > 1e-12 {
			t.Errorf("step %d: expected x %f, got %f", i, tt.x, s.X)
		}
	}
	if sc.Steps[0].Y <= 0 || sc.Steps[1].Y >= 0 {
		t.Error("feet should keep their side")
	}
}

func TestStraightWalkSingleStep(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Walk.Steps = 1
	sc := StraightWalk(cfg)
	if len(sc.Steps) != 1 || sc.Steps[0].X != cfg.Walk.StepLength {
		t.Errorf("unexpected steps %+v", sc.Steps)
	}
}

func TestStraightWalkCrawl(t *testing.T) {
	cfg := config.GetPreset("crawl")
	sc := StraightWalk(cfg)
	if len(sc.Steps) != cfg.Walk.Steps {
		t.Fatalf("expected %d steps, got %d", cfg.Walk.Steps, len(sc.Steps))
	}
	for i, s := range sc.Steps {
		if s.Limb != crawlOrder[i%4] {
			t.Errorf("step %d: expected %s, got %s", i, crawlOrder[i%4], s.Limb)
		}
	}
	last := sc.Steps[len(sc.Steps)-1]
	home := cfg.FootHome(last.Limb)
	if math.Abs(last.X-(home.X+2*cfg.Walk.StepLength)) > 1e-12 {
		t.Errorf("front right should have moved twice, x=%f", last.X)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "walk.yaml")
	cfg := config.DefaultConfig()
	cfg.Pushes = []sim.Push{{Time: 0.4, DeltaICP: r2.Point{Y: 0.05}}}
	sc := StraightWalk(cfg)

	if err := SaveScenario(path, sc); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := LoadScenario(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded.Steps) != len(sc.Steps) {
		t.Fatalf("expected %d steps, got %d", len(sc.Steps), len(loaded.Steps))
	}
	for i := range sc.Steps {
		if loaded.Steps[i] != sc.Steps[i] {
			t.Errorf("step %d: %+v != %+v", i, loaded.Steps[i], sc.Steps[i])
		}
	}
	if len(loaded.Pushes) != 1 || loaded.Pushes[0] != sc.Pushes[0] {
		t.Errorf("pushes mismatch: %+v", loaded.Pushes)
	}
}

func TestFootstepsRejectsInvalid(t *testing.T) {
	sc := &Scenario{Steps: []Step{
		{Limb: legged.Left, X: 0.3, Y: 0.1, Swing: 0.6, Transfer: 0.2},
		{Limb: legged.Right, X: 0.6, Y: -0.1, Swing: 0, Transfer: 0.2},
	}}
	_, err := sc.Footsteps()
	if !errors.Is(err, legged.ErrInvalidPlan) {
		t.Errorf("expected ErrInvalidPlan, got %v", err)
	}
}

func TestApply(t *testing.T) {
	cfg := config.DefaultConfig()
	sc := &Scenario{}
	sc.Apply(cfg)
	if len(cfg.Pushes) != 0 {
		t.Error("empty scenario should not add pushes")
	}

	sc.Pushes = []sim.Push{{Time: 1, DeltaICP: r2.Point{X: 0.02}}}
	sc.Apply(cfg)
	if len(cfg.Pushes) != 1 {
		t.Errorf("expected 1 push, got %d", len(cfg.Pushes))
	}
}

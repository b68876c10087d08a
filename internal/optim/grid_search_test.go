package optim

import (
	"context"
	"math"
	"testing"

	"github.com/san-kum/legbalance/internal/config"
	"github.com/san-kum/legbalance/internal/scenario"
)

func TestParseParam(t *testing.T) {
	tests := []struct {
		in      string
		name    string
		values  []float64
		wantErr bool
	}{
		{"kp_parallel=1,2,3", "kp_parallel", []float64{1, 2, 3}, false},
		{"ki=0:0.2:0.1", "ki", []float64{0, 0.1, 0.2}, false},
		{"w_footstep = 0.5", "w_footstep", []float64{0.5}, false},
		{"bogus=1", "", nil, true},
		{"kp_parallel", "", nil, true},
		{"kp_parallel=a", "", nil, true},
		{"ki=1:0:0.1", "", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p, err := ParseParam(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if p.Name != tt.name {
				t.Errorf("name = %s, want %s", p.Name, tt.name)
			}
			if len(p.Values) != len(tt.values) {
				t.Fatalf("values = %v, want %v", p.Values, tt.values)
			}
			for i := range p.Values {
				if math.Abs(p.Values[i]-tt.values[i]) > 1e-9 {
					t.Errorf("values = %v, want %v", p.Values, tt.values)
				}
			}
		})
	}
}

func TestGridSize(t *testing.T) {
	g := NewGridSearch([]Param{
		{Name: "kp_parallel", Values: []float64{1, 2, 3}},
		{Name: "ki", Values: []float64{0, 0.1}},
	})
	if g.Size() != 6 {
		t.Errorf("size = %d, want 6", g.Size())
	}
}

func TestSearchPicksMinimum(t *testing.T) {
	cfg := config.GetPreset("push")
	plan, err := scenario.StraightWalk(cfg).Footsteps()
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	values := []float64{1.5, 3.0}

	best, score, err := NewGridSearch([]Param{{Name: "kp_orthogonal", Values: values}}).Search(ctx, cfg, plan, "peak_cmp_offset")
	if err != nil {
		t.Fatal(err)
	}

	want := math.Inf(1)
	for _, v := range values {
		s, err := Evaluate(ctx, cfg, plan, map[string]float64{"kp_orthogonal": v}, "peak_cmp_offset")
		if err != nil {
			t.Fatal(err)
		}
		want = math.Min(want, s)
	}
	if score != want {
		t.Errorf("score = %g, want %g", score, want)
	}
	if _, ok := best["kp_orthogonal"]; !ok {
		t.Errorf("best params missing kp_orthogonal: %v", best)
	}
}

func TestEvaluateLeavesBaseUntouched(t *testing.T) {
	cfg := config.GetPreset("stand")
	before := cfg.ICP.Gains.KpParallel
	if _, err := Evaluate(context.Background(), cfg, nil, map[string]float64{"kp_parallel": 4}, "icp_rms"); err != nil {
		t.Fatal(err)
	}
	if cfg.ICP.Gains.KpParallel != before {
		t.Error("Evaluate modified the base configuration")
	}
}

func TestEvaluateUnknownMetric(t *testing.T) {
	cfg := config.GetPreset("stand")
	if _, err := Evaluate(context.Background(), cfg, nil, nil, "nope"); err == nil {
		t.Error("expected error for unknown metric")
	}
}

func TestEvaluateInvalidCandidateScoresInf(t *testing.T) {
	cfg := config.GetPreset("stand")
	s, err := Evaluate(context.Background(), cfg, nil, map[string]float64{"kp_parallel": -1}, "icp_rms")
	if err != nil {
		t.Fatal(err)
	}
	if !math.IsInf(s, 1) {
		t.Errorf("score = %g, want +Inf", s)
	}
}

package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"github.com/san-kum/legbalance/internal/control"
	"github.com/san-kum/legbalance/internal/legged"
	"github.com/san-kum/legbalance/internal/sim"
)

func testResult() *sim.Result {
	out := control.Output{
		Mode:      control.ModeWalking,
		Phase:     legged.SingleSupport,
		SwingLimb: legged.Left,
		CapturePoint: legged.CapturePointState{
			ComPosition:  r3.Vector{X: 0.01, Y: -0.02, Z: 1.09},
			ComVelocity:  r3.Vector{X: 0.3},
			CapturePoint: r2.Point{X: 0.11, Y: -0.02},
		},
		Desired: legged.DesiredOutputs{
			DesiredCapturePoint: r2.Point{X: 0.1, Y: -0.02},
			GroundReactionPoint: r2.Point{X: 0.02, Y: -0.1},
			FootstepWasAdjusted: true,
		},
	}
	return &sim.Result{
		Samples: []sim.Sample{
			{Time: 0, Output: control.Output{Phase: legged.Standing}},
			{Time: 0.004, Output: out},
		},
		Metrics: map[string]float64{"icp_rms": 0.5},
		Errors:  []error{errors.New("boom")},
	}
}

func TestStoreSaveLoad(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	runID, err := st.Save(RunMetadata{Name: "push", Robot: "biped", Seed: 42, Dt: 0.004}, testResult())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if !strings.HasPrefix(runID, "push_") {
		t.Errorf("unexpected run id %q", runID)
	}

	meta, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if meta.Seed != 42 {
		t.Errorf("expected seed 42, got %d", meta.Seed)
	}
	if meta.Metrics["icp_rms"] != 0.5 {
		t.Errorf("expected icp_rms 0.5, got %f", meta.Metrics["icp_rms"])
	}
	if len(meta.Errors) != 1 || meta.Errors[0] != "boom" {
		t.Errorf("unexpected errors %v", meta.Errors)
	}

	rows, err := st.LoadTrace(runID)
	if err != nil {
		t.Fatalf("load trace failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	got := rows[1]
	if got.Phase != "SINGLE_SUPPORT" || got.SwingLimb != "left" || got.Mode != control.ModeWalking.String() {
		t.Errorf("unexpected labels %+v", got)
	}
	if got.CMP != (r2.Point{X: 0.02, Y: -0.1}) || got.ICP != (r2.Point{X: 0.11, Y: -0.02}) {
		t.Errorf("unexpected points %+v", got)
	}
	if !got.Adjusted || got.Degraded {
		t.Errorf("unexpected flags %+v", got)
	}
}

func TestStoreList(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	runs, err := st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected 0 runs, got %d", len(runs))
	}

	for i := 0; i < 2; i++ {
		if _, err := st.Save(RunMetadata{Name: "walk"}, testResult()); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	runs, err = st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID == runs[1].ID {
		t.Error("run ids collide")
	}
}

func TestStoreListMissingDir(t *testing.T) {
	st := New(filepath.Join(t.TempDir(), "absent"))
	runs, err := st.List()
	if err != nil || len(runs) != 0 {
		t.Errorf("expected empty list, got %v, %v", runs, err)
	}
}

func TestStoreFileStructure(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)

	runID, err := st.Save(RunMetadata{}, testResult())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	for _, name := range []string{metadataFile, traceFile} {
		if _, err := os.Stat(filepath.Join(tmpDir, runID, name)); os.IsNotExist(err) {
			t.Errorf("%s not created", name)
		}
	}
}

func TestLoadTraceSkipsMalformed(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)
	runID, err := st.Save(RunMetadata{}, testResult())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	path := filepath.Join(tmpDir, runID, traceFile)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	f.WriteString("garbage,row\n")
	f.Close()

	rows, err := st.LoadTrace(runID)
	if err != nil {
		t.Fatalf("load trace failed: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("expected 2 rows, got %d", len(rows))
	}
}

func TestExportJSON(t *testing.T) {
	st := New(t.TempDir())
	runID, err := st.Save(RunMetadata{Name: "walk"}, testResult())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	var buf bytes.Buffer
	if err := st.ExportJSON(&buf, runID); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	var data ExportData
	if err := json.Unmarshal(buf.Bytes(), &data); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if data.Meta.ID != runID || len(data.Rows) != 2 {
		t.Errorf("unexpected export %+v", data.Meta)
	}
}

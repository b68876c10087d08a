package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/golang/geo/r2"
	"github.com/google/uuid"

	"github.com/san-kum/legbalance/internal/sim"
)

const (
	metadataFile = "metadata.json"
	traceFile    = "trace.csv"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	Robot      string             `json:"robot"`
	Timestamp  time.Time          `json:"timestamp"`
	Seed       int64              `json:"seed"`
	Dt         float64            `json:"dt"`
	Duration   float64            `json:"duration"`
	Integrator string             `json:"integrator"`
	Footsteps  int                `json:"footsteps"`
	Pushes     []sim.Push         `json:"pushes,omitempty"`
	Metrics    map[string]float64 `json:"metrics"`
	Errors     []string           `json:"errors,omitempty"`
}

// Row is one tick of a stored trace.
type Row struct {
	Time        float64
	Mode        string
	Phase       string
	SwingLimb   string
	CoM         r2.Point
	CoMVelocity r2.Point
	ICP         r2.Point
	DesiredICP  r2.Point
	CMP         r2.Point
	Adjusted    bool
	Degraded    bool
}

func RowFromSample(smp sim.Sample) Row {
	out := smp.Output
	return Row{
		Time:        smp.Time,
		Mode:        out.Mode.String(),
		Phase:       out.Phase.String(),
		SwingLimb:   out.SwingLimb.String(),
		CoM:         out.CapturePoint.ComXY(),
		CoMVelocity: r2.Point{X: out.CapturePoint.ComVelocity.X, Y: out.CapturePoint.ComVelocity.Y},
		ICP:         out.CapturePoint.CapturePoint,
		DesiredICP:  out.Desired.DesiredCapturePoint,
		CMP:         out.Desired.GroundReactionPoint,
		Adjusted:    out.Desired.FootstepWasAdjusted,
		Degraded:    out.Status.Degraded,
	}
}

func Rows(result *sim.Result) []Row {
	rows := make([]Row, len(result.Samples))
	for i, smp := range result.Samples {
		rows[i] = RowFromSample(smp)
	}
	return rows
}

var header = []string{
	"time", "mode", "phase", "swing",
	"com_x", "com_y", "com_vx", "com_vy",
	"icp_x", "icp_y", "icp_des_x", "icp_des_y",
	"cmp_x", "cmp_y", "adjusted", "degraded",
}

// Save writes the metadata and trace of a run under a fresh id. meta.ID
// and meta.Timestamp are filled in.
func (s *Store) Save(meta RunMetadata, result *sim.Result) (string, error) {
	prefix := meta.Name
	if prefix == "" {
		prefix = "run"
	}
	meta.ID = fmt.Sprintf("%s_%s", prefix, uuid.NewString()[:8])
	meta.Timestamp = time.Now()
	meta.Metrics = result.Metrics
	for _, err := range result.Errors {
		meta.Errors = append(meta.Errors, err.Error())
	}

	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	metaFile, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, traceFile))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	if err := w.Write(header); err != nil {
		return "", err
	}
	for _, smp := range result.Samples {
		if err := w.Write(formatRow(RowFromSample(smp))); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return meta.ID, nil
}

func formatRow(r Row) []string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }
	return []string{
		f(r.Time), r.Mode, r.Phase, r.SwingLimb,
		f(r.CoM.X), f(r.CoM.Y), f(r.CoMVelocity.X), f(r.CoMVelocity.Y),
		f(r.ICP.X), f(r.ICP.Y), f(r.DesiredICP.X), f(r.DesiredICP.Y),
		f(r.CMP.X), f(r.CMP.Y),
		strconv.FormatBool(r.Adjusted), strconv.FormatBool(r.Degraded),
	}
}

// List returns the stored runs, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadTrace reads a run's trace back. Malformed rows are skipped.
func (s *Store) LoadTrace(runID string) ([]Row, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, traceFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []Row{}, nil
	}

	rows := make([]Row, 0, len(records)-1)
	for _, record := range records[1:] {
		row, ok := parseRow(record)
		if !ok {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseRow(record []string) (Row, bool) {
	if len(record) != len(header) {
		return Row{}, false
	}
	var nums [11]float64
	numIdx := []int{0, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13}
	for i, col := range numIdx {
		v, err := strconv.ParseFloat(record[col], 64)
		if err != nil {
			return Row{}, false
		}
		nums[i] = v
	}
	adjusted, err := strconv.ParseBool(record[14])
	if err != nil {
		return Row{}, false
	}
	degraded, err := strconv.ParseBool(record[15])
	if err != nil {
		return Row{}, false
	}
	return Row{
		Time:        nums[0],
		Mode:        record[1],
		Phase:       record[2],
		SwingLimb:   record[3],
		CoM:         r2.Point{X: nums[1], Y: nums[2]},
		CoMVelocity: r2.Point{X: nums[3], Y: nums[4]},
		ICP:         r2.Point{X: nums[5], Y: nums[6]},
		DesiredICP:  r2.Point{X: nums[7], Y: nums[8]},
		CMP:         r2.Point{X: nums[9], Y: nums[10]},
		Adjusted:    adjusted,
		Degraded:    degraded,
	}, true
}

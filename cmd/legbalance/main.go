package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/golang/geo/r2"
	"github.com/guptarohit/asciigraph"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/san-kum/legbalance/internal/config"
	"github.com/san-kum/legbalance/internal/control"
	"github.com/san-kum/legbalance/internal/experiment"
	"github.com/san-kum/legbalance/internal/export"
	"github.com/san-kum/legbalance/internal/legged"
	"github.com/san-kum/legbalance/internal/optim"
	"github.com/san-kum/legbalance/internal/scenario"
	"github.com/san-kum/legbalance/internal/sim"
	"github.com/san-kum/legbalance/internal/storage"
	"github.com/san-kum/legbalance/internal/tui"
)

var (
	dataDir      string
	logLevel     string
	steps        int
	stepLength   float64
	duration     float64
	seed         int64
	integrator   string
	scenarioFile string
	configFile   string
	pushTime     float64
	pushX        float64
	pushY        float64
	adjust       bool
	live         bool
	frameRate    int
	trials       int
	magnitude    float64
	plotFormat   string
	plotDir      string
	tuneParams   []string
	tuneMetric   string
)

var (
	cyan   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	dim    = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	green  = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	yellow = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	red    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "legbalance",
		Short: "capture point balance controller for legged robots",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			logrus.SetLevel(level)
			logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return tui.RunInteractive("")
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".legbalance", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run [preset]",
		Short: "run a walking bout and store the trace",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runBout,
	}
	addBoutFlags(runCmd)
	runCmd.Flags().Int64Var(&seed, "seed", 0, "seed recorded with the run")
	runCmd.Flags().BoolVar(&live, "live", false, "draw the ground view while running")
	runCmd.Flags().IntVar(&frameRate, "fps", 30, "frame rate for --live")

	montecarloCmd := &cobra.Command{
		Use:   "montecarlo [preset]",
		Short: "run the bout under random pushes",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runMonteCarlo,
	}
	addBoutFlags(montecarloCmd)
	montecarloCmd.Flags().IntVar(&trials, "runs", 20, "number of trials")
	montecarloCmd.Flags().Float64Var(&magnitude, "magnitude", 0.03, "capture point displacement per push (m)")
	montecarloCmd.Flags().Int64Var(&seed, "seed", 1, "seed of the first trial")

	tuneCmd := &cobra.Command{
		Use:   "tune [preset]",
		Short: "grid search controller parameters",
		Args:  cobra.MaximumNArgs(1),
		RunE:  tuneGains,
	}
	addBoutFlags(tuneCmd)
	tuneCmd.Flags().StringArrayVar(&tuneParams, "param", nil, "name=v1,v2 or name=start:stop:step (repeatable)")
	tuneCmd.Flags().StringVar(&tuneMetric, "metric", "icp_rms", "metric to minimise")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot capture point tracking in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run metadata and trace to JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return storage.New(dataDir).ExportJSON(os.Stdout, args[0])
		},
	}

	exportPlotCmd := &cobra.Command{
		Use:   "export-plot [run_id]",
		Short: "render ground track and time series plots",
		Args:  cobra.ExactArgs(1),
		RunE:  exportPlot,
	}
	exportPlotCmd.Flags().StringVar(&plotFormat, "format", "png", "image format (png, svg, pdf)")
	exportPlotCmd.Flags().StringVar(&plotDir, "out", ".", "output directory")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tROBOT\tSTEPS\tDURATION\tPUSHES")
			for _, name := range config.ListPresets() {
				cfg := config.GetPreset(name)
				fmt.Fprintf(w, "%s\t%s\t%d\t%.1fs\t%d\n", name, cfg.Robot, cfg.Walk.Steps, cfg.Duration, len(cfg.Pushes))
			}
			return w.Flush()
		},
	}

	liveCmd := &cobra.Command{
		Use:   "live [preset]",
		Short: "interactive view of a running bout",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			preset := "walk"
			if len(args) > 0 {
				preset = args[0]
			}
			return tui.RunInteractive(preset)
		},
	}

	scenarioCmd := &cobra.Command{
		Use:   "scenario [path]",
		Short: "write a generated straight-walk scenario",
		Args:  cobra.ExactArgs(1),
		RunE:  writeScenario,
	}
	scenarioCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	scenarioCmd.Flags().IntVar(&steps, "steps", 0, "number of footsteps (0 keeps the preset)")
	scenarioCmd.Flags().Float64Var(&stepLength, "step-length", 0, "step length (m, 0 keeps the preset)")

	rootCmd.AddCommand(runCmd, montecarloCmd, tuneCmd, listCmd, plotCmd, exportCmd, exportJSONCmd, exportPlotCmd, presetsCmd, liveCmd, scenarioCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addBoutFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&scenarioFile, "scenario", "", "scenario file path (yaml)")
	cmd.Flags().IntVar(&steps, "steps", 0, "number of footsteps (0 keeps the preset)")
	cmd.Flags().Float64Var(&stepLength, "step-length", 0, "step length (m, 0 keeps the preset)")
	cmd.Flags().Float64Var(&duration, "time", 0, "duration (s, 0 keeps the preset)")
	cmd.Flags().StringVar(&integrator, "integrator", "", "integrator (rk4, euler, verlet, leapfrog)")
	cmd.Flags().Float64Var(&pushTime, "push-time", 0.4, "push time (s)")
	cmd.Flags().Float64Var(&pushX, "push-x", 0, "forward capture point push (m)")
	cmd.Flags().Float64Var(&pushY, "push-y", 0, "lateral capture point push (m)")
	cmd.Flags().BoolVar(&adjust, "adjust", true, "enable step adjustment")
}

// loadBout resolves the configuration and plan from, in increasing
// precedence, the preset, the config file, the scenario, and the flags.
func loadBout(cmd *cobra.Command, args []string) (string, *config.Config, []legged.TimedFootstep, error) {
	name := "walk"
	if len(args) > 0 {
		name = args[0]
	}
	cfg := config.GetPreset(name)
	if cfg == nil {
		return "", nil, nil, fmt.Errorf("unknown preset: %s (available: %v)", name, config.ListPresets())
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return "", nil, nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	var sc *scenario.Scenario
	if scenarioFile != "" {
		loaded, err := scenario.LoadScenario(scenarioFile)
		if err != nil {
			return "", nil, nil, fmt.Errorf("failed to load scenario: %w", err)
		}
		if loaded.Preset != "" && len(args) == 0 && configFile == "" {
			if cfg = config.GetPreset(loaded.Preset); cfg == nil {
				return "", nil, nil, fmt.Errorf("scenario %s: unknown preset %s", loaded.Name, loaded.Preset)
			}
		}
		loaded.Apply(cfg)
		sc = loaded
		name = loaded.Name
	}

	flags := cmd.Flags()
	if steps > 0 {
		cfg.Walk.Steps = steps
	}
	if stepLength > 0 {
		cfg.Walk.StepLength = stepLength
	}
	if duration > 0 {
		cfg.Duration = duration
	}
	if integrator != "" {
		cfg.Integrator = integrator
	}
	if flags.Changed("push-x") || flags.Changed("push-y") {
		cfg.Pushes = append(cfg.Pushes, sim.Push{Time: pushTime, DeltaICP: r2.Point{X: pushX, Y: pushY}})
	}
	if flags.Changed("adjust") {
		cfg.ICP.UseStepAdjustment = adjust
	}
	if flags.Lookup("seed") != nil && flags.Changed("seed") {
		cfg.Seed = seed
	}
	if err := cfg.Validate(); err != nil {
		return "", nil, nil, err
	}

	if sc == nil {
		sc = scenario.StraightWalk(cfg)
	}
	plan, err := sc.Footsteps()
	if err != nil {
		return "", nil, nil, err
	}
	return name, cfg, plan, nil
}

func runBout(cmd *cobra.Command, args []string) error {
	name, cfg, plan, err := loadBout(cmd, args)
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	exp := experiment.New(cfg, plan)
	if err := exp.Setup(control.Collaborators{}, nil); err != nil {
		return err
	}

	var renderer *tui.LiveRenderer
	if live {
		renderer = tui.NewLiveRenderer(name, frameRate)
		exp.GetSimulator().AddObserver(renderer)
		renderer.Start()
	}

	fmt.Printf("running %s (%s, %d steps)...\n", cyan.Render(name), cfg.Robot, len(plan))
	start := time.Now()
	result, err := exp.Run(context.Background())
	if renderer != nil {
		renderer.Stop()
	}
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	meta := storage.RunMetadata{
		Name:       name,
		Robot:      cfg.Robot,
		Seed:       cfg.Seed,
		Dt:         cfg.Dt,
		Duration:   cfg.Duration,
		Integrator: cfg.Integrator,
		Footsteps:  len(plan),
		Pushes:     cfg.Pushes,
	}
	runID, err := st.Save(meta, result)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("ticks: %d\n", result.StepsTaken)
	if n := len(result.Samples); n > 0 {
		last := result.Samples[n-1].Output
		fmt.Printf("final: %s %s, %d steps left\n", last.Mode, last.Phase, exp.GetSimulator().Controller().PlannedSteps())
		if err := last.Status.Err(); err != nil {
			fmt.Println(red.Render("status: " + err.Error()))
		}
	}
	for _, e := range result.Errors {
		fmt.Println(red.Render("error: " + e.Error()))
	}
	printMetrics(result.Metrics)
	return nil
}

func printMetrics(m map[string]float64) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Println("\nmetrics:")
	for _, name := range names {
		fmt.Printf("  %s %.6f\n", dim.Render(fmt.Sprintf("%-20s", name)), m[name])
	}
}

func runMonteCarlo(cmd *cobra.Command, args []string) error {
	name, cfg, plan, err := loadBout(cmd, args)
	if err != nil {
		return err
	}
	if trials < 1 {
		return fmt.Errorf("runs must be positive, got %d", trials)
	}

	mc := experiment.MonteCarloConfig{
		Trials:       trials,
		Magnitude:    magnitude,
		EarliestPush: 0,
		LatestPush:   cfg.Duration / 2,
		Seed:         seed,
	}
	fmt.Printf("running %d trials of %s, push %.3fm...\n", trials, cyan.Render(name), magnitude)
	start := time.Now()
	results, err := experiment.RunMonteCarlo(context.Background(), cfg, plan, mc)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SEED\tPUSH T\tPUSH X\tPUSH Y\tICP RMS\tADJUSTED\tMODE")
	for _, r := range results {
		mode := green.Render(r.FinalMode.String())
		if r.SafetyStop {
			mode = red.Render(r.FinalMode.String())
		}
		fmt.Fprintf(w, "%d\t%.2f\t%+.3f\t%+.3f\t%.4f\t%.0f\t%s\n",
			r.Seed, r.Push.Time, r.Push.DeltaICP.X, r.Push.DeltaICP.Y,
			r.Metrics["icp_rms"], r.Metrics["adjusted_ticks"], mode)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	stable, unstable := experiment.MonteCarloStats(results)
	summary := green.Render(fmt.Sprintf("%d stable", stable))
	if unstable > 0 {
		summary += ", " + yellow.Render(fmt.Sprintf("%d unstable", unstable))
	}
	fmt.Printf("\n%s in %v\n", summary, time.Since(start))
	return nil
}

func tuneGains(cmd *cobra.Command, args []string) error {
	name, cfg, plan, err := loadBout(cmd, args)
	if err != nil {
		return err
	}
	if len(tuneParams) == 0 {
		return fmt.Errorf("no --param given (available: %v)", optim.Names())
	}
	params := make([]optim.Param, 0, len(tuneParams))
	for _, s := range tuneParams {
		p, err := optim.ParseParam(s)
		if err != nil {
			return err
		}
		params = append(params, p)
	}

	g := optim.NewGridSearch(params)
	fmt.Printf("searching %d candidates on %s, minimising %s...\n", g.Size(), cyan.Render(name), tuneMetric)
	start := time.Now()
	best, score, err := g.Search(context.Background(), cfg, plan, tuneMetric)
	if err != nil {
		return err
	}

	fmt.Printf("done in %v\n\nbest %s: %.6f\n", time.Since(start), tuneMetric, score)
	for _, p := range params {
		fmt.Printf("  %s %g\n", dim.Render(fmt.Sprintf("%-16s", p.Name)), best[p.Name])
	}
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tROBOT\tTIME\tDURATION\tSTEPS\tICP RMS\tADJUSTED")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2fs\t%d\t%.4f\t%.0f\n",
			run.ID,
			run.Robot,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Duration,
			run.Footsteps,
			run.Metrics["icp_rms"],
			run.Metrics["adjusted_ticks"],
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	rows, err := st.LoadTrace(runID)
	if err != nil {
		return err
	}

	if len(rows) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("robot: %s\n", meta.Robot)
	fmt.Printf("samples: %d\n\n", len(rows))

	series := []struct {
		caption string
		pick    func(storage.Row) []float64
	}{
		{"icp x (actual, desired, cmp)", func(r storage.Row) []float64 { return []float64{r.ICP.X, r.DesiredICP.X, r.CMP.X} }},
		{"icp y (actual, desired, cmp)", func(r storage.Row) []float64 { return []float64{r.ICP.Y, r.DesiredICP.Y, r.CMP.Y} }},
		{"icp error (m)", func(r storage.Row) []float64 { return []float64{r.ICP.Sub(r.DesiredICP).Norm()} }},
	}

	for _, s := range series {
		var data [][]float64
		for _, r := range rows {
			vals := s.pick(r)
			if data == nil {
				data = make([][]float64, len(vals))
			}
			for i, v := range vals {
				data[i] = append(data[i], v)
			}
		}

		graph := asciigraph.PlotMany(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.SeriesColors(asciigraph.Default, asciigraph.Green, asciigraph.Yellow),
			asciigraph.Caption(s.caption),
		)
		fmt.Println(graph)
		fmt.Println()
	}

	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func exportPlot(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	rows, err := st.LoadTrace(runID)
	if err != nil {
		return err
	}
	files, err := export.SavePlots(plotDir, runID, plotFormat, rows)
	if err != nil {
		return err
	}
	for _, f := range files {
		fmt.Println(f)
	}
	return nil
}

func writeScenario(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	if steps > 0 {
		cfg.Walk.Steps = steps
	}
	if stepLength > 0 {
		cfg.Walk.StepLength = stepLength
	}

	sc := scenario.StraightWalk(cfg)
	if err := scenario.SaveScenario(args[0], sc); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%d steps)\n", args[0], len(sc.Steps))
	return nil
}

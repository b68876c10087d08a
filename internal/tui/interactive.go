package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/golang/geo/r2"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/legbalance/internal/config"
	"github.com/san-kum/legbalance/internal/control"
	"github.com/san-kum/legbalance/internal/experiment"
	"github.com/san-kum/legbalance/internal/legged"
	"github.com/san-kum/legbalance/internal/metrics"
	"github.com/san-kum/legbalance/internal/scenario"
	"github.com/san-kum/legbalance/internal/sim"
)

var (
	cyan    = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	white   = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dim     = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	dimmer  = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	green   = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	yellow  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	magenta = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
	red     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

var presetInfo = map[string]string{
	"walk":  "biped, four steps",
	"push":  "one step, lateral push",
	"stand": "standing, forward push",
	"crawl": "quadruped crawl",
}

// Capture point displacement applied by the arrow keys.
const pushStep = 0.03

const frameTime = 16 * time.Millisecond

type state int

const (
	stateMenu state = iota
	stateConfig
	stateSim
)

type model struct {
	state    state
	cursor   int
	presets  []string
	selected string

	params      map[string]float64
	paramNames  []string
	paramCursor int
	editing     bool
	editBuf     string

	cfg       *config.Config
	simulator *sim.Simulator
	session   *sim.Session
	last      sim.Sample
	hasSample bool
	err       error

	running       bool
	paused        bool
	speed         float64
	adjust        bool
	keepInside    bool
	angular       bool
	adjustedTicks int
	degradedTicks int
	history       []float64
	view          *groundView
	lastFrame     time.Time
	fps           float64

	width  int
	height int
}

func NewInteractiveApp() *model {
	return &model{
		state:      stateMenu,
		presets:    config.ListPresets(),
		params:     make(map[string]float64),
		paramNames: []string{"steps", "step_length", "swing", "transfer", "push_time", "push_x", "push_y"},
		speed:      1.0,
		history:    make([]float64, 0, historySize),
		width:      80,
		height:     24,
	}
}

func (m model) Init() tea.Cmd { return nil }

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(frameTime, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tickMsg:
		if m.state != stateSim {
			return m, nil
		}
		if m.running && !m.paused && m.session != nil {
			now := time.Now()
			if !m.lastFrame.IsZero() {
				if dt := now.Sub(m.lastFrame).Seconds(); dt > 0 {
					m.fps = 1.0 / dt
				}
			}
			m.lastFrame = now
			for i := 0; i < m.ticksPerFrame(); i++ {
				if !m.step() {
					m.paused = true
					break
				}
			}
		}
		if m.running && m.state == stateSim {
			return m, tick()
		}
		return m, nil
	}
	return m, nil
}

func (m model) ticksPerFrame() int {
	n := int(m.speed*frameTime.Seconds()/m.cfg.Dt + 0.5)
	if n < 1 {
		n = 1
	}
	return n
}

func (m model) handleKey(msg tea.KeyMsg) (model, tea.Cmd) {
	switch m.state {
	case stateMenu:
		return m.menuKey(msg)
	case stateConfig:
		return m.configKey(msg)
	case stateSim:
		return m.simKey(msg)
	}
	return m, nil
}

func (m model) menuKey(msg tea.KeyMsg) (model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.presets)-1 {
			m.cursor++
		}
	case "enter", " ":
		m.selectPreset(m.presets[m.cursor])
		m.state = stateConfig
		m.paramCursor = 0
	}
	return m, nil
}

func (m model) configKey(msg tea.KeyMsg) (model, tea.Cmd) {
	if m.editing {
		switch msg.String() {
		case "enter":
			var val float64
			fmt.Sscanf(m.editBuf, "%f", &val)
			m.params[m.paramNames[m.paramCursor]] = val
			m.editing = false
			m.editBuf = ""
		case "esc":
			m.editing = false
			m.editBuf = ""
		case "backspace":
			if len(m.editBuf) > 0 {
				m.editBuf = m.editBuf[:len(m.editBuf)-1]
			}
		default:
			if len(msg.String()) == 1 {
				c := msg.String()[0]
				if (c >= '0' && c <= '9') || c == '.' || c == '-' {
					m.editBuf += string(c)
				}
			}
		}
		return m, nil
	}

	name := m.paramNames[m.paramCursor]
	switch msg.String() {
	case "q", "esc":
		m.state = stateMenu
		m.err = nil
	case "up", "k":
		if m.paramCursor > 0 {
			m.paramCursor--
		}
	case "down", "j":
		if m.paramCursor < len(m.paramNames)-1 {
			m.paramCursor++
		}
	case "enter", " ":
		m.editing = true
		m.editBuf = fmt.Sprintf("%.2f", m.params[name])
	case "s":
		if err := m.start(); err != nil {
			m.err = err
			return m, nil
		}
		m.state = stateSim
		return m, tea.Batch(tea.ClearScreen, tick())
	case "left", "h":
		m.params[name] -= paramStep(name)
		if name != "push_x" && name != "push_y" {
			m.params[name] = math.Max(0, m.params[name])
		}
	case "right", "l":
		m.params[name] += paramStep(name)
	}
	return m, nil
}

func paramStep(name string) float64 {
	switch name {
	case "steps":
		return 1
	case "push_x", "push_y":
		return 0.01
	}
	return 0.1
}

func (m model) simKey(msg tea.KeyMsg) (model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		m.stop()
		m.state = stateMenu
		return m, tea.ClearScreen
	case " ", "p":
		m.paused = !m.paused
	case "r":
		if err := m.start(); err != nil {
			m.err = err
			m.state = stateConfig
		}
		return m, tea.ClearScreen
	case "c":
		m.stop()
		m.state = stateConfig
		return m, tea.ClearScreen
	case "+", "=":
		m.speed = math.Min(m.speed*2, 16)
	case "-", "_":
		m.speed = math.Max(m.speed/2, 0.125)
	case "0":
		m.speed = 1.0
	case "up":
		m.push(r2.Point{X: pushStep})
	case "down":
		m.push(r2.Point{X: -pushStep})
	case "left":
		m.push(r2.Point{Y: pushStep})
	case "right":
		m.push(r2.Point{Y: -pushStep})
	case "a":
		m.adjust = !m.adjust
		m.simulator.Controller().SetUseStepAdjustment(m.adjust)
	case "k":
		m.keepInside = !m.keepInside
		m.simulator.Controller().SetKeepInsidePolygon(m.keepInside)
	case "m":
		m.angular = !m.angular
		m.simulator.Controller().SetUseAngularMomentum(m.angular)
	case "x":
		m.simulator.Controller().RequestAbort()
	}
	return m, nil
}

// selectPreset loads the preset and seeds the editable parameters from it.
func (m *model) selectPreset(name string) {
	m.selected = name
	m.cfg = config.GetPreset(name)
	m.err = nil
	m.params["steps"] = float64(m.cfg.Walk.Steps)
	m.params["step_length"] = m.cfg.Walk.StepLength
	m.params["swing"] = m.cfg.Walk.SwingDuration
	m.params["transfer"] = m.cfg.Walk.TransferDuration
	m.params["push_time"], m.params["push_x"], m.params["push_y"] = 0, 0, 0
	if len(m.cfg.Pushes) > 0 {
		p := m.cfg.Pushes[0]
		m.params["push_time"], m.params["push_x"], m.params["push_y"] = p.Time, p.DeltaICP.X, p.DeltaICP.Y
	}
}

// configured applies the edited parameters to a fresh copy of the preset.
func (m *model) configured() *config.Config {
	cfg := config.GetPreset(m.selected)
	cfg.Walk.Steps = int(m.params["steps"] + 0.5)
	cfg.Walk.StepLength = m.params["step_length"]
	cfg.Walk.SwingDuration = m.params["swing"]
	cfg.Walk.TransferDuration = m.params["transfer"]
	cfg.Pushes = nil
	if d := (r2.Point{X: m.params["push_x"], Y: m.params["push_y"]}); d.Norm() > 0 {
		cfg.Pushes = []sim.Push{{Time: m.params["push_time"], DeltaICP: d}}
	}
	return cfg
}

func (m *model) start() error {
	cfg := m.configured()
	if err := cfg.Validate(); err != nil {
		return err
	}
	plan, err := scenario.StraightWalk(cfg).Footsteps()
	if err != nil {
		return err
	}
	s, x0, err := experiment.Build(cfg, plan, control.Collaborators{}, metrics.Default())
	if err != nil {
		return err
	}
	session, err := s.NewSession(x0, cfg.SimConfig())
	if err != nil {
		return err
	}

	m.cfg = cfg
	m.simulator = s
	m.session = session
	m.hasSample = false
	m.err = nil
	m.adjust = cfg.ICP.UseStepAdjustment
	m.keepInside = cfg.ICP.KeepInsidePolygon
	m.angular = cfg.ICP.UseAngularMomentum
	m.adjustedTicks, m.degradedTicks = 0, 0
	m.history = make([]float64, 0, historySize)
	m.view = newGroundView(m.canvasSize())
	m.speed = 1.0
	m.lastFrame = time.Time{}
	m.running = true
	m.paused = false
	return nil
}

func (m *model) stop() {
	m.running = false
	m.simulator = nil
	m.session = nil
	m.hasSample = false
	m.history = nil
}

func (m *model) step() bool {
	s, ok := m.session.Step()
	if !ok {
		if err := m.session.Err(); err != nil {
			m.err = err
		}
		return false
	}
	m.last = s
	m.hasSample = true
	if s.Output.Desired.FootstepWasAdjusted {
		m.adjustedTicks++
	}
	if s.Output.Status.Degraded {
		m.degradedTicks++
	}
	m.history = appendHistory(m.history, trackingError(s))
	return true
}

func (m *model) push(d r2.Point) {
	if m.session != nil {
		m.session.Push(d)
	}
}

func (m model) canvasSize() (int, int) {
	cw := m.width - 6
	ch := m.height - 18
	if cw < 50 {
		cw = 50
	}
	if ch < 10 {
		ch = 10
	}
	return cw, ch
}

func (m model) View() string {
	switch m.state {
	case stateMenu:
		return m.viewMenu()
	case stateConfig:
		return m.viewConfig()
	case stateSim:
		return m.viewSim()
	}
	return ""
}

func (m model) viewMenu() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(dimmer.Render("    ╺━━━━━━━━━━━━━━━━━━━━━━━━━━╸") + "\n")
	b.WriteString("         " + cyan.Render("l e g b a l a n c e") + "\n")
	b.WriteString(dimmer.Render("    ╺━━━━━━━━━━━━━━━━━━━━━━━━━━╸") + "\n")
	b.WriteString("\n")

	for i, name := range m.presets {
		desc := presetInfo[name]
		if i == m.cursor {
			b.WriteString("      " + cyan.Render("▸ ") + white.Render(fmt.Sprintf("%-10s", name)) + dim.Render(desc) + "\n")
		} else {
			b.WriteString("        " + dim.Render(fmt.Sprintf("%-10s", name)) + dimmer.Render(desc) + "\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(dim.Render("      ↑↓ select   enter configure   q quit") + "\n")

	return b.String()
}

func (m model) viewConfig() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString("      " + cyan.Render(m.selected) + "  " + dim.Render(presetInfo[m.selected]) + "\n")
	b.WriteString(dimmer.Render("      "+strings.Repeat("─", 30)) + "\n\n")

	for i, name := range m.paramNames {
		val := fmt.Sprintf("%8.3f", m.params[name])
		if m.editing && i == m.paramCursor {
			val = fmt.Sprintf("%8s", m.editBuf+"▋")
		}
		if i == m.paramCursor {
			b.WriteString("      " + cyan.Render("▸ ") + white.Render(fmt.Sprintf("%-12s", name)) + magenta.Render(val) + "\n")
		} else {
			b.WriteString("        " + dim.Render(fmt.Sprintf("%-12s", name)) + dim.Render(val) + "\n")
		}
	}

	if m.err != nil {
		b.WriteString("\n      " + red.Render(m.err.Error()) + "\n")
	}

	b.WriteString("\n")
	b.WriteString(dim.Render("      ↑↓ select  ←→ adjust  enter edit  s start  esc back") + "\n")

	return b.String()
}

func (m model) viewSim() string {
	var b strings.Builder

	statusIcon := green.Render("●")
	statusText := green.Render("running")
	if m.paused {
		statusIcon = yellow.Render("○")
		statusText = yellow.Render("paused")
	}
	if m.err != nil {
		statusIcon = red.Render("●")
		statusText = red.Render(m.err.Error())
	}
	b.WriteString(fmt.Sprintf("\n   %s %s  %s\n", statusIcon, cyan.Render(m.selected), statusText))

	now, duration := 0.0, m.cfg.Duration
	if m.session != nil {
		now = m.session.Time()
	}
	progress := math.Min(now/duration, 1)
	barWidth := 36
	filled := int(progress * float64(barWidth))
	timeStr := fmt.Sprintf("%.2fs/%.1fs  x%.3g", now, duration, m.speed)
	bar := cyan.Render(strings.Repeat("━", filled)) + dimmer.Render(strings.Repeat("─", barWidth-filled))
	b.WriteString(fmt.Sprintf("   %s %s  %s\n\n", bar, dim.Render(timeStr), dim.Render(fmt.Sprintf("%.0ffps", m.fps))))

	if m.hasSample && m.view != nil {
		m.view.draw(m.last.Output)
		for _, row := range m.view.rows() {
			b.WriteString("   " + row + "\n")
		}
		b.WriteString("\n" + m.statusLine() + "\n")
	}

	if len(m.history) > 1 {
		b.WriteString(asciigraph.Plot(m.history,
			asciigraph.Height(5),
			asciigraph.Width(48),
			asciigraph.Offset(5),
			asciigraph.Caption("icp error (m)")))
		b.WriteString("\n")
	}

	b.WriteString("\n" + dim.Render("   @ com  o desired  x icp  + cmp  F step goal") + "\n")
	b.WriteString(dim.Render("   space pause  ±speed  arrows push  a adjust  k keep-inside  m angular  x abort  r reset  c config  q quit") + "\n")

	return b.String()
}

func (m model) statusLine() string {
	out := m.last.Output
	var sb strings.Builder
	sb.WriteString("   " + dim.Render("mode=") + white.Render(out.Mode.String()))
	sb.WriteString("  " + dim.Render("phase=") + white.Render(out.Phase.String()))
	if out.SwingLimb != legged.NoLimb {
		sb.WriteString("  " + dim.Render("swing=") + magenta.Render(out.SwingLimb.String()))
	}
	sb.WriteString("  " + dim.Render("plan=") + white.Render(fmt.Sprintf("%d", m.simulator.Controller().PlannedSteps())))
	sb.WriteString("  " + flag("adj", m.adjust) + " " + flag("keep", m.keepInside) + " " + flag("ang", m.angular))
	if out.Desired.FootstepWasAdjusted {
		sb.WriteString("  " + yellow.Render("ADJUSTED"))
	}
	if out.Status.Degraded {
		sb.WriteString("  " + red.Render("DEGRADED"))
	}
	if out.Mode == control.ModeSafetyStop {
		sb.WriteString("  " + red.Render("SAFETY STOP"))
	}
	sb.WriteString(fmt.Sprintf("\n   %s%d  %s%d", dim.Render("adjusted ticks="), m.adjustedTicks, dim.Render("degraded ticks="), m.degradedTicks))
	return sb.String()
}

func flag(name string, on bool) string {
	if on {
		return green.Render(name)
	}
	return dimmer.Render(name)
}

// RunInteractive opens the app on the preset menu, or straight into a run of
// preset when one is named.
func RunInteractive(preset string) error {
	m := NewInteractiveApp()
	var cmd tea.Cmd
	if preset != "" {
		if config.GetPreset(preset) == nil {
			return fmt.Errorf("unknown preset: %s", preset)
		}
		m.selectPreset(preset)
		if err := m.start(); err != nil {
			return err
		}
		m.state = stateSim
		cmd = tick()
	}
	p := tea.NewProgram(starter{model: *m, cmd: cmd}, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// starter issues the first tick when the app opens mid-run.
type starter struct {
	model
	cmd tea.Cmd
}

func (s starter) Init() tea.Cmd { return s.cmd }

package teleop

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ayusman/porter/internal/pilot"
)

// Robot is the slice of the pilot the TUI drives.
type Robot interface {
	EngageAuto() error
	SetManual() error
	ManualDrive(left, right float64) error
	SetDetectionEnabled(enabled bool)
	DetectionEnabled() bool
	Snapshot() pilot.Snapshot
}

const (
	snapshotInterval = 250 * time.Millisecond // ~4 Hz
	maxLogLines      = 500
)

// snapMsg carries a fresh pilot snapshot.
type snapMsg struct{ snap pilot.Snapshot }

// modeResultMsg reports the outcome of a mode switch.
type modeResultMsg struct {
	target string
	err    error
}

var (
	statusStyle = lipgloss.NewStyle().Bold(true)
	modeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// TUI is the interactive driving console.
type TUI struct {
	robot  Robot
	manual *Manual
}

// NewTUI creates a TUI over the given robot and manual controller.
func NewTUI(robot Robot, manual *Manual) *TUI {
	return &TUI{robot: robot, manual: manual}
}

// Run starts the bubbletea program and blocks until the operator quits.
func (t *TUI) Run() error {
	m := newDriveModel(t.robot, t.manual)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

type driveModel struct {
	robot  Robot
	manual *Manual
	vp     viewport.Model
	logs   []string
	snap   pilot.Snapshot
	width  int
	height int
}

func newDriveModel(robot Robot, manual *Manual) driveModel {
	return driveModel{
		robot:  robot,
		manual: manual,
		vp:     viewport.New(0, 0),
	}
}

func (m driveModel) Init() tea.Cmd {
	return m.scheduleSnapshot()
}

func (m driveModel) scheduleSnapshot() tea.Cmd {
	return tea.Tick(snapshotInterval, func(time.Time) tea.Msg {
		return snapMsg{snap: m.robot.Snapshot()}
	})
}

func (m driveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.vp.Width = msg.Width
		h := msg.Height - lipgloss.Height(m.renderStatus()) - lipgloss.Height(m.renderHelp()) - 2
		if h < 1 {
			h = 1
		}
		m.vp.Height = h
		m.refreshViewport()

	case snapMsg:
		m.snap = msg.snap
		return m, m.scheduleSnapshot()

	case modeResultMsg:
		if msg.err != nil {
			m = m.log(errStyle.Render(fmt.Sprintf("%s failed: %v", msg.target, msg.err)))
		} else {
			m = m.log(fmt.Sprintf("switched to %s", msg.target))
		}

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m driveModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	// Digit keys set the base speed directly.
	if len(key) == 1 && key[0] >= '0' && key[0] <= '9' {
		m.manual.SetSpeedLevel(int(key[0] - '0'))
		return m.drive()
	}

	switch key {
	case "q", "ctrl+c":
		m.manual.Stop()
		m.robot.SetManual()
		return m, tea.Quit
	case "w":
		m.manual.Forward()
		return m.drive()
	case "s":
		m.manual.Reverse()
		return m.drive()
	case "a":
		m.manual.TurnLeft()
		return m.drive()
	case "d":
		m.manual.TurnRight()
		return m.drive()
	case " ":
		m.manual.Stop()
		return m.drive()
	case "+", "=":
		m.manual.SpeedUp()
		return m.drive()
	case "-":
		m.manual.SpeedDown()
		return m.drive()
	case "o":
		robot := m.robot
		return m, func() tea.Msg {
			return modeResultMsg{target: "auto", err: robot.EngageAuto()}
		}
	case "m":
		robot := m.robot
		return m, func() tea.Msg {
			return modeResultMsg{target: "manual", err: robot.SetManual()}
		}
	case "c":
		enabled := !m.robot.DetectionEnabled()
		m.robot.SetDetectionEnabled(enabled)
		if enabled {
			m = m.log("detection enabled")
		} else {
			m = m.log("detection disabled")
		}
		return m, nil
	}
	return m, nil
}

// drive pushes the current manual command to the robot.
func (m driveModel) drive() (tea.Model, tea.Cmd) {
	left, right := m.manual.Command()
	if err := m.robot.ManualDrive(left, right); err != nil {
		m = m.log(errStyle.Render(fmt.Sprintf("drive rejected: %v", err)))
		return m, nil
	}
	m = m.log(fmt.Sprintf("drive left=%.2f right=%.2f", left, right))
	return m, nil
}

func (m driveModel) log(line string) driveModel {
	stamp := dimStyle.Render(time.Now().Format("15:04:05"))
	m.logs = append(m.logs, fmt.Sprintf("%s %s", stamp, line))
	if len(m.logs) > maxLogLines {
		m.logs = m.logs[len(m.logs)-maxLogLines:]
	}
	m.refreshViewport()
	return m
}

func (m *driveModel) refreshViewport() {
	m.vp.SetContent(strings.Join(m.logs, "\n"))
	m.vp.GotoBottom()
}

func (m driveModel) View() string {
	divider := strings.Repeat("─", m.width)
	sections := []string{
		m.renderStatus(),
		divider,
		m.vp.View(),
		divider,
		m.renderHelp(),
	}
	return strings.Join(sections, "\n")
}

func (m driveModel) renderStatus() string {
	snap := m.snap

	parts := []string{
		statusStyle.Render("PORTER"),
		fmt.Sprintf("mode=%s", modeStyle.Render(snap.Mode)),
		fmt.Sprintf("speed=%.1f", m.manual.Speed()),
		fmt.Sprintf("wheels=(%.2f, %.2f)", snap.Left, snap.Right),
	}
	if snap.TargetPayload != "" {
		parts = append(parts, fmt.Sprintf("target=%s@%.0fcm", snap.TargetPayload, snap.TargetDistanceCM))
	}
	if snap.ObstacleCM > 0 {
		parts = append(parts, fmt.Sprintf("obstacle=%.0fcm", snap.ObstacleCM))
	}
	if snap.Tag != "" {
		parts = append(parts, dimStyle.Render(snap.Tag))
	}
	detection := "detection=on"
	if !m.robot.DetectionEnabled() {
		detection = errStyle.Render("detection=off")
	}
	parts = append(parts, detection)

	return strings.Join(parts, "  ")
}

func (m driveModel) renderHelp() string {
	return dimStyle.Render("w/s/a/d drive | space stop | +/- speed | 0-9 set speed | o auto | m manual | c detection | q quit")
}

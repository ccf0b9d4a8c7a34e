package teleop

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ayusman/porter/internal/config"
	"github.com/ayusman/porter/internal/pilot"
)

// fakeRobot records calls made by the TUI.
type fakeRobot struct {
	drives    [][2]float64
	driveErr  error
	engages   int
	manuals   int
	detection bool
	snap      pilot.Snapshot
}

func (f *fakeRobot) EngageAuto() error { f.engages++; return nil }
func (f *fakeRobot) SetManual() error  { f.manuals++; return nil }
func (f *fakeRobot) ManualDrive(left, right float64) error {
	if f.driveErr != nil {
		return f.driveErr
	}
	f.drives = append(f.drives, [2]float64{left, right})
	return nil
}
func (f *fakeRobot) SetDetectionEnabled(enabled bool) { f.detection = enabled }
func (f *fakeRobot) DetectionEnabled() bool           { return f.detection }
func (f *fakeRobot) Snapshot() pilot.Snapshot         { return f.snap }

func newTestModel() (driveModel, *fakeRobot) {
	robot := &fakeRobot{detection: true}
	manual := NewManual(config.TeleopConfig{
		StartSpeed: 0.4,
		Step:       0.1,
		AutoLimit:  1.0,
	})
	return newDriveModel(robot, manual), robot
}

func key(s string) tea.KeyMsg {
	if s == " " {
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestDriveModel_ForwardKeyDrives(t *testing.T) {
	m, robot := newTestModel()

	m.Update(key("w"))

	if len(robot.drives) != 1 {
		t.Fatalf("expected 1 drive command, got %d", len(robot.drives))
	}
	if robot.drives[0] != [2]float64{0.4, 0.4} {
		t.Errorf("drive = %v, want (0.4, 0.4)", robot.drives[0])
	}
}

func TestDriveModel_SpaceStops(t *testing.T) {
	m, robot := newTestModel()

	next, _ := m.Update(key("w"))
	next, _ = next.Update(key(" "))
	_ = next

	last := robot.drives[len(robot.drives)-1]
	if last != [2]float64{0, 0} {
		t.Errorf("last drive = %v, want (0, 0)", last)
	}
}

func TestDriveModel_TurnBiasesWheels(t *testing.T) {
	m, robot := newTestModel()

	next, _ := m.Update(key("w"))
	next, _ = next.Update(key("d"))
	_ = next

	last := robot.drives[len(robot.drives)-1]
	if last[0] <= last[1] {
		t.Errorf("drive = %v, want a right turn (left > right)", last)
	}
}

func TestDriveModel_DigitSetsSpeed(t *testing.T) {
	m, robot := newTestModel()

	next, _ := m.Update(key("7"))
	next, _ = next.Update(key("w"))
	_ = next

	last := robot.drives[len(robot.drives)-1]
	if !approx(last[0], 0.7) || !approx(last[1], 0.7) {
		t.Errorf("drive = %v, want (0.7, 0.7)", last)
	}
}

func TestDriveModel_EngageAutoKey(t *testing.T) {
	m, robot := newTestModel()

	_, cmd := m.Update(key("o"))
	if cmd == nil {
		t.Fatal("expected a command from the auto key")
	}

	msg := cmd()
	result, ok := msg.(modeResultMsg)
	if !ok {
		t.Fatalf("expected modeResultMsg, got %T", msg)
	}
	if result.err != nil {
		t.Errorf("unexpected error: %v", result.err)
	}
	if robot.engages != 1 {
		t.Errorf("EngageAuto called %d times, want 1", robot.engages)
	}
}

func TestDriveModel_ManualKey(t *testing.T) {
	m, robot := newTestModel()

	_, cmd := m.Update(key("m"))
	if cmd == nil {
		t.Fatal("expected a command from the manual key")
	}
	cmd()

	if robot.manuals != 1 {
		t.Errorf("SetManual called %d times, want 1", robot.manuals)
	}
}

func TestDriveModel_DetectionToggle(t *testing.T) {
	m, robot := newTestModel()

	m.Update(key("c"))

	if robot.detection {
		t.Error("detection should be toggled off")
	}
}

func TestDriveModel_DriveRejectionLogged(t *testing.T) {
	m, robot := newTestModel()
	robot.driveErr = errors.New("wrong mode")

	next, _ := m.Update(key("w"))
	dm := next.(driveModel)

	if len(dm.logs) == 0 {
		t.Fatal("expected a log line for the rejected drive")
	}
	if !strings.Contains(dm.logs[len(dm.logs)-1], "rejected") {
		t.Errorf("log = %q, want a rejection entry", dm.logs[len(dm.logs)-1])
	}
}

func TestDriveModel_SnapshotUpdatesStatus(t *testing.T) {
	m, _ := newTestModel()

	next, cmd := m.Update(snapMsg{snap: pilot.Snapshot{
		Mode:             "auto",
		TargetPayload:    "dock-1",
		TargetDistanceCM: 60,
	}})
	if cmd == nil {
		t.Error("expected the snapshot tick to reschedule")
	}

	dm := next.(driveModel)
	status := dm.renderStatus()
	if !strings.Contains(status, "dock-1") {
		t.Errorf("status %q does not mention the target", status)
	}
}

func TestDriveModel_QuitReturnsToManual(t *testing.T) {
	m, robot := newTestModel()

	_, cmd := m.Update(key("q"))
	if cmd == nil {
		t.Fatal("expected tea.Quit from the quit key")
	}

	if robot.manuals != 1 {
		t.Errorf("SetManual called %d times on quit, want 1", robot.manuals)
	}
}

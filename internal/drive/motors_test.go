package drive

import (
	"testing"

	"github.com/ayusman/porter/internal/hw/gpio"
)

var (
	testLeft  = Side{Fwd: 16, Rev: 19}
	testRight = Side{Fwd: 20, Rev: 21}
)

func newTestBridge(t *testing.T) (*HBridge, *gpio.MockDriver) {
	t.Helper()
	drv := gpio.NewMockDriver()
	h, err := NewHBridge(drv, testLeft, testRight)
	if err != nil {
		t.Fatalf("NewHBridge failed: %v", err)
	}
	return h, drv
}

func TestHBridge_Forward(t *testing.T) {
	h, drv := newTestBridge(t)

	if err := h.Set(0.5, 0.5); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	for _, side := range []Side{testLeft, testRight} {
		if got := drv.Duty(side.Fwd); got != 50 {
			t.Errorf("forward pin %d duty = %v, want 50", side.Fwd, got)
		}
		if got := drv.Duty(side.Rev); got != 0 {
			t.Errorf("reverse pin %d duty = %v, want 0", side.Rev, got)
		}
	}
}

func TestHBridge_Reverse(t *testing.T) {
	h, drv := newTestBridge(t)

	if err := h.Set(-0.8, 0.3); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if got := drv.Duty(testLeft.Rev); got != 80 {
		t.Errorf("left reverse duty = %v, want 80", got)
	}
	if got := drv.Duty(testLeft.Fwd); got != 0 {
		t.Errorf("left forward duty = %v, want 0", got)
	}
	if got := drv.Duty(testRight.Fwd); got != 30 {
		t.Errorf("right forward duty = %v, want 30", got)
	}
	if got := drv.Duty(testRight.Rev); got != 0 {
		t.Errorf("right reverse duty = %v, want 0", got)
	}
}

func TestHBridge_DutyCapped(t *testing.T) {
	h, drv := newTestBridge(t)

	if err := h.Set(1.7, -2.4); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if got := drv.Duty(testLeft.Fwd); got != 100 {
		t.Errorf("left forward duty = %v, want cap at 100", got)
	}
	if got := drv.Duty(testRight.Rev); got != 100 {
		t.Errorf("right reverse duty = %v, want cap at 100", got)
	}
}

func TestHBridge_Stop(t *testing.T) {
	h, drv := newTestBridge(t)

	if err := h.Set(0.6, -0.6); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := h.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	for _, pin := range []int{testLeft.Fwd, testLeft.Rev, testRight.Fwd, testRight.Rev} {
		if got := drv.Duty(pin); got != 0 {
			t.Errorf("pin %d duty = %v after Stop, want 0", pin, got)
		}
	}
}

func TestHBridge_DirectionSwap_NoOverlap(t *testing.T) {
	h, drv := newTestBridge(t)

	// Flip direction repeatedly: the opposing pin must always be
	// driven to zero before the active pin gets its duty.
	if err := h.Set(0.4, 0.4); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := h.Set(-0.4, -0.4); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if got := drv.Duty(testLeft.Fwd); got != 0 {
		t.Errorf("left forward duty = %v after reversal, want 0", got)
	}
	if got := drv.Duty(testLeft.Rev); got != 40 {
		t.Errorf("left reverse duty = %v after reversal, want 40", got)
	}
}

func TestMockMotors_Records(t *testing.T) {
	m := NewMockMotors()

	if err := m.Set(0.3, 0.5); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := m.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	cmds := m.Commands()
	if len(cmds) != 2 {
		t.Fatalf("len(Commands()) = %d, want 2", len(cmds))
	}
	if cmds[0] != (Command{Left: 0.3, Right: 0.5}) {
		t.Errorf("first command = %+v", cmds[0])
	}
	if m.Last() != (Command{}) {
		t.Errorf("Last() = %+v, want zero command", m.Last())
	}
	if m.Stops() != 1 {
		t.Errorf("Stops() = %d, want 1", m.Stops())
	}
}

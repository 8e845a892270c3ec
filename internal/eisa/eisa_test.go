package eisa

import (
	"testing"

	"github.com/tinyrange/jazz/internal/irq"
	"github.com/tinyrange/jazz/internal/mmio"
)

const testBase irq.Vector = 0x68

func newTestController() (*Controller, *mmio.MemPort) {
	mem := mmio.NewMemPort(0x4d4)
	return NewController(testBase, mem), mem
}

func TestControllerInitialState(t *testing.T) {
	c, mem := newTestController()

	if got := mem.Read8(primaryMaskPort); got != 0xfb {
		t.Fatalf("primary mask: got 0x%02x, want 0xfb", got)
	}
	if got := mem.Read8(secondaryMaskPort); got != 0xff {
		t.Fatalf("secondary mask: got 0x%02x, want 0xff", got)
	}
	if got := mem.Read8(primaryTriggerPort); got != 0 {
		t.Fatalf("primary trigger: got 0x%02x, want 0", got)
	}
	if got := mem.Read8(secondaryTriggerPort); got != 0 {
		t.Fatalf("secondary trigger: got 0x%02x, want 0", got)
	}

	// The cascade input is open from the start.
	if !c.LineEnabled(testBase + cascadeLine) {
		t.Fatalf("cascade input starts masked")
	}
	if c.LineEnabled(testBase + 4) {
		t.Fatalf("device line starts open")
	}
}

func TestEnableLatchedLine(t *testing.T) {
	c, mem := newTestController()

	if err := c.EnableInterrupt(testBase+4, irq.Latched); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if got := mem.Read8(primaryMaskPort); got != 0xfb&^(1<<4) {
		t.Fatalf("primary mask: got 0x%02x", got)
	}
	if got := mem.Read8(primaryTriggerPort); got != 0 {
		t.Fatalf("latched enable set a trigger bit: 0x%02x", got)
	}
	if !c.LineEnabled(testBase + 4) {
		t.Fatalf("line not reported enabled")
	}
}

func TestEnableLevelSensitiveLine(t *testing.T) {
	c, mem := newTestController()

	if err := c.EnableInterrupt(testBase+5, irq.LevelSensitive); err != nil {
		t.Fatalf("enable primary: %v", err)
	}
	if got := mem.Read8(primaryTriggerPort); got != 1<<5 {
		t.Fatalf("primary trigger: got 0x%02x, want 0x%02x", got, 1<<5)
	}

	// Line 11 lives on the secondary chip.
	if err := c.EnableInterrupt(testBase+11, irq.LevelSensitive); err != nil {
		t.Fatalf("enable secondary: %v", err)
	}
	if got := mem.Read8(secondaryMaskPort); got != 0xff&^(1<<3) {
		t.Fatalf("secondary mask: got 0x%02x", got)
	}
	if got := mem.Read8(secondaryTriggerPort); got != 1<<3 {
		t.Fatalf("secondary trigger: got 0x%02x, want 0x%02x", got, 1<<3)
	}
	// The primary chip's registers are untouched by a secondary line.
	if got := mem.Read8(primaryMaskPort); got != 0xfb&^(1<<5) {
		t.Fatalf("primary mask disturbed: 0x%02x", got)
	}
}

func TestDisableKeepsTriggerSense(t *testing.T) {
	c, mem := newTestController()

	c.EnableInterrupt(testBase+5, irq.LevelSensitive)
	if err := c.DisableInterrupt(testBase + 5); err != nil {
		t.Fatalf("disable: %v", err)
	}

	if got := mem.Read8(primaryMaskPort); got != 0xfb {
		t.Fatalf("mask after disable: got 0x%02x, want 0xfb", got)
	}
	if got := mem.Read8(primaryTriggerPort); got != 1<<5 {
		t.Fatalf("disable cleared the trigger bit: 0x%02x", got)
	}
	// The mirror agrees with the write-only hardware.
	if got := c.Triggers(); got != ([2]uint8{1 << 5, 0}) {
		t.Fatalf("mirrored triggers: %+v", got)
	}
	if c.LineEnabled(testBase + 5) {
		t.Fatalf("line still reported enabled")
	}
}

func TestEdgeOnlyLinesStayEdge(t *testing.T) {
	c, mem := newTestController()

	for _, line := range []irq.Vector{0, 1, 8, 13} {
		if err := c.EnableInterrupt(testBase+line, irq.LevelSensitive); err != nil {
			t.Fatalf("enable line %d: %v", uint32(line), err)
		}
	}

	if got := mem.Read8(primaryTriggerPort); got != 0 {
		t.Fatalf("primary trigger: got 0x%02x, want 0", got)
	}
	if got := mem.Read8(secondaryTriggerPort); got != 0 {
		t.Fatalf("secondary trigger: got 0x%02x, want 0", got)
	}
	if got := c.Triggers(); got != ([2]uint8{}) {
		t.Fatalf("mirrored triggers: %+v", got)
	}
	// The lines themselves still open.
	if !c.LineEnabled(testBase+0) || !c.LineEnabled(testBase+13) {
		t.Fatalf("edge-only lines not enabled: masks %v", c.Masks())
	}
}

func TestCascadeLineRejected(t *testing.T) {
	c, mem := newTestController()

	if err := c.EnableInterrupt(testBase+cascadeLine, irq.Latched); err == nil {
		t.Fatalf("cascade enable accepted")
	}
	if err := c.DisableInterrupt(testBase + cascadeLine); err == nil {
		t.Fatalf("cascade disable accepted")
	}
	if got := mem.Read8(primaryMaskPort); got != 0xfb {
		t.Fatalf("cascade request changed the mask: 0x%02x", got)
	}
}

func TestVectorOutsideWindow(t *testing.T) {
	c, _ := newTestController()

	if err := c.EnableInterrupt(testBase-1, irq.Latched); err == nil {
		t.Fatalf("vector below window accepted")
	}
	if err := c.DisableInterrupt(testBase + 16); err == nil {
		t.Fatalf("vector past window accepted")
	}
	if c.LineEnabled(testBase + 16) {
		t.Fatalf("vector past window reported enabled")
	}
}

func TestControllerBehindGate(t *testing.T) {
	c, mem := newTestController()
	g := irq.NewGate(irq.GateConfig{
		DeviceVectorBase:     0x10,
		BuiltinSourceCount:   10,
		EnableRegisterOffset: 0x2,
		EisaVectorBase:       testBase,
		EisaVectorCount:      16,
		EisaDeviceLevel:      5,
	}, nil, irq.WithSecondary(c))

	if !g.Enable(testBase+9, 5, irq.LevelSensitive) {
		t.Fatalf("gate enable reported failure")
	}
	if !c.LineEnabled(testBase + 9) {
		t.Fatalf("gate enable did not reach the controller")
	}
	if got := mem.Read8(secondaryTriggerPort); got != 1<<1 {
		t.Fatalf("secondary trigger: got 0x%02x, want 0x%02x", got, 1<<1)
	}

	// Wrong level: the gate swallows the request before it gets here.
	g.Disable(testBase+9, 4)
	if !c.LineEnabled(testBase + 9) {
		t.Fatalf("guard mismatch reached the controller")
	}

	g.Disable(testBase+9, 5)
	if c.LineEnabled(testBase + 9) {
		t.Fatalf("gate disable did not reach the controller")
	}
}

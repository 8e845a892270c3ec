// Package eisa drives the expansion bus's interrupt controller: a
// cascaded 8259A pair plus the EISA edge/level control registers. It
// is the driver the interrupt gate delegates expansion-window
// enables and disables to.
package eisa

import (
	"fmt"
	"sync"

	"github.com/tinyrange/jazz/internal/irq"
	"github.com/tinyrange/jazz/internal/mmio"
)

// Register addresses inside the expansion bus's control space.
const (
	primaryMaskPort   = 0x21
	secondaryMaskPort = 0xa1

	primaryTriggerPort   = 0x4d0
	secondaryTriggerPort = 0x4d1

	cascadeLine = 2
	lineCount   = 16
)

// edgeOnlyLines have their trigger sense fixed by the board: timer,
// keyboard, the cascade input, the clock, and the coprocessor error
// line. Their trigger bits stay in edge mode whatever a caller asks
// for, which is what the hardware does with writes to those bits.
const edgeOnlyLines = 1<<0 | 1<<1 | 1<<cascadeLine | 1<<8 | 1<<13

// Controller programs the pair through a register port. The mask and
// trigger registers are write-only on this hardware, so the controller
// mirrors the last programmed values and always stores whole bytes.
type Controller struct {
	mu   sync.Mutex
	port mmio.Port
	base irq.Vector

	masks    [2]uint8
	triggers [2]uint8
}

// NewController builds a driver for the controller pair behind port,
// serving vectors base through base+15. Every line starts masked
// except the cascade input, which must stay open for the secondary
// chip to deliver at all; the initial state is programmed immediately.
func NewController(base irq.Vector, port mmio.Port) *Controller {
	c := &Controller{port: port, base: base}
	if c.port == nil {
		c.port = mmio.Discard()
	}
	c.masks[0] = 0xff &^ (1 << cascadeLine)
	c.masks[1] = 0xff
	c.storeMasks()
	c.storeTriggers()
	return c
}

func (c *Controller) line(vector irq.Vector) (uint32, error) {
	if vector < c.base || vector >= c.base+lineCount {
		return 0, fmt.Errorf("eisa: vector 0x%x outside window 0x%x..0x%x",
			uint32(vector), uint32(c.base), uint32(c.base+lineCount-1))
	}
	return uint32(vector - c.base), nil
}

func (c *Controller) storeMasks() {
	c.port.Write8(primaryMaskPort, c.masks[0])
	c.port.Write8(secondaryMaskPort, c.masks[1])
}

func (c *Controller) storeTriggers() {
	c.port.Write8(primaryTriggerPort, c.triggers[0])
	c.port.Write8(secondaryTriggerPort, c.triggers[1])
}

// EnableInterrupt opens the line for vector and programs its trigger
// sense: the trigger bit is set for level-sensitive sources and
// cleared for latched ones.
func (c *Controller) EnableInterrupt(vector irq.Vector, mode irq.Mode) error {
	line, err := c.line(vector)
	if err != nil {
		return err
	}
	if line == cascadeLine {
		return fmt.Errorf("eisa: line %d is the cascade input, not a device source", cascadeLine)
	}

	chip, bit := line/8, uint(line%8)

	c.mu.Lock()
	defer c.mu.Unlock()

	if mode == irq.LevelSensitive && edgeOnlyLines&(1<<line) == 0 {
		c.triggers[chip] |= 1 << bit
	} else {
		c.triggers[chip] &^= 1 << bit
	}
	if chip == 0 {
		c.port.Write8(primaryTriggerPort, c.triggers[0])
	} else {
		c.port.Write8(secondaryTriggerPort, c.triggers[1])
	}

	c.masks[chip] &^= 1 << bit
	if chip == 0 {
		c.port.Write8(primaryMaskPort, c.masks[0])
	} else {
		c.port.Write8(secondaryMaskPort, c.masks[1])
	}
	return nil
}

// DisableInterrupt masks the line for vector. Trigger sense is left
// alone; it only matters while the line is open.
func (c *Controller) DisableInterrupt(vector irq.Vector) error {
	line, err := c.line(vector)
	if err != nil {
		return err
	}
	if line == cascadeLine {
		return fmt.Errorf("eisa: line %d is the cascade input, not a device source", cascadeLine)
	}

	chip, bit := line/8, uint(line%8)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.masks[chip] |= 1 << bit
	if chip == 0 {
		c.port.Write8(primaryMaskPort, c.masks[0])
	} else {
		c.port.Write8(secondaryMaskPort, c.masks[1])
	}
	return nil
}

// LineEnabled reports whether the line for vector is currently open.
func (c *Controller) LineEnabled(vector irq.Vector) bool {
	line, err := c.line(vector)
	if err != nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.masks[line/8]&(1<<uint(line%8)) == 0
}

// Masks returns the mirrored mask registers (primary, secondary).
func (c *Controller) Masks() [2]uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.masks
}

// Triggers returns the mirrored trigger registers (primary, secondary).
func (c *Controller) Triggers() [2]uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.triggers
}

var _ irq.SecondaryController = (*Controller)(nil)

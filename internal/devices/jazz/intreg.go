// Package jazz models the Jazz-class interrupt register blocks, so the
// routing layer can be driven end to end in-process: the gate stores
// into these models exactly as it would into the hardware, and the
// models surface what a processor would see.
package jazz

import (
	"fmt"
	"sync"

	"github.com/tinyrange/jazz/internal/bus"
	"github.com/tinyrange/jazz/internal/irq"
)

// Register offsets in the local interrupt control block.
const (
	IntRegSource = 0x0 // pending source lines (RO)
	IntRegEnable = 0x2 // enable mask (WO from the processor side)

	IntRegSize = 0x4
)

// DeliverySink receives the vector of each interrupt the model lets
// through to the processor.
type DeliverySink interface {
	DeliverInterrupt(vector irq.Vector)
}

// DeliverySinkFunc adapts a function to the DeliverySink interface.
type DeliverySinkFunc func(vector irq.Vector)

func (f DeliverySinkFunc) DeliverInterrupt(vector irq.Vector) {
	if f != nil {
		f(vector)
	}
}

type noopDeliverySink struct{}

func (noopDeliverySink) DeliverInterrupt(irq.Vector) {}

// DeliverySinkDetached returns a DeliverySink that drops deliveries.
func DeliverySinkDetached() DeliverySink {
	return noopDeliverySink{}
}

type intRegStats struct {
	enableStores uint64
	deliveries   uint64
	masked       uint64
}

// IntReg is the local interrupt control block: a pending-source
// register and the 16-bit enable mask the gate mirrors. Source line i
// delivers vector vectorBase+1+i when its enable bit is set.
type IntReg struct {
	mu sync.Mutex

	base       uint64
	vectorBase irq.Vector

	source uint16
	enable uint16

	sink  DeliverySink
	stats intRegStats
}

// NewIntReg builds the block at base. Deliveries go to sink; the sink
// runs with the model locked and must not call back into it.
func NewIntReg(base uint64, vectorBase irq.Vector, sink DeliverySink) *IntReg {
	if sink == nil {
		sink = DeliverySinkDetached()
	}
	return &IntReg{base: base, vectorBase: vectorBase, sink: sink}
}

// SetSource drives one interrupt source line. A rising edge on an
// enabled line delivers immediately; on a masked line it only latches
// as pending.
func (r *IntReg) SetSource(line uint, high bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bit := uint16(1) << line
	if !high {
		r.source &^= bit
		return
	}
	if r.source&bit != 0 {
		return
	}
	r.source |= bit
	if r.enable&bit != 0 {
		r.stats.deliveries++
		r.sink.DeliverInterrupt(r.vectorBase + 1 + irq.Vector(line))
	} else {
		r.stats.masked++
	}
}

// WriteRegister implements bus.Handler. Storing the enable mask
// delivers any source that is pending and newly unmasked, the way the
// hardware re-evaluates its outputs on every mask change.
func (r *IntReg) WriteRegister(addr uint64, size int, value uint32) error {
	offset := addr - r.base

	switch offset {
	case IntRegEnable:
		if size != 2 {
			return fmt.Errorf("jazz: enable register takes 16-bit stores, got %d bytes", size)
		}
	case IntRegSource:
		return fmt.Errorf("jazz: source register is read-only")
	default:
		return fmt.Errorf("jazz: no register at offset 0x%x", offset)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	opened := uint16(value) &^ r.enable
	r.enable = uint16(value)
	r.stats.enableStores++

	for line := uint(0); line < 16; line++ {
		bit := uint16(1) << line
		if opened&bit != 0 && r.source&bit != 0 {
			r.stats.deliveries++
			r.sink.DeliverInterrupt(r.vectorBase + 1 + irq.Vector(line))
		}
	}
	return nil
}

// EnableMask returns the last stored enable mask.
func (r *IntReg) EnableMask() uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enable
}

// Source returns the pending source lines.
func (r *IntReg) Source() uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.source
}

// Base returns the block's bus address.
func (r *IntReg) Base() uint64 { return r.base }

func (r *IntReg) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fmt.Sprintf("intreg{source: 0x%04x, enable: 0x%04x, deliveries: %d, masked: %d}",
		r.source, r.enable, r.stats.deliveries, r.stats.masked)
}

var _ bus.Handler = (*IntReg)(nil)

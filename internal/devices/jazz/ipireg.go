package jazz

import (
	"fmt"
	"sync"

	"github.com/tinyrange/jazz/internal/bus"
)

// Register offsets in the inter-processor interrupt block.
const (
	IPIRegRequest = 0x0 // target processor mask (WO)

	IPIRegSize = 0x4
)

// ProcessorSink receives an interrupt assertion per targeted
// processor.
type ProcessorSink interface {
	InterruptProcessor(cpu uint32)
}

// ProcessorSinkFunc adapts a function to the ProcessorSink interface.
type ProcessorSinkFunc func(cpu uint32)

func (f ProcessorSinkFunc) InterruptProcessor(cpu uint32) {
	if f != nil {
		f(cpu)
	}
}

type noopProcessorSink struct{}

func (noopProcessorSink) InterruptProcessor(uint32) {}

// ProcessorSinkDetached returns a ProcessorSink that drops assertions.
func ProcessorSinkDetached() ProcessorSink {
	return noopProcessorSink{}
}

type ipiRegStats struct {
	requests  uint64
	delivered uint64
	ignored   uint64
}

// IPIReg is the Duo IP-interrupt request register. A store asserts an
// interrupt at every targeted processor before the store completes,
// and latches a per-processor pending bit until that processor
// acknowledges.
type IPIReg struct {
	mu sync.Mutex

	base       uint64
	processors uint32

	pending uint32

	sink  ProcessorSink
	stats ipiRegStats
}

// NewIPIReg builds the block at base for a machine with processors
// CPUs. Assertions go to sink, which runs with the model locked and
// must not call back into it.
func NewIPIReg(base uint64, processors uint32, sink ProcessorSink) *IPIReg {
	if sink == nil {
		sink = ProcessorSinkDetached()
	}
	return &IPIReg{base: base, processors: processors, sink: sink}
}

// WriteRegister implements bus.Handler. Target bits beyond the
// installed processors are dropped; that is the caller's error, not
// the register's.
func (r *IPIReg) WriteRegister(addr uint64, size int, value uint32) error {
	if offset := addr - r.base; offset != IPIRegRequest {
		return fmt.Errorf("jazz: no register at offset 0x%x", offset)
	}
	if size != 4 {
		return fmt.Errorf("jazz: request register takes 32-bit stores, got %d bytes", size)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.stats.requests++
	for cpu := uint32(0); cpu < 32; cpu++ {
		if value&(1<<cpu) == 0 {
			continue
		}
		if cpu >= r.processors {
			r.stats.ignored++
			continue
		}
		r.pending |= 1 << cpu
		r.stats.delivered++
		r.sink.InterruptProcessor(cpu)
	}
	return nil
}

// Pending reports whether cpu has an unacknowledged request.
func (r *IPIReg) Pending(cpu uint32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending&(1<<cpu) != 0
}

// Acknowledge clears cpu's pending request.
func (r *IPIReg) Acknowledge(cpu uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending &^= 1 << cpu
}

// Base returns the block's bus address.
func (r *IPIReg) Base() uint64 { return r.base }

func (r *IPIReg) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fmt.Sprintf("ipireg{pending: 0x%x, requests: %d, delivered: %d, ignored: %d}",
		r.pending, r.stats.requests, r.stats.delivered, r.stats.ignored)
}

var _ bus.Handler = (*IPIReg)(nil)

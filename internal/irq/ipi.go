package irq

import (
	"sync/atomic"

	"github.com/tinyrange/jazz/internal/mmio"
)

// IPI posts interrupt requests to other processors through the
// platform's request register.
type IPI struct {
	port     mmio.Port
	offset   uint64
	requests atomic.Uint64
}

// NewIPI builds a requester storing to the register at offset inside
// port. A nil port means the platform has no inter-processor interrupt
// hardware; requests on it do nothing.
func NewIPI(port mmio.Port, offset uint64) *IPI {
	return &IPI{port: port, offset: offset}
}

// Request posts an interrupt to every processor whose bit is set in
// targets. The store has completed at the request register by the time
// Request returns, so every target's controller observes it before the
// caller proceeds. targets is not validated against the installed
// processor set; an out-of-range bit is the caller's error.
func (p *IPI) Request(targets Affinity) {
	if p.port == nil {
		return
	}
	p.port.Write32(p.offset, uint32(targets))
	p.requests.Add(1)
}

// Requests returns how many posts have been issued.
func (p *IPI) Requests() uint64 {
	return p.requests.Load()
}

// Package bus wires register ports to the device models behind them:
// named register blocks are laid out in one address space and stores
// are dispatched to the covering block. Tests and tools use it to run
// the interrupt layer against in-process hardware.
package bus

import (
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/tinyrange/jazz/internal/mmio"
)

// Handler receives stores addressed into a register block. addr is
// absolute within the bus space, size the store width in bytes.
type Handler interface {
	WriteRegister(addr uint64, size int, value uint32) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(addr uint64, size int, value uint32) error

func (f HandlerFunc) WriteRegister(addr uint64, size int, value uint32) error {
	if f == nil {
		return nil
	}
	return f(addr, size, value)
}

type binding struct {
	name    string
	base    uint64
	size    uint64
	handler Handler
}

// Builder lays out register blocks before the bus is built.
type Builder struct {
	bindings []binding
	names    map[string]struct{}
}

func NewBuilder() *Builder {
	return &Builder{names: make(map[string]struct{})}
}

// Register adds a register block covering [base, base+size).
func (b *Builder) Register(name string, base, size uint64, handler Handler) error {
	if name == "" {
		return fmt.Errorf("bus: block name is empty")
	}
	if _, exists := b.names[name]; exists {
		return fmt.Errorf("bus: block %q already registered", name)
	}
	if handler == nil {
		return fmt.Errorf("bus: block %q has nil handler", name)
	}
	if size == 0 {
		return fmt.Errorf("bus: block %q at 0x%x has zero size", name, base)
	}
	if base+size < base {
		return fmt.Errorf("bus: block %q at 0x%x with size 0x%x overflows", name, base, size)
	}
	for _, existing := range b.bindings {
		if base < existing.base+existing.size && existing.base < base+size {
			return fmt.Errorf("bus: block %q 0x%x-0x%x overlaps %q 0x%x-0x%x",
				name, base, base+size-1, existing.name, existing.base, existing.base+existing.size-1)
		}
	}

	b.names[name] = struct{}{}
	b.bindings = append(b.bindings, binding{name: name, base: base, size: size, handler: handler})
	return nil
}

// Build finalizes the layout.
func (b *Builder) Build() (*Bus, error) {
	if len(b.bindings) == 0 {
		return nil, fmt.Errorf("bus: no register blocks")
	}

	bindings := make([]binding, len(b.bindings))
	copy(bindings, b.bindings)
	sort.Slice(bindings, func(i, j int) bool { return bindings[i].base < bindings[j].base })

	return &Bus{bindings: bindings}, nil
}

// Bus dispatches stores to the register block covering them.
type Bus struct {
	bindings []binding
	dropped  atomic.Uint64
}

// Write dispatches one store. The store must fall entirely inside one
// block.
func (c *Bus) Write(addr uint64, size int, value uint32) error {
	end := addr + uint64(size)
	if end < addr {
		return fmt.Errorf("bus: store overflow at 0x%x", addr)
	}

	for _, bind := range c.bindings {
		if addr >= bind.base && end <= bind.base+bind.size {
			return bind.handler.WriteRegister(addr, size, value)
		}
	}
	return fmt.Errorf("bus: no block covers 0x%x", addr)
}

// PortAt returns a register port whose offsets are relative to base
// and whose stores dispatch through the bus. Dispatch errors are
// dropped, matching what a posted store to an unclaimed address does
// on hardware; Dropped counts them.
func (c *Bus) PortAt(base uint64) mmio.Port {
	return busPort{bus: c, base: base}
}

// Dropped reports how many port stores failed to dispatch.
func (c *Bus) Dropped() uint64 {
	return c.dropped.Load()
}

// Blocks returns the registered block names in address order.
func (c *Bus) Blocks() []string {
	names := make([]string, len(c.bindings))
	for i, bind := range c.bindings {
		names[i] = bind.name
	}
	return names
}

type busPort struct {
	bus  *Bus
	base uint64
}

func (p busPort) store(addr uint64, size int, value uint32) {
	if err := p.bus.Write(addr, size, value); err != nil {
		p.bus.dropped.Add(1)
	}
}

func (p busPort) Write8(offset uint64, value uint8)   { p.store(p.base+offset, 1, uint32(value)) }
func (p busPort) Write16(offset uint64, value uint16) { p.store(p.base+offset, 2, uint32(value)) }
func (p busPort) Write32(offset uint64, value uint32) { p.store(p.base+offset, 4, value) }

var (
	_ Handler   = HandlerFunc(nil)
	_ mmio.Port = busPort{}
)

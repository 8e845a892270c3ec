// Package mmio provides write ports onto memory-mapped device registers.
//
// The interrupt plumbing in this module never reads the hardware it
// programs (enable state is mirrored in memory precisely so the hot
// path avoids register reads), so Port is write-only. Read accessors
// exist only on concrete implementations that back tests and tools.
package mmio

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrUnsupported is returned by OpenDevMem on platforms without
// /dev/mem.
var ErrUnsupported = errors.New("mmio: /dev/mem unsupported")

// Port issues ordered stores to a block of device registers. Offsets
// are byte offsets from the base of the block.
//
// A store has completed, not merely been posted, by the time the call
// returns: once Write32 returns, any observer of the underlying
// register (a device model on another goroutine, or the bus target of
// a real mapping) sees the new value. Implementations must not defer
// or buffer stores.
type Port interface {
	Write8(offset uint64, value uint8)
	Write16(offset uint64, value uint16)
	Write32(offset uint64, value uint32)
}

type discardPort struct{}

func (discardPort) Write8(uint64, uint8)   {}
func (discardPort) Write16(uint64, uint16) {}
func (discardPort) Write32(uint64, uint32) {}

// Discard returns a Port that drops all stores. It stands in wherever
// a register block is absent on the current configuration.
func Discard() Port {
	return discardPort{}
}

// WriteFunc adapts a function to the Port interface. The size argument
// is the store width in bytes (1, 2 or 4).
type WriteFunc func(offset uint64, size int, value uint32)

func (f WriteFunc) Write8(offset uint64, value uint8) {
	if f != nil {
		f(offset, 1, uint32(value))
	}
}

func (f WriteFunc) Write16(offset uint64, value uint16) {
	if f != nil {
		f(offset, 2, uint32(value))
	}
}

func (f WriteFunc) Write32(offset uint64, value uint32) {
	if f != nil {
		f(offset, 4, uint32(value))
	}
}

// MemPort is an in-memory register file. Stores land in atomic 32-bit
// cells, so a value is visible to every goroutine as soon as the write
// returns, the same completion contract a real uncached mapping gives.
// It also counts stores per register word, which lets tests assert not
// just the final value of a register but how it got there.
type MemPort struct {
	size   uint64
	words  []atomic.Uint32
	writes []atomic.Uint64
}

// NewMemPort builds a register file covering size bytes, rounded up to
// a whole number of 32-bit words.
func NewMemPort(size uint64) *MemPort {
	nwords := (size + 3) / 4
	return &MemPort{
		size:   nwords * 4,
		words:  make([]atomic.Uint32, nwords),
		writes: make([]atomic.Uint64, nwords),
	}
}

// Size returns the byte size of the register file.
func (p *MemPort) Size() uint64 { return p.size }

func (p *MemPort) check(offset uint64, width uint64) {
	if offset+width > p.size || offset%width != 0 {
		panic(fmt.Sprintf("mmio: %d-byte store outside register file: offset 0x%x, size 0x%x", width, offset, p.size))
	}
}

func (p *MemPort) Write8(offset uint64, value uint8) {
	p.check(offset, 1)
	word := &p.words[offset/4]
	shift := (offset % 4) * 8
	mask := uint32(0xff) << shift
	for {
		old := word.Load()
		next := (old &^ mask) | uint32(value)<<shift
		if word.CompareAndSwap(old, next) {
			break
		}
	}
	p.writes[offset/4].Add(1)
}

func (p *MemPort) Write16(offset uint64, value uint16) {
	p.check(offset, 2)
	word := &p.words[offset/4]
	shift := (offset % 4) * 8
	mask := uint32(0xffff) << shift
	for {
		old := word.Load()
		next := (old &^ mask) | uint32(value)<<shift
		if word.CompareAndSwap(old, next) {
			break
		}
	}
	p.writes[offset/4].Add(1)
}

func (p *MemPort) Write32(offset uint64, value uint32) {
	p.check(offset, 4)
	p.words[offset/4].Store(value)
	p.writes[offset/4].Add(1)
}

// Read8 returns the current value of the byte register at offset.
func (p *MemPort) Read8(offset uint64) uint8 {
	p.check(offset, 1)
	return uint8(p.words[offset/4].Load() >> ((offset % 4) * 8))
}

// Read16 returns the current value of the 16-bit register at offset.
func (p *MemPort) Read16(offset uint64) uint16 {
	p.check(offset, 2)
	return uint16(p.words[offset/4].Load() >> ((offset % 4) * 8))
}

// Read32 returns the current value of the 32-bit register at offset.
func (p *MemPort) Read32(offset uint64) uint32 {
	p.check(offset, 4)
	return p.words[offset/4].Load()
}

// Writes reports how many stores have touched the 32-bit word holding
// offset.
func (p *MemPort) Writes(offset uint64) uint64 {
	p.check(offset, 1)
	return p.writes[offset/4].Load()
}

var (
	_ Port = discardPort{}
	_ Port = WriteFunc(nil)
	_ Port = (*MemPort)(nil)
)

//go:build linux

package mmio

import (
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// DevMemPort maps a physical register block through /dev/mem and issues
// stores directly into the mapping. Each store is followed by a
// read-back of the word holding the register so the call does not
// return until the store has reached the device.
type DevMemPort struct {
	file *os.File
	mem  []byte
	base uint64
	size uint64
}

// OpenDevMem maps size bytes of physical address space starting at
// base. base must be page aligned and size a whole number of 32-bit
// words.
func OpenDevMem(base uint64, size uint64) (*DevMemPort, error) {
	pageSize := uint64(os.Getpagesize())
	if base%pageSize != 0 {
		return nil, fmt.Errorf("mmio: base 0x%x is not page aligned", base)
	}
	if size == 0 || size%4 != 0 {
		return nil, fmt.Errorf("mmio: size 0x%x is not a whole number of words", size)
	}

	f, err := os.OpenFile("/dev/mem", os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("mmio: open /dev/mem: %w", err)
	}

	mem, err := unix.Mmap(
		int(f.Fd()),
		int64(base),
		int(size),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_SHARED,
	)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmio: map 0x%x+0x%x: %w", base, size, err)
	}

	return &DevMemPort{file: f, mem: mem, base: base, size: size}, nil
}

func (p *DevMemPort) check(offset uint64, width uint64) {
	if offset+width > p.size || offset%width != 0 {
		panic(fmt.Sprintf("mmio: %d-byte store outside mapping: offset 0x%x, size 0x%x", width, offset, p.size))
	}
}

// readBack loads the word holding offset through sync/atomic, which
// the compiler cannot elide the way it may a plain unused load. The
// mapping is page aligned and a whole number of words, so the
// containing word is always inside it.
func (p *DevMemPort) readBack(offset uint64) {
	word := (*uint32)(unsafe.Pointer(&p.mem[offset&^3]))
	_ = atomic.LoadUint32(word)
}

func (p *DevMemPort) Write8(offset uint64, value uint8) {
	p.check(offset, 1)
	reg := (*uint8)(unsafe.Pointer(&p.mem[offset]))
	*reg = value
	p.readBack(offset)
}

func (p *DevMemPort) Write16(offset uint64, value uint16) {
	p.check(offset, 2)
	reg := (*uint16)(unsafe.Pointer(&p.mem[offset]))
	*reg = value
	p.readBack(offset)
}

func (p *DevMemPort) Write32(offset uint64, value uint32) {
	p.check(offset, 4)
	reg := (*uint32)(unsafe.Pointer(&p.mem[offset]))
	*reg = value
	p.readBack(offset)
}

// Close unmaps the register block.
func (p *DevMemPort) Close() error {
	if err := unix.Munmap(p.mem); err != nil {
		p.file.Close()
		return fmt.Errorf("mmio: unmap: %w", err)
	}
	return p.file.Close()
}

var _ Port = (*DevMemPort)(nil)

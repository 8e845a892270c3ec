//go:build !linux

package mmio

import "fmt"

// DevMemPort is only available on Linux.
type DevMemPort struct{}

// OpenDevMem always fails with ErrUnsupported on this platform.
func OpenDevMem(base uint64, size uint64) (*DevMemPort, error) {
	return nil, fmt.Errorf("mmio: map 0x%x+0x%x: %w", base, size, ErrUnsupported)
}

func (p *DevMemPort) Write8(offset uint64, value uint8)   {}
func (p *DevMemPort) Write16(offset uint64, value uint16) {}
func (p *DevMemPort) Write32(offset uint64, value uint32) {}

// Close is a no-op on this platform.
func (p *DevMemPort) Close() error { return nil }

var _ Port = (*DevMemPort)(nil)

package mmio

import "testing"

// Geometry is rejected before /dev/mem is touched, so these run
// without privileges.
func TestOpenDevMemRejectsBadGeometry(t *testing.T) {
	if _, err := OpenDevMem(0x1001, 0x1000); err == nil {
		t.Fatalf("unaligned base mapped")
	}
	if _, err := OpenDevMem(0, 0); err == nil {
		t.Fatalf("empty mapping accepted")
	}
	if _, err := OpenDevMem(0, 6); err == nil {
		t.Fatalf("partial-word mapping accepted")
	}
}

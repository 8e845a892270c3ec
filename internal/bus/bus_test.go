package bus

import (
	"strings"
	"testing"
)

type recordedStore struct {
	addr  uint64
	size  int
	value uint32
}

type recordingHandler struct {
	stores []recordedStore
}

func (h *recordingHandler) WriteRegister(addr uint64, size int, value uint32) error {
	h.stores = append(h.stores, recordedStore{addr, size, value})
	return nil
}

func TestBuilderValidation(t *testing.T) {
	cases := []struct {
		name     string
		register func(*Builder) error
		want     string
	}{
		{"empty name", func(b *Builder) error { return b.Register("", 0, 4, &recordingHandler{}) }, "name is empty"},
		{"nil handler", func(b *Builder) error { return b.Register("x", 0, 4, nil) }, "nil handler"},
		{"zero size", func(b *Builder) error { return b.Register("x", 0, 0, &recordingHandler{}) }, "zero size"},
		{"overflow", func(b *Builder) error { return b.Register("x", ^uint64(0), 2, &recordingHandler{}) }, "overflows"},
	}
	for _, c := range cases {
		err := c.register(NewBuilder())
		if err == nil || !strings.Contains(err.Error(), c.want) {
			t.Fatalf("%s: got %v, want %q", c.name, err, c.want)
		}
	}
}

func TestBuilderRejectsOverlap(t *testing.T) {
	b := NewBuilder()
	if err := b.Register("low", 0x100, 0x10, &recordingHandler{}); err != nil {
		t.Fatalf("register low: %v", err)
	}
	if err := b.Register("high", 0x108, 0x10, &recordingHandler{}); err == nil {
		t.Fatalf("overlapping block accepted")
	}
	// Adjacent is fine.
	if err := b.Register("adjacent", 0x110, 0x10, &recordingHandler{}); err != nil {
		t.Fatalf("register adjacent: %v", err)
	}
	if err := b.Register("low", 0x200, 0x10, &recordingHandler{}); err == nil || !strings.Contains(err.Error(), "already registered") {
		t.Fatalf("duplicate name: got %v", err)
	}
	// The rejected duplicate must not shadow later names.
	if err := b.Register("low2", 0x200, 0x10, &recordingHandler{}); err != nil {
		t.Fatalf("register low2: %v", err)
	}
}

func TestHandlerFunc(t *testing.T) {
	var got []recordedStore
	b := NewBuilder()
	err := b.Register("tap", 0x0, 0x100, HandlerFunc(func(addr uint64, size int, value uint32) error {
		got = append(got, recordedStore{addr, size, value})
		return nil
	}))
	if err != nil {
		t.Fatalf("register tap: %v", err)
	}
	bus, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if err := bus.Write(0x8, 2, 0xff); err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(got) != 1 || got[0] != (recordedStore{0x8, 2, 0xff}) {
		t.Fatalf("stores: %+v", got)
	}

	// A nil HandlerFunc swallows stores.
	if err := HandlerFunc(nil).WriteRegister(0, 4, 0); err != nil {
		t.Fatalf("nil HandlerFunc: %v", err)
	}
}

func TestBusDispatch(t *testing.T) {
	low := &recordingHandler{}
	high := &recordingHandler{}

	b := NewBuilder()
	b.Register("low", 0x100, 0x10, low)
	b.Register("high", 0x200, 0x10, high)
	bus, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if err := bus.Write(0x104, 2, 0xbeef); err != nil {
		t.Fatalf("write low: %v", err)
	}
	if err := bus.Write(0x20c, 4, 1); err != nil {
		t.Fatalf("write high: %v", err)
	}
	if len(low.stores) != 1 || low.stores[0] != (recordedStore{0x104, 2, 0xbeef}) {
		t.Fatalf("low stores: %+v", low.stores)
	}
	if len(high.stores) != 1 || high.stores[0] != (recordedStore{0x20c, 4, 1}) {
		t.Fatalf("high stores: %+v", high.stores)
	}

	if err := bus.Write(0x150, 2, 0); err == nil {
		t.Fatalf("unclaimed address dispatched")
	}
	// A store straddling the end of a block is unclaimed too.
	if err := bus.Write(0x10e, 4, 0); err == nil {
		t.Fatalf("straddling store dispatched")
	}
}

func TestPortAtDispatchesRelative(t *testing.T) {
	h := &recordingHandler{}
	b := NewBuilder()
	b.Register("block", 0x1000, 0x10, h)
	bus, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	port := bus.PortAt(0x1000)
	port.Write16(0x2, 0x03ff)
	port.Write32(0x4, 0xdead)
	port.Write8(0x1, 7)

	want := []recordedStore{
		{0x1002, 2, 0x03ff},
		{0x1004, 4, 0xdead},
		{0x1001, 1, 7},
	}
	if len(h.stores) != len(want) {
		t.Fatalf("stores: %+v", h.stores)
	}
	for i, s := range want {
		if h.stores[i] != s {
			t.Fatalf("store %d: got %+v, want %+v", i, h.stores[i], s)
		}
	}

	// Stores outside the block are dropped and counted, never
	// surfaced to the port's caller.
	port.Write32(0x20, 1)
	if got := bus.Dropped(); got != 1 {
		t.Fatalf("dropped: got %d, want 1", got)
	}
	if len(h.stores) != len(want) {
		t.Fatalf("dropped store reached the handler")
	}
}

func TestBuildRequiresBlocks(t *testing.T) {
	if _, err := NewBuilder().Build(); err == nil {
		t.Fatalf("empty bus built")
	}
}

func TestBlocksOrdered(t *testing.T) {
	b := NewBuilder()
	b.Register("second", 0x200, 4, &recordingHandler{})
	b.Register("first", 0x100, 4, &recordingHandler{})
	bus, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	got := bus.Blocks()
	if len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Fatalf("blocks: %v", got)
	}
}

package irq

import (
	"sync"

	"github.com/tinyrange/jazz/internal/mmio"
)

// GateConfig carries the vector-range geometry the gate enforces.
type GateConfig struct {
	// DeviceVectorBase sits just below the builtin window: builtin
	// sources occupy DeviceVectorBase+1 through
	// DeviceVectorBase+BuiltinSourceCount, and bit i of the enable
	// mask gates vector DeviceVectorBase+1+i.
	DeviceVectorBase   Vector
	BuiltinSourceCount uint32

	// EnableRegisterOffset locates the 16-bit enable register inside
	// the port the gate stores through.
	EnableRegisterOffset uint64

	// EisaVectorBase/EisaVectorCount bound the expansion-bus window;
	// EisaDeviceLevel is the level a request must carry for the gate
	// to forward it to the secondary controller.
	EisaVectorBase  Vector
	EisaVectorCount uint32
	EisaDeviceLevel Level
}

// gateAction classifies what an enable or disable request touches.
// The explicit none branch is the contract for everything else:
// vectors outside both windows, and expansion-window vectors paired
// with the wrong level, take no action and still report success.
type gateAction int

const (
	actionNone gateAction = iota
	actionBuiltin
	actionSecondary
)

// GateStats counts what the gate has done, for tools and tests.
type GateStats struct {
	BuiltinSets       uint64
	BuiltinClears     uint64
	SecondaryEnables  uint64
	SecondaryDisables uint64
	Skipped           uint64
}

// Gate owns the builtin enable mask and its hardware mirror, and
// forwards expansion-bus requests to the secondary controller. Every
// mutation runs at HighLevel under the lock, so Enable and Disable are
// totally ordered across processors.
type Gate struct {
	mu        sync.Locker
	arbiter   PriorityArbiter
	secondary SecondaryController
	enable    mmio.Port
	cfg       GateConfig

	// mask mirrors the enable register: it always equals the value
	// last stored through the port. Guarded by mu.
	mask uint16

	stats GateStats // guarded by mu
}

// GateOption customises a Gate's substrate bindings.
type GateOption func(*Gate)

// WithArbiter overrides the priority substrate the gate raises on.
func WithArbiter(arbiter PriorityArbiter) GateOption {
	return func(g *Gate) {
		if arbiter != nil {
			g.arbiter = arbiter
		}
	}
}

// WithLock overrides the cross-processor lock guarding the mask.
func WithLock(lock sync.Locker) GateOption {
	return func(g *Gate) {
		if lock != nil {
			g.mu = lock
		}
	}
}

// WithSecondary connects the expansion-bus controller driver.
func WithSecondary(secondary SecondaryController) GateOption {
	return func(g *Gate) {
		if secondary != nil {
			g.secondary = secondary
		}
	}
}

// NewGate builds a gate storing through enable. The mask starts at
// zero; bring-up code establishes the initial enable state through
// Enable calls.
func NewGate(cfg GateConfig, enable mmio.Port, opts ...GateOption) *Gate {
	g := &Gate{
		mu:        new(SpinLock),
		arbiter:   ArbiterDetached(),
		secondary: SecondaryDetached(),
		enable:    enable,
		cfg:       cfg,
	}
	if g.enable == nil {
		g.enable = mmio.Discard()
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gate) classify(vector Vector, level Level) gateAction {
	if vector > g.cfg.DeviceVectorBase && vector <= g.cfg.DeviceVectorBase+Vector(g.cfg.BuiltinSourceCount) {
		return actionBuiltin
	}
	if vector >= g.cfg.EisaVectorBase && vector < g.cfg.EisaVectorBase+Vector(g.cfg.EisaVectorCount) && level == g.cfg.EisaDeviceLevel {
		return actionSecondary
	}
	return actionNone
}

// storeMask is called with mu held.
func (g *Gate) storeMask() {
	g.enable.Write16(g.cfg.EnableRegisterOffset, g.mask)
}

// Enable opens delivery of the interrupt source behind vector.
// Builtin vectors set their bit in the enable mask and store the whole
// mask to the register; expansion-window vectors at the bus delivery
// level are forwarded to the secondary controller with the trigger
// mode. Anything else takes no action. Always reports true: no current
// platform has a vector whose enablement can fail.
func (g *Gate) Enable(vector Vector, level Level, mode Mode) bool {
	previous := g.arbiter.Raise(HighLevel)
	g.mu.Lock()

	switch g.classify(vector, level) {
	case actionBuiltin:
		g.mask |= 1 << uint(vector-g.cfg.DeviceVectorBase-1)
		g.storeMask()
		g.stats.BuiltinSets++
	case actionSecondary:
		_ = g.secondary.EnableInterrupt(vector, mode)
		g.stats.SecondaryEnables++
	case actionNone:
		g.stats.Skipped++
	}

	g.mu.Unlock()
	g.arbiter.Lower(previous)
	return true
}

// Disable closes delivery of the interrupt source behind vector,
// symmetric to Enable: same windows, same level guard, clears the bit
// instead of setting it.
func (g *Gate) Disable(vector Vector, level Level) {
	previous := g.arbiter.Raise(HighLevel)
	g.mu.Lock()

	switch g.classify(vector, level) {
	case actionBuiltin:
		g.mask &^= 1 << uint(vector-g.cfg.DeviceVectorBase-1)
		g.storeMask()
		g.stats.BuiltinClears++
	case actionSecondary:
		_ = g.secondary.DisableInterrupt(vector)
		g.stats.SecondaryDisables++
	case actionNone:
		g.stats.Skipped++
	}

	g.mu.Unlock()
	g.arbiter.Lower(previous)
}

// Mask returns the current builtin enable mask.
func (g *Gate) Mask() uint16 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mask
}

// Stats returns a copy of the gate's counters.
func (g *Gate) Stats() GateStats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stats
}

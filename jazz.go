// Package jazz is the interrupt-routing and masking layer of the Jazz
// platform family: it resolves bus-relative interrupt descriptions
// into platform-global (vector, level, affinity) routings, gates
// delivery of individual interrupt sources by programming the
// platform's enable hardware, and posts inter-processor interrupts on
// the dual-processor variant.
//
// The package reaches hardware only through the register ports and
// controller drivers it is constructed with, so the same layer runs
// against real mapped registers, in-process device models, or nothing
// at all.
package jazz

import (
	"fmt"
	"sync"

	"github.com/tinyrange/jazz/internal/irq"
	"github.com/tinyrange/jazz/internal/mmio"
	"github.com/tinyrange/jazz/internal/platform"
)

// -----------------------------------------------------------------------------
// Type Aliases - These re-export types from the internal packages
// -----------------------------------------------------------------------------

// Vector is a platform-global system vector.
type Vector = irq.Vector

// Level is an execution priority level.
type Level = irq.Level

// Affinity is a processor bitmask (bit i targets processor i).
type Affinity = irq.Affinity

// Mode is the trigger mode an interrupt source is configured for.
type Mode = irq.Mode

// InterfaceKind identifies the bus an interrupt description is
// relative to.
type InterfaceKind = irq.InterfaceKind

// Routing is a resolved interrupt source; check Assigned before use.
type Routing = irq.Routing

// Description is one target's interrupt geometry.
type Description = platform.Description

// PriorityArbiter is the priority substrate the gate raises on.
type PriorityArbiter = irq.PriorityArbiter

// SecondaryController is the expansion-bus controller driver
// capability.
type SecondaryController = irq.SecondaryController

// RegisterPort issues ordered stores to device registers.
type RegisterPort = mmio.Port

// GateStats counts what the interrupt gate has done.
type GateStats = irq.GateStats

// Priority levels.
const (
	PassiveLevel  = irq.PassiveLevel
	APCLevel      = irq.APCLevel
	DispatchLevel = irq.DispatchLevel
	HighLevel     = irq.HighLevel
)

// Trigger modes.
const (
	LevelSensitive = irq.LevelSensitive
	Latched        = irq.Latched
)

// Bus kinds.
const (
	Internal     = irq.Internal
	Isa          = irq.Isa
	Eisa         = irq.Eisa
	MicroChannel = irq.MicroChannel
	TurboChannel = irq.TurboChannel
	PCIBus       = irq.PCIBus
)

// Jazz returns the uniprocessor platform description.
func Jazz() Description { return platform.Jazz() }

// Duo returns the dual-processor platform description.
func Duo() Description { return platform.Duo() }

// LoadDescription reads a YAML platform description; fields the file
// omits keep their Jazz values.
func LoadDescription(path string) (Description, error) { return platform.Load(path) }

// -----------------------------------------------------------------------------
// Platform
// -----------------------------------------------------------------------------

// Platform is a configured interrupt layer for one target.
type Platform struct {
	desc   Description
	router *irq.Router
	gate   *irq.Gate
	ipi    *irq.IPI
}

type config struct {
	enablePort mmio.Port
	ipiPort    mmio.Port
	secondary  irq.SecondaryController
	arbiter    irq.PriorityArbiter
	lock       sync.Locker
}

// Option configures a Platform.
type Option func(*config)

// WithEnablePort connects the builtin enable register. Without it,
// mask stores are dropped (the mirror still tracks them).
func WithEnablePort(port RegisterPort) Option {
	return func(c *config) {
		if port != nil {
			c.enablePort = port
		}
	}
}

// WithIPIPort connects the inter-processor request register. Only
// consulted on descriptions with IPI hardware.
func WithIPIPort(port RegisterPort) Option {
	return func(c *config) {
		if port != nil {
			c.ipiPort = port
		}
	}
}

// WithSecondaryController connects the expansion-bus driver.
func WithSecondaryController(secondary SecondaryController) Option {
	return func(c *config) {
		if secondary != nil {
			c.secondary = secondary
		}
	}
}

// WithPriorityArbiter overrides the priority substrate.
func WithPriorityArbiter(arbiter PriorityArbiter) Option {
	return func(c *config) {
		if arbiter != nil {
			c.arbiter = arbiter
		}
	}
}

// WithLock overrides the cross-processor lock guarding the enable
// mask.
func WithLock(lock sync.Locker) Option {
	return func(c *config) {
		if lock != nil {
			c.lock = lock
		}
	}
}

// New builds the interrupt layer for desc.
func New(desc Description, opts ...Option) (*Platform, error) {
	if err := desc.Validate(); err != nil {
		return nil, fmt.Errorf("jazz: %w", err)
	}

	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	gateOpts := []irq.GateOption{}
	if cfg.arbiter != nil {
		gateOpts = append(gateOpts, irq.WithArbiter(cfg.arbiter))
	}
	if cfg.lock != nil {
		gateOpts = append(gateOpts, irq.WithLock(cfg.lock))
	}
	if cfg.secondary != nil {
		gateOpts = append(gateOpts, irq.WithSecondary(cfg.secondary))
	}

	var ipiPort mmio.Port
	if desc.HasIPI {
		ipiPort = cfg.ipiPort
		if ipiPort == nil {
			ipiPort = mmio.Discard()
		}
	}

	return &Platform{
		desc:   desc,
		router: irq.NewRouter(desc.RouterConfig()),
		gate:   irq.NewGate(desc.GateConfig(), cfg.enablePort, gateOpts...),
		ipi:    irq.NewIPI(ipiPort, desc.IPIRequestOffset),
	}, nil
}

// ResolveVector maps an interrupt source described relative to a bus
// to its platform-global routing. Unsupported bus kinds resolve to the
// zero Routing; callers check Assigned.
func (p *Platform) ResolveVector(kind InterfaceKind, busNumber, busLevel, busVector uint32) Routing {
	return p.router.Resolve(kind, busNumber, busLevel, busVector)
}

// EnableSystemInterrupt opens delivery of the interrupt source behind
// vector. Always reports true.
func (p *Platform) EnableSystemInterrupt(vector Vector, level Level, mode Mode) bool {
	return p.gate.Enable(vector, level, mode)
}

// DisableSystemInterrupt closes delivery of the interrupt source
// behind vector.
func (p *Platform) DisableSystemInterrupt(vector Vector, level Level) {
	p.gate.Disable(vector, level)
}

// RequestInterProcessorInterrupt posts an interrupt to every processor
// in targets. The request is visible at the targets when the call
// returns. On descriptions without IPI hardware this does nothing.
func (p *Platform) RequestInterProcessorInterrupt(targets Affinity) {
	p.ipi.Request(targets)
}

// Description returns the platform description in use.
func (p *Platform) Description() Description { return p.desc }

// EnableMask returns the builtin enable mask mirror.
func (p *Platform) EnableMask() uint16 { return p.gate.Mask() }

// GateStats returns the interrupt gate's counters.
func (p *Platform) GateStats() GateStats { return p.gate.Stats() }

// IPIRequests returns how many inter-processor requests have been
// posted.
func (p *Platform) IPIRequests() uint64 { return p.ipi.Requests() }

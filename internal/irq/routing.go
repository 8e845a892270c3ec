// Package irq translates bus-relative interrupt descriptions into
// platform-global routings, gates delivery of individual interrupt
// sources by programming the platform's enable hardware, and posts
// inter-processor interrupt requests.
//
// The package is the policy layer only: it owns the routing rules and
// the software mirror of the enable register, and reaches hardware
// exclusively through the capabilities it is constructed with
// (mmio.Port for register stores, PriorityArbiter and a Locker for the
// critical sections, SecondaryController for the expansion bus).
package irq

import "fmt"

// Vector is a platform-global system vector: the single namespace all
// interrupt sources resolve into, whatever bus they arrive on.
type Vector uint32

// Level is an execution priority level. Masking decisions compare
// levels; raising to HighLevel excludes every interrupt source.
type Level uint8

const (
	PassiveLevel  Level = 0
	APCLevel      Level = 1
	DispatchLevel Level = 2

	// HighLevel is the reserved top level. The gate runs its critical
	// sections here.
	HighLevel Level = 8
)

// Affinity is a processor bitmask: bit i targets processor i.
type Affinity uint32

// Mode is the trigger mode an interrupt source is configured for.
type Mode int

const (
	LevelSensitive Mode = iota
	Latched
)

func (m Mode) String() string {
	switch m {
	case LevelSensitive:
		return "level"
	case Latched:
		return "edge"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// InterfaceKind identifies the bus an interrupt description is
// relative to.
type InterfaceKind int

const (
	InterfaceInvalid InterfaceKind = iota
	Internal
	Isa
	Eisa
	MicroChannel
	TurboChannel
	PCIBus
)

func (k InterfaceKind) String() string {
	switch k {
	case Internal:
		return "internal"
	case Isa:
		return "isa"
	case Eisa:
		return "eisa"
	case MicroChannel:
		return "microchannel"
	case TurboChannel:
		return "turbochannel"
	case PCIBus:
		return "pci"
	default:
		return fmt.Sprintf("InterfaceKind(%d)", int(k))
	}
}

// ParseInterfaceKind maps a bus-kind name, as String prints it, back to
// the kind. Unrecognized names map to InterfaceInvalid, which no
// routing rule matches, so sources described against them resolve to
// the null routing.
func ParseInterfaceKind(name string) InterfaceKind {
	switch name {
	case "internal":
		return Internal
	case "isa":
		return Isa
	case "eisa":
		return Eisa
	case "microchannel":
		return MicroChannel
	case "turbochannel":
		return TurboChannel
	case "pci":
		return PCIBus
	default:
		return InterfaceInvalid
	}
}

// Routing is a resolved interrupt source: the system vector it raises,
// the priority level it is delivered at, and the processors it may be
// delivered to. The zero Routing means the platform has no such
// interrupt source.
type Routing struct {
	Vector   Vector
	Level    Level
	Affinity Affinity
}

// Assigned reports whether the routing names a real interrupt source.
func (r Routing) Assigned() bool {
	return r.Affinity != 0
}

func (r Routing) String() string {
	if !r.Assigned() {
		return "unassigned"
	}
	return fmt.Sprintf("vector 0x%02x level %d affinity 0x%x", uint32(r.Vector), r.Level, uint32(r.Affinity))
}

// Package platform carries the numeric facts of an interrupt-routing
// target: vector windows, delivery levels, affinities, register
// geometry. The routing and gating algorithms live in internal/irq and
// are platform-neutral; everything machine-specific is a Description
// field, so a different target is a different Description, not
// different code.
package platform

import (
	"fmt"

	"github.com/tinyrange/jazz/internal/irq"
)

// Description is one target's interrupt geometry.
type Description struct {
	Name string `yaml:"name"`

	// Builtin window: sources DeviceVectorBase+1 through
	// DeviceVectorBase+BuiltinSourceCount, one enable-mask bit each.
	DeviceVectorBase     irq.Vector `yaml:"deviceVectorBase"`
	BuiltinSourceCount   uint32     `yaml:"builtinSourceCount"`
	EnableRegisterOffset uint64     `yaml:"enableRegisterOffset"`

	// Expansion-bus window. A zero EisaVectorCount means the target
	// has no expansion bus.
	EisaVectorBase  irq.Vector   `yaml:"eisaVectorBase"`
	EisaVectorCount uint32       `yaml:"eisaVectorCount"`
	EisaDeviceLevel irq.Level    `yaml:"eisaDeviceLevel"`
	EisaAffinity    irq.Affinity `yaml:"eisaAffinity"`

	// EisaLineRemap is always written out, even when empty: a document
	// without the key gets the baseline remap, a document with an empty
	// map has none.
	EisaLineRemap map[uint32]uint32 `yaml:"eisaLineRemap"`

	// ExpansionBusKinds names the bus kinds resolved into the expansion
	// window. Names irq.ParseInterfaceKind does not recognize become the
	// invalid kind, so sources described against them resolve to the
	// null routing.
	ExpansionBusKinds []string `yaml:"expansionBusKinds"`

	InternalAffinity irq.Affinity `yaml:"internalAffinity"`

	Processors uint32 `yaml:"processors"`

	// Inter-processor interrupt hardware, present only on
	// multiprocessor variants.
	HasIPI           bool   `yaml:"hasIPI,omitempty"`
	IPIRequestOffset uint64 `yaml:"ipiRequestOffset,omitempty"`
}

// Jazz returns the uniprocessor Jazz-class description.
func Jazz() Description {
	return Description{
		Name:                 "jazz",
		DeviceVectorBase:     0x10,
		BuiltinSourceCount:   10,
		EnableRegisterOffset: 0x2,
		EisaVectorBase:       0x68,
		EisaVectorCount:      16,
		EisaDeviceLevel:      5,
		EisaAffinity:         0x1,
		EisaLineRemap:        map[uint32]uint32{2: 9},
		ExpansionBusKinds:    []string{"isa", "eisa"},
		InternalAffinity:     0x1,
		Processors:           1,
	}
}

// Duo returns the dual-processor variant: same routing as Jazz plus
// the IP-interrupt request register.
func Duo() Description {
	d := Jazz()
	d.Name = "duo"
	d.Processors = 2
	d.HasIPI = true
	d.IPIRequestOffset = 0x0
	return d
}

// Validate rejects descriptions the interrupt layer cannot operate on.
func (d Description) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("platform: missing name")
	}
	if d.BuiltinSourceCount == 0 || d.BuiltinSourceCount > 16 {
		return fmt.Errorf("platform %s: builtin source count %d outside 1..16", d.Name, d.BuiltinSourceCount)
	}
	if d.InternalAffinity == 0 {
		return fmt.Errorf("platform %s: internal affinity is empty", d.Name)
	}
	if d.Processors == 0 || d.Processors > 32 {
		return fmt.Errorf("platform %s: processor count %d outside 1..32", d.Name, d.Processors)
	}

	if d.EisaVectorCount > 0 {
		if d.EisaAffinity == 0 {
			return fmt.Errorf("platform %s: expansion bus present but its affinity is empty", d.Name)
		}
		builtinLo, builtinHi := d.DeviceVectorBase+1, d.DeviceVectorBase+irq.Vector(d.BuiltinSourceCount)
		eisaLo, eisaHi := d.EisaVectorBase, d.EisaVectorBase+irq.Vector(d.EisaVectorCount)-1
		if builtinLo <= eisaHi && eisaLo <= builtinHi {
			return fmt.Errorf("platform %s: builtin window 0x%x..0x%x overlaps expansion window 0x%x..0x%x",
				d.Name, uint32(builtinLo), uint32(builtinHi), uint32(eisaLo), uint32(eisaHi))
		}
		for line, input := range d.EisaLineRemap {
			if line >= d.EisaVectorCount || input >= d.EisaVectorCount {
				return fmt.Errorf("platform %s: line remap %d->%d outside %d expansion lines",
					d.Name, line, input, d.EisaVectorCount)
			}
		}
	}

	if d.HasIPI && d.Processors < 2 {
		return fmt.Errorf("platform %s: IPI hardware on a uniprocessor", d.Name)
	}

	return nil
}

// RouterConfig binds the description to a vector resolver.
func (d Description) RouterConfig() irq.RouterConfig {
	kinds := make([]irq.InterfaceKind, 0, len(d.ExpansionBusKinds))
	for _, name := range d.ExpansionBusKinds {
		kinds = append(kinds, irq.ParseInterfaceKind(name))
	}
	return irq.RouterConfig{
		EisaVectorBase:   d.EisaVectorBase,
		EisaDeviceLevel:  d.EisaDeviceLevel,
		EisaAffinity:     d.EisaAffinity,
		EisaLineRemap:    d.EisaLineRemap,
		InternalAffinity: d.InternalAffinity,
		ExpansionKinds:   kinds,
	}
}

// GateConfig binds the description to an interrupt gate.
func (d Description) GateConfig() irq.GateConfig {
	return irq.GateConfig{
		DeviceVectorBase:     d.DeviceVectorBase,
		BuiltinSourceCount:   d.BuiltinSourceCount,
		EnableRegisterOffset: d.EnableRegisterOffset,
		EisaVectorBase:       d.EisaVectorBase,
		EisaVectorCount:      d.EisaVectorCount,
		EisaDeviceLevel:      d.EisaDeviceLevel,
	}
}

// AllProcessors returns the affinity mask covering every processor.
func (d Description) AllProcessors() irq.Affinity {
	return irq.Affinity(1)<<d.Processors - 1
}

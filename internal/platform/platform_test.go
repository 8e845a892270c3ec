package platform

import (
	"testing"

	"github.com/tinyrange/jazz/internal/irq"
)

func TestBuiltinDescriptions(t *testing.T) {
	jazz := Jazz()
	if err := jazz.Validate(); err != nil {
		t.Fatalf("jazz: %v", err)
	}
	if jazz.EisaVectorBase != 0x68 || jazz.EisaLineRemap[2] != 9 {
		t.Fatalf("jazz geometry: %+v", jazz)
	}
	if jazz.HasIPI {
		t.Fatalf("jazz has IPI hardware")
	}

	duo := Duo()
	if err := duo.Validate(); err != nil {
		t.Fatalf("duo: %v", err)
	}
	if !duo.HasIPI || duo.Processors != 2 {
		t.Fatalf("duo geometry: %+v", duo)
	}
	// Routing is identical across the family.
	if duo.EisaVectorBase != jazz.EisaVectorBase || duo.DeviceVectorBase != jazz.DeviceVectorBase {
		t.Fatalf("duo routing diverges from jazz")
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Description)
	}{
		{"missing name", func(d *Description) { d.Name = "" }},
		{"zero builtin count", func(d *Description) { d.BuiltinSourceCount = 0 }},
		{"oversized builtin count", func(d *Description) { d.BuiltinSourceCount = 17 }},
		{"empty internal affinity", func(d *Description) { d.InternalAffinity = 0 }},
		{"zero processors", func(d *Description) { d.Processors = 0 }},
		{"oversized processors", func(d *Description) { d.Processors = 33 }},
		{"empty expansion affinity", func(d *Description) { d.EisaAffinity = 0 }},
		{"overlapping windows", func(d *Description) { d.EisaVectorBase = d.DeviceVectorBase }},
		{"remap line out of range", func(d *Description) { d.EisaLineRemap = map[uint32]uint32{16: 9} }},
		{"remap input out of range", func(d *Description) { d.EisaLineRemap = map[uint32]uint32{2: 16} }},
		{"ipi on uniprocessor", func(d *Description) { d.HasIPI = true; d.Processors = 1 }},
	}

	for _, c := range cases {
		d := Jazz()
		c.mutate(&d)
		if err := d.Validate(); err == nil {
			t.Fatalf("%s: validated", c.name)
		}
	}
}

func TestValidateNoExpansionBus(t *testing.T) {
	d := Jazz()
	d.EisaVectorCount = 0
	d.EisaAffinity = 0
	if err := d.Validate(); err != nil {
		t.Fatalf("expansion-less target rejected: %v", err)
	}
}

func TestConfigBindings(t *testing.T) {
	d := Duo()

	rc := d.RouterConfig()
	if rc.EisaVectorBase != d.EisaVectorBase || rc.EisaDeviceLevel != d.EisaDeviceLevel ||
		rc.EisaAffinity != d.EisaAffinity || rc.InternalAffinity != d.InternalAffinity {
		t.Fatalf("router config: %+v", rc)
	}
	if rc.EisaLineRemap[2] != 9 {
		t.Fatalf("router config dropped the line remap")
	}
	if len(rc.ExpansionKinds) != 2 || rc.ExpansionKinds[0] != irq.Isa || rc.ExpansionKinds[1] != irq.Eisa {
		t.Fatalf("expansion kinds: %v", rc.ExpansionKinds)
	}

	gc := d.GateConfig()
	if gc.DeviceVectorBase != d.DeviceVectorBase || gc.BuiltinSourceCount != d.BuiltinSourceCount ||
		gc.EnableRegisterOffset != d.EnableRegisterOffset || gc.EisaVectorBase != d.EisaVectorBase ||
		gc.EisaVectorCount != d.EisaVectorCount || gc.EisaDeviceLevel != d.EisaDeviceLevel {
		t.Fatalf("gate config: %+v", gc)
	}
}

func TestAllProcessors(t *testing.T) {
	if got := Jazz().AllProcessors(); got != irq.Affinity(0x1) {
		t.Fatalf("jazz: got 0x%x", uint32(got))
	}
	if got := Duo().AllProcessors(); got != irq.Affinity(0x3) {
		t.Fatalf("duo: got 0x%x", uint32(got))
	}
}

//go:build ignore

// A small demonstration of the interrupt routing layer: resolve a few
// bus-relative interrupts on the multiprocessor description, enable
// them, and post an inter-processor request.
//
// Run with: go run jazz_example.go
package main

import (
	"fmt"
	"log"

	jazz "github.com/tinyrange/jazz"
	"github.com/tinyrange/jazz/internal/bus"
	jazzdev "github.com/tinyrange/jazz/internal/devices/jazz"
)

func main() {
	const (
		intRegBase uint64 = 0x8000f000
		ipiRegBase uint64 = 0x8000d000
	)
	desc := jazz.Duo()

	intReg := jazzdev.NewIntReg(intRegBase, desc.DeviceVectorBase,
		jazzdev.DeliverySinkFunc(func(v jazz.Vector) {
			fmt.Printf("delivered vector 0x%02x\n", uint32(v))
		}))
	ipiReg := jazzdev.NewIPIReg(ipiRegBase, desc.Processors,
		jazzdev.ProcessorSinkFunc(func(cpu uint32) {
			fmt.Printf("interrupted processor %d\n", cpu)
		}))

	b := bus.NewBuilder()
	if err := b.Register("intreg", intRegBase, jazzdev.IntRegSize, intReg); err != nil {
		log.Fatalf("register intreg: %v", err)
	}
	if err := b.Register("ipireg", ipiRegBase, jazzdev.IPIRegSize, ipiReg); err != nil {
		log.Fatalf("register ipireg: %v", err)
	}
	registers, err := b.Build()
	if err != nil {
		log.Fatalf("build register bus: %v", err)
	}

	p, err := jazz.New(desc,
		jazz.WithEnablePort(registers.PortAt(intRegBase)),
		jazz.WithIPIPort(registers.PortAt(ipiRegBase)))
	if err != nil {
		log.Fatalf("new platform: %v", err)
	}

	// A builtin device interrupt: serial is source line 3 on this
	// target, vector base+4.
	serial := p.ResolveVector(jazz.Internal, 0, 4, uint32(desc.DeviceVectorBase)+4)
	fmt.Printf("serial: %s\n", serial)
	p.EnableSystemInterrupt(serial.Vector, serial.Level, jazz.Latched)

	// An expansion-bus interrupt: edge-connector line 2 lands on
	// controller input 9.
	net := p.ResolveVector(jazz.Eisa, 0, 2, 0)
	fmt.Printf("network: %s\n", net)

	// Fire the serial source line and watch it deliver.
	intReg.SetSource(3, true)

	// Poke the second processor.
	p.RequestInterProcessorInterrupt(0b10)

	fmt.Printf("enable mask: 0x%04x\n", p.EnableMask())
	fmt.Printf("%s\n", intReg)
	fmt.Printf("%s\n", ipiReg)
}

package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	jazz "github.com/tinyrange/jazz"
	"github.com/tinyrange/jazz/internal/bus"
	jazzdev "github.com/tinyrange/jazz/internal/devices/jazz"
	"github.com/tinyrange/jazz/internal/eisa"
	"github.com/tinyrange/jazz/internal/mmio"
	"github.com/tinyrange/jazz/internal/platform"
)

func selectDescription(name, configPath string) (jazz.Description, error) {
	if configPath != "" {
		return jazz.LoadDescription(configPath)
	}
	switch name {
	case "jazz":
		return jazz.Jazz(), nil
	case "duo":
		return jazz.Duo(), nil
	default:
		return jazz.Description{}, fmt.Errorf("unknown platform %q (jazz, duo)", name)
	}
}

func printRoutingTable(desc jazz.Description) error {
	p, err := jazz.New(desc)
	if err != nil {
		return err
	}

	fmt.Printf("platform %s: %d processor(s), %d builtin sources, %d expansion lines\n",
		desc.Name, desc.Processors, desc.BuiltinSourceCount, desc.EisaVectorCount)
	fmt.Printf("builtin window: vectors 0x%02x..0x%02x, enable register at offset 0x%x\n\n",
		uint32(desc.DeviceVectorBase)+1,
		uint32(desc.DeviceVectorBase)+desc.BuiltinSourceCount,
		desc.EnableRegisterOffset)

	// Internal descriptions pass through unchanged; show the edges of
	// the builtin window and one source in the middle.
	fmt.Printf("internal sources:\n")
	fmt.Printf("% 7s % 6s % 9s\n", "vector", "level", "affinity")
	for _, in := range []struct{ level, vector uint32 }{
		{4, uint32(desc.DeviceVectorBase) + 1},
		{6, uint32(desc.DeviceVectorBase) + 1 + desc.BuiltinSourceCount/2},
		{7, uint32(desc.DeviceVectorBase) + desc.BuiltinSourceCount},
	} {
		routing := p.ResolveVector(jazz.Internal, 0, in.level, in.vector)
		fmt.Printf("   0x%02x % 6d       0x%x\n",
			uint32(routing.Vector), routing.Level, uint32(routing.Affinity))
	}
	fmt.Printf("\n")

	if desc.EisaVectorCount == 0 {
		fmt.Printf("no expansion bus\n")
		return nil
	}

	fmt.Printf("expansion lines:\n")
	fmt.Printf("% 5s % 7s % 6s % 9s\n", "line", "vector", "level", "affinity")
	for line := uint32(0); line < desc.EisaVectorCount; line++ {
		routing := p.ResolveVector(jazz.Eisa, 0, line, 0)
		note := ""
		if input, ok := desc.EisaLineRemap[line]; ok {
			note = fmt.Sprintf("  (rewired to input %d)", input)
		}
		fmt.Printf("% 5d    0x%02x % 6d       0x%x%s\n",
			line, uint32(routing.Vector), routing.Level, uint32(routing.Affinity), note)
	}
	return nil
}

// pokeEnableRegister drives the real enable register: the interrupt
// control block at base is mapped through /dev/mem and every builtin
// source walked through Enable and Disable, leaving the hardware mask
// clear.
func pokeEnableRegister(desc jazz.Description, base uint64) error {
	pageSize := uint64(os.Getpagesize())
	size := (desc.EnableRegisterOffset + 2 + pageSize - 1) / pageSize * pageSize

	port, err := mmio.OpenDevMem(base, size)
	if err != nil {
		return err
	}
	defer port.Close()
	slog.Info("mapped interrupt control block", "base", fmt.Sprintf("0x%x", base), "size", fmt.Sprintf("0x%x", size))

	p, err := jazz.New(desc, jazz.WithEnablePort(port))
	if err != nil {
		return err
	}

	for i := range desc.BuiltinSourceCount {
		v := desc.DeviceVectorBase + 1 + jazz.Vector(i)
		p.EnableSystemInterrupt(v, jazz.DispatchLevel, jazz.Latched)
	}
	slog.Info("builtin sources enabled", "mask", fmt.Sprintf("0x%04x", p.EnableMask()))

	for i := range desc.BuiltinSourceCount {
		v := desc.DeviceVectorBase + 1 + jazz.Vector(i)
		p.DisableSystemInterrupt(v, jazz.DispatchLevel)
	}
	slog.Info("builtin sources disabled", "mask", fmt.Sprintf("0x%04x", p.EnableMask()))
	return nil
}

type roundRecord struct {
	Count int
	Sum   time.Duration
	Min   time.Duration
	Max   time.Duration
}

func (r *roundRecord) Add(duration time.Duration) {
	r.Count++
	r.Sum += duration
	if r.Min == 0 || duration < r.Min {
		r.Min = duration
	}
	if r.Max == 0 || duration > r.Max {
		r.Max = duration
	}
}

func (r *roundRecord) String() string {
	return fmt.Sprintf("count=% 8d sum=% 12s min=% 12s max=% 12s avg=% 12s",
		r.Count, r.Sum, r.Min, r.Max, r.Sum/time.Duration(r.Count))
}

// soak drives the gate from one goroutine per interrupt source against
// in-process register models, and checks after every round that the
// mask the platform reports, the mask the device holds, and the state
// of the expansion controller all agree.
func soak(desc jazz.Description, rounds int) error {
	const (
		intRegBase uint64 = 0x8000f000
		ipiRegBase uint64 = 0x8000d000
	)

	deliveries := 0
	intReg := jazzdev.NewIntReg(intRegBase, desc.DeviceVectorBase,
		jazzdev.DeliverySinkFunc(func(jazz.Vector) { deliveries++ }))
	ipiReg := jazzdev.NewIPIReg(ipiRegBase, desc.Processors, nil)

	b := bus.NewBuilder()
	if err := b.Register("intreg", intRegBase, jazzdev.IntRegSize, intReg); err != nil {
		return fmt.Errorf("register intreg: %w", err)
	}
	if err := b.Register("ipireg", ipiRegBase, jazzdev.IPIRegSize, ipiReg); err != nil {
		return fmt.Errorf("register ipireg: %w", err)
	}
	registers, err := b.Build()
	if err != nil {
		return fmt.Errorf("build register bus: %w", err)
	}

	eisaSpace := mmio.NewMemPort(0x500)
	secondary := eisa.NewController(desc.EisaVectorBase, eisaSpace)

	opts := []jazz.Option{
		jazz.WithEnablePort(registers.PortAt(intRegBase)),
		jazz.WithSecondaryController(secondary),
	}
	if desc.HasIPI {
		opts = append(opts, jazz.WithIPIPort(registers.PortAt(ipiRegBase)))
	}
	p, err := jazz.New(desc, opts...)
	if err != nil {
		return err
	}

	fullMask := uint16(1)<<desc.BuiltinSourceCount - 1

	var record roundRecord

	pb := progressbar.Default(int64(rounds))
	defer pb.Close()

	for round := range rounds {
		start := time.Now()

		mode := jazz.Latched
		if round%2 == 1 {
			mode = jazz.LevelSensitive
		}

		var enable sync.WaitGroup
		for i := range desc.BuiltinSourceCount {
			enable.Add(1)
			go func() {
				defer enable.Done()
				v := desc.DeviceVectorBase + 1 + jazz.Vector(i)
				p.EnableSystemInterrupt(v, jazz.DispatchLevel, mode)
			}()
		}
		for line := range desc.EisaVectorCount {
			enable.Add(1)
			go func() {
				defer enable.Done()
				routing := p.ResolveVector(jazz.Eisa, 0, line, 0)
				p.EnableSystemInterrupt(routing.Vector, routing.Level, mode)
			}()
		}
		enable.Wait()

		if got := p.EnableMask(); got != fullMask {
			return fmt.Errorf("round %d: platform mask 0x%04x after enables, want 0x%04x", round, got, fullMask)
		}
		if got := intReg.EnableMask(); got != fullMask {
			return fmt.Errorf("round %d: device mask 0x%04x after enables, want 0x%04x", round, got, fullMask)
		}
		for line := range desc.EisaVectorCount {
			routing := p.ResolveVector(jazz.Eisa, 0, line, 0)
			if !secondary.LineEnabled(routing.Vector) {
				return fmt.Errorf("round %d: expansion line %d not enabled at the controller", round, line)
			}
		}

		// Fire every builtin source once and take it back down.
		before := deliveries
		for i := range desc.BuiltinSourceCount {
			intReg.SetSource(uint(i), true)
			intReg.SetSource(uint(i), false)
		}
		if got := deliveries - before; uint32(got) != desc.BuiltinSourceCount {
			return fmt.Errorf("round %d: %d deliveries, want %d", round, got, desc.BuiltinSourceCount)
		}

		if desc.HasIPI {
			p.RequestInterProcessorInterrupt(desc.AllProcessors())
			for cpu := range desc.Processors {
				if !ipiReg.Pending(cpu) {
					return fmt.Errorf("round %d: no request pending at processor %d", round, cpu)
				}
				ipiReg.Acknowledge(cpu)
			}
		}

		var disable sync.WaitGroup
		for i := range desc.BuiltinSourceCount {
			disable.Add(1)
			go func() {
				defer disable.Done()
				v := desc.DeviceVectorBase + 1 + jazz.Vector(i)
				p.DisableSystemInterrupt(v, jazz.DispatchLevel)
			}()
		}
		for line := range desc.EisaVectorCount {
			disable.Add(1)
			go func() {
				defer disable.Done()
				routing := p.ResolveVector(jazz.Eisa, 0, line, 0)
				p.DisableSystemInterrupt(routing.Vector, routing.Level)
			}()
		}
		disable.Wait()

		if got := p.EnableMask(); got != 0 {
			return fmt.Errorf("round %d: platform mask 0x%04x after disables", round, got)
		}
		if got := intReg.EnableMask(); got != 0 {
			return fmt.Errorf("round %d: device mask 0x%04x after disables", round, got)
		}

		record.Add(time.Since(start))
		pb.Add(1)
	}

	if got := registers.Dropped(); got != 0 {
		return fmt.Errorf("%d stores fell outside device registers", got)
	}

	stats := p.GateStats()
	slog.Info("soak complete",
		"rounds", rounds,
		"deliveries", deliveries,
		"builtinSets", stats.BuiltinSets,
		"builtinClears", stats.BuiltinClears,
		"secondaryEnables", stats.SecondaryEnables,
		"secondaryDisables", stats.SecondaryDisables,
		"skipped", stats.Skipped,
		"ipiRequests", p.IPIRequests())
	fmt.Printf("%s\n", record.String())
	return nil
}

func run() error {
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)

	platformName := fs.String("platform", "jazz", "Builtin platform description (jazz, duo)")
	configPath := fs.String("config", "", "Load the platform description from a YAML file instead")
	dumpPath := fs.String("dump", "", "Write the platform description to a YAML file and exit")
	rounds := fs.Int("soak", 0, "Run this many concurrent enable/disable rounds against register models")
	pokeBase := fs.Uint64("poke", 0, "Physical address of the interrupt control block; walk the real enable register through /dev/mem")
	dbg := fs.Bool("debug", false, "Enable debug logging")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return fmt.Errorf("parse args: %w", err)
	}

	level := slog.LevelInfo
	if *dbg {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	desc, err := selectDescription(*platformName, *configPath)
	if err != nil {
		return err
	}

	if *dumpPath != "" {
		return platform.WriteFile(*dumpPath, desc)
	}
	if *pokeBase != 0 {
		err := pokeEnableRegister(desc, *pokeBase)
		if errors.Is(err, mmio.ErrUnsupported) {
			return fmt.Errorf("-poke needs /dev/mem: %w", err)
		}
		return err
	}
	if *rounds > 0 {
		return soak(desc, *rounds)
	}
	return printRoutingTable(desc)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "jazzirq: %v\n", err)
		os.Exit(1)
	}
}

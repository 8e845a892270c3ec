package irq

// RouterConfig carries the platform facts vector resolution depends
// on. The algorithm itself is platform-neutral; a different target
// supplies different values here without touching the code.
type RouterConfig struct {
	// EisaVectorBase is the first system vector of the expansion-bus
	// window. A bus line resolves to EisaVectorBase + line.
	EisaVectorBase Vector

	// EisaDeviceLevel is the one level the expansion bus delivers its
	// interrupts at.
	EisaDeviceLevel Level

	// EisaAffinity is the fixed set of processors with a path to the
	// expansion bus.
	EisaAffinity Affinity

	// EisaLineRemap redirects edge-connector lines that are physically
	// wired to a different controller input. On Jazz, line 2 arrives on
	// input 9.
	EisaLineRemap map[uint32]uint32

	// InternalAffinity is the processor set for platform-internal
	// sources.
	InternalAffinity Affinity

	// ExpansionKinds lists the bus kinds resolved into the expansion
	// window. Empty means the usual Isa and Eisa pair. InterfaceInvalid
	// entries match nothing.
	ExpansionKinds []InterfaceKind
}

// Router resolves bus-relative interrupt descriptions into
// platform-global routings.
type Router struct {
	cfg       RouterConfig
	expansion map[InterfaceKind]bool
}

func NewRouter(cfg RouterConfig) *Router {
	kinds := cfg.ExpansionKinds
	if len(kinds) == 0 {
		kinds = []InterfaceKind{Isa, Eisa}
	}
	expansion := make(map[InterfaceKind]bool, len(kinds))
	for _, k := range kinds {
		if k != InterfaceInvalid {
			expansion[k] = true
		}
	}
	return &Router{cfg: cfg, expansion: expansion}
}

// Resolve maps an interrupt source described relative to a bus to the
// system vector it raises, the level it is delivered at, and the
// processors that may take it. Unsupported bus kinds resolve to the
// zero Routing, which callers must check for with Assigned; that is
// the whole signal, nothing errors.
//
// Resolve has no side effects and is callable from any execution
// context.
func (r *Router) Resolve(kind InterfaceKind, busNumber uint32, busLevel uint32, busVector uint32) Routing {
	switch {
	case kind == Internal:
		// Internal sources already speak platform-global numbers.
		return Routing{
			Vector:   Vector(busVector),
			Level:    Level(busLevel),
			Affinity: r.cfg.InternalAffinity,
		}

	case r.expansion[kind]:
		// Exactly one expansion bus on this platform: the bus number
		// and the bus-relative vector do not participate.
		if input, ok := r.cfg.EisaLineRemap[busLevel]; ok {
			busLevel = input
		}
		return Routing{
			Vector:   r.cfg.EisaVectorBase + Vector(busLevel),
			Level:    r.cfg.EisaDeviceLevel,
			Affinity: r.cfg.EisaAffinity,
		}

	default:
		return Routing{}
	}
}

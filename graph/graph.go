// Package graph implements the named module registry: module creation
// and destruction, gate connect/disconnect, worker-placement constraint
// propagation, and the metadata.GraphView the offset pipeline consults.
//
// Modules are stored in an arena (a slice indexed by a small integer)
// rather than referenced directly by *module.Module pointer, and every
// handle pairs that index with a generation counter. The original C++
// implementation lets a Module* alias a Gate*, which aliases back to a
// Module* — a cycle of raw pointers that made a destroyed-and-recreated
// module a silent use-after-free hazard. Go's garbage collector makes
// the memory-safety half of that problem moot, but the *logical* hazard
// survives translation: code that cached a module's identity before a
// structural change (a control-plane handler mid-flight during a
// concurrent destroy_module, say) can otherwise keep acting on a name
// that now refers to a different, newly created module. The arena +
// generation scheme turns that into a detectable stale-handle error
// instead of a silent semantic mix-up. tc's tree has no such aliasing
// (only parent pointers, no cross-references), so it deliberately uses
// plain pointers instead; see tc/builder.go.
package graph

import (
	"errors"
	"sort"
	"sync"

	"github.com/bess-go/bessd/metadata"
	"github.com/bess-go/bessd/module"
)

var (
	ErrNameExists     = errors.New("graph: module name already exists")
	ErrNotFound       = errors.New("graph: module not found")
	ErrStaleHandle    = errors.New("graph: stale module handle")
	ErrGateInUse      = errors.New("graph: output gate already connected")
	ErrGateOutOfRange = errors.New("graph: gate index out of range")
	ErrInitFailed     = errors.New("graph: module init failed")
)

// Handle is a stable, generation-tagged reference to a module in the
// arena. A Handle obtained before a module is destroyed and recreated
// under the same name will not silently resolve to the new instance.
type Handle struct {
	idx int
	gen uint32
}

type node struct {
	gen           uint32
	live          bool
	name          string
	desc          *module.ClassDesc
	mod           module.Module
	igates        []*module.IGate
	ogates        []*module.OGate
	tasks         []*module.Task
	children      map[string]bool // downstream module names, one hop via ogates
	active        map[int]bool    // worker ids currently reaching this module
	constraint    module.PlacementConstraint
	declaredAttrs []metadata.Attribute
}

// Graph is the process-wide module registry. Structural mutation is
// expected to happen only while the caller holds a worker.WorkerPauser (or
// equivalent external serialization); Graph's own mutex exists so
// read-only control-plane queries (list_modules, get_module_info) never
// race a concurrent structural change, not to replace that discipline.
type Graph struct {
	mu       sync.RWMutex
	byName   map[string]int
	arena    []*node
	freeList []int
	attrs    *metadata.Registry
	offsets  *metadata.Offsets
}

// New returns an empty module graph backed by its own attribute registry.
func New() *Graph {
	return &Graph{byName: map[string]int{}, attrs: metadata.NewRegistry()}
}

// Attrs returns the graph's attribute registry, consulted by
// metadata.ComputeOffsets alongside the graph itself.
func (g *Graph) Attrs() *metadata.Registry { return g.attrs }

// Offsets returns the metadata offset assignment computed by the most
// recent resume (nil before the first one).
func (g *Graph) Offsets() *metadata.Offsets {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.offsets
}

// SetOffsets records the result of a fresh metadata.ComputeOffsets run,
// called by ctrl.ResumeHookRegistry as part of every resume.
func (g *Graph) SetOffsets(o *metadata.Offsets) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.offsets = o
}

func (g *Graph) alloc(n *node) Handle {
	if len(g.freeList) > 0 {
		idx := g.freeList[len(g.freeList)-1]
		g.freeList = g.freeList[:len(g.freeList)-1]
		n.gen = g.arena[idx].gen + 1
		g.arena[idx] = n
		return Handle{idx: idx, gen: n.gen}
	}
	n.gen = 1
	g.arena = append(g.arena, n)
	return Handle{idx: len(g.arena) - 1, gen: n.gen}
}

func (g *Graph) resolve(h Handle) (*node, error) {
	if h.idx < 0 || h.idx >= len(g.arena) {
		return nil, ErrStaleHandle
	}
	n := g.arena[h.idx]
	if n == nil || !n.live || n.gen != h.gen {
		return nil, ErrStaleHandle
	}
	return n, nil
}

// CreateModule instantiates desc.NewInstance(), runs its Init(arg),
// registers its declared attributes, and adds it to the graph under
// name. A name collision fails with ErrNameExists without touching
// desc. A failing Init leaves nothing registered.
func (g *Graph) CreateModule(desc *module.ClassDesc, name string, arg interface{}, attrs []metadata.Attribute) (Handle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.byName[name]; exists {
		return Handle{}, ErrNameExists
	}

	mod := desc.NewInstance()
	if err := mod.Init(arg); err != nil {
		return Handle{}, err
	}

	n := &node{
		live:          true,
		name:          name,
		desc:          desc,
		mod:           mod,
		igates:        make([]*module.IGate, desc.NumIGates),
		ogates:        make([]*module.OGate, desc.NumOGates),
		children:      map[string]bool{},
		active:        map[int]bool{},
		declaredAttrs: attrs,
	}
	for _, a := range attrs {
		if err := g.attrs.Register(a.Name, a.Size); err != nil {
			mod.Deinit()
			return Handle{}, err
		}
	}
	h := g.alloc(n)
	g.byName[name] = h.idx
	return h, nil
}

// DestroyModule disconnects every gate (upstream and down), deregisters
// the module's attributes, and removes it from the registry.
func (g *Graph) DestroyModule(name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	idx, ok := g.byName[name]
	if !ok {
		return ErrNotFound
	}
	n := g.arena[idx]

	for oidx, og := range n.ogates {
		if og == nil {
			continue
		}
		g.disconnectLocked(n, oidx)
	}
	for _, ig := range n.igates {
		if ig == nil {
			continue
		}
		for _, og := range ig.Upstream() {
			peerIdx, ok := g.byName[og.Owner()]
			if !ok {
				continue
			}
			peer := g.arena[peerIdx]
			for i, pog := range peer.ogates {
				if pog == og {
					g.disconnectLocked(peer, i)
				}
			}
		}
	}

	for _, a := range n.declaredAttrs {
		g.attrs.Deregister(a.Name)
	}
	n.mod.Deinit()
	n.live = false
	delete(g.byName, name)
	g.freeList = append(g.freeList, idx)
	return nil
}

// Connect wires fromName's output gate oidx to toName's input gate
// iidx, creating either gate as needed. Fails if the output gate is
// already in use. Unless skipDefaultHooks is set, a CounterHook is
// installed on both new gates.
func (g *Graph) Connect(fromName string, oidx int, toName string, iidx int, skipDefaultHooks bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	fi, ok := g.byName[fromName]
	if !ok {
		return ErrNotFound
	}
	ti, ok := g.byName[toName]
	if !ok {
		return ErrNotFound
	}
	from, to := g.arena[fi], g.arena[ti]
	if oidx < 0 || oidx >= len(from.ogates) {
		return ErrGateOutOfRange
	}
	if iidx < 0 || iidx >= len(to.igates) {
		return ErrGateOutOfRange
	}
	if from.ogates[oidx] != nil {
		return ErrGateInUse
	}

	og := module.NewOGate(fromName, oidx)
	from.ogates[oidx] = og
	ig := to.igates[iidx]
	if ig == nil {
		ig = module.NewIGate(toName, iidx)
		to.igates[iidx] = ig
	}
	module.Link(og, ig)
	if !skipDefaultHooks {
		og.AddHook(module.NewCounterHook())
		ig.AddHook(module.NewCounterHook())
	}
	from.children[toName] = true
	return nil
}

// Disconnect removes fromName's output gate oidx; if the gate's
// downstream igate then has no remaining upstream ogates, the igate is
// removed too.
func (g *Graph) Disconnect(fromName string, oidx int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	fi, ok := g.byName[fromName]
	if !ok {
		return ErrNotFound
	}
	from := g.arena[fi]
	if oidx < 0 || oidx >= len(from.ogates) || from.ogates[oidx] == nil {
		return ErrGateOutOfRange
	}
	g.disconnectLocked(from, oidx)
	return nil
}

func (g *Graph) disconnectLocked(from *node, oidx int) {
	og := from.ogates[oidx]
	ig := og.Downstream()
	if ig != nil {
		module.Unlink(og, ig)
		if ig.UpstreamCount() == 0 {
			to := g.arena[g.byName[ig.Owner()]]
			if to != nil {
				for i, cand := range to.igates {
					if cand == ig {
						to.igates[i] = nil
					}
				}
			}
		}
	}
	from.ogates[oidx] = nil
	if ig != nil {
		stillLinked := false
		for _, other := range from.ogates {
			if other != nil && other.Downstream() != nil && other.Downstream().Owner() == ig.Owner() {
				stillLinked = true
			}
		}
		if !stillLinked {
			delete(from.children, ig.Owner())
		}
	}
}

// --- metadata.GraphView -----------------------------------------------

// Modules returns every live module name, sorted for determinism.
func (g *Graph) Modules() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, 0, len(g.byName))
	for name := range g.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Attributes returns the attribute declarations the named module made
// at creation time.
func (g *Graph) Attributes(name string) []metadata.Attribute {
	g.mu.RLock()
	defer g.mu.RUnlock()
	idx, ok := g.byName[name]
	if !ok {
		return nil
	}
	return g.arena[idx].declaredAttrs
}

// Downstream returns the names of modules directly reachable via one
// hop of module name's output gates, sorted for determinism.
func (g *Graph) Downstream(name string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	idx, ok := g.byName[name]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(g.arena[idx].children))
	for child := range g.arena[idx].children {
		out = append(out, child)
	}
	sort.Strings(out)
	return out
}

// Lookup returns a stable handle for name, or (Handle{}, false).
func (g *Graph) Lookup(name string) (Handle, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	idx, ok := g.byName[name]
	if !ok {
		return Handle{}, false
	}
	return Handle{idx: idx, gen: g.arena[idx].gen}, true
}

// Get returns the module instance h refers to. Fails with
// ErrStaleHandle if the module named at creation time was since
// destroyed (and possibly replaced by a different module of the same
// name), rather than silently handing back whatever now occupies the
// slot.
func (g *Graph) Get(h Handle) (module.Module, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, err := g.resolve(h)
	if err != nil {
		return nil, err
	}
	return n.mod, nil
}

// AddTask registers t as one of the tasks owned by the module h refers
// to, so PropagateActiveWorker can later walk from t's bound leaf back
// to its module.
func (g *Graph) AddTask(h Handle, t *module.Task) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, err := g.resolve(h)
	if err != nil {
		return err
	}
	n.tasks = append(n.tasks, t)
	return nil
}

// ModuleInfo returns the class descriptor and gate counts for name.
func (g *Graph) ModuleInfo(name string) (desc *module.ClassDesc, numIGates, numOGates int, err error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	i, ok := g.byName[name]
	if !ok {
		return nil, 0, 0, ErrNotFound
	}
	n := g.arena[i]
	return n.desc, len(n.igates), len(n.ogates), nil
}

// ModuleAt returns the live module instance registered under name.
func (g *Graph) ModuleAt(name string) (module.Module, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	i, ok := g.byName[name]
	if !ok {
		return nil, ErrNotFound
	}
	return g.arena[i].mod, nil
}

// OGateAt returns moduleName's output gate at idx, or ErrNotFound /
// ErrGateOutOfRange if it doesn't exist (e.g. never connected).
func (g *Graph) OGateAt(moduleName string, idx int) (*module.OGate, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	i, ok := g.byName[moduleName]
	if !ok {
		return nil, ErrNotFound
	}
	n := g.arena[i]
	if idx < 0 || idx >= len(n.ogates) {
		return nil, ErrGateOutOfRange
	}
	if n.ogates[idx] == nil {
		return nil, ErrNotFound
	}
	return n.ogates[idx], nil
}

// IGateAt returns moduleName's input gate at idx, or ErrNotFound /
// ErrGateOutOfRange if it doesn't exist.
func (g *Graph) IGateAt(moduleName string, idx int) (*module.IGate, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	i, ok := g.byName[moduleName]
	if !ok {
		return nil, ErrNotFound
	}
	n := g.arena[i]
	if idx < 0 || idx >= len(n.igates) {
		return nil, ErrGateOutOfRange
	}
	if n.igates[idx] == nil {
		return nil, ErrNotFound
	}
	return n.igates[idx], nil
}

// GenerateDefaultName delegates to module.GenerateDefaultName, probing
// this graph's name registry for collisions.
func (g *Graph) GenerateDefaultName(desc *module.ClassDesc) string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return module.GenerateDefaultName(desc, func(name string) bool {
		_, exists := g.byName[name]
		return exists
	})
}

package ctrl

import (
	"errors"
	"sort"
	"sync"

	"github.com/bess-go/bessd/graph"
	"github.com/bess-go/bessd/metadata"
	"github.com/bess-go/bessd/module"
)

var ErrResumeHookExists = errors.New("ctrl: resume hook already registered")

type registeredHook struct {
	name     string
	priority int
	run      func() error
}

// ResumeHookRegistry is the global, priority+name-ordered set of hooks
// run once per resume (SPEC_FULL §7 item 2): RunAll first recomputes
// metadata offsets itself, then runs the plain global hooks (registered
// via configure_resume_hook), then the per-module PreResume event
// dispatch, where a
// module returning module.ErrNotSupported is permanently skipped
// instead of retried every resume, grounded on original
// core/resume_hook.cc's run_global_resume_hooks.
type ResumeHookRegistry struct {
	mu         sync.Mutex
	g          *graph.Graph
	hooks      []registeredHook
	unsupported map[string]bool
}

// NewResumeHookRegistry returns a registry whose RunAll recomputes g's
// metadata offsets and dispatches EventPreResume to every live module.
func NewResumeHookRegistry(g *graph.Graph) *ResumeHookRegistry {
	return &ResumeHookRegistry{g: g, unsupported: map[string]bool{}}
}

// Register adds a named global hook at the given priority (lower runs
// first), failing if the name is already taken.
func (r *ResumeHookRegistry) Register(name string, priority int, run func() error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range r.hooks {
		if h.name == name {
			return ErrResumeHookExists
		}
	}
	r.hooks = append(r.hooks, registeredHook{name: name, priority: priority, run: run})
	sort.SliceStable(r.hooks, func(i, j int) bool {
		if r.hooks[i].priority != r.hooks[j].priority {
			return r.hooks[i].priority < r.hooks[j].priority
		}
		return r.hooks[i].name < r.hooks[j].name
	})
	return nil
}

// RunAll runs every registered global hook in priority order, then
// dispatches EventPreResume to every live module, removing any module
// that reports module.ErrNotSupported from future dispatches. Returns
// the first error encountered, continuing past later hooks regardless
// (an interrupted resume otherwise leaves the rest never run).
func (r *ResumeHookRegistry) RunAll() error {
	if r.g != nil {
		r.g.SetOffsets(metadata.ComputeOffsets(r.g, r.g.Attrs()))
	}

	r.mu.Lock()
	hooks := append([]registeredHook(nil), r.hooks...)
	r.mu.Unlock()

	var first error
	for _, h := range hooks {
		if err := h.run(); err != nil && first == nil {
			first = err
		}
	}

	if r.g == nil {
		return first
	}
	for _, name := range r.g.Modules() {
		r.mu.Lock()
		skip := r.unsupported[name]
		r.mu.Unlock()
		if skip {
			continue
		}
		mod, err := r.g.ModuleAt(name)
		if err != nil {
			continue
		}
		if err := mod.OnEvent(module.EventPreResume); errors.Is(err, module.ErrNotSupported) {
			r.mu.Lock()
			r.unsupported[name] = true
			r.mu.Unlock()
		} else if err != nil && first == nil {
			first = err
		}
	}
	return first
}

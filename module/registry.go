package module

import (
	"fmt"
	"strings"
	"sync"
)

// Command describes one control-plane-invocable module command: a name,
// the handler, and whether it may run without pausing workers first
// (spec §4.G: "a command not marked MT-safe invoked while a worker is
// running" is InUse/Busy).
type Command struct {
	Name   string
	MTSafe bool
	Func   func(m Module, arg interface{}) (interface{}, error)
}

// ClassDesc is a module class's type descriptor: everything the graph
// needs to construct and describe instances without knowing the
// concrete Go type, the same role mclass played in the original and
// Processor's registry entry plays in the teacher.
type ClassDesc struct {
	Name        string
	Help        string
	// DefNameTemplate is the name prefix to which GenerateDefaultName
	// appends an incrementing integer when a module is created without
	// an explicit name.
	DefNameTemplate string
	NumIGates       int
	NumOGates       int
	NewInstance     func() Module
	Commands        []Command
}

// FindCommand returns the named command, or (Command{}, false).
func (d *ClassDesc) FindCommand(name string) (Command, bool) {
	for _, c := range d.Commands {
		if c.Name == name {
			return c, true
		}
	}
	return Command{}, false
}

// Registry is a name -> ClassDesc map, the Go analogue of the original's
// global mclass list / ModuleBuilder registry and the teacher's
// Processor factory idiom, adapted to an open registry since concrete
// module classes are out of this system's scope (spec.md Non-goals):
// callers register whatever classes they need at startup.
type Registry struct {
	mu  sync.RWMutex
	all map[string]*ClassDesc
}

// NewRegistry returns an empty class registry.
func NewRegistry() *Registry {
	return &Registry{all: map[string]*ClassDesc{}}
}

// Register adds desc under desc.Name. Fails if the name is already
// registered.
func (r *Registry) Register(desc *ClassDesc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.all[desc.Name]; exists {
		return ErrNameExists
	}
	r.all[desc.Name] = desc
	return nil
}

// Find returns the named class descriptor, or (nil, false).
func (r *Registry) Find(name string) (*ClassDesc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.all[name]
	return d, ok
}

// List returns every registered class name, sorted is left to the
// caller; iteration order over a map is not guaranteed so callers
// needing a stable listing should sort the result themselves.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.all))
	for name := range r.all {
		out = append(out, name)
	}
	return out
}

// camelToSnake converts "CamelCase" to "camel_case", the conversion the
// original applies to a class name lacking an explicit DefNameTemplate.
func camelToSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// GenerateDefaultName derives an auto-generated module name from a class
// descriptor: its DefNameTemplate (or, absent one, its snake_cased class
// name) with an incrementing suffix, probing exists until it finds an
// unused name. Supplemented feature (SPEC_FULL §7 item 1), grounded on
// original core/module_graph.cc's GenerateDefaultName.
func GenerateDefaultName(desc *ClassDesc, exists func(name string) bool) string {
	base := desc.DefNameTemplate
	if base == "" {
		base = camelToSnake(desc.Name)
	}
	for i := 0; ; i++ {
		candidate := fmt.Sprintf("%s%d", base, i)
		if !exists(candidate) {
			return candidate
		}
	}
}

package ctrl

import (
	"errors"
	"sort"
	"sync"

	"github.com/bess-go/bessd/module"
)

var (
	ErrGateHookClassExists   = errors.New("ctrl: gate hook class already registered")
	ErrGateHookClassNotFound = errors.New("ctrl: gate hook class not found")
)

// GateHookClassDesc describes one registered gate-hook class: a name
// and a constructor taking an opaque configuration argument, the
// gate-hook analogue of module.ClassDesc and port.DriverDesc.
type GateHookClassDesc struct {
	Name        string
	Help        string
	NewInstance func(arg interface{}) (module.GateHook, error)
}

// CommandableHook is the optional extension a GateHook implements to
// accept gatehook_command calls; hooks with no commands need not
// implement it.
type CommandableHook interface {
	Command(name string, arg interface{}) (interface{}, error)
}

// GateHookRegistry tracks registered gate-hook classes (counter and
// capture are pre-registered by New... callers register their own via
// RegisterClass).
type GateHookRegistry struct {
	mu      sync.RWMutex
	classes map[string]*GateHookClassDesc
}

// NewGateHookRegistry returns a registry pre-populated with the two
// built-in hook classes module.CounterHook/module.CaptureHook expose.
func NewGateHookRegistry() *GateHookRegistry {
	r := &GateHookRegistry{classes: map[string]*GateHookClassDesc{}}
	_ = r.RegisterClass(&GateHookClassDesc{
		Name: "counter",
		Help: "per-gate packet/byte counter",
		NewInstance: func(arg interface{}) (module.GateHook, error) {
			return module.NewCounterHook(), nil
		},
	})
	_ = r.RegisterClass(&GateHookClassDesc{
		Name: "capture",
		Help: "bounded raw-frame capture ring",
		NewInstance: func(arg interface{}) (module.GateHook, error) {
			limit, _ := arg.(int)
			if limit <= 0 {
				limit = 16
			}
			return module.NewCaptureHook(limit), nil
		},
	})
	return r
}

// RegisterClass adds desc under desc.Name.
func (r *GateHookRegistry) RegisterClass(desc *GateHookClassDesc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.classes[desc.Name]; exists {
		return ErrGateHookClassExists
	}
	r.classes[desc.Name] = desc
	return nil
}

// ListGatehookClass returns registered gate-hook class names.
func (s *Server) ListGatehookClass() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.GateHooks
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.classes))
	for name := range r.classes {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// GetGatehookClassInfo returns the named gate-hook class descriptor.
func (s *Server) GetGatehookClassInfo(name string) (*GateHookClassDesc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.GateHooks
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.classes[name]
	if !ok {
		return nil, ErrGateHookClassNotFound
	}
	return d, nil
}

// GateRef identifies one gate a hook attaches to: a module name, a
// direction, and a gate index.
type GateRef struct {
	Module    string
	Direction bool // true = output gate, false = input gate
	Index     int
}

// ListGatehooks returns the names of hooks currently attached to ref,
// in firing order.
func (s *Server) ListGatehooks(ref GateRef) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hooks, err := s.hooksAtLocked(ref)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(hooks))
	for i, h := range hooks {
		out[i] = h.Name()
	}
	return out, nil
}

func (s *Server) hooksAtLocked(ref GateRef) ([]module.GateHook, error) {
	if ref.Direction {
		og, err := s.Graph.OGateAt(ref.Module, ref.Index)
		if err != nil {
			return nil, err
		}
		return og.Hooks(), nil
	}
	ig, err := s.Graph.IGateAt(ref.Module, ref.Index)
	if err != nil {
		return nil, err
	}
	return ig.Hooks(), nil
}

// ConfigureGatehook instantiates className (with arg) and attaches it
// to ref.
func (s *Server) ConfigureGatehook(ref GateRef, className string, arg interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.GateHooks
	r.mu.RLock()
	desc, ok := r.classes[className]
	r.mu.RUnlock()
	if !ok {
		return ErrGateHookClassNotFound
	}
	hook, err := desc.NewInstance(arg)
	if err != nil {
		return err
	}

	guard := s.Workers.Pause()
	defer func() { _ = guard.Close(s.Resume) }()

	if ref.Direction {
		og, err := s.Graph.OGateAt(ref.Module, ref.Index)
		if err != nil {
			return err
		}
		og.AddHook(hook)
		return nil
	}
	ig, err := s.Graph.IGateAt(ref.Module, ref.Index)
	if err != nil {
		return err
	}
	ig.AddHook(hook)
	return nil
}

// GatehookCommand dispatches a command to an already-attached hook
// implementing CommandableHook, identified by its class name.
func (s *Server) GatehookCommand(ref GateRef, hookName, cmdName string, arg interface{}) (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hooks, err := s.hooksAtLocked(ref)
	if err != nil {
		return nil, err
	}
	for _, h := range hooks {
		if h.Name() != hookName {
			continue
		}
		cmdable, ok := h.(CommandableHook)
		if !ok {
			return nil, module.ErrNotSupported
		}
		return cmdable.Command(cmdName, arg)
	}
	return nil, ErrNotFound
}

// ConfigureResumeHook registers a named global resume hook, delegating
// to the server's ResumeHookRegistry.
func (s *Server) ConfigureResumeHook(name string, priority int, run func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Resume.Register(name, priority, run)
}

package ctrl

import (
	"sort"

	"github.com/bess-go/bessd/metadata"
	"github.com/bess-go/bessd/module"
)

// ListMclass returns every registered module class name.
func (s *Server) ListMclass() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.Modules.List()
	sort.Strings(out)
	return out
}

// GetMclassInfo returns the named class descriptor.
func (s *Server) GetMclassInfo(name string) (*module.ClassDesc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.Modules.Find(name)
	if !ok {
		return nil, module.ErrClassNotFound
	}
	return d, nil
}

// ListModules returns every module name currently in the graph.
func (s *Server) ListModules() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Graph.Modules()
}

// CreateModule instantiates className under name (or an
// auto-generated name if name is ""), registers its declared
// attributes, and recomputes metadata offsets before returning.
func (s *Server) CreateModule(className, name string, arg interface{}, attrs []metadata.Attribute) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	desc, ok := s.Modules.Find(className)
	if !ok {
		return "", module.ErrClassNotFound
	}
	if name == "" {
		name = s.Graph.GenerateDefaultName(desc)
	}

	guard := s.Workers.Pause()
	_, err := s.Graph.CreateModule(desc, name, arg, attrs)
	if err != nil {
		_ = guard.Close(s.Resume)
		return "", err
	}
	return name, guard.Close(s.Resume)
}

// DestroyModule removes a module and disconnects every gate touching
// it.
func (s *Server) DestroyModule(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	guard := s.Workers.Pause()
	err := s.Graph.DestroyModule(name)
	if err != nil {
		_ = guard.Close(s.Resume)
		return err
	}
	return guard.Close(s.Resume)
}

// GetModuleInfo returns a module's class descriptor and gate counts.
func (s *Server) GetModuleInfo(name string) (desc *module.ClassDesc, numIGates, numOGates int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Graph.ModuleInfo(name)
}

// ConnectModules wires fromName's output gate to toName's input gate.
func (s *Server) ConnectModules(fromName string, oidx int, toName string, iidx int, skipDefaultHooks bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	guard := s.Workers.Pause()
	err := s.Graph.Connect(fromName, oidx, toName, iidx, skipDefaultHooks)
	if err != nil {
		_ = guard.Close(s.Resume)
		return err
	}
	return guard.Close(s.Resume)
}

// DisconnectModules removes fromName's output gate oidx.
func (s *Server) DisconnectModules(fromName string, oidx int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	guard := s.Workers.Pause()
	err := s.Graph.Disconnect(fromName, oidx)
	if err != nil {
		_ = guard.Close(s.Resume)
		return err
	}
	return guard.Close(s.Resume)
}

// ResetModules destroys every module in the graph.
func (s *Server) ResetModules() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	guard := s.Workers.Pause()
	s.resetModulesLocked()
	return guard.Close(s.Resume)
}

func (s *Server) resetModulesLocked() {
	for _, name := range s.Graph.Modules() {
		_ = s.Graph.DestroyModule(name)
	}
}

// ModuleCommand dispatches name's class-declared command against the
// live module. A command not marked MTSafe requires every worker
// paused first (spec §4.G).
func (s *Server) ModuleCommand(name, cmdName string, arg interface{}) (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	desc, _, _, err := s.Graph.ModuleInfo(name)
	if err != nil {
		return nil, err
	}
	cmd, ok := desc.FindCommand(cmdName)
	if !ok {
		return nil, module.ErrNotSupported
	}
	mod, err := s.Graph.ModuleAt(name)
	if err != nil {
		return nil, err
	}

	if cmd.MTSafe {
		return cmd.Func(mod, arg)
	}

	guard := s.Workers.Pause()
	defer func() { _ = guard.Close(s.Resume) }()
	return cmd.Func(mod, arg)
}

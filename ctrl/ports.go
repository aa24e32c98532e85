package ctrl

import (
	"errors"
	"sort"
	"sync"

	"github.com/bess-go/bessd/port"
)

var (
	ErrDriverExists = errors.New("ctrl: driver already registered")
	ErrDriverNotFound = errors.New("ctrl: driver not found")
	ErrPortExists   = errors.New("ctrl: port name already exists")
	ErrPortNotFound = errors.New("ctrl: port not found")
)

// DriverDesc describes one registered port driver: everything
// create_port needs to instantiate a concrete port.Port without
// knowing its Go type, the port-side analogue of module.ClassDesc.
type DriverDesc struct {
	Name        string
	Help        string
	NewInstance func() port.Port
}

// PortRegistry tracks registered drivers (list_drivers/get_driver_info)
// and live port instances (list_ports/create_port/destroy_port/...).
type PortRegistry struct {
	mu      sync.RWMutex
	drivers map[string]*DriverDesc
	ports   map[string]port.Port
}

// NewPortRegistry returns an empty driver/port registry.
func NewPortRegistry() *PortRegistry {
	return &PortRegistry{drivers: map[string]*DriverDesc{}, ports: map[string]port.Port{}}
}

// RegisterDriver adds desc under desc.Name, e.g. at startup.
func (r *PortRegistry) RegisterDriver(desc *DriverDesc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.drivers[desc.Name]; exists {
		return ErrDriverExists
	}
	r.drivers[desc.Name] = desc
	return nil
}

// ListDrivers returns registered driver names.
func (s *Server) ListDrivers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.Ports
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.drivers))
	for name := range r.drivers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// GetDriverInfo returns the named driver's descriptor.
func (s *Server) GetDriverInfo(name string) (*DriverDesc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.Ports
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.drivers[name]
	if !ok {
		return nil, ErrDriverNotFound
	}
	return d, nil
}

// ListPorts returns live port names.
func (s *Server) ListPorts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.Ports
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.ports))
	for name := range r.ports {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// CreatePort instantiates driverName's port and initializes it with
// conf under name.
func (s *Server) CreatePort(name, driverName string, conf port.Conf) (port.Port, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.Ports

	r.mu.Lock()
	if _, exists := r.ports[name]; exists {
		r.mu.Unlock()
		return nil, ErrPortExists
	}
	d, ok := r.drivers[driverName]
	r.mu.Unlock()
	if !ok {
		return nil, ErrDriverNotFound
	}

	p := d.NewInstance()
	if err := p.Init(conf); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.ports[name] = p
	r.mu.Unlock()
	return p, nil
}

// DestroyPort deinitializes and forgets the named port.
func (s *Server) DestroyPort(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.Ports
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.ports[name]
	if !ok {
		return ErrPortNotFound
	}
	p.Deinit()
	delete(r.ports, name)
	return nil
}

func (s *Server) findPortLocked(name string) (port.Port, error) {
	r := s.Ports
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.ports[name]
	if !ok {
		return nil, ErrPortNotFound
	}
	return p, nil
}

// SetPortConf reconfigures a live port.
func (s *Server) SetPortConf(name string, conf port.Conf) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.findPortLocked(name)
	if err != nil {
		return err
	}
	return p.UpdateConf(conf)
}

// GetPortConf is a placeholder for a config echo: concrete ports own
// their Conf type, so callers type-assert the driver-specific value
// they passed to SetPortConf/CreatePort themselves; this just confirms
// the port exists.
func (s *Server) GetPortConf(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.findPortLocked(name)
	return err
}

// GetPortStats returns the named port's per-queue counters.
func (s *Server) GetPortStats(name string, reset bool) ([2][port.MaxQueues]port.QueueStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.findPortLocked(name)
	if err != nil {
		return [2][port.MaxQueues]port.QueueStats{}, err
	}
	return p.CollectStats(reset), nil
}

// GetLinkStatus returns the named port's physical link state.
func (s *Server) GetLinkStatus(name string) (port.LinkStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.findPortLocked(name)
	if err != nil {
		return port.LinkStatus{}, err
	}
	return p.GetLinkStatus(), nil
}

// ResetPorts destroys every live port.
func (s *Server) ResetPorts() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetPortsLocked()
}

func (s *Server) resetPortsLocked() {
	r := s.Ports
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.ports {
		p.Deinit()
	}
	r.ports = map[string]port.Port{}
}

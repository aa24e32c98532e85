package ctrl

import (
	"sort"

	"golang.org/x/time/rate"

	"github.com/bess-go/bessd/graph"
	"github.com/bess-go/bessd/tc"
	"github.com/bess-go/bessd/worker"
)

// ListTCs returns every traffic class name the builder tracks, sorted.
func (s *Server) ListTCs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.Builder.All()
	out := make([]string, 0, len(all))
	for _, c := range all {
		out = append(out, c.Name())
	}
	sort.Strings(out)
	return out
}

// AddTCParams describes a class to create via AddTC. Resource/LimitArg/
// MaxBurstArg/TscHz apply only to WeightedFair/RateLimit policies.
// ParentName, if set, attaches the new class as a child immediately;
// otherwise it is registered as an orphan hinted at WorkerIDHint (or
// worker.AnyWorker).
type AddTCParams struct {
	Name         string
	Policy       tc.Policy
	Resource     tc.Resource
	LimitArg     uint64
	MaxBurstArg  uint64
	TscHz        uint64
	ParentName   string
	Priority     uint32
	Share        int32
	WorkerIDHint int
}

// AddTC creates a traffic class and either attaches it to an existing
// parent or registers it as an orphan for the next resume to graft.
// Like every structural mutation, it runs under a WorkerPauser.
func (s *Server) AddTC(p AddTCParams) (*tc.TrafficClass, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	guard := s.Workers.Pause()
	defer func() { _ = guard.Close(s.Resume) }()

	var c *tc.TrafficClass
	var err error
	switch p.Policy {
	case tc.PolicyPriority:
		c, err = s.Builder.CreatePriority(p.Name)
	case tc.PolicyWeightedFair:
		c, err = s.Builder.CreateWeightedFair(p.Name, p.Resource)
	case tc.PolicyRoundRobin:
		c, err = s.Builder.CreateRoundRobin(p.Name)
	case tc.PolicyRateLimit:
		c, err = s.Builder.CreateRateLimit(p.Name, p.Resource, p.LimitArg, p.MaxBurstArg, p.TscHz)
	default:
		return nil, ErrUnknownPolicy
	}
	if err != nil {
		return nil, err
	}

	if p.ParentName == "" {
		wid := p.WorkerIDHint
		if wid == 0 {
			wid = worker.AnyWorker
		}
		s.Workers.AddOrphan(wid, c)
		return c, nil
	}

	parent := s.Builder.Find(p.ParentName)
	if parent == nil {
		_ = s.Builder.Clear(c)
		return nil, ErrNotFound
	}
	if err := attachChild(parent, c, p.Priority, p.Share); err != nil {
		_ = s.Builder.Clear(c)
		return nil, err
	}
	return c, nil
}

func attachChild(parent, child *tc.TrafficClass, priority uint32, share int32) error {
	switch parent.Policy() {
	case tc.PolicyPriority:
		return parent.AddChildPriority(child, priority)
	case tc.PolicyWeightedFair:
		return parent.AddChildWeightedFair(child, share)
	case tc.PolicyRoundRobin:
		return parent.AddChildRoundRobin(child)
	case tc.PolicyRateLimit:
		return parent.AddChildRateLimit(child)
	default:
		return ErrNotAttachable
	}
}

// UpdateTCParams reconfigures a rate-limit class's throttle in place
// (the only policy with mutable runtime parameters).
func (s *Server) UpdateTCParams(name string, limitArg, maxBurstArg, tscHz uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.Builder.Find(name)
	if c == nil {
		return ErrNotFound
	}
	if c.Policy() != tc.PolicyRateLimit {
		return ErrNotAttachable
	}
	guard := s.Workers.Pause()
	c.SetLimit(limitArg, tscHz)
	c.SetMaxBurst(maxBurstArg)
	return guard.Close(s.Resume)
}

// UpdateTCParamsPerSecond reconfigures a rate-limit class the
// wall-clock-friendly way: callers give a resource-units-per-second
// limit and a burst size instead of pre-converted work units, and the
// class derives its TSC-cycle token bucket from a
// golang.org/x/time/rate.Limiter built from those two numbers.
func (s *Server) UpdateTCParamsPerSecond(name string, perSecond float64, burst int, tscHz uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.Builder.Find(name)
	if c == nil {
		return ErrNotFound
	}
	if c.Policy() != tc.PolicyRateLimit {
		return ErrNotAttachable
	}
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)
	guard := s.Workers.Pause()
	c.ConfigureWallClock(limiter, tscHz)
	return guard.Close(s.Resume)
}

// UpdateTCParent detaches name from its current parent (if any; it may
// be a freshly created orphan) and reattaches it under newParentName.
func (s *Server) UpdateTCParent(name, newParentName string, priority uint32, share int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.Builder.Find(name)
	if c == nil {
		return ErrNotFound
	}
	newParent := s.Builder.Find(newParentName)
	if newParent == nil {
		return ErrNotFound
	}

	guard := s.Workers.Pause()
	defer func() { _ = guard.Close(s.Resume) }()

	if p := c.Parent(); p != nil {
		p.RemoveChild(c)
	} else {
		s.Workers.RemoveOrphan(c)
	}
	return attachChild(newParent, c, priority, share)
}

// GetTCStats returns the named class's accumulated resource usage.
func (s *Server) GetTCStats(name string) (tc.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.Builder.Find(name)
	if c == nil {
		return tc.Stats{}, ErrNotFound
	}
	return c.Stats(), nil
}

// ResetTCs wipes the entire traffic-class registry.
func (s *Server) ResetTCs() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	guard := s.Workers.Pause()
	s.resetTCsLocked()
	return guard.Close(s.Resume)
}

func (s *Server) resetTCsLocked() {
	s.Builder.Reset()
}

// CheckSchedulingConstraints recomputes each module's active-worker set
// from the current worker trees, then reports every placement
// violation found. No pause is required (spec §4.C).
func (s *Server) CheckSchedulingConstraints() []graph.Violation {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Graph.PropagateActiveWorker(s.Workers.WorkerTrees())
	return s.Graph.CheckConstraints(s.Workers.WorkerSockets())
}

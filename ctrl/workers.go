package ctrl

import (
	"github.com/bess-go/bessd/sched"
	"github.com/bess-go/bessd/worker"
)

// ListWorkers returns launched worker ids in ascending order.
func (s *Server) ListWorkers() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Workers.ListWorkers()
}

// AddWorker launches a worker pinned to core/socket with an empty
// traffic-class tree, running schedulerName's run loop ("" or
// "default" for DefaultScheduler, "experimental" for
// ExperimentalScheduler).
func (s *Server) AddWorker(wid, core, socket int, schedulerName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc := sched.New(s.Builder, wid, nil)
	var rl worker.Scheduler
	switch schedulerName {
	case "", "default":
		rl = sched.NewDefault(sc, nil)
	case "experimental":
		rl = sched.NewExperimental(sc, nil)
	default:
		return ErrUnknownScheduler
	}
	return s.Workers.Launch(worker.New(wid, core, socket, rl))
}

// DestroyWorker tears down a single worker.
func (s *Server) DestroyWorker(wid int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Workers.DestroyWorker(wid)
}

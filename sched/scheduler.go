package sched

import (
	"errors"
	"strconv"

	"github.com/bess-go/bessd/module"
	"github.com/bess-go/bessd/tc"
)

var ErrNoRoot = errors.New("sched: scheduler has no root")

// Stats accumulates whole-scheduler idle accounting, separate from any
// one traffic class's own Stats.
type Stats struct {
	CntIdle    uint64
	CyclesIdle uint64
}

// Scheduler holds one worker's traffic-class tree root and wakeup
// queue. It is not used directly; DefaultScheduler and
// ExperimentalScheduler embed it and supply their own ScheduleOnce.
type Scheduler struct {
	builder       *tc.Builder
	root          *tc.TrafficClass
	defaultRR     *tc.TrafficClass
	wakeupQ       *WakeupQueue
	stats         Stats
	checkpoint    uint64
	workerID      int
	defaultRRName string
}

// New returns an empty scheduler for the given worker id, pulling
// traffic classes from builder. root may be nil (an idle worker with no
// work yet, populated later via AttachOrphan).
func New(builder *tc.Builder, workerID int, root *tc.TrafficClass) *Scheduler {
	return &Scheduler{
		builder:  builder,
		root:     root,
		wakeupQ:  NewWakeupQueue(),
		workerID: workerID,
	}
}

// Root returns the scheduler's current tree root, or nil if empty.
func (s *Scheduler) Root() *tc.TrafficClass { return s.root }

// WakeupQueue exposes the scheduler's wakeup heap, e.g. for tc's
// rate-limit accounting to enqueue into directly.
func (s *Scheduler) WakeupQueue() *WakeupQueue { return s.wakeupQ }

// NumTcs returns the number of traffic classes in the tree, 0 if empty.
func (s *Scheduler) NumTcs() int {
	if s.root == nil {
		return 0
	}
	return s.root.Size()
}

// LeafTasks returns every module.Task bound to a leaf reachable from the
// root, implementing graph.WorkerTree for constraint propagation (spec
// §4.F.3). Leaves not bound through a *module.Task (e.g. a bare
// tc.LeafTask used in a unit test) are skipped.
func (s *Scheduler) LeafTasks() []*module.Task {
	if s.root == nil {
		return nil
	}
	var out []*module.Task
	var walk func(c *tc.TrafficClass)
	walk = func(c *tc.TrafficClass) {
		if c.Policy() == tc.PolicyLeaf {
			if t, ok := c.Task().(*module.Task); ok {
				out = append(out, t)
			}
			return
		}
		for _, child := range c.Children() {
			walk(child)
		}
	}
	walk(s.root)
	return out
}

// AttachOrphan grafts c onto the top of the scheduler's tree: if the
// scheduler is empty c becomes the root outright; otherwise c joins a
// synthesized "!default_rr_<wid>" round-robin root alongside whatever
// was there before (spec §4.F "Orphan attachment").
func (s *Scheduler) AttachOrphan(c *tc.TrafficClass) error {
	if s.root == nil {
		s.root = c
		return nil
	}
	if s.defaultRR != nil {
		return s.defaultRR.AddChildRoundRobin(c)
	}
	s.defaultRRName = defaultRRName(s.workerID, s.builder)
	rr, err := s.builder.CreateRoundRobin(s.defaultRRName)
	if err != nil {
		return err
	}
	if err := rr.AddChildRoundRobin(s.root); err != nil {
		return err
	}
	if err := rr.AddChildRoundRobin(c); err != nil {
		return err
	}
	s.defaultRR = rr
	s.root = rr
	return nil
}

func defaultRRName(wid int, builder *tc.Builder) string {
	base := "!default_rr_" + strconv.Itoa(wid)
	name := base
	for i := 0; builder.Find(name) != nil; i++ {
		name = base + "_" + strconv.Itoa(i)
	}
	return name
}

// AdjustDefault collapses a synthesized default round-robin root once
// orphan removal has left it with zero or one children, restoring a
// plain single-class (or empty) tree.
func (s *Scheduler) AdjustDefault() {
	if s.root == nil || s.defaultRR == nil {
		return
	}
	children := s.defaultRR.Children()
	switch len(children) {
	case 0:
		s.builder.Clear(s.root)
		s.root = nil
		s.defaultRR = nil
	case 1:
		s.defaultRR.RemoveChild(children[0])
		s.builder.Clear(s.defaultRR)
		s.root = children[0]
		s.defaultRR = nil
	}
}

// RemoveRoot detaches c if it is currently the scheduler's bare root
// (not a synthesized default-rr root); the caller takes ownership of c.
func (s *Scheduler) RemoveRoot(c *tc.TrafficClass) bool {
	if s.root == c && s.defaultRR == nil {
		s.root = nil
		return true
	}
	return false
}

// Next picks the next runnable leaf at tsc, first waking any blocked
// classes whose wakeup time has arrived. Returns nil if the tree is
// empty or fully blocked.
func (s *Scheduler) Next(tsc uint64) *tc.TrafficClass {
	s.wakeupQ.wakeDue(tsc)
	if s.root == nil || s.root.Blocked() {
		return nil
	}
	c := s.root
	for c.Policy() != tc.PolicyLeaf {
		next := c.PickNextChild()
		if next == nil {
			return nil
		}
		c = next
	}
	return c
}

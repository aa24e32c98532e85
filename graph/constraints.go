package graph

import (
	"fmt"
	"sort"

	"github.com/bess-go/bessd/module"
	"github.com/bess-go/bessd/port"
)

// WorkerTree is the minimal view PropagateActiveWorker needs of one
// worker's scheduler: every leaf task currently reachable in its traffic
// class tree. sched.Scheduler implements this directly (see
// sched.Scheduler.LeafTasks), keeping graph free of any dependency on
// the scheduler or tc packages.
type WorkerTree interface {
	LeafTasks() []*module.Task
}

// PropagateActiveWorker recomputes every module's active-worker set by
// walking each worker's traffic-class tree: for every leaf task, the
// owning module records the worker id and always propagates it one hop
// downstream through every connected output gate; each module reached
// that way records the id too and keeps propagating only if its
// PlacementConstraint requests it (PropagateWorkers).
// Matches original core/module_graph.cc's propagate_active_worker.
// It runs when ctrl's CheckSchedulingConstraints is called; the resume
// path does not call it.
func (g *Graph) PropagateActiveWorker(workers map[int]WorkerTree) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, n := range g.arena {
		if n != nil && n.live {
			n.active = map[int]bool{}
		}
	}

	for wid, w := range workers {
		for _, t := range w.LeafTasks() {
			ownerIdx := g.ownerIndexOf(t.Owner)
			if ownerIdx < 0 {
				continue
			}
			g.markActiveLocked(ownerIdx, wid, true, map[int]bool{})
		}
	}
}

func (g *Graph) ownerIndexOf(m module.Module) int {
	for idx, n := range g.arena {
		if n != nil && n.live && n.mod == m {
			return idx
		}
	}
	return -1
}

func (g *Graph) markActiveLocked(idx, wid int, owner bool, visited map[int]bool) {
	if visited[idx] {
		return
	}
	visited[idx] = true
	n := g.arena[idx]
	n.active[wid] = true
	if !owner && !n.constraint.PropagateWorkers {
		return
	}
	for child := range n.children {
		ci, ok := g.byName[child]
		if !ok {
			continue
		}
		g.markActiveLocked(ci, wid, false, visited)
	}
}

// SetConstraint records the NUMA/worker-count placement constraint for
// the module named name, consulted by CheckConstraints and
// PropagateActiveWorker.
func (g *Graph) SetConstraint(name string, c module.PlacementConstraint) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	idx, ok := g.byName[name]
	if !ok {
		return ErrNotFound
	}
	g.arena[idx].constraint = c
	return nil
}

// Violation describes one module's constraint breach found by
// CheckConstraints.
type Violation struct {
	Module string
	Reason string
	Fatal  bool // too many workers: unsafe, must halt resume
}

// CheckConstraints validates every module's active-worker set against
// its declared placement constraint; no WorkerPauser is required since
// it only reads. A violation is Fatal when more workers reach the
// module than MaxWorkers permits (unsafe: concurrent writers to
// module-private state), and non-fatal (logged, resume proceeds) when
// at least one but fewer workers reach it than MinWorkers requires, or
// its NUMA mask rules out every reaching worker's socket. A module no
// worker reaches gets neither non-fatal violation.
func (g *Graph) CheckConstraints(workerSockets map[int]int) []Violation {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []Violation
	names := make([]string, 0, len(g.byName))
	for name := range g.byName {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		n := g.arena[g.byName[name]]
		c := n.constraint
		count := len(n.active)
		if c.MaxWorkers > 0 && count > c.MaxWorkers {
			out = append(out, Violation{
				Module: name,
				Reason: fmt.Sprintf("%d workers active, max %d allowed", count, c.MaxWorkers),
				Fatal:  true,
			})
		}
		if c.MinWorkers > 0 && count < c.MinWorkers && count > 0 {
			out = append(out, Violation{
				Module: name,
				Reason: fmt.Sprintf("%d workers active, min %d required", count, c.MinWorkers),
				Fatal:  false,
			})
		}
		if c.NodeMask != 0 {
			ok := false
			for wid := range n.active {
				socket, known := workerSockets[wid]
				if !known {
					continue
				}
				if c.NodeMask&(port.NodeMask(1)<<uint(socket)) != 0 {
					ok = true
					break
				}
			}
			if !ok && count > 0 {
				out = append(out, Violation{
					Module: name,
					Reason: "no active worker's socket is permitted by this module's node mask",
					Fatal:  false,
				})
			}
		}
	}
	return out
}

package worker

import (
	"errors"
	"sort"
	"sync"

	"github.com/bess-go/bessd/graph"
	"github.com/bess-go/bessd/tc"
	"golang.org/x/sync/errgroup"
)

// MaxWorkers bounds worker ids, matching spec §3.7's "≥16".
const MaxWorkers = 64

var (
	ErrWorkerExists   = errors.New("worker: id already launched")
	ErrTooManyWorkers = errors.New("worker: MaxWorkers exceeded")
)

type orphanEntry struct {
	widHint int
	class   *tc.TrafficClass
}

// Runtime owns every launched Worker plus the pending orphan-TC list,
// the global state original/core/worker.cc kept in package-level
// arrays (worker_threads, workers, orphan_tcs). One Runtime exists per
// process.
type Runtime struct {
	mu      sync.Mutex
	workers map[int]*Worker
	orphans []orphanEntry
	nextRR  int
}

// NewRuntime returns an empty worker runtime.
func NewRuntime() *Runtime {
	return &Runtime{workers: make(map[int]*Worker)}
}

// Launch registers w and starts its goroutine, blocking until it
// reports PAUSED.
func (r *Runtime) Launch(w *Worker) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.workers[w.WID()]; exists {
		return ErrWorkerExists
	}
	if len(r.workers) >= MaxWorkers {
		return ErrTooManyWorkers
	}
	w.Launch()
	r.workers[w.WID()] = w
	return nil
}

// Worker looks up a launched worker by id.
func (r *Runtime) Worker(wid int) (*Worker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workers[wid]
	return w, ok
}

// NumWorkers returns the count of currently launched workers.
func (r *Runtime) NumWorkers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workers)
}

// IsAnyRunning reports whether any launched worker is currently RUNNING.
func (r *Runtime) IsAnyRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range r.workers {
		if w.Status() == StatusRunning {
			return true
		}
	}
	return false
}

// ListWorkers returns launched worker ids in ascending order, for
// list_workers.
func (r *Runtime) ListWorkers() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int, 0, len(r.workers))
	for wid := range r.workers {
		ids = append(ids, wid)
	}
	sort.Ints(ids)
	return ids
}

func (r *Runtime) snapshotLocked() []*Worker {
	ws := make([]*Worker, 0, len(r.workers))
	for _, w := range r.workers {
		ws = append(ws, w)
	}
	sort.Slice(ws, func(i, j int) bool { return ws[i].WID() < ws[j].WID() })
	return ws
}

// PauseAllWorkers requests every RUNNING worker pause, in parallel, and
// waits for all of them to report PAUSED.
func (r *Runtime) PauseAllWorkers() {
	r.mu.Lock()
	ws := r.snapshotLocked()
	r.mu.Unlock()

	var g errgroup.Group
	for _, w := range ws {
		w := w
		g.Go(func() error { w.Pause(); return nil })
	}
	_ = g.Wait()
}

// ResumeAllWorkers adjusts every worker's default round-robin root, then
// resumes every PAUSED worker in parallel (original resume_all_workers,
// minus the attach_orphans/global-hooks steps that precede it — those
// are driven by WorkerPauser so callers can run resume hooks in
// between).
func (r *Runtime) ResumeAllWorkers() {
	r.mu.Lock()
	ws := r.snapshotLocked()
	r.mu.Unlock()

	for _, w := range ws {
		w.Scheduler().AdjustDefault()
	}

	var g errgroup.Group
	for _, w := range ws {
		w := w
		g.Go(func() error { w.Resume(); return nil })
	}
	_ = g.Wait()
}

// DestroyWorker pauses, signals quit, and drops wid from the runtime.
func (r *Runtime) DestroyWorker(wid int) {
	r.mu.Lock()
	w, ok := r.workers[wid]
	r.mu.Unlock()
	if !ok {
		return
	}
	w.Destroy()
	r.mu.Lock()
	delete(r.workers, wid)
	r.mu.Unlock()
}

// DestroyAllWorkers destroys every launched worker.
func (r *Runtime) DestroyAllWorkers() {
	for _, wid := range r.ListWorkers() {
		r.DestroyWorker(wid)
	}
}

// AddOrphan records a detached traffic class for grafting onto widHint
// (or AnyWorker) at the next AttachOrphans call (original
// add_tc_to_orphan).
func (r *Runtime) AddOrphan(widHint int, c *tc.TrafficClass) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orphans = append(r.orphans, orphanEntry{widHint: widHint, class: c})
}

// RemoveOrphan cancels a pending orphan attachment, e.g. because the
// class was destroyed before the next resume (original
// remove_tc_from_orphan).
func (r *Runtime) RemoveOrphan(c *tc.TrafficClass) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, o := range r.orphans {
		if o.class == c {
			r.orphans = append(r.orphans[:i], r.orphans[i+1:]...)
			return true
		}
	}
	return false
}

// pickWorkerLocked resolves a worker-id hint to a concrete worker,
// round-robining over active workers for AnyWorker or an unknown id
// (original get_next_active_worker). Returns nil if no worker is
// launched at all: the orphan is skipped and stays pending.
func (r *Runtime) pickWorkerLocked(widHint int) *Worker {
	if w, ok := r.workers[widHint]; ok {
		return w
	}
	ids := make([]int, 0, len(r.workers))
	for wid := range r.workers {
		ids = append(ids, wid)
	}
	if len(ids) == 0 {
		return nil
	}
	sort.Ints(ids)
	wid := ids[r.nextRR%len(ids)]
	r.nextRR++
	return r.workers[wid]
}

// AttachOrphans grafts every pending orphan onto its hinted worker (or
// the next active one), skipping any that gained a parent in the
// meantime. Must only be called while no worker is running (original
// attach_orphans).
func (r *Runtime) AttachOrphans() {
	r.mu.Lock()
	pending := r.orphans
	r.orphans = nil
	var stillPending []orphanEntry
	for _, o := range pending {
		if o.class.Parent() != nil {
			continue
		}
		w := r.pickWorkerLocked(o.widHint)
		if w == nil {
			stillPending = append(stillPending, o)
			continue
		}
		_ = w.Scheduler().AttachOrphan(o.class)
	}
	r.orphans = stillPending
	r.mu.Unlock()
}

// WorkerTrees returns a snapshot suitable for
// graph.Graph.PropagateActiveWorker.
func (r *Runtime) WorkerTrees() map[int]graph.WorkerTree {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[int]graph.WorkerTree, len(r.workers))
	for wid, w := range r.workers {
		out[wid] = w.Scheduler()
	}
	return out
}

// WorkerSockets returns wid -> NUMA socket, for graph.Graph.CheckConstraints.
func (r *Runtime) WorkerSockets() map[int]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[int]int, len(r.workers))
	for wid, w := range r.workers {
		out[wid] = w.Socket()
	}
	return out
}

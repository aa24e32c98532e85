package worker

import (
	"sync"

	"github.com/bess-go/bessd/module"
	"github.com/bess-go/bessd/sched"
	"github.com/bess-go/bessd/tc"
)

// AnyWorker is the worker-id-hint sentinel meaning "pick whichever
// active worker is next in round-robin order", mirroring
// Worker::kAnyWorker.
const AnyWorker = -1

// Scheduler is the subset of sched.DefaultScheduler/ExperimentalScheduler
// a Worker drives: both satisfy it via their embedded *sched.Scheduler
// plus their own ScheduleLoop/ScheduleOnce.
type Scheduler interface {
	ScheduleLoop(pause sched.PauseSignal)
	ScheduleOnce()
	Root() *tc.TrafficClass
	LeafTasks() []*module.Task
	AttachOrphan(c *tc.TrafficClass) error
	AdjustDefault()
	NumTcs() int
}

// Worker is one pinned poll-mode execution unit: an id, a CPU core, a
// NUMA socket, the scheduler owning its traffic-class tree, and the
// pause/resume handshake state (spec §3.7). A sync.Cond replaces the
// original's eventfd-plus-spin-loop handshake; BlockUntilResumed still
// blocks the worker's own goroutine exactly where the original blocked
// reading its signal fd.
type Worker struct {
	wid, core, socket int
	scheduler         Scheduler

	mu     sync.Mutex
	cond   *sync.Cond
	status Status
	sigCh  chan signal
}

// New constructs a worker in the PAUSING state; it does not start
// running until Launch is called.
func New(wid, core, socket int, s Scheduler) *Worker {
	w := &Worker{
		wid:       wid,
		core:      core,
		socket:    socket,
		scheduler: s,
		status:    StatusPausing,
		sigCh:     make(chan signal),
	}
	w.cond = sync.NewCond(&w.mu)
	return w
}

func (w *Worker) WID() int            { return w.wid }
func (w *Worker) Core() int           { return w.core }
func (w *Worker) Socket() int         { return w.socket }
func (w *Worker) Scheduler() Scheduler { return w.scheduler }

func (w *Worker) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

func (w *Worker) setStatus(s Status) {
	w.mu.Lock()
	w.status = s
	w.cond.Broadcast()
	w.mu.Unlock()
}

func (w *Worker) waitForStatus(s Status) {
	w.mu.Lock()
	for w.status != s {
		w.cond.Wait()
	}
	w.mu.Unlock()
}

// IsPauseRequested implements sched.PauseSignal.
func (w *Worker) IsPauseRequested() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status == StatusPausing
}

// BlockUntilResumed implements sched.PauseSignal: it marks the worker
// PAUSED and blocks until resume_worker or destroy_worker signals it.
func (w *Worker) BlockUntilResumed() bool {
	w.setStatus(StatusPaused)
	sig := <-w.sigCh
	if sig == sigQuit {
		w.setStatus(StatusFinished)
		return true
	}
	w.setStatus(StatusRunning)
	return false
}

// Launch starts the worker's scheduler loop on its own goroutine and
// blocks until it reports PAUSED, mirroring launch_worker's spin-wait.
// A freshly launched worker starts PAUSING, so its first pause check
// (round 0) immediately parks it — it will not run a single task until
// Resume is called.
func (w *Worker) Launch() {
	go w.scheduler.ScheduleLoop(w)
	w.waitForStatus(StatusPaused)
}

// Pause requests the worker stop and blocks until it reports PAUSED.
// A no-op if the worker isn't RUNNING.
func (w *Worker) Pause() {
	w.mu.Lock()
	if w.status != StatusRunning {
		w.mu.Unlock()
		return
	}
	w.status = StatusPausing
	w.cond.Broadcast()
	w.mu.Unlock()
	w.waitForStatus(StatusPaused)
}

// Resume signals a PAUSED worker to continue and blocks until it
// reports RUNNING. A no-op if the worker isn't PAUSED.
func (w *Worker) Resume() {
	w.mu.Lock()
	paused := w.status == StatusPaused
	w.mu.Unlock()
	if !paused {
		return
	}
	w.sigCh <- sigUnblock
	w.waitForStatus(StatusRunning)
}

// Destroy pauses the worker, signals it to quit, and blocks until it
// reports FINISHED. Safe to call on an already-paused worker.
func (w *Worker) Destroy() {
	w.Pause()
	w.mu.Lock()
	paused := w.status == StatusPaused
	w.mu.Unlock()
	if !paused {
		return
	}
	w.sigCh <- sigQuit
	w.waitForStatus(StatusFinished)
}

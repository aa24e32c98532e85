package worker

import "golang.org/x/sync/errgroup"

// ResumeHooks runs whatever global resume hooks are registered
// (including recomputing metadata offsets) between orphan attachment
// and worker resume. Implemented by ctrl.ResumeHookRegistry; nil is a
// valid no-op for callers (e.g. tests) with nothing registered.
type ResumeHooks interface {
	RunAll() error
}

// WorkerPauser is the single serialization primitive for structural
// control-plane changes (spec §4.F "Scoped pauser"): it pauses every
// currently running worker up front, and its Close attaches orphans,
// runs global resume hooks, and resumes exactly the workers it paused.
type WorkerPauser struct {
	rt     *Runtime
	paused []*Worker
}

// Pause records every RUNNING worker, pauses each in parallel, and
// returns a guard whose Close resumes exactly those workers.
func (r *Runtime) Pause() *WorkerPauser {
	r.mu.Lock()
	var running []*Worker
	for _, w := range r.snapshotLocked() {
		if w.Status() == StatusRunning {
			running = append(running, w)
		}
	}
	r.mu.Unlock()

	var g errgroup.Group
	for _, w := range running {
		w := w
		g.Go(func() error { w.Pause(); return nil })
	}
	_ = g.Wait()

	return &WorkerPauser{rt: r, paused: running}
}

// Close attaches pending orphans, runs hooks (if non-nil), adjusts
// every worker's default round-robin root, and resumes exactly the
// workers this guard paused. The caller must not reuse the guard
// afterwards.
func (wp *WorkerPauser) Close(hooks ResumeHooks) error {
	wp.rt.AttachOrphans()

	var hookErr error
	if hooks != nil {
		hookErr = hooks.RunAll()
	}

	wp.rt.mu.Lock()
	all := wp.rt.snapshotLocked()
	wp.rt.mu.Unlock()
	for _, w := range all {
		w.Scheduler().AdjustDefault()
	}

	var g errgroup.Group
	for _, w := range wp.paused {
		w := w
		g.Go(func() error { w.Resume(); return nil })
	}
	_ = g.Wait()

	return hookErr
}

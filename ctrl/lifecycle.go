package ctrl

// GetVersion returns the daemon's build identifier.
func (s *Server) GetVersion() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Version
}

// PauseAll requests every running worker pause and waits for all of
// them to report PAUSED.
func (s *Server) PauseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Workers.PauseAllWorkers()
}

// ResumeAll runs the fixed three-step resume sequence pinned by
// SPEC_FULL §6.G: attach orphans, run every global resume hook
// (including metadata recompute), then resume every worker.
func (s *Server) ResumeAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resumeAllLocked()
}

func (s *Server) resumeAllLocked() error {
	s.Workers.AttachOrphans()
	err := s.Resume.RunAll()
	s.Workers.ResumeAllWorkers()
	return err
}

// PauseWorker pauses a single worker by id; a no-op if wid is unknown
// or not running.
func (s *Server) PauseWorker(wid int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.Workers.Worker(wid); ok {
		w.Pause()
	}
}

// ResumeWorker runs the same resume sequence as ResumeAll (orphans are
// global, and metadata offsets must stay consistent across every
// worker) but only signals wid to continue.
func (s *Server) ResumeWorker(wid int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Workers.AttachOrphans()
	err := s.Resume.RunAll()
	if w, ok := s.Workers.Worker(wid); ok {
		w.Scheduler().AdjustDefault()
		w.Resume()
	}
	return err
}

// ResetAll pauses every running worker once, empties the module,
// traffic-class and port registries, then resumes exactly the workers
// it paused — registries come back empty, workers come back exactly as
// they were (spec §5 test 9's "paused once" property).
func (s *Server) ResetAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	guard := s.Workers.Pause()
	s.resetModulesLocked()
	s.resetPortsLocked()
	s.resetTCsLocked()
	return guard.Close(s.Resume)
}

// Kill tears down every worker, without touching the registries (a
// harder stop than ResetAll, mirroring the original's process-exit
// intent without actually exiting the process here).
func (s *Server) Kill() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Workers.DestroyAllWorkers()
}

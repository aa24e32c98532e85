package sched

import "github.com/bess-go/bessd/tc"

// pauseCheckMask bounds how often ScheduleLoop checks for a pause
// request: every 256 rounds, a power-of-two mask per spec §4.E/§4.F.
const pauseCheckMask = 0xff

// PauseSignal lets ScheduleLoop cooperate with the worker runtime's
// pause handshake without sched importing worker (which itself imports
// sched): IsPauseRequested is polled every pauseCheckMask+1 rounds, and
// BlockUntilResumed is called once the loop has observed the request and
// must stop running tasks until told to continue.
type PauseSignal interface {
	IsPauseRequested() bool
	// BlockUntilResumed blocks the calling goroutine until resumed, and
	// returns true if the worker should exit the loop entirely (destroy)
	// rather than resume.
	BlockUntilResumed() (quit bool)
}

// DefaultScheduler runs each selected leaf exactly once per round and
// accounts its reported usage without any adaptive backoff — the
// straightforward policy described in spec §4.E's pseudocode.
type DefaultScheduler struct {
	*Scheduler
	clock Clock
}

// NewDefault wraps an existing Scheduler with the default run loop.
func NewDefault(s *Scheduler, clock Clock) *DefaultScheduler {
	if clock == nil {
		clock = WallClock
	}
	return &DefaultScheduler{Scheduler: s, clock: clock}
}

// ScheduleLoop runs forever, checking pause every pauseCheckMask+1
// rounds, until BlockUntilResumed reports the worker should quit.
func (s *DefaultScheduler) ScheduleLoop(pause PauseSignal) {
	s.checkpoint = s.clock()
	for round := uint64(0); ; round++ {
		if round&pauseCheckMask == 0 && pause != nil && pause.IsPauseRequested() {
			if pause.BlockUntilResumed() {
				return
			}
		}
		s.ScheduleOnce()
	}
}

// ScheduleOnce runs one round: pick a leaf, run it, account its usage
// towards the root. If nothing is runnable, only idle stats advance.
func (s *DefaultScheduler) ScheduleOnce() {
	leaf := s.Next(s.checkpoint)
	var now uint64
	if leaf != nil {
		ret := leaf.Run(s.checkpoint)
		now = s.clock()
		usage := tc.Usage{
			tc.ResourceCount:  1,
			tc.ResourceCycle:  now - s.checkpoint,
			tc.ResourcePacket: ret.Packets,
			tc.ResourceBit:    ret.Bits,
		}
		leaf.FinishAndAccountTowardsRoot(s.wakeupQ, nil, usage, now)
	} else {
		s.stats.CntIdle++
		now = s.clock()
		s.stats.CyclesIdle += now - s.checkpoint
	}
	s.checkpoint = now
}

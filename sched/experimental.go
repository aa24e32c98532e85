package sched

import "github.com/bess-go/bessd/tc"

const (
	// minWaitCycles floors a leaf's adaptive backoff window (spec §4.E
	// "Experimental variant"), original LeafTrafficClass::kInitialWaitCycles.
	minWaitCycles = 1 << 14
	// maxWaitCycles caps the exponential backoff growth.
	maxWaitCycles = 1 << 32
)

// ExperimentalScheduler behaves like DefaultScheduler, except a leaf
// that reports block && 0 packets is adaptively backed off: its
// wait_cycles doubles (capped at maxWaitCycles, floored at
// minWaitCycles) and it is parked in the wakeup queue instead of being
// retried next round; any productive return halves wait_cycles back
// down. This lets genuinely idle tasks stop spinning without an
// external signal.
type ExperimentalScheduler struct {
	*Scheduler
	clock Clock
}

// NewExperimental wraps an existing Scheduler with the experimental run
// loop.
func NewExperimental(s *Scheduler, clock Clock) *ExperimentalScheduler {
	if clock == nil {
		clock = WallClock
	}
	return &ExperimentalScheduler{Scheduler: s, clock: clock}
}

// ScheduleLoop runs forever, checking pause every pauseCheckMask+1
// rounds, until BlockUntilResumed reports the worker should quit.
func (s *ExperimentalScheduler) ScheduleLoop(pause PauseSignal) {
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

// ScheduleOnce runs one round with adaptive backoff for unproductive
// blocked leaves.
func (s *ExperimentalScheduler) ScheduleOnce() {
	leaf := s.Next(s.checkpoint)
	var now uint64
	if leaf != nil {
		ret := leaf.Run(s.checkpoint)
		now = s.clock()

		var usage tc.Usage
		if ret.Packets == 0 && ret.Block {
			wait := leaf.WaitCycles() << 1
			if wait > maxWaitCycles {
				wait = maxWaitCycles
			}
			if wait < minWaitCycles {
				wait = minWaitCycles
			}
			leaf.SetWaitCycles(wait)
			leaf.SetBlockedAt(now + wait)
			s.wakeupQ.Add(leaf)
		} else {
			wait := (leaf.WaitCycles() + 1) >> 1
			if wait < minWaitCycles {
				wait = minWaitCycles
			}
			leaf.SetWaitCycles(wait)

			usage = tc.Usage{
				tc.ResourceCount:  1,
				tc.ResourceCycle:  now - s.checkpoint,
				tc.ResourcePacket: ret.Packets,
				tc.ResourceBit:    ret.Bits,
			}
		}
		leaf.FinishAndAccountTowardsRoot(s.wakeupQ, nil, usage, now)
	} else {
		s.stats.CntIdle++
		now = s.clock()
		s.stats.CyclesIdle += now - s.checkpoint
	}
	s.checkpoint = now
}

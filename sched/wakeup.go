// Package sched implements the per-worker scheduler loop that walks a
// tc.TrafficClass tree to pick and run the next leaf task, plus the
// default and experimental scheduling variants described in spec.md
// §4.E.
package sched

import (
	"container/heap"

	"github.com/bess-go/bessd/tc"
)

// wakeupItem pairs a traffic class with the wakeup time it was enqueued
// under; a class can be re-added with a later wakeup_time without
// removing the stale entry; wakeDue skips nodes whose wakeup time no
// longer matches what's live on the class (see Add's comment).
type wakeupItem struct {
	c    *tc.TrafficClass
	wake uint64
}

type wakeupHeap []wakeupItem

func (h wakeupHeap) Len() int            { return len(h) }
func (h wakeupHeap) Less(i, j int) bool  { return h[i].wake < h[j].wake }
func (h wakeupHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *wakeupHeap) Push(x interface{}) { *h = append(*h, x.(wakeupItem)) }
func (h *wakeupHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// WakeupQueue is a per-worker min-heap of traffic classes blocked on a
// future wakeup time, implementing tc.WakeupQueue so the tc package's
// rate-limit accounting can enqueue directly into it without importing
// sched.
type WakeupQueue struct {
	h wakeupHeap
}

// NewWakeupQueue returns an empty wakeup queue.
func NewWakeupQueue() *WakeupQueue { return &WakeupQueue{} }

// Add enqueues c under its current WakeupTime(). A class already in the
// queue under a stale time is not removed (container/heap offers no
// cheap decrease-key here); wakeDue re-checks each popped item's wakeup
// time against the class's live value and discards stale entries,
// exactly mirroring the original's lazy-deletion-free design where a
// class's wakeup_time_ is the single source of truth and the heap entry
// is just a hint of when to look.
func (q *WakeupQueue) Add(c *tc.TrafficClass) {
	heap.Push(&q.h, wakeupItem{c: c, wake: c.WakeupTime()})
}

// Len reports the number of pending (possibly stale) entries.
func (q *WakeupQueue) Len() int { return q.h.Len() }

// wakeDue pops and unblocks-toward-root every entry whose wakeup time has
// arrived, skipping entries that have gone stale (the class's current
// WakeupTime no longer matches what the entry was queued under, or the
// class is no longer blocked).
func (q *WakeupQueue) wakeDue(tsc uint64) {
	for q.h.Len() > 0 {
		top := q.h[0]
		if top.wake >= tsc {
			break
		}
		heap.Pop(&q.h)
		if !top.c.Blocked() || top.c.WakeupTime() != top.wake {
			continue
		}
		top.c.UnblockTowardsRoot(top.wake)
	}
}

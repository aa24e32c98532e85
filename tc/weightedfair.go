package tc

import "container/heap"

// wfHeap is a min-heap of runnable weighted-fair children ordered by
// ascending "pass" (virtual finish time), so the next child to run is
// always the one that has received the least service relative to its
// share.
type wfHeap []*wfChild

func (h wfHeap) Len() int            { return len(h) }
func (h wfHeap) Less(i, j int) bool  { return h[i].pass < h[j].pass }
func (h wfHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *wfHeap) Push(x interface{}) { *h = append(*h, x.(*wfChild)) }
func (h *wfHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// AddChildWeightedFair attaches child with the given share (must be > 0).
// The child's stride (how fast its pass advances per unit of usage) is
// Stride1/share, so a child with double the share advances half as fast
// and therefore gets picked twice as often.
func (c *TrafficClass) AddChildWeightedFair(child *TrafficClass, share int32) error {
	if c.policy != PolicyWeightedFair {
		return ErrWrongPolicy
	}
	if share <= 0 {
		return ErrBadShare
	}
	d := c.wfair
	if d.index == nil {
		d.index = map[*TrafficClass]*wfChild{}
	}
	wc := &wfChild{stride: Stride1 / int64(share), pass: 0, c: child}
	d.index[child] = wc
	d.all = append(d.all, wfAllEntry{c: child, share: share})
	child.parent = c
	if child.blocked {
		d.blocked = append(d.blocked, wc)
	} else {
		heap.Push(&d.runnable, wc)
		c.unblockTowardsRootSetBlocked(0, false)
	}
	return nil
}

func (c *TrafficClass) removeChildWeightedFair(child *TrafficClass) bool {
	d := c.wfair
	wc, ok := d.index[child]
	if !ok {
		return false
	}
	delete(d.index, child)
	for i, e := range d.all {
		if e.c == child {
			d.all = append(d.all[:i], d.all[i+1:]...)
			break
		}
	}
	for i := range d.runnable {
		if d.runnable[i] == wc {
			heap.Remove(&d.runnable, i)
			break
		}
	}
	for i, b := range d.blocked {
		if b == wc {
			d.blocked = append(d.blocked[:i], d.blocked[i+1:]...)
			break
		}
	}
	child.parent = nil
	return true
}

func (c *TrafficClass) pickNextWeightedFair() *TrafficClass {
	d := c.wfair
	if len(d.runnable) == 0 {
		return nil
	}
	return d.runnable[0].c
}

// accountWeightedFair advances child's pass by stride*usage[resource] and
// re-sifts the heap so the next PickNextChild reflects the new ordering.
func (c *TrafficClass) accountWeightedFair(child *TrafficClass, usage Usage) {
	d := c.wfair
	wc, ok := d.index[child]
	if !ok {
		return
	}
	wc.pass += wc.stride * int64(usage[d.resource])
	for i := range d.runnable {
		if d.runnable[i] == wc {
			heap.Fix(&d.runnable, i)
			break
		}
	}
}

func (c *TrafficClass) unblockWeightedFair(tsc uint64) {
	d := c.wfair
	for i := 0; i < len(d.blocked); {
		wc := d.blocked[i]
		if wc.c.blocked {
			i++
			continue
		}
		d.blocked = append(d.blocked[:i], d.blocked[i+1:]...)
		heap.Push(&d.runnable, wc)
	}
	c.unblockTowardsRootSetBlocked(tsc, false)
}

func (c *TrafficClass) blockWeightedFair() {
	d := c.wfair
	for i := 0; i < len(d.runnable); {
		wc := d.runnable[i]
		if !wc.c.blocked {
			i++
			continue
		}
		heap.Remove(&d.runnable, i)
		d.blocked = append(d.blocked, wc)
	}
	c.blockTowardsRootSetBlocked(len(d.runnable) == 0)
}

// Resource reports which resource kind this class shares.
func (c *TrafficClass) Resource() Resource {
	switch c.policy {
	case PolicyWeightedFair:
		return c.wfair.resource
	case PolicyRateLimit:
		return c.rateLimit.resource
	default:
		return ResourceCount
	}
}

package tc

import "errors"

var (
	ErrNameExists      = errors.New("tc: name already in use")
	ErrNotFound        = errors.New("tc: traffic class not found")
	ErrNotChild        = errors.New("tc: not a child of this class")
	ErrWrongPolicy     = errors.New("tc: operation not supported by this policy")
	ErrPriorityInUse   = errors.New("tc: priority already assigned to a child")
	ErrAlreadyHasChild = errors.New("tc: policy allows only one child")
	ErrBadShare        = errors.New("tc: share must be > 0")
	ErrHasChildren     = errors.New("tc: class still has children")
	ErrStillAttached   = errors.New("tc: class is still attached to a parent")
)

// TrafficClass is every policy's common header plus exactly one populated
// policy-specific payload, selected by Policy. Methods dispatch on the
// Policy tag (a Go switch) rather than virtual calls, which keeps the
// scheduler's fast-path traversal allocation-free and avoids the
// aliasing that raw C++ base-class pointers would otherwise require.
type TrafficClass struct {
	name       string
	policy     Policy
	parent     *TrafficClass
	blocked    bool
	wakeupTime uint64
	stats      Stats

	priority  *priorityData
	wfair     *weightedFairData
	roundRobn *roundRobinData
	rateLimit *rateLimitData
	leaf      *leafData
}

type priorityChild struct {
	priority uint32
	c        *TrafficClass
}

type priorityData struct {
	firstRunnable int
	children      []priorityChild // sorted ascending by priority
}

type wfChild struct {
	stride int64
	pass   int64
	c      *TrafficClass
}

type weightedFairData struct {
	resource Resource
	runnable wfHeap
	blocked  []*wfChild
	all      []wfAllEntry
	index    map[*TrafficClass]*wfChild
}

type wfAllEntry struct {
	c     *TrafficClass
	share int32
}

type roundRobinData struct {
	next     int
	runnable []*TrafficClass
	blocked  []*TrafficClass
	all      []*TrafficClass
}

type rateLimitData struct {
	resource    Resource
	limit       uint64 // work units per cycle (0 = unlimited)
	limitArg    uint64 // resource units per second
	maxBurst    uint64 // work units
	maxBurstArg uint64 // resource units
	tokens      int64  // work units, signed since it can go negative
	lastTSC     uint64
	child       *TrafficClass
}

type leafData struct {
	task       LeafTask
	waitCycles uint64
}

const initialWaitCycles = 1 << 14

// Name returns the class's unique name.
func (c *TrafficClass) Name() string { return c.name }

// Policy returns which scheduling policy this class implements.
func (c *TrafficClass) Policy() Policy { return c.policy }

// Parent returns the class's current parent, or nil for a root or orphan.
func (c *TrafficClass) Parent() *TrafficClass { return c.parent }

// Blocked reports whether no reachable leaf under this class is runnable.
func (c *TrafficClass) Blocked() bool { return c.blocked }

// WakeupTime returns the TSC at which a blocked class should be
// reconsidered, or 0 if it has never been blocked on a timer. The value
// is not cleared when the class unblocks.
func (c *TrafficClass) WakeupTime() uint64 { return c.wakeupTime }

// Stats returns the class's accumulated resource usage.
func (c *TrafficClass) Stats() Stats { return c.stats }

// Root walks to the top of the tree. Expensive (recursive); callers should
// not call it from the scheduler's hot path.
func (c *TrafficClass) Root() *TrafficClass {
	for c.parent != nil {
		c = c.parent
	}
	return c
}

// Size returns the number of classes in the subtree rooted at c, including
// c itself.
func (c *TrafficClass) Size() int {
	n := 1
	for _, ch := range c.Children() {
		n += ch.Size()
	}
	return n
}

// Children returns this class's direct children in policy-defined order.
// A leaf has none.
func (c *TrafficClass) Children() []*TrafficClass {
	switch c.policy {
	case PolicyPriority:
		out := make([]*TrafficClass, len(c.priority.children))
		for i, pc := range c.priority.children {
			out[i] = pc.c
		}
		return out
	case PolicyWeightedFair:
		out := make([]*TrafficClass, len(c.wfair.all))
		for i, e := range c.wfair.all {
			out[i] = e.c
		}
		return out
	case PolicyRoundRobin:
		return append([]*TrafficClass(nil), c.roundRobn.all...)
	case PolicyRateLimit:
		if c.rateLimit.child == nil {
			return nil
		}
		return []*TrafficClass{c.rateLimit.child}
	default: // PolicyLeaf
		return nil
	}
}

// unblockTowardsRootSetBlocked sets blocked and, if it became unblocked,
// propagates UnblockTowardsRoot to the parent.
func (c *TrafficClass) unblockTowardsRootSetBlocked(tsc uint64, nowBlocked bool) {
	becameUnblocked := !nowBlocked && c.blocked
	c.blocked = nowBlocked
	if c.parent == nil || !becameUnblocked {
		return
	}
	c.parent.UnblockTowardsRoot(tsc)
}

// blockTowardsRootSetBlocked sets blocked and, if it became blocked,
// propagates BlockTowardsRoot to the parent.
func (c *TrafficClass) blockTowardsRootSetBlocked(nowBlocked bool) {
	becameBlocked := nowBlocked && !c.blocked
	c.blocked = nowBlocked
	if c.parent == nil || !becameBlocked {
		return
	}
	c.parent.BlockTowardsRoot()
}

// PickNextChild returns the next schedulable child per this class's
// policy, or nil for a leaf (terminal) or a fully blocked internal class.
func (c *TrafficClass) PickNextChild() *TrafficClass {
	switch c.policy {
	case PolicyPriority:
		return c.pickNextPriority()
	case PolicyWeightedFair:
		return c.pickNextWeightedFair()
	case PolicyRoundRobin:
		return c.pickNextRoundRobin()
	case PolicyRateLimit:
		return c.pickNextRateLimit()
	default:
		return nil
	}
}

// UnblockTowardsRoot attempts to recursively unblock all nodes from c to
// the root, given that some previously-blocked descendant became runnable
// at tsc.
func (c *TrafficClass) UnblockTowardsRoot(tsc uint64) {
	switch c.policy {
	case PolicyPriority:
		c.unblockPriority(tsc)
	case PolicyWeightedFair:
		c.unblockWeightedFair(tsc)
	case PolicyRoundRobin:
		c.unblockRoundRobin(tsc)
	case PolicyRateLimit:
		c.unblockRateLimit(tsc)
	default: // PolicyLeaf
		// A leaf only ever transitions via an explicit wakeup (see the
		// scheduler's wakeup heap), which always clears blocked outright
		// regardless of tsc, matching the original's LeafTrafficClass
		// override.
		c.unblockTowardsRootSetBlocked(tsc, false)
	}
}

// BlockTowardsRoot attempts to recursively block all nodes from c to the
// root, given that c itself has nothing left to run.
func (c *TrafficClass) BlockTowardsRoot() {
	switch c.policy {
	case PolicyPriority:
		c.blockPriority()
	case PolicyWeightedFair:
		c.blockWeightedFair()
	case PolicyRoundRobin:
		c.blockRoundRobin()
	case PolicyRateLimit:
		c.blockRateLimit()
	default: // PolicyLeaf
		// Unreachable in practice (nothing calls BlockTowardsRoot on a
		// leaf directly; the scheduler sets blocked_ on the leaf itself),
		// but mirrors the original's degenerate LeafTrafficClass override
		// rather than inventing new behavior for dead code.
		c.blockTowardsRootSetBlocked(false)
	}
}

// RemoveChild detaches child from c, iff it currently is one of c's
// children. On success the caller owns child until it is reattached or
// discarded.
func (c *TrafficClass) RemoveChild(child *TrafficClass) bool {
	switch c.policy {
	case PolicyPriority:
		return c.removeChildPriority(child)
	case PolicyWeightedFair:
		return c.removeChildWeightedFair(child)
	case PolicyRoundRobin:
		return c.removeChildRoundRobin(child)
	case PolicyRateLimit:
		return c.removeChildRateLimit(child)
	default:
		return false
	}
}

// FinishAndAccountTowardsRoot records usage at c (and, if supplied, charges
// child-specific accounting such as a weighted-fair pass update or a
// rate-limit token debit) then recurses to the parent.
func (c *TrafficClass) FinishAndAccountTowardsRoot(wq WakeupQueue, child *TrafficClass, usage Usage, tsc uint64) {
	c.stats.Usage.Add(usage)
	switch c.policy {
	case PolicyWeightedFair:
		c.accountWeightedFair(child, usage)
	case PolicyRateLimit:
		c.accountRateLimit(wq, usage, tsc)
	}
	if c.parent != nil {
		c.parent.FinishAndAccountTowardsRoot(wq, c, usage, tsc)
	}
}

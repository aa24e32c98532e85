// Package tc implements the hierarchical traffic-class tree that every
// worker's scheduler walks to pick the next runnable task: priority,
// weighted-fair, round-robin, rate-limit and leaf policies, each with their
// own child-selection and blocking bookkeeping, composed under a common
// TrafficClass header.
package tc

import "fmt"

// Resource identifies which accounted quantity a policy shares, throttles
// or reports on.
type Resource int

const (
	ResourceCount Resource = iota
	ResourceCycle
	ResourcePacket
	ResourceBit
	numResources
)

func (r Resource) String() string {
	switch r {
	case ResourceCount:
		return "count"
	case ResourceCycle:
		return "cycle"
	case ResourcePacket:
		return "packet"
	case ResourceBit:
		return "bit"
	default:
		return fmt.Sprintf("resource(%d)", int(r))
	}
}

// ResourceByName maps the wire/CLI spelling of a resource kind to its enum,
// mirroring the original's ResourceMap.
var ResourceByName = map[string]Resource{
	"count":  ResourceCount,
	"cycle":  ResourceCycle,
	"packet": ResourcePacket,
	"bit":    ResourceBit,
}

// Usage is a per-resource-kind counter array, accumulated at every class on
// the path from a leaf to the root after each task invocation.
type Usage [numResources]uint64

// Add accumulates b into a in place.
func (u *Usage) Add(b Usage) {
	for i := range u {
		u[i] += b[i]
	}
}

// Stats is the accumulated resource usage recorded at one traffic class.
type Stats struct {
	Usage        Usage
	CntThrottled uint64
}

// TaskResult is what a leaf's bound task reports after one invocation.
type TaskResult struct {
	Block   bool
	Packets uint64
	Bits    uint64
}

// LeafTask is the schedulable entry point a leaf traffic class binds to.
// The scheduler passes the current TSC explicitly rather than relying on
// thread-local state, since each worker in this port already owns its
// scheduler instance outright.
type LeafTask interface {
	Run(tsc uint64) TaskResult
}

// WakeupQueue receives traffic classes that have blocked themselves with a
// future wakeup time (currently only the rate-limit policy does this). It
// is implemented by the sched package's per-worker wakeup heap; defining
// the interface here (rather than importing sched) keeps tc free of any
// dependency on the scheduler loop.
type WakeupQueue interface {
	Add(c *TrafficClass)
}

// Policy constants, fixed in the same order as the original's TrafficPolicy
// enum so policy names stay stable across the control-plane surface.
type Policy int

const (
	PolicyPriority Policy = iota
	PolicyWeightedFair
	PolicyRoundRobin
	PolicyRateLimit
	PolicyLeaf
)

func (p Policy) String() string {
	switch p {
	case PolicyPriority:
		return "priority"
	case PolicyWeightedFair:
		return "weighted_fair"
	case PolicyRoundRobin:
		return "round_robin"
	case PolicyRateLimit:
		return "rate_limit"
	case PolicyLeaf:
		return "leaf"
	default:
		return "unknown"
	}
}

const (
	// DefaultPriority is reserved: no two children of a priority class may
	// register with it, and it sorts last.
	DefaultPriority uint32 = 0xFFFFFFFF

	// Stride1 is the numerator used to derive a weighted-fair child's
	// stride from its share: stride = Stride1 / share.
	Stride1 = 1 << 20

	// usageAmplifierPow scales resource units into "work units" for the
	// rate-limit token bucket so integer arithmetic keeps enough precision
	// without floating point.
	usageAmplifierPow = 32
)

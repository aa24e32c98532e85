package tc

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type fakeTask struct {
	result TaskResult
}

func (f *fakeTask) Run(tsc uint64) TaskResult { return f.result }

func TestPriorityTieBreak(t *testing.T) {
	b := NewBuilder()
	root, err := b.CreatePriority("root")
	require.NoError(t, err)
	c5, err := b.CreateLeaf("p5", &fakeTask{})
	require.NoError(t, err)
	c10, err := b.CreateLeaf("p10", &fakeTask{})
	require.NoError(t, err)

	require.NoError(t, root.AddChildPriority(c5, 5))
	require.NoError(t, root.AddChildPriority(c10, 10))

	require.Equal(t, c5, root.PickNextChild())

	c5.SetBlockedAt(1)
	root.blockPriority() // normally invoked by c5's BlockTowardsRoot chain
	require.Equal(t, c10, root.PickNextChild())

	c5.UnblockTowardsRoot(2)
	require.Equal(t, c5, root.PickNextChild())
}

func TestPriorityDuplicateRejected(t *testing.T) {
	b := NewBuilder()
	root, _ := b.CreatePriority("root")
	a, _ := b.CreateLeaf("a", &fakeTask{})
	c, _ := b.CreateLeaf("c", &fakeTask{})
	require.NoError(t, root.AddChildPriority(a, 5))
	require.ErrorIs(t, root.AddChildPriority(c, 5), ErrPriorityInUse)
}

func TestWeightedFairSingleChildPassthrough(t *testing.T) {
	b := NewBuilder()
	root, _ := b.CreateWeightedFair("root", ResourceCount)
	leaf, _ := b.CreateLeaf("leaf", &fakeTask{})
	require.NoError(t, root.AddChildWeightedFair(leaf, 10))

	for i := 0; i < 5; i++ {
		require.Equal(t, leaf, root.PickNextChild())
		root.accountWeightedFair(leaf, Usage{ResourceCount: 1})
	}
	// A single child always wins regardless of accumulated pass.
	require.Equal(t, leaf, root.PickNextChild())
}

func TestRoundRobinRotatesEvenly(t *testing.T) {
	b := NewBuilder()
	root, _ := b.CreateRoundRobin("root")
	l1, _ := b.CreateLeaf("l1", &fakeTask{})
	l2, _ := b.CreateLeaf("l2", &fakeTask{})
	require.NoError(t, root.AddChildRoundRobin(l1))
	require.NoError(t, root.AddChildRoundRobin(l2))

	picks := []*TrafficClass{
		root.PickNextChild(),
		root.PickNextChild(),
		root.PickNextChild(),
		root.PickNextChild(),
	}
	require.Equal(t, []*TrafficClass{l1, l2, l1, l2}, picks)
}

func TestRateLimitZeroIsUnlimited(t *testing.T) {
	b := NewBuilder()
	root, _ := b.CreateRateLimit("root", ResourcePacket, 0, 0, 1_000_000_000)
	leaf, _ := b.CreateLeaf("leaf", &fakeTask{})
	require.NoError(t, root.AddChildRateLimit(leaf))

	wq := &collectingWakeupQueue{}
	for i := uint64(0); i < 1000; i++ {
		root.accountRateLimit(wq, Usage{ResourcePacket: 1_000_000}, i*1000)
	}
	require.False(t, root.Blocked())
	require.Empty(t, wq.added)
}

func TestRateLimitThrottlesAndSchedulesWakeup(t *testing.T) {
	b := NewBuilder()
	const tscHz = 1_000_000_000
	root, _ := b.CreateRateLimit("root", ResourceCount, 1, 0, tscHz)
	leaf, _ := b.CreateLeaf("leaf", &fakeTask{})
	require.NoError(t, root.AddChildRateLimit(leaf))

	wq := &collectingWakeupQueue{}
	root.accountRateLimit(wq, Usage{ResourceCount: 1}, 0)
	require.True(t, root.Blocked())
	require.Len(t, wq.added, 1)
	require.Greater(t, root.WakeupTime(), uint64(0))
}

func TestPacketRateLimitWithinWindow(t *testing.T) {
	// End-to-end scenario #2: leaf produces 32 packets per call, wrapped in
	// a packet rate-limit of 1M/s with a 1M burst; after simulating 1s of
	// wall time the total forwarded falls in the expected band.
	const tscHz = 1_000_000_000
	b := NewBuilder()
	root, _ := b.CreateRateLimit("root", ResourcePacket, 1_000_000, 1_000_000, tscHz)
	leaf, _ := b.CreateLeaf("leaf", &fakeTask{result: TaskResult{Packets: 32}})
	require.NoError(t, root.AddChildRateLimit(leaf))

	wq := &collectingWakeupQueue{}
	var forwarded uint64
	var tsc uint64
	for tsc < tscHz {
		if root.Blocked() {
			// Jump to the next wakeup.
			tsc = root.WakeupTime()
			root.UnblockTowardsRoot(tsc)
			continue
		}
		res := leaf.Run(tsc)
		forwarded += res.Packets
		root.accountRateLimit(wq, Usage{ResourcePacket: res.Packets}, tsc)
		tsc += 1000 // 1us per call
	}
	require.GreaterOrEqual(t, forwarded, uint64(950_000))
	require.LessOrEqual(t, forwarded, uint64(1_100_000))
}

type collectingWakeupQueue struct {
	added []*TrafficClass
}

func (w *collectingWakeupQueue) Add(c *TrafficClass) { w.added = append(w.added, c) }

func TestConfigureWallClockDerivesLimitAndBurst(t *testing.T) {
	b := NewBuilder()
	const tscHz = 1_000_000_000
	root, _ := b.CreateRateLimit("root", ResourcePacket, 0, 0, tscHz)

	limiter := rate.NewLimiter(rate.Limit(1_000_000), 2_000_000)
	root.ConfigureWallClock(limiter, tscHz)

	require.Equal(t, uint64(1_000_000), root.LimitArg())
	require.Equal(t, uint64(2_000_000), root.MaxBurstArg())
}

func TestConfigureWallClockInfiniteIsUnlimited(t *testing.T) {
	b := NewBuilder()
	const tscHz = 1_000_000_000
	root, _ := b.CreateRateLimit("root", ResourcePacket, 1, 1, tscHz)

	root.ConfigureWallClock(rate.NewLimiter(rate.Inf, 0), tscHz)

	require.Equal(t, uint64(0), root.LimitArg())
}

func TestBuilderRejectsDuplicateName(t *testing.T) {
	b := NewBuilder()
	_, err := b.CreateRoundRobin("dup")
	require.NoError(t, err)
	_, err = b.CreateRoundRobin("dup")
	require.ErrorIs(t, err, ErrNameExists)
}

func TestClearRequiresDetachedLeaf(t *testing.T) {
	b := NewBuilder()
	root, _ := b.CreateRoundRobin("root")
	leaf, _ := b.CreateLeaf("leaf", &fakeTask{})
	require.NoError(t, root.AddChildRoundRobin(leaf))

	require.ErrorIs(t, b.Clear(root), ErrHasChildren)
	require.ErrorIs(t, b.Clear(leaf), ErrStillAttached)

	require.True(t, root.RemoveChild(leaf))
	require.NoError(t, b.Clear(leaf))
	require.NoError(t, b.Clear(root))
}

func TestSizeCountsSubtree(t *testing.T) {
	b := NewBuilder()
	root, _ := b.CreateRoundRobin("root")
	l1, _ := b.CreateLeaf("l1", &fakeTask{})
	l2, _ := b.CreateLeaf("l2", &fakeTask{})
	require.NoError(t, root.AddChildRoundRobin(l1))
	require.NoError(t, root.AddChildRoundRobin(l2))
	require.Equal(t, 3, root.Size())
}

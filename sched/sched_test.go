package sched

import (
	"testing"

	"github.com/bess-go/bessd/tc"
	"github.com/stretchr/testify/require"
)

type countingTask struct {
	n       int
	results []tc.TaskResult
}

func (t *countingTask) Run(tsc uint64) tc.TaskResult {
	r := t.results[t.n%len(t.results)]
	t.n++
	return r
}

func clockSeq(start uint64, step uint64) Clock {
	tsc := start
	return func() uint64 {
		tsc += step
		return tsc
	}
}

func TestDefaultSchedulerRunsLeafAndAccounts(t *testing.T) {
	b := tc.NewBuilder()
	task := &countingTask{results: []tc.TaskResult{{Packets: 4, Bits: 32}}}
	leaf, err := b.CreateLeaf("leaf", task)
	require.NoError(t, err)

	s := New(b, 0, leaf)
	ds := NewDefault(s, clockSeq(0, 10))

	ds.ScheduleOnce()
	require.Equal(t, 1, task.n)
	stats := leaf.Stats()
	require.Equal(t, uint64(1), stats.Usage[tc.ResourceCount])
	require.Equal(t, uint64(4), stats.Usage[tc.ResourcePacket])
	require.Equal(t, uint64(32), stats.Usage[tc.ResourceBit])
}

func TestSchedulerEmptyRootIsIdle(t *testing.T) {
	b := tc.NewBuilder()
	s := New(b, 0, nil)
	ds := NewDefault(s, clockSeq(0, 10))
	ds.ScheduleOnce()
	require.Equal(t, uint64(1), s.stats.CntIdle)
}

func TestAttachOrphanSynthesizesDefaultRR(t *testing.T) {
	b := tc.NewBuilder()
	leaf1, _ := b.CreateLeaf("l1", &countingTask{results: []tc.TaskResult{{}}})
	leaf2, _ := b.CreateLeaf("l2", &countingTask{results: []tc.TaskResult{{}}})

	s := New(b, 3, leaf1)
	require.NoError(t, s.AttachOrphan(leaf2))

	root := s.Root()
	require.Equal(t, tc.PolicyRoundRobin, root.Policy())
	require.Contains(t, root.Name(), "!default_rr_3")
	require.ElementsMatch(t, []*tc.TrafficClass{leaf1, leaf2}, root.Children())
}

func TestAttachOrphanBecomesRootWhenEmpty(t *testing.T) {
	b := tc.NewBuilder()
	leaf, _ := b.CreateLeaf("l1", &countingTask{results: []tc.TaskResult{{}}})
	s := New(b, 0, nil)
	require.NoError(t, s.AttachOrphan(leaf))
	require.Equal(t, leaf, s.Root())
}

func TestAdjustDefaultCollapsesSingleChild(t *testing.T) {
	b := tc.NewBuilder()
	leaf1, _ := b.CreateLeaf("l1", &countingTask{results: []tc.TaskResult{{}}})
	leaf2, _ := b.CreateLeaf("l2", &countingTask{results: []tc.TaskResult{{}}})

	s := New(b, 0, leaf1)
	require.NoError(t, s.AttachOrphan(leaf2))
	rrRoot := s.Root()

	require.True(t, rrRoot.RemoveChild(leaf2))
	s.AdjustDefault()
	require.Equal(t, leaf1, s.Root())
	require.Nil(t, b.Find(rrRoot.Name()))
}

func TestWakeupQueueWakesDueEntriesOnly(t *testing.T) {
	b := tc.NewBuilder()
	rl, _ := b.CreateRateLimit("root", tc.ResourceCount, 1, 0, TSCHz)
	leaf, _ := b.CreateLeaf("leaf", &countingTask{results: []tc.TaskResult{{}}})
	require.NoError(t, rl.AddChildRateLimit(leaf))

	wq := NewWakeupQueue()
	// accountRateLimit is unexported; drive through FinishAndAccountTowardsRoot
	// instead, matching how the scheduler actually triggers it.
	leaf.FinishAndAccountTowardsRoot(wq, nil, tc.Usage{tc.ResourceCount: 1}, 0)

	require.True(t, rl.Blocked())
	require.Greater(t, wq.Len(), 0)

	wq.wakeDue(rl.WakeupTime() + 1)
	require.False(t, rl.Blocked())
}

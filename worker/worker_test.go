package worker

import (
	"testing"
	"time"

	"github.com/bess-go/bessd/sched"
	"github.com/bess-go/bessd/tc"
	"github.com/stretchr/testify/require"
)

type fakeTask struct{}

func (fakeTask) Run(tsc uint64) tc.TaskResult { return tc.TaskResult{} }

func newTestWorker(t *testing.T, wid int, name string) (*Worker, *tc.TrafficClass) {
	b := tc.NewBuilder()
	leaf, err := b.CreateLeaf(name, fakeTask{})
	require.NoError(t, err)
	s := sched.New(b, wid, leaf)
	ds := sched.NewDefault(s, nil)
	return New(wid, wid, 0, ds), leaf
}

func TestLaunchStartsPaused(t *testing.T) {
	w, _ := newTestWorker(t, 0, "l0")
	w.Launch()
	require.Equal(t, StatusPaused, w.Status())
}

func TestResumeThenPauseRoundTrips(t *testing.T) {
	w, _ := newTestWorker(t, 0, "l0")
	w.Launch()

	w.Resume()
	require.Equal(t, StatusRunning, w.Status())

	w.Pause()
	require.Equal(t, StatusPaused, w.Status())
}

func TestDestroyFinishesWorker(t *testing.T) {
	w, _ := newTestWorker(t, 0, "l0")
	w.Launch()
	w.Resume()

	done := make(chan struct{})
	go func() {
		w.Destroy()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Destroy did not return")
	}
	require.Equal(t, StatusFinished, w.Status())
}

func TestRuntimeLaunchRejectsDuplicateWID(t *testing.T) {
	rt := NewRuntime()
	w0, _ := newTestWorker(t, 0, "l0")
	require.NoError(t, rt.Launch(w0))

	w0dup, _ := newTestWorker(t, 0, "l0b")
	require.ErrorIs(t, rt.Launch(w0dup), ErrWorkerExists)
}

func TestPauseAllThenResumeAllRoundTrips(t *testing.T) {
	rt := NewRuntime()
	w0, _ := newTestWorker(t, 0, "l0")
	w1, _ := newTestWorker(t, 1, "l1")
	require.NoError(t, rt.Launch(w0))
	require.NoError(t, rt.Launch(w1))

	w0.Resume()
	w1.Resume()
	require.True(t, rt.IsAnyRunning())

	rt.PauseAllWorkers()
	require.False(t, rt.IsAnyRunning())
	require.Equal(t, StatusPaused, w0.Status())
	require.Equal(t, StatusPaused, w1.Status())

	rt.ResumeAllWorkers()
	require.Equal(t, StatusRunning, w0.Status())
	require.Equal(t, StatusRunning, w1.Status())
}

func TestAttachOrphansGraftsOntoHintedWorker(t *testing.T) {
	rt := NewRuntime()
	w0, _ := newTestWorker(t, 0, "l0")
	require.NoError(t, rt.Launch(w0))

	orphanBuilder := tc.NewBuilder()
	orphan, err := orphanBuilder.CreateLeaf("orphan", fakeTask{})
	require.NoError(t, err)

	rt.AddOrphan(0, orphan)
	rt.AttachOrphans()

	require.Equal(t, tc.PolicyRoundRobin, w0.Scheduler().Root().Policy())
	require.Contains(t, w0.Scheduler().Root().Name(), "!default_rr_0")
}

func TestAttachOrphansSkipsAlreadyParented(t *testing.T) {
	rt := NewRuntime()
	w0, _ := newTestWorker(t, 0, "l0")
	require.NoError(t, rt.Launch(w0))

	orphanBuilder := tc.NewBuilder()
	parent, err := orphanBuilder.CreatePriority("parent")
	require.NoError(t, err)
	orphan, err := orphanBuilder.CreateLeaf("child", fakeTask{})
	require.NoError(t, err)
	require.NoError(t, parent.AddChildPriority(orphan, 0))

	rt.AddOrphan(0, orphan)
	rt.AttachOrphans()

	require.Equal(t, tc.PolicyLeaf, w0.Scheduler().Root().Policy())
}

func TestWorkerPauserResumesOnlyWhatItPaused(t *testing.T) {
	rt := NewRuntime()
	w0, _ := newTestWorker(t, 0, "l0")
	w1, _ := newTestWorker(t, 1, "l1")
	require.NoError(t, rt.Launch(w0))
	require.NoError(t, rt.Launch(w1))

	w0.Resume()
	// w1 stays paused on purpose.

	guard := rt.Pause()
	require.Equal(t, StatusPaused, w0.Status())
	require.Equal(t, StatusPaused, w1.Status())

	require.NoError(t, guard.Close(nil))
	require.Equal(t, StatusRunning, w0.Status())
	require.Equal(t, StatusPaused, w1.Status())
}

type countingHooks struct{ n int }

func (h *countingHooks) RunAll() error {
	h.n++
	return nil
}

func TestWorkerPauserRunsHooks(t *testing.T) {
	rt := NewRuntime()
	w0, _ := newTestWorker(t, 0, "l0")
	require.NoError(t, rt.Launch(w0))
	w0.Resume()

	hooks := &countingHooks{}
	guard := rt.Pause()
	require.NoError(t, guard.Close(hooks))
	require.Equal(t, 1, hooks.n)
}

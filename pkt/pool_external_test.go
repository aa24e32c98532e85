package pkt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeArena is a trivial ExternalAllocator used to test ExternalPool's
// delegation, standing in for a host-provided huge-page arena.
type fakeArena struct {
	cap  int
	free []int
}

func newFakeArena(n int) *fakeArena {
	f := &fakeArena{cap: n}
	for i := 0; i < n; i++ {
		f.free = append(f.free, i)
	}
	return f
}

func (f *fakeArena) Reserve(n int) ([]int, bool) {
	if len(f.free) < n {
		return nil, false
	}
	out := f.free[:n]
	f.free = f.free[n:]
	return out, true
}

func (f *fakeArena) Release(idx []int) { f.free = append(f.free, idx...) }

func (f *fakeArena) Capacity() int { return f.cap }

func (f *fakeArena) Capabilities() Capabilities {
	return Capabilities{VirtuallyContiguous: true, PhysicallyContiguous: true, Pinned: true}
}

func TestExternalPoolDelegatesToAllocator(t *testing.T) {
	arena := newFakeArena(2)
	ep := NewExternalPool(arena)

	p1, ok := ep.Alloc(10)
	require.True(t, ok)
	p2, ok := ep.Alloc(10)
	require.True(t, ok)
	_, ok = ep.Alloc(10)
	require.False(t, ok, "arena exhausted")
	require.Equal(t, 2, ep.Size())

	ep.Free(p1)
	require.Equal(t, 1, ep.Size())
	_, ok = ep.Alloc(10)
	require.True(t, ok)

	ep.Free(p2)
}

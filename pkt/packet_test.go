package pkt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlainPoolAllocSetsInvariants(t *testing.T) {
	p := NewPlainPool(4)
	pkt, ok := p.Alloc(100)
	require.True(t, ok)
	require.Equal(t, int32(1), pkt.Refcnt())
	require.Equal(t, uint16(1), pkt.NumSegs())
	require.Nil(t, pkt.Next())
	require.Equal(t, uint16(DataOffset), pkt.DataOff())
	require.Len(t, pkt.Data(), 100)
}

func TestPlainPoolExhaustion(t *testing.T) {
	p := NewPlainPool(2)
	_, ok1 := p.Alloc(10)
	_, ok2 := p.Alloc(10)
	_, ok3 := p.Alloc(10)
	require.True(t, ok1)
	require.True(t, ok2)
	require.False(t, ok3)
	require.Equal(t, 2, p.Size())
}

func TestPlainPoolFreeReturnsToPool(t *testing.T) {
	p := NewPlainPool(1)
	pk, ok := p.Alloc(10)
	require.True(t, ok)
	require.Equal(t, 1, p.Size())
	p.Free(pk)
	require.Equal(t, 0, p.Size())
	_, ok = p.Alloc(10)
	require.True(t, ok)
}

func TestRefcountMultiFree(t *testing.T) {
	p := NewPlainPool(1)
	pk, _ := p.Alloc(10)
	pk.Ref()
	require.Equal(t, int32(2), pk.Refcnt())
	p.Free(pk)
	require.Equal(t, 1, p.Size(), "packet with refcnt 2 must not return to pool on first free")
	p.Free(pk)
	require.Equal(t, 0, p.Size())
}

func TestFreeListReturnsActualFreedSlotOutOfOrder(t *testing.T) {
	p := NewPlainPool(3)
	a, ok := p.Alloc(10)
	require.True(t, ok)
	b, ok := p.Alloc(10)
	require.True(t, ok)
	c, ok := p.Alloc(10)
	require.True(t, ok)
	require.Equal(t, 3, p.Size())

	// Free only the interior packet, out of allocation order.
	p.Free(b)
	require.Equal(t, 2, p.Size())

	// The next Alloc must hand back b's slot, not a's or c's: both a and
	// c are still checked out and must remain distinct, live packets.
	reused, ok := p.Alloc(10)
	require.True(t, ok)
	require.Same(t, b, reused, "re-alloc after an out-of-order free must reuse the freed slot")
	require.NotSame(t, a, reused)
	require.NotSame(t, c, reused)
	require.Equal(t, int32(1), a.Refcnt())
	require.Equal(t, int32(1), c.Refcnt())
	require.Equal(t, 3, p.Size())

	// Every slot must still cycle back through the free list: freeing the
	// other two lets the pool fully drain and refill.
	p.Free(a)
	p.Free(c)
	require.Equal(t, 1, p.Size())
	p.Free(reused)
	require.Equal(t, 0, p.Size())

	out := make([]*Packet, 3)
	require.True(t, p.AllocBulk(out, 3, 10))
	require.Equal(t, 3, p.Size())
}

func TestAllocBulkAllOrNothing(t *testing.T) {
	p := NewPlainPool(3)
	out := make([]*Packet, 4)
	ok := p.AllocBulk(out, 4, 10)
	require.False(t, ok, "request exceeding capacity must fail without side effects")
	require.Equal(t, 0, p.Size())

	ok = p.AllocBulk(out[:3], 3, 10)
	require.True(t, ok)
	require.Equal(t, 3, p.Size())
}

func TestPrependAndAppend(t *testing.T) {
	p := NewPlainPool(1)
	pk, _ := p.Alloc(10)
	hdr := pk.Prepend(20)
	require.Len(t, hdr, 20)
	require.Equal(t, uint16(DataOffset-20), pk.DataOff())
	require.Len(t, pk.Data(), 30)

	tail := pk.Append(5)
	require.Len(t, tail, 5)
	require.Len(t, pk.Data(), 35)
}

func TestPrependBeyondHeadroomFails(t *testing.T) {
	p := NewPlainPool(1)
	pk, _ := p.Alloc(10)
	require.Nil(t, pk.Prepend(HeadroomSize+1))
}

func TestMultiSegmentTotalLen(t *testing.T) {
	p := NewPlainPool(2)
	head, _ := p.Alloc(100)
	tail, _ := p.Alloc(50)
	head.SetNext(tail)
	require.Equal(t, uint16(2), head.NumSegs())
	require.Equal(t, uint32(150), head.TotalLen())
}

func TestHugePagePoolCapabilities(t *testing.T) {
	hp := NewHugePagePool(4, 0)
	caps := hp.Capabilities()
	require.True(t, caps.VirtuallyContiguous)
	require.True(t, caps.PhysicallyContiguous)
	require.True(t, caps.Pinned)

	pk, ok := hp.Alloc(10)
	require.True(t, ok)
	require.NotZero(t, pk.Immutable())
}

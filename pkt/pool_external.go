package pkt

import "sync/atomic"

// ExternalAllocator is implemented by a hosting memory subsystem that
// manages its own huge-page-backed arena and can hand out/reclaim raw
// packet-sized slots by index. ExternalPool defers all storage decisions
// to it instead of owning the slot array itself.
type ExternalAllocator interface {
	// Reserve returns n slot indices in [0, Capacity), or false if the
	// allocator cannot satisfy the request.
	Reserve(n int) ([]int, bool)
	// Release returns previously reserved indices to the allocator.
	Release(idx []int)
	Capacity() int
	Capabilities() Capabilities
}

// ExternalPool is the third PacketPool variant: storage is owned by a
// host-provided ExternalAllocator (e.g. a DPDK-style external mempool)
// rather than by this package.
type ExternalPool struct {
	alloc    ExternalAllocator
	slots    []Packet
	reserved int32
}

// NewExternalPool wraps alloc, materializing one Packet header per
// reservable slot. The allocator retains ownership of the underlying
// memory; this pool only tracks which slot each *Packet corresponds to.
func NewExternalPool(alloc ExternalAllocator) *ExternalPool {
	return &ExternalPool{
		alloc: alloc,
		slots: make([]Packet, alloc.Capacity()),
	}
}

func (ep *ExternalPool) Alloc(length int) (*Packet, bool) {
	idxs, ok := ep.alloc.Reserve(1)
	if !ok {
		return nil, false
	}
	p := &ep.slots[idxs[0]]
	p.reset()
	p.dataLen = uint16(length)
	p.pktLen = uint32(length)
	p.pool = ep
	atomic.AddInt32(&ep.reserved, 1)
	return p, true
}

func (ep *ExternalPool) AllocBulk(out []*Packet, count, length int) bool {
	if count > len(out) {
		return false
	}
	idxs, ok := ep.alloc.Reserve(count)
	if !ok {
		return false
	}
	for i := 0; i < count; i++ {
		p := &ep.slots[idxs[i]]
		p.reset()
		p.dataLen = uint16(length)
		p.pktLen = uint32(length)
		p.pool = ep
		out[i] = p
	}
	atomic.AddInt32(&ep.reserved, int32(count))
	return true
}

func (ep *ExternalPool) Free(p *Packet) {
	for seg := p; seg != nil; {
		next := seg.next
		if seg.pool == ep {
			if seg.refDecr() <= 0 {
				ep.alloc.Release([]int{ep.indexOf(seg)})
				atomic.AddInt32(&ep.reserved, -1)
			}
		}
		seg = next
	}
}

func (ep *ExternalPool) FreeBulk(batch []*Packet, count int) {
	for i := 0; i < count && i < len(batch); i++ {
		ep.Free(batch[i])
	}
}

func (ep *ExternalPool) Capacity() int { return len(ep.slots) }

func (ep *ExternalPool) Size() int { return int(atomic.LoadInt32(&ep.reserved)) }

func (ep *ExternalPool) Capabilities() Capabilities { return ep.alloc.Capabilities() }

func (ep *ExternalPool) indexOf(p *Packet) int {
	base := &ep.slots[0]
	idx := int(uintptrDiff(p, base))
	if idx < 0 || idx >= len(ep.slots) {
		return -1
	}
	return idx
}

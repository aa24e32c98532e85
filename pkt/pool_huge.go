package pkt

// HugePagePool is the default pool variant: conceptually backed by
// pre-reserved huge pages mapped contiguously in both virtual and physical
// address space, so every packet's Immutable region carries a valid
// physical address usable for DMA. Pure Go cannot obtain huge-page-backed,
// physically-contiguous memory without cgo or a platform syscall layer, so
// this type allocates from the Go heap like PlainPool but reports the
// Capabilities a real huge-page pool would have and stamps each packet's
// Immutable region with a synthetic physical-address-like value, so that
// code written against the Capabilities contract (and against the
// Immutable layout) exercises the real code path.
type HugePagePool struct {
	*basePool
	socket int
}

// NewHugePagePool creates a pool of n packets on the given NUMA socket.
func NewHugePagePool(n, socket int) *HugePagePool {
	hp := &HugePagePool{socket: socket}
	hp.basePool = newBasePool(n, Capabilities{
		VirtuallyContiguous:  true,
		PhysicallyContiguous: true,
		Pinned:               true,
	})
	return hp
}

func (hp *HugePagePool) Alloc(length int) (*Packet, bool) {
	p, ok := hp.allocOne(hp, length)
	if ok {
		hp.stampImmutable(p)
	}
	return p, ok
}

func (hp *HugePagePool) AllocBulk(out []*Packet, count, length int) bool {
	if !hp.allocBulk(hp, out, count, length) {
		return false
	}
	for i := 0; i < count; i++ {
		hp.stampImmutable(out[i])
	}
	return true
}

func (hp *HugePagePool) Free(p *Packet) { hp.freeOne(hp, p) }

func (hp *HugePagePool) FreeBulk(batch []*Packet, count int) { hp.freeBulk(hp, batch, count) }

// stampImmutable writes the synthetic identity fields (virt addr placeholder,
// socket id, slot index) into the packet's immutable region, little-endian,
// matching the immutable region's documented contents.
func (hp *HugePagePool) stampImmutable(p *Packet) {
	idx := hp.indexOf(p)
	imm := p.Immutable()
	putUint64LE(imm[0:8], uint64(uintptr(ptrOf(p))))
	putUint32LE(imm[16:20], uint32(hp.socket))
	putUint32LE(imm[20:24], uint32(idx))
}

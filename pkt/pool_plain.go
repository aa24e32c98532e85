package pkt

// PlainPool is backed by ordinary Go-heap memory. It is usable in unit
// tests and for modules that never hand a packet to real DMA hardware, but
// makes no virtual/physical contiguity or pinning guarantees.
type PlainPool struct {
	*basePool
}

// NewPlainPool creates a pool of n packets backed by normal pages.
func NewPlainPool(n int) *PlainPool {
	pp := &PlainPool{}
	pp.basePool = newBasePool(n, Capabilities{})
	return pp
}

func (pp *PlainPool) Alloc(length int) (*Packet, bool) {
	return pp.allocOne(pp, length)
}

func (pp *PlainPool) AllocBulk(out []*Packet, count, length int) bool {
	return pp.allocBulk(pp, out, count, length)
}

func (pp *PlainPool) Free(p *Packet) { pp.freeOne(pp, p) }

func (pp *PlainPool) FreeBulk(batch []*Packet, count int) { pp.freeBulk(pp, batch, count) }

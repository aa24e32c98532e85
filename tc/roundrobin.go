package tc

// AddChildRoundRobin appends child to the round-robin rotation (or the
// blocked side list, if it starts out blocked).
func (c *TrafficClass) AddChildRoundRobin(child *TrafficClass) error {
	if c.policy != PolicyRoundRobin {
		return ErrWrongPolicy
	}
	d := c.roundRobn
	child.parent = c
	d.all = append(d.all, child)
	if child.blocked {
		d.blocked = append(d.blocked, child)
	} else {
		d.runnable = append(d.runnable, child)
		c.unblockTowardsRootSetBlocked(0, false)
	}
	return nil
}

func (c *TrafficClass) removeChildRoundRobin(child *TrafficClass) bool {
	d := c.roundRobn
	found := false
	for i, ch := range d.all {
		if ch == child {
			d.all = append(d.all[:i], d.all[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		return false
	}
	for i, ch := range d.runnable {
		if ch == child {
			d.runnable = append(d.runnable[:i], d.runnable[i+1:]...)
			if d.next > i {
				d.next--
			}
			break
		}
	}
	for i, ch := range d.blocked {
		if ch == child {
			d.blocked = append(d.blocked[:i], d.blocked[i+1:]...)
			break
		}
	}
	child.parent = nil
	return true
}

func (c *TrafficClass) pickNextRoundRobin() *TrafficClass {
	d := c.roundRobn
	if len(d.runnable) == 0 {
		return nil
	}
	if d.next >= len(d.runnable) {
		d.next = 0
	}
	child := d.runnable[d.next]
	d.next = (d.next + 1) % len(d.runnable)
	return child
}

func (c *TrafficClass) unblockRoundRobin(tsc uint64) {
	d := c.roundRobn
	for i := 0; i < len(d.blocked); {
		ch := d.blocked[i]
		if ch.blocked {
			i++
			continue
		}
		d.blocked = append(d.blocked[:i], d.blocked[i+1:]...)
		d.runnable = append(d.runnable, ch)
	}
	c.unblockTowardsRootSetBlocked(tsc, false)
}

func (c *TrafficClass) blockRoundRobin() {
	d := c.roundRobn
	for i := 0; i < len(d.runnable); {
		ch := d.runnable[i]
		if !ch.blocked {
			i++
			continue
		}
		d.runnable = append(d.runnable[:i], d.runnable[i+1:]...)
		if d.next > i {
			d.next--
		}
		d.blocked = append(d.blocked, ch)
	}
	c.blockTowardsRootSetBlocked(len(d.runnable) == 0)
}

package tc

import (
	"math"

	"golang.org/x/time/rate"
)

// toWorkUnits converts a quantity already expressed in resource units into
// "work units" (resource units left-shifted by usageAmplifierPow), the
// fixed-point representation the token bucket accounts in so it never
// needs floating point on the hot path.
func toWorkUnits(x uint64) uint64 { return x << usageAmplifierPow }

// toWorkUnitsPerCycle converts a resource-units-per-second limit into
// work-units-per-cycle given the worker's TSC frequency.
func toWorkUnitsPerCycle(x, tscHz uint64) uint64 {
	if tscHz == 0 {
		return 0
	}
	return (x << usageAmplifierPow) / tscHz
}

// AddChildRateLimit attaches the single child a rate-limit class may have;
// a second call fails.
func (c *TrafficClass) AddChildRateLimit(child *TrafficClass) error {
	if c.policy != PolicyRateLimit {
		return ErrWrongPolicy
	}
	if c.rateLimit.child != nil {
		return ErrAlreadyHasChild
	}
	child.parent = c
	c.rateLimit.child = child
	if !child.blocked {
		c.unblockTowardsRootSetBlocked(0, false)
	}
	return nil
}

func (c *TrafficClass) removeChildRateLimit(child *TrafficClass) bool {
	if c.rateLimit.child != child {
		return false
	}
	c.rateLimit.child = nil
	child.parent = nil
	return true
}

func (c *TrafficClass) pickNextRateLimit() *TrafficClass {
	return c.rateLimit.child
}

// SetLimit sets the throttle rate, expressed in resource units per second.
// A limit of 0 means unlimited.
func (c *TrafficClass) SetLimit(limitArg, tscHz uint64) {
	d := c.rateLimit
	d.limitArg = limitArg
	d.limit = toWorkUnitsPerCycle(limitArg, tscHz)
}

// SetMaxBurst sets the bucket depth, expressed in resource units.
func (c *TrafficClass) SetMaxBurst(burstArg uint64) {
	d := c.rateLimit
	d.maxBurstArg = burstArg
	d.maxBurst = toWorkUnits(burstArg)
}

// ConfigureWallClock is the wall-clock-friendly front door onto SetLimit
// and SetMaxBurst: callers describe a rate limit with a
// golang.org/x/time/rate.Limiter (resource units per second, with its
// own burst) instead of computing work-units-per-cycle by hand, and
// ConfigureWallClock converts it into this class's TSC-cycle token
// bucket. l is read, never driven — the hot path still accounts against
// tscHz through accountRateLimit, since rate.Limiter itself only
// understands wall-clock time.
func (c *TrafficClass) ConfigureWallClock(l *rate.Limiter, tscHz uint64) {
	limit := l.Limit()
	limitArg := uint64(0)
	if limit != rate.Inf && limit > 0 {
		limitArg = uint64(limit)
	}
	c.SetLimit(limitArg, tscHz)
	c.SetMaxBurst(uint64(l.Burst()))
}

// LimitArg, MaxBurstArg, Tokens report the rate-limit class's configured
// and live token-bucket state, in resource-unit terms where applicable.
func (c *TrafficClass) LimitArg() uint64    { return c.rateLimit.limitArg }
func (c *TrafficClass) MaxBurstArg() uint64 { return c.rateLimit.maxBurstArg }
func (c *TrafficClass) Tokens() int64       { return c.rateLimit.tokens }
func (c *TrafficClass) Child() *TrafficClass {
	if c.policy != PolicyRateLimit {
		return nil
	}
	return c.rateLimit.child
}

// accountRateLimit debits the bucket for usage incurred this round,
// replenishes it for elapsed time, and blocks the class (scheduling a
// wakeup) if it has gone into debt. A limit of 0 is unlimited: the class
// never throttles.
func (c *TrafficClass) accountRateLimit(wq WakeupQueue, usage Usage, tsc uint64) {
	d := c.rateLimit
	if d.limit == 0 {
		d.lastTSC = tsc
		return
	}

	d.tokens -= int64(usage[d.resource] << usageAmplifierPow)
	d.tokens = replenish(d.tokens, tsc-d.lastTSC, d.limit, int64(d.maxBurst))
	d.lastTSC = tsc

	if d.tokens < 0 {
		c.stats.CntThrottled++
		wait := ceilDiv(uint64(-d.tokens), d.limit)
		c.wakeupTime = tsc + wait
		c.blockTowardsRootSetBlocked(true)
		if wq != nil {
			wq.Add(c)
		}
	} else if c.blocked {
		c.unblockTowardsRootSetBlocked(tsc, false)
	}
}

// replenish adds elapsed*limit work units to tokens, saturating at
// maxBurst and guarding against int64 overflow for large elapsed spans.
func replenish(tokens int64, elapsed, limit uint64, maxBurst int64) int64 {
	if limit == 0 || elapsed == 0 {
		if tokens > maxBurst {
			return maxBurst
		}
		return tokens
	}
	if elapsed > uint64(math.MaxInt64)/limit {
		return maxBurst
	}
	sum := tokens + int64(elapsed*limit)
	if sum < tokens || sum > maxBurst {
		return maxBurst
	}
	return sum
}

func ceilDiv(a, b uint64) uint64 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

func (c *TrafficClass) unblockRateLimit(tsc uint64) {
	c.unblockTowardsRootSetBlocked(tsc, false)
}

func (c *TrafficClass) blockRateLimit() {
	c.blockTowardsRootSetBlocked(c.rateLimit.child == nil || c.rateLimit.child.blocked)
}

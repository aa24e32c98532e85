package sched

import "time"

// Clock returns the current "tsc" — a monotonically increasing cycle
// counter tasks and traffic classes use for all timing decisions. A
// real rdtsc read needs cgo or an arch-specific asm stub, neither of
// which fits this module's pure-Go, toolchain-free constraints; the
// default Clock instead returns a monotonic nanosecond counter, which
// preserves every algorithm's ordering/rate-limiting properties (they
// only ever compare or subtract two tsc values) at the cost of the
// absolute tsc_hz scaling a real rdtsc would have. Tests substitute a
// synthetic Clock to drive the loop deterministically.
type Clock func() uint64

// WallClock is the default production Clock: nanoseconds since an
// arbitrary epoch, monotonic within one process.
func WallClock() uint64 { return uint64(time.Now().UnixNano()) }

// TSCHz is the nominal "tsc" frequency paired with WallClock: one tick
// per nanosecond, so a rate-limit's tsc_hz parameter is simply 1e9.
const TSCHz = 1_000_000_000

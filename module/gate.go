package module

import (
	"sync"

	"github.com/bess-go/bessd/pkt"
)

// GateHook is an observation callback invoked, in registration order, on
// every batch traversing a gate: packet-tracking counters, pcap capture,
// or any other side-effecting inspector. A hook never mutates the batch.
type GateHook interface {
	Name() string
	// ProcessBatch observes (but must not retain) pkts.
	ProcessBatch(pkts []*pkt.Packet)
}

// CounterHook is the always-installed default gate hook (spec §5.3's
// expansion): a per-gate packet/byte counter, grounded on original
// port.h's per-queue stat counters and the teacher's per-tag counters in
// muxer.go's IngestMuxerState.
type CounterHook struct {
	mu      sync.Mutex
	Packets uint64
	Bytes   uint64
}

func NewCounterHook() *CounterHook { return &CounterHook{} }

func (h *CounterHook) Name() string { return "counter" }

func (h *CounterHook) ProcessBatch(pkts []*pkt.Packet) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Packets += uint64(len(pkts))
	for _, p := range pkts {
		h.Bytes += uint64(p.TotalLen())
	}
}

// Snapshot returns the hook's current counters.
func (h *CounterHook) Snapshot() (packets, bytes uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.Packets, h.Bytes
}

// CaptureHook buffers up to Limit packets' raw bytes for later
// inspection, the Go analogue of a pcap capture hook: a bounded ring the
// control plane can drain via Drain, never blocking the fast path on I/O.
type CaptureHook struct {
	mu     sync.Mutex
	Limit  int
	frames [][]byte
}

func NewCaptureHook(limit int) *CaptureHook { return &CaptureHook{Limit: limit} }

func (h *CaptureHook) Name() string { return "capture" }

func (h *CaptureHook) ProcessBatch(pkts []*pkt.Packet) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, p := range pkts {
		if len(h.frames) >= h.Limit {
			return
		}
		frame := append([]byte(nil), p.Data()...)
		h.frames = append(h.frames, frame)
	}
}

// Drain returns and clears every captured frame.
func (h *CaptureHook) Drain() [][]byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := h.frames
	h.frames = nil
	return out
}

// IGate is an input gate: a stable index within its owning module and
// the unordered set of upstream output gates feeding it.
type IGate struct {
	Index     int
	ownerName string
	upstream  map[*OGate]bool
	hooks     []GateHook
}

// NewIGate constructs an input gate at the given index, owned by the
// named module. Called by graph when a connection needs an igate that
// doesn't exist yet.
func NewIGate(owner string, idx int) *IGate {
	return &IGate{Index: idx, ownerName: owner, upstream: map[*OGate]bool{}}
}

// Owner returns the name of the module this gate belongs to.
func (g *IGate) Owner() string { return g.ownerName }

// Upstream returns the output gates currently feeding this input gate.
func (g *IGate) Upstream() []*OGate {
	out := make([]*OGate, 0, len(g.upstream))
	for og := range g.upstream {
		out = append(out, og)
	}
	return out
}

// UpstreamCount reports how many output gates feed this input gate,
// used by graph.Disconnect to decide whether the igate itself should
// be removed once its last upstream ogate disappears.
func (g *IGate) UpstreamCount() int { return len(g.upstream) }


// Hooks returns the ordered hook list.
func (g *IGate) Hooks() []GateHook { return append([]GateHook(nil), g.hooks...) }

// AddHook appends a hook, invoked after existing hooks on every batch.
func (g *IGate) AddHook(h GateHook) { g.hooks = append(g.hooks, h) }

func (g *IGate) fire(pkts []*pkt.Packet) {
	for _, h := range g.hooks {
		h.ProcessBatch(pkts)
	}
}

// OGate is an output gate: a stable index and exactly one downstream
// input gate (nil until connected).
type OGate struct {
	Index     int
	ownerName string
	down      *IGate
	hooks     []GateHook
}

// NewOGate constructs an output gate at the given index, owned by the
// named module.
func NewOGate(owner string, idx int) *OGate {
	return &OGate{Index: idx, ownerName: owner}
}

// Owner returns the name of the module this gate belongs to.
func (g *OGate) Owner() string { return g.ownerName }

// Downstream returns the connected input gate, or nil.
func (g *OGate) Downstream() *IGate { return g.down }

// Hooks returns the ordered hook list.
func (g *OGate) Hooks() []GateHook { return append([]GateHook(nil), g.hooks...) }

// AddHook appends a hook, invoked after existing hooks on every batch.
func (g *OGate) AddHook(h GateHook) { g.hooks = append(g.hooks, h) }

func (g *OGate) fire(pkts []*pkt.Packet) {
	for _, h := range g.hooks {
		h.ProcessBatch(pkts)
	}
}

// Link connects og to ig: og's sole downstream becomes ig, and ig
// records og among its upstream set. The graph package is the only
// expected caller, from Connect.
func Link(og *OGate, ig *IGate) {
	og.down = ig
	ig.upstream[og] = true
}

// Unlink removes the og -> ig connection established by Link.
func Unlink(og *OGate, ig *IGate) {
	if og.down == ig {
		og.down = nil
	}
	delete(ig.upstream, og)
}

// Fire invokes both gates' hooks, in og-then-ig order, on the packets of
// one batch traversing this edge. ig may be nil (an ogate with no
// downstream connection still observes its own hooks).
func Fire(og *OGate, ig *IGate, pkts []*pkt.Packet) {
	og.fire(pkts)
	if ig != nil {
		ig.fire(pkts)
	}
}

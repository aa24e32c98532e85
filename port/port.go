// Package port declares the external collaborator interface the core
// dataplane consumes to send and receive packets: drivers, DPDK-style
// NICs, or anything else that can move bytes. The core never implements
// a concrete Port itself — see internal/refport for one illustrative,
// non-core implementation.
package port

import "github.com/bess-go/bessd/pkt"

// MaxQueues bounds per-direction queue count, matching the original
// port.h's fixed per-queue stat array sizing.
const MaxQueues = 128

// Direction distinguishes the receive and transmit queue stat arrays.
type Direction int

const (
	DirIn Direction = iota
	DirOut
)

// NodeMask is a bitmask of allowed NUMA sockets (bit i == socket i
// allowed), shared by Port.GetNodePlacementConstraint and a module's
// PlacementConstraint.
type NodeMask uint64

// AnyNode permits placement on any socket.
const AnyNode NodeMask = ^NodeMask(0)

// LinkStatus reports a port's physical link state.
type LinkStatus struct {
	Up        bool
	FullDuplex bool
	Autoneg   bool
	SpeedMbps uint32
}

// Features describes which statistics a Port maintains itself; the core
// only increments its own counters for a direction the port doesn't
// self-account.
type Features struct {
	SelfIncStatsIn  bool
	SelfIncStatsOut bool
}

// Conf is an opaque per-port configuration blob; concrete Port
// implementations type-assert it to their own config struct.
type Conf interface{}

// QueueStats accumulates packet/byte/drop counters for one queue.
type QueueStats struct {
	Packets uint64
	Bytes   uint64
	Dropped uint64
}

// Port is the surface the core consumes. init_driver (one-time,
// class-level) is intentionally not part of the instance interface: the
// core never constructs a Port except through a registered driver
// descriptor, mirroring the original's class-vs-instance split without
// needing a separate Go type.
type Port interface {
	Init(arg Conf) error
	Deinit()
	RecvPackets(qid int, buf []*pkt.Packet) (n int)
	SendPackets(qid int, buf []*pkt.Packet) (accepted int)
	CollectStats(reset bool) [2][MaxQueues]QueueStats
	GetLinkStatus() LinkStatus
	UpdateConf(conf Conf) error
	GetNodePlacementConstraint() NodeMask
	Features() Features
	DefaultIncQueueSize() int
	DefaultOutQueueSize() int
}

// Package refport is one illustrative, non-core implementation of the
// port.Port trait (spec §6.1). It is not on the core dataplane's
// critical path and the graph/scheduler never import it directly — it
// exists to show how a real driver would fill a pkt.Packet's opaque
// 128-byte driver-header region, decoding whatever a prior capture
// stage wrote there with github.com/google/gopacket, the same library
// the teacher pulls in for its pcap-backed ingesters
// (ingesters/networkLog, ingesters/GoogleStenographerIngester).
package refport

import (
	"sync"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/bess-go/bessd/pkt"
	"github.com/bess-go/bessd/port"
)

// DecodedHeader summarizes the Ethernet/IP/transport layers gopacket
// found in a packet's driver-header region, for a caller (e.g. a
// gatehook) that wants human-readable info rather than raw bytes.
type DecodedHeader struct {
	EthernetType  layers.EthernetType
	SrcMAC, DstMAC string
	SrcIP, DstIP   string
	Protocol       string
	SrcPort, DstPort uint16
}

// Decode interprets the driver-header bytes of p as an Ethernet frame,
// descending into IPv4/IPv6 and TCP/UDP if present. It never mutates p;
// a gopacket decode failure (the header wasn't actually Ethernet, or a
// pool handed back a packet whose driver header is still zeroed)
// just yields a zero DecodedHeader, not an error, since this is
// diagnostic/illustrative rather than a load-bearing decode path.
func Decode(p *pkt.Packet) DecodedHeader {
	var out DecodedHeader
	if p == nil {
		return out
	}
	gp := gopacket.NewPacket(p.DriverHeader(), layers.LayerTypeEthernet, gopacket.DecodeOptions{Lazy: true, NoCopy: true})
	if eth, ok := gp.Layer(layers.LayerTypeEthernet).(*layers.Ethernet); ok && eth != nil {
		out.EthernetType = eth.EthernetType
		out.SrcMAC = eth.SrcMAC.String()
		out.DstMAC = eth.DstMAC.String()
	}
	if ip4, ok := gp.Layer(layers.LayerTypeIPv4).(*layers.IPv4); ok && ip4 != nil {
		out.SrcIP = ip4.SrcIP.String()
		out.DstIP = ip4.DstIP.String()
		out.Protocol = ip4.Protocol.String()
	} else if ip6, ok := gp.Layer(layers.LayerTypeIPv6).(*layers.IPv6); ok && ip6 != nil {
		out.SrcIP = ip6.SrcIP.String()
		out.DstIP = ip6.DstIP.String()
		out.Protocol = ip6.NextHeader.String()
	}
	if tcp, ok := gp.Layer(layers.LayerTypeTCP).(*layers.TCP); ok && tcp != nil {
		out.SrcPort, out.DstPort = uint16(tcp.SrcPort), uint16(tcp.DstPort)
	} else if udp, ok := gp.Layer(layers.LayerTypeUDP).(*layers.UDP); ok && udp != nil {
		out.SrcPort, out.DstPort = uint16(udp.SrcPort), uint16(udp.DstPort)
	}
	return out
}

// Port is a loopback reference implementation: RecvPackets hands back
// whatever was queued by a prior Inject call (standing in for a real
// NIC's RX ring), SendPackets decodes the driver header of every packet
// it's handed and counts it as accepted. It satisfies port.Port so it
// can be wired into a graph for tests or a demo pipeline without a real
// kernel/DPDK driver.
type Port struct {
	pool pkt.Pool

	mu      sync.Mutex
	pending [][]*pkt.Packet // per-queue RX backlog
	stats   [2][port.MaxQueues]port.QueueStats
	self    port.Features
}

// New builds a reference Port backed by pool for RX injection and with
// numQueues receive queues.
func New(pool pkt.Pool, numQueues int) *Port {
	if numQueues <= 0 {
		numQueues = 1
	}
	return &Port{
		pool:    pool,
		pending: make([][]*pkt.Packet, numQueues),
		self:    port.Features{SelfIncStatsIn: true, SelfIncStatsOut: true},
	}
}

func (p *Port) Init(arg port.Conf) error { return nil }
func (p *Port) Deinit()                  {}

// Inject queues packets to be returned by the next RecvPackets(qid, ...)
// call, the test/demo stand-in for packets actually arriving on a wire.
func (p *Port) Inject(qid int, pkts []*pkt.Packet) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if qid < 0 || qid >= len(p.pending) {
		return
	}
	p.pending[qid] = append(p.pending[qid], pkts...)
}

func (p *Port) RecvPackets(qid int, buf []*pkt.Packet) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if qid < 0 || qid >= len(p.pending) {
		return 0
	}
	n := copy(buf, p.pending[qid])
	p.pending[qid] = p.pending[qid][n:]
	p.stats[port.DirIn][qid].Packets += uint64(n)
	return n
}

// SendPackets decodes each packet's driver header (the illustrative
// part — a real driver would instead hand the bytes to a NIC TX
// descriptor) and accepts all of them.
func (p *Port) SendPackets(qid int, buf []*pkt.Packet) int {
	for _, pk := range buf {
		_ = Decode(pk)
	}
	p.mu.Lock()
	if qid >= 0 && qid < port.MaxQueues {
		p.stats[port.DirOut][qid].Packets += uint64(len(buf))
	}
	p.mu.Unlock()
	return len(buf)
}

func (p *Port) CollectStats(reset bool) [2][port.MaxQueues]port.QueueStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.stats
	if reset {
		p.stats = [2][port.MaxQueues]port.QueueStats{}
	}
	return out
}

func (p *Port) GetLinkStatus() port.LinkStatus {
	return port.LinkStatus{Up: true, FullDuplex: true, SpeedMbps: 10000}
}

func (p *Port) UpdateConf(conf port.Conf) error { return nil }

func (p *Port) GetNodePlacementConstraint() port.NodeMask { return port.AnyNode }

func (p *Port) Features() port.Features { return p.self }

func (p *Port) DefaultIncQueueSize() int { return 512 }
func (p *Port) DefaultOutQueueSize() int { return 512 }

package graph

import (
	"github.com/bess-go/bessd/module"
	"github.com/bess-go/bessd/pkt"
)

// RunSplit is the thin core driver for spec §6.3's run_split step: given
// one ogate's worth of an already-split batch (the packets a module's
// ProcessBatch routed to output gate oidx via Batch.SetGate), it fires
// both gates' hooks and, if oidx is connected, dispatches the packets
// synchronously into the downstream module's ProcessBatch. Concrete
// modules are out of this system's scope, but the scheduler's own
// ProcessBatch call chain needs exactly this recursive walk to reach
// them, so it lives here rather than in any one module.
//
// A typical caller drives every gate a module used in one step:
//
//	batch.Split(func(gate uint16, pkts []*pkt.Packet) {
//		_ = g.RunSplit(moduleName, int(gate), pkts, ctx)
//	})
func (g *Graph) RunSplit(fromModule string, oidx int, pkts []*pkt.Packet, ctx *module.Context) error {
	if len(pkts) == 0 {
		return nil
	}
	og, err := g.OGateAt(fromModule, oidx)
	if err != nil {
		return err
	}
	ig := og.Downstream()
	module.Fire(og, ig, pkts)
	if ig == nil {
		return nil // unconnected ogate: hooks observed the packets, nothing downstream to run
	}

	down, err := g.ModuleAt(ig.Owner())
	if err != nil {
		return err
	}

	batch := &pkt.Batch{}
	for _, p := range pkts {
		if !batch.Append(p) {
			break // more packets than Batch.Cap(): caller is expected to chunk groups itself
		}
	}
	down.ProcessBatch(ctx, ig.Index, batch)
	return nil
}

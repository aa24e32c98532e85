package ctrl

import (
	"github.com/bess-go/bessd/module"
	"github.com/bess-go/bessd/pkt"
)

// MempoolStats reports one packet pool's occupancy and memory layout, the
// dump_mempool RPC's payload.
type MempoolStats struct {
	Capacity     int
	InUse        int
	Capabilities pkt.Capabilities
}

// DumpMempool reports p's current occupancy. Unlike most handlers this
// takes its target directly rather than by name: packet pools are owned by
// ports/workers, not by a registry Server tracks itself.
func (s *Server) DumpMempool(p pkt.Pool) MempoolStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return MempoolStats{
		Capacity:     p.Capacity(),
		InUse:        p.Size(),
		Capabilities: p.Capabilities(),
	}
}

// ImportPlugin, UnloadPlugin, and ListPlugins are Non-goals (spec.md line
// 15 excludes plugin loading): dynamically loading compiled module/port
// classes has no portable Go equivalent to dlopen that this repo's
// dependency set covers, so these report ErrNotSupported rather than
// pretending to a feature that was scoped out.
func (s *Server) ImportPlugin(path string) error {
	return module.ErrNotSupported
}

func (s *Server) UnloadPlugin(path string) error {
	return module.ErrNotSupported
}

func (s *Server) ListPlugins() ([]string, error) {
	return nil, module.ErrNotSupported
}

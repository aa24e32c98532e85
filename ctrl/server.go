// Package ctrl implements the control-plane surface described by spec
// §4.G: the operation families an RPC service would dispatch to
// (lifecycle, workers, traffic classes, ports, modules, hooks, misc),
// each serialized against the others so a structural change never races
// a worker mid-batch.
package ctrl

import (
	"errors"
	"sync"

	"github.com/bess-go/bessd/graph"
	"github.com/bess-go/bessd/module"
	"github.com/bess-go/bessd/tc"
	"github.com/bess-go/bessd/worker"
)

// Version is the daemon's reported build identifier (get_version).
const Version = "bessd-go/0.1"

var (
	ErrUnknownPolicy    = errors.New("ctrl: unknown traffic class policy")
	ErrUnknownScheduler = errors.New("ctrl: unknown scheduler variant")
	ErrNotAttachable    = errors.New("ctrl: parent policy accepts no children this way")
	ErrNotFound          = errors.New("ctrl: not found")
	ErrBusy              = errors.New("ctrl: operation requires workers paused")
)

// Server is the process-wide control-plane surface. A single sync.Mutex
// serializes every exported handler, the Go substitute for the
// original's one recursive mutex (see DESIGN.md): Go's sync.Mutex isn't
// reentrant, so handlers never call each other directly — any shared
// logic lives in unexported *Locked helpers that assume the caller
// already holds Server.mu, which is how every exported method is
// structured below.
type Server struct {
	mu sync.Mutex

	Graph     *graph.Graph
	Modules   *module.Registry
	Builder   *tc.Builder
	Workers   *worker.Runtime
	Ports     *PortRegistry
	GateHooks *GateHookRegistry
	Resume    *ResumeHookRegistry
}

// New wires a Server around the given registries. The caller constructs
// Graph/Modules/Builder/Workers up front (e.g. in cmd/bessd) since they
// outlive any one Server and may be inspected directly by tests.
func New(g *graph.Graph, modules *module.Registry, builder *tc.Builder, workers *worker.Runtime) *Server {
	return &Server{
		Graph:     g,
		Modules:   modules,
		Builder:   builder,
		Workers:   workers,
		Ports:     NewPortRegistry(),
		GateHooks: NewGateHookRegistry(),
		Resume:    NewResumeHookRegistry(g),
	}
}

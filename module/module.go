// Package module defines the Module trait every dataplane element
// implements, the Task entry point a module schedules onto a traffic
// class, and the class-descriptor registry used to instantiate modules
// by name.
package module

import (
	"errors"

	"github.com/bess-go/bessd/pkt"
	"github.com/bess-go/bessd/port"
)

var (
	ErrNotSupported  = errors.New("module: operation not supported")
	ErrNameExists    = errors.New("module: class name already registered")
	ErrClassNotFound = errors.New("module: class not found")
)

// Event identifies a lifecycle notification delivered to Module.OnEvent.
type Event int

const (
	// EventPreResume fires once per resume, before workers start running
	// again, giving modules a chance to validate or refresh cached state
	// derived from the graph (e.g. a recomputed metadata offset).
	EventPreResume Event = iota
	// EventPostResume fires after workers have resumed.
	EventPostResume
)

func (e Event) String() string {
	switch e {
	case EventPreResume:
		return "pre_resume"
	case EventPostResume:
		return "post_resume"
	default:
		return "unknown_event"
	}
}

// Context is threaded through ProcessBatch/RunTask calls so a module can
// read the scheduler's current notion of time without a global.
type Context struct {
	CurrentTSC uint64
}

// CheckResult is returned by CheckModuleConstraints: a human-readable
// report of any NUMA/worker-count placement violation found for this
// module, or empty if none.
type CheckResult struct {
	Violations []string
}

func (r CheckResult) OK() bool { return len(r.Violations) == 0 }

// Module is the behavior every dataplane element implements. Base embeds
// default ProcessBatch/RunTask implementations that panic, mirroring the
// original mclass's optional function pointers: a module that never
// receives a task need not implement RunTask, and vice versa.
type Module interface {
	Init(arg interface{}) error
	Deinit()
	ProcessBatch(ctx *Context, igate int, batch *pkt.Batch)
	RunTask(ctx *Context, batch *pkt.Batch, arg interface{}) TaskResult
	GetDesc() string
	CheckModuleConstraints() CheckResult
	OnEvent(event Event) error
}

// TaskResult mirrors tc.TaskResult; module keeps its own copy so this
// package does not need to import tc just to describe what RunTask
// returns. Task (below) translates it when implementing tc.LeafTask.
type TaskResult struct {
	Block   bool
	Packets uint64
	Bits    uint64
}

// Base gives a Module every default behavior a concrete module doesn't
// care to override: ProcessBatch/RunTask panic (a module that receives a
// batch or a task it never declared support for is a construction bug,
// not a runtime condition to recover from), OnEvent no-ops successfully,
// and CheckModuleConstraints reports no violations.
type Base struct{}

func (Base) ProcessBatch(ctx *Context, igate int, batch *pkt.Batch) {
	panic("module: ProcessBatch not implemented")
}

func (Base) RunTask(ctx *Context, batch *pkt.Batch, arg interface{}) TaskResult {
	panic("module: RunTask not implemented")
}

func (Base) OnEvent(event Event) error { return nil }

func (Base) CheckModuleConstraints() CheckResult { return CheckResult{} }

// PlacementConstraint is a module's NUMA/socket placement requirement,
// expressed as a bitmask of allowed sockets (bit i == socket i allowed),
// plus the allowed worker-count range enforced by check_constraints.
type PlacementConstraint struct {
	NodeMask         port.NodeMask
	MinWorkers       int // 0 means unconstrained
	MaxWorkers       int // 0 means unconstrained
	PropagateWorkers bool
}

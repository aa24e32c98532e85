package module

import "github.com/bess-go/bessd/tc"

// Task is a schedulable entry point owned by a module: a reference to
// the owning module, an opaque argument (typically a queue id), and the
// leaf traffic class it must be bound to before the scheduler can ever
// pick it. Task implements tc.LeafTask directly so a *Task can be handed
// straight to tc.Builder.CreateLeaf.
type Task struct {
	Owner Module
	Arg   interface{}
	Leaf  *tc.TrafficClass
}

// NewTask builds a task bound to owner with the given run argument. The
// caller still must register it with a tc.Builder (CreateLeaf) and
// record the resulting leaf via SetLeaf before the scheduler can reach
// it; a Task is inert until both are done.
func NewTask(owner Module, arg interface{}) *Task {
	return &Task{Owner: owner, Arg: arg}
}

// SetLeaf records which leaf traffic class this task was bound to,
// letting diagnostics walk from a task back to its place in the tree.
func (t *Task) SetLeaf(leaf *tc.TrafficClass) { t.Leaf = leaf }

// Run invokes the owning module's RunTask and translates its result into
// tc.TaskResult, the shape tc's scheduler-facing LeafTask interface
// expects. The module allocates (and owns freeing) its own batch; Run
// passes nil and lets RunTask construct one, since only a source module
// implements RunTask in the first place.
func (t *Task) Run(tsc uint64) tc.TaskResult {
	ctx := &Context{CurrentTSC: tsc}
	res := t.Owner.RunTask(ctx, nil, t.Arg)
	return tc.TaskResult{Block: res.Block, Packets: res.Packets, Bits: res.Bits}
}

package tc

// Builder creates and tracks every TrafficClass by name, the Go analogue
// of the original's static TrafficClassBuilder: a name collision refuses
// creation outright rather than risking two classes silently sharing an
// identity. Unlike the module graph (which the design deliberately models
// as an id-keyed arena because of its Module*<->Gate* cross references),
// a traffic-class tree has no back-references beyond parent pointers, so
// ordinary Go pointers inside a name-keyed map are sufficient here: the
// garbage collector safely reclaims a class once Clear removes it from
// the map and no tree still references it.
type Builder struct {
	all map[string]*TrafficClass
}

// NewBuilder returns an empty traffic-class builder.
func NewBuilder() *Builder {
	return &Builder{all: map[string]*TrafficClass{}}
}

// Find returns the class registered under name, or nil.
func (b *Builder) Find(name string) *TrafficClass { return b.all[name] }

// All returns every class currently tracked by the builder, in no
// particular order.
func (b *Builder) All() []*TrafficClass {
	out := make([]*TrafficClass, 0, len(b.all))
	for _, c := range b.all {
		out = append(out, c)
	}
	return out
}

func (b *Builder) register(name string, c *TrafficClass) error {
	if _, exists := b.all[name]; exists {
		return ErrNameExists
	}
	b.all[name] = c
	return nil
}

// CreatePriority creates a standalone priority class.
func (b *Builder) CreatePriority(name string) (*TrafficClass, error) {
	c := &TrafficClass{name: name, policy: PolicyPriority, blocked: true, priority: &priorityData{}}
	if err := b.register(name, c); err != nil {
		return nil, err
	}
	return c, nil
}

// CreateWeightedFair creates a standalone weighted-fair class sharing the
// given resource among its children.
func (b *Builder) CreateWeightedFair(name string, resource Resource) (*TrafficClass, error) {
	c := &TrafficClass{name: name, policy: PolicyWeightedFair, blocked: true, wfair: &weightedFairData{resource: resource, index: map[*TrafficClass]*wfChild{}}}
	if err := b.register(name, c); err != nil {
		return nil, err
	}
	return c, nil
}

// CreateRoundRobin creates a standalone round-robin class.
func (b *Builder) CreateRoundRobin(name string) (*TrafficClass, error) {
	c := &TrafficClass{name: name, policy: PolicyRoundRobin, blocked: true, roundRobn: &roundRobinData{}}
	if err := b.register(name, c); err != nil {
		return nil, err
	}
	return c, nil
}

// CreateRateLimit creates a standalone rate-limit class. limitArg and
// maxBurstArg are in resource units (per second / total); tscHz is the
// worker's clock frequency used to derive the internal work-units-per-
// cycle representation.
func (b *Builder) CreateRateLimit(name string, resource Resource, limitArg, maxBurstArg, tscHz uint64) (*TrafficClass, error) {
	c := &TrafficClass{name: name, policy: PolicyRateLimit, blocked: true, rateLimit: &rateLimitData{resource: resource}}
	c.SetLimit(limitArg, tscHz)
	c.SetMaxBurst(maxBurstArg)
	if err := b.register(name, c); err != nil {
		return nil, err
	}
	return c, nil
}

// CreateLeaf creates a leaf class bound to task. Leaves start unblocked.
func (b *Builder) CreateLeaf(name string, task LeafTask) (*TrafficClass, error) {
	c := &TrafficClass{name: name, policy: PolicyLeaf, blocked: false, leaf: &leafData{task: task, waitCycles: initialWaitCycles}}
	if err := b.register(name, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Reset discards every class the builder tracks, regardless of parent/
// child attachment, for a full registry wipe (reset_tcs). Callers are
// responsible for ensuring no worker still references the discarded
// trees, e.g. by holding a WorkerPauser.
func (b *Builder) Reset() {
	b.all = map[string]*TrafficClass{}
}

// Clear removes c from the builder's registry. Fails if c still has
// children or is still attached to a parent; the caller must detach and
// empty it first. On success the caller owns the (now forgotten) class.
func (b *Builder) Clear(c *TrafficClass) error {
	if c.parent != nil {
		return ErrStillAttached
	}
	if len(c.Children()) > 0 {
		return ErrHasChildren
	}
	delete(b.all, c.name)
	return nil
}

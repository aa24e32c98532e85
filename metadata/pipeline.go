package metadata

import "sort"

// GraphView is the read-only slice of the module graph the pipeline needs
// to compute offsets: the set of modules, each module's attribute
// declarations, and the downstream adjacency between modules (an ogate of
// one module feeding an igate of another). It decouples this package from
// the graph package so the graph can import metadata without a cycle.
type GraphView interface {
	// Modules returns every module name in a stable, deterministic order.
	Modules() []string
	// Attributes returns the attribute declarations made by module name.
	Attributes(module string) []Attribute
	// Downstream returns the names of modules directly reachable by
	// following one hop of any of module's output gates, in a stable order.
	Downstream(module string) []string
}

// component is one scope component awaiting offset assignment: the byte
// region reserved for one attribute name as produced by one writer and
// consumed by zero or more downstream readers.
type component struct {
	attr    string
	size    int
	writer  string
	readers []string
	modules map[string]bool // writer + readers, for disjointness checks
}

// placed records a component that has already been given an offset.
type placed struct {
	component
	offset int
}

// Offsets is the result of a ComputeOffsets run: the assigned (or
// sentinel) offset for every (module, attribute) pair referenced anywhere
// in the graph.
type Offsets struct {
	byModuleAttr map[string]map[string]int
}

// Lookup returns the offset assigned to module's declaration of attr, or
// NoWrite if the pair was never part of the computation (treated the same
// as "no reachable writer" — there is nothing valid to read).
func (o *Offsets) Lookup(module, attr string) int {
	if o == nil {
		return NoWrite
	}
	m, ok := o.byModuleAttr[module]
	if !ok {
		return NoWrite
	}
	if v, ok := m[attr]; ok {
		return v
	}
	return NoWrite
}

func (o *Offsets) set(module, attr string, offset int) {
	m, ok := o.byModuleAttr[module]
	if !ok {
		m = map[string]int{}
		o.byModuleAttr[module] = m
	}
	m[attr] = offset
}

// ComputeOffsets runs the full metadata offset assignment described by the
// attribute scope-component algorithm: for every attribute name, every
// writer's transitive downstream scope component is identified, then every
// component across every attribute name is packed into the RegionSize-byte
// metadata region by greedy first-fit-decreasing size, breaking ties by a
// stable (attribute name, writer name) ordering so two runs over the same
// graph always agree.
func ComputeOffsets(g GraphView, reg *Registry) *Offsets {
	out := &Offsets{byModuleAttr: map[string]map[string]int{}}

	attrModules := collectByAttribute(g)
	var allComponents []component

	for _, attr := range sortedKeys(attrModules) {
		decl := attrModules[attr]
		size := reg.Size(attr)
		if size <= 0 {
			continue
		}
		writers := modulesWithRole(g, decl, Write, Update)
		for _, w := range writers {
			comp := buildComponent(g, decl, attr, w, size)
			if len(comp.readers) == 0 {
				out.set(w, attr, NoRead)
				continue
			}
			allComponents = append(allComponents, comp)
		}
		// Pure readers never reached by any writer's component get NoWrite.
		covered := map[string]bool{}
		for _, c := range allComponents {
			if c.attr != attr {
				continue
			}
			for _, r := range c.readers {
				covered[r] = true
			}
		}
		for _, m := range decl[Read] {
			if !covered[m] {
				out.set(m, attr, NoWrite)
			}
		}
	}

	sort.SliceStable(allComponents, func(i, j int) bool {
		if allComponents[i].size != allComponents[j].size {
			return allComponents[i].size > allComponents[j].size
		}
		if allComponents[i].attr != allComponents[j].attr {
			return allComponents[i].attr < allComponents[j].attr
		}
		return allComponents[i].writer < allComponents[j].writer
	})

	var placedList []placed
	for _, c := range allComponents {
		off, ok := firstFit(c, placedList)
		if !ok {
			out.set(c.writer, c.attr, NoSpace)
			for _, r := range c.readers {
				out.set(r, c.attr, NoSpace)
			}
			continue
		}
		placedList = append(placedList, placed{component: c, offset: off})
		out.set(c.writer, c.attr, off)
		for _, r := range c.readers {
			out.set(r, c.attr, off)
		}
	}

	return out
}

// declByMode groups, for one attribute, the module names declaring it
// under each mode.
type declByMode map[Mode][]string

func collectByAttribute(g GraphView) map[string]declByMode {
	out := map[string]declByMode{}
	for _, m := range g.Modules() {
		for _, a := range g.Attributes(m) {
			d, ok := out[a.Name]
			if !ok {
				d = declByMode{}
				out[a.Name] = d
			}
			d[a.Mode] = append(d[a.Mode], m)
		}
	}
	return out
}

func sortedKeys(m map[string]declByMode) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func modulesWithRole(g GraphView, decl declByMode, modes ...Mode) []string {
	seen := map[string]bool{}
	var out []string
	for _, mode := range modes {
		for _, m := range decl[mode] {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	sort.Strings(out)
	return out
}

// buildComponent performs the forward traversal from writer w, collecting
// the transitive set of downstream modules that read attr before any
// other writer of attr is reached. An Update-mode module is itself added
// as the last reader of this component (it reads before overwriting) but
// also stops the traversal there, since it originates its own component
// when the outer loop visits it as a writer.
func buildComponent(g GraphView, decl declByMode, attr, w string, size int) component {
	isWrite := toSet(decl[Write])
	isUpdate := toSet(decl[Update])
	isRead := toSet(decl[Read])

	visited := map[string]bool{w: true}
	var readers []string
	modSet := map[string]bool{w: true}

	var walk func(string)
	walk = func(cur string) {
		for _, next := range g.Downstream(cur) {
			if visited[next] {
				continue
			}
			visited[next] = true
			switch {
			case isWrite[next]:
				// pure writer boundary: excluded, do not traverse past it.
			case isUpdate[next]:
				readers = append(readers, next)
				modSet[next] = true
				// boundary: do not traverse past an update module here; it
				// becomes its own writer root in the outer loop.
			case isRead[next]:
				readers = append(readers, next)
				modSet[next] = true
				walk(next)
			default:
				walk(next)
			}
		}
	}
	walk(w)

	return component{attr: attr, size: size, writer: w, readers: readers, modules: modSet}
}

func toSet(names []string) map[string]bool {
	s := make(map[string]bool, len(names))
	for _, n := range names {
		s[n] = true
	}
	return s
}

// disjointFrom reports whether a and b share no common module.
func disjointFrom(a, b map[string]bool) bool {
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	for m := range small {
		if large[m] {
			return false
		}
	}
	return true
}

// firstFit scans candidate offsets in increasing order and returns the
// first one that does not collide with any already-placed, non-disjoint
// component.
func firstFit(c component, placedList []placed) (int, bool) {
	maxStart := RegionSize - c.size
	if maxStart < 0 {
		return 0, false
	}
	for off := 0; off <= maxStart; off++ {
		if fits(c, off, placedList) {
			return off, true
		}
	}
	return 0, false
}

func fits(c component, off int, placedList []placed) bool {
	end := off + c.size
	for _, p := range placedList {
		if disjointFrom(c.modules, p.modules) {
			continue
		}
		pEnd := p.offset + p.size
		if off < pEnd && p.offset < end {
			return false
		}
	}
	return true
}

package metadata

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeGraph is a minimal GraphView for exercising ComputeOffsets without
// depending on the graph package.
type fakeGraph struct {
	order      []string
	attrs      map[string][]Attribute
	downstream map[string][]string
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{attrs: map[string][]Attribute{}, downstream: map[string][]string{}}
}

func (g *fakeGraph) add(name string, attrs ...Attribute) *fakeGraph {
	g.order = append(g.order, name)
	g.attrs[name] = attrs
	return g
}

func (g *fakeGraph) link(from, to string) *fakeGraph {
	g.downstream[from] = append(g.downstream[from], to)
	return g
}

func (g *fakeGraph) Modules() []string { return g.order }

func (g *fakeGraph) Attributes(m string) []Attribute { return g.attrs[m] }

func (g *fakeGraph) Downstream(m string) []string { return g.downstream[m] }

func TestComputeOffsetsSimpleChain(t *testing.T) {
	// writer -> reader -> sink(no decl)
	g := newFakeGraph().
		add("writer", Attribute{Name: "ts", Size: 8, Mode: Write}).
		add("reader", Attribute{Name: "ts", Size: 8, Mode: Read}).
		add("sink")
	g.link("writer", "reader")
	g.link("reader", "sink")

	reg := NewRegistry()
	require.NoError(t, reg.Register("ts", 8))

	off := ComputeOffsets(g, reg)
	wOff := off.Lookup("writer", "ts")
	rOff := off.Lookup("reader", "ts")
	require.GreaterOrEqual(t, wOff, 0)
	require.Equal(t, wOff, rOff, "writer and reader in the same scope component must agree on offset")
	require.LessOrEqual(t, wOff, RegionSize-8)
}

func TestWriterWithNoReaderGetsNoRead(t *testing.T) {
	g := newFakeGraph().add("writer", Attribute{Name: "x", Size: 4, Mode: Write})
	reg := NewRegistry()
	reg.Register("x", 4)

	off := ComputeOffsets(g, reg)
	require.Equal(t, NoRead, off.Lookup("writer", "x"))
}

func TestReaderWithNoWriterGetsNoWrite(t *testing.T) {
	g := newFakeGraph().add("reader", Attribute{Name: "y", Size: 4, Mode: Read})
	reg := NewRegistry()
	reg.Register("y", 4)

	off := ComputeOffsets(g, reg)
	require.Equal(t, NoWrite, off.Lookup("reader", "y"))
}

func TestSecondWriterStopsUpstreamComponent(t *testing.T) {
	// w1 -> mid(writer, overwrites) -> r (reads mid's value, not w1's)
	g := newFakeGraph().
		add("w1", Attribute{Name: "z", Size: 4, Mode: Write}).
		add("mid", Attribute{Name: "z", Size: 4, Mode: Write}).
		add("r", Attribute{Name: "z", Size: 4, Mode: Read})
	g.link("w1", "mid")
	g.link("mid", "r")

	reg := NewRegistry()
	reg.Register("z", 4)

	off := ComputeOffsets(g, reg)
	require.Equal(t, NoRead, off.Lookup("w1", "z"), "w1's value is overwritten before any reader sees it")
	midOff := off.Lookup("mid", "z")
	rOff := off.Lookup("r", "z")
	require.GreaterOrEqual(t, midOff, 0)
	require.Equal(t, midOff, rOff)
}

func TestComponentTooLargeGetsNoSpace(t *testing.T) {
	g := newFakeGraph().
		add("w1", Attribute{Name: "big1", Size: 100, Mode: Write}).
		add("r1", Attribute{Name: "big1", Size: 100, Mode: Read}).
		add("w2", Attribute{Name: "big2", Size: 100, Mode: Write}).
		add("r2", Attribute{Name: "big2", Size: 100, Mode: Read})
	g.link("w1", "r1")
	g.link("w2", "r2")
	// w1/r1 and w2/r2 are disjoint module sets, so their components are
	// allowed to share byte ranges and both should still fit. Force an
	// actual conflict by also routing a shared observer through both.
	g.add("shared", Attribute{Name: "big1", Size: 100, Mode: Read}, Attribute{Name: "big2", Size: 100, Mode: Read})
	g.link("r1", "shared")
	g.link("r2", "shared")

	reg := NewRegistry()
	reg.Register("big1", 100)
	reg.Register("big2", 100)

	off := ComputeOffsets(g, reg)
	o1 := off.Lookup("w1", "big1")
	o2 := off.Lookup("w2", "big2")
	// both components include "shared", so they are non-disjoint and
	// cannot overlap; with size 100 each in a 128-byte region only one fits.
	require.True(t, o1 == NoSpace || o2 == NoSpace, "two 100-byte components sharing a module cannot both fit in 128 bytes")
}

func TestUpdateModeActsAsBoundaryAndOwnWriter(t *testing.T) {
	g := newFakeGraph().
		add("src", Attribute{Name: "cnt", Size: 4, Mode: Write}).
		add("upd", Attribute{Name: "cnt", Size: 4, Mode: Update}).
		add("dst", Attribute{Name: "cnt", Size: 4, Mode: Read})
	g.link("src", "upd")
	g.link("upd", "dst")

	reg := NewRegistry()
	reg.Register("cnt", 4)

	off := ComputeOffsets(g, reg)
	srcOff := off.Lookup("src", "cnt")
	updOff := off.Lookup("upd", "cnt")
	dstOff := off.Lookup("dst", "cnt")
	require.GreaterOrEqual(t, srcOff, 0)
	require.Equal(t, updOff, dstOff, "update module's own outgoing component carries its new value to downstream readers")
	require.NotEqual(t, srcOff, updOff, "upd belongs to both scope components, so they cannot share a byte offset")
}

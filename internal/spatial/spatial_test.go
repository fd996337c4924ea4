package spatial

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ifc-lite/modelstore/api"
	"github.com/ifc-lite/modelstore/internal/binenc"
	"github.com/ifc-lite/modelstore/internal/relgraph"
	"github.com/ifc-lite/modelstore/internal/tables"
)

type testAttrs map[uint32][]api.AttrValue

func (a testAttrs) EntityAttributes(id uint32) []api.AttrValue { return a[id] }

func storeyAttrs(elev float64) []api.AttrValue {
	attrs := make([]api.AttrValue, 9)
	attrs[8] = api.AttrValue{Kind: api.AttrFloat, Float: elev}
	return attrs
}

// Project 1 > Site 2 > Building 3 > Storeys 4, 5; walls 100, 101 on
// storey 4, space 6 under storey 5 holding element 102.
func buildTestHierarchy(t *testing.T) (*Hierarchy, *tables.StringTable) {
	t.Helper()
	st := tables.NewStringTable()
	eb := tables.NewEntityBuilder(st)
	eb.Add(api.RawEntity{ExpressID: 1, Type: TypeProject, Name: "Project"})
	eb.Add(api.RawEntity{ExpressID: 2, Type: TypeSite, Name: "Site"})
	eb.Add(api.RawEntity{ExpressID: 3, Type: TypeBuilding, Name: "Building A"})
	eb.Add(api.RawEntity{ExpressID: 4, Type: TypeStorey, Name: "Ground Floor"})
	eb.Add(api.RawEntity{ExpressID: 5, Type: TypeStorey, Name: "First Floor"})
	eb.Add(api.RawEntity{ExpressID: 6, Type: TypeSpace, Name: "Office"})
	eb.Add(api.RawEntity{ExpressID: 100, Type: "IFCWALL", Name: "Wall 100"})
	eb.Add(api.RawEntity{ExpressID: 101, Type: "IFCWALL"})
	eb.Add(api.RawEntity{ExpressID: 102, Type: "IFCFURNISHINGELEMENT"})
	entities := eb.Build()

	gb := relgraph.NewBuilder(st)
	gb.AddEdge(1, 2, relgraph.RelAggregates, 900)
	gb.AddEdge(2, 3, relgraph.RelAggregates, 901)
	gb.AddEdge(3, 4, relgraph.RelAggregates, 902)
	gb.AddEdge(3, 5, relgraph.RelAggregates, 902)
	gb.AddEdge(5, 6, relgraph.RelAggregates, 903)
	gb.AddEdge(4, 100, relgraph.RelContainedInSpatialStructure, 910)
	gb.AddEdge(4, 101, relgraph.RelContainedInSpatialStructure, 910)
	gb.AddEdge(6, 102, relgraph.RelContainedInSpatialStructure, 911)
	// Containment pointing at a spatial node must not leak into elements.
	gb.AddEdge(3, 4, relgraph.RelContainedInSpatialStructure, 912)
	graph := gb.Build()

	attrs := testAttrs{
		4: storeyAttrs(0),
		5: storeyAttrs(3.2),
	}
	return Build(entities, graph, attrs), st
}

func TestHierarchyTree(t *testing.T) {
	h, _ := buildTestHierarchy(t)

	root := h.Root
	require.NotNil(t, root)
	assert.Equal(t, TypeProject, root.Type)
	require.Len(t, root.Children, 1)

	site := root.Children[0]
	require.Len(t, site.Children, 1)
	building := site.Children[0]
	require.Len(t, building.Children, 2)
	assert.Empty(t, building.Elements, "spatial child filtered out of element list")

	ground := building.Children[0]
	assert.Equal(t, "Ground Floor", ground.Name)
	assert.ElementsMatch(t, []uint32{100, 101}, ground.Elements)

	first := building.Children[1]
	require.Len(t, first.Children, 1)
	assert.Equal(t, TypeSpace, first.Children[0].Type)
	assert.Equal(t, []uint32{102}, first.Children[0].Elements)
}

func TestHierarchyContainmentMaps(t *testing.T) {
	h, _ := buildTestHierarchy(t)

	assert.ElementsMatch(t, []uint32{100, 101}, h.GetStoreyElements(4))
	assert.Empty(t, h.GetStoreyElements(5))
	assert.Equal(t, []uint32{102}, h.GetSpaceElements(6))

	storey, ok := h.GetContainingStorey(100)
	require.True(t, ok)
	assert.Equal(t, uint32(4), storey)
	_, ok = h.GetContainingStorey(102)
	assert.False(t, ok, "space-held element has no storey entry")

	space, ok := h.GetContainingSpace(102)
	require.True(t, ok)
	assert.Equal(t, uint32(6), space)
}

func TestStoreyElevationsAndHeights(t *testing.T) {
	h, _ := buildTestHierarchy(t)

	assert.Equal(t, 2, h.StoreyCount())
	e, ok := h.StoreyElevation(4)
	require.True(t, ok)
	assert.Equal(t, 0.0, e)

	gap, ok := h.StoreyHeight(4)
	require.True(t, ok)
	assert.InDelta(t, 3.2, gap, 1e-9)
	_, ok = h.StoreyHeight(5)
	assert.False(t, ok, "topmost storey has no height")
}

func TestElevationFallbackProbe(t *testing.T) {
	st := tables.NewStringTable()
	eb := tables.NewEntityBuilder(st)
	eb.Add(api.RawEntity{ExpressID: 1, Type: TypeProject})
	eb.Add(api.RawEntity{ExpressID: 4, Type: TypeStorey, Name: "Short attrs"})
	entities := eb.Build()

	gb := relgraph.NewBuilder(st)
	gb.AddEdge(1, 4, relgraph.RelAggregates, 900)

	// Position 8 absent; the probe should fall back to the first small
	// numeric attribute and skip the out-of-range one.
	attrs := testAttrs{4: {
		{Kind: api.AttrString, Str: "Level 2"},
		{Kind: api.AttrFloat, Float: 123456789},
		{Kind: api.AttrFloat, Float: 6.4},
	}}
	h := Build(entities, gb.Build(), attrs)

	e, ok := h.StoreyElevation(4)
	require.True(t, ok)
	assert.Equal(t, 6.4, e)
}

func TestPathString(t *testing.T) {
	h, _ := buildTestHierarchy(t)

	assert.Equal(t, "Project/Site/Building A/Ground Floor", h.PathString(100))
	assert.Equal(t, "Project/Site/Building A/First Floor/Office", h.PathString(102))
	assert.Equal(t, "Project/Site/Building A", h.PathString(3), "spatial node path ends at itself")
	assert.Equal(t, "", h.PathString(999))

	path := h.GetPath(101)
	require.Len(t, path, 4)
	assert.Equal(t, uint32(4), path[3].ExpressID)
}

func TestHierarchyRoundTrip(t *testing.T) {
	h, st := buildTestHierarchy(t)
	st.Freeze()

	w := binenc.NewWriter(0)
	h.EncodeBinary(w, st)

	got, err := DecodeHierarchy(binenc.NewReader(w.Bytes()), st)
	require.NoError(t, err)
	require.NotNil(t, got.Root)
	assert.Equal(t, h.Root.ExpressID, got.Root.ExpressID)
	assert.Equal(t, h.PathString(102), got.PathString(102))
	assert.ElementsMatch(t, h.GetStoreyElements(4), got.GetStoreyElements(4))

	storey, ok := got.GetContainingStorey(100)
	require.True(t, ok, "reverse maps are rebuilt on read")
	assert.Equal(t, uint32(4), storey)

	e, ok := got.StoreyElevation(5)
	require.True(t, ok)
	assert.InDelta(t, 3.2, e, 1e-9)
	gap, ok := got.StoreyHeight(4)
	require.True(t, ok)
	assert.InDelta(t, 3.2, gap, 1e-9)
}

func TestDecodeHierarchyRejectsBadStringIndex(t *testing.T) {
	st := tables.NewStringTable()
	w := binenc.NewWriter(0)
	w.U32(1)          // one node
	w.U32(4)          // express id
	w.I32(0x7FFFFFFF) // type index far outside the arena
	w.I32(-1)         // name
	w.U8(0)           // no elevation
	w.U32Slice(nil)   // children
	w.U32Slice(nil)   // elements
	w.U32(0)          // byStorey
	w.U32(0)          // byBuilding
	w.U32(0)          // bySite
	w.U32(0)          // bySpace

	_, err := DecodeHierarchy(binenc.NewReader(w.Bytes()), st)
	assert.ErrorContains(t, err, "out of range")
}

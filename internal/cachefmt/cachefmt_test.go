package cachefmt

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ifc-lite/modelstore/api"
	"github.com/ifc-lite/modelstore/internal/binenc"
	"github.com/ifc-lite/modelstore/internal/model"
	"github.com/ifc-lite/modelstore/internal/relgraph"
	"github.com/ifc-lite/modelstore/internal/spatial"
)

var testSource = []byte("ISO-10303-21; pretend step payload for hashing;")

func buildTestModel(t *testing.T, withGeometry bool) *model.Model {
	t.Helper()
	l := model.NewLoader()
	l.AddEntity(api.RawEntity{ExpressID: 1, Type: spatial.TypeProject, Name: "Project"})
	l.AddEntity(api.RawEntity{ExpressID: 2, Type: spatial.TypeSite})
	l.AddEntity(api.RawEntity{ExpressID: 3, Type: spatial.TypeBuilding, Name: "HQ"})
	l.AddEntity(api.RawEntity{ExpressID: 4, Type: spatial.TypeStorey, Name: "L1",
		Attributes: []api.AttrValue{{}, {}, {}, {}, {}, {}, {}, {}, {Kind: api.AttrFloat, Float: 2.8}}})
	l.AddEntity(api.RawEntity{ExpressID: 100, Type: "IFCWALL", Name: "Wall", GlobalID: "g-100", HasGeometry: true})

	l.AddProperty(api.RawProperty{EntityID: 100, PsetName: "Pset_WallCommon", Name: "FireRating",
		Value: api.AttrValue{Kind: api.AttrString, Str: "F90"}})
	l.AddQuantity(api.RawQuantity{EntityID: 100, QsetName: "Qto_WallBaseQuantities", Name: "NetArea",
		Kind: api.QuantityArea, Value: 12.5})

	l.AddRelationship(api.RawRelationship{Source: 1, Target: 2, Type: relgraph.RelAggregates, RelID: 900})
	l.AddRelationship(api.RawRelationship{Source: 2, Target: 3, Type: relgraph.RelAggregates, RelID: 901})
	l.AddRelationship(api.RawRelationship{Source: 3, Target: 4, Type: relgraph.RelAggregates, RelID: 902})
	l.AddRelationship(api.RawRelationship{Source: 4, Target: 100, Type: relgraph.RelContainedInSpatialStructure, RelID: 910})

	if withGeometry {
		l.SetGeometry(&api.GeometryPayload{
			Data:          []byte{1, 2, 3, 4, 5, 6, 7, 8},
			Bounds:        []byte{9, 9, 9},
			VertexCount:   3,
			TriangleCount: 1,
		})
	}
	return l.Build()
}

func TestWriteReadRoundTrip(t *testing.T) {
	m := buildTestModel(t, true)
	buf, err := WriteFromSource(m, testSource)
	require.NoError(t, err)

	h, err := ReadHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, FormatVersion, h.Version)
	assert.Equal(t, SchemaCurrent, h.Schema)
	assert.Equal(t, HashSource(testSource), h.SourceHash)
	assert.Equal(t, uint32(5), h.EntityCount)
	assert.Equal(t, uint32(3), h.VertexCount)
	assert.Equal(t, uint32(1), h.TriangleCount)
	assert.True(t, h.HasGeometry())
	assert.True(t, h.HasSpatial())

	got, err := Read(buf, ReadOptions{})
	require.NoError(t, err)

	assert.Equal(t, m.Entities.Count(), got.Entities.Count())
	assert.Equal(t, m.Entities.GetName(100), got.Entities.GetName(100))
	assert.Equal(t, m.Entities.GetByTypeName("IFCWALL"), got.Entities.GetByTypeName("IFCWALL"))

	v, ok := got.Properties.GetPropertyValue(100, "Pset_WallCommon", "FireRating")
	require.True(t, ok)
	s, _ := v.AsString()
	assert.Equal(t, "F90", s)

	area, ok := got.Quantities.GetQuantityValue(100, "Qto_WallBaseQuantities", "NetArea")
	require.True(t, ok)
	assert.Equal(t, 12.5, area)

	assert.Equal(t, m.Graph.EdgeCount(), got.Graph.EdgeCount())
	require.NotNil(t, got.Spatial)
	assert.Equal(t, "Project/IFCSITE#2/HQ/L1", got.Spatial.PathString(100))

	require.NotNil(t, got.Geometry)
	assert.Equal(t, m.Geometry.Data, got.Geometry.Data)
	assert.Equal(t, m.Geometry.Bounds, got.Geometry.Bounds)
}

func TestWriteIsDeterministic(t *testing.T) {
	m := buildTestModel(t, true)
	a, err := WriteFromSource(m, testSource)
	require.NoError(t, err)
	b, err := WriteFromSource(m, testSource)
	require.NoError(t, err)
	assert.Equal(t, a, b, "same model and source produce identical bytes")
}

func TestSkipGeometry(t *testing.T) {
	m := buildTestModel(t, true)
	buf, err := WriteFromSource(m, testSource)
	require.NoError(t, err)

	got, err := Read(buf, ReadOptions{SkipGeometry: true})
	require.NoError(t, err)
	assert.Nil(t, got.Geometry, "payload stays out of memory")

	h, err := ReadHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), h.VertexCount, "header counts still report geometry")
}

func TestWriteWithoutGeometry(t *testing.T) {
	m := buildTestModel(t, false)
	buf, err := WriteFromSource(m, testSource)
	require.NoError(t, err)

	h, err := ReadHeader(buf)
	require.NoError(t, err)
	assert.False(t, h.HasGeometry())
	assert.Zero(t, h.VertexCount)

	got, err := Read(buf, ReadOptions{})
	require.NoError(t, err)
	assert.Nil(t, got.Geometry)
}

func TestValidate(t *testing.T) {
	m := buildTestModel(t, false)
	buf, err := WriteFromSource(m, testSource)
	require.NoError(t, err)

	t.Run("matching source", func(t *testing.T) {
		ok, err := Validate(buf, testSource)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("changed source is stale, not broken", func(t *testing.T) {
		edited := append([]byte(nil), testSource...)
		edited[0] ^= 1
		ok, err := Validate(buf, edited)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("corrupt magic is fatal", func(t *testing.T) {
		bad := append([]byte(nil), buf...)
		bad[0] = 'X'
		_, err := Validate(bad, testSource)
		assert.ErrorIs(t, err, ErrBadMagic)
	})
}

func TestReadRejectsMalformedBuffers(t *testing.T) {
	m := buildTestModel(t, false)
	buf, err := WriteFromSource(m, testSource)
	require.NoError(t, err)

	t.Run("truncated header", func(t *testing.T) {
		_, err := Read(buf[:10], ReadOptions{})
		assert.ErrorIs(t, err, ErrTruncated)
	})

	t.Run("future format version", func(t *testing.T) {
		bad := append([]byte(nil), buf...)
		binary.LittleEndian.PutUint16(bad[4:6], FormatVersion+1)
		_, err := Read(bad, ReadOptions{})
		assert.ErrorIs(t, err, ErrVersion)
	})

	t.Run("unknown schema version", func(t *testing.T) {
		bad := append([]byte(nil), buf...)
		bad[16] = SchemaCurrent + 1
		_, err := Read(bad, ReadOptions{})
		assert.ErrorIs(t, err, ErrSchema)
	})

	t.Run("compressed flag", func(t *testing.T) {
		bad := append([]byte(nil), buf...)
		binary.LittleEndian.PutUint16(bad[6:8], FlagCompressed)
		_, err := Read(bad, ReadOptions{})
		assert.ErrorIs(t, err, ErrCompressed)
	})

	t.Run("truncated section payload", func(t *testing.T) {
		_, err := Read(buf[:len(buf)-1], ReadOptions{})
		assert.ErrorIs(t, err, ErrTruncated)
	})

	t.Run("header entity count mismatch", func(t *testing.T) {
		bad := append([]byte(nil), buf...)
		binary.LittleEndian.PutUint32(bad[17:21], 999)
		_, err := Read(bad, ReadOptions{})
		assert.ErrorContains(t, err, "header says 999")
	})

	t.Run("string index outside arena", func(t *testing.T) {
		// Overwrite the first spatial node's type index with a value no
		// arena could hold; the decoder must reject the buffer, not index
		// into the string table with it.
		h, err := ReadHeader(buf)
		require.NoError(t, err)
		entries, err := ReadSectionTable(buf, h)
		require.NoError(t, err)
		bad := append([]byte(nil), buf...)
		found := false
		for _, e := range entries {
			if e.Type == SectionSpatial {
				// layout: count:u32, then id:u32, typeIdx:i32, ...
				binary.LittleEndian.PutUint32(bad[e.Offset+8:e.Offset+12], 0x7FFFFFFF)
				found = true
			}
		}
		require.True(t, found, "test model carries a spatial section")
		assert.NotPanics(t, func() {
			_, err = Read(bad, ReadOptions{})
		})
		assert.ErrorContains(t, err, "out of range")
	})

	t.Run("oversized slice count in section payload", func(t *testing.T) {
		h, err := ReadHeader(buf)
		require.NoError(t, err)
		entries, err := ReadSectionTable(buf, h)
		require.NoError(t, err)
		bad := append([]byte(nil), buf...)
		for _, e := range entries {
			if e.Type == SectionProperties {
				// entityIDs count prefix claims far more rows than the
				// section holds
				binary.LittleEndian.PutUint32(bad[e.Offset:e.Offset+4], 50_000_000)
			}
		}
		_, err = Read(bad, ReadOptions{})
		assert.ErrorIs(t, err, binenc.ErrShortBuffer)
	})
}

// keepSections rebuilds a cache buffer retaining only the named section
// types, preserving each payload byte-for-byte.
func keepSections(t *testing.T, buf []byte, keep ...SectionType) []byte {
	t.Helper()
	h, err := ReadHeader(buf)
	require.NoError(t, err)
	entries, err := ReadSectionTable(buf, h)
	require.NoError(t, err)

	wanted := make(map[SectionType]bool, len(keep))
	for _, k := range keep {
		wanted[k] = true
	}
	var kept []SectionEntry
	for _, e := range entries {
		if wanted[e.Type] {
			kept = append(kept, e)
		}
	}
	h.Flags = 0
	h.SectionCount = uint16(len(kept))
	out := make([]byte, HeaderSize+len(kept)*SectionEntrySize)
	h.encode(out[:HeaderSize])
	offset := uint32(len(out))
	for i, e := range kept {
		off := HeaderSize + i*SectionEntrySize
		binary.LittleEndian.PutUint16(out[off:off+2], uint16(e.Type))
		binary.LittleEndian.PutUint16(out[off+2:off+4], 0)
		binary.LittleEndian.PutUint32(out[off+4:off+8], offset)
		binary.LittleEndian.PutUint32(out[off+8:off+12], e.Size)
		binary.LittleEndian.PutUint32(out[off+12:off+16], e.Size)
		out = append(out, buf[e.Offset:e.Offset+e.Size]...)
		offset += e.Size
	}
	return out
}

func TestReadMinimalCache(t *testing.T) {
	// Strings and Entities are the only required sections; a cache holding
	// just those must hydrate with every optional table left nil.
	m := buildTestModel(t, false)
	buf, err := WriteFromSource(m, testSource)
	require.NoError(t, err)
	minimal := keepSections(t, buf, SectionStrings, SectionEntities)

	got, err := Read(minimal, ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, m.Entities.Count(), got.Entities.Count())
	assert.Nil(t, got.Properties)
	assert.Nil(t, got.Quantities)
	assert.Nil(t, got.Graph)
	assert.Nil(t, got.Spatial)
	assert.Nil(t, got.Geometry)
}

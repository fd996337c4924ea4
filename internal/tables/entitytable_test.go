package tables

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ifc-lite/modelstore/api"
	"github.com/ifc-lite/modelstore/internal/binenc"
)

func buildEntityTable(t *testing.T) (*EntityTable, *StringTable) {
	t.Helper()
	st := NewStringTable()
	b := NewEntityBuilder(st)
	b.Add(api.RawEntity{ExpressID: 10, Type: "IFCWALL", GlobalID: "guid-10", Name: "North Wall", HasGeometry: true})
	b.Add(api.RawEntity{ExpressID: 20, Type: "IFCWALL", Name: "South Wall"})
	b.Add(api.RawEntity{ExpressID: 30, Type: "IFCSLAB", HasGeometry: true})
	b.Add(api.RawEntity{ExpressID: 40, Type: "IFCWALLTYPE", Name: "WT-1", IsType: true})
	return b.Build(), st
}

func TestEntityTableTyping(t *testing.T) {
	et, _ := buildEntityTable(t)

	assert.Equal(t, 4, et.Count())
	assert.Equal(t, 3, et.TypeCount())
	assert.Equal(t, []uint32{10, 20}, et.GetByTypeName("IFCWALL"))
	assert.Equal(t, []uint32{30}, et.GetByTypeName("IFCSLAB"))
	assert.Empty(t, et.GetByTypeName("IFCDOOR"), "unknown type yields empty, not error")

	// Same type name always resolves to the same dense code.
	row10, ok := et.Row(10)
	require.True(t, ok)
	row20, ok := et.Row(20)
	require.True(t, ok)
	assert.Equal(t, et.TypeCode(row10), et.TypeCode(row20))
	assert.Equal(t, "IFCWALL", et.TypeName(et.TypeCode(row10)))
}

func TestEntityTableColumns(t *testing.T) {
	et, _ := buildEntityTable(t)

	row, ok := et.Row(10)
	require.True(t, ok)
	assert.Equal(t, uint32(10), et.ExpressID(row))
	assert.Equal(t, "guid-10", et.GlobalID(row))
	assert.Equal(t, "North Wall", et.Name(row))
	assert.Equal(t, "", et.Description(row), "absent optional reads as empty")
	assert.True(t, et.HasGeometry(row))
	assert.False(t, et.IsType(row))

	row, ok = et.Row(40)
	require.True(t, ok)
	assert.True(t, et.IsType(row))
	assert.False(t, et.HasGeometry(row))

	_, ok = et.Row(999)
	assert.False(t, ok)
	assert.Equal(t, "", et.GetName(999))
	assert.Equal(t, "South Wall", et.GetName(20))
}

func TestEntityTableRoundTrip(t *testing.T) {
	et, st := buildEntityTable(t)

	w := binenc.NewWriter(0)
	require.NoError(t, et.EncodeBinary(w))

	got, err := DecodeEntityTable(binenc.NewReader(w.Bytes()), st)
	require.NoError(t, err)
	require.Equal(t, et.Count(), got.Count())

	for _, id := range []uint32{10, 20, 30, 40} {
		wantRow, ok := et.Row(id)
		require.True(t, ok)
		gotRow, ok := got.Row(id)
		require.True(t, ok, "id->row index is rebuilt on read")
		assert.Equal(t, wantRow, gotRow)
		assert.Equal(t, et.Name(wantRow), got.Name(gotRow))
		assert.Equal(t, et.TypeName(et.TypeCode(wantRow)), got.TypeName(got.TypeCode(gotRow)))
		assert.Equal(t, et.HasGeometry(wantRow), got.HasGeometry(gotRow))
		assert.Equal(t, et.IsType(wantRow), got.IsType(gotRow))
	}
	assert.Equal(t, et.GetByTypeName("IFCWALL"), got.GetByTypeName("IFCWALL"))
}

func TestDecodeEntityTableRejectsLengthMismatch(t *testing.T) {
	st := NewStringTable()
	w := binenc.NewWriter(0)
	w.U32Slice([]uint32{1, 2})  // expressIDs: 2 rows
	w.U16Slice([]uint16{0})     // typeCodes: 1 row
	w.I32Slice([]int32{-1, -1}) // globalIDs
	w.I32Slice([]int32{-1, -1}) // names
	w.I32Slice([]int32{-1, -1}) // descriptions
	w.I32Slice([]int32{-1, -1}) // objectTypes
	w.Blob(nil)                 // hasGeometry
	w.Blob(nil)                 // isType
	w.U32(0)                    // type dictionary
	w.U32(0)                    // byType map

	_, err := DecodeEntityTable(binenc.NewReader(w.Bytes()), st)
	assert.ErrorContains(t, err, "length mismatch")
}

func TestDecodeEntityTableRejectsBadStringIndex(t *testing.T) {
	st := NewStringTable()
	st.Intern("IFCWALL")
	w := binenc.NewWriter(0)
	w.U32Slice([]uint32{1})
	w.U16Slice([]uint16{0})
	w.I32Slice([]int32{0x7FFFFFFF}) // globalIDs: index far outside the arena
	w.I32Slice([]int32{-1})         // names
	w.I32Slice([]int32{-1})         // descriptions
	w.I32Slice([]int32{-1})         // objectTypes
	w.Blob(nil)                     // hasGeometry
	w.Blob(nil)                     // isType
	w.U32(1)                        // type dictionary
	w.I32(0)
	w.U32(0) // byType map

	_, err := DecodeEntityTable(binenc.NewReader(w.Bytes()), st)
	assert.ErrorContains(t, err, "out of range")
}

func TestDecodeEntityTableRejectsBadTypeCode(t *testing.T) {
	st := NewStringTable()
	st.Intern("IFCWALL")
	w := binenc.NewWriter(0)
	w.U32Slice([]uint32{1})
	w.U16Slice([]uint16{7}) // typeCodes: dictionary only holds code 0
	w.I32Slice([]int32{-1})
	w.I32Slice([]int32{-1})
	w.I32Slice([]int32{-1})
	w.I32Slice([]int32{-1})
	w.Blob(nil)
	w.Blob(nil)
	w.U32(1)
	w.I32(0)
	w.U32(0)

	_, err := DecodeEntityTable(binenc.NewReader(w.Bytes()), st)
	assert.ErrorContains(t, err, "outside dictionary")
}

package tables

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ifc-lite/modelstore/api"
	"github.com/ifc-lite/modelstore/internal/binenc"
)

func buildQuantityTable(t *testing.T) *QuantityTable {
	t.Helper()
	b := NewQuantityBuilder(NewStringTable())
	b.Add(api.RawQuantity{EntityID: 10, QsetName: "Qto_WallBaseQuantities", QsetGlobalID: "qg-1", Name: "NetArea", Kind: api.QuantityArea, Value: 12.5})
	b.Add(api.RawQuantity{EntityID: 10, QsetName: "Qto_WallBaseQuantities", Name: "NetVolume", Kind: api.QuantityVolume, Value: 3.75})
	b.Add(api.RawQuantity{EntityID: 20, QsetName: "Qto_WallBaseQuantities", Name: "NetArea", Kind: api.QuantityArea, Value: 8.0})
	return b.Build()
}

func TestQuantityTableGetForEntity(t *testing.T) {
	qt := buildQuantityTable(t)

	sets := qt.GetForEntity(10)
	require.Len(t, sets, 1)
	assert.Equal(t, "Qto_WallBaseQuantities", sets[0].Name)
	assert.Equal(t, "qg-1", sets[0].GlobalID)
	require.Len(t, sets[0].Quantities, 2)
	assert.Equal(t, api.QuantityArea, sets[0].Quantities[0].Kind)
	assert.Equal(t, 12.5, sets[0].Quantities[0].Value)

	assert.Nil(t, qt.GetForEntity(999))
}

func TestQuantityTableLookupAndFilter(t *testing.T) {
	qt := buildQuantityTable(t)

	v, ok := qt.GetQuantityValue(20, "Qto_WallBaseQuantities", "NetArea")
	require.True(t, ok)
	assert.Equal(t, 8.0, v)

	_, ok = qt.GetQuantityValue(20, "Qto_WallBaseQuantities", "NetVolume")
	assert.False(t, ok)

	rows := qt.FindByQuantity("NetArea", OpGt, 10.0)
	require.Len(t, rows, 1)
	assert.Equal(t, uint32(10), qt.EntityID(rows[0]))

	assert.Len(t, qt.FindByQuantity("NetArea", OpLe, 12.5), 2)
	assert.Empty(t, qt.FindByQuantity("GrossArea", OpGt, 0.0), "unknown name yields empty")
}

func TestQuantityTableRoundTrip(t *testing.T) {
	qt := buildQuantityTable(t)

	w := binenc.NewWriter(0)
	require.NoError(t, qt.EncodeBinary(w))

	got, err := DecodeQuantityTable(binenc.NewReader(w.Bytes()), qt.strings)
	require.NoError(t, err)
	require.Equal(t, qt.Count(), got.Count())
	for row := uint32(0); row < uint32(qt.Count()); row++ {
		assert.Equal(t, qt.EntityID(row), got.EntityID(row))
		assert.Equal(t, qt.QsetName(row), got.QsetName(row))
		assert.Equal(t, qt.QuantityName(row), got.QuantityName(row))
		assert.Equal(t, qt.Kind(row), got.Kind(row))
		assert.Equal(t, qt.Value(row), got.Value(row))
	}
	assert.Equal(t, qt.GetForEntity(10), got.GetForEntity(10))
}

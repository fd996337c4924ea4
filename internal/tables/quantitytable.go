package tables

import (
	"fmt"

	"github.com/ifc-lite/modelstore/api"
	"github.com/ifc-lite/modelstore/internal/binenc"
)

// QuantityBuilder accumulates one row per (entity, qset, quantity)
// triple. Quantity values are always numeric; the kind byte classifies
// the measure (length, area, volume, count, weight, time).
type QuantityBuilder struct {
	strings *StringTable

	entityIDs     []uint32
	qsetNames     []int32
	qsetGlobalIDs []int32
	quantityNames []int32
	kinds         []uint8
	values        []float64
	unitIDs       []int32

	byEntity map[uint32][]uint32
	bySet    map[int32][]uint32
	byName   map[int32][]uint32
}

// NewQuantityBuilder returns a builder interning into the shared arena.
func NewQuantityBuilder(strings *StringTable) *QuantityBuilder {
	return &QuantityBuilder{
		strings:  strings,
		byEntity: make(map[uint32][]uint32),
		bySet:    make(map[int32][]uint32),
		byName:   make(map[int32][]uint32),
	}
}

// Add appends one quantity row and updates the three inverted indices.
func (b *QuantityBuilder) Add(q api.RawQuantity) {
	row := uint32(len(b.entityIDs))
	qsetIdx := b.strings.Intern(q.QsetName)
	nameIdx := b.strings.Intern(q.Name)

	b.entityIDs = append(b.entityIDs, q.EntityID)
	b.qsetNames = append(b.qsetNames, qsetIdx)
	b.qsetGlobalIDs = append(b.qsetGlobalIDs, b.strings.internOpt(q.QsetGlobalID))
	b.quantityNames = append(b.quantityNames, nameIdx)
	b.kinds = append(b.kinds, uint8(q.Kind))
	b.values = append(b.values, q.Value)
	b.unitIDs = append(b.unitIDs, q.UnitID)

	b.byEntity[q.EntityID] = append(b.byEntity[q.EntityID], row)
	b.bySet[qsetIdx] = append(b.bySet[qsetIdx], row)
	b.byName[nameIdx] = append(b.byName[nameIdx], row)
}

// Build freezes the rows into an immutable table.
func (b *QuantityBuilder) Build() *QuantityTable {
	return &QuantityTable{
		strings:       b.strings,
		entityIDs:     b.entityIDs,
		qsetNames:     b.qsetNames,
		qsetGlobalIDs: b.qsetGlobalIDs,
		quantityNames: b.quantityNames,
		kinds:         b.kinds,
		values:        b.values,
		unitIDs:       b.unitIDs,
		byEntity:      b.byEntity,
		bySet:         b.bySet,
		byName:        b.byName,
	}
}

// Quantity is one decoded quantity row.
type Quantity struct {
	Name   string
	Kind   api.QuantityKind
	Value  float64
	UnitID int32
}

// QuantitySet groups an entity's quantities under one qset name.
type QuantitySet struct {
	Name       string
	GlobalID   string
	Quantities []Quantity
}

// QuantityTable is the frozen columnar quantity store.
type QuantityTable struct {
	strings *StringTable

	entityIDs     []uint32
	qsetNames     []int32
	qsetGlobalIDs []int32
	quantityNames []int32
	kinds         []uint8
	values        []float64
	unitIDs       []int32

	byEntity map[uint32][]uint32
	bySet    map[int32][]uint32
	byName   map[int32][]uint32
}

// Count returns the number of quantity rows.
func (t *QuantityTable) Count() int { return len(t.entityIDs) }

func (t *QuantityTable) EntityID(row uint32) uint32 { return t.entityIDs[row] }
func (t *QuantityTable) QsetName(row uint32) string { return t.strings.Get(t.qsetNames[row]) }
func (t *QuantityTable) QuantityName(row uint32) string {
	return t.strings.Get(t.quantityNames[row])
}
func (t *QuantityTable) Kind(row uint32) api.QuantityKind { return api.QuantityKind(t.kinds[row]) }
func (t *QuantityTable) Value(row uint32) float64         { return t.values[row] }
func (t *QuantityTable) UnitID(row uint32) int32          { return t.unitIDs[row] }

// RowsForEntity returns the row indices owned by an entity.
func (t *QuantityTable) RowsForEntity(id uint32) []uint32 { return t.byEntity[id] }

// GetForEntity groups all of an entity's rows by qset name, preserving
// first-seen qset order.
func (t *QuantityTable) GetForEntity(id uint32) []QuantitySet {
	rows := t.byEntity[id]
	if len(rows) == 0 {
		return nil
	}
	var sets []QuantitySet
	setAt := make(map[int32]int)
	for _, row := range rows {
		key := t.qsetNames[row]
		i, ok := setAt[key]
		if !ok {
			i = len(sets)
			setAt[key] = i
			sets = append(sets, QuantitySet{
				Name:     t.strings.Get(key),
				GlobalID: t.strings.Get(t.qsetGlobalIDs[row]),
			})
		}
		sets[i].Quantities = append(sets[i].Quantities, Quantity{
			Name:   t.strings.Get(t.quantityNames[row]),
			Kind:   api.QuantityKind(t.kinds[row]),
			Value:  t.values[row],
			UnitID: t.unitIDs[row],
		})
	}
	return sets
}

// GetQuantityValue performs an exact (entity, qset, quantity) lookup.
func (t *QuantityTable) GetQuantityValue(id uint32, qset, name string) (float64, bool) {
	qsetIdx := t.strings.IndexOf(qset)
	nameIdx := t.strings.IndexOf(name)
	if qsetIdx < 0 || nameIdx < 0 {
		return 0, false
	}
	for _, row := range t.byEntity[id] {
		if t.qsetNames[row] == qsetIdx && t.quantityNames[row] == nameIdx {
			return t.values[row], true
		}
	}
	return 0, false
}

// FindByQuantity filters rows of the named quantity by op against v.
// Unknown names yield an empty result.
func (t *QuantityTable) FindByQuantity(name string, op CompareOp, v float64) []uint32 {
	nameIdx := t.strings.IndexOf(name)
	if nameIdx < 0 {
		return nil
	}
	var out []uint32
	for _, row := range t.byName[nameIdx] {
		if matches(realVal(t.values[row]), op, v) {
			out = append(out, row)
		}
	}
	return out
}

// EncodeBinary writes the Quantities section payload.
func (t *QuantityTable) EncodeBinary(w *binenc.Writer) error {
	w.U32Slice(t.entityIDs)
	w.I32Slice(t.qsetNames)
	w.I32Slice(t.qsetGlobalIDs)
	w.I32Slice(t.quantityNames)
	w.U8Slice(t.kinds)
	w.F64Slice(t.values)
	w.I32Slice(t.unitIDs)
	w.IndexMapU32(t.byEntity)
	w.IndexMapI32(t.bySet)
	w.IndexMapI32(t.byName)
	return nil
}

// DecodeQuantityTable reads a Quantities section payload.
func DecodeQuantityTable(r *binenc.Reader, strings *StringTable) (*QuantityTable, error) {
	t := &QuantityTable{strings: strings}
	t.entityIDs = r.U32Slice()
	t.qsetNames = r.I32Slice()
	t.qsetGlobalIDs = r.I32Slice()
	t.quantityNames = r.I32Slice()
	t.kinds = r.U8Slice()
	t.values = r.F64Slice()
	t.unitIDs = r.I32Slice()
	t.byEntity = r.IndexMapU32()
	t.bySet = r.IndexMapI32()
	t.byName = r.IndexMapI32()
	if err := r.Err(); err != nil {
		return nil, err
	}

	n := len(t.entityIDs)
	if len(t.qsetNames) != n || len(t.qsetGlobalIDs) != n || len(t.quantityNames) != n ||
		len(t.kinds) != n || len(t.values) != n || len(t.unitIDs) != n {
		return nil, fmt.Errorf("quantity table: parallel array length mismatch (count %d)", n)
	}
	if err := strings.CheckColumn("quantity table: qsetNames", t.qsetNames); err != nil {
		return nil, err
	}
	if err := strings.CheckColumn("quantity table: qsetGlobalIds", t.qsetGlobalIDs); err != nil {
		return nil, err
	}
	if err := strings.CheckColumn("quantity table: quantityNames", t.quantityNames); err != nil {
		return nil, err
	}
	if t.byEntity == nil {
		t.byEntity = make(map[uint32][]uint32)
	}
	if t.bySet == nil {
		t.bySet = make(map[int32][]uint32)
	}
	if t.byName == nil {
		t.byName = make(map[int32][]uint32)
	}
	return t, nil
}

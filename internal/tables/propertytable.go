package tables

import (
	"fmt"

	"github.com/RoaringBitmap/roaring"
	"github.com/ifc-lite/modelstore/api"
	"github.com/ifc-lite/modelstore/internal/binenc"
)

// PropertyBuilder accumulates one row per (entity, pset, property)
// triple. Single-goroutine use only.
type PropertyBuilder struct {
	strings *StringTable

	entityIDs     []uint32
	psetNames     []int32
	psetGlobalIDs []int32
	propNames     []int32
	valueTypes    []uint8
	valueStrings  []int32 // string arena index, -1 for non-string rows
	valueReals    []float64
	valueInts     []int64
	valueBools    *roaring.Bitmap // rows whose bool value is true
	unitIDs       []int32

	byEntity map[uint32][]uint32
	bySet    map[int32][]uint32
	byName   map[int32][]uint32
}

// NewPropertyBuilder returns a builder interning into the shared arena.
func NewPropertyBuilder(strings *StringTable) *PropertyBuilder {
	return &PropertyBuilder{
		strings:    strings,
		valueBools: roaring.New(),
		byEntity:   make(map[uint32][]uint32),
		bySet:      make(map[int32][]uint32),
		byName:     make(map[int32][]uint32),
	}
}

// Add appends one property row and updates the three inverted indices.
// Rows whose value is null or an entity reference carry no scalar value
// and are dropped; Add reports whether the row was kept.
func (b *PropertyBuilder) Add(p api.RawProperty) bool {
	row := uint32(len(b.entityIDs))

	var (
		vt  ValueType
		str int32 = -1
	)
	var real float64
	var num int64
	switch p.Value.Kind {
	case api.AttrString:
		vt = ValueString
		str = b.strings.Intern(p.Value.Str)
	case api.AttrFloat:
		vt = ValueReal
		real = p.Value.Float
	case api.AttrInt:
		vt = ValueInt
		num = p.Value.Int
	case api.AttrBool:
		vt = ValueBool
		if p.Value.Bool {
			b.valueBools.Add(row)
		}
	default:
		return false
	}

	psetIdx := b.strings.Intern(p.PsetName)
	nameIdx := b.strings.Intern(p.Name)

	b.entityIDs = append(b.entityIDs, p.EntityID)
	b.psetNames = append(b.psetNames, psetIdx)
	b.psetGlobalIDs = append(b.psetGlobalIDs, b.strings.internOpt(p.PsetGlobalID))
	b.propNames = append(b.propNames, nameIdx)
	b.valueTypes = append(b.valueTypes, uint8(vt))
	b.valueStrings = append(b.valueStrings, str)
	b.valueReals = append(b.valueReals, real)
	b.valueInts = append(b.valueInts, num)
	b.unitIDs = append(b.unitIDs, p.UnitID)

	b.byEntity[p.EntityID] = append(b.byEntity[p.EntityID], row)
	b.bySet[psetIdx] = append(b.bySet[psetIdx], row)
	b.byName[nameIdx] = append(b.byName[nameIdx], row)
	return true
}

// Build freezes the rows into an immutable table.
func (b *PropertyBuilder) Build() *PropertyTable {
	return &PropertyTable{
		strings:       b.strings,
		entityIDs:     b.entityIDs,
		psetNames:     b.psetNames,
		psetGlobalIDs: b.psetGlobalIDs,
		propNames:     b.propNames,
		valueTypes:    b.valueTypes,
		valueStrings:  b.valueStrings,
		valueReals:    b.valueReals,
		valueInts:     b.valueInts,
		valueBools:    b.valueBools,
		unitIDs:       b.unitIDs,
		byEntity:      b.byEntity,
		bySet:         b.bySet,
		byName:        b.byName,
	}
}

// Property is one decoded property row.
type Property struct {
	Name   string
	Value  Value
	UnitID int32
}

// PropertySet groups an entity's properties under one pset name.
type PropertySet struct {
	Name       string
	GlobalID   string
	Properties []Property
}

// PropertyTable is the frozen columnar property store with inverted
// indices by entity id, pset name, and property name.
type PropertyTable struct {
	strings *StringTable

	entityIDs     []uint32
	psetNames     []int32
	psetGlobalIDs []int32
	propNames     []int32
	valueTypes    []uint8
	valueStrings  []int32
	valueReals    []float64
	valueInts     []int64
	valueBools    *roaring.Bitmap
	unitIDs       []int32

	byEntity map[uint32][]uint32
	bySet    map[int32][]uint32
	byName   map[int32][]uint32
}

// Count returns the number of property rows.
func (t *PropertyTable) Count() int { return len(t.entityIDs) }

// EntityID returns the owning entity of a row.
func (t *PropertyTable) EntityID(row uint32) uint32 { return t.entityIDs[row] }

// PsetName returns the row's property set name.
func (t *PropertyTable) PsetName(row uint32) string { return t.strings.Get(t.psetNames[row]) }

// PropName returns the row's property name.
func (t *PropertyTable) PropName(row uint32) string { return t.strings.Get(t.propNames[row]) }

// UnitID returns the row's unit id.
func (t *PropertyTable) UnitID(row uint32) int32 { return t.unitIDs[row] }

// Value decodes the row's tagged value through the column its type tag
// selects.
func (t *PropertyTable) Value(row uint32) Value {
	switch ValueType(t.valueTypes[row]) {
	case ValueString:
		return stringVal(t.strings.Get(t.valueStrings[row]))
	case ValueReal:
		return realVal(t.valueReals[row])
	case ValueInt:
		return intVal(t.valueInts[row])
	case ValueBool:
		return boolVal(t.valueBools.Contains(row))
	}
	panic(fmt.Sprintf("tables: corrupt value type tag %d at row %d", t.valueTypes[row], row))
}

// RowsForEntity returns the row indices owned by an entity, in insertion
// order. Shared backing data; callers must not mutate.
func (t *PropertyTable) RowsForEntity(id uint32) []uint32 { return t.byEntity[id] }

// GetForEntity groups all of an entity's rows by pset name, preserving
// first-seen pset order.
func (t *PropertyTable) GetForEntity(id uint32) []PropertySet {
	rows := t.byEntity[id]
	if len(rows) == 0 {
		return nil
	}
	var sets []PropertySet
	setAt := make(map[int32]int)
	for _, row := range rows {
		key := t.psetNames[row]
		i, ok := setAt[key]
		if !ok {
			i = len(sets)
			setAt[key] = i
			sets = append(sets, PropertySet{
				Name:     t.strings.Get(key),
				GlobalID: t.strings.Get(t.psetGlobalIDs[row]),
			})
		}
		sets[i].Properties = append(sets[i].Properties, Property{
			Name:   t.strings.Get(t.propNames[row]),
			Value:  t.Value(row),
			UnitID: t.unitIDs[row],
		})
	}
	return sets
}

// GetPropertyValue performs an exact (entity, pset, property) lookup.
func (t *PropertyTable) GetPropertyValue(id uint32, pset, prop string) (Value, bool) {
	psetIdx := t.strings.IndexOf(pset)
	propIdx := t.strings.IndexOf(prop)
	if psetIdx < 0 || propIdx < 0 {
		return Value{}, false
	}
	for _, row := range t.byEntity[id] {
		if t.psetNames[row] == psetIdx && t.propNames[row] == propIdx {
			return t.Value(row), true
		}
	}
	return Value{}, false
}

// FindByProperty resolves candidate rows through the property-name index
// and filters them with op against value. An unknown property name
// yields an empty result, not an error. Returns matching row indices in
// insertion order.
func (t *PropertyTable) FindByProperty(prop string, op CompareOp, value any) []uint32 {
	nameIdx := t.strings.IndexOf(prop)
	if nameIdx < 0 {
		return nil
	}
	var out []uint32
	for _, row := range t.byName[nameIdx] {
		if matches(t.Value(row), op, value) {
			out = append(out, row)
		}
	}
	return out
}

// EncodeBinary writes the Properties section payload: the parallel typed
// arrays followed by the three inverted index maps.
func (t *PropertyTable) EncodeBinary(w *binenc.Writer) error {
	w.U32Slice(t.entityIDs)
	w.I32Slice(t.psetNames)
	w.I32Slice(t.psetGlobalIDs)
	w.I32Slice(t.propNames)
	w.U8Slice(t.valueTypes)
	w.I32Slice(t.valueStrings)
	w.F64Slice(t.valueReals)
	w.I64Slice(t.valueInts)
	if err := writeBitmap(w, t.valueBools); err != nil {
		return err
	}
	w.I32Slice(t.unitIDs)
	w.IndexMapU32(t.byEntity)
	w.IndexMapI32(t.bySet)
	w.IndexMapI32(t.byName)
	return nil
}

// DecodePropertyTable reads a Properties section payload, restoring the
// inverted indices from their serialized maps.
func DecodePropertyTable(r *binenc.Reader, strings *StringTable) (*PropertyTable, error) {
	t := &PropertyTable{strings: strings}
	t.entityIDs = r.U32Slice()
	t.psetNames = r.I32Slice()
	t.psetGlobalIDs = r.I32Slice()
	t.propNames = r.I32Slice()
	t.valueTypes = r.U8Slice()
	t.valueStrings = r.I32Slice()
	t.valueReals = r.F64Slice()
	t.valueInts = r.I64Slice()
	var err error
	if t.valueBools, err = readBitmap(r); err != nil {
		return nil, err
	}
	t.unitIDs = r.I32Slice()
	t.byEntity = r.IndexMapU32()
	t.bySet = r.IndexMapI32()
	t.byName = r.IndexMapI32()
	if err := r.Err(); err != nil {
		return nil, err
	}

	n := len(t.entityIDs)
	if len(t.psetNames) != n || len(t.psetGlobalIDs) != n || len(t.propNames) != n ||
		len(t.valueTypes) != n || len(t.valueStrings) != n || len(t.valueReals) != n ||
		len(t.valueInts) != n || len(t.unitIDs) != n {
		return nil, fmt.Errorf("property table: parallel array length mismatch (count %d)", n)
	}
	for row, vt := range t.valueTypes {
		if vt > uint8(ValueBool) {
			return nil, fmt.Errorf("property table: row %d has unknown value type tag %d", row, vt)
		}
	}
	if err := strings.CheckColumn("property table: psetNames", t.psetNames); err != nil {
		return nil, err
	}
	if err := strings.CheckColumn("property table: psetGlobalIds", t.psetGlobalIDs); err != nil {
		return nil, err
	}
	if err := strings.CheckColumn("property table: propNames", t.propNames); err != nil {
		return nil, err
	}
	if err := strings.CheckColumn("property table: valueStrings", t.valueStrings); err != nil {
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

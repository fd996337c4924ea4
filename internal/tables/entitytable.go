package tables

import (
	"bytes"
	"fmt"

	"github.com/RoaringBitmap/roaring"
	"github.com/ifc-lite/modelstore/api"
	"github.com/ifc-lite/modelstore/internal/binenc"
)

// EntityBuilder accumulates entity rows. Single-goroutine use only.
type EntityBuilder struct {
	strings *StringTable

	expressIDs   []uint32
	typeCodes    []uint16
	globalIDs    []int32
	names        []int32
	descriptions []int32
	objectTypes  []int32
	hasGeometry  *roaring.Bitmap // row indices
	isType       *roaring.Bitmap // row indices

	typeNames      []string // code -> canonical type name
	typeCodeByName map[string]uint16

	byType  map[uint16][]uint32 // code -> express ids, insertion order
	rowByID map[uint32]int32    // express id -> row
}

// NewEntityBuilder returns a builder interning into the shared arena.
func NewEntityBuilder(strings *StringTable) *EntityBuilder {
	return &EntityBuilder{
		strings:        strings,
		hasGeometry:    roaring.New(),
		isType:         roaring.New(),
		typeCodeByName: make(map[string]uint16),
		byType:         make(map[uint16][]uint32),
		rowByID:        make(map[uint32]int32),
	}
}

// Add appends one entity row and updates the type side index.
// Row order is insertion order, not express-id order.
func (b *EntityBuilder) Add(e api.RawEntity) {
	row := uint32(len(b.expressIDs))
	code := b.typeCode(e.Type)

	b.expressIDs = append(b.expressIDs, e.ExpressID)
	b.typeCodes = append(b.typeCodes, code)
	b.globalIDs = append(b.globalIDs, b.strings.internOpt(e.GlobalID))
	b.names = append(b.names, b.strings.internOpt(e.Name))
	b.descriptions = append(b.descriptions, b.strings.internOpt(e.Description))
	b.objectTypes = append(b.objectTypes, b.strings.internOpt(e.ObjectType))
	if e.HasGeometry {
		b.hasGeometry.Add(row)
	}
	if e.IsType {
		b.isType.Add(row)
	}

	b.byType[code] = append(b.byType[code], e.ExpressID)
	b.rowByID[e.ExpressID] = int32(row)
}

func (b *EntityBuilder) typeCode(name string) uint16 {
	if c, ok := b.typeCodeByName[name]; ok {
		return c
	}
	c := uint16(len(b.typeNames))
	b.typeNames = append(b.typeNames, name)
	b.typeCodeByName[name] = c
	b.strings.Intern(name)
	return c
}

// Build freezes the rows into an immutable table. The builder must not
// be used afterwards.
func (b *EntityBuilder) Build() *EntityTable {
	return &EntityTable{
		strings:        b.strings,
		expressIDs:     b.expressIDs,
		typeCodes:      b.typeCodes,
		globalIDs:      b.globalIDs,
		names:          b.names,
		descriptions:   b.descriptions,
		objectTypes:    b.objectTypes,
		hasGeometry:    b.hasGeometry,
		isType:         b.isType,
		typeNames:      b.typeNames,
		typeCodeByName: b.typeCodeByName,
		byType:         b.byType,
		rowByID:        b.rowByID,
	}
}

// EntityTable is the frozen columnar entity store: one slot per entity
// across parallel arrays, all of equal length.
type EntityTable struct {
	strings *StringTable

	expressIDs   []uint32
	typeCodes    []uint16
	globalIDs    []int32
	names        []int32
	descriptions []int32
	objectTypes  []int32
	hasGeometry  *roaring.Bitmap
	isType       *roaring.Bitmap

	typeNames      []string
	typeCodeByName map[string]uint16

	byType  map[uint16][]uint32
	rowByID map[uint32]int32
}

// Count returns the number of entity rows.
func (t *EntityTable) Count() int { return len(t.expressIDs) }

// Row resolves an express id to its row index.
func (t *EntityTable) Row(id uint32) (int, bool) {
	r, ok := t.rowByID[id]
	return int(r), ok
}

func (t *EntityTable) ExpressID(row int) uint32 { return t.expressIDs[row] }
func (t *EntityTable) TypeCode(row int) uint16  { return t.typeCodes[row] }
func (t *EntityTable) GlobalID(row int) string  { return t.strings.Get(t.globalIDs[row]) }
func (t *EntityTable) Name(row int) string      { return t.strings.Get(t.names[row]) }
func (t *EntityTable) Description(row int) string {
	return t.strings.Get(t.descriptions[row])
}
func (t *EntityTable) ObjectType(row int) string { return t.strings.Get(t.objectTypes[row]) }
func (t *EntityTable) HasGeometry(row int) bool  { return t.hasGeometry.Contains(uint32(row)) }
func (t *EntityTable) IsType(row int) bool       { return t.isType.Contains(uint32(row)) }

// TypeName returns the canonical name for a type code.
func (t *EntityTable) TypeName(code uint16) string { return t.typeNames[code] }

// TypeCodeOf looks up the code assigned to a type name.
func (t *EntityTable) TypeCodeOf(name string) (uint16, bool) {
	c, ok := t.typeCodeByName[name]
	return c, ok
}

// TypeCount returns the number of distinct entity types.
func (t *EntityTable) TypeCount() int { return len(t.typeNames) }

// GetByType returns the express ids of the given type, in insertion order.
// The returned slice is shared backing data; callers must not mutate it.
func (t *EntityTable) GetByType(code uint16) []uint32 { return t.byType[code] }

// GetByTypeName is GetByType keyed by canonical name. Unknown names
// yield an empty result.
func (t *EntityTable) GetByTypeName(name string) []uint32 {
	c, ok := t.typeCodeByName[name]
	if !ok {
		return nil
	}
	return t.byType[c]
}

// GetName returns the entity's name, or "" when the id is unknown.
func (t *EntityTable) GetName(id uint32) string {
	row, ok := t.rowByID[id]
	if !ok {
		return ""
	}
	return t.strings.Get(t.names[row])
}

// EncodeBinary writes the Entities section payload: parallel arrays,
// flag bitmaps, the type dictionary, and the byType index map.
func (t *EntityTable) EncodeBinary(w *binenc.Writer) error {
	w.U32Slice(t.expressIDs)
	w.U16Slice(t.typeCodes)
	w.I32Slice(t.globalIDs)
	w.I32Slice(t.names)
	w.I32Slice(t.descriptions)
	w.I32Slice(t.objectTypes)
	if err := writeBitmap(w, t.hasGeometry); err != nil {
		return err
	}
	if err := writeBitmap(w, t.isType); err != nil {
		return err
	}

	// Type dictionary: code -> string arena index.
	w.U32(uint32(len(t.typeNames)))
	for _, name := range t.typeNames {
		w.I32(t.strings.IndexOf(name))
	}

	byType := make(map[uint32][]uint32, len(t.byType))
	for code, ids := range t.byType {
		byType[uint32(code)] = ids
	}
	w.IndexMapU32(byType)
	return nil
}

// DecodeEntityTable reads an Entities section payload. The id->row side
// index is rebuilt in the same linear pass that hydrates the arrays; the
// byType index is restored from its serialized map.
func DecodeEntityTable(r *binenc.Reader, strings *StringTable) (*EntityTable, error) {
	t := &EntityTable{strings: strings}
	t.expressIDs = r.U32Slice()
	t.typeCodes = r.U16Slice()
	t.globalIDs = r.I32Slice()
	t.names = r.I32Slice()
	t.descriptions = r.I32Slice()
	t.objectTypes = r.I32Slice()

	var err error
	if t.hasGeometry, err = readBitmap(r); err != nil {
		return nil, err
	}
	if t.isType, err = readBitmap(r); err != nil {
		return nil, err
	}

	typeCount := int(r.U32())
	if err := r.Err(); err != nil {
		return nil, err
	}
	if typeCount*4 > r.Remaining() {
		return nil, fmt.Errorf("entity table: type dictionary count %d exceeds payload", typeCount)
	}
	t.typeNames = make([]string, typeCount)
	t.typeCodeByName = make(map[string]uint16, typeCount)
	for i := 0; i < typeCount; i++ {
		name, err := strings.Lookup(r.I32())
		if err != nil {
			return nil, fmt.Errorf("entity table: type dictionary: %w", err)
		}
		t.typeNames[i] = name
		t.typeCodeByName[name] = uint16(i)
	}

	rawByType := r.IndexMapU32()
	if err := r.Err(); err != nil {
		return nil, err
	}
	t.byType = make(map[uint16][]uint32, len(rawByType))
	for code, ids := range rawByType {
		t.byType[uint16(code)] = ids
	}

	n := len(t.expressIDs)
	if len(t.typeCodes) != n || len(t.globalIDs) != n || len(t.names) != n ||
		len(t.descriptions) != n || len(t.objectTypes) != n {
		return nil, fmt.Errorf("entity table: parallel array length mismatch (count %d)", n)
	}
	for row, code := range t.typeCodes {
		if int(code) >= typeCount {
			return nil, fmt.Errorf("entity table: row %d type code %d outside dictionary of %d", row, code, typeCount)
		}
	}
	if err := strings.CheckColumn("entity table: globalIds", t.globalIDs); err != nil {
		return nil, err
	}
	if err := strings.CheckColumn("entity table: names", t.names); err != nil {
		return nil, err
	}
	if err := strings.CheckColumn("entity table: descriptions", t.descriptions); err != nil {
		return nil, err
	}
	if err := strings.CheckColumn("entity table: objectTypes", t.objectTypes); err != nil {
		return nil, err
	}
	t.rowByID = make(map[uint32]int32, n)
	for row, id := range t.expressIDs {
		t.rowByID[id] = int32(row)
	}
	return t, nil
}

func writeBitmap(w *binenc.Writer, bm *roaring.Bitmap) error {
	p, err := bm.ToBytes()
	if err != nil {
		return fmt.Errorf("serialize bitmap: %w", err)
	}
	w.Blob(p)
	return nil
}

func readBitmap(r *binenc.Reader) (*roaring.Bitmap, error) {
	p := r.Blob()
	if err := r.Err(); err != nil {
		return nil, err
	}
	bm := roaring.New()
	if len(p) > 0 {
		if _, err := bm.ReadFrom(bytes.NewReader(p)); err != nil {
			return nil, fmt.Errorf("deserialize bitmap: %w", err)
		}
	}
	return bm, nil
}

// Package api defines the boundary types of the model store: the raw
// records an upstream parser emits, the opaque payloads produced by the
// geometry pipeline, and the cache storage contract.
//
// The store has no opinion on how raw records were obtained from source
// text; parsing the interchange format is an external collaborator.
package api

// AttrKind discriminates a raw positional attribute value.
type AttrKind uint8

const (
	AttrNull AttrKind = iota
	AttrString
	AttrFloat
	AttrInt
	AttrBool
	AttrRef // reference to another entity by express id
)

// AttrValue is one positional attribute of a raw entity record.
// Exactly the field selected by Kind is meaningful.
type AttrValue struct {
	Kind  AttrKind
	Str   string
	Float float64
	Int   int64
	Bool  bool
	Ref   uint32
}

// FloatValue returns the numeric reading of the attribute.
// Both float and int attributes count as numeric.
func (a AttrValue) FloatValue() (float64, bool) {
	switch a.Kind {
	case AttrFloat:
		return a.Float, true
	case AttrInt:
		return float64(a.Int), true
	default:
		return 0, false
	}
}

// RawEntity is one entity record emitted by the upstream parser.
type RawEntity struct {
	ExpressID   uint32
	Type        string // e.g. "IFCWALL"
	GlobalID    string
	Name        string
	Description string
	ObjectType  string
	HasGeometry bool
	IsType      bool
	// Attributes holds the positional attribute array when the parser can
	// supply it. Optional; only the spatial builder's elevation probing
	// reads it.
	Attributes []AttrValue
}

// RawProperty is one (entity, pset, property) triple.
type RawProperty struct {
	EntityID     uint32
	PsetName     string
	PsetGlobalID string
	Name         string
	Value        AttrValue
	UnitID       int32
}

// QuantityKind classifies a physical quantity.
type QuantityKind uint8

const (
	QuantityLength QuantityKind = iota
	QuantityArea
	QuantityVolume
	QuantityCount
	QuantityWeight
	QuantityTime
)

func (k QuantityKind) String() string {
	switch k {
	case QuantityLength:
		return "length"
	case QuantityArea:
		return "area"
	case QuantityVolume:
		return "volume"
	case QuantityCount:
		return "count"
	case QuantityWeight:
		return "weight"
	case QuantityTime:
		return "time"
	}
	return "unknown"
}

// QuantityKindOf maps a quantity entity type name to its kind.
// Returns false for unrecognized quantity types; the loader drops those.
func QuantityKindOf(typeName string) (QuantityKind, bool) {
	switch typeName {
	case "IFCQUANTITYLENGTH":
		return QuantityLength, true
	case "IFCQUANTITYAREA":
		return QuantityArea, true
	case "IFCQUANTITYVOLUME":
		return QuantityVolume, true
	case "IFCQUANTITYCOUNT":
		return QuantityCount, true
	case "IFCQUANTITYWEIGHT":
		return QuantityWeight, true
	case "IFCQUANTITYTIME":
		return QuantityTime, true
	}
	return 0, false
}

// RawQuantity is one (entity, qset, quantity) triple.
type RawQuantity struct {
	EntityID     uint32
	QsetName     string
	QsetGlobalID string
	Name         string
	Kind         QuantityKind
	Value        float64
	UnitID       int32
}

// RawRelationship is one directed edge between two entities.
type RawRelationship struct {
	Source uint32 // relating entity
	Target uint32 // related entity
	Type   string // e.g. "IFCRELAGGREGATES"
	RelID  uint32 // express id of the relationship entity itself
}

// GeometryPayload carries the tessellation pipeline's output as opaque
// bytes. The store persists it verbatim in the Geometry/Bounds sections
// and records the counts in the cache header.
type GeometryPayload struct {
	Data          []byte
	Bounds        []byte
	VertexCount   uint32
	TriangleCount uint32
}

// Package spatial derives the containment tree (project → site →
// building → storey/space → elements) from the entity table and the
// relationship graph, plus flattened container maps for O(1)
// "which storey holds this element" queries.
package spatial

import (
	"sort"
	"strconv"

	"github.com/RoaringBitmap/roaring"
	"github.com/ifc-lite/modelstore/api"
	"github.com/ifc-lite/modelstore/internal/relgraph"
	"github.com/ifc-lite/modelstore/internal/tables"
)

// Spatial structure entity types, root first.
const (
	TypeProject  = "IFCPROJECT"
	TypeSite     = "IFCSITE"
	TypeBuilding = "IFCBUILDING"
	TypeStorey   = "IFCBUILDINGSTOREY"
	TypeSpace    = "IFCSPACE"
)

var spatialTypes = []string{TypeProject, TypeSite, TypeBuilding, TypeStorey, TypeSpace}

// AttributeReader supplies an entity's positional attribute array.
// Optional: only storey elevation extraction reads it.
type AttributeReader interface {
	EntityAttributes(id uint32) []api.AttrValue
}

// Node is one spatial container in the tree.
type Node struct {
	ExpressID uint32
	Type      string
	Name      string
	// Elevation is set for storeys when extraction succeeds; extraction
	// failure is soft and simply leaves it nil.
	Elevation *float64
	Children  []*Node
	// Elements holds the directly contained non-spatial entities.
	Elements []uint32
}

// Hierarchy is the frozen containment tree with its flattened lookup
// maps. An element appears in at most one container per axis.
type Hierarchy struct {
	Root *Node

	byStorey   map[uint32][]uint32
	byBuilding map[uint32][]uint32
	bySite     map[uint32][]uint32
	bySpace    map[uint32][]uint32

	elementToStorey map[uint32]uint32
	elementToSpace  map[uint32]uint32

	storeyElevations map[uint32]float64
	storeyHeights    map[uint32]float64
}

// Build walks the entity table and relationship graph into a Hierarchy.
// Aggregation edges (forward) produce child spatial nodes; containment
// edges (forward) produce element lists, with nested spatial entities
// filtered out so containers never appear inside their own elements.
// attrs may be nil, in which case no elevations are extracted.
func Build(entities *tables.EntityTable, graph *relgraph.Graph, attrs AttributeReader) *Hierarchy {
	b := &builder{
		entities: entities,
		graph:    graph,
		attrs:    attrs,
		spatial:  roaring.New(),
		visited:  roaring.New(),
		h: &Hierarchy{
			byStorey:         make(map[uint32][]uint32),
			byBuilding:       make(map[uint32][]uint32),
			bySite:           make(map[uint32][]uint32),
			bySpace:          make(map[uint32][]uint32),
			elementToStorey:  make(map[uint32]uint32),
			elementToSpace:   make(map[uint32]uint32),
			storeyElevations: make(map[uint32]float64),
		},
	}

	// Membership set of all spatial-structure entities, used to keep
	// containers out of element lists and to gate recursion.
	for _, tn := range spatialTypes {
		for _, id := range entities.GetByTypeName(tn) {
			b.spatial.Add(id)
		}
	}

	if code, ok := graph.TypeCode(relgraph.RelContainedInSpatialStructure); ok {
		b.containsType = code
		b.hasContains = true
	}
	if code, ok := graph.TypeCode(relgraph.RelAggregates); ok {
		b.aggregatesType = code
		b.hasAggregates = true
	}

	roots := entities.GetByTypeName(TypeProject)
	if len(roots) > 0 {
		b.h.Root = b.buildNode(roots[0])
	}
	b.h.storeyHeights = deriveHeights(b.h.storeyElevations)
	return b.h
}

type builder struct {
	entities *tables.EntityTable
	graph    *relgraph.Graph
	attrs    AttributeReader
	spatial  *roaring.Bitmap
	visited  *roaring.Bitmap
	h        *Hierarchy

	containsType   relgraph.RelType
	hasContains    bool
	aggregatesType relgraph.RelType
	hasAggregates  bool
}

func (b *builder) buildNode(id uint32) *Node {
	if b.visited.Contains(id) {
		return nil // malformed aggregation cycle
	}
	b.visited.Add(id)

	row, ok := b.entities.Row(id)
	if !ok {
		return nil
	}
	typeName := b.entities.TypeName(b.entities.TypeCode(row))
	node := &Node{
		ExpressID: id,
		Type:      typeName,
		Name:      b.entities.Name(row),
	}
	if typeName == TypeStorey {
		if elev, ok := b.extractElevation(id); ok {
			node.Elevation = &elev
			b.h.storeyElevations[id] = elev
		}
	}

	// Directly contained elements, spatial containers filtered out.
	if b.hasContains {
		for _, target := range b.graph.Forward().Targets(id, b.containsType) {
			if b.spatial.Contains(target) {
				continue
			}
			node.Elements = append(node.Elements, target)
			b.recordContainment(typeName, id, target)
		}
	}

	// Child spatial nodes via aggregation, recursing only into
	// recognized spatial types.
	if b.hasAggregates {
		for _, target := range b.graph.Forward().Targets(id, b.aggregatesType) {
			if !b.spatial.Contains(target) {
				continue
			}
			if child := b.buildNode(target); child != nil {
				node.Children = append(node.Children, child)
			}
		}
	}
	return node
}

func (b *builder) recordContainment(containerType string, container, element uint32) {
	switch containerType {
	case TypeStorey:
		b.h.byStorey[container] = append(b.h.byStorey[container], element)
		if _, taken := b.h.elementToStorey[element]; !taken {
			b.h.elementToStorey[element] = container
		}
	case TypeBuilding:
		b.h.byBuilding[container] = append(b.h.byBuilding[container], element)
	case TypeSite:
		b.h.bySite[container] = append(b.h.bySite[container], element)
	case TypeSpace:
		b.h.bySpace[container] = append(b.h.bySpace[container], element)
		if _, taken := b.h.elementToSpace[element]; !taken {
			b.h.elementToSpace[element] = container
		}
	}
}

// extractElevation probes fixed attribute positions 8, 7, 6 (the storey
// elevation slot across schema variants) and falls back to the first
// small numeric attribute. Heuristic and schema-order-dependent; a miss
// leaves the field unset rather than failing the build.
//
// TODO: resolve by attribute name once the upstream parser exposes
// schema-aware attribute metadata.
func (b *builder) extractElevation(id uint32) (float64, bool) {
	if b.attrs == nil {
		return 0, false
	}
	attrs := b.attrs.EntityAttributes(id)
	if len(attrs) == 0 {
		return 0, false
	}
	for _, pos := range []int{8, 7, 6} {
		if pos < len(attrs) {
			if v, ok := attrs[pos].FloatValue(); ok {
				return v, true
			}
		}
	}
	for _, a := range attrs {
		if v, ok := a.FloatValue(); ok && v > -10000 && v < 10000 {
			return v, true
		}
	}
	return 0, false
}

// deriveHeights sorts storeys by elevation; each storey's height is the
// gap to the next storey up. The topmost storey has no height entry.
func deriveHeights(elevations map[uint32]float64) map[uint32]float64 {
	heights := make(map[uint32]float64)
	if len(elevations) < 2 {
		return heights
	}
	type storey struct {
		id   uint32
		elev float64
	}
	sorted := make([]storey, 0, len(elevations))
	for id, e := range elevations {
		sorted = append(sorted, storey{id, e})
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].elev < sorted[j].elev })
	for i := 0; i+1 < len(sorted); i++ {
		heights[sorted[i].id] = sorted[i+1].elev - sorted[i].elev
	}
	return heights
}

// GetStoreyElements returns the elements directly contained by a storey.
func (h *Hierarchy) GetStoreyElements(storey uint32) []uint32 { return h.byStorey[storey] }

// GetBuildingElements returns the elements directly contained by a building.
func (h *Hierarchy) GetBuildingElements(building uint32) []uint32 { return h.byBuilding[building] }

// GetSiteElements returns the elements directly contained by a site.
func (h *Hierarchy) GetSiteElements(site uint32) []uint32 { return h.bySite[site] }

// GetSpaceElements returns the elements directly contained by a space.
func (h *Hierarchy) GetSpaceElements(space uint32) []uint32 { return h.bySpace[space] }

// GetContainingStorey returns the storey holding an element.
func (h *Hierarchy) GetContainingStorey(element uint32) (uint32, bool) {
	s, ok := h.elementToStorey[element]
	return s, ok
}

// GetContainingSpace returns the space holding an element.
func (h *Hierarchy) GetContainingSpace(element uint32) (uint32, bool) {
	s, ok := h.elementToSpace[element]
	return s, ok
}

// StoreyElevation returns a storey's extracted elevation.
func (h *Hierarchy) StoreyElevation(storey uint32) (float64, bool) {
	e, ok := h.storeyElevations[storey]
	return e, ok
}

// StoreyHeight returns the derived height of a storey (the elevation gap
// to the next storey up). The topmost storey has none.
func (h *Hierarchy) StoreyHeight(storey uint32) (float64, bool) {
	v, ok := h.storeyHeights[storey]
	return v, ok
}

// StoreyCount returns the number of storeys with extracted elevations.
func (h *Hierarchy) StoreyCount() int { return len(h.storeyElevations) }

// GetPath returns the containment chain from the root down to the
// container directly holding the given id (or down to the id itself when
// it is a spatial node). Depth-first search over the built tree.
func (h *Hierarchy) GetPath(id uint32) []*Node {
	if h.Root == nil {
		return nil
	}
	return findPath(h.Root, id)
}

func findPath(n *Node, id uint32) []*Node {
	if n.ExpressID == id {
		return []*Node{n}
	}
	for _, el := range n.Elements {
		if el == id {
			return []*Node{n}
		}
	}
	for _, child := range n.Children {
		if p := findPath(child, id); p != nil {
			return append([]*Node{n}, p...)
		}
	}
	return nil
}

// PathString renders the containment chain as "Project/Site/Building".
// Unnamed containers render as "TYPE#id".
func (h *Hierarchy) PathString(id uint32) string {
	path := h.GetPath(id)
	out := ""
	for i, n := range path {
		if i > 0 {
			out += "/"
		}
		out += n.label()
	}
	return out
}

func (n *Node) label() string {
	if n.Name != "" {
		return n.Name
	}
	return n.Type + "#" + strconv.FormatUint(uint64(n.ExpressID), 10)
}

// Package relgraph stores the typed directed multigraph between entities
// as a pair of mirror-image compressed-sparse-row structures: every node
// owns a contiguous (offset, count) run in shared parallel edge arrays,
// once keyed by source (forward) and once by target (inverse).
package relgraph

import (
	"github.com/ifc-lite/modelstore/internal/tables"
)

// Canonical relationship type names pre-registered by every builder.
// Edge types outside this set are interned on first use.
const (
	RelContainedInSpatialStructure = "IFCRELCONTAINEDINSPATIALSTRUCTURE"
	RelAggregates                  = "IFCRELAGGREGATES"
	RelDefinesByProperties         = "IFCRELDEFINESBYPROPERTIES"
	RelDefinesByType               = "IFCRELDEFINESBYTYPE"
	RelAssociatesMaterial          = "IFCRELASSOCIATESMATERIAL"
	RelVoidsElement                = "IFCRELVOIDSELEMENT"
	RelFillsElement                = "IFCRELFILLSELEMENT"
)

var canonicalRelTypes = []string{
	RelContainedInSpatialStructure,
	RelAggregates,
	RelDefinesByProperties,
	RelDefinesByType,
	RelAssociatesMaterial,
	RelVoidsElement,
	RelFillsElement,
}

// RelType is a per-graph dense code for a relationship type name.
type RelType uint16

// Edge is one decoded directed edge.
type Edge struct {
	Target uint32
	Type   RelType
	RelID  uint32
}

type rawEdge struct {
	src, tgt uint32
	typ      RelType
	relID    uint32
}

// Builder records directed edges. Single-goroutine use only.
type Builder struct {
	strings    *tables.StringTable
	edges      []rawEdge
	typeNames  []string
	typeByName map[string]RelType
}

// NewBuilder returns a builder with the canonical relationship types
// pre-registered, interning type names into the shared arena.
func NewBuilder(strings *tables.StringTable) *Builder {
	b := &Builder{
		strings:    strings,
		typeByName: make(map[string]RelType),
	}
	for _, name := range canonicalRelTypes {
		b.typeCode(name)
	}
	return b
}

func (b *Builder) typeCode(name string) RelType {
	if c, ok := b.typeByName[name]; ok {
		return c
	}
	c := RelType(len(b.typeNames))
	b.typeNames = append(b.typeNames, name)
	b.typeByName[name] = c
	b.strings.Intern(name)
	return c
}

// AddEdge records one directed edge from source to target.
func (b *Builder) AddEdge(source, target uint32, typeName string, relID uint32) {
	b.edges = append(b.edges, rawEdge{
		src:   source,
		tgt:   target,
		typ:   b.typeCode(typeName),
		relID: relID,
	})
}

// EdgeCount returns the number of edges recorded so far.
func (b *Builder) EdgeCount() int { return len(b.edges) }

// Build freezes the edges into forward and inverse CSR structures. Both
// directions use the two-pass counting-sort construction: tally
// out-degrees, prefix-sum into offsets, then scatter with per-node write
// cursors, never the quadratic filter-by-source approach.
func (b *Builder) Build() *Graph {
	return &Graph{
		strings:    b.strings,
		forward:    buildAdjacency(b.edges, false),
		inverse:    buildAdjacency(b.edges, true),
		typeNames:  b.typeNames,
		typeByName: b.typeByName,
	}
}

func buildAdjacency(edges []rawEdge, swap bool) *Adjacency {
	key := func(e rawEdge) uint32 {
		if swap {
			return e.tgt
		}
		return e.src
	}
	val := func(e rawEdge) uint32 {
		if swap {
			return e.src
		}
		return e.tgt
	}

	// Pass 1: assign node slots in first-seen order and tally degrees.
	slotByNode := make(map[uint32]int32)
	var nodes []uint32
	var counts []uint32
	for _, e := range edges {
		k := key(e)
		slot, ok := slotByNode[k]
		if !ok {
			slot = int32(len(nodes))
			slotByNode[k] = slot
			nodes = append(nodes, k)
			counts = append(counts, 0)
		}
		counts[slot]++
	}

	// Prefix sum over tallies yields each node's starting offset.
	offsets := make([]uint32, len(nodes))
	var total uint32
	for i, c := range counts {
		offsets[i] = total
		total += c
	}

	// Pass 2: scatter edges into pre-sized arrays via write cursors.
	a := &Adjacency{
		slotByNode: slotByNode,
		nodes:      nodes,
		offsets:    offsets,
		counts:     counts,
		targets:    make([]uint32, total),
		types:      make([]uint16, total),
		relIDs:     make([]uint32, total),
	}
	cursor := make([]uint32, len(nodes))
	for _, e := range edges {
		slot := slotByNode[key(e)]
		pos := offsets[slot] + cursor[slot]
		cursor[slot]++
		a.targets[pos] = val(e)
		a.types[pos] = uint16(e.typ)
		a.relIDs[pos] = e.relID
	}
	return a
}

// Adjacency is one frozen CSR direction. For every registered node the
// count entries starting at its offset all belong to that node, and the
// counts sum to the edge-array length.
type Adjacency struct {
	slotByNode map[uint32]int32
	nodes      []uint32 // slot -> node id, first-seen order
	offsets    []uint32
	counts     []uint32
	targets    []uint32
	types      []uint16
	relIDs     []uint32
}

// NodeCount returns the number of registered nodes.
func (a *Adjacency) NodeCount() int { return len(a.nodes) }

// EdgeCount returns the total edge-array length.
func (a *Adjacency) EdgeCount() int { return len(a.targets) }

// Nodes returns the registered node ids in first-seen order. Shared
// backing data; callers must not mutate.
func (a *Adjacency) Nodes() []uint32 { return a.nodes }

// Degree returns the registered edge count for a node.
func (a *Adjacency) Degree(id uint32) int {
	slot, ok := a.slotByNode[id]
	if !ok {
		return 0
	}
	return int(a.counts[slot])
}

// Edges returns the node's edges, optionally filtered by type. Nodes
// with no edges yield an empty result.
func (a *Adjacency) Edges(id uint32, types ...RelType) []Edge {
	slot, ok := a.slotByNode[id]
	if !ok {
		return nil
	}
	lo := a.offsets[slot]
	hi := lo + a.counts[slot]
	out := make([]Edge, 0, hi-lo)
	for i := lo; i < hi; i++ {
		if len(types) > 0 && !containsType(types, RelType(a.types[i])) {
			continue
		}
		out = append(out, Edge{Target: a.targets[i], Type: RelType(a.types[i]), RelID: a.relIDs[i]})
	}
	return out
}

// Targets returns only the endpoint ids of Edges.
func (a *Adjacency) Targets(id uint32, types ...RelType) []uint32 {
	edges := a.Edges(id, types...)
	if len(edges) == 0 {
		return nil
	}
	out := make([]uint32, len(edges))
	for i, e := range edges {
		out[i] = e.Target
	}
	return out
}

// HasAnyEdges reports whether the node has at least one edge.
func (a *Adjacency) HasAnyEdges(id uint32) bool { return a.Degree(id) > 0 }

func containsType(types []RelType, t RelType) bool {
	for _, x := range types {
		if x == t {
			return true
		}
	}
	return false
}

// Graph is the frozen typed multigraph: the same edge set stored
// forward (source-keyed) and inverse (target-keyed).
type Graph struct {
	strings    *tables.StringTable
	forward    *Adjacency
	inverse    *Adjacency
	typeNames  []string
	typeByName map[string]RelType
}

// Forward returns the source-keyed direction.
func (g *Graph) Forward() *Adjacency { return g.forward }

// Inverse returns the target-keyed direction.
func (g *Graph) Inverse() *Adjacency { return g.inverse }

// EdgeCount returns the total number of edges.
func (g *Graph) EdgeCount() int { return g.forward.EdgeCount() }

// TypeName returns the canonical name for a type code.
func (g *Graph) TypeName(t RelType) string { return g.typeNames[t] }

// TypeCode looks up the code for a relationship type name. Names never
// seen by the builder report false.
func (g *Graph) TypeCode(name string) (RelType, bool) {
	c, ok := g.typeByName[name]
	return c, ok
}

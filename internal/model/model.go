// Package model assembles the columnar tables, relationship graph, and
// spatial hierarchy into one Model, and provides the Loader that builds
// a Model from the raw records an upstream parser emits.
package model

import (
	"github.com/ifc-lite/modelstore/api"
	"github.com/ifc-lite/modelstore/internal/relgraph"
	"github.com/ifc-lite/modelstore/internal/spatial"
	"github.com/ifc-lite/modelstore/internal/tables"
)

// Model is the complete in-memory form of one parsed building model.
// Every field is frozen after construction; a Model is safe to share
// across concurrent readers and is discarded wholesale when the source
// file is unloaded or replaced.
type Model struct {
	Strings    *tables.StringTable
	Entities   *tables.EntityTable
	Properties *tables.PropertyTable
	Quantities *tables.QuantityTable
	Graph      *relgraph.Graph

	// Spatial is nil when no containment hierarchy was derived or cached.
	Spatial *spatial.Hierarchy
	// Geometry carries the tessellation pipeline's opaque payload, nil
	// when the model was built or hydrated without geometry.
	Geometry *api.GeometryPayload
}

// Loader accumulates raw parser records and builds a Model in a single
// writer pass. Single-goroutine use only; chunking long loads across
// ticks is the caller's concern.
type Loader struct {
	strings    *tables.StringTable
	entities   *tables.EntityBuilder
	properties *tables.PropertyBuilder
	quantities *tables.QuantityBuilder
	rels       *relgraph.Builder

	// Positional attribute arrays, kept only until Build so the spatial
	// builder can probe storey elevations.
	attrs map[uint32][]api.AttrValue

	geometry *api.GeometryPayload
}

// NewLoader returns an empty loader with a fresh shared string arena.
func NewLoader() *Loader {
	strings := tables.NewStringTable()
	return &Loader{
		strings:    strings,
		entities:   tables.NewEntityBuilder(strings),
		properties: tables.NewPropertyBuilder(strings),
		quantities: tables.NewQuantityBuilder(strings),
		rels:       relgraph.NewBuilder(strings),
		attrs:      make(map[uint32][]api.AttrValue),
	}
}

// AddEntity records one entity row.
func (l *Loader) AddEntity(e api.RawEntity) {
	l.entities.Add(e)
	if len(e.Attributes) > 0 {
		l.attrs[e.ExpressID] = e.Attributes
	}
}

// AddProperty records one property row. Rows without a scalar value are
// dropped; reports whether the row was kept.
func (l *Loader) AddProperty(p api.RawProperty) bool {
	return l.properties.Add(p)
}

// AddQuantity records one quantity row.
func (l *Loader) AddQuantity(q api.RawQuantity) {
	l.quantities.Add(q)
}

// AddRelationship records one directed edge.
func (l *Loader) AddRelationship(r api.RawRelationship) {
	l.rels.AddEdge(r.Source, r.Target, r.Type, r.RelID)
}

// SetGeometry attaches the tessellation pipeline's payload.
func (l *Loader) SetGeometry(g *api.GeometryPayload) {
	l.geometry = g
}

type attrReader map[uint32][]api.AttrValue

func (a attrReader) EntityAttributes(id uint32) []api.AttrValue { return a[id] }

// Build freezes everything into a Model: tables and graph first, then
// the spatial hierarchy derived from them. The loader must not be used
// afterwards.
func (l *Loader) Build() *Model {
	m := &Model{
		Strings:    l.strings,
		Entities:   l.entities.Build(),
		Properties: l.properties.Build(),
		Quantities: l.quantities.Build(),
		Graph:      l.rels.Build(),
		Geometry:   l.geometry,
	}
	m.Spatial = spatial.Build(m.Entities, m.Graph, attrReader(l.attrs))
	l.strings.Freeze()
	l.attrs = nil
	return m
}

// Package export renders a frozen model into Parquet files, one flat
// table per dataset, for downstream analytics tooling.
package export

import (
	"fmt"
	"io"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/apache/arrow/go/v18/parquet"
	"github.com/apache/arrow/go/v18/parquet/compress"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"

	"github.com/ifc-lite/modelstore/internal/model"
)

func writeParquet(w io.Writer, rec arrow.Record) error {
	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	fw, err := pqarrow.NewFileWriter(rec.Schema(), w, props, pqarrow.DefaultWriterProps())
	if err != nil {
		return fmt.Errorf("open parquet writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		_ = fw.Close()
		return fmt.Errorf("write parquet: %w", err)
	}
	return fw.Close()
}

func appendOptString(b *array.StringBuilder, s string) {
	if s == "" {
		b.AppendNull()
	} else {
		b.Append(s)
	}
}

// WriteEntities writes the entity table: one row per entity.
func WriteEntities(w io.Writer, m *model.Model) error {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "entity_id", Type: arrow.PrimitiveTypes.Uint32},
		{Name: "type_name", Type: arrow.BinaryTypes.String},
		{Name: "global_id", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "has_geometry", Type: arrow.FixedWidthTypes.Boolean},
	}, nil)

	b := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer b.Release()
	ids := b.Field(0).(*array.Uint32Builder)
	types := b.Field(1).(*array.StringBuilder)
	gids := b.Field(2).(*array.StringBuilder)
	names := b.Field(3).(*array.StringBuilder)
	geo := b.Field(4).(*array.BooleanBuilder)

	ents := m.Entities
	for row := 0; row < ents.Count(); row++ {
		ids.Append(ents.ExpressID(row))
		types.Append(ents.TypeName(ents.TypeCode(row)))
		appendOptString(gids, ents.GlobalID(row))
		appendOptString(names, ents.Name(row))
		geo.Append(ents.HasGeometry(row))
	}

	rec := b.NewRecord()
	defer rec.Release()
	return writeParquet(w, rec)
}

// WriteProperties writes the property table: one row per (entity, pset,
// property), with the value rendered as text alongside its type tag.
func WriteProperties(w io.Writer, m *model.Model) error {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "entity_id", Type: arrow.PrimitiveTypes.Uint32},
		{Name: "pset_name", Type: arrow.BinaryTypes.String},
		{Name: "property_name", Type: arrow.BinaryTypes.String},
		{Name: "property_value", Type: arrow.BinaryTypes.String},
		{Name: "property_type", Type: arrow.BinaryTypes.String},
	}, nil)

	b := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer b.Release()
	ids := b.Field(0).(*array.Uint32Builder)
	psets := b.Field(1).(*array.StringBuilder)
	names := b.Field(2).(*array.StringBuilder)
	values := b.Field(3).(*array.StringBuilder)
	vtypes := b.Field(4).(*array.StringBuilder)

	// A minimal cache hydrates without a properties section; the export
	// is then an empty dataset, not a failure.
	if props := m.Properties; props != nil {
		for row := uint32(0); row < uint32(props.Count()); row++ {
			v := props.Value(row)
			ids.Append(props.EntityID(row))
			psets.Append(props.PsetName(row))
			names.Append(props.PropName(row))
			values.Append(v.Display())
			vtypes.Append(v.Type.String())
		}
	}

	rec := b.NewRecord()
	defer rec.Release()
	return writeParquet(w, rec)
}

// WriteQuantities writes the quantity table: one row per (entity, qset,
// quantity).
func WriteQuantities(w io.Writer, m *model.Model) error {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "entity_id", Type: arrow.PrimitiveTypes.Uint32},
		{Name: "qset_name", Type: arrow.BinaryTypes.String},
		{Name: "quantity_name", Type: arrow.BinaryTypes.String},
		{Name: "quantity_value", Type: arrow.PrimitiveTypes.Float64},
		{Name: "quantity_type", Type: arrow.BinaryTypes.String},
	}, nil)

	b := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer b.Release()
	ids := b.Field(0).(*array.Uint32Builder)
	qsets := b.Field(1).(*array.StringBuilder)
	names := b.Field(2).(*array.StringBuilder)
	values := b.Field(3).(*array.Float64Builder)
	kinds := b.Field(4).(*array.StringBuilder)

	if q := m.Quantities; q != nil {
		for row := uint32(0); row < uint32(q.Count()); row++ {
			ids.Append(q.EntityID(row))
			qsets.Append(q.QsetName(row))
			names.Append(q.QuantityName(row))
			values.Append(q.Value(row))
			kinds.Append(q.Kind(row).String())
		}
	}

	rec := b.NewRecord()
	defer rec.Release()
	return writeParquet(w, rec)
}

// WriteRelationships writes the edge list: one row per forward edge.
func WriteRelationships(w io.Writer, m *model.Model) error {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "rel_type", Type: arrow.BinaryTypes.String},
		{Name: "relating_id", Type: arrow.PrimitiveTypes.Uint32},
		{Name: "related_id", Type: arrow.PrimitiveTypes.Uint32},
	}, nil)

	b := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer b.Release()
	relTypes := b.Field(0).(*array.StringBuilder)
	relating := b.Field(1).(*array.Uint32Builder)
	related := b.Field(2).(*array.Uint32Builder)

	if m.Graph != nil {
		fwd := m.Graph.Forward()
		for _, node := range fwd.Nodes() {
			for _, e := range fwd.Edges(node) {
				relTypes.Append(m.Graph.TypeName(e.Type))
				relating.Append(node)
				related.Append(e.Target)
			}
		}
	}

	rec := b.NewRecord()
	defer rec.Release()
	return writeParquet(w, rec)
}

// Dataset names one exportable table and its writer.
type Dataset struct {
	Name  string
	Write func(io.Writer, *model.Model) error
}

// Datasets lists the exportable tables in export order.
func Datasets() []Dataset {
	return []Dataset{
		{"entities", WriteEntities},
		{"properties", WriteProperties},
		{"quantities", WriteQuantities},
		{"relationships", WriteRelationships},
	}
}

package cachefmt

import (
	"encoding/binary"
	"fmt"

	"github.com/ifc-lite/modelstore/internal/binenc"
	"github.com/ifc-lite/modelstore/internal/model"
	"github.com/ifc-lite/modelstore/internal/xxhash"
)

// HashSource computes the content hash stored in the cache header.
func HashSource(source []byte) uint64 {
	return xxhash.Sum64(source, xxhash.DefaultSeed)
}

// Write serializes a model into a cache buffer keyed by the given source
// hash. Section payloads are encoded first so the header and table carry
// final offsets; the writer never compresses, so size always equals
// compressedSize.
func Write(m *model.Model, sourceHash uint64) ([]byte, error) {
	type pending struct {
		typ     SectionType
		payload []byte
	}
	var sections []pending
	add := func(typ SectionType, payload []byte) {
		sections = append(sections, pending{typ: typ, payload: payload})
	}

	sw := binenc.NewWriter(64 * 1024)
	m.Strings.EncodeBinary(sw)
	add(SectionStrings, sw.Bytes())

	ew := binenc.NewWriter(64 * 1024)
	if err := m.Entities.EncodeBinary(ew); err != nil {
		return nil, fmt.Errorf("encode entities: %w", err)
	}
	add(SectionEntities, ew.Bytes())

	pw := binenc.NewWriter(64 * 1024)
	if err := m.Properties.EncodeBinary(pw); err != nil {
		return nil, fmt.Errorf("encode properties: %w", err)
	}
	add(SectionProperties, pw.Bytes())

	qw := binenc.NewWriter(16 * 1024)
	if err := m.Quantities.EncodeBinary(qw); err != nil {
		return nil, fmt.Errorf("encode quantities: %w", err)
	}
	add(SectionQuantities, qw.Bytes())

	rw := binenc.NewWriter(64 * 1024)
	m.Graph.EncodeBinary(rw)
	add(SectionRelationships, rw.Bytes())

	h := Header{
		Version:     FormatVersion,
		Schema:      SchemaCurrent,
		SourceHash:  sourceHash,
		EntityCount: uint32(m.Entities.Count()),
	}

	if g := m.Geometry; g != nil {
		h.Flags |= FlagHasGeometry
		h.VertexCount = g.VertexCount
		h.TriangleCount = g.TriangleCount
		add(SectionGeometry, g.Data)
	}

	if m.Spatial != nil {
		h.Flags |= FlagHasSpatial
		xw := binenc.NewWriter(16 * 1024)
		m.Spatial.EncodeBinary(xw, m.Strings)
		add(SectionSpatial, xw.Bytes())
	}

	if m.Geometry != nil && len(m.Geometry.Bounds) > 0 {
		add(SectionBounds, m.Geometry.Bounds)
	}

	h.SectionCount = uint16(len(sections))

	total := HeaderSize + len(sections)*SectionEntrySize
	for _, s := range sections {
		total += len(s.payload)
	}
	buf := make([]byte, total)
	h.encode(buf[:HeaderSize])

	offset := uint32(HeaderSize + len(sections)*SectionEntrySize)
	for i, s := range sections {
		off := HeaderSize + i*SectionEntrySize
		binary.LittleEndian.PutUint16(buf[off:off+2], uint16(s.typ))
		binary.LittleEndian.PutUint16(buf[off+2:off+4], 0)
		binary.LittleEndian.PutUint32(buf[off+4:off+8], offset)
		binary.LittleEndian.PutUint32(buf[off+8:off+12], uint32(len(s.payload)))
		binary.LittleEndian.PutUint32(buf[off+12:off+16], uint32(len(s.payload)))
		copy(buf[offset:], s.payload)
		offset += uint32(len(s.payload))
	}
	return buf, nil
}

// WriteFromSource is Write with the hash computed from the source bytes.
func WriteFromSource(m *model.Model, source []byte) ([]byte, error) {
	return Write(m, HashSource(source))
}

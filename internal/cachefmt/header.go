// Package cachefmt implements the versioned binary cache format: a fixed
// 64-byte header, a section table, and independently addressable section
// payloads for every model table. A cache buffer is either fully valid
// (magic, version, hash, and required sections all check out) or it is
// discarded wholesale; no partial table ever escapes the reader.
package cachefmt

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// Magic is the file signature, ASCII "IFCL" read little-endian.
	Magic uint32 = 0x4C434649
	// FormatVersion is the only format version this codec reads or
	// writes. Unknown or future versions are fatal.
	FormatVersion uint16 = 2

	// HeaderSize is the fixed byte length of the header.
	HeaderSize = 64
	// SectionEntrySize is the byte length of one section table entry.
	SectionEntrySize = 16
)

// Header flag bits.
const (
	FlagCompressed  uint16 = 1 << 0 // reserved; never set by this writer
	FlagHasGeometry uint16 = 1 << 1
	FlagHasSpatial  uint16 = 1 << 2
)

// Schema version enum carried in the header.
const (
	SchemaLegacyA uint8 = 0
	SchemaLegacyB uint8 = 1
	SchemaCurrent uint8 = 2
)

// SectionType identifies one independently addressable cache region.
type SectionType uint16

const (
	SectionStrings       SectionType = 1
	SectionEntities      SectionType = 2
	SectionProperties    SectionType = 3
	SectionQuantities    SectionType = 4
	SectionRelationships SectionType = 5
	SectionGeometry      SectionType = 6
	SectionSpatial       SectionType = 7
	SectionBounds        SectionType = 8
)

func (t SectionType) String() string {
	switch t {
	case SectionStrings:
		return "strings"
	case SectionEntities:
		return "entities"
	case SectionProperties:
		return "properties"
	case SectionQuantities:
		return "quantities"
	case SectionRelationships:
		return "relationships"
	case SectionGeometry:
		return "geometry"
	case SectionSpatial:
		return "spatial"
	case SectionBounds:
		return "bounds"
	}
	return fmt.Sprintf("unknown(%d)", uint16(t))
}

// Format errors. All of them mean "treat the cache as absent and fall
// back to a full re-parse"; none are user-facing.
var (
	ErrBadMagic       = errors.New("cachefmt: bad magic")
	ErrVersion        = errors.New("cachefmt: unsupported format version")
	ErrSchema         = errors.New("cachefmt: unknown schema version")
	ErrTruncated      = errors.New("cachefmt: buffer truncated")
	ErrMissingSection = errors.New("cachefmt: required section missing")
	ErrCompressed     = errors.New("cachefmt: compressed sections not supported")
)

// Header is the decoded fixed header of a cache buffer.
type Header struct {
	Version       uint16
	Flags         uint16
	SourceHash    uint64
	Schema        uint8
	EntityCount   uint32
	VertexCount   uint32
	TriangleCount uint32
	SectionCount  uint16
}

// HasGeometry reports the hasGeometry header flag.
func (h *Header) HasGeometry() bool { return h.Flags&FlagHasGeometry != 0 }

// HasSpatial reports the hasSpatial header flag.
func (h *Header) HasSpatial() bool { return h.Flags&FlagHasSpatial != 0 }

// SectionEntry is one decoded section table row.
type SectionEntry struct {
	Type           SectionType
	Flags          uint16
	Offset         uint32
	Size           uint32
	CompressedSize uint32
}

func (h *Header) encode(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], Magic)
	binary.LittleEndian.PutUint16(buf[4:6], h.Version)
	binary.LittleEndian.PutUint16(buf[6:8], h.Flags)
	binary.LittleEndian.PutUint64(buf[8:16], h.SourceHash)
	buf[16] = h.Schema
	binary.LittleEndian.PutUint32(buf[17:21], h.EntityCount)
	binary.LittleEndian.PutUint32(buf[21:25], h.VertexCount)
	binary.LittleEndian.PutUint32(buf[25:29], h.TriangleCount)
	binary.LittleEndian.PutUint16(buf[29:31], h.SectionCount)
	// bytes 31..63 stay zero (reserved)
}

// ReadHeader decodes and validates the fixed header without touching any
// section payload. This is the fast path for cache validation.
func ReadHeader(buf []byte) (*Header, error) {
	if len(buf) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes, need %d for header", ErrTruncated, len(buf), HeaderSize)
	}
	if m := binary.LittleEndian.Uint32(buf[0:4]); m != Magic {
		return nil, fmt.Errorf("%w: 0x%08X", ErrBadMagic, m)
	}
	h := &Header{
		Version:       binary.LittleEndian.Uint16(buf[4:6]),
		Flags:         binary.LittleEndian.Uint16(buf[6:8]),
		SourceHash:    binary.LittleEndian.Uint64(buf[8:16]),
		Schema:        buf[16],
		EntityCount:   binary.LittleEndian.Uint32(buf[17:21]),
		VertexCount:   binary.LittleEndian.Uint32(buf[21:25]),
		TriangleCount: binary.LittleEndian.Uint32(buf[25:29]),
		SectionCount:  binary.LittleEndian.Uint16(buf[29:31]),
	}
	if h.Version != FormatVersion {
		return nil, fmt.Errorf("%w: %d (codec speaks %d)", ErrVersion, h.Version, FormatVersion)
	}
	if h.Schema > SchemaCurrent {
		return nil, fmt.Errorf("%w: %d", ErrSchema, h.Schema)
	}
	return h, nil
}

// ReadSectionTable decodes the section entries following the header and
// checks that every declared extent lies within the buffer. Sections may
// then be read independently and out of order.
func ReadSectionTable(buf []byte, h *Header) ([]SectionEntry, error) {
	tableEnd := HeaderSize + int(h.SectionCount)*SectionEntrySize
	if len(buf) < tableEnd {
		return nil, fmt.Errorf("%w: %d bytes, need %d for section table", ErrTruncated, len(buf), tableEnd)
	}
	entries := make([]SectionEntry, h.SectionCount)
	for i := range entries {
		off := HeaderSize + i*SectionEntrySize
		e := SectionEntry{
			Type:           SectionType(binary.LittleEndian.Uint16(buf[off : off+2])),
			Flags:          binary.LittleEndian.Uint16(buf[off+2 : off+4]),
			Offset:         binary.LittleEndian.Uint32(buf[off+4 : off+8]),
			Size:           binary.LittleEndian.Uint32(buf[off+8 : off+12]),
			CompressedSize: binary.LittleEndian.Uint32(buf[off+12 : off+16]),
		}
		end := uint64(e.Offset) + uint64(e.Size)
		if end > uint64(len(buf)) {
			return nil, fmt.Errorf("%w: section %s extent [%d,%d) exceeds %d bytes",
				ErrTruncated, e.Type, e.Offset, end, len(buf))
		}
		entries[i] = e
	}
	return entries, nil
}

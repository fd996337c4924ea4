package cachefmt

import (
	"fmt"

	"github.com/ifc-lite/modelstore/api"
	"github.com/ifc-lite/modelstore/internal/binenc"
	"github.com/ifc-lite/modelstore/internal/model"
	"github.com/ifc-lite/modelstore/internal/relgraph"
	"github.com/ifc-lite/modelstore/internal/spatial"
	"github.com/ifc-lite/modelstore/internal/tables"
)

// ReadOptions controls partial hydration.
type ReadOptions struct {
	// SkipGeometry leaves Model.Geometry nil even when the cache carries
	// geometry sections. Header counts are still reported.
	SkipGeometry bool
}

// Read hydrates a Model from a cache buffer. Strings and Entities are
// required; the remaining sections hydrate when present. Any format
// defect is fatal and the whole buffer is rejected.
func Read(buf []byte, opts ReadOptions) (*model.Model, error) {
	h, err := ReadHeader(buf)
	if err != nil {
		return nil, err
	}
	if h.Flags&FlagCompressed != 0 {
		return nil, ErrCompressed
	}
	entries, err := ReadSectionTable(buf, h)
	if err != nil {
		return nil, err
	}
	byType := make(map[SectionType]SectionEntry, len(entries))
	for _, e := range entries {
		if e.Flags&FlagCompressed != 0 {
			return nil, fmt.Errorf("%w: section %s", ErrCompressed, e.Type)
		}
		byType[e.Type] = e
	}
	payload := func(t SectionType) ([]byte, bool) {
		e, ok := byType[t]
		if !ok {
			return nil, false
		}
		return buf[e.Offset : e.Offset+e.Size], true
	}

	sp, ok := payload(SectionStrings)
	if !ok {
		return nil, fmt.Errorf("%w: strings", ErrMissingSection)
	}
	strs, err := tables.DecodeStringTable(binenc.NewReader(sp))
	if err != nil {
		return nil, fmt.Errorf("strings section: %w", err)
	}

	ep, ok := payload(SectionEntities)
	if !ok {
		return nil, fmt.Errorf("%w: entities", ErrMissingSection)
	}
	entities, err := tables.DecodeEntityTable(binenc.NewReader(ep), strs)
	if err != nil {
		return nil, fmt.Errorf("entities section: %w", err)
	}
	if uint32(entities.Count()) != h.EntityCount {
		return nil, fmt.Errorf("entities section: %d rows, header says %d",
			entities.Count(), h.EntityCount)
	}

	m := &model.Model{Strings: strs, Entities: entities}

	if p, ok := payload(SectionProperties); ok {
		if m.Properties, err = tables.DecodePropertyTable(binenc.NewReader(p), strs); err != nil {
			return nil, fmt.Errorf("properties section: %w", err)
		}
	}
	if p, ok := payload(SectionQuantities); ok {
		if m.Quantities, err = tables.DecodeQuantityTable(binenc.NewReader(p), strs); err != nil {
			return nil, fmt.Errorf("quantities section: %w", err)
		}
	}
	if p, ok := payload(SectionRelationships); ok {
		if m.Graph, err = relgraph.DecodeGraph(binenc.NewReader(p), strs); err != nil {
			return nil, fmt.Errorf("relationships section: %w", err)
		}
	}
	if p, ok := payload(SectionSpatial); ok {
		if m.Spatial, err = spatial.DecodeHierarchy(binenc.NewReader(p), strs); err != nil {
			return nil, fmt.Errorf("spatial section: %w", err)
		}
	}
	if p, ok := payload(SectionGeometry); ok && !opts.SkipGeometry {
		g := &api.GeometryPayload{
			Data:          append([]byte(nil), p...),
			VertexCount:   h.VertexCount,
			TriangleCount: h.TriangleCount,
		}
		if bp, ok := payload(SectionBounds); ok {
			g.Bounds = append([]byte(nil), bp...)
		}
		m.Geometry = g
	}
	return m, nil
}

// Validate reports whether a cache buffer is usable for the given source
// bytes. A structurally sound buffer whose hash simply does not match the
// source is stale, not broken: that case reports (false, nil) so callers
// re-parse without logging a failure. Format defects return an error.
func Validate(cache, source []byte) (bool, error) {
	h, err := ReadHeader(cache)
	if err != nil {
		return false, err
	}
	if h.Flags&FlagCompressed != 0 {
		return false, ErrCompressed
	}
	if _, err := ReadSectionTable(cache, h); err != nil {
		return false, err
	}
	if h.SourceHash != HashSource(source) {
		return false, nil
	}
	return true, nil
}

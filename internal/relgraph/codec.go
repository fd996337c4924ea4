package relgraph

import (
	"fmt"

	"github.com/ifc-lite/modelstore/internal/binenc"
	"github.com/ifc-lite/modelstore/internal/tables"
)

// EncodeBinary writes the Relationships section payload: the rel-type
// dictionary (string arena indices), then both CSR directions.
func (g *Graph) EncodeBinary(w *binenc.Writer) {
	w.U32(uint32(len(g.typeNames)))
	for _, name := range g.typeNames {
		w.I32(g.strings.IndexOf(name))
	}
	g.forward.encode(w)
	g.inverse.encode(w)
}

func (a *Adjacency) encode(w *binenc.Writer) {
	w.U32(uint32(len(a.nodes)))
	for slot, node := range a.nodes {
		w.U32(node)
		w.U32(a.offsets[slot])
		w.U32(a.counts[slot])
	}
	w.U32Slice(a.targets)
	w.U16Slice(a.types)
	w.U32Slice(a.relIDs)
}

// DecodeGraph reads a Relationships section payload and verifies the
// CSR partition invariants for both directions.
func DecodeGraph(r *binenc.Reader, strings *tables.StringTable) (*Graph, error) {
	typeCount := int(r.U32())
	if err := r.Err(); err != nil {
		return nil, err
	}
	if typeCount*4 > r.Remaining() {
		return nil, fmt.Errorf("relationship graph: type dictionary count %d exceeds payload", typeCount)
	}
	g := &Graph{
		strings:    strings,
		typeNames:  make([]string, typeCount),
		typeByName: make(map[string]RelType, typeCount),
	}
	for i := 0; i < typeCount; i++ {
		name, err := strings.Lookup(r.I32())
		if err != nil {
			return nil, fmt.Errorf("relationship graph: type dictionary: %w", err)
		}
		g.typeNames[i] = name
		g.typeByName[name] = RelType(i)
	}

	var err error
	if g.forward, err = decodeAdjacency(r, "forward"); err != nil {
		return nil, err
	}
	if g.inverse, err = decodeAdjacency(r, "inverse"); err != nil {
		return nil, err
	}
	if g.forward.EdgeCount() != g.inverse.EdgeCount() {
		return nil, fmt.Errorf("relationship graph: forward has %d edges, inverse %d",
			g.forward.EdgeCount(), g.inverse.EdgeCount())
	}
	for _, a := range []*Adjacency{g.forward, g.inverse} {
		for _, tc := range a.types {
			if int(tc) >= typeCount {
				return nil, fmt.Errorf("relationship graph: edge type code %d outside dictionary of %d", tc, typeCount)
			}
		}
	}
	return g, nil
}

func decodeAdjacency(r *binenc.Reader, dir string) (*Adjacency, error) {
	nodeCount := int(r.U32())
	if err := r.Err(); err != nil {
		return nil, err
	}
	if nodeCount*12 > r.Remaining() {
		return nil, fmt.Errorf("relationship graph: %s node count %d exceeds payload", dir, nodeCount)
	}
	a := &Adjacency{
		slotByNode: make(map[uint32]int32, nodeCount),
		nodes:      make([]uint32, nodeCount),
		offsets:    make([]uint32, nodeCount),
		counts:     make([]uint32, nodeCount),
	}
	for i := 0; i < nodeCount; i++ {
		a.nodes[i] = r.U32()
		a.offsets[i] = r.U32()
		a.counts[i] = r.U32()
		a.slotByNode[a.nodes[i]] = int32(i)
	}
	a.targets = r.U32Slice()
	a.types = r.U16Slice()
	a.relIDs = r.U32Slice()
	if err := r.Err(); err != nil {
		return nil, err
	}

	total := len(a.targets)
	if len(a.types) != total || len(a.relIDs) != total {
		return nil, fmt.Errorf("relationship graph: %s edge array length mismatch", dir)
	}
	var sum uint64
	for i := range a.nodes {
		end := uint64(a.offsets[i]) + uint64(a.counts[i])
		if end > uint64(total) {
			return nil, fmt.Errorf("relationship graph: %s node %d range [%d,%d) exceeds %d edges",
				dir, a.nodes[i], a.offsets[i], end, total)
		}
		sum += uint64(a.counts[i])
	}
	if sum != uint64(total) {
		return nil, fmt.Errorf("relationship graph: %s counts sum %d != edge count %d", dir, sum, total)
	}
	return a, nil
}

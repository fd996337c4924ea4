package spatial

import (
	"fmt"

	"github.com/ifc-lite/modelstore/internal/binenc"
	"github.com/ifc-lite/modelstore/internal/tables"
)

// EncodeBinary writes the Spatial section payload: the tree flattened in
// preorder, the four container maps, and the storey elevations. Reverse
// maps and heights are derived data and are rebuilt on read in the same
// pass that hydrates their sources.
func (h *Hierarchy) EncodeBinary(w *binenc.Writer, strings *tables.StringTable) {
	var flat []*Node
	var walk func(n *Node)
	walk = func(n *Node) {
		flat = append(flat, n)
		for _, c := range n.Children {
			walk(c)
		}
	}
	if h.Root != nil {
		walk(h.Root)
	}

	w.U32(uint32(len(flat)))
	for _, n := range flat {
		w.U32(n.ExpressID)
		w.I32(strings.IndexOf(n.Type))
		if n.Name == "" {
			w.I32(-1)
		} else {
			w.I32(strings.IndexOf(n.Name))
		}
		if n.Elevation != nil {
			w.U8(1)
			w.F64(*n.Elevation)
		} else {
			w.U8(0)
		}
		children := make([]uint32, len(n.Children))
		for i, c := range n.Children {
			children[i] = c.ExpressID
		}
		w.U32Slice(children)
		w.U32Slice(n.Elements)
	}

	w.IndexMapU32(h.byStorey)
	w.IndexMapU32(h.byBuilding)
	w.IndexMapU32(h.bySite)
	w.IndexMapU32(h.bySpace)
}

// DecodeHierarchy reads a Spatial section payload.
func DecodeHierarchy(r *binenc.Reader, strings *tables.StringTable) (*Hierarchy, error) {
	count := int(r.U32())
	if err := r.Err(); err != nil {
		return nil, err
	}
	if count > r.Remaining() {
		return nil, fmt.Errorf("spatial section: node count %d exceeds %d payload bytes", count, r.Remaining())
	}

	type flatNode struct {
		node     *Node
		children []uint32
	}
	flat := make([]flatNode, count)
	byID := make(map[uint32]*Node, count)
	for i := 0; i < count; i++ {
		n := &Node{}
		n.ExpressID = r.U32()
		var err error
		if n.Type, err = strings.Lookup(r.I32()); err != nil {
			return nil, fmt.Errorf("spatial section: node %d type: %w", n.ExpressID, err)
		}
		if n.Name, err = strings.Lookup(r.I32()); err != nil {
			return nil, fmt.Errorf("spatial section: node %d name: %w", n.ExpressID, err)
		}
		if r.U8() == 1 {
			elev := r.F64()
			n.Elevation = &elev
		}
		children := r.U32Slice()
		n.Elements = r.U32Slice()
		if err := r.Err(); err != nil {
			return nil, err
		}
		flat[i] = flatNode{node: n, children: children}
		byID[n.ExpressID] = n
	}

	for _, fn := range flat {
		for _, childID := range fn.children {
			child, ok := byID[childID]
			if !ok {
				return nil, fmt.Errorf("spatial section: node %d references unknown child %d",
					fn.node.ExpressID, childID)
			}
			fn.node.Children = append(fn.node.Children, child)
		}
	}

	h := &Hierarchy{
		byStorey:         r.IndexMapU32(),
		byBuilding:       r.IndexMapU32(),
		bySite:           r.IndexMapU32(),
		bySpace:          r.IndexMapU32(),
		elementToStorey:  make(map[uint32]uint32),
		elementToSpace:   make(map[uint32]uint32),
		storeyElevations: make(map[uint32]float64),
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	if count > 0 {
		h.Root = flat[0].node
	}
	if h.byStorey == nil {
		h.byStorey = make(map[uint32][]uint32)
	}
	if h.byBuilding == nil {
		h.byBuilding = make(map[uint32][]uint32)
	}
	if h.bySite == nil {
		h.bySite = make(map[uint32][]uint32)
	}
	if h.bySpace == nil {
		h.bySpace = make(map[uint32][]uint32)
	}

	// Rebuild reverse maps, elevations, and heights from what was read.
	for storey, elements := range h.byStorey {
		for _, el := range elements {
			if _, taken := h.elementToStorey[el]; !taken {
				h.elementToStorey[el] = storey
			}
		}
	}
	for space, elements := range h.bySpace {
		for _, el := range elements {
			if _, taken := h.elementToSpace[el]; !taken {
				h.elementToSpace[el] = space
			}
		}
	}
	for _, fn := range flat {
		if fn.node.Type == TypeStorey && fn.node.Elevation != nil {
			h.storeyElevations[fn.node.ExpressID] = *fn.node.Elevation
		}
	}
	h.storeyHeights = deriveHeights(h.storeyElevations)
	return h, nil
}

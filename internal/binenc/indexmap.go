package binenc

import "sort"

// Inverted index maps share one wire shape across all sections:
//
//	size:u32, then (key:u32, count:u32, values:u32[count]) repeated size times.
//
// Keys are written in ascending order so identical tables always produce
// identical bytes.

// IndexMapU32 writes a key→rows index map.
func (w *Writer) IndexMapU32(m map[uint32][]uint32) {
	keys := make([]uint32, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	w.U32(uint32(len(keys)))
	for _, k := range keys {
		w.U32(k)
		w.U32Slice(m[k])
	}
}

// IndexMapU32 reads a key→rows index map written by Writer.IndexMapU32.
func (r *Reader) IndexMapU32() map[uint32][]uint32 {
	size := r.sliceCount(8) // each entry carries at least key+count
	if r.err != nil {
		return nil
	}
	m := make(map[uint32][]uint32, size)
	for i := 0; i < size; i++ {
		k := r.U32()
		vs := r.U32Slice()
		if r.err != nil {
			return nil
		}
		m[k] = vs
	}
	return m
}

// IndexMapI32 writes a string-index-keyed map. The key is cast to u32 on
// the wire; -1 keys never occur (unknown names are simply absent).
func (w *Writer) IndexMapI32(m map[int32][]uint32) {
	keys := make([]int32, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	w.U32(uint32(len(keys)))
	for _, k := range keys {
		w.U32(uint32(k))
		w.U32Slice(m[k])
	}
}

// IndexMapI32 reads a map written by Writer.IndexMapI32.
func (r *Reader) IndexMapI32() map[int32][]uint32 {
	size := r.sliceCount(8) // each entry carries at least key+count
	if r.err != nil {
		return nil
	}
	m := make(map[int32][]uint32, size)
	for i := 0; i < size; i++ {
		k := int32(r.U32())
		vs := r.U32Slice()
		if r.err != nil {
			return nil
		}
		m[k] = vs
	}
	return m
}

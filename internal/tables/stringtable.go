// Package tables implements the columnar in-memory model: a deduplicating
// string arena plus entity, property, and quantity tables stored as
// parallel arrays of integer handles.
//
// Every table follows the same two-phase lifecycle: a mutable builder is
// populated in a single writer pass, then frozen into a read-only table.
// Frozen tables are never mutated again and are safe to share across
// concurrent readers without locks.
package tables

import (
	"fmt"

	"github.com/ifc-lite/modelstore/internal/binenc"
)

// StringTable is an append-only deduplicating string arena. Identical
// strings always resolve to the same index, and the index domain is dense
// (0..Len-1). It grows while the owning tables are built, then Freeze
// makes it read-only.
type StringTable struct {
	strs   []string
	index  map[string]int32
	frozen bool
}

// NewStringTable returns an empty arena.
func NewStringTable() *StringTable {
	return &StringTable{index: make(map[string]int32)}
}

// Intern returns the index for s, adding it to the arena if new.
// Interning into a frozen arena is a writer bug and panics.
func (t *StringTable) Intern(s string) int32 {
	if i, ok := t.index[s]; ok {
		return i
	}
	if t.frozen {
		panic("tables: intern on frozen string table")
	}
	i := int32(len(t.strs))
	t.strs = append(t.strs, s)
	t.index[s] = i
	return i
}

// internOpt interns s, mapping the empty string to the null handle -1.
func (t *StringTable) internOpt(s string) int32 {
	if s == "" {
		return -1
	}
	return t.Intern(s)
}

// Get returns the string at index i. The null handle -1 reads as "".
func (t *StringTable) Get(i int32) string {
	if i < 0 {
		return ""
	}
	return t.strs[i]
}

// Lookup is Get for indices read from a serialized payload: the arena
// is the only authority on which indices exist, so anything outside
// [-1, Len) is a structural defect, not a caller bug.
func (t *StringTable) Lookup(i int32) (string, error) {
	if i == -1 {
		return "", nil
	}
	if i < 0 || int(i) >= len(t.strs) {
		return "", fmt.Errorf("string index %d out of range (arena holds %d)", i, len(t.strs))
	}
	return t.strs[i], nil
}

// CheckColumn validates a decoded column of arena indices, where -1 is
// the null handle. Returns the first out-of-range index found.
func (t *StringTable) CheckColumn(column string, idxs []int32) error {
	for _, i := range idxs {
		if i == -1 {
			continue
		}
		if i < 0 || int(i) >= len(t.strs) {
			return fmt.Errorf("%s: string index %d out of range (arena holds %d)", column, i, len(t.strs))
		}
	}
	return nil
}

// IndexOf returns the index of s, or -1 if it was never interned.
func (t *StringTable) IndexOf(s string) int32 {
	if i, ok := t.index[s]; ok {
		return i
	}
	return -1
}

// Len returns the number of distinct strings in the arena.
func (t *StringTable) Len() int { return len(t.strs) }

// Freeze makes the arena read-only. Idempotent.
func (t *StringTable) Freeze() { t.frozen = true }

// EncodeBinary writes the Strings section payload: count, then each
// string length-prefixed, in index order.
func (t *StringTable) EncodeBinary(w *binenc.Writer) {
	w.U32(uint32(len(t.strs)))
	for _, s := range t.strs {
		w.String(s)
	}
}

// DecodeStringTable reads a Strings section payload. The returned arena
// is frozen; the dedupe index is rebuilt in the same pass.
func DecodeStringTable(r *binenc.Reader) (*StringTable, error) {
	n := int(r.U32())
	if err := r.Err(); err != nil {
		return nil, err
	}
	if n > r.Remaining() {
		return nil, fmt.Errorf("string table: count %d exceeds %d payload bytes", n, r.Remaining())
	}
	t := &StringTable{
		strs:  make([]string, 0, n),
		index: make(map[string]int32, n),
	}
	for i := 0; i < n; i++ {
		s := r.String()
		if err := r.Err(); err != nil {
			return nil, err
		}
		t.index[s] = int32(len(t.strs))
		t.strs = append(t.strs, s)
	}
	t.frozen = true
	return t, nil
}

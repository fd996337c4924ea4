// Package binenc provides the little-endian buffer primitives shared by
// every cache section codec. The Writer appends to a growable buffer; the
// Reader is bounds-checked with a sticky error, so decoders can run a
// straight-line sequence of reads and check Err once at the end.
package binenc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrShortBuffer reports a read past the end of the section payload.
var ErrShortBuffer = errors.New("binenc: read past end of buffer")

// Writer appends little-endian values to an in-memory buffer.
type Writer struct {
	buf []byte
}

// NewWriter returns a Writer with the given initial capacity hint.
func NewWriter(capHint int) *Writer {
	return &Writer{buf: make([]byte, 0, capHint)}
}

// Bytes returns the accumulated buffer.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

func (w *Writer) U8(v uint8) { w.buf = append(w.buf, v) }

func (w *Writer) U16(v uint16) {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}

func (w *Writer) U32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

func (w *Writer) U64(v uint64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
}

func (w *Writer) I32(v int32) { w.U32(uint32(v)) }

func (w *Writer) I64(v int64) { w.U64(uint64(v)) }

func (w *Writer) F64(v float64) { w.U64(math.Float64bits(v)) }

// Raw appends bytes verbatim, no length prefix.
func (w *Writer) Raw(p []byte) { w.buf = append(w.buf, p...) }

// Blob appends a u32 length prefix followed by the bytes.
func (w *Writer) Blob(p []byte) {
	w.U32(uint32(len(p)))
	w.Raw(p)
}

// String appends a u32 length prefix followed by the UTF-8 bytes.
func (w *Writer) String(s string) {
	w.U32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

// U32Slice appends a u32 count followed by the values.
func (w *Writer) U32Slice(vs []uint32) {
	w.U32(uint32(len(vs)))
	for _, v := range vs {
		w.U32(v)
	}
}

// U16Slice appends a u32 count followed by the values.
func (w *Writer) U16Slice(vs []uint16) {
	w.U32(uint32(len(vs)))
	for _, v := range vs {
		w.U16(v)
	}
}

// I32Slice appends a u32 count followed by the values.
func (w *Writer) I32Slice(vs []int32) {
	w.U32(uint32(len(vs)))
	for _, v := range vs {
		w.I32(v)
	}
}

// I64Slice appends a u32 count followed by the values.
func (w *Writer) I64Slice(vs []int64) {
	w.U32(uint32(len(vs)))
	for _, v := range vs {
		w.I64(v)
	}
}

// F64Slice appends a u32 count followed by the values.
func (w *Writer) F64Slice(vs []float64) {
	w.U32(uint32(len(vs)))
	for _, v := range vs {
		w.F64(v)
	}
}

// U8Slice appends a u32 count followed by the raw bytes.
func (w *Writer) U8Slice(vs []uint8) {
	w.U32(uint32(len(vs)))
	w.Raw(vs)
}

// Reader consumes little-endian values from a byte slice. The first
// out-of-bounds read latches an error; all subsequent reads return zero
// values. Callers check Err after decoding.
type Reader struct {
	buf []byte
	off int
	err error
}

// NewReader wraps p for reading. The reader never mutates p.
func NewReader(p []byte) *Reader { return &Reader{buf: p} }

// Err returns the sticky error, if any read ran past the buffer.
func (r *Reader) Err() error { return r.err }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.off }

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.off+n > len(r.buf) {
		r.err = fmt.Errorf("%w: need %d bytes at offset %d of %d", ErrShortBuffer, n, r.off, len(r.buf))
		return nil
	}
	p := r.buf[r.off : r.off+n]
	r.off += n
	return p
}

func (r *Reader) U8() uint8 {
	p := r.take(1)
	if p == nil {
		return 0
	}
	return p[0]
}

func (r *Reader) U16() uint16 {
	p := r.take(2)
	if p == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(p)
}

func (r *Reader) U32() uint32 {
	p := r.take(4)
	if p == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(p)
}

func (r *Reader) U64() uint64 {
	p := r.take(8)
	if p == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(p)
}

func (r *Reader) I32() int32 { return int32(r.U32()) }

func (r *Reader) I64() int64 { return int64(r.U64()) }

func (r *Reader) F64() float64 { return math.Float64frombits(r.U64()) }

// Blob reads a u32 length prefix and returns a copy of that many bytes.
func (r *Reader) Blob() []byte {
	n := int(r.U32())
	p := r.take(n)
	if p == nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, p)
	return out
}

// String reads a u32 length prefix and that many UTF-8 bytes.
func (r *Reader) String() string {
	n := int(r.U32())
	p := r.take(n)
	if p == nil {
		return ""
	}
	return string(p)
}

// sliceCount reads a u32 count prefix and verifies the declared payload
// fits in the unread bytes before any allocation happens. Counts are
// untrusted input; a corrupt prefix must not drive the allocator.
func (r *Reader) sliceCount(elemSize int) int {
	n := int(r.U32())
	if r.err != nil || n == 0 {
		return 0
	}
	if n*elemSize > r.Remaining() {
		r.err = fmt.Errorf("%w: count %d claims %d bytes, %d remain",
			ErrShortBuffer, n, n*elemSize, r.Remaining())
		return 0
	}
	return n
}

func (r *Reader) U32Slice() []uint32 {
	n := r.sliceCount(4)
	if n == 0 {
		return nil
	}
	vs := make([]uint32, n)
	for i := range vs {
		vs[i] = r.U32()
	}
	return vs
}

func (r *Reader) U16Slice() []uint16 {
	n := r.sliceCount(2)
	if n == 0 {
		return nil
	}
	vs := make([]uint16, n)
	for i := range vs {
		vs[i] = r.U16()
	}
	return vs
}

func (r *Reader) I32Slice() []int32 {
	n := r.sliceCount(4)
	if n == 0 {
		return nil
	}
	vs := make([]int32, n)
	for i := range vs {
		vs[i] = r.I32()
	}
	return vs
}

func (r *Reader) I64Slice() []int64 {
	n := r.sliceCount(8)
	if n == 0 {
		return nil
	}
	vs := make([]int64, n)
	for i := range vs {
		vs[i] = r.I64()
	}
	return vs
}

func (r *Reader) F64Slice() []float64 {
	n := r.sliceCount(8)
	if n == 0 {
		return nil
	}
	vs := make([]float64, n)
	for i := range vs {
		vs[i] = r.F64()
	}
	return vs
}

func (r *Reader) U8Slice() []uint8 {
	n := int(r.U32())
	p := r.take(n)
	if p == nil {
		return nil
	}
	out := make([]uint8, n)
	copy(out, p)
	return out
}

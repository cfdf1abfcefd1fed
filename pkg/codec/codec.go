// Package codec reads and writes the tagged little-endian records exchanged
// between ranks. Writers append to a growing buffer; readers walk a cursor
// over a received buffer and stop at the first malformed field, reporting it
// through Err.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrShortBuffer is reported when a field runs past the end of the buffer.
	ErrShortBuffer = errors.New("codec: short buffer")
	// ErrBadTag is reported when a record starts with an unexpected tag.
	ErrBadTag = errors.New("codec: unexpected record tag")
	// ErrBadLength is reported for negative or oversized length prefixes.
	ErrBadLength = errors.New("codec: bad length prefix")
)

// Tag identifies the kind of record that follows it.
type Tag uint8

// Writer appends fields to a byte buffer.
type Writer struct {
	buf []byte
}

// NewWriter returns a writer with room for sizeHint bytes.
func NewWriter(sizeHint int) *Writer {
	return &Writer{buf: make([]byte, 0, sizeHint)}
}

// Bytes returns the encoded buffer.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

// PutTag writes a one-byte record tag.
func (w *Writer) PutTag(t Tag) { w.buf = append(w.buf, byte(t)) }

// PutUint8 writes one byte.
func (w *Writer) PutUint8(v uint8) { w.buf = append(w.buf, v) }

// PutInt writes v as a signed 64-bit integer.
func (w *Writer) PutInt(v int) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, uint64(int64(v)))
}

// PutFloat64 writes the IEEE-754 bits of v.
func (w *Writer) PutFloat64(v float64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, math.Float64bits(v))
}

// PutFloat64s writes a length prefix followed by the values.
func (w *Writer) PutFloat64s(vs []float64) {
	w.PutInt(len(vs))
	for _, v := range vs {
		w.PutFloat64(v)
	}
}

// PutInts writes a length prefix followed by the values.
func (w *Writer) PutInts(vs []int) {
	w.PutInt(len(vs))
	for _, v := range vs {
		w.PutInt(v)
	}
}

// PutBytes writes a length prefix followed by b.
func (w *Writer) PutBytes(b []byte) {
	w.PutInt(len(b))
	w.buf = append(w.buf, b...)
}

// PutString writes a length-prefixed string.
func (w *Writer) PutString(s string) {
	w.PutInt(len(s))
	w.buf = append(w.buf, s...)
}

// Reader walks a cursor over an encoded buffer. After the first error every
// read returns a zero value.
type Reader struct {
	buf []byte
	off int
	err error
}

// NewReader returns a reader positioned at the start of b.
func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Err returns the first error encountered.
func (r *Reader) Err() error { return r.err }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.off }

// Done reports whether the buffer has been consumed without error.
func (r *Reader) Done() bool { return r.err == nil && r.off == len(r.buf) }

func (r *Reader) fail(err error, what string) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: %s at offset %d", err, what, r.off)
	}
}

func (r *Reader) take(n int, what string) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || n > r.Remaining() {
		r.fail(ErrShortBuffer, what)
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

// Tag reads a record tag.
func (r *Reader) Tag() Tag {
	b := r.take(1, "tag")
	if b == nil {
		return 0
	}
	return Tag(b[0])
}

// Expect reads a record tag and fails unless it equals want.
func (r *Reader) Expect(want Tag) {
	if got := r.Tag(); r.err == nil && got != want {
		r.fail(ErrBadTag, fmt.Sprintf("want %d, got %d", want, got))
	}
}

// Uint8 reads one byte.
func (r *Reader) Uint8() uint8 {
	b := r.take(1, "uint8")
	if b == nil {
		return 0
	}
	return b[0]
}

// Int reads a signed 64-bit integer.
func (r *Reader) Int() int {
	b := r.take(8, "int")
	if b == nil {
		return 0
	}
	return int(int64(binary.LittleEndian.Uint64(b)))
}

// Float64 reads one float.
func (r *Reader) Float64() float64 {
	b := r.take(8, "float64")
	if b == nil {
		return 0
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}

// Len reads a length prefix for elements of elemSize bytes and checks that
// the remaining buffer can hold them.
func (r *Reader) Len(elemSize int) int {
	n := r.Int()
	if r.err != nil {
		return 0
	}
	if n < 0 || (elemSize > 0 && n > r.Remaining()/elemSize) {
		r.fail(ErrBadLength, fmt.Sprintf("length %d", n))
		return 0
	}
	return n
}

// Float64s reads a length-prefixed float slice.
func (r *Reader) Float64s() []float64 {
	n := r.Len(8)
	if r.err != nil {
		return nil
	}
	vs := make([]float64, n)
	for i := range vs {
		vs[i] = r.Float64()
	}
	return vs
}

// Ints reads a length-prefixed int slice.
func (r *Reader) Ints() []int {
	n := r.Len(8)
	if r.err != nil {
		return nil
	}
	vs := make([]int, n)
	for i := range vs {
		vs[i] = r.Int()
	}
	return vs
}

// Bytes reads a length-prefixed byte slice. The result aliases the buffer.
func (r *Reader) Bytes() []byte {
	n := r.Len(1)
	return r.take(n, "bytes")
}

// String reads a length-prefixed string.
func (r *Reader) String() string {
	return string(r.Bytes())
}

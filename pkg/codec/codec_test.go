package codec

import (
	"errors"
	"math"
	"testing"
)

func TestWriterReader(t *testing.T) {
	w := NewWriter(64)
	w.PutTag(7)
	w.PutInt(-42)
	w.PutFloat64(math.Pi)
	w.PutFloat64s([]float64{1, 2.5, -3})
	w.PutInts([]int{4, 5})
	w.PutString("pressure")
	w.PutBytes(nil)

	r := NewReader(w.Bytes())
	r.Expect(7)
	if got := r.Int(); got != -42 {
		t.Errorf("Expected -42, got %d", got)
	}
	if got := r.Float64(); got != math.Pi {
		t.Errorf("Expected pi, got %v", got)
	}
	fs := r.Float64s()
	if len(fs) != 3 || fs[1] != 2.5 || fs[2] != -3 {
		t.Errorf("Expected [1 2.5 -3], got %v", fs)
	}
	is := r.Ints()
	if len(is) != 2 || is[0] != 4 || is[1] != 5 {
		t.Errorf("Expected [4 5], got %v", is)
	}
	if s := r.String(); s != "pressure" {
		t.Errorf("Expected pressure, got %q", s)
	}
	if b := r.Bytes(); len(b) != 0 {
		t.Errorf("Expected empty bytes, got %v", b)
	}
	if !r.Done() {
		t.Errorf("Expected reader to be done, err=%v remaining=%d", r.Err(), r.Remaining())
	}
}

func TestReaderShortBuffer(t *testing.T) {
	w := NewWriter(16)
	w.PutInt(3)
	r := NewReader(w.Bytes()[:5])
	_ = r.Int()
	if !errors.Is(r.Err(), ErrShortBuffer) {
		t.Fatalf("Expected ErrShortBuffer, got %v", r.Err())
	}
	// Errors are sticky.
	if v := r.Float64(); v != 0 {
		t.Errorf("Expected zero after error, got %v", v)
	}
}

func TestReaderBadLength(t *testing.T) {
	w := NewWriter(16)
	w.PutInt(1 << 40)
	r := NewReader(w.Bytes())
	if fs := r.Float64s(); fs != nil {
		t.Errorf("Expected nil slice, got %d values", len(fs))
	}
	if !errors.Is(r.Err(), ErrBadLength) {
		t.Errorf("Expected ErrBadLength, got %v", r.Err())
	}

	w = NewWriter(16)
	w.PutInt(-1)
	r = NewReader(w.Bytes())
	_ = r.Ints()
	if !errors.Is(r.Err(), ErrBadLength) {
		t.Errorf("Expected ErrBadLength for negative length, got %v", r.Err())
	}
}

func TestReaderBadTag(t *testing.T) {
	w := NewWriter(1)
	w.PutTag(2)
	r := NewReader(w.Bytes())
	r.Expect(3)
	if !errors.Is(r.Err(), ErrBadTag) {
		t.Errorf("Expected ErrBadTag, got %v", r.Err())
	}
}

package wasm

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

func TestLEB128uRoundTrip(t *testing.T) {
	values := []uint32{0, 1, 127, 128, 300, 16384, math.MaxUint32}
	for _, v := range values {
		var buf bytes.Buffer
		WriteLEB128u(&buf, v)
		got, err := ReadLEB128u(bytes.NewReader(buf.Bytes()))
		if err != nil {
			t.Fatalf("ReadLEB128u(%d): %v", v, err)
		}
		if got != v {
			t.Errorf("roundtrip %d: got %d", v, got)
		}
	}
}

func TestLEB128sRoundTrip(t *testing.T) {
	values := []int32{0, 1, -1, 63, 64, -64, -65, 127, 128, math.MaxInt32, math.MinInt32}
	for _, v := range values {
		var buf bytes.Buffer
		WriteLEB128s(&buf, v)
		got, err := ReadLEB128s(bytes.NewReader(buf.Bytes()))
		if err != nil {
			t.Fatalf("ReadLEB128s(%d): %v", v, err)
		}
		if got != v {
			t.Errorf("roundtrip %d: got %d", v, got)
		}
	}
}

func TestLEB128s64RoundTrip(t *testing.T) {
	values := []int64{0, -1, math.MaxInt64, math.MinInt64, 1 << 40, -(1 << 40)}
	for _, v := range values {
		var buf bytes.Buffer
		WriteLEB128s64(&buf, v)
		got, err := ReadLEB128s64(bytes.NewReader(buf.Bytes()))
		if err != nil {
			t.Fatalf("ReadLEB128s64(%d): %v", v, err)
		}
		if got != v {
			t.Errorf("roundtrip %d: got %d", v, got)
		}
	}
}

func TestLEB128Overflow(t *testing.T) {
	// six continuation bytes exceed the 32-bit width
	data := []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01}
	if _, err := ReadLEB128u(bytes.NewReader(data)); !errors.Is(err, ErrOverflow) {
		t.Errorf("expected ErrOverflow, got %v", err)
	}
	if _, err := ReadLEB128s(bytes.NewReader(data)); !errors.Is(err, ErrOverflow) {
		t.Errorf("expected ErrOverflow, got %v", err)
	}
}

func TestFloatRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	WriteFloat32(&buf, 3.5)
	WriteFloat64(&buf, -2.25)
	r := bytes.NewReader(buf.Bytes())
	f32, err := ReadFloat32(r)
	if err != nil || f32 != 3.5 {
		t.Errorf("ReadFloat32: got %v, %v", f32, err)
	}
	f64, err := ReadFloat64(r)
	if err != nil || f64 != -2.25 {
		t.Errorf("ReadFloat64: got %v, %v", f64, err)
	}
}

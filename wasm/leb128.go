package wasm

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
)

// ErrOverflow is returned when a LEB128 value exceeds its bit width.
var ErrOverflow = errors.New("leb128: overflow")

// ReadLEB128u reads an unsigned 32-bit LEB128 value.
func ReadLEB128u(r io.ByteReader) (uint32, error) {
	v, err := readUnsigned(r, 35)
	return uint32(v), err
}

// ReadLEB128u64 reads an unsigned 64-bit LEB128 value.
func ReadLEB128u64(r io.ByteReader) (uint64, error) {
	return readUnsigned(r, 70)
}

func readUnsigned(r io.ByteReader, maxShift uint) (uint64, error) {
	var result uint64
	var shift uint
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		result |= uint64(b&0x7F) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
		if shift >= maxShift {
			return 0, ErrOverflow
		}
	}
}

// ReadLEB128s reads a signed 32-bit LEB128 value.
func ReadLEB128s(r io.ByteReader) (int32, error) {
	v, err := readSigned(r, 32, 35)
	return int32(v), err
}

// ReadLEB128s64 reads a signed 64-bit LEB128 value.
func ReadLEB128s64(r io.ByteReader) (int64, error) {
	return readSigned(r, 64, 70)
}

func readSigned(r io.ByteReader, bits, maxShift uint) (int64, error) {
	var result int64
	var shift uint
	var b byte
	for {
		var err error
		b, err = r.ReadByte()
		if err != nil {
			return 0, err
		}
		result |= int64(b&0x7F) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
		if shift >= maxShift {
			return 0, ErrOverflow
		}
	}
	if shift < bits && b&0x40 != 0 {
		result |= -1 << shift
	}
	if bits == 32 {
		result = int64(int32(result))
	}
	return result, nil
}

// WriteLEB128u writes an unsigned 32-bit LEB128 value.
func WriteLEB128u(buf *bytes.Buffer, v uint32) {
	WriteLEB128u64(buf, uint64(v))
}

// WriteLEB128u64 writes an unsigned 64-bit LEB128 value.
func WriteLEB128u64(buf *bytes.Buffer, v uint64) {
	for {
		b := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		buf.WriteByte(b)
		if v == 0 {
			return
		}
	}
}

// WriteLEB128s writes a signed 32-bit LEB128 value.
func WriteLEB128s(buf *bytes.Buffer, v int32) {
	WriteLEB128s64(buf, int64(v))
}

// WriteLEB128s64 writes a signed 64-bit LEB128 value.
func WriteLEB128s64(buf *bytes.Buffer, v int64) {
	for {
		b := byte(v & 0x7F)
		v >>= 7
		done := (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0)
		if !done {
			b |= 0x80
		}
		buf.WriteByte(b)
		if done {
			return
		}
	}
}

// ReadFloat32 reads a little-endian IEEE 754 float32.
func ReadFloat32(r io.Reader) (float32, error) {
	var raw [4]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(raw[:])), nil
}

// ReadFloat64 reads a little-endian IEEE 754 float64.
func ReadFloat64(r io.Reader) (float64, error) {
	var raw [8]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(raw[:])), nil
}

// WriteFloat32 writes a little-endian IEEE 754 float32.
func WriteFloat32(buf *bytes.Buffer, v float32) {
	var raw [4]byte
	binary.LittleEndian.PutUint32(raw[:], math.Float32bits(v))
	buf.Write(raw[:])
}

// WriteFloat64 writes a little-endian IEEE 754 float64.
func WriteFloat64(buf *bytes.Buffer, v float64) {
	var raw [8]byte
	binary.LittleEndian.PutUint64(raw[:], math.Float64bits(v))
	buf.Write(raw[:])
}

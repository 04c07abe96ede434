package binary

import (
	"bytes"
	"encoding/binary"
	"math"

	mlerrors "github.com/tdrkit/mldec/errors"
)

// Reader is a bounds-checked cursor over an in-memory buffer. All
// multi-byte reads are little-endian, matching the toolchain that
// produced the blobs. A failed read reports the attempted position and
// length and does not advance the cursor.
type Reader struct {
	data []byte
	pos  int64
}

// NewReader creates a Reader over data, positioned at the start.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Position returns the current byte position.
func (r *Reader) Position() int64 {
	return r.pos
}

// Len returns the total buffer length.
func (r *Reader) Len() int64 {
	return int64(len(r.data))
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int64 {
	return int64(len(r.data)) - r.pos
}

// SeekTo moves the cursor to an absolute position within the buffer.
func (r *Reader) SeekTo(off int64) error {
	if off < 0 || off > int64(len(r.data)) {
		return mlerrors.UnexpectedEOF(off, 0)
	}
	r.pos = off
	return nil
}

func (r *Reader) take(n int) ([]byte, error) {
	if n < 0 || r.pos+int64(n) > int64(len(r.data)) {
		return nil, mlerrors.UnexpectedEOF(r.pos, n)
	}
	b := r.data[r.pos : r.pos+int64(n)]
	r.pos += int64(n)
	return b, nil
}

// Peek returns the next n bytes without advancing.
func (r *Reader) Peek(n int) ([]byte, error) {
	if n < 0 || r.pos+int64(n) > int64(len(r.data)) {
		return nil, mlerrors.UnexpectedEOF(r.pos, n)
	}
	return r.data[r.pos : r.pos+int64(n)], nil
}

// ReadBytes reads exactly n bytes.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	b, err := r.take(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// ReadU8 reads a single byte.
func (r *Reader) ReadU8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadU16 reads a little-endian uint16.
func (r *Reader) ReadU16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// ReadU32 reads a little-endian uint32.
func (r *Reader) ReadU32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadU64 reads a little-endian uint64.
func (r *Reader) ReadU64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// ReadI8 reads a signed byte.
func (r *Reader) ReadI8() (int8, error) {
	v, err := r.ReadU8()
	return int8(v), err
}

// ReadI16 reads a little-endian int16.
func (r *Reader) ReadI16() (int16, error) {
	v, err := r.ReadU16()
	return int16(v), err
}

// ReadI32 reads a little-endian int32.
func (r *Reader) ReadI32() (int32, error) {
	v, err := r.ReadU32()
	return int32(v), err
}

// ReadI64 reads a little-endian int64.
func (r *Reader) ReadI64() (int64, error) {
	v, err := r.ReadU64()
	return int64(v), err
}

// ReadF32 reads a little-endian float32.
func (r *Reader) ReadF32() (float32, error) {
	v, err := r.ReadU32()
	return math.Float32frombits(v), err
}

// ReadF64 reads a little-endian float64.
func (r *Reader) ReadF64() (float64, error) {
	v, err := r.ReadU64()
	return math.Float64frombits(v), err
}

// ReadFixedString reads an n-byte buffer and truncates it at the first
// NUL, the layout used for the 128-byte metalib name field.
func (r *Reader) ReadFixedString(n int) (string, error) {
	b, err := r.take(n)
	if err != nil {
		return "", err
	}
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b), nil
}

// Skip advances the cursor by n bytes, validating bounds like a read.
func (r *Reader) Skip(n int) error {
	_, err := r.take(n)
	return err
}

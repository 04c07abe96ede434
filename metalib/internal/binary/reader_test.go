package binary

import (
	"errors"
	"testing"

	mlerrors "github.com/tdrkit/mldec/errors"
)

func TestReadLittleEndian(t *testing.T) {
	r := NewReader([]byte{
		0x01,
		0x02, 0x03,
		0x04, 0x05, 0x06, 0x07,
		0xFF, 0xFF, 0xFF, 0xFF,
	})

	if v, err := r.ReadU8(); err != nil || v != 0x01 {
		t.Fatalf("ReadU8 = %v, %v", v, err)
	}
	if v, err := r.ReadU16(); err != nil || v != 0x0302 {
		t.Fatalf("ReadU16 = %#x, %v", v, err)
	}
	if v, err := r.ReadU32(); err != nil || v != 0x07060504 {
		t.Fatalf("ReadU32 = %#x, %v", v, err)
	}
	if v, err := r.ReadI32(); err != nil || v != -1 {
		t.Fatalf("ReadI32 = %d, %v", v, err)
	}
	if r.Remaining() != 0 {
		t.Fatalf("expected exhausted reader, %d left", r.Remaining())
	}
}

func TestReadPastEndReportsOffset(t *testing.T) {
	r := NewReader([]byte{0x01, 0x02, 0x03})
	if err := r.Skip(2); err != nil {
		t.Fatal(err)
	}

	_, err := r.ReadU32()
	if err == nil {
		t.Fatal("expected error reading past end")
	}
	var me *mlerrors.Error
	if !errors.As(err, &me) {
		t.Fatalf("expected structured error, got %T", err)
	}
	if me.Kind != mlerrors.KindUnexpectedEOF {
		t.Errorf("kind = %s", me.Kind)
	}
	if me.Offset != 2 {
		t.Errorf("offset = %d, want 2 (position of the failed read)", me.Offset)
	}
	if r.Position() != 2 {
		t.Errorf("failed read must not advance, position = %d", r.Position())
	}
}

func TestSeekBounds(t *testing.T) {
	r := NewReader(make([]byte, 8))
	if err := r.SeekTo(8); err != nil {
		t.Errorf("seek to end should succeed: %v", err)
	}
	if err := r.SeekTo(9); err == nil {
		t.Error("seek past end should fail")
	}
	if err := r.SeekTo(-1); err == nil {
		t.Error("negative seek should fail")
	}
}

func TestPeekDoesNotAdvance(t *testing.T) {
	r := NewReader([]byte{0xAA, 0xBB})
	b, err := r.Peek(2)
	if err != nil {
		t.Fatal(err)
	}
	if b[0] != 0xAA || b[1] != 0xBB {
		t.Errorf("peek = % x", b)
	}
	if r.Position() != 0 {
		t.Errorf("peek advanced to %d", r.Position())
	}
}

func TestReadFixedString(t *testing.T) {
	r := NewReader([]byte{'P', 'k', 'g', 0, 0xCC, 0xCC, 0xCC, 0xCC})
	s, err := r.ReadFixedString(8)
	if err != nil {
		t.Fatal(err)
	}
	if s != "Pkg" {
		t.Errorf("string = %q", s)
	}
	if r.Position() != 8 {
		t.Errorf("fixed read must consume the whole field, position = %d", r.Position())
	}
}

func TestReadBytesCopies(t *testing.T) {
	src := []byte{1, 2, 3, 4}
	r := NewReader(src)
	b, err := r.ReadBytes(4)
	if err != nil {
		t.Fatal(err)
	}
	b[0] = 9
	if src[0] != 1 {
		t.Error("ReadBytes must return a copy")
	}
}

package metalib

import (
	"errors"
	"testing"

	mlerrors "github.com/tdrkit/mldec/errors"
)

func stringsFixture() ([]byte, Header) {
	// Four bytes of record space, then "hi\0" and GBK "中文\0".
	body := []byte{0, 0, 0, 0, 'h', 'i', 0, 0xD6, 0xD0, 0xCE, 0xC4, 0}
	hdr := Header{StrBufOff: 4, FreeStrBufOff: uint32(len(body))}
	return body, hdr
}

func TestStringTableResolve(t *testing.T) {
	body, hdr := stringsFixture()
	st := newStringTable(body, hdr)

	tests := []struct {
		name string
		off  int32
		want string
	}{
		{"ascii", 4, "hi"},
		{"mid string", 5, "i"},
		{"gbk", 7, "中文"},
		{"absent", None, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := st.resolve(tt.off)
			if err != nil {
				t.Fatalf("resolve(%d): %v", tt.off, err)
			}
			if got != tt.want {
				t.Fatalf("resolve(%d) = %q, want %q", tt.off, got, tt.want)
			}
		})
	}
}

func TestStringTableRejectsOffsets(t *testing.T) {
	body, hdr := stringsFixture()
	st := newStringTable(body, hdr)

	for _, off := range []int32{0, 3, int32(len(body)), 9999, -7} {
		_, err := st.resolve(off)
		var me *mlerrors.Error
		if !errors.As(err, &me) || me.Kind != mlerrors.KindInvalidStringOff {
			t.Fatalf("resolve(%d) = %v, want invalid string offset", off, err)
		}
	}
}

func TestStringTableUnterminated(t *testing.T) {
	body := []byte{'a', 'b'}
	st := newStringTable(body, Header{})

	_, err := st.resolve(0)
	var me *mlerrors.Error
	if !errors.As(err, &me) || me.Kind != mlerrors.KindInvalidStringOff {
		t.Fatalf("resolve = %v, want invalid string offset", err)
	}
}

func TestStringTableFallbackRegion(t *testing.T) {
	// Zeroed header fields mean the whole body is addressable.
	body := []byte{'o', 'k', 0}
	st := newStringTable(body, Header{})

	got, err := st.resolve(0)
	if err != nil || got != "ok" {
		t.Fatalf("resolve = %q, %v", got, err)
	}
}

func TestStringTableMemoizes(t *testing.T) {
	body, hdr := stringsFixture()
	st := newStringTable(body, hdr)

	if _, err := st.resolve(4); err != nil {
		t.Fatal(err)
	}
	// Corrupt the backing bytes; the cached resolution must survive.
	body[4] = 0xFF
	got, err := st.resolve(4)
	if err != nil || got != "hi" {
		t.Fatalf("resolve after mutation = %q, %v", got, err)
	}
}

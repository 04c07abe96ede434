package metalib

import (
	"bytes"
	"errors"

	"golang.org/x/text/encoding/simplifiedchinese"

	mlerrors "github.com/tdrkit/mldec/errors"
)

var errUnterminated = errors.New("unterminated string")

// stringTable resolves null-terminated GBK strings addressed by byte
// offset into the blob body. Results are memoized for the lifetime of
// the decode session, so two references to the same offset yield the
// identical name. Resolution never mutates the underlying bytes.
type stringTable struct {
	body  []byte
	start int64
	end   int64
	cache map[int32]string
}

func newStringTable(body []byte, hdr Header) *stringTable {
	start, end := int64(hdr.StrBufOff), int64(hdr.FreeStrBufOff)
	if start <= 0 || end <= start || end > int64(len(body)) {
		// Header does not delimit a usable string region; some packers
		// zero these fields. Fall back to the whole body.
		start, end = 0, int64(len(body))
	}
	return &stringTable{
		body:  body,
		start: start,
		end:   end,
		cache: make(map[int32]string),
	}
}

// resolve returns the string at off. The sentinel offset None yields "".
func (t *stringTable) resolve(off int32) (string, error) {
	if off == None {
		return "", nil
	}
	if s, ok := t.cache[off]; ok {
		return s, nil
	}

	o := int64(off)
	if o < t.start || o >= t.end {
		return "", mlerrors.InvalidStringOffset(o, nil)
	}

	raw := t.body[o:t.end]
	nul := bytes.IndexByte(raw, 0)
	if nul < 0 {
		return "", mlerrors.InvalidStringOffset(o, errUnterminated)
	}

	s, err := decodeGBK(raw[:nul])
	if err != nil {
		return "", mlerrors.InvalidStringOffset(o, err)
	}

	t.cache[off] = s
	return s, nil
}

// decodeGBK converts GBK bytes to a Go string. Plain ASCII passes
// through unchanged; the original toolchain stores Chinese names and
// descriptions in GBK.
func decodeGBK(raw []byte) (string, error) {
	ascii := true
	for _, b := range raw {
		if b >= 0x80 {
			ascii = false
			break
		}
	}
	if ascii {
		return string(raw), nil
	}
	out, err := simplifiedchinese.GBK.NewDecoder().Bytes(raw)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

package scan

import (
	"bytes"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	mlerrors "github.com/tdrkit/mldec/errors"
	"github.com/tdrkit/mldec/metalib"
)

// Candidate is one plausible blob position found in a host file: a
// validated header plus where it starts. Decoding the tables behind it
// may still fail; a candidate only promises the header checks out.
type Candidate struct {
	Offset    int64
	Name      string
	Size      uint32
	Build     uint16
	Platform  uint32
	TagSet    uint32
	Metas     int32
	Macros    int32
	Truncated bool // declared size runs past the host data
}

// magicBytes is the header signature in wire order.
var magicBytes = []byte{byte(metalib.Magic & 0xFF), byte(metalib.Magic >> 8)}

// Bytes scans data for embedded blobs. Every signature hit is probed
// with a full header decode; hits that fail validation are skipped, so
// stray signature bytes in unrelated data produce no candidates.
func Bytes(data []byte) []Candidate {
	var out []Candidate
	for at := int64(0); ; {
		i := bytes.Index(data[at:], magicBytes)
		if i < 0 {
			break
		}
		off := at + int64(i)
		at = off + 1

		hdr, err := metalib.ParseHeader(data, off)
		if err != nil {
			Logger().Debug("signature without valid header",
				zap.Int64("offset", off), zap.Error(err))
			continue
		}
		out = append(out, Candidate{
			Offset:    off,
			Name:      hdr.Name,
			Size:      hdr.Size,
			Build:     hdr.Build,
			Platform:  hdr.Platform,
			TagSet:    hdr.TagSetVersion,
			Metas:     hdr.CurMetaNum,
			Macros:    hdr.CurMacroNum,
			Truncated: off+int64(hdr.Size) > int64(len(data)),
		})
	}
	return out
}

// File loads path, transparently decompressing gzip, and scans the
// content. The returned bytes are the scanned (decompressed) data, so
// candidate offsets index into them directly.
func File(path string) ([]byte, []Candidate, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, mlerrors.Wrap(mlerrors.PhaseScan, mlerrors.KindInvalidData, err, "reading "+path)
	}
	data, err := maybeGunzip(raw)
	if err != nil {
		return nil, nil, mlerrors.Wrap(mlerrors.PhaseScan, mlerrors.KindInvalidData, err, "decompressing "+path)
	}

	found := Bytes(data)
	Logger().Debug("scanned file",
		zap.String("path", path),
		zap.Int("bytes", len(data)),
		zap.Int("candidates", len(found)))
	return data, found, nil
}

func maybeGunzip(raw []byte) ([]byte, error) {
	if len(raw) < 2 || raw[0] != 0x1f || raw[1] != 0x8b {
		return raw, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

package mldec

import (
	"context"

	"github.com/tdrkit/mldec/metalib"
	"github.com/tdrkit/mldec/render"
	"github.com/tdrkit/mldec/scan"
)

// Decode parses the blob starting at offset within data.
func Decode(data []byte, offset int64) (*metalib.Lib, error) {
	return metalib.Parse(data, offset)
}

// DecodeFirst scans data for embedded blobs and decodes the first one.
func DecodeFirst(data []byte) (*metalib.Lib, error) {
	candidates := scan.Bytes(data)
	if len(candidates) == 0 {
		_, err := metalib.ParseHeader(data, 0)
		return nil, err
	}
	return metalib.Parse(data, candidates[0].Offset)
}

// Schema renders lib as its flat schema document.
func Schema(lib *metalib.Lib) *render.Node {
	return render.Metalib(lib)
}

// Types renders every top-level type of lib structurally.
func Types(ctx context.Context, lib *metalib.Lib) ([]*render.TypeTree, error) {
	return render.All(ctx, lib)
}

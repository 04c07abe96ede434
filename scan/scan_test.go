package scan_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tdrkit/mldec/metalib"
	"github.com/tdrkit/mldec/metalib/metatest"
	"github.com/tdrkit/mldec/scan"
)

func sampleBlob(t *testing.T, name string) []byte {
	t.Helper()
	b := metatest.New(name)
	b.Struct("Point",
		metatest.Field{Name: "x", Prim: "int"},
		metatest.Field{Name: "y", Prim: "int"},
	)
	return b.Build()
}

// filler returns n bytes free of the blob signature.
func filler(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i % 7)
	}
	return out
}

func TestBytesFindsEmbedded(t *testing.T) {
	blob := sampleBlob(t, "embedded")

	host := append([]byte{}, filler(100)...)
	host = append(host, blob...)
	host = append(host, filler(33)...)

	found := scan.Bytes(host)
	require.Len(t, found, 1)
	c := found[0]
	assert.Equal(t, int64(100), c.Offset)
	assert.Equal(t, "embedded", c.Name)
	assert.Equal(t, int32(1), c.Metas)
	assert.False(t, c.Truncated)

	// A candidate must decode from its reported offset.
	lib, err := metalib.Parse(host, c.Offset)
	require.NoError(t, err)
	assert.Equal(t, "embedded", lib.Header.Name)
}

func TestBytesFindsMultiple(t *testing.T) {
	one := sampleBlob(t, "one")
	two := sampleBlob(t, "two")

	host := append([]byte{}, one...)
	host = append(host, filler(11)...)
	host = append(host, two...)

	found := scan.Bytes(host)
	require.Len(t, found, 2)
	assert.Equal(t, "one", found[0].Name)
	assert.Equal(t, "two", found[1].Name)
	assert.Greater(t, found[1].Offset, found[0].Offset)
}

func TestBytesSkipsFalsePositives(t *testing.T) {
	// Raw signature bytes with garbage behind them must not surface.
	host := append([]byte{0x4D, 0x4C}, filler(64)...)
	assert.Empty(t, scan.Bytes(host))
}

func TestBytesMarksTruncated(t *testing.T) {
	blob := sampleBlob(t, "cut")
	host := blob[:len(blob)-10]

	found := scan.Bytes(host)
	require.Len(t, found, 1)
	assert.True(t, found[0].Truncated)
}

func TestFilePlain(t *testing.T) {
	blob := sampleBlob(t, "onfile")
	path := filepath.Join(t.TempDir(), "lib.bin")
	require.NoError(t, os.WriteFile(path, blob, 0o644))

	data, found, err := scan.File(path)
	require.NoError(t, err)
	assert.Equal(t, blob, data)
	require.Len(t, found, 1)
	assert.Equal(t, "onfile", found[0].Name)
}

func TestFileGzip(t *testing.T) {
	blob := sampleBlob(t, "zipped")

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(blob)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	path := filepath.Join(t.TempDir(), "lib.bin.gz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	data, found, err := scan.File(path)
	require.NoError(t, err)
	assert.Equal(t, blob, data, "offsets index the decompressed bytes")
	require.Len(t, found, 1)
	assert.Equal(t, "zipped", found[0].Name)
}

func TestFileMissing(t *testing.T) {
	_, _, err := scan.File(filepath.Join(t.TempDir(), "absent.bin"))
	require.Error(t, err)
}

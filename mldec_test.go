package mldec_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tdrkit/mldec"
	"github.com/tdrkit/mldec/metalib/metatest"
)

func TestDecodeFirst(t *testing.T) {
	b := metatest.New("facade")
	b.Struct("Pair",
		metatest.Field{Name: "a", Prim: "int"},
		metatest.Field{Name: "b", Prim: "int"},
	)
	blob := b.Build()

	host := append(make([]byte, 21), blob...)
	lib, err := mldec.DecodeFirst(host)
	require.NoError(t, err)
	assert.Equal(t, "facade", lib.Header.Name)

	doc := mldec.Schema(lib)
	assert.Equal(t, "metalib", doc.Name)

	trees, err := mldec.Types(context.Background(), lib)
	require.NoError(t, err)
	require.Len(t, trees, 1)
	assert.Equal(t, "Pair", trees[0].Node.Attr("name"))
}

func TestDecodeFirstEmpty(t *testing.T) {
	_, err := mldec.DecodeFirst(make([]byte, 64))
	require.Error(t, err)
}

package render_test

import (
	"bytes"
	"context"
	"encoding/xml"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tdrkit/mldec/metalib"
	"github.com/tdrkit/mldec/metalib/metatest"
	"github.com/tdrkit/mldec/render"
)

func sampleLib(t *testing.T) *metalib.Lib {
	t.Helper()
	b := metatest.New("sample")
	b.Macro("MAX_ITEMS", 8).Macro("RED", 0).Macro("GREEN", 1)
	b.Group("Color", "RED", "GREEN")
	b.Struct("Node",
		metatest.Field{Name: "value", Prim: "int"},
		metatest.Field{Name: "next", Meta: "Node", Pointer: true},
	)
	b.Struct("Box",
		metatest.Field{Name: "items", Prim: "int", Count: 8, CountRef: "MAX_ITEMS"},
		metatest.Field{Name: "head", Meta: "Node", Pointer: true},
		metatest.Field{Name: "label", Prim: "string", CustomSize: 16, Desc: `has "quotes" & <brackets>`},
	).WithDesc("container")

	lib, err := metalib.Parse(b.Build(), 0)
	require.NoError(t, err)
	return lib
}

func childrenNamed(n *render.Node, name string) []*render.Node {
	var out []*render.Node
	for _, c := range n.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

func TestMetalibFlat(t *testing.T) {
	lib := sampleLib(t)
	doc := render.Metalib(lib)

	require.Equal(t, "metalib", doc.Name)
	assert.Equal(t, "sample", doc.Attr("name"))
	assert.Equal(t, "3", doc.Attr("tagsetversion"))

	// Grouped macros render inside their group only.
	macros := childrenNamed(doc, "macro")
	require.Len(t, macros, 1)
	assert.Equal(t, "MAX_ITEMS", macros[0].Attr("name"))
	assert.Equal(t, "8", macros[0].Attr("value"))

	groups := childrenNamed(doc, "macrosgroup")
	require.Len(t, groups, 1)
	assert.Equal(t, "Color", groups[0].Attr("name"))
	require.Len(t, groups[0].Children, 2)

	structs := childrenNamed(doc, "struct")
	require.Len(t, structs, 2)

	node := structs[0]
	assert.Equal(t, "Node", node.Attr("name"))
	next := node.Children[1]
	assert.Equal(t, "entry", next.Name)
	assert.Equal(t, "*Node", next.Attr("type"), "pointer fields render with the * prefix")
	assert.Equal(t, "", next.Attr("count"))

	box := structs[1]
	assert.Equal(t, "container", box.Attr("desc"))
	items := box.Children[0]
	assert.Equal(t, "int", items.Attr("type"))
	assert.Equal(t, "MAX_ITEMS", items.Attr("count"), "macro-bound lengths render symbolically")
	label := box.Children[2]
	assert.Equal(t, "16", label.Attr("size"))
}

// TestMetalibAttributeVocabulary pins the exact attribute names the
// schema compiler accepts; renames here break the round trip.
func TestMetalibAttributeVocabulary(t *testing.T) {
	b := metatest.New("vocab")
	b.Macro("RED", 0).Macro("GREEN", 1)
	b.Group("Color", "RED", "GREEN")
	b.Struct("Rec",
		metatest.Field{Name: "color", Prim: "int", MacrosGroup: "Color"},
		metatest.Field{Name: "retries", Prim: "int", HasDefault: true, DefaultInt: 9},
		metatest.Field{Name: "scores", Prim: "int", Count: 4, Sort: 1},
	)
	b.Union("Any",
		metatest.Field{Name: "i", Prim: "int"},
		metatest.Field{Name: "b", Prim: "byte"},
	)
	lib, err := metalib.Parse(b.Build(), 0)
	require.NoError(t, err)

	doc := render.Metalib(lib)
	assert.Equal(t, "1", doc.Attr("id"), "library id surfaces on the root")

	rec := childrenNamed(doc, "struct")[0]
	entries := rec.Children
	assert.Equal(t, "Color", entries[0].Attr("bindmacrosgroup"))
	assert.Equal(t, "9", entries[1].Attr("default"))
	assert.Equal(t, "asc", entries[2].Attr("sortMethod"))

	// Layout attributes belong to structs; a union element carries none.
	unions := childrenNamed(doc, "union")
	require.Len(t, unions, 1)
	for _, a := range unions[0].Attrs {
		switch a.Key {
		case "size", "align", "versionindicator", "sizeinfo", "sortkey":
			t.Errorf("union element carries struct layout attribute %q", a.Key)
		}
	}
}

func TestWriteXMLWellFormed(t *testing.T) {
	lib := sampleLib(t)
	doc := render.Metalib(lib)

	var buf bytes.Buffer
	require.NoError(t, render.WriteXML(&buf, doc))

	// Escaped output must survive a strict re-parse.
	dec := xml.NewDecoder(bytes.NewReader(buf.Bytes()))
	var rootSeen bool
	var labelDesc string
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if se.Name.Local == "metalib" {
			rootSeen = true
		}
		for _, a := range se.Attr {
			if a.Name.Local == "desc" && se.Name.Local == "entry" {
				labelDesc = a.Value
			}
		}
	}
	assert.True(t, rootSeen)
	assert.Equal(t, `has "quotes" & <brackets>`, labelDesc)
}

func TestTypeCycleBackRef(t *testing.T) {
	lib := sampleLib(t)
	node, ok := lib.Lookup("Node")
	require.True(t, ok)

	tree, err := render.Type(lib, node.ID)
	require.NoError(t, err)
	require.Equal(t, 1, tree.BackRefs, "self reference cut exactly once")

	// Node -> field next -> pointer -> backref.
	next := tree.Node.Children[1]
	ptr := next.Children[0]
	require.Equal(t, "pointer", ptr.Name)
	back := ptr.Children[0]
	require.Equal(t, "backref", back.Name)
	assert.Equal(t, "Node", back.Attr("type"))
}

func TestTypeSiblingsNotBackRefs(t *testing.T) {
	// The guard tracks the active path, not everything visited: two
	// sibling fields of the same composite both expand fully.
	b := metatest.New("twice")
	b.Struct("Inner", metatest.Field{Name: "v", Prim: "int"})
	b.Struct("Outer",
		metatest.Field{Name: "a", Meta: "Inner"},
		metatest.Field{Name: "b", Meta: "Inner"},
	)
	lib, err := metalib.Parse(b.Build(), 0)
	require.NoError(t, err)

	outer, _ := lib.Lookup("Outer")
	tree, err := render.Type(lib, outer.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, tree.BackRefs)
	for _, f := range tree.Node.Children {
		inner := f.Children[0]
		assert.Equal(t, "struct", inner.Name)
		assert.Equal(t, "Inner", inner.Attr("name"))
	}
}

func TestByNameUnknown(t *testing.T) {
	lib := sampleLib(t)
	_, err := render.ByName(lib, "NoSuchType")
	require.Error(t, err)
}

func TestAllMatchesSequential(t *testing.T) {
	lib := sampleLib(t)

	trees, err := render.All(context.Background(), lib)
	require.NoError(t, err)
	require.Len(t, trees, len(lib.Roots()))

	for i, id := range lib.Roots() {
		want, err := render.Type(lib, id)
		require.NoError(t, err)
		assert.Equal(t, want, trees[i], "root %d differs from sequential render", i)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	lib := sampleLib(t)
	doc := render.Metalib(lib)

	raw, err := render.JSON(doc)
	require.NoError(t, err)

	var back render.Node
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, doc.Name, back.Name)
	assert.Equal(t, len(doc.Children), len(back.Children))
	assert.Equal(t, doc.Attr("name"), back.Attr("name"))
}

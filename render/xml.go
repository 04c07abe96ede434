package render

import (
	"bufio"
	"encoding/xml"
	"io"
	"strconv"

	"github.com/tdrkit/mldec/metalib"
)

// Metalib renders lib as a flat schema document: one element per macro,
// macro group and composite, with fields as entry elements referencing
// their types by name. This mirrors the XML the schema compiler
// consumed, so the output round-trips through the original toolchain.
func Metalib(lib *metalib.Lib) *Node {
	root := &Node{Name: "metalib"}
	root.attr("tagsetversion", strconv.FormatUint(uint64(lib.Header.TagSetVersion), 10))
	root.attr("name", lib.Header.Name)
	root.attr("version", strconv.FormatUint(uint64(lib.Header.Version), 10))
	if lib.Header.ID != -1 {
		root.attr("id", strconv.FormatInt(int64(lib.Header.ID), 10))
	}

	for _, m := range lib.Macros {
		if m.Grouped {
			continue
		}
		root.child(macroNode(m.EnumValue))
	}
	for _, id := range lib.Groups() {
		d, _ := lib.Get(id)
		g := root.child(&Node{Name: "macrosgroup"})
		g.attr("name", d.Name)
		g.attr("desc", d.Enum.Desc)
		for _, v := range d.Enum.Values {
			g.child(macroNode(v))
		}
	}
	for _, id := range lib.Roots() {
		d, _ := lib.Get(id)
		root.child(compositeNode(lib, d))
	}
	return root
}

func macroNode(v metalib.EnumValue) *Node {
	n := &Node{Name: "macro"}
	n.attr("name", v.Name)
	n.attr("value", strconv.FormatInt(int64(v.Value), 10))
	n.attr("desc", v.Desc)
	return n
}

func compositeNode(lib *metalib.Lib, d *metalib.TypeDesc) *Node {
	n := &Node{Name: d.Kind.String()} // "struct" or "union"
	st := d.Struct
	n.attr("name", d.Name)
	n.attr("version", st.Version)
	n.attr("id", st.IDAttr)
	n.attr("cname", st.ChineseName)
	n.attr("desc", st.Desc)
	// Layout attributes apply to structs only; union members all start
	// at offset zero.
	if d.Kind == metalib.KindStruct {
		n.attr("size", st.CustomSize)
		if st.CustomAlign > 1 {
			n.attr("align", strconv.FormatInt(int64(st.CustomAlign), 10))
		}
		n.attr("versionindicator", st.VersionIndicator)
		n.attr("sizeinfo", st.SizeInfo)
		n.attr("sortkey", st.SortKey)
	}

	for i := range st.Fields {
		n.child(entryNode(lib, &st.Fields[i]))
	}
	return n
}

func entryNode(lib *metalib.Lib, f *metalib.FieldDesc) *Node {
	n := &Node{Name: "entry"}
	n.attr("name", f.Name)

	typ, count := fieldType(lib, f.Type)
	n.attr("type", typ)
	n.attr("count", count)
	n.attr("version", f.Version)
	n.attr("id", f.IDAttr)
	n.attr("size", f.CustomSize)
	n.attr("cname", f.ChineseName)
	n.attr("desc", f.Desc)
	if f.Unique {
		n.attr("unique", "true")
	}
	if f.NotNull {
		n.attr("notnull", "true")
	}
	n.attr("refer", f.Refer)
	if f.HasDefault {
		n.attr("default", f.Default)
	}
	n.attr("sizeinfo", f.SizeInfo)
	n.attr("sortMethod", f.SortMethod)
	n.attr("io", f.IOMode)
	n.attr("select", f.Select)
	n.attr("minid", f.MinID)
	n.attr("maxid", f.MaxID)
	n.attr("bindmacrosgroup", f.MacrosGroup)
	return n
}

// fieldType flattens a field's wrapper chain to the schema type syntax:
// "*" marks pointers, "@" marks refer aliases, and the outermost array
// surfaces as the count attribute.
func fieldType(lib *metalib.Lib, id metalib.ID) (typ, count string) {
	for {
		d, ok := lib.Get(id)
		if !ok {
			return "", count
		}
		switch d.Kind {
		case metalib.KindArray:
			if count == "" {
				if d.Array.CountRef != "" {
					count = d.Array.CountRef
				} else {
					count = strconv.FormatInt(int64(d.Array.Count), 10)
				}
			}
			id = d.Array.Elem
		case metalib.KindPointer:
			typ += "*"
			id = d.Target
		case metalib.KindAlias:
			typ += "@"
			id = d.Target
		case metalib.KindBitfield:
			id = d.Bits.Storage
		default:
			return typ + d.Name, count
		}
	}
}

// WriteXML writes n as indented XML. Attribute values are escaped;
// childless elements self-close.
func WriteXML(w io.Writer, n *Node) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(xml.Header); err != nil {
		return err
	}
	if err := writeNode(bw, n, 0); err != nil {
		return err
	}
	return bw.Flush()
}

func writeNode(bw *bufio.Writer, n *Node, depth int) error {
	for i := 0; i < depth; i++ {
		bw.WriteString("  ")
	}
	bw.WriteByte('<')
	bw.WriteString(n.Name)
	for _, a := range n.Attrs {
		bw.WriteByte(' ')
		bw.WriteString(a.Key)
		bw.WriteString(`="`)
		if err := xml.EscapeText(bw, []byte(a.Value)); err != nil {
			return err
		}
		bw.WriteByte('"')
	}
	if len(n.Children) == 0 {
		_, err := bw.WriteString("/>\n")
		return err
	}
	bw.WriteString(">\n")
	for _, c := range n.Children {
		if err := writeNode(bw, c, depth+1); err != nil {
			return err
		}
	}
	for i := 0; i < depth; i++ {
		bw.WriteString("  ")
	}
	bw.WriteString("</")
	bw.WriteString(n.Name)
	_, err := bw.WriteString(">\n")
	return err
}

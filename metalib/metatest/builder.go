// Package metatest builds well-formed metalib blobs for tests. The
// builder computes the same record layouts the decoder consumes, so
// fixtures stay valid as the format constants evolve in one place.
package metatest

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/text/encoding/simplifiedchinese"

	"github.com/tdrkit/mldec/metalib"
)

const (
	headerSize    = 0x114
	macroSize     = 0x10
	mapEntrySize  = 0x08
	metaBaseSize  = 0xB8
	entrySize     = 0xB4
	groupBaseSize = 0x94

	none = int32(-1)
)

// Field declares one field of a composite under construction. Exactly
// one of Prim (a built-in XML type name) or Meta (the name of a
// previously added composite) must be set.
type Field struct {
	Name string
	Prim string
	Meta string

	Count    int32  // fixed array length when > 1
	CountRef string // macro name recorded as the array length symbol
	SizedBy  string // sibling field holding the live element count

	Pointer bool // emit the pointer flag
	Refer   bool // emit the refer (alias) flag

	ReferTo string // sibling this field shadows storage with
	Select  string // union discriminator sibling, for union-typed fields

	MacrosGroup string // macro group name for enum-valued fields

	ID    int32 // explicit id attribute
	HasID bool

	CustomSize int32 // bytes; narrows numeric storage, caps strings

	DefaultInt int64
	DefaultStr string
	HasDefault bool

	Version     int32
	Desc        string
	ChineseName string
	IO          int32
	Sort        uint8 // 1 ascending, 2 descending
	Unique      bool
	NotNull     bool

	// BogusMeta points the composite reference at an offset where no
	// record lives. For dangling-reference tests.
	BogusMeta bool
}

// Meta is a composite under construction.
type Meta struct {
	name   string
	union  bool
	id     int32
	hasID  bool
	desc   string
	fields []Field

	index int
	off   int32
	size  int32
	lay   []layout
}

// WithID records an explicit id attribute on the composite.
func (m *Meta) WithID(id int32) *Meta {
	m.id, m.hasID = id, true
	return m
}

// WithDesc records a description string on the composite.
func (m *Meta) WithDesc(desc string) *Meta {
	m.desc = desc
	return m
}

type layout struct {
	unit    int32 // single element size
	real    int32 // unit * count
	off     int32 // host and wire offset, layouts are kept identical
	tag     metalib.TypeTag
	idxType int32
	target  *Meta
}

// Builder accumulates schema declarations and serializes them as one
// metalib blob. Misuse (unknown names, forward inline references) is a
// test bug and panics.
type Builder struct {
	name          string
	tagSetVersion uint32
	badMagic      bool

	macroNames []string
	macroVals  []int32
	macroDescs []string
	macroIdx   map[string]int32

	groupNames   []string
	groupDescs   []string
	groupMembers [][]int32
	groupOffs    []int32

	metas  []*Meta
	byName map[string]*Meta
}

// New returns a builder for a metalib named name, speaking the newest
// supported tag set.
func New(name string) *Builder {
	return &Builder{
		name:          name,
		tagSetVersion: metalib.MaxTagSetVersion,
		macroIdx:      make(map[string]int32),
		byName:        make(map[string]*Meta),
	}
}

// TagSetVersion overrides the tag set version stamped into the header.
func (b *Builder) TagSetVersion(v uint32) *Builder {
	b.tagSetVersion = v
	return b
}

// BadMagic stamps a wrong signature into the header.
func (b *Builder) BadMagic() *Builder {
	b.badMagic = true
	return b
}

// Macro declares one symbolic constant.
func (b *Builder) Macro(name string, value int32) *Builder {
	return b.MacroDesc(name, value, "")
}

// MacroDesc declares one symbolic constant with a description.
func (b *Builder) MacroDesc(name string, value int32, desc string) *Builder {
	b.macroIdx[name] = int32(len(b.macroNames))
	b.macroNames = append(b.macroNames, name)
	b.macroVals = append(b.macroVals, value)
	b.macroDescs = append(b.macroDescs, desc)
	return b
}

// Group declares a macro group over previously declared macros.
func (b *Builder) Group(name string, members ...string) *Builder {
	idx := make([]int32, len(members))
	for i, m := range members {
		j, ok := b.macroIdx[m]
		if !ok {
			panic(fmt.Sprintf("metatest: group %q references unknown macro %q", name, m))
		}
		idx[i] = j
	}
	b.groupNames = append(b.groupNames, name)
	b.groupDescs = append(b.groupDescs, "")
	b.groupMembers = append(b.groupMembers, idx)
	return b
}

// Struct declares a struct composite. Inline composite fields must name
// an earlier declaration; pointer fields may name any, including the
// struct itself.
func (b *Builder) Struct(name string, fields ...Field) *Meta {
	return b.addMeta(name, false, fields)
}

// Union declares a union composite.
func (b *Builder) Union(name string, fields ...Field) *Meta {
	return b.addMeta(name, true, fields)
}

func (b *Builder) addMeta(name string, union bool, fields []Field) *Meta {
	m := &Meta{name: name, union: union, fields: fields, index: len(b.metas)}
	b.metas = append(b.metas, m)
	b.byName[name] = m
	return m
}

// Build serializes the declarations into a complete blob, header
// included.
func (b *Builder) Build() []byte {
	b.placeMetas()
	b.placeGroups()

	w := &writer{
		strings: make(map[string]int32),
	}

	// Region plan, offsets relative to end of header:
	// macros | map table | metas | groups | defaults | string buffer.
	macroBytes := int32(len(b.macroNames)) * macroSize
	mapBytes := int32(len(b.metas)) * mapEntrySize
	var metaBytes int32
	for _, m := range b.metas {
		metaBytes += metaBaseSize + int32(len(m.fields))*entrySize
	}
	var groupBytes int32
	for _, g := range b.groupMembers {
		groupBytes += groupBaseSize + 8*int32(len(g))
	}
	defaultsOff := macroBytes + mapBytes + metaBytes + groupBytes
	defaults, defaultOffs := b.buildDefaults(defaultsOff)
	w.strOff = defaultsOff + int32(len(defaults))

	b.writeMacros(w)
	b.writeMapTable(w)
	for _, m := range b.metas {
		b.writeMeta(w, m, defaultOffs)
	}
	b.writeGroups(w)
	w.raw(defaults)
	strBuf := w.strbuf
	w.raw(strBuf)

	body := w.buf
	hdr := b.buildHeader(macroBytes, mapBytes, metaBytes, w.strOff, int32(len(strBuf)), int32(len(body)))
	return append(hdr, body...)
}

// placeMetas computes every composite's record offset and field layout.
func (b *Builder) placeMetas() {
	off := int32(len(b.macroNames))*macroSize + int32(len(b.metas))*mapEntrySize
	for _, m := range b.metas {
		m.off = off
		off += metaBaseSize + int32(len(m.fields))*entrySize
	}
	for _, m := range b.metas {
		m.lay = make([]layout, len(m.fields))
		var cursor, maxReal int32
		for i := range m.fields {
			l := b.placeField(m, &m.fields[i])
			if !m.union {
				l.off = cursor
				cursor += l.real
			}
			if l.real > maxReal {
				maxReal = l.real
			}
			m.lay[i] = l
		}
		if m.union {
			m.size = maxReal
		} else {
			m.size = cursor
		}
	}
}

func (b *Builder) placeField(m *Meta, f *Field) layout {
	var l layout
	switch {
	case f.Meta != "":
		t, ok := b.byName[f.Meta]
		if !ok {
			panic(fmt.Sprintf("metatest: field %s.%s references unknown composite %q", m.name, f.Name, f.Meta))
		}
		l.target = t
		l.idxType = none
		l.tag = metalib.TagStruct
		if t.union {
			l.tag = metalib.TagUnion
		}
		if f.Pointer {
			l.unit = 8
		} else {
			if t.index >= m.index {
				panic(fmt.Sprintf("metatest: field %s.%s inlines composite %q declared later", m.name, f.Name, f.Meta))
			}
			l.unit = t.size
		}
	case f.Prim != "":
		idx := metalib.PrimTypeIndex(f.Prim)
		if idx == none {
			panic(fmt.Sprintf("metatest: field %s.%s has unknown primitive %q", m.name, f.Name, f.Prim))
		}
		info, _ := metalib.PrimType(idx)
		l.idxType = idx
		l.tag = info.Tag
		l.unit = info.Size
		if f.Pointer {
			l.unit = 8
		} else if f.CustomSize > 0 && (info.Tag == metalib.TagString || info.Tag == metalib.TagWString) {
			l.unit = f.CustomSize
		}
	default:
		panic(fmt.Sprintf("metatest: field %s.%s declares neither primitive nor composite type", m.name, f.Name))
	}
	count := f.Count
	if count < 1 {
		count = 1
	}
	l.real = l.unit * count
	return l
}

func (b *Builder) placeGroups() {
	off := int32(len(b.macroNames))*macroSize + int32(len(b.metas))*mapEntrySize
	for _, m := range b.metas {
		off += metaBaseSize + int32(len(m.fields))*entrySize
	}
	b.groupOffs = make([]int32, len(b.groupNames))
	for i, g := range b.groupMembers {
		b.groupOffs[i] = off
		off += groupBaseSize + 8*int32(len(g))
	}
}

// buildDefaults lays out the default-value payload region and returns
// per-field payload offsets keyed by meta index and field index.
func (b *Builder) buildDefaults(base int32) ([]byte, map[[2]int]int32) {
	var buf []byte
	offs := make(map[[2]int]int32)
	for mi, m := range b.metas {
		for fi := range m.fields {
			f := &m.fields[fi]
			if !f.HasDefault {
				continue
			}
			offs[[2]int{mi, fi}] = base + int32(len(buf))
			info, _ := metalib.PrimType(m.lay[fi].idxType)
			switch info.Tag {
			case metalib.TagChar, metalib.TagUChar, metalib.TagByte:
				buf = append(buf, byte(f.DefaultInt))
			case metalib.TagShort, metalib.TagUShort:
				buf = binary.LittleEndian.AppendUint16(buf, uint16(f.DefaultInt))
			case metalib.TagInt, metalib.TagUInt, metalib.TagLong, metalib.TagULong:
				buf = binary.LittleEndian.AppendUint32(buf, uint32(f.DefaultInt))
			case metalib.TagLongLong, metalib.TagULongLong:
				buf = binary.LittleEndian.AppendUint64(buf, uint64(f.DefaultInt))
			case metalib.TagString:
				buf = append(buf, encodeGBK(f.DefaultStr)...)
				buf = append(buf, 0)
			default:
				panic(fmt.Sprintf("metatest: field %s.%s default for unsupported type %q", m.name, f.Name, f.Prim))
			}
		}
	}
	return buf, offs
}

func (b *Builder) writeMacros(w *writer) {
	for i := range b.macroNames {
		w.str(b.macroNames[i])
		w.i32(b.macroVals[i])
		w.str(b.macroDescs[i])
		w.i32(0) // reserved
	}
}

func (b *Builder) writeMapTable(w *writer) {
	for _, m := range b.metas {
		w.i32(m.off)
		w.i32(metaBaseSize + int32(len(m.fields))*entrySize)
	}
}

func (b *Builder) writeMeta(w *writer, m *Meta, defaultOffs map[[2]int]int32) {
	flags := uint32(0x1) // fixed size
	id := int32(m.index)
	if m.hasID {
		flags |= 0x2
		id = m.id
	}
	tag := int32(metalib.TagStruct)
	if m.union {
		tag = int32(metalib.TagUnion)
	}

	w.u32(flags)
	w.i32(id)
	w.i32(1) // base version
	w.i32(1) // current version
	w.i32(tag)

	w.i32(m.size) // memory size
	w.i32(m.size) // wire unit
	w.i32(m.size) // host unit
	w.i32(0)      // custom host unit
	w.i32(none)   // custom unit macro
	w.i32(0)      // max sub id
	w.i32(int32(len(m.fields)))
	w.i32(none) // aux table ptr
	w.i32(0)    // aux count
	w.i32(0)    // aux capacity
	w.i32(m.off)
	w.i32(int32(m.index))
	w.i32(none) // id macro
	w.i32(tag)  // idx type
	w.i32(none) // version macro
	w.i32(0)    // custom align
	w.i32(1)    // valid align
	w.i32(0)    // min indicator version

	w.sizeInfoEmpty()
	w.i32(none) // version indicator wire off
	w.i32(none) // version indicator host off
	w.i32(0)    // version indicator unit
	w.i32(none) // sort entry idx
	w.i32(none) // sort key offset
	w.i32(none) // sort key meta ptr

	w.str(m.name)
	w.str(m.desc)
	w.str("") // chinese name
	w.zeros(28)
	w.zeros(12)

	for fi := range m.fields {
		b.writeEntry(w, m, fi, defaultOffs)
	}
}

func (b *Builder) writeEntry(w *writer, m *Meta, fi int, defaultOffs map[[2]int]int32) {
	f := &m.fields[fi]
	l := m.lay[fi]

	count := f.Count
	if count < 1 {
		count = 1
	}

	if f.HasID {
		w.i32(f.ID)
	} else {
		w.i32(int32(fi))
	}
	version := f.Version
	if version == 0 {
		version = 1
	}
	w.i32(version)
	w.i32(int32(l.tag))
	w.str(f.Name)

	w.i32(l.real) // host real size
	w.i32(l.real) // wire real size
	w.i32(l.unit) // host unit
	w.i32(l.unit) // wire unit
	custom := int32(0)
	if f.CustomSize > 0 {
		custom = f.CustomSize
	}
	w.i32(custom)
	w.i32(count)
	w.i32(l.off) // wire offset
	w.i32(l.off) // host offset
	w.i32(none)  // id macro
	w.i32(none)  // version macro
	if f.CountRef != "" {
		w.i32(b.mustMacro(m, f, f.CountRef))
	} else {
		w.i32(none)
	}
	w.i32(l.idxType)
	w.i32(none) // custom size macro

	var flags uint16
	if f.Pointer {
		flags |= 0x2
	}
	if f.Refer {
		flags |= 0x4
	}
	if f.HasID {
		flags |= 0x8
	}
	w.u16(flags)
	var db uint8
	if f.Unique {
		db |= 0x1
	}
	if f.NotNull {
		db |= 0x2
	}
	w.u8(db)
	w.u8(f.Sort)

	if f.SizedBy != "" {
		sib := b.mustField(m, f, f.SizedBy)
		w.i32(sib.off) // wire off
		w.i32(sib.off) // host off
		w.i32(sib.unit)
		w.i32(none) // size type idx
	} else {
		w.sizeInfoEmpty()
	}

	if f.ReferTo != "" {
		sib := b.mustField(m, f, f.ReferTo)
		w.i32(sib.unit)
		w.i32(sib.off)
		w.i32(none)
	} else {
		w.i32(0)
		w.i32(none)
		w.i32(none)
	}

	if f.Select != "" {
		sib := b.mustField(m, f, f.Select)
		w.i32(sib.unit)
		w.i32(sib.off)
		w.i32(none)
	} else {
		w.i32(0)
		w.i32(none)
		w.i32(none)
	}

	w.i32(f.IO)
	w.i32(none) // io macro

	switch {
	case f.BogusMeta:
		w.i32(13) // no record starts here
	case l.target != nil:
		w.i32(l.target.off)
	default:
		w.i32(none)
	}
	w.i32(none) // max id
	w.i32(none) // min id
	w.i32(none) // max id macro
	w.i32(none) // min id macro

	if off, ok := defaultOffs[[2]int{m.index, fi}]; ok {
		w.i32(0) // payload length, informational
		w.str(f.Desc)
		w.str(f.ChineseName)
		w.i32(off)
	} else {
		w.i32(0)
		w.str(f.Desc)
		w.str(f.ChineseName)
		w.i32(none)
	}
	w.i32(b.groupPtr(f))
	w.i32(none) // custom attr ptr
	w.i32(m.off)
	w.zeros(12)
}

// groupPtr resolves an optional field to macro group binding.
func (b *Builder) groupPtr(f *Field) int32 {
	if f.MacrosGroup == "" {
		return none
	}
	for i, n := range b.groupNames {
		if n == f.MacrosGroup {
			return b.groupOffs[i]
		}
	}
	panic(fmt.Sprintf("metatest: field %q references unknown macro group %q", f.Name, f.MacrosGroup))
}

func (b *Builder) writeGroups(w *writer) {
	for i, members := range b.groupMembers {
		n := int32(len(members))
		w.i32(n)
		w.i32(n)
		w.str(b.groupDescs[i])
		w.i32(groupBaseSize)
		w.i32(groupBaseSize + 4*n)
		w.fixedStr(b.groupNames[i], 128)
		for _, idx := range members { // name index map
			w.i32(idx)
		}
		for _, idx := range members { // value index map
			w.i32(idx)
		}
	}
}

func (b *Builder) buildHeader(macroBytes, mapBytes, metaBytes, strOff, strLen, bodyLen int32) []byte {
	w := &writer{}
	magic := uint16(metalib.Magic)
	if b.badMagic {
		magic = 0x5858
	}
	w.u16(magic)
	w.u16(1) // build
	w.u32(0) // platform
	w.u32(uint32(headerSize + bodyLen))
	w.zeros(16)
	w.i32(1) // metalib id
	w.u32(b.tagSetVersion)
	w.zeros(4)
	w.i32(int32(len(b.metas)))  // max metas
	w.i32(int32(len(b.metas)))  // cur metas
	w.i32(int32(len(b.macroNames))) // max macros
	w.i32(int32(len(b.macroNames))) // cur macros
	w.i32(int32(len(b.groupNames))) // max groups
	w.i32(int32(len(b.groupNames))) // cur groups
	w.zeros(8)
	w.u32(1) // metalib version

	metaOff := macroBytes + mapBytes
	lastMeta := int32(0)
	if n := len(b.metas); n > 0 {
		lastMeta = b.metas[n-1].off
	}
	w.u32(0)                   // macro table
	w.u32(uint32(macroBytes))  // id table, unused, points at map
	w.u32(uint32(macroBytes))  // name table, unused
	w.u32(uint32(macroBytes))  // map table
	w.u32(uint32(metaOff))     // first meta
	w.u32(uint32(lastMeta))    // last meta
	w.i32(strLen)
	w.u32(uint32(strOff))
	w.u32(uint32(strOff + strLen)) // free string space
	groupMapOff := metaOff + metaBytes
	w.u32(uint32(groupMapOff)) // group map, coincides with first group
	w.u32(uint32(groupMapOff)) // group table
	w.zeros(28)
	w.fixedStr(b.name, 128)
	return w.buf
}

func (b *Builder) mustMacro(m *Meta, f *Field, name string) int32 {
	idx, ok := b.macroIdx[name]
	if !ok {
		panic(fmt.Sprintf("metatest: field %s.%s references unknown macro %q", m.name, f.Name, name))
	}
	return idx
}

func (b *Builder) mustField(m *Meta, f *Field, name string) layout {
	for i := range m.fields {
		if m.fields[i].Name == name {
			return m.lay[i]
		}
	}
	panic(fmt.Sprintf("metatest: field %s.%s references unknown sibling %q", m.name, f.Name, name))
}

// writer serializes little-endian records and interns strings into a
// trailing string buffer.
type writer struct {
	buf     []byte
	strbuf  []byte
	strings map[string]int32
	strOff  int32
}

func (w *writer) u8(v uint8)   { w.buf = append(w.buf, v) }
func (w *writer) u16(v uint16) { w.buf = binary.LittleEndian.AppendUint16(w.buf, v) }
func (w *writer) u32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }
func (w *writer) i32(v int32)  { w.u32(uint32(v)) }
func (w *writer) zeros(n int)  { w.buf = append(w.buf, make([]byte, n)...) }
func (w *writer) raw(p []byte) { w.buf = append(w.buf, p...) }

// sizeInfoEmpty writes an absent size binding.
func (w *writer) sizeInfoEmpty() {
	w.i32(none)
	w.i32(none)
	w.i32(0)
	w.i32(none)
}

// str interns s in the string buffer and writes its offset. The empty
// string is written as the absent-value sentinel.
func (w *writer) str(s string) {
	if s == "" {
		w.i32(none)
		return
	}
	off, ok := w.strings[s]
	if !ok {
		off = w.strOff + int32(len(w.strbuf))
		w.strbuf = append(w.strbuf, encodeGBK(s)...)
		w.strbuf = append(w.strbuf, 0)
		w.strings[s] = off
	}
	w.i32(off)
}

func (w *writer) fixedStr(s string, n int) {
	p := make([]byte, n)
	copy(p, encodeGBK(s))
	w.raw(p)
}

// encodeGBK converts a Go string to GBK bytes. ASCII passes through.
func encodeGBK(s string) []byte {
	ascii := true
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			ascii = false
			break
		}
	}
	if ascii {
		return []byte(s)
	}
	out, err := simplifiedchinese.GBK.NewEncoder().Bytes([]byte(s))
	if err != nil {
		panic(fmt.Sprintf("metatest: string %q not representable in GBK", s))
	}
	return out
}

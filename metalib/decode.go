package metalib

import (
	"strconv"

	"go.uber.org/zap"

	mlerrors "github.com/tdrkit/mldec/errors"
	"github.com/tdrkit/mldec/metalib/internal/binary"
)

// maxPathDepth bounds offset-to-field-path walks. Inline struct nesting
// in real schemas is shallow; the guard only protects against corrupt
// inputs that alias a meta into its own layout.
const maxPathDepth = 64

// Parse decodes the metalib blob that starts at offset within data and
// returns the finalized type graph. The decode is all-or-nothing: on any
// error all partial state is discarded and only the error (carrying the
// failing offset) escapes.
//
// Offsets inside the returned errors are relative to the end of the
// header, the same base every pointer inside the format uses; header
// errors carry absolute positions within data.
func Parse(data []byte, offset int64) (*Lib, error) {
	r := binary.NewReader(data)
	if err := r.SeekTo(offset); err != nil {
		return nil, err
	}

	hdr, err := decodeHeader(r, offset)
	if err != nil {
		return nil, err
	}

	bodyStart := offset + HeaderSize
	bodyEnd := offset + int64(hdr.Size)
	if bodyEnd > int64(len(data)) {
		// Declared size runs past the input; keep what is there and let
		// a table read fail at its exact offset if it is truly truncated.
		Logger().Warn("metalib declared size exceeds input",
			zap.Uint32("declared", hdr.Size),
			zap.Int64("available", int64(len(data))-offset))
		bodyEnd = int64(len(data))
	}

	d := &decoder{
		r:      binary.NewReader(data[bodyStart:bodyEnd]),
		hdr:    hdr,
		strs:   newStringTable(data[bodyStart:bodyEnd], hdr),
		arena:  newGraphBuilder(),
		groups: make(map[int32]ID),
	}
	return d.run()
}

// ParseHeader decodes and validates just the fixed header at offset,
// without touching the tables behind it. Scanners use it to probe
// candidate blob positions cheaply.
func ParseHeader(data []byte, offset int64) (Header, error) {
	r := binary.NewReader(data)
	if err := r.SeekTo(offset); err != nil {
		return Header{}, err
	}
	return decodeHeader(r, offset)
}

// decodeHeader reads and validates the fixed 0x114-byte header at base.
func decodeHeader(r *binary.Reader, base int64) (Header, error) {
	var hdr Header
	var err error

	fail := func(e error) (Header, error) { return Header{}, e }

	if hdr.Magic, err = r.ReadU16(); err != nil {
		return fail(err)
	}
	if hdr.Magic != Magic {
		return fail(mlerrors.BadMagic(base, hdr.Magic))
	}
	if hdr.Build, err = r.ReadU16(); err != nil {
		return fail(err)
	}
	if hdr.Platform, err = r.ReadU32(); err != nil {
		return fail(err)
	}
	if hdr.Size, err = r.ReadU32(); err != nil {
		return fail(err)
	}
	if err = r.Skip(16); err != nil { // reserved words
		return fail(err)
	}
	if hdr.ID, err = r.ReadI32(); err != nil {
		return fail(err)
	}
	if hdr.TagSetVersion, err = r.ReadU32(); err != nil {
		return fail(err)
	}
	if err = r.Skip(4); err != nil {
		return fail(err)
	}
	counts := []*int32{
		&hdr.MaxMetaNum, &hdr.CurMetaNum,
		&hdr.MaxMacroNum, &hdr.CurMacroNum,
		&hdr.MaxMacroGroupNum, &hdr.CurMacroGroupNum,
	}
	for _, c := range counts {
		if *c, err = r.ReadI32(); err != nil {
			return fail(err)
		}
	}
	if err = r.Skip(8); err != nil {
		return fail(err)
	}
	if hdr.Version, err = r.ReadU32(); err != nil {
		return fail(err)
	}
	offs := []*uint32{
		&hdr.MacroOff, &hdr.IDOff, &hdr.NameOff, &hdr.MapOff,
		&hdr.MetaOff, &hdr.LastMetaOff,
	}
	for _, o := range offs {
		if *o, err = r.ReadU32(); err != nil {
			return fail(err)
		}
	}
	if hdr.StrBufSize, err = r.ReadI32(); err != nil {
		return fail(err)
	}
	if hdr.StrBufOff, err = r.ReadU32(); err != nil {
		return fail(err)
	}
	if hdr.FreeStrBufOff, err = r.ReadU32(); err != nil {
		return fail(err)
	}
	if hdr.MacroGroupMapOff, err = r.ReadU32(); err != nil {
		return fail(err)
	}
	if hdr.MacroGroupOff, err = r.ReadU32(); err != nil {
		return fail(err)
	}
	if err = r.Skip(28); err != nil { // reserved words
		return fail(err)
	}
	if hdr.Name, err = r.ReadFixedString(128); err != nil {
		return fail(err)
	}

	if hdr.TagSetVersion < MinTagSetVersion || hdr.TagSetVersion > MaxTagSetVersion {
		return fail(mlerrors.UnsupportedVersion(hdr.TagSetVersion))
	}
	if hdr.CurMetaNum < 0 || hdr.CurMacroNum < 0 || hdr.CurMacroGroupNum < 0 {
		return fail(mlerrors.InvalidData(mlerrors.PhaseDecode, base, "negative table count in header"))
	}
	if int64(hdr.Size) < HeaderSize {
		return fail(mlerrors.InvalidData(mlerrors.PhaseDecode, base, "declared size smaller than header"))
	}

	return hdr, nil
}

// decoder carries the state of one decode session. The cursor r and all
// offsets below are relative to the end of the header.
type decoder struct {
	r     *binary.Reader
	hdr   Header
	strs  *stringTable
	arena *graphBuilder

	macros  []Macro
	raws    []*rawMeta // raw composite records, index == arena id
	groups  map[int32]ID
	entries int

	rootIDs  []ID
	groupIDs []ID
}

func (d *decoder) run() (*Lib, error) {
	if err := d.decodeMacros(); err != nil {
		return nil, err
	}
	if err := d.decodeMetas(); err != nil {
		return nil, err
	}
	if err := d.decodeMacroGroups(); err != nil {
		return nil, err
	}
	if err := d.linkFields(); err != nil {
		return nil, err
	}
	if err := d.linkPaths(); err != nil {
		return nil, err
	}

	Logger().Debug("metalib decoded",
		zap.String("name", d.hdr.Name),
		zap.Int("composites", len(d.rootIDs)),
		zap.Int("macros", len(d.macros)),
		zap.Int("groups", len(d.groupIDs)),
		zap.Int("fields", d.entries))

	return d.arena.finalize(d.hdr, d.macros, d.rootIDs, d.groupIDs)
}

// rawMeta is one composite record as stored, before field references are
// resolved against the arena.
type rawMeta struct {
	off         int32
	flags       MetaFlags
	id          int32
	baseVersion int32
	curVersion  int32
	tag         TypeTag
	memSize     int32
	nUnitSize   int32
	hUnitSize   int32
	customHUnit int32
	idxCustomH  int32
	idxID       int32
	idxVersion  int32
	customAlign int32
	validAlign  int32
	sizeInfo    sizeInfo
	verIndic    redirector
	sortKey     sortKeyInfo
	name        string
	desc        string
	chineseName string
	entries     []rawEntry
}

// rawEntry is one field record as stored.
type rawEntry struct {
	off         int32
	id          int32
	version     int32
	tag         TypeTag
	name        string
	hRealSize   int32
	nRealSize   int32
	hUnitSize   int32
	nUnitSize   int32
	customHUnit int32
	count       int32
	nOff        int32
	hOff        int32
	idxID       int32
	idxVersion  int32
	idxCount    int32
	idxType     int32
	idxCustomH  int32
	flags       EntryFlags
	dbFlags     EntryDBFlags
	order       uint8
	sizeInfo    sizeInfo
	referer     selectorInfo
	selector    selectorInfo
	io          int32
	ptrMeta     int32
	maxID       int32
	minID       int32
	maxIDIdx    int32
	minIDIdx    int32
	desc        string
	chineseName string
	ptrDefault  int32
	ptrGroup    int32
	ptrCustom   int32
	defaultVal  string
	hasDefault  bool
}

type sizeInfo struct{ nOff, hOff, unitSize, idxSizeType int32 }

type redirector struct{ nOff, hOff, unitSize int32 }

type selectorInfo struct{ unitSize, hOff, ptrEntry int32 }

type sortKeyInfo struct{ idxSortEntry, sortKeyOffset, ptrSortKeyMeta int32 }

func (d *decoder) readSizeInfo() (sizeInfo, error) {
	var s sizeInfo
	for _, p := range []*int32{&s.nOff, &s.hOff, &s.unitSize, &s.idxSizeType} {
		v, err := d.r.ReadI32()
		if err != nil {
			return s, err
		}
		*p = v
	}
	return s, nil
}

func (d *decoder) readRedirector() (redirector, error) {
	var s redirector
	for _, p := range []*int32{&s.nOff, &s.hOff, &s.unitSize} {
		v, err := d.r.ReadI32()
		if err != nil {
			return s, err
		}
		*p = v
	}
	return s, nil
}

func (d *decoder) readSelector() (selectorInfo, error) {
	var s selectorInfo
	for _, p := range []*int32{&s.unitSize, &s.hOff, &s.ptrEntry} {
		v, err := d.r.ReadI32()
		if err != nil {
			return s, err
		}
		*p = v
	}
	return s, nil
}

func (d *decoder) readSortKey() (sortKeyInfo, error) {
	var s sortKeyInfo
	for _, p := range []*int32{&s.idxSortEntry, &s.sortKeyOffset, &s.ptrSortKeyMeta} {
		v, err := d.r.ReadI32()
		if err != nil {
			return s, err
		}
		*p = v
	}
	return s, nil
}

// readStringPtr reads an i32 string offset and resolves it.
func (d *decoder) readStringPtr() (string, error) {
	off, err := d.r.ReadI32()
	if err != nil {
		return "", err
	}
	return d.strs.resolve(off)
}

func (d *decoder) decodeMacros() error {
	if d.hdr.CurMacroNum == 0 {
		return nil
	}
	if err := d.r.SeekTo(int64(d.hdr.MacroOff)); err != nil {
		return err
	}
	// Bound the count by the bytes actually present before allocating.
	if int64(d.hdr.CurMacroNum)*macroSize > d.r.Remaining() {
		return mlerrors.UnexpectedEOF(d.r.Position(), int(d.hdr.CurMacroNum)*macroSize)
	}
	d.macros = make([]Macro, d.hdr.CurMacroNum)
	for i := range d.macros {
		name, err := d.readStringPtr()
		if err != nil {
			return err
		}
		value, err := d.r.ReadI32()
		if err != nil {
			return err
		}
		desc, err := d.readStringPtr()
		if err != nil {
			return err
		}
		if err := d.r.Skip(4); err != nil { // reserved
			return err
		}
		d.macros[i] = Macro{EnumValue: EnumValue{Name: name, Value: value, Desc: desc}}
	}
	return nil
}

// decodeMetas walks the map table and decodes every composite record it
// points at, registering each in table order so arena ids match table
// indices.
func (d *decoder) decodeMetas() error {
	if d.hdr.CurMetaNum == 0 {
		return nil
	}
	if err := d.r.SeekTo(int64(d.hdr.MapOff)); err != nil {
		return err
	}
	if int64(d.hdr.CurMetaNum)*mapEntrySize > d.r.Remaining() {
		return mlerrors.UnexpectedEOF(d.r.Position(), int(d.hdr.CurMetaNum)*mapEntrySize)
	}
	offsets := make([]int32, d.hdr.CurMetaNum)
	for i := range offsets {
		ptr, err := d.r.ReadI32()
		if err != nil {
			return err
		}
		if _, err := d.r.ReadI32(); err != nil { // size, redundant with the record
			return err
		}
		offsets[i] = ptr
	}

	for _, off := range offsets {
		if int64(off)+metaBaseSize > d.r.Len() {
			return mlerrors.UnexpectedEOF(int64(off), metaBaseSize)
		}
		if err := d.r.SeekTo(int64(off)); err != nil {
			return err
		}
		raw, err := d.decodeMeta()
		if err != nil {
			return err
		}

		kind := KindStruct
		if raw.tag == TagUnion {
			kind = KindUnion
		}
		d.raws = append(d.raws, raw)
		id := d.arena.registerMeta(raw.off, &TypeDesc{
			Kind:   kind,
			Name:   raw.name,
			Size:   raw.memSize,
			Align:  raw.validAlign,
			Target: NoID,
			Struct: &StructType{
				BaseVersion: raw.baseVersion,
				CustomAlign: raw.customAlign,
				Desc:        raw.desc,
				ChineseName: raw.chineseName,
			},
		})
		d.rootIDs = append(d.rootIDs, id)
	}
	return nil
}

// decodeMeta decodes one composite record at the current cursor
// position, including its trailing field records.
func (d *decoder) decodeMeta() (*rawMeta, error) {
	raw := &rawMeta{off: int32(d.r.Position())}

	flags, err := d.r.ReadU32()
	if err != nil {
		return nil, err
	}
	raw.flags = MetaFlags(flags)

	head := []*int32{&raw.id, &raw.baseVersion, &raw.curVersion}
	for _, p := range head {
		if *p, err = d.r.ReadI32(); err != nil {
			return nil, err
		}
	}

	tagPos := d.r.Position()
	tag, err := d.r.ReadI32()
	if err != nil {
		return nil, err
	}
	raw.tag = TypeTag(tag)
	if raw.tag != TagStruct && raw.tag != TagUnion {
		return nil, mlerrors.UnknownTypeKind(tag, tagPos)
	}

	var entriesNum, skip int32
	body := []*int32{
		&raw.memSize, &raw.nUnitSize, &raw.hUnitSize, &raw.customHUnit,
		&raw.idxCustomH, &skip /* max sub id */, &entriesNum,
		&skip, &skip, &skip, // auxiliary table, unused by the schema
		&skip /* self ptr */, &skip /* self idx */, &raw.idxID,
		&skip /* idx type */, &raw.idxVersion,
		&raw.customAlign, &raw.validAlign, &skip, /* min indicator ver */
	}
	for _, p := range body {
		if *p, err = d.r.ReadI32(); err != nil {
			return nil, err
		}
	}

	if raw.sizeInfo, err = d.readSizeInfo(); err != nil {
		return nil, err
	}
	if raw.verIndic, err = d.readRedirector(); err != nil {
		return nil, err
	}
	if raw.sortKey, err = d.readSortKey(); err != nil {
		return nil, err
	}
	if raw.name, err = d.readStringPtr(); err != nil {
		return nil, err
	}
	if raw.desc, err = d.readStringPtr(); err != nil {
		return nil, err
	}
	if raw.chineseName, err = d.readStringPtr(); err != nil {
		return nil, err
	}
	// Database sharding fields; decoded for stride, unused by the schema.
	if err = d.r.Skip(4 + 2 + 2 + 4 + 8 + 4 + 4); err != nil {
		return nil, err
	}
	if err = d.r.Skip(12); err != nil { // reserved words
		return nil, err
	}

	if entriesNum < 0 {
		return nil, mlerrors.InvalidData(mlerrors.PhaseDecode, int64(raw.off), "negative field count")
	}
	if int64(entriesNum)*entrySize > d.r.Remaining() {
		return nil, mlerrors.UnexpectedEOF(d.r.Position(), int(entriesNum)*entrySize)
	}
	raw.entries = make([]rawEntry, entriesNum)
	for i := range raw.entries {
		if err := d.decodeEntry(&raw.entries[i]); err != nil {
			return nil, err
		}
	}
	d.entries += len(raw.entries)
	return raw, nil
}

// decodeEntry decodes one field record at the current cursor position.
func (d *decoder) decodeEntry(e *rawEntry) error {
	e.off = int32(d.r.Position())

	var err error
	if e.id, err = d.r.ReadI32(); err != nil {
		return err
	}
	if e.version, err = d.r.ReadI32(); err != nil {
		return err
	}

	tagPos := d.r.Position()
	tag, err := d.r.ReadI32()
	if err != nil {
		return err
	}
	e.tag = TypeTag(tag)
	if !e.tag.valid() {
		return mlerrors.UnknownTypeKind(tag, tagPos)
	}

	if e.name, err = d.readStringPtr(); err != nil {
		return err
	}

	ints := []*int32{
		&e.hRealSize, &e.nRealSize, &e.hUnitSize, &e.nUnitSize,
		&e.customHUnit, &e.count, &e.nOff, &e.hOff,
		&e.idxID, &e.idxVersion, &e.idxCount, &e.idxType, &e.idxCustomH,
	}
	for _, p := range ints {
		if *p, err = d.r.ReadI32(); err != nil {
			return err
		}
	}

	flags, err := d.r.ReadU16()
	if err != nil {
		return err
	}
	e.flags = EntryFlags(flags)
	dbFlags, err := d.r.ReadU8()
	if err != nil {
		return err
	}
	e.dbFlags = EntryDBFlags(dbFlags)
	if e.order, err = d.r.ReadU8(); err != nil {
		return err
	}

	if e.sizeInfo, err = d.readSizeInfo(); err != nil {
		return err
	}
	if e.referer, err = d.readSelector(); err != nil {
		return err
	}
	if e.selector, err = d.readSelector(); err != nil {
		return err
	}

	if e.io, err = d.r.ReadI32(); err != nil {
		return err
	}
	if err = d.r.Skip(4); err != nil { // idx io, unused
		return err
	}
	tail := []*int32{&e.ptrMeta, &e.maxID, &e.minID, &e.maxIDIdx, &e.minIDIdx}
	for _, p := range tail {
		if *p, err = d.r.ReadI32(); err != nil {
			return err
		}
	}
	if err = d.r.Skip(4); err != nil { // default value length
		return err
	}
	if e.desc, err = d.readStringPtr(); err != nil {
		return err
	}
	if e.chineseName, err = d.readStringPtr(); err != nil {
		return err
	}
	if e.ptrDefault, err = d.r.ReadI32(); err != nil {
		return err
	}
	if e.ptrGroup, err = d.r.ReadI32(); err != nil {
		return err
	}
	if e.ptrCustom, err = d.r.ReadI32(); err != nil {
		return err
	}
	if err = d.r.Skip(4 + 12); err != nil { // meta back-offset, reserved
		return err
	}

	if e.ptrDefault != None {
		if err := d.decodeDefault(e); err != nil {
			return err
		}
	}
	return nil
}

// decodeDefault reads the default-value payload a field record points
// at, formatting it per the field's primitive type. The cursor position
// is saved and restored around the detour.
func (d *decoder) decodeDefault(e *rawEntry) error {
	if e.idxType < 0 || int(e.idxType) >= len(primTypeInfo) {
		return mlerrors.UnknownTypeKind(e.idxType, int64(e.off))
	}
	saved := d.r.Position()
	if err := d.r.SeekTo(int64(e.ptrDefault)); err != nil {
		return err
	}
	defer func() { _ = d.r.SeekTo(saved) }()

	var s string
	var err error
	switch primTypeInfo[e.idxType].Tag {
	case TagChar:
		var v int8
		if v, err = d.r.ReadI8(); err == nil {
			s = strconv.FormatInt(int64(v), 10)
		}
	case TagUChar, TagByte:
		var v uint8
		if v, err = d.r.ReadU8(); err == nil {
			s = strconv.FormatUint(uint64(v), 10)
		}
	case TagShort:
		var v int16
		if v, err = d.r.ReadI16(); err == nil {
			s = strconv.FormatInt(int64(v), 10)
		}
	case TagUShort:
		var v uint16
		if v, err = d.r.ReadU16(); err == nil {
			s = strconv.FormatUint(uint64(v), 10)
		}
	case TagInt, TagLong:
		var v int32
		if v, err = d.r.ReadI32(); err == nil {
			s = strconv.FormatInt(int64(v), 10)
		}
	case TagUInt, TagULong:
		var v uint32
		if v, err = d.r.ReadU32(); err == nil {
			s = strconv.FormatUint(uint64(v), 10)
		}
	case TagLongLong:
		var v int64
		if v, err = d.r.ReadI64(); err == nil {
			s = strconv.FormatInt(v, 10)
		}
	case TagULongLong:
		var v uint64
		if v, err = d.r.ReadU64(); err == nil {
			s = strconv.FormatUint(v, 10)
		}
	case TagFloat:
		var v float32
		if v, err = d.r.ReadF32(); err == nil {
			s = strconv.FormatFloat(float64(v), 'g', -1, 32)
		}
	case TagDouble:
		var v float64
		if v, err = d.r.ReadF64(); err == nil {
			s = strconv.FormatFloat(v, 'g', -1, 64)
		}
	case TagString:
		s, err = d.readRawString(int64(e.ptrDefault))
	default:
		// Date/time/ip/wide defaults do not occur in captured metalibs.
		Logger().Debug("skipping default value of unsupported type",
			zap.String("field", e.name),
			zap.Int32("tag", int32(primTypeInfo[e.idxType].Tag)))
		return nil
	}
	if err != nil {
		return err
	}
	e.defaultVal = s
	e.hasDefault = true
	return nil
}

// readRawString reads a null-terminated byte string at off without the
// GBK table cache; default-value payloads live outside the string region.
func (d *decoder) readRawString(off int64) (string, error) {
	if err := d.r.SeekTo(off); err != nil {
		return "", err
	}
	var buf []byte
	for {
		b, err := d.r.ReadU8()
		if err != nil {
			return "", err
		}
		if b == 0 {
			return string(buf), nil
		}
		buf = append(buf, b)
	}
}

// decodeMacroGroups decodes the enum groups and registers an enum
// descriptor per group.
func (d *decoder) decodeMacroGroups() error {
	if d.hdr.CurMacroGroupNum == 0 {
		return nil
	}
	if err := d.r.SeekTo(int64(d.hdr.MacroGroupOff)); err != nil {
		return err
	}
	if int64(d.hdr.CurMacroGroupNum)*groupBaseSize > d.r.Remaining() {
		return mlerrors.UnexpectedEOF(d.r.Position(), int(d.hdr.CurMacroGroupNum)*groupBaseSize)
	}
	for i := int32(0); i < d.hdr.CurMacroGroupNum; i++ {
		off := int32(d.r.Position())

		curCount, err := d.r.ReadI32()
		if err != nil {
			return err
		}
		if _, err := d.r.ReadI32(); err != nil { // capacity
			return err
		}
		desc, err := d.readStringPtr()
		if err != nil {
			return err
		}
		nameIdxOff, err := d.r.ReadI32()
		if err != nil {
			return err
		}
		valueIdxOff, err := d.r.ReadI32()
		if err != nil {
			return err
		}
		name, err := d.r.ReadFixedString(128)
		if err != nil {
			return err
		}

		if curCount < 0 {
			return mlerrors.InvalidData(mlerrors.PhaseDecode, int64(off), "negative macro count in group")
		}
		// Both index maps trail the fixed part; their recorded offsets
		// are relative to the group record.
		if int64(nameIdxOff) != d.r.Position()-int64(off) {
			return mlerrors.InvalidData(mlerrors.PhaseDecode, int64(off), "group name index map out of place")
		}
		if err := d.r.Skip(int(curCount) * 4); err != nil {
			return err
		}
		if int64(valueIdxOff) != d.r.Position()-int64(off) {
			return mlerrors.InvalidData(mlerrors.PhaseDecode, int64(off), "group value index map out of place")
		}

		values := make([]EnumValue, curCount)
		for j := range values {
			idx, err := d.r.ReadI32()
			if err != nil {
				return err
			}
			if idx < 0 || int(idx) >= len(d.macros) {
				return mlerrors.InvalidData(mlerrors.PhaseDecode, int64(off),
					"group references macro index "+strconv.Itoa(int(idx))+" outside the macro table")
			}
			d.macros[idx].Grouped = true
			values[j] = d.macros[idx].EnumValue
		}

		id := d.arena.register(&TypeDesc{
			Kind:   KindEnum,
			Name:   name,
			Target: NoID,
			Enum:   &EnumType{Values: values, Desc: desc},
		})
		d.groups[off] = id
		d.groupIDs = append(d.groupIDs, id)
	}
	return nil
}

// linkFields resolves every field record's raw type reference to an
// arena identifier, synthesizing array, pointer, alias and bitfield
// wrapper descriptors as the record's flags demand. References stay
// identifiers; nothing is dereferenced recursively, so self-referential
// composites resolve in one flat pass.
func (d *decoder) linkFields() error {
	for mi, raw := range d.raws {
		desc := d.arena.get(ID(mi))
		st := desc.Struct

		if err := d.linkMetaAttrs(raw, st); err != nil {
			return err
		}

		st.Fields = make([]FieldDesc, len(raw.entries))
		for fi := range raw.entries {
			if err := d.linkField(raw, &raw.entries[fi], &st.Fields[fi]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *decoder) linkMetaAttrs(raw *rawMeta, st *StructType) error {
	var err error
	if raw.idxVersion != None {
		if st.Version, err = d.macroName(raw.idxVersion, raw.off); err != nil {
			return err
		}
	} else {
		st.Version = strconv.Itoa(int(raw.baseVersion))
	}
	if raw.flags.Has(MetaHasID) {
		if raw.idxID != None {
			if st.IDAttr, err = d.macroName(raw.idxID, raw.off); err != nil {
				return err
			}
		} else {
			st.IDAttr = strconv.Itoa(int(raw.id))
		}
	}
	if raw.idxCustomH != None {
		if st.CustomSize, err = d.macroName(raw.idxCustomH, raw.off); err != nil {
			return err
		}
	} else if raw.customHUnit > 0 {
		st.CustomSize = strconv.Itoa(int(raw.customHUnit))
	}
	return nil
}

func (d *decoder) linkField(parent *rawMeta, e *rawEntry, f *FieldDesc) error {
	typeID, err := d.fieldType(e)
	if err != nil {
		return err
	}

	f.Name = e.name
	f.Type = typeID
	f.Offset = e.hOff
	f.NetOffset = e.nOff
	f.Size = e.hUnitSize
	f.NetSize = e.nUnitSize
	f.Desc = e.desc
	f.ChineseName = e.chineseName
	f.Default = e.defaultVal
	f.HasDefault = e.hasDefault
	f.Unique = e.dbFlags.Has(DBUnique)
	f.NotNull = e.dbFlags.Has(DBNotNull)

	if e.flags.Has(EntryHasID) {
		if f.IDAttr, err = d.macroOrNumber(e.idxID, e.id, e.off); err != nil {
			return err
		}
	}

	if e.version != parent.baseVersion {
		if e.idxVersion != None {
			if f.Version, err = d.macroName(e.idxVersion, e.off); err != nil {
				return err
			}
		} else {
			f.Version = strconv.Itoa(int(e.version))
		}
	}

	if e.idxCustomH != None {
		if f.CustomSize, err = d.macroName(e.idxCustomH, e.off); err != nil {
			return err
		}
	} else if e.customHUnit > 0 {
		if info, ok := PrimType(e.idxType); ok && info.Size > 0 {
			f.CustomSize = strconv.Itoa(int(e.customHUnit / info.Size))
		}
	}

	if e.flags.Has(EntryHasMaxMin) {
		if f.MinID, err = d.macroOrNumber(e.minIDIdx, e.minID, e.off); err != nil {
			return err
		}
		if f.MaxID, err = d.macroOrNumber(e.maxIDIdx, e.maxID, e.off); err != nil {
			return err
		}
	}

	switch e.io {
	case 0:
	case 1:
		f.IOMode = "noinput"
	case 2:
		f.IOMode = "nooutput"
	case 3:
		f.IOMode = "noio"
	default:
		return mlerrors.InvalidData(mlerrors.PhaseResolve, int64(e.off),
			"field io mode "+strconv.Itoa(int(e.io))+" out of range")
	}

	if e.count > 1 {
		switch e.order {
		case 1:
			f.SortMethod = "asc"
		case 2:
			f.SortMethod = "desc"
		}
	}

	if e.ptrGroup != None {
		gid, ok := d.groups[e.ptrGroup]
		if !ok {
			return mlerrors.DanglingTypeRef(int64(e.off), int64(e.ptrGroup))
		}
		f.MacrosGroup = d.arena.get(gid).Name
	}
	return nil
}

// fieldType resolves a field record to an arena identifier, synthesizing
// wrapper descriptors outside-in: pointer or alias around the base type,
// a bitfield for width-limited numeric storage, and an array outermost.
func (d *decoder) fieldType(e *rawEntry) (ID, error) {
	var base ID
	var err error
	switch {
	case e.ptrMeta != None:
		if base, err = d.arena.metaAt(e.off, e.ptrMeta); err != nil {
			return NoID, err
		}
	case e.idxType != None:
		if base, err = d.arena.primitive(e.idxType, int64(e.off)); err != nil {
			return NoID, err
		}
	default:
		return NoID, mlerrors.InvalidData(mlerrors.PhaseResolve, int64(e.off),
			"field has neither composite nor primitive type")
	}

	id := base
	wrapped := false
	switch {
	case e.flags.Has(EntryPointer):
		id = d.arena.register(&TypeDesc{
			Kind:   KindPointer,
			Size:   e.hUnitSize,
			Align:  e.hUnitSize,
			Target: id,
		})
		wrapped = true
	case e.flags.Has(EntryRefer):
		id = d.arena.register(&TypeDesc{
			Kind:   KindAlias,
			Size:   e.hUnitSize,
			Align:  e.hUnitSize,
			Target: id,
		})
		wrapped = true
	}

	if !wrapped && e.count <= 1 && e.tag.numeric() {
		if info, ok := PrimType(e.idxType); ok && e.customHUnit > 0 && e.customHUnit < info.Size {
			id = d.arena.register(&TypeDesc{
				Kind:   KindBitfield,
				Size:   e.customHUnit,
				Target: NoID,
				Bits: &BitfieldType{
					Storage:   id,
					BitOffset: e.hOff * 8,
					BitWidth:  e.customHUnit * 8,
				},
			})
		}
	}

	counted := e.sizeInfo.unitSize > 0 && e.sizeInfo.nOff != None
	if e.count > 1 || counted {
		var countRef string
		if e.idxCount != None {
			if countRef, err = d.macroName(e.idxCount, e.off); err != nil {
				return NoID, err
			}
		}
		id = d.arena.register(&TypeDesc{
			Kind:   KindArray,
			Size:   e.hRealSize,
			Target: NoID,
			Array:  &ArrayType{Elem: id, Count: e.count, CountRef: countRef},
		})
	}
	return id, nil
}

// linkPaths resolves the offset-addressed bindings (union selectors,
// refer and counted-array drivers, version indicators, sort keys) to
// dotted field paths. It runs after linkFields so nested walks see the
// whole table.
func (d *decoder) linkPaths() error {
	for mi, raw := range d.raws {
		st := d.arena.get(ID(mi)).Struct
		var err error

		if raw.verIndic.nOff != None {
			if st.VersionIndicator, err = d.netPath(raw, raw.verIndic.nOff); err != nil {
				return err
			}
		}
		if raw.sizeInfo.unitSize > 0 {
			if raw.sizeInfo.idxSizeType != None {
				if info, ok := PrimType(raw.sizeInfo.idxSizeType); ok {
					st.SizeInfo = info.XMLName
				}
			} else if raw.sizeInfo.nOff != None {
				if st.SizeInfo, err = d.netPath(raw, raw.sizeInfo.nOff); err != nil {
					return err
				}
			}
		}
		if raw.sortKey.sortKeyOffset != None {
			if st.SortKey, err = d.netPath(raw, raw.sortKey.sortKeyOffset); err != nil {
				return err
			}
		}

		for fi := range raw.entries {
			e := &raw.entries[fi]
			f := &st.Fields[fi]

			if e.referer.hOff != None {
				if f.Refer, err = d.hostPath(raw, e.referer.hOff); err != nil {
					return err
				}
			}
			if e.sizeInfo.unitSize > 0 {
				if e.sizeInfo.idxSizeType != None {
					if info, ok := PrimType(e.sizeInfo.idxSizeType); ok {
						if (info.Tag != TagString && info.Tag != TagWString) || info.XMLName == "int" {
							f.SizeInfo = info.XMLName
						}
					}
				} else if e.sizeInfo.nOff != None {
					if f.SizeInfo, err = d.netPath(raw, e.sizeInfo.nOff); err != nil {
						return err
					}
				}
			}
			if e.tag == TagUnion && e.selector.hOff != None {
				if f.Select, err = d.hostPath(raw, e.selector.hOff); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// hostPath resolves a host-layout byte offset within raw to the dotted
// name of the field that starts there, recursing through inline
// composite fields.
func (d *decoder) hostPath(raw *rawMeta, target int32) (string, error) {
	return d.walkPath(raw, target, 0, "", true, 0)
}

// netPath is hostPath over the wire layout.
func (d *decoder) netPath(raw *rawMeta, target int32) (string, error) {
	return d.walkPath(raw, target, 0, "", false, 0)
}

func (d *decoder) walkPath(raw *rawMeta, target, base int32, prefix string, host bool, depth int) (string, error) {
	if depth > maxPathDepth {
		return "", mlerrors.InvalidData(mlerrors.PhaseResolve, int64(raw.off), "field path recursion too deep")
	}
	for i := range raw.entries {
		e := &raw.entries[i]
		start, unit := base+e.nOff, e.nUnitSize
		if host {
			start, unit = base+e.hOff, e.hUnitSize
		}
		if start > target || start+unit <= target {
			continue
		}
		inline := !e.flags.Has(EntryPointer) && !e.flags.Has(EntryRefer)
		if e.tag == TagStruct && e.ptrMeta != None && inline {
			id, err := d.arena.metaAt(e.off, e.ptrMeta)
			if err != nil {
				return "", err
			}
			return d.walkPath(d.raws[id], target, start, prefix+e.name+".", host, depth+1)
		}
		if start == target {
			return prefix + e.name, nil
		}
	}
	return "", mlerrors.InvalidData(mlerrors.PhaseResolve, int64(raw.off),
		"no field starts at offset "+strconv.Itoa(int(target)))
}

// macroName returns the name of the macro at idx in the macro table.
func (d *decoder) macroName(idx, atOff int32) (string, error) {
	if idx < 0 || int(idx) >= len(d.macros) {
		return "", mlerrors.InvalidData(mlerrors.PhaseResolve, int64(atOff),
			"macro index "+strconv.Itoa(int(idx))+" outside the macro table")
	}
	return d.macros[idx].Name, nil
}

func (d *decoder) macroOrNumber(idx, value, atOff int32) (string, error) {
	if idx != None {
		return d.macroName(idx, atOff)
	}
	return strconv.Itoa(int(value)), nil
}

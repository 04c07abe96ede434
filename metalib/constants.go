package metalib

// Metalib binary format magic number and fixed sizes.
const (
	// Magic is the metalib signature ("ML" in little-endian).
	Magic uint16 = 0x4C4D

	// HeaderSize is the serialized size of the metalib header. All table
	// offsets in the header are relative to the end of the header.
	HeaderSize = 0x114

	// MinTagSetVersion and MaxTagSetVersion bound the XML tag set
	// revisions this decoder understands.
	MinTagSetVersion uint32 = 1
	MaxTagSetVersion uint32 = 3
)

// Record strides. Every record is fixed-layout; composite descriptors
// are followed by their declared number of fixed-layout field records.
const (
	macroSize     = 0x10
	mapEntrySize  = 0x08
	metaBaseSize  = 0xB8
	entrySize     = 0xB4
	groupBaseSize = 0x94 // counts, desc ptr, two map ptrs, 128-byte name
)

// None is the encoder's sentinel for absent values and references.
const None int32 = -1

// TypeTag is the on-disk type tag carried by composite descriptors and
// their field records.
type TypeTag int32

const (
	TagUnion TypeTag = iota
	TagStruct
	TagChar
	TagUChar
	TagByte
	TagShort
	TagUShort
	TagInt
	TagUInt
	TagLong
	TagULong
	TagLongLong
	TagULongLong
	TagDate
	TagTime
	TagDateTime
	TagMoney
	TagFloat
	TagDouble
	TagIP
	TagWChar
	TagString
	TagWString
	TagVoid
)

func (t TypeTag) valid() bool {
	return t >= TagUnion && t <= TagVoid
}

// numeric reports whether the tag denotes a fixed-width numeric value,
// the only storage a width-limited (bitfield) entry can narrow.
func (t TypeTag) numeric() bool {
	switch t {
	case TagChar, TagUChar, TagByte, TagShort, TagUShort, TagInt, TagUInt,
		TagLong, TagULong, TagLongLong, TagULongLong:
		return true
	}
	return false
}

// PrimInfo describes one built-in primitive type. Field records address
// this table through their idxType field.
type PrimInfo struct {
	XMLName string
	CName   string
	Tag     TypeTag
	Size    int32
}

// primTypeInfo mirrors the compiler's built-in type table, in its
// original order. Index positions are part of the binary format.
var primTypeInfo = [...]PrimInfo{
	{"union", "union", TagUnion, 0},
	{"struct", "struct", TagStruct, 0},
	{"tinyint", "int8_t", TagChar, 1},
	{"tinyuint", "uint8_t", TagUChar, 1},
	{"smallint", "int16_t", TagShort, 2},
	{"smalluint", "uint16_t", TagUShort, 2},
	{"int", "int32_t", TagInt, 4},
	{"uint", "uint32_t", TagUInt, 4},
	{"bigint", "int64_t", TagLongLong, 8},
	{"biguint", "uint64_t", TagULongLong, 8},
	{"int8", "int8_t", TagChar, 1},
	{"uint8", "uint8_t", TagUChar, 1},
	{"int16", "int16_t", TagShort, 2},
	{"uint16", "uint16_t", TagUShort, 2},
	{"int32", "int32_t", TagInt, 4},
	{"uint32", "uint32_t", TagUInt, 4},
	{"int64", "int64_t", TagLongLong, 8},
	{"uint64", "uint64_t", TagULongLong, 8},
	{"float", "float", TagFloat, 4},
	{"double", "double", TagDouble, 8},
	{"decimal", "float", TagFloat, 4},
	{"date", "tdr_date_t", TagDate, 4},
	{"time", "tdr_time_t", TagTime, 4},
	{"datetime", "tdr_datetime_t", TagDateTime, 8},
	{"string", "char", TagString, 1},
	{"byte", "uint8_t", TagUChar, 1},
	{"ip", "tdr_ip_t", TagIP, 4},
	{"wchar", "tdr_wchar_t", TagWChar, 2},
	{"wstring", "tdr_wchar_t", TagWString, 2},
	{"void", "void", TagVoid, 1},
	{"char", "char", TagChar, 1},
	{"uchar", "unsigned char", TagUChar, 1},
	{"short", "int16_t", TagShort, 2},
	{"ushort", "uint16_t", TagUShort, 2},
	{"long", "int32_t", TagLong, 4},
	{"ulong", "uint32_t", TagULong, 4},
	{"longlong", "int64_t", TagLongLong, 8},
	{"ulonglong", "uint64_t", TagULongLong, 8},
}

// PrimType returns the primitive table entry at idx.
func PrimType(idx int32) (PrimInfo, bool) {
	if idx < 0 || int(idx) >= len(primTypeInfo) {
		return PrimInfo{}, false
	}
	return primTypeInfo[idx], true
}

// PrimTypeIndex returns the primitive table index for an XML type name,
// or None when the name is not a built-in.
func PrimTypeIndex(xmlName string) int32 {
	for i := range primTypeInfo {
		if primTypeInfo[i].XMLName == xmlName {
			return int32(i)
		}
	}
	return None
}

// MetaFlags are the composite-descriptor flag bits.
type MetaFlags uint32

const (
	MetaFixedSize            MetaFlags = 0x0001
	MetaHasID                MetaFlags = 0x0002
	MetaResolved             MetaFlags = 0x0004
	MetaVariable             MetaFlags = 0x0008
	MetaStrictInput          MetaFlags = 0x0010
	MetaHasAutoIncrement     MetaFlags = 0x0020
	MetaNeedPrefixUniqueName MetaFlags = 0x0040
	MetaHasExtend            MetaFlags = 0x0080
	MetaIsExtend             MetaFlags = 0x0100
)

// Has reports whether all bits in f are set.
func (m MetaFlags) Has(f MetaFlags) bool { return m&f == f }

// EntryFlags are the field-record flag bits.
type EntryFlags uint16

const (
	EntryResolved   EntryFlags = 0x0001
	EntryPointer    EntryFlags = 0x0002 // a pointer "*" type
	EntryRefer      EntryFlags = 0x0004 // a refer "@" type
	EntryHasID      EntryFlags = 0x0008
	EntryHasMaxMin  EntryFlags = 0x0010
	EntryFixedSize  EntryFlags = 0x0020
	EntryReferCount EntryFlags = 0x0040 // this field is the count for a sibling array
)

// Has reports whether all bits in f are set.
func (e EntryFlags) Has(f EntryFlags) bool { return e&f == f }

// EntryDBFlags are the field-record database flag bits.
type EntryDBFlags uint8

const (
	DBUnique        EntryDBFlags = 0x01
	DBNotNull       EntryDBFlags = 0x02
	DBExtendToTable EntryDBFlags = 0x04
	DBPrimaryKey    EntryDBFlags = 0x10
	DBAutoIncrement EntryDBFlags = 0x20
)

// Has reports whether all bits in f are set.
func (d EntryDBFlags) Has(f EntryDBFlags) bool { return d&f == f }

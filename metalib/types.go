package metalib

// ID is a stable identifier into the type arena. Identifiers are
// assigned in table order (first composite record = id 0) and are never
// freed or reused within a decode session.
type ID int32

// NoID marks an absent type reference.
const NoID ID = -1

// Kind identifies the variant carried by a TypeDesc. The set is closed:
// decoder and renderers dispatch over it exhaustively.
type Kind int

const (
	KindPrimitive Kind = iota
	KindStruct
	KindUnion
	KindEnum
	KindArray
	KindBitfield
	KindPointer
	KindAlias
)

// String returns the lower-case kind name.
func (k Kind) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindStruct:
		return "struct"
	case KindUnion:
		return "union"
	case KindEnum:
		return "enum"
	case KindArray:
		return "array"
	case KindBitfield:
		return "bitfield"
	case KindPointer:
		return "pointer"
	case KindAlias:
		return "alias"
	default:
		return "unknown"
	}
}

// TypeDesc is one decoded type descriptor: a tagged variant over the
// eight kinds. Exactly one payload pointer is set, matching Kind;
// Pointer and Alias carry only Target. Name may be empty for synthesized
// anonymous types (array, pointer and bitfield wrappers).
type TypeDesc struct {
	ID    ID
	Kind  Kind
	Name  string
	Size  int32 // in-memory byte size on the host layout
	Align int32

	Prim   *PrimInfo
	Struct *StructType // KindStruct and KindUnion
	Enum   *EnumType
	Array  *ArrayType
	Bits   *BitfieldType
	Target ID // KindPointer and KindAlias; NoID otherwise
}

// StructType is the payload of struct and union descriptors. The
// attribute fields hold values resolved during decode (macro names,
// sibling field paths) so that rendering a finalized graph cannot fail.
type StructType struct {
	Fields      []FieldDesc
	BaseVersion int32
	Version     string // version attribute (macro name or number)
	IDAttr      string // id attribute, "" when absent
	CustomSize  string // size attribute, "" when absent
	CustomAlign int32  // 1 means default
	Desc        string
	ChineseName string

	// Resolved field paths; "" when the source record leaves them unset.
	VersionIndicator string
	SizeInfo         string
	SortKey          string
}

// FieldDesc is one field of a struct or union. Type always names a
// registered arena identifier; array, pointer, alias and bitfield
// wrappers are synthesized descriptors, so the field itself stays a
// plain (name, type, offset) triple.
type FieldDesc struct {
	Name      string
	Type      ID
	Offset    int32 // host byte offset within the parent
	NetOffset int32 // wire byte offset within the parent
	Size      int32 // host unit size
	NetSize   int32 // wire unit size

	IDAttr      string // id attribute (macro name or number), "" when absent
	Version     string // version attribute, "" when inherited from the parent
	CustomSize  string // size attribute, "" when absent
	Desc        string
	ChineseName string
	Default     string
	HasDefault  bool

	// Resolved bindings into the surrounding type.
	Refer       string // refer attribute: sibling field path
	SizeInfo    string // counted-array driver: sibling field path or type name
	Select      string // union selector field path
	MacrosGroup string // bound enum group name
	SortMethod  string // "asc", "desc" or ""
	IOMode      string // "noinput", "nooutput", "noio" or ""
	MinID       string
	MaxID       string
	Unique      bool
	NotNull     bool
}

// EnumType is the payload of enum descriptors (macro groups). Value
// order is declaration order and is semantically significant; duplicate
// values are legal and denote aliases.
type EnumType struct {
	Values []EnumValue
	Desc   string
}

// EnumValue is one named integer constant.
type EnumValue struct {
	Name  string
	Value int32
	Desc  string
}

// Macro is one metalib-level constant. Grouped reports whether any enum
// group claims it; ungrouped macros render at metalib scope.
type Macro struct {
	EnumValue
	Grouped bool
}

// ArrayType is the payload of array descriptors. Count is the static
// length; CountRef carries the macro name when the length is bound to a
// named constant. Counted arrays (length driven by a sibling field at
// payload-decode time) keep Count as the declared capacity and record
// the driving field in the owning FieldDesc.SizeInfo.
type ArrayType struct {
	Elem     ID
	Count    int32
	CountRef string
}

// BitfieldType is the payload of width-limited numeric storage.
type BitfieldType struct {
	Storage   ID
	BitOffset int32
	BitWidth  int32
}

// Header is the decoded metalib header.
type Header struct {
	Magic    uint16
	Build    uint16
	Platform uint32
	Size     uint32 // total blob size, header included

	ID            int32
	TagSetVersion uint32
	Version       uint32
	Name          string

	MaxMetaNum       int32
	CurMetaNum       int32
	MaxMacroNum      int32
	CurMacroNum      int32
	MaxMacroGroupNum int32
	CurMacroGroupNum int32

	// Table offsets, relative to the end of the header.
	MacroOff         uint32
	IDOff            uint32
	NameOff          uint32
	MapOff           uint32
	MetaOff          uint32
	LastMetaOff      uint32
	StrBufSize       int32
	StrBufOff        uint32
	FreeStrBufOff    uint32
	MacroGroupMapOff uint32
	MacroGroupOff    uint32
}

// Lib is the finalized type graph of one decode session: the arena of
// all descriptors plus the designated roots. It is immutable once
// Parse returns it; renderers share it read-only, so independent roots
// may be rendered concurrently without locking.
type Lib struct {
	Header Header
	Macros []Macro // all metalib constants, in table order

	types  []*TypeDesc
	roots  []ID
	groups []ID
	byName map[string]ID
}

// Get returns the descriptor for id.
func (l *Lib) Get(id ID) (*TypeDesc, bool) {
	if id < 0 || int(id) >= len(l.types) {
		return nil, false
	}
	return l.types[id], true
}

// NumTypes returns the arena size.
func (l *Lib) NumTypes() int { return len(l.types) }

// Roots returns the identifiers of the top-level composite types, in
// table order.
func (l *Lib) Roots() []ID { return l.roots }

// Groups returns the identifiers of the enum descriptors, in table order.
func (l *Lib) Groups() []ID { return l.groups }

// Lookup returns the descriptor with the given name. Synthesized
// wrapper types are anonymous and cannot be looked up.
func (l *Lib) Lookup(name string) (*TypeDesc, bool) {
	id, ok := l.byName[name]
	if !ok {
		return nil, false
	}
	return l.types[id], true
}

package metalib

import (
	"errors"
	"testing"

	mlerrors "github.com/tdrkit/mldec/errors"
)

func TestGraphBuilderRegisterOrder(t *testing.T) {
	b := newGraphBuilder()

	first := b.registerMeta(0x10, &TypeDesc{Kind: KindStruct, Name: "a", Target: NoID, Struct: &StructType{}})
	second := b.registerMeta(0x20, &TypeDesc{Kind: KindStruct, Name: "b", Target: NoID, Struct: &StructType{}})

	if first != 0 || second != 1 {
		t.Fatalf("ids = %d, %d; want 0, 1", first, second)
	}

	id, err := b.metaAt(0x99, 0x20)
	if err != nil {
		t.Fatalf("metaAt: %v", err)
	}
	if id != second {
		t.Fatalf("metaAt(0x20) = %d, want %d", id, second)
	}
}

func TestGraphBuilderDanglingMeta(t *testing.T) {
	b := newGraphBuilder()
	b.registerMeta(0x10, &TypeDesc{Kind: KindStruct, Target: NoID, Struct: &StructType{}})

	_, err := b.metaAt(0x44, 0x30)
	var me *mlerrors.Error
	if !errors.As(err, &me) || me.Kind != mlerrors.KindDanglingTypeRef {
		t.Fatalf("metaAt(unknown) = %v, want dangling type reference", err)
	}
}

func TestGraphBuilderPrimitiveMemoized(t *testing.T) {
	b := newGraphBuilder()

	idx := PrimTypeIndex("uint")
	one, err := b.primitive(idx, 0)
	if err != nil {
		t.Fatalf("primitive: %v", err)
	}
	two, err := b.primitive(idx, 100)
	if err != nil {
		t.Fatalf("primitive: %v", err)
	}
	if one != two {
		t.Fatalf("same index registered twice: %d then %d", one, two)
	}
	if d := b.get(one); d.Kind != KindPrimitive || d.Name != "uint" {
		t.Fatalf("descriptor = %v %q", d.Kind, d.Name)
	}
}

func TestGraphBuilderPrimitiveOutOfRange(t *testing.T) {
	b := newGraphBuilder()

	for _, idx := range []int32{-1, int32(len(primTypeInfo)), 9999} {
		_, err := b.primitive(idx, 7)
		var me *mlerrors.Error
		if !errors.As(err, &me) || me.Kind != mlerrors.KindUnknownTypeKind {
			t.Fatalf("primitive(%d) = %v, want unknown type kind", idx, err)
		}
	}
}

func TestFinalizeRejectsDanglingField(t *testing.T) {
	b := newGraphBuilder()
	b.registerMeta(0x10, &TypeDesc{
		Kind:   KindStruct,
		Name:   "broken",
		Target: NoID,
		Struct: &StructType{Fields: []FieldDesc{{Name: "f", Type: ID(42)}}},
	})

	_, err := b.finalize(Header{}, nil, []ID{0}, nil)
	var me *mlerrors.Error
	if !errors.As(err, &me) || me.Kind != mlerrors.KindDanglingTypeRef {
		t.Fatalf("finalize = %v, want dangling type reference", err)
	}
}

func TestFinalizeLookupFirstWins(t *testing.T) {
	b := newGraphBuilder()
	b.registerMeta(0x10, &TypeDesc{Kind: KindStruct, Name: "dup", Target: NoID, Struct: &StructType{}})
	b.registerMeta(0x20, &TypeDesc{Kind: KindStruct, Name: "dup", Target: NoID, Struct: &StructType{}})

	lib, err := b.finalize(Header{}, nil, []ID{0, 1}, nil)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	d, ok := lib.Lookup("dup")
	if !ok || d.ID != 0 {
		t.Fatalf("Lookup(dup) = %v, %v; want id 0", d, ok)
	}
}

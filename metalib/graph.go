package metalib

import (
	mlerrors "github.com/tdrkit/mldec/errors"
)

// graphBuilder owns the type arena while a decode session is in flight.
// Identifiers are handed out in registration order and are never reused;
// cross-references are stored as identifiers, never as nested copies,
// which is what lets self-referential and mutually-cyclic definitions
// decode without unbounded recursion.
//
// A builder is discarded wholesale on any decode error; only finalize
// exposes the arena, as an immutable Lib.
type graphBuilder struct {
	types        []*TypeDesc
	metaByOffset map[int32]ID
	primByIdx    map[int32]ID
}

func newGraphBuilder() *graphBuilder {
	return &graphBuilder{
		metaByOffset: make(map[int32]ID),
		primByIdx:    make(map[int32]ID),
	}
}

// register adds a descriptor to the arena and assigns its identifier.
func (b *graphBuilder) register(d *TypeDesc) ID {
	d.ID = ID(len(b.types))
	b.types = append(b.types, d)
	return d.ID
}

// registerMeta registers a composite descriptor decoded from the given
// blob offset. Composite records are registered in table order, so the
// first record receives id 0, matching the table's own indexing.
func (b *graphBuilder) registerMeta(off int32, d *TypeDesc) ID {
	id := b.register(d)
	b.metaByOffset[off] = id
	return id
}

// get returns the descriptor for id. The id must have been issued by
// this builder.
func (b *graphBuilder) get(id ID) *TypeDesc {
	return b.types[id]
}

// metaAt resolves a raw blob-offset reference (recorded at decode time
// by the record at offset from) to an arena identifier.
func (b *graphBuilder) metaAt(from, off int32) (ID, error) {
	id, ok := b.metaByOffset[off]
	if !ok {
		return NoID, mlerrors.DanglingTypeRef(int64(from), int64(off))
	}
	return id, nil
}

// primitive returns the arena identifier for the built-in type table
// entry idx, registering a descriptor on first use. atOff is the blob
// offset of the referencing record, used for error context.
func (b *graphBuilder) primitive(idx int32, atOff int64) (ID, error) {
	if idx < 0 || int(idx) >= len(primTypeInfo) {
		return NoID, mlerrors.UnknownTypeKind(idx, atOff)
	}
	if id, ok := b.primByIdx[idx]; ok {
		return id, nil
	}
	info := primTypeInfo[idx]
	id := b.register(&TypeDesc{
		Kind:   KindPrimitive,
		Name:   info.XMLName,
		Size:   info.Size,
		Align:  info.Size,
		Prim:   &info,
		Target: NoID,
	})
	b.primByIdx[idx] = id
	return id, nil
}

// finalize checks that every reference held by any registered descriptor
// names a valid identifier, then seals the arena into a Lib. After this
// point no writer exists, so renderers may walk the graph concurrently.
func (b *graphBuilder) finalize(hdr Header, macros []Macro, roots, groups []ID) (*Lib, error) {
	n := ID(len(b.types))
	valid := func(id ID) bool { return id >= 0 && id < n }

	for _, d := range b.types {
		switch d.Kind {
		case KindStruct, KindUnion:
			for _, f := range d.Struct.Fields {
				if !valid(f.Type) {
					return nil, mlerrors.DanglingTypeRef(int64(d.ID), int64(f.Type))
				}
			}
		case KindArray:
			if !valid(d.Array.Elem) {
				return nil, mlerrors.DanglingTypeRef(int64(d.ID), int64(d.Array.Elem))
			}
		case KindBitfield:
			if !valid(d.Bits.Storage) {
				return nil, mlerrors.DanglingTypeRef(int64(d.ID), int64(d.Bits.Storage))
			}
		case KindPointer, KindAlias:
			if !valid(d.Target) {
				return nil, mlerrors.DanglingTypeRef(int64(d.ID), int64(d.Target))
			}
		}
	}

	byName := make(map[string]ID, len(roots)+len(groups))
	for _, d := range b.types {
		if d.Name == "" {
			continue
		}
		if _, exists := byName[d.Name]; !exists {
			byName[d.Name] = d.ID
		}
	}

	return &Lib{
		Header: hdr,
		Macros: macros,
		types:  b.types,
		roots:  roots,
		groups: groups,
		byName: byName,
	}, nil
}

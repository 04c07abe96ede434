package render

import (
	"context"
	"strconv"

	"golang.org/x/sync/errgroup"

	mlerrors "github.com/tdrkit/mldec/errors"
	"github.com/tdrkit/mldec/metalib"
)

// TypeTree is one type rendered structurally: composites expanded
// inline, recursion cut with backref nodes. BackRefs counts the cuts.
type TypeTree struct {
	Node     *Node
	BackRefs int
}

// Type renders the type id as a nested document. Every composite
// encountered is expanded in place; a composite already open on the
// current path renders as a backref element instead, so cyclic schemas
// produce finite trees. The walk is read-only, so concurrent calls on
// one Lib are safe.
func Type(lib *metalib.Lib, id metalib.ID) (*TypeTree, error) {
	d, ok := lib.Get(id)
	if !ok {
		return nil, mlerrors.NotFound(mlerrors.PhaseRender, "type", strconv.FormatInt(int64(id), 10))
	}
	r := &typeRenderer{lib: lib, active: make(map[metalib.ID]bool)}
	return &TypeTree{Node: r.render(d), BackRefs: r.backRefs}, nil
}

// ByName renders the named type.
func ByName(lib *metalib.Lib, name string) (*TypeTree, error) {
	d, ok := lib.Lookup(name)
	if !ok {
		return nil, mlerrors.NotFound(mlerrors.PhaseRender, "type", name)
	}
	return Type(lib, d.ID)
}

// All renders every root composite concurrently and returns the trees
// in root order.
func All(ctx context.Context, lib *metalib.Lib) ([]*TypeTree, error) {
	roots := lib.Roots()
	out := make([]*TypeTree, len(roots))

	g, ctx := errgroup.WithContext(ctx)
	for i, id := range roots {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			tree, err := Type(lib, id)
			if err != nil {
				return err
			}
			out[i] = tree
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

type typeRenderer struct {
	lib      *metalib.Lib
	active   map[metalib.ID]bool
	backRefs int
}

func (r *typeRenderer) render(d *metalib.TypeDesc) *Node {
	switch d.Kind {
	case metalib.KindPrimitive:
		n := &Node{Name: "primitive"}
		n.attr("type", d.Name)
		n.attr("size", strconv.FormatInt(int64(d.Size), 10))
		return n

	case metalib.KindStruct, metalib.KindUnion:
		if r.active[d.ID] {
			r.backRefs++
			n := &Node{Name: "backref"}
			n.attr("type", d.Name)
			return n
		}
		r.active[d.ID] = true
		n := &Node{Name: d.Kind.String()}
		n.attr("name", d.Name)
		n.attr("size", strconv.FormatInt(int64(d.Size), 10))
		for i := range d.Struct.Fields {
			f := &d.Struct.Fields[i]
			fn := n.child(&Node{Name: "field"})
			fn.attr("name", f.Name)
			fn.attr("offset", strconv.FormatInt(int64(f.Offset), 10))
			fn.attr("select", f.Select)
			ft, _ := r.lib.Get(f.Type)
			fn.child(r.render(ft))
		}
		delete(r.active, d.ID)
		return n

	case metalib.KindEnum:
		n := &Node{Name: "enum"}
		n.attr("name", d.Name)
		for _, v := range d.Enum.Values {
			vn := n.child(&Node{Name: "value"})
			vn.attr("name", v.Name)
			vn.attr("value", strconv.FormatInt(int64(v.Value), 10))
		}
		return n

	case metalib.KindArray:
		n := &Node{Name: "array"}
		if d.Array.CountRef != "" {
			n.attr("count", d.Array.CountRef)
		} else {
			n.attr("count", strconv.FormatInt(int64(d.Array.Count), 10))
		}
		elem, _ := r.lib.Get(d.Array.Elem)
		n.child(r.render(elem))
		return n

	case metalib.KindBitfield:
		n := &Node{Name: "bitfield"}
		n.attr("bits", strconv.FormatInt(int64(d.Bits.BitWidth), 10))
		n.attr("offset", strconv.FormatInt(int64(d.Bits.BitOffset), 10))
		storage, _ := r.lib.Get(d.Bits.Storage)
		n.child(r.render(storage))
		return n

	case metalib.KindPointer, metalib.KindAlias:
		n := &Node{Name: d.Kind.String()}
		target, _ := r.lib.Get(d.Target)
		n.child(r.render(target))
		return n

	default:
		return &Node{Name: "unknown"}
	}
}

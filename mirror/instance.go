package mirror

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"

	"github.com/wippyai/embed-runtime/dynamic"
	"github.com/wippyai/embed-runtime/errors"
	"github.com/wippyai/embed-runtime/host"
	"github.com/wippyai/embed-runtime/ownership"
)

// Instance is a dynamic object standing for a host object. It pins the
// host object in the keep-alive arena until it is released or collected.
type Instance struct {
	mirror  *Mirror
	typ     *MirroredType
	ref     *ownership.Ref
	display string
}

var (
	_ dynamic.RichComparer   = (*Instance)(nil)
	_ dynamic.Hasher         = (*Instance)(nil)
	_ dynamic.Representer    = (*Instance)(nil)
	_ dynamic.Sized          = (*Instance)(nil)
	_ dynamic.Subscriptable  = (*Instance)(nil)
	_ dynamic.ItemAssigner   = (*Instance)(nil)
	_ dynamic.Iterable       = (*Instance)(nil)
	_ dynamic.Container      = (*Instance)(nil)
	_ dynamic.ContextManager = (*Instance)(nil)
	_ dynamic.ItemHasher     = (*Instance)(nil)
)

func (m *Mirror) newInstance(o *host.Object, mt *MirroredType) (*Instance, error) {
	h, err := m.keep.Retain(o)
	if err != nil {
		return nil, err
	}
	inst := &Instance{
		mirror:  m,
		typ:     mt,
		display: fmt.Sprintf("<%s@%x>", o.Class().Name(), o.ID()),
	}
	inst.ref = ownership.Bind(inst, m.keep, h)
	return inst, nil
}

func (i *Instance) Type() *dynamic.Type { return i.typ.typ }

// Mirrored returns the mirrored type of the host object's runtime class.
func (i *Instance) Mirrored() *MirroredType { return i.typ }

// Object returns the host object. It fails once the instance is released.
func (i *Instance) Object() (*host.Object, error) {
	if i.ref.Released() {
		return nil, errors.Released("host object "+i.display, uint64(i.ref.Handle()))
	}
	return i.mirror.keep.Get(i.ref.Handle())
}

// Release unpins the host object ahead of garbage collection.
func (i *Instance) Release() error { return i.ref.Release() }

// Released reports whether Release has been called.
func (i *Instance) Released() bool { return i.ref.Released() }

func (i *Instance) String() string { return i.display }

// HashKey hashes by host identity.
func (i *Instance) HashKey() (string, error) {
	o, err := i.Object()
	if err != nil {
		return "", i.mirror.raise(context.Background(), err)
	}
	return "host:" + strconv.FormatUint(o.ID(), 16), nil
}

// HashItems lets host arrays and lists hash by content, since they compare
// equal to tuples with the same items. Mutating such a key after inserting
// it into a dict loses the entry, as with a host HashMap.
func (i *Instance) HashItems() ([]dynamic.Object, bool, error) {
	o, err := i.Object()
	if err != nil {
		return nil, false, i.mirror.raise(context.Background(), err)
	}
	elems, ok := sequence(o)
	if !ok {
		return nil, false, nil
	}
	out := make([]dynamic.Object, len(elems))
	for k, e := range elems {
		// wrapping a host value never calls into host code
		if out[k], err = i.mirror.conv.ToDynamic(context.Background(), e); err != nil {
			return nil, false, i.mirror.raise(context.Background(), err)
		}
	}
	return out, true, nil
}

// Str renders the host toString.
func (i *Instance) Str(ctx context.Context) (string, error) {
	o, err := i.Object()
	if err != nil {
		return "", i.mirror.raise(ctx, err)
	}
	res, err := i.mirror.invokeHost(ctx, func(ctx context.Context) (host.Value, error) {
		return host.InvokeByName(ctx, o, "toString")
	})
	if err != nil {
		return "", i.mirror.raise(ctx, err)
	}
	s, _ := res.(*host.Object)
	if s == nil {
		return "null", nil
	}
	return host.GoString(s), nil
}

// Repr renders the class name and identity.
func (i *Instance) Repr(context.Context) (string, error) { return i.display, nil }

// RichCompare implements equality by host identity and ordering through
// java.lang.Comparable. Host lists, arrays and maps also compare equal to
// dynamic sequences and dicts with equal contents.
func (i *Instance) RichCompare(ctx context.Context, other dynamic.Object, op dynamic.CompareOp) (dynamic.Object, error) {
	o, err := i.Object()
	if err != nil {
		return nil, i.mirror.raise(ctx, err)
	}

	if op == dynamic.Eq || op == dynamic.Ne {
		eq, handled, err := i.equal(ctx, o, other)
		if err != nil {
			return nil, err
		}
		if !handled {
			return dynamic.NotImplemented, nil
		}
		return dynamic.NewBool(eq == (op == dynamic.Eq)), nil
	}

	ordered := i.mirror.classes.MustLookup(host.ComparableInterface)
	if !ordered.AssignableFrom(o.Class()) {
		return nil, i.unsupported(op, other)
	}
	arg, err := i.mirror.conv.ToHost(ctx, other, i.mirror.classes.MustLookup(host.ObjectClass))
	if err != nil {
		return nil, i.unsupported(op, other)
	}
	res, err := i.mirror.invokeHost(ctx, func(ctx context.Context) (host.Value, error) {
		return host.InvokeByName(ctx, o, "compareTo", arg)
	})
	if err != nil {
		if t, ok := err.(*host.Thrown); ok && t.Object.Class().IsSubclassOf("java.lang.ClassCastException") {
			return nil, i.unsupported(op, other)
		}
		return nil, i.mirror.raise(ctx, err)
	}
	c, ok := res.(int32)
	if !ok {
		return nil, i.unsupported(op, other)
	}
	switch op {
	case dynamic.Lt:
		return dynamic.NewBool(c < 0), nil
	case dynamic.Le:
		return dynamic.NewBool(c <= 0), nil
	case dynamic.Gt:
		return dynamic.NewBool(c > 0), nil
	default:
		return dynamic.NewBool(c >= 0), nil
	}
}

func (i *Instance) unsupported(op dynamic.CompareOp, other dynamic.Object) error {
	exc := dynamic.Raise(dynamic.TypeError, "'%s' not supported between instances of '%s' and '%s'",
		op, i.typ.Name(), dynamic.TypeName(other))
	exc.Origin = errors.UnsupportedComparison(op.String(), i.typ.Name(), dynamic.TypeName(other))
	return exc
}

// equal compares against other. handled is false when the comparison
// should fall back to the other operand.
func (i *Instance) equal(ctx context.Context, o *host.Object, other dynamic.Object) (eq, handled bool, err error) {
	if oi, ok := other.(*Instance); ok {
		oo, err := oi.Object()
		if err != nil {
			return false, false, i.mirror.raise(ctx, err)
		}
		return host.Same(o, oo), true, nil
	}

	switch x := other.(type) {
	case *dynamic.List:
		return i.sequenceEqual(ctx, o, x.Items)
	case *dynamic.Tuple:
		return i.sequenceEqual(ctx, o, x.Items)
	case *dynamic.Dict:
		return i.dictEqual(ctx, o, x)
	}
	return false, false, nil
}

func (i *Instance) sequenceEqual(ctx context.Context, o *host.Object, items []dynamic.Object) (bool, bool, error) {
	elems, ok := sequence(o)
	if !ok {
		return false, false, nil
	}
	if len(elems) != len(items) {
		return false, true, nil
	}
	for k, e := range elems {
		dv, err := i.mirror.conv.ToDynamic(ctx, e)
		if err != nil {
			return false, true, i.mirror.raise(ctx, err)
		}
		eq, err := dynamic.Equal(ctx, dv, items[k])
		if err != nil || !eq {
			return false, true, err
		}
	}
	return true, true, nil
}

func (i *Instance) dictEqual(ctx context.Context, o *host.Object, d *dynamic.Dict) (bool, bool, error) {
	keys, vals, ok := host.MapEntries(o)
	if !ok {
		return false, false, nil
	}
	if len(keys) != d.Len() {
		return false, true, nil
	}
	for k := range keys {
		dk, err := i.mirror.conv.ToDynamic(ctx, keys[k])
		if err != nil {
			return false, true, i.mirror.raise(ctx, err)
		}
		want, found, err := d.Get(dk)
		if err != nil || !found {
			return false, true, err
		}
		dv, err := i.mirror.conv.ToDynamic(ctx, vals[k])
		if err != nil {
			return false, true, i.mirror.raise(ctx, err)
		}
		eq, err := dynamic.Equal(ctx, dv, want)
		if err != nil || !eq {
			return false, true, err
		}
	}
	return true, true, nil
}

// sequence snapshots the elements of a host array or list.
func sequence(o *host.Object) ([]host.Value, bool) {
	if o.Class().IsArray() {
		n := host.ArrayLen(o)
		out := make([]host.Value, n)
		for k := 0; k < n; k++ {
			v, err := host.ArrayGet(o, k)
			if err != nil {
				return nil, false
			}
			out[k] = v
		}
		return out, true
	}
	return host.ListItems(o)
}

// Len returns the length of a host array, list or map.
func (i *Instance) Len(ctx context.Context) (int, error) {
	o, err := i.Object()
	if err != nil {
		return 0, i.mirror.raise(ctx, err)
	}
	if o.Class().IsArray() {
		return host.ArrayLen(o), nil
	}
	if items, ok := host.ListItems(o); ok {
		return len(items), nil
	}
	if keys, _, ok := host.MapEntries(o); ok {
		return len(keys), nil
	}
	if i.implements(o, host.CollectionInterface) || i.implements(o, host.MapInterface) {
		n, err := i.call(ctx, o, "size")
		if err != nil {
			return 0, err
		}
		if size, ok := n.(int32); ok {
			return int(size), nil
		}
	}
	return 0, dynamic.Raise(dynamic.TypeError, "object of type '%s' has no len()", i.typ.Name())
}

// Contains answers membership. Arrays, built-in lists and host iterables
// that are not collections are searched by dynamic equality; other maps
// and collections answer through containsKey and contains.
func (i *Instance) Contains(ctx context.Context, v dynamic.Object) (bool, error) {
	o, err := i.Object()
	if err != nil {
		return false, i.mirror.raise(ctx, err)
	}
	_, search := sequence(o)
	method := ""
	switch {
	case search:
	case i.implements(o, host.MapInterface):
		method = "containsKey"
	case i.implements(o, host.CollectionInterface):
		method = "contains"
	case i.implements(o, host.IterableInterface):
		search = true
	}
	if method == "" {
		if !search {
			return false, dynamic.Raise(dynamic.TypeError, "argument of type '%s' is not iterable", i.typ.Name())
		}
		found := false
		err := i.Iterate(ctx, func(it dynamic.Object) error {
			eq, err := dynamic.Equal(ctx, it, v)
			if err == nil && eq {
				found = true
				return errStop
			}
			return err
		})
		if err == errStop {
			err = nil
		}
		return found, err
	}

	hv, err := i.mirror.conv.ToHost(ctx, v, i.mirror.classes.MustLookup(host.ObjectClass))
	if err != nil {
		return false, i.mirror.raise(ctx, err)
	}
	res, err := i.call(ctx, o, method, hv)
	if err != nil {
		return false, err
	}
	return res == true, nil
}

var errStop = stderrors.New("stop")

// Enter makes a java.lang.AutoCloseable usable in a with statement; the
// bound value is the instance itself.
func (i *Instance) Enter(ctx context.Context) (dynamic.Object, error) {
	o, err := i.Object()
	if err != nil {
		return nil, i.mirror.raise(ctx, err)
	}
	if !i.implements(o, host.AutoCloseableInterface) {
		return nil, dynamic.Raise(dynamic.TypeError, "'%s' object does not support the context manager protocol", i.typ.Name())
	}
	return i, nil
}

// Exit closes the host object. Exceptions of the block are never
// suppressed.
func (i *Instance) Exit(ctx context.Context, _ *dynamic.Exception) (bool, error) {
	o, err := i.Object()
	if err != nil {
		return false, i.mirror.raise(ctx, err)
	}
	_, err = i.call(ctx, o, "close")
	return false, err
}

func (i *Instance) implements(o *host.Object, iface string) bool {
	t, err := i.mirror.classes.Lookup(iface)
	return err == nil && t.AssignableFrom(o.Class())
}

// call invokes a host method by name with the interpreter lock released.
func (i *Instance) call(ctx context.Context, o *host.Object, name string, args ...host.Value) (host.Value, error) {
	res, err := i.mirror.invokeHost(ctx, func(ctx context.Context) (host.Value, error) {
		return host.InvokeByName(ctx, o, name, args...)
	})
	if err != nil {
		return nil, i.mirror.raise(ctx, err)
	}
	return res, nil
}

// GetItem indexes host arrays and lists and looks up keys in host maps.
func (i *Instance) GetItem(ctx context.Context, key dynamic.Object) (dynamic.Object, error) {
	o, err := i.Object()
	if err != nil {
		return nil, i.mirror.raise(ctx, err)
	}
	conv := i.mirror.conv

	if elems, ok := sequence(o); ok {
		idx, err := seqIndex(key, len(elems), i.typ.Name())
		if err != nil {
			return nil, err
		}
		out, err := conv.ToDynamic(ctx, elems[idx])
		if err != nil {
			return nil, i.mirror.raise(ctx, err)
		}
		return out, nil
	}

	if _, _, ok := host.MapEntries(o); ok {
		hk, err := conv.ToHost(ctx, key, i.mirror.classes.MustLookup(host.ObjectClass))
		if err != nil {
			return nil, i.mirror.raise(ctx, err)
		}
		found, err := i.mirror.invokeHost(ctx, func(ctx context.Context) (host.Value, error) {
			return host.InvokeByName(ctx, o, "containsKey", hk)
		})
		if err != nil {
			return nil, i.mirror.raise(ctx, err)
		}
		if found != true {
			r, _ := dynamic.Repr(ctx, key)
			return nil, dynamic.Raise(dynamic.KeyError, "%s", r)
		}
		v, err := i.mirror.invokeHost(ctx, func(ctx context.Context) (host.Value, error) {
			return host.InvokeByName(ctx, o, "get", hk)
		})
		if err != nil {
			return nil, i.mirror.raise(ctx, err)
		}
		out, err := conv.ToDynamic(ctx, v)
		if err != nil {
			return nil, i.mirror.raise(ctx, err)
		}
		return out, nil
	}
	return nil, dynamic.Raise(dynamic.TypeError, "'%s' object is not subscriptable", i.typ.Name())
}

// SetItem assigns into host arrays, lists and maps.
func (i *Instance) SetItem(ctx context.Context, key, v dynamic.Object) error {
	o, err := i.Object()
	if err != nil {
		return i.mirror.raise(ctx, err)
	}
	conv := i.mirror.conv
	object := i.mirror.classes.MustLookup(host.ObjectClass)

	if o.Class().IsArray() {
		idx, err := seqIndex(key, host.ArrayLen(o), i.typ.Name())
		if err != nil {
			return err
		}
		hv, err := conv.ToHost(ctx, v, o.Class().Component())
		if err != nil {
			return i.mirror.raise(ctx, err)
		}
		if err := host.ArraySet(o, idx, hv); err != nil {
			return i.mirror.raise(ctx, err)
		}
		return nil
	}

	var args []host.Value
	var method string
	if items, ok := host.ListItems(o); ok {
		idx, err := seqIndex(key, len(items), i.typ.Name())
		if err != nil {
			return err
		}
		hv, err := conv.ToHost(ctx, v, object)
		if err != nil {
			return i.mirror.raise(ctx, err)
		}
		method, args = "set", []host.Value{int32(idx), hv}
	} else if _, _, ok := host.MapEntries(o); ok {
		kv, err := conv.ToHostAll(ctx, []dynamic.Object{key, v}, []*host.Type{object, object})
		if err != nil {
			return i.mirror.raise(ctx, err)
		}
		method, args = "put", kv
	} else {
		return dynamic.Raise(dynamic.TypeError, "'%s' object does not support item assignment", i.typ.Name())
	}

	_, err = i.mirror.invokeHost(ctx, func(ctx context.Context) (host.Value, error) {
		return host.InvokeByName(ctx, o, method, args...)
	})
	return i.mirror.raise(ctx, err)
}

// Iterate yields the elements of host arrays and lists and the keys of
// host maps. Any other java.lang.Iterable is walked through its iterator.
func (i *Instance) Iterate(ctx context.Context, fn func(dynamic.Object) error) error {
	o, err := i.Object()
	if err != nil {
		return i.mirror.raise(ctx, err)
	}
	elems, ok := sequence(o)
	if !ok {
		elems, _, ok = host.MapEntries(o)
	}
	if !ok {
		if i.implements(o, host.IterableInterface) {
			return i.iterateHost(ctx, o, fn)
		}
		return dynamic.Raise(dynamic.TypeError, "'%s' object is not iterable", i.typ.Name())
	}
	for _, e := range elems {
		dv, err := i.mirror.conv.ToDynamic(ctx, e)
		if err != nil {
			return i.mirror.raise(ctx, err)
		}
		if err := fn(dv); err != nil {
			return err
		}
	}
	return nil
}

// iterateHost drives iterator(), hasNext() and next(). Host calls run with
// the interpreter lock released; fn runs with it held.
func (i *Instance) iterateHost(ctx context.Context, o *host.Object, fn func(dynamic.Object) error) error {
	res, err := i.call(ctx, o, "iterator")
	if err != nil {
		return err
	}
	it, _ := res.(*host.Object)
	if it == nil {
		return dynamic.Raise(dynamic.TypeError, "%s.iterator() returned null", i.typ.Name())
	}
	for {
		more, err := i.call(ctx, it, "hasNext")
		if err != nil {
			return err
		}
		if more != true {
			return nil
		}
		next, err := i.call(ctx, it, "next")
		if err != nil {
			return err
		}
		dv, err := i.mirror.conv.ToDynamic(ctx, next)
		if err != nil {
			return i.mirror.raise(ctx, err)
		}
		if err := fn(dv); err != nil {
			return err
		}
	}
}

func seqIndex(key dynamic.Object, n int, what string) (int, error) {
	k, ok := key.(*dynamic.Int)
	if !ok {
		return 0, dynamic.Raise(dynamic.TypeError, "%s indices must be integers, not %s", what, dynamic.TypeName(key))
	}
	idx := k.V
	if idx < 0 {
		idx += int64(n)
	}
	if idx < 0 || idx >= int64(n) {
		return 0, dynamic.Raise(dynamic.IndexError, "%s index out of range", what)
	}
	return int(idx), nil
}

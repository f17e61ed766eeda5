package dynamic

import (
	"context"
	"errors"
	"strings"
)

// Sized objects report a length.
type Sized interface {
	Len(ctx context.Context) (int, error)
}

// Subscriptable objects support item reads.
type Subscriptable interface {
	GetItem(ctx context.Context, key Object) (Object, error)
}

// ItemAssigner objects support item writes.
type ItemAssigner interface {
	SetItem(ctx context.Context, key, v Object) error
}

// Iterable objects can be iterated. fn returning a non-nil error stops
// the iteration and the error is returned.
type Iterable interface {
	Iterate(ctx context.Context, fn func(Object) error) error
}

// Container objects answer membership tests themselves.
type Container interface {
	Contains(ctx context.Context, v Object) (bool, error)
}

// Len returns len(o).
func Len(ctx context.Context, o Object) (int, error) {
	switch x := o.(type) {
	case *Str:
		return x.Len(), nil
	case *List:
		return len(x.Items), nil
	case *Tuple:
		return len(x.Items), nil
	case *Dict:
		return x.Len(), nil
	case *Buffer:
		return x.Len(), nil
	case Sized:
		return x.Len(ctx)
	}
	return 0, Raise(TypeError, "object of type '%s' has no len()", TypeName(o))
}

func index(key Object, n int, what string) (int, error) {
	var i int64
	switch k := key.(type) {
	case *Int:
		i = k.V
	case *Bool:
		if k.V {
			i = 1
		}
	default:
		return 0, Raise(TypeError, "%s indices must be integers, not %s", what, TypeName(key))
	}
	if i < 0 {
		i += int64(n)
	}
	if i < 0 || i >= int64(n) {
		return 0, Raise(IndexError, "%s index out of range", what)
	}
	return int(i), nil
}

// GetItem returns o[key].
func GetItem(ctx context.Context, o, key Object) (Object, error) {
	switch x := o.(type) {
	case *List:
		i, err := index(key, len(x.Items), "list")
		if err != nil {
			return nil, err
		}
		return x.Items[i], nil
	case *Tuple:
		i, err := index(key, len(x.Items), "tuple")
		if err != nil {
			return nil, err
		}
		return x.Items[i], nil
	case *Str:
		i, err := index(key, x.Len(), "string")
		if err != nil {
			return nil, err
		}
		return StrFromRunes(x.runes[i : i+1]), nil
	case Subscriptable:
		return x.GetItem(ctx, key)
	}
	return nil, Raise(TypeError, "'%s' object is not subscriptable", TypeName(o))
}

// SetItem performs o[key] = v.
func SetItem(ctx context.Context, o, key, v Object) error {
	switch x := o.(type) {
	case *List:
		i, err := index(key, len(x.Items), "list")
		if err != nil {
			return err
		}
		x.Items[i] = v
		return nil
	case ItemAssigner:
		return x.SetItem(ctx, key, v)
	}
	return Raise(TypeError, "'%s' object does not support item assignment", TypeName(o))
}

// Iterate calls fn for each element of o.
func Iterate(ctx context.Context, o Object, fn func(Object) error) error {
	var items []Object
	switch x := o.(type) {
	case *List:
		items = append(items, x.Items...)
	case *Tuple:
		items = x.Items
	case *Dict:
		items = x.Keys()
	case *Str:
		for i := range x.runes {
			if err := fn(StrFromRunes(x.runes[i : i+1])); err != nil {
				return err
			}
		}
		return nil
	case Iterable:
		return x.Iterate(ctx, fn)
	default:
		return Raise(TypeError, "'%s' object is not iterable", TypeName(o))
	}
	for _, it := range items {
		if err := fn(it); err != nil {
			return err
		}
	}
	return nil
}

// Collect gathers the elements of an iterable.
func Collect(ctx context.Context, o Object) ([]Object, error) {
	var out []Object
	err := Iterate(ctx, o, func(it Object) error {
		out = append(out, it)
		return nil
	})
	return out, err
}

var errFound = errors.New("found")

// Contains evaluates v in o. Objects that are not containers but can be
// iterated are searched by equality.
func Contains(ctx context.Context, o, v Object) (bool, error) {
	switch x := o.(type) {
	case *Str:
		sub, ok := v.(*Str)
		if !ok {
			return false, Raise(TypeError, "'in <string>' requires string as left operand, not %s", TypeName(v))
		}
		return strings.Contains(x.String(), sub.String()), nil
	case *Dict:
		_, found, err := x.Get(v)
		return found, err
	case Container:
		return x.Contains(ctx, v)
	}
	if !isIterable(o) {
		return false, Raise(TypeError, "argument of type '%s' is not iterable", TypeName(o))
	}
	err := Iterate(ctx, o, func(it Object) error {
		eq, err := Equal(ctx, it, v)
		if err != nil {
			return err
		}
		if eq {
			return errFound
		}
		return nil
	})
	if err == errFound {
		return true, nil
	}
	return false, err
}

func isIterable(o Object) bool {
	switch o.(type) {
	case *List, *Tuple, *Dict, *Str, Iterable:
		return true
	}
	return false
}

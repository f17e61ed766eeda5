package dynamic

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Hasher is implemented by objects that define their own hash identity.
// Two objects that compare equal must return the same key.
type Hasher interface {
	HashKey() (string, error)
}

// ItemHasher is implemented by foreign sequences that compare equal to
// tuples with the same items. When seq is true they hash like that tuple;
// otherwise the object falls back to Hasher or identity.
type ItemHasher interface {
	HashItems() (items []Object, seq bool, err error)
}

// HashKey returns the dictionary key of o. Numbers that compare equal
// share a key; unhashable containers raise TypeError; other objects hash
// by identity.
func HashKey(o Object) (string, error) {
	if ih, ok := o.(ItemHasher); ok {
		items, seq, err := ih.HashItems()
		if err != nil {
			return "", err
		}
		if seq {
			return HashKey(NewTuple(items...))
		}
	}
	switch x := o.(type) {
	case nil, *NoneObject:
		return "n", nil
	case *Bool:
		if x.V {
			return "i1", nil
		}
		return "i0", nil
	case *Int:
		return "i" + strconv.FormatInt(x.V, 10), nil
	case *Float:
		if x.V == math.Trunc(x.V) && math.Abs(x.V) < 1<<63 {
			return "i" + strconv.FormatInt(int64(x.V), 10), nil
		}
		return "f" + strconv.FormatFloat(x.V, 'g', -1, 64), nil
	case *Str:
		var b strings.Builder
		b.Grow(1 + 4*len(x.runes))
		b.WriteByte('s')
		for _, r := range x.runes {
			b.WriteByte(byte(r >> 24))
			b.WriteByte(byte(r >> 16))
			b.WriteByte(byte(r >> 8))
			b.WriteByte(byte(r))
		}
		return b.String(), nil
	case *Tuple:
		var b strings.Builder
		b.WriteString("t(")
		for _, it := range x.Items {
			k, err := HashKey(it)
			if err != nil {
				return "", err
			}
			b.WriteString(strconv.Itoa(len(k)))
			b.WriteByte(':')
			b.WriteString(k)
		}
		b.WriteByte(')')
		return b.String(), nil
	case *List, *Dict, *Buffer:
		return "", Raise(TypeError, "unhashable type: '%s'", TypeName(o))
	case Hasher:
		k, err := x.HashKey()
		if err != nil {
			return "", err
		}
		return "h" + k, nil
	}
	return fmt.Sprintf("p%p", o), nil
}

// Dict is an insertion-ordered hash map.
type Dict struct {
	keys  []Object
	vals  []Object
	index map[string]int
}

func NewDict() *Dict {
	return &Dict{index: make(map[string]int)}
}

func (*Dict) Type() *Type { return DictType }

// Len returns the number of entries. A nil dict is empty.
func (d *Dict) Len() int {
	if d == nil {
		return 0
	}
	return len(d.keys)
}

// Get looks up key.
func (d *Dict) Get(key Object) (Object, bool, error) {
	if d == nil {
		return nil, false, nil
	}
	k, err := HashKey(key)
	if err != nil {
		return nil, false, err
	}
	i, ok := d.index[k]
	if !ok {
		return nil, false, nil
	}
	return d.vals[i], true, nil
}

// Set inserts or replaces key. Replacing keeps the original position.
func (d *Dict) Set(key, val Object) error {
	k, err := HashKey(key)
	if err != nil {
		return err
	}
	if i, ok := d.index[k]; ok {
		d.vals[i] = val
		return nil
	}
	d.index[k] = len(d.keys)
	d.keys = append(d.keys, key)
	d.vals = append(d.vals, val)
	return nil
}

// Delete removes key, reporting whether it was present.
func (d *Dict) Delete(key Object) (bool, error) {
	k, err := HashKey(key)
	if err != nil {
		return false, err
	}
	i, ok := d.index[k]
	if !ok {
		return false, nil
	}
	delete(d.index, k)
	d.keys = append(d.keys[:i], d.keys[i+1:]...)
	d.vals = append(d.vals[:i], d.vals[i+1:]...)
	for j := i; j < len(d.keys); j++ {
		kk, _ := HashKey(d.keys[j])
		d.index[kk] = j
	}
	return true, nil
}

// GetStr looks up a string key.
func (d *Dict) GetStr(name string) (Object, bool) {
	v, ok, _ := d.Get(NewStr(name))
	return v, ok
}

// SetStr stores a value under a string key.
func (d *Dict) SetStr(name string, v Object) {
	_ = d.Set(NewStr(name), v)
}

// Keys returns the keys in insertion order.
func (d *Dict) Keys() []Object {
	if d == nil {
		return nil
	}
	return append([]Object(nil), d.keys...)
}

// Item is a key/value pair.
type Item struct {
	Key, Value Object
}

// Items returns the entries in insertion order.
func (d *Dict) Items() []Item {
	if d == nil {
		return nil
	}
	out := make([]Item, len(d.keys))
	for i := range d.keys {
		out[i] = Item{Key: d.keys[i], Value: d.vals[i]}
	}
	return out
}

// DictOf builds a dict from alternating keys and values.
func DictOf(kv ...Object) (*Dict, error) {
	if len(kv)%2 != 0 {
		return nil, Raise(ValueError, "odd number of key/value arguments")
	}
	d := NewDict()
	for i := 0; i < len(kv); i += 2 {
		if err := d.Set(kv[i], kv[i+1]); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (d *Dict) GetItem(_ context.Context, key Object) (Object, error) {
	v, ok, err := d.Get(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, NewException(KeyError, key)
	}
	return v, nil
}

func (d *Dict) SetItem(_ context.Context, key, v Object) error {
	return d.Set(key, v)
}

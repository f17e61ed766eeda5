package dynamic

import (
	"context"
	"strings"
	"sync"
)

// NewFunc creates an instance of a type. It is inherited along the MRO.
type NewFunc func(ctx context.Context, t *Type, args []Object, kwargs *Dict) (Object, error)

// Type is a dynamic class. Its MRO is fixed at creation; its attribute
// dictionary may change afterwards.
type Type struct {
	Name string
	New  NewFunc

	bases []*Type
	mro   []*Type

	mu    sync.RWMutex
	dict  map[string]Object
	order []string
}

func builtin(name string, base *Type) *Type {
	t := &Type{Name: name, dict: make(map[string]Object)}
	t.mro = []*Type{t}
	if base != nil {
		t.bases = []*Type{base}
		t.mro = append(t.mro, base.mro...)
	}
	return t
}

var (
	ObjectType         = builtin("object", nil)
	TypeType           = builtin("type", ObjectType)
	NoneType           = builtin("NoneType", ObjectType)
	NotImplementedType = builtin("NotImplementedType", ObjectType)
	IntType            = builtin("int", ObjectType)
	BoolType           = builtin("bool", IntType)
	FloatType          = builtin("float", ObjectType)
	StrType            = builtin("str", ObjectType)
	ListType           = builtin("list", ObjectType)
	TupleType          = builtin("tuple", ObjectType)
	DictType           = builtin("dict", ObjectType)
	BufferType         = builtin("memoryview", ObjectType)
	FunctionType       = builtin("function", ObjectType)
	MethodType         = builtin("method", ObjectType)
)

// NewType creates a class with the given bases, linearized with C3. With
// no bases the class derives from object.
func NewType(name string, bases ...*Type) (*Type, error) {
	if len(bases) == 0 {
		bases = []*Type{ObjectType}
	}
	t := &Type{Name: name, bases: bases, dict: make(map[string]Object)}
	mro, err := linearize(t, bases)
	if err != nil {
		return nil, err
	}
	t.mro = mro
	return t, nil
}

// NewTypeWithMRO creates a class whose MRO is t followed by ancestors,
// exactly as given. Callers that compute their own linearization use it.
func NewTypeWithMRO(name string, bases, ancestors []*Type) *Type {
	t := &Type{Name: name, bases: bases, dict: make(map[string]Object)}
	t.mro = append([]*Type{t}, ancestors...)
	return t
}

func linearize(t *Type, bases []*Type) ([]*Type, error) {
	seqs := make([][]*Type, 0, len(bases)+1)
	for _, b := range bases {
		seqs = append(seqs, append([]*Type(nil), b.mro...))
	}
	seqs = append(seqs, append([]*Type(nil), bases...))

	out := []*Type{t}
	for {
		live := seqs[:0]
		for _, s := range seqs {
			if len(s) > 0 {
				live = append(live, s)
			}
		}
		seqs = live
		if len(seqs) == 0 {
			return out, nil
		}

		var head *Type
		for _, s := range seqs {
			if !inTail(s[0], seqs) {
				head = s[0]
				break
			}
		}
		if head == nil {
			names := make([]string, len(bases))
			for i, b := range bases {
				names[i] = b.Name
			}
			return nil, Raise(TypeError, "cannot create a consistent method resolution order (MRO) for bases %s", strings.Join(names, ", "))
		}
		out = append(out, head)
		for i, s := range seqs {
			if s[0] == head {
				seqs[i] = s[1:]
			}
		}
	}
}

func inTail(t *Type, seqs [][]*Type) bool {
	for _, s := range seqs {
		for _, x := range s[1:] {
			if x == t {
				return true
			}
		}
	}
	return false
}

func (*Type) Type() *Type { return TypeType }

// Bases returns the direct bases.
func (t *Type) Bases() []*Type { return append([]*Type(nil), t.bases...) }

// MRO returns the method resolution order, starting with t.
func (t *Type) MRO() []*Type { return append([]*Type(nil), t.mro...) }

// IsSubtype reports whether other appears in t's MRO.
func (t *Type) IsSubtype(other *Type) bool {
	for _, m := range t.mro {
		if m == other {
			return true
		}
	}
	return false
}

// Lookup finds name along the MRO.
func (t *Type) Lookup(name string) (Object, bool) {
	for _, m := range t.mro {
		if v, ok := m.Attr(name); ok {
			return v, true
		}
	}
	return nil, false
}

// Attr returns an attribute defined directly on t.
func (t *Type) Attr(name string) (Object, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.dict[name]
	return v, ok
}

// SetAttr defines or replaces an attribute on t.
func (t *Type) SetAttr(name string, v Object) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.dict[name]; !ok {
		t.order = append(t.order, name)
	}
	t.dict[name] = v
}

// AttrNames lists attributes defined directly on t in definition order.
func (t *Type) AttrNames() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]string(nil), t.order...)
}

// Call constructs an instance using the nearest New along the MRO.
func (t *Type) Call(ctx context.Context, args []Object, kwargs *Dict) (Object, error) {
	for _, m := range t.mro {
		if m.New != nil {
			return m.New(ctx, t, args, kwargs)
		}
	}
	return nil, Raise(TypeError, "cannot create '%s' instances", t.Name)
}

func (t *Type) String() string { return "<class '" + t.Name + "'>" }

func newObject(ctx context.Context, t *Type, args []Object, kwargs *Dict) (Object, error) {
	inst := NewInstance(t)
	if init, ok := t.Lookup("__init__"); ok {
		bound, err := bind(ctx, init, inst, t)
		if err != nil {
			return nil, err
		}
		if _, err := Call(ctx, bound, args, kwargs); err != nil {
			return nil, err
		}
	} else if len(args) > 0 || kwargs.Len() > 0 {
		return nil, Raise(TypeError, "%s() takes no arguments", t.Name)
	}
	return inst, nil
}

func init() {
	ObjectType.New = newObject
	IntType.New = newInt
	BoolType.New = newBoolFrom
	FloatType.New = newFloat
	StrType.New = newStrFrom
	ListType.New = newListFrom
	TupleType.New = newTupleFrom
	DictType.New = newDictFrom
	for _, t := range []*Type{TypeType, NoneType, NotImplementedType, BufferType, FunctionType, MethodType} {
		t.New = noNew
	}
}

func noNew(_ context.Context, t *Type, _ []Object, _ *Dict) (Object, error) {
	return nil, Raise(TypeError, "cannot create '%s' instances", t.Name)
}

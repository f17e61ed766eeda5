package dynamic

import (
	"context"
)

// Callable is implemented by every object that can be called.
type Callable interface {
	Object
	Call(ctx context.Context, args []Object, kwargs *Dict) (Object, error)
}

// Descriptor customizes attribute lookup when stored on a type. self is
// nil when the attribute is read from the type itself.
type Descriptor interface {
	Get(ctx context.Context, self Object, owner *Type) (Object, error)
}

// DataDescriptor also intercepts assignment and takes precedence over the
// instance dictionary.
type DataDescriptor interface {
	Descriptor
	Set(ctx context.Context, self Object, v Object) error
}

// FuncImpl is the body of a native function.
type FuncImpl func(ctx context.Context, args []Object, kwargs *Dict) (Object, error)

// Function is a native function. Exceptions it raises gain a traceback
// frame naming it.
type Function struct {
	Name string
	File string
	Line int
	Fn   FuncImpl
}

// NewFunction creates a function with no source position.
func NewFunction(name string, fn FuncImpl) *Function {
	return &Function{Name: name, File: "<native>", Fn: fn}
}

func (*Function) Type() *Type { return FunctionType }

func (f *Function) Call(ctx context.Context, args []Object, kwargs *Dict) (Object, error) {
	res, err := f.Fn(ctx, args, kwargs)
	if err != nil {
		if exc, ok := err.(*Exception); ok {
			exc.PushFrame(&Frame{File: f.File, Line: f.Line, Function: f.Name})
		}
		return nil, err
	}
	if res == nil {
		res = None
	}
	return res, nil
}

// Get binds the function to self when read through an instance.
func (f *Function) Get(_ context.Context, self Object, _ *Type) (Object, error) {
	if self == nil {
		return f, nil
	}
	return &BoundMethod{Self: self, Func: f}, nil
}

func (f *Function) String() string { return "<function " + f.Name + ">" }

// BoundMethod is a callable with its receiver fixed as first argument.
type BoundMethod struct {
	Self Object
	Func Object
}

func (*BoundMethod) Type() *Type { return MethodType }

func (m *BoundMethod) Call(ctx context.Context, args []Object, kwargs *Dict) (Object, error) {
	full := make([]Object, 0, len(args)+1)
	full = append(full, m.Self)
	full = append(full, args...)
	return Call(ctx, m.Func, full, kwargs)
}

func bind(ctx context.Context, attr Object, self Object, owner *Type) (Object, error) {
	if d, ok := attr.(Descriptor); ok {
		return d.Get(ctx, self, owner)
	}
	return attr, nil
}

// Call invokes callee. Objects that are not Callable are called through
// their type's __call__.
func Call(ctx context.Context, callee Object, args []Object, kwargs *Dict) (Object, error) {
	if c, ok := callee.(Callable); ok {
		return c.Call(ctx, args, kwargs)
	}
	if callee != nil {
		t := callee.Type()
		if attr, ok := t.Lookup("__call__"); ok {
			bound, err := bind(ctx, attr, callee, t)
			if err != nil {
				return nil, err
			}
			return Call(ctx, bound, args, kwargs)
		}
	}
	return nil, Raise(TypeError, "'%s' object is not callable", TypeName(callee))
}

// IsCallable reports whether Call can succeed on o.
func IsCallable(o Object) bool {
	if _, ok := o.(Callable); ok {
		return true
	}
	if o == nil {
		return false
	}
	_, ok := o.Type().Lookup("__call__")
	return ok
}

// GetAttr reads attribute name of o.
func GetAttr(ctx context.Context, o Object, name string) (Object, error) {
	if t, ok := o.(*Type); ok {
		if attr, ok := t.Lookup(name); ok {
			return bind(ctx, attr, nil, t)
		}
		return nil, Raise(AttributeError, "type object '%s' has no attribute '%s'", t.Name, name)
	}
	if o == nil {
		o = None
	}
	t := o.Type()
	attr, found := t.Lookup(name)
	if found {
		if d, ok := attr.(DataDescriptor); ok {
			return d.Get(ctx, o, t)
		}
	}
	if h, ok := o.(HasAttrs); ok {
		if v, ok := h.Attrs().GetStr(name); ok {
			return v, nil
		}
	}
	if found {
		return bind(ctx, attr, o, t)
	}
	return nil, Raise(AttributeError, "'%s' object has no attribute '%s'", t.Name, name)
}

// SetAttr assigns attribute name of o.
func SetAttr(ctx context.Context, o Object, name string, v Object) error {
	if t, ok := o.(*Type); ok {
		if attr, ok := t.Lookup(name); ok {
			if d, ok := attr.(DataDescriptor); ok {
				return d.Set(ctx, nil, v)
			}
		}
		t.SetAttr(name, v)
		return nil
	}
	if o == nil {
		o = None
	}
	t := o.Type()
	if attr, ok := t.Lookup(name); ok {
		if d, ok := attr.(DataDescriptor); ok {
			return d.Set(ctx, o, v)
		}
	}
	if h, ok := o.(HasAttrs); ok {
		h.Attrs().SetStr(name, v)
		return nil
	}
	return Raise(AttributeError, "'%s' object has no attribute '%s'", t.Name, name)
}

// CallMethod looks up name on o and calls it.
func CallMethod(ctx context.Context, o Object, name string, args ...Object) (Object, error) {
	m, err := GetAttr(ctx, o, name)
	if err != nil {
		return nil, err
	}
	return Call(ctx, m, args, nil)
}

package host

import (
	"context"
	"fmt"
)

// Invoke calls m. Instance methods dispatch virtually on the runtime class
// of self; static methods ignore self. Host exceptions come back as *Thrown.
func Invoke(ctx context.Context, m *Method, self *Object, args []Value) (Value, error) {
	cp := m.Owner.cp
	if len(args) != len(m.Params) {
		return nil, cp.Throw("java.lang.IllegalArgumentException",
			"%s expects %d arguments, got %d", m, len(m.Params), len(args))
	}
	for i, a := range args {
		if !Accepts(m.Params[i], a) {
			return nil, cp.Throw("java.lang.IllegalArgumentException",
				"argument %d of %s: %s is not assignable to %s", i, m, TypeName(a), m.Params[i].name)
		}
	}

	if m.Static {
		if m.Impl == nil {
			return nil, cp.Throw("java.lang.AbstractMethodError", "%s", m)
		}
		return m.Impl(ctx, nil, args)
	}

	if self == nil {
		return nil, cp.Throw("java.lang.NullPointerException",
			"Cannot invoke \"%s\" because receiver is null", m)
	}
	if !m.Owner.AssignableFrom(self.class) {
		return nil, cp.Throw("java.lang.IllegalArgumentException",
			"object of class %s is not an instance of %s", self.class.name, m.Owner.name)
	}
	impl := self.class.resolveVirtual(m)
	if impl == nil {
		return nil, cp.Throw("java.lang.AbstractMethodError", "%s.%s", self.class.name, m.Signature())
	}
	return impl.Impl(ctx, self, args)
}

// InvokeByName finds the method named name on the runtime class of self
// whose parameter types accept args exactly, and invokes it.
func InvokeByName(ctx context.Context, self *Object, name string, args ...Value) (Value, error) {
	if self == nil {
		return nil, fmt.Errorf("host: invoke %s on null", name)
	}
	var found *Method
	self.class.walk(func(c *Type) bool {
		for _, m := range c.methods {
			if m.Name == name && !m.Static && acceptsAll(m.Params, args) {
				found = m
				return false
			}
		}
		return true
	})
	if found == nil {
		return nil, self.class.cp.Throw("java.lang.NoSuchMethodException", "%s.%s", self.class.name, name)
	}
	return Invoke(ctx, found, self, args)
}

// Instantiate allocates an object of ctor's class and runs ctor on it.
func Instantiate(ctx context.Context, ctor *Method, args []Value) (*Object, error) {
	class := ctor.Owner
	cp := class.cp
	if !ctor.IsConstructor() {
		return nil, cp.Throw("java.lang.IllegalArgumentException", "%s is not a constructor", ctor)
	}
	if class.IsAbstract() {
		return nil, cp.Throw("java.lang.InstantiationException", "%s", class.name)
	}
	if len(args) != len(ctor.Params) {
		return nil, cp.Throw("java.lang.IllegalArgumentException",
			"%s expects %d arguments, got %d", ctor, len(ctor.Params), len(args))
	}
	for i, a := range args {
		if !Accepts(ctor.Params[i], a) {
			return nil, cp.Throw("java.lang.IllegalArgumentException",
				"argument %d of %s: %s is not assignable to %s", i, ctor, TypeName(a), ctor.Params[i].name)
		}
	}
	o := newObject(class, nil)
	if ctor.Impl != nil {
		if _, err := ctor.Impl(ctx, o, args); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// New instantiates the named class using the first constructor whose
// parameter types accept args exactly.
func (cp *ClassPath) New(ctx context.Context, className string, args ...Value) (*Object, error) {
	t, err := cp.Lookup(className)
	if err != nil {
		return nil, err
	}
	for _, c := range t.ctors {
		if acceptsAll(c.Params, args) {
			return Instantiate(ctx, c, args)
		}
	}
	return nil, cp.Throw("java.lang.NoSuchMethodException", "%s.<init> with %d arguments", className, len(args))
}

func acceptsAll(params []*Type, args []Value) bool {
	if len(params) != len(args) {
		return false
	}
	for i, a := range args {
		if !Accepts(params[i], a) {
			return false
		}
	}
	return true
}

// GetField reads a field. self is ignored for static fields.
func GetField(f *Field, self *Object) (Value, error) {
	if f.Static {
		f.Owner.staticMu.RLock()
		defer f.Owner.staticMu.RUnlock()
		return f.Owner.statics[f.Name], nil
	}
	if self == nil {
		return nil, f.Owner.cp.Throw("java.lang.NullPointerException", "Cannot read field \"%s\" because receiver is null", f.Name)
	}
	self.mu.Lock()
	defer self.mu.Unlock()
	if v, ok := self.fields[f.Name]; ok {
		return v, nil
	}
	return ZeroValue(f.Type), nil
}

// SetField writes a field. Final fields reject writes.
func SetField(f *Field, self *Object, v Value) error {
	cp := f.Owner.cp
	if f.Final {
		return cp.Throw("java.lang.IllegalAccessException", "cannot set final field %s", f)
	}
	if !Accepts(f.Type, v) {
		return cp.Throw("java.lang.IllegalArgumentException",
			"cannot set %s field %s to %s", f.Type.name, f, TypeName(v))
	}
	if f.Static {
		f.Owner.staticMu.Lock()
		f.Owner.statics[f.Name] = v
		f.Owner.staticMu.Unlock()
		return nil
	}
	if self == nil {
		return cp.Throw("java.lang.NullPointerException", "Cannot assign field \"%s\" because receiver is null", f.Name)
	}
	self.mu.Lock()
	if self.fields == nil {
		self.fields = make(map[string]Value)
	}
	self.fields[f.Name] = v
	self.mu.Unlock()
	return nil
}

// InvocationHandler receives every call made on a proxy object or on an
// embed.DynamicObject. It is stored as the object's payload.
type InvocationHandler interface {
	Invoke(ctx context.Context, self *Object, m *Method, args []Value) (Value, error)
}

// Handler returns the invocation handler attached to o, if any.
func Handler(o *Object) (InvocationHandler, bool) {
	if o == nil {
		return nil, false
	}
	h, ok := o.Payload().(InvocationHandler)
	return h, ok
}

func delegate(ctx context.Context, self *Object, m *Method, args []Value) (Value, error) {
	h, ok := Handler(self)
	if !ok {
		return nil, m.Owner.cp.Throw("java.lang.IllegalStateException", "%s has no invocation handler", self.class.name)
	}
	return h.Invoke(ctx, self, m, args)
}

// ProxyClass returns a class that extends embed.DynamicObject and
// implements iface, forwarding every abstract method of iface to the
// instance's InvocationHandler. Proxy classes are cached per interface.
func (cp *ClassPath) ProxyClass(iface *Type) (*Type, error) {
	if !iface.IsInterface() {
		return nil, cp.Throw("java.lang.IllegalArgumentException", "%s is not an interface", iface.name)
	}
	cp.mu.RLock()
	t, ok := cp.proxies[iface]
	cp.mu.RUnlock()
	if ok {
		return t, nil
	}

	b := NewClass(proxyPrefix + iface.name).Extends(DynamicObjectClass).Implements(iface.name).Final()
	seen := make(map[string]bool)
	iface.walk(func(c *Type) bool {
		for _, m := range c.methods {
			if !m.Abstract || m.Static || seen[m.Signature()] || isObjectMethod(m) {
				continue
			}
			seen[m.Signature()] = true
			params := make([]string, len(m.Params))
			for i, p := range m.Params {
				params[i] = p.name
			}
			b.Method(MethodSpec{
				Name:    m.Name,
				Params:  params,
				Return:  m.Return.name,
				Varargs: m.Varargs,
				Kwargs:  m.Kwargs,
				Impl: func(ctx context.Context, self *Object, args []Value) (Value, error) {
					return delegate(ctx, self, m, args)
				},
			})
		}
		return true
	})

	if err := cp.Define(b); err != nil {
		// lost a race with another goroutine defining the same proxy
		if existing, lerr := cp.Lookup(b.name); lerr == nil {
			cp.mu.Lock()
			cp.proxies[iface] = existing
			cp.mu.Unlock()
			return existing, nil
		}
		return nil, err
	}
	t = cp.MustLookup(b.name)
	cp.mu.Lock()
	cp.proxies[iface] = t
	cp.mu.Unlock()
	return t, nil
}

// IsProxyClass reports whether t was created by ProxyClass.
func IsProxyClass(t *Type) bool {
	return len(t.name) > len(proxyPrefix) && t.name[:len(proxyPrefix)] == proxyPrefix
}

// NewProxy creates an instance of the proxy class for iface backed by h.
func (cp *ClassPath) NewProxy(iface *Type, h InvocationHandler) (*Object, error) {
	t, err := cp.ProxyClass(iface)
	if err != nil {
		return nil, err
	}
	return newObject(t, h), nil
}

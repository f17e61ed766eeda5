package host

import (
	"context"
	"strings"
	"sync"
)

// Kind classifies a type descriptor.
type Kind uint8

const (
	KindVoid Kind = iota
	KindBoolean
	KindByte
	KindChar
	KindShort
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindClass
	KindInterface
	KindArray
)

var kindNames = [...]string{
	KindVoid:      "void",
	KindBoolean:   "boolean",
	KindByte:      "byte",
	KindChar:      "char",
	KindShort:     "short",
	KindInt:       "int",
	KindLong:      "long",
	KindFloat:     "float",
	KindDouble:    "double",
	KindClass:     "class",
	KindInterface: "interface",
	KindArray:     "array",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// IsPrimitive reports whether k is a primitive kind (including void).
func (k Kind) IsPrimitive() bool {
	return k <= KindDouble
}

// IsIntegral reports whether k is byte, char, short, int or long.
func (k Kind) IsIntegral() bool {
	return k >= KindByte && k <= KindLong
}

// IsFloating reports whether k is float or double.
func (k Kind) IsFloating() bool {
	return k == KindFloat || k == KindDouble
}

// Primitive type descriptors. They are shared by every class path.
var (
	Void    = &Type{name: "void", kind: KindVoid}
	Boolean = &Type{name: "boolean", kind: KindBoolean}
	Byte    = &Type{name: "byte", kind: KindByte}
	Char    = &Type{name: "char", kind: KindChar}
	Short   = &Type{name: "short", kind: KindShort}
	Int     = &Type{name: "int", kind: KindInt}
	Long    = &Type{name: "long", kind: KindLong}
	Float   = &Type{name: "float", kind: KindFloat}
	Double  = &Type{name: "double", kind: KindDouble}
)

var primitives = map[string]*Type{
	"void":    Void,
	"boolean": Boolean,
	"byte":    Byte,
	"char":    Char,
	"short":   Short,
	"int":     Int,
	"long":    Long,
	"float":   Float,
	"double":  Double,
}

// Primitive returns the primitive type descriptor for k.
func Primitive(k Kind) *Type {
	if !k.IsPrimitive() {
		return nil
	}
	return primitives[k.String()]
}

// Type is a nominal host type descriptor: a primitive, a class, an
// interface or an array type. Descriptors are created by a ClassPath and
// are immutable after definition, except for static field storage.
type Type struct {
	cp         *ClassPath
	name       string
	kind       Kind
	super      *Type
	interfaces []*Type
	methods    []*Method
	ctors      []*Method
	fields     []*Field
	component  *Type
	abstract   bool
	final      bool

	staticMu sync.RWMutex
	statics  map[string]Value

	vtable sync.Map // *Method -> *Method
}

// Name returns the fully-qualified name.
func (t *Type) Name() string { return t.name }

// SimpleName returns the name without its package.
func (t *Type) SimpleName() string {
	if t.kind == KindArray {
		return t.component.SimpleName() + "[]"
	}
	if i := strings.LastIndexByte(t.name, '.'); i >= 0 {
		return t.name[i+1:]
	}
	return t.name
}

func (t *Type) String() string { return t.name }

func (t *Type) Kind() Kind { return t.kind }

// ClassPath returns the class path that defined t, nil for primitives.
func (t *Type) ClassPath() *ClassPath { return t.cp }

func (t *Type) IsPrimitive() bool { return t.kind.IsPrimitive() }
func (t *Type) IsReference() bool { return !t.kind.IsPrimitive() }
func (t *Type) IsInterface() bool { return t.kind == KindInterface }
func (t *Type) IsArray() bool     { return t.kind == KindArray }
func (t *Type) IsAbstract() bool  { return t.abstract || t.kind == KindInterface }
func (t *Type) IsFinal() bool     { return t.final }

// Superclass returns the direct superclass, nil for interfaces, primitives
// and java.lang.Object.
func (t *Type) Superclass() *Type { return t.super }

// Interfaces returns the directly implemented (or, for an interface,
// directly extended) interfaces. The slice must not be modified.
func (t *Type) Interfaces() []*Type { return t.interfaces }

// Methods returns the methods declared by t itself. The slice must not be modified.
func (t *Type) Methods() []*Method { return t.methods }

// Constructors returns the declared constructors.
func (t *Type) Constructors() []*Method { return t.ctors }

// Fields returns the fields declared by t itself.
func (t *Type) Fields() []*Field { return t.fields }

// Component returns the element type of an array type.
func (t *Type) Component() *Type { return t.component }

// AssignableFrom reports whether a value of type src can be stored in a
// variable of type t without conversion.
func (t *Type) AssignableFrom(src *Type) bool {
	return src.Distance(t) >= 0
}

// Distance returns the number of inheritance steps from t up to target,
// 0 when they are the same type and -1 when target is not a supertype.
func (t *Type) Distance(target *Type) int {
	if t == target {
		return 0
	}
	if t.kind.IsPrimitive() || target.kind.IsPrimitive() {
		return -1
	}
	if t.kind == KindArray {
		if target.kind == KindArray {
			if t.component.IsReference() && target.component.IsReference() {
				return t.component.Distance(target.component)
			}
			return -1
		}
		switch target.name {
		case ObjectClass, CloneableInterface, SerializableInterface:
			return 1
		}
		return -1
	}

	type step struct {
		t *Type
		d int
	}
	seen := map[*Type]bool{t: true}
	queue := []step{{t, 0}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		next := cur.t.interfaces
		if cur.t.super != nil {
			next = append([]*Type{cur.t.super}, next...)
		}
		for _, p := range next {
			if p == target {
				return cur.d + 1
			}
			if !seen[p] {
				seen[p] = true
				queue = append(queue, step{p, cur.d + 1})
			}
		}
	}
	// interfaces are assignable to Object
	if target.name == ObjectClass && t.kind == KindInterface {
		return 1
	}
	return -1
}

// IsSubclassOf reports whether t is name or inherits from it.
func (t *Type) IsSubclassOf(name string) bool {
	for c := t; c != nil; c = c.super {
		if c.name == name {
			return true
		}
	}
	return false
}

// FindMethod looks up a method by name and exact parameter types in t, its
// superclasses and then its interfaces.
func (t *Type) FindMethod(name string, params ...*Type) *Method {
	var found *Method
	t.walk(func(c *Type) bool {
		for _, m := range c.methods {
			if m.Name == name && sameParams(m.Params, params) {
				found = m
				return false
			}
		}
		return true
	})
	return found
}

// FindField looks up a field by name in t and its ancestors.
func (t *Type) FindField(name string) *Field {
	var found *Field
	t.walk(func(c *Type) bool {
		for _, f := range c.fields {
			if f.Name == name {
				found = f
				return false
			}
		}
		return true
	})
	return found
}

// walk visits t, its superclass chain and then every interface reachable
// from them, breadth first, until fn returns false.
func (t *Type) walk(fn func(*Type) bool) {
	seen := make(map[*Type]bool)
	var ifaces []*Type
	for c := t; c != nil; c = c.super {
		seen[c] = true
		if !fn(c) {
			return
		}
		ifaces = append(ifaces, c.interfaces...)
	}
	for len(ifaces) > 0 {
		c := ifaces[0]
		ifaces = ifaces[1:]
		if seen[c] {
			continue
		}
		seen[c] = true
		if !fn(c) {
			return
		}
		ifaces = append(ifaces, c.interfaces...)
	}
}

// FunctionalMethod returns the single abstract method of a functional
// interface, or nil when t is not one. Abstract redeclarations of public
// java.lang.Object methods do not count.
func (t *Type) FunctionalMethod() *Method {
	if t.kind != KindInterface {
		return nil
	}
	var found *Method
	seen := make(map[string]bool)
	count := 0
	t.walk(func(c *Type) bool {
		for _, m := range c.methods {
			if !m.Abstract || m.Static || isObjectMethod(m) {
				continue
			}
			key := m.Signature()
			if seen[key] {
				continue
			}
			seen[key] = true
			found = m
			count++
		}
		return count <= 1
	})
	if count != 1 {
		return nil
	}
	return found
}

// IsFunctional reports whether t is an interface with exactly one abstract method.
func (t *Type) IsFunctional() bool {
	return t.FunctionalMethod() != nil
}

func isObjectMethod(m *Method) bool {
	switch m.Name {
	case "equals":
		return len(m.Params) == 1 && m.Params[0].name == ObjectClass
	case "hashCode", "toString":
		return len(m.Params) == 0
	}
	return false
}

func sameParams(a, b []*Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// resolveVirtual finds the implementation of m for receivers of class t.
func (t *Type) resolveVirtual(m *Method) *Method {
	if cached, ok := t.vtable.Load(m); ok {
		return cached.(*Method)
	}
	var impl *Method
	t.walk(func(c *Type) bool {
		for _, cand := range c.methods {
			if cand.Name == m.Name && !cand.Static && cand.Impl != nil && sameParams(cand.Params, m.Params) {
				impl = cand
				return false
			}
		}
		return true
	})
	if impl != nil {
		t.vtable.Store(m, impl)
	}
	return impl
}

// Impl is the Go implementation of a host method or constructor. self is
// nil for static methods; for constructors it is the freshly allocated
// object the implementation initialises.
type Impl func(ctx context.Context, self *Object, args []Value) (Value, error)

// ConstructorName is the method name used for constructors.
const ConstructorName = "<init>"

// Method describes one declared method or constructor.
type Method struct {
	Impl     Impl
	Owner    *Type
	Return   *Type
	Name     string
	Params   []*Type
	ID       int
	Static   bool
	Abstract bool
	Varargs  bool
	Default  bool
	Kwargs   bool
}

// IsConstructor reports whether m is a constructor.
func (m *Method) IsConstructor() bool { return m.Name == ConstructorName }

// Signature renders name(paramTypes...).
func (m *Method) Signature() string {
	var b strings.Builder
	b.WriteString(m.Name)
	b.WriteByte('(')
	for i, p := range m.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		if m.Varargs && i == len(m.Params)-1 && p.kind == KindArray {
			b.WriteString(p.component.name)
			b.WriteString("...")
			continue
		}
		b.WriteString(p.name)
	}
	b.WriteByte(')')
	return b.String()
}

func (m *Method) String() string {
	if m.Owner == nil {
		return m.Signature()
	}
	return m.Owner.name + "." + m.Signature()
}

// Field describes one declared field.
type Field struct {
	Owner  *Type
	Type   *Type
	Name   string
	Static bool
	Final  bool
}

func (f *Field) String() string {
	return f.Owner.name + "." + f.Name
}

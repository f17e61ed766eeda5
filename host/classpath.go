package host

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/wippyai/embed-runtime/errors"
)

// Well-known class names.
const (
	ObjectClass            = "java.lang.Object"
	StringClass            = "java.lang.String"
	NumberClass            = "java.lang.Number"
	BooleanClass           = "java.lang.Boolean"
	ByteClass              = "java.lang.Byte"
	CharacterClass         = "java.lang.Character"
	ShortClass             = "java.lang.Short"
	IntegerClass           = "java.lang.Integer"
	LongClass              = "java.lang.Long"
	FloatClass             = "java.lang.Float"
	DoubleClass            = "java.lang.Double"
	CharSequenceInterface  = "java.lang.CharSequence"
	ComparableInterface    = "java.lang.Comparable"
	SerializableInterface  = "java.io.Serializable"
	CloneableInterface     = "java.lang.Cloneable"
	IterableInterface      = "java.lang.Iterable"
	IteratorInterface      = "java.util.Iterator"
	AutoCloseableInterface = "java.lang.AutoCloseable"
	CollectionInterface    = "java.util.Collection"
	ListInterface          = "java.util.List"
	MapInterface           = "java.util.Map"
	ArrayListClass         = "java.util.ArrayList"
	HashMapClass           = "java.util.HashMap"
	UnmodifiableListClass  = "embed.UnmodifiableList"
	SnapshotIteratorClass  = "embed.SnapshotIterator"
	ThrowableClass         = "java.lang.Throwable"
	ErrorClass             = "java.lang.Error"
	DynamicObjectClass     = "embed.DynamicObject"
	DynamicCallableClass   = "embed.DynamicCallable"
	DynamicExceptionClass  = "embed.DynamicException"
	proxyPrefix            = "embed.Proxy$"
)

var boxNames = map[Kind]string{
	KindBoolean: BooleanClass,
	KindByte:    ByteClass,
	KindChar:    CharacterClass,
	KindShort:   ShortClass,
	KindInt:     IntegerClass,
	KindLong:    LongClass,
	KindFloat:   FloatClass,
	KindDouble:  DoubleClass,
}

var unboxKinds = map[string]Kind{
	BooleanClass:   KindBoolean,
	ByteClass:      KindByte,
	CharacterClass: KindChar,
	ShortClass:     KindShort,
	IntegerClass:   KindInt,
	LongClass:      KindLong,
	FloatClass:     KindFloat,
	DoubleClass:    KindDouble,
}

// BoxName returns the box class name for a primitive kind.
func BoxName(k Kind) string { return boxNames[k] }

// UnboxKind returns the primitive kind boxed by t.
func UnboxKind(t *Type) (Kind, bool) {
	k, ok := unboxKinds[t.name]
	return k, ok
}

// ClassPath is the host's reflection facility: it owns every class and
// interface descriptor and answers read-only queries about them.
type ClassPath struct {
	mu      sync.RWMutex
	types   map[string]*Type
	arrays  map[*Type]*Type
	proxies map[*Type]*Type
	nextID  int
}

// NewClassPath returns a class path that knows only the primitive types.
// Most callers want Standard.
func NewClassPath() *ClassPath {
	return &ClassPath{
		types:   make(map[string]*Type),
		arrays:  make(map[*Type]*Type),
		proxies: make(map[*Type]*Type),
	}
}

// Standard returns a class path with the bootstrap classes defined.
func Standard() *ClassPath {
	cp := NewClassPath()
	if err := cp.Define(bootstrap(cp)...); err != nil {
		panic(fmt.Sprintf("host: bootstrap class path: %v", err))
	}
	return cp
}

// Lookup resolves a class, interface, primitive or array type by name.
// Array types are written with a trailing "[]".
func (cp *ClassPath) Lookup(name string) (*Type, error) {
	if strings.HasSuffix(name, "[]") {
		c, err := cp.Lookup(strings.TrimSuffix(name, "[]"))
		if err != nil {
			return nil, err
		}
		return cp.ArrayOf(c), nil
	}
	if p, ok := primitives[name]; ok {
		return p, nil
	}
	cp.mu.RLock()
	t, ok := cp.types[name]
	cp.mu.RUnlock()
	if !ok {
		return nil, errors.NotFound(errors.PhaseMirror, "class", name)
	}
	return t, nil
}

// MustLookup is Lookup for names known to exist.
func (cp *ClassPath) MustLookup(name string) *Type {
	t, err := cp.Lookup(name)
	if err != nil {
		panic(err)
	}
	return t
}

// ArrayOf returns the array type with the given component type.
func (cp *ClassPath) ArrayOf(component *Type) *Type {
	cp.mu.RLock()
	t, ok := cp.arrays[component]
	cp.mu.RUnlock()
	if ok {
		return t
	}

	cp.mu.Lock()
	defer cp.mu.Unlock()
	return cp.arrayLocked(component)
}

// arrayLocked returns the cached array type for component. cp.mu must be
// held for writing.
func (cp *ClassPath) arrayLocked(component *Type) *Type {
	if t, ok := cp.arrays[component]; ok {
		return t
	}
	t := &Type{
		cp:        cp,
		name:      component.name + "[]",
		kind:      KindArray,
		super:     cp.types[ObjectClass],
		component: component,
		final:     true,
	}
	if c, ok := cp.types[CloneableInterface]; ok {
		t.interfaces = append(t.interfaces, c)
	}
	if s, ok := cp.types[SerializableInterface]; ok {
		t.interfaces = append(t.interfaces, s)
	}
	cp.arrays[component] = t
	return t
}

// Classes returns every defined class and interface sorted by name.
func (cp *ClassPath) Classes() []*Type {
	cp.mu.RLock()
	out := make([]*Type, 0, len(cp.types))
	for _, t := range cp.types {
		out = append(out, t)
	}
	cp.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// Define registers classes built with ClassBuilder. All builders are
// registered before any member is resolved, so they may refer to each other.
func (cp *ClassPath) Define(builders ...*ClassBuilder) error {
	cp.mu.Lock()
	defer cp.mu.Unlock()

	for _, b := range builders {
		if b.err != nil {
			return b.err
		}
	}

	created := make([]*Type, len(builders))
	for i, b := range builders {
		if _, exists := cp.types[b.name]; exists {
			rollbackTypes(cp, created)
			return errors.InvalidInput(errors.PhaseMirror, fmt.Sprintf("class %s already defined", b.name))
		}
		if _, exists := primitives[b.name]; exists {
			rollbackTypes(cp, created)
			return errors.InvalidInput(errors.PhaseMirror, fmt.Sprintf("class name %s is reserved", b.name))
		}
		created[i] = &Type{
			cp:       cp,
			name:     b.name,
			kind:     b.kind,
			abstract: b.abstract,
			final:    b.final,
		}
		cp.types[b.name] = created[i]
	}

	for i, b := range builders {
		if err := cp.resolve(created[i], b); err != nil {
			rollbackTypes(cp, created)
			return err
		}
	}
	return nil
}

func rollbackTypes(cp *ClassPath, created []*Type) {
	for _, t := range created {
		if t != nil {
			delete(cp.types, t.name)
		}
	}
}

// resolve fills t from b. cp.mu must be held.
func (cp *ClassPath) resolve(t *Type, b *ClassBuilder) error {
	var err error
	if b.super != "" {
		if t.super, err = cp.lookupLocked(b.super); err != nil {
			return err
		}
		if t.super.kind != KindClass {
			return errors.InvalidInput(errors.PhaseMirror, fmt.Sprintf("%s: superclass %s is not a class", t.name, b.super))
		}
	} else if t.kind == KindClass && t.name != ObjectClass {
		if t.super, err = cp.lookupLocked(ObjectClass); err != nil {
			return err
		}
	}

	for _, name := range b.interfaces {
		iface, err := cp.lookupLocked(name)
		if err != nil {
			return err
		}
		if iface.kind != KindInterface {
			return errors.InvalidInput(errors.PhaseMirror, fmt.Sprintf("%s: %s is not an interface", t.name, name))
		}
		t.interfaces = append(t.interfaces, iface)
	}

	for _, ms := range b.methods {
		m, err := cp.resolveMethod(t, ms)
		if err != nil {
			return err
		}
		if m.IsConstructor() {
			t.ctors = append(t.ctors, m)
		} else {
			t.methods = append(t.methods, m)
		}
	}

	for _, fs := range b.fields {
		ft, err := cp.lookupLocked(fs.Type)
		if err != nil {
			return err
		}
		f := &Field{Owner: t, Type: ft, Name: fs.Name, Static: fs.Static, Final: fs.Final}
		t.fields = append(t.fields, f)
		if f.Static {
			if t.statics == nil {
				t.statics = make(map[string]Value)
			}
			v := fs.Value
			if v == nil {
				v = ZeroValue(ft)
			}
			t.statics[f.Name] = v
		}
	}
	return nil
}

func (cp *ClassPath) resolveMethod(owner *Type, ms MethodSpec) (*Method, error) {
	m := &Method{
		Impl:     ms.Impl,
		Owner:    owner,
		Name:     ms.Name,
		Static:   ms.Static,
		Abstract: ms.Abstract,
		Varargs:  ms.Varargs,
		Default:  ms.Default,
		Kwargs:   ms.Kwargs,
	}
	if m.Impl == nil && !m.IsConstructor() {
		m.Abstract = true
	}
	ret := ms.Return
	if ret == "" {
		ret = "void"
	}
	var err error
	if m.Return, err = cp.lookupLocked(ret); err != nil {
		return nil, err
	}
	m.Params = make([]*Type, len(ms.Params))
	for i, p := range ms.Params {
		if m.Params[i], err = cp.lookupLocked(p); err != nil {
			return nil, err
		}
	}
	if m.Varargs && (len(m.Params) == 0 || m.Params[len(m.Params)-1].kind != KindArray) {
		return nil, errors.InvalidInput(errors.PhaseMirror, fmt.Sprintf("%s: varargs method %s must end with an array parameter", owner.name, ms.Name))
	}
	if m.Kwargs && (len(m.Params) == 0 || m.Params[len(m.Params)-1].name != MapInterface) {
		return nil, errors.InvalidInput(errors.PhaseMirror, fmt.Sprintf("%s: keyword method %s must end with a %s parameter", owner.name, ms.Name, MapInterface))
	}
	cp.nextID++
	m.ID = cp.nextID
	return m, nil
}

// lookupLocked is Lookup with cp.mu held for writing.
func (cp *ClassPath) lookupLocked(name string) (*Type, error) {
	if strings.HasSuffix(name, "[]") {
		c, err := cp.lookupLocked(strings.TrimSuffix(name, "[]"))
		if err != nil {
			return nil, err
		}
		return cp.arrayLocked(c), nil
	}
	if p, ok := primitives[name]; ok {
		return p, nil
	}
	t, ok := cp.types[name]
	if !ok {
		return nil, errors.NotFound(errors.PhaseMirror, "class", name)
	}
	return t, nil
}

// MethodSpec declares a method or constructor on a ClassBuilder. Types are
// given by name and resolved when the class is defined.
type MethodSpec struct {
	Impl     Impl
	Name     string
	Return   string
	Params   []string
	Static   bool
	Abstract bool
	Varargs  bool
	Default  bool
	Kwargs   bool
}

// FieldSpec declares a field on a ClassBuilder.
type FieldSpec struct {
	Value  Value
	Name   string
	Type   string
	Static bool
	Final  bool
}

// ClassBuilder collects a class or interface declaration.
type ClassBuilder struct {
	err        error
	name       string
	super      string
	interfaces []string
	methods    []MethodSpec
	fields     []FieldSpec
	kind       Kind
	abstract   bool
	final      bool
}

// NewClass starts a class declaration.
func NewClass(name string) *ClassBuilder {
	return &ClassBuilder{name: name, kind: KindClass}
}

// NewInterface starts an interface declaration.
func NewInterface(name string) *ClassBuilder {
	return &ClassBuilder{name: name, kind: KindInterface}
}

// Extends sets the superclass of a class, or adds parent interfaces to an interface.
func (b *ClassBuilder) Extends(names ...string) *ClassBuilder {
	if b.kind == KindInterface {
		b.interfaces = append(b.interfaces, names...)
		return b
	}
	if len(names) != 1 {
		b.err = errors.InvalidInput(errors.PhaseMirror, fmt.Sprintf("%s: a class extends exactly one class", b.name))
		return b
	}
	b.super = names[0]
	return b
}

// Implements adds directly implemented interfaces.
func (b *ClassBuilder) Implements(names ...string) *ClassBuilder {
	if b.kind == KindInterface {
		b.err = errors.InvalidInput(errors.PhaseMirror, fmt.Sprintf("%s: interfaces extend, not implement", b.name))
		return b
	}
	b.interfaces = append(b.interfaces, names...)
	return b
}

// Abstract marks a class abstract.
func (b *ClassBuilder) Abstract() *ClassBuilder {
	b.abstract = true
	return b
}

// Final marks a class final.
func (b *ClassBuilder) Final() *ClassBuilder {
	b.final = true
	return b
}

// Method adds a method.
func (b *ClassBuilder) Method(m MethodSpec) *ClassBuilder {
	if m.Name == ConstructorName {
		b.err = errors.InvalidInput(errors.PhaseMirror, fmt.Sprintf("%s: use Constructor to declare constructors", b.name))
		return b
	}
	if b.kind == KindInterface && m.Impl != nil && !m.Static {
		m.Default = true
	}
	b.methods = append(b.methods, m)
	return b
}

// Constructor adds a constructor with the given parameter types.
func (b *ClassBuilder) Constructor(impl Impl, params ...string) *ClassBuilder {
	if b.kind == KindInterface {
		b.err = errors.InvalidInput(errors.PhaseMirror, fmt.Sprintf("%s: interfaces have no constructors", b.name))
		return b
	}
	b.methods = append(b.methods, MethodSpec{Name: ConstructorName, Impl: impl, Params: params})
	return b
}

// Field adds a field.
func (b *ClassBuilder) Field(f FieldSpec) *ClassBuilder {
	b.fields = append(b.fields, f)
	return b
}

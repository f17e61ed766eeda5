package mirror

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/embed-runtime/dynamic"
	"github.com/wippyai/embed-runtime/host"
)

// MirroredType is the dynamic face of a host class or interface.
type MirroredType struct {
	mirror *Mirror
	host   *host.Type
	typ    *dynamic.Type
	bases  []*MirroredType
	mro    []*MirroredType

	methods map[string]Member
	order   []string
	fields  map[string]*FieldAccessor
	ctors   *Dispatcher

	callAlias string
}

// Member is a method table entry: a *MethodWrapper for a single method or
// a *Dispatcher for overloads.
type Member interface {
	dynamic.Callable
	dynamic.Descriptor
	Name() string
	Overloads() []*MethodWrapper
}

func newMirroredType(m *Mirror, t *host.Type, bases []*MirroredType) *MirroredType {
	mt := &MirroredType{
		mirror:  m,
		host:    t,
		bases:   bases,
		methods: make(map[string]Member),
		fields:  make(map[string]*FieldAccessor),
	}
	mt.mro = linearize(mt, bases)

	dynBases := make([]*dynamic.Type, len(bases))
	for i, b := range bases {
		dynBases[i] = b.typ
	}
	ancestors := make([]*dynamic.Type, 0, len(mt.mro))
	for _, e := range mt.mro[1:] {
		ancestors = append(ancestors, e.typ)
	}
	ancestors = append(ancestors, dynamic.ObjectType)
	if len(dynBases) == 0 {
		dynBases = []*dynamic.Type{dynamic.ObjectType}
	}
	mt.typ = dynamic.NewTypeWithMRO(t.Name(), dynBases, ancestors)
	mt.typ.New = noConstructor
	return mt
}

// Name returns the fully-qualified host name.
func (mt *MirroredType) Name() string { return mt.host.Name() }

// Host returns the host type.
func (mt *MirroredType) Host() *host.Type { return mt.host }

// DynamicType returns the synthesized dynamic type.
func (mt *MirroredType) DynamicType() *dynamic.Type { return mt.typ }

// Bases returns the declared bases, superclass first.
func (mt *MirroredType) Bases() []*MirroredType {
	return append([]*MirroredType(nil), mt.bases...)
}

// MRO returns the method resolution order, starting with mt.
func (mt *MirroredType) MRO() []*MirroredType {
	return append([]*MirroredType(nil), mt.mro...)
}

// MethodNames returns the names of methods declared by this type, in
// declaration order.
func (mt *MirroredType) MethodNames() []string {
	return append([]string(nil), mt.order...)
}

// Method returns the member declared by this type under name.
func (mt *MirroredType) Method(name string) (Member, bool) {
	m, ok := mt.methods[name]
	return m, ok
}

// Resolve looks name up along the MRO.
func (mt *MirroredType) Resolve(name string) (Member, bool) {
	for _, e := range mt.mro {
		if m, ok := e.methods[name]; ok {
			return m, true
		}
	}
	return nil, false
}

// Field returns the accessor for a field declared by this type.
func (mt *MirroredType) Field(name string) (*FieldAccessor, bool) {
	f, ok := mt.fields[name]
	return f, ok
}

// Fields returns the declared field accessors in declaration order.
func (mt *MirroredType) Fields() []*FieldAccessor {
	out := make([]*FieldAccessor, 0, len(mt.fields))
	for _, f := range mt.host.Fields() {
		if a, ok := mt.fields[f.Name]; ok {
			out = append(out, a)
		}
	}
	return out
}

// Constructors returns the constructor dispatcher, nil for interfaces and
// abstract classes.
func (mt *MirroredType) Constructors() *Dispatcher { return mt.ctors }

// Functional reports the method aliased to the call operator.
func (mt *MirroredType) Functional() (string, bool) {
	return mt.callAlias, mt.callAlias != ""
}

func (mt *MirroredType) String() string { return "<mirrored " + mt.host.Name() + ">" }

func (mt *MirroredType) addFields() {
	for _, f := range mt.host.Fields() {
		a := &FieldAccessor{mirror: mt.mirror, owner: mt, field: f}
		mt.fields[f.Name] = a
		mt.typ.SetAttr(f.Name, a)
	}
}

// addMethods installs the methods declared by this type only; inherited
// ones are found through the MRO. Methods shadow same-named fields.
func (mt *MirroredType) addMethods() {
	for _, hm := range mt.host.Methods() {
		w := newMethodWrapper(mt.mirror, mt, hm)
		existing, ok := mt.methods[hm.Name]
		if ok {
			mt.methods[hm.Name] = merge(existing, w)
			continue
		}
		if _, shadowed := mt.fields[hm.Name]; shadowed {
			Logger().Debug("method shadows field",
				zap.String("type", mt.Name()), zap.String("name", hm.Name))
		}
		mt.methods[hm.Name] = w
		mt.order = append(mt.order, hm.Name)
	}
	for _, name := range mt.order {
		mt.typ.SetAttr(name, mt.methods[name])
	}
}

func (mt *MirroredType) addConstructors() {
	if mt.host.IsAbstract() || mt.host.IsArray() || len(mt.host.Constructors()) == 0 {
		return
	}
	var ws []*MethodWrapper
	for _, c := range mt.host.Constructors() {
		ws = append(ws, newMethodWrapper(mt.mirror, mt, c))
	}
	mt.ctors = newDispatcher(mt.host.Name(), ws...)
	mt.typ.New = func(ctx context.Context, _ *dynamic.Type, args []dynamic.Object, kwargs *dynamic.Dict) (dynamic.Object, error) {
		return mt.construct(ctx, args, kwargs)
	}
}

// addCallAlias makes instances of a functional interface callable through
// its single abstract method.
func (mt *MirroredType) addCallAlias() {
	fm := mt.host.FunctionalMethod()
	if fm == nil {
		return
	}
	mt.callAlias = fm.Name
	if member, ok := mt.Resolve(fm.Name); ok {
		mt.typ.SetAttr("__call__", member)
	}
}

func noConstructor(_ context.Context, t *dynamic.Type, _ []dynamic.Object, _ *dynamic.Dict) (dynamic.Object, error) {
	return nil, dynamic.Raise(dynamic.TypeError, "cannot create '%s' instances", t.Name)
}

func (mt *MirroredType) construct(ctx context.Context, args []dynamic.Object, kwargs *dynamic.Dict) (dynamic.Object, error) {
	if kwargs.Len() > 0 {
		return nil, dynamic.Raise(dynamic.TypeError, "%s() takes no keyword arguments", mt.host.SimpleName())
	}
	w, hargs, err := mt.ctors.resolve(ctx, args)
	if err != nil {
		return nil, err
	}
	m := mt.mirror
	res, err := m.invokeHost(ctx, func(ctx context.Context) (host.Value, error) {
		return host.Instantiate(ctx, w.method, hargs)
	})
	if err != nil {
		return nil, m.raise(ctx, err)
	}
	return m.conv.ToDynamic(ctx, res)
}

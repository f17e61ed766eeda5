package mirror

import (
	"context"
	"sync"

	"go.uber.org/zap"

	embedruntime "github.com/wippyai/embed-runtime"
	"github.com/wippyai/embed-runtime/dynamic"
	"github.com/wippyai/embed-runtime/errors"
	"github.com/wippyai/embed-runtime/gil"
	"github.com/wippyai/embed-runtime/host"
	"github.com/wippyai/embed-runtime/marshal"
	"github.com/wippyai/embed-runtime/ownership"
)

// ThrownTranslator turns host exceptions escaping a host call into dynamic
// exceptions. The translate package implements it.
type ThrownTranslator interface {
	ToDynamic(ctx context.Context, t *host.Thrown) *dynamic.Exception
}

// Mirror builds and caches dynamic types for host classes and wraps host
// objects as instances of them.
type Mirror struct {
	conv    *marshal.Converter
	classes *host.ClassPath
	keep    *ownership.Arena[*host.Object]
	lock    embedruntime.Lock
	errs    ThrownTranslator

	mu       sync.Mutex
	types    map[string]*MirroredType
	building map[*host.Type]bool
}

// New creates a mirror over conv's class path and installs it as conv's
// host object wrapper. keep is the arena that pins host objects while
// dynamic wrappers reference them.
func New(conv *marshal.Converter, keep *ownership.Arena[*host.Object]) *Mirror {
	m := &Mirror{
		conv:     conv,
		classes:  conv.ClassPath(),
		keep:     keep,
		lock:     conv.Lock(),
		types:    make(map[string]*MirroredType),
		building: make(map[*host.Type]bool),
	}
	conv.SetWrapper(m)
	return m
}

// SetErrorTranslator installs the translator for host exceptions.
func (m *Mirror) SetErrorTranslator(t ThrownTranslator) { m.errs = t }

// Converter returns the value converter.
func (m *Mirror) Converter() *marshal.Converter { return m.conv }

// KeepAlive returns the host keep-alive arena.
func (m *Mirror) KeepAlive() *ownership.Arena[*host.Object] { return m.keep }

// Len returns the number of cached types.
func (m *Mirror) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.types)
}

// Cached returns the cached type for a fully-qualified name without
// building it.
func (m *Mirror) Cached(name string) (*MirroredType, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mt, ok := m.types[name]
	return mt, ok
}

// GetOrBuild returns the mirrored type for t, building it and every
// ancestor on first use. Repeated calls return the same *MirroredType.
// The interpreter lock is held while the cache is consulted.
func (m *Mirror) GetOrBuild(ctx context.Context, t *host.Type) (*MirroredType, error) {
	if t == nil {
		return nil, errors.NilPointer(errors.PhaseMirror, nil, "host type")
	}
	if m.lock != nil {
		var release func()
		var err error
		ctx, release, err = gil.Enter(ctx, m.lock)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getOrBuild(t)
}

// Lookup mirrors the class with the given name.
func (m *Mirror) Lookup(ctx context.Context, name string) (*MirroredType, error) {
	t, err := m.classes.Lookup(name)
	if err != nil {
		return nil, errors.New(errors.PhaseMirror, errors.KindNotFound).
			HostType(name).
			Cause(err).
			Build()
	}
	return m.GetOrBuild(ctx, t)
}

func (m *Mirror) getOrBuild(t *host.Type) (*MirroredType, error) {
	if mt, ok := m.types[t.Name()]; ok {
		return mt, nil
	}
	if t.IsPrimitive() {
		return nil, errors.NotMirrorable(t.Name(), "primitive types cannot be mirrored, only their boxes")
	}
	if m.building[t] {
		return nil, errors.New(errors.PhaseMirror, errors.KindCycle).
			HostType(t.Name()).
			Detail("type is its own ancestor").
			Build()
	}
	m.building[t] = true
	defer delete(m.building, t)

	mt, err := m.build(t)
	if err != nil {
		Logger().Debug("mirror build failed", zap.String("type", t.Name()), zap.Error(err))
		return nil, err
	}
	m.types[t.Name()] = mt
	debugf("mirrored %s with %d methods", t.Name(), len(mt.order))
	return mt, nil
}

func (m *Mirror) build(t *host.Type) (*MirroredType, error) {
	var declared []*host.Type
	switch {
	case t.IsArray():
		declared = append(declared, m.classes.MustLookup(host.ObjectClass))
	case t.IsInterface():
		declared = append(declared, t.Interfaces()...)
	default:
		if sup := t.Superclass(); sup != nil {
			declared = append(declared, sup)
		}
		declared = append(declared, t.Interfaces()...)
	}

	bases := make([]*MirroredType, 0, len(declared))
	for _, d := range declared {
		b, err := m.getOrBuild(d)
		if err != nil {
			return nil, errors.New(errors.PhaseMirror, errors.KindNotMirrorable).
				HostType(t.Name()).
				Detail("ancestor %s", d.Name()).
				Cause(err).
				Build()
		}
		bases = append(bases, b)
	}

	mt := newMirroredType(m, t, bases)
	mt.addFields()
	mt.addMethods()
	mt.addConstructors()
	mt.addCallAlias()
	return mt, nil
}

// linearize orders ancestors: self first, then each declared base followed
// by the entries of its own order not seen yet. The superclass is declared
// first, so class ancestry always precedes interface ancestry.
func linearize(self *MirroredType, bases []*MirroredType) []*MirroredType {
	out := []*MirroredType{self}
	seen := map[*MirroredType]bool{self: true}
	for _, b := range bases {
		for _, e := range b.mro {
			if !seen[e] {
				seen[e] = true
				out = append(out, e)
			}
		}
	}
	return out
}

// Wrap returns a dynamic instance standing for o.
func (m *Mirror) Wrap(ctx context.Context, o *host.Object) (dynamic.Object, error) {
	mt, err := m.GetOrBuild(ctx, o.Class())
	if err != nil {
		return nil, err
	}
	return m.newInstance(o, mt)
}

// Unwrap returns the host object behind an instance created by this mirror.
func (m *Mirror) Unwrap(v dynamic.Object) (*host.Object, bool, error) {
	inst, ok := v.(*Instance)
	if !ok || inst.mirror != m {
		return nil, false, nil
	}
	o, err := inst.Object()
	return o, true, err
}

// invokeHost runs fn with the interpreter lock released.
func (m *Mirror) invokeHost(ctx context.Context, fn func(context.Context) (host.Value, error)) (host.Value, error) {
	if m.lock == nil {
		return fn(ctx)
	}
	var out host.Value
	err := gil.Unlocked(ctx, m.lock, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	return out, err
}

// raise turns an error from the host side or from conversion into a
// dynamic exception.
func (m *Mirror) raise(ctx context.Context, err error) error {
	switch e := err.(type) {
	case nil:
		return nil
	case *dynamic.Exception:
		return e
	case *host.Thrown:
		if m.errs != nil {
			return m.errs.ToDynamic(ctx, e)
		}
		msg, _ := host.ThrowableMessage(e.Object)
		exc := dynamic.Raise(dynamic.RuntimeError, "%s: %s", e.Object.Class().Name(), msg)
		exc.Origin = e
		return exc
	}

	t := dynamic.RuntimeError
	switch {
	case errors.IsKind(err, errors.KindOverflow):
		t = dynamic.OverflowError
	case errors.IsKind(err, errors.KindTypeMismatch),
		errors.IsKind(err, errors.KindNoOverload),
		errors.IsKind(err, errors.KindAmbiguous),
		errors.IsKind(err, errors.KindUnsupportedComparison),
		errors.IsKind(err, errors.KindNotMirrorable):
		t = dynamic.TypeError
	}
	exc := dynamic.Raise(t, "%s", err.Error())
	exc.Origin = err
	return exc
}

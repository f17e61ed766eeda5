package mirror

import (
	"context"
	"strconv"
	"sync/atomic"

	"github.com/wippyai/embed-runtime/dynamic"
	"github.com/wippyai/embed-runtime/host"
	"github.com/wippyai/embed-runtime/overload"
)

// signature is the resolved calling convention of a host method.
type signature struct {
	// params are the parameter types visible to dynamic callers; a kwargs
	// method's trailing map parameter is excluded.
	params  []*host.Type
	mapType *host.Type
	ret     *host.Type
	display string
	static  bool
	varargs bool
	kwargs  bool
	void    bool
}

// MethodWrapper exposes one host method to dynamic code.
type MethodWrapper struct {
	mirror *Mirror
	owner  *MirroredType
	method *host.Method
	sig    atomic.Pointer[signature]
}

var (
	_ Member = (*MethodWrapper)(nil)
	_ Member = (*Dispatcher)(nil)
)

func newMethodWrapper(m *Mirror, owner *MirroredType, hm *host.Method) *MethodWrapper {
	return &MethodWrapper{mirror: m, owner: owner, method: hm}
}

func (*MethodWrapper) Type() *dynamic.Type { return dynamic.FunctionType }

// Name returns the method name.
func (w *MethodWrapper) Name() string { return w.method.Name }

// ID returns the host method id.
func (w *MethodWrapper) ID() int { return w.method.ID }

// Method returns the wrapped host method.
func (w *MethodWrapper) Method() *host.Method { return w.method }

// Overloads returns w alone.
func (w *MethodWrapper) Overloads() []*MethodWrapper { return []*MethodWrapper{w} }

// Static reports whether the method is static.
func (w *MethodWrapper) Static() bool { return w.signature().static }

// Params returns the parameter types seen by dynamic callers.
func (w *MethodWrapper) Params() []*host.Type {
	return append([]*host.Type(nil), w.signature().params...)
}

// Signature renders the method for diagnostics.
func (w *MethodWrapper) Signature() string { return w.signature().display }

// signature returns the lazily resolved signature. Concurrent first calls
// may each build one; only the first store wins and the others are
// identical.
func (w *MethodWrapper) signature() *signature {
	if s := w.sig.Load(); s != nil {
		return s
	}
	hm := w.method
	s := &signature{
		params:  hm.Params,
		ret:     hm.Return,
		static:  hm.Static,
		varargs: hm.Varargs,
		kwargs:  hm.Kwargs && len(hm.Params) > 0,
		display: w.owner.Name() + "." + hm.Signature(),
	}
	if s.kwargs {
		s.mapType = hm.Params[len(hm.Params)-1]
		s.params = hm.Params[:len(hm.Params)-1]
	}
	s.void = s.ret == nil || s.ret.Kind() == host.KindVoid
	if w.sig.CompareAndSwap(nil, s) {
		return s
	}
	return w.sig.Load()
}

// Get binds instance methods to the instance they are read through.
func (w *MethodWrapper) Get(_ context.Context, self dynamic.Object, _ *dynamic.Type) (dynamic.Object, error) {
	if self == nil || w.signature().static {
		return w, nil
	}
	return &Bound{Self: self, Member: w}, nil
}

// Call invokes the method unbound: instance methods take the receiver as
// the first argument.
func (w *MethodWrapper) Call(ctx context.Context, args []dynamic.Object, kwargs *dynamic.Dict) (dynamic.Object, error) {
	return w.call(ctx, nil, args, kwargs)
}

func (w *MethodWrapper) call(ctx context.Context, self dynamic.Object, args []dynamic.Object, kwargs *dynamic.Dict) (dynamic.Object, error) {
	sig := w.signature()
	var recv *host.Object
	if !sig.static {
		if self == nil {
			if len(args) == 0 {
				return nil, dynamic.Raise(dynamic.TypeError, "%s needs a receiver", sig.display)
			}
			self, args = args[0], args[1:]
		}
		o, err := w.receiver(ctx, self)
		if err != nil {
			return nil, err
		}
		recv = o
	}

	switch {
	case sig.varargs:
		if err := checkLive(args); err != nil {
			return nil, w.mirror.raise(ctx, err)
		}
		sel, err := overload.Resolve(w.method.Name, []overload.Candidate{w.candidate()}, args, w.mirror.conv.Score)
		if err != nil {
			return nil, w.mirror.raise(ctx, err)
		}
		args = sel.Args
	case len(args) != len(sig.params):
		return nil, dynamic.Raise(dynamic.TypeError, "%s takes %d arguments, got %d",
			sig.display, len(sig.params), len(args))
	}
	hargs, err := w.convertArgs(ctx, args, kwargs)
	if err != nil {
		return nil, err
	}
	return w.invoke(ctx, recv, hargs)
}

// receiver checks that self wraps a host object the method applies to.
func (w *MethodWrapper) receiver(ctx context.Context, self dynamic.Object) (*host.Object, error) {
	inst, ok := self.(*Instance)
	if !ok || inst.mirror != w.mirror {
		return nil, dynamic.Raise(dynamic.TypeError, "descriptor '%s' of '%s' needs a host object, got '%s'",
			w.method.Name, w.owner.Name(), dynamic.TypeName(self))
	}
	o, err := inst.Object()
	if err != nil {
		return nil, w.mirror.raise(ctx, err)
	}
	if !w.method.Owner.AssignableFrom(o.Class()) {
		return nil, dynamic.Raise(dynamic.TypeError, "descriptor '%s' of '%s' does not apply to '%s'",
			w.method.Name, w.owner.Name(), o.Class().Name())
	}
	return o, nil
}

// convertArgs converts positional arguments and, for kwargs methods, the
// keyword arguments as a trailing map.
func (w *MethodWrapper) convertArgs(ctx context.Context, args []dynamic.Object, kwargs *dynamic.Dict) ([]host.Value, error) {
	sig := w.signature()
	if kwargs.Len() > 0 && !sig.kwargs {
		return nil, dynamic.Raise(dynamic.TypeError, "%s takes no keyword arguments", sig.display)
	}
	vals, types := args, sig.params
	if sig.kwargs {
		if kwargs == nil {
			kwargs = dynamic.NewDict()
		}
		vals = append(append([]dynamic.Object(nil), args...), kwargs)
		types = append(append([]*host.Type(nil), sig.params...), sig.mapType)
	}
	hargs, err := w.mirror.conv.ToHostAll(ctx, vals, types)
	if err != nil {
		return nil, w.mirror.raise(ctx, err)
	}
	return hargs, nil
}

func (w *MethodWrapper) invoke(ctx context.Context, recv *host.Object, hargs []host.Value) (dynamic.Object, error) {
	m := w.mirror
	res, err := m.invokeHost(ctx, func(ctx context.Context) (host.Value, error) {
		return host.Invoke(ctx, w.method, recv, hargs)
	})
	if err != nil {
		return nil, m.raise(ctx, err)
	}
	if w.signature().void {
		return dynamic.None, nil
	}
	out, err := m.conv.ToDynamic(ctx, res)
	if err != nil {
		return nil, m.raise(ctx, err)
	}
	return out, nil
}

func (w *MethodWrapper) String() string { return "<host method " + w.signature().display + ">" }

// Dispatcher groups same-named overloads and resolves among them on every
// call. It always holds at least one wrapper.
type Dispatcher struct {
	name string
	ws   []*MethodWrapper
}

func newDispatcher(name string, ws ...*MethodWrapper) *Dispatcher {
	d := &Dispatcher{name: name}
	for _, w := range ws {
		d.add(w)
	}
	return d
}

func (w *MethodWrapper) candidate() overload.Candidate {
	sig := w.signature()
	return overload.Candidate{
		Params:  sig.params,
		Varargs: sig.varargs,
		Label:   sig.display,
	}
}

func (d *Dispatcher) add(w *MethodWrapper) {
	d.ws = append(d.ws, w)
}

func candidates(ws []*MethodWrapper) []overload.Candidate {
	out := make([]overload.Candidate, len(ws))
	for i, w := range ws {
		out[i] = w.candidate()
	}
	return out
}

// merge adds w to an existing table entry, turning a single wrapper into a
// dispatcher.
func merge(existing Member, w *MethodWrapper) Member {
	switch e := existing.(type) {
	case *Dispatcher:
		e.add(w)
		return e
	case *MethodWrapper:
		return newDispatcher(e.Name(), e, w)
	}
	return existing
}

func (*Dispatcher) Type() *dynamic.Type { return dynamic.FunctionType }

// Name returns the method name.
func (d *Dispatcher) Name() string { return d.name }

// Overloads returns the wrappers in declaration order.
func (d *Dispatcher) Overloads() []*MethodWrapper {
	return append([]*MethodWrapper(nil), d.ws...)
}

func (d *Dispatcher) hasStatic() bool {
	for _, w := range d.ws {
		if w.signature().static {
			return true
		}
	}
	return false
}

// Get binds the dispatcher unless every overload is static.
func (d *Dispatcher) Get(_ context.Context, self dynamic.Object, _ *dynamic.Type) (dynamic.Object, error) {
	if self == nil {
		return d, nil
	}
	for _, w := range d.ws {
		if !w.signature().static {
			return &Bound{Self: self, Member: d}, nil
		}
	}
	return d, nil
}

// Call resolves among static overloads. When the group has none, the first
// argument is taken as the receiver.
func (d *Dispatcher) Call(ctx context.Context, args []dynamic.Object, kwargs *dynamic.Dict) (dynamic.Object, error) {
	if !d.hasStatic() && len(args) > 0 {
		return d.call(ctx, args[0], args[1:], kwargs)
	}
	return d.call(ctx, nil, args, kwargs)
}

func (d *Dispatcher) call(ctx context.Context, self dynamic.Object, args []dynamic.Object, kwargs *dynamic.Dict) (dynamic.Object, error) {
	ws := d.ws
	if self == nil {
		ws = nil
		for _, w := range d.ws {
			if w.signature().static {
				ws = append(ws, w)
			}
		}
	}
	m := d.ws[0].mirror
	if err := checkLive(args); err != nil {
		return nil, m.raise(ctx, err)
	}
	sel, err := overload.Resolve(d.name, candidates(ws), args, m.conv.Score)
	if err != nil {
		return nil, m.raise(ctx, err)
	}
	w := ws[sel.Index]

	var recv *host.Object
	if !w.signature().static {
		if recv, err = w.receiver(ctx, self); err != nil {
			return nil, err
		}
	}
	hargs, err := w.convertArgs(ctx, sel.Args, kwargs)
	if err != nil {
		return nil, err
	}
	return w.invoke(ctx, recv, hargs)
}

// Select reports the overload a call with args would run, considering
// static and instance overloads alike. Nothing is converted or invoked.
func (d *Dispatcher) Select(args []dynamic.Object) (*MethodWrapper, error) {
	m := d.ws[0].mirror
	if err := checkLive(args); err != nil {
		return nil, err
	}
	sel, err := overload.Resolve(d.name, candidates(d.ws), args, m.conv.Score)
	if err != nil {
		return nil, err
	}
	return d.ws[sel.Index], nil
}

// resolve selects a constructor and converts args for it.
func (d *Dispatcher) resolve(ctx context.Context, args []dynamic.Object) (*MethodWrapper, []host.Value, error) {
	m := d.ws[0].mirror
	if err := checkLive(args); err != nil {
		return nil, nil, m.raise(ctx, err)
	}
	sel, err := overload.Resolve(d.name, candidates(d.ws), args, m.conv.Score)
	if err != nil {
		return nil, nil, m.raise(ctx, err)
	}
	w := d.ws[sel.Index]
	hargs, err := w.convertArgs(ctx, sel.Args, nil)
	if err != nil {
		return nil, nil, err
	}
	return w, hargs, nil
}

// checkLive fails with the lifetime error of the first released wrapper in
// args. Scoring treats a released wrapper as incompatible, which would
// otherwise surface as a missing overload.
func checkLive(args []dynamic.Object) error {
	for _, a := range args {
		if inst, ok := a.(*Instance); ok && inst.Released() {
			_, err := inst.Object()
			return err
		}
	}
	return nil
}

func (d *Dispatcher) String() string {
	return "<host overloads " + d.name + " (" + strconv.Itoa(len(d.ws)) + ")>"
}

// Bound is a member bound to the instance it was read through.
type Bound struct {
	Self   dynamic.Object
	Member Member
}

func (*Bound) Type() *dynamic.Type { return dynamic.MethodType }

func (b *Bound) Call(ctx context.Context, args []dynamic.Object, kwargs *dynamic.Dict) (dynamic.Object, error) {
	switch m := b.Member.(type) {
	case *MethodWrapper:
		return m.call(ctx, b.Self, args, kwargs)
	case *Dispatcher:
		return m.call(ctx, b.Self, args, kwargs)
	}
	return dynamic.Call(ctx, b.Member, append([]dynamic.Object{b.Self}, args...), kwargs)
}

func (b *Bound) String() string {
	return "<bound host method " + b.Member.Name() + ">"
}

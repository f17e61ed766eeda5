package marshal

import (
	"context"
	"hash/fnv"

	"go.uber.org/zap"

	"github.com/wippyai/embed-runtime/dynamic"
	"github.com/wippyai/embed-runtime/errors"
	"github.com/wippyai/embed-runtime/gil"
	"github.com/wippyai/embed-runtime/host"
	"github.com/wippyai/embed-runtime/ownership"
)

// handler is the payload of every host object that stands for a dynamic
// object: embed.DynamicObject, embed.DynamicCallable and functional
// interface proxies. It keeps the dynamic object alive through the
// reference arena until the host object is collected or released.
type handler struct {
	conv *Converter
	ref  *ownership.Ref
}

var _ host.InvocationHandler = (*handler)(nil)

func (h *handler) target() (dynamic.Object, error) {
	if h.ref.Released() {
		return nil, errors.Released("dynamic reference", uint64(h.ref.Handle()))
	}
	return h.conv.refs.Get(h.ref.Handle())
}

func (c *Converter) attach(v dynamic.Object, class *host.Type, iface *host.Type, refs *RefList) (*host.Object, error) {
	hnd, err := c.refs.Retain(v)
	if err != nil {
		return nil, err
	}
	h := &handler{conv: c}
	var o *host.Object
	if iface != nil {
		o, err = c.classes.NewProxy(iface, h)
		if err != nil {
			_ = c.refs.Release(hnd)
			return nil, err
		}
	} else {
		o = c.classes.NewObject(class, h)
	}
	h.ref = ownership.Bind(o, c.refs, hnd)
	refs.Add(h.ref)
	return o, nil
}

func (c *Converter) newWrapper(v dynamic.Object, class *host.Type, refs *RefList) (host.Value, error) {
	return c.attach(v, class, nil, refs)
}

func (c *Converter) newProxy(v dynamic.Object, iface *host.Type, path []string, refs *RefList) (host.Value, error) {
	o, err := c.attach(v, nil, iface, refs)
	if err != nil {
		return nil, errors.New(errors.PhaseMarshal, errors.KindTypeMismatch).
			Path(path...).
			HostType(iface.Name()).
			DynType(dynamic.TypeName(v)).
			Cause(err).
			Build()
	}
	return o, nil
}

// ReleaseWrapper drops the dynamic reference held by a host wrapper ahead
// of garbage collection. It reports false when o does not wrap a dynamic
// object of this converter.
func (c *Converter) ReleaseWrapper(o *host.Object) (bool, error) {
	hi, ok := host.Handler(o)
	if !ok {
		return false, nil
	}
	h, ok := hi.(*handler)
	if !ok || h.conv != c {
		return false, nil
	}
	return true, h.ref.Release()
}

// Invoke runs a host call made on a wrapper against the dynamic object,
// holding the interpreter lock for the duration.
func (h *handler) Invoke(ctx context.Context, self *host.Object, m *host.Method, args []host.Value) (host.Value, error) {
	c := h.conv
	if lock := c.opts.Lock; lock != nil {
		var release func()
		var err error
		ctx, release, err = gil.Enter(ctx, lock)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	target, err := h.target()
	if err != nil {
		return nil, c.classes.Throw("java.lang.IllegalStateException", "%v", err)
	}

	out, err := h.dispatch(ctx, target, self, m, args)
	if err != nil {
		return nil, c.hostError(ctx, err)
	}
	return out, nil
}

func (h *handler) dispatch(ctx context.Context, target dynamic.Object, self *host.Object, m *host.Method, args []host.Value) (host.Value, error) {
	c := h.conv
	switch {
	case m.Name == "toString" && len(args) == 0:
		s, err := dynamic.ToStr(ctx, target)
		if err != nil {
			return nil, err
		}
		return c.classes.NewString(s), nil

	case m.Name == "equals" && len(args) == 1:
		if host.Same(self, args[0]) {
			return true, nil
		}
		other, err := c.ToDynamic(ctx, args[0])
		if err != nil {
			return nil, err
		}
		return dynamic.Equal(ctx, target, other)

	case m.Name == "hashCode" && len(args) == 0:
		key, err := dynamic.HashKey(target)
		if err != nil {
			return nil, err
		}
		f := fnv.New32a()
		_, _ = f.Write([]byte(key))
		return int32(f.Sum32()), nil

	case m.Owner != nil && m.Owner.Name() == host.DynamicCallableClass && m.Name == "call":
		var dargs []dynamic.Object
		if arr, ok := args[0].(*host.Object); ok && arr != nil {
			n := host.ArrayLen(arr)
			dargs = make([]dynamic.Object, n)
			for i := 0; i < n; i++ {
				hv, err := host.ArrayGet(arr, i)
				if err != nil {
					return nil, err
				}
				if dargs[i], err = c.ToDynamic(ctx, hv); err != nil {
					return nil, err
				}
			}
		}
		res, err := dynamic.Call(ctx, target, dargs, nil)
		if err != nil {
			return nil, err
		}
		return c.ToHost(ctx, res, c.object)
	}

	dargs := make([]dynamic.Object, len(args))
	for i, a := range args {
		dv, err := c.ToDynamic(ctx, a)
		if err != nil {
			return nil, err
		}
		dargs[i] = dv
	}
	res, err := dynamic.Call(ctx, target, dargs, nil)
	if err != nil {
		return nil, err
	}
	if m.Return == nil || m.Return.Kind() == host.KindVoid {
		return nil, nil
	}
	return c.ToHost(ctx, res, m.Return)
}

func (c *Converter) hostError(ctx context.Context, err error) error {
	if _, ok := err.(*host.Thrown); ok {
		return err
	}
	exc, ok := err.(*dynamic.Exception)
	if !ok {
		return c.classes.Throw("java.lang.RuntimeException", "%v", err)
	}
	if c.opts.Errors != nil {
		return c.opts.Errors.ToHost(ctx, exc)
	}
	Logger().Debug("no exception translator installed", zap.String("exception", exc.Error()))
	return c.classes.Throw("java.lang.RuntimeException", "%s", exc.Error())
}

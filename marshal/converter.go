package marshal

import (
	"context"
	"math"
	"strconv"

	"go.uber.org/zap"

	embedruntime "github.com/wippyai/embed-runtime"
	"github.com/wippyai/embed-runtime/dynamic"
	"github.com/wippyai/embed-runtime/errors"
	"github.com/wippyai/embed-runtime/host"
	"github.com/wippyai/embed-runtime/ownership"
)

// Wrapper turns host objects into dynamic objects and back. The type
// mirror implements it.
type Wrapper interface {
	// Wrap returns a dynamic object standing for o.
	Wrap(ctx context.Context, o *host.Object) (dynamic.Object, error)
	// Unwrap returns the host object behind v. ok is false when v is not a
	// wrapper; err is set when the wrapper has been released.
	Unwrap(v dynamic.Object) (o *host.Object, ok bool, err error)
}

// ErrorTranslator rethrows dynamic exceptions on the host side.
type ErrorTranslator interface {
	ToHost(ctx context.Context, exc *dynamic.Exception) *host.Thrown
}

// Options configures a Converter.
type Options struct {
	Wrapper Wrapper
	Errors  ErrorTranslator
	Buffers embedruntime.BufferHandler
	// Lock is acquired when host code calls back into a wrapped dynamic
	// object. Nil disables locking.
	Lock embedruntime.Lock
	// LoadFactor sizes converted hash maps. Zero means host.DefaultLoadFactor.
	LoadFactor float64
}

// Converter converts values between the runtimes.
type Converter struct {
	classes *host.ClassPath
	refs    *ownership.Arena[dynamic.Object]
	opts    Options

	object, dynObject, dynCallable *host.Type
	arrayList, unmodList, hashMap  *host.Type
	str                            *host.Type
}

// New creates a converter. refs is the arena that keeps dynamic objects
// alive while host wrappers reference them.
func New(classes *host.ClassPath, refs *ownership.Arena[dynamic.Object], opts Options) *Converter {
	if opts.LoadFactor <= 0 {
		opts.LoadFactor = host.DefaultLoadFactor
	}
	return &Converter{
		classes:     classes,
		refs:        refs,
		opts:        opts,
		object:      classes.MustLookup(host.ObjectClass),
		dynObject:   classes.MustLookup(host.DynamicObjectClass),
		dynCallable: classes.MustLookup(host.DynamicCallableClass),
		arrayList:   classes.MustLookup(host.ArrayListClass),
		unmodList:   classes.MustLookup(host.UnmodifiableListClass),
		hashMap:     classes.MustLookup(host.HashMapClass),
		str:         classes.MustLookup(host.StringClass),
	}
}

// SetWrapper installs the host object wrapper. It must be called before
// the converter is shared.
func (c *Converter) SetWrapper(w Wrapper) { c.opts.Wrapper = w }

// SetErrorTranslator installs the exception translator used when host
// code calls into wrapped dynamic objects.
func (c *Converter) SetErrorTranslator(t ErrorTranslator) { c.opts.Errors = t }

// ClassPath returns the host class path.
func (c *Converter) ClassPath() *host.ClassPath { return c.classes }

// Lock returns the interpreter lock, possibly nil.
func (c *Converter) Lock() embedruntime.Lock { return c.opts.Lock }

// References returns the dynamic reference arena.
func (c *Converter) References() *ownership.Arena[dynamic.Object] { return c.refs }

// ToHost converts v for a host slot of type expected. A nil expected type
// means java.lang.Object. If conversion fails, every host wrapper created
// along the way is released before the error is returned.
func (c *Converter) ToHost(ctx context.Context, v dynamic.Object, expected *host.Type) (host.Value, error) {
	if expected == nil {
		expected = c.object
	}
	refs := NewRefList()
	defer refs.Release()

	out, err := c.toHost(ctx, v, expected, nil, refs)
	if err != nil {
		if rerr := refs.ReleaseAll(); rerr != nil {
			Logger().Warn("releasing references after failed conversion", zap.Error(rerr))
		}
		return nil, err
	}
	return out, nil
}

// ToHostAll converts the arguments of one call. When any conversion fails
// the wrappers created for the other arguments are released as well.
func (c *Converter) ToHostAll(ctx context.Context, vals []dynamic.Object, types []*host.Type) ([]host.Value, error) {
	if len(vals) != len(types) {
		return nil, errors.InvalidInput(errors.PhaseMarshal,
			"got "+strconv.Itoa(len(vals))+" values for "+strconv.Itoa(len(types))+" types")
	}
	refs := NewRefList()
	defer refs.Release()

	out := make([]host.Value, len(vals))
	for i, v := range vals {
		hv, err := c.toHost(ctx, v, types[i], []string{"arg" + strconv.Itoa(i)}, refs)
		if err != nil {
			if rerr := refs.ReleaseAll(); rerr != nil {
				Logger().Warn("releasing references after failed conversion", zap.Error(rerr))
			}
			return nil, err
		}
		out[i] = hv
	}
	return out, nil
}

func sub(path []string, elem string) []string {
	out := make([]string, len(path), len(path)+1)
	copy(out, path)
	return append(out, elem)
}

func (c *Converter) mismatch(path []string, v dynamic.Object, expected *host.Type) error {
	return errors.TypeMismatch(errors.PhaseMarshal, path, expected.Name(), dynamic.TypeName(v))
}

func (c *Converter) toHost(ctx context.Context, v dynamic.Object, expected *host.Type, path []string, refs *RefList) (host.Value, error) {
	if c.opts.Buffers != nil && c.opts.Buffers.Claims(expected) {
		out, err := c.opts.Buffers.ToHost(v, expected)
		if err != nil {
			return nil, err
		}
		if out != nil {
			return out, nil
		}
	}

	if v == nil || v == dynamic.None {
		if expected.IsPrimitive() {
			return nil, errors.New(errors.PhaseMarshal, errors.KindTypeMismatch).
				Path(path...).
				HostType(expected.Name()).
				DynType("NoneType").
				Detail("None cannot be converted to primitive %s", expected.Name()).
				Build()
		}
		return nil, nil
	}

	if o, ok, err := c.unwrap(v); err != nil {
		return nil, err
	} else if ok {
		if expected.IsReference() && expected.AssignableFrom(o.Class()) {
			return o, nil
		}
		if expected.IsPrimitive() {
			if pv, ok := host.Unbox(o); ok {
				if k, _ := host.KindOf(pv); k == expected.Kind() {
					return pv, nil
				}
			}
		}
		return nil, errors.TypeMismatch(errors.PhaseMarshal, path, expected.Name(), o.Class().Name())
	}

	switch x := v.(type) {
	case *dynamic.Bool:
		return c.boolToHost(x, expected, path)
	case *dynamic.Int:
		return c.intToHost(x, expected, path)
	case *dynamic.Float:
		return c.floatToHost(x, expected, path)
	case *dynamic.Str:
		return c.strToHost(x, expected, path)
	case *dynamic.List:
		return c.seqToHost(ctx, v, x.Items, expected, path, refs)
	case *dynamic.Tuple:
		return c.seqToHost(ctx, v, x.Items, expected, path, refs)
	case *dynamic.Dict:
		if expected.AssignableFrom(c.hashMap) {
			return c.dictToHost(ctx, x, path, refs)
		}
	case *dynamic.Buffer:
		if expected.IsArray() && expected.Component().IsPrimitive() {
			return c.bufferToHost(x, expected, path)
		}
	}

	if dynamic.IsCallable(v) {
		if expected.IsFunctional() {
			return c.newProxy(v, expected, path, refs)
		}
		if expected.AssignableFrom(c.dynCallable) {
			return c.newWrapper(v, c.dynCallable, refs)
		}
	}

	if expected.AssignableFrom(c.dynObject) {
		return c.newWrapper(v, c.dynObject, refs)
	}
	return nil, c.mismatch(path, v, expected)
}

func (c *Converter) unwrap(v dynamic.Object) (*host.Object, bool, error) {
	if c.opts.Wrapper == nil {
		return nil, false, nil
	}
	return c.opts.Wrapper.Unwrap(v)
}

func (c *Converter) box(v host.Value) (host.Value, error) {
	return c.classes.Box(v)
}

func (c *Converter) boolToHost(x *dynamic.Bool, expected *host.Type, path []string) (host.Value, error) {
	if expected.Kind() == host.KindBoolean {
		return x.V, nil
	}
	if expected.IsReference() && expected.AssignableFrom(c.classes.MustLookup(host.BooleanClass)) {
		return c.box(x.V)
	}
	return nil, c.mismatch(path, x, expected)
}

func fits(v int64, bits int) bool {
	lim := int64(1) << (bits - 1)
	return v >= -lim && v < lim
}

// integral converts v to the primitive kind k, reporting overflow.
func integral(v int64, k host.Kind) (host.Value, bool) {
	switch k {
	case host.KindByte:
		return int8(v), fits(v, 8)
	case host.KindShort:
		return int16(v), fits(v, 16)
	case host.KindInt:
		return int32(v), fits(v, 32)
	case host.KindLong:
		return v, true
	case host.KindFloat:
		return float32(v), true
	case host.KindDouble:
		return float64(v), true
	}
	return nil, false
}

func (c *Converter) intToHost(x *dynamic.Int, expected *host.Type, path []string) (host.Value, error) {
	k := expected.Kind()
	if expected.IsReference() {
		bk, isBox := host.UnboxKind(expected)
		if !isBox {
			if !expected.AssignableFrom(c.classes.MustLookup(host.LongClass)) {
				return nil, c.mismatch(path, x, expected)
			}
			bk = host.KindLong
		}
		k = bk
	}
	if k == host.KindBoolean || k == host.KindChar {
		return nil, c.mismatch(path, x, expected)
	}
	pv, ok := integral(x.V, k)
	if pv == nil {
		return nil, c.mismatch(path, x, expected)
	}
	if !ok {
		return nil, errors.Overflow(errors.PhaseMarshal, path, x.V, expected.Name())
	}
	if expected.IsReference() {
		return c.box(pv)
	}
	return pv, nil
}

func (c *Converter) floatToHost(x *dynamic.Float, expected *host.Type, path []string) (host.Value, error) {
	k := expected.Kind()
	if expected.IsReference() {
		bk, isBox := host.UnboxKind(expected)
		if !isBox {
			if !expected.AssignableFrom(c.classes.MustLookup(host.DoubleClass)) {
				return nil, c.mismatch(path, x, expected)
			}
			bk = host.KindDouble
		}
		k = bk
	}
	var pv host.Value
	switch k {
	case host.KindDouble:
		pv = x.V
	case host.KindFloat:
		if !math.IsInf(x.V, 0) && !math.IsNaN(x.V) && math.Abs(x.V) > math.MaxFloat32 {
			return nil, errors.Overflow(errors.PhaseMarshal, path, x.V, expected.Name())
		}
		pv = float32(x.V)
	default:
		return nil, c.mismatch(path, x, expected)
	}
	if expected.IsReference() {
		return c.box(pv)
	}
	return pv, nil
}

func (c *Converter) strToHost(x *dynamic.Str, expected *host.Type, path []string) (host.Value, error) {
	units, err := RunesToUnits(x.Runes())
	if err != nil {
		return nil, err
	}
	if expected.IsReference() && expected.AssignableFrom(c.str) {
		return c.classes.NewStringUnits(units), nil
	}
	if len(units) == 1 {
		if expected.Kind() == host.KindChar {
			return units[0], nil
		}
		if expected.Name() == host.CharacterClass {
			return c.box(units[0])
		}
	}
	return nil, c.mismatch(path, x, expected)
}

func (c *Converter) seqToHost(ctx context.Context, v dynamic.Object, items []dynamic.Object, expected *host.Type, path []string, refs *RefList) (host.Value, error) {
	if expected.IsArray() {
		comp := expected.Component()
		arr := c.classes.NewArray(comp, len(items))
		for i, it := range items {
			hv, err := c.toHost(ctx, it, comp, sub(path, "["+strconv.Itoa(i)+"]"), refs)
			if err != nil {
				return nil, err
			}
			if err := host.ArraySet(arr, i, hv); err != nil {
				return nil, err
			}
		}
		return arr, nil
	}

	target := c.arrayList
	if _, isTuple := v.(*dynamic.Tuple); isTuple && expected != c.arrayList {
		target = c.unmodList
	}
	if !expected.AssignableFrom(target) {
		if expected.AssignableFrom(c.dynObject) {
			return c.newWrapper(v, c.dynObject, refs)
		}
		return nil, c.mismatch(path, v, expected)
	}

	out := make([]host.Value, len(items))
	for i, it := range items {
		hv, err := c.toHost(ctx, it, c.object, sub(path, "["+strconv.Itoa(i)+"]"), refs)
		if err != nil {
			return nil, err
		}
		out[i] = hv
	}
	if target == c.unmodList {
		return c.classes.NewUnmodifiableList(out...), nil
	}
	return c.classes.NewList(out...), nil
}

func (c *Converter) dictToHost(ctx context.Context, d *dynamic.Dict, path []string, refs *RefList) (host.Value, error) {
	m := c.classes.NewMap(host.CapacityFor(d.Len(), c.opts.LoadFactor))
	for _, it := range d.Items() {
		kr, err := dynamic.Repr(ctx, it.Key)
		if err != nil {
			kr = dynamic.TypeName(it.Key)
		}
		k, err := c.toHost(ctx, it.Key, c.object, sub(path, "key("+kr+")"), refs)
		if err != nil {
			return nil, err
		}
		v, err := c.toHost(ctx, it.Value, c.object, sub(path, "["+kr+"]"), refs)
		if err != nil {
			return nil, err
		}
		if _, err := host.InvokeByName(ctx, m, "put", k, v); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ToDynamic converts a host value. Strings, boxes and primitives become
// builtin scalars; wrappers of dynamic objects unwrap to the original;
// every other object is wrapped.
func (c *Converter) ToDynamic(ctx context.Context, v host.Value) (dynamic.Object, error) {
	switch x := v.(type) {
	case nil:
		return dynamic.None, nil
	case bool:
		return dynamic.NewBool(x), nil
	case int8:
		return dynamic.NewInt(int64(x)), nil
	case int16:
		return dynamic.NewInt(int64(x)), nil
	case int32:
		return dynamic.NewInt(int64(x)), nil
	case int64:
		return dynamic.NewInt(x), nil
	case uint16:
		return dynamic.StrFromRunes([]rune{rune(x)}), nil
	case float32:
		return dynamic.NewFloat(float64(x)), nil
	case float64:
		return dynamic.NewFloat(x), nil
	case *host.Object:
		if x == nil {
			return dynamic.None, nil
		}
		return c.objectToDynamic(ctx, x)
	}
	return nil, errors.New(errors.PhaseUnmarshal, errors.KindInvalidData).
		Detail("unsupported host value %T", v).
		Build()
}

func (c *Converter) objectToDynamic(ctx context.Context, o *host.Object) (dynamic.Object, error) {
	if units, ok := host.StringUnits(o); ok {
		return dynamic.StrFromRunes(UnitsToRunes(units)), nil
	}
	if pv, ok := host.Unbox(o); ok {
		return c.ToDynamic(ctx, pv)
	}
	if h, ok := host.Handler(o); ok {
		if ref, ok := h.(*handler); ok && ref.conv == c {
			return ref.target()
		}
	}
	if c.opts.Wrapper == nil {
		return nil, errors.NotInitialized(errors.PhaseUnmarshal, "host object wrapper")
	}
	return c.opts.Wrapper.Wrap(ctx, o)
}

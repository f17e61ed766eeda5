package mirror

import (
	"context"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/wippyai/embed-runtime/dynamic"
	"github.com/wippyai/embed-runtime/errors"
	"github.com/wippyai/embed-runtime/gil"
	"github.com/wippyai/embed-runtime/host"
	"github.com/wippyai/embed-runtime/marshal"
	"github.com/wippyai/embed-runtime/ownership"
)

func str(cp *host.ClassPath, s string) host.Impl {
	return func(context.Context, *host.Object, []host.Value) (host.Value, error) {
		return cp.NewString(s), nil
	}
}

func demoClasses(cp *host.ClassPath) []*host.ClassBuilder {
	return []*host.ClassBuilder{
		host.NewInterface("demo.Named").
			Method(host.MethodSpec{Name: "name", Return: host.StringClass, Abstract: true}),
		host.NewInterface("demo.Tagged"),
		host.NewClass("demo.Base").Implements("demo.Named").
			Constructor(nil).
			Method(host.MethodSpec{Name: "name", Return: host.StringClass, Impl: str(cp, "base")}),
		host.NewClass("demo.Child").Extends("demo.Base").Implements("demo.Tagged").
			Constructor(nil),
		host.NewClass("demo.Shape").Abstract().
			Constructor(nil),

		host.NewClass("demo.Calc").
			Method(host.MethodSpec{Name: "f", Return: host.StringClass, Params: []string{"int"}, Static: true, Impl: str(cp, "int")}).
			Method(host.MethodSpec{Name: "f", Return: host.StringClass, Params: []string{"long"}, Static: true, Impl: str(cp, "long")}).
			Method(host.MethodSpec{Name: "g", Return: host.StringClass, Params: []string{host.ComparableInterface}, Static: true, Impl: str(cp, "comparable")}).
			Method(host.MethodSpec{Name: "g", Return: host.StringClass, Params: []string{host.SerializableInterface}, Static: true, Impl: str(cp, "serializable")}).
			Method(host.MethodSpec{Name: "pick", Return: host.StringClass, Params: []string{host.ObjectClass}, Static: true, Impl: str(cp, "object")}).
			Method(host.MethodSpec{Name: "pick", Return: host.StringClass, Params: []string{host.CharSequenceInterface}, Static: true, Impl: str(cp, "charsequence")}).
			Method(host.MethodSpec{Name: "sum", Return: "long", Params: []string{"int[]"}, Static: true, Varargs: true,
				Impl: func(_ context.Context, _ *host.Object, args []host.Value) (host.Value, error) {
					arr := args[0].(*host.Object)
					var total int64
					for i := 0; i < host.ArrayLen(arr); i++ {
						v, err := host.ArrayGet(arr, i)
						if err != nil {
							return nil, err
						}
						total += int64(v.(int32))
					}
					return total, nil
				}}),

		host.NewClass("demo.Point").
			Field(host.FieldSpec{Name: "x", Type: "int"}).
			Field(host.FieldSpec{Name: "y", Type: "int"}).
			Field(host.FieldSpec{Name: "label", Type: host.StringClass}).
			Field(host.FieldSpec{Name: "count", Type: "int", Static: true, Value: int32(0)}).
			Field(host.FieldSpec{Name: "ORIGIN", Type: "int", Static: true, Final: true}).
			Constructor(func(_ context.Context, self *host.Object, args []host.Value) (host.Value, error) {
				t := self.Class()
				if err := host.SetField(t.FindField("x"), self, args[0]); err != nil {
					return nil, err
				}
				if err := host.SetField(t.FindField("y"), self, args[1]); err != nil {
					return nil, err
				}
				count := t.FindField("count")
				n, _ := host.GetField(count, nil)
				return nil, host.SetField(count, nil, n.(int32)+1)
			}, "int", "int").
			Method(host.MethodSpec{Name: "sum", Return: "int",
				Impl: func(_ context.Context, self *host.Object, _ []host.Value) (host.Value, error) {
					t := self.Class()
					x, _ := host.GetField(t.FindField("x"), self)
					y, _ := host.GetField(t.FindField("y"), self)
					return x.(int32) + y.(int32), nil
				}}).
			Method(host.MethodSpec{Name: "label", Return: host.StringClass, Impl: str(cp, "method")}).
			Method(host.MethodSpec{Name: "describe", Return: "int", Params: []string{host.MapInterface}, Kwargs: true,
				Impl: func(_ context.Context, _ *host.Object, args []host.Value) (host.Value, error) {
					keys, _, _ := host.MapEntries(args[0].(*host.Object))
					return int32(len(keys)), nil
				}}),

		host.NewClass("demo.Version").Implements(host.ComparableInterface).
			Constructor(func(_ context.Context, self *host.Object, args []host.Value) (host.Value, error) {
				self.SetPayload(args[0])
				return nil, nil
			}, "int").
			Method(host.MethodSpec{Name: "compareTo", Return: "int", Params: []string{host.ObjectClass},
				Impl: func(_ context.Context, self *host.Object, args []host.Value) (host.Value, error) {
					other, _ := args[0].(*host.Object)
					if other == nil || other.Class() != self.Class() {
						return nil, cp.Throw("java.lang.ClassCastException", "not a version")
					}
					a, b := self.Payload().(int32), other.Payload().(int32)
					switch {
					case a < b:
						return int32(-1), nil
					case a > b:
						return int32(1), nil
					}
					return int32(0), nil
				}}),

		host.NewClass("demo.Bag").Implements(host.CollectionInterface).
			Constructor(func(_ context.Context, self *host.Object, _ []host.Value) (host.Value, error) {
				self.SetPayload(cp.NewList(cp.NewString("a"), cp.NewString("b")))
				return nil, nil
			}).
			Method(host.MethodSpec{Name: "size", Return: "int",
				Impl: func(ctx context.Context, self *host.Object, _ []host.Value) (host.Value, error) {
					return host.InvokeByName(ctx, self.Payload().(*host.Object), "size")
				}}).
			Method(host.MethodSpec{Name: "contains", Return: "boolean", Params: []string{host.ObjectClass},
				Impl: func(ctx context.Context, self *host.Object, args []host.Value) (host.Value, error) {
					return host.InvokeByName(ctx, self.Payload().(*host.Object), "contains", args[0])
				}}).
			Method(host.MethodSpec{Name: "iterator", Return: host.IteratorInterface,
				Impl: func(ctx context.Context, self *host.Object, _ []host.Value) (host.Value, error) {
					return host.InvokeByName(ctx, self.Payload().(*host.Object), "iterator")
				}}),

		host.NewClass("demo.Countdown").Implements(host.IterableInterface).
			Constructor(nil).
			Method(host.MethodSpec{Name: "iterator", Return: host.IteratorInterface,
				Impl: func(ctx context.Context, _ *host.Object, _ []host.Value) (host.Value, error) {
					return host.InvokeByName(ctx, cp.NewList(int32(3), int32(2), int32(1)), "iterator")
				}}),

		host.NewClass("demo.Resource").Implements(host.AutoCloseableInterface).
			Constructor(func(_ context.Context, self *host.Object, _ []host.Value) (host.Value, error) {
				self.SetPayload(int32(0))
				return nil, nil
			}).
			Method(host.MethodSpec{Name: "close", Return: "void",
				Impl: func(_ context.Context, self *host.Object, _ []host.Value) (host.Value, error) {
					self.SetPayload(self.Payload().(int32) + 1)
					return nil, nil
				}}),

		host.NewClass("demo.Doubler").Implements("java.util.function.Function").
			Constructor(nil).
			Method(host.MethodSpec{Name: "apply", Return: host.ObjectClass, Params: []string{host.ObjectClass},
				Impl: func(_ context.Context, _ *host.Object, args []host.Value) (host.Value, error) {
					v, _ := host.Unbox(args[0].(*host.Object))
					return cp.Box(v.(int64) * 2)
				}}),
	}
}

func newTestMirror(t *testing.T, opts marshal.Options) (*Mirror, *host.ClassPath) {
	t.Helper()
	cp := host.Standard()
	if err := cp.Define(demoClasses(cp)...); err != nil {
		t.Fatalf("define demo classes: %v", err)
	}
	conv := marshal.New(cp, ownership.NewArena[dynamic.Object]("dynamic"), opts)
	return New(conv, ownership.NewArena[*host.Object]("host")), cp
}

func lookup(t *testing.T, m *Mirror, name string) *MirroredType {
	t.Helper()
	mt, err := m.Lookup(context.Background(), name)
	if err != nil {
		t.Fatalf("Lookup(%s): %v", name, err)
	}
	return mt
}

func construct(t *testing.T, mt *MirroredType, args ...dynamic.Object) dynamic.Object {
	t.Helper()
	obj, err := dynamic.Call(context.Background(), mt.DynamicType(), args, nil)
	if err != nil {
		t.Fatalf("construct %s: %v", mt.Name(), err)
	}
	return obj
}

func names(mts []*MirroredType) []string {
	out := make([]string, len(mts))
	for i, mt := range mts {
		out[i] = mt.Name()
	}
	return out
}

func TestGetOrBuildIsIdempotent(t *testing.T) {
	m, cp := newTestMirror(t, marshal.Options{})
	ctx := context.Background()
	child := cp.MustLookup("demo.Child")

	first, err := m.GetOrBuild(ctx, child)
	if err != nil {
		t.Fatalf("GetOrBuild: %v", err)
	}
	n := m.Len()
	for i := 0; i < 5; i++ {
		again, err := m.GetOrBuild(ctx, child)
		if err != nil {
			t.Fatalf("GetOrBuild: %v", err)
		}
		if again != first {
			t.Fatalf("GetOrBuild returned a different type on call %d", i)
		}
		if !slices.Equal(names(again.MRO()), names(first.MRO())) {
			t.Fatalf("MRO changed: %v", names(again.MRO()))
		}
	}
	if m.Len() != n {
		t.Fatalf("cache grew from %d to %d", n, m.Len())
	}
	if _, ok := m.Cached("demo.Base"); !ok {
		t.Fatalf("ancestor demo.Base not cached")
	}
}

func TestGetOrBuildConcurrent(t *testing.T) {
	m, cp := newTestMirror(t, marshal.Options{Lock: gil.New()})
	child := cp.MustLookup("demo.Child")

	var wg sync.WaitGroup
	got := make([]*MirroredType, 8)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			mt, err := m.GetOrBuild(context.Background(), child)
			if err == nil {
				got[i] = mt
			}
		}(i)
	}
	wg.Wait()
	for i, mt := range got {
		if mt == nil || mt != got[0] {
			t.Fatalf("goroutine %d got %v, want %v", i, mt, got[0])
		}
	}
}

func TestMRO(t *testing.T) {
	m, _ := newTestMirror(t, marshal.Options{})
	child := lookup(t, m, "demo.Child")

	want := []string{"demo.Child", "demo.Base", host.ObjectClass, "demo.Named", "demo.Tagged"}
	if got := names(child.MRO()); !slices.Equal(got, want) {
		t.Fatalf("MRO = %v, want %v", got, want)
	}
	if got := names(child.Bases()); !slices.Equal(got, []string{"demo.Base", "demo.Tagged"}) {
		t.Fatalf("Bases = %v", got)
	}

	dyn := child.DynamicType()
	for _, mt := range child.MRO() {
		if !dyn.IsSubtype(mt.DynamicType()) {
			t.Fatalf("%s is not a dynamic subtype of %s", dyn.Name, mt.Name())
		}
	}
	if !dyn.IsSubtype(dynamic.ObjectType) {
		t.Fatalf("mirrored type does not derive from object")
	}

	if _, ok := child.Method("name"); ok {
		t.Fatalf("inherited method installed on subclass")
	}
	member, ok := child.Resolve("name")
	if !ok {
		t.Fatalf("Resolve(name) failed")
	}
	if w := member.Overloads()[0]; w.Method().Owner.Name() != "demo.Base" {
		t.Fatalf("Resolve(name) found %s", w.Method().Owner.Name())
	}

	obj := construct(t, child)
	res, err := dynamic.CallMethod(context.Background(), obj, "name")
	if err != nil {
		t.Fatalf("name(): %v", err)
	}
	if s, _ := dynamic.ToStr(context.Background(), res); s != "base" {
		t.Fatalf("name() = %q", s)
	}
}

func TestNotMirrorable(t *testing.T) {
	m, _ := newTestMirror(t, marshal.Options{})
	ctx := context.Background()

	_, err := m.GetOrBuild(ctx, host.Primitive(host.KindInt))
	if !errors.IsKind(err, errors.KindNotMirrorable) {
		t.Fatalf("primitive: got %v, want not mirrorable", err)
	}
	if _, err := m.GetOrBuild(ctx, nil); !errors.IsKind(err, errors.KindNilPointer) {
		t.Fatalf("nil type: got %v", err)
	}
	if _, err := m.Lookup(ctx, "demo.Missing"); !errors.IsKind(err, errors.KindNotFound) {
		t.Fatalf("missing class: got %v", err)
	}
}

func TestOverloadDispatch(t *testing.T) {
	m, _ := newTestMirror(t, marshal.Options{})
	ctx := context.Background()
	calc := lookup(t, m, "demo.Calc").DynamicType()

	tests := []struct {
		name   string
		method string
		args   []dynamic.Object
		want   string
	}{
		{"small int picks int", "f", []dynamic.Object{dynamic.NewInt(5)}, "int"},
		{"large int picks long", "f", []dynamic.Object{dynamic.NewInt(1 << 40)}, "long"},
		{"str picks CharSequence over Object", "pick", []dynamic.Object{dynamic.NewStr("s")}, "charsequence"},
		{"int falls back to Object", "pick", []dynamic.Object{dynamic.NewInt(1)}, "object"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 20; i++ {
				fn, err := dynamic.GetAttr(ctx, calc, tt.method)
				if err != nil {
					t.Fatalf("GetAttr: %v", err)
				}
				res, err := dynamic.Call(ctx, fn, tt.args, nil)
				if err != nil {
					t.Fatalf("call: %v", err)
				}
				if s, _ := dynamic.ToStr(ctx, res); s != tt.want {
					t.Fatalf("%s(...) = %q, want %q", tt.method, s, tt.want)
				}
			}
		})
	}
}

func TestDispatcherSelect(t *testing.T) {
	m, _ := newTestMirror(t, marshal.Options{})
	calc := lookup(t, m, "demo.Calc")

	member, ok := calc.Method("f")
	if !ok {
		t.Fatal("f not declared")
	}
	d, ok := member.(*Dispatcher)
	if !ok {
		t.Fatalf("f is %T, want *Dispatcher", member)
	}
	w, err := d.Select([]dynamic.Object{dynamic.NewInt(1 << 40)})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got := w.Params()[0].Name(); got != "long" {
		t.Fatalf("selected f(%s), want f(long)", got)
	}

	g, _ := calc.Method("g")
	if _, err := g.(*Dispatcher).Select([]dynamic.Object{dynamic.NewStr("x")}); !errors.IsKind(err, errors.KindAmbiguous) {
		t.Fatalf("Select(g) = %v, want ambiguous", err)
	}
}

func TestAmbiguousCall(t *testing.T) {
	m, _ := newTestMirror(t, marshal.Options{})
	ctx := context.Background()
	calc := lookup(t, m, "demo.Calc").DynamicType()

	_, err := dynamic.CallMethod(ctx, calc, "g", dynamic.NewStr("x"))
	exc := dynamic.AsException(err)
	if exc == nil || !exc.Matches(dynamic.TypeError) {
		t.Fatalf("got %v, want TypeError", err)
	}
	if !errors.IsKind(err, errors.KindAmbiguous) {
		t.Fatalf("origin is not an ambiguity: %v", err)
	}

	_, err = dynamic.CallMethod(ctx, calc, "f", dynamic.NewStr("x"))
	if !errors.IsKind(err, errors.KindNoOverload) {
		t.Fatalf("got %v, want no overload", err)
	}
}

func TestVarargsMethod(t *testing.T) {
	m, _ := newTestMirror(t, marshal.Options{})
	ctx := context.Background()
	calc := lookup(t, m, "demo.Calc").DynamicType()

	tests := []struct {
		name string
		args []dynamic.Object
		want int64
	}{
		{"none", nil, 0},
		{"spread", []dynamic.Object{dynamic.NewInt(1), dynamic.NewInt(2), dynamic.NewInt(3)}, 6},
		{"list", []dynamic.Object{dynamic.NewList(dynamic.NewInt(4), dynamic.NewInt(5))}, 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := dynamic.CallMethod(ctx, calc, "sum", tt.args...)
			if err != nil {
				t.Fatalf("sum: %v", err)
			}
			if n, ok := res.(*dynamic.Int); !ok || n.V != tt.want {
				t.Fatalf("sum = %v, want %d", res, tt.want)
			}
		})
	}
}

func TestFields(t *testing.T) {
	m, _ := newTestMirror(t, marshal.Options{})
	ctx := context.Background()
	pt := lookup(t, m, "demo.Point")
	typ := pt.DynamicType()

	p := construct(t, pt, dynamic.NewInt(3), dynamic.NewInt(4))

	x, err := dynamic.GetAttr(ctx, p, "x")
	if err != nil {
		t.Fatalf("get x: %v", err)
	}
	if n, ok := x.(*dynamic.Int); !ok || n.V != 3 {
		t.Fatalf("x = %v", x)
	}
	if err := dynamic.SetAttr(ctx, p, "x", dynamic.NewInt(10)); err != nil {
		t.Fatalf("set x: %v", err)
	}
	sum, err := dynamic.CallMethod(ctx, p, "sum")
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if n, ok := sum.(*dynamic.Int); !ok || n.V != 14 {
		t.Fatalf("sum = %v, want 14", sum)
	}

	err = dynamic.SetAttr(ctx, p, "x", dynamic.NewInt(1<<40))
	if exc := dynamic.AsException(err); exc == nil || !exc.Matches(dynamic.OverflowError) {
		t.Fatalf("overflowing set: got %v", err)
	}

	count, err := dynamic.GetAttr(ctx, typ, "count")
	if err != nil {
		t.Fatalf("get count: %v", err)
	}
	if n, ok := count.(*dynamic.Int); !ok || n.V != 1 {
		t.Fatalf("count = %v, want 1", count)
	}
	if err := dynamic.SetAttr(ctx, typ, "count", dynamic.NewInt(7)); err != nil {
		t.Fatalf("set count: %v", err)
	}
	count, _ = dynamic.GetAttr(ctx, p, "count")
	if n, ok := count.(*dynamic.Int); !ok || n.V != 7 {
		t.Fatalf("count through instance = %v, want 7", count)
	}

	if err := dynamic.SetAttr(ctx, typ, "ORIGIN", dynamic.NewInt(1)); err == nil {
		t.Fatalf("final field accepted a write")
	}
	if err := dynamic.SetAttr(ctx, typ, "x", dynamic.NewInt(1)); err == nil {
		t.Fatalf("instance field set through the type")
	}
	if acc, _ := dynamic.GetAttr(ctx, typ, "x"); acc == nil {
		t.Fatalf("instance field read through the type returned nil")
	} else if _, ok := acc.(*FieldAccessor); !ok {
		t.Fatalf("instance field through the type = %T", acc)
	}
}

func TestMethodShadowsField(t *testing.T) {
	m, _ := newTestMirror(t, marshal.Options{})
	ctx := context.Background()
	p := construct(t, lookup(t, m, "demo.Point"), dynamic.NewInt(0), dynamic.NewInt(0))

	res, err := dynamic.CallMethod(ctx, p, "label")
	if err != nil {
		t.Fatalf("label(): %v", err)
	}
	if s, _ := dynamic.ToStr(ctx, res); s != "method" {
		t.Fatalf("label() = %q", s)
	}
}

func TestKeywordArguments(t *testing.T) {
	m, _ := newTestMirror(t, marshal.Options{})
	ctx := context.Background()
	p := construct(t, lookup(t, m, "demo.Point"), dynamic.NewInt(0), dynamic.NewInt(0))

	describe, err := dynamic.GetAttr(ctx, p, "describe")
	if err != nil {
		t.Fatalf("GetAttr: %v", err)
	}
	kw := dynamic.NewDict()
	kw.SetStr("a", dynamic.NewInt(1))
	kw.SetStr("b", dynamic.NewInt(2))
	res, err := dynamic.Call(ctx, describe, nil, kw)
	if err != nil {
		t.Fatalf("describe(**kw): %v", err)
	}
	if n, ok := res.(*dynamic.Int); !ok || n.V != 2 {
		t.Fatalf("describe = %v, want 2", res)
	}

	res, err = dynamic.Call(ctx, describe, nil, nil)
	if err != nil {
		t.Fatalf("describe(): %v", err)
	}
	if n, ok := res.(*dynamic.Int); !ok || n.V != 0 {
		t.Fatalf("describe() = %v, want 0", res)
	}

	sum, _ := dynamic.GetAttr(ctx, p, "sum")
	_, err = dynamic.Call(ctx, sum, nil, kw)
	if exc := dynamic.AsException(err); exc == nil || !exc.Matches(dynamic.TypeError) {
		t.Fatalf("kwargs on plain method: got %v", err)
	}
}

func TestConstructors(t *testing.T) {
	m, _ := newTestMirror(t, marshal.Options{})
	ctx := context.Background()

	pt := lookup(t, m, "demo.Point")
	if pt.Constructors() == nil {
		t.Fatalf("concrete class has no constructors")
	}
	_, err := dynamic.Call(ctx, pt.DynamicType(), []dynamic.Object{dynamic.NewInt(1)}, nil)
	if !errors.IsKind(err, errors.KindNoOverload) {
		t.Fatalf("wrong arity: got %v", err)
	}

	for _, name := range []string{"demo.Shape", "demo.Named"} {
		mt := lookup(t, m, name)
		if mt.Constructors() != nil {
			t.Fatalf("%s has constructors", name)
		}
		_, err := dynamic.Call(ctx, mt.DynamicType(), nil, nil)
		if exc := dynamic.AsException(err); exc == nil || !exc.Matches(dynamic.TypeError) {
			t.Fatalf("%s(): got %v, want TypeError", name, err)
		}
	}
}

func TestFunctionalInterfaceIsCallable(t *testing.T) {
	m, _ := newTestMirror(t, marshal.Options{Lock: gil.New()})
	ctx := context.Background()

	fn := lookup(t, m, "java.util.function.Function")
	if alias, ok := fn.Functional(); !ok || alias != "apply" {
		t.Fatalf("Functional = %q, %v", alias, ok)
	}
	if _, ok := lookup(t, m, "demo.Point").Functional(); ok {
		t.Fatalf("class reported as functional")
	}

	d := construct(t, lookup(t, m, "demo.Doubler"))
	if !dynamic.IsCallable(d) {
		t.Fatalf("functional instance is not callable")
	}
	res, err := dynamic.Call(ctx, d, []dynamic.Object{dynamic.NewInt(21)}, nil)
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if n, ok := res.(*dynamic.Int); !ok || n.V != 42 {
		t.Fatalf("call = %v, want 42", res)
	}
}

func TestInstanceEquality(t *testing.T) {
	m, cp := newTestMirror(t, marshal.Options{})
	ctx := context.Background()
	o, err := cp.New(ctx, "demo.Child")
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	a, err := m.Wrap(ctx, o)
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}
	b, err := m.Converter().ToDynamic(ctx, o)
	if err != nil {
		t.Fatalf("ToDynamic: %v", err)
	}
	if eq, err := dynamic.Equal(ctx, a, b); err != nil || !eq {
		t.Fatalf("wrappers of one object are not equal: %v %v", eq, err)
	}
	ka, _ := a.(*Instance).HashKey()
	kb, _ := b.(*Instance).HashKey()
	if ka != kb {
		t.Fatalf("hash keys differ: %q %q", ka, kb)
	}

	other, _ := cp.New(ctx, "demo.Child")
	c, _ := m.Wrap(ctx, other)
	if eq, _ := dynamic.Equal(ctx, a, c); eq {
		t.Fatalf("distinct objects compare equal")
	}
	if eq, _ := dynamic.Equal(ctx, a, dynamic.NewInt(1)); eq {
		t.Fatalf("instance equals an int")
	}
}

func TestOrdering(t *testing.T) {
	m, _ := newTestMirror(t, marshal.Options{})
	ctx := context.Background()
	version := lookup(t, m, "demo.Version")
	v1 := construct(t, version, dynamic.NewInt(1))
	v2 := construct(t, version, dynamic.NewInt(2))

	tests := []struct {
		op   dynamic.CompareOp
		a, b dynamic.Object
		want bool
	}{
		{dynamic.Lt, v1, v2, true},
		{dynamic.Le, v1, v1, true},
		{dynamic.Gt, v1, v2, false},
		{dynamic.Ge, v2, v1, true},
	}
	for _, tt := range tests {
		got, err := dynamic.Compare(ctx, tt.a, tt.b, tt.op)
		if err != nil {
			t.Fatalf("%v %s %v: %v", tt.a, tt.op, tt.b, err)
		}
		if got != tt.want {
			t.Fatalf("%v %s %v = %v, want %v", tt.a, tt.op, tt.b, got, tt.want)
		}
	}

	_, err := dynamic.Compare(ctx, v1, dynamic.NewStr("x"), dynamic.Lt)
	if !errors.IsKind(err, errors.KindUnsupportedComparison) {
		t.Fatalf("cross-type ordering: got %v", err)
	}
	if exc := dynamic.AsException(err); exc == nil || !exc.Matches(dynamic.TypeError) {
		t.Fatalf("cross-type ordering raised %v", err)
	}

	p := construct(t, lookup(t, m, "demo.Point"), dynamic.NewInt(0), dynamic.NewInt(0))
	_, err = dynamic.Compare(ctx, p, p, dynamic.Lt)
	if !errors.IsKind(err, errors.KindUnsupportedComparison) {
		t.Fatalf("ordering a non-comparable: got %v", err)
	}
}

func TestContainerProtocols(t *testing.T) {
	m, cp := newTestMirror(t, marshal.Options{})
	ctx := context.Background()
	box := func(v int64) *host.Object {
		b, err := cp.Box(v)
		if err != nil {
			t.Fatalf("box: %v", err)
		}
		return b
	}

	list, err := m.Converter().ToDynamic(ctx, cp.NewList(box(1), box(2), box(3)))
	if err != nil {
		t.Fatalf("ToDynamic(list): %v", err)
	}
	if n, err := dynamic.Len(ctx, list); err != nil || n != 3 {
		t.Fatalf("len(list) = %d, %v", n, err)
	}
	item, err := dynamic.GetItem(ctx, list, dynamic.NewInt(-1))
	if err != nil {
		t.Fatalf("list[-1]: %v", err)
	}
	if n, ok := item.(*dynamic.Int); !ok || n.V != 3 {
		t.Fatalf("list[-1] = %v", item)
	}
	if err := dynamic.SetItem(ctx, list, dynamic.NewInt(0), dynamic.NewInt(9)); err != nil {
		t.Fatalf("list[0] = 9: %v", err)
	}
	want := dynamic.NewList(dynamic.NewInt(9), dynamic.NewInt(2), dynamic.NewInt(3))
	if eq, err := dynamic.Equal(ctx, list, want); err != nil || !eq {
		t.Fatalf("list != %v: %v", want, err)
	}
	_, err = dynamic.GetItem(ctx, list, dynamic.NewInt(5))
	if exc := dynamic.AsException(err); exc == nil || !exc.Matches(dynamic.IndexError) {
		t.Fatalf("list[5]: got %v", err)
	}
	items, err := dynamic.Collect(ctx, list)
	if err != nil || len(items) != 3 {
		t.Fatalf("iterate list: %v %v", items, err)
	}

	hm := cp.NewMap(4)
	if _, err := host.InvokeByName(ctx, hm, "put", cp.NewString("a"), box(1)); err != nil {
		t.Fatalf("put: %v", err)
	}
	dict, err := m.Converter().ToDynamic(ctx, hm)
	if err != nil {
		t.Fatalf("ToDynamic(map): %v", err)
	}
	if err := dynamic.SetItem(ctx, dict, dynamic.NewStr("b"), dynamic.NewInt(2)); err != nil {
		t.Fatalf("map[b] = 2: %v", err)
	}
	if n, _ := dynamic.Len(ctx, dict); n != 2 {
		t.Fatalf("len(map) = %d", n)
	}
	v, err := dynamic.GetItem(ctx, dict, dynamic.NewStr("b"))
	if err != nil {
		t.Fatalf("map[b]: %v", err)
	}
	if n, ok := v.(*dynamic.Int); !ok || n.V != 2 {
		t.Fatalf("map[b] = %v", v)
	}
	_, err = dynamic.GetItem(ctx, dict, dynamic.NewStr("zz"))
	if exc := dynamic.AsException(err); exc == nil || !exc.Matches(dynamic.KeyError) {
		t.Fatalf("map[zz]: got %v", err)
	}
	wantDict, _ := dynamic.DictOf(dynamic.NewStr("a"), dynamic.NewInt(1), dynamic.NewStr("b"), dynamic.NewInt(2))
	if eq, err := dynamic.Equal(ctx, dict, wantDict); err != nil || !eq {
		t.Fatalf("map != dict: %v", err)
	}
	keys, err := dynamic.Collect(ctx, dict)
	if err != nil || len(keys) != 2 {
		t.Fatalf("iterate map: %v %v", keys, err)
	}
	if s, _ := dynamic.ToStr(ctx, keys[0]); s != "a" {
		t.Fatalf("first key = %q", s)
	}
}

func TestHostIterableProtocols(t *testing.T) {
	m, _ := newTestMirror(t, marshal.Options{})
	ctx := context.Background()

	bag := construct(t, lookup(t, m, "demo.Bag"))
	if n, err := dynamic.Len(ctx, bag); err != nil || n != 2 {
		t.Fatalf("len(bag) = %d, %v", n, err)
	}
	items, err := dynamic.Collect(ctx, bag)
	if err != nil || len(items) != 2 {
		t.Fatalf("iterate bag: %v, %v", items, err)
	}
	if s, _ := dynamic.ToStr(ctx, items[1]); s != "b" {
		t.Fatalf("bag[1] = %q", s)
	}
	for _, tt := range []struct {
		v    dynamic.Object
		want bool
	}{
		{dynamic.NewStr("a"), true},
		{dynamic.NewStr("z"), false},
	} {
		if got, err := dynamic.Contains(ctx, bag, tt.v); err != nil || got != tt.want {
			t.Fatalf("%v in bag = %v, %v", tt.v, got, err)
		}
	}

	cd := construct(t, lookup(t, m, "demo.Countdown"))
	var got []int64
	err = dynamic.Iterate(ctx, cd, func(o dynamic.Object) error {
		got = append(got, o.(*dynamic.Int).V)
		return nil
	})
	if err != nil || !slices.Equal(got, []int64{3, 2, 1}) {
		t.Fatalf("iterate countdown = %v, %v", got, err)
	}
	if ok, err := dynamic.Contains(ctx, cd, dynamic.NewInt(2)); err != nil || !ok {
		t.Fatalf("2 in countdown = %v, %v", ok, err)
	}
	if _, err := dynamic.Len(ctx, cd); err == nil {
		t.Fatal("len of a plain iterable accepted")
	}

	p := construct(t, lookup(t, m, "demo.Point"), dynamic.NewInt(1), dynamic.NewInt(2))
	if _, err := dynamic.Contains(ctx, p, dynamic.NewInt(1)); err == nil {
		t.Fatal("membership on a non-iterable accepted")
	}
}

func TestAutoCloseableContextManager(t *testing.T) {
	m, _ := newTestMirror(t, marshal.Options{})
	ctx := context.Background()
	res := construct(t, lookup(t, m, "demo.Resource"))
	closes := func() int32 {
		o, err := res.(*Instance).Object()
		if err != nil {
			t.Fatalf("Object: %v", err)
		}
		return o.Payload().(int32)
	}

	err := dynamic.With(ctx, res, func(v dynamic.Object) error {
		if v != res {
			t.Fatalf("bound %v, want the resource", v)
		}
		return nil
	})
	if err != nil || closes() != 1 {
		t.Fatalf("with: err=%v closes=%d", err, closes())
	}

	boom := dynamic.Raise(dynamic.ValueError, "boom")
	if err := dynamic.With(ctx, res, func(dynamic.Object) error { return boom }); err != boom || closes() != 2 {
		t.Fatalf("with raising: err=%v closes=%d", err, closes())
	}

	p := construct(t, lookup(t, m, "demo.Point"), dynamic.NewInt(1), dynamic.NewInt(2))
	err = dynamic.With(ctx, p, func(dynamic.Object) error { return nil })
	if exc := dynamic.AsException(err); exc == nil || !exc.Matches(dynamic.TypeError) {
		t.Fatalf("with on a non-closeable: %v", err)
	}
}

func TestHostSequenceHashesLikeTuple(t *testing.T) {
	m, cp := newTestMirror(t, marshal.Options{})
	ctx := context.Background()
	list, err := m.Converter().ToDynamic(ctx, cp.NewList(int32(1), cp.NewString("x")))
	if err != nil {
		t.Fatalf("ToDynamic: %v", err)
	}
	tuple := dynamic.NewTuple(dynamic.NewInt(1), dynamic.NewStr("x"))
	if eq, err := dynamic.Equal(ctx, list, tuple); err != nil || !eq {
		t.Fatalf("host list != tuple: %v", err)
	}
	lk, err := dynamic.HashKey(list)
	if err != nil {
		t.Fatalf("HashKey(list): %v", err)
	}
	tk, _ := dynamic.HashKey(tuple)
	if lk != tk {
		t.Fatalf("equal objects hash differently: %q vs %q", lk, tk)
	}

	d := dynamic.NewDict()
	if err := d.Set(tuple, dynamic.True); err != nil {
		t.Fatal(err)
	}
	if _, found, err := d.Get(list); err != nil || !found {
		t.Fatalf("dict lookup by host list: found=%v err=%v", found, err)
	}

	// other host objects keep identity hashing
	p := construct(t, lookup(t, m, "demo.Point"), dynamic.NewInt(1), dynamic.NewInt(2))
	if k, err := dynamic.HashKey(p); err != nil || !strings.HasPrefix(k, "hhost:") {
		t.Fatalf("HashKey(point) = %q, %v", k, err)
	}
}

func TestReleasedInstance(t *testing.T) {
	m, _ := newTestMirror(t, marshal.Options{})
	ctx := context.Background()
	p := construct(t, lookup(t, m, "demo.Point"), dynamic.NewInt(1), dynamic.NewInt(2))
	inst := p.(*Instance)
	before := m.KeepAlive().Len()

	if err := inst.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if !inst.Released() {
		t.Fatalf("Released = false")
	}
	if m.KeepAlive().Len() != before-1 {
		t.Fatalf("keep-alive arena has %d entries, want %d", m.KeepAlive().Len(), before-1)
	}
	if _, err := inst.Object(); !errors.IsKind(err, errors.KindReleased) {
		t.Fatalf("Object after release: got %v", err)
	}
	_, err := dynamic.CallMethod(ctx, p, "sum")
	if !errors.IsKind(err, errors.KindReleased) {
		t.Fatalf("call after release: got %v", err)
	}
	if _, err := m.Converter().ToHost(ctx, p, m.Converter().ClassPath().MustLookup(host.ObjectClass)); !errors.IsKind(err, errors.KindReleased) {
		t.Fatalf("ToHost after release: got %v", err)
	}

	// with several overloads the lifetime error must win over resolution
	v := construct(t, lookup(t, m, "demo.Version"), dynamic.NewInt(1))
	if err := v.(*Instance).Release(); err != nil {
		t.Fatalf("Release(version): %v", err)
	}
	calc := lookup(t, m, "demo.Calc")
	if _, err := dynamic.CallMethod(ctx, calc.DynamicType(), "g", v); !errors.IsKind(err, errors.KindReleased) {
		t.Fatalf("overloaded call with released argument: got %v", err)
	}
	g, _ := calc.Method("g")
	if _, err := g.(*Dispatcher).Select([]dynamic.Object{v}); !errors.IsKind(err, errors.KindReleased) {
		t.Fatalf("Select with released argument: got %v", err)
	}
}

func TestRoundTripIdentity(t *testing.T) {
	m, cp := newTestMirror(t, marshal.Options{})
	ctx := context.Background()
	o, err := cp.New(ctx, "demo.Child")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	d, err := m.Converter().ToDynamic(ctx, o)
	if err != nil {
		t.Fatalf("ToDynamic: %v", err)
	}
	if d.Type() != lookup(t, m, "demo.Child").DynamicType() {
		t.Fatalf("wrapped as %s", dynamic.TypeName(d))
	}
	for _, target := range []string{host.ObjectClass, "demo.Base", "demo.Named", "demo.Child"} {
		back, err := m.Converter().ToHost(ctx, d, cp.MustLookup(target))
		if err != nil {
			t.Fatalf("ToHost(%s): %v", target, err)
		}
		if !host.Same(back, o) {
			t.Fatalf("ToHost(%s) returned a different object", target)
		}
	}
	if _, err := m.Converter().ToHost(ctx, d, cp.MustLookup("demo.Point")); !errors.IsKind(err, errors.KindTypeMismatch) {
		t.Fatalf("ToHost to unrelated class: got %v", err)
	}

	got, ok, err := m.Unwrap(d)
	if err != nil || !ok || !host.Same(got, o) {
		t.Fatalf("Unwrap = %v, %v, %v", got, ok, err)
	}
	if _, ok, _ := m.Unwrap(dynamic.NewInt(1)); ok {
		t.Fatalf("Unwrap accepted a builtin")
	}
}

func TestHostExceptionBecomesRuntimeError(t *testing.T) {
	m, _ := newTestMirror(t, marshal.Options{})
	ctx := context.Background()
	v := construct(t, lookup(t, m, "demo.Version"), dynamic.NewInt(1))

	_, err := dynamic.CallMethod(ctx, v, "compareTo", dynamic.NewInt(3))
	exc := dynamic.AsException(err)
	if exc == nil || !exc.Matches(dynamic.RuntimeError) {
		t.Fatalf("got %v, want RuntimeError", err)
	}
	if _, ok := exc.Origin.(*host.Thrown); !ok {
		t.Fatalf("origin = %T, want *host.Thrown", exc.Origin)
	}
}

package marshal

import (
	"context"
	"encoding/binary"
	"math"
	"slices"
	"testing"

	"github.com/wippyai/embed-runtime/dynamic"
	"github.com/wippyai/embed-runtime/errors"
	"github.com/wippyai/embed-runtime/gil"
	"github.com/wippyai/embed-runtime/host"
	"github.com/wippyai/embed-runtime/ownership"
)

func newTestConverter(t *testing.T) (*Converter, *host.ClassPath) {
	t.Helper()
	cp := host.Standard()
	return New(cp, ownership.NewArena[dynamic.Object]("dynamic"), Options{}), cp
}

func TestTextRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		units []uint16
		runes []rune
	}{
		{"ascii", []uint16{'h', 'i'}, []rune{'h', 'i'}},
		{"pair", []uint16{0xD83D, 0xDE00}, []rune{0x1F600}},
		{"lone high", []uint16{'a', 0xD800, 'b'}, []rune{'a', 0xD800, 'b'}},
		{"lone low", []uint16{0xDC00}, []rune{0xDC00}},
		{"reversed pair", []uint16{0xDE00, 0xD83D}, []rune{0xDE00, 0xD83D}},
		{"trailing high", []uint16{0xD83D}, []rune{0xD83D}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := UnitsToRunes(tt.units)
			if !slices.Equal(got, tt.runes) {
				t.Fatalf("UnitsToRunes = %x, want %x", got, tt.runes)
			}
			back, err := RunesToUnits(got)
			if err != nil {
				t.Fatalf("RunesToUnits: %v", err)
			}
			if !slices.Equal(back, tt.units) {
				t.Fatalf("RunesToUnits = %x, want %x", back, tt.units)
			}
		})
	}
}

func TestRunesOutsideUnicode(t *testing.T) {
	for _, r := range []rune{-1, 0x110000} {
		if _, err := RunesToUnits([]rune{'a', r}); !errors.IsKind(err, errors.KindInvalidInput) {
			t.Fatalf("RunesToUnits(%#x) = %v, want invalid input", r, err)
		}
	}

	c, cp := newTestConverter(t)
	bad := dynamic.StrFromRunes([]rune{'x', 0x110000})
	if _, err := c.ToHost(context.Background(), bad, cp.MustLookup(host.StringClass)); !errors.IsKind(err, errors.KindInvalidInput) {
		t.Fatalf("ToHost = %v, want invalid input", err)
	}
	if s := c.Score(bad, cp.MustLookup(host.StringClass)); s != ScoreExactClass {
		t.Fatalf("Score(String) = %d", s)
	}
	if s := c.Score(bad, cp.MustLookup("char")); s != 0 {
		t.Fatalf("Score(char) = %d, want 0", s)
	}
}

func TestToHostScalars(t *testing.T) {
	c, cp := newTestConverter(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		in       dynamic.Object
		expected string
		want     host.Value
		boxed    bool
		kind     errors.Kind
	}{
		{"int to int", dynamic.NewInt(5), "int", int32(5), false, ""},
		{"int to long", dynamic.NewInt(5), "long", int64(5), false, ""},
		{"int to double", dynamic.NewInt(2), "double", float64(2), false, ""},
		{"int to Integer", dynamic.NewInt(7), host.IntegerClass, int32(7), true, ""},
		{"int to Object", dynamic.NewInt(7), host.ObjectClass, int64(7), true, ""},
		{"int to Number", dynamic.NewInt(7), host.NumberClass, int64(7), true, ""},
		{"int overflow", dynamic.NewInt(1 << 40), "int", nil, false, errors.KindOverflow},
		{"byte overflow", dynamic.NewInt(200), "byte", nil, false, errors.KindOverflow},
		{"int to boolean", dynamic.NewInt(1), "boolean", nil, false, errors.KindTypeMismatch},
		{"float to double", dynamic.NewFloat(1.5), "double", 1.5, false, ""},
		{"float to float", dynamic.NewFloat(1.5), "float", float32(1.5), false, ""},
		{"float overflow", dynamic.NewFloat(1e300), "float", nil, false, errors.KindOverflow},
		{"float to Object", dynamic.NewFloat(1.5), host.ObjectClass, 1.5, true, ""},
		{"float to int", dynamic.NewFloat(1.5), "int", nil, false, errors.KindTypeMismatch},
		{"bool", dynamic.True, "boolean", true, false, ""},
		{"bool to Object", dynamic.False, host.ObjectClass, false, true, ""},
		{"char", dynamic.NewStr("a"), "char", uint16('a'), false, ""},
		{"Character", dynamic.NewStr("a"), host.CharacterClass, uint16('a'), true, ""},
		{"long str to char", dynamic.NewStr("ab"), "char", nil, false, errors.KindTypeMismatch},
		{"none to int", dynamic.None, "int", nil, false, errors.KindTypeMismatch},
		{"none to String", dynamic.None, host.StringClass, nil, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.ToHost(ctx, tt.in, cp.MustLookup(tt.expected))
			if tt.kind != "" {
				if !errors.IsKind(err, tt.kind) {
					t.Fatalf("expected %s error, got %v (%v)", tt.kind, err, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ToHost: %v", err)
			}
			if tt.boxed {
				o, ok := got.(*host.Object)
				if !ok {
					t.Fatalf("expected box, got %T", got)
				}
				got, _ = host.Unbox(o)
			}
			if got != tt.want {
				t.Fatalf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestStringConversion(t *testing.T) {
	c, cp := newTestConverter(t)
	ctx := context.Background()

	s := dynamic.StrFromRunes([]rune{'x', 0xD800, 0x1F600})
	hv, err := c.ToHost(ctx, s, cp.MustLookup(host.CharSequenceInterface))
	if err != nil {
		t.Fatal(err)
	}
	units, ok := host.StringUnits(hv.(*host.Object))
	if !ok || !slices.Equal(units, []uint16{'x', 0xD800, 0xD83D, 0xDE00}) {
		t.Fatalf("units = %x", units)
	}

	back, err := c.ToDynamic(ctx, hv)
	if err != nil {
		t.Fatal(err)
	}
	if eq, _ := dynamic.Equal(ctx, back, s); !eq {
		t.Fatalf("round trip = %v", back)
	}
}

func TestSequenceConversion(t *testing.T) {
	c, cp := newTestConverter(t)
	ctx := context.Background()
	list := dynamic.NewList(dynamic.NewInt(1), dynamic.NewInt(2), dynamic.NewInt(3))

	arr, err := c.ToHost(ctx, list, cp.MustLookup("int[]"))
	if err != nil {
		t.Fatal(err)
	}
	data, _ := host.ArrayData(arr.(*host.Object))
	if !slices.Equal(data.([]int32), []int32{1, 2, 3}) {
		t.Fatalf("int[] = %v", data)
	}

	hl, err := c.ToHost(ctx, list, cp.MustLookup(host.ListInterface))
	if err != nil {
		t.Fatal(err)
	}
	lo := hl.(*host.Object)
	if lo.Class().Name() != host.ArrayListClass {
		t.Fatalf("list class = %s", lo.Class().Name())
	}
	if n, _ := host.InvokeByName(ctx, lo, "size"); n != int32(3) {
		t.Fatalf("size = %v", n)
	}
	items, _ := host.ListItems(lo)
	if v, _ := host.Unbox(items[0].(*host.Object)); v != int64(1) {
		t.Fatalf("items[0] = %v", v)
	}

	tuple := dynamic.NewTuple(dynamic.NewStr("a"))
	ht, err := c.ToHost(ctx, tuple, cp.MustLookup(host.ObjectClass))
	if err != nil {
		t.Fatal(err)
	}
	if name := ht.(*host.Object).Class().Name(); name != host.UnmodifiableListClass {
		t.Fatalf("tuple class = %s", name)
	}
	ht, err = c.ToHost(ctx, tuple, cp.MustLookup(host.ArrayListClass))
	if err != nil {
		t.Fatal(err)
	}
	if name := ht.(*host.Object).Class().Name(); name != host.ArrayListClass {
		t.Fatalf("tuple to ArrayList class = %s", name)
	}

	_, err = c.ToHost(ctx, dynamic.NewList(dynamic.NewInt(1), dynamic.NewStr("x")), cp.MustLookup("int[]"))
	if !errors.IsKind(err, errors.KindTypeMismatch) {
		t.Fatalf("mixed list to int[]: %v", err)
	}
	be, ok := err.(*errors.Error)
	if !ok || len(be.Path) != 1 || be.Path[0] != "[1]" {
		t.Fatalf("error path = %v", err)
	}
}

func TestDictConversion(t *testing.T) {
	c, cp := newTestConverter(t)
	ctx := context.Background()
	d, _ := dynamic.DictOf(
		dynamic.NewStr("b"), dynamic.NewInt(2),
		dynamic.NewStr("a"), dynamic.NewInt(1),
	)

	hv, err := c.ToHost(ctx, d, cp.MustLookup(host.MapInterface))
	if err != nil {
		t.Fatal(err)
	}
	m := hv.(*host.Object)
	if m.Class().Name() != host.HashMapClass {
		t.Fatalf("class = %s", m.Class().Name())
	}
	if got, want := host.MapCapacity(m), host.CapacityFor(2, host.DefaultLoadFactor); got != want {
		t.Fatalf("capacity = %d, want %d", got, want)
	}
	keys, vals, _ := host.MapEntries(m)
	if len(keys) != 2 || host.GoString(keys[0].(*host.Object)) != "b" {
		t.Fatalf("keys = %v", keys)
	}
	if v, _ := host.Unbox(vals[1].(*host.Object)); v != int64(1) {
		t.Fatalf("vals[1] = %v", v)
	}

	if _, err := c.ToHost(ctx, d, cp.MustLookup(host.StringClass)); !errors.IsKind(err, errors.KindTypeMismatch) {
		t.Fatalf("dict to String: %v", err)
	}
}

func TestBufferConversion(t *testing.T) {
	c, cp := newTestConverter(t)
	ctx := context.Background()

	data := make([]byte, 8)
	binary.LittleEndian.PutUint32(data, 1)
	binary.LittleEndian.PutUint32(data[4:], uint32(0xFFFFFFFE))
	buf, _ := dynamic.NewBuffer("i", data)

	hv, err := c.ToHost(ctx, buf, cp.MustLookup("int[]"))
	if err != nil {
		t.Fatal(err)
	}
	arr, _ := host.ArrayData(hv.(*host.Object))
	if !slices.Equal(arr.([]int32), []int32{1, -2}) {
		t.Fatalf("int[] = %v", arr)
	}

	fdata := make([]byte, 8)
	binary.LittleEndian.PutUint64(fdata, math.Float64bits(2.5))
	fbuf, _ := dynamic.NewBuffer("d", fdata)
	hv, err = c.ToHost(ctx, fbuf, cp.MustLookup("double[]"))
	if err != nil {
		t.Fatal(err)
	}
	farr, _ := host.ArrayData(hv.(*host.Object))
	if farr.([]float64)[0] != 2.5 {
		t.Fatalf("double[] = %v", farr)
	}

	if _, err := c.ToHost(ctx, fbuf, cp.MustLookup("int[]")); !errors.IsKind(err, errors.KindTypeMismatch) {
		t.Fatalf("format mismatch: %v", err)
	}
}

func TestDynamicObjectWrapperRoundTrip(t *testing.T) {
	c, cp := newTestConverter(t)
	ctx := context.Background()
	typ, _ := dynamic.NewType("Thing")
	inst := dynamic.NewInstance(typ)

	hv, err := c.ToHost(ctx, inst, cp.MustLookup(host.ObjectClass))
	if err != nil {
		t.Fatal(err)
	}
	o := hv.(*host.Object)
	if o.Class().Name() != host.DynamicObjectClass {
		t.Fatalf("wrapper class = %s", o.Class().Name())
	}
	if c.References().Len() != 1 {
		t.Fatalf("arena len = %d", c.References().Len())
	}

	back, err := c.ToDynamic(ctx, o)
	if err != nil {
		t.Fatal(err)
	}
	if back != dynamic.Object(inst) {
		t.Fatal("round trip lost identity")
	}

	if ok, err := c.ReleaseWrapper(o); !ok || err != nil {
		t.Fatalf("ReleaseWrapper = %v, %v", ok, err)
	}
	if c.References().Len() != 0 {
		t.Fatalf("arena len after release = %d", c.References().Len())
	}
	if _, err := c.ToDynamic(ctx, o); !errors.IsKind(err, errors.KindReleased) {
		t.Fatalf("use after release: %v", err)
	}
	// second release is a no-op
	if _, err := c.ReleaseWrapper(o); err != nil {
		t.Fatal(err)
	}
}

func TestFailedConversionReleasesWrappers(t *testing.T) {
	c, cp := newTestConverter(t)
	ctx := context.Background()
	fn := dynamic.NewFunction("f", func(context.Context, []dynamic.Object, *dynamic.Dict) (dynamic.Object, error) {
		return dynamic.None, nil
	})

	list := dynamic.NewList(fn, fn, dynamic.NewInt(1))
	_, err := c.ToHost(ctx, list, cp.MustLookup("java.util.function.Function[]"))
	if !errors.IsKind(err, errors.KindTypeMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	if n := c.References().Len(); n != 0 {
		t.Fatalf("%d references leaked", n)
	}
}

func TestFunctionalProxy(t *testing.T) {
	cp := host.Standard()
	lock := gil.New()
	c := New(cp, ownership.NewArena[dynamic.Object]("dynamic"), Options{Lock: lock})

	var heldInside bool
	double := dynamic.NewFunction("double", func(ctx context.Context, args []dynamic.Object, _ *dynamic.Dict) (dynamic.Object, error) {
		ts, ok := gil.ThreadFrom(ctx, lock)
		heldInside = ok && lock.Held(ts)
		return dynamic.NewInt(args[0].(*dynamic.Int).V * 2), nil
	})

	ctx := context.Background()
	hv, err := c.ToHost(ctx, double, cp.MustLookup("java.util.function.Function"))
	if err != nil {
		t.Fatal(err)
	}
	proxy := hv.(*host.Object)
	if !host.IsProxyClass(proxy.Class()) {
		t.Fatalf("class = %s", proxy.Class().Name())
	}

	arg, _ := cp.Box(int64(21))
	res, err := host.InvokeByName(ctx, proxy, "apply", arg)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := host.Unbox(res.(*host.Object)); v != int64(42) {
		t.Fatalf("apply = %v", v)
	}
	if !heldInside {
		t.Fatal("dynamic code ran without the interpreter lock")
	}

	raising := dynamic.NewFunction("bad", func(context.Context, []dynamic.Object, *dynamic.Dict) (dynamic.Object, error) {
		return nil, dynamic.Raise(dynamic.ValueError, "nope")
	})
	hv, _ = c.ToHost(ctx, raising, cp.MustLookup("java.util.function.Supplier"))
	_, err = host.InvokeByName(ctx, hv.(*host.Object), "get")
	thrown, ok := err.(*host.Thrown)
	if !ok || !thrown.Object.Class().IsSubclassOf("java.lang.RuntimeException") {
		t.Fatalf("expected host exception, got %v", err)
	}
}

func TestDynamicCallableWrapper(t *testing.T) {
	c, cp := newTestConverter(t)
	ctx := context.Background()
	sum := dynamic.NewFunction("sum", func(_ context.Context, args []dynamic.Object, _ *dynamic.Dict) (dynamic.Object, error) {
		var total int64
		for _, a := range args {
			total += a.(*dynamic.Int).V
		}
		return dynamic.NewInt(total), nil
	})

	hv, err := c.ToHost(ctx, sum, cp.MustLookup(host.ObjectClass))
	if err != nil {
		t.Fatal(err)
	}
	o := hv.(*host.Object)
	if o.Class().Name() != host.DynamicCallableClass {
		t.Fatalf("class = %s", o.Class().Name())
	}

	arr := cp.NewArray(cp.MustLookup(host.ObjectClass), 2)
	one, _ := cp.Box(int32(1))
	two, _ := cp.Box(int32(2))
	_ = host.ArraySet(arr, 0, one)
	_ = host.ArraySet(arr, 1, two)
	res, err := host.InvokeByName(ctx, o, "call", arr)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := host.Unbox(res.(*host.Object)); v != int64(3) {
		t.Fatalf("call = %v", v)
	}

	s, err := host.InvokeByName(ctx, o, "toString")
	if err != nil || host.GoString(s.(*host.Object)) != "<function sum>" {
		t.Fatalf("toString = %v, %v", s, err)
	}
}

func TestWrapperEqualsAndHash(t *testing.T) {
	c, cp := newTestConverter(t)
	ctx := context.Background()

	a, _ := c.ToHost(ctx, dynamic.NewTuple(dynamic.NewInt(1)), cp.MustLookup(host.DynamicObjectClass))
	b, _ := c.ToHost(ctx, dynamic.NewTuple(dynamic.NewInt(1)), cp.MustLookup(host.DynamicObjectClass))
	if a.(*host.Object) == b.(*host.Object) {
		t.Fatal("distinct values share a wrapper")
	}
	eq, err := host.InvokeByName(ctx, a.(*host.Object), "equals", b)
	if err != nil || eq != true {
		t.Fatalf("equals = %v, %v", eq, err)
	}
	ha, _ := host.InvokeByName(ctx, a.(*host.Object), "hashCode")
	hb, _ := host.InvokeByName(ctx, b.(*host.Object), "hashCode")
	if ha != hb {
		t.Fatalf("hash %v != %v", ha, hb)
	}

	l, _ := c.ToHost(ctx, dynamic.NewList(), cp.MustLookup(host.DynamicObjectClass))
	if _, err := host.InvokeByName(ctx, l.(*host.Object), "hashCode"); err == nil {
		t.Fatal("unhashable list produced a hash")
	}
}

func TestToDynamic(t *testing.T) {
	c, cp := newTestConverter(t)
	ctx := context.Background()
	boxed, _ := cp.Box(int32(9))

	tests := []struct {
		in   host.Value
		want string
	}{
		{nil, "None"},
		{true, "True"},
		{int8(-1), "-1"},
		{int32(7), "7"},
		{int64(1 << 40), "1099511627776"},
		{float32(0.5), "0.5"},
		{uint16('z'), "'z'"},
		{uint16(0xD800), `'\ud800'`},
		{boxed, "9"},
		{cp.NewString("hi"), "'hi'"},
	}
	for _, tt := range tests {
		got, err := c.ToDynamic(ctx, tt.in)
		if err != nil {
			t.Fatalf("ToDynamic(%v): %v", tt.in, err)
		}
		r, _ := dynamic.Repr(ctx, got)
		if r != tt.want {
			t.Fatalf("ToDynamic(%v) = %s, want %s", tt.in, r, tt.want)
		}
	}

	if _, err := c.ToDynamic(ctx, cp.NewList()); !errors.IsKind(err, errors.KindNotInitialized) {
		t.Fatalf("wrapping without a wrapper: %v", err)
	}
}

func TestScore(t *testing.T) {
	c, cp := newTestConverter(t)
	fn := dynamic.NewFunction("f", nil)
	small, big := dynamic.NewInt(1), dynamic.NewInt(1<<40)

	tests := []struct {
		name  string
		v     dynamic.Object
		param string
		want  int
	}{
		{"int exact", small, "int", ScoreExact},
		{"int widened to long", small, "long", ScoreWidened},
		{"big long exact", big, "long", ScoreExact},
		{"big int incompatible", big, "int", 0},
		{"short", small, "short", ScoreNarrow},
		{"to double", small, "double", ScoreIntToFloat},
		{"Integer box", small, host.IntegerClass, ScoreExactClass},
		{"Long box", small, host.LongClass, ScoreOtherBox},
		{"Short box", small, host.ShortClass, ScoreNarrowBox},
		{"int to Number", small, host.NumberClass, 29},
		{"int to Object", small, host.ObjectClass, minWidenScore},
		{"int to String", small, host.StringClass, 0},
		{"int to boolean", small, "boolean", 0},
		{"float double", dynamic.NewFloat(1), "double", ScoreExact},
		{"float float", dynamic.NewFloat(1), "float", ScoreWidened},
		{"float Double", dynamic.NewFloat(1), host.DoubleClass, ScoreExactClass},
		{"float int", dynamic.NewFloat(1), "int", 0},
		{"str String", dynamic.NewStr("x"), host.StringClass, ScoreExactClass},
		{"str char", dynamic.NewStr("x"), "char", ScoreNarrow},
		{"str Character", dynamic.NewStr("x"), host.CharacterClass, ScoreNarrowBox},
		{"long str char", dynamic.NewStr("xy"), "char", 0},
		{"str CharSequence", dynamic.NewStr("x"), host.CharSequenceInterface, 29},
		{"str Object below interfaces", dynamic.NewStr("x"), host.ObjectClass, minWidenScore},
		{"none ref", dynamic.None, host.StringClass, ScoreNull},
		{"none prim", dynamic.None, "int", 0},
		{"list int[]", dynamic.NewList(small, small), "int[]", ScoreArray},
		{"list String[]", dynamic.NewList(small), "java.lang.String[]", 0},
		{"list ArrayList", dynamic.NewList(), host.ArrayListClass, ScoreContainer},
		{"list List", dynamic.NewList(), host.ListInterface, ScoreContainer - 1},
		{"dict Map", dynamic.NewDict(), host.MapInterface, ScoreContainer - 1},
		{"callable functional", fn, "java.util.function.Function", ScoreFunctional},
		{"callable DynamicCallable", fn, host.DynamicCallableClass, ScoreCallable},
		{"dict DynamicObject", dynamic.NewDict(), host.DynamicObjectClass, ScoreDynamicWrap},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Score(tt.v, cp.MustLookup(tt.param)); got != tt.want {
				t.Fatalf("Score = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRefListReleaseAll(t *testing.T) {
	arena := ownership.NewArena[dynamic.Object]("dynamic")
	l := NewRefList()
	defer l.Release()

	owners := make([]*struct{ n int }, 3)
	for i := range owners {
		owners[i] = &struct{ n int }{i}
		h, err := arena.Retain(dynamic.NewInt(int64(i)))
		if err != nil {
			t.Fatal(err)
		}
		l.Add(ownership.Bind(owners[i], arena, h))
	}
	if l.Count() != 3 || arena.Len() != 3 {
		t.Fatalf("count = %d, arena = %d", l.Count(), arena.Len())
	}
	if err := l.ReleaseAll(); err != nil {
		t.Fatal(err)
	}
	if l.Count() != 0 || arena.Len() != 0 {
		t.Fatalf("after ReleaseAll: count = %d, arena = %d", l.Count(), arena.Len())
	}
}

func TestToHostAllReleasesEveryArgument(t *testing.T) {
	c, cp := newTestConverter(t)
	ctx := context.Background()
	typ, _ := dynamic.NewType("Thing")

	args := []dynamic.Object{dynamic.NewInstance(typ), dynamic.NewStr("x")}
	types := []*host.Type{cp.MustLookup(host.ObjectClass), cp.MustLookup("int")}
	_, err := c.ToHostAll(ctx, args, types)
	if !errors.IsKind(err, errors.KindTypeMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	if n := c.References().Len(); n != 0 {
		t.Fatalf("%d references leaked", n)
	}

	out, err := c.ToHostAll(ctx, []dynamic.Object{dynamic.NewInt(1), dynamic.NewStr("y")},
		[]*host.Type{cp.MustLookup("int"), cp.MustLookup(host.StringClass)})
	if err != nil {
		t.Fatal(err)
	}
	if out[0] != int32(1) || host.GoString(out[1].(*host.Object)) != "y" {
		t.Fatalf("out = %v", out)
	}

	if _, err := c.ToHostAll(ctx, args, types[:1]); !errors.IsKind(err, errors.KindInvalidInput) {
		t.Fatalf("length mismatch: %v", err)
	}
}

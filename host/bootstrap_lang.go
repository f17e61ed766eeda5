package host

import (
	"context"
	"math"
	"strconv"
	"unicode/utf16"
)

func argString(v Value) ([]uint16, bool) {
	o, _ := v.(*Object)
	return StringUnits(o)
}

func stringClass(cp *ClassPath) *ClassBuilder {
	valueOf := func(param string) MethodSpec {
		return static("valueOf", StringClass, func(_ context.Context, _ *Object, args []Value) (Value, error) {
			return cp.NewString(Describe(args[0])), nil
		}, param)
	}

	return NewClass(StringClass).Final().Implements(CharSequenceInterface, ComparableInterface, SerializableInterface).
		Constructor(func(_ context.Context, self *Object, _ []Value) (Value, error) {
			self.SetPayload([]uint16{})
			return nil, nil
		}).
		Constructor(func(_ context.Context, self *Object, args []Value) (Value, error) {
			u, ok := argString(args[0])
			if !ok {
				return nil, cp.Throw("java.lang.NullPointerException", "original is null")
			}
			self.SetPayload(append([]uint16(nil), u...))
			return nil, nil
		}, StringClass).
		Method(method("length", "int", func(_ context.Context, self *Object, _ []Value) (Value, error) {
			u, _ := StringUnits(self)
			return int32(len(u)), nil
		})).
		Method(method("isEmpty", "boolean", func(_ context.Context, self *Object, _ []Value) (Value, error) {
			u, _ := StringUnits(self)
			return len(u) == 0, nil
		})).
		Method(method("charAt", "char", func(_ context.Context, self *Object, args []Value) (Value, error) {
			u, _ := StringUnits(self)
			i := int(args[0].(int32))
			if i < 0 || i >= len(u) {
				return nil, cp.Throw("java.lang.StringIndexOutOfBoundsException", "index %d, length %d", i, len(u))
			}
			return u[i], nil
		}, "int")).
		Method(method("substring", StringClass, func(_ context.Context, self *Object, args []Value) (Value, error) {
			u, _ := StringUnits(self)
			return substring(cp, u, int(args[0].(int32)), len(u))
		}, "int")).
		Method(method("substring", StringClass, func(_ context.Context, self *Object, args []Value) (Value, error) {
			u, _ := StringUnits(self)
			return substring(cp, u, int(args[0].(int32)), int(args[1].(int32)))
		}, "int", "int")).
		Method(method("concat", StringClass, func(_ context.Context, self *Object, args []Value) (Value, error) {
			u, _ := StringUnits(self)
			v, ok := argString(args[0])
			if !ok {
				return nil, cp.Throw("java.lang.NullPointerException", "str is null")
			}
			out := make([]uint16, 0, len(u)+len(v))
			return cp.NewStringUnits(append(append(out, u...), v...)), nil
		}, StringClass)).
		Method(method("indexOf", "int", func(_ context.Context, self *Object, args []Value) (Value, error) {
			u, _ := StringUnits(self)
			v, ok := argString(args[0])
			if !ok {
				return nil, cp.Throw("java.lang.NullPointerException", "str is null")
			}
			return int32(indexUnits(u, v)), nil
		}, StringClass)).
		Method(method("indexOf", "int", func(_ context.Context, self *Object, args []Value) (Value, error) {
			u, _ := StringUnits(self)
			return int32(indexUnits(u, []uint16{args[0].(uint16)})), nil
		}, "char")).
		Method(method("compareTo", "int", func(_ context.Context, self *Object, args []Value) (Value, error) {
			u, _ := StringUnits(self)
			o, _ := args[0].(*Object)
			if o == nil {
				return nil, cp.Throw("java.lang.NullPointerException", "compareTo null")
			}
			v, ok := StringUnits(o)
			if !ok {
				return nil, cp.Throw("java.lang.ClassCastException",
					"class %s cannot be cast to class %s", o.class.name, StringClass)
			}
			return int32(compareUnits(u, v)), nil
		}, ObjectClass)).
		Method(method("equals", "boolean", func(_ context.Context, self *Object, args []Value) (Value, error) {
			u, _ := StringUnits(self)
			v, ok := argString(args[0])
			return ok && compareUnits(u, v) == 0, nil
		}, ObjectClass)).
		Method(method("hashCode", "int", func(_ context.Context, self *Object, _ []Value) (Value, error) {
			u, _ := StringUnits(self)
			var h int32
			for _, c := range u {
				h = 31*h + int32(c)
			}
			return h, nil
		})).
		Method(method("toString", StringClass, func(_ context.Context, self *Object, _ []Value) (Value, error) {
			return self, nil
		})).
		Method(valueOf("boolean")).
		Method(valueOf("char")).
		Method(valueOf("int")).
		Method(valueOf("long")).
		Method(valueOf("double")).
		Method(static("valueOf", StringClass, func(ctx context.Context, _ *Object, args []Value) (Value, error) {
			o, _ := args[0].(*Object)
			if o == nil {
				return cp.NewString("null"), nil
			}
			return InvokeByName(ctx, o, "toString")
		}, ObjectClass))
}

func substring(cp *ClassPath, u []uint16, begin, end int) (Value, error) {
	if begin < 0 || end > len(u) || begin > end {
		return nil, cp.Throw("java.lang.StringIndexOutOfBoundsException",
			"begin %d, end %d, length %d", begin, end, len(u))
	}
	return cp.NewStringUnits(u[begin:end]), nil
}

func indexUnits(s, sub []uint16) int {
	if len(sub) == 0 {
		return 0
	}
outer:
	for i := 0; i+len(sub) <= len(s); i++ {
		for j := range sub {
			if s[i+j] != sub[j] {
				continue outer
			}
		}
		return i
	}
	return -1
}

func compareUnits(a, b []uint16) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return int(a[i]) - int(b[i])
		}
	}
	return len(a) - len(b)
}

type stringBuilder struct {
	units []uint16
}

func stringBuilderClass() *ClassBuilder {
	const name = "java.lang.StringBuilder"
	appendText := func(param string) MethodSpec {
		return method("append", name, func(_ context.Context, self *Object, args []Value) (Value, error) {
			sb := self.Payload().(*stringBuilder)
			var text []uint16
			if u, ok := argString(args[0]); ok {
				text = u
			} else {
				text = utf16.Encode([]rune(Describe(args[0])))
			}
			self.mu.Lock()
			sb.units = append(sb.units, text...)
			self.mu.Unlock()
			return self, nil
		}, param)
	}

	return NewClass(name).Final().Implements(CharSequenceInterface, SerializableInterface).
		Constructor(func(_ context.Context, self *Object, _ []Value) (Value, error) {
			self.SetPayload(&stringBuilder{})
			return nil, nil
		}).
		Method(appendText(StringClass)).
		Method(appendText(ObjectClass)).
		Method(appendText("boolean")).
		Method(appendText("char")).
		Method(appendText("int")).
		Method(appendText("long")).
		Method(appendText("double")).
		Method(method("length", "int", func(_ context.Context, self *Object, _ []Value) (Value, error) {
			self.mu.Lock()
			defer self.mu.Unlock()
			return int32(len(self.payload.(*stringBuilder).units)), nil
		})).
		Method(method("charAt", "char", func(_ context.Context, self *Object, args []Value) (Value, error) {
			self.mu.Lock()
			defer self.mu.Unlock()
			u := self.payload.(*stringBuilder).units
			i := int(args[0].(int32))
			if i < 0 || i >= len(u) {
				return nil, self.class.cp.Throw("java.lang.StringIndexOutOfBoundsException", "index %d, length %d", i, len(u))
			}
			return u[i], nil
		}, "int")).
		Method(method("toString", StringClass, func(_ context.Context, self *Object, _ []Value) (Value, error) {
			self.mu.Lock()
			u := self.payload.(*stringBuilder).units
			self.mu.Unlock()
			return self.class.cp.NewStringUnits(u), nil
		}))
}

func mathClass(cp *ClassPath) *ClassBuilder {
	return NewClass("java.lang.Math").Final().
		Field(FieldSpec{Name: "PI", Type: "double", Static: true, Final: true, Value: math.Pi}).
		Field(FieldSpec{Name: "E", Type: "double", Static: true, Final: true, Value: math.E}).
		Method(static("max", "int", func(_ context.Context, _ *Object, a []Value) (Value, error) {
			return max(a[0].(int32), a[1].(int32)), nil
		}, "int", "int")).
		Method(static("max", "long", func(_ context.Context, _ *Object, a []Value) (Value, error) {
			return max(a[0].(int64), a[1].(int64)), nil
		}, "long", "long")).
		Method(static("max", "double", func(_ context.Context, _ *Object, a []Value) (Value, error) {
			return math.Max(a[0].(float64), a[1].(float64)), nil
		}, "double", "double")).
		Method(static("abs", "int", func(_ context.Context, _ *Object, a []Value) (Value, error) {
			if n := a[0].(int32); n < 0 {
				return -n, nil
			}
			return a[0], nil
		}, "int")).
		Method(static("abs", "long", func(_ context.Context, _ *Object, a []Value) (Value, error) {
			if n := a[0].(int64); n < 0 {
				return -n, nil
			}
			return a[0], nil
		}, "long")).
		Method(static("abs", "double", func(_ context.Context, _ *Object, a []Value) (Value, error) {
			return math.Abs(a[0].(float64)), nil
		}, "double")).
		Method(static("floorDiv", "int", func(_ context.Context, _ *Object, a []Value) (Value, error) {
			x, y := a[0].(int32), a[1].(int32)
			if y == 0 {
				return nil, cp.Throw("java.lang.ArithmeticException", "/ by zero")
			}
			q := x / y
			if (x%y != 0) && ((x < 0) != (y < 0)) {
				q--
			}
			return q, nil
		}, "int", "int"))
}

func dynamicObjectClass() *ClassBuilder {
	return NewClass(DynamicObjectClass).
		Method(method("toString", StringClass, delegateTo(DynamicObjectClass, "toString"))).
		Method(method("equals", "boolean", delegateTo(DynamicObjectClass, "equals", ObjectClass), ObjectClass)).
		Method(method("hashCode", "int", delegateTo(DynamicObjectClass, "hashCode")))
}

// delegateTo forwards a call to the receiver's InvocationHandler, passing
// the declared method of owner.
func delegateTo(owner, name string, params ...string) Impl {
	return func(ctx context.Context, self *Object, args []Value) (Value, error) {
		cp := self.class.cp
		o := cp.MustLookup(owner)
		ptypes := make([]*Type, len(params))
		for i, p := range params {
			ptypes[i] = cp.MustLookup(p)
		}
		m := o.FindMethod(name, ptypes...)
		h, ok := Handler(self)
		if !ok {
			switch name {
			case "toString":
				return cp.NewString(self.class.name + "@" + strconv.FormatUint(self.id, 16)), nil
			case "equals":
				return Same(self, args[0]), nil
			case "hashCode":
				return int32(self.id), nil
			}
			return nil, cp.Throw("java.lang.IllegalStateException", "%s has no invocation handler", self.class.name)
		}
		return h.Invoke(ctx, self, m, args)
	}
}

func throwableClasses() []*ClassBuilder {
	ctors := func(b *ClassBuilder) *ClassBuilder {
		init := func(msg *Object, cause *Object, hasMsg bool) *throwable {
			t := &throwable{cause: cause, stack: CaptureStack(3)}
			if msg != nil {
				t.message, t.hasMsg = GoString(msg), true
			} else if hasMsg && cause != nil {
				t.message, t.hasMsg = Describe(cause), true
			}
			return t
		}
		return b.
			Constructor(func(_ context.Context, self *Object, _ []Value) (Value, error) {
				self.SetPayload(init(nil, nil, false))
				return nil, nil
			}).
			Constructor(func(_ context.Context, self *Object, args []Value) (Value, error) {
				msg, _ := args[0].(*Object)
				self.SetPayload(init(msg, nil, false))
				return nil, nil
			}, StringClass).
			Constructor(func(_ context.Context, self *Object, args []Value) (Value, error) {
				msg, _ := args[0].(*Object)
				cause, _ := args[1].(*Object)
				self.SetPayload(init(msg, cause, false))
				return nil, nil
			}, StringClass, ThrowableClass).
			Constructor(func(_ context.Context, self *Object, args []Value) (Value, error) {
				cause, _ := args[0].(*Object)
				self.SetPayload(init(nil, cause, true))
				return nil, nil
			}, ThrowableClass)
	}

	root := ctors(NewClass(ThrowableClass).Implements(SerializableInterface)).
		Method(method("getMessage", StringClass, func(_ context.Context, self *Object, _ []Value) (Value, error) {
			msg, ok := ThrowableMessage(self)
			if !ok {
				return nil, nil
			}
			return self.class.cp.NewString(msg), nil
		})).
		Method(method("getCause", ThrowableClass, func(_ context.Context, self *Object, _ []Value) (Value, error) {
			if c := ThrowableCause(self); c != nil {
				return c, nil
			}
			return nil, nil
		})).
		Method(method("initCause", ThrowableClass, func(_ context.Context, self *Object, args []Value) (Value, error) {
			cause, _ := args[0].(*Object)
			if cause == self {
				return nil, self.class.cp.Throw("java.lang.IllegalArgumentException", "Self-causation not permitted")
			}
			InitCause(self, cause)
			return self, nil
		}, ThrowableClass)).
		Method(method("toString", StringClass, func(_ context.Context, self *Object, _ []Value) (Value, error) {
			return self.class.cp.NewString(Describe(self)), nil
		}))

	hierarchy := []struct{ name, super string }{
		{"java.lang.Exception", ThrowableClass},
		{"java.lang.RuntimeException", "java.lang.Exception"},
		{ErrorClass, ThrowableClass},
		{"java.lang.IllegalArgumentException", "java.lang.RuntimeException"},
		{"java.lang.NumberFormatException", "java.lang.IllegalArgumentException"},
		{"java.lang.IllegalStateException", "java.lang.RuntimeException"},
		{"java.lang.IndexOutOfBoundsException", "java.lang.RuntimeException"},
		{"java.lang.ArrayIndexOutOfBoundsException", "java.lang.IndexOutOfBoundsException"},
		{"java.lang.StringIndexOutOfBoundsException", "java.lang.IndexOutOfBoundsException"},
		{"java.lang.ClassCastException", "java.lang.RuntimeException"},
		{"java.lang.ArithmeticException", "java.lang.RuntimeException"},
		{"java.lang.NullPointerException", "java.lang.RuntimeException"},
		{"java.lang.UnsupportedOperationException", "java.lang.RuntimeException"},
		{"java.lang.ArrayStoreException", "java.lang.RuntimeException"},
		{"java.util.NoSuchElementException", "java.lang.RuntimeException"},
		{"java.io.IOException", "java.lang.Exception"},
		{"java.io.FileNotFoundException", "java.io.IOException"},
		{"java.io.UncheckedIOException", "java.lang.RuntimeException"},
		{"java.lang.ReflectiveOperationException", "java.lang.Exception"},
		{"java.lang.ClassNotFoundException", "java.lang.ReflectiveOperationException"},
		{"java.lang.NoSuchFieldException", "java.lang.ReflectiveOperationException"},
		{"java.lang.NoSuchMethodException", "java.lang.ReflectiveOperationException"},
		{"java.lang.IllegalAccessException", "java.lang.ReflectiveOperationException"},
		{"java.lang.InstantiationException", "java.lang.ReflectiveOperationException"},
		{"java.lang.VirtualMachineError", ErrorClass},
		{"java.lang.OutOfMemoryError", "java.lang.VirtualMachineError"},
		{"java.lang.StackOverflowError", "java.lang.VirtualMachineError"},
		{"java.lang.AssertionError", ErrorClass},
		{"java.lang.LinkageError", ErrorClass},
		{"java.lang.IncompatibleClassChangeError", "java.lang.LinkageError"},
		{"java.lang.AbstractMethodError", "java.lang.IncompatibleClassChangeError"},
		{DynamicExceptionClass, "java.lang.RuntimeException"},
	}

	out := []*ClassBuilder{root}
	for _, h := range hierarchy {
		out = append(out, ctors(NewClass(h.name).Extends(h.super)))
	}
	return out
}

package host

import (
	"cmp"
	"context"
	"math"
	"strconv"
)

func method(name, ret string, impl Impl, params ...string) MethodSpec {
	return MethodSpec{Name: name, Return: ret, Impl: impl, Params: params}
}

func static(name, ret string, impl Impl, params ...string) MethodSpec {
	return MethodSpec{Name: name, Return: ret, Impl: impl, Params: params, Static: true}
}

func abstract(name, ret string, params ...string) MethodSpec {
	return MethodSpec{Name: name, Return: ret, Params: params, Abstract: true}
}

// bootstrap declares the classes every class path starts with. Static
// method implementations close over cp.
func bootstrap(cp *ClassPath) []*ClassBuilder {
	bs := []*ClassBuilder{
		objectClass(),
		NewInterface(SerializableInterface),
		NewInterface(CloneableInterface),
		NewInterface(ComparableInterface).
			Method(abstract("compareTo", "int", ObjectClass)),
		NewInterface(CharSequenceInterface).
			Method(abstract("length", "int")).
			Method(abstract("charAt", "char", "int")),
		NewInterface("java.lang.Runnable").
			Method(abstract("run", "void")),
		NewInterface("java.util.function.Function").
			Method(abstract("apply", ObjectClass, ObjectClass)),
		NewInterface("java.util.function.BiFunction").
			Method(abstract("apply", ObjectClass, ObjectClass, ObjectClass)),
		NewInterface("java.util.function.Supplier").
			Method(abstract("get", ObjectClass)),
		NewInterface("java.util.function.Consumer").
			Method(abstract("accept", "void", ObjectClass)),
		NewInterface("java.util.function.Predicate").
			Method(abstract("test", "boolean", ObjectClass)),
		NewInterface("java.util.Comparator").
			Method(abstract("compare", "int", ObjectClass, ObjectClass)).
			Method(abstract("equals", "boolean", ObjectClass)),
		NewInterface("java.util.RandomAccess"),
		NewInterface(IteratorInterface).
			Method(abstract("hasNext", "boolean")).
			Method(abstract("next", ObjectClass)),
		snapshotIteratorClass(),
		NewInterface(AutoCloseableInterface).
			Method(method("close", "void", unimplemented)),
		iterableInterface(),
		NewInterface(CollectionInterface).Extends(IterableInterface).
			Method(abstract("size", "int")).
			Method(abstract("isEmpty", "boolean")).
			Method(abstract("contains", "boolean", ObjectClass)).
			Method(abstract("add", "boolean", ObjectClass)).
			Method(abstract("toArray", ObjectClass+"[]")).
			Method(abstract("clear", "void")),
		NewInterface(ListInterface).Extends(CollectionInterface).
			Method(abstract("get", ObjectClass, "int")).
			Method(abstract("set", ObjectClass, "int", ObjectClass)).
			Method(abstract("add", "void", "int", ObjectClass)).
			Method(abstract("remove", ObjectClass, "int")).
			Method(abstract("indexOf", "int", ObjectClass)),
		listClass(ArrayListClass).Implements(ListInterface, "java.util.RandomAccess", CloneableInterface, SerializableInterface),
		listClass(UnmodifiableListClass).Final().Implements(ListInterface, "java.util.RandomAccess"),
		NewInterface(MapInterface).
			Method(abstract("size", "int")).
			Method(abstract("isEmpty", "boolean")).
			Method(abstract("get", ObjectClass, ObjectClass)).
			Method(abstract("put", ObjectClass, ObjectClass, ObjectClass)).
			Method(abstract("containsKey", "boolean", ObjectClass)).
			Method(abstract("remove", ObjectClass, ObjectClass)).
			Method(abstract("clear", "void")),
		hashMapClass(),
		numberClass(),
		stringClass(cp),
		stringBuilderClass(),
		mathClass(cp),
		dynamicObjectClass(),
		NewClass(DynamicCallableClass).Extends(DynamicObjectClass).
			Method(MethodSpec{Name: "call", Return: ObjectClass, Params: []string{ObjectClass + "[]"}, Varargs: true,
				Impl: delegateTo(DynamicCallableClass, "call", ObjectClass+"[]")}),
	}

	bs = append(bs, boxClasses(cp)...)
	bs = append(bs, throwableClasses()...)
	return bs
}

func objectClass() *ClassBuilder {
	return NewClass(ObjectClass).
		Constructor(nil).
		Method(method("equals", "boolean", func(_ context.Context, self *Object, args []Value) (Value, error) {
			return Same(self, args[0]), nil
		}, ObjectClass)).
		Method(method("hashCode", "int", func(_ context.Context, self *Object, _ []Value) (Value, error) {
			return int32(self.id), nil
		})).
		Method(method("toString", StringClass, func(_ context.Context, self *Object, _ []Value) (Value, error) {
			return self.class.cp.NewString(Describe(self)), nil
		}))
}

// unimplemented backs the one required method of Iterable and
// AutoCloseable. Giving them a body keeps both interfaces from being
// treated as functional, which would make every collection callable.
func unimplemented(_ context.Context, self *Object, _ []Value) (Value, error) {
	return nil, self.class.cp.Throw("java.lang.AbstractMethodError", "%s does not implement its interface", self.class.name)
}

func iterableInterface() *ClassBuilder {
	return NewInterface(IterableInterface).
		Method(method("iterator", IteratorInterface, unimplemented)).
		Method(method("forEach", "void", func(ctx context.Context, self *Object, args []Value) (Value, error) {
			cp := self.class.cp
			consumer, _ := args[0].(*Object)
			if consumer == nil {
				return nil, cp.Throw("java.lang.NullPointerException", "action is null")
			}
			accept := cp.MustLookup("java.util.function.Consumer").FindMethod("accept", cp.MustLookup(ObjectClass))
			return nil, Each(ctx, self, func(it Value) error {
				_, err := Invoke(ctx, accept, consumer, []Value{it})
				return err
			})
		}, "java.util.function.Consumer"))
}

// snapshotIteratorClass iterates a copy of a built-in list taken when
// the iterator was created.
func snapshotIteratorClass() *ClassBuilder {
	return NewClass(SnapshotIteratorClass).Final().Implements(IteratorInterface).
		Method(method("hasNext", "boolean", func(_ context.Context, self *Object, _ []Value) (Value, error) {
			return iterOf(self).hasNext(), nil
		})).
		Method(method("next", ObjectClass, func(_ context.Context, self *Object, _ []Value) (Value, error) {
			v, ok := iterOf(self).next()
			if !ok {
				return nil, self.class.cp.Throw("java.util.NoSuchElementException", "iterator exhausted")
			}
			return v, nil
		}))
}

func listClass(name string) *ClassBuilder {
	return NewClass(name).
		Constructor(func(_ context.Context, self *Object, _ []Value) (Value, error) {
			self.SetPayload(&listStore{readOnly: name == UnmodifiableListClass})
			return nil, nil
		}).
		Constructor(func(_ context.Context, self *Object, args []Value) (Value, error) {
			n := args[0].(int32)
			if n < 0 {
				return nil, self.class.cp.Throw("java.lang.IllegalArgumentException", "Illegal Capacity: %d", n)
			}
			self.SetPayload(&listStore{items: make([]Value, 0, n), readOnly: name == UnmodifiableListClass})
			return nil, nil
		}, "int").
		Method(method("size", "int", func(_ context.Context, self *Object, _ []Value) (Value, error) {
			return int32(listOf(self).size()), nil
		})).
		Method(method("isEmpty", "boolean", func(_ context.Context, self *Object, _ []Value) (Value, error) {
			return listOf(self).size() == 0, nil
		})).
		Method(method("get", ObjectClass, func(_ context.Context, self *Object, args []Value) (Value, error) {
			return listOf(self).get(self.class.cp, int(args[0].(int32)))
		}, "int")).
		Method(method("set", ObjectClass, func(_ context.Context, self *Object, args []Value) (Value, error) {
			return listOf(self).set(self.class.cp, int(args[0].(int32)), args[1])
		}, "int", ObjectClass)).
		Method(method("add", "boolean", func(_ context.Context, self *Object, args []Value) (Value, error) {
			s := listOf(self)
			if err := s.insert(self.class.cp, s.size(), args[0]); err != nil {
				return nil, err
			}
			return true, nil
		}, ObjectClass)).
		Method(method("add", "void", func(_ context.Context, self *Object, args []Value) (Value, error) {
			return nil, listOf(self).insert(self.class.cp, int(args[0].(int32)), args[1])
		}, "int", ObjectClass)).
		Method(method("remove", ObjectClass, func(_ context.Context, self *Object, args []Value) (Value, error) {
			return listOf(self).removeAt(self.class.cp, int(args[0].(int32)))
		}, "int")).
		Method(method("indexOf", "int", func(_ context.Context, self *Object, args []Value) (Value, error) {
			return int32(listOf(self).indexOf(args[0])), nil
		}, ObjectClass)).
		Method(method("contains", "boolean", func(_ context.Context, self *Object, args []Value) (Value, error) {
			return listOf(self).indexOf(args[0]) >= 0, nil
		}, ObjectClass)).
		Method(method("clear", "void", func(_ context.Context, self *Object, _ []Value) (Value, error) {
			return nil, listOf(self).clear(self.class.cp)
		})).
		Method(method("iterator", IteratorInterface, func(_ context.Context, self *Object, _ []Value) (Value, error) {
			items, _ := ListItems(self)
			return newObject(self.class.cp.MustLookup(SnapshotIteratorClass), &snapshot{items: items}), nil
		})).
		Method(method("toArray", ObjectClass+"[]", func(_ context.Context, self *Object, _ []Value) (Value, error) {
			cp := self.class.cp
			items, _ := ListItems(self)
			arr := cp.NewArray(cp.MustLookup(ObjectClass), len(items))
			copy(arr.payload.([]Value), items)
			return arr, nil
		})).
		Method(method("toString", StringClass, func(_ context.Context, self *Object, _ []Value) (Value, error) {
			items, _ := ListItems(self)
			b := []byte{'['}
			for i, it := range items {
				if i > 0 {
					b = append(b, ", "...)
				}
				b = append(b, Describe(it)...)
			}
			b = append(b, ']')
			return self.class.cp.NewString(string(b)), nil
		}))
}

func hashMapClass() *ClassBuilder {
	return NewClass(HashMapClass).Implements(MapInterface, CloneableInterface, SerializableInterface).
		Constructor(func(_ context.Context, self *Object, _ []Value) (Value, error) {
			self.SetPayload(newMapStore(16))
			return nil, nil
		}).
		Constructor(func(_ context.Context, self *Object, args []Value) (Value, error) {
			n := args[0].(int32)
			if n < 0 {
				return nil, self.class.cp.Throw("java.lang.IllegalArgumentException", "Illegal initial capacity: %d", n)
			}
			self.SetPayload(newMapStore(int(n)))
			return nil, nil
		}, "int").
		Method(method("size", "int", func(_ context.Context, self *Object, _ []Value) (Value, error) {
			return int32(mapOf(self).size()), nil
		})).
		Method(method("isEmpty", "boolean", func(_ context.Context, self *Object, _ []Value) (Value, error) {
			return mapOf(self).size() == 0, nil
		})).
		Method(method("get", ObjectClass, func(_ context.Context, self *Object, args []Value) (Value, error) {
			v, _ := mapOf(self).get(args[0])
			return v, nil
		}, ObjectClass)).
		Method(method("put", ObjectClass, func(_ context.Context, self *Object, args []Value) (Value, error) {
			return mapOf(self).put(args[0], args[1]), nil
		}, ObjectClass, ObjectClass)).
		Method(method("containsKey", "boolean", func(_ context.Context, self *Object, args []Value) (Value, error) {
			_, ok := mapOf(self).get(args[0])
			return ok, nil
		}, ObjectClass)).
		Method(method("remove", ObjectClass, func(_ context.Context, self *Object, args []Value) (Value, error) {
			return mapOf(self).remove(args[0]), nil
		}, ObjectClass)).
		Method(method("clear", "void", func(_ context.Context, self *Object, _ []Value) (Value, error) {
			mapOf(self).clear()
			return nil, nil
		}))
}

func numberClass() *ClassBuilder {
	return NewClass(NumberClass).Abstract().Implements(SerializableInterface).
		Constructor(nil).
		Method(method("intValue", "int", func(_ context.Context, self *Object, _ []Value) (Value, error) {
			return int32(asInt64(self.Payload())), nil
		})).
		Method(method("longValue", "long", func(_ context.Context, self *Object, _ []Value) (Value, error) {
			return asInt64(self.Payload()), nil
		})).
		Method(method("doubleValue", "double", func(_ context.Context, self *Object, _ []Value) (Value, error) {
			return asFloat64(self.Payload()), nil
		}))
}

func asInt64(v Value) int64 {
	switch x := v.(type) {
	case int8:
		return int64(x)
	case uint16:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case int64:
		return x
	case float32:
		return int64(x)
	case float64:
		return int64(x)
	case bool:
		if x {
			return 1
		}
	}
	return 0
}

func asFloat64(v Value) float64 {
	switch x := v.(type) {
	case float32:
		return float64(x)
	case float64:
		return x
	}
	return float64(asInt64(v))
}

func comparePrimitive(a, b Value) int {
	switch x := a.(type) {
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case x:
			return 1
		}
		return -1
	case float32, float64:
		return cmp.Compare(asFloat64(a), asFloat64(b))
	}
	return cmp.Compare(asInt64(a), asInt64(b))
}

type boxSpec struct {
	name, super, prim string
	parse             func(string) (Value, error)
	min, max          Value
}

func boxClasses(cp *ClassPath) []*ClassBuilder {
	specs := []boxSpec{
		{name: BooleanClass, prim: "boolean", parse: func(s string) (Value, error) { return s == "true", nil }},
		{name: CharacterClass, prim: "char", min: uint16(0), max: uint16(math.MaxUint16)},
		{name: ByteClass, super: NumberClass, prim: "byte", min: int8(math.MinInt8), max: int8(math.MaxInt8),
			parse: func(s string) (Value, error) { n, err := strconv.ParseInt(s, 10, 8); return int8(n), err }},
		{name: ShortClass, super: NumberClass, prim: "short", min: int16(math.MinInt16), max: int16(math.MaxInt16),
			parse: func(s string) (Value, error) { n, err := strconv.ParseInt(s, 10, 16); return int16(n), err }},
		{name: IntegerClass, super: NumberClass, prim: "int", min: int32(math.MinInt32), max: int32(math.MaxInt32),
			parse: func(s string) (Value, error) { n, err := strconv.ParseInt(s, 10, 32); return int32(n), err }},
		{name: LongClass, super: NumberClass, prim: "long", min: int64(math.MinInt64), max: int64(math.MaxInt64),
			parse: func(s string) (Value, error) { return strconv.ParseInt(s, 10, 64) }},
		{name: FloatClass, super: NumberClass, prim: "float", min: float32(math.SmallestNonzeroFloat32), max: float32(math.MaxFloat32),
			parse: func(s string) (Value, error) { f, err := strconv.ParseFloat(s, 32); return float32(f), err }},
		{name: DoubleClass, super: NumberClass, prim: "double", min: math.SmallestNonzeroFloat64, max: math.MaxFloat64,
			parse: func(s string) (Value, error) { return strconv.ParseFloat(s, 64) }},
	}

	out := make([]*ClassBuilder, 0, len(specs))
	for _, s := range specs {
		b := NewClass(s.name).Final().Implements(ComparableInterface)
		if s.super != "" {
			b.Extends(s.super)
		} else {
			b.Implements(SerializableInterface)
		}
		b.Constructor(func(_ context.Context, self *Object, args []Value) (Value, error) {
			self.SetPayload(args[0])
			return nil, nil
		}, s.prim)
		b.Method(static("valueOf", s.name, func(_ context.Context, _ *Object, args []Value) (Value, error) {
			return newObject(cp.MustLookup(s.name), args[0]), nil
		}, s.prim))
		b.Method(method(s.prim+"Value", s.prim, func(_ context.Context, self *Object, _ []Value) (Value, error) {
			return self.Payload(), nil
		}))
		b.Method(method("compareTo", "int", func(_ context.Context, self *Object, args []Value) (Value, error) {
			other, _ := args[0].(*Object)
			if other == nil {
				return nil, self.class.cp.Throw("java.lang.NullPointerException", "compareTo null")
			}
			if other.class != self.class {
				return nil, self.class.cp.Throw("java.lang.ClassCastException",
					"class %s cannot be cast to class %s", other.class.name, self.class.name)
			}
			return int32(comparePrimitive(self.Payload(), other.Payload())), nil
		}, ObjectClass))
		b.Method(method("equals", "boolean", func(_ context.Context, self *Object, args []Value) (Value, error) {
			other, _ := args[0].(*Object)
			return other != nil && other.class == self.class && keyOf(self) == keyOf(other), nil
		}, ObjectClass))
		b.Method(method("hashCode", "int", func(_ context.Context, self *Object, _ []Value) (Value, error) {
			n := asInt64(self.Payload())
			if f, ok := self.Payload().(float64); ok {
				n = int64(math.Float64bits(f))
			}
			return int32(n ^ n>>32), nil
		}))
		b.Method(method("toString", StringClass, func(_ context.Context, self *Object, _ []Value) (Value, error) {
			return self.class.cp.NewString(Describe(self.Payload())), nil
		}))
		if s.parse != nil {
			parse := s.parse
			b.Method(static("parse"+boxSimple(s.name), s.prim, func(_ context.Context, _ *Object, args []Value) (Value, error) {
				str, _ := args[0].(*Object)
				if str == nil {
					return nil, cp.Throw("java.lang.NumberFormatException", "Cannot parse null string")
				}
				v, err := parse(GoString(str))
				if err != nil {
					return nil, cp.Throw("java.lang.NumberFormatException", "For input string: %q", GoString(str))
				}
				return v, nil
			}, StringClass))
		}
		if s.max != nil {
			b.Field(FieldSpec{Name: "MIN_VALUE", Type: s.prim, Static: true, Final: true, Value: s.min})
			b.Field(FieldSpec{Name: "MAX_VALUE", Type: s.prim, Static: true, Final: true, Value: s.max})
		}
		out = append(out, b)
	}
	return out
}

func boxSimple(name string) string {
	switch name {
	case IntegerClass:
		return "Int"
	case BooleanClass:
		return "Boolean"
	}
	return name[len("java.lang."):]
}

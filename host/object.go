package host

import (
	"fmt"
	"math"
	"strconv"
	"sync"
	"sync/atomic"
	"unicode/utf16"
)

// Value is a host value: nil (null), one of the Go primitive carriers
// bool, int8 (byte), uint16 (char), int16, int32, int64, float32, float64,
// or a *Object reference.
type Value = any

var objectIDs atomic.Uint64

// Object is a host heap object. Identity is pointer identity.
type Object struct {
	class   *Type
	payload any
	fields  map[string]Value
	id      uint64
	mu      sync.Mutex
}

func newObject(class *Type, payload any) *Object {
	return &Object{class: class, payload: payload, id: objectIDs.Add(1)}
}

// Class returns the runtime class of o.
func (o *Object) Class() *Type { return o.class }

// ID returns the identity hash of o.
func (o *Object) ID() uint64 { return o.id }

// Payload returns the native state attached to o.
func (o *Object) Payload() any {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.payload
}

// SetPayload replaces the native state. Constructors use it to initialise
// freshly allocated objects.
func (o *Object) SetPayload(p any) {
	o.mu.Lock()
	o.payload = p
	o.mu.Unlock()
}

func (o *Object) String() string { return Describe(o) }

// NewObject allocates an instance of class with the given native payload,
// bypassing constructors.
func (cp *ClassPath) NewObject(class *Type, payload any) *Object {
	return newObject(class, payload)
}

// KindOf returns the primitive kind carried by v.
func KindOf(v Value) (Kind, bool) {
	switch v.(type) {
	case bool:
		return KindBoolean, true
	case int8:
		return KindByte, true
	case uint16:
		return KindChar, true
	case int16:
		return KindShort, true
	case int32:
		return KindInt, true
	case int64:
		return KindLong, true
	case float32:
		return KindFloat, true
	case float64:
		return KindDouble, true
	}
	return KindVoid, false
}

// ZeroValue returns the default value of a variable of type t.
func ZeroValue(t *Type) Value {
	switch t.kind {
	case KindBoolean:
		return false
	case KindByte:
		return int8(0)
	case KindChar:
		return uint16(0)
	case KindShort:
		return int16(0)
	case KindInt:
		return int32(0)
	case KindLong:
		return int64(0)
	case KindFloat:
		return float32(0)
	case KindDouble:
		return float64(0)
	}
	return nil
}

// Accepts reports whether v can be stored in a variable of type t as is.
func Accepts(t *Type, v Value) bool {
	if v == nil {
		return t.IsReference()
	}
	if o, ok := v.(*Object); ok {
		return o != nil && t.IsReference() && t.AssignableFrom(o.class)
	}
	k, ok := KindOf(v)
	return ok && k == t.kind
}

// Same is the host identity predicate: references compare by pointer,
// primitives by value.
func Same(a, b Value) bool {
	oa, aok := a.(*Object)
	ob, bok := b.(*Object)
	if aok || bok {
		return aok && bok && oa == ob
	}
	return a == b
}

// Box wraps a primitive value in its box class.
func (cp *ClassPath) Box(v Value) (*Object, error) {
	k, ok := KindOf(v)
	if !ok {
		return nil, cp.Throw("java.lang.IllegalArgumentException", "cannot box %T", v)
	}
	return newObject(cp.MustLookup(boxNames[k]), v), nil
}

// Unbox returns the primitive value held by a box object.
func Unbox(o *Object) (Value, bool) {
	if o == nil {
		return nil, false
	}
	if _, ok := unboxKinds[o.class.name]; !ok {
		return nil, false
	}
	return o.Payload(), true
}

// NewString creates a java.lang.String from Go text.
func (cp *ClassPath) NewString(s string) *Object {
	return newObject(cp.MustLookup(StringClass), utf16.Encode([]rune(s)))
}

// NewStringUnits creates a java.lang.String from UTF-16 code units. The
// units are copied.
func (cp *ClassPath) NewStringUnits(units []uint16) *Object {
	dup := make([]uint16, len(units))
	copy(dup, units)
	return newObject(cp.MustLookup(StringClass), dup)
}

// StringUnits returns the UTF-16 code units of a java.lang.String. The
// slice must not be modified.
func StringUnits(o *Object) ([]uint16, bool) {
	if o == nil || o.class.name != StringClass {
		return nil, false
	}
	u, ok := o.Payload().([]uint16)
	return u, ok
}

// IsString reports whether v is a java.lang.String.
func IsString(v Value) bool {
	o, ok := v.(*Object)
	return ok && o != nil && o.class.name == StringClass
}

// GoString renders a host String as Go text. Unpaired surrogates become
// U+FFFD; use StringUnits where exact code units matter.
func GoString(o *Object) string {
	u, _ := StringUnits(o)
	return string(utf16.Decode(u))
}

// Describe renders v for messages and display.
func Describe(v Value) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case *Object:
		if x == nil {
			return "null"
		}
		if u, ok := StringUnits(x); ok {
			return string(utf16.Decode(u))
		}
		if p, ok := Unbox(x); ok {
			return Describe(p)
		}
		if IsThrowable(x.class) {
			msg, ok := ThrowableMessage(x)
			if ok {
				return x.class.name + ": " + msg
			}
			return x.class.name
		}
		return x.class.name + "@" + strconv.FormatUint(x.id, 16)
	case uint16:
		return string(utf16.Decode([]uint16{x}))
	case float32:
		return formatFloat(float64(x), 32)
	case float64:
		return formatFloat(x, 64)
	}
	return fmt.Sprint(v)
}

func formatFloat(f float64, bits int) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	s := strconv.FormatFloat(f, 'g', -1, bits)
	for _, c := range s {
		if c == '.' || c == 'e' {
			return s
		}
	}
	return s + ".0"
}

// TypeName returns the host type name of a runtime value.
func TypeName(v Value) string {
	if o, ok := v.(*Object); ok {
		if o == nil {
			return "null"
		}
		return o.class.name
	}
	if v == nil {
		return "null"
	}
	if k, ok := KindOf(v); ok {
		return k.String()
	}
	return fmt.Sprintf("%T", v)
}

// NewArray allocates an array of n elements of the given component type.
// Primitive arrays are backed by typed Go slices.
func (cp *ClassPath) NewArray(component *Type, n int) *Object {
	var data any
	switch component.kind {
	case KindBoolean:
		data = make([]bool, n)
	case KindByte:
		data = make([]int8, n)
	case KindChar:
		data = make([]uint16, n)
	case KindShort:
		data = make([]int16, n)
	case KindInt:
		data = make([]int32, n)
	case KindLong:
		data = make([]int64, n)
	case KindFloat:
		data = make([]float32, n)
	case KindDouble:
		data = make([]float64, n)
	default:
		data = make([]Value, n)
	}
	return newObject(cp.ArrayOf(component), data)
}

// ArrayData returns the backing slice of an array object.
func ArrayData(o *Object) (any, bool) {
	if o == nil || o.class.kind != KindArray {
		return nil, false
	}
	return o.Payload(), true
}

// ArrayLen returns the length of an array object, -1 if o is not an array.
func ArrayLen(o *Object) int {
	data, ok := ArrayData(o)
	if !ok {
		return -1
	}
	switch d := data.(type) {
	case []bool:
		return len(d)
	case []int8:
		return len(d)
	case []uint16:
		return len(d)
	case []int16:
		return len(d)
	case []int32:
		return len(d)
	case []int64:
		return len(d)
	case []float32:
		return len(d)
	case []float64:
		return len(d)
	case []Value:
		return len(d)
	}
	return -1
}

// ArrayGet reads element i.
func ArrayGet(o *Object, i int) (Value, error) {
	n := ArrayLen(o)
	if n < 0 {
		return nil, nonArray(o)
	}
	if i < 0 || i >= n {
		return nil, o.class.cp.Throw("java.lang.ArrayIndexOutOfBoundsException", "Index %d out of bounds for length %d", i, n)
	}
	switch d := o.Payload().(type) {
	case []bool:
		return d[i], nil
	case []int8:
		return d[i], nil
	case []uint16:
		return d[i], nil
	case []int16:
		return d[i], nil
	case []int32:
		return d[i], nil
	case []int64:
		return d[i], nil
	case []float32:
		return d[i], nil
	case []float64:
		return d[i], nil
	case []Value:
		return d[i], nil
	}
	return nil, nonArray(o)
}

// ArraySet stores v at index i. The value must be exactly assignable to
// the component type.
func ArraySet(o *Object, i int, v Value) error {
	n := ArrayLen(o)
	if n < 0 {
		return nonArray(o)
	}
	cp := o.class.cp
	if i < 0 || i >= n {
		return cp.Throw("java.lang.ArrayIndexOutOfBoundsException", "Index %d out of bounds for length %d", i, n)
	}
	comp := o.class.component
	if !Accepts(comp, v) {
		return cp.Throw("java.lang.ArrayStoreException", "%s cannot be stored in %s", TypeName(v), o.class.name)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	switch d := o.payload.(type) {
	case []bool:
		d[i] = v.(bool)
	case []int8:
		d[i] = v.(int8)
	case []uint16:
		d[i] = v.(uint16)
	case []int16:
		d[i] = v.(int16)
	case []int32:
		d[i] = v.(int32)
	case []int64:
		d[i] = v.(int64)
	case []float32:
		d[i] = v.(float32)
	case []float64:
		d[i] = v.(float64)
	case []Value:
		d[i] = v
	}
	return nil
}

func nonArray(o *Object) error {
	if o == nil {
		return &Thrown{}
	}
	return o.class.cp.Throw("java.lang.IllegalArgumentException", "%s is not an array", o.class.name)
}

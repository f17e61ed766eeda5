package dynamic

import (
	"fmt"
	"unicode/utf8"
)

// Object is any value of the dynamic runtime. Every implementation is a
// pointer type so objects can be compared and used as map keys by identity.
type Object interface {
	Type() *Type
}

// NoneObject is the type of None.
type NoneObject struct{}

// None is the singleton null value.
var None = &NoneObject{}

func (*NoneObject) Type() *Type { return NoneType }

// Bool is a boolean. Use True and False.
type Bool struct {
	V bool
}

var (
	True  = &Bool{V: true}
	False = &Bool{V: false}
)

// NewBool returns True or False.
func NewBool(b bool) *Bool {
	if b {
		return True
	}
	return False
}

func (*Bool) Type() *Type { return BoolType }

// Int is a 64-bit integer.
type Int struct {
	V int64
}

func NewInt(v int64) *Int { return &Int{V: v} }

func (*Int) Type() *Type { return IntType }

// Float is a double precision float.
type Float struct {
	V float64
}

func NewFloat(v float64) *Float { return &Float{V: v} }

func (*Float) Type() *Type { return FloatType }

// Str is text stored as code points. Lone surrogates are legal code
// points here and survive every operation.
type Str struct {
	runes []rune
}

// NewStr creates a Str from Go text.
func NewStr(s string) *Str {
	return &Str{runes: []rune(s)}
}

// StrFromRunes creates a Str from code points. The slice is copied.
func StrFromRunes(r []rune) *Str {
	return &Str{runes: append([]rune(nil), r...)}
}

func (*Str) Type() *Type { return StrType }

// Runes returns the code points. The slice must not be modified.
func (s *Str) Runes() []rune { return s.runes }

// Len returns the number of code points.
func (s *Str) Len() int { return len(s.runes) }

// String renders the text as Go UTF-8. Surrogate code points cannot be
// encoded in UTF-8 and become U+FFFD.
func (s *Str) String() string {
	buf := make([]byte, 0, len(s.runes))
	for _, r := range s.runes {
		buf = utf8.AppendRune(buf, r)
	}
	return string(buf)
}

// List is a mutable sequence.
type List struct {
	Items []Object
}

func NewList(items ...Object) *List { return &List{Items: items} }

func (*List) Type() *Type { return ListType }

// Tuple is an immutable sequence.
type Tuple struct {
	Items []Object
}

func NewTuple(items ...Object) *Tuple { return &Tuple{Items: items} }

func (*Tuple) Type() *Type { return TupleType }

// Buffer is typed contiguous memory, the dynamic runtime's equivalent of
// a memoryview. Format uses struct-module codes.
type Buffer struct {
	Format string
	Data   []byte
}

var itemSizes = map[string]int{
	"?": 1, "b": 1, "B": 1, "h": 2, "H": 2, "i": 4, "q": 8, "f": 4, "d": 8,
}

// ItemSize returns the element size of a buffer format, 0 if unknown.
func ItemSize(format string) int { return itemSizes[format] }

// NewBuffer validates the format and size of data.
func NewBuffer(format string, data []byte) (*Buffer, error) {
	size := ItemSize(format)
	if size == 0 {
		return nil, Raise(ValueError, "unsupported buffer format %q", format)
	}
	if len(data)%size != 0 {
		return nil, Raise(ValueError, "buffer length %d is not a multiple of item size %d", len(data), size)
	}
	return &Buffer{Format: format, Data: data}, nil
}

func (*Buffer) Type() *Type { return BufferType }

// Len returns the number of items.
func (b *Buffer) Len() int {
	if s := ItemSize(b.Format); s > 0 {
		return len(b.Data) / s
	}
	return 0
}

// Instance is a plain object of a user-defined type with an attribute
// dictionary.
type Instance struct {
	typ   *Type
	attrs *Dict
}

// NewInstance allocates an instance of t.
func NewInstance(t *Type) *Instance {
	return &Instance{typ: t, attrs: NewDict()}
}

func (i *Instance) Type() *Type { return i.typ }

// Attrs returns the instance dictionary.
func (i *Instance) Attrs() *Dict { return i.attrs }

// HasAttrs is implemented by objects with an instance dictionary.
type HasAttrs interface {
	Attrs() *Dict
}

// TypeName returns the name of o's type.
func TypeName(o Object) string {
	if o == nil {
		return "NoneType"
	}
	return o.Type().Name
}

// Truthy implements truth testing.
func Truthy(o Object) bool {
	switch x := o.(type) {
	case nil, *NoneObject:
		return false
	case *Bool:
		return x.V
	case *Int:
		return x.V != 0
	case *Float:
		return x.V != 0
	case *Str:
		return len(x.runes) > 0
	case *List:
		return len(x.Items) > 0
	case *Tuple:
		return len(x.Items) > 0
	case *Dict:
		return x.Len() > 0
	case *Buffer:
		return len(x.Data) > 0
	}
	return true
}

type notImplemented struct{}

func (*notImplemented) Type() *Type { return NotImplementedType }

// NotImplemented is returned by RichComparer implementations that do not
// handle an operand, so the reflected operation is tried.
var NotImplemented Object = &notImplemented{}

func (*NoneObject) String() string { return "None" }
func (b *Bool) String() string {
	if b.V {
		return "True"
	}
	return "False"
}
func (i *Int) String() string { return fmt.Sprint(i.V) }

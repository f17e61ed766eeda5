package dynamic

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Built-in exception hierarchy.
var (
	BaseException       = builtin("BaseException", ObjectType)
	ExceptionType       = builtin("Exception", BaseException)
	ArithmeticError     = builtin("ArithmeticError", ExceptionType)
	ZeroDivisionError   = builtin("ZeroDivisionError", ArithmeticError)
	OverflowError       = builtin("OverflowError", ArithmeticError)
	LookupError         = builtin("LookupError", ExceptionType)
	KeyError            = builtin("KeyError", LookupError)
	IndexError          = builtin("IndexError", LookupError)
	OSError             = builtin("OSError", ExceptionType)
	TypeError           = builtin("TypeError", ExceptionType)
	ValueError          = builtin("ValueError", ExceptionType)
	MemoryError         = builtin("MemoryError", ExceptionType)
	AssertionError      = builtin("AssertionError", ExceptionType)
	RuntimeError        = builtin("RuntimeError", ExceptionType)
	NotImplementedError = builtin("NotImplementedError", RuntimeError)
	AttributeError      = builtin("AttributeError", ExceptionType)
	ImportError         = builtin("ImportError", ExceptionType)
	SystemError         = builtin("SystemError", ExceptionType)
)

func init() {
	BaseException.New = func(_ context.Context, t *Type, args []Object, _ *Dict) (Object, error) {
		return NewException(t, args...), nil
	}
}

// Frame is one traceback entry of the dynamic runtime.
type Frame struct {
	File     string
	Line     int
	Function string
}

func (f *Frame) String() string {
	return fmt.Sprintf("File %q, line %d, in %s", f.File, f.Line, f.Function)
}

// Exception is a raised dynamic exception. It is also a Go error, so it
// travels through ordinary error returns.
type Exception struct {
	typ *Type

	Args []Object
	// Traceback is ordered outermost call first. Entries may be nil.
	Traceback []*Frame
	Cause     *Exception
	// Payload carries a foreign object this exception stands in for.
	Payload Object
	// Origin is the Go error this exception was created from, if any.
	Origin error
}

// NewException creates an exception of type t. t must derive from
// BaseException; otherwise a TypeError is returned in its place.
func NewException(t *Type, args ...Object) *Exception {
	if t == nil || !t.IsSubtype(BaseException) {
		name := "None"
		if t != nil {
			name = t.Name
		}
		return Raise(TypeError, "exceptions must derive from BaseException, not %s", name)
	}
	return &Exception{typ: t, Args: args}
}

// Raise creates an exception of type t with a formatted message.
func Raise(t *Type, format string, a ...any) *Exception {
	return &Exception{typ: t, Args: []Object{NewStr(fmt.Sprintf(format, a...))}}
}

func (e *Exception) Type() *Type { return e.typ }

// Matches reports whether e is an instance of t.
func (e *Exception) Matches(t *Type) bool {
	return e != nil && e.typ.IsSubtype(t)
}

// Message renders the exception arguments the way str() does. Foreign
// arguments render through their own str and repr, run with ctx.
func (e *Exception) Message(ctx context.Context) string {
	switch len(e.Args) {
	case 0:
		return ""
	case 1:
		s, err := ToStr(ctx, e.Args[0])
		if err != nil {
			return "<unprintable>"
		}
		return s
	}
	s, err := Repr(ctx, NewTuple(e.Args...))
	if err != nil {
		return "<unprintable>"
	}
	return s
}

// Error renders the exception without running any str or repr: arguments
// other than builtin scalars show as their type name.
func (e *Exception) Error() string {
	var msg string
	switch len(e.Args) {
	case 0:
	case 1:
		if s, ok := e.Args[0].(*Str); ok {
			msg = s.String()
		} else {
			msg = scalarRepr(e.Args[0])
		}
	default:
		parts := make([]string, len(e.Args))
		for i, a := range e.Args {
			parts[i] = scalarRepr(a)
		}
		msg = "(" + strings.Join(parts, ", ") + ")"
	}
	if msg != "" {
		return e.typ.Name + ": " + msg
	}
	return e.typ.Name
}

func scalarRepr(o Object) string {
	switch x := o.(type) {
	case nil, *NoneObject:
		return "None"
	case *Bool:
		return x.String()
	case *Int:
		return strconv.FormatInt(x.V, 10)
	case *Float:
		return formatFloat(x.V)
	case *Str:
		return quote(x.runes)
	case *Exception:
		return x.Error()
	}
	return "<" + TypeName(o) + " object>"
}

func (e *Exception) Unwrap() error { return e.Origin }

// PushFrame records f as the new outermost frame.
func (e *Exception) PushFrame(f *Frame) {
	e.Traceback = append([]*Frame{f}, e.Traceback...)
}

// FormatTraceback renders the exception and its cause chain, oldest
// cause first.
func (e *Exception) FormatTraceback() string {
	var b strings.Builder
	e.format(&b, map[*Exception]bool{})
	return b.String()
}

func (e *Exception) format(b *strings.Builder, seen map[*Exception]bool) {
	seen[e] = true
	if e.Cause != nil && !seen[e.Cause] {
		e.Cause.format(b, seen)
		b.WriteString("\nThe above exception was the direct cause of the following exception:\n\n")
	}
	b.WriteString("Traceback (most recent call last):\n")
	for _, f := range e.Traceback {
		if f == nil {
			continue
		}
		b.WriteString("  ")
		b.WriteString(f.String())
		b.WriteByte('\n')
	}
	b.WriteString(e.Error())
	b.WriteByte('\n')
}

// AsException returns err as a dynamic exception. Errors that are not
// already exceptions become SystemError with err as the origin.
func AsException(err error) *Exception {
	if err == nil {
		return nil
	}
	if exc, ok := err.(*Exception); ok {
		return exc
	}
	exc := Raise(SystemError, "%v", err)
	exc.Origin = err
	return exc
}

package host

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

// StackFrame is one host stack trace element.
type StackFrame struct {
	Class  string
	Method string
	File   string
	Line   int
}

func (f StackFrame) String() string {
	loc := "Unknown Source"
	if f.File != "" {
		loc = f.File
		if f.Line > 0 {
			loc = fmt.Sprintf("%s:%d", f.File, f.Line)
		}
	}
	if f.Class == "" {
		return fmt.Sprintf("%s(%s)", f.Method, loc)
	}
	return fmt.Sprintf("%s.%s(%s)", f.Class, f.Method, loc)
}

type throwable struct {
	cause   *Object
	message string
	stack   []StackFrame
	hasMsg  bool
}

// Thrown carries a host throwable across Go error returns.
type Thrown struct {
	Object *Object
}

func (t *Thrown) Error() string {
	if t == nil || t.Object == nil {
		return "null"
	}
	return Describe(t.Object)
}

// IsThrowable reports whether t is java.lang.Throwable or a subclass.
func IsThrowable(t *Type) bool {
	return t != nil && t.IsSubclassOf(ThrowableClass)
}

// NewThrowable allocates a throwable of the named class with the current
// host stack. An empty message leaves getMessage() null.
func (cp *ClassPath) NewThrowable(className, message string, cause *Object) (*Object, error) {
	t, err := cp.Lookup(className)
	if err != nil {
		return nil, err
	}
	if !IsThrowable(t) {
		return nil, fmt.Errorf("host: %s is not a throwable class", className)
	}
	data := &throwable{message: message, hasMsg: message != "", cause: cause, stack: CaptureStack(1)}
	return newObject(t, data), nil
}

// Throw builds a *Thrown of the named class with a formatted message.
// Unknown class names fall back to java.lang.Error.
func (cp *ClassPath) Throw(className, format string, args ...any) *Thrown {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	t, err := cp.Lookup(className)
	if err != nil || !IsThrowable(t) {
		t = cp.MustLookup(ErrorClass)
		msg = className + ": " + msg
	}
	data := &throwable{message: msg, hasMsg: true, stack: CaptureStack(1)}
	return &Thrown{Object: newObject(t, data)}
}

func throwableData(o *Object) *throwable {
	if o == nil {
		return nil
	}
	d, _ := o.Payload().(*throwable)
	return d
}

// ThrowableMessage returns getMessage(); ok is false when it is null.
func ThrowableMessage(o *Object) (string, bool) {
	d := throwableData(o)
	if d == nil || !d.hasMsg {
		return "", false
	}
	return d.message, true
}

// ThrowableCause returns getCause().
func ThrowableCause(o *Object) *Object {
	if d := throwableData(o); d != nil {
		return d.cause
	}
	return nil
}

// InitCause sets the cause of a throwable.
func InitCause(o, cause *Object) {
	if d := throwableData(o); d != nil {
		o.mu.Lock()
		d.cause = cause
		o.mu.Unlock()
	}
}

// StackTrace returns the stack of a throwable, innermost frame first.
func StackTrace(o *Object) []StackFrame {
	d := throwableData(o)
	if d == nil {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]StackFrame, len(d.stack))
	copy(out, d.stack)
	return out
}

// SetStackTrace replaces the stack of a throwable.
func SetStackTrace(o *Object, frames []StackFrame) {
	if d := throwableData(o); d != nil {
		o.mu.Lock()
		d.stack = append([]StackFrame(nil), frames...)
		o.mu.Unlock()
	}
}

// CaptureStack returns the host's current stack, innermost frame first,
// skipping skip frames above the caller of CaptureStack.
func CaptureStack(skip int) []StackFrame {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(skip+2, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	var out []StackFrame
	for {
		f, more := frames.Next()
		if f.Function != "" && !strings.HasPrefix(f.Function, "runtime.") {
			class, method := splitFunction(f.Function)
			out = append(out, StackFrame{
				Class:  class,
				Method: method,
				File:   filepath.Base(f.File),
				Line:   f.Line,
			})
		}
		if !more {
			break
		}
	}
	return out
}

// splitFunction turns "github.com/a/b.(*T).M" into ("github.com/a/b.T", "M").
func splitFunction(fn string) (string, string) {
	slash := strings.LastIndexByte(fn, '/')
	dot := strings.IndexByte(fn[slash+1:], '.')
	if dot < 0 {
		return "", fn
	}
	dot += slash + 1
	pkg, rest := fn[:dot], fn[dot+1:]

	if i := strings.LastIndexByte(rest, '.'); i >= 0 {
		recv := strings.Trim(rest[:i], "(*)")
		return pkg + "." + recv, rest[i+1:]
	}
	return pkg, rest
}

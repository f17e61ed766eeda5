package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in the bridge the error occurred
type Phase string

const (
	PhaseMarshal   Phase = "marshal"   // embedded to host
	PhaseUnmarshal Phase = "unmarshal" // host to embedded
	PhaseMirror    Phase = "mirror"    // type synthesis
	PhaseResolve   Phase = "resolve"   // overload resolution
	PhaseLifetime  Phase = "lifetime"  // cross-boundary reference use
	PhaseInvoke    Phase = "invoke"    // host or embedded call
	PhaseTranslate Phase = "translate" // exception translation
	PhaseConfig    Phase = "config"    // configuration loading
	PhaseLock      Phase = "lock"      // global lock handling
)

// Kind categorizes the error
type Kind string

const (
	KindTypeMismatch          Kind = "type_mismatch"
	KindOverflow              Kind = "overflow"
	KindNoOverload            Kind = "no_overload"
	KindAmbiguous             Kind = "ambiguous"
	KindReleased              Kind = "released"
	KindClosed                Kind = "closed"
	KindNotMirrorable         Kind = "not_mirrorable"
	KindUnsupportedComparison Kind = "unsupported_comparison"
	KindCycle                 Kind = "cycle"
	KindNotFound              Kind = "not_found"
	KindInvalidInput          Kind = "invalid_input"
	KindInvalidData           Kind = "invalid_data"
	KindUnsupported           Kind = "unsupported"
	KindNilPointer            Kind = "nil_pointer"
	KindTranslation           Kind = "translation"
	KindNotInitialized        Kind = "not_initialized"
)

// Error is the structured error type used throughout the bridge
type Error struct {
	Value    any
	Cause    error
	Phase    Phase
	Kind     Kind
	HostType string
	DynType  string
	Detail   string
	Path     []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.HostType != "" || e.DynType != "" {
		b.WriteString(": ")
		if e.HostType != "" && e.DynType != "" {
			b.WriteString("host type ")
			b.WriteString(e.HostType)
			b.WriteString(", dynamic type ")
			b.WriteString(e.DynType)
		} else if e.HostType != "" {
			b.WriteString("host type ")
			b.WriteString(e.HostType)
		} else {
			b.WriteString("dynamic type ")
			b.WriteString(e.DynType)
		}
	}

	if e.Detail != "" {
		if e.HostType != "" || e.DynType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the value path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// HostType sets the host type name
func (b *Builder) HostType(t string) *Builder {
	b.err.HostType = t
	return b
}

// DynType sets the dynamic type name
func (b *Builder) DynType(t string) *Builder {
	b.err.DynType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// TypeMismatch creates a conversion error naming both the expected host
// type and the actual dynamic type
func TypeMismatch(phase Phase, path []string, hostType, dynType string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindTypeMismatch,
		Path:     path,
		HostType: hostType,
		DynType:  dynType,
		Detail:   fmt.Sprintf("cannot convert %s to %s", dynType, hostType),
	}
}

// Overflow creates an overflow error
func Overflow(phase Phase, path []string, value any, hostType string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindOverflow,
		Path:     path,
		HostType: hostType,
		Detail:   fmt.Sprintf("value %v overflows %s", value, hostType),
		Value:    value,
	}
}

// NoOverload creates an error for a call no candidate accepts
func NoOverload(method string, argTypes []string) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindNoOverload,
		Detail: fmt.Sprintf("no matching overload for %s(%s)", method, strings.Join(argTypes, ", ")),
	}
}

// Ambiguous creates an error for a call two or more candidates accept equally well
func Ambiguous(method string, argTypes []string, candidates []string) *Error {
	return &Error{
		Phase: PhaseResolve,
		Kind:  KindAmbiguous,
		Detail: fmt.Sprintf("ambiguous overload for %s(%s): candidates %s",
			method, strings.Join(argTypes, ", "), strings.Join(candidates, " | ")),
	}
}

// Released creates a lifetime error for a reference whose owner released it
func Released(what string, handle uint64) *Error {
	return &Error{
		Phase:  PhaseLifetime,
		Kind:   KindReleased,
		Detail: fmt.Sprintf("%s handle %d used after release", what, handle),
		Value:  handle,
	}
}

// Closed creates an error for an operation on a closed component
func Closed(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosed,
		Detail: fmt.Sprintf("%s closed", component),
	}
}

// NotMirrorable creates an error for a type descriptor that has no dynamic mirror
func NotMirrorable(hostType, reason string) *Error {
	return &Error{
		Phase:    PhaseMirror,
		Kind:     KindNotMirrorable,
		HostType: hostType,
		Detail:   reason,
	}
}

// UnsupportedComparison creates an ordering error between incompatible operands
func UnsupportedComparison(op, left, right string) *Error {
	return &Error{
		Phase:  PhaseInvoke,
		Kind:   KindUnsupportedComparison,
		Detail: fmt.Sprintf("unsupported comparison: %s %s %s", left, op, right),
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// NilPointer creates a nil pointer error
func NilPointer(phase Phase, path []string, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNilPointer,
		Path:   path,
		Detail: what + " is nil",
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// NotInitialized creates a not-initialized error
func NotInitialized(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotInitialized,
		Detail: fmt.Sprintf("%s not initialized", component),
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Translation creates an error raised while translating an exception
func Translation(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseTranslate,
		Kind:   KindTranslation,
		Detail: detail,
		Cause:  cause,
	}
}

// IsKind reports whether err is a bridge error of the given kind.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Kind == kind {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

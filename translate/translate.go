package translate

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/embed-runtime/dynamic"
	"github.com/wippyai/embed-runtime/errors"
	"github.com/wippyai/embed-runtime/host"
	"github.com/wippyai/embed-runtime/marshal"
	"github.com/wippyai/embed-runtime/mirror"
)

// maxCauses bounds the host cause chain followed by ToDynamic.
const maxCauses = 16

// Translator converts exceptions between the two runtimes.
type Translator struct {
	classes *host.ClassPath
	mirror  *mirror.Mirror
	table   table
	diag    io.Writer
}

var (
	_ marshal.ErrorTranslator = (*Translator)(nil)
	_ mirror.ThrownTranslator = (*Translator)(nil)
)

// Option configures a Translator.
type Option func(*Translator)

// WithDiagnostics sets where translation failures are reported besides the
// logger. The default is os.Stderr; nil disables the report.
func WithDiagnostics(w io.Writer) Option {
	return func(t *Translator) { t.diag = w }
}

// WithRules replaces the classification table.
func WithRules(rules []Rule) Option {
	return func(t *Translator) { t.table = newTable(rules) }
}

// New creates a translator that wraps host throwables through m. It
// installs itself on m and on m's converter.
func New(m *mirror.Mirror, opts ...Option) *Translator {
	t := &Translator{
		classes: m.Converter().ClassPath(),
		mirror:  m,
		table:   newTable(DefaultRules),
		diag:    os.Stderr,
	}
	for _, opt := range opts {
		opt(t)
	}
	m.SetErrorTranslator(t)
	m.Converter().SetErrorTranslator(t)
	return t
}

// Classify returns the dynamic exception type used for a host throwable
// class.
func (t *Translator) Classify(c *host.Type) *dynamic.Type {
	return t.table.classify(c)
}

// ToHost turns a dynamic exception into a host embed.DynamicException.
func (t *Translator) ToHost(ctx context.Context, exc *dynamic.Exception) (out *host.Thrown) {
	defer func() {
		if r := recover(); r != nil {
			out = t.hostFallback(exc, fmt.Errorf("panic: %v", r))
		}
	}()
	if exc == nil {
		return t.hostFallback(nil, errors.NilPointer(errors.PhaseTranslate, nil, "dynamic exception"))
	}

	cause := t.hostCause(exc)
	msg := exc.Type().Name + ": " + t.message(ctx, exc, cause)
	o, err := t.classes.NewThrowable(host.DynamicExceptionClass, msg, cause)
	if err != nil {
		return t.hostFallback(exc, err)
	}

	frames := make([]host.StackFrame, 0, len(exc.Traceback))
	for i := len(exc.Traceback) - 1; i >= 0; i-- {
		if f := exc.Traceback[i]; f != nil {
			frames = append(frames, hostFrame(f))
		}
	}
	host.SetStackTrace(o, append(frames, host.StackTrace(o)...))
	debugf("translated %s to host with %d dynamic frames", exc.Type().Name, len(frames))
	return &host.Thrown{Object: o}
}

// hostCause finds the host throwable exc stands for, if any.
func (t *Translator) hostCause(exc *dynamic.Exception) *host.Object {
	if exc.Payload != nil {
		if o, ok, err := t.mirror.Unwrap(exc.Payload); ok && err == nil && host.IsThrowable(o.Class()) {
			return o
		}
	}
	if th, ok := exc.Origin.(*host.Thrown); ok && th.Object != nil {
		return th.Object
	}
	return nil
}

// message prefers the host message of the wrapped throwable.
func (t *Translator) message(ctx context.Context, exc *dynamic.Exception, cause *host.Object) string {
	if cause != nil {
		if msg, ok := host.ThrowableMessage(cause); ok {
			return msg
		}
	}
	return exc.Message(ctx)
}

// hostFrame renders a dynamic frame the way host frames look: the module
// path without extension as the class, the base file name as the file.
func hostFrame(f *dynamic.Frame) host.StackFrame {
	return host.StackFrame{
		Class:  strings.TrimSuffix(f.File, filepath.Ext(f.File)),
		Method: f.Function,
		File:   filepath.Base(f.File),
		Line:   f.Line,
	}
}

// ToDynamic turns a host throwable into a dynamic exception carrying the
// throwable as its payload.
func (t *Translator) ToDynamic(ctx context.Context, th *host.Thrown) (out *dynamic.Exception) {
	defer func() {
		if r := recover(); r != nil {
			out = t.dynamicFallback(th, fmt.Errorf("panic: %v", r))
		}
	}()
	if th == nil || th.Object == nil {
		return t.dynamicFallback(th, errors.NilPointer(errors.PhaseTranslate, nil, "host throwable"))
	}
	exc, err := t.toDynamic(ctx, th.Object, make(map[*host.Object]bool))
	if err != nil {
		return t.dynamicFallback(th, err)
	}
	exc.Origin = th
	return exc
}

func (t *Translator) toDynamic(ctx context.Context, o *host.Object, seen map[*host.Object]bool) (*dynamic.Exception, error) {
	seen[o] = true
	payload, err := t.mirror.Wrap(ctx, o)
	if err != nil {
		return nil, err
	}
	exc := dynamic.NewException(t.table.classify(o.Class()), dynamic.NewStr(host.Describe(o)))
	exc.Payload = payload

	stack := host.StackTrace(o)
	for i := len(stack) - 1; i >= 0; i-- {
		exc.Traceback = append(exc.Traceback, dynamicFrame(stack[i]))
	}

	if c := host.ThrowableCause(o); c != nil && !seen[c] && len(seen) < maxCauses {
		cause, err := t.toDynamic(ctx, c, seen)
		if err != nil {
			return nil, err
		}
		cause.Origin = &host.Thrown{Object: c}
		exc.Cause = cause
	}
	return exc, nil
}

func dynamicFrame(f host.StackFrame) *dynamic.Frame {
	fn := f.Method
	if f.Class != "" {
		fn = f.Class + "." + f.Method
	}
	return &dynamic.Frame{File: f.File, Line: f.Line, Function: fn}
}

func (t *Translator) hostFallback(exc *dynamic.Exception, cause error) *host.Thrown {
	what := "<nil>"
	if exc != nil {
		what = exc.Error()
	}
	err := errors.Translation("dynamic exception to host", cause)
	t.report(err, zap.String("exception", what))
	return t.classes.Throw(host.ErrorClass, "%s", what)
}

func (t *Translator) dynamicFallback(th *host.Thrown, cause error) *dynamic.Exception {
	what := th.Error()
	err := errors.Translation("host throwable to dynamic", cause)
	t.report(err, zap.String("throwable", what))
	exc := dynamic.Raise(dynamic.SystemError, "%s", what)
	exc.Origin = err
	return exc
}

func (t *Translator) report(err error, field zap.Field) {
	Logger().Error("exception translation failed", zap.Error(err), field)
	if t.diag != nil {
		fmt.Fprintf(t.diag, "embed: %v (%s=%s)\n", err, field.Key, field.String)
	}
}

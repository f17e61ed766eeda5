package bridge

import (
	"context"
	"io"
	"os"
	"sync/atomic"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/wippyai/embed-runtime/config"
	"github.com/wippyai/embed-runtime/dynamic"
	"github.com/wippyai/embed-runtime/errors"
	"github.com/wippyai/embed-runtime/gil"
	"github.com/wippyai/embed-runtime/host"
	"github.com/wippyai/embed-runtime/marshal"
	"github.com/wippyai/embed-runtime/mirror"
	"github.com/wippyai/embed-runtime/overload"
	"github.com/wippyai/embed-runtime/ownership"
	"github.com/wippyai/embed-runtime/translate"
)

const tracerName = "github.com/wippyai/embed-runtime/bridge"

// Bridge connects one host class path to the dynamic runtime.
type Bridge struct {
	session string
	cfg     *config.Config
	classes *host.ClassPath
	lock    *gil.GIL
	refs    *ownership.Arena[dynamic.Object]
	keep    *ownership.Arena[*host.Object]
	conv    *marshal.Converter
	mirror  *mirror.Mirror
	errs    *translate.Translator
	log     *zap.Logger
	tracer  trace.Tracer
	diag    io.Writer
	closed  atomic.Bool
}

// Stats is a snapshot of bridge bookkeeping.
type Stats struct {
	Session string
	// References counts dynamic objects pinned for host wrappers.
	References int
	// KeepAlive counts host objects pinned for dynamic instances.
	KeepAlive int
	// Types counts mirrored host types.
	Types int
}

// New wires a bridge over classes.
func New(classes *host.ClassPath, opts ...Option) (*Bridge, error) {
	if classes == nil {
		return nil, errors.NilPointer(errors.PhaseInvoke, nil, "class path")
	}
	o := options{diag: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}
	if o.cfg == nil {
		o.cfg = config.Default()
	}
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}
	if o.logger != nil {
		SetLogger(o.logger)
		mirror.SetLogger(o.logger.Named("mirror"))
		marshal.SetLogger(o.logger.Named("marshal"))
		overload.SetLogger(o.logger.Named("overload"))
		translate.SetLogger(o.logger.Named("translate"))
		gil.SetLogger(o.logger.Named("gil"))
	}
	if o.tracer == nil {
		o.tracer = otel.GetTracerProvider()
	}

	if !gil.Configure(gil.Options{
		Detect:  o.cfg.Lock.DeadlockDetection,
		Timeout: o.cfg.Lock.DeadlockTimeout,
		Logger:  Logger(),
	}) {
		debugf("deadlock detection already configured; lock options of this bridge ignored")
	}

	b := &Bridge{
		session: uuid.NewString(),
		cfg:     o.cfg,
		classes: classes,
		lock:    gil.New(),
		refs:    ownership.NewArena[dynamic.Object]("dynamic"),
		keep:    ownership.NewArena[*host.Object]("host"),
		log:     Logger(),
		tracer:  o.tracer.Tracer(tracerName),
		diag:    o.diag,
	}
	b.log = b.log.With(zap.String("session", b.session))
	b.conv = marshal.New(classes, b.refs, marshal.Options{
		Buffers:    o.buffers,
		Lock:       b.lock,
		LoadFactor: o.cfg.Marshal.MapLoadFactor,
	})
	b.mirror = mirror.New(b.conv, b.keep)
	b.errs = translate.New(b.mirror, translate.WithDiagnostics(o.diag))

	b.log.Info("bridge created",
		zap.Bool("deadlock_detection", o.cfg.Lock.DeadlockDetection),
		zap.Bool("print_uncaught", o.cfg.Errors.PrintUncaught))
	return b, nil
}

// Session returns the bridge's unique id.
func (b *Bridge) Session() string { return b.session }

// ClassPath returns the host class path.
func (b *Bridge) ClassPath() *host.ClassPath { return b.classes }

// Mirror returns the type mirror.
func (b *Bridge) Mirror() *mirror.Mirror { return b.mirror }

// Converter returns the value converter.
func (b *Bridge) Converter() *marshal.Converter { return b.conv }

// Translator returns the exception translator.
func (b *Bridge) Translator() *translate.Translator { return b.errs }

// Attach returns a context carrying a new thread state. Calls made with
// the same context nest their lock acquisitions.
func (b *Bridge) Attach(ctx context.Context) context.Context {
	ts := b.lock.Attach()
	debugf("session %s: attached thread %d", b.session, ts.ID())
	return gil.WithThread(ctx, b.lock, ts)
}

func (b *Bridge) enter(ctx context.Context) (context.Context, func(), error) {
	if b.closed.Load() {
		return ctx, func() {}, errors.Closed(errors.PhaseInvoke, "bridge "+b.session)
	}
	return gil.Enter(ctx, b.lock)
}

// ToDynamic converts a host value with the interpreter lock held.
func (b *Bridge) ToDynamic(ctx context.Context, v host.Value) (dynamic.Object, error) {
	ctx, release, err := b.enter(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return b.conv.ToDynamic(ctx, v)
}

// ToHost converts a dynamic value to expected with the interpreter lock
// held. A nil expected type means java.lang.Object.
func (b *Bridge) ToHost(ctx context.Context, v dynamic.Object, expected *host.Type) (host.Value, error) {
	ctx, release, err := b.enter(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	if expected == nil {
		expected = b.classes.MustLookup(host.ObjectClass)
	}
	return b.conv.ToHost(ctx, v, expected)
}

// LookupClass returns the mirrored type for a fully-qualified class name.
func (b *Bridge) LookupClass(ctx context.Context, name string) (*mirror.MirroredType, error) {
	if b.closed.Load() {
		return nil, errors.Closed(errors.PhaseMirror, "bridge "+b.session)
	}
	return b.mirror.Lookup(ctx, name)
}

// Call invokes a dynamic callable from host code: arguments are converted
// to dynamic values, the result to ret (java.lang.Object when nil). A
// dynamic exception comes back as a *host.Thrown, printed first when
// errors.print_uncaught is set.
func (b *Bridge) Call(ctx context.Context, callee dynamic.Object, args []host.Value, ret *host.Type) (host.Value, error) {
	ctx, span := b.tracer.Start(ctx, "embed.call", trace.WithAttributes(
		attribute.String("embed.session", b.session),
		attribute.String("embed.callee.type", dynamic.TypeName(callee)),
		attribute.Int("embed.args", len(args)),
	))
	defer span.End()

	out, err := b.call(ctx, callee, args, ret)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return out, err
}

func (b *Bridge) call(ctx context.Context, callee dynamic.Object, args []host.Value, ret *host.Type) (host.Value, error) {
	ctx, release, err := b.enter(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	dargs := make([]dynamic.Object, len(args))
	for i, a := range args {
		if dargs[i], err = b.conv.ToDynamic(ctx, a); err != nil {
			return nil, err
		}
	}

	res, err := dynamic.Call(ctx, callee, dargs, nil)
	if err != nil {
		exc := dynamic.AsException(err)
		b.log.Debug("dynamic call raised", zap.String("exception", exc.Error()))
		if b.cfg.Errors.PrintUncaught && b.diag != nil {
			translate.PrintStackTrace(b.diag, exc)
		}
		return nil, b.errs.ToHost(ctx, exc)
	}

	if ret == nil {
		ret = b.classes.MustLookup(host.ObjectClass)
	}
	return b.conv.ToHost(ctx, res, ret)
}

// Invoke calls a method on a dynamic object, typically a mirrored host
// instance or type, the way dynamic code would.
func (b *Bridge) Invoke(ctx context.Context, target dynamic.Object, method string, args ...dynamic.Object) (dynamic.Object, error) {
	ctx, span := b.tracer.Start(ctx, "embed.invoke", trace.WithAttributes(
		attribute.String("embed.session", b.session),
		attribute.String("embed.target.type", dynamic.TypeName(target)),
		attribute.String("embed.method", method),
	))
	defer span.End()

	ctx, release, err := b.enter(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer release()

	res, err := dynamic.CallMethod(ctx, target, method, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return res, nil
}

// Stats returns current bookkeeping counters.
func (b *Bridge) Stats() Stats {
	return Stats{
		Session:    b.session,
		References: b.refs.Len(),
		KeepAlive:  b.keep.Len(),
		Types:      b.mirror.Len(),
	}
}

// Close frees every cross-boundary reference. Further calls fail with a
// closed error; closing twice is a no-op.
func (b *Bridge) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	stats := b.Stats()
	err := b.refs.Close()
	if kerr := b.keep.Close(); err == nil {
		err = kerr
	}
	b.log.Info("bridge closed",
		zap.Int("references", stats.References),
		zap.Int("keep_alive", stats.KeepAlive),
		zap.Int("types", stats.Types))
	return err
}

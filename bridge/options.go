package bridge

import (
	"io"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	embedruntime "github.com/wippyai/embed-runtime"
	"github.com/wippyai/embed-runtime/config"
)

type options struct {
	cfg     *config.Config
	logger  *zap.Logger
	tracer  trace.TracerProvider
	buffers embedruntime.BufferHandler
	diag    io.Writer
}

// Option configures a Bridge.
type Option func(*options)

// WithConfig replaces config.Default.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithLogger sets the logger of the bridge and of the packages it wires.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTracerProvider sets the provider for boundary spans. The default is
// the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracer = tp }
}

// WithBufferHandler installs the converter for typed memory objects.
func WithBufferHandler(h embedruntime.BufferHandler) Option {
	return func(o *options) { o.buffers = h }
}

// WithDiagnostics sets where uncaught errors and translation failures are
// printed. The default is os.Stderr.
func WithDiagnostics(w io.Writer) Option {
	return func(o *options) { o.diag = w }
}

// Package embedruntime bridges a statically-typed host object model and an
// embedded dynamically-typed runtime inside one process.
//
// Values cross the boundary in both directions, host classes appear as
// native dynamic types, overloaded host methods are selected from dynamic
// arguments, and exceptions of either side are rethrown on the other with
// a merged stack.
//
// # Architecture Overview
//
//	embedruntime/        Root package with the Lock and BufferHandler collaborators
//	├── bridge/          High-level facade wiring every layer together
//	├── host/            Host object model, class path and reflection
//	├── dynamic/         Embedded object model, types, exceptions
//	├── ownership/       Keep-alive arenas for cross-boundary references
//	├── marshal/         Value conversion between the runtimes
//	├── mirror/          Dynamic types synthesized from host classes
//	├── overload/        Overload resolution for dynamic calls
//	├── translate/       Exception translation and merged stack traces
//	├── gil/             Global interpreter lock
//	├── config/          TOML and environment configuration
//	├── telemetry/       zap loggers and OpenTelemetry tracing
//	├── errors/          Structured error types for debugging
//	└── cmd/inspect/     Mirrored type browser (CLI and TUI)
//
// # Quick Start
//
//	cp := host.Standard()
//	b, err := bridge.New(cp)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer b.Close()
//
//	ctx := b.Attach(context.Background())
//	list, err := b.LookupClass(ctx, "java.util.ArrayList")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	obj, err := dynamic.Call(ctx, list.DynamicType(), nil, nil)
//	n, err := b.Invoke(ctx, obj, "size")
//
// # Thread Safety
//
// All dynamic-side work happens under the global interpreter lock. The lock
// is released around calls into host methods and reacquired afterwards.
// Thread states travel in the context; see package gil.
package embedruntime

// Package bridge is the embedding entry point: it wires the value
// converter, the type mirror, the exception translator and the
// interpreter lock over one host class path.
//
// # Quick Start
//
//	classes := host.Standard()
//	b, err := bridge.New(classes,
//	    bridge.WithConfig(cfg),
//	    bridge.WithLogger(logger),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer b.Close()
//
//	ctx := b.Attach(context.Background())
//
//	// Call a dynamic function from host code
//	out, err := b.Call(ctx, fn, []host.Value{classes.NewString("World")}, nil)
//
//	// Use a host class from dynamic code
//	point, err := b.LookupClass(ctx, "demo.Point")
//	p, err := dynamic.Call(ctx, point, []dynamic.Object{dynamic.NewInt(1), dynamic.NewInt(2)}, nil)
//
// # Exceptions
//
// A dynamic exception escaping Call is returned as a *host.Thrown of class
// embed.DynamicException whose stack begins with the dynamic frames. A
// host throwable raised inside a mirrored call reaches dynamic code as the
// exception type chosen by the translator's classification table.
//
// # Tracing
//
// Call and Invoke open spans named embed.call and embed.invoke on the
// tracer provider given with WithTracerProvider, or the global one.
package bridge

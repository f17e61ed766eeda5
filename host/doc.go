// Package host is the statically-typed side of the bridge: a nominal
// object model with classes, interfaces, primitives and arrays, plus the
// reflection facility the bridge queries.
//
// Descriptors are created by a ClassPath and never by the bridge itself.
// Standard returns a class path preloaded with the java.lang / java.util
// core the bridge relies on (Object, String, the primitive boxes, List,
// ArrayList, Map, HashMap, the common functional interfaces and the
// throwable families) and the embed.* wrapper classes.
//
// # Values
//
// A host Value is nil, a Go primitive carrier or a *Object:
//
//	boolean  bool      char   uint16
//	byte     int8      short  int16
//	int      int32     long   int64
//	float    float32   double float64
//
// Identity is pointer identity on *Object (see Same). Strings are stored as
// UTF-16 code units so unpaired surrogates survive unchanged.
//
// # Defining classes
//
//	err := cp.Define(
//	    host.NewInterface("acme.Shape").
//	        Method(host.MethodSpec{Name: "area", Return: "double", Abstract: true}),
//	    host.NewClass("acme.Square").Implements("acme.Shape").
//	        Constructor(initSquare, "double").
//	        Method(host.MethodSpec{Name: "area", Return: "double", Impl: squareArea}),
//	)
//
// All builders passed to one Define call may refer to each other.
//
// # Calls and exceptions
//
// Invoke performs virtual dispatch on the receiver's runtime class. Host
// exceptions are returned as *Thrown errors wrapping a throwable object
// whose stack trace is captured from the Go call stack.
package host

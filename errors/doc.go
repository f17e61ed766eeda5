// Package errors provides structured error types for the embed-runtime bridge.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes rich context: value path, host/dynamic type names, and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseMarshal, errors.KindTypeMismatch).
//		Path("arg[0]").
//		HostType("int[]").
//		DynType("dict").
//		Detail("cannot convert dict to int[]").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.TypeMismatch(errors.PhaseMarshal, path, "java.lang.Integer", "str")
//	err := errors.Ambiguous("f", []string{"int"}, []string{"f(A)", "f(B)"})
//
// The taxonomy follows the bridge's failure classes: conversion errors
// (type_mismatch, overflow), overload errors (no_overload, ambiguous) and
// lifetime errors (released, closed). Cross-runtime exceptions are not
// Error values; they travel as host.Thrown and dynamic.Exception.
//
// All errors implement the standard error interface and support errors.Is/As.
package errors

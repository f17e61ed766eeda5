// Package overload selects one host method among same-named overloads for
// a call made from dynamic code.
//
// Candidates are filtered by arity first. When only one candidate has the
// call's exact arity it is returned without scoring. Otherwise every
// argument is scored against its parameter type and the candidate with the
// strictly highest total wins. Ties are reported as ambiguous instead of
// being broken by declaration order, so the same call always selects the
// same method or always fails.
//
// Variable-arity candidates are tried only when no fixed-arity match
// exists: trailing arguments are packed into a tuple for the final array
// parameter.
package overload

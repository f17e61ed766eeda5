// Package mirror synthesizes dynamic types for host classes and wraps host
// objects as instances of them.
//
// # Type construction
//
// GetOrBuild resolves the superclass and every implemented interface first,
// then builds the type itself:
//
//   - methods declared by the class (not inherited ones) are grouped by
//     name; one method becomes a MethodWrapper, several become a Dispatcher
//     that resolves overloads per call
//   - fields get a FieldAccessor data descriptor
//   - concrete classes become callable through their constructors
//   - a functional interface aliases its single abstract method to the
//     call operator
//
// The resolution order starts with the type, then appends each declared
// base followed by the entries of that base's own order not seen yet. The
// superclass is always declared first, so class ancestry wins over
// interface ancestry. The dynamic object type closes every order.
//
// Only fully built types enter the cache. A failing ancestor aborts the
// build of every descendant.
//
// # Instances
//
// An Instance pins its host object in the keep-alive arena until it is
// released or garbage collected. Equality is host identity; ordering uses
// java.lang.Comparable and fails with an unsupported comparison error
// otherwise. Host arrays, lists and maps support len, indexing, item
// assignment and iteration.
//
// # Locking
//
// The cache is consulted with the interpreter lock held. Calls into host
// methods release the lock for their duration. Method signatures are
// resolved lazily into write-once slots.
package mirror

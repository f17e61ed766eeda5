package ownership

import (
	"runtime"
	"sync/atomic"
)

// Ref is one keep-alive registration held by a wrapper object on the
// non-owning side. The registration is dropped exactly once: either by an
// explicit Release or, failing that, when the wrapper is garbage collected.
type Ref struct {
	arena    Releaser
	cleanup  runtime.Cleanup
	handle   Handle
	released atomic.Bool
}

type pin struct {
	arena  Releaser
	handle Handle
}

// Bind ties the registration h in arena to the lifetime of owner.
// The arena must not be reachable only through owner.
func Bind[O any](owner *O, arena Releaser, h Handle) *Ref {
	r := &Ref{arena: arena, handle: h}
	r.cleanup = runtime.AddCleanup(owner, func(p pin) {
		_ = p.arena.Release(p.handle)
	}, pin{arena: arena, handle: h})
	return r
}

// Handle returns the underlying handle.
func (r *Ref) Handle() Handle {
	return r.handle
}

// Released reports whether Release has been called.
func (r *Ref) Released() bool {
	return r.released.Load()
}

// Release drops the registration now. Later calls are no-ops.
func (r *Ref) Release() error {
	if !r.released.CompareAndSwap(false, true) {
		return nil
	}
	r.cleanup.Stop()
	return r.arena.Release(r.handle)
}

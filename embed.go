package embedruntime

import (
	"context"
	"sync/atomic"

	"github.com/wippyai/embed-runtime/dynamic"
	"github.com/wippyai/embed-runtime/host"
)

var nextThread atomic.Uint64

// ThreadState identifies one attached thread of control. A goroutine
// acquires the interpreter lock on behalf of a thread state; nested
// acquisitions by the same state do not block.
type ThreadState struct {
	id uint64
}

// NewThreadState allocates a fresh thread state.
func NewThreadState() *ThreadState {
	return &ThreadState{id: nextThread.Add(1)}
}

// ID returns the unique thread state number.
func (t *ThreadState) ID() uint64 { return t.id }

// Lock is the embedded runtime's global interpreter lock.
type Lock interface {
	// Attach registers a new thread state with the runtime.
	Attach() *ThreadState
	// Acquire blocks until ts holds the lock or ctx is done.
	Acquire(ctx context.Context, ts *ThreadState) error
	// Release gives up one acquisition held by ts.
	Release(ts *ThreadState) error
}

// BufferHandler converts typed memory objects to host arrays. Returning
// nil, nil declines the value and generic conversion continues.
type BufferHandler interface {
	Claims(expected *host.Type) bool
	ToHost(v dynamic.Object, expected *host.Type) (host.Value, error)
}

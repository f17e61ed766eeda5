package gil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"

	embedruntime "github.com/wippyai/embed-runtime"
	"github.com/wippyai/embed-runtime/errors"
)

// GIL is a reentrant global interpreter lock. Ownership belongs to a
// thread state, not a goroutine: the same state may acquire it again
// while holding it and must release it as many times.
type GIL struct {
	mu deadlock.Mutex

	state deadlock.Mutex
	owner *embedruntime.ThreadState
	depth int
}

var _ embedruntime.Lock = (*GIL)(nil)

// New creates an unlocked GIL.
func New() *GIL {
	return &GIL{}
}

// Options configures deadlock detection for every GIL in the process.
type Options struct {
	Logger *zap.Logger
	// Timeout after which a waiter is reported as a potential deadlock.
	Timeout time.Duration
	Detect  bool
}

var configureOnce sync.Once

// Configure applies detection options. go-deadlock options are process
// wide and read by every lock operation, so only the first call takes
// effect; it reports whether this call was the one applied.
func Configure(opts Options) bool {
	applied := false
	configureOnce.Do(func() {
		applied = true
		deadlock.Opts.Disable = !opts.Detect
		if opts.Timeout > 0 {
			deadlock.Opts.DeadlockTimeout = opts.Timeout
		}
		log := opts.Logger
		if log == nil {
			log = Logger()
		}
		timeout := deadlock.Opts.DeadlockTimeout
		deadlock.Opts.OnPotentialDeadlock = func() {
			log.Error("potential deadlock on interpreter lock", zap.Duration("timeout", timeout))
		}
	})
	return applied
}

// Attach registers a new thread state.
func (g *GIL) Attach() *embedruntime.ThreadState {
	ts := embedruntime.NewThreadState()
	debugf("attach thread %d", ts.ID())
	return ts
}

// Acquire blocks until ts holds the lock. A context that is done before
// the lock is obtained abandons the wait.
func (g *GIL) Acquire(ctx context.Context, ts *embedruntime.ThreadState) error {
	if ts == nil {
		return errors.NilPointer(errors.PhaseLock, nil, "thread state")
	}

	g.state.Lock()
	if g.owner == ts {
		g.depth++
		g.state.Unlock()
		return nil
	}
	g.state.Unlock()

	if err := ctx.Err(); err != nil {
		return lockErr(ts, err)
	}

	if ctx.Done() == nil {
		g.mu.Lock()
	} else {
		acquired := make(chan struct{})
		go func() {
			g.mu.Lock()
			close(acquired)
		}()
		select {
		case <-acquired:
		case <-ctx.Done():
			go func() {
				<-acquired
				g.mu.Unlock()
			}()
			return lockErr(ts, ctx.Err())
		}
	}

	g.state.Lock()
	g.owner = ts
	g.depth = 1
	g.state.Unlock()
	return nil
}

// Release drops one acquisition held by ts.
func (g *GIL) Release(ts *embedruntime.ThreadState) error {
	g.state.Lock()
	defer g.state.Unlock()

	if ts == nil || g.owner != ts {
		return errors.New(errors.PhaseLock, errors.KindInvalidInput).
			Detail("thread state %s does not hold the lock", describe(ts)).
			Build()
	}
	g.depth--
	if g.depth == 0 {
		g.owner = nil
		g.mu.Unlock()
	}
	return nil
}

// Held reports whether ts currently holds the lock.
func (g *GIL) Held(ts *embedruntime.ThreadState) bool {
	g.state.Lock()
	defer g.state.Unlock()
	return ts != nil && g.owner == ts
}

// Suspend fully releases the lock held by ts and returns the nesting depth
// to restore with Resume.
func (g *GIL) Suspend(ts *embedruntime.ThreadState) (int, error) {
	g.state.Lock()
	if ts == nil || g.owner != ts {
		g.state.Unlock()
		return 0, errors.New(errors.PhaseLock, errors.KindInvalidInput).
			Detail("thread state %s cannot suspend a lock it does not hold", describe(ts)).
			Build()
	}
	depth := g.depth
	g.owner = nil
	g.depth = 0
	g.state.Unlock()

	g.mu.Unlock()
	return depth, nil
}

// Resume reacquires the lock for ts and restores depth.
func (g *GIL) Resume(ctx context.Context, ts *embedruntime.ThreadState, depth int) error {
	if err := g.Acquire(ctx, ts); err != nil {
		return err
	}
	g.state.Lock()
	g.depth = depth
	g.state.Unlock()
	return nil
}

func lockErr(ts *embedruntime.ThreadState, cause error) error {
	return errors.New(errors.PhaseLock, errors.KindClosed).
		Detail("thread %s gave up waiting for the interpreter lock", describe(ts)).
		Cause(cause).
		Build()
}

func describe(ts *embedruntime.ThreadState) string {
	if ts == nil {
		return "<nil>"
	}
	return fmt.Sprint(ts.ID())
}

package gil

import (
	"context"

	"go.uber.org/zap"

	embedruntime "github.com/wippyai/embed-runtime"
)

type threadKey struct{}

type binding struct {
	lock embedruntime.Lock
	ts   *embedruntime.ThreadState
}

// WithThread returns a context carrying ts as the thread state attached
// to lock.
func WithThread(ctx context.Context, lock embedruntime.Lock, ts *embedruntime.ThreadState) context.Context {
	return context.WithValue(ctx, threadKey{}, binding{lock: lock, ts: ts})
}

// ThreadFrom returns the thread state attached to lock, if ctx carries one.
func ThreadFrom(ctx context.Context, lock embedruntime.Lock) (*embedruntime.ThreadState, bool) {
	b, ok := ctx.Value(threadKey{}).(binding)
	if !ok || b.lock != lock {
		return nil, false
	}
	return b.ts, true
}

// Enter acquires lock for the thread state in ctx, attaching a new one
// when ctx has none. The returned context carries the thread state; call
// release exactly once when done.
func Enter(ctx context.Context, lock embedruntime.Lock) (context.Context, func(), error) {
	ts, ok := ThreadFrom(ctx, lock)
	if !ok {
		ts = lock.Attach()
		ctx = WithThread(ctx, lock, ts)
	}
	if err := lock.Acquire(ctx, ts); err != nil {
		return ctx, func() {}, err
	}
	return ctx, func() {
		if err := lock.Release(ts); err != nil {
			Logger().Warn("interpreter lock release failed", zap.Error(err))
		}
	}, nil
}

type suspender interface {
	Suspend(ts *embedruntime.ThreadState) (int, error)
	Resume(ctx context.Context, ts *embedruntime.ThreadState, depth int) error
}

// Unlocked runs fn with the interpreter lock released and reacquires it
// before returning, even if fn fails. Without a thread state in ctx, or
// when the thread does not hold the lock, fn runs directly.
func Unlocked(ctx context.Context, lock embedruntime.Lock, fn func(context.Context) error) error {
	ts, ok := ThreadFrom(ctx, lock)
	if !ok {
		return fn(ctx)
	}

	if s, ok := lock.(suspender); ok {
		if g, isGIL := lock.(*GIL); isGIL && !g.Held(ts) {
			return fn(ctx)
		}
		depth, err := s.Suspend(ts)
		if err != nil {
			return err
		}
		defer func() {
			if err := s.Resume(context.WithoutCancel(ctx), ts, depth); err != nil {
				Logger().Error("interpreter lock reacquire failed", zap.Error(err))
			}
		}()
		return fn(ctx)
	}

	if err := lock.Release(ts); err != nil {
		return fn(ctx)
	}
	defer func() {
		if err := lock.Acquire(context.WithoutCancel(ctx), ts); err != nil {
			Logger().Error("interpreter lock reacquire failed", zap.Error(err))
		}
	}()
	return fn(ctx)
}

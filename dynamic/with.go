package dynamic

import "context"

// ContextManager objects can guard a block the way a with statement does.
type ContextManager interface {
	// Enter returns the value bound by the with statement.
	Enter(ctx context.Context) (Object, error)
	// Exit runs when the block ends; exc is the exception the block
	// raised, if any. Returning true suppresses it.
	Exit(ctx context.Context, exc *Exception) (bool, error)
}

// With runs body guarded by o. An error from Exit replaces the error of
// the block, as in a with statement.
func With(ctx context.Context, o Object, body func(Object) error) error {
	cm, ok := o.(ContextManager)
	if !ok {
		return Raise(TypeError, "'%s' object does not support the context manager protocol", TypeName(o))
	}
	v, err := cm.Enter(ctx)
	if err != nil {
		return err
	}
	berr := body(v)
	suppress, err := cm.Exit(ctx, AsException(berr))
	switch {
	case err != nil:
		return err
	case berr != nil && suppress:
		return nil
	}
	return berr
}

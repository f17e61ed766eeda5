package dynamic

import (
	"context"
	"math"
	"strconv"
	"strings"
)

func optionalArg(t *Type, args []Object, kwargs *Dict) (Object, error) {
	if kwargs.Len() > 0 {
		return nil, Raise(TypeError, "%s() takes no keyword arguments", t.Name)
	}
	switch len(args) {
	case 0:
		return nil, nil
	case 1:
		return args[0], nil
	}
	return nil, Raise(TypeError, "%s() takes at most 1 argument (%d given)", t.Name, len(args))
}

func newInt(_ context.Context, t *Type, args []Object, kwargs *Dict) (Object, error) {
	arg, err := optionalArg(t, args, kwargs)
	if err != nil || arg == nil {
		return NewInt(0), err
	}
	switch x := arg.(type) {
	case *Int:
		return x, nil
	case *Bool:
		if x.V {
			return NewInt(1), nil
		}
		return NewInt(0), nil
	case *Float:
		if math.IsNaN(x.V) || math.IsInf(x.V, 0) {
			return nil, Raise(ValueError, "cannot convert float %s to integer", formatFloat(x.V))
		}
		if math.Abs(x.V) >= 1<<63 {
			return nil, Raise(OverflowError, "float %s out of int range", formatFloat(x.V))
		}
		return NewInt(int64(x.V)), nil
	case *Str:
		s := strings.TrimSpace(x.String())
		v, err := strconv.ParseInt(strings.ReplaceAll(s, "_", ""), 10, 64)
		if err != nil {
			return nil, Raise(ValueError, "invalid literal for int() with base 10: %s", quote(x.runes))
		}
		return NewInt(v), nil
	}
	return nil, Raise(TypeError, "int() argument must be a string or a number, not '%s'", TypeName(arg))
}

func newBoolFrom(_ context.Context, t *Type, args []Object, kwargs *Dict) (Object, error) {
	arg, err := optionalArg(t, args, kwargs)
	if err != nil {
		return nil, err
	}
	if arg == nil {
		return False, nil
	}
	return NewBool(Truthy(arg)), nil
}

func newFloat(_ context.Context, t *Type, args []Object, kwargs *Dict) (Object, error) {
	arg, err := optionalArg(t, args, kwargs)
	if err != nil || arg == nil {
		return NewFloat(0), err
	}
	if _, f, isFloat, ok := number(arg); ok {
		if isFloat {
			return NewFloat(f), nil
		}
		i, _, _, _ := number(arg)
		return NewFloat(float64(i)), nil
	}
	if s, ok := arg.(*Str); ok {
		v, err := strconv.ParseFloat(strings.TrimSpace(s.String()), 64)
		if err != nil {
			return nil, Raise(ValueError, "could not convert string to float: %s", quote(s.runes))
		}
		return NewFloat(v), nil
	}
	return nil, Raise(TypeError, "float() argument must be a string or a number, not '%s'", TypeName(arg))
}

func newStrFrom(ctx context.Context, t *Type, args []Object, kwargs *Dict) (Object, error) {
	arg, err := optionalArg(t, args, kwargs)
	if err != nil {
		return nil, err
	}
	if arg == nil {
		return NewStr(""), nil
	}
	if s, ok := arg.(*Str); ok {
		return s, nil
	}
	s, err := ToStr(ctx, arg)
	if err != nil {
		return nil, err
	}
	return NewStr(s), nil
}

func newListFrom(ctx context.Context, t *Type, args []Object, kwargs *Dict) (Object, error) {
	arg, err := optionalArg(t, args, kwargs)
	if err != nil {
		return nil, err
	}
	if arg == nil {
		return NewList(), nil
	}
	items, err := Collect(ctx, arg)
	if err != nil {
		return nil, err
	}
	return NewList(items...), nil
}

func newTupleFrom(ctx context.Context, t *Type, args []Object, kwargs *Dict) (Object, error) {
	arg, err := optionalArg(t, args, kwargs)
	if err != nil {
		return nil, err
	}
	if arg == nil {
		return NewTuple(), nil
	}
	items, err := Collect(ctx, arg)
	if err != nil {
		return nil, err
	}
	return NewTuple(items...), nil
}

func newDictFrom(_ context.Context, _ *Type, args []Object, kwargs *Dict) (Object, error) {
	d := NewDict()
	if len(args) > 1 {
		return nil, Raise(TypeError, "dict expected at most 1 argument, got %d", len(args))
	}
	if len(args) == 1 {
		src, ok := args[0].(*Dict)
		if !ok {
			return nil, Raise(TypeError, "'%s' object is not a mapping", TypeName(args[0]))
		}
		for _, it := range src.Items() {
			_ = d.Set(it.Key, it.Value)
		}
	}
	for _, it := range kwargs.Items() {
		_ = d.Set(it.Key, it.Value)
	}
	return d, nil
}

package dynamic

import (
	"context"
	"math"
)

// CompareOp is a rich comparison operator.
type CompareOp int

const (
	Lt CompareOp = iota
	Le
	Eq
	Ne
	Gt
	Ge
)

func (op CompareOp) String() string {
	return [...]string{"<", "<=", "==", "!=", ">", ">="}[op]
}

// Reflected returns the operator to try on the right operand.
func (op CompareOp) Reflected() CompareOp {
	switch op {
	case Lt:
		return Gt
	case Le:
		return Ge
	case Gt:
		return Lt
	case Ge:
		return Le
	}
	return op
}

// RichComparer is implemented by objects with their own comparison
// semantics. Returning NotImplemented defers to the other operand.
type RichComparer interface {
	RichCompare(ctx context.Context, other Object, op CompareOp) (Object, error)
}

// Compare evaluates a op b.
func Compare(ctx context.Context, a, b Object, op CompareOp) (bool, error) {
	if a == nil {
		a = None
	}
	if b == nil {
		b = None
	}
	if r, ok, err := builtinCompare(ctx, a, b, op); ok || err != nil {
		return r, err
	}
	if rc, ok := a.(RichComparer); ok {
		res, err := rc.RichCompare(ctx, b, op)
		if err != nil {
			return false, err
		}
		if res != NotImplemented {
			return Truthy(res), nil
		}
	}
	if rc, ok := b.(RichComparer); ok {
		res, err := rc.RichCompare(ctx, a, op.Reflected())
		if err != nil {
			return false, err
		}
		if res != NotImplemented {
			return Truthy(res), nil
		}
	}
	switch op {
	case Eq:
		return a == b, nil
	case Ne:
		return a != b, nil
	}
	return false, Raise(TypeError, "'%s' not supported between instances of '%s' and '%s'", op, TypeName(a), TypeName(b))
}

// Equal reports a == b.
func Equal(ctx context.Context, a, b Object) (bool, error) {
	return Compare(ctx, a, b, Eq)
}

func number(o Object) (i int64, f float64, isFloat, ok bool) {
	switch x := o.(type) {
	case *Bool:
		if x.V {
			return 1, 0, false, true
		}
		return 0, 0, false, true
	case *Int:
		return x.V, 0, false, true
	case *Float:
		return 0, x.V, true, true
	}
	return 0, 0, false, false
}

func ordered(c int, op CompareOp) bool {
	switch op {
	case Lt:
		return c < 0
	case Le:
		return c <= 0
	case Eq:
		return c == 0
	case Ne:
		return c != 0
	case Gt:
		return c > 0
	}
	return c >= 0
}

func cmpFloat(a, b float64, op CompareOp) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return op == Ne
	}
	switch {
	case a < b:
		return ordered(-1, op)
	case a > b:
		return ordered(1, op)
	}
	return ordered(0, op)
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func builtinCompare(ctx context.Context, a, b Object, op CompareOp) (result, handled bool, err error) {
	if ai, af, afl, ok := number(a); ok {
		bi, bf, bfl, ok := number(b)
		if !ok {
			return false, false, nil
		}
		if !afl && !bfl {
			return ordered(cmpInt(ai, bi), op), true, nil
		}
		if !afl {
			af = float64(ai)
		}
		if !bfl {
			bf = float64(bi)
		}
		return cmpFloat(af, bf, op), true, nil
	}

	switch x := a.(type) {
	case *NoneObject:
		if _, ok := b.(*NoneObject); ok && (op == Eq || op == Ne) {
			return op == Eq, true, nil
		}
	case *Str:
		if y, ok := b.(*Str); ok {
			return ordered(compareRunes(x.runes, y.runes), op), true, nil
		}
	case *List:
		if y, ok := b.(*List); ok {
			return compareSeq(ctx, x.Items, y.Items, op)
		}
	case *Tuple:
		if y, ok := b.(*Tuple); ok {
			return compareSeq(ctx, x.Items, y.Items, op)
		}
	case *Dict:
		if y, ok := b.(*Dict); ok && (op == Eq || op == Ne) {
			eq, err := dictEqual(ctx, x, y)
			if err != nil {
				return false, true, err
			}
			return eq == (op == Eq), true, nil
		}
	case *Buffer:
		if y, ok := b.(*Buffer); ok && (op == Eq || op == Ne) {
			eq := x.Format == y.Format && string(x.Data) == string(y.Data)
			return eq == (op == Eq), true, nil
		}
	}
	return false, false, nil
}

func compareRunes(a, b []rune) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return cmpInt(int64(a[i]), int64(b[i]))
		}
	}
	return cmpInt(int64(len(a)), int64(len(b)))
}

func compareSeq(ctx context.Context, a, b []Object, op CompareOp) (bool, bool, error) {
	for i := 0; i < len(a) && i < len(b); i++ {
		eq, err := Equal(ctx, a[i], b[i])
		if err != nil {
			return false, true, err
		}
		if !eq {
			switch op {
			case Eq:
				return false, true, nil
			case Ne:
				return true, true, nil
			}
			r, err := Compare(ctx, a[i], b[i], op)
			return r, true, err
		}
	}
	return ordered(cmpInt(int64(len(a)), int64(len(b))), op), true, nil
}

func dictEqual(ctx context.Context, a, b *Dict) (bool, error) {
	if a.Len() != b.Len() {
		return false, nil
	}
	for _, it := range a.Items() {
		other, ok, err := b.Get(it.Key)
		if err != nil || !ok {
			return false, err
		}
		eq, err := Equal(ctx, it.Value, other)
		if err != nil || !eq {
			return false, err
		}
	}
	return true, nil
}

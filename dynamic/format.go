package dynamic

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Representer is implemented by objects with custom str() and repr()
// renderings.
type Representer interface {
	Str(ctx context.Context) (string, error)
	Repr(ctx context.Context) (string, error)
}

// ToStr renders o the way str() does.
func ToStr(ctx context.Context, o Object) (string, error) {
	switch x := o.(type) {
	case *Str:
		return x.String(), nil
	case *Exception:
		return x.Message(ctx), nil
	case Representer:
		return x.Str(ctx)
	}
	return Repr(ctx, o)
}

// Repr renders o the way repr() does.
func Repr(ctx context.Context, o Object) (string, error) {
	switch x := o.(type) {
	case nil, *NoneObject:
		return "None", nil
	case *Bool:
		return x.String(), nil
	case *Int:
		return strconv.FormatInt(x.V, 10), nil
	case *Float:
		return formatFloat(x.V), nil
	case *Str:
		return quote(x.runes), nil
	case *List:
		return joinRepr(ctx, "[", x.Items, "]")
	case *Tuple:
		if len(x.Items) == 1 {
			s, err := Repr(ctx, x.Items[0])
			return "(" + s + ",)", err
		}
		return joinRepr(ctx, "(", x.Items, ")")
	case *Dict:
		var b strings.Builder
		b.WriteByte('{')
		for i, it := range x.Items() {
			if i > 0 {
				b.WriteString(", ")
			}
			k, err := Repr(ctx, it.Key)
			if err != nil {
				return "", err
			}
			v, err := Repr(ctx, it.Value)
			if err != nil {
				return "", err
			}
			b.WriteString(k)
			b.WriteString(": ")
			b.WriteString(v)
		}
		b.WriteByte('}')
		return b.String(), nil
	case *Buffer:
		return fmt.Sprintf("<memory format=%q len=%d>", x.Format, x.Len()), nil
	case *Exception:
		return joinRepr(ctx, x.typ.Name+"(", x.Args, ")")
	case *Type:
		return x.String(), nil
	case *Function:
		return x.String(), nil
	case *BoundMethod:
		inner, err := Repr(ctx, x.Func)
		if err != nil {
			return "", err
		}
		return "<bound method " + strings.Trim(inner, "<>") + " of " + TypeName(x.Self) + " object>", nil
	case Representer:
		return x.Repr(ctx)
	}
	return fmt.Sprintf("<%s object at %p>", TypeName(o), o), nil
}

func joinRepr(ctx context.Context, open string, items []Object, close string) (string, error) {
	var b strings.Builder
	b.WriteString(open)
	for i, it := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		s, err := Repr(ctx, it)
		if err != nil {
			return "", err
		}
		b.WriteString(s)
	}
	b.WriteString(close)
	return b.String(), nil
}

func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eIn") {
		s += ".0"
	}
	return s
}

func quote(runes []rune) string {
	var b strings.Builder
	b.WriteByte('\'')
	for _, r := range runes {
		switch {
		case r == '\'' || r == '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\t':
			b.WriteString(`\t`)
		case r == '\r':
			b.WriteString(`\r`)
		case r >= 0xD800 && r <= 0xDFFF:
			fmt.Fprintf(&b, `\u%04x`, r)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&b, `\x%02x`, r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('\'')
	return b.String()
}

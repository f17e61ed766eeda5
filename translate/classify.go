package translate

import (
	"github.com/wippyai/embed-runtime/dynamic"
	"github.com/wippyai/embed-runtime/host"
)

// Rule maps a host throwable class, and every subclass without a closer
// rule, to a dynamic exception type.
type Rule struct {
	HostClass string
	Type      *dynamic.Type
}

// DefaultRules is the classification table used unless overridden.
var DefaultRules = []Rule{
	{"java.lang.ClassNotFoundException", dynamic.ImportError},
	{"java.util.NoSuchElementException", dynamic.KeyError},
	{"java.lang.NoSuchFieldException", dynamic.AttributeError},
	{"java.lang.NoSuchMethodException", dynamic.AttributeError},
	{"java.lang.IndexOutOfBoundsException", dynamic.IndexError},
	{"java.io.IOException", dynamic.OSError},
	{"java.lang.ClassCastException", dynamic.TypeError},
	{"java.lang.IllegalArgumentException", dynamic.ValueError},
	{"java.lang.ArithmeticException", dynamic.ArithmeticError},
	{"java.lang.OutOfMemoryError", dynamic.MemoryError},
	{"java.lang.AssertionError", dynamic.AssertionError},
	{"java.lang.UnsupportedOperationException", dynamic.NotImplementedError},
}

type table map[string]*dynamic.Type

func newTable(rules []Rule) table {
	t := make(table, len(rules))
	for _, r := range rules {
		t[r.HostClass] = r.Type
	}
	return t
}

// classify walks the superclass chain of c and returns the type of the
// nearest class with a rule, RuntimeError when none has one.
func (t table) classify(c *host.Type) *dynamic.Type {
	for ; c != nil; c = c.Superclass() {
		if typ, ok := t[c.Name()]; ok {
			return typ
		}
	}
	return dynamic.RuntimeError
}

package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/wippyai/embed-runtime/bridge"
	"github.com/wippyai/embed-runtime/dynamic"
	"github.com/wippyai/embed-runtime/host"
	"github.com/wippyai/embed-runtime/mirror"
)

// mirrorable lists the classes that can be looked up, sorted by name.
func mirrorable(cp *host.ClassPath) []string {
	var names []string
	for _, t := range cp.Classes() {
		if t.IsPrimitive() || t.IsArray() {
			continue
		}
		names = append(names, t.Name())
	}
	return names
}

type typeInfo struct {
	name    string
	kind    string
	mro     []string
	fields  []string
	members []memberInfo
	ctors   []string
	call    string
}

type memberInfo struct {
	name      string
	overloads []string
}

func describe(mt *mirror.MirroredType) typeInfo {
	ti := typeInfo{name: mt.Name(), kind: "class"}
	switch {
	case mt.Host().IsInterface():
		ti.kind = "interface"
	case mt.Host().IsAbstract():
		ti.kind = "abstract class"
	}
	for _, e := range mt.MRO() {
		ti.mro = append(ti.mro, e.Name())
	}
	for _, f := range mt.Fields() {
		hf := f.Field()
		decl := hf.Type.Name() + " " + hf.Name
		if hf.Final {
			decl = "final " + decl
		}
		if hf.Static {
			decl = "static " + decl
		}
		ti.fields = append(ti.fields, decl)
	}
	for _, name := range mt.MethodNames() {
		member, _ := mt.Method(name)
		mi := memberInfo{name: name}
		for _, w := range member.Overloads() {
			sig := w.Signature()
			if w.Static() {
				sig = "static " + sig
			}
			mi.overloads = append(mi.overloads, sig)
		}
		ti.members = append(ti.members, mi)
	}
	if d := mt.Constructors(); d != nil {
		for _, w := range d.Overloads() {
			ti.ctors = append(ti.ctors, w.Signature())
		}
	}
	if alias, ok := mt.Functional(); ok {
		ti.call = alias
	}
	return ti
}

// styler matches lipgloss.Style.Render.
type styler func(...string) string

func plain(s ...string) string { return strings.Join(s, " ") }

func (ti typeInfo) render(title, section, item styler) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", title(ti.name), ti.kind)
	fmt.Fprintf(&b, "\n%s\n  %s\n", section("MRO"), strings.Join(ti.mro, " -> "))
	if len(ti.ctors) > 0 {
		fmt.Fprintf(&b, "\n%s\n", section("Constructors"))
		for _, c := range ti.ctors {
			fmt.Fprintf(&b, "  %s\n", item(c))
		}
	}
	if len(ti.fields) > 0 {
		fmt.Fprintf(&b, "\n%s\n", section("Fields"))
		for _, f := range ti.fields {
			fmt.Fprintf(&b, "  %s\n", item(f))
		}
	}
	if len(ti.members) > 0 {
		fmt.Fprintf(&b, "\n%s\n", section("Methods"))
		for _, m := range ti.members {
			for _, o := range m.overloads {
				fmt.Fprintf(&b, "  %s\n", item(o))
			}
		}
	}
	if ti.call != "" {
		fmt.Fprintf(&b, "\nCallable through %s\n", item(ti.call))
	}
	return b.String()
}

// parseArgs turns a comma-separated literal list into dynamic values:
// integers, floats, true/false, None, and anything else as a string.
// Double quotes keep commas and force a string.
func parseArgs(s string) ([]dynamic.Object, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []dynamic.Object
	for _, raw := range splitArgs(s) {
		lit := strings.TrimSpace(raw)
		if strings.HasPrefix(lit, `"`) {
			u, err := strconv.Unquote(lit)
			if err != nil {
				return nil, fmt.Errorf("argument %s: %w", lit, err)
			}
			out = append(out, dynamic.NewStr(u))
			continue
		}
		out = append(out, literal(lit))
	}
	return out, nil
}

func literal(lit string) dynamic.Object {
	switch lit {
	case "true", "True":
		return dynamic.True
	case "false", "False":
		return dynamic.False
	case "None", "null":
		return dynamic.None
	}
	if i, err := strconv.ParseInt(lit, 10, 64); err == nil {
		return dynamic.NewInt(i)
	}
	if f, err := strconv.ParseFloat(lit, 64); err == nil {
		return dynamic.NewFloat(f)
	}
	return dynamic.NewStr(lit)
}

func splitArgs(s string) []string {
	var (
		parts  []string
		cur    strings.Builder
		quoted bool
		escape bool
	)
	for _, r := range s {
		switch {
		case escape:
			escape = false
		case r == '\\' && quoted:
			escape = true
		case r == '"':
			quoted = !quoted
		case r == ',' && !quoted:
			parts = append(parts, cur.String())
			cur.Reset()
			continue
		}
		cur.WriteRune(r)
	}
	return append(parts, cur.String())
}

// invoke resolves method on the mirrored type for args and runs it when
// the chosen overload is static. Instance overloads are reported only.
func invoke(ctx context.Context, b *bridge.Bridge, mt *mirror.MirroredType, method string, args []dynamic.Object) (string, error) {
	member, ok := mt.Resolve(method)
	if !ok {
		return "", fmt.Errorf("%s has no method %q", mt.Name(), method)
	}
	var w *mirror.MethodWrapper
	switch m := member.(type) {
	case *mirror.MethodWrapper:
		w = m
	case *mirror.Dispatcher:
		sel, err := m.Select(args)
		if err != nil {
			return "", err
		}
		w = sel
	default:
		return "", fmt.Errorf("%s.%s is not a method", mt.Name(), method)
	}
	if !w.Static() {
		return "selected " + w.Signature() + " (instance method, not called)", nil
	}
	res, err := b.Invoke(ctx, mt.DynamicType(), method, args...)
	if err != nil {
		return "", err
	}
	s, err := dynamic.Repr(ctx, res)
	if err != nil {
		return "", err
	}
	return w.Signature() + " -> " + s, nil
}

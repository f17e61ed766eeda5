package overload

import (
	"testing"

	"github.com/wippyai/embed-runtime/dynamic"
	"github.com/wippyai/embed-runtime/errors"
	"github.com/wippyai/embed-runtime/host"
	"github.com/wippyai/embed-runtime/marshal"
	"github.com/wippyai/embed-runtime/ownership"
)

func setup(t *testing.T) (*host.ClassPath, ScoreFunc) {
	t.Helper()
	cp := host.Standard()
	conv := marshal.New(cp, ownership.NewArena[dynamic.Object]("dynamic"), marshal.Options{})
	return cp, conv.Score
}

func params(cp *host.ClassPath, names ...string) []*host.Type {
	out := make([]*host.Type, len(names))
	for i, n := range names {
		out[i] = cp.MustLookup(n)
	}
	return out
}

func TestIntBeatsLong(t *testing.T) {
	cp, score := setup(t)
	cands := []Candidate{
		{Params: params(cp, "long")},
		{Params: params(cp, "int")},
	}

	for i := 0; i < 50; i++ {
		sel, err := Resolve("f", cands, []dynamic.Object{dynamic.NewInt(7)}, score)
		if err != nil {
			t.Fatal(err)
		}
		if sel.Index != 1 {
			t.Fatalf("iteration %d selected f(%s)", i, cands[sel.Index].Params[0].Name())
		}
	}

	sel, err := Resolve("f", cands, []dynamic.Object{dynamic.NewInt(1 << 40)}, score)
	if err != nil {
		t.Fatal(err)
	}
	if sel.Index != 0 {
		t.Fatal("value outside int range did not select f(long)")
	}
}

func TestSpecificityLadder(t *testing.T) {
	cp, score := setup(t)
	tests := []struct {
		name  string
		cands [][]string
		args  []dynamic.Object
		want  int
	}{
		{"double over Object", [][]string{{host.ObjectClass}, {"double"}}, []dynamic.Object{dynamic.NewFloat(1)}, 1},
		{"String over Object", [][]string{{host.ObjectClass}, {host.StringClass}}, []dynamic.Object{dynamic.NewStr("s")}, 1},
		{"CharSequence over Object", [][]string{{host.ObjectClass}, {host.CharSequenceInterface}}, []dynamic.Object{dynamic.NewStr("s")}, 1},
		{"Integer over Long", [][]string{{host.LongClass}, {host.IntegerClass}}, []dynamic.Object{dynamic.NewInt(3)}, 1},
		{"boolean over Object", [][]string{{host.ObjectClass}, {"boolean"}}, []dynamic.Object{dynamic.True}, 1},
		{"None skips primitive", [][]string{{"int"}, {host.StringClass}}, []dynamic.Object{dynamic.None}, 1},
		{"list prefers int[]", [][]string{{"int[]"}, {host.ObjectClass}}, []dynamic.Object{dynamic.NewList(dynamic.NewInt(1))}, 0},
		{"two args summed", [][]string{{"int", host.ObjectClass}, {host.ObjectClass, "int"}, {"int", "int"}}, []dynamic.Object{dynamic.NewInt(1), dynamic.NewInt(2)}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cands := make([]Candidate, len(tt.cands))
			for i, p := range tt.cands {
				cands[i] = Candidate{Params: params(cp, p...)}
			}
			sel, err := Resolve("m", cands, tt.args, score)
			if err != nil {
				t.Fatal(err)
			}
			if sel.Index != tt.want {
				t.Fatalf("selected %d, want %d", sel.Index, tt.want)
			}
		})
	}
}

func TestAmbiguousOverloads(t *testing.T) {
	cp, score := setup(t)
	cands := []Candidate{
		{Params: params(cp, host.ComparableInterface), Label: "g(Comparable)"},
		{Params: params(cp, host.SerializableInterface), Label: "g(Serializable)"},
	}
	_, err := Resolve("g", cands, []dynamic.Object{dynamic.NewStr("x")}, score)
	if !errors.IsKind(err, errors.KindAmbiguous) {
		t.Fatalf("expected ambiguity, got %v", err)
	}

	// reversing declaration order must not change the outcome
	cands[0], cands[1] = cands[1], cands[0]
	if _, err := Resolve("g", cands, []dynamic.Object{dynamic.NewStr("x")}, score); !errors.IsKind(err, errors.KindAmbiguous) {
		t.Fatalf("expected ambiguity after reorder, got %v", err)
	}
}

func TestTieBrokenBySubtype(t *testing.T) {
	cp, _ := setup(t)
	flat := func(dynamic.Object, *host.Type) int { return 10 }
	tests := []struct {
		name  string
		cands [][]string
		want  int
	}{
		{"String under Object", [][]string{{host.ObjectClass}, {host.StringClass}}, 1},
		{"CharSequence under Object", [][]string{{host.CharSequenceInterface}, {host.ObjectClass}}, 0},
		{"every position narrower", [][]string{{host.ObjectClass, host.StringClass}, {host.StringClass, host.StringClass}}, 1},
		{"unrelated interfaces", [][]string{{host.ComparableInterface}, {host.SerializableInterface}}, -1},
		{"crossed positions", [][]string{{host.ObjectClass, host.StringClass}, {host.StringClass, host.ObjectClass}}, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cands := make([]Candidate, len(tt.cands))
			for i, p := range tt.cands {
				cands[i] = Candidate{Params: params(cp, p...)}
			}
			args := make([]dynamic.Object, len(tt.cands[0]))
			for i := range args {
				args[i] = dynamic.NewStr("s")
			}
			sel, err := Resolve("m", cands, args, flat)
			if tt.want < 0 {
				if !errors.IsKind(err, errors.KindAmbiguous) {
					t.Fatalf("expected ambiguity, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if sel.Index != tt.want {
				t.Fatalf("selected %d, want %d", sel.Index, tt.want)
			}
		})
	}
}

func TestNoOverload(t *testing.T) {
	cp, score := setup(t)
	cands := []Candidate{
		{Params: params(cp, "int")},
		{Params: params(cp, "long")},
	}
	_, err := Resolve("f", cands, []dynamic.Object{dynamic.NewStr("x")}, score)
	if !errors.IsKind(err, errors.KindNoOverload) {
		t.Fatalf("expected no overload, got %v", err)
	}
	if want := "no matching overload for f(str)"; err.(*errors.Error).Detail != want {
		t.Fatalf("detail = %q, want %q", err.(*errors.Error).Detail, want)
	}

	_, err = Resolve("f", cands, nil, score)
	if !errors.IsKind(err, errors.KindNoOverload) {
		t.Fatalf("arity mismatch: %v", err)
	}
}

func TestSingleCandidateSkipsScoring(t *testing.T) {
	cp, _ := setup(t)
	called := false
	score := func(dynamic.Object, *host.Type) int {
		called = true
		return 0
	}
	cands := []Candidate{
		{Params: params(cp, "int")},
		{Params: params(cp, "int", "int")},
	}
	sel, err := Resolve("f", cands, []dynamic.Object{dynamic.NewStr("not an int")}, score)
	if err != nil {
		t.Fatal(err)
	}
	if called || sel.Index != 0 || sel.Score != -1 {
		t.Fatalf("fast path not taken: called=%v sel=%+v", called, sel)
	}
}

func TestVarargsPacking(t *testing.T) {
	cp, score := setup(t)
	cands := []Candidate{
		{Params: params(cp, host.StringClass, "java.lang.Object[]"), Varargs: true},
		{Params: params(cp, host.StringClass)},
	}

	sel, err := Resolve("format", cands, []dynamic.Object{dynamic.NewStr("%d %d"), dynamic.NewInt(1), dynamic.NewInt(2)}, score)
	if err != nil {
		t.Fatal(err)
	}
	if sel.Index != 0 || !sel.Packed || len(sel.Args) != 2 {
		t.Fatalf("selection = %+v", sel)
	}
	tuple, ok := sel.Args[1].(*dynamic.Tuple)
	if !ok || len(tuple.Items) != 2 {
		t.Fatalf("packed = %v", sel.Args[1])
	}

	// exact arity wins before packing
	sel, err = Resolve("format", cands, []dynamic.Object{dynamic.NewStr("x")}, score)
	if err != nil || sel.Index != 1 || sel.Packed {
		t.Fatalf("exact arity: %+v, %v", sel, err)
	}

	// an array passed in the variadic slot is not packed again
	sel, err = Resolve("format", cands, []dynamic.Object{dynamic.NewStr("x"), dynamic.NewList(dynamic.NewInt(1))}, score)
	if err != nil || sel.Index != 0 || sel.Packed {
		t.Fatalf("array in variadic slot: %+v, %v", sel, err)
	}
}

func TestVarargsScalarInLastSlot(t *testing.T) {
	cp, score := setup(t)
	cands := []Candidate{
		{Params: params(cp, "java.lang.String[]"), Varargs: true},
		{Params: params(cp, "int", "int")},
	}
	sel, err := Resolve("join", cands, []dynamic.Object{dynamic.NewStr("a")}, score)
	if err != nil {
		t.Fatal(err)
	}
	if !sel.Packed {
		t.Fatal("scalar in variadic slot was not packed")
	}
	if tuple := sel.Args[0].(*dynamic.Tuple); len(tuple.Items) != 1 {
		t.Fatalf("packed = %v", tuple.Items)
	}

	sel, err = Resolve("join", cands, nil, score)
	if err != nil || !sel.Packed || len(sel.Args[0].(*dynamic.Tuple).Items) != 0 {
		t.Fatalf("empty varargs: %+v, %v", sel, err)
	}
}

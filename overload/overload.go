package overload

import (
	"github.com/wippyai/embed-runtime/dynamic"
	"github.com/wippyai/embed-runtime/errors"
	"github.com/wippyai/embed-runtime/host"
)

// Candidate describes one overload.
type Candidate struct {
	Params  []*host.Type
	Varargs bool
	// Label names the overload in ambiguity errors.
	Label string
}

// ScoreFunc rates the conversion of v to param; 0 means incompatible.
type ScoreFunc func(v dynamic.Object, param *host.Type) int

// Selection is the result of a successful resolution.
type Selection struct {
	// Index of the chosen candidate in the input slice.
	Index int
	// Args are the arguments to pass, with variadic arguments packed.
	Args []dynamic.Object
	// Score is the total match score, or -1 when scoring was skipped.
	Score  int
	Packed bool
}

// Resolve selects the overload of name to call with args.
func Resolve(name string, cands []Candidate, args []dynamic.Object, score ScoreFunc) (Selection, error) {
	exact := make([]int, 0, len(cands))
	for i, c := range cands {
		if len(c.Params) == len(args) {
			exact = append(exact, i)
		}
	}

	if len(exact) == 1 && !cands[exact[0]].Varargs {
		debugf("%s: single candidate of arity %d", name, len(args))
		return Selection{Index: exact[0], Args: args, Score: -1}, nil
	}

	if len(exact) > 0 {
		sel, ok, err := best(name, cands, exact, args, score)
		if err != nil || ok {
			return sel, err
		}
	}

	var variadic []int
	for i, c := range cands {
		if c.Varargs && len(c.Params) > 0 && len(args) >= len(c.Params)-1 {
			variadic = append(variadic, i)
		}
	}
	if len(variadic) == 0 {
		return Selection{}, errors.NoOverload(name, typeNames(args))
	}

	// candidates sharing a fixed prefix length share the packed form
	packed := make(map[int][]dynamic.Object, len(variadic))
	for _, i := range variadic {
		n := len(cands[i].Params) - 1
		if _, ok := packed[n]; !ok {
			packed[n] = pack(args, n)
		}
	}

	if len(variadic) == 1 {
		i := variadic[0]
		debugf("%s: single variadic candidate", name)
		return Selection{Index: i, Args: packed[len(cands[i].Params)-1], Score: -1, Packed: true}, nil
	}

	top, topScore, tied := -1, 0, []int(nil)
	for _, i := range variadic {
		s := total(cands[i].Params, packed[len(cands[i].Params)-1], score)
		switch {
		case s == 0:
		case s > topScore:
			top, topScore, tied = i, s, tied[:0]
		case s == topScore:
			tied = append(tied, i)
		}
	}
	if top < 0 {
		return Selection{}, errors.NoOverload(name, typeNames(args))
	}
	if len(tied) > 0 {
		set := append([]int{top}, tied...)
		if top = mostSpecific(cands, set); top < 0 {
			return Selection{}, ambiguous(name, cands, set, args)
		}
		debugf("%s: tie broken by most specific variadic candidate %d", name, top)
	}
	return Selection{Index: top, Args: packed[len(cands[top].Params)-1], Score: topScore, Packed: true}, nil
}

// best scores the fixed-arity candidates. ok is false when none of them is
// compatible, letting the caller fall back to variadic packing.
func best(name string, cands []Candidate, idx []int, args []dynamic.Object, score ScoreFunc) (Selection, bool, error) {
	top, topScore := -1, 0
	var tied []int
	for _, i := range idx {
		s := total(cands[i].Params, args, score)
		switch {
		case s == 0:
		case s > topScore:
			top, topScore, tied = i, s, tied[:0]
		case s == topScore:
			tied = append(tied, i)
		}
	}
	if top < 0 {
		return Selection{}, false, nil
	}
	if len(tied) > 0 {
		set := append([]int{top}, tied...)
		if top = mostSpecific(cands, set); top < 0 {
			return Selection{}, false, ambiguous(name, cands, set, args)
		}
	}
	debugf("%s: selected candidate %d with score %d", name, top, topScore)
	return Selection{Index: top, Args: args, Score: topScore}, true, nil
}

// mostSpecific returns the tied candidate whose every parameter is
// assignable to the matching parameter of each other tied candidate, or -1
// when no single candidate dominates.
func mostSpecific(cands []Candidate, set []int) int {
	found := -1
	for _, i := range set {
		dominates := true
		for _, j := range set {
			if i != j && !narrower(cands[i].Params, cands[j].Params) {
				dominates = false
				break
			}
		}
		if dominates {
			if found >= 0 {
				return -1
			}
			found = i
		}
	}
	return found
}

// narrower reports whether a is at least as specific as b in every
// position and differs from it in one.
func narrower(a, b []*host.Type) bool {
	if len(a) != len(b) {
		return false
	}
	differs := false
	for k := range a {
		if a[k] == b[k] {
			continue
		}
		if a[k].Distance(b[k]) < 0 {
			return false
		}
		differs = true
	}
	return differs
}

// total sums per-argument scores; any incompatible argument makes the
// whole candidate incompatible.
func total(params []*host.Type, args []dynamic.Object, score ScoreFunc) int {
	if len(params) != len(args) {
		return 0
	}
	sum := 0
	for i, p := range params {
		s := score(args[i], p)
		if s <= 0 {
			return 0
		}
		sum += s
	}
	if len(params) == 0 {
		return 1
	}
	return sum
}

func pack(args []dynamic.Object, fixed int) []dynamic.Object {
	out := make([]dynamic.Object, fixed+1)
	copy(out, args[:fixed])
	rest := make([]dynamic.Object, len(args)-fixed)
	copy(rest, args[fixed:])
	out[fixed] = dynamic.NewTuple(rest...)
	return out
}

func ambiguous(name string, cands []Candidate, idx []int, args []dynamic.Object) error {
	labels := make([]string, len(idx))
	for i, c := range idx {
		labels[i] = cands[c].Label
		if labels[i] == "" {
			labels[i] = signature(name, cands[c].Params)
		}
	}
	return errors.Ambiguous(name, typeNames(args), labels)
}

func signature(name string, params []*host.Type) string {
	s := name + "("
	for i, p := range params {
		if i > 0 {
			s += ","
		}
		s += p.Name()
	}
	return s + ")"
}

func typeNames(args []dynamic.Object) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = dynamic.TypeName(a)
	}
	return out
}

package marshal

import (
	"github.com/wippyai/embed-runtime/dynamic"
	"github.com/wippyai/embed-runtime/host"
)

// Match scores. Zero means the argument cannot be converted.
const (
	ScoreExact       = 60 // the natural primitive of the value
	ScoreWidened     = 50 // long for a value that fits an int, float for a double
	ScoreExactClass  = 45 // same-size box or the exact reference class
	ScoreOtherBox    = 40 // other box of the same family
	ScoreFunctional  = 40 // functional interface for a callable
	ScoreContainer   = 40 // collection target at distance 0, lowered per step
	ScoreCallable    = 35 // generic callable wrapper
	ScoreArray       = 35 // array whose elements all convert
	ScoreNarrow      = 30 // short, byte or char when the value fits
	ScoreNarrowBox   = 25 // Short, Byte or Character when the value fits
	ScoreIntToFloat  = 20 // integer to floating point
	ScoreNull        = 5  // None to any reference
	ScoreDynamicWrap = 5  // generic dynamic object wrapper

	minContainerScore = 30
	maxWidenScore     = 30
	minWidenScore     = 10
)

// widen scores the reference conversion from src to param by inheritance
// distance. java.lang.Object is the root of every type, interfaces
// included, so it ranks below any other supertype at any distance.
func widen(src, param *host.Type) int {
	dist := src.Distance(param)
	switch {
	case dist < 0:
		return 0
	case dist == 0:
		return ScoreExactClass
	case param.Name() == host.ObjectClass:
		return minWidenScore
	}
	return max(maxWidenScore-dist, minWidenScore+1)
}

func (c *Converter) refScore(src, param *host.Type) int {
	if !param.IsReference() {
		return 0
	}
	return widen(src, param)
}

// Score rates how well v converts to param. Zero means incompatible;
// higher scores denote more specific matches. Integer range is part of
// compatibility, so an Int that does not fit an int scores 0 for it.
func (c *Converter) Score(v dynamic.Object, param *host.Type) int {
	if v == nil || v == dynamic.None {
		if param.IsReference() {
			return ScoreNull
		}
		return 0
	}

	if o, ok, err := c.unwrap(v); err != nil {
		return 0
	} else if ok {
		if s := c.refScore(o.Class(), param); s > 0 {
			return s
		}
		if param.IsPrimitive() {
			if pv, ok := host.Unbox(o); ok {
				if k, _ := host.KindOf(pv); k == param.Kind() {
					return ScoreExact
				}
			}
		}
		return 0
	}

	switch x := v.(type) {
	case *dynamic.Bool:
		if param.Kind() == host.KindBoolean {
			return ScoreExact
		}
		return c.refScore(c.classes.MustLookup(host.BooleanClass), param)
	case *dynamic.Int:
		return c.intScore(x.V, param)
	case *dynamic.Float:
		return c.floatScore(param)
	case *dynamic.Str:
		return c.strScore(x, param)
	case *dynamic.List:
		if s := c.seqScore(x.Items, c.arrayList, param); s > 0 {
			return s
		}
	case *dynamic.Tuple:
		target := c.unmodList
		if param == c.arrayList {
			target = c.arrayList
		}
		if s := c.seqScore(x.Items, target, param); s > 0 {
			return s
		}
	case *dynamic.Dict:
		if s := containerScore(c.hashMap, param); s > 0 {
			return s
		}
	case *dynamic.Buffer:
		if param.IsArray() && param.Component().IsPrimitive() {
			if bufferMatches(x, param.Component().Kind()) {
				return ScoreExactClass
			}
			return 0
		}
	}

	if dynamic.IsCallable(v) {
		if param.IsFunctional() {
			return ScoreFunctional
		}
		if param.IsReference() && param.AssignableFrom(c.dynCallable) {
			return ScoreCallable - c.dynCallable.Distance(param)
		}
	}
	if param.IsReference() && param.AssignableFrom(c.dynObject) {
		return ScoreDynamicWrap
	}
	return 0
}

func (c *Converter) intScore(v int64, param *host.Type) int {
	switch param.Kind() {
	case host.KindInt:
		if fits(v, 32) {
			return ScoreExact
		}
		return 0
	case host.KindLong:
		if fits(v, 32) {
			return ScoreWidened
		}
		return ScoreExact
	case host.KindShort:
		if fits(v, 16) {
			return ScoreNarrow
		}
		return 0
	case host.KindByte:
		if fits(v, 8) {
			return ScoreNarrow
		}
		return 0
	case host.KindFloat, host.KindDouble:
		return ScoreIntToFloat
	case host.KindBoolean, host.KindChar, host.KindVoid:
		return 0
	}

	if k, ok := host.UnboxKind(param); ok {
		switch k {
		case host.KindInt:
			if fits(v, 32) {
				return ScoreExactClass
			}
		case host.KindLong:
			return ScoreOtherBox
		case host.KindShort:
			if fits(v, 16) {
				return ScoreNarrowBox
			}
		case host.KindByte:
			if fits(v, 8) {
				return ScoreNarrowBox
			}
		case host.KindFloat, host.KindDouble:
			return ScoreIntToFloat
		}
		return 0
	}
	return c.refScore(c.classes.MustLookup(host.LongClass), param)
}

func (c *Converter) floatScore(param *host.Type) int {
	switch param.Kind() {
	case host.KindDouble:
		return ScoreExact
	case host.KindFloat:
		return ScoreWidened
	}
	if param.IsPrimitive() {
		return 0
	}
	if k, ok := host.UnboxKind(param); ok {
		switch k {
		case host.KindDouble:
			return ScoreExactClass
		case host.KindFloat:
			return ScoreOtherBox
		}
		return 0
	}
	return c.refScore(c.classes.MustLookup(host.DoubleClass), param)
}

func (c *Converter) strScore(s *dynamic.Str, param *host.Type) int {
	if param == c.str {
		return ScoreExactClass
	}
	// unencodable text still matches string types, so conversion reports
	// the bad code point rather than resolution finding no overload
	units, err := RunesToUnits(s.Runes())
	single := err == nil && len(units) == 1
	switch {
	case param.Kind() == host.KindChar:
		if single {
			return ScoreNarrow
		}
		return 0
	case param.Name() == host.CharacterClass:
		if single {
			return ScoreNarrowBox
		}
		return 0
	}
	return c.refScore(c.str, param)
}

func (c *Converter) seqScore(items []dynamic.Object, target, param *host.Type) int {
	if param.IsArray() {
		comp := param.Component()
		for _, it := range items {
			if c.Score(it, comp) == 0 {
				return 0
			}
		}
		return ScoreArray
	}
	return containerScore(target, param)
}

// containerScore rates a converted collection of class target. Marker
// types every object satisfies only score as reference widening.
func containerScore(target, param *host.Type) int {
	if !param.IsReference() || !param.AssignableFrom(target) {
		return 0
	}
	switch param.Name() {
	case host.ObjectClass, host.SerializableInterface, host.CloneableInterface:
		return widen(target, param)
	}
	return max(ScoreContainer-target.Distance(param), minContainerScore)
}

package marshal

import (
	"unicode"
	"unicode/utf16"

	"github.com/wippyai/embed-runtime/errors"
	"github.com/wippyai/embed-runtime/host"
)

// UnitsToRunes decodes host UTF-16 code units. Well-formed surrogate pairs
// combine into one code point; unpaired surrogates pass through as code
// points of their own.
func UnitsToRunes(units []uint16) []rune {
	out := make([]rune, 0, len(units))
	for i := 0; i < len(units); i++ {
		u := rune(units[i])
		if utf16.IsSurrogate(u) && u < 0xDC00 && i+1 < len(units) {
			if r := utf16.DecodeRune(u, rune(units[i+1])); r != 0xFFFD {
				out = append(out, r)
				i++
				continue
			}
		}
		out = append(out, u)
	}
	return out
}

// RunesToUnits encodes code points as UTF-16. Surrogate code points are
// emitted as single units so text decoded by UnitsToRunes round-trips
// exactly. Values outside the Unicode range have no encoding and fail the
// conversion.
func RunesToUnits(runes []rune) ([]uint16, error) {
	out := make([]uint16, 0, len(runes))
	for i, r := range runes {
		switch {
		case r < 0 || r > unicode.MaxRune:
			return nil, errors.New(errors.PhaseMarshal, errors.KindInvalidInput).
				HostType(host.StringClass).
				Value(r).
				Detail("code point %#x at index %d is outside the Unicode range", r, i).
				Build()
		case r >= 0x10000:
			hi, lo := utf16.EncodeRune(r)
			out = append(out, uint16(hi), uint16(lo))
		default:
			out = append(out, uint16(r))
		}
	}
	return out, nil
}

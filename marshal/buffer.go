package marshal

import (
	"encoding/binary"
	"math"

	"github.com/wippyai/embed-runtime/dynamic"
	"github.com/wippyai/embed-runtime/errors"
	"github.com/wippyai/embed-runtime/host"
)

// bufferKinds maps buffer formats to the primitive component they copy
// into bit for bit.
var bufferKinds = map[string]host.Kind{
	"?": host.KindBoolean,
	"b": host.KindByte,
	"H": host.KindChar,
	"h": host.KindShort,
	"i": host.KindInt,
	"q": host.KindLong,
	"f": host.KindFloat,
	"d": host.KindDouble,
}

// bufferMatches reports whether b can be copied into a primitive array of
// component kind k.
func bufferMatches(b *dynamic.Buffer, k host.Kind) bool {
	bk, ok := bufferKinds[b.Format]
	return ok && bk == k
}

// bufferToHost copies little-endian buffer memory into a new primitive
// array.
func (c *Converter) bufferToHost(b *dynamic.Buffer, expected *host.Type, path []string) (host.Value, error) {
	comp := expected.Component()
	if !bufferMatches(b, comp.Kind()) {
		return nil, errors.New(errors.PhaseMarshal, errors.KindTypeMismatch).
			Path(path...).
			HostType(expected.Name()).
			DynType("memoryview").
			Detail("buffer format %q does not match %s", b.Format, expected.Name()).
			Build()
	}

	n := b.Len()
	arr := c.classes.NewArray(comp, n)
	data, _ := host.ArrayData(arr)
	le := binary.LittleEndian
	switch d := data.(type) {
	case []bool:
		for i := range d {
			d[i] = b.Data[i] != 0
		}
	case []int8:
		for i := range d {
			d[i] = int8(b.Data[i])
		}
	case []uint16:
		for i := range d {
			d[i] = le.Uint16(b.Data[2*i:])
		}
	case []int16:
		for i := range d {
			d[i] = int16(le.Uint16(b.Data[2*i:]))
		}
	case []int32:
		for i := range d {
			d[i] = int32(le.Uint32(b.Data[4*i:]))
		}
	case []int64:
		for i := range d {
			d[i] = int64(le.Uint64(b.Data[8*i:]))
		}
	case []float32:
		for i := range d {
			d[i] = math.Float32frombits(le.Uint32(b.Data[4*i:]))
		}
	case []float64:
		for i := range d {
			d[i] = math.Float64frombits(le.Uint64(b.Data[8*i:]))
		}
	}
	return arr, nil
}

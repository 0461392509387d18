package ergstruct

import (
	"bytes"
	"fmt"
	"slices"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"gonum.org/v1/gonum/floats"
)

// Column is an immutable vector of samples of one primitive type. The
// underlying slice is one of []float32, []float64, []int64, []uint64,
// []int32, []uint32, []int16, []uint16, []int8, []uint8 or [][]byte.
type Column struct {
	typ  PrimitiveType
	data any
}

type number interface {
	~float32 | ~float64 | ~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// NewColumn infers the primitive type from the element type of samples.
// Text columns ([]string or [][]byte) become the narrowest byte blob type
// that holds the longest element. The samples are copied.
func NewColumn(samples any) (Column, error) {
	switch s := samples.(type) {
	case []float32:
		return Column{typ: Float, data: slices.Clone(s)}, nil
	case []float64:
		return Column{typ: Double, data: slices.Clone(s)}, nil
	case []int64:
		return Column{typ: LongLong, data: slices.Clone(s)}, nil
	case []uint64:
		return Column{typ: ULongLong, data: slices.Clone(s)}, nil
	case []int32:
		return Column{typ: Int, data: slices.Clone(s)}, nil
	case []uint32:
		return Column{typ: UInt, data: slices.Clone(s)}, nil
	case []int16:
		return Column{typ: Short, data: slices.Clone(s)}, nil
	case []uint16:
		return Column{typ: UShort, data: slices.Clone(s)}, nil
	case []int8:
		return Column{typ: Char, data: slices.Clone(s)}, nil
	case []uint8:
		return Column{typ: UChar, data: slices.Clone(s)}, nil
	case []string:
		blobs := make([][]byte, len(s))
		for i, v := range s {
			blobs[i] = []byte(v)
		}
		return newBytesColumn(blobs)
	case [][]byte:
		blobs := make([][]byte, len(s))
		for i, b := range s {
			blobs[i] = bytes.Clone(b)
		}
		return newBytesColumn(blobs)
	}
	return Column{}, fmt.Errorf("no primitive type for %T", samples)
}

func newBytesColumn(blobs [][]byte) (Column, error) {
	width := 1
	for _, b := range blobs {
		width = max(width, len(b))
	}
	t, err := BytesType(width)
	if err != nil {
		return Column{}, err
	}
	return Column{typ: t, data: blobs}, nil
}

func (c Column) Type() PrimitiveType {
	return c.typ
}

func (c Column) Len() int {
	switch d := c.data.(type) {
	case []float32:
		return len(d)
	case []float64:
		return len(d)
	case []int64:
		return len(d)
	case []uint64:
		return len(d)
	case []int32:
		return len(d)
	case []uint32:
		return len(d)
	case []int16:
		return len(d)
	case []uint16:
		return len(d)
	case []int8:
		return len(d)
	case []uint8:
		return len(d)
	case [][]byte:
		return len(d)
	}
	return 0
}

// Data returns the underlying typed slice. Callers must not modify it.
func (c Column) Data() any {
	return c.data
}

func widen[T number](in []T) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}

// Float64s returns a copy of a numeric column as float64. It returns nil for
// byte blob columns.
func (c Column) Float64s() []float64 {
	switch d := c.data.(type) {
	case []float32:
		return widen(d)
	case []float64:
		return append([]float64(nil), d...)
	case []int64:
		return widen(d)
	case []uint64:
		return widen(d)
	case []int32:
		return widen(d)
	case []uint32:
		return widen(d)
	case []int16:
		return widen(d)
	case []uint16:
		return widen(d)
	case []int8:
		return widen(d)
	case []uint8:
		return widen(d)
	}
	return nil
}

// Strings renders a byte blob column as text using enc, UTF-8 when enc is
// nil. Trailing NUL padding is dropped and undecodable bytes are replaced.
// It returns nil for numeric columns.
func (c Column) Strings(enc encoding.Encoding) []string {
	blobs, ok := c.data.([][]byte)
	if !ok {
		return nil
	}
	if enc == nil {
		enc = unicode.UTF8
	}
	dec := enc.NewDecoder()
	out := make([]string, len(blobs))
	for i, b := range blobs {
		b = bytes.TrimRight(b, "\x00")
		s, err := dec.Bytes(b)
		if err != nil {
			out[i] = string(b)
			continue
		}
		out[i] = string(s)
	}
	return out
}

// Values returns every sample boxed in its native Go type; byte blobs are
// rendered as text with enc.
func (c Column) Values(enc encoding.Encoding) []any {
	if c.typ.IsBytes() {
		strs := c.Strings(enc)
		out := make([]any, len(strs))
		for i, s := range strs {
			out[i] = s
		}
		return out
	}
	out := make([]any, 0, c.Len())
	switch d := c.data.(type) {
	case []float32:
		out = appendBoxed(out, d)
	case []float64:
		out = appendBoxed(out, d)
	case []int64:
		out = appendBoxed(out, d)
	case []uint64:
		out = appendBoxed(out, d)
	case []int32:
		out = appendBoxed(out, d)
	case []uint32:
		out = appendBoxed(out, d)
	case []int16:
		out = appendBoxed(out, d)
	case []uint16:
		out = appendBoxed(out, d)
	case []int8:
		out = appendBoxed(out, d)
	case []uint8:
		out = appendBoxed(out, d)
	}
	return out
}

func appendBoxed[T number](out []any, in []T) []any {
	for _, v := range in {
		out = append(out, v)
	}
	return out
}

// scaled applies s element-wise and returns a Double column.
func (c Column) scaled(s LinearScale) Column {
	raw := c.Float64s()
	out := make([]float64, len(raw))
	floats.ScaleTo(out, s.Factor, raw)
	floats.AddConst(s.Offset, out)
	return Column{typ: Double, data: out}
}

package ergstruct

import (
	"fmt"
	"strings"

	"github.com/kaitai-io/kaitai_struct_go_runtime/kaitai"
)

// HeaderSize is the fixed size of the binary file header preceding the records.
const HeaderSize = 16

// ByteOrder is the file-global byte order of multi-byte fields.
type ByteOrder uint8

const (
	LittleEndian ByteOrder = iota
	BigEndian
)

func (b ByteOrder) String() string {
	if b == LittleEndian {
		return "LittleEndian"
	}
	return "BigEndian"
}

// Kind describes how the bytes of a primitive type are interpreted.
type Kind uint8

const (
	KindFloat Kind = iota + 1
	KindSigned
	KindUnsigned
	KindBytes
)

// PrimitiveType is the closed set of field encodings an ERG channel can declare.
type PrimitiveType uint8

const (
	InvalidType PrimitiveType = iota
	Float
	Double
	LongLong
	ULongLong
	Long
	ULong
	Int
	UInt
	Short
	UShort
	Char
	UChar
	Bytes1
	Bytes2
	Bytes3
	Bytes4
	Bytes5
	Bytes6
	Bytes7
)

// MaxBytesWidth is the widest fixed-width byte blob type.
const MaxBytesWidth = 7

type typeInfo struct {
	name  string
	width int
	kind  Kind
}

// primitiveTypes is indexed by PrimitiveType and never modified.
var primitiveTypes = [...]typeInfo{
	InvalidType: {name: "Invalid"},
	Float:       {name: "Float", width: 4, kind: KindFloat},
	Double:      {name: "Double", width: 8, kind: KindFloat},
	LongLong:    {name: "LongLong", width: 8, kind: KindSigned},
	ULongLong:   {name: "ULongLong", width: 8, kind: KindUnsigned},
	Long:        {name: "Long", width: 4, kind: KindSigned},
	ULong:       {name: "ULong", width: 4, kind: KindUnsigned},
	Int:         {name: "Int", width: 4, kind: KindSigned},
	UInt:        {name: "UInt", width: 4, kind: KindUnsigned},
	Short:       {name: "Short", width: 2, kind: KindSigned},
	UShort:      {name: "UShort", width: 2, kind: KindUnsigned},
	Char:        {name: "Char", width: 1, kind: KindSigned},
	UChar:       {name: "UChar", width: 1, kind: KindUnsigned},
	Bytes1:      {name: "1 Bytes", width: 1, kind: KindBytes},
	Bytes2:      {name: "2 Bytes", width: 2, kind: KindBytes},
	Bytes3:      {name: "3 Bytes", width: 3, kind: KindBytes},
	Bytes4:      {name: "4 Bytes", width: 4, kind: KindBytes},
	Bytes5:      {name: "5 Bytes", width: 5, kind: KindBytes},
	Bytes6:      {name: "6 Bytes", width: 6, kind: KindBytes},
	Bytes7:      {name: "7 Bytes", width: 7, kind: KindBytes},
}

// LookupPrimitiveType resolves a declared type string such as "Double" or
// "3 Bytes". Surrounding whitespace is ignored.
func LookupPrimitiveType(name string) (PrimitiveType, bool) {
	name = strings.TrimSpace(name)
	for t := Float; t <= Bytes7; t++ {
		if primitiveTypes[t].name == name {
			return t, true
		}
	}
	return InvalidType, false
}

// BytesType returns the byte blob type of the given width.
func BytesType(width int) (PrimitiveType, error) {
	if width < 1 || width > MaxBytesWidth {
		return InvalidType, fmt.Errorf("byte blob width %d out of range 1..%d", width, MaxBytesWidth)
	}
	return Bytes1 + PrimitiveType(width-1), nil
}

func (t PrimitiveType) valid() bool {
	return t > InvalidType && t <= Bytes7
}

// String returns the type name as written in the info file.
func (t PrimitiveType) String() string {
	if !t.valid() {
		return fmt.Sprintf("PrimitiveType(%d)", uint8(t))
	}
	return primitiveTypes[t].name
}

// Width is the number of bytes a single sample occupies in a record.
func (t PrimitiveType) Width() int {
	if !t.valid() {
		return 0
	}
	return primitiveTypes[t].width
}

func (t PrimitiveType) Kind() Kind {
	if !t.valid() {
		return 0
	}
	return primitiveTypes[t].kind
}

// IsBytes reports whether the type is a fixed-width byte blob.
func (t PrimitiveType) IsBytes() bool {
	return t.Kind() == KindBytes
}

// columnBuilder accumulates one channel's samples while records are read.
type columnBuilder interface {
	read(stream *kaitai.Stream) error
	column() Column
}

type typedBuilder[T any] struct {
	typ  PrimitiveType
	vals []T
	fn   func(*kaitai.Stream) (T, error)
}

func (b *typedBuilder[T]) read(stream *kaitai.Stream) error {
	v, err := b.fn(stream)
	if err != nil {
		return err
	}
	b.vals = append(b.vals, v)
	return nil
}

func (b *typedBuilder[T]) column() Column {
	return Column{typ: b.typ, data: b.vals}
}

func newTypedBuilder[T any](t PrimitiveType, capacity int, fn func(*kaitai.Stream) (T, error)) columnBuilder {
	return &typedBuilder[T]{typ: t, vals: make([]T, 0, capacity), fn: fn}
}

// pick returns the little- or big-endian reader.
func pick[T any](order ByteOrder, le, be func(*kaitai.Stream) (T, error)) func(*kaitai.Stream) (T, error) {
	if order == BigEndian {
		return be
	}
	return le
}

// newBuilder returns the column builder reading t in the given byte order.
func (t PrimitiveType) newBuilder(order ByteOrder, capacity int) (columnBuilder, error) {
	switch t {
	case Float:
		return newTypedBuilder(t, capacity, pick(order, (*kaitai.Stream).ReadF4le, (*kaitai.Stream).ReadF4be)), nil
	case Double:
		return newTypedBuilder(t, capacity, pick(order, (*kaitai.Stream).ReadF8le, (*kaitai.Stream).ReadF8be)), nil
	case LongLong:
		return newTypedBuilder(t, capacity, pick(order, (*kaitai.Stream).ReadS8le, (*kaitai.Stream).ReadS8be)), nil
	case ULongLong:
		return newTypedBuilder(t, capacity, pick(order, (*kaitai.Stream).ReadU8le, (*kaitai.Stream).ReadU8be)), nil
	case Long, Int:
		return newTypedBuilder(t, capacity, pick(order, (*kaitai.Stream).ReadS4le, (*kaitai.Stream).ReadS4be)), nil
	case ULong, UInt:
		return newTypedBuilder(t, capacity, pick(order, (*kaitai.Stream).ReadU4le, (*kaitai.Stream).ReadU4be)), nil
	case Short:
		return newTypedBuilder(t, capacity, pick(order, (*kaitai.Stream).ReadS2le, (*kaitai.Stream).ReadS2be)), nil
	case UShort:
		return newTypedBuilder(t, capacity, pick(order, (*kaitai.Stream).ReadU2le, (*kaitai.Stream).ReadU2be)), nil
	case Char:
		return newTypedBuilder(t, capacity, (*kaitai.Stream).ReadS1), nil
	case UChar:
		return newTypedBuilder(t, capacity, (*kaitai.Stream).ReadU1), nil
	case Bytes1, Bytes2, Bytes3, Bytes4, Bytes5, Bytes6, Bytes7:
		width := t.Width()
		return newTypedBuilder(t, capacity, func(s *kaitai.Stream) ([]byte, error) {
			return s.ReadBytes(width)
		}), nil
	}
	return nil, fmt.Errorf("no reader for primitive type %s", t)
}

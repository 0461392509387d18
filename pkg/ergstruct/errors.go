package ergstruct

import (
	"errors"
	"fmt"
)

var (
	ErrMetadataFormat    = errors.New("malformed ERG metadata")
	ErrUnknownType       = errors.New("unknown ERG data type")
	ErrTruncatedRecord   = errors.New("truncated ERG record")
	ErrChannelNotFound   = errors.New("channel not found")
	ErrArityMismatch     = errors.New("append arity mismatch")
	ErrUnsupportedColumn = errors.New("unsupported column type")
)

// MetadataFormatError reports a mandatory field that is missing from the info
// text, or a channel definition that cannot be interpreted.
type MetadataFormatError struct {
	Field   string
	Channel string // empty for file-level fields
	Line    int    // 0 when the field is absent
	Reason  string
}

func (e *MetadataFormatError) Error() string {
	msg := fmt.Sprintf("%v: %s", ErrMetadataFormat, e.Field)
	if e.Channel != "" {
		msg += fmt.Sprintf(" of channel %q", e.Channel)
	}
	if e.Line > 0 {
		msg += fmt.Sprintf(" (line %d)", e.Line)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *MetadataFormatError) Is(target error) bool { return target == ErrMetadataFormat }

// UnknownTypeError names the channel whose declared type is not a known primitive type.
type UnknownTypeError struct {
	Channel  string
	TypeName string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("%v %q for channel %q", ErrUnknownType, e.TypeName, e.Channel)
}

func (e *UnknownTypeError) Is(target error) bool { return target == ErrUnknownType }

// TruncatedRecordError is returned when the payload after the header is not a
// whole number of records.
type TruncatedRecordError struct {
	PayloadSize int
	RecordSize  int
}

func (e *TruncatedRecordError) Error() string {
	if e.PayloadSize < HeaderSize {
		return fmt.Sprintf("%v: payload of %d bytes is shorter than the %d byte header", ErrTruncatedRecord, e.PayloadSize, HeaderSize)
	}
	return fmt.Sprintf("%v: %d data bytes is not a multiple of the %d byte record size",
		ErrTruncatedRecord, e.PayloadSize-HeaderSize, e.RecordSize)
}

func (e *TruncatedRecordError) Is(target error) bool { return target == ErrTruncatedRecord }

type ChannelNotFoundError struct {
	Name        string
	Measurement string
}

func (e *ChannelNotFoundError) Error() string {
	if e.Measurement == "" {
		return fmt.Sprintf("%v: %q", ErrChannelNotFound, e.Name)
	}
	return fmt.Sprintf("%v: %q in %q", ErrChannelNotFound, e.Name, e.Measurement)
}

func (e *ChannelNotFoundError) Is(target error) bool { return target == ErrChannelNotFound }

type ArityMismatchError struct {
	Samples int
	Names   int
	Units   int
}

func (e *ArityMismatchError) Error() string {
	return fmt.Sprintf("%v: %d sample columns, %d names, %d units", ErrArityMismatch, e.Samples, e.Names, e.Units)
}

func (e *ArityMismatchError) Is(target error) bool { return target == ErrArityMismatch }

// UnsupportedColumnError is returned when an appended sample slice has no
// matching primitive type.
type UnsupportedColumnError struct {
	Name   string
	GoType string
	Reason string
}

func (e *UnsupportedColumnError) Error() string {
	msg := fmt.Sprintf("%v %s for channel %q", ErrUnsupportedColumn, e.GoType, e.Name)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *UnsupportedColumnError) Is(target error) bool { return target == ErrUnsupportedColumn }

package ergstruct

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/kaitai-io/kaitai_struct_go_runtime/kaitai"
	"golang.org/x/text/encoding"
)

// DecodeOption configures Decode.
type DecodeOption func(*decodeOptions)

type decodeOptions struct {
	logger       *slog.Logger
	textEncoding encoding.Encoding
	name         string
}

// WithLogger sets the logger used while decoding.
func WithLogger(logger *slog.Logger) DecodeOption {
	return func(o *decodeOptions) {
		o.logger = logger
	}
}

// WithTextEncoding sets the character encoding of byte blob channels.
// The default is UTF-8.
func WithTextEncoding(enc encoding.Encoding) DecodeOption {
	return func(o *decodeOptions) {
		o.textEncoding = enc
	}
}

// WithName names the measurement, usually after its file path.
func WithName(name string) DecodeOption {
	return func(o *decodeOptions) {
		o.name = name
	}
}

// Decode interprets payload, a complete binary ERG file, as records laid out
// by md. The first HeaderSize bytes are skipped. Every channel of md becomes
// one column of the returned measurement, in the same order.
func Decode(payload []byte, md *FileMetadata, opts ...DecodeOption) (*Measurement, error) {
	options := decodeOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&options)
	}
	log := options.logger
	if log == nil {
		log = slog.Default()
	}
	ctx := context.Background()

	if md.NumChannels() == 0 {
		return nil, &MetadataFormatError{Field: keyChannelName, Reason: "no channel definitions"}
	}
	for _, desc := range md.Channels() {
		if !desc.Type.valid() {
			return nil, &MetadataFormatError{Field: keyChannelType, Channel: desc.Name, Reason: "no primitive type"}
		}
	}
	recordSize := md.RecordSize()
	if len(payload) < HeaderSize || (len(payload)-HeaderSize)%recordSize != 0 {
		log.ErrorContext(ctx, "Payload is not a whole number of records",
			"payload_size", len(payload), "record_size", recordSize)
		return nil, &TruncatedRecordError{PayloadSize: len(payload), RecordSize: recordSize}
	}
	records := (len(payload) - HeaderSize) / recordSize

	log.DebugContext(ctx, "Decoding ERG records",
		"name", options.name,
		"byte_order", md.ByteOrder.String(),
		"channels", md.NumChannels(),
		"record_size", recordSize,
		"records", records)

	descriptors := md.Channels()
	builders := make([]columnBuilder, len(descriptors))
	for i, desc := range descriptors {
		b, err := desc.Type.newBuilder(md.ByteOrder, records)
		if err != nil {
			return nil, fmt.Errorf("channel %q: %w", desc.Name, err)
		}
		builders[i] = b
	}

	stream := kaitai.NewStream(bytes.NewReader(payload[HeaderSize:]))
	for r := 0; r < records; r++ {
		for i, b := range builders {
			if err := b.read(stream); err != nil {
				return nil, fmt.Errorf("reading record %d, channel %q: %w", r, descriptors[i].Name, err)
			}
		}
	}

	m := newMeasurement(options.name, md, options.textEncoding, records)
	for i, desc := range descriptors {
		m.channels.set(desc.Name, &DecodedChannel{
			ChannelDescriptor: desc,
			samples:           builders[i].column(),
		})
	}

	log.DebugContext(ctx, "Finished decoding ERG records", "name", options.name, "records", records)
	return m, nil
}

package ergstruct

import (
	"fmt"
	"time"

	"golang.org/x/text/encoding"
)

const (
	// TimeChannel is the channel whose raw samples serve as the time axis.
	TimeChannel = "Time"
	// DefaultSampleInterval is the assumed sample spacing in seconds when the
	// file has no Time channel.
	DefaultSampleInterval = 0.001
)

// DecodedChannel is a channel descriptor together with its raw samples.
type DecodedChannel struct {
	ChannelDescriptor
	samples Column
}

// Samples returns the raw, unscaled samples.
func (c *DecodedChannel) Samples() Column {
	return c.samples
}

// Signal is the read view of one channel handed to consumers.
type Signal struct {
	Name       string
	Unit       string
	Samples    Column
	Timestamps []float64
	// Conversion is set only for raw reads of scaled channels; the consumer
	// applies it to Samples.
	Conversion *LinearScale
	Raw        bool
	// Encoding is "utf-8" for byte blob channels and empty otherwise.
	Encoding string

	textEncoding encoding.Encoding
}

// Text renders byte blob samples as strings. It returns nil for numeric
// channels.
func (s *Signal) Text() []string {
	return s.Samples.Strings(s.textEncoding)
}

// Values returns the samples boxed in their Go types, with byte blobs as text.
func (s *Signal) Values() []any {
	return s.Samples.Values(s.textEncoding)
}

// Measurement is a decoded ERG file. Reads may be shared between goroutines;
// Append must not run concurrently with any other method.
type Measurement struct {
	name         string
	metadata     *FileMetadata
	channels     orderedMap[*DecodedChannel]
	records      int
	textEncoding encoding.Encoding
}

func newMeasurement(name string, md *FileMetadata, enc encoding.Encoding, records int) *Measurement {
	return &Measurement{
		name:         name,
		metadata:     md,
		channels:     newOrderedMap[*DecodedChannel](md.NumChannels()),
		records:      records,
		textEncoding: enc,
	}
}

// NewMeasurement returns a measurement without channels, to be filled with
// Append.
func NewMeasurement(name string, md *FileMetadata) *Measurement {
	if md == nil {
		md = NewFileMetadata(LittleEndian, time.Time{})
	}
	return newMeasurement(name, md, nil, 0)
}

func (m *Measurement) Name() string {
	return m.name
}

func (m *Measurement) Metadata() *FileMetadata {
	return m.metadata
}

func (m *Measurement) StartTime() time.Time {
	return m.metadata.StartTime
}

// Records is the number of records decoded from the binary file.
func (m *Measurement) Records() int {
	return m.records
}

// Len is the number of channels.
func (m *Measurement) Len() int {
	return m.channels.len()
}

// Names returns channel names in column order.
func (m *Measurement) Names() []string {
	return m.channels.keys()
}

func (m *Measurement) Has(name string) bool {
	_, ok := m.channels.get(name)
	return ok
}

func (m *Measurement) Channel(name string) (*DecodedChannel, error) {
	ch, ok := m.channels.get(name)
	if !ok {
		return nil, &ChannelNotFoundError{Name: name, Measurement: m.name}
	}
	return ch, nil
}

// Get returns the named channel. Scaled channels are returned in physical
// units unless raw is set, in which case the raw samples come with their
// Conversion. Raw reads of unscaled channels behave like scaled reads.
func (m *Measurement) Get(name string, raw bool) (*Signal, error) {
	ch, err := m.Channel(name)
	if err != nil {
		return nil, err
	}

	sig := &Signal{
		Name:         name,
		Unit:         ch.Unit,
		Samples:      ch.samples,
		Timestamps:   m.Timestamps(ch.samples.Len()),
		textEncoding: m.textEncoding,
	}

	if ch.samples.Type().IsBytes() {
		sig.Encoding = "utf-8"
		return sig, nil
	}
	if ch.Scale != nil {
		if raw {
			conv := *ch.Scale
			sig.Conversion = &conv
			sig.Raw = true
		} else {
			sig.Samples = ch.samples.scaled(*ch.Scale)
		}
	}
	return sig, nil
}

// Signals reads every channel in column order.
func (m *Measurement) Signals(raw bool) ([]*Signal, error) {
	out := make([]*Signal, 0, m.channels.len())
	for _, name := range m.channels.names {
		sig, err := m.Get(name, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, sig)
	}
	return out, nil
}

// Timestamps returns the raw samples of the Time channel when there is a
// numeric one, otherwise n timestamps spaced DefaultSampleInterval apart.
func (m *Measurement) Timestamps(n int) []float64 {
	if t, ok := m.channels.get(TimeChannel); ok {
		if ts := t.samples.Float64s(); ts != nil {
			return ts
		}
	}
	ts := make([]float64, n)
	for i := range ts {
		ts[i] = float64(i) * DefaultSampleInterval
	}
	return ts
}

// Append adds channels built from already scaled sample slices. samples,
// names and units must have equal lengths. An existing channel with the
// same name is replaced at its position. Nothing is appended on error.
func (m *Measurement) Append(samples []any, names []string, units []string) error {
	if len(samples) != len(names) || len(names) != len(units) {
		return &ArityMismatchError{Samples: len(samples), Names: len(names), Units: len(units)}
	}

	channels := make([]*DecodedChannel, len(samples))
	for i, s := range samples {
		col, err := NewColumn(s)
		if err != nil {
			return &UnsupportedColumnError{Name: names[i], GoType: fmt.Sprintf("%T", s), Reason: err.Error()}
		}
		channels[i] = &DecodedChannel{
			ChannelDescriptor: ChannelDescriptor{
				Name:  names[i],
				Type:  col.Type(),
				Unit:  units[i],
				Index: -1,
			},
			samples: col,
		}
	}
	for _, ch := range channels {
		m.channels.set(ch.Name, ch)
	}
	return nil
}

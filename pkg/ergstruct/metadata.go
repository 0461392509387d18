package ergstruct

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Keys of the file-level fields.
const (
	keyByteOrder     = "File.ByteOrder"
	keyDateInSeconds = "File.DateInSeconds"
	keyFormat        = "File.Format"
	keyVersion       = "File.Version"
	keyChannelName   = "File.At.<n>.Name"
	keyChannelType   = "File.At.<n>.Type"
)

var (
	channelKeyPattern  = regexp.MustCompile(`^File\.At\.(?P<index>[0-9]+)\.(?P<attr>Name|Type)$`)
	quantityKeyPattern = regexp.MustCompile(`^Quantity\.(?P<qualifier>.+)\.(?P<attr>Unit|Factor|Offset)$`)
)

// LinearScale converts raw samples to physical values: raw*Factor + Offset.
type LinearScale struct {
	Factor float64
	Offset float64
}

// Apply scales a single value.
func (s LinearScale) Apply(v float64) float64 {
	return v*s.Factor + s.Offset
}

// ChannelDescriptor describes one column of the binary record.
type ChannelDescriptor struct {
	Name  string
	Type  PrimitiveType
	Unit  string
	Scale *LinearScale // nil when the info file declares no factor/offset pair
	Index int          // the <n> of File.At.<n>; informational only
}

// FileMetadata is the parsed content of an info file. It is not modified
// after parsing.
type FileMetadata struct {
	ByteOrder ByteOrder
	StartTime time.Time
	Format    string
	Version   string

	channels orderedMap[ChannelDescriptor]
}

// NewFileMetadata builds metadata from already known descriptors. Duplicate
// names replace the earlier descriptor at its original position.
func NewFileMetadata(order ByteOrder, start time.Time, channels ...ChannelDescriptor) *FileMetadata {
	md := &FileMetadata{
		ByteOrder: order,
		StartTime: start,
		channels:  newOrderedMap[ChannelDescriptor](len(channels)),
	}
	for _, ch := range channels {
		md.channels.set(ch.Name, ch)
	}
	return md
}

// Channels returns the descriptors in record column order.
func (m *FileMetadata) Channels() []ChannelDescriptor {
	return m.channels.list()
}

func (m *FileMetadata) Channel(name string) (ChannelDescriptor, bool) {
	return m.channels.get(name)
}

func (m *FileMetadata) NumChannels() int {
	return m.channels.len()
}

// RecordSize is the sum of all channel widths.
func (m *FileMetadata) RecordSize() int {
	size := 0
	for _, ch := range m.channels.values {
		size += ch.Type.Width()
	}
	return size
}

// Offsets returns the byte offset of every channel within a record.
func (m *FileMetadata) Offsets() []int {
	offsets := make([]int, len(m.channels.values))
	pos := 0
	for i, ch := range m.channels.values {
		offsets[i] = pos
		pos += ch.Type.Width()
	}
	return offsets
}

// channelBlock is the run of assignments from one File.At.<n>.Name line up
// to the next.
type channelBlock struct {
	name        Assignment
	index       int
	assignments []Assignment
}

// ParseMetadata parses the text of an info file.
func ParseMetadata(text string) (*FileMetadata, error) {
	assignments := Tokenize(text)

	md := &FileMetadata{channels: newOrderedMap[ChannelDescriptor](0)}

	order, ok := lookup(assignments, keyByteOrder)
	if !ok {
		return nil, &MetadataFormatError{Field: keyByteOrder, Reason: "not found"}
	}
	md.ByteOrder = BigEndian
	if order.Value == "LittleEndian" {
		md.ByteOrder = LittleEndian
	}

	date, ok := lookup(assignments, keyDateInSeconds)
	if !ok {
		return nil, &MetadataFormatError{Field: keyDateInSeconds, Reason: "not found"}
	}
	seconds, err := strconv.ParseInt(date.Value, 10, 64)
	if err != nil {
		return nil, &MetadataFormatError{
			Field:  keyDateInSeconds,
			Line:   date.Line,
			Reason: "not an integer: " + strconv.Quote(date.Value),
		}
	}
	md.StartTime = time.Unix(seconds, 0).UTC()

	if a, ok := lookup(assignments, keyFormat); ok {
		md.Format = a.Value
	}
	if a, ok := lookup(assignments, keyVersion); ok {
		md.Version = a.Value
	}

	blocks := segmentChannels(assignments)
	if len(blocks) == 0 {
		return nil, &MetadataFormatError{Field: keyChannelName, Reason: "no channel definitions"}
	}
	for _, block := range blocks {
		desc, err := block.descriptor()
		if err != nil {
			return nil, err
		}
		md.channels.set(desc.Name, desc)
	}
	return md, nil
}

// lookup returns the first assignment to key.
func lookup(assignments []Assignment, key string) (Assignment, bool) {
	for _, a := range assignments {
		if a.Key == key {
			return a, true
		}
	}
	return Assignment{}, false
}

// segmentChannels groups assignments into channel blocks. Assignments before
// the first Name line belong to no block.
func segmentChannels(assignments []Assignment) []channelBlock {
	var blocks []channelBlock
	for _, a := range assignments {
		if m := channelKeyPattern.FindStringSubmatch(a.Key); m != nil && m[2] == "Name" {
			index, _ := strconv.Atoi(m[1])
			blocks = append(blocks, channelBlock{name: a, index: index})
			continue
		}
		if len(blocks) > 0 {
			last := &blocks[len(blocks)-1]
			last.assignments = append(last.assignments, a)
		}
	}
	return blocks
}

type quantityLine struct {
	qualifier string
	a         Assignment
}

func (b channelBlock) descriptor() (ChannelDescriptor, error) {
	desc := ChannelDescriptor{Name: b.name.Value, Index: b.index}
	if desc.Name == "" {
		return desc, &MetadataFormatError{Field: b.name.Key, Line: b.name.Line, Reason: "empty channel name"}
	}

	var typeLine *Assignment
	var unit, factor *quantityLine
	var offsets []quantityLine

	for i := range b.assignments {
		a := b.assignments[i]
		if m := channelKeyPattern.FindStringSubmatch(a.Key); m != nil {
			if m[2] == "Type" && typeLine == nil {
				typeLine = &b.assignments[i]
			}
			continue
		}
		m := quantityKeyPattern.FindStringSubmatch(a.Key)
		if m == nil {
			continue
		}
		q := quantityLine{qualifier: m[1], a: a}
		switch m[2] {
		case "Unit":
			if unit == nil {
				unit = &q
			}
		case "Factor":
			if factor == nil {
				factor = &q
			}
		case "Offset":
			offsets = append(offsets, q)
		}
	}

	if typeLine == nil {
		return desc, &MetadataFormatError{
			Field:   strings.TrimSuffix(b.name.Key, "Name") + "Type",
			Channel: desc.Name,
			Reason:  "not found",
		}
	}
	t, ok := LookupPrimitiveType(typeLine.Value)
	if !ok {
		return desc, &UnknownTypeError{Channel: desc.Name, TypeName: typeLine.Value}
	}
	desc.Type = t

	if unit != nil {
		desc.Unit = unit.a.Value
	}

	scale, err := pairScale(desc.Name, factor, offsets)
	if err != nil {
		return desc, err
	}
	desc.Scale = scale
	return desc, nil
}

// pairScale matches the factor with the offset declared under the same
// quantity qualifier. One side without the other is an error.
func pairScale(channel string, factor *quantityLine, offsets []quantityLine) (*LinearScale, error) {
	if factor == nil {
		if len(offsets) > 0 {
			return nil, &MetadataFormatError{
				Field:   offsets[0].a.Key,
				Channel: channel,
				Line:    offsets[0].a.Line,
				Reason:  "offset without factor",
			}
		}
		return nil, nil
	}

	var offset *quantityLine
	for i := range offsets {
		if offsets[i].qualifier == factor.qualifier {
			offset = &offsets[i]
			break
		}
	}
	if offset == nil {
		return nil, &MetadataFormatError{
			Field:   factor.a.Key,
			Channel: channel,
			Line:    factor.a.Line,
			Reason:  "factor without offset",
		}
	}

	f, err := strconv.ParseFloat(factor.a.Value, 64)
	if err != nil {
		return nil, &MetadataFormatError{Field: factor.a.Key, Channel: channel, Line: factor.a.Line, Reason: "not a number"}
	}
	o, err := strconv.ParseFloat(offset.a.Value, 64)
	if err != nil {
		return nil, &MetadataFormatError{Field: offset.a.Key, Channel: channel, Line: offset.a.Line, Reason: "not a number"}
	}
	return &LinearScale{Factor: f, Offset: o}, nil
}

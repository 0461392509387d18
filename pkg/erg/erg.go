package erg

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/samber/lo"
	"github.com/twinfer/erg-plugin/pkg/ergstruct"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
)

// InfoSuffix is appended to a binary file path to find its info file.
const InfoSuffix = ".info"

// Reader wraps info file parsing and record decoding with metadata caching
type Reader struct {
	metaCache  map[string]*ergstruct.FileMetadata
	cacheMutex sync.RWMutex
	logger     *slog.Logger
	options    options
}

// options holds configuration for the reader
type options struct {
	logger        *slog.Logger
	enableCaching bool
	textEncoding  encoding.Encoding
	channels      []string
}

// Option is a function that configures reader options
type Option func(*options)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithCaching turns caching of parsed info files on or off
func WithCaching(enabled bool) Option {
	return func(o *options) {
		o.enableCaching = enabled
	}
}

// WithTextEncoding sets the character encoding of byte blob channels
func WithTextEncoding(enc encoding.Encoding) Option {
	return func(o *options) {
		o.textEncoding = enc
	}
}

// WithChannels restricts exports to the named channels, in column order
func WithChannels(names ...string) Option {
	return func(o *options) {
		o.channels = append(o.channels, names...)
	}
}

// LookupTextEncoding resolves an IANA character set name such as "utf-8" or
// "ISO-8859-1". An empty name selects UTF-8.
func LookupTextEncoding(name string) (encoding.Encoding, error) {
	if name == "" {
		return unicode.UTF8, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("text encoding %q: %w", name, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("text encoding %q is not supported", name)
	}
	return enc, nil
}

func defaultOptions() options {
	return options{
		logger:        slog.Default(),
		enableCaching: true,
	}
}

var globalReader *Reader
var globalReaderOnce sync.Once

func getGlobalReader() *Reader {
	globalReaderOnce.Do(func() {
		globalReader = NewReader()
	})
	return globalReader
}

// NewReader creates a new reader instance with the given options
func NewReader(opts ...Option) *Reader {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	return &Reader{
		metaCache: make(map[string]*ergstruct.FileMetadata),
		logger:    options.logger,
		options:   options,
	}
}

// Open reads the ERG file at path together with its info file
func Open(path string, opts ...Option) (*ergstruct.Measurement, error) {
	return getGlobalReader().Open(context.Background(), path, opts...)
}

// OpenWithContext reads the ERG file at path together with its info file
func OpenWithContext(ctx context.Context, path string, opts ...Option) (*ergstruct.Measurement, error) {
	return getGlobalReader().Open(ctx, path, opts...)
}

// ParseFiles decodes an ERG file from the contents of its two files
func ParseFiles(ctx context.Context, infoText string, payload []byte, opts ...Option) (*ergstruct.Measurement, error) {
	return getGlobalReader().ParseFiles(ctx, infoText, payload, opts...)
}

// ReadMetadata parses the info file at infoPath
func ReadMetadata(infoPath string) (*ergstruct.FileMetadata, error) {
	return getGlobalReader().ReadMetadata(infoPath)
}

// Open reads <path>.info and <path> and decodes the records. The parsed info
// file is cached per path when caching is enabled.
func (r *Reader) Open(ctx context.Context, path string, opts ...Option) (*ergstruct.Measurement, error) {
	options := r.apply(opts)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	md, err := r.ReadMetadata(path + InfoSuffix)
	if err != nil {
		return nil, err
	}

	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading erg file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m, err := r.decode(payload, md, filepath.Base(path), options)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return m, nil
}

// ParseFiles decodes payload using the layout described by infoText. Nothing
// is cached.
func (r *Reader) ParseFiles(ctx context.Context, infoText string, payload []byte, opts ...Option) (*ergstruct.Measurement, error) {
	options := r.apply(opts)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	md, err := ergstruct.ParseMetadata(infoText)
	if err != nil {
		return nil, fmt.Errorf("parsing info file: %w", err)
	}
	return r.decode(payload, md, "", options)
}

// ReadMetadata parses the info file at infoPath, consulting the cache first.
func (r *Reader) ReadMetadata(infoPath string) (*ergstruct.FileMetadata, error) {
	if r.options.enableCaching {
		r.cacheMutex.RLock()
		cached, exists := r.metaCache[infoPath]
		r.cacheMutex.RUnlock()
		if exists {
			return cached, nil
		}
	}

	text, err := os.ReadFile(infoPath)
	if err != nil {
		return nil, fmt.Errorf("reading info file: %w", err)
	}
	md, err := ergstruct.ParseMetadata(string(text))
	if err != nil {
		return nil, fmt.Errorf("parsing info file %s: %w", infoPath, err)
	}
	r.logger.Debug("Parsed ERG info file", "path", infoPath, "channels", md.NumChannels())

	if r.options.enableCaching {
		r.cacheMutex.Lock()
		r.metaCache[infoPath] = md
		r.cacheMutex.Unlock()
	}
	return md, nil
}

// ClearCache clears the metadata cache
func (r *Reader) ClearCache() {
	r.cacheMutex.Lock()
	defer r.cacheMutex.Unlock()
	r.metaCache = make(map[string]*ergstruct.FileMetadata)
}

// Signals reads the selected channels of m in column order. Without a
// WithChannels option every channel is returned.
func (r *Reader) Signals(m *ergstruct.Measurement, raw bool, opts ...Option) ([]*ergstruct.Signal, error) {
	return selectSignals(m, raw, r.apply(opts).channels)
}

func (r *Reader) apply(opts []Option) options {
	options := r.options
	options.channels = append([]string(nil), r.options.channels...)
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

func (r *Reader) decode(payload []byte, md *ergstruct.FileMetadata, name string, options options) (*ergstruct.Measurement, error) {
	return ergstruct.Decode(payload, md,
		ergstruct.WithLogger(options.logger),
		ergstruct.WithTextEncoding(options.textEncoding),
		ergstruct.WithName(name),
	)
}

func selectSignals(m *ergstruct.Measurement, raw bool, channels []string) ([]*ergstruct.Signal, error) {
	if len(channels) == 0 {
		return m.Signals(raw)
	}

	missing := lo.Filter(channels, func(name string, _ int) bool {
		return !m.Has(name)
	})
	if len(missing) > 0 {
		return nil, &ergstruct.ChannelNotFoundError{Name: missing[0], Measurement: m.Name()}
	}

	wanted := lo.Filter(m.Names(), func(name string, _ int) bool {
		return lo.Contains(channels, name)
	})
	signals := make([]*ergstruct.Signal, 0, len(wanted))
	for _, name := range wanted {
		sig, err := m.Get(name, raw)
		if err != nil {
			return nil, err
		}
		signals = append(signals, sig)
	}
	return signals, nil
}

// Document converts m into generic values: a map with start_time, records and
// a channels list holding name, unit, type, encoding, conversion, samples and
// timestamps per channel.
func Document(m *ergstruct.Measurement, raw bool, opts ...Option) (map[string]any, error) {
	return getGlobalReader().Document(m, raw, opts...)
}

// ToJSON converts m to indented JSON
func ToJSON(ctx context.Context, m *ergstruct.Measurement, raw bool, opts ...Option) ([]byte, error) {
	return getGlobalReader().ToJSON(ctx, m, raw, opts...)
}

// Document converts m into generic values, see the package level Document.
func (r *Reader) Document(m *ergstruct.Measurement, raw bool, opts ...Option) (map[string]any, error) {
	signals, err := r.Signals(m, raw, opts...)
	if err != nil {
		return nil, err
	}

	channels := make([]any, 0, len(signals))
	for _, sig := range signals {
		ch := map[string]any{
			"name":       sig.Name,
			"unit":       sig.Unit,
			"type":       sig.Samples.Type().String(),
			"samples":    lo.Map(sig.Values(), func(v any, _ int) any { return normalize(v) }),
			"timestamps": lo.Map(sig.Timestamps, func(v float64, _ int) any { return finite(v) }),
		}
		if sig.Encoding != "" {
			ch["encoding"] = sig.Encoding
		}
		if sig.Conversion != nil {
			ch["conversion"] = map[string]any{
				"factor": finite(sig.Conversion.Factor),
				"offset": finite(sig.Conversion.Offset),
			}
		}
		channels = append(channels, ch)
	}

	return map[string]any{
		"name":       m.Name(),
		"start_time": m.StartTime().Unix(),
		"records":    int64(m.Records()),
		"channels":   channels,
	}, nil
}

// ToJSON converts m to indented JSON
func (r *Reader) ToJSON(ctx context.Context, m *ergstruct.Measurement, raw bool, opts ...Option) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := r.Document(m, raw, opts...)
	if err != nil {
		return nil, err
	}
	jsonData, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling to JSON: %w", err)
	}
	return jsonData, nil
}

// normalize widens sample values to int64, uint64, float64 or string.
// NaN and infinite floats become nil.
func normalize(v any) any {
	switch val := v.(type) {
	case float32:
		return finite(float64(val))
	case float64:
		return finite(val)
	case int8:
		return int64(val)
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case uint8:
		return int64(val)
	case uint16:
		return int64(val)
	case uint32:
		return int64(val)
	default:
		return val
	}
}

func finite(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}

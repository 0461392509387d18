package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/redpanda-data/benthos/v4/public/service"
	"github.com/twinfer/erg-plugin/pkg/erg"
	"github.com/twinfer/erg-plugin/pkg/ergstruct"
	"golang.org/x/text/encoding"
)

// ERGProcessor is a Benthos processor that decodes binary CarMaker ERG
// files into structured channel documents.
type ERGProcessor struct {
	config       ERGConfig
	reader       *erg.Reader
	textEncoding encoding.Encoding
	derivations  []erg.Derivation
	metaMap      sync.Map // Cache for parsed info files
	logger       *service.Logger
	decodeLogger *slog.Logger
	mDecoded     *service.MetricCounter
	mErrors      *service.MetricCounter
	mCacheHits   *service.MetricCounter
	mCacheMisses *service.MetricCounter
}

// ERGConfig contains configuration parameters for the ERG processor.
type ERGConfig struct {
	InfoPath        string           `json:"info_path" yaml:"info_path"`
	Raw             bool             `json:"raw" yaml:"raw"`
	Channels        []string         `json:"channels" yaml:"channels"`
	TextEncoding    string           `json:"text_encoding" yaml:"text_encoding"`
	Derive          []erg.Derivation `json:"derive" yaml:"derive"`
	DerivationsPath string           `json:"derivations_path" yaml:"derivations_path"`
}

func init() {
	err := service.RegisterProcessor(
		"carmaker_erg",
		ergProcessorConfig(),
		func(conf *service.ParsedConfig, mgr *service.Resources) (service.Processor, error) {
			return newERGProcessorFromConfig(conf, mgr)
		},
	)
	if err != nil {
		panic(err)
	}
}

func main() {
	service.RunCLI(context.Background())
}

// ergProcessorConfig returns a config spec for a carmaker_erg processor.
func ergProcessorConfig() *service.ConfigSpec {
	return service.NewConfigSpec().
		Summary("Decodes binary CarMaker ERG result files into structured channel data.").
		Description("Each message must hold a complete binary ERG file. The record layout comes from the info file at info_path. The output is a structured document with start_time, records and one entry per channel holding name, unit, samples and timestamps.").
		Field(service.NewStringField("info_path").
			Description("Path to the .erg.info file describing the record layout.").
			Example("./results/Run_001.erg.info")).
		Field(service.NewBoolField("raw").
			Description("Emit stored values of scaled channels together with their conversion instead of physical values.").
			Default(false)).
		Field(service.NewStringListField("channels").
			Description("Channels to emit, in file order. Leave empty to emit all channels.").
			Default([]string{})).
		Field(service.NewStringField("text_encoding").
			Description("IANA name of the character set of byte blob channels.").
			Default("utf-8")).
		Field(service.NewObjectListField("derive",
			service.NewStringField("name").Description("Name of the derived channel."),
			service.NewStringField("unit").Description("Unit of the derived channel.").Default(""),
			service.NewStringField("expr").Description("CEL expression evaluated once per record."),
		).
			Description("Channels computed from other channels before output.").
			Default([]any{})).
		Field(service.NewStringField("derivations_path").
			Description("Optional YAML file with additional derivations under a top level derivations key.").
			Default("")).
		Version("0.1.0")
}

// newERGProcessorFromConfig creates a new ERGProcessor from a parsed config.
func newERGProcessorFromConfig(conf *service.ParsedConfig, mgr *service.Resources) (*ERGProcessor, error) {
	infoPath, err := conf.FieldString("info_path")
	if err != nil {
		return nil, err
	}
	raw, err := conf.FieldBool("raw")
	if err != nil {
		return nil, err
	}
	channels, err := conf.FieldStringList("channels")
	if err != nil {
		return nil, err
	}
	textEncoding, err := conf.FieldString("text_encoding")
	if err != nil {
		return nil, err
	}
	derivationsPath, err := conf.FieldString("derivations_path")
	if err != nil {
		return nil, err
	}

	deriveConfs, err := conf.FieldObjectList("derive")
	if err != nil {
		return nil, err
	}
	var derivations []erg.Derivation
	for _, dc := range deriveConfs {
		var d erg.Derivation
		if d.Name, err = dc.FieldString("name"); err != nil {
			return nil, err
		}
		if d.Unit, err = dc.FieldString("unit"); err != nil {
			return nil, err
		}
		if d.Expr, err = dc.FieldString("expr"); err != nil {
			return nil, err
		}
		derivations = append(derivations, d)
	}
	if derivationsPath != "" {
		loaded, err := erg.LoadDerivations(derivationsPath)
		if err != nil {
			return nil, err
		}
		derivations = append(derivations, loaded...)
	}

	enc, err := erg.LookupTextEncoding(textEncoding)
	if err != nil {
		return nil, err
	}

	config := ERGConfig{
		InfoPath:        infoPath,
		Raw:             raw,
		Channels:        channels,
		TextEncoding:    textEncoding,
		Derive:          derivations,
		DerivationsPath: derivationsPath,
	}

	metrics := mgr.Metrics()
	decodeLogger := newServiceLogger(mgr.Logger())

	return &ERGProcessor{
		config:       config,
		reader:       erg.NewReader(erg.WithCaching(false), erg.WithTextEncoding(enc), erg.WithLogger(decodeLogger)),
		textEncoding: enc,
		derivations:  derivations,
		logger:       mgr.Logger(),
		decodeLogger: decodeLogger,
		mDecoded:     metrics.NewCounter("erg_decoded_messages"),
		mErrors:      metrics.NewCounter("erg_processing_errors"),
		mCacheHits:   metrics.NewCounter("erg_metadata_cache_hits"),
		mCacheMisses: metrics.NewCounter("erg_metadata_cache_misses"),
	}, nil
}

// Process decodes one binary ERG file per message.
func (k *ERGProcessor) Process(ctx context.Context, msg *service.Message) (service.MessageBatch, error) {
	k.logger.Debug("Decoding binary ERG data")

	binData, err := msg.AsBytes()
	if err != nil {
		return k.fail(msg, fmt.Errorf("failed to get binary data from message: %w", err))
	}
	if len(binData) == 0 {
		k.logger.Warn("Empty binary data provided")
		return k.fail(msg, fmt.Errorf("empty binary data provided"))
	}

	md, err := k.loadMetadata(k.config.InfoPath)
	if err != nil {
		return k.fail(msg, fmt.Errorf("failed to load info file: %w", err))
	}

	m, err := ergstruct.Decode(binData, md,
		ergstruct.WithTextEncoding(k.textEncoding),
		ergstruct.WithLogger(k.decodeLogger),
	)
	if err != nil {
		return k.fail(msg, fmt.Errorf("failed to decode binary data of size %d bytes: %w", len(binData), err))
	}

	if err := erg.Derive(m, k.derivations...); err != nil {
		return k.fail(msg, fmt.Errorf("failed to derive channels: %w", err))
	}

	doc, err := k.reader.Document(m, k.config.Raw, erg.WithChannels(k.config.Channels...))
	if err != nil {
		return k.fail(msg, fmt.Errorf("failed to build output: %w", err))
	}

	k.logger.Debugf("Successfully decoded %d records of %d channels", m.Records(), m.Len())
	k.mDecoded.Incr(1)

	newMsg := service.NewMessage(nil)
	newMsg.SetStructured(doc)

	// Copy metadata from original message
	_ = msg.MetaWalk(func(key, value string) error {
		newMsg.MetaSet(key, value)
		return nil
	})
	newMsg.MetaSet("erg_records", strconv.Itoa(m.Records()))
	newMsg.MetaSet("erg_start_time", strconv.FormatInt(m.StartTime().Unix(), 10))

	return service.MessageBatch{newMsg}, nil
}

func (k *ERGProcessor) fail(msg *service.Message, err error) (service.MessageBatch, error) {
	k.logger.Errorf("%v", err)
	k.mErrors.Incr(1)
	msg.SetError(err)
	return service.MessageBatch{msg}, nil
}

// loadMetadata loads and parses an info file.
func (k *ERGProcessor) loadMetadata(path string) (*ergstruct.FileMetadata, error) {
	if cached, ok := k.metaMap.Load(path); ok {
		k.logger.Tracef("Info file cache hit for path: %s", path)
		k.mCacheHits.Incr(1)
		return cached.(*ergstruct.FileMetadata), nil
	}

	k.logger.Debugf("Loading info file from path: %s", path)
	k.mCacheMisses.Incr(1)

	md, err := k.reader.ReadMetadata(path)
	if err != nil {
		return nil, err
	}

	k.metaMap.Store(path, md)
	k.logger.Debugf("Loaded and cached info file from: %s", path)
	return md, nil
}

// Close the processor resources
func (k *ERGProcessor) Close(ctx context.Context) error {
	k.logger.Debug("Closing ERG processor and clearing info file cache")
	k.metaMap.Clear()
	return nil
}

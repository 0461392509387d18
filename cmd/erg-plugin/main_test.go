package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/redpanda-data/benthos/v4/public/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twinfer/erg-plugin/testutil"
)

// --- Test Helpers ---

func writeInfo(t *testing.T) string {
	t.Helper()
	info := testutil.InfoText("BigEndian", 1600000000,
		testutil.Channel{Name: "Time", Type: "Float", Unit: "s"},
		testutil.Channel{Name: "Temp", Type: "Short", Unit: "degC", Factor: "0.1", Offset: "-40"},
		testutil.Channel{Name: "Tag", Type: "3 Bytes"},
	)
	path := filepath.Join(t.TempDir(), "Run.erg.info")
	require.NoError(t, os.WriteFile(path, []byte(info), 0644))
	return path
}

func payload() []byte {
	return testutil.Payload(binary.BigEndian,
		[]any{float32(0), int16(400), [3]byte{'a', 'b', 'c'}},
		[]any{float32(0.5), int16(500), [3]byte{'x', 0, 0}},
	)
}

func newProcessor(t *testing.T, yaml string) *ERGProcessor {
	t.Helper()
	pConf, err := ergProcessorConfig().ParseYAML(yaml, nil)
	require.NoError(t, err)
	processor, err := newERGProcessorFromConfig(pConf, service.MockResources())
	require.NoError(t, err)
	return processor
}

func channelsOf(t *testing.T, msg *service.Message) []map[string]any {
	t.Helper()
	structured, err := msg.AsStructured()
	require.NoError(t, err)
	doc := structured.(map[string]any)
	var out []map[string]any
	for _, ch := range doc["channels"].([]any) {
		out = append(out, ch.(map[string]any))
	}
	return out
}

func TestERGProcessor_Decode(t *testing.T) {
	processor := newProcessor(t, fmt.Sprintf("info_path: %s", writeInfo(t)))

	in := service.NewMessage(payload())
	in.MetaSet("source", "rig-1")
	batch, err := processor.Process(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	require.NoError(t, batch[0].GetError())

	structured, err := batch[0].AsStructured()
	require.NoError(t, err)
	doc := structured.(map[string]any)
	assert.Equal(t, int64(1600000000), doc["start_time"])
	assert.Equal(t, int64(2), doc["records"])

	channels := channelsOf(t, batch[0])
	require.Len(t, channels, 3)
	assert.Equal(t, "Temp", channels[1]["name"])
	assert.Equal(t, "degC", channels[1]["unit"])
	samples := channels[1]["samples"].([]any)
	require.Len(t, samples, 2)
	assert.InDelta(t, 0.0, samples[0], 1e-9)
	assert.InDelta(t, 10.0, samples[1], 1e-9)
	assert.Equal(t, []any{0.0, 0.5}, channels[1]["timestamps"])
	assert.NotContains(t, channels[1], "conversion")

	assert.Equal(t, "utf-8", channels[2]["encoding"])
	assert.Equal(t, []any{"abc", "x"}, channels[2]["samples"])

	source, ok := batch[0].MetaGet("source")
	assert.True(t, ok)
	assert.Equal(t, "rig-1", source)
	records, _ := batch[0].MetaGet("erg_records")
	assert.Equal(t, "2", records)
}

func TestERGProcessor_RawAndChannels(t *testing.T) {
	processor := newProcessor(t, fmt.Sprintf(`
info_path: %s
raw: true
channels: [ Temp ]
`, writeInfo(t)))

	batch, err := processor.Process(context.Background(), service.NewMessage(payload()))
	require.NoError(t, err)
	require.NoError(t, batch[0].GetError())

	channels := channelsOf(t, batch[0])
	require.Len(t, channels, 1)
	assert.Equal(t, []any{int64(400), int64(500)}, channels[0]["samples"])
	assert.Equal(t, map[string]any{"factor": 0.1, "offset": -40.0}, channels[0]["conversion"])
}

func TestERGProcessor_Derive(t *testing.T) {
	dir := t.TempDir()
	derivationsPath := filepath.Join(dir, "derive.yaml")
	require.NoError(t, os.WriteFile(derivationsPath, []byte(`
derivations:
  - name: TempK
    unit: K
    expr: TempF / 1.8 + 255.372
`), 0644))

	processor := newProcessor(t, fmt.Sprintf(`
info_path: %s
derivations_path: %s
derive:
  - name: TempF
    unit: degF
    expr: Temp * 1.8 + 32.0
channels: [ TempF, TempK ]
`, writeInfo(t), derivationsPath))

	batch, err := processor.Process(context.Background(), service.NewMessage(payload()))
	require.NoError(t, err)
	require.NoError(t, batch[0].GetError())

	channels := channelsOf(t, batch[0])
	require.Len(t, channels, 2)
	assert.Equal(t, "TempF", channels[0]["name"])
	assert.Equal(t, "degF", channels[0]["unit"])
	fahrenheit := channels[0]["samples"].([]any)
	assert.InDelta(t, 32.0, fahrenheit[0], 1e-9)
	assert.InDelta(t, 50.0, fahrenheit[1], 1e-9)

	kelvin := channels[1]["samples"].([]any)
	assert.InDelta(t, 273.15, kelvin[0], 1e-3)
}

func TestERGProcessor_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("empty message", func(t *testing.T) {
		processor := newProcessor(t, fmt.Sprintf("info_path: %s", writeInfo(t)))
		batch, err := processor.Process(ctx, service.NewMessage(nil))
		require.NoError(t, err)
		require.Len(t, batch, 1)
		assert.NotNil(t, batch[0].GetError(), "Expected error on the output message for empty input")
	})

	t.Run("truncated payload", func(t *testing.T) {
		processor := newProcessor(t, fmt.Sprintf("info_path: %s", writeInfo(t)))
		data := payload()
		batch, err := processor.Process(ctx, service.NewMessage(data[:len(data)-2]))
		require.NoError(t, err)
		require.Error(t, batch[0].GetError())
		assert.Contains(t, batch[0].GetError().Error(), "not a multiple of the 9 byte record size")
	})

	t.Run("missing info file", func(t *testing.T) {
		processor := newProcessor(t, "info_path: /nonexistent/Run.erg.info")
		batch, err := processor.Process(ctx, service.NewMessage(payload()))
		require.NoError(t, err)
		require.Error(t, batch[0].GetError())
		assert.Contains(t, batch[0].GetError().Error(), "failed to load info file")
	})

	t.Run("unknown channel", func(t *testing.T) {
		processor := newProcessor(t, fmt.Sprintf("info_path: %s\nchannels: [ Nope ]", writeInfo(t)))
		batch, err := processor.Process(ctx, service.NewMessage(payload()))
		require.NoError(t, err)
		assert.Contains(t, batch[0].GetError().Error(), "Nope")
	})

	t.Run("bad derivation", func(t *testing.T) {
		processor := newProcessor(t, fmt.Sprintf("info_path: %s\nderive:\n  - name: X\n    expr: Temp +", writeInfo(t)))
		batch, err := processor.Process(ctx, service.NewMessage(payload()))
		require.NoError(t, err)
		assert.Contains(t, batch[0].GetError().Error(), "failed to derive channels")
	})
}

func TestERGProcessor_UnknownTextEncoding(t *testing.T) {
	pConf, err := ergProcessorConfig().ParseYAML(fmt.Sprintf("info_path: %s\ntext_encoding: klingon", writeInfo(t)), nil)
	require.NoError(t, err)
	_, err = newERGProcessorFromConfig(pConf, service.MockResources())
	assert.Error(t, err)
}

func TestERGProcessor_MetadataCache(t *testing.T) {
	infoPath := writeInfo(t)
	processor := newProcessor(t, fmt.Sprintf("info_path: %s", infoPath))
	ctx := context.Background()

	batch, err := processor.Process(ctx, service.NewMessage(payload()))
	require.NoError(t, err)
	require.NoError(t, batch[0].GetError())

	// Later messages reuse the parsed layout.
	require.NoError(t, os.Remove(infoPath))
	batch, err = processor.Process(ctx, service.NewMessage(payload()))
	require.NoError(t, err)
	require.NoError(t, batch[0].GetError())

	require.NoError(t, processor.Close(ctx))
	batch, err = processor.Process(ctx, service.NewMessage(payload()))
	require.NoError(t, err)
	assert.Error(t, batch[0].GetError())
}

func TestERGProcessor_DecodeLogsUseServiceLogger(t *testing.T) {
	var buf bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(previous) })

	processor := newProcessor(t, fmt.Sprintf("info_path: %s", writeInfo(t)))
	ctx := context.Background()

	batch, err := processor.Process(ctx, service.NewMessage(payload()))
	require.NoError(t, err)
	require.NoError(t, batch[0].GetError())

	data := payload()
	batch, err = processor.Process(ctx, service.NewMessage(data[:len(data)-2]))
	require.NoError(t, err)
	require.Error(t, batch[0].GetError())

	assert.Empty(t, buf.String())
}

func TestServiceHandler_Format(t *testing.T) {
	var h slog.Handler = &serviceHandler{}
	assert.False(t, h.Enabled(context.Background(), slog.LevelError))

	h = h.WithAttrs([]slog.Attr{slog.String("file", "Run.erg")}).WithGroup("decode")
	r := slog.NewRecord(time.Time{}, slog.LevelDebug, "Decoding ERG records", 0)
	r.AddAttrs(slog.Int("records", 2))

	assert.Equal(t, "Decoding ERG records file=Run.erg decode.records=2", h.(*serviceHandler).format(r))
}

package main

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twinfer/erg-plugin/testutil"
)

func writeRun(t *testing.T) string {
	t.Helper()
	info := testutil.InfoText("LittleEndian", 0,
		testutil.Channel{Name: "Time", Type: "Double", Unit: "s"},
		testutil.Channel{Name: "Car.v", Type: "UShort", Unit: "m/s", Factor: "0.01", Offset: "0"},
	)
	payload := testutil.Payload(binary.LittleEndian,
		[]any{float64(0), uint16(500)},
		[]any{float64(0.1), uint16(1500)},
	)
	return testutil.WriteERG(t, t.TempDir(), "Run.erg", info, payload)
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := newApp(&stdout, &stderr).Run(append([]string{"ergdump"}, args...))
	return stdout.String(), err
}

func TestInfo(t *testing.T) {
	out, err := run(t, "info", writeRun(t))
	require.NoError(t, err)
	assert.Contains(t, out, "Records:      2")
	assert.Contains(t, out, "Byte order:   LittleEndian")
	assert.Regexp(t, `Car\.v\s+UShort\s+m/s\s+0\.01\s+0`, out)
	assert.Regexp(t, `Time\s+Double\s+s\s+-\s+-`, out)
}

func TestCSV(t *testing.T) {
	path := writeRun(t)

	out, err := run(t, "csv", path)
	require.NoError(t, err)
	assert.Equal(t, "Time_s,Car.v_m/s\n0,5\n0.1,15\n", out)

	out, err = run(t, "csv", "--raw", "--channel", "Car.v", "--where", "Car_v > 1000", path)
	require.NoError(t, err)
	assert.Equal(t, "Car.v_m/s\n1500\n", out)
}

func TestCSV_Derive(t *testing.T) {
	path := writeRun(t)
	derive := filepath.Join(t.TempDir(), "derive.yaml")
	require.NoError(t, os.WriteFile(derive, []byte("derivations:\n  - name: Half\n    expr: Car_v / 2.0\n"), 0644))

	out, err := run(t, "csv", "--derive", derive, "-c", "Half", path)
	require.NoError(t, err)
	assert.Equal(t, "Half\n2.5\n7.5\n", out)
}

func TestJSON(t *testing.T) {
	out, err := run(t, "json", "--raw", writeRun(t))
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, 2.0, doc["records"])
	channels := doc["channels"].([]any)
	require.Len(t, channels, 2)
	v := channels[1].(map[string]any)
	assert.Equal(t, []any{500.0, 1500.0}, v["samples"])
	assert.Equal(t, map[string]any{"factor": 0.01, "offset": 0.0}, v["conversion"])
}

func TestErrors(t *testing.T) {
	_, err := run(t, "info")
	assert.Error(t, err)

	_, err = run(t, "csv", filepath.Join(t.TempDir(), "missing.erg"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = run(t, "csv", "--where", "Car_v +", writeRun(t))
	assert.Error(t, err)

	_, err = run(t, "--encoding", "klingon", "info", writeRun(t))
	assert.Error(t, err)
}

package erg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twinfer/erg-plugin/pkg/ergstruct"
	"github.com/twinfer/erg-plugin/testutil"
)

func TestIdentifier(t *testing.T) {
	tests := map[string]string{
		"Car.v":          "Car_v",
		"Vhcl.Steer.Ang": "Vhcl_Steer_Ang",
		"Time":           "Time",
		"3D.x":           "_3D_x",
		"a b-c":          "a_b_c",
		"in":             "in_",
		"and":            "and_",
		"nil":            "nil_",
		"matches":        "matches_",
		"":               "_",
	}
	for name, want := range tests {
		assert.Equal(t, want, Identifier(name), name)
	}
}

func TestParseDerivations(t *testing.T) {
	defs, err := ParseDerivations([]byte(`
derivations:
  - name: Car.v_kmh
    unit: km/h
    expr: Car_v * 3.6
  - name: Doubled
    expr: Car_v_kmh * 2.0
`))
	require.NoError(t, err)
	assert.Equal(t, []Derivation{
		{Name: "Car.v_kmh", Unit: "km/h", Expr: "Car_v * 3.6"},
		{Name: "Doubled", Expr: "Car_v_kmh * 2.0"},
	}, defs)

	_, err = ParseDerivations([]byte("derivations:\n  - unit: x\n    expr: 1.0\n"))
	assert.ErrorContains(t, err, "missing name")
	_, err = ParseDerivations([]byte("derivations:\n  - name: x\n"))
	assert.ErrorContains(t, err, "missing expr")
	_, err = ParseDerivations([]byte("derivations: [unclosed"))
	assert.Error(t, err)
}

func TestLoadDerivations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "derive.yaml")
	require.NoError(t, os.WriteFile(path, []byte("derivations:\n  - name: Zero\n    expr: 0.0\n"), 0644))

	defs, err := LoadDerivations(path)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "Zero", defs[0].Name)

	_, err = LoadDerivations(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDerive(t *testing.T) {
	m, err := Open(writeRun(t), WithLogger(quietLogger()))
	require.NoError(t, err)

	err = Derive(m,
		Derivation{Name: "Car.v_kmh", Unit: "km/h", Expr: "Car_v * 3.6"},
		Derivation{Name: "Dist", Unit: "m", Expr: "Car_v_kmh / 3.6 * t"},
		Derivation{Name: "Index", Expr: "i"},
		Derivation{Name: "Peak", Expr: "max(Car_v, 10.0)"},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"Time", "Car.v", "Mode", "Car.v_kmh", "Dist", "Index", "Peak"}, m.Names())

	kmh, err := m.Get("Car.v_kmh", false)
	require.NoError(t, err)
	assert.Equal(t, "km/h", kmh.Unit)
	assert.Equal(t, ergstruct.Double, kmh.Samples.Type())
	assert.True(t, testutil.FloatsEqual([]float64{21.6, 39.6, 57.6}, kmh.Samples.Float64s()))

	dist, err := m.Get("Dist", true)
	require.NoError(t, err)
	assert.True(t, testutil.FloatsEqual([]float64{0, 0.11, 0.32}, dist.Samples.Float64s()),
		testutil.FloatsDiff([]float64{0, 0.11, 0.32}, dist.Samples.Float64s()))

	index, err := m.Get("Index", false)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2}, index.Samples.Float64s())

	peak, err := m.Get("Peak", false)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 11, 16}, peak.Samples.Float64s())
}

func TestDerive_Errors(t *testing.T) {
	m, err := Open(writeRun(t), WithLogger(quietLogger()))
	require.NoError(t, err)

	tests := []struct {
		name string
		def  Derivation
		msg  string
	}{
		{"syntax", Derivation{Name: "Bad", Expr: "Car_v *"}, "failed to compile"},
		{"unknown channel", Derivation{Name: "Bad", Expr: "Nope * 2.0"}, "failed to compile"},
		{"text result", Derivation{Name: "Bad", Expr: "'x'"}, "want a number"},
		{"runtime error", Derivation{Name: "Bad", Expr: "error('boom')"}, "boom"},
		{"forward reference", Derivation{Name: "Bad", Expr: "Later * 1.0"}, "record 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defs := []Derivation{tt.def}
			if tt.name == "forward reference" {
				defs = append(defs, Derivation{Name: "Later", Expr: "1.0"})
			}
			err := Derive(m, defs...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
			assert.False(t, m.Has("Bad"))
		})
	}
}

func TestDerive_NoDefinitions(t *testing.T) {
	m := ergstruct.NewMeasurement("empty", nil)
	assert.NoError(t, Derive(m))
	assert.Equal(t, 0, m.Len())
}

package cel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBitwiseFunctions(t *testing.T) {
	pool, err := NewExpressionPool([]string{"Status"})
	require.NoError(t, err)

	tests := []struct {
		name string
		expr string
		want float64
	}{
		{"and with int literal", "bitAnd(Status, 12)", 0b1000},
		{"or", "bitOr(Status, 5.0)", 0b1111},
		{"xor", "bitXor(Status, 12u)", 0b0110},
		{"shift left", "bitShiftLeft(Status, 2)", 0b101000},
		{"shift right", "bitShiftRight(Status, 1)", 0b101},
		{"shift out", "bitShiftRight(Status, 64)", 0},
		{"bit set", "bit(Status, 3)", 1},
		{"bit clear", "bit(Status, 2)", 0},
		{"combines with arithmetic", "bit(Status, 1) * 10.0", 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			program, err := pool.GetExpression(tt.expr)
			require.NoError(t, err)
			got, err := pool.EvaluateExpression(program, map[string]any{"Status": 10.0})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBitwiseFunctions_RejectsNonFinite(t *testing.T) {
	pool, err := NewExpressionPool([]string{"x"})
	require.NoError(t, err)

	program, err := pool.GetExpression("bitAnd(x, 1)")
	require.NoError(t, err)
	_, err = pool.EvaluateExpression(program, map[string]any{"x": 1.0 / zero()})
	assert.ErrorContains(t, err, "finite")

	_, err = pool.GetExpression("bitAnd(x, 'a')")
	require.NoError(t, err, "operands are checked at evaluation time")
}

func TestSafeArithmeticFunctions(t *testing.T) {
	pool, err := NewExpressionPool([]string{"a", "b"})
	require.NoError(t, err)

	tests := []struct {
		expr string
		vars map[string]any
		want float64
	}{
		{"div(a, b, -1.0)", map[string]any{"a": 6.0, "b": 3.0}, 2},
		{"div(a, b, -1.0)", map[string]any{"a": 6.0, "b": 0.0}, -1},
		{"clamp(a, 0.0, 1.0)", map[string]any{"a": 1.5}, 1},
		{"clamp(a, 0.0, 1.0)", map[string]any{"a": -0.5}, 0},
		{"clamp(a, 0.0, 1.0)", map[string]any{"a": 0.25}, 0.25},
	}
	for _, tt := range tests {
		program, err := pool.GetExpression(tt.expr)
		require.NoError(t, err)
		got, err := pool.EvaluateExpression(program, tt.vars)
		require.NoError(t, err, tt.expr)
		assert.Equal(t, tt.want, got, tt.expr)
	}

	program, err := pool.GetExpression("clamp(a, 1.0, 0.0)")
	require.NoError(t, err)
	_, err = pool.EvaluateExpression(program, map[string]any{"a": 0.5})
	assert.ErrorContains(t, err, "lower bound")
}

func zero() float64 { return 0 }

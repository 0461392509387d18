package cel

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpressionPool_Evaluate(t *testing.T) {
	pool, err := NewExpressionPool([]string{"Car_v", "Car_ax"})
	require.NoError(t, err)

	tests := []struct {
		expr string
		vars map[string]any
		want float64
	}{
		{"Car_v * 3.6", map[string]any{"Car_v": 10.0}, 36},
		{"hypot(Car_v, Car_ax)", map[string]any{"Car_v": 3.0, "Car_ax": 4.0}, 5},
		{"abs(Car_ax) + sqrt(Car_v)", map[string]any{"Car_v": 9.0, "Car_ax": -1.0}, 4},
		{"pow(Car_v, 2.0)", map[string]any{"Car_v": 3.0}, 9},
		{"max(Car_v, Car_ax)", map[string]any{"Car_v": 3.0, "Car_ax": 4.0}, 4},
		{"min(Car_v, Car_ax)", map[string]any{"Car_v": 3.0, "Car_ax": 4.0}, 3},
		{"deg(rad(90.0))", nil, 90},
		{"double(i) * 2.0 + t", map[string]any{"i": int64(3), "t": 0.5}, 6.5},
		{"i + 1", map[string]any{"i": int64(1)}, 2},
		{"Car_v > 1.0 ? 1.0 : 0.0", map[string]any{"Car_v": 2.0}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			program, err := pool.GetExpression(tt.expr)
			require.NoError(t, err)
			got, err := pool.EvaluateExpression(program, tt.vars)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestExpressionPool_Caches(t *testing.T) {
	pool, err := NewExpressionPool([]string{"x"})
	require.NoError(t, err)

	_, err = pool.GetExpression("x + 1.0")
	require.NoError(t, err)
	_, err = pool.GetExpression("x + 1.0")
	require.NoError(t, err)
	assert.Len(t, pool.expressions, 1)
}

func TestExpressionPool_CompileErrors(t *testing.T) {
	pool, err := NewExpressionPool([]string{"x"})
	require.NoError(t, err)

	for _, expr := range []string{
		"y + 1.0", // undeclared
		"x + 1",   // double + int has no overload
		"'text'",  // not a number
		"x > 1.0", // bool
		"x +",     // syntax
	} {
		_, err := pool.GetExpression(expr)
		assert.Error(t, err, expr)
	}
}

func TestExpressionPool_RuntimeError(t *testing.T) {
	pool, err := NewExpressionPool([]string{"x"})
	require.NoError(t, err)

	program, err := pool.GetExpression(`x >= 0.0 ? sqrt(x) : error("negative")`)
	require.NoError(t, err)

	got, err := pool.EvaluateExpression(program, map[string]any{"x": 16.0})
	require.NoError(t, err)
	assert.Equal(t, 4.0, got)

	_, err = pool.EvaluateExpression(program, map[string]any{"x": -1.0})
	assert.ErrorContains(t, err, "negative")
}

func TestNewEnvironment_Collision(t *testing.T) {
	_, err := NewEnvironment([]string{"t"})
	assert.Error(t, err)
}

func TestMathFunctions_NaN(t *testing.T) {
	pool, err := NewExpressionPool([]string{"x"})
	require.NoError(t, err)
	program, err := pool.GetExpression("sqrt(x)")
	require.NoError(t, err)
	got, err := pool.EvaluateExpression(program, map[string]any{"x": -4.0})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(got))
}

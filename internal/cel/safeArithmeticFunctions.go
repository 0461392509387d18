package cel

import (
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// SafeArithmeticFunctions returns CEL function declarations for arithmetic
// that does not produce Inf or NaN on degenerate input.
func SafeArithmeticFunctions() cel.EnvOption {
	return cel.Lib(&safeArithmeticLib{})
}

type safeArithmeticLib struct{}

func (*safeArithmeticLib) CompileOptions() []cel.EnvOption {
	return []cel.EnvOption{
		// div(x, y, fallback) - x / y, or fallback when y is zero
		cel.Function("div",
			cel.Overload("div_double_double_double", []*cel.Type{cel.DoubleType, cel.DoubleType, cel.DoubleType}, cel.DoubleType,
				cel.FunctionBinding(func(args ...ref.Val) ref.Val {
					x, ok1 := args[0].(types.Double)
					y, ok2 := args[1].(types.Double)
					fallback, ok3 := args[2].(types.Double)
					if !ok1 || !ok2 || !ok3 {
						return types.NewErr("arguments to div must be doubles")
					}
					if y == 0 {
						return fallback
					}
					return types.Double(x / y)
				}),
			),
		),

		// clamp(x, lo, hi) - x limited to [lo, hi]
		cel.Function("clamp",
			cel.Overload("clamp_double_double_double", []*cel.Type{cel.DoubleType, cel.DoubleType, cel.DoubleType}, cel.DoubleType,
				cel.FunctionBinding(func(args ...ref.Val) ref.Val {
					x, ok1 := args[0].(types.Double)
					lo, ok2 := args[1].(types.Double)
					hi, ok3 := args[2].(types.Double)
					if !ok1 || !ok2 || !ok3 {
						return types.NewErr("arguments to clamp must be doubles")
					}
					if lo > hi {
						return types.NewErr("clamp: lower bound %v above upper bound %v", lo, hi)
					}
					switch {
					case x < lo:
						return lo
					case x > hi:
						return hi
					}
					return x
				}),
			),
		),
	}
}

func (*safeArithmeticLib) ProgramOptions() []cel.ProgramOption {
	return []cel.ProgramOption{}
}

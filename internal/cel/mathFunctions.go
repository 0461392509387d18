package cel

import (
	"math"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// MathFunctions returns CEL function declarations for math on doubles.
func MathFunctions() cel.EnvOption {
	return cel.Lib(&mathLib{})
}

type mathLib struct{}

func unaryDouble(name string, fn func(float64) float64) cel.EnvOption {
	return cel.Function(name,
		cel.Overload(name+"_double", []*cel.Type{cel.DoubleType}, cel.DoubleType,
			cel.UnaryBinding(func(val ref.Val) ref.Val {
				x, ok := val.(types.Double)
				if !ok {
					return types.NewErr("expected double argument to %s, got %T", name, val)
				}
				return types.Double(fn(float64(x)))
			}),
		),
	)
}

func binaryDouble(name string, fn func(float64, float64) float64) cel.EnvOption {
	return cel.Function(name,
		cel.Overload(name+"_double_double", []*cel.Type{cel.DoubleType, cel.DoubleType}, cel.DoubleType,
			cel.BinaryBinding(func(lhs, rhs ref.Val) ref.Val {
				x, ok1 := lhs.(types.Double)
				y, ok2 := rhs.(types.Double)
				if !ok1 || !ok2 {
					return types.NewErr("arguments to %s must be doubles", name)
				}
				return types.Double(fn(float64(x), float64(y)))
			}),
		),
	)
}

func (*mathLib) CompileOptions() []cel.EnvOption {
	return []cel.EnvOption{
		unaryDouble("abs", math.Abs),
		unaryDouble("sqrt", math.Sqrt),
		unaryDouble("ceil", math.Ceil),
		unaryDouble("floor", math.Floor),
		unaryDouble("round", math.Round),
		unaryDouble("deg", func(x float64) float64 { return x * 180 / math.Pi }),
		unaryDouble("rad", func(x float64) float64 { return x * math.Pi / 180 }),
		binaryDouble("pow", math.Pow),
		binaryDouble("hypot", math.Hypot),
		binaryDouble("min", math.Min),
		binaryDouble("max", math.Max),
	}
}

func (*mathLib) ProgramOptions() []cel.ProgramOption {
	return []cel.ProgramOption{}
}

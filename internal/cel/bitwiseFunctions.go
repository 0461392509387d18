package cel

import (
	"math"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// BitwiseFunctions returns CEL function declarations for bit operations on
// flag and status channels. Operands are truncated to unsigned integers and
// results come back as doubles so they combine with channel arithmetic.
func BitwiseFunctions() cel.EnvOption {
	return cel.Lib(&bitwiseLib{})
}

// toBits truncates a numeric CEL value to uint64. Negative values keep their
// two's complement bit pattern.
func toBits(val ref.Val) (uint64, bool) {
	switch v := val.(type) {
	case types.Int:
		return uint64(v), true
	case types.Uint:
		return uint64(v), true
	case types.Double:
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		if f < 0 {
			return uint64(int64(f)), true
		}
		return uint64(f), true
	}
	return 0, false
}

// performBitwiseOp applies op to both operands promoted to uint64.
func performBitwiseOp(lhs, rhs ref.Val, op func(uint64, uint64) uint64) ref.Val {
	l, lOk := toBits(lhs)
	r, rOk := toBits(rhs)
	if !lOk || !rOk {
		return types.NewErr("bitwise arguments must be finite numbers, got %v and %v", lhs, rhs)
	}
	return types.Double(op(l, r))
}

func binaryBits(name string, op func(uint64, uint64) uint64) cel.EnvOption {
	return cel.Function(name,
		cel.Overload(name+"_numeric", []*cel.Type{cel.DynType, cel.DynType}, cel.DoubleType,
			cel.BinaryBinding(func(lhs, rhs ref.Val) ref.Val {
				return performBitwiseOp(lhs, rhs, op)
			}),
		),
	)
}

type bitwiseLib struct{}

func (*bitwiseLib) CompileOptions() []cel.EnvOption {
	return []cel.EnvOption{
		binaryBits("bitAnd", func(a, b uint64) uint64 { return a & b }),
		binaryBits("bitOr", func(a, b uint64) uint64 { return a | b }),
		binaryBits("bitXor", func(a, b uint64) uint64 { return a ^ b }),
		binaryBits("bitShiftLeft", func(a, b uint64) uint64 {
			if b >= 64 {
				return 0
			}
			return a << b
		}),
		binaryBits("bitShiftRight", func(a, b uint64) uint64 {
			if b >= 64 {
				return 0
			}
			return a >> b
		}),
		// bit(x, n) is 1.0 when bit n of x is set.
		binaryBits("bit", func(a, n uint64) uint64 {
			if n >= 64 {
				return 0
			}
			return (a >> n) & 1
		}),
	}
}

func (*bitwiseLib) ProgramOptions() []cel.ProgramOption {
	return []cel.ProgramOption{}
}

package cel

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// Names of the per-record variables available to every expression besides
// the channel variables.
const (
	IndexVariable = "i" // record index, int
	TimeVariable  = "t" // record timestamp in seconds, double
)

// NewEnvironment creates a CEL environment for derived channel expressions.
// Every name in channels is declared as a double variable.
func NewEnvironment(channels []string) (*cel.Env, error) {
	opts := []cel.EnvOption{
		cel.Variable(IndexVariable, cel.IntType),
		cel.Variable(TimeVariable, cel.DoubleType),

		MathFunctions(),
		BitwiseFunctions(),
		SafeArithmeticFunctions(),
		ErrorHandlingFunctions(),
	}
	for _, name := range channels {
		if name == IndexVariable || name == TimeVariable {
			return nil, fmt.Errorf("channel variable %q collides with a built-in variable", name)
		}
		opts = append(opts, cel.Variable(name, cel.DoubleType))
	}

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return env, nil
}

func ErrorHandlingFunctions() cel.EnvOption {
	return cel.Lib(&errorLib{})
}

type errorLib struct{}

func (*errorLib) CompileOptions() []cel.EnvOption {
	return []cel.EnvOption{
		cel.Function("error",
			cel.Overload("error_string", []*cel.Type{cel.StringType}, cel.DoubleType,
				cel.UnaryBinding(func(val ref.Val) ref.Val {
					msg, ok := val.(types.String)
					if !ok {
						return types.NewErr("expected string for error message")
					}
					return types.NewErr("%s", msg)
				}),
			),
		),
	}
}

func (*errorLib) ProgramOptions() []cel.ProgramOption {
	return []cel.ProgramOption{}
}

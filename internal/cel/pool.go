// pool.go
package cel

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// ExpressionPool caches compiled CEL expressions for one set of channel
// variables.
type ExpressionPool struct {
	mu          sync.RWMutex
	expressions map[string]cel.Program
	env         *cel.Env
}

// NewExpressionPool creates a pool whose expressions may reference the given
// channel variables.
func NewExpressionPool(channels []string) (*ExpressionPool, error) {
	env, err := NewEnvironment(channels)
	if err != nil {
		return nil, fmt.Errorf("failed to create environment: %w", err)
	}
	return NewExpressionPoolWithEnv(env)
}

// NewExpressionPoolWithEnv creates a new expression pool with a custom CEL environment
func NewExpressionPoolWithEnv(env *cel.Env) (*ExpressionPool, error) {
	if env == nil {
		return nil, fmt.Errorf("CEL environment cannot be nil")
	}

	return &ExpressionPool{
		env:         env,
		expressions: make(map[string]cel.Program),
	}, nil
}

// GetExpression retrieves or compiles an expression. The expression must
// evaluate to a number.
func (e *ExpressionPool) GetExpression(exprStr string) (cel.Program, error) {
	e.mu.RLock()
	if program, ok := e.expressions[exprStr]; ok {
		e.mu.RUnlock()
		return program, nil
	}
	e.mu.RUnlock()

	ast, issues := e.env.Compile(exprStr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile expression '%s': %w", exprStr, issues.Err())
	}

	switch ast.OutputType().Kind() {
	case types.DoubleKind, types.IntKind, types.UintKind, types.DynKind:
	default:
		return nil, fmt.Errorf("expression '%s' yields %s, want a number", exprStr, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program: %w", err)
	}

	e.mu.Lock()
	e.expressions[exprStr] = program
	e.mu.Unlock()

	return program, nil
}

// EvaluateExpression evaluates a compiled expression and returns its value
// as float64.
func (e *ExpressionPool) EvaluateExpression(program cel.Program, activation any) (float64, error) {
	if activation == nil {
		activation = map[string]any{}
	}

	val, _, err := program.Eval(activation)
	if err != nil {
		return 0, fmt.Errorf("expression evaluation error: %w", err)
	}
	return toFloat(val)
}

// toFloat converts a numeric CEL result to float64.
func toFloat(val ref.Val) (float64, error) {
	switch v := val.(type) {
	case types.Double:
		return float64(v), nil
	case types.Int:
		return float64(v), nil
	case types.Uint:
		return float64(v), nil
	}
	return 0, fmt.Errorf("expression result %v of type %s is not a number", val, val.Type())
}

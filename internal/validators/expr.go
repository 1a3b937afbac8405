package validators

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/Knetic/govaluate"
	"go.starlark.net/starlark"

	"github.com/dwhswenson/codemodel"
	"github.com/dwhswenson/codemodel/internal/ast"
)

// ExprType is the type tag of parameters given as constant expressions,
// such as "2 * 3.5" or "sqrt(2)". The value is evaluated once and rendered
// as its result.
const ExprType = "expr"

////////////////////////////////////////////////////////////////////////////////
// Expression function registry
////////////////////////////////////////////////////////////////////////////////

var (
	exprFuncsMu sync.RWMutex
	exprFuncs   = map[string]govaluate.ExpressionFunction{
		"sqrt":  unary(math.Sqrt),
		"abs":   unary(math.Abs),
		"floor": unary(math.Floor),
		"ceil":  unary(math.Ceil),
		"pow":   binary(math.Pow),
		"min":   binary(math.Min),
		"max":   binary(math.Max),
	}
)

// RegisterExpressionFunction makes fn callable from expression values.
func RegisterExpressionFunction(name string, fn govaluate.ExpressionFunction) {
	exprFuncsMu.Lock()
	defer exprFuncsMu.Unlock()
	exprFuncs[name] = fn
}

// whitelistedFunctions returns a snapshot of the registered functions.
func whitelistedFunctions() map[string]govaluate.ExpressionFunction {
	exprFuncsMu.RLock()
	defer exprFuncsMu.RUnlock()
	out := make(map[string]govaluate.ExpressionFunction, len(exprFuncs))
	for k, v := range exprFuncs {
		out[k] = v
	}
	return out
}

func unary(f func(float64) float64) govaluate.ExpressionFunction {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("expected 1 argument, got %d", len(args))
		}
		x, ok := args[0].(float64)
		if !ok {
			return nil, fmt.Errorf("expected a number, got %T", args[0])
		}
		return f(x), nil
	}
}

func binary(f func(float64, float64) float64) govaluate.ExpressionFunction {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("expected 2 arguments, got %d", len(args))
		}
		x, ok1 := args[0].(float64)
		y, ok2 := args[1].(float64)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("expected numbers, got %T and %T", args[0], args[1])
		}
		return f(x, y), nil
	}
}

// ValidateExpression checks that expr parses.
func ValidateExpression(expr string) error {
	_, err := govaluate.NewEvaluableExpressionWithFunctions(expr, whitelistedFunctions())
	return err
}

// EvaluateExpression evaluates a constant expression.
func EvaluateExpression(expr string) (starlark.Value, error) {
	eval, err := govaluate.NewEvaluableExpressionWithFunctions(expr, whitelistedFunctions())
	if err != nil {
		return nil, fmt.Errorf("failed to parse expression %q: %w", expr, err)
	}
	result, err := eval.Evaluate(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate expression %q: %w", expr, err)
	}
	switch r := result.(type) {
	case float64:
		return starlark.Float(r), nil
	case bool:
		return starlark.Bool(r), nil
	case string:
		return starlark.String(r), nil
	}
	return nil, fmt.Errorf("expression %q evaluated to unsupported %T", expr, result)
}

// Expr validates constant expression parameters.
type Expr struct{}

func (Expr) Name() string { return ExprType }

func (Expr) ToInstance(_ context.Context, raw any) (starlark.Value, error) {
	s, ok := raw.(string)
	if !ok {
		v, err := codemodel.ToStarlark(raw)
		if err != nil || !isNumber(v) {
			return nil, codemodel.NewValidationError("conversion", fmt.Sprintf("invalid expression %v", raw), err)
		}
		return v, nil
	}
	v, err := EvaluateExpression(s)
	if err != nil {
		return nil, codemodel.NewValidationError("conversion", "invalid expression", err)
	}
	return v, nil
}

func (e Expr) ToSource(raw any) (ast.Expr, error) {
	v, err := e.ToInstance(context.Background(), raw)
	if err != nil {
		return nil, err
	}
	return ValueExpr(v)
}

func (Expr) IsValid(v starlark.Value) bool {
	switch v.(type) {
	case starlark.Int, starlark.Float, starlark.Bool, starlark.String:
		return true
	}
	return false
}

func (e Expr) Validate(raw any) bool {
	_, err := e.ToInstance(context.Background(), raw)
	return err == nil
}

// ExprFactory creates the expression validator.
type ExprFactory struct{}

func (ExprFactory) IsMyType(typeTag string) bool { return typeTag == ExprType }

func (ExprFactory) Create(string) (codemodel.Validator, error) { return Expr{}, nil }

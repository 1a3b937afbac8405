package validators

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"go.starlark.net/starlark"

	"github.com/dwhswenson/codemodel"
	"github.com/dwhswenson/codemodel/internal/ast"
)

// Scalar validates one of the standard scalar types. Raw values may be
// the string form of the value or a Go or Starlark value of the type.
type Scalar struct {
	name    string
	convert func(raw any) (starlark.Value, error)
	isValid func(v starlark.Value) bool
}

// StandardTypes lists the type tags handled by StandardFactory.
var StandardTypes = map[string]Scalar{
	"int":   {name: "int", convert: toInt, isValid: isInt},
	"float": {name: "float", convert: toFloat, isValid: isNumber},
	"str":   {name: "str", convert: toStr, isValid: isStr},
}

func (s Scalar) Name() string { return s.name }

func (s Scalar) ToInstance(_ context.Context, raw any) (starlark.Value, error) {
	v, err := s.convert(raw)
	if err != nil {
		return nil, codemodel.NewValidationError("conversion", fmt.Sprintf("invalid %s value %v", s.name, raw), err)
	}
	return v, nil
}

func (s Scalar) ToSource(raw any) (ast.Expr, error) {
	v, err := s.ToInstance(context.Background(), raw)
	if err != nil {
		return nil, err
	}
	return ValueExpr(v)
}

func (s Scalar) IsValid(v starlark.Value) bool { return s.isValid(v) }

func (s Scalar) Validate(raw any) bool {
	_, err := s.convert(raw)
	return err == nil
}

// StandardFactory creates the int, float and str validators.
type StandardFactory struct{}

func (StandardFactory) IsMyType(typeTag string) bool {
	_, ok := StandardTypes[typeTag]
	return ok
}

func (StandardFactory) Create(typeTag string) (codemodel.Validator, error) {
	s, ok := StandardTypes[typeTag]
	if !ok {
		return nil, fmt.Errorf("not a standard type: %q", typeTag)
	}
	return s, nil
}

func toInt(raw any) (starlark.Value, error) {
	switch x := raw.(type) {
	case bool, starlark.Bool:
		return nil, fmt.Errorf("booleans are not integers")
	case string:
		i, ok := new(big.Int).SetString(strings.TrimSpace(x), 10)
		if !ok {
			return nil, fmt.Errorf("invalid literal for int: %q", x)
		}
		return starlark.MakeBigInt(i), nil
	}
	v, err := codemodel.ToStarlark(raw)
	if err != nil {
		return nil, err
	}
	switch x := v.(type) {
	case starlark.Int:
		return x, nil
	case starlark.Float:
		f := float64(x)
		if math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) {
			return nil, fmt.Errorf("%v is not integral", f)
		}
		return starlark.NumberToInt(x)
	}
	return nil, fmt.Errorf("got %s, want int", v.Type())
}

func toFloat(raw any) (starlark.Value, error) {
	switch x := raw.(type) {
	case bool, starlark.Bool:
		return nil, fmt.Errorf("booleans are not floats")
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return nil, err
		}
		return starlark.Float(f), nil
	}
	v, err := codemodel.ToStarlark(raw)
	if err != nil {
		return nil, err
	}
	switch x := v.(type) {
	case starlark.Float:
		return x, nil
	case starlark.Int:
		return x.Float(), nil
	}
	return nil, fmt.Errorf("got %s, want float", v.Type())
}

func toStr(raw any) (starlark.Value, error) {
	switch x := raw.(type) {
	case string:
		return starlark.String(x), nil
	case starlark.String:
		return x, nil
	}
	return nil, fmt.Errorf("got %T, want a string", raw)
}

func isInt(v starlark.Value) bool {
	_, ok := v.(starlark.Int)
	return ok
}

func isNumber(v starlark.Value) bool {
	switch v.(type) {
	case starlark.Int, starlark.Float:
		return true
	}
	return false
}

func isStr(v starlark.Value) bool {
	_, ok := v.(starlark.String)
	return ok
}

// Bool validates true booleans. Unlike the scalar types it does not
// accept string forms. It is its own factory.
type Bool struct{}

// BoolFactory creates the bool validator.
type BoolFactory = Bool

func (Bool) Name() string { return "bool" }

func (Bool) ToInstance(_ context.Context, raw any) (starlark.Value, error) {
	switch x := raw.(type) {
	case bool:
		return starlark.Bool(x), nil
	case starlark.Bool:
		return x, nil
	}
	return nil, codemodel.NewValidationError("conversion", fmt.Sprintf("invalid bool value %v", raw), nil)
}

func (b Bool) ToSource(raw any) (ast.Expr, error) {
	v, err := b.ToInstance(context.Background(), raw)
	if err != nil {
		return nil, err
	}
	return ValueExpr(v)
}

func (Bool) IsValid(v starlark.Value) bool {
	_, ok := v.(starlark.Bool)
	return ok
}

func (b Bool) Validate(raw any) bool {
	_, err := b.ToInstance(context.Background(), raw)
	return err == nil
}

func (Bool) IsMyType(typeTag string) bool { return typeTag == "bool" }

func (b Bool) Create(string) (codemodel.Validator, error) { return b, nil }

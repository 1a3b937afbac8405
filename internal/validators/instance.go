package validators

import (
	"context"
	"fmt"

	"go.starlark.net/starlark"

	"github.com/dwhswenson/codemodel"
	"github.com/dwhswenson/codemodel/internal/ast"
)

// Instance is the opaque validator. A codemodel.Reference resolves to its
// value and renders as its code name; anything else is passed through as
// is and rendered as a literal.
type Instance struct{}

func (Instance) Name() string { return codemodel.InstanceType }

func (Instance) ToInstance(ctx context.Context, raw any) (starlark.Value, error) {
	if ref, ok := raw.(codemodel.Reference); ok {
		return ref.Value(ctx)
	}
	v, err := codemodel.ToStarlark(raw)
	if err != nil {
		return nil, codemodel.NewValidationError("conversion", fmt.Sprintf("invalid value %v", raw), err)
	}
	return v, nil
}

func (Instance) ToSource(raw any) (ast.Expr, error) {
	if ref, ok := raw.(codemodel.Reference); ok {
		return ast.NewName(ref.CodeName()), nil
	}
	v, err := codemodel.ToStarlark(raw)
	if err != nil {
		return nil, codemodel.NewValidationError("rendering", fmt.Sprintf("invalid value %v", raw), err)
	}
	return ValueExpr(v)
}

func (Instance) IsValid(starlark.Value) bool { return true }

func (Instance) Validate(raw any) bool {
	if _, ok := raw.(codemodel.Reference); ok {
		return true
	}
	_, err := codemodel.ToStarlark(raw)
	return err == nil
}

// InstanceFactory creates the opaque validator for the "instance" tag.
type InstanceFactory struct{}

func (InstanceFactory) IsMyType(typeTag string) bool { return typeTag == codemodel.InstanceType }

func (InstanceFactory) Create(string) (codemodel.Validator, error) { return Instance{}, nil }

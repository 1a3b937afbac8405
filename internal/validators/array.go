package validators

import (
	"context"
	"fmt"
	"strings"

	"go.starlark.net/starlark"

	"github.com/dwhswenson/codemodel"
	"github.com/dwhswenson/codemodel/internal/ast"
	"github.com/dwhswenson/codemodel/internal/parser"
)

// AnyDim marks a dimension of any length in an array shape.
const AnyDim = -1

// ParseArrayType interprets a tag of the form "array(SHAPE, DTYPE)". SHAPE
// is an int or a tuple of ints where None or ... accepts any length; DTYPE
// is one of int, float, str or bool.
func ParseArrayType(typeTag string) (shape []int, dtype string, err error) {
	bad := func(reason string) error {
		return fmt.Errorf("unable to interpret array type %q: %s", typeTag, reason)
	}
	e, perr := parser.ParseExpr(strings.ReplaceAll(typeTag, "...", "None"))
	if perr != nil {
		return nil, "", bad("not an expression")
	}
	call, ok := e.(*ast.Call)
	if !ok || len(call.Args) != 2 || len(call.Keywords) != 0 {
		return nil, "", bad("want array(shape, dtype)")
	}
	if fn, ok := call.Func.(*ast.Name); !ok || fn.ID != "array" {
		return nil, "", bad("want array(shape, dtype)")
	}

	dims := []ast.Expr{call.Args[0]}
	if t, ok := call.Args[0].(*ast.Tuple); ok {
		dims = t.Elts
	}
	for _, d := range dims {
		switch d := d.(type) {
		case *ast.Literal:
			n, ok := d.Value.(int64)
			if d.Kind != ast.IntLit || !ok || n < 0 {
				return nil, "", bad("dimensions must be non-negative ints")
			}
			shape = append(shape, int(n))
		case *ast.Name:
			if d.ID != "None" {
				return nil, "", bad(fmt.Sprintf("unknown dimension %s", d.ID))
			}
			shape = append(shape, AnyDim)
		default:
			return nil, "", bad("dimensions must be ints")
		}
	}

	name, ok := call.Args[1].(*ast.Name)
	if !ok {
		return nil, "", bad("dtype must be a type name")
	}
	if _, std := StandardTypes[name.ID]; !std && name.ID != "bool" {
		return nil, "", bad(fmt.Sprintf("unsupported dtype %s", name.ID))
	}
	return shape, name.ID, nil
}

// IsArrayType reports whether typeTag is a valid array type.
func IsArrayType(typeTag string) bool {
	_, _, err := ParseArrayType(typeTag)
	return err == nil
}

// Array validates fixed-shape nested lists with a single element type.
type Array struct {
	name  string
	shape []int
	elem  codemodel.Validator
}

// NewArray creates the validator for an array type tag.
func NewArray(typeTag string) (*Array, error) {
	shape, dtype, err := ParseArrayType(typeTag)
	if err != nil {
		return nil, err
	}
	var elem codemodel.Validator = Bool{}
	if s, ok := StandardTypes[dtype]; ok {
		elem = s
	}
	return &Array{name: typeTag, shape: shape, elem: elem}, nil
}

func (a *Array) Name() string { return a.name }

// Shape returns the declared shape; AnyDim marks free dimensions.
func (a *Array) Shape() []int { return a.shape }

func (a *Array) ToInstance(ctx context.Context, raw any) (starlark.Value, error) {
	v, err := a.rawValue(raw)
	if err == nil {
		v, err = a.build(ctx, v, 0)
	}
	if err != nil {
		return nil, codemodel.NewValidationError("conversion", fmt.Sprintf("invalid %s value", a.name), err)
	}
	return v, nil
}

func (a *Array) rawValue(raw any) (starlark.Value, error) {
	if s, ok := raw.(string); ok {
		return EvalLiteral(s)
	}
	return codemodel.ToStarlark(raw)
}

func (a *Array) build(ctx context.Context, v starlark.Value, depth int) (starlark.Value, error) {
	if depth == len(a.shape) {
		return a.elem.ToInstance(ctx, v)
	}
	elems, err := a.dimension(v, depth)
	if err != nil {
		return nil, err
	}
	out := make([]starlark.Value, len(elems))
	for i, e := range elems {
		if out[i], err = a.build(ctx, e, depth+1); err != nil {
			return nil, err
		}
	}
	return starlark.NewList(out), nil
}

func (a *Array) dimension(v starlark.Value, depth int) ([]starlark.Value, error) {
	var elems []starlark.Value
	switch x := v.(type) {
	case *starlark.List:
		for i := 0; i < x.Len(); i++ {
			elems = append(elems, x.Index(i))
		}
	case starlark.Tuple:
		elems = x
	default:
		return nil, fmt.Errorf("dimension %d: got %s, want a list", depth, v.Type())
	}
	if want := a.shape[depth]; want != AnyDim && len(elems) != want {
		return nil, fmt.Errorf("dimension %d: got length %d, want %d", depth, len(elems), want)
	}
	return elems, nil
}

func (a *Array) ToSource(raw any) (ast.Expr, error) {
	v, err := a.ToInstance(context.Background(), raw)
	if err != nil {
		return nil, err
	}
	return ValueExpr(v)
}

func (a *Array) IsValid(v starlark.Value) bool {
	return a.check(v, 0)
}

func (a *Array) check(v starlark.Value, depth int) bool {
	if depth == len(a.shape) {
		return a.elem.IsValid(v)
	}
	elems, err := a.dimension(v, depth)
	if err != nil {
		return false
	}
	for _, e := range elems {
		if !a.check(e, depth+1) {
			return false
		}
	}
	return true
}

func (a *Array) Validate(raw any) bool {
	_, err := a.ToInstance(context.Background(), raw)
	return err == nil
}

// ArrayFactory creates array validators.
type ArrayFactory struct{}

func (ArrayFactory) IsMyType(typeTag string) bool {
	return strings.HasPrefix(strings.TrimSpace(typeTag), "array(") && IsArrayType(typeTag)
}

func (ArrayFactory) Create(typeTag string) (codemodel.Validator, error) {
	return NewArray(typeTag)
}

package validators

import (
	"fmt"

	"go.starlark.net/starlark"

	"github.com/dwhswenson/codemodel/internal/ast"
	"github.com/dwhswenson/codemodel/internal/parser"
)

// literalSteps bounds the work done evaluating a literal parameter value.
const literalSteps = 10000

// ValueExpr renders a runtime value as the expression that rebuilds it.
// Only None, booleans, numbers, strings, lists, tuples and dicts of those
// have a literal form.
func ValueExpr(v starlark.Value) (ast.Expr, error) {
	switch x := v.(type) {
	case starlark.NoneType:
		return ast.NewName("None"), nil
	case starlark.Bool:
		if x {
			return ast.NewName("True"), nil
		}
		return ast.NewName("False"), nil
	case starlark.Int:
		if i, ok := x.Int64(); ok {
			return ast.NewInt(i), nil
		}
		return &ast.Literal{Kind: ast.IntLit, Value: x.BigInt()}, nil
	case starlark.Float:
		return ast.NewFloat(float64(x)), nil
	case starlark.String:
		return ast.NewString(string(x)), nil
	case *starlark.List:
		elts, err := valueExprs(x)
		if err != nil {
			return nil, err
		}
		return &ast.List{Elts: elts}, nil
	case starlark.Tuple:
		elts, err := valueExprs(x)
		if err != nil {
			return nil, err
		}
		return &ast.Tuple{Elts: elts}, nil
	case *starlark.Dict:
		d := &ast.Dict{}
		for _, item := range x.Items() {
			k, err := ValueExpr(item[0])
			if err != nil {
				return nil, err
			}
			val, err := ValueExpr(item[1])
			if err != nil {
				return nil, err
			}
			d.Entries = append(d.Entries, &ast.DictEntry{Key: k, Value: val})
		}
		return d, nil
	}
	return nil, fmt.Errorf("%s value has no literal form", v.Type())
}

func valueExprs(seq starlark.Iterable) ([]ast.Expr, error) {
	var out []ast.Expr
	it := seq.Iterate()
	defer it.Done()
	var elem starlark.Value
	for it.Next(&elem) {
		e, err := ValueExpr(elem)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// EvalLiteral evaluates src as a single expression with only the
// universal builtins in scope.
func EvalLiteral(src string) (starlark.Value, error) {
	thread := &starlark.Thread{Name: "literal"}
	thread.SetMaxExecutionSteps(literalSteps)
	return starlark.EvalOptions(parser.Options(), thread, "<value>", src, nil)
}

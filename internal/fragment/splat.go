package fragment

import (
	"fmt"

	"go.starlark.net/starlark"

	"github.com/dwhswenson/codemodel/internal/ast"
)

// SourceSplatter expands variadic values given as expression nodes. List
// and tuple displays are expanded element-wise and dict displays with
// string keys entry-wise; anything else is passed as *expr or **expr.
type SourceSplatter struct{}

func (SourceSplatter) SplatPositional(e ast.Expr) ([]ast.Expr, bool, error) {
	switch e := e.(type) {
	case *ast.List:
		return e.Elts, true, nil
	case *ast.Tuple:
		return e.Elts, true, nil
	}
	return []ast.Expr{&ast.Starred{X: e}}, false, nil
}

func (SourceSplatter) SplatKeyword(e ast.Expr) ([]KeywordArg[ast.Expr], error) {
	if d, ok := e.(*ast.Dict); ok {
		kws := make([]KeywordArg[ast.Expr], 0, len(d.Entries))
		for _, entry := range d.Entries {
			key, ok := stringConstant(entry.Key)
			if !ok {
				return []KeywordArg[ast.Expr]{{Value: e}}, nil
			}
			kws = append(kws, KeywordArg[ast.Expr]{Name: key, Value: entry.Value})
		}
		return kws, nil
	}
	return []KeywordArg[ast.Expr]{{Value: e}}, nil
}

// ValueSplatter expands variadic runtime values.
type ValueSplatter struct{}

func (ValueSplatter) SplatPositional(v starlark.Value) ([]starlark.Value, bool, error) {
	if _, isString := v.(starlark.String); isString {
		return nil, false, fmt.Errorf("got string, want a sequence")
	}
	iter, ok := v.(starlark.Iterable)
	if !ok {
		return nil, false, fmt.Errorf("got %s, want a sequence", v.Type())
	}
	var elems []starlark.Value
	it := iter.Iterate()
	defer it.Done()
	var x starlark.Value
	for it.Next(&x) {
		elems = append(elems, x)
	}
	return elems, true, nil
}

func (ValueSplatter) SplatKeyword(v starlark.Value) ([]KeywordArg[starlark.Value], error) {
	m, ok := v.(starlark.IterableMapping)
	if !ok {
		return nil, fmt.Errorf("got %s, want a mapping", v.Type())
	}
	var kws []KeywordArg[starlark.Value]
	for _, item := range m.Items() {
		key, ok := starlark.AsString(item[0])
		if !ok {
			return nil, fmt.Errorf("keywords must be strings, not %s", item[0].Type())
		}
		kws = append(kws, KeywordArg[starlark.Value]{Name: key, Value: item[1]})
	}
	return kws, nil
}

// CallExpr builds func(args...) from assembled source arguments.
func CallExpr(fn ast.Expr, args Arguments[ast.Expr]) *ast.Call {
	call := &ast.Call{Func: fn, Args: args.Positional}
	for _, kw := range args.Keywords {
		call.Keywords = append(call.Keywords, &ast.Keyword{Name: kw.Name, Value: kw.Value})
	}
	return call
}

// StarlarkArgs converts assembled runtime arguments into the form taken by
// starlark.Call.
func StarlarkArgs(args Arguments[starlark.Value]) (starlark.Tuple, []starlark.Tuple) {
	pos := starlark.Tuple(args.Positional)
	kwargs := make([]starlark.Tuple, 0, len(args.Keywords))
	for _, kw := range args.Keywords {
		kwargs = append(kwargs, starlark.Tuple{starlark.String(kw.Name), kw.Value})
	}
	return pos, kwargs
}

func stringConstant(e ast.Expr) (string, bool) {
	lit, ok := e.(*ast.Literal)
	if !ok || lit.Kind != ast.StringLit {
		return "", false
	}
	s, ok := lit.Value.(string)
	return s, ok
}

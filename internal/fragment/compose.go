package fragment

import (
	"context"

	"github.com/dwhswenson/codemodel"
	"github.com/dwhswenson/codemodel/internal/ast"
	"github.com/dwhswenson/codemodel/internal/parser"
)

// NormalizeIndentation strips the common leading indent of a snippet.
func NormalizeIndentation(src string) string {
	return parser.Dedent(src)
}

// BodyOf parses the definition of fn and returns the statements of its
// direct body. A leading docstring is dropped.
func BodyOf(fn codemodel.SourceCallable) ([]ast.Stmt, error) {
	def, err := parser.ParseFunc(fn.Name()+".star", fn.Source())
	if err != nil {
		return nil, err
	}
	body := def.Body
	if len(body) > 0 {
		if es, ok := body[0].(*ast.ExprStmt); ok {
			if _, isDoc := stringConstant(es.X); isDoc {
				body = body[1:]
			}
		}
	}
	return body, nil
}

// MappingStageFragment turns a mapping-returning stage into statements:
// its returns become field assignments and its parameters are replaced by
// subs.
func MappingStageFragment(fn codemodel.SourceCallable, subs map[string]ast.Expr) ([]ast.Stmt, error) {
	body, err := BodyOf(fn)
	if err != nil {
		return nil, err
	}
	body, err = MappingReturnToAssignments(body, GlobalScope)
	if err != nil {
		return nil, err
	}
	return ReplaceNames(body, subs), nil
}

// TerminalStageFragment turns the object-producing stage into statements:
// its returns assign to assign (DefaultAssignName when empty) and its
// parameters are replaced by subs.
func TerminalStageFragment(fn codemodel.SourceCallable, subs map[string]ast.Expr, assign string) ([]ast.Stmt, error) {
	body, err := BodyOf(fn)
	if err != nil {
		return nil, err
	}
	body, err = ReturnToAssign(body, GlobalScope, assign)
	if err != nil {
		return nil, err
	}
	return ReplaceNames(body, subs), nil
}

// CallFragment synthesizes a call of fn with arguments taken from subs,
// as prefix.name(...) when prefix is set. With assign set the call is
// wrapped in an assignment.
func CallFragment(ctx context.Context, fn codemodel.Callable, subs map[string]ast.Expr, assign, prefix string) (ast.Stmt, error) {
	args, err := BuildArguments[ast.Expr](ctx, fn.Name(), fn.Parameters(), subs, SourceSplatter{})
	if err != nil {
		return nil, err
	}
	var callee ast.Expr = ast.NewName(fn.Name())
	if prefix != "" {
		callee = &ast.Attribute{X: dotted(prefix), Name: fn.Name()}
	}
	call := CallExpr(callee, args)
	if assign == "" {
		return &ast.ExprStmt{X: call}, nil
	}
	return ast.NewAssign(assign, call), nil
}

// dotted builds a.b.c as nested attribute references.
func dotted(path string) ast.Expr {
	var e ast.Expr
	start := 0
	for i := 0; i <= len(path); i++ {
		if i < len(path) && path[i] != '.' {
			continue
		}
		part := path[start:i]
		if e == nil {
			e = ast.NewName(part)
		} else {
			e = &ast.Attribute{X: e, Name: part}
		}
		start = i + 1
	}
	return e
}

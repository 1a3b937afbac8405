// Package parser turns Starlark source text into the codemodel syntax tree.
package parser

import (
	"fmt"
	"math/big"
	"strings"

	"go.starlark.net/syntax"

	"github.com/dwhswenson/codemodel"
	"github.com/dwhswenson/codemodel/internal/ast"
)

// Options returns the dialect options used for parsing and for executing
// callable definitions. Top-level control flow, while loops and global
// reassignment are enabled so generated scripts parse as written.
func Options() *syntax.FileOptions {
	return &syntax.FileOptions{
		Set:             true,
		While:           true,
		TopLevelControl: true,
		GlobalReassign:  true,
		Recursion:       true,
	}
}

// ParseModule parses src as a sequence of statements. The source is
// dedented first so indented snippets (such as methods) are accepted.
func ParseModule(filename, src string) (*ast.Module, error) {
	f, err := Options().Parse(filename, Dedent(src), syntax.RetainComments)
	if err != nil {
		return nil, codemodel.NewParseError(filename, err)
	}
	body, err := convertStmts(f.Stmts)
	if err != nil {
		return nil, codemodel.NewParseError(filename, err)
	}
	return &ast.Module{Body: body}, nil
}

// ParseExpr parses a single expression.
func ParseExpr(src string) (ast.Expr, error) {
	e, err := Options().ParseExpr("<expr>", strings.TrimSpace(src), 0)
	if err != nil {
		return nil, codemodel.NewParseError("<expr>", err)
	}
	out, err := convertExpr(e)
	if err != nil {
		return nil, codemodel.NewParseError("<expr>", err)
	}
	return out, nil
}

// ParseFunc parses a definition text and returns its first def statement.
func ParseFunc(filename, src string) (*ast.FuncDef, error) {
	mod, err := ParseModule(filename, src)
	if err != nil {
		return nil, err
	}
	for _, s := range mod.Body {
		if def, ok := s.(*ast.FuncDef); ok {
			return def, nil
		}
	}
	return nil, codemodel.NewParseError(filename, fmt.Errorf("no function definition found"))
}

func pos(n syntax.Node) ast.Pos {
	start, _ := n.Span()
	return ast.Pos{Line: int(start.Line), Col: int(start.Col)}
}

func comments(n syntax.Node) ast.Comments {
	var c ast.Comments
	cs := n.Comments()
	if cs == nil {
		return c
	}
	for _, b := range cs.Before {
		c.Before = append(c.Before, strings.TrimPrefix(b.Text, "#"))
	}
	if len(cs.Suffix) > 0 {
		c.Suffix = strings.TrimPrefix(cs.Suffix[0].Text, "#")
	}
	return c
}

func base(n syntax.Node) ast.StmtBase {
	return ast.StmtBase{At: ast.At{Pos: pos(n)}, Notes: comments(n)}
}

func convertStmts(stmts []syntax.Stmt) ([]ast.Stmt, error) {
	out := make([]ast.Stmt, 0, len(stmts))
	for _, s := range stmts {
		c, err := convertStmt(s)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func convertStmt(s syntax.Stmt) (ast.Stmt, error) {
	switch s := s.(type) {
	case *syntax.AssignStmt:
		lhs, err := convertExpr(s.LHS)
		if err != nil {
			return nil, err
		}
		rhs, err := convertExpr(s.RHS)
		if err != nil {
			return nil, err
		}
		if s.Op == syntax.EQ {
			return &ast.Assign{StmtBase: base(s), Target: lhs, Value: rhs}, nil
		}
		return &ast.AugAssign{StmtBase: base(s), Target: lhs, Op: s.Op.String(), Value: rhs}, nil

	case *syntax.ExprStmt:
		x, err := convertExpr(s.X)
		if err != nil {
			return nil, err
		}
		return &ast.ExprStmt{StmtBase: base(s), X: x}, nil

	case *syntax.ReturnStmt:
		r := &ast.Return{StmtBase: base(s)}
		if s.Result != nil {
			v, err := convertExpr(s.Result)
			if err != nil {
				return nil, err
			}
			r.Value = v
		}
		return r, nil

	case *syntax.BranchStmt:
		return &ast.Branch{StmtBase: base(s), Token: s.Token.String()}, nil

	case *syntax.IfStmt:
		cond, err := convertExpr(s.Cond)
		if err != nil {
			return nil, err
		}
		body, err := convertStmts(s.True)
		if err != nil {
			return nil, err
		}
		els, err := convertStmts(s.False)
		if err != nil {
			return nil, err
		}
		if len(els) == 0 {
			els = nil
		}
		return &ast.If{StmtBase: base(s), Cond: cond, Body: body, Else: els}, nil

	case *syntax.ForStmt:
		vars, err := convertExpr(s.Vars)
		if err != nil {
			return nil, err
		}
		x, err := convertExpr(s.X)
		if err != nil {
			return nil, err
		}
		body, err := convertStmts(s.Body)
		if err != nil {
			return nil, err
		}
		return &ast.For{StmtBase: base(s), Vars: vars, X: x, Body: body}, nil

	case *syntax.WhileStmt:
		cond, err := convertExpr(s.Cond)
		if err != nil {
			return nil, err
		}
		body, err := convertStmts(s.Body)
		if err != nil {
			return nil, err
		}
		return &ast.While{StmtBase: base(s), Cond: cond, Body: body}, nil

	case *syntax.DefStmt:
		params, err := convertParams(s.Params)
		if err != nil {
			return nil, err
		}
		body, err := convertStmts(s.Body)
		if err != nil {
			return nil, err
		}
		return &ast.FuncDef{StmtBase: base(s), Name: s.Name.Name, Params: params, Body: body}, nil

	case *syntax.LoadStmt:
		return nil, fmt.Errorf("%d: load statements are not supported", pos(s).Line)
	}
	return nil, fmt.Errorf("unsupported statement %T", s)
}

func convertParams(params []syntax.Expr) ([]*ast.Param, error) {
	out := make([]*ast.Param, 0, len(params))
	for _, p := range params {
		switch p := p.(type) {
		case *syntax.Ident:
			out = append(out, &ast.Param{At: ast.At{Pos: pos(p)}, Name: p.Name})
		case *syntax.BinaryExpr:
			id, ok := p.X.(*syntax.Ident)
			if p.Op != syntax.EQ || !ok {
				return nil, fmt.Errorf("malformed parameter")
			}
			def, err := convertExpr(p.Y)
			if err != nil {
				return nil, err
			}
			out = append(out, &ast.Param{At: ast.At{Pos: pos(p)}, Name: id.Name, Default: def})
		case *syntax.UnaryExpr:
			prm := &ast.Param{At: ast.At{Pos: pos(p)}, Star: 1}
			if p.Op == syntax.STARSTAR {
				prm.Star = 2
			}
			if p.X != nil {
				id, ok := p.X.(*syntax.Ident)
				if !ok {
					return nil, fmt.Errorf("malformed parameter")
				}
				prm.Name = id.Name
			}
			out = append(out, prm)
		default:
			return nil, fmt.Errorf("unsupported parameter %T", p)
		}
	}
	return out, nil
}

func convertExprs(exprs []syntax.Expr) ([]ast.Expr, error) {
	out := make([]ast.Expr, 0, len(exprs))
	for _, e := range exprs {
		c, err := convertExpr(e)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func convertExpr(e syntax.Expr) (ast.Expr, error) {
	if e == nil {
		return nil, nil
	}
	at := ast.At{Pos: pos(e)}
	switch e := e.(type) {
	case *syntax.Ident:
		return &ast.Name{At: at, ID: e.Name}, nil

	case *syntax.Literal:
		lit := &ast.Literal{At: at, Value: e.Value}
		switch e.Token {
		case syntax.STRING:
			lit.Kind = ast.StringLit
		case syntax.BYTES:
			lit.Kind = ast.BytesLit
		case syntax.INT:
			lit.Kind = ast.IntLit
			if b, ok := e.Value.(*big.Int); ok && b.IsInt64() {
				lit.Value = b.Int64()
			}
		case syntax.FLOAT:
			lit.Kind = ast.FloatLit
		}
		return lit, nil

	case *syntax.ParenExpr:
		return convertExpr(e.X)

	case *syntax.DotExpr:
		x, err := convertExpr(e.X)
		if err != nil {
			return nil, err
		}
		return &ast.Attribute{At: at, X: x, Name: e.Name.Name}, nil

	case *syntax.CallExpr:
		return convertCall(at, e)

	case *syntax.UnaryExpr:
		if e.X == nil {
			return nil, fmt.Errorf("bare * outside a parameter list")
		}
		x, err := convertExpr(e.X)
		if err != nil {
			return nil, err
		}
		if e.Op == syntax.STAR {
			return &ast.Starred{At: at, X: x}, nil
		}
		return &ast.UnaryOp{At: at, Op: e.Op.String(), X: x}, nil

	case *syntax.BinaryExpr:
		x, err := convertExpr(e.X)
		if err != nil {
			return nil, err
		}
		y, err := convertExpr(e.Y)
		if err != nil {
			return nil, err
		}
		return &ast.BinOp{At: at, X: x, Op: e.Op.String(), Y: y}, nil

	case *syntax.ListExpr:
		elts, err := convertExprs(e.List)
		if err != nil {
			return nil, err
		}
		return &ast.List{At: at, Elts: elts}, nil

	case *syntax.TupleExpr:
		elts, err := convertExprs(e.List)
		if err != nil {
			return nil, err
		}
		return &ast.Tuple{At: at, Elts: elts}, nil

	case *syntax.DictEntry:
		k, err := convertExpr(e.Key)
		if err != nil {
			return nil, err
		}
		v, err := convertExpr(e.Value)
		if err != nil {
			return nil, err
		}
		return &ast.DictEntry{At: at, Key: k, Value: v}, nil

	case *syntax.DictExpr:
		d := &ast.Dict{At: at}
		for _, item := range e.List {
			c, err := convertExpr(item)
			if err != nil {
				return nil, err
			}
			d.Entries = append(d.Entries, c.(*ast.DictEntry))
		}
		return d, nil

	case *syntax.IndexExpr:
		x, err := convertExpr(e.X)
		if err != nil {
			return nil, err
		}
		y, err := convertExpr(e.Y)
		if err != nil {
			return nil, err
		}
		return &ast.Index{At: at, X: x, Index: y}, nil

	case *syntax.SliceExpr:
		parts, err := convertExprs([]syntax.Expr{e.X, e.Lo, e.Hi, e.Step})
		if err != nil {
			return nil, err
		}
		return &ast.Slice{At: at, X: parts[0], Lo: parts[1], Hi: parts[2], Step: parts[3]}, nil

	case *syntax.CondExpr:
		parts, err := convertExprs([]syntax.Expr{e.Cond, e.True, e.False})
		if err != nil {
			return nil, err
		}
		return &ast.CondExpr{At: at, Cond: parts[0], True: parts[1], False: parts[2]}, nil

	case *syntax.LambdaExpr:
		params, err := convertParams(e.Params)
		if err != nil {
			return nil, err
		}
		body, err := convertExpr(e.Body)
		if err != nil {
			return nil, err
		}
		return &ast.Lambda{At: at, Params: params, Body: body}, nil

	case *syntax.Comprehension:
		body, err := convertExpr(e.Body)
		if err != nil {
			return nil, err
		}
		comp := &ast.Comprehension{At: at, Curly: e.Curly, Body: body}
		for _, c := range e.Clauses {
			switch c := c.(type) {
			case *syntax.ForClause:
				vars, err := convertExpr(c.Vars)
				if err != nil {
					return nil, err
				}
				x, err := convertExpr(c.X)
				if err != nil {
					return nil, err
				}
				comp.Clauses = append(comp.Clauses, &ast.ForClause{At: ast.At{Pos: pos(c)}, Vars: vars, X: x})
			case *syntax.IfClause:
				cond, err := convertExpr(c.Cond)
				if err != nil {
					return nil, err
				}
				comp.Clauses = append(comp.Clauses, &ast.IfClause{At: ast.At{Pos: pos(c)}, Cond: cond})
			}
		}
		return comp, nil
	}
	return nil, fmt.Errorf("unsupported expression %T", e)
}

func convertCall(at ast.At, e *syntax.CallExpr) (ast.Expr, error) {
	fn, err := convertExpr(e.Fn)
	if err != nil {
		return nil, err
	}
	call := &ast.Call{At: at, Func: fn}
	for _, arg := range e.Args {
		switch a := arg.(type) {
		case *syntax.BinaryExpr:
			if id, ok := a.X.(*syntax.Ident); ok && a.Op == syntax.EQ {
				v, err := convertExpr(a.Y)
				if err != nil {
					return nil, err
				}
				call.Keywords = append(call.Keywords, &ast.Keyword{Name: id.Name, Value: v})
				continue
			}
		case *syntax.UnaryExpr:
			if a.Op == syntax.STARSTAR {
				v, err := convertExpr(a.X)
				if err != nil {
					return nil, err
				}
				call.Keywords = append(call.Keywords, &ast.Keyword{Value: v})
				continue
			}
		}
		v, err := convertExpr(arg)
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, v)
	}
	return call, nil
}

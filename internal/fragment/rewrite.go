package fragment

import (
	"maps"

	"github.com/dwhswenson/codemodel/internal/ast"
)

// DefaultAssignName is the target used by ReturnToAssign when none is given.
const DefaultAssignName = "_"

// ReplaceNames returns a copy of stmts in which every read of a name in
// subs is replaced by the substitute expression, positioned where the name
// was. Assignment targets are left alone, as are names shadowed by the
// parameters of a nested def or lambda.
func ReplaceNames(stmts []ast.Stmt, subs map[string]ast.Expr) []ast.Stmt {
	r := replacer{subs: subs}
	return r.stmts(stmts)
}

// ReplaceNamesExpr is ReplaceNames for a single expression.
func ReplaceNamesExpr(e ast.Expr, subs map[string]ast.Expr) ast.Expr {
	r := replacer{subs: subs}
	return r.expr(e)
}

type replacer struct {
	subs map[string]ast.Expr
}

// shadow returns a replacer without the names bound by params.
func (r replacer) shadow(params []*ast.Param) replacer {
	var inner map[string]ast.Expr
	for _, p := range params {
		if _, ok := r.subs[p.Name]; !ok {
			continue
		}
		if inner == nil {
			inner = maps.Clone(r.subs)
		}
		delete(inner, p.Name)
	}
	if inner == nil {
		return r
	}
	return replacer{subs: inner}
}

func (r replacer) stmts(list []ast.Stmt) []ast.Stmt {
	if list == nil {
		return nil
	}
	out := make([]ast.Stmt, len(list))
	for i, s := range list {
		out[i] = r.stmt(s)
	}
	return out
}

func (r replacer) stmt(s ast.Stmt) ast.Stmt {
	switch s := s.(type) {
	case *ast.Assign:
		c := *s
		c.Target = r.target(s.Target)
		c.Value = r.expr(s.Value)
		return &c
	case *ast.AugAssign:
		c := *s
		c.Target = r.target(s.Target)
		c.Value = r.expr(s.Value)
		return &c
	case *ast.ExprStmt:
		c := *s
		c.X = r.expr(s.X)
		return &c
	case *ast.Return:
		c := *s
		c.Value = r.expr(s.Value)
		return &c
	case *ast.If:
		c := *s
		c.Cond = r.expr(s.Cond)
		c.Body = r.stmts(s.Body)
		c.Else = r.stmts(s.Else)
		return &c
	case *ast.For:
		c := *s
		c.Vars = r.target(s.Vars)
		c.X = r.expr(s.X)
		c.Body = r.stmts(s.Body)
		return &c
	case *ast.While:
		c := *s
		c.Cond = r.expr(s.Cond)
		c.Body = r.stmts(s.Body)
		return &c
	case *ast.FuncDef:
		c := *s
		c.Params = r.params(s.Params)
		c.Body = r.shadow(s.Params).stmts(s.Body)
		return &c
	}
	return s
}

func (r replacer) params(params []*ast.Param) []*ast.Param {
	out := make([]*ast.Param, len(params))
	for i, p := range params {
		c := *p
		c.Default = r.expr(p.Default)
		out[i] = &c
	}
	return out
}

// target rewrites an assignment target: bare names stay, but the operands
// of attribute and index targets are reads.
func (r replacer) target(e ast.Expr) ast.Expr {
	switch e := e.(type) {
	case *ast.Name:
		return e
	case *ast.Tuple:
		c := *e
		c.Elts = make([]ast.Expr, len(e.Elts))
		for i, elt := range e.Elts {
			c.Elts[i] = r.target(elt)
		}
		return &c
	case *ast.List:
		c := *e
		c.Elts = make([]ast.Expr, len(e.Elts))
		for i, elt := range e.Elts {
			c.Elts[i] = r.target(elt)
		}
		return &c
	}
	return r.expr(e)
}

func (r replacer) exprs(list []ast.Expr) []ast.Expr {
	if list == nil {
		return nil
	}
	out := make([]ast.Expr, len(list))
	for i, e := range list {
		out[i] = r.expr(e)
	}
	return out
}

func (r replacer) expr(e ast.Expr) ast.Expr {
	switch e := e.(type) {
	case nil:
		return nil
	case *ast.Name:
		if sub, ok := r.subs[e.ID]; ok {
			return ast.WithPos(sub, e.Pos)
		}
		return e
	case *ast.Literal:
		return e
	case *ast.Attribute:
		c := *e
		c.X = r.expr(e.X)
		return &c
	case *ast.Call:
		c := *e
		c.Func = r.expr(e.Func)
		c.Args = r.exprs(e.Args)
		c.Keywords = make([]*ast.Keyword, len(e.Keywords))
		for i, kw := range e.Keywords {
			c.Keywords[i] = &ast.Keyword{Name: kw.Name, Value: r.expr(kw.Value)}
		}
		return &c
	case *ast.Starred:
		c := *e
		c.X = r.expr(e.X)
		return &c
	case *ast.BinOp:
		c := *e
		c.X = r.expr(e.X)
		c.Y = r.expr(e.Y)
		return &c
	case *ast.UnaryOp:
		c := *e
		c.X = r.expr(e.X)
		return &c
	case *ast.DictEntry:
		c := *e
		c.Key = r.expr(e.Key)
		c.Value = r.expr(e.Value)
		return &c
	case *ast.Dict:
		c := *e
		c.Entries = make([]*ast.DictEntry, len(e.Entries))
		for i, entry := range e.Entries {
			c.Entries[i] = r.expr(entry).(*ast.DictEntry)
		}
		return &c
	case *ast.List:
		c := *e
		c.Elts = r.exprs(e.Elts)
		return &c
	case *ast.Tuple:
		c := *e
		c.Elts = r.exprs(e.Elts)
		return &c
	case *ast.Index:
		c := *e
		c.X = r.expr(e.X)
		c.Index = r.expr(e.Index)
		return &c
	case *ast.Slice:
		c := *e
		c.X = r.expr(e.X)
		c.Lo = r.expr(e.Lo)
		c.Hi = r.expr(e.Hi)
		c.Step = r.expr(e.Step)
		return &c
	case *ast.CondExpr:
		c := *e
		c.Cond = r.expr(e.Cond)
		c.True = r.expr(e.True)
		c.False = r.expr(e.False)
		return &c
	case *ast.Lambda:
		c := *e
		c.Params = r.params(e.Params)
		c.Body = r.shadow(e.Params).expr(e.Body)
		return &c
	case *ast.Comprehension:
		c := *e
		c.Body = r.expr(e.Body)
		c.Clauses = make([]ast.Clause, len(e.Clauses))
		for i, cl := range e.Clauses {
			switch cl := cl.(type) {
			case *ast.ForClause:
				c.Clauses[i] = &ast.ForClause{At: cl.At, Vars: r.target(cl.Vars), X: r.expr(cl.X)}
			case *ast.IfClause:
				c.Clauses[i] = &ast.IfClause{At: cl.At, Cond: r.expr(cl.Cond)}
			}
		}
		return &c
	}
	return e
}

// returnRewriter replaces the return statements of one scope. The replace
// function may expand a return into any number of statements.
type returnRewriter struct {
	scope   string
	replace func(r *ast.Return) []ast.Stmt
}

func (rw returnRewriter) stmts(scope string, list []ast.Stmt) []ast.Stmt {
	if list == nil {
		return nil
	}
	out := make([]ast.Stmt, 0, len(list))
	for _, s := range list {
		out = append(out, rw.stmt(scope, s)...)
	}
	return out
}

func (rw returnRewriter) stmt(scope string, s ast.Stmt) []ast.Stmt {
	switch s := s.(type) {
	case *ast.Return:
		if scope == rw.scope {
			return rw.replace(s)
		}
	case *ast.If:
		c := *s
		c.Body = rw.stmts(scope, s.Body)
		c.Else = rw.stmts(scope, s.Else)
		return []ast.Stmt{&c}
	case *ast.For:
		c := *s
		c.Body = rw.stmts(scope, s.Body)
		return []ast.Stmt{&c}
	case *ast.While:
		c := *s
		c.Body = rw.stmts(scope, s.Body)
		return []ast.Stmt{&c}
	case *ast.FuncDef:
		c := *s
		c.Body = rw.stmts(scope+"."+s.Name, s.Body)
		return []ast.Stmt{&c}
	}
	return []ast.Stmt{s}
}

// ReturnToAssign replaces each return directly in scope with an assignment
// of its value to name (DefaultAssignName when empty). A bare return
// assigns None.
func ReturnToAssign(stmts []ast.Stmt, scope, name string) ([]ast.Stmt, error) {
	if _, err := FindReturns(stmts).Get(scope); err != nil {
		return nil, err
	}
	if name == "" {
		name = DefaultAssignName
	}
	rw := returnRewriter{scope: scope, replace: func(r *ast.Return) []ast.Stmt {
		value := r.Value
		if value == nil {
			value = &ast.Name{At: r.At, ID: "None"}
		}
		assign := &ast.Assign{Target: &ast.Name{At: r.At, ID: name}, Value: value}
		assign.StmtBase = r.StmtBase
		return []ast.Stmt{assign}
	}}
	return rw.stmts(GlobalScope, stmts), nil
}

// MappingReturnToAssignments replaces each `return {'k': v, ...}` directly
// in scope with the assignments `k = v`. Pairs whose value is the name k
// itself produce no statement. The scope must satisfy
// ValidateMappingReturn.
func MappingReturnToAssignments(stmts []ast.Stmt, scope string) ([]ast.Stmt, error) {
	if err := ValidateMappingReturn(stmts, scope); err != nil {
		return nil, err
	}
	rw := returnRewriter{scope: scope, replace: func(r *ast.Return) []ast.Stmt {
		d := r.Value.(*ast.Dict)
		var out []ast.Stmt
		for _, entry := range d.Entries {
			key, _ := stringConstant(entry.Key)
			if name, ok := entry.Value.(*ast.Name); ok && name.ID == key {
				continue
			}
			assign := &ast.Assign{Target: &ast.Name{At: entry.At, ID: key}, Value: entry.Value}
			assign.Pos = entry.Pos
			out = append(out, assign)
		}
		if len(out) > 0 {
			out[0].Comments().Before = r.Notes.Before
		}
		return out
	}}
	return rw.stmts(GlobalScope, stmts), nil
}

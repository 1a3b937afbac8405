package fragment

import (
	"slices"
	"strings"

	"go.starlark.net/starlark"

	"github.com/dwhswenson/codemodel"
	"github.com/dwhswenson/codemodel/internal/ast"
)

// GlobalScope names the outermost scope of an analyzed body. Nested
// functions are named by dot-joined paths such as "global.inner"; lambdas
// push the segment "lambda".
const GlobalScope = "global"

// binding says how a stored name was bound.
type binding int

const (
	bindAssign binding = iota
	bindAugmented
	bindParam
	bindLoop
	bindDef
	bindImport
)

// scopeHooks receive events from a scopeWalker. Any hook may be nil.
type scopeHooks struct {
	enter func(scope string)
	load  func(scope string, n *ast.Name)
	store func(scope string, n *ast.Name, how binding)
	ret   func(scope string, r *ast.Return)
}

type scopeWalker struct {
	hooks scopeHooks
	stack []string
}

func walkScopes(body []ast.Stmt, hooks scopeHooks) {
	w := &scopeWalker{hooks: hooks}
	w.push(GlobalScope)
	w.stmts(body)
}

func (w *scopeWalker) scope() string { return strings.Join(w.stack, ".") }

func (w *scopeWalker) push(name string) {
	w.stack = append(w.stack, name)
	if w.hooks.enter != nil {
		w.hooks.enter(w.scope())
	}
}

func (w *scopeWalker) pop() { w.stack = w.stack[:len(w.stack)-1] }

func (w *scopeWalker) load(n *ast.Name) {
	if w.hooks.load != nil {
		w.hooks.load(w.scope(), n)
	}
}

func (w *scopeWalker) store(n *ast.Name, how binding) {
	if w.hooks.store != nil {
		w.hooks.store(w.scope(), n, how)
	}
}

func (w *scopeWalker) stmts(list []ast.Stmt) {
	for _, s := range list {
		w.stmt(s)
	}
}

func (w *scopeWalker) stmt(s ast.Stmt) {
	switch s := s.(type) {
	case *ast.Assign:
		w.expr(s.Value)
		w.target(s.Target, bindAssign)
	case *ast.AugAssign:
		w.expr(s.Value)
		w.target(s.Target, bindAugmented)
	case *ast.ExprStmt:
		w.expr(s.X)
	case *ast.Return:
		if w.hooks.ret != nil {
			w.hooks.ret(w.scope(), s)
		}
		w.expr(s.Value)
	case *ast.If:
		w.expr(s.Cond)
		w.stmts(s.Body)
		w.stmts(s.Else)
	case *ast.For:
		w.expr(s.X)
		w.target(s.Vars, bindLoop)
		w.stmts(s.Body)
	case *ast.While:
		w.expr(s.Cond)
		w.stmts(s.Body)
	case *ast.FuncDef:
		w.defaults(s.Params)
		w.store(&ast.Name{At: s.At, ID: s.Name}, bindDef)
		w.push(s.Name)
		w.params(s.Params)
		w.stmts(s.Body)
		w.pop()
	case *ast.Import:
		for _, a := range s.Names {
			bound := a.AsName
			if bound == "" {
				bound, _, _ = strings.Cut(a.Name, ".")
			}
			w.store(&ast.Name{At: s.At, ID: bound}, bindImport)
		}
	}
}

func (w *scopeWalker) defaults(params []*ast.Param) {
	for _, p := range params {
		w.expr(p.Default)
	}
}

func (w *scopeWalker) params(params []*ast.Param) {
	for _, p := range params {
		if p.Name != "" {
			w.store(&ast.Name{At: p.At, ID: p.Name}, bindParam)
		}
	}
}

// target visits an assignment target. Bare names (also inside tuple and
// list targets) are stores; the operands of attribute and index targets
// are loads.
func (w *scopeWalker) target(e ast.Expr, how binding) {
	switch e := e.(type) {
	case *ast.Name:
		w.store(e, how)
	case *ast.Tuple:
		for _, elt := range e.Elts {
			w.target(elt, how)
		}
	case *ast.List:
		for _, elt := range e.Elts {
			w.target(elt, how)
		}
	default:
		w.expr(e)
	}
}

func (w *scopeWalker) exprs(list []ast.Expr) {
	for _, e := range list {
		w.expr(e)
	}
}

func (w *scopeWalker) expr(e ast.Expr) {
	switch e := e.(type) {
	case nil, *ast.Literal:
	case *ast.Name:
		w.load(e)
	case *ast.Attribute:
		w.expr(e.X)
	case *ast.Call:
		w.expr(e.Func)
		w.exprs(e.Args)
		for _, kw := range e.Keywords {
			w.expr(kw.Value)
		}
	case *ast.Starred:
		w.expr(e.X)
	case *ast.BinOp:
		w.expr(e.X)
		w.expr(e.Y)
	case *ast.UnaryOp:
		w.expr(e.X)
	case *ast.DictEntry:
		w.expr(e.Key)
		w.expr(e.Value)
	case *ast.Dict:
		for _, entry := range e.Entries {
			w.expr(entry)
		}
	case *ast.List:
		w.exprs(e.Elts)
	case *ast.Tuple:
		w.exprs(e.Elts)
	case *ast.Index:
		w.expr(e.X)
		w.expr(e.Index)
	case *ast.Slice:
		w.exprs([]ast.Expr{e.X, e.Lo, e.Hi, e.Step})
	case *ast.CondExpr:
		w.expr(e.Cond)
		w.expr(e.True)
		w.expr(e.False)
	case *ast.Lambda:
		w.defaults(e.Params)
		w.push("lambda")
		w.params(e.Params)
		w.expr(e.Body)
		w.pop()
	case *ast.Comprehension:
		for _, c := range e.Clauses {
			switch c := c.(type) {
			case *ast.ForClause:
				w.expr(c.X)
				w.target(c.Vars, bindLoop)
			case *ast.IfClause:
				w.expr(c.Cond)
			}
		}
		w.expr(e.Body)
	}
}

// ScopeLister holds per-scope lists collected by a scope-tracking visitor.
// Every visited scope has an entry, possibly empty.
type ScopeLister[T any] struct {
	values map[string][]T
	order  []string
}

func newScopeLister[T any]() *ScopeLister[T] {
	return &ScopeLister[T]{values: make(map[string][]T)}
}

func (l *ScopeLister[T]) register(scope string) {
	if _, ok := l.values[scope]; !ok {
		l.values[scope] = []T{}
		l.order = append(l.order, scope)
	}
}

func (l *ScopeLister[T]) add(scope string, v T) {
	l.register(scope)
	l.values[scope] = append(l.values[scope], v)
}

// Get returns the items collected for scope. A scope that was never
// visited is an UnknownScopeError; a visited scope without items returns
// an empty slice.
func (l *ScopeLister[T]) Get(scope string) ([]T, error) {
	v, ok := l.values[scope]
	if !ok {
		return nil, codemodel.NewUnknownScopeError(scope)
	}
	return v, nil
}

// Has reports whether scope was visited.
func (l *ScopeLister[T]) Has(scope string) bool {
	_, ok := l.values[scope]
	return ok
}

// Scopes lists visited scopes in visit order.
func (l *ScopeLister[T]) Scopes() []string {
	return slices.Clone(l.order)
}

// FindReturns collects the return statements of each scope. Returns in
// nested functions belong to the nested scope only.
func FindReturns(body []ast.Stmt) *ScopeLister[*ast.Return] {
	l := newScopeLister[*ast.Return]()
	walkScopes(body, scopeHooks{
		enter: l.register,
		ret:   l.add,
	})
	return l
}

// CountReturns counts return statements per scope.
func CountReturns(body []ast.Stmt) map[string]int {
	l := FindReturns(body)
	counts := make(map[string]int, len(l.order))
	for _, scope := range l.order {
		counts[scope] = len(l.values[scope])
	}
	return counts
}

// AssignedNames lists, per scope, every name that is the target of a
// direct or augmented assignment, in order of first assignment.
func AssignedNames(body []ast.Stmt) *ScopeLister[string] {
	l := newScopeLister[string]()
	walkScopes(body, scopeHooks{
		enter: l.register,
		store: func(scope string, n *ast.Name, how binding) {
			if how != bindAssign && how != bindAugmented {
				return
			}
			if !slices.Contains(l.values[scope], n.ID) {
				l.add(scope, n.ID)
			}
		},
	})
	return l
}

// RequiredInputs lists, per scope, the names read before being bound in
// that scope or any enclosing scope. An augmented assignment reads its
// target, so `x += 1` requires x unless x is already bound. Predeclared
// names (None, len, ...) are never required.
func RequiredInputs(body []ast.Stmt) *ScopeLister[string] {
	l := newScopeLister[string]()
	bound := make(map[string]map[string]bool)
	known := func(scope, name string) bool {
		for s := scope; ; {
			if bound[s][name] {
				return true
			}
			i := strings.LastIndexByte(s, '.')
			if i < 0 {
				return false
			}
			s = s[:i]
		}
	}
	require := func(scope, name string) {
		if known(scope, name) || starlark.Universe.Has(name) {
			return
		}
		if !slices.Contains(l.values[scope], name) {
			l.add(scope, name)
		}
	}
	walkScopes(body, scopeHooks{
		enter: func(scope string) {
			l.register(scope)
			bound[scope] = make(map[string]bool)
		},
		load: func(scope string, n *ast.Name) {
			require(scope, n.ID)
		},
		store: func(scope string, n *ast.Name, how binding) {
			if how == bindAugmented {
				require(scope, n.ID)
			}
			bound[scope][n.ID] = true
		},
	})
	return l
}

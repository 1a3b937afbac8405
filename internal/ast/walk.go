package ast

// Walk traverses the tree rooted at n in depth-first order. It calls f(n)
// for each node; if f returns false the children of that node are skipped.
// Comprehension clauses and lambda/def parameters are visited as nodes.
func Walk(n Node, f func(Node) bool) {
	if n == nil || !f(n) {
		return
	}
	walkExpr := func(e Expr) {
		if e != nil {
			Walk(e, f)
		}
	}
	walkStmts := func(stmts []Stmt) {
		for _, s := range stmts {
			Walk(s, f)
		}
	}
	walkParams := func(params []*Param) {
		for _, p := range params {
			Walk(p, f)
		}
	}

	switch n := n.(type) {
	case *Module:
		walkStmts(n.Body)
	case *Assign:
		walkExpr(n.Target)
		walkExpr(n.Value)
	case *AugAssign:
		walkExpr(n.Target)
		walkExpr(n.Value)
	case *ExprStmt:
		walkExpr(n.X)
	case *Return:
		walkExpr(n.Value)
	case *If:
		walkExpr(n.Cond)
		walkStmts(n.Body)
		walkStmts(n.Else)
	case *For:
		walkExpr(n.Vars)
		walkExpr(n.X)
		walkStmts(n.Body)
	case *While:
		walkExpr(n.Cond)
		walkStmts(n.Body)
	case *FuncDef:
		walkParams(n.Params)
		walkStmts(n.Body)
	case *Branch, *Import, *Name, *Literal:
	case *Param:
		walkExpr(n.Default)
	case *Attribute:
		walkExpr(n.X)
	case *Call:
		walkExpr(n.Func)
		for _, a := range n.Args {
			walkExpr(a)
		}
		for _, kw := range n.Keywords {
			walkExpr(kw.Value)
		}
	case *Starred:
		walkExpr(n.X)
	case *BinOp:
		walkExpr(n.X)
		walkExpr(n.Y)
	case *UnaryOp:
		walkExpr(n.X)
	case *DictEntry:
		walkExpr(n.Key)
		walkExpr(n.Value)
	case *Dict:
		for _, e := range n.Entries {
			walkExpr(e)
		}
	case *List:
		for _, e := range n.Elts {
			walkExpr(e)
		}
	case *Tuple:
		for _, e := range n.Elts {
			walkExpr(e)
		}
	case *Index:
		walkExpr(n.X)
		walkExpr(n.Index)
	case *Slice:
		walkExpr(n.X)
		walkExpr(n.Lo)
		walkExpr(n.Hi)
		walkExpr(n.Step)
	case *CondExpr:
		walkExpr(n.Cond)
		walkExpr(n.True)
		walkExpr(n.False)
	case *Lambda:
		walkParams(n.Params)
		walkExpr(n.Body)
	case *Comprehension:
		for _, c := range n.Clauses {
			Walk(c, f)
		}
		walkExpr(n.Body)
	case *ForClause:
		walkExpr(n.X)
		walkExpr(n.Vars)
	case *IfClause:
		walkExpr(n.Cond)
	}
}

// Inspect walks every statement in stmts.
func Inspect(stmts []Stmt, f func(Node) bool) {
	for _, s := range stmts {
		Walk(s, f)
	}
}

// ParamNames returns the names bound by a parameter list, skipping the bare
// * separator.
func ParamNames(params []*Param) []string {
	var names []string
	for _, p := range params {
		if p.Name != "" {
			names = append(names, p.Name)
		}
	}
	return names
}

// WithPos returns a shallow copy of e positioned at pos. Children are
// shared with e.
func WithPos(e Expr, pos Pos) Expr {
	switch e := e.(type) {
	case *Name:
		c := *e
		c.Pos = pos
		return &c
	case *Literal:
		c := *e
		c.Pos = pos
		return &c
	case *Attribute:
		c := *e
		c.Pos = pos
		return &c
	case *Call:
		c := *e
		c.Pos = pos
		return &c
	case *Starred:
		c := *e
		c.Pos = pos
		return &c
	case *BinOp:
		c := *e
		c.Pos = pos
		return &c
	case *UnaryOp:
		c := *e
		c.Pos = pos
		return &c
	case *DictEntry:
		c := *e
		c.Pos = pos
		return &c
	case *Dict:
		c := *e
		c.Pos = pos
		return &c
	case *List:
		c := *e
		c.Pos = pos
		return &c
	case *Tuple:
		c := *e
		c.Pos = pos
		return &c
	case *Index:
		c := *e
		c.Pos = pos
		return &c
	case *Slice:
		c := *e
		c.Pos = pos
		return &c
	case *CondExpr:
		c := *e
		c.Pos = pos
		return &c
	case *Lambda:
		c := *e
		c.Pos = pos
		return &c
	case *Comprehension:
		c := *e
		c.Pos = pos
		return &c
	}
	return e
}

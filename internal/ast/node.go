// Package ast defines the small expression and statement tree that code
// fragments are rewritten in, and a deterministic printer for it.
//
// The tree covers the Python-compatible Starlark dialect: names, literals,
// calls, attribute access, containers, comprehensions, lambdas, assignments,
// returns, control flow, function definitions and import statements.
package ast

// Pos is a 1-based source position. The zero Pos means unknown.
type Pos struct {
	Line int
	Col  int
}

// At carries the position of a node.
type At struct {
	Pos Pos
}

// Position returns the node position.
func (a At) Position() Pos { return a.Pos }

// Node is any tree node.
type Node interface {
	Position() Pos
}

// Expr is an expression node.
type Expr interface {
	Node
	exprNode()
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmtNode()
	Comments() *Comments
}

// Comments are the comment lines attached to a statement.
type Comments struct {
	Before []string // whole-line comments preceding the statement, without '#'
	Suffix string   // end-of-line comment, without '#'
}

// StmtBase is embedded in every statement.
type StmtBase struct {
	At
	Notes Comments
}

func (s *StmtBase) Comments() *Comments { return &s.Notes }
func (*StmtBase) stmtNode()             {}

// ---------------------------------------------------------------------------
// Expressions

// Name is an identifier reference.
type Name struct {
	At
	ID string
}

// LitKind is the kind of a literal.
type LitKind int

const (
	StringLit LitKind = iota
	IntLit
	FloatLit
	BytesLit
)

// Literal is a string, bytes, int or float constant. Value holds a string,
// int64, *big.Int or float64.
type Literal struct {
	At
	Kind  LitKind
	Value any
}

// Attribute is X.Name.
type Attribute struct {
	At
	X    Expr
	Name string
}

// Keyword is a keyword argument of a call. An empty Name means **Value.
type Keyword struct {
	Name  string
	Value Expr
}

// Call is Func(Args..., Keywords...).
type Call struct {
	At
	Func     Expr
	Args     []Expr
	Keywords []*Keyword
}

// Starred is *X in a call argument list.
type Starred struct {
	At
	X Expr
}

// BinOp is X Op Y, including comparisons and the boolean and/or.
type BinOp struct {
	At
	X  Expr
	Op string
	Y  Expr
}

// UnaryOp is Op X, where Op is one of "-", "+", "~" or "not".
type UnaryOp struct {
	At
	Op string
	X  Expr
}

// DictEntry is Key: Value inside a Dict or a dict comprehension.
type DictEntry struct {
	At
	Key   Expr
	Value Expr
}

// Dict is a dictionary display.
type Dict struct {
	At
	Entries []*DictEntry
}

// List is a list display.
type List struct {
	At
	Elts []Expr
}

// Tuple is a tuple display.
type Tuple struct {
	At
	Elts []Expr
}

// Index is X[Index].
type Index struct {
	At
	X     Expr
	Index Expr
}

// Slice is X[Lo:Hi:Step]; each bound is optional.
type Slice struct {
	At
	X            Expr
	Lo, Hi, Step Expr
}

// CondExpr is True if Cond else False.
type CondExpr struct {
	At
	Cond  Expr
	True  Expr
	False Expr
}

// Param is a parameter of a def or lambda. Star is 1 for *name and 2 for
// **name; a Param with Star 1 and no Name is the bare * separator.
type Param struct {
	At
	Name    string
	Default Expr
	Star    int
}

// Lambda is an anonymous function.
type Lambda struct {
	At
	Params []*Param
	Body   Expr
}

// Clause is a for or if clause of a comprehension.
type Clause interface {
	Node
	clauseNode()
}

// ForClause is `for Vars in X`.
type ForClause struct {
	At
	Vars Expr
	X    Expr
}

// IfClause is `if Cond`.
type IfClause struct {
	At
	Cond Expr
}

func (*ForClause) clauseNode() {}
func (*IfClause) clauseNode()  {}

// Comprehension is [Body for ...] or, when Curly, {Body for ...}.
type Comprehension struct {
	At
	Curly   bool
	Body    Expr
	Clauses []Clause
}

func (*Name) exprNode()          {}
func (*Literal) exprNode()       {}
func (*Attribute) exprNode()     {}
func (*Call) exprNode()          {}
func (*Starred) exprNode()       {}
func (*BinOp) exprNode()         {}
func (*UnaryOp) exprNode()       {}
func (*DictEntry) exprNode()     {}
func (*Dict) exprNode()          {}
func (*List) exprNode()          {}
func (*Tuple) exprNode()         {}
func (*Index) exprNode()         {}
func (*Slice) exprNode()         {}
func (*CondExpr) exprNode()      {}
func (*Lambda) exprNode()        {}
func (*Comprehension) exprNode() {}

// ---------------------------------------------------------------------------
// Statements

// Assign is Target = Value.
type Assign struct {
	StmtBase
	Target Expr
	Value  Expr
}

// AugAssign is Target Op Value, with Op such as "+=".
type AugAssign struct {
	StmtBase
	Target Expr
	Op     string
	Value  Expr
}

// ExprStmt is an expression evaluated for its effect.
type ExprStmt struct {
	StmtBase
	X Expr
}

// Return is `return Value`; Value may be nil.
type Return struct {
	StmtBase
	Value Expr
}

// If is an if statement. An Else holding a single *If prints as elif.
type If struct {
	StmtBase
	Cond Expr
	Body []Stmt
	Else []Stmt
}

// For is `for Vars in X:`.
type For struct {
	StmtBase
	Vars Expr
	X    Expr
	Body []Stmt
}

// While is `while Cond:`.
type While struct {
	StmtBase
	Cond Expr
	Body []Stmt
}

// Branch is pass, break or continue.
type Branch struct {
	StmtBase
	Token string
}

// FuncDef is a def statement.
type FuncDef struct {
	StmtBase
	Name   string
	Params []*Param
	Body   []Stmt
}

// Alias is one imported name, optionally renamed.
type Alias struct {
	Name   string
	AsName string
}

// Import is `import a.b as c` (From empty) or `from a import b as c`.
type Import struct {
	StmtBase
	From  string
	Names []Alias
}

// Module is a sequence of statements.
type Module struct {
	At
	Body []Stmt
}

// Pass returns a new pass statement.
func Pass() *Branch { return &Branch{Token: "pass"} }

// NewName returns a name reference.
func NewName(id string) *Name { return &Name{ID: id} }

// NewString returns a string literal.
func NewString(s string) *Literal { return &Literal{Kind: StringLit, Value: s} }

// NewInt returns an integer literal.
func NewInt(i int64) *Literal { return &Literal{Kind: IntLit, Value: i} }

// NewFloat returns a float literal.
func NewFloat(f float64) *Literal { return &Literal{Kind: FloatLit, Value: f} }

// NewAssign returns `name = value`.
func NewAssign(name string, value Expr) *Assign {
	return &Assign{Target: NewName(name), Value: value}
}

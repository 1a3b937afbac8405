package ast

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"qux", `'qux'`},
		{"it's", `"it's"`},
		{`say "hi" it's`, `'say "hi" it\'s'`},
		{"a\nb\tc", `'a\nb\tc'`},
		{`back\slash`, `'back\\slash'`},
		{"\x01", `'\x01'`},
		{"héllo", `'héllo'`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Quote(tt.in), "Quote(%q)", tt.in)
	}
}

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{1, "1.0"},
		{0.5, "0.5"},
		{-2.25, "-2.25"},
		{1e16, "1e+16"},
		{1.5e-7, "1.5e-07"},
		{0.0001, "0.0001"},
		{123456789.0, "123456789.0"},
		{math.Inf(1), "float('inf')"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatFloat(tt.in), "FormatFloat(%v)", tt.in)
	}
}

func TestFormatExpr_Precedence(t *testing.T) {
	sum := &BinOp{X: NewName("a"), Op: "+", Y: NewName("b")}
	tests := []struct {
		name string
		expr Expr
		want string
	}{
		{"mul over add", &BinOp{X: sum, Op: "*", Y: NewInt(2)}, "(a + b) * 2"},
		{"left assoc", &BinOp{X: sum, Op: "-", Y: NewName("c")}, "a + b - c"},
		{"right nested", &BinOp{X: NewName("c"), Op: "-", Y: sum}, "c - (a + b)"},
		{"string repeat", &BinOp{X: NewString("qux"), Op: "*", Y: NewInt(2)}, "'qux' * 2"},
		{"not", &UnaryOp{Op: "not", X: &BinOp{X: NewName("a"), Op: "and", Y: NewName("b")}}, "not (a and b)"},
		{"negate", &UnaryOp{Op: "-", X: sum}, "-(a + b)"},
		{"attribute of call", &Attribute{X: &Call{Func: NewName("f")}, Name: "x"}, "f().x"},
		{"negative receiver", &Attribute{X: NewInt(-1), Name: "real"}, "(-1).real"},
		{"tuple single", &Tuple{Elts: []Expr{NewInt(1)}}, "(1,)"},
		{"tuple empty", &Tuple{}, "()"},
		{"cond", &CondExpr{Cond: NewName("c"), True: NewInt(1), False: NewInt(2)}, "1 if c else 2"},
		{"chained compare", &BinOp{X: &BinOp{X: NewName("a"), Op: "<", Y: NewName("b")}, Op: "<", Y: NewName("c")}, "(a < b) < c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatExpr(tt.expr))
		})
	}
}

func TestFormatExpr_Call(t *testing.T) {
	call := &Call{
		Func: &Attribute{X: NewName("foo"), Name: "foo_pkw"},
		Args: []Expr{NewString("pkw"), &Starred{X: NewName("rest")}},
		Keywords: []*Keyword{
			{Name: "kw", Value: NewString("kw")},
			{Value: NewName("extra")},
		},
	}
	assert.Equal(t, "foo.foo_pkw('pkw', *rest, kw='kw', **extra)", FormatExpr(call))
}

func TestFormatExpr_Containers(t *testing.T) {
	d := &Dict{Entries: []*DictEntry{
		{Key: NewString("a"), Value: NewInt(1)},
		{Key: NewString("b"), Value: &List{Elts: []Expr{NewFloat(2), NewName("None")}}},
	}}
	assert.Equal(t, "{'a': 1, 'b': [2.0, None]}", FormatExpr(d))

	comp := &Comprehension{
		Body: &BinOp{X: NewName("x"), Op: "*", Y: NewInt(2)},
		Clauses: []Clause{
			&ForClause{Vars: &Tuple{Elts: []Expr{NewName("x"), NewName("y")}}, X: NewName("pairs")},
			&IfClause{Cond: NewName("y")},
		},
	}
	assert.Equal(t, "[x * 2 for x, y in pairs if y]", FormatExpr(comp))

	lam := &Lambda{Params: []*Param{{Name: "x"}, {Name: "y", Default: NewInt(1)}}, Body: &BinOp{X: NewName("x"), Op: "+", Y: NewName("y")}}
	assert.Equal(t, "lambda x, y=1: x + y", FormatExpr(lam))
}

func TestFormatStmts(t *testing.T) {
	def := &FuncDef{
		Name:   "setup",
		Params: []*Param{{Name: "a"}, {Star: 1}, {Name: "b", Default: NewInt(2)}, {Name: "kw", Star: 2}},
		Body: []Stmt{
			&If{
				Cond: NewName("a"),
				Body: []Stmt{&Return{Value: &Dict{Entries: []*DictEntry{{Key: NewString("x"), Value: NewName("a")}}}}},
				Else: []Stmt{&If{
					Cond: NewName("b"),
					Body: []Stmt{&AugAssign{Target: NewName("b"), Op: "+=", Value: NewInt(1)}},
				}},
			},
			&For{Vars: NewName("i"), X: NewName("kw"), Body: []Stmt{&Branch{Token: "continue"}}},
			&Return{},
		},
	}
	want := "def setup(a, *, b=2, **kw):\n" +
		"    if a:\n" +
		"        return {'x': a}\n" +
		"    elif b:\n" +
		"        b += 1\n" +
		"    for i in kw:\n" +
		"        continue\n" +
		"    return\n"
	assert.Equal(t, want, FormatStmts([]Stmt{def}))
}

func TestFormatStmts_EmptyBodyAndComments(t *testing.T) {
	assign := NewAssign("bar", NewInt(1))
	assign.Notes.Before = []string{" set bar"}
	assign.Notes.Suffix = " one"
	loop := &While{Cond: NewName("True")}
	imp := &Import{From: "os", Names: []Alias{{Name: "path", AsName: "p"}, {Name: "sep"}}}

	want := "# set bar\nbar = 1  # one\nwhile True:\n    pass\nfrom os import path as p, sep\n"
	assert.Equal(t, want, FormatStmts([]Stmt{assign, loop, imp}))
}

func TestWalk_SkipsChildren(t *testing.T) {
	def := &FuncDef{Name: "f", Body: []Stmt{&ExprStmt{X: NewName("inner")}}}
	mod := &Module{Body: []Stmt{def, &ExprStmt{X: NewName("outer")}}}

	var names []string
	Walk(mod, func(n Node) bool {
		if name, ok := n.(*Name); ok {
			names = append(names, name.ID)
		}
		_, isDef := n.(*FuncDef)
		return !isDef
	})
	assert.Equal(t, []string{"outer"}, names)
}

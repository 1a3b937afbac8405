package ast

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

const indentUnit = "    "

// Operator precedence, lowest first.
const (
	precLambda = iota + 1
	precCond
	precOr
	precAnd
	precNot
	precCompare
	precBitOr
	precBitXor
	precBitAnd
	precShift
	precAdd
	precMul
	precUnary
	precAtom
)

var binaryPrec = map[string]int{
	"or":     precOr,
	"and":    precAnd,
	"==":     precCompare,
	"!=":     precCompare,
	"<":      precCompare,
	"<=":     precCompare,
	">":      precCompare,
	">=":     precCompare,
	"in":     precCompare,
	"not in": precCompare,
	"|":      precBitOr,
	"^":      precBitXor,
	"&":      precBitAnd,
	"<<":     precShift,
	">>":     precShift,
	"+":      precAdd,
	"-":      precAdd,
	"*":      precMul,
	"/":      precMul,
	"//":     precMul,
	"%":      precMul,
}

// FormatExpr renders an expression.
func FormatExpr(e Expr) string {
	var p printer
	p.expr(e, precLambda)
	return p.String()
}

// FormatStmts renders statements at top level, one per line. Every line,
// including the last, ends in a newline.
func FormatStmts(stmts []Stmt) string {
	var p printer
	for _, s := range stmts {
		p.stmt(s)
	}
	return p.String()
}

// Format renders any node: statements and modules as lines, expressions
// inline.
func Format(n Node) string {
	switch n := n.(type) {
	case *Module:
		return FormatStmts(n.Body)
	case Stmt:
		return FormatStmts([]Stmt{n})
	case Expr:
		return FormatExpr(n)
	case *Param:
		var p printer
		p.params([]*Param{n})
		return p.String()
	}
	panic(fmt.Sprintf("ast: cannot format %T", n))
}

type printer struct {
	strings.Builder
	depth int
}

func (p *printer) line(s string) {
	for i := 0; i < p.depth; i++ {
		p.WriteString(indentUnit)
	}
	p.WriteString(s)
}

func (p *printer) block(body []Stmt) {
	p.depth++
	if len(body) == 0 {
		p.stmt(Pass())
	}
	for _, s := range body {
		p.stmt(s)
	}
	p.depth--
}

func (p *printer) stmt(s Stmt) {
	notes := s.Comments()
	for _, c := range notes.Before {
		p.line("#" + c + "\n")
	}
	p.line("")
	switch s := s.(type) {
	case *Assign:
		p.target(s.Target)
		p.WriteString(" = ")
		p.expr(s.Value, precLambda)
	case *AugAssign:
		p.target(s.Target)
		p.WriteString(" " + s.Op + " ")
		p.expr(s.Value, precLambda)
	case *ExprStmt:
		p.expr(s.X, precLambda)
	case *Return:
		p.WriteString("return")
		if s.Value != nil {
			p.WriteString(" ")
			p.target(s.Value)
		}
	case *Branch:
		p.WriteString(s.Token)
	case *Import:
		p.imports(s)
	case *If:
		p.ifStmt(s, "if ")
		return
	case *For:
		p.WriteString("for ")
		p.target(s.Vars)
		p.WriteString(" in ")
		p.expr(s.X, precLambda)
		p.WriteString(":")
		p.suffix(notes)
		p.block(s.Body)
		return
	case *While:
		p.WriteString("while ")
		p.expr(s.Cond, precLambda)
		p.WriteString(":")
		p.suffix(notes)
		p.block(s.Body)
		return
	case *FuncDef:
		p.WriteString("def " + s.Name + "(")
		p.params(s.Params)
		p.WriteString("):")
		p.suffix(notes)
		p.block(s.Body)
		return
	default:
		panic(fmt.Sprintf("ast: unknown statement %T", s))
	}
	p.suffix(notes)
}

func (p *printer) suffix(c *Comments) {
	if c.Suffix != "" {
		p.WriteString("  #" + c.Suffix)
	}
	p.WriteString("\n")
}

func (p *printer) ifStmt(s *If, keyword string) {
	p.WriteString(keyword)
	p.expr(s.Cond, precLambda)
	p.WriteString(":")
	p.suffix(s.Comments())
	p.block(s.Body)
	if len(s.Else) == 0 {
		return
	}
	if elif, ok := s.Else[0].(*If); ok && len(s.Else) == 1 && len(elif.Notes.Before) == 0 {
		p.line("")
		p.ifStmt(elif, "elif ")
		return
	}
	p.line("else:\n")
	p.block(s.Else)
}

func (p *printer) imports(s *Import) {
	if s.From != "" {
		p.WriteString("from " + s.From + " import ")
	} else {
		p.WriteString("import ")
	}
	for i, a := range s.Names {
		if i > 0 {
			p.WriteString(", ")
		}
		p.WriteString(a.Name)
		if a.AsName != "" && a.AsName != a.Name {
			p.WriteString(" as " + a.AsName)
		}
	}
}

// target prints assignment targets and loop variables, where a non-empty
// tuple needs no parentheses.
func (p *printer) target(e Expr) {
	if t, ok := e.(*Tuple); ok && len(t.Elts) > 0 {
		p.exprList(t.Elts)
		if len(t.Elts) == 1 {
			p.WriteString(",")
		}
		return
	}
	p.expr(e, precLambda)
}

func (p *printer) exprList(elts []Expr) {
	for i, e := range elts {
		if i > 0 {
			p.WriteString(", ")
		}
		p.expr(e, precLambda)
	}
}

func (p *printer) params(params []*Param) {
	for i, prm := range params {
		if i > 0 {
			p.WriteString(", ")
		}
		p.WriteString(strings.Repeat("*", prm.Star))
		p.WriteString(prm.Name)
		if prm.Default != nil {
			p.WriteString("=")
			p.expr(prm.Default, precCond)
		}
	}
}

func precedence(e Expr) int {
	switch e := e.(type) {
	case *Lambda:
		return precLambda
	case *CondExpr:
		return precCond
	case *BinOp:
		if prec, ok := binaryPrec[e.Op]; ok {
			return prec
		}
		return precAdd
	case *UnaryOp:
		if e.Op == "not" {
			return precNot
		}
		return precUnary
	case *Literal:
		if isNegative(e) {
			return precUnary
		}
	}
	return precAtom
}

func isNegative(l *Literal) bool {
	switch v := l.Value.(type) {
	case int64:
		return v < 0
	case *big.Int:
		return v.Sign() < 0
	case float64:
		return v < 0 || math.Signbit(v)
	}
	return false
}

func (p *printer) expr(e Expr, min int) {
	if precedence(e) < min {
		p.WriteString("(")
		p.expr(e, precLambda)
		p.WriteString(")")
		return
	}
	switch e := e.(type) {
	case *Name:
		p.WriteString(e.ID)
	case *Literal:
		p.WriteString(formatLiteral(e))
	case *Attribute:
		p.expr(e.X, precAtom)
		p.WriteString("." + e.Name)
	case *Call:
		p.expr(e.Func, precAtom)
		p.WriteString("(")
		n := 0
		for _, a := range e.Args {
			if n > 0 {
				p.WriteString(", ")
			}
			p.expr(a, precLambda)
			n++
		}
		for _, kw := range e.Keywords {
			if n > 0 {
				p.WriteString(", ")
			}
			if kw.Name == "" {
				p.WriteString("**")
				p.expr(kw.Value, precBitOr)
			} else {
				p.WriteString(kw.Name + "=")
				p.expr(kw.Value, precLambda)
			}
			n++
		}
		p.WriteString(")")
	case *Starred:
		p.WriteString("*")
		p.expr(e.X, precBitOr)
	case *BinOp:
		prec := precedence(e)
		left := prec
		if prec == precCompare {
			left = prec + 1
		}
		p.expr(e.X, left)
		p.WriteString(" " + e.Op + " ")
		p.expr(e.Y, prec+1)
	case *UnaryOp:
		if e.Op == "not" {
			p.WriteString("not ")
			p.expr(e.X, precNot)
		} else {
			p.WriteString(e.Op)
			p.expr(e.X, precUnary)
		}
	case *DictEntry:
		p.expr(e.Key, precLambda)
		p.WriteString(": ")
		p.expr(e.Value, precLambda)
	case *Dict:
		p.WriteString("{")
		for i, entry := range e.Entries {
			if i > 0 {
				p.WriteString(", ")
			}
			p.expr(entry, precLambda)
		}
		p.WriteString("}")
	case *List:
		p.WriteString("[")
		p.exprList(e.Elts)
		p.WriteString("]")
	case *Tuple:
		p.WriteString("(")
		p.exprList(e.Elts)
		if len(e.Elts) == 1 {
			p.WriteString(",")
		}
		p.WriteString(")")
	case *Index:
		p.expr(e.X, precAtom)
		p.WriteString("[")
		p.expr(e.Index, precLambda)
		p.WriteString("]")
	case *Slice:
		p.expr(e.X, precAtom)
		p.WriteString("[")
		if e.Lo != nil {
			p.expr(e.Lo, precLambda)
		}
		p.WriteString(":")
		if e.Hi != nil {
			p.expr(e.Hi, precLambda)
		}
		if e.Step != nil {
			p.WriteString(":")
			p.expr(e.Step, precLambda)
		}
		p.WriteString("]")
	case *CondExpr:
		p.expr(e.True, precOr)
		p.WriteString(" if ")
		p.expr(e.Cond, precOr)
		p.WriteString(" else ")
		p.expr(e.False, precCond)
	case *Lambda:
		p.WriteString("lambda")
		if len(e.Params) > 0 {
			p.WriteString(" ")
			p.params(e.Params)
		}
		p.WriteString(": ")
		p.expr(e.Body, precCond)
	case *Comprehension:
		open, closing := "[", "]"
		if e.Curly {
			open, closing = "{", "}"
		}
		p.WriteString(open)
		p.expr(e.Body, precLambda)
		for _, c := range e.Clauses {
			switch c := c.(type) {
			case *ForClause:
				p.WriteString(" for ")
				p.target(c.Vars)
				p.WriteString(" in ")
				p.expr(c.X, precOr)
			case *IfClause:
				p.WriteString(" if ")
				p.expr(c.Cond, precOr)
			}
		}
		p.WriteString(closing)
	default:
		panic(fmt.Sprintf("ast: unknown expression %T", e))
	}
}

func formatLiteral(l *Literal) string {
	switch v := l.Value.(type) {
	case string:
		if l.Kind == BytesLit {
			return "b" + Quote(v)
		}
		return Quote(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case *big.Int:
		return v.String()
	case float64:
		return FormatFloat(v)
	}
	panic(fmt.Sprintf("ast: literal holds %T", l.Value))
}

// Quote renders s as a string literal in single quotes, unless
// s contains a single quote and no double quote.
func Quote(s string) string {
	q := byte('\'')
	if strings.IndexByte(s, '\'') >= 0 && strings.IndexByte(s, '"') < 0 {
		q = '"'
	}
	var b strings.Builder
	b.WriteByte(q)
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			fmt.Fprintf(&b, `\x%02x`, s[i])
			i++
			continue
		}
		i += size
		switch {
		case r == '\\':
			b.WriteString(`\\`)
		case r == rune(q):
			b.WriteByte('\\')
			b.WriteByte(q)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&b, `\x%02x`, r)
		case r < utf8.RuneSelf || unicode.IsPrint(r):
			b.WriteRune(r)
		case r <= 0xffff:
			fmt.Fprintf(&b, `\u%04x`, r)
		default:
			fmt.Fprintf(&b, `\U%08x`, r)
		}
	}
	b.WriteByte(q)
	return b.String()
}

// FormatFloat renders f as a float literal: the shortest round-tripping
// digits, always with a fraction or exponent.
func FormatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "float('nan')"
	case math.IsInf(f, 1):
		return "float('inf')"
	case math.IsInf(f, -1):
		return "-float('inf')"
	}
	sci := strconv.FormatFloat(f, 'e', -1, 64)
	exp, err := strconv.Atoi(sci[strings.IndexByte(sci, 'e')+1:])
	if err != nil || exp < -4 || exp >= 16 {
		return sci
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".") {
		s += ".0"
	}
	return s
}

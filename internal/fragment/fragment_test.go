package fragment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"

	"github.com/dwhswenson/codemodel"
	"github.com/dwhswenson/codemodel/internal/ast"
	"github.com/dwhswenson/codemodel/internal/parser"
)

type srcFunc struct {
	name   string
	params []codemodel.Parameter
	src    string
}

func (f srcFunc) Name() string                      { return f.name }
func (f srcFunc) Parameters() []codemodel.Parameter { return f.params }
func (f srcFunc) Source() string                    { return f.src }
func (f srcFunc) Call(*starlark.Thread, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return starlark.None, nil
}

func param(name string, kind codemodel.ParamKind, opts ...codemodel.ParameterOption) codemodel.Parameter {
	return codemodel.NewParameter(name, "", append(opts, codemodel.WithKind(kind))...)
}

func body(t *testing.T, src string) []ast.Stmt {
	t.Helper()
	mod, err := parser.ParseModule("body.star", src)
	require.NoError(t, err)
	return mod.Body
}

func TestClassify(t *testing.T) {
	full := []codemodel.Parameter{
		param("pkw", codemodel.PositionalOrKeyword),
		param("varpos", codemodel.VarPositional),
		param("kw", codemodel.KeywordOnly),
		param("varkw", codemodel.VarKeyword),
	}
	c, err := Classify(full)
	require.NoError(t, err)
	assert.Equal(t, Classification{
		Positional:    []string{"pkw"},
		VarPositional: "varpos",
		Keyword:       []string{"kw"},
		VarKeyword:    "varkw",
	}, c)

	c, err = Classify([]codemodel.Parameter{param("pkw", codemodel.PositionalOrKeyword)})
	require.NoError(t, err)
	assert.Empty(t, c.Positional)
	assert.Equal(t, []string{"pkw"}, c.Keyword)
	assert.Equal(t, "", c.VarPositional)
	assert.Equal(t, "", c.VarKeyword)

	c, err = Classify([]codemodel.Parameter{param("po", codemodel.PositionalOnly), param("pkw", codemodel.PositionalOrKeyword)})
	require.NoError(t, err)
	assert.Equal(t, []string{"po"}, c.Positional)
	assert.Equal(t, []string{"pkw"}, c.Keyword)

	_, err = Classify([]codemodel.Parameter{param("a", codemodel.VarPositional), param("b", codemodel.VarPositional)})
	assert.True(t, errors.Is(err, codemodel.ErrMultiplicity))
}

func TestCallFragment(t *testing.T) {
	ctx := context.Background()
	pkw := srcFunc{name: "foo_pkw", params: []codemodel.Parameter{param("pkw", codemodel.PositionalOrKeyword)}}
	subs := map[string]ast.Expr{"pkw": ast.NewString("pkw"), "unused": ast.NewInt(1)}

	tests := []struct {
		name   string
		assign string
		prefix string
		want   string
	}{
		{"bare", "", "", "foo_pkw(pkw='pkw')\n"},
		{"assigned", "foo", "", "foo = foo_pkw(pkw='pkw')\n"},
		{"prefixed", "", "foo", "foo.foo_pkw(pkw='pkw')\n"},
		{"dotted prefix", "", "os.path", "os.path.foo_pkw(pkw='pkw')\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, err := CallFragment(ctx, pkw, subs, tt.assign, tt.prefix)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ast.FormatStmts([]ast.Stmt{stmt}))
		})
	}
}

func TestCallFragment_Variadics(t *testing.T) {
	fn := srcFunc{name: "foo_pkw_varpos_kw_varkw", params: []codemodel.Parameter{
		param("pkw", codemodel.PositionalOrKeyword),
		param("varpos", codemodel.VarPositional),
		param("kw", codemodel.KeywordOnly),
		param("varkw", codemodel.VarKeyword),
	}}
	subs := map[string]ast.Expr{
		"pkw":    ast.NewString("pkw"),
		"varpos": &ast.List{Elts: []ast.Expr{ast.NewString("v"), ast.NewString("a"), ast.NewString("r")}},
		"kw":     ast.NewString("kw"),
		"varkw":  &ast.Dict{Entries: []*ast.DictEntry{{Key: ast.NewString("var"), Value: ast.NewString("kw")}}},
	}
	stmt, err := CallFragment(context.Background(), fn, subs, "", "")
	require.NoError(t, err)
	assert.Equal(t, "foo_pkw_varpos_kw_varkw('pkw', 'v', 'a', 'r', kw='kw', var='kw')\n", ast.FormatStmts([]ast.Stmt{stmt}))

	subs["varpos"] = ast.NewName("rest")
	subs["varkw"] = ast.NewName("extra")
	stmt, err = CallFragment(context.Background(), fn, subs, "", "")
	require.NoError(t, err)
	assert.Equal(t, "foo_pkw_varpos_kw_varkw('pkw', *rest, kw='kw', **extra)\n", ast.FormatStmts([]ast.Stmt{stmt}))
}

func TestBuildArguments_VarKeywordOverrides(t *testing.T) {
	params := []codemodel.Parameter{
		param("kw", codemodel.KeywordOnly),
		param("varkw", codemodel.VarKeyword),
	}
	values := map[string]starlark.Value{
		"kw":    starlark.String("explicit"),
		"varkw": mustDict(t, map[string]starlark.Value{"kw": starlark.String("merged"), "other": starlark.MakeInt(1)}),
	}
	args, err := BuildArguments[starlark.Value](context.Background(), "f", params, values, ValueSplatter{})
	require.NoError(t, err)
	require.Len(t, args.Keywords, 2)
	assert.Equal(t, "kw", args.Keywords[0].Name)
	assert.Equal(t, starlark.String("merged"), args.Keywords[0].Value)
	assert.Equal(t, "other", args.Keywords[1].Name)
}

func TestBuildArguments_BindingErrors(t *testing.T) {
	ctx := context.Background()
	params := []codemodel.Parameter{
		param("a", codemodel.PositionalOnly),
		param("b", codemodel.PositionalOnly, codemodel.WithDefault(1)),
		param("c", codemodel.PositionalOnly),
	}
	tests := []struct {
		name   string
		values map[string]starlark.Value
	}{
		{"missing required", map[string]starlark.Value{"a": starlark.MakeInt(1)}},
		{"skipped positional", map[string]starlark.Value{"a": starlark.MakeInt(1), "c": starlark.MakeInt(3)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildArguments[starlark.Value](ctx, "f", params, tt.values, ValueSplatter{})
			require.Error(t, err)
			assert.True(t, errors.Is(err, codemodel.ErrArgumentBinding))
		})
	}

	ok := map[string]starlark.Value{"a": starlark.MakeInt(1), "b": starlark.MakeInt(2), "c": starlark.MakeInt(3)}
	args, err := BuildArguments[starlark.Value](ctx, "f", params, ok, ValueSplatter{})
	require.NoError(t, err)
	assert.Len(t, args.Positional, 3)

	kwOnly := []codemodel.Parameter{param("x", codemodel.PositionalOrKeyword)}
	_, err = BuildArguments[starlark.Value](ctx, "g", kwOnly, map[string]starlark.Value{}, ValueSplatter{})
	assert.True(t, errors.Is(err, codemodel.ErrArgumentBinding))
}

func TestUnusedParameters(t *testing.T) {
	params := []codemodel.Parameter{param("a", codemodel.PositionalOrKeyword)}
	unused := UnusedParameters(params, map[string]int{"a": 1, "b": 2, "c": 3})
	assert.Equal(t, map[string]int{"b": 2, "c": 3}, unused)
}

func TestMappingStageFragment(t *testing.T) {
	params := []codemodel.Parameter{param("foo", codemodel.PositionalOrKeyword)}
	tests := []struct {
		name string
		src  string
		subs map[string]ast.Expr
		want string
	}{
		{
			"elided",
			"def f(foo):\n    bar = 1\n    return {'foo': foo}\n",
			nil,
			"bar = 1\n",
		},
		{
			"not elided",
			"def f(foo):\n    bar = 1\n    return {'foo': foo * 2}\n",
			nil,
			"bar = 1\nfoo = foo * 2\n",
		},
		{
			"substituted",
			"def f(foo):\n    bar = 1\n    return {'foo': foo * 2}\n",
			map[string]ast.Expr{"foo": ast.NewString("qux")},
			"bar = 1\nfoo = 'qux' * 2\n",
		},
		{
			"docstring dropped",
			"def f(foo):\n    \"\"\"Doc.\"\"\"\n    return {'foo': foo, 'bar': 1}\n",
			nil,
			"bar = 1\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmts, err := MappingStageFragment(srcFunc{name: "f", params: params, src: tt.src}, tt.subs)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ast.FormatStmts(stmts))
		})
	}
}

func TestTerminalStageFragment(t *testing.T) {
	fn := srcFunc{
		name:   "f",
		params: []codemodel.Parameter{param("foo", codemodel.PositionalOrKeyword)},
		src:    "def f(foo):\n    bar = 1\n    return baz(foo, bar)\n",
	}
	subs := map[string]ast.Expr{"foo": ast.NewString("qux")}

	stmts, err := TerminalStageFragment(fn, subs, "")
	require.NoError(t, err)
	assert.Equal(t, "bar = 1\n_ = baz('qux', bar)\n", ast.FormatStmts(stmts))

	stmts, err = TerminalStageFragment(fn, subs, "assigned")
	require.NoError(t, err)
	assert.Equal(t, "bar = 1\nassigned = baz('qux', bar)\n", ast.FormatStmts(stmts))

	direct := srcFunc{name: "g", src: "def g(foo):\n    return foo\n"}
	stmts, err = TerminalStageFragment(direct, subs, "assigned")
	require.NoError(t, err)
	assert.Equal(t, "assigned = 'qux'\n", ast.FormatStmts(stmts))
}

func TestValidateMappingReturn(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr bool
	}{
		{"valid", "if x:\n    return {'a': 1}\nreturn {'a': 2}\n", false},
		{"no returns", "x = 1\n", true},
		{"not a dict", "return [1]\n", true},
		{"non string key", "return {1: 2}\n", true},
		{"divergent keys", "if x:\n    return {'a': 1}\nreturn {'b': 1}\n", true},
		{"nested returns ignored", "def inner():\n    return 1\nreturn {'a': inner()}\n", false},
		{"only nested returns", "def inner():\n    return {'a': 1}\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmts := body(t, tt.src)
			err := ValidateMappingReturn(stmts, GlobalScope)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, codemodel.ErrReturnContract))
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, !tt.wantErr, IsMappingReturning(stmts, GlobalScope))
		})
	}
}

func TestScopes_UnknownVersusEmpty(t *testing.T) {
	stmts := body(t, "def inner():\n    x = 1\nreturn inner()\n")
	returns := FindReturns(stmts)

	empty, err := returns.Get("global.inner")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = returns.Get("global.missing")
	assert.True(t, errors.Is(err, codemodel.ErrUnknownScope))

	_, err = ReturnToAssign(stmts, "global.missing", "x")
	assert.True(t, errors.Is(err, codemodel.ErrUnknownScope))

	assert.Equal(t, map[string]int{"global": 1, "global.inner": 0}, CountReturns(stmts))
	assert.Equal(t, []string{"global", "global.inner"}, returns.Scopes())
}

func TestCountReturns_Lambda(t *testing.T) {
	stmts := body(t, "f = lambda x: x\nreturn f\n")
	assert.Equal(t, map[string]int{"global": 1, "global.lambda": 0}, CountReturns(stmts))
}

func TestRequiredInputsAndAssignedNames(t *testing.T) {
	stmts := body(t, "y = x + 1\nz += y\nfor i in items:\n    y = i\ndef inner(a):\n    return a + y + q\nreturn len(w)\n")

	required := RequiredInputs(stmts)
	global, err := required.Get(GlobalScope)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "z", "items", "w"}, global)

	inner, err := required.Get("global.inner")
	require.NoError(t, err)
	assert.Equal(t, []string{"q"}, inner)

	assigned, err := AssignedNames(stmts).Get(GlobalScope)
	require.NoError(t, err)
	assert.Equal(t, []string{"y", "z"}, assigned)
}

func TestReplaceNames(t *testing.T) {
	stmts := body(t, "x = y\nx += y\nobj.attr = y\nf = lambda y: y\n")
	subs := map[string]ast.Expr{"x": ast.NewInt(1), "y": ast.NewInt(2), "obj": ast.NewName("other")}
	out := ReplaceNames(stmts, subs)
	assert.Equal(t, "x = 2\nx += 2\nother.attr = 2\nf = lambda y: y\n", ast.FormatStmts(out))
	assert.Equal(t, "x = y\nx += y\nobj.attr = y\nf = lambda y: y\n", ast.FormatStmts(stmts), "input is not modified")

	replaced := out[0].(*ast.Assign).Value
	assert.Equal(t, stmts[0].(*ast.Assign).Value.Position(), replaced.Position())
}

func TestNormalizeIndentation(t *testing.T) {
	flush := "def f(x):\n\treturn x\n"
	assert.Equal(t, flush, NormalizeIndentation("\tdef f(x):\n\t\treturn x\n"))

	spaces := "def f(x):\n    return x\n"
	assert.Equal(t, spaces, NormalizeIndentation("    def f(x):\n        return x\n"))
	assert.Equal(t, spaces, NormalizeIndentation(spaces))
}

func mustDict(t *testing.T, items map[string]starlark.Value) *starlark.Dict {
	t.Helper()
	d := starlark.NewDict(len(items))
	for _, k := range []string{"kw", "other"} {
		if v, ok := items[k]; ok {
			require.NoError(t, d.SetKey(starlark.String(k), v))
		}
	}
	return d
}

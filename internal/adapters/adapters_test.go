package adapters

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/dwhswenson/codemodel"
)

func echoImpl(_ context.Context, args map[string]starlark.Value) (starlark.Value, error) {
	d := starlark.NewDict(len(args))
	for k, v := range args {
		if err := d.SetKey(starlark.String(k), v); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func get(t *testing.T, v starlark.Value, key string) starlark.Value {
	t.Helper()
	d, ok := v.(*starlark.Dict)
	if !ok {
		t.Fatalf("expected dict, got %s", v.Type())
	}
	got, found, err := d.Get(starlark.String(key))
	if err != nil || !found {
		t.Fatalf("key %q not found in %s", key, v)
	}
	return got
}

func TestNativeFunc_Call(t *testing.T) {
	fn := NewNativeFunc("echo", echoImpl,
		WithParameters(
			codemodel.NewParameter("a", "int"),
			codemodel.NewParameter("b", "int", codemodel.WithDefault(2)),
			codemodel.NewParameter("args", "", codemodel.WithKind(codemodel.VarPositional)),
			codemodel.NewParameter("flag", "bool", codemodel.WithKind(codemodel.KeywordOnly), codemodel.WithDefault(false)),
			codemodel.NewParameter("kwargs", "", codemodel.WithKind(codemodel.VarKeyword)),
		),
	)
	thread := &starlark.Thread{}
	res, err := fn.Call(thread,
		starlark.Tuple{starlark.MakeInt(1), starlark.MakeInt(5), starlark.MakeInt(6)},
		[]starlark.Tuple{{starlark.String("flag"), starlark.True}, {starlark.String("x"), starlark.MakeInt(9)}},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := get(t, res, "b").String(); got != "5" {
		t.Errorf("b = %s, want 5", got)
	}
	if got := get(t, res, "args").String(); got != "(6,)" {
		t.Errorf("args = %s, want (6,)", got)
	}
	if got := get(t, res, "flag"); got != starlark.True {
		t.Errorf("flag = %s, want True", got)
	}
	if got := get(t, res, "kwargs").String(); got != `{"x": 9}` {
		t.Errorf("kwargs = %s", got)
	}

	res, err = fn.Call(thread, starlark.Tuple{starlark.MakeInt(1)}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := get(t, res, "b").String(); got != "2" {
		t.Errorf("default b = %s, want 2", got)
	}
	if got := get(t, res, "args").String(); got != "()" {
		t.Errorf("empty args = %s, want ()", got)
	}
}

func TestNativeFunc_BindingErrors(t *testing.T) {
	fn := NewNativeFunc("f", echoImpl, WithParameters(
		codemodel.NewParameter("a", ""),
		codemodel.NewParameter("b", "", codemodel.WithKind(codemodel.PositionalOnly)),
	))
	tests := []struct {
		name   string
		args   starlark.Tuple
		kwargs []starlark.Tuple
		msg    string
	}{
		{"missing", nil, nil, "missing required"},
		{"too many", starlark.Tuple{starlark.None, starlark.None, starlark.None}, nil, "positional arguments"},
		{"duplicate", starlark.Tuple{starlark.None, starlark.None}, []starlark.Tuple{{starlark.String("a"), starlark.None}}, "multiple values"},
		{"positional only by keyword", starlark.Tuple{starlark.None}, []starlark.Tuple{{starlark.String("b"), starlark.None}}, "unexpected keyword"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fn.Call(&starlark.Thread{}, tt.args, tt.kwargs)
			if !errors.Is(err, codemodel.ErrArgumentBinding) {
				t.Fatalf("expected binding error, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.msg) {
				t.Errorf("error %q does not mention %q", err, tt.msg)
			}
		})
	}
}

func TestNativeFunc_Validator(t *testing.T) {
	fn := NewNativeFunc("f", echoImpl,
		WithParameters(codemodel.NewParameter("path", "str")),
		WithValidator(func(args map[string]starlark.Value) error {
			if s, _ := starlark.AsString(args["path"]); s == "" {
				return errors.New("path cannot be empty")
			}
			return nil
		}),
	)
	if _, err := fn.Call(&starlark.Thread{}, starlark.Tuple{starlark.String("")}, nil); err == nil {
		t.Error("expected error for empty path, got nil")
	}
	if _, err := fn.Call(&starlark.Thread{}, starlark.Tuple{starlark.String("/tmp")}, nil); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNativeFunc_Doc(t *testing.T) {
	fn := NewNativeFunc("exists", echoImpl,
		WithDescription("Test whether a path exists."),
		WithParameters(codemodel.NewParameter("path", "str", codemodel.WithDescription("path to check"))),
		WithReturns("bool"),
	)
	doc := fn.Doc()
	for _, want := range []string{"Test whether", "Parameters\n----------\npath : str\n    path to check", "Returns\n-------\nbool"} {
		if !strings.Contains(doc, want) {
			t.Errorf("doc %q missing %q", doc, want)
		}
	}
}

func TestNativeFunc_Builtin(t *testing.T) {
	fn := NewNativeFunc("double", func(_ context.Context, args map[string]starlark.Value) (starlark.Value, error) {
		return starlark.Binary(syntax.STAR, args["x"], starlark.MakeInt(2))
	}, WithParameters(codemodel.NewParameter("x", "int")))
	v, err := starlark.Eval(&starlark.Thread{}, "<test>", "double(21)", starlark.StringDict{"double": fn.Builtin()})
	if err != nil {
		t.Fatalf("eval failed: %v", err)
	}
	if v.String() != "42" {
		t.Errorf("expected 42, got %s", v)
	}
}

const stageSrc = `
    def prepare(a, b=3, *rest, scale, **extra):
        """Prepare inputs."""
        return {'a': a * scale, 'b': b}
`

func TestScriptFunc(t *testing.T) {
	fn, err := NewScriptFunc(stageSrc)
	if err != nil {
		t.Fatalf("NewScriptFunc failed: %v", err)
	}
	if fn.Name() != "prepare" {
		t.Errorf("expected name prepare, got %s", fn.Name())
	}
	if fn.Doc() != "Prepare inputs." {
		t.Errorf("unexpected doc %q", fn.Doc())
	}
	want := []codemodel.Parameter{
		codemodel.NewParameter("a", ""),
		codemodel.NewParameter("b", "", codemodel.WithDefault(int64(3))),
		codemodel.NewParameter("scale", "", codemodel.WithKind(codemodel.KeywordOnly)),
		codemodel.NewParameter("rest", "", codemodel.WithKind(codemodel.VarPositional)),
		codemodel.NewParameter("extra", "", codemodel.WithKind(codemodel.VarKeyword)),
	}
	if got := fn.Parameters(); !codemodel.EqualParameters(got, want) {
		t.Errorf("parameters = %v, want %v", got, want)
	}

	res, err := fn.Call(&starlark.Thread{}, starlark.Tuple{starlark.MakeInt(2)},
		[]starlark.Tuple{{starlark.String("scale"), starlark.MakeInt(10)}})
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if got := get(t, res, "a").String(); got != "20" {
		t.Errorf("a = %s, want 20", got)
	}
}

func TestScriptFunc_Globals(t *testing.T) {
	src := "def f(x):\n    return helper(x)\n"
	if _, err := NewScriptFunc(src); !errors.Is(err, codemodel.ErrParse) {
		t.Fatalf("expected parse error for undefined global, got %v", err)
	}
	helper := NewNativeFunc("helper", func(_ context.Context, args map[string]starlark.Value) (starlark.Value, error) {
		return args["x"], nil
	}, WithParameters(codemodel.NewParameter("x", "")))
	fn, err := NewScriptFunc(src, WithGlobals(starlark.StringDict{"helper": helper.Builtin()}))
	if err != nil {
		t.Fatalf("NewScriptFunc failed: %v", err)
	}
	res, err := fn.Call(&starlark.Thread{}, starlark.Tuple{starlark.String("ok")}, nil)
	if err != nil || res != starlark.String("ok") {
		t.Errorf("call = %v, %v", res, err)
	}
}

func TestThreadContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	thread, stop := NewThread(ctx, "test")
	defer stop()
	if ThreadContext(thread) != ctx {
		t.Error("thread does not carry its context")
	}
	if ThreadContext(&starlark.Thread{}) != context.Background() {
		t.Error("plain thread should report the background context")
	}
	cancel()
	_, err := starlark.ExecFile(thread, "loop.star", "def f():\n    for i in range(100000000):\n        pass\nf()\n", nil)
	if err == nil || !strings.Contains(err.Error(), "cancel") {
		t.Errorf("expected cancellation error, got %v", err)
	}
}

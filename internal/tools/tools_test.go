package tools

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/dwhswenson/codemodel"
	"github.com/dwhswenson/codemodel/internal/cache"
)

func call(t *testing.T, m *Module, name string, args ...starlark.Value) starlark.Value {
	t.Helper()
	fn, ok := m.Lookup(name)
	if !ok {
		t.Fatalf("%s has no member %s", m.Path(), name)
	}
	v, err := fn.Call(&starlark.Thread{}, args, nil)
	if err != nil {
		t.Fatalf("%s.%s failed: %v", m.Path(), name, err)
	}
	return v
}

func TestOSPath_Exists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "data.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	m := OSPath()
	tests := []struct {
		name string
		fn   string
		path string
		want starlark.Bool
	}{
		{"existing file", "exists", file, true},
		{"missing file", "exists", filepath.Join(dir, "nope"), false},
		{"file is file", "isfile", file, true},
		{"dir is not file", "isfile", dir, false},
		{"dir is dir", "isdir", dir, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := call(t, m, tt.fn, starlark.String(tt.path)); got != tt.want {
				t.Errorf("%s(%q) = %v, want %v", tt.fn, tt.path, got, tt.want)
			}
		})
	}
}

func TestOSPath_EmptyPathRejected(t *testing.T) {
	fn, _ := OSPath().Lookup("exists")
	_, err := fn.Call(&starlark.Thread{}, starlark.Tuple{starlark.String("")}, nil)
	if !errors.Is(err, codemodel.ErrArgumentBinding) {
		t.Errorf("expected binding error, got %v", err)
	}
}

func TestOSPath_Strings(t *testing.T) {
	m := OSPath()
	tests := []struct {
		fn   string
		args []starlark.Value
		want string
	}{
		{"join", []starlark.Value{starlark.String("a"), starlark.String("b"), starlark.String("c.txt")}, `"a/b/c.txt"`},
		{"join", []starlark.Value{starlark.String("a/"), starlark.String("/etc"), starlark.String("x")}, `"/etc/x"`},
		{"join", []starlark.Value{starlark.String("only")}, `"only"`},
		{"basename", []starlark.Value{starlark.String("/tmp/file.txt")}, `"file.txt"`},
		{"basename", []starlark.Value{starlark.String("/tmp/")}, `""`},
		{"dirname", []starlark.Value{starlark.String("/tmp/file.txt")}, `"/tmp"`},
		{"dirname", []starlark.Value{starlark.String("/file")}, `"/"`},
		{"dirname", []starlark.Value{starlark.String("file")}, `""`},
		{"splitext", []starlark.Value{starlark.String("dir/archive.tar.gz")}, `("dir/archive.tar", ".gz")`},
		{"splitext", []starlark.Value{starlark.String("dir/.bashrc")}, `("dir/.bashrc", "")`},
		{"splitext", []starlark.Value{starlark.String("a.b/c")}, `("a.b/c", "")`},
	}
	for _, tt := range tests {
		t.Run(tt.fn+"_"+tt.want, func(t *testing.T) {
			if got := call(t, m, tt.fn, tt.args...).String(); got != tt.want {
				t.Errorf("%s%v = %s, want %s", tt.fn, tt.args, got, tt.want)
			}
		})
	}
}

func TestMath(t *testing.T) {
	m := Math()
	tests := []struct {
		fn   string
		args []starlark.Value
		want string
	}{
		{"sqrt", []starlark.Value{starlark.MakeInt(16)}, "4.0"},
		{"floor", []starlark.Value{starlark.Float(2.7)}, "2"},
		{"ceil", []starlark.Value{starlark.Float(2.1)}, "3"},
		{"floor", []starlark.Value{starlark.MakeInt(5)}, "5"},
		{"pow", []starlark.Value{starlark.MakeInt(2), starlark.MakeInt(10)}, "1024.0"},
		{"hypot", []starlark.Value{starlark.MakeInt(3), starlark.MakeInt(4)}, "5.0"},
		{"log", []starlark.Value{starlark.MakeInt(1), starlark.MakeInt(10)}, "0.0"},
	}
	for _, tt := range tests {
		t.Run(tt.fn, func(t *testing.T) {
			if got := call(t, m, tt.fn, tt.args...).String(); got != tt.want {
				t.Errorf("%s%v = %s, want %s", tt.fn, tt.args, got, tt.want)
			}
		})
	}

	sqrt, _ := m.Lookup("sqrt")
	if _, err := sqrt.Call(&starlark.Thread{}, starlark.Tuple{starlark.MakeInt(-1)}, nil); err == nil {
		t.Error("expected error for negative sqrt")
	}
}

func TestCapwords(t *testing.T) {
	m := String()
	if got := call(t, m, "capwords", starlark.String("hello  big WORLD")).String(); got != `"Hello Big World"` {
		t.Errorf("capwords = %s", got)
	}
	if got := call(t, m, "capwords", starlark.String("a-b-c"), starlark.String("-")).String(); got != `"A-B-C"` {
		t.Errorf("capwords with sep = %s", got)
	}
}

func TestModule_Members(t *testing.T) {
	m := OSPath()
	members := m.Members()
	if len(members) == 0 || members[0] != "exists" {
		t.Errorf("unexpected member order: %v", members)
	}
	if _, ok := m.Lookup("remove"); ok {
		t.Error("lookup of unknown member should fail")
	}
}

func TestRegistry_Resolve(t *testing.T) {
	r := NewRegistry()
	r.Register(OSPath())
	ctx := context.Background()

	m, err := r.Resolve(ctx, "os.path")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if m.Path() != "os.path" {
		t.Errorf("resolved %s", m.Path())
	}
	again, err := r.Resolve(ctx, "os.path")
	if err != nil || again != m {
		t.Errorf("second resolve = %v, %v", again, err)
	}

	if _, err := r.Resolve(ctx, "numpy"); !errors.Is(err, codemodel.ErrModuleNotFound) {
		t.Errorf("expected module not found, got %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := r.Resolve(cancelled, "os.path"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected cancellation, got %v", err)
	}
}

func TestRegistry_ResolveImport(t *testing.T) {
	c := cache.NewModuleCache(0, time.Minute, nil)
	r := NewRegistry(WithCache(c))
	r.Register(OSPath())
	ctx := context.Background()

	m, err := r.ResolveImport(ctx, "from os import path as p", "p", "p")
	if err != nil {
		t.Fatalf("ResolveImport failed: %v", err)
	}
	if m.Path() != "os.path" {
		t.Errorf("resolved %s", m.Path())
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 cached import, got %d", c.Len())
	}

	// a cached import no longer needs the registered module
	r.mu.Lock()
	delete(r.modules, "os.path")
	r.mu.Unlock()
	again, err := r.ResolveImport(ctx, "from os import path as p", "p", "p")
	if err != nil || again != m {
		t.Errorf("cached resolve = %v, %v", again, err)
	}
	if _, err := r.Resolve(ctx, "os.path"); !errors.Is(err, codemodel.ErrModuleNotFound) {
		t.Errorf("expected module not found, got %v", err)
	}

	r.Register(OSPath())
	if c.Len() != 0 {
		t.Errorf("Register kept %d cached imports", c.Len())
	}
}

func TestRegistry_ResolveImportFallback(t *testing.T) {
	r := NewRegistry()
	r.Register(OSPath())
	ctx := context.Background()

	m, err := r.ResolveImport(ctx, "import os.path", "", "os.path")
	if err != nil {
		t.Fatalf("ResolveImport failed: %v", err)
	}
	if m.Path() != "os.path" {
		t.Errorf("resolved %s", m.Path())
	}
	if _, err := r.ResolveImport(ctx, "import math", "math", "math"); !errors.Is(err, codemodel.ErrModuleNotFound) {
		t.Errorf("expected module not found, got %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := r.ResolveImport(cancelled, "import os.path", "", "os.path"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected cancellation, got %v", err)
	}
}

func TestModule_StructBuiltOnce(t *testing.T) {
	m := OSPath()
	s := m.Struct()
	if s != m.Struct() {
		t.Error("Struct rebuilt the module value")
	}
	if len(s.Members) != len(m.Members()) {
		t.Errorf("struct has %d members, module %d", len(s.Members), len(m.Members()))
	}
}

func TestRegistry_Predeclared(t *testing.T) {
	r := NewRegistry()
	r.Register(NewModule("os", "operating system"))
	for _, m := range Builtins() {
		r.Register(m)
	}
	globals := r.Predeclared()
	if _, ok := r.Predeclared()["os"].(*starlarkstruct.Module); !ok || r.Predeclared()["os"] != globals["os"] {
		t.Error("Predeclared rebuilt the globals")
	}
	if _, ok := r.modules["os"].Struct().Members["path"]; ok {
		t.Error("Predeclared added children to the module's own struct")
	}
	for _, name := range []string{"os", "math", "string"} {
		if _, ok := globals[name]; !ok {
			t.Errorf("missing global %s", name)
		}
	}

	dir := t.TempDir()
	v, err := starlark.Eval(&starlark.Thread{}, "<test>",
		`(os.path.exists(d), os.path.join(d, "x"), math.floor(2.5))`,
		starlark.StringDict{"os": globals["os"], "math": globals["math"], "d": starlark.String(dir)})
	if err != nil {
		t.Fatalf("eval failed: %v", err)
	}
	tuple := v.(starlark.Tuple)
	if tuple[0] != starlark.True {
		t.Errorf("exists = %v", tuple[0])
	}
	if got, _ := starlark.AsString(tuple[1]); got != dir+"/x" {
		t.Errorf("join = %v", tuple[1])
	}
	if tuple[2].String() != "2" {
		t.Errorf("floor = %v", tuple[2])
	}
}

func TestDefault(t *testing.T) {
	if Default() != Default() {
		t.Error("default registry is not shared")
	}
	if got := Default().Paths(); len(got) != 3 {
		t.Errorf("unexpected default paths %v", got)
	}
}

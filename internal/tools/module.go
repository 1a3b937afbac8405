package tools

import (
	"fmt"
	"sync"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/dwhswenson/codemodel"
	"github.com/dwhswenson/codemodel/internal/adapters"
)

// Module is a native module: a dotted path and the functions it exports.
type Module struct {
	path  string
	doc   string
	funcs map[string]*adapters.NativeFunc
	order []string

	structOnce func() *starlarkstruct.Module
}

// NewModule creates a module exporting funcs under path. Members keep the
// given order.
func NewModule(path, doc string, funcs ...*adapters.NativeFunc) *Module {
	m := &Module{
		path:  path,
		doc:   doc,
		funcs: make(map[string]*adapters.NativeFunc, len(funcs)),
	}
	for _, f := range funcs {
		if _, dup := m.funcs[f.Name()]; !dup {
			m.order = append(m.order, f.Name())
		}
		m.funcs[f.Name()] = f
	}
	m.structOnce = sync.OnceValue(m.buildStruct)
	return m
}

func (m *Module) Path() string { return m.path }

func (m *Module) Doc() string { return m.doc }

// Lookup implements codemodel.Module.
func (m *Module) Lookup(name string) (codemodel.Callable, bool) {
	f, ok := m.funcs[name]
	if !ok {
		return nil, false
	}
	return f, true
}

// Members returns the exported names in registration order.
func (m *Module) Members() []string {
	return append([]string(nil), m.order...)
}

// Struct exposes the module to Starlark code as a frozen module value
// whose attributes are the exported functions. The value is built once.
func (m *Module) Struct() *starlarkstruct.Module {
	return m.structOnce()
}

func (m *Module) buildStruct() *starlarkstruct.Module {
	members := make(starlark.StringDict, len(m.funcs))
	for name, f := range m.funcs {
		members[name] = f.Builtin()
	}
	s := &starlarkstruct.Module{Name: m.path, Members: members}
	s.Freeze()
	return s
}

func (m *Module) String() string {
	return fmt.Sprintf("<module %s>", m.path)
}

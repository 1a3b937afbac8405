package adapters

import (
	"fmt"
	"slices"

	"go.starlark.net/starlark"

	"github.com/dwhswenson/codemodel"
	"github.com/dwhswenson/codemodel/internal/parser"
)

// ScriptFunc is a callable defined by a Starlark def. Its source stays
// available, so the body can be rewritten into script fragments.
type ScriptFunc struct {
	name   string
	src    string
	fn     *starlark.Function
	params []codemodel.Parameter
}

type scriptConfig struct {
	globals starlark.StringDict
	docs    codemodel.DocExtractor
}

// ScriptOption configures NewScriptFunc.
type ScriptOption func(*scriptConfig)

// WithGlobals makes values visible to the definition, such as modules
// its body refers to.
func WithGlobals(globals starlark.StringDict) ScriptOption {
	return func(c *scriptConfig) {
		c.globals = globals
	}
}

// WithDocExtractor reads parameter types and descriptions from the
// docstring of the definition.
func WithDocExtractor(docs codemodel.DocExtractor) ScriptOption {
	return func(c *scriptConfig) {
		c.docs = docs
	}
}

// NewScriptFunc compiles the first def in src.
func NewScriptFunc(src string, opts ...ScriptOption) (*ScriptFunc, error) {
	var cfg scriptConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	def, err := parser.ParseFunc("<script>", src)
	if err != nil {
		return nil, err
	}
	filename := def.Name + ".star"
	thread := &starlark.Thread{Name: "define " + def.Name}
	globals, err := starlark.ExecFileOptions(parser.Options(), thread, filename, parser.Dedent(src), cfg.globals)
	if err != nil {
		return nil, codemodel.NewParseError(filename, err)
	}
	fn, ok := globals[def.Name].(*starlark.Function)
	if !ok {
		return nil, codemodel.NewParseError(filename, fmt.Errorf("%s is not a function", def.Name))
	}
	f := &ScriptFunc{name: def.Name, src: src, fn: fn}
	f.params = functionParameters(fn, cfg.docs)
	return f, nil
}

// functionParameters reads the signature of fn. Starlark has no
// positional-only parameters.
func functionParameters(fn *starlark.Function, docs codemodel.DocExtractor) []codemodel.Parameter {
	n := fn.NumParams()
	positional := n - fn.NumKwonlyParams()
	if fn.HasVarargs() {
		positional--
	}
	if fn.HasKwargs() {
		positional--
	}
	names := make([]string, n)
	for i := range n {
		names[i], _ = fn.Param(i)
	}
	var types, descs []string
	if docs != nil {
		types, descs = docs.Extract(fn.Doc(), names)
	}

	params := make([]codemodel.Parameter, 0, n)
	for i, name := range names {
		var opts []codemodel.ParameterOption
		switch {
		case i < positional:
			opts = append(opts, codemodel.WithKind(codemodel.PositionalOrKeyword))
		case i < positional+fn.NumKwonlyParams():
			opts = append(opts, codemodel.WithKind(codemodel.KeywordOnly))
		case fn.HasVarargs() && i == positional+fn.NumKwonlyParams():
			opts = append(opts, codemodel.WithKind(codemodel.VarPositional))
		default:
			opts = append(opts, codemodel.WithKind(codemodel.VarKeyword))
		}
		if dflt := fn.ParamDefault(i); dflt != nil {
			if v, err := codemodel.FromStarlark(dflt); err == nil {
				opts = append(opts, codemodel.WithDefault(v))
			} else {
				opts = append(opts, codemodel.WithDefault(dflt))
			}
		}
		typeTag := ""
		if i < len(types) {
			typeTag = types[i]
		}
		if i < len(descs) && descs[i] != "" {
			opts = append(opts, codemodel.WithDescription(descs[i]))
		}
		params = append(params, codemodel.NewParameter(name, typeTag, opts...))
	}
	return params
}

func (f *ScriptFunc) Name() string { return f.name }

func (f *ScriptFunc) Parameters() []codemodel.Parameter { return slices.Clone(f.params) }

// Source returns the definition text as given.
func (f *ScriptFunc) Source() string { return f.src }

func (f *ScriptFunc) Doc() string { return f.fn.Doc() }

// Call implements codemodel.Callable.
func (f *ScriptFunc) Call(thread *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	return starlark.Call(thread, f.fn, args, kwargs)
}

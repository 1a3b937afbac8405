package adapters

import (
	"context"
	"fmt"
	"slices"

	"go.starlark.net/starlark"

	"github.com/dwhswenson/codemodel"
)

// NativeImpl is the Go implementation behind a NativeFunc. args holds the
// bound parameters as produced by BindArgs.
type NativeImpl func(ctx context.Context, args map[string]starlark.Value) (starlark.Value, error)

// NativeFunc adapts a Go function to codemodel.Callable.
type NativeFunc struct {
	impl        NativeImpl
	name        string
	params      []codemodel.Parameter
	validator   func(map[string]starlark.Value) error
	description string
	returns     string
}

// NativeOption represents an option for configuring a NativeFunc.
type NativeOption func(*NativeFunc)

// WithValidator sets a check run on the bound arguments before the call.
func WithValidator(validator func(map[string]starlark.Value) error) NativeOption {
	return func(f *NativeFunc) {
		f.validator = validator
	}
}

// WithDescription sets the docstring of the function.
func WithDescription(description string) NativeOption {
	return func(f *NativeFunc) {
		f.description = description
	}
}

// WithParameters declares the signature.
func WithParameters(params ...codemodel.Parameter) NativeOption {
	return func(f *NativeFunc) {
		f.params = params
	}
}

// WithReturns describes the return value.
func WithReturns(returns string) NativeOption {
	return func(f *NativeFunc) {
		f.returns = returns
	}
}

// NewNativeFunc creates a callable named name backed by impl.
func NewNativeFunc(name string, impl NativeImpl, options ...NativeOption) *NativeFunc {
	f := &NativeFunc{
		impl: impl,
		name: name,
	}
	for _, option := range options {
		option(f)
	}
	return f
}

func (f *NativeFunc) Name() string { return f.name }

func (f *NativeFunc) Parameters() []codemodel.Parameter { return slices.Clone(f.params) }

// Doc returns the description followed by a numpydoc section for the
// parameters and return value, so the types can be recovered from it.
func (f *NativeFunc) Doc() string {
	doc := f.description
	if len(f.params) > 0 {
		doc += "\n\nParameters\n----------\n"
		for _, p := range f.params {
			doc += fmt.Sprintf("%s : %s\n", p.Name, p.Type)
			if d := p.Description(); d != "" {
				doc += "    " + d + "\n"
			}
		}
	}
	if f.returns != "" {
		doc += "\nReturns\n-------\n" + f.returns + "\n"
	}
	return doc
}

// Call implements codemodel.Callable.
func (f *NativeFunc) Call(thread *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if f.impl == nil {
		return nil, codemodel.NewConfigurationError(fmt.Sprintf("native function %s has no implementation", f.name), nil)
	}
	bound, err := BindArgs(f.name, f.params, args, kwargs)
	if err != nil {
		return nil, err
	}
	if f.validator != nil {
		if err := f.validator(bound); err != nil {
			return nil, codemodel.NewArgumentBindingError(f.name, "input validation failed", err)
		}
	}
	result, err := f.impl(ThreadContext(thread), bound)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return starlark.None, nil
	}
	return result, nil
}

// Builtin exposes the function to Starlark code.
func (f *NativeFunc) Builtin() *starlark.Builtin {
	return starlark.NewBuiltin(f.name, func(thread *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		return f.Call(thread, args, kwargs)
	})
}

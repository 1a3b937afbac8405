package codemodel

import (
	"context"
	"fmt"
	"slices"

	"github.com/dwhswenson/codemodel"
	"github.com/dwhswenson/codemodel/internal/parser"
	"github.com/dwhswenson/codemodel/internal/tools"
)

// DefaultModelType is the model type tag written for CallableModels.
const DefaultModelType = "CodeModel"

// ModuleRef describes an importable module: its canonical name, the
// import statement that brings it into a script, the prefix its members
// are called through, and the models of its callables.
type ModuleRef struct {
	Name       string
	ImportSpec string
	Prefix     string
	ModelTypes []string
	Models     []*CallableModel

	resolver codemodel.ModuleResolver
}

// ModuleOption configures a ModuleRef.
type ModuleOption func(*ModuleRef)

// WithResolver sets the resolver for the native module. The default is
// the built-in module registry.
func WithResolver(resolver codemodel.ModuleResolver) ModuleOption {
	return func(r *ModuleRef) {
		r.resolver = resolver
	}
}

// NewModuleRef creates a module reference without models.
func NewModuleRef(name, importSpec, prefix string, opts ...ModuleOption) *ModuleRef {
	r := &ModuleRef{
		Name:       name,
		ImportSpec: importSpec,
		Prefix:     prefix,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.resolver == nil {
		r.resolver = tools.Default()
	}
	return r
}

// ModuleFromImport derives name and prefix from an import statement that
// binds exactly one name: `import os` gives name and prefix os, and
// `from os import path as p` gives name os.path and prefix p.
func ModuleFromImport(importSpec string, opts ...ModuleOption) (*ModuleRef, error) {
	names, err := parser.ImportNames([]string{importSpec})
	if err != nil {
		return nil, err
	}
	if len(names) != 1 {
		return nil, codemodel.NewValidationError("imports",
			fmt.Sprintf("import %q binds %d names, want 1", importSpec, len(names)), nil)
	}
	var prefix, name string
	for prefix, name = range names {
	}
	return NewModuleRef(name, importSpec, prefix, opts...), nil
}

// Register adds models to the module and points them back at it.
func (r *ModuleRef) Register(models ...*CallableModel) {
	for _, m := range models {
		m.module = r
		r.Models = append(r.Models, m)
		r.ModelTypes = append(r.ModelTypes, DefaultModelType)
	}
}

// Model returns the registered model named name.
func (r *ModuleRef) Model(name string) (*CallableModel, bool) {
	i := slices.IndexFunc(r.Models, func(m *CallableModel) bool { return m.Name() == name })
	if i < 0 {
		return nil, false
	}
	return r.Models[i], true
}

// modulePath is the canonical path of the module the prefix refers to.
func (r *ModuleRef) modulePath() string {
	if r.ImportSpec != "" {
		if names, err := parser.ImportNames([]string{r.ImportSpec}); err == nil {
			if path, ok := names[r.Prefix]; ok {
				return path
			}
		}
	}
	return r.Name
}

// Module resolves the native module. Resolvers that understand import
// statements resolve the prefix themselves and may cache the result.
func (r *ModuleRef) Module(ctx context.Context) (codemodel.Module, error) {
	resolver := r.resolver
	if resolver == nil {
		resolver = tools.Default()
	}
	if ir, ok := resolver.(codemodel.ImportResolver); ok && r.ImportSpec != "" {
		return ir.ResolveImport(ctx, r.ImportSpec, r.Prefix, r.Name)
	}
	return resolver.Resolve(ctx, r.modulePath())
}

// Lookup resolves the native callable name of the module.
func (r *ModuleRef) Lookup(ctx context.Context, name string) (codemodel.Callable, error) {
	mod, err := r.Module(ctx)
	if err != nil {
		return nil, err
	}
	fn, ok := mod.Lookup(name)
	if !ok {
		return nil, codemodel.NewModuleNotFoundError(mod.Path()+"."+name,
			fmt.Errorf("module %s has no callable %s", mod.Path(), name))
	}
	return fn, nil
}

func (r *ModuleRef) sameHeader(o *ModuleRef) bool {
	return r.Name == o.Name && r.ImportSpec == o.ImportSpec && r.Prefix == o.Prefix
}

// Equal compares the header, the model types and the models.
func (r *ModuleRef) Equal(o *ModuleRef) bool {
	if r == nil || o == nil {
		return r == o
	}
	if !r.sameHeader(o) || !slices.Equal(r.ModelTypes, o.ModelTypes) || len(r.Models) != len(o.Models) {
		return false
	}
	for i := range r.Models {
		if !r.Models[i].Equal(o.Models[i]) {
			return false
		}
	}
	return true
}

func (r *ModuleRef) String() string {
	return fmt.Sprintf("ModuleRef(%s)", r.Name)
}

package codemodel

import (
	"context"
	"fmt"

	"github.com/dwhswenson/codemodel"
	"github.com/dwhswenson/codemodel/internal/parser"
)

type generateConfig struct {
	docs     codemodel.DocExtractor
	module   *ModuleRef
	name     string
	resolver codemodel.ModuleResolver
}

// GenerateOption configures model generation.
type GenerateOption func(*generateConfig)

// WithDocExtractor fills in parameter types and descriptions the callable
// does not declare from its docstring.
func WithDocExtractor(docs codemodel.DocExtractor) GenerateOption {
	return func(c *generateConfig) {
		c.docs = docs
	}
}

// WithPackage registers the generated model to module.
func WithPackage(module *ModuleRef) GenerateOption {
	return func(c *generateConfig) {
		c.module = module
	}
}

// WithName overrides the package name, which defaults to the canonical
// path of the imported module.
func WithName(name string) GenerateOption {
	return func(c *generateConfig) {
		c.name = name
	}
}

// WithModuleResolver sets the resolver of the native module.
func WithModuleResolver(resolver codemodel.ModuleResolver) GenerateOption {
	return func(c *generateConfig) {
		c.resolver = resolver
	}
}

// ModelFromCallable builds the model of fn from its declared parameters.
// Parameters without a type tag get "Unknown" and no description unless a
// doc extractor supplies them.
func ModelFromCallable(fn codemodel.Callable, opts ...GenerateOption) (*CallableModel, error) {
	var cfg generateConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	params := fn.Parameters()
	if doc, ok := fn.(codemodel.Documented); ok && cfg.docs != nil {
		names := make([]string, len(params))
		for i, p := range params {
			names[i] = p.Name
		}
		types, descs := cfg.docs.Extract(doc.Doc(), names)
		for i := range params {
			if params[i].Type == codemodel.UnknownType && i < len(types) && types[i] != "" {
				params[i].Type = types[i]
			}
			if params[i].Desc == nil && i < len(descs) && descs[i] != "" {
				desc := descs[i]
				params[i].Desc = &desc
			}
		}
	}
	m, err := NewCallableModel(fn.Name(), params)
	if err != nil {
		return nil, fmt.Errorf("model of %s: %w", fn.Name(), err)
	}
	if cfg.module != nil {
		cfg.module.Register(m)
	}
	return m, nil
}

// PackageFromModule describes the callables of the native module that
// importSpec brings in. An empty names list takes every member.
func PackageFromModule(ctx context.Context, importSpec string, names []string, opts ...GenerateOption) (*ModuleRef, error) {
	var cfg generateConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := parser.ValidateImports([]string{importSpec}); err != nil {
		return nil, err
	}
	var modOpts []ModuleOption
	if cfg.resolver != nil {
		modOpts = append(modOpts, WithResolver(cfg.resolver))
	}
	ref, err := ModuleFromImport(importSpec, modOpts...)
	if err != nil {
		return nil, err
	}
	if cfg.name != "" {
		ref.Name = cfg.name
	}
	mod, err := ref.Module(ctx)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		names = mod.Members()
	}

	genOpts := []GenerateOption{WithPackage(ref)}
	if cfg.docs != nil {
		genOpts = append(genOpts, WithDocExtractor(cfg.docs))
	}
	for _, name := range names {
		fn, ok := mod.Lookup(name)
		if !ok {
			return nil, codemodel.NewModuleNotFoundError(mod.Path()+"."+name,
				fmt.Errorf("module %s has no callable %s", mod.Path(), name))
		}
		if _, err := ModelFromCallable(fn, genOpts...); err != nil {
			return nil, err
		}
	}
	return ref, nil
}

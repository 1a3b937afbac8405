package codemodel

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/dwhswenson/codemodel"
	"github.com/dwhswenson/codemodel/internal/modelfile"
)

// modelTypes are the model type tags a package may declare for its
// callables.
var modelTypes = []string{DefaultModelType, "CallableModel"}

func checkModelType(tag string) error {
	if !slices.Contains(modelTypes, tag) {
		return codemodel.NewSerializationError(fmt.Sprintf("unknown model type %q", tag), nil)
	}
	return nil
}

// ParameterToDict returns the dictionary form of p.
func ParameterToDict(p codemodel.Parameter) map[string]any {
	var desc any
	if p.Desc != nil {
		desc = *p.Desc
	}
	var def any
	if p.HasDefault {
		def = p.Default
	}
	return map[string]any{
		"name":        p.Name,
		"param_type":  p.Type,
		"kind":        string(p.Kind),
		"has_default": p.HasDefault,
		"default":     def,
		"desc":        desc,
	}
}

// ParameterFromDict rebuilds a parameter from its dictionary form.
func ParameterFromDict(d map[string]any) (codemodel.Parameter, error) {
	p, err := parameterRecord(d)
	if err != nil {
		return codemodel.Parameter{}, err
	}
	return p.Model()
}

func parameterRecord(d map[string]any) (modelfile.Parameter, error) {
	var p modelfile.Parameter
	var err error
	if p.Name, err = field[string](d, "name", true); err != nil {
		return p, err
	}
	if p.ParamType, err = field[string](d, "param_type", false); err != nil {
		return p, err
	}
	if p.Kind, err = field[string](d, "kind", false); err != nil {
		return p, err
	}
	if p.HasDefault, err = field[bool](d, "has_default", false); err != nil {
		return p, err
	}
	p.Default = d["default"]
	if desc, ok := d["desc"]; ok && desc != nil {
		s, ok := desc.(string)
		if !ok {
			return p, codemodel.NewSerializationError(fmt.Sprintf("field desc: want string, got %T", desc), nil)
		}
		p.Desc = &s
	}
	return p, nil
}

// ToDict returns the dictionary form of the model: its name and
// parameters.
func (m *CallableModel) ToDict() map[string]any {
	params := make([]any, len(m.params))
	for i, p := range m.params {
		params[i] = ParameterToDict(p)
	}
	return map[string]any{
		"name":       m.name,
		"parameters": params,
	}
}

// CallableModelFromDict rebuilds a model from its dictionary form. The
// model belongs to no module.
func CallableModelFromDict(d map[string]any, opts ...Option) (*CallableModel, error) {
	c, err := callableRecord(d)
	if err != nil {
		return nil, err
	}
	return modelFromRecord(c, opts...)
}

func callableRecord(d map[string]any) (modelfile.Callable, error) {
	var c modelfile.Callable
	var err error
	if c.Name, err = field[string](d, "name", true); err != nil {
		return c, err
	}
	params, err := records(d, "parameters")
	if err != nil {
		return c, err
	}
	for _, pd := range params {
		p, err := parameterRecord(pd)
		if err != nil {
			return c, fmt.Errorf("callable %s: %w", c.Name, err)
		}
		c.Parameters = append(c.Parameters, p)
	}
	return c, nil
}

func modelFromRecord(c modelfile.Callable, opts ...Option) (*CallableModel, error) {
	params, err := c.Model()
	if err != nil {
		return nil, fmt.Errorf("callable %s: %w", c.Name, err)
	}
	return NewCallableModel(c.Name, params, opts...)
}

func (m *CallableModel) record() modelfile.Callable {
	c := modelfile.Callable{Name: m.name, Parameters: make([]modelfile.Parameter, len(m.params))}
	for i, p := range m.params {
		c.Parameters[i] = modelfile.FromParameter(p)
	}
	return c
}

// MarshalJSON writes the dictionary form of the model.
func (m *CallableModel) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.record())
}

// ToDict returns the dictionary form of the module with its callables.
func (r *ModuleRef) ToDict() map[string]any {
	callables := make([]any, len(r.Models))
	for i, m := range r.Models {
		callables[i] = m.ToDict()
	}
	types := make([]any, len(r.ModelTypes))
	for i, t := range r.ModelTypes {
		types[i] = t
	}
	return map[string]any{
		"name":             r.Name,
		"import_statement": r.ImportSpec,
		"implicit_prefix":  r.Prefix,
		"model_types":      types,
		"callables":        callables,
	}
}

// ModuleRefFromDict rebuilds a module from its dictionary form. Its
// callables are bound back to it.
func ModuleRefFromDict(d map[string]any, opts ...ModuleOption) (*ModuleRef, error) {
	var p modelfile.Package
	var err error
	if p.Name, err = field[string](d, "name", true); err != nil {
		return nil, err
	}
	if p.ImportStatement, err = field[string](d, "import_statement", false); err != nil {
		return nil, err
	}
	if p.ImplicitPrefix, err = field[string](d, "implicit_prefix", false); err != nil {
		return nil, err
	}
	if p.ModelTypes, err = stringList(d, "model_types"); err != nil {
		return nil, err
	}
	callables, err := records(d, "callables")
	if err != nil {
		return nil, err
	}
	for _, cd := range callables {
		c, err := callableRecord(cd)
		if err != nil {
			return nil, fmt.Errorf("package %s: %w", p.Name, err)
		}
		p.Callables = append(p.Callables, c)
	}
	return FromPackage(p, opts...)
}

// Package returns the package file record of the module.
func (r *ModuleRef) Package() modelfile.Package {
	p := modelfile.Package{
		Name:            r.Name,
		ImportStatement: r.ImportSpec,
		ImplicitPrefix:  r.Prefix,
		ModelTypes:      slices.Clone(r.ModelTypes),
		Callables:       make([]modelfile.Callable, len(r.Models)),
	}
	for i, m := range r.Models {
		p.Callables[i] = m.record()
	}
	return p
}

// FromPackage builds a module and its models from a package file record.
// Missing model types default to DefaultModelType.
func FromPackage(p modelfile.Package, opts ...ModuleOption) (*ModuleRef, error) {
	if len(p.ModelTypes) > 0 && len(p.ModelTypes) != len(p.Callables) {
		return nil, codemodel.NewSerializationError(
			fmt.Sprintf("package %s: %d model types for %d callables", p.Name, len(p.ModelTypes), len(p.Callables)), nil)
	}
	r := NewModuleRef(p.Name, p.ImportStatement, p.ImplicitPrefix, opts...)
	for i, c := range p.Callables {
		tag := DefaultModelType
		if len(p.ModelTypes) > 0 {
			tag = p.ModelTypes[i]
		}
		if err := checkModelType(tag); err != nil {
			return nil, fmt.Errorf("package %s: callable %s: %w", p.Name, c.Name, err)
		}
		m, err := modelFromRecord(c, WithModule(r))
		if err != nil {
			return nil, fmt.Errorf("package %s: %w", p.Name, err)
		}
		r.Models = append(r.Models, m)
		r.ModelTypes = append(r.ModelTypes, tag)
	}
	return r, nil
}

// MarshalJSON writes the package record of the module.
func (r *ModuleRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Package())
}

// LoadPackages reads a JSON array of packages.
func LoadPackages(rd io.Reader, opts ...ModuleOption) ([]*ModuleRef, error) {
	packages, err := modelfile.JSONLoader{}.Load(rd)
	if err != nil {
		return nil, err
	}
	return FromPackages(packages, opts...)
}

// FromPackages converts package file records into modules.
func FromPackages(packages []modelfile.Package, opts ...ModuleOption) ([]*ModuleRef, error) {
	refs := make([]*ModuleRef, 0, len(packages))
	for _, p := range packages {
		r, err := FromPackage(p, opts...)
		if err != nil {
			return nil, err
		}
		refs = append(refs, r)
	}
	return refs, nil
}

// SavePackages writes modules as a JSON array of packages.
func SavePackages(w io.Writer, refs []*ModuleRef) error {
	packages := make([]modelfile.Package, len(refs))
	for i, r := range refs {
		packages[i] = r.Package()
	}
	return modelfile.JSONLoader{}.Save(w, packages)
}

func field[T any](d map[string]any, key string, required bool) (T, error) {
	var zero T
	v, ok := d[key]
	if !ok || v == nil {
		if required {
			return zero, codemodel.NewSerializationError(fmt.Sprintf("missing field %s", key), nil)
		}
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, codemodel.NewSerializationError(fmt.Sprintf("field %s: want %T, got %T", key, zero, v), nil)
	}
	return t, nil
}

func records(d map[string]any, key string) ([]map[string]any, error) {
	switch v := d[key].(type) {
	case nil:
		return nil, nil
	case []map[string]any:
		return v, nil
	case []any:
		out := make([]map[string]any, len(v))
		for i, e := range v {
			m, ok := e.(map[string]any)
			if !ok {
				return nil, codemodel.NewSerializationError(fmt.Sprintf("field %s[%d]: want object, got %T", key, i, e), nil)
			}
			out[i] = m
		}
		return out, nil
	default:
		return nil, codemodel.NewSerializationError(fmt.Sprintf("field %s: want list, got %T", key, v), nil)
	}
}

func stringList(d map[string]any, key string) ([]string, error) {
	switch v := d[key].(type) {
	case nil:
		return nil, nil
	case []string:
		return slices.Clone(v), nil
	case []any:
		out := make([]string, len(v))
		for i, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, codemodel.NewSerializationError(fmt.Sprintf("field %s[%d]: want string, got %T", key, i, e), nil)
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, codemodel.NewSerializationError(fmt.Sprintf("field %s: want list, got %T", key, v), nil)
	}
}

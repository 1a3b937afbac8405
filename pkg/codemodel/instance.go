package codemodel

import (
	"context"
	"maps"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.starlark.net/starlark"

	"github.com/dwhswenson/codemodel/internal/ctxlog"
)

// Instance is a named binding of a model to parameter values. Values are
// raw representations (strings, Go scalars, Starlark values) or other
// instances, which makes those instances dependencies of this one.
//
// The computed value is memoized; an Instance is not safe for concurrent
// use.
type Instance struct {
	name   string
	model  *CallableModel
	params map[string]any
	rename string

	computed bool
	result   starlark.Value
}

// NewInstance binds model to params. The map is copied. An empty name is
// replaced by a generated identifier.
func NewInstance(name string, model *CallableModel, params map[string]any) *Instance {
	if name == "" {
		name = "inst_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	return &Instance{
		name:   name,
		model:  model,
		params: maps.Clone(params),
	}
}

// Name returns the display name.
func (i *Instance) Name() string { return i.name }

func (i *Instance) Model() *CallableModel { return i.model }

// CodeName returns the identifier the instance is bound to in generated
// source: the rename when set, else the display name.
func (i *Instance) CodeName() string {
	if i.rename != "" {
		return i.rename
	}
	return i.name
}

// Rename sets the code name. An empty name restores the display name.
func (i *Instance) Rename(codeName string) *Instance {
	i.rename = codeName
	return i
}

// Parameter returns the value bound to name.
func (i *Instance) Parameter(name string) (any, bool) {
	v, ok := i.params[name]
	return v, ok
}

// Parameters returns a copy of the bound values.
func (i *Instance) Parameters() map[string]any {
	return maps.Clone(i.params)
}

// ParameterNames lists the bound names: those the model declares in
// declaration order, then the rest sorted.
func (i *Instance) ParameterNames() []string {
	names := make([]string, 0, len(i.params))
	seen := make(map[string]bool, len(i.params))
	for _, p := range i.model.params {
		if _, ok := i.params[p.Name]; ok {
			names = append(names, p.Name)
			seen[p.Name] = true
		}
	}
	rest := slices.Sorted(maps.Keys(i.params))
	for _, n := range rest {
		if !seen[n] {
			names = append(names, n)
		}
	}
	return names
}

// Value computes the instance on first use and returns the same value
// afterwards. Failed computations are not memoized.
func (i *Instance) Value(ctx context.Context) (starlark.Value, error) {
	if i.computed {
		return i.result, nil
	}
	logger := ctxlog.FromContext(ctx)
	logger.Debug("instantiating", "instance", i.CodeName(), "model", i.model.Name())
	v, err := i.model.Instantiate(ctx, i)
	if err != nil {
		return nil, err
	}
	i.result, i.computed = v, true
	return v, nil
}

// SourceSections returns the source fragments of the instance keyed by
// stage key.
func (i *Instance) SourceSections(ctx context.Context) (map[int]string, error) {
	return i.model.SourceSections(ctx, i)
}

func (i *Instance) String() string { return i.CodeName() }

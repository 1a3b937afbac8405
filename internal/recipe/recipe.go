// Package recipe reads HCL recipe files. A recipe lists named instances of
// package models together with their parameter values, and the options of
// the script assembled from them:
//
//	script {
//	  formatters        = ["isort", "style"]
//	  section_separator = true
//	}
//
//	instance "exists" {
//	  model  = "os.path/exists"
//	  rename = "found"
//	  params = { path = "/tmp" }
//	}
//
// A parameter value written as instance.<name> refers to another instance
// of the recipe, which makes that instance a dependency.
package recipe

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/dwhswenson/codemodel"
	"github.com/dwhswenson/codemodel/internal/dag"
)

// RefRoot is the root name of instance references.
const RefRoot = "instance"

// Ref is a parameter value referring to another instance by name.
type Ref struct {
	Name string
}

func (r Ref) String() string { return RefRoot + "." + r.Name }

// Instance is one instance block.
type Instance struct {
	Name   string
	Model  string
	Rename string
	Params map[string]any
	Range  hcl.Range
}

// Package and Callable split Model at its last slash.
func (i Instance) Package() string {
	idx := strings.LastIndex(i.Model, "/")
	if idx < 0 {
		return ""
	}
	return i.Model[:idx]
}

func (i Instance) Callable() string {
	return i.Model[strings.LastIndex(i.Model, "/")+1:]
}

// Recipe is a decoded recipe file.
type Recipe struct {
	// Formatters names the format passes; nil selects the defaults and an
	// empty list disables formatting
	Formatters []string

	SectionSeparator bool
	Instances        []Instance
}

type hclFile struct {
	Script    *hclScript     `hcl:"script,block"`
	Instances []*hclInstance `hcl:"instance,block"`
}

type hclScript struct {
	Formatters       *[]string `hcl:"formatters,optional"`
	SectionSeparator *bool     `hcl:"section_separator,optional"`
}

type hclInstance struct {
	Name   string         `hcl:"name,label"`
	Model  string         `hcl:"model"`
	Rename string         `hcl:"rename,optional"`
	Params hcl.Expression `hcl:"params,optional"`
}

// Load parses the recipe file at path.
func Load(path string) (*Recipe, error) {
	file, diags := hclparse.NewParser().ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, codemodel.NewParseError(path, diags)
	}
	return decode(path, file)
}

// Parse parses recipe source; filename is used in messages.
func Parse(src []byte, filename string) (*Recipe, error) {
	file, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, codemodel.NewParseError(filename, diags)
	}
	return decode(filename, file)
}

func decode(filename string, file *hcl.File) (*Recipe, error) {
	var parsed hclFile
	if diags := gohcl.DecodeBody(file.Body, nil, &parsed); diags.HasErrors() {
		return nil, codemodel.NewParseError(filename, diags)
	}

	r := &Recipe{SectionSeparator: true}
	if s := parsed.Script; s != nil {
		if s.Formatters != nil {
			r.Formatters = append([]string{}, *s.Formatters...)
		}
		if s.SectionSeparator != nil {
			r.SectionSeparator = *s.SectionSeparator
		}
	}

	seen := make(map[string]hcl.Range, len(parsed.Instances))
	for _, hi := range parsed.Instances {
		if prev, ok := seen[hi.Name]; ok {
			return nil, codemodel.NewValidationError("recipe",
				fmt.Sprintf("%s: duplicate instance %q, first defined at %s", filename, hi.Name, prev), nil)
		}
		if idx := strings.LastIndex(hi.Model, "/"); idx <= 0 || idx == len(hi.Model)-1 {
			return nil, codemodel.NewValidationError("recipe",
				fmt.Sprintf("%s: instance %q: model %q is not of the form package/callable", filename, hi.Name, hi.Model), nil)
		}
		params, err := decodeParams(hi.Params)
		if err != nil {
			return nil, fmt.Errorf("%s: instance %q: %w", filename, hi.Name, err)
		}
		inst := Instance{
			Name:   hi.Name,
			Model:  hi.Model,
			Rename: hi.Rename,
			Params: params,
		}
		if hi.Params != nil {
			inst.Range = hi.Params.Range()
		}
		seen[hi.Name] = inst.Range
		r.Instances = append(r.Instances, inst)
	}
	if err := r.checkRefs(); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return r, nil
}

// decodeParams reads the params object. References become Refs; every
// other value is evaluated as a constant.
func decodeParams(expr hcl.Expression) (map[string]any, error) {
	params := make(map[string]any)
	if expr == nil {
		return params, nil
	}
	pairs, diags := hcl.ExprMap(expr)
	if diags.HasErrors() {
		v, vdiags := expr.Value(nil)
		if !vdiags.HasErrors() && v.IsNull() {
			return params, nil
		}
		return nil, codemodel.NewValidationError("recipe", "params must be an object", diags)
	}
	for _, kv := range pairs {
		name := hcl.ExprAsKeyword(kv.Key)
		if name == "" {
			k, diags := kv.Key.Value(nil)
			if diags.HasErrors() {
				return nil, codemodel.NewValidationError("recipe", "invalid parameter name", diags)
			}
			if k.IsNull() || !k.Type().Equals(cty.String) {
				return nil, codemodel.NewValidationError("recipe",
					fmt.Sprintf("parameter name at %s is not a string", kv.Key.Range()), nil)
			}
			name = k.AsString()
		}
		if ref, ok := refOf(kv.Value); ok {
			params[name] = ref
			continue
		}
		v, diags := kv.Value.Value(nil)
		if diags.HasErrors() {
			return nil, codemodel.NewValidationError("recipe", fmt.Sprintf("parameter %s", name), diags)
		}
		raw, err := FromCty(v)
		if err != nil {
			return nil, codemodel.NewValidationError("recipe", fmt.Sprintf("parameter %s", name), err)
		}
		params[name] = raw
	}
	return params, nil
}

// refOf recognizes instance.<name>.
func refOf(expr hcl.Expression) (Ref, bool) {
	t, diags := hcl.AbsTraversalForExpr(expr)
	if diags.HasErrors() || len(t) != 2 || t.RootName() != RefRoot {
		return Ref{}, false
	}
	attr, ok := t[1].(hcl.TraverseAttr)
	if !ok {
		return Ref{}, false
	}
	return Ref{Name: attr.Name}, true
}

func (r *Recipe) checkRefs() error {
	for _, inst := range r.Instances {
		for name, v := range inst.Params {
			ref, ok := v.(Ref)
			if !ok {
				continue
			}
			if _, found := r.Instance(ref.Name); !found {
				return codemodel.NewValidationError("recipe",
					fmt.Sprintf("instance %q: parameter %s refers to unknown %s", inst.Name, name, ref), nil)
			}
		}
	}
	return nil
}

// Instance returns the instance named name.
func (r *Recipe) Instance(name string) (Instance, bool) {
	for _, inst := range r.Instances {
		if inst.Name == name {
			return inst, true
		}
	}
	return Instance{}, false
}

// Dependencies maps each instance name to the names it refers to, in
// parameter name order.
func (r *Recipe) Dependencies() map[string][]string {
	deps := make(map[string][]string, len(r.Instances))
	for _, inst := range r.Instances {
		deps[inst.Name] = nil
		for _, name := range sortedKeys(inst.Params) {
			if ref, ok := inst.Params[name].(Ref); ok {
				deps[inst.Name] = append(deps[inst.Name], ref.Name)
			}
		}
	}
	return deps
}

// BuildOrder returns the instance names with every instance after the
// instances it refers to. Independent instances keep file order.
func (r *Recipe) BuildOrder() ([]string, error) {
	order := make([]string, len(r.Instances))
	for i, inst := range r.Instances {
		order[i] = inst.Name
	}
	return dag.FromDependencyMap(r.Dependencies(), order, dag.DirectionTo).Sorted(nil)
}

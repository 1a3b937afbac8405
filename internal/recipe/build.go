package recipe

import (
	"context"
	"fmt"

	"github.com/dwhswenson/codemodel"
	"github.com/dwhswenson/codemodel/internal/ctxlog"
	"github.com/dwhswenson/codemodel/internal/format"
	cm "github.com/dwhswenson/codemodel/pkg/codemodel"
)

// Build is the result of building a recipe against a set of packages.
type Build struct {
	// Instances in build order
	Instances []*cm.Instance
	Assembler *cm.ScriptAssembler

	byName map[string]*cm.Instance
}

// Instance returns the built instance named name.
func (b *Build) Instance(name string) (*cm.Instance, bool) {
	inst, ok := b.byName[name]
	return inst, ok
}

// BuildWith creates the instances of the recipe from the models of
// packages and registers them, in build order, to a script assembler
// configured by the script block.
func (r *Recipe) BuildWith(ctx context.Context, packages []*cm.ModuleRef) (*Build, error) {
	logger := ctxlog.FromContext(ctx)
	order, err := r.BuildOrder()
	if err != nil {
		return nil, err
	}
	opts, err := r.assemblerOptions()
	if err != nil {
		return nil, err
	}
	opts = append(opts, cm.WithAssemblerLogger(logger))

	b := &Build{
		Assembler: cm.NewScriptAssembler(opts...),
		byName:    make(map[string]*cm.Instance, len(order)),
	}
	for _, name := range order {
		spec, _ := r.Instance(name)
		model, err := findModel(packages, spec.Package(), spec.Callable())
		if err != nil {
			return nil, fmt.Errorf("instance %q: %w", name, err)
		}
		params := make(map[string]any, len(spec.Params))
		for k, v := range spec.Params {
			if ref, ok := v.(Ref); ok {
				params[k] = b.byName[ref.Name]
				continue
			}
			params[k] = v
		}
		inst := cm.NewInstance(name, model, params)
		if spec.Rename != "" {
			inst.Rename(spec.Rename)
		}
		if rejected := model.ValidateParameterValues(params); len(rejected) > 0 {
			return nil, codemodel.NewValidationError("recipe",
				fmt.Sprintf("instance %q: invalid values for %v", name, rejected), nil)
		}
		logger.Debug("built instance", "instance", name, "model", spec.Model)
		b.byName[name] = inst
		b.Instances = append(b.Instances, inst)
		b.Assembler.Register(inst)
	}
	return b, nil
}

func (r *Recipe) assemblerOptions() ([]cm.AssemblerOption, error) {
	var opts []cm.AssemblerOption
	if r.Formatters != nil {
		passes := make([]codemodel.FormatPass, 0, len(r.Formatters))
		for _, name := range r.Formatters {
			p, err := format.ByName(name)
			if err != nil {
				return nil, err
			}
			passes = append(passes, p)
		}
		opts = append(opts, cm.WithFormatters(passes...))
	}
	if r.SectionSeparator {
		opts = append(opts, cm.WithBoundaryHooks(cm.SectionSeparator))
	}
	return opts, nil
}

func findModel(packages []*cm.ModuleRef, pkg, callable string) (*cm.CallableModel, error) {
	for _, p := range packages {
		if p.Name != pkg {
			continue
		}
		if m, ok := p.Model(callable); ok {
			return m, nil
		}
		return nil, codemodel.NewModuleNotFoundError(pkg+"/"+callable,
			fmt.Errorf("package %s has no callable %s", pkg, callable))
	}
	return nil, codemodel.NewModuleNotFoundError(pkg, fmt.Errorf("no package %s loaded", pkg))
}

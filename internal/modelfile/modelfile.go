// Package modelfile reads and writes package files: lists of serialized
// packages, each describing the callables of one importable module.
package modelfile

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dwhswenson/codemodel"
)

// Parameter is the serialized form of a codemodel.Parameter.
type Parameter struct {
	Name       string  `json:"name" yaml:"name"`
	ParamType  string  `json:"param_type" yaml:"param_type"`
	Kind       string  `json:"kind" yaml:"kind"`
	HasDefault bool    `json:"has_default" yaml:"has_default"`
	Default    any     `json:"default" yaml:"default"`
	Desc       *string `json:"desc" yaml:"desc"`
}

// Callable is the serialized form of a callable model.
type Callable struct {
	Name       string      `json:"name" yaml:"name"`
	Parameters []Parameter `json:"parameters" yaml:"parameters"`
}

// Package is the serialized form of a package.
type Package struct {
	Name            string     `json:"name" yaml:"name"`
	ImportStatement string     `json:"import_statement" yaml:"import_statement"`
	ImplicitPrefix  string     `json:"implicit_prefix" yaml:"implicit_prefix"`
	ModelTypes      []string   `json:"model_types" yaml:"model_types"`
	Callables       []Callable `json:"callables" yaml:"callables"`
}

// Loader reads and writes package files of one format.
type Loader interface {
	Load(r io.Reader) ([]Package, error)
	Save(w io.Writer, packages []Package) error
	Format() string       // e.g., "yaml", "json"
	Extensions() []string // file extensions, with the dot
}

var (
	loadersMu sync.RWMutex
	loaders   = make(map[string]Loader)
)

// RegisterLoader registers a loader under its format name.
func RegisterLoader(loader Loader) {
	loadersMu.Lock()
	defer loadersMu.Unlock()
	loaders[loader.Format()] = loader
}

// GetLoader retrieves a loader by format name (e.g., "yaml").
func GetLoader(format string) (Loader, bool) {
	loadersMu.RLock()
	defer loadersMu.RUnlock()
	loader, ok := loaders[format]
	return loader, ok
}

// LoaderFor picks the loader whose extensions match path.
func LoaderFor(path string) (Loader, error) {
	ext := strings.ToLower(filepath.Ext(path))
	loadersMu.RLock()
	defer loadersMu.RUnlock()
	for _, l := range loaders {
		for _, e := range l.Extensions() {
			if e == ext {
				return l, nil
			}
		}
	}
	return nil, codemodel.NewConfigurationError(fmt.Sprintf("no package file loader for %q", path), nil)
}

func init() {
	RegisterLoader(JSONLoader{})
	RegisterLoader(YAMLLoader{})
}

// Load reads a package file, choosing the format by extension.
func Load(path string) ([]Package, error) {
	loader, err := LoaderFor(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open package file: %w", err)
	}
	defer f.Close()
	packages, err := loader.Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return packages, nil
}

// LoadAll reads several package files concurrently and concatenates
// their packages in the order of paths.
func LoadAll(ctx context.Context, paths []string) ([]Package, error) {
	results := make([][]Package, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			packages, err := Load(path)
			if err != nil {
				return err
			}
			results[i] = packages
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var all []Package
	for _, r := range results {
		all = append(all, r...)
	}
	return all, nil
}

// Save writes packages to path in the format its extension names.
func Save(path string, packages []Package) error {
	loader, err := LoaderFor(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create package file: %w", err)
	}
	if err := loader.Save(f, packages); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Validate checks packages for duplicate package names, duplicate
// callable names within a package, model type lists that do not match
// the callables, unknown parameter kinds and repeated variadic parameters.
func Validate(packages []Package) error {
	names := make(map[string]struct{}, len(packages))
	for _, p := range packages {
		if p.Name == "" {
			return codemodel.NewValidationError("modelfile", "package without a name", nil)
		}
		if _, exists := names[p.Name]; exists {
			return codemodel.NewValidationError("modelfile", fmt.Sprintf("duplicate package name found: %s", p.Name), nil)
		}
		names[p.Name] = struct{}{}

		if len(p.ModelTypes) > 0 && len(p.ModelTypes) != len(p.Callables) {
			return codemodel.NewValidationError("modelfile",
				fmt.Sprintf("package %s: %d model types for %d callables", p.Name, len(p.ModelTypes), len(p.Callables)), nil)
		}
		callables := make(map[string]struct{}, len(p.Callables))
		for _, c := range p.Callables {
			if _, exists := callables[c.Name]; exists {
				return codemodel.NewValidationError("modelfile", fmt.Sprintf("package %s: duplicate callable %s", p.Name, c.Name), nil)
			}
			callables[c.Name] = struct{}{}
			if _, err := c.Model(); err != nil {
				return fmt.Errorf("package %s: callable %s: %w", p.Name, c.Name, err)
			}
		}
	}
	return nil
}

// Model converts the serialized parameters and checks them.
func (c Callable) Model() ([]codemodel.Parameter, error) {
	params := make([]codemodel.Parameter, 0, len(c.Parameters))
	for _, p := range c.Parameters {
		param, err := p.Model()
		if err != nil {
			return nil, err
		}
		params = append(params, param)
	}
	if err := codemodel.ValidateParameters(params); err != nil {
		return nil, err
	}
	return params, nil
}

// Model converts the serialized form back into a codemodel.Parameter.
func (p Parameter) Model() (codemodel.Parameter, error) {
	kind := codemodel.PositionalOrKeyword
	if p.Kind != "" {
		k, err := codemodel.ParseParamKind(p.Kind)
		if err != nil {
			return codemodel.Parameter{}, codemodel.NewSerializationError(fmt.Sprintf("parameter %s", p.Name), err)
		}
		kind = k
	}
	opts := []codemodel.ParameterOption{codemodel.WithKind(kind)}
	if p.HasDefault {
		opts = append(opts, codemodel.WithDefault(p.Default))
	}
	if p.Desc != nil {
		opts = append(opts, codemodel.WithDescription(*p.Desc))
	}
	return codemodel.NewParameter(p.Name, p.ParamType, opts...), nil
}

// FromParameter builds the serialized form of p.
func FromParameter(p codemodel.Parameter) Parameter {
	out := Parameter{
		Name:       p.Name,
		ParamType:  p.Type,
		Kind:       string(p.Kind),
		HasDefault: p.HasDefault,
		Desc:       p.Desc,
	}
	if p.HasDefault {
		out.Default = p.Default
	}
	return out
}

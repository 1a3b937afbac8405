package tools

import (
	"context"
	"log/slog"
	"maps"
	"sort"
	"strings"
	"sync"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/dwhswenson/codemodel"
	"github.com/dwhswenson/codemodel/internal/cache"
	"github.com/dwhswenson/codemodel/internal/parser"
)

// Registry resolves module paths to registered native modules. Import
// resolutions are kept in a ModuleCache keyed by statement and prefix.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]*Module
	globals starlark.StringDict
	cache   *cache.ModuleCache
	logger  *slog.Logger
}

// Option represents an option for configuring the Registry.
type Option func(*Registry)

// WithCache sets the cache of resolved modules.
func WithCache(c *cache.ModuleCache) Option {
	return func(r *Registry) {
		r.cache = c
	}
}

// WithLogger sets the logger for resolution events.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		modules: make(map[string]*Module),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cache == nil {
		r.cache = cache.NewModuleCache(cache.DefaultSize, cache.DefaultTTL, r.logger)
	}
	return r
}

var defaultRegistry = sync.OnceValue(func() *Registry {
	r := NewRegistry()
	for _, m := range Builtins() {
		r.Register(m)
	}
	return r
})

// Default returns the process-wide registry holding the built-in modules.
func Default() *Registry {
	return defaultRegistry()
}

// Register adds or replaces a module.
func (r *Registry) Register(m *Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modules[m.Path()] = m
	r.globals = nil
	r.cache.Purge()
	r.logger.Debug("module registered", "module", m.Path(), "members", len(m.order))
}

// Resolve implements codemodel.ModuleResolver.
func (r *Registry) Resolve(ctx context.Context, path string) (codemodel.Module, error) {
	if err := ctx.Err(); err != nil {
		return nil, codemodel.NewModuleNotFoundError(path, err)
	}
	r.mu.RLock()
	m, ok := r.modules[path]
	r.mu.RUnlock()
	if !ok {
		return nil, codemodel.NewModuleNotFoundError(path, nil)
	}
	return m, nil
}

func importKey(importSpec, prefix, fallback string) string {
	return importSpec + "\x00" + prefix + "\x00" + fallback
}

// ResolveImport implements codemodel.ImportResolver. The statement is
// parsed once per key; later calls are served from the cache until a
// module is registered or the entry expires.
func (r *Registry) ResolveImport(ctx context.Context, importSpec, prefix, fallback string) (codemodel.Module, error) {
	key := importKey(importSpec, prefix, fallback)
	m, err := r.cache.Get(ctx, key)
	if err == nil {
		return m, nil
	}
	if ctx.Err() != nil {
		return nil, codemodel.NewModuleNotFoundError(fallback, err)
	}

	path := fallback
	if names, err := parser.ImportNames([]string{importSpec}); err == nil {
		if p, ok := names[prefix]; ok {
			path = p
		}
	}
	m, err = r.Resolve(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := r.cache.Set(ctx, key, m); err != nil {
		r.logger.Warn("failed to cache import", "import", importSpec, "prefix", prefix, "error", err)
	} else {
		r.logger.Debug("import resolved", "import", importSpec, "prefix", prefix, "module", path)
	}
	return m, nil
}

// Paths returns the registered module paths, sorted.
func (r *Registry) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	paths := make([]string, 0, len(r.modules))
	for p := range r.modules {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Predeclared returns the registered modules as Starlark globals. A module
// at a dotted path is reachable through its parents, so os.path is the
// attribute path of the global os. The globals are built once per set of
// registered modules and are frozen.
func (r *Registry) Predeclared() starlark.StringDict {
	r.mu.RLock()
	globals := r.globals
	r.mu.RUnlock()
	if globals == nil {
		r.mu.Lock()
		if r.globals == nil {
			r.globals = r.buildGlobals()
		}
		globals = r.globals
		r.mu.Unlock()
	}
	return maps.Clone(globals)
}

// buildGlobals requires r.mu held.
func (r *Registry) buildGlobals() starlark.StringDict {
	paths := make([]string, 0, len(r.modules))
	for p := range r.modules {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	globals := make(starlark.StringDict)
	for _, path := range paths {
		parts := strings.Split(path, ".")
		members := globals
		for i, part := range parts[:len(parts)-1] {
			parent, ok := members[part].(*starlarkstruct.Module)
			if !ok {
				parent = &starlarkstruct.Module{
					Name:    strings.Join(parts[:i+1], "."),
					Members: make(starlark.StringDict),
				}
				members[part] = parent
			}
			members = parent.Members
		}

		// the module's own struct is shared, so children go into a copy
		own := r.modules[path].Struct()
		leaf := &starlarkstruct.Module{Name: own.Name, Members: maps.Clone(own.Members)}
		if existing, ok := members[parts[len(parts)-1]].(*starlarkstruct.Module); ok {
			maps.Copy(leaf.Members, existing.Members)
		}
		members[parts[len(parts)-1]] = leaf
	}
	globals.Freeze()
	return globals
}

// Package validators resolves parameter type tags to validators that turn
// raw parameter values into runtime values and source expressions.
package validators

import (
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dwhswenson/codemodel"
)

const defaultCacheSize = 256

// Registry is a codemodel.ValidatorRegistry. Factories are consulted in
// registration order and created validators are cached by type tag. Tags
// that no factory recognizes resolve to the opaque instance validator.
type Registry struct {
	mu        sync.RWMutex
	factories []codemodel.ValidatorFactory
	cache     *lru.Cache[string, codemodel.Validator]
	fallback  codemodel.Validator
	logger    *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used to report fallback resolutions.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithFallback replaces the validator used for unrecognized type tags.
func WithFallback(v codemodel.Validator) Option {
	return func(r *Registry) {
		r.fallback = v
	}
}

// NewRegistry creates a registry holding factories. cacheSize bounds the
// number of created validators kept; values <= 0 use a default.
func NewRegistry(cacheSize int, factories []codemodel.ValidatorFactory, opts ...Option) *Registry {
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	cache, err := lru.New[string, codemodel.Validator](cacheSize)
	if err != nil {
		// lru.New only fails for a non-positive size
		panic(err)
	}
	r := &Registry{
		cache:    cache,
		fallback: Instance{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	for _, f := range factories {
		r.Register(f)
	}
	return r
}

// Default returns a registry with the standard factories: int, float, str,
// bool, expr, array and instance.
func Default() *Registry {
	return NewRegistry(0, []codemodel.ValidatorFactory{
		StandardFactory{},
		BoolFactory{},
		ExprFactory{},
		ArrayFactory{},
		InstanceFactory{},
	})
}

// Register appends a factory. Cached validators are dropped so later
// lookups see the new factory in order.
func (r *Registry) Register(factory codemodel.ValidatorFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories = append(r.factories, factory)
	r.cache.Purge()
}

// Lookup returns the validator for typeTag.
func (r *Registry) Lookup(typeTag string) codemodel.Validator {
	if v, ok := r.cache.Get(typeTag); ok {
		return v
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, f := range r.factories {
		if !f.IsMyType(typeTag) {
			continue
		}
		v, err := f.Create(typeTag)
		if err != nil {
			r.logger.Warn("validator factory failed", "type", typeTag, "error", err)
			continue
		}
		r.cache.Add(typeTag, v)
		return v
	}
	r.logger.Debug("no validator for type, using fallback", "type", typeTag, "fallback", r.fallback.Name())
	return r.fallback
}

// Validate reports whether raw is acceptable for typeTag.
func (r *Registry) Validate(typeTag string, raw any) bool {
	return r.Lookup(typeTag).Validate(raw)
}

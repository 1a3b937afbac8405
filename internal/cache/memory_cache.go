// Package cache holds resolved native modules for the lifetime of a process.
package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/dwhswenson/codemodel"
)

const (
	DefaultSize = 128
	DefaultTTL  = 30 * time.Minute
)

// ModuleCache is a thread-safe cache of resolved modules keyed by their
// canonical path. Entries expire after the cache TTL.
type ModuleCache struct {
	store  *expirable.LRU[string, codemodel.Module]
	logger *slog.Logger
}

// NewModuleCache creates a cache holding up to size modules for ttl.
// Non-positive values use DefaultSize and DefaultTTL.
func NewModuleCache(size int, ttl time.Duration, logger *slog.Logger) *ModuleCache {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &ModuleCache{logger: logger}
	c.store = expirable.NewLRU[string, codemodel.Module](size, func(key string, _ codemodel.Module) {
		c.logger.Debug("module evicted from cache", "module", key)
	}, ttl)
	return c
}

// Get retrieves a module from the cache.
func (c *ModuleCache) Get(ctx context.Context, path string) (codemodel.Module, error) {
	if err := errbuilder.WrapIfContextDone(ctx, ctx.Err()); err != nil {
		return nil, err
	}
	m, found := c.store.Get(path)
	if !found {
		return nil, errbuilder.NotFoundErr(errbuilder.GenericErr("module not cached: "+path, nil))
	}
	return m, nil
}

// Set adds or replaces a module.
func (c *ModuleCache) Set(ctx context.Context, path string, m codemodel.Module) error {
	if err := errbuilder.WrapIfContextDone(ctx, ctx.Err()); err != nil {
		return err
	}
	c.store.Add(path, m)
	c.logger.Debug("module cached", "module", path)
	return nil
}

// Purge drops every entry.
func (c *ModuleCache) Purge() {
	c.store.Purge()
}

// Len returns the number of live entries.
func (c *ModuleCache) Len() int {
	return c.store.Len()
}

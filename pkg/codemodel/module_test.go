package codemodel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwhswenson/codemodel/internal/cache"
	"github.com/dwhswenson/codemodel/internal/tools"
)

func TestModuleRef_ModuleCachesImport(t *testing.T) {
	c := cache.NewModuleCache(0, time.Minute, nil)
	registry := tools.NewRegistry(tools.WithCache(c))
	registry.Register(tools.OSPath())
	ctx := context.Background()

	ref, err := ModuleFromImport("from os import path as p", WithResolver(registry))
	require.NoError(t, err)
	assert.Equal(t, "p", ref.Prefix)

	mod, err := ref.Module(ctx)
	require.NoError(t, err)
	assert.Equal(t, "os.path", mod.Path())
	assert.Equal(t, 1, c.Len())

	for range 3 {
		fn, err := ref.Lookup(ctx, "exists")
		require.NoError(t, err)
		assert.Equal(t, "exists", fn.Name())
	}
	assert.Equal(t, 1, c.Len())
}

func TestModuleRef_ModuleWithoutImport(t *testing.T) {
	registry := tools.NewRegistry()
	registry.Register(tools.OSPath())

	ref := NewModuleRef("os.path", "", "os.path", WithResolver(registry))
	mod, err := ref.Module(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "os.path", mod.Path())
}

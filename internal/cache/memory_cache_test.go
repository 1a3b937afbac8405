package cache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dwhswenson/codemodel"
)

type stubModule struct{ path string }

func (m stubModule) Path() string                             { return m.path }
func (m stubModule) Lookup(string) (codemodel.Callable, bool) { return nil, false }
func (m stubModule) Members() []string                        { return nil }

func TestModuleCache_SetAndGet(t *testing.T) {
	cache := NewModuleCache(0, time.Second, nil)
	ctx := context.Background()

	if err := cache.Set(ctx, "os.path", stubModule{"os.path"}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := cache.Get(ctx, "os.path")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Path() != "os.path" {
		t.Errorf("expected os.path, got %v", got.Path())
	}
	if cache.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", cache.Len())
	}
}

func TestModuleCache_Miss(t *testing.T) {
	cache := NewModuleCache(0, 0, nil)
	_, err := cache.Get(context.Background(), "math")
	if err == nil || !strings.Contains(err.Error(), "not cached") {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestModuleCache_Expiration(t *testing.T) {
	cache := NewModuleCache(0, 50*time.Millisecond, nil)
	ctx := context.Background()

	if err := cache.Set(ctx, "math", stubModule{"math"}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	time.Sleep(80 * time.Millisecond)
	if _, err := cache.Get(ctx, "math"); err == nil {
		t.Errorf("expected error for expired item, got nil")
	}
}

func TestModuleCache_Eviction(t *testing.T) {
	cache := NewModuleCache(1, time.Minute, nil)
	ctx := context.Background()
	_ = cache.Set(ctx, "a", stubModule{"a"})
	_ = cache.Set(ctx, "b", stubModule{"b"})
	if _, err := cache.Get(ctx, "a"); err == nil {
		t.Error("expected a to be evicted")
	}
	if _, err := cache.Get(ctx, "b"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestModuleCache_CancelledContext(t *testing.T) {
	cache := NewModuleCache(0, 0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := cache.Set(ctx, "a", stubModule{"a"}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected cancellation, got %v", err)
	}
	if cache.Len() != 0 {
		t.Errorf("cancelled Set stored an entry")
	}
	if err := cache.Set(context.Background(), "a", stubModule{"a"}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, err := cache.Get(ctx, "a"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected cancellation on a cached key, got %v", err)
	}
}

func TestModuleCache_Concurrency(t *testing.T) {
	cache := NewModuleCache(0, time.Second, nil)
	ctx := context.Background()
	setErr := make(chan error, 1)
	getErr := make(chan error, 1)

	go func() {
		setErr <- cache.Set(ctx, "concurrent", stubModule{"concurrent"})
	}()
	go func() {
		_, err := cache.Get(ctx, "concurrent")
		getErr <- err
	}()

	if err := <-setErr; err != nil {
		t.Errorf("Set failed: %v", err)
	}
	if err := <-getErr; err != nil && !strings.Contains(err.Error(), "not cached") {
		t.Errorf("unexpected Get error: %v", err)
	}
}

// Package adapters exposes Go functions and Starlark definitions as
// codemodel callables.
package adapters

import (
	"context"

	"go.starlark.net/starlark"
)

const contextKey = "codemodel.context"

// NewThread returns a Starlark thread carrying ctx. Cancelling ctx cancels
// the thread; call the returned stop function when the thread is done.
func NewThread(ctx context.Context, name string) (*starlark.Thread, func() bool) {
	thread := &starlark.Thread{Name: name}
	thread.SetLocal(contextKey, ctx)
	stop := context.AfterFunc(ctx, func() {
		thread.Cancel(context.Cause(ctx).Error())
	})
	return thread, stop
}

// ThreadContext returns the context attached by NewThread, or
// context.Background for other threads.
func ThreadContext(thread *starlark.Thread) context.Context {
	if thread != nil {
		if ctx, ok := thread.Local(contextKey).(context.Context); ok {
			return ctx
		}
	}
	return context.Background()
}

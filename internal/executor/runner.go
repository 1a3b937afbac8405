// Package executor runs the stage pipeline of a callable model on a
// Starlark thread.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.starlark.net/starlark"

	"github.com/dwhswenson/codemodel"
	"github.com/dwhswenson/codemodel/internal/adapters"
	"github.com/dwhswenson/codemodel/internal/eventbus"
	"github.com/dwhswenson/codemodel/internal/fragment"
)

// Stage is one callable of a pipeline, identified by its stage key.
type Stage struct {
	Key      int
	Callable codemodel.Callable
}

// Pipeline is a classified stage list: pre stages, the terminal stage that
// produces the result, and post stages, each in execution order.
type Pipeline struct {
	Pre      []Stage
	Terminal Stage
	Post     []Stage
}

// Runner executes pipelines.
type Runner struct {
	logger      *slog.Logger
	maxSteps    uint64
	execTimeout time.Duration
	bus         eventbus.EventBus

	metrics Metrics
}

// Option represents an option for configuring the Runner.
type Option func(*Runner)

// WithLogger sets the logger for stage events.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithMaxSteps bounds the Starlark steps of one pipeline run. Zero means
// no bound.
func WithMaxSteps(steps uint64) Option {
	return func(r *Runner) {
		r.maxSteps = steps
	}
}

// WithExecTimeout sets the timeout of one pipeline run. Zero means none.
func WithExecTimeout(timeout time.Duration) Option {
	return func(r *Runner) {
		r.execTimeout = timeout
	}
}

// WithEventBus publishes pipeline and stage events to bus.
func WithEventBus(bus eventbus.EventBus) Option {
	return func(r *Runner) {
		r.bus = bus
	}
}

// NewRunner creates a runner with default settings.
func NewRunner(options ...Option) *Runner {
	r := &Runner{
		logger: slog.Default(),
	}
	for _, option := range options {
		option(r)
	}
	return r
}

// Run executes p against values and returns the terminal stage result.
// Each pre and post stage receives the current value mapping bound to its
// own signature and must return a mapping; the returned entries replace
// the current mapping except for entries the stage does not declare,
// which are carried forward. Post stages never change the result.
func (r *Runner) Run(ctx context.Context, model string, p Pipeline, values map[string]starlark.Value) (starlark.Value, error) {
	if r.execTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.execTimeout)
		defer cancel()
	}
	thread, stop := adapters.NewThread(ctx, model)
	defer stop()
	if r.maxSteps > 0 {
		thread.SetMaxExecutionSteps(r.maxSteps)
	}

	start := time.Now()
	r.logger.Debug("starting pipeline", "model", model, "stages", len(p.Pre)+len(p.Post)+1)
	r.publish(ctx, eventbus.EventPipelineStarted, model, nil)

	current := values
	var err error
	for _, s := range p.Pre {
		if current, err = r.runMapping(ctx, thread, s, current); err != nil {
			return nil, err
		}
	}
	result, err := r.call(ctx, thread, p.Terminal, current)
	if err != nil {
		return nil, err
	}
	for _, s := range p.Post {
		if current, err = r.runMapping(ctx, thread, s, current); err != nil {
			return nil, err
		}
	}

	duration := time.Since(start)
	r.logger.Debug("pipeline completed", "model", model, "duration", duration)
	r.publish(ctx, eventbus.EventPipelineCompleted, model, eventbus.StagePayload{
		Key:      p.Terminal.Key,
		Callable: p.Terminal.Callable.Name(),
		Duration: duration,
	})
	return result, nil
}

func (r *Runner) runMapping(ctx context.Context, thread *starlark.Thread, s Stage, current map[string]starlark.Value) (map[string]starlark.Value, error) {
	passthrough := fragment.UnusedParameters(s.Callable.Parameters(), current)
	out, err := r.call(ctx, thread, s, current)
	if err != nil {
		return nil, err
	}
	returned, err := mappingResult(s.Callable.Name(), out)
	if err != nil {
		return nil, err
	}
	for k, v := range passthrough {
		if _, ok := returned[k]; !ok {
			returned[k] = v
		}
	}
	return returned, nil
}

// call binds values to the stage signature and invokes it.
func (r *Runner) call(ctx context.Context, thread *starlark.Thread, s Stage, values map[string]starlark.Value) (starlark.Value, error) {
	name := s.Callable.Name()
	args, err := fragment.BuildArguments[starlark.Value](ctx, name, s.Callable.Parameters(), values, fragment.ValueSplatter{})
	if err != nil {
		r.metrics.record(0, false)
		return nil, err
	}
	pos, kwargs := fragment.StarlarkArgs(args)

	start := time.Now()
	r.logger.Debug("calling stage", "stage", s.Key, "callable", name)
	r.publish(ctx, eventbus.EventStageStarted, thread.Name, eventbus.StagePayload{Key: s.Key, Callable: name})
	out, err := s.Callable.Call(thread, pos, kwargs)
	duration := time.Since(start)
	r.metrics.record(duration, err == nil)
	payload := eventbus.StagePayload{Key: s.Key, Callable: name, Duration: duration, Err: err}
	if err != nil {
		r.logger.Debug("stage failed", "stage", s.Key, "callable", name, "error", err)
		r.publish(ctx, eventbus.EventStageFailed, thread.Name, payload)
		if ctx.Err() != nil {
			return nil, codemodel.NewExecutionError(name, fmt.Errorf("stage interrupted: %w", context.Cause(ctx)))
		}
		var cmErr *codemodel.Error
		if errors.As(err, &cmErr) {
			return nil, err
		}
		return nil, codemodel.NewExecutionError(name, err)
	}
	r.publish(ctx, eventbus.EventStageCompleted, thread.Name, payload)
	return out, nil
}

// publish detaches from ctx so that events of a run outlive its timeout.
func (r *Runner) publish(ctx context.Context, typ eventbus.EventType, model string, payload any) {
	if err := eventbus.Publish(context.WithoutCancel(ctx), r.bus, eventbus.NewEvent(typ, payload, model, nil)); err != nil {
		r.logger.Debug("failed to publish event", "event_type", typ, "error", err)
	}
}

func mappingResult(name string, v starlark.Value) (map[string]starlark.Value, error) {
	m, ok := v.(starlark.IterableMapping)
	if !ok {
		return nil, codemodel.NewReturnContractError(name, fmt.Sprintf("stage returned %s, want a mapping", v.Type()))
	}
	out := make(map[string]starlark.Value)
	for _, item := range m.Items() {
		k, ok := starlark.AsString(item[0])
		if !ok {
			return nil, codemodel.NewReturnContractError(name, "return dictionary key not a string")
		}
		out[k] = item[1]
	}
	return out, nil
}

// Metrics returns a copy of the accumulated execution metrics.
func (r *Runner) Metrics() Metrics {
	return r.metrics.Copy()
}

// Package codemodel models callables as serializable code models. A model
// can execute the callable it represents against parameter values, and it
// can write source fragments that perform the same computation, which a
// ScriptAssembler stitches into one script.
package codemodel

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sort"
	"time"

	"go.starlark.net/starlark"

	"github.com/dwhswenson/codemodel"
	"github.com/dwhswenson/codemodel/internal/adapters"
	"github.com/dwhswenson/codemodel/internal/ast"
	"github.com/dwhswenson/codemodel/internal/eventbus"
	"github.com/dwhswenson/codemodel/internal/executor"
	"github.com/dwhswenson/codemodel/internal/fragment"
	"github.com/dwhswenson/codemodel/internal/validators"
)

// Parameter describes one parameter of a modeled callable.
type Parameter = codemodel.Parameter

// Callable is anything a pipeline stage can run.
type Callable = codemodel.Callable

// SectionBuilder writes the statements of one stage for an instance.
// params holds the instance's parameter values rendered as expressions;
// assign is the instance's code name.
type SectionBuilder func(ctx context.Context, params map[string]ast.Expr, assign string) ([]ast.Stmt, error)

// Config holds the execution limits of a model.
type Config struct {
	// Maximum number of Starlark steps of one instantiation; zero is
	// unbounded
	MaxSteps uint64

	// Execution timeout of one instantiation; zero means none
	ExecTimeout time.Duration
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxSteps:    10_000_000,
		ExecTimeout: time.Minute,
	}
}

// CallableModel is the model of one callable: its name, its parameters,
// the module it lives in and the stage pipeline that instantiates it.
type CallableModel struct {
	name   string
	params []codemodel.Parameter
	module *ModuleRef

	setup    map[int]codemodel.Callable
	keys     []int
	pipeline executor.Pipeline
	sections map[int]SectionBuilder

	validators codemodel.ValidatorRegistry
	logger     *slog.Logger
	config     Config
	bus        eventbus.EventBus
	runner     *executor.Runner
}

// Option is a function that configures a CallableModel.
type Option func(*CallableModel)

// WithModule sets the module the callable is found in.
func WithModule(module *ModuleRef) Option {
	return func(m *CallableModel) {
		m.module = module
	}
}

// WithSetup sets the stage pipeline, keyed by stage key.
func WithSetup(setup map[int]codemodel.Callable) Option {
	return func(m *CallableModel) {
		m.setup = maps.Clone(setup)
	}
}

// WithStage sets a pipeline of one terminal stage at DefaultStageKey.
func WithStage(stage codemodel.Callable) Option {
	return func(m *CallableModel) {
		m.setup = map[int]codemodel.Callable{codemodel.DefaultStageKey: stage}
	}
}

// WithValidators sets the registry that converts parameter values.
func WithValidators(registry codemodel.ValidatorRegistry) Option {
	return func(m *CallableModel) {
		m.validators = registry
	}
}

// WithSection overrides the source fragment of a stage.
func WithSection(key int, builder SectionBuilder) Option {
	return func(m *CallableModel) {
		if m.sections == nil {
			m.sections = make(map[int]SectionBuilder)
		}
		m.sections[key] = builder
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *CallableModel) {
		m.logger = logger
	}
}

// WithConfig sets the execution limits.
func WithConfig(config Config) Option {
	return func(m *CallableModel) {
		m.config = config
	}
}

// WithEventBus publishes the pipeline events of the model to bus. Without
// it, events go to the bus carried by the context of each call, if any.
func WithEventBus(bus eventbus.EventBus) Option {
	return func(m *CallableModel) {
		m.bus = bus
	}
}

// DefaultValidators returns the standard validator registry.
func DefaultValidators() codemodel.ValidatorRegistry {
	return validators.Default()
}

// NewCallableModel creates a model. With a setup pipeline, the stages are
// classified here: exactly one stage must not return a mapping, and it
// becomes the terminal stage.
func NewCallableModel(name string, params []codemodel.Parameter, opts ...Option) (*CallableModel, error) {
	m := &CallableModel{
		name:   name,
		params: slices.Clone(params),
		logger: slog.Default(),
		config: DefaultConfig(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.validators == nil {
		m.validators = DefaultValidators()
	}
	if err := codemodel.ValidateParameters(m.params); err != nil {
		return nil, err
	}
	m.runner = executor.NewRunner(
		executor.WithLogger(m.logger),
		executor.WithMaxSteps(m.config.MaxSteps),
		executor.WithExecTimeout(m.config.ExecTimeout),
		executor.WithEventBus(m.bus),
	)
	if len(m.setup) > 0 {
		if err := m.classify(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// classify splits the setup into pre, terminal and post stages.
func (m *CallableModel) classify() error {
	m.keys = slices.Sorted(maps.Keys(m.setup))
	terminal := -1
	candidates := 0
	for i, key := range m.keys {
		mapping, err := isMappingStage(m.setup[key])
		if err != nil {
			return err
		}
		if !mapping {
			candidates++
			terminal = i
		}
	}
	if candidates != 1 {
		return codemodel.NewPipelineAmbiguityError(m.name, candidates)
	}

	stage := func(key int) executor.Stage {
		return executor.Stage{Key: key, Callable: m.setup[key]}
	}
	for _, key := range m.keys[:terminal] {
		m.pipeline.Pre = append(m.pipeline.Pre, stage(key))
	}
	m.pipeline.Terminal = stage(m.keys[terminal])
	for _, key := range m.keys[terminal+1:] {
		m.pipeline.Post = append(m.pipeline.Post, stage(key))
	}
	m.logger.Debug("classified pipeline", "model", m.name,
		"pre", len(m.pipeline.Pre), "terminal", m.keys[terminal], "post", len(m.pipeline.Post))
	return nil
}

// isMappingStage reports whether fn honors the mapping-returning
// contract. Callables without source never do.
func isMappingStage(fn codemodel.Callable) (bool, error) {
	src, ok := fn.(codemodel.SourceCallable)
	if !ok {
		return false, nil
	}
	body, err := fragment.BodyOf(src)
	if err != nil {
		return false, err
	}
	err = fragment.ValidateMappingReturn(body, fragment.GlobalScope)
	switch {
	case err == nil:
		return true, nil
	case codemodel.HasCode(err, codemodel.ErrCodeReturnContract):
		return false, nil
	default:
		return false, err
	}
}

func (m *CallableModel) Name() string { return m.name }

func (m *CallableModel) Parameters() []codemodel.Parameter { return slices.Clone(m.params) }

// Module returns the module the callable lives in, or nil.
func (m *CallableModel) Module() *ModuleRef { return m.module }

// Metrics is a snapshot of the stage calls made by a model's runner.
type Metrics = executor.Metrics

// Metrics returns the stage statistics accumulated over every
// instantiation of the model.
func (m *CallableModel) Metrics() Metrics {
	return m.runner.Metrics()
}

// Setup returns a copy of the stage pipeline; nil for a bare model.
func (m *CallableModel) Setup() map[int]codemodel.Callable { return maps.Clone(m.setup) }

// Stages returns the stage keys of the pre stages, the terminal stage and
// the post stages. A bare model has one terminal stage at DefaultStageKey.
func (m *CallableModel) Stages() (pre []int, terminal int, post []int) {
	if len(m.setup) == 0 {
		return nil, codemodel.DefaultStageKey, nil
	}
	for _, s := range m.pipeline.Pre {
		pre = append(pre, s.Key)
	}
	for _, s := range m.pipeline.Post {
		post = append(post, s.Key)
	}
	return pre, m.pipeline.Terminal.Key, post
}

// bare reports whether the model runs its own native callable directly.
func (m *CallableModel) bare() bool {
	return len(m.setup) == 0 && m.module != nil
}

// Func resolves the native callable the model represents.
func (m *CallableModel) Func(ctx context.Context) (codemodel.Callable, error) {
	if m.module == nil {
		return nil, codemodel.NewConfigurationError(fmt.Sprintf("can't get function %s without a module", m.name), nil)
	}
	return m.module.Lookup(ctx, m.name)
}

// Call runs the native callable, so a model can itself be a stage.
func (m *CallableModel) Call(thread *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	fn, err := m.Func(adapters.ThreadContext(thread))
	if err != nil {
		return nil, err
	}
	return fn.Call(thread, args, kwargs)
}

func (m *CallableModel) typeOf(name string) string {
	for _, p := range m.params {
		if p.Name == name {
			return p.Type
		}
	}
	return codemodel.InstanceType
}

// Instantiate computes the value of inst: its parameter values are
// converted by their validators, then the pipeline runs.
func (m *CallableModel) Instantiate(ctx context.Context, inst *Instance) (starlark.Value, error) {
	pipeline := m.pipeline
	if len(m.setup) == 0 {
		fn, err := m.Func(ctx)
		if err != nil {
			return nil, err
		}
		pipeline = executor.Pipeline{Terminal: executor.Stage{Key: codemodel.DefaultStageKey, Callable: fn}}
	}

	values := make(map[string]starlark.Value, len(inst.params))
	for _, name := range sortedNames(inst.params) {
		raw := inst.params[name]
		if ref, ok := raw.(codemodel.Reference); ok {
			v, err := ref.Value(ctx)
			if err != nil {
				return nil, fmt.Errorf("dependency %s of %s: %w", ref.CodeName(), inst.CodeName(), err)
			}
			values[name] = v
			continue
		}
		v, err := m.validators.Lookup(m.typeOf(name)).ToInstance(ctx, raw)
		if err != nil {
			return nil, codemodel.NewValidationError("instantiation",
				fmt.Sprintf("parameter %s of %s: invalid %s value", name, inst.CodeName(), m.typeOf(name)), err)
		}
		values[name] = v
	}
	return m.runner.Run(ctx, m.name, pipeline, values)
}

// ValidateParameterValues returns the names of the values the validators
// reject, sorted. Instances are always accepted.
func (m *CallableModel) ValidateParameterValues(values map[string]any) []string {
	var rejected []string
	for _, name := range sortedNames(values) {
		raw := values[name]
		if _, ok := raw.(codemodel.Reference); ok {
			continue
		}
		if !m.validators.Lookup(m.typeOf(name)).Validate(raw) {
			rejected = append(rejected, name)
		}
	}
	return rejected
}

// renderParams renders the parameter values of inst as expressions.
// Instances become references to their code name.
func (m *CallableModel) renderParams(inst *Instance) (map[string]ast.Expr, error) {
	subs := make(map[string]ast.Expr, len(inst.params))
	for name, raw := range inst.params {
		if ref, ok := raw.(codemodel.Reference); ok {
			subs[name] = ast.NewName(ref.CodeName())
			continue
		}
		e, err := m.validators.Lookup(m.typeOf(name)).ToSource(raw)
		if err != nil {
			return nil, codemodel.NewValidationError("rendering",
				fmt.Sprintf("parameter %s of %s", name, inst.CodeName()), err)
		}
		subs[name] = e
	}
	return subs, nil
}

// SourceSections writes the source fragment of every stage for inst,
// keyed by stage key. The terminal stage assigns to inst's code name, the
// same identifier references to inst render as.
func (m *CallableModel) SourceSections(ctx context.Context, inst *Instance) (map[int]string, error) {
	subs, err := m.renderParams(inst)
	if err != nil {
		return nil, err
	}
	keys := slices.Clone(m.keys)
	if len(m.setup) == 0 {
		if m.module == nil && len(m.sections) == 0 {
			return nil, codemodel.NewConfigurationError(fmt.Sprintf("model %s has neither a module nor a setup", m.name), nil)
		}
		if m.module != nil {
			keys = []int{codemodel.DefaultStageKey}
		}
	}
	for key := range m.sections {
		if !slices.Contains(keys, key) {
			keys = append(keys, key)
		}
	}
	sort.Ints(keys)

	out := make(map[int]string, len(keys))
	for _, key := range keys {
		stmts, err := m.section(ctx, key, subs, inst.CodeName())
		if err != nil {
			return nil, fmt.Errorf("section %d of %s: %w", key, inst.CodeName(), err)
		}
		out[key] = ast.FormatStmts(stmts)
	}
	return out, nil
}

func (m *CallableModel) section(ctx context.Context, key int, subs map[string]ast.Expr, assign string) ([]ast.Stmt, error) {
	if b, ok := m.sections[key]; ok {
		return b(ctx, subs, assign)
	}
	prefix := ""
	if m.module != nil {
		prefix = m.module.Prefix
	}
	if m.bare() {
		stmt, err := fragment.CallFragment(ctx, m, subs, assign, prefix)
		if err != nil {
			return nil, err
		}
		return []ast.Stmt{stmt}, nil
	}

	fn := m.setup[key]
	src, hasSource := fn.(codemodel.SourceCallable)
	switch {
	case key == m.pipeline.Terminal.Key && hasSource:
		return fragment.TerminalStageFragment(src, subs, assign)
	case key == m.pipeline.Terminal.Key:
		stmt, err := fragment.CallFragment(ctx, fn, subs, assign, prefix)
		if err != nil {
			return nil, err
		}
		return []ast.Stmt{stmt}, nil
	default:
		return fragment.MappingStageFragment(src, subs)
	}
}

// Equal compares name and parameters, and the module header when both
// models belong to a module.
func (m *CallableModel) Equal(o *CallableModel) bool {
	if m == nil || o == nil {
		return m == o
	}
	if m.name != o.name || !codemodel.EqualParameters(m.params, o.params) {
		return false
	}
	if m.module == nil || o.module == nil {
		return true
	}
	return m.module.sameHeader(o.module)
}

func (m *CallableModel) String() string {
	return fmt.Sprintf("CallableModel(%s)", m.name)
}

func sortedNames[V any](values map[string]V) []string {
	return slices.Sorted(maps.Keys(values))
}

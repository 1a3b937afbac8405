package codemodel

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/dwhswenson/codemodel"
	"github.com/dwhswenson/codemodel/internal/dag"
	"github.com/dwhswenson/codemodel/internal/eventbus"
	"github.com/dwhswenson/codemodel/internal/format"
)

// Block is the source fragment of one stage of one instance.
type Block struct {
	StageKey int
	Instance *Instance
	Source   string
}

// BoundaryHook returns text spliced in before cur. prev is nil for the
// first block.
type BoundaryHook func(prev *Block, cur Block) string

// SectionSeparator inserts a blank line whenever the stage key changes.
func SectionSeparator(prev *Block, cur Block) string {
	if prev != nil && prev.StageKey != cur.StageKey {
		return "\n"
	}
	return ""
}

// ScriptAssembler linearizes the fragments of registered instances into
// one script.
type ScriptAssembler struct {
	instances  []*Instance
	tieBreak   dag.TieBreak[*Instance]
	hooks      []BoundaryHook
	formatters []codemodel.FormatPass
	logger     *slog.Logger
}

// AssemblerOption configures a ScriptAssembler.
type AssemblerOption func(*ScriptAssembler)

// WithTieBreak orders instances that are ready at the same time. The
// default keeps registration order.
func WithTieBreak(tieBreak dag.TieBreak[*Instance]) AssemblerOption {
	return func(a *ScriptAssembler) {
		a.tieBreak = tieBreak
	}
}

// WithBoundaryHooks sets the hooks run before each block.
func WithBoundaryHooks(hooks ...BoundaryHook) AssemblerOption {
	return func(a *ScriptAssembler) {
		a.hooks = hooks
	}
}

// WithFormatters sets the passes RenderScript applies. No passes means
// the draft is returned as is.
func WithFormatters(passes ...codemodel.FormatPass) AssemblerOption {
	return func(a *ScriptAssembler) {
		a.formatters = passes
	}
}

// WithAssemblerLogger sets the logger.
func WithAssemblerLogger(logger *slog.Logger) AssemblerOption {
	return func(a *ScriptAssembler) {
		a.logger = logger
	}
}

// NewScriptAssembler creates an assembler using the default format passes.
func NewScriptAssembler(opts ...AssemblerOption) *ScriptAssembler {
	a := &ScriptAssembler{
		formatters: format.Defaults(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Register appends an instance.
func (a *ScriptAssembler) Register(inst *Instance) {
	a.instances = append(a.instances, inst)
}

// Instances returns the registered instances in registration order.
func (a *ScriptAssembler) Instances() []*Instance {
	return slices.Clone(a.instances)
}

// InstanceDependencies returns the instances bound directly as parameter
// values of inst, in parameter order. Containers are not searched.
func (a *ScriptAssembler) InstanceDependencies(inst *Instance) []*Instance {
	var deps []*Instance
	for _, name := range inst.ParameterNames() {
		if dep, ok := inst.params[name].(*Instance); ok {
			deps = append(deps, dep)
		}
	}
	return deps
}

// ComputeInstanceOrder ranks instances so every instance comes after its
// dependencies.
func (a *ScriptAssembler) ComputeInstanceOrder() (map[*Instance]int, error) {
	deps := make(map[*Instance][]*Instance, len(a.instances))
	for _, inst := range a.instances {
		deps[inst] = a.InstanceDependencies(inst)
	}
	g := dag.FromDependencyMap(deps, a.instances, dag.DirectionTo)
	ordered, err := g.Sorted(a.tieBreak)
	if err != nil {
		return nil, err
	}
	rank := make(map[*Instance]int, len(ordered))
	for i, inst := range ordered {
		rank[inst] = i
	}
	return rank, nil
}

// CollectBlocks returns one block per stage of every instance.
func (a *ScriptAssembler) CollectBlocks(ctx context.Context) ([]Block, error) {
	var blocks []Block
	for _, inst := range a.instances {
		sections, err := inst.SourceSections(ctx)
		if err != nil {
			return nil, err
		}
		for _, key := range slices.Sorted(maps.Keys(sections)) {
			blocks = append(blocks, Block{StageKey: key, Instance: inst, Source: sections[key]})
		}
	}
	return blocks, nil
}

// OrderBlocks sorts blocks by stage key, then by instance rank. The sort
// is stable.
func (a *ScriptAssembler) OrderBlocks(blocks []Block, rank map[*Instance]int) []Block {
	out := slices.Clone(blocks)
	slices.SortStableFunc(out, func(x, y Block) int {
		if x.StageKey != y.StageKey {
			return x.StageKey - y.StageKey
		}
		return rank[x.Instance] - rank[y.Instance]
	})
	return out
}

// imports returns one import statement per distinct module of the
// registered instances.
func (a *ScriptAssembler) imports() []string {
	seen := make(map[*ModuleRef]bool)
	var lines []string
	for _, inst := range a.instances {
		mod := inst.model.module
		if mod == nil || seen[mod] {
			continue
		}
		seen[mod] = true
		if mod.ImportSpec != "" {
			lines = append(lines, mod.ImportSpec)
		}
	}
	return lines
}

// DraftScript writes the imports followed by the ordered blocks.
func (a *ScriptAssembler) DraftScript(ctx context.Context) (string, error) {
	blocks, err := a.CollectBlocks(ctx)
	if err != nil {
		return "", err
	}
	rank, err := a.ComputeInstanceOrder()
	if err != nil {
		return "", err
	}
	ordered := a.OrderBlocks(blocks, rank)

	var b strings.Builder
	b.WriteString(strings.Join(a.imports(), "\n"))
	b.WriteString("\n")
	var prev *Block
	for i := range ordered {
		for _, hook := range a.hooks {
			b.WriteString(hook(prev, ordered[i]))
		}
		b.WriteString(ordered[i].Source)
		prev = &ordered[i]
	}
	a.logger.Debug("drafted script", "instances", len(a.instances), "blocks", len(ordered))
	a.publish(ctx, eventbus.EventBlocksCollected, eventbus.ScriptPayload{
		Instances: len(a.instances),
		Blocks:    len(ordered),
		Bytes:     b.Len(),
	})
	return b.String(), nil
}

// RenderScript drafts the script and applies the format passes. A failing
// pass fails the render.
func (a *ScriptAssembler) RenderScript(ctx context.Context) (string, error) {
	draft, err := a.DraftScript(ctx)
	if err == nil {
		var script string
		if script, err = format.Apply(draft, a.formatters); err == nil {
			a.publish(ctx, eventbus.EventScriptRendered, eventbus.ScriptPayload{
				Instances: len(a.instances),
				Bytes:     len(script),
			})
			return script, nil
		}
	}
	a.publish(ctx, eventbus.EventScriptFailed, eventbus.ScriptPayload{Instances: len(a.instances), Err: err})
	return "", err
}

func (a *ScriptAssembler) publish(ctx context.Context, typ eventbus.EventType, payload eventbus.ScriptPayload) {
	if err := eventbus.Publish(ctx, nil, eventbus.NewEvent(typ, payload, "assembler", nil)); err != nil {
		a.logger.Debug("failed to publish event", "event_type", typ, "error", err)
	}
}

package codemodel

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwhswenson/codemodel"
	"github.com/dwhswenson/codemodel/internal/ast"
	"github.com/dwhswenson/codemodel/internal/dag"
	"github.com/dwhswenson/codemodel/internal/eventbus"
)

func existsModel(t *testing.T) *CallableModel {
	t.Helper()
	ref, err := PackageFromModule(context.Background(), "import os.path", []string{"exists"})
	require.NoError(t, err)
	m, ok := ref.Model("exists")
	require.True(t, ok)
	return m
}

func describeModel(t *testing.T, key int) *CallableModel {
	t.Helper()
	m, err := NewCallableModel("describe", []Parameter{codemodel.NewParameter("found", codemodel.InstanceType)},
		WithSetup(map[int]codemodel.Callable{key: script(t, "def describe(found):\n    return str(found)\n")}))
	require.NoError(t, err)
	return m
}

func TestInstance_Names(t *testing.T) {
	m := describeModel(t, codemodel.DefaultStageKey)
	inst := NewInstance("", m, map[string]any{"zeta": 1, "found": true, "alpha": 2})
	assert.True(t, strings.HasPrefix(inst.Name(), "inst_"))
	assert.NotContains(t, inst.Name(), "-")
	assert.Equal(t, inst.Name(), inst.CodeName())
	assert.Equal(t, []string{"found", "alpha", "zeta"}, inst.ParameterNames())

	inst.Rename("renamed")
	assert.Equal(t, "renamed", inst.CodeName())
	v, ok := inst.Parameter("alpha")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
	_, ok = inst.Parameter("missing")
	assert.False(t, ok)
}

func TestInstance_DependencyValue(t *testing.T) {
	ctx := context.Background()
	found := NewInstance("found", existsModel(t), map[string]any{"path": t.TempDir()})
	label := NewInstance("label", describeModel(t, codemodel.DefaultStageKey), map[string]any{"found": found})

	v, err := label.Value(ctx)
	require.NoError(t, err)
	assert.Equal(t, `"True"`, v.String())

	again, err := label.Value(ctx)
	require.NoError(t, err)
	assert.Equal(t, v, again)
}

func TestAssembler_DraftScript(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	found := NewInstance("found", existsModel(t), map[string]any{"path": dir})
	label := NewInstance("label", describeModel(t, 60), map[string]any{"found": found})

	a := NewScriptAssembler(WithFormatters(), WithBoundaryHooks(SectionSeparator))
	a.Register(label)
	a.Register(found)

	assert.Equal(t, []*Instance{found}, a.InstanceDependencies(label))
	assert.Empty(t, a.InstanceDependencies(found))

	rank, err := a.ComputeInstanceOrder()
	require.NoError(t, err)
	assert.Equal(t, map[*Instance]int{found: 0, label: 1}, rank)

	draft, err := a.DraftScript(ctx)
	require.NoError(t, err)
	want := "import os.path\n" +
		"found = os.path.exists(path=" + ast.Quote(dir) + ")\n" +
		"\n" +
		"label = str(found)\n"
	assert.Equal(t, want, draft)

	rendered, err := a.RenderScript(ctx)
	require.NoError(t, err)
	assert.Equal(t, draft, rendered)
}

func TestAssembler_RenderScriptFormats(t *testing.T) {
	ctx := context.Background()
	found := NewInstance("found", existsModel(t), map[string]any{"path": "/"})
	label := NewInstance("label", describeModel(t, 60), map[string]any{"found": found})

	a := NewScriptAssembler()
	a.Register(found)
	a.Register(label)
	rendered, err := a.RenderScript(ctx)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(rendered, "import os.path\n\n"))
	assert.Less(t, strings.Index(rendered, "found ="), strings.Index(rendered, "label ="))
}

func TestAssembler_OrderBlocks(t *testing.T) {
	a := NewScriptAssembler()
	x := &Instance{name: "x"}
	y := &Instance{name: "y"}
	blocks := []Block{
		{StageKey: 60, Instance: x, Source: "x60"},
		{StageKey: 50, Instance: y, Source: "y50"},
		{StageKey: 50, Instance: x, Source: "x50"},
		{StageKey: 50, Instance: x, Source: "x50b"},
	}
	ordered := a.OrderBlocks(blocks, map[*Instance]int{x: 0, y: 1})
	var got []string
	for _, b := range ordered {
		got = append(got, b.Source)
	}
	assert.Equal(t, []string{"x50", "x50b", "y50", "x60"}, got)
}

func TestAssembler_TieBreak(t *testing.T) {
	m := describeModel(t, codemodel.DefaultStageKey)
	b := NewInstance("b", m, nil)
	c := NewInstance("c", m, nil)
	first := NewInstance("a", m, nil)

	byName := dag.SortedTieBreak(func(x, y *Instance) int { return strings.Compare(x.Name(), y.Name()) })
	a := NewScriptAssembler(WithTieBreak(byName))
	a.Register(c)
	a.Register(b)
	a.Register(first)
	rank, err := a.ComputeInstanceOrder()
	require.NoError(t, err)
	assert.Equal(t, map[*Instance]int{first: 0, b: 1, c: 2}, rank)
}

func TestAssembler_Cycle(t *testing.T) {
	m := describeModel(t, codemodel.DefaultStageKey)
	x := NewInstance("x", m, map[string]any{})
	y := NewInstance("y", m, map[string]any{"found": x})
	x.params["found"] = y

	a := NewScriptAssembler()
	a.Register(x)
	a.Register(y)
	_, err := a.ComputeInstanceOrder()
	assert.ErrorIs(t, err, codemodel.ErrCycleDetected)
	_, err = a.DraftScript(context.Background())
	assert.ErrorIs(t, err, codemodel.ErrCycleDetected)
}

func TestAssembler_PublishesEvents(t *testing.T) {
	bus := eventbus.NewChannelEventBus()
	var script []eventbus.EventType
	var stages []string
	_, err := bus.Subscribe([]eventbus.EventType{eventbus.EventBlocksCollected, eventbus.EventScriptRendered},
		func(_ context.Context, e eventbus.Event) error {
			script = append(script, e.Type())
			return nil
		})
	require.NoError(t, err)
	_, err = bus.Subscribe([]eventbus.EventType{eventbus.EventStageCompleted},
		func(_ context.Context, e eventbus.Event) error {
			stages = append(stages, e.Payload().(eventbus.StagePayload).Callable)
			return nil
		})
	require.NoError(t, err)

	ctx := eventbus.WithBus(context.Background(), bus)
	found := NewInstance("found", existsModel(t), map[string]any{"path": t.TempDir()})
	a := NewScriptAssembler()
	a.Register(found)
	_, err = a.RenderScript(ctx)
	require.NoError(t, err)
	_, err = found.Value(ctx)
	require.NoError(t, err)
	require.NoError(t, bus.Close())

	assert.Equal(t, []eventbus.EventType{eventbus.EventBlocksCollected, eventbus.EventScriptRendered}, script)
	assert.Equal(t, []string{"exists"}, stages)
}

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/dwhswenson/codemodel/internal/ctxlog"
	"github.com/dwhswenson/codemodel/internal/docstring"
	"github.com/dwhswenson/codemodel/internal/eventbus"
	"github.com/dwhswenson/codemodel/internal/modelfile"
	"github.com/dwhswenson/codemodel/internal/recipe"
	"github.com/dwhswenson/codemodel/internal/tools"
	cm "github.com/dwhswenson/codemodel/pkg/codemodel"
)

func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() { printCommandHelp(out, name) }
	return fs
}

// loadPackages reads and validates the package files.
func loadPackages(ctx context.Context, models string) ([]modelfile.Package, error) {
	paths := splitList(models)
	if len(paths) == 0 {
		return nil, fmt.Errorf("no package files: pass -models or set %s", envModels)
	}
	packages, err := modelfile.LoadAll(ctx, paths)
	if err != nil {
		return nil, err
	}
	if err := modelfile.Validate(packages); err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Debug("loaded package files", "files", len(paths), "packages", len(packages))
	return packages, nil
}

func loadModules(ctx context.Context, models string) ([]*cm.ModuleRef, error) {
	packages, err := loadPackages(ctx, models)
	if err != nil {
		return nil, err
	}
	return cm.FromPackages(packages)
}

func runDescribe(ctx context.Context, cfg *config, out io.Writer, args []string) error {
	fs := newFlagSet("describe", out)
	models := modelsFlag(fs, cfg)
	if err := fs.Parse(args); err != nil {
		return err
	}
	refs, err := loadModules(ctx, *models)
	if err != nil {
		return err
	}
	for _, ref := range refs {
		fmt.Fprintf(out, "%s", ref.Name)
		if ref.ImportSpec != "" {
			fmt.Fprintf(out, " (%s)", ref.ImportSpec)
		}
		fmt.Fprintln(out)
		for _, m := range ref.Models {
			params := make([]string, 0, len(m.Parameters()))
			for _, p := range m.Parameters() {
				params = append(params, p.String())
			}
			fmt.Fprintf(out, "  %s(%s)\n", m.Name(), strings.Join(params, ", "))
		}
	}
	return nil
}

func runValidate(ctx context.Context, cfg *config, out io.Writer, args []string) error {
	fs := newFlagSet("validate", out)
	models := modelsFlag(fs, cfg)
	if err := fs.Parse(args); err != nil {
		return err
	}
	packages, err := loadPackages(ctx, *models)
	if err != nil {
		return err
	}
	callables := 0
	for _, p := range packages {
		callables += len(p.Callables)
	}
	fmt.Fprintf(out, "ok: %d packages, %d callables\n", len(packages), callables)
	return nil
}

// withTrace attaches an event bus that logs every pipeline and script
// event at info level. The returned function flushes and closes it.
func withTrace(ctx context.Context, enabled bool) (context.Context, func()) {
	if !enabled {
		return ctx, func() {}
	}
	logger := ctxlog.FromContext(ctx)
	bus := eventbus.NewChannelEventBus(eventbus.WithLogger(logger), eventbus.WithRetries(0, 0))
	_, err := bus.SubscribeAll(func(_ context.Context, e eventbus.Event) error {
		logger.Info("event", "type", e.Type(), "source", e.Source(), "payload", fmt.Sprintf("%+v", e.Payload()))
		return nil
	})
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
		bus.Close()
		return ctx, func() {}
	}
	return eventbus.WithBus(ctx, bus), func() { bus.Close() }
}

// buildRecipe loads the package files and the recipe and builds its
// instances. Each build gets its own correlation id in the logs.
func buildRecipe(ctx context.Context, models, recipePath string) (context.Context, *recipe.Build, error) {
	if recipePath == "" {
		return ctx, nil, fmt.Errorf("-recipe is required")
	}
	logger := ctxlog.FromContext(ctx).With("build_id", uuid.NewString())
	ctx = ctxlog.WithLogger(ctx, logger)

	refs, err := loadModules(ctx, models)
	if err != nil {
		return ctx, nil, err
	}
	r, err := recipe.Load(recipePath)
	if err != nil {
		return ctx, nil, err
	}
	b, err := r.BuildWith(ctx, refs)
	if err != nil {
		return ctx, nil, err
	}
	logger.Info("built recipe", "recipe", recipePath, "instances", len(b.Instances))
	return ctx, b, nil
}

func runRender(ctx context.Context, cfg *config, out io.Writer, args []string) error {
	fs := newFlagSet("render", out)
	models := modelsFlag(fs, cfg)
	recipePath := fs.String("recipe", "", "HCL recipe file.")
	output := fs.String("o", "", "Write the script to this file instead of stdout.")
	trace := fs.Bool("trace", false, "Log script and pipeline events.")
	if err := fs.Parse(args); err != nil {
		return err
	}
	ctx, done := withTrace(ctx, *trace)
	defer done()
	ctx, b, err := buildRecipe(ctx, *models, *recipePath)
	if err != nil {
		return err
	}
	script, err := b.Assembler.RenderScript(ctx)
	if err != nil {
		return err
	}
	if *output == "" {
		_, err = io.WriteString(out, script)
		return err
	}
	if err := os.WriteFile(*output, []byte(script), 0o644); err != nil {
		return fmt.Errorf("failed to write script: %w", err)
	}
	ctxlog.FromContext(ctx).Info("wrote script", "path", *output)
	return nil
}

func runRun(ctx context.Context, cfg *config, out io.Writer, args []string) error {
	fs := newFlagSet("run", out)
	models := modelsFlag(fs, cfg)
	recipePath := fs.String("recipe", "", "HCL recipe file.")
	name := fs.String("instance", "", "Name of the instance to compute.")
	trace := fs.Bool("trace", false, "Log pipeline events.")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" {
		return fmt.Errorf("-instance is required")
	}
	ctx, done := withTrace(ctx, *trace)
	defer done()
	ctx, b, err := buildRecipe(ctx, *models, *recipePath)
	if err != nil {
		return err
	}
	inst, ok := b.Instance(*name)
	if !ok {
		return fmt.Errorf("recipe has no instance %q", *name)
	}
	v, err := inst.Value(ctx)
	if *trace {
		logMetrics(ctx, b)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(out, v.String())
	return nil
}

// logMetrics logs the stage statistics of every model the build ran.
func logMetrics(ctx context.Context, b *recipe.Build) {
	logger := ctxlog.FromContext(ctx)
	seen := make(map[*cm.CallableModel]bool)
	for _, inst := range b.Instances {
		m := inst.Model()
		if seen[m] {
			continue
		}
		seen[m] = true
		metrics := m.Metrics()
		if metrics.StagesExecuted == 0 {
			continue
		}
		logger.Info("stage metrics",
			"model", m.Name(),
			"stages_executed", metrics.StagesExecuted,
			"stages_failed", metrics.StagesFailed,
			"total_duration", metrics.TotalDuration,
			"longest_stage", metrics.LongestStageTime)
	}
}

func runGenerate(ctx context.Context, _ *config, out io.Writer, args []string) error {
	fs := newFlagSet("generate", out)
	importSpec := fs.String("import", "", "Import statement bringing in the module.")
	name := fs.String("name", "", "Package name; defaults to the module path.")
	callables := fs.String("callables", "", "Comma separated callables; defaults to all.")
	output := fs.String("o", "", "Write the package file here instead of stdout.")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *importSpec == "" {
		return fmt.Errorf("-import is required")
	}
	opts := []cm.GenerateOption{cm.WithDocExtractor(docstring.Numpydoc{})}
	if *name != "" {
		opts = append(opts, cm.WithName(*name))
	}
	ref, err := cm.PackageFromModule(ctx, *importSpec, splitList(*callables), opts...)
	if err != nil {
		return err
	}
	packages := []modelfile.Package{ref.Package()}
	if *output == "" {
		return modelfile.JSONLoader{}.Save(out, packages)
	}
	if err := modelfile.Save(*output, packages); err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Info("wrote package file", "path", *output, "callables", len(ref.Models))
	return nil
}

func runModules(ctx context.Context, _ *config, out io.Writer, args []string) error {
	fs := newFlagSet("modules", out)
	if err := fs.Parse(args); err != nil {
		return err
	}
	registry := tools.Default()
	for _, path := range registry.Paths() {
		mod, err := registry.Resolve(ctx, path)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s: %s\n", path, strings.Join(mod.Members(), ", "))
	}
	return nil
}

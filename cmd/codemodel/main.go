// Command codemodel inspects package files, renders recipes into scripts
// and runs recipe instances.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/dwhswenson/codemodel/internal/ctxlog"
)

// command describes a CLI subcommand.
type command struct {
	name  string
	short string
	usage string
	long  string
	run   func(ctx context.Context, cfg *config, out io.Writer, args []string) error
}

// commands is filled in init because the help printers that the
// subcommands reference read it.
var commands []command

func init() {
	commands = commandTable()
}

func commandTable() []command {
	return []command{
		{
			name:  "describe",
			short: "List the packages and callables of package files",
			usage: "codemodel describe [-models FILES]",
			long: `Print every package of the package files with the signature of each
callable model.
`,
			run: runDescribe,
		},
		{
			name:  "validate",
			short: "Check package files",
			usage: "codemodel validate [-models FILES]",
			long: `Check package files for duplicate packages, duplicate callables,
unknown parameter kinds and repeated variadic parameters.
`,
			run: runValidate,
		},
		{
			name:  "render",
			short: "Render a recipe into a script",
			usage: "codemodel render [-models FILES] -recipe FILE [-o OUT] [-trace]",
			long: `Build the instances of an HCL recipe from the package files and print
the assembled script, or write it to OUT. With -trace, script and
pipeline events are logged at info level.
`,
			run: runRender,
		},
		{
			name:  "run",
			short: "Execute one instance of a recipe",
			usage: "codemodel run [-models FILES] -recipe FILE -instance NAME [-trace]",
			long: `Build the instances of an HCL recipe, compute the named instance and
its dependencies, and print its value. With -trace, the events of each
pipeline stage are logged at info level.
`,
			run: runRun,
		},
		{
			name:  "generate",
			short: "Write the package file of a built-in module",
			usage: "codemodel generate -import SPEC [-name NAME] [-callables LIST] [-o OUT]",
			long: `Describe the callables of a built-in module brought in by the import
statement SPEC (e.g. "import os.path" or "from os import path as p").
The package is written as JSON to stdout, or to OUT in the format its
extension names.
`,
			run: runGenerate,
		},
		{
			name:  "modules",
			short: "List the built-in modules",
			usage: "codemodel modules",
			long: `List the modules that models can be resolved against, with their
callables.
`,
			run: runModules,
		},
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "codemodel - code models and script synthesis\n\n")
	fmt.Fprintf(w, "Usage:\n  codemodel [-log-level LEVEL] [-log-format FORMAT] <command> [arguments]\n\n")
	fmt.Fprintf(w, "Commands:\n")
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %-10s %s\n", cmd.name, cmd.short)
	}
	fmt.Fprintf(w, "\nRun 'codemodel help <command>' for details on a specific command.\n")
}

func printCommandHelp(w io.Writer, name string) {
	for _, cmd := range commands {
		if cmd.name == name {
			fmt.Fprintf(w, "Usage: %s\n\n%s", cmd.usage, cmd.long)
			return
		}
	}
	fmt.Fprintf(w, "codemodel: unknown command %q\n\nRun 'codemodel help' for usage.\n", name)
}

func dispatch(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, rest, err := parseGlobal(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if len(rest) == 0 {
		printUsage(stdout)
		return nil
	}
	if rest[0] == "help" {
		if len(rest) >= 2 {
			printCommandHelp(stdout, rest[1])
		} else {
			printUsage(stdout)
		}
		return nil
	}
	for _, cmd := range commands {
		if cmd.name == rest[0] {
			logger := newLogger(cfg, stderr).With("command", cmd.name)
			err := cmd.run(ctxlog.WithLogger(ctx, logger), cfg, stdout, rest[1:])
			if errors.Is(err, flag.ErrHelp) {
				return nil
			}
			return err
		}
	}
	return fmt.Errorf("unknown command %q\n\nRun 'codemodel help' for usage.", rest[0])
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := dispatch(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "codemodel: %v\n", err)
		stop()
		os.Exit(1)
	}
}

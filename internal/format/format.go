// Package format holds the cosmetic passes applied to drafted scripts.
package format

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dwhswenson/codemodel"
)

// PassFunc is a source-to-source transformation.
type PassFunc func(src string) (string, error)

type namedPass struct {
	name string
	fn   PassFunc
}

func (p namedPass) Name() string                      { return p.name }
func (p namedPass) Format(src string) (string, error) { return p.fn(src) }

// Named wraps fn as a codemodel.FormatPass.
func Named(name string, fn PassFunc) codemodel.FormatPass {
	return namedPass{name: name, fn: fn}
}

var builtin = map[string]func() codemodel.FormatPass{
	"isort": func() codemodel.FormatPass { return SortImports{} },
	"style": func() codemodel.FormatPass { return Style{} },
}

// Defaults returns the passes used when none are configured.
func Defaults() []codemodel.FormatPass {
	return []codemodel.FormatPass{Style{}, SortImports{}}
}

// ByName returns the built-in pass with the given name.
func ByName(name string) (codemodel.FormatPass, error) {
	mk, ok := builtin[name]
	if !ok {
		return nil, codemodel.NewConfigurationError(
			fmt.Sprintf("unknown formatter %q (available: %s)", name, strings.Join(Names(), ", ")), nil)
	}
	return mk(), nil
}

// Names lists the built-in passes.
func Names() []string {
	names := make([]string, 0, len(builtin))
	for n := range builtin {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Apply runs the passes in order. The first failure stops the run.
func Apply(src string, passes []codemodel.FormatPass) (string, error) {
	for _, p := range passes {
		out, err := p.Format(src)
		if err != nil {
			return "", codemodel.NewFormatError(p.Name(), err)
		}
		src = out
	}
	return src, nil
}

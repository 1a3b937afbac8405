// Package fragment classifies callable signatures and rewrites callable
// bodies into fragments that can be spliced into a generated script.
package fragment

import (
	"context"
	"fmt"
	"slices"

	"github.com/dwhswenson/codemodel"
	"github.com/dwhswenson/codemodel/internal/ctxlog"
)

// Classification groups parameter names by how they are passed in a call.
type Classification struct {
	Positional    []string
	VarPositional string
	Keyword       []string
	VarKeyword    string
}

// Classify sorts parameters into positional and keyword names.
// POSITIONAL_OR_KEYWORD parameters are passed by keyword unless the
// signature also has a VAR_POSITIONAL parameter, in which case they must be
// passed by position so the variadic slot can be filled.
func Classify(params []codemodel.Parameter) (Classification, error) {
	var c Classification
	var varPos, varKw []string
	for _, p := range params {
		switch p.Kind {
		case codemodel.VarPositional:
			varPos = append(varPos, p.Name)
		case codemodel.VarKeyword:
			varKw = append(varKw, p.Name)
		}
	}
	if len(varPos) > 1 {
		return c, codemodel.NewMultiplicityError(codemodel.VarPositional, varPos)
	}
	if len(varKw) > 1 {
		return c, codemodel.NewMultiplicityError(codemodel.VarKeyword, varKw)
	}
	if len(varPos) == 1 {
		c.VarPositional = varPos[0]
	}
	if len(varKw) == 1 {
		c.VarKeyword = varKw[0]
	}

	for _, p := range params {
		switch p.Kind {
		case codemodel.PositionalOnly:
			c.Positional = append(c.Positional, p.Name)
		case codemodel.PositionalOrKeyword:
			if c.VarPositional != "" {
				c.Positional = append(c.Positional, p.Name)
			} else {
				c.Keyword = append(c.Keyword, p.Name)
			}
		case codemodel.KeywordOnly:
			c.Keyword = append(c.Keyword, p.Name)
		}
	}
	return c, nil
}

// KeywordArg is one keyword argument. An empty Name marks a value that is
// passed through unexpanded as **Value.
type KeywordArg[V any] struct {
	Name  string
	Value V
}

// Arguments are the assembled arguments of a call. A positional entry may
// itself be an unexpanded *value when the splatter could not expand it;
// Splats counts those.
type Arguments[V any] struct {
	Positional []V
	Keywords   []KeywordArg[V]
	Splats     int
}

// Splatter expands variadic values. Execution uses runtime values; source
// synthesis uses expression nodes.
type Splatter[V any] interface {
	// SplatPositional expands the VAR_POSITIONAL value. When the value
	// cannot be expanded it returns a single element standing for *value
	// and expanded false.
	SplatPositional(v V) (elems []V, expanded bool, err error)

	// SplatKeyword expands the VAR_KEYWORD value into keyword arguments.
	// An unexpandable value comes back as one KeywordArg with an empty name.
	SplatKeyword(v V) ([]KeywordArg[V], error)
}

// BuildArguments assembles call arguments from values, following the
// classification of params. Names absent from values are skipped; no
// defaults are invented. The variadic keyword mapping is merged after the
// explicit keywords, a same-named entry replacing the explicit value. The
// result is checked against the signature with Bind.
func BuildArguments[V any](ctx context.Context, callable string, params []codemodel.Parameter, values map[string]V, splat Splatter[V]) (Arguments[V], error) {
	var args Arguments[V]
	c, err := Classify(params)
	if err != nil {
		return args, err
	}

	for _, name := range c.Positional {
		if v, ok := values[name]; ok {
			args.Positional = append(args.Positional, v)
		}
	}
	if c.VarPositional != "" {
		if v, ok := values[c.VarPositional]; ok {
			elems, expanded, err := splat.SplatPositional(v)
			if err != nil {
				return args, codemodel.NewArgumentBindingError(callable, fmt.Sprintf("cannot expand *%s", c.VarPositional), err)
			}
			if !expanded {
				args.Splats++
			}
			args.Positional = append(args.Positional, elems...)
		}
	}

	for _, name := range c.Keyword {
		if v, ok := values[name]; ok {
			args.Keywords = append(args.Keywords, KeywordArg[V]{Name: name, Value: v})
		}
	}
	if c.VarKeyword != "" {
		if v, ok := values[c.VarKeyword]; ok {
			extra, err := splat.SplatKeyword(v)
			if err != nil {
				return args, codemodel.NewArgumentBindingError(callable, fmt.Sprintf("cannot expand **%s", c.VarKeyword), err)
			}
			for _, kw := range extra {
				if kw.Name == "" {
					args.Splats++
					args.Keywords = append(args.Keywords, kw)
					continue
				}
				idx := slices.IndexFunc(args.Keywords, func(k KeywordArg[V]) bool { return k.Name == kw.Name })
				if idx >= 0 {
					ctxlog.FromContext(ctx).Debug("variadic keyword overrides explicit argument",
						"callable", callable, "keyword", kw.Name)
					args.Keywords[idx] = kw
					continue
				}
				args.Keywords = append(args.Keywords, kw)
			}
		}
	}

	if err := Bind(callable, params, values, args); err != nil {
		return args, err
	}
	return args, nil
}

// Bind checks that assembled arguments fit the signature: no positional
// parameter is skipped, there are not too many positional arguments, every
// keyword is accepted, and every required parameter is supplied. Checks
// that depend on the contents of an unexpanded splat are skipped.
func Bind[V any](callable string, params []codemodel.Parameter, values map[string]V, args Arguments[V]) error {
	c, err := Classify(params)
	if err != nil {
		return err
	}

	gap := ""
	explicit := 0
	for _, name := range c.Positional {
		_, ok := values[name]
		switch {
		case !ok && gap == "":
			gap = name
		case ok && gap != "":
			return codemodel.NewArgumentBindingError(callable,
				fmt.Sprintf("positional parameter %q is missing but %q is given", gap, name), nil)
		case ok:
			explicit++
		}
	}
	if c.VarPositional == "" && len(args.Positional) > len(c.Positional) {
		return codemodel.NewArgumentBindingError(callable,
			fmt.Sprintf("takes %d positional arguments but %d were given", len(c.Positional), len(args.Positional)), nil)
	}
	if gap != "" && len(args.Positional) > explicit {
		return codemodel.NewArgumentBindingError(callable,
			fmt.Sprintf("positional parameter %q is missing before *%s", gap, c.VarPositional), nil)
	}

	accepted := make(map[string]bool, len(c.Keyword))
	for _, name := range c.Keyword {
		accepted[name] = true
	}
	for _, kw := range args.Keywords {
		if kw.Name == "" || accepted[kw.Name] {
			continue
		}
		if slices.Contains(c.Positional, kw.Name) {
			return codemodel.NewArgumentBindingError(callable,
				fmt.Sprintf("got multiple values for argument %q", kw.Name), nil)
		}
		if c.VarKeyword == "" {
			return codemodel.NewArgumentBindingError(callable,
				fmt.Sprintf("got an unexpected keyword argument %q", kw.Name), nil)
		}
	}

	if args.Splats > 0 {
		return nil
	}
	supplied := make(map[string]bool, len(args.Keywords))
	for _, kw := range args.Keywords {
		supplied[kw.Name] = true
	}
	var missing []string
	for _, p := range params {
		if !p.Required() {
			continue
		}
		if _, ok := values[p.Name]; ok || supplied[p.Name] {
			continue
		}
		missing = append(missing, p.Name)
	}
	if len(missing) > 0 {
		return codemodel.NewArgumentBindingError(callable,
			fmt.Sprintf("missing required arguments: %v", missing), nil)
	}
	return nil
}

// UnusedParameters returns the entries of values whose key is not a
// declared parameter name.
func UnusedParameters[V any](params []codemodel.Parameter, values map[string]V) map[string]V {
	declared := make(map[string]bool, len(params))
	for _, p := range params {
		declared[p.Name] = true
	}
	unused := make(map[string]V)
	for k, v := range values {
		if !declared[k] {
			unused[k] = v
		}
	}
	return unused
}

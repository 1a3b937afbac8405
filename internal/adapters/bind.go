package adapters

import (
	"fmt"
	"slices"

	"go.starlark.net/starlark"

	"github.com/dwhswenson/codemodel"
)

// BindArgs matches call arguments to params the way a def binds them.
// Every declared parameter that is supplied or has a default gets an
// entry; a variadic positional parameter is always bound to a tuple and a
// variadic keyword parameter to a dict.
func BindArgs(callable string, params []codemodel.Parameter, args starlark.Tuple, kwargs []starlark.Tuple) (map[string]starlark.Value, error) {
	if err := codemodel.ValidateParameters(params); err != nil {
		return nil, err
	}
	bound := make(map[string]starlark.Value, len(params))
	fail := func(format string, a ...any) error {
		return codemodel.NewArgumentBindingError(callable, fmt.Sprintf(format, a...), nil)
	}

	var varPos, varKw string
	rest := args
	for _, p := range params {
		switch p.Kind {
		case codemodel.PositionalOnly, codemodel.PositionalOrKeyword:
			if len(rest) > 0 {
				bound[p.Name] = rest[0]
				rest = rest[1:]
			}
		case codemodel.VarPositional:
			varPos = p.Name
		case codemodel.VarKeyword:
			varKw = p.Name
		}
	}
	if varPos != "" {
		bound[varPos] = slices.Clone(rest)
	} else if len(rest) > 0 {
		return nil, fail("takes %d positional arguments but %d were given", len(args)-len(rest), len(args))
	}

	var extra *starlark.Dict
	if varKw != "" {
		extra = starlark.NewDict(len(kwargs))
		bound[varKw] = extra
	}
	for _, kv := range kwargs {
		name, _ := starlark.AsString(kv[0])
		idx := slices.IndexFunc(params, func(p codemodel.Parameter) bool { return p.Name == name })
		if idx >= 0 && (params[idx].Kind == codemodel.PositionalOrKeyword || params[idx].Kind == codemodel.KeywordOnly) {
			if _, dup := bound[name]; dup {
				return nil, fail("got multiple values for argument %q", name)
			}
			bound[name] = kv[1]
			continue
		}
		if extra == nil {
			return nil, fail("got an unexpected keyword argument %q", name)
		}
		if err := extra.SetKey(kv[0], kv[1]); err != nil {
			return nil, err
		}
	}

	var missing []string
	for _, p := range params {
		if _, ok := bound[p.Name]; ok || p.Kind.IsVariadic() {
			continue
		}
		if !p.HasDefault {
			missing = append(missing, p.Name)
			continue
		}
		v, err := codemodel.ToStarlark(p.Default)
		if err != nil {
			return nil, codemodel.NewArgumentBindingError(callable, fmt.Sprintf("default of %q", p.Name), err)
		}
		bound[p.Name] = v
	}
	if len(missing) > 0 {
		return nil, fail("missing required arguments: %v", missing)
	}
	return bound, nil
}

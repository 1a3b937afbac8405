// Package tools provides the built-in native modules and the registry
// that resolves module paths for callable models.
package tools

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"go.starlark.net/starlark"

	"github.com/dwhswenson/codemodel"
	"github.com/dwhswenson/codemodel/internal/adapters"
)

// maxPathLength bounds path arguments of the os.path functions.
const maxPathLength = 4096

// Builtins returns the built-in modules: os.path, math and string.
func Builtins() []*Module {
	return []*Module{OSPath(), Math(), String()}
}

func pathParam(name, desc string) codemodel.Parameter {
	return codemodel.NewParameter(name, "str", codemodel.WithDescription(desc))
}

// OSPath returns the os.path module. Paths use forward slashes.
func OSPath() *Module {
	return NewModule("os.path", "Common pathname manipulations.",
		adapters.NewNativeFunc("exists", PathExists,
			adapters.WithDescription("Test whether a path exists."),
			adapters.WithParameters(pathParam("path", "path to check")),
			adapters.WithReturns("bool"),
			adapters.WithValidator(validatePathInput("path")),
		),
		adapters.NewNativeFunc("isfile", PathIsFile,
			adapters.WithDescription("Test whether a path is a regular file."),
			adapters.WithParameters(pathParam("path", "path to check")),
			adapters.WithReturns("bool"),
			adapters.WithValidator(validatePathInput("path")),
		),
		adapters.NewNativeFunc("isdir", PathIsDir,
			adapters.WithDescription("Test whether a path is a directory."),
			adapters.WithParameters(pathParam("path", "path to check")),
			adapters.WithReturns("bool"),
			adapters.WithValidator(validatePathInput("path")),
		),
		adapters.NewNativeFunc("abspath", PathAbs,
			adapters.WithDescription("Return an absolute version of a path."),
			adapters.WithParameters(pathParam("path", "path to make absolute")),
			adapters.WithReturns("str"),
			adapters.WithValidator(validatePathInput("path")),
		),
		adapters.NewNativeFunc("join", PathJoin,
			adapters.WithDescription("Join path components. An absolute component discards everything before it."),
			adapters.WithParameters(
				pathParam("a", "first component"),
				codemodel.NewParameter("p", "str", codemodel.WithKind(codemodel.VarPositional),
					codemodel.WithDescription("further components")),
			),
			adapters.WithReturns("str"),
		),
		adapters.NewNativeFunc("basename", PathBase,
			adapters.WithDescription("Return the final component of a path."),
			adapters.WithParameters(pathParam("p", "path to split")),
			adapters.WithReturns("str"),
		),
		adapters.NewNativeFunc("dirname", PathDir,
			adapters.WithDescription("Return the directory component of a path."),
			adapters.WithParameters(pathParam("p", "path to split")),
			adapters.WithReturns("str"),
		),
		adapters.NewNativeFunc("splitext", PathSplitExt,
			adapters.WithDescription("Split the extension from a path."),
			adapters.WithParameters(pathParam("p", "path to split")),
			adapters.WithReturns("tuple"),
		),
	)
}

// Math returns the math module.
func Math() *Module {
	x := codemodel.NewParameter("x", "float")
	return NewModule("math", "Mathematical functions.",
		adapters.NewNativeFunc("sqrt", unaryMath(math.Sqrt),
			adapters.WithDescription("Return the square root of x."),
			adapters.WithParameters(x),
			adapters.WithReturns("float"),
			adapters.WithValidator(validateNonNegative("x")),
		),
		adapters.NewNativeFunc("fabs", unaryMath(math.Abs),
			adapters.WithDescription("Return the absolute value of x."),
			adapters.WithParameters(x),
			adapters.WithReturns("float"),
		),
		adapters.NewNativeFunc("exp", unaryMath(math.Exp),
			adapters.WithDescription("Return e raised to the power of x."),
			adapters.WithParameters(x),
			adapters.WithReturns("float"),
		),
		adapters.NewNativeFunc("floor", roundingMath(math.Floor),
			adapters.WithDescription("Return the floor of x as an integer."),
			adapters.WithParameters(x),
			adapters.WithReturns("int"),
		),
		adapters.NewNativeFunc("ceil", roundingMath(math.Ceil),
			adapters.WithDescription("Return the ceiling of x as an integer."),
			adapters.WithParameters(x),
			adapters.WithReturns("int"),
		),
		adapters.NewNativeFunc("pow", MathPow,
			adapters.WithDescription("Return x raised to the power y."),
			adapters.WithParameters(x, codemodel.NewParameter("y", "float")),
			adapters.WithReturns("float"),
		),
		adapters.NewNativeFunc("hypot", MathHypot,
			adapters.WithDescription("Return the Euclidean norm of the coordinates."),
			adapters.WithParameters(codemodel.NewParameter("coordinates", "float", codemodel.WithKind(codemodel.VarPositional))),
			adapters.WithReturns("float"),
		),
		adapters.NewNativeFunc("log", MathLog,
			adapters.WithDescription("Return the logarithm of x to the given base, natural by default."),
			adapters.WithParameters(x, codemodel.NewParameter("base", "float", codemodel.WithDefault(math.E))),
			adapters.WithReturns("float"),
			adapters.WithValidator(validatePositive("x")),
		),
	)
}

// String returns the string module.
func String() *Module {
	return NewModule("string", "Common string operations.",
		adapters.NewNativeFunc("capwords", Capwords,
			adapters.WithDescription("Capitalize the words of s, split by sep or by runs of whitespace."),
			adapters.WithParameters(
				codemodel.NewParameter("s", "str"),
				codemodel.NewParameter("sep", "str", codemodel.WithDefault(nil)),
			),
			adapters.WithReturns("str"),
		),
	)
}

// PathExists reports whether the path names an existing file.
func PathExists(_ context.Context, args map[string]starlark.Value) (starlark.Value, error) {
	p, err := stringArg(args, "path")
	if err != nil {
		return nil, err
	}
	_, err = os.Stat(p)
	return starlark.Bool(err == nil), nil
}

func PathIsFile(_ context.Context, args map[string]starlark.Value) (starlark.Value, error) {
	p, err := stringArg(args, "path")
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(p)
	return starlark.Bool(err == nil && info.Mode().IsRegular()), nil
}

func PathIsDir(_ context.Context, args map[string]starlark.Value) (starlark.Value, error) {
	p, err := stringArg(args, "path")
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(p)
	return starlark.Bool(err == nil && info.IsDir()), nil
}

func PathAbs(_ context.Context, args map[string]starlark.Value) (starlark.Value, error) {
	p, err := stringArg(args, "path")
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return nil, err
	}
	return starlark.String(filepath.ToSlash(abs)), nil
}

// PathJoin joins components with "/". Unlike filepath.Join it does not
// clean the result, and an absolute component restarts the path.
func PathJoin(_ context.Context, args map[string]starlark.Value) (starlark.Value, error) {
	first, err := stringArg(args, "a")
	if err != nil {
		return nil, err
	}
	parts := []string{first}
	if rest, ok := args["p"].(starlark.Tuple); ok {
		for i, v := range rest {
			s, ok := starlark.AsString(v)
			if !ok {
				return nil, fmt.Errorf("join: component %d must be a string, got %s", i+1, v.Type())
			}
			parts = append(parts, s)
		}
	}
	joined := ""
	for _, part := range parts {
		switch {
		case strings.HasPrefix(part, "/"):
			joined = part
		case joined == "" || strings.HasSuffix(joined, "/"):
			joined += part
		default:
			joined += "/" + part
		}
	}
	return starlark.String(joined), nil
}

// splitPath splits p after its last slash.
func splitPath(p string) (head, tail string) {
	i := strings.LastIndex(p, "/") + 1
	head, tail = p[:i], p[i:]
	if trimmed := strings.TrimRight(head, "/"); trimmed != "" {
		head = trimmed
	}
	return head, tail
}

func PathBase(_ context.Context, args map[string]starlark.Value) (starlark.Value, error) {
	p, err := stringArg(args, "p")
	if err != nil {
		return nil, err
	}
	_, tail := splitPath(p)
	return starlark.String(tail), nil
}

func PathDir(_ context.Context, args map[string]starlark.Value) (starlark.Value, error) {
	p, err := stringArg(args, "p")
	if err != nil {
		return nil, err
	}
	head, _ := splitPath(p)
	return starlark.String(head), nil
}

// PathSplitExt returns (root, ext). Leading dots of the final component
// do not start an extension.
func PathSplitExt(_ context.Context, args map[string]starlark.Value) (starlark.Value, error) {
	p, err := stringArg(args, "p")
	if err != nil {
		return nil, err
	}
	tail := p[strings.LastIndex(p, "/")+1:]
	dot := strings.LastIndex(tail, ".")
	if dot <= 0 || strings.Trim(tail[:dot], ".") == "" {
		return starlark.Tuple{starlark.String(p), starlark.String("")}, nil
	}
	cut := len(p) - len(tail) + dot
	return starlark.Tuple{starlark.String(p[:cut]), starlark.String(p[cut:])}, nil
}

func unaryMath(f func(float64) float64) adapters.NativeImpl {
	return func(_ context.Context, args map[string]starlark.Value) (starlark.Value, error) {
		x, err := floatArg(args, "x")
		if err != nil {
			return nil, err
		}
		return starlark.Float(f(x)), nil
	}
}

func roundingMath(f func(float64) float64) adapters.NativeImpl {
	return func(_ context.Context, args map[string]starlark.Value) (starlark.Value, error) {
		if i, ok := args["x"].(starlark.Int); ok {
			return i, nil
		}
		x, err := floatArg(args, "x")
		if err != nil {
			return nil, err
		}
		return starlark.NumberToInt(starlark.Float(f(x)))
	}
}

func MathPow(_ context.Context, args map[string]starlark.Value) (starlark.Value, error) {
	x, err := floatArg(args, "x")
	if err != nil {
		return nil, err
	}
	y, err := floatArg(args, "y")
	if err != nil {
		return nil, err
	}
	return starlark.Float(math.Pow(x, y)), nil
}

func MathHypot(_ context.Context, args map[string]starlark.Value) (starlark.Value, error) {
	coords, _ := args["coordinates"].(starlark.Tuple)
	sum := 0.0
	for i, v := range coords {
		f, ok := starlark.AsFloat(v)
		if !ok {
			return nil, fmt.Errorf("hypot: coordinate %d must be a number, got %s", i, v.Type())
		}
		sum += f * f
	}
	return starlark.Float(math.Sqrt(sum)), nil
}

func MathLog(_ context.Context, args map[string]starlark.Value) (starlark.Value, error) {
	x, err := floatArg(args, "x")
	if err != nil {
		return nil, err
	}
	base, err := floatArg(args, "base")
	if err != nil {
		return nil, err
	}
	if base <= 0 || base == 1 {
		return nil, errors.New("log: math domain error")
	}
	return starlark.Float(math.Log(x) / math.Log(base)), nil
}

// Capwords splits s, capitalizes each word and joins them again. Without
// sep, runs of whitespace split and a single space joins.
func Capwords(_ context.Context, args map[string]starlark.Value) (starlark.Value, error) {
	s, err := stringArg(args, "s")
	if err != nil {
		return nil, err
	}
	var words []string
	joiner := " "
	if sep, ok := starlark.AsString(args["sep"]); ok {
		words = strings.Split(s, sep)
		joiner = sep
	} else if args["sep"] == nil || args["sep"] == starlark.None {
		words = strings.Fields(s)
	} else {
		return nil, fmt.Errorf("capwords: sep must be a string or None, got %s", args["sep"].Type())
	}
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return starlark.String(strings.Join(words, joiner)), nil
}

func stringArg(args map[string]starlark.Value, name string) (string, error) {
	v, ok := args[name]
	if !ok {
		return "", fmt.Errorf("missing argument %q", name)
	}
	s, ok := starlark.AsString(v)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string, got %s", name, v.Type())
	}
	return s, nil
}

func floatArg(args map[string]starlark.Value, name string) (float64, error) {
	v, ok := args[name]
	if !ok {
		return 0, fmt.Errorf("missing argument %q", name)
	}
	f, ok := starlark.AsFloat(v)
	if !ok {
		return 0, fmt.Errorf("argument %q must be a number, got %s", name, v.Type())
	}
	return f, nil
}

// Validator functions for the built-in modules

// validatePathInput checks that the named argument is a usable path.
func validatePathInput(name string) func(map[string]starlark.Value) error {
	return func(args map[string]starlark.Value) error {
		p, err := stringArg(args, name)
		if err != nil {
			return err
		}
		if len(p) == 0 {
			return fmt.Errorf("%s cannot be empty", name)
		}
		if len(p) > maxPathLength {
			return fmt.Errorf("%s too long (max %d characters)", name, maxPathLength)
		}
		if strings.ContainsRune(p, 0) {
			return fmt.Errorf("%s contains a NUL byte", name)
		}
		return nil
	}
}

func validateNonNegative(name string) func(map[string]starlark.Value) error {
	return func(args map[string]starlark.Value) error {
		f, err := floatArg(args, name)
		if err != nil {
			return err
		}
		if f < 0 {
			return fmt.Errorf("%s must be non-negative, got %v", name, f)
		}
		return nil
	}
}

func validatePositive(name string) func(map[string]starlark.Value) error {
	return func(args map[string]starlark.Value) error {
		f, err := floatArg(args, name)
		if err != nil {
			return err
		}
		if f <= 0 {
			return fmt.Errorf("%s must be positive, got %v", name, f)
		}
		return nil
	}
}

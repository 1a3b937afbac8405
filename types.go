package codemodel

import (
	"encoding/json"
	"fmt"
	"reflect"

	"go.starlark.net/starlark"
)

// ParamKind classifies how a parameter may be supplied in a call.
type ParamKind string

const (
	// PositionalOnly parameters can only be supplied by position.
	PositionalOnly ParamKind = "POSITIONAL_ONLY"
	// PositionalOrKeyword parameters can be supplied either way.
	PositionalOrKeyword ParamKind = "POSITIONAL_OR_KEYWORD"
	// VarPositional collects extra positional arguments (*args).
	VarPositional ParamKind = "VAR_POSITIONAL"
	// KeywordOnly parameters can only be supplied by keyword.
	KeywordOnly ParamKind = "KEYWORD_ONLY"
	// VarKeyword collects extra keyword arguments (**kwargs).
	VarKeyword ParamKind = "VAR_KEYWORD"
)

// ParseParamKind converts the serialized kind name back into a ParamKind.
func ParseParamKind(s string) (ParamKind, error) {
	switch k := ParamKind(s); k {
	case PositionalOnly, PositionalOrKeyword, VarPositional, KeywordOnly, VarKeyword:
		return k, nil
	}
	return "", fmt.Errorf("unknown parameter kind %q", s)
}

// IsVariadic reports whether the kind collects a variable number of arguments.
func (k ParamKind) IsVariadic() bool {
	return k == VarPositional || k == VarKeyword
}

const (
	// DefaultStageKey is the stage key used when a single callable is given
	// as setup, leaving room for stages before and after it.
	DefaultStageKey = 50

	// UnknownType is the type tag used when no type information is available.
	UnknownType = "Unknown"

	// InstanceType is the type tag of the opaque instance validator.
	InstanceType = "instance"
)

// Parameter describes one parameter of a callable. It is a value type;
// use the With* methods to derive modified copies.
type Parameter struct {
	Name       string
	Type       string
	Desc       *string
	HasDefault bool
	Default    any
	Kind       ParamKind
}

// ParameterOption configures a Parameter built by NewParameter.
type ParameterOption func(*Parameter)

// WithKind sets the parameter kind (default POSITIONAL_OR_KEYWORD).
func WithKind(kind ParamKind) ParameterOption {
	return func(p *Parameter) {
		p.Kind = kind
	}
}

// WithDefault marks the parameter optional with the given default value.
// Go integers and integral json.Numbers are stored as int64.
func WithDefault(value any) ParameterOption {
	return func(p *Parameter) {
		p.HasDefault = true
		p.Default = canonicalDefault(value)
	}
}

func canonicalDefault(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = canonicalDefault(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = canonicalDefault(e)
		}
		return out
	}
	return v
}

// defaultsEqual compares defaults as Starlark values, so 3 and 3.0 are
// equal. Values without a Starlark form are compared structurally.
func defaultsEqual(a, b any) bool {
	a, b = canonicalDefault(a), canonicalDefault(b)
	x, errA := ToStarlark(a)
	y, errB := ToStarlark(b)
	if errA != nil || errB != nil {
		return reflect.DeepEqual(a, b)
	}
	eq, err := starlark.Equal(x, y)
	return err == nil && eq
}

// WithDescription sets the human readable description.
func WithDescription(desc string) ParameterOption {
	return func(p *Parameter) {
		p.Desc = &desc
	}
}

// NewParameter creates a parameter. An empty type tag becomes UnknownType.
func NewParameter(name, typeTag string, opts ...ParameterOption) Parameter {
	if typeTag == "" {
		typeTag = UnknownType
	}
	p := Parameter{
		Name: name,
		Type: typeTag,
		Kind: PositionalOrKeyword,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// Description returns the description, or "" when none is set.
func (p Parameter) Description() string {
	if p.Desc == nil {
		return ""
	}
	return *p.Desc
}

// Required reports whether a value must be supplied for the parameter.
func (p Parameter) Required() bool {
	return !p.HasDefault && !p.Kind.IsVariadic()
}

// Equal compares all fields of two parameters.
func (p Parameter) Equal(o Parameter) bool {
	if p.Name != o.Name || p.Type != o.Type || p.Kind != o.Kind || p.HasDefault != o.HasDefault {
		return false
	}
	if (p.Desc == nil) != (o.Desc == nil) || (p.Desc != nil && *p.Desc != *o.Desc) {
		return false
	}
	return defaultsEqual(p.Default, o.Default)
}

func (p Parameter) String() string {
	prefix := ""
	switch p.Kind {
	case VarPositional:
		prefix = "*"
	case VarKeyword:
		prefix = "**"
	}
	s := fmt.Sprintf("%s%s: %s", prefix, p.Name, p.Type)
	if p.HasDefault {
		s += fmt.Sprintf(" = %v", p.Default)
	}
	return s
}

// EqualParameters compares two parameter lists element-wise.
func EqualParameters(a, b []Parameter) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// ValidateParameters checks that a callable has at most one variadic
// parameter of each kind and that names are unique.
func ValidateParameters(params []Parameter) error {
	var varPos, varKw []string
	seen := make(map[string]struct{}, len(params))
	for _, p := range params {
		if _, dup := seen[p.Name]; dup {
			return NewValidationError("construction", fmt.Sprintf("duplicate parameter %q", p.Name), nil)
		}
		seen[p.Name] = struct{}{}
		switch p.Kind {
		case VarPositional:
			varPos = append(varPos, p.Name)
		case VarKeyword:
			varKw = append(varKw, p.Name)
		}
	}
	if len(varPos) > 1 {
		return NewMultiplicityError(VarPositional, varPos)
	}
	if len(varKw) > 1 {
		return NewMultiplicityError(VarKeyword, varKw)
	}
	return nil
}

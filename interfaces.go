package codemodel

import (
	"context"

	"go.starlark.net/starlark"

	"github.com/dwhswenson/codemodel/internal/ast"
)

// Callable is a function that can back a pipeline stage or a module member.
type Callable interface {
	// Name returns the identifier the callable is invoked by.
	Name() string

	// Parameters returns the declared signature in declaration order.
	Parameters() []Parameter

	// Call invokes the callable. Implementations bind args and kwargs
	// against Parameters themselves.
	Call(thread *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error)
}

// SourceCallable is a Callable whose definition text is available, so its
// body can be rewritten into script fragments.
type SourceCallable interface {
	Callable

	// Source returns the complete definition (`def ...:` block). It may
	// carry a common leading indent.
	Source() string
}

// Documented is implemented by callables that carry a docstring.
type Documented interface {
	Doc() string
}

// Reference is a value that stands for the result of another computation,
// such as an instance used as a parameter of another instance.
type Reference interface {
	// CodeName is the identifier the referenced value is bound to in
	// generated source.
	CodeName() string

	// Value returns the runtime value, computing it if needed.
	Value(ctx context.Context) (starlark.Value, error)
}

// Validator converts and checks values of one type tag.
type Validator interface {
	// Name returns the type tag this validator was created for.
	Name() string

	// ToInstance converts a raw representation into a runtime value. It
	// fails on input that does not represent a value of the type.
	ToInstance(ctx context.Context, raw any) (starlark.Value, error)

	// ToSource renders a raw representation as an expression node.
	ToSource(raw any) (ast.Expr, error)

	// IsValid reports whether a runtime value belongs to the type.
	IsValid(v starlark.Value) bool

	// Validate is the non-failing form of ToInstance.
	Validate(raw any) bool
}

// ValidatorFactory creates validators for the type tags it recognizes.
type ValidatorFactory interface {
	IsMyType(typeTag string) bool
	Create(typeTag string) (Validator, error)
}

// ValidatorRegistry resolves type tags to validators.
type ValidatorRegistry interface {
	Lookup(typeTag string) Validator
	Register(factory ValidatorFactory)
}

// Module is a resolved native module.
type Module interface {
	Path() string
	Lookup(name string) (Callable, bool)
	Members() []string
}

// ModuleResolver resolves canonical module paths (e.g. "os.path").
type ModuleResolver interface {
	Resolve(ctx context.Context, path string) (Module, error)
}

// ImportResolver resolves the module an import statement binds to a
// prefix. fallback is the path resolved when the statement does not bind
// prefix.
type ImportResolver interface {
	ModuleResolver
	ResolveImport(ctx context.Context, importSpec, prefix, fallback string) (Module, error)
}

// FormatPass is a cosmetic source-to-source transformation applied to a
// drafted script. It must not change the meaning of valid input.
type FormatPass interface {
	Name() string
	Format(src string) (string, error)
}

// DocExtractor extracts per-parameter types and descriptions from a
// docstring, aligned with names. Missing entries are "".
type DocExtractor interface {
	Extract(doc string, names []string) (types []string, descs []string)
}

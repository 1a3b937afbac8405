package codemodel

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes for specific failure types
const (
	ErrCodePipelineAmbiguity = "PIPELINE_AMBIGUITY"
	ErrCodeReturnContract    = "RETURN_CONTRACT"
	ErrCodeArgumentBinding   = "ARGUMENT_BINDING"
	ErrCodeConfiguration     = "CONFIGURATION"
	ErrCodeUnknownScope      = "UNKNOWN_SCOPE"
	ErrCodeCycleDetected     = "CYCLE_DETECTED"
	ErrCodeValidation        = "VALIDATION"
	ErrCodeParse             = "PARSE"
	ErrCodeFormat            = "FORMAT"
	ErrCodeSerialization     = "SERIALIZATION"
	ErrCodeModuleNotFound    = "MODULE_NOT_FOUND"
	ErrCodeMultiplicity      = "MULTIPLICITY"
	ErrCodeExecution         = "EXECUTION"
)

// Sentinels for errors.Is. An *Error matches the sentinel carrying its code.
var (
	ErrPipelineAmbiguity = &Error{Code: ErrCodePipelineAmbiguity}
	ErrReturnContract    = &Error{Code: ErrCodeReturnContract}
	ErrArgumentBinding   = &Error{Code: ErrCodeArgumentBinding}
	ErrConfiguration     = &Error{Code: ErrCodeConfiguration}
	ErrUnknownScope      = &Error{Code: ErrCodeUnknownScope}
	ErrCycleDetected     = &Error{Code: ErrCodeCycleDetected}
	ErrValidation        = &Error{Code: ErrCodeValidation}
	ErrParse             = &Error{Code: ErrCodeParse}
	ErrFormat            = &Error{Code: ErrCodeFormat}
	ErrSerialization     = &Error{Code: ErrCodeSerialization}
	ErrModuleNotFound    = &Error{Code: ErrCodeModuleNotFound}
	ErrMultiplicity      = &Error{Code: ErrCodeMultiplicity}
	ErrExecution         = &Error{Code: ErrCodeExecution}
)

// Error is the error type returned by every codemodel component.
type Error struct {
	Code    string // A machine-readable error code (e.g., ErrCodeReturnContract)
	Message string // A human-readable message
	Stage   string // Where the error occurred (e.g., "construction", "execution")
	Cause   error  // The underlying error, if any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Stage, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Stage, e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error, allowing for error chaining.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a codemodel error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewError creates a new Error.
func NewError(code, stage, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Stage:   stage,
		Message: message,
		Cause:   cause,
	}
}

// HasCode reports whether any error in err's chain is a codemodel error with code.
func HasCode(err error, code string) bool {
	var e *Error
	for err != nil {
		if errors.As(err, &e) {
			if e.Code == code {
				return true
			}
			err = e.Cause
			continue
		}
		return false
	}
	return false
}

// Specific error constructors

func NewPipelineAmbiguityError(model string, candidates int) *Error {
	msg := fmt.Sprintf("unable to identify main call function for %q: found %d non-mapping-returning stages", model, candidates)
	return NewError(ErrCodePipelineAmbiguity, "construction", msg, nil)
}

func NewReturnContractError(scope, message string) *Error {
	return NewError(ErrCodeReturnContract, "validation", fmt.Sprintf("scope %q: %s", scope, message), nil)
}

func NewArgumentBindingError(callable, message string, cause error) *Error {
	return NewError(ErrCodeArgumentBinding, "binding", fmt.Sprintf("%s: %s", callable, message), cause)
}

func NewConfigurationError(message string, cause error) *Error {
	return NewError(ErrCodeConfiguration, "initialization", message, cause)
}

func NewUnknownScopeError(scope string) *Error {
	return NewError(ErrCodeUnknownScope, "traversal", fmt.Sprintf("scope %q was never visited", scope), nil)
}

func NewCycleDetectedError(remaining []string) *Error {
	msg := fmt.Sprintf("dependency cycle among: %s", strings.Join(remaining, ", "))
	return NewError(ErrCodeCycleDetected, "ordering", msg, nil)
}

func NewValidationError(stage, message string, cause error) *Error {
	return NewError(ErrCodeValidation, stage, message, cause)
}

func NewParseError(filename string, cause error) *Error {
	return NewError(ErrCodeParse, "parsing", fmt.Sprintf("failed to parse %s", filename), cause)
}

func NewFormatError(pass string, cause error) *Error {
	return NewError(ErrCodeFormat, "formatting", fmt.Sprintf("format pass %q failed", pass), cause)
}

func NewSerializationError(message string, cause error) *Error {
	return NewError(ErrCodeSerialization, "serialization", message, cause)
}

func NewModuleNotFoundError(module string, cause error) *Error {
	return NewError(ErrCodeModuleNotFound, "resolution", fmt.Sprintf("module %q not found", module), cause)
}

func NewMultiplicityError(kind ParamKind, names []string) *Error {
	msg := fmt.Sprintf("at most one %s parameter allowed, found %s", kind, strings.Join(names, ", "))
	return NewError(ErrCodeMultiplicity, "classification", msg, nil)
}

func NewExecutionError(callable string, cause error) *Error {
	return NewError(ErrCodeExecution, "execution", fmt.Sprintf("call to %s failed", callable), cause)
}

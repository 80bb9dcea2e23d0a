package bytecode

import (
	"fmt"

	"github.com/corvid-lang/corvid/compiler"
)

// ---------------------------------------------------------------------------
// Runtime errors
// ---------------------------------------------------------------------------

// UndefinedVariableError reports a read of an unbound variable slot.
type UndefinedVariableError struct {
	Name string
}

func (e *UndefinedVariableError) Error() string {
	return fmt.Sprintf("Runtime error: Undefined variable: %s", e.Name)
}

// TypeError reports a value of the wrong kind reaching an operation.
type TypeError struct {
	Expected string
	Found    string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("Runtime error: Type error: expected %s, found %s", e.Expected, e.Found)
}

// StackOverflowError reports call-stack exhaustion or operand-stack
// underflow.
type StackOverflowError struct{}

func (e *StackOverflowError) Error() string {
	return "Runtime error: Stack overflow"
}

// DivisionByZeroError reports division by zero.
type DivisionByZeroError struct{}

func (e *DivisionByZeroError) Error() string {
	return "Runtime error: Division by zero"
}

// ---------------------------------------------------------------------------
// Compile errors
// ---------------------------------------------------------------------------

// UndefinedNameError reports an identifier that resolves to nothing at
// lowering time.
type UndefinedNameError struct {
	Name string
	Span compiler.Span
}

func (e *UndefinedNameError) Error() string {
	return fmt.Sprintf("Compile error: Undefined variable '%s' at %d:%d",
		e.Name, e.Span.Start, e.Span.End)
}

// UnsupportedFeatureError reports a construct the compiler refuses to
// lower.
type UnsupportedFeatureError struct {
	Feature string
}

func (e *UnsupportedFeatureError) Error() string {
	return fmt.Sprintf("Compile error: Unsupported feature: %s", e.Feature)
}

// OptimizationFailedError reports an internal lowering failure, such as an
// unresolved jump placeholder.
type OptimizationFailedError struct {
	Reason string
}

func (e *OptimizationFailedError) Error() string {
	return fmt.Sprintf("Compile error: Optimization failed: %s", e.Reason)
}

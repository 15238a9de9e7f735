package execution

import (
	"fmt"

	"github.com/crytic/abirunner/execution/valuegeneration"
	"github.com/pkg/errors"
)

// SynthesisError describes a method parameter for which no argument could be produced. It fails only the method
// declaring the parameter.
type SynthesisError = valuegeneration.SynthesisError

// ErrNoTransactionID is the cause of an InvocationError for a write that the chain accepted without returning a
// transaction identifier.
var ErrNoTransactionID = errors.New("no transaction identifier")

// InvocationError describes a failed call to the chain client. It fails only the method being invoked, unless it
// occurs before any method is invoked.
type InvocationError struct {
	// Method is the name of the invoked method. It is empty for failures that are not tied to a method.
	Method string
	// Cause is the underlying error.
	Cause error
}

// Error returns the error message string, implementing the `error` interface.
func (e *InvocationError) Error() string {
	if e.Method == "" {
		return fmt.Sprintf("invocation failed: %v", e.Cause)
	}
	return fmt.Sprintf("invocation of %q failed: %v", e.Method, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *InvocationError) Unwrap() error {
	return e.Cause
}

// ReportError describes outcomes that cannot be assembled into a report for the executed schema. It is fatal.
type ReportError struct {
	// Reason describes the inconsistency.
	Reason string
}

// Error returns the error message string, implementing the `error` interface.
func (e *ReportError) Error() string {
	return "cannot assemble report: " + e.Reason
}

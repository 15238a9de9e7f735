package valuegeneration

import "fmt"

// SynthesisError describes a method parameter for which no argument value could be produced. It only fails the
// method declaring the parameter.
type SynthesisError struct {
	// Method is the name of the method being synthesized.
	Method string
	// Param is the name of the offending parameter.
	Param string
	// TypeTag is the parameter type as it was declared.
	TypeTag string
	// Reason describes why synthesis failed.
	Reason string
	// Cause is the underlying error, if any.
	Cause error
}

// Error returns the error message string, implementing the `error` interface.
func (e *SynthesisError) Error() string {
	msg := fmt.Sprintf("cannot synthesize parameter %q (%s) of method %q: %s", e.Param, e.TypeTag, e.Method, e.Reason)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *SynthesisError) Unwrap() error {
	return e.Cause
}

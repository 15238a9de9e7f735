package schema

import "fmt"

// SchemaError describes a schema source that is malformed or declares something unrecognized. It is fatal: a run
// never starts with a schema that failed to load.
type SchemaError struct {
	// Source is the path (or description) of the schema source.
	Source string
	// Reason describes what is wrong with the source.
	Reason string
	// Cause is the underlying error, if any.
	Cause error
}

// Error returns the error message string, implementing the `error` interface.
func (e *SchemaError) Error() string {
	msg := "invalid schema"
	if e.Source != "" {
		msg += fmt.Sprintf(" %q", e.Source)
	}
	msg += ": " + e.Reason
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *SchemaError) Unwrap() error {
	return e.Cause
}

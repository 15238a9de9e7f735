package reporting

import (
	"github.com/crytic/abirunner/execution"
	"github.com/crytic/abirunner/logging"
)

// reportingLogger is the logger used by the reporting package.
var reportingLogger = logging.GlobalLogger.NewSubLogger("module", logging.REPORTING_SERVICE)

// Sink describes a destination an assembled report is rendered to.
type Sink interface {
	// Write renders the report to the sink's destination.
	Write(report *execution.Report) error
}

// Preparer is implemented by sinks that can verify their destination before a report exists.
type Preparer interface {
	// Prepare returns an error if the sink's destination cannot be written to.
	Prepare() error
}

// PrepareAll prepares every sink implementing Preparer and returns the first error encountered.
func PrepareAll(sinks ...Sink) error {
	for _, sink := range sinks {
		if preparer, ok := sink.(Preparer); ok {
			if err := preparer.Prepare(); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteAll writes the report to every sink, continuing past failures. Returns the first error encountered.
func WriteAll(report *execution.Report, sinks ...Sink) error {
	var firstErr error
	for _, sink := range sinks {
		if err := sink.Write(report); err != nil {
			reportingLogger.Error("Failed to write report", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

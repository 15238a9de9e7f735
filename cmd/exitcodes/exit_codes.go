package exitcodes

const (
	// ================================
	// Platform-universal exit codes
	// ================================

	// ExitCodeSuccess indicates no errors or failures had occurred.
	ExitCodeSuccess = 0

	// ExitCodeGeneralError indicates some type of general error occurred.
	ExitCodeGeneralError = 1

	// ================================
	// Application-specific exit codes
	// ================================
	// Note: Despite not being standardized, exit codes 2-5 are often used for common use cases, so we avoid them.

	// ExitCodeHandledError indicates that a run could not be carried out and the error was already logged. Note that
	// an error with error code ExitCodeGeneralError and ExitCodeHandledError are mutually exclusive errors
	ExitCodeHandledError = 6

	// ExitCodeMethodFailed indicates a run completed but at least one method failed, and the run was configured to
	// fail on method errors.
	ExitCodeMethodFailed = 7
)

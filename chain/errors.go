package chain

import "fmt"

// ErrorKind classifies a ClientError.
type ErrorKind string

const (
	// ErrorKindTransport describes a failure to reach the node or read its response.
	ErrorKindTransport ErrorKind = "transport"
	// ErrorKindRejected describes a request the node answered with an error.
	ErrorKindRejected ErrorKind = "rejected"
	// ErrorKindReverted describes a transaction that was included but failed.
	ErrorKindReverted ErrorKind = "reverted"
	// ErrorKindTimeout describes a transaction that was not confirmed in time.
	ErrorKindTimeout ErrorKind = "timeout"
)

// ClientError describes a failed chain client operation.
type ClientError struct {
	// Kind classifies the failure.
	Kind ErrorKind
	// Op names the operation that failed, e.g. "query" or "submit".
	Op string
	// Detail is a human-readable description, typically the node's response.
	Detail string
	// Cause is the underlying error, if any.
	Cause error
	// TxID identifies a transaction the node accepted before the operation failed. It is empty if the node never
	// accepted a transaction.
	TxID string
}

// NewClientError creates a ClientError.
func NewClientError(kind ErrorKind, op string, detail string, cause error) *ClientError {
	return &ClientError{Kind: kind, Op: op, Detail: detail, Cause: cause}
}

// NewTransactionError creates a ClientError for a transaction the node accepted as txID.
func NewTransactionError(kind ErrorKind, op string, txID string, detail string, cause error) *ClientError {
	return &ClientError{Kind: kind, Op: op, Detail: detail, Cause: cause, TxID: txID}
}

// Accepted returns whether the node accepted a transaction before the operation failed. Resubmitting such a call
// would execute it again.
func (e *ClientError) Accepted() bool {
	return e.TxID != "" || e.Kind == ErrorKindReverted || e.Kind == ErrorKindTimeout
}

// Error returns the error message string, implementing the `error` interface.
func (e *ClientError) Error() string {
	msg := fmt.Sprintf("%s %s error", e.Op, e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ClientError) Unwrap() error {
	return e.Cause
}

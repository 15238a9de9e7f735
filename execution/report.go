package execution

import (
	"fmt"
	"time"

	"github.com/crytic/abirunner/schema"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CallKind describes whether a CallResult came from a query or a transaction.
type CallKind int

const (
	// CallKindQuery describes the result of a read method.
	CallKindQuery CallKind = iota
	// CallKindTransaction describes the result of a write method.
	CallKindTransaction
)

// CallResult is the successful result of a single method invocation.
type CallResult struct {
	// Payload is the query value verbatim for reads and the transaction identifier for writes.
	Payload string
	// Kind describes which kind of call produced the payload.
	Kind CallKind
}

// OutcomeStatus describes whether a method invocation succeeded.
type OutcomeStatus string

const (
	// OutcomeStatusOK describes a method that produced a result.
	OutcomeStatusOK OutcomeStatus = "ok"
	// OutcomeStatusFailed describes a method that failed to synthesize or invoke.
	OutcomeStatusFailed OutcomeStatus = "failed"
)

// OutcomeRecord is the recorded result of a single method. It is never mutated after creation.
type OutcomeRecord struct {
	Method     string            `json:"method"`
	Label      string            `json:"label"`
	Mutability schema.Mutability `json:"mutability"`
	Status     OutcomeStatus     `json:"status"`
	// Payload is the CallResult payload on success. A failed write carries the identifier of the transaction the
	// node accepted, if any.
	Payload string `json:"payload,omitempty"`
	// Error is the failure detail. It is empty on success.
	Error string `json:"error,omitempty"`
	// Args are the rendered arguments the method was invoked with.
	Args []string `json:"args"`
	// Attempts is the number of times the chain client was called for the method.
	Attempts int           `json:"attempts"`
	Duration time.Duration `json:"duration"`
}

// Succeeded returns whether the method produced a result.
func (o OutcomeRecord) Succeeded() bool {
	return o.Status == OutcomeStatusOK
}

// RunMetadata describes a run independently of its outcomes.
type RunMetadata struct {
	RunID           uuid.UUID
	Contract        string
	SchemaDigest    string
	WalletAddress   string
	StartingBalance decimal.Decimal
	StartedAt       time.Time
	FinishedAt      time.Time
}

// Report is the consolidated result of a run: one outcome per schema method, in schema order.
type Report struct {
	RunID           uuid.UUID       `json:"runId"`
	Contract        string          `json:"contract"`
	SchemaDigest    string          `json:"schemaDigest"`
	WalletAddress   string          `json:"walletAddress"`
	StartingBalance decimal.Decimal `json:"startingBalance"`
	StartedAt       time.Time       `json:"startedAt"`
	FinishedAt      time.Time       `json:"finishedAt"`
	Outcomes        []OutcomeRecord `json:"outcomes"`
}

// Succeeded returns the number of methods that produced a result.
func (r *Report) Succeeded() int {
	count := 0
	for _, outcome := range r.Outcomes {
		if outcome.Succeeded() {
			count++
		}
	}
	return count
}

// Failed returns the number of methods that failed.
func (r *Report) Failed() int {
	return len(r.Outcomes) - r.Succeeded()
}

// Assemble builds a Report from run metadata and the outcomes recorded for methods. It returns a *ReportError if
// there is not exactly one outcome per method or the outcomes are not in method order.
func Assemble(meta RunMetadata, methods []schema.MethodSpec, outcomes []OutcomeRecord) (*Report, error) {
	if len(outcomes) != len(methods) {
		return nil, &ReportError{Reason: fmt.Sprintf("%d outcomes recorded for %d methods", len(outcomes), len(methods))}
	}
	for i, method := range methods {
		if outcomes[i].Method != method.Name {
			return nil, &ReportError{Reason: fmt.Sprintf("outcome %d is for method %q, expected %q", i, outcomes[i].Method, method.Name)}
		}
	}

	return &Report{
		RunID:           meta.RunID,
		Contract:        meta.Contract,
		SchemaDigest:    meta.SchemaDigest,
		WalletAddress:   meta.WalletAddress,
		StartingBalance: meta.StartingBalance,
		StartedAt:       meta.StartedAt,
		FinishedAt:      meta.FinishedAt,
		Outcomes:        append([]OutcomeRecord(nil), outcomes...),
	}, nil
}

package execution

import (
	"context"

	"github.com/crytic/abirunner/chain"
	"github.com/crytic/abirunner/execution/valuegeneration"
	"github.com/crytic/abirunner/schema"
	"github.com/pkg/errors"
)

// Dispatcher invokes methods on a single contract on behalf of a single caller, routing each to a query or a
// transaction by its mutability. It never retries.
type Dispatcher struct {
	client   chain.Client
	contract string
	caller   string
}

// NewDispatcher creates a Dispatcher calling contract through client on behalf of caller.
func NewDispatcher(client chain.Client, contract string, caller string) *Dispatcher {
	return &Dispatcher{
		client:   client,
		contract: contract,
		caller:   caller,
	}
}

// Invoke calls the method with the provided arguments. Read methods return the query value unchanged; write methods
// return the transaction identifier. Every failure is returned as an *InvocationError.
func (d *Dispatcher) Invoke(ctx context.Context, method schema.MethodSpec, args valuegeneration.InvocationArgs) (CallResult, error) {
	call := chain.Call{
		Contract: d.contract,
		Method:   method.Name,
		Caller:   d.caller,
		Args:     args,
	}

	switch method.Mutability {
	case schema.MutabilityRead:
		value, err := d.client.Query(ctx, call)
		if err != nil {
			return CallResult{}, &InvocationError{Method: method.Name, Cause: err}
		}
		return CallResult{Payload: value, Kind: CallKindQuery}, nil
	case schema.MutabilityWrite:
		txID, err := d.client.SubmitTransaction(ctx, call)
		if err != nil {
			return CallResult{}, &InvocationError{Method: method.Name, Cause: err}
		}
		if txID == "" {
			return CallResult{}, &InvocationError{Method: method.Name, Cause: ErrNoTransactionID}
		}
		return CallResult{Payload: txID, Kind: CallKindTransaction}, nil
	default:
		return CallResult{}, &InvocationError{Method: method.Name, Cause: errors.Errorf("unsupported mutability %v", method.Mutability)}
	}
}

package chain

import (
	"context"
	"math/big"

	"github.com/crytic/abirunner/execution/valuegeneration"
)

// Call describes a single contract method invocation, either a query or a transaction.
type Call struct {
	// Contract is the address of the target contract.
	Contract string
	// Method is the name of the contract method.
	Method string
	// Caller is the address of the account performing the call.
	Caller string
	// Args are the ordered call arguments.
	Args valuegeneration.InvocationArgs
}

// Balance describes the state of an account at the time it was queried.
type Balance struct {
	// Raw is the balance in the chain's smallest denomination.
	Raw *big.Int
	// Nonce is the account's current transaction count.
	Nonce uint64
	// Decimals is the number of decimal places between the smallest denomination and the chain's native unit.
	Decimals int32
}

//go:generate mockgen -source client.go -destination client_mock.go -package chain

// Client describes a connection to a chain node able to query account state, execute read-only calls and submit
// signed transactions on behalf of a single wallet.
type Client interface {
	// Balance returns the balance and nonce of the provided account.
	Balance(ctx context.Context, address string) (Balance, error)

	// Query executes a read-only call and returns the node's result verbatim.
	Query(ctx context.Context, call Call) (string, error)

	// SubmitTransaction signs and submits a state-changing call and returns its transaction identifier.
	SubmitTransaction(ctx context.Context, call Call) (string, error)
}

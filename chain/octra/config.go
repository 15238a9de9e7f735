package octra

import "time"

const (
	// Decimals is the number of decimal places of a raw balance: 1 OCT is 1,000,000 raw units.
	Decimals = 6

	// DefaultHTTPTimeout is the timeout applied to every request made to the node.
	DefaultHTTPTimeout = 100 * time.Second
	// DefaultPollInterval is the interval between transaction confirmation checks.
	DefaultPollInterval = 2 * time.Second
)

// Config describes how to reach an Octra node.
type Config struct {
	// Endpoint is the base URL of the node's REST API.
	Endpoint string
	// HTTPTimeout is the timeout applied to every request. Zero uses DefaultHTTPTimeout.
	HTTPTimeout time.Duration
	// ConfirmationTimeout is how long to wait for a submitted transaction to become visible on the node. Zero skips
	// confirmation and returns as soon as the node accepts the transaction.
	ConfirmationTimeout time.Duration
	// PollInterval is the interval between confirmation checks. Zero uses DefaultPollInterval.
	PollInterval time.Duration
}

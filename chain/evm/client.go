package evm

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"time"

	"github.com/crytic/abirunner/chain"
	"github.com/crytic/abirunner/logging"
	ethereum "github.com/crytic/medusa-geth"
	"github.com/crytic/medusa-geth/common"
	"github.com/crytic/medusa-geth/common/hexutil"
	"github.com/crytic/medusa-geth/core/types"
	"github.com/crytic/medusa-geth/crypto"
	"github.com/crytic/medusa-geth/ethclient"
	"github.com/pkg/errors"
)

const (
	// Decimals is the number of decimal places between wei and ether.
	Decimals = 18

	// DefaultGasLimitFallback is the gas limit used when the node cannot estimate one.
	DefaultGasLimitFallback = 1_000_000
	// DefaultPollInterval is the interval between receipt checks.
	DefaultPollInterval = time.Second
)

// clientLogger is the logger used by the EVM client.
var clientLogger = logging.GlobalLogger.NewSubLogger("module", logging.CHAIN_SERVICE)

// Config describes how to reach an EVM node and how to submit transactions to it.
type Config struct {
	// Endpoint is the JSON-RPC URL of the node.
	Endpoint string
	// GasLimitFallback is used when gas estimation fails. Zero uses DefaultGasLimitFallback.
	GasLimitFallback uint64
	// ReceiptTimeout is how long to wait for a transaction to be mined. Zero returns as soon as the node accepts it.
	ReceiptTimeout time.Duration
	// PollInterval is the interval between receipt checks. Zero uses DefaultPollInterval.
	PollInterval time.Duration
}

// Backend describes the subset of the node API the client uses. *ethclient.Client satisfies it.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Client is a chain.Client for EVM nodes. Transactions are signed legacy transactions from a secp256k1 key.
type Client struct {
	config  Config
	backend Backend
	key     *ecdsa.PrivateKey
	from    common.Address
	signer  types.Signer
}

// Dial connects to the node at config.Endpoint and creates a Client signing with key.
func Dial(ctx context.Context, config Config, key *ecdsa.PrivateKey) (*Client, error) {
	backend, err := ethclient.DialContext(ctx, config.Endpoint)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to connect to %s", config.Endpoint)
	}
	return NewClient(ctx, config, backend, key)
}

// NewClient creates a Client over an existing backend, signing with key.
func NewClient(ctx context.Context, config Config, backend Backend, key *ecdsa.PrivateKey) (*Client, error) {
	if config.GasLimitFallback == 0 {
		config.GasLimitFallback = DefaultGasLimitFallback
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}

	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, chain.NewClientError(chain.ErrorKindTransport, "chain id", "", errors.WithStack(err))
	}

	return &Client{
		config:  config,
		backend: backend,
		key:     key,
		from:    crypto.PubkeyToAddress(key.PublicKey),
		signer:  types.LatestSignerForChainID(chainID),
	}, nil
}

// Address returns the hex address of the account the client signs for.
func (c *Client) Address() string {
	return c.from.Hex()
}

// parseAddress parses a hex account or contract address.
func parseAddress(op string, address string) (common.Address, error) {
	if !common.IsHexAddress(address) {
		return common.Address{}, chain.NewClientError(chain.ErrorKindRejected, op, "invalid address "+address, nil)
	}
	return common.HexToAddress(address), nil
}

// Balance returns the balance in wei and the confirmed nonce of the provided account.
func (c *Client) Balance(ctx context.Context, address string) (chain.Balance, error) {
	account, err := parseAddress("balance", address)
	if err != nil {
		return chain.Balance{}, err
	}

	raw, err := c.backend.BalanceAt(ctx, account, nil)
	if err != nil {
		return chain.Balance{}, chain.NewClientError(chain.ErrorKindTransport, "balance", "", errors.WithStack(err))
	}
	nonce, err := c.backend.NonceAt(ctx, account, nil)
	if err != nil {
		return chain.Balance{}, chain.NewClientError(chain.ErrorKindTransport, "balance", "", errors.WithStack(err))
	}
	return chain.Balance{Raw: raw, Nonce: nonce, Decimals: Decimals}, nil
}

// Query executes an eth_call and returns the hex-encoded return data.
func (c *Client) Query(ctx context.Context, call chain.Call) (string, error) {
	msg, err := c.callMsg("query", call)
	if err != nil {
		return "", err
	}

	result, err := c.backend.CallContract(ctx, msg, nil)
	if err != nil {
		return "", chain.NewClientError(chain.ErrorKindRejected, "query", "", errors.WithStack(err))
	}
	return hexutil.Encode(result), nil
}

// SubmitTransaction signs and sends a legacy transaction calling the method and returns its hash. If a receipt
// timeout is configured, it waits for the transaction to be mined and reports reverted transactions as errors.
func (c *Client) SubmitTransaction(ctx context.Context, call chain.Call) (string, error) {
	msg, err := c.callMsg("submit", call)
	if err != nil {
		return "", err
	}

	nonce, err := c.backend.PendingNonceAt(ctx, c.from)
	if err != nil {
		return "", chain.NewClientError(chain.ErrorKindTransport, "submit", "unable to fetch nonce", errors.WithStack(err))
	}
	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return "", chain.NewClientError(chain.ErrorKindTransport, "submit", "unable to fetch gas price", errors.WithStack(err))
	}
	gasLimit, err := c.backend.EstimateGas(ctx, msg)
	if err != nil {
		clientLogger.Debug("Gas estimation for ", call.Method, " failed, using fallback limit ", c.config.GasLimitFallback, ": ", err.Error())
		gasLimit = c.config.GasLimitFallback
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       msg.To,
		Value:    big.NewInt(0),
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     msg.Data,
	})
	signedTx, err := types.SignTx(tx, c.signer, c.key)
	if err != nil {
		return "", errors.Wrap(err, "unable to sign transaction")
	}

	if err := c.backend.SendTransaction(ctx, signedTx); err != nil {
		return "", chain.NewClientError(chain.ErrorKindRejected, "submit", "", errors.WithStack(err))
	}
	txHash := signedTx.Hash()
	clientLogger.Debug("Submitted ", call.Method, " with nonce ", nonce, ": ", txHash.Hex())

	if c.config.ReceiptTimeout > 0 {
		if err := c.waitMined(ctx, txHash); err != nil {
			return "", err
		}
	}
	return txHash.Hex(), nil
}

// callMsg builds the message for a call from this client's account.
func (c *Client) callMsg(op string, call chain.Call) (ethereum.CallMsg, error) {
	contract, err := parseAddress(op, call.Contract)
	if err != nil {
		return ethereum.CallMsg{}, err
	}
	data, err := EncodeCall(call.Method, call.Args)
	if err != nil {
		return ethereum.CallMsg{}, chain.NewClientError(chain.ErrorKindRejected, op, "unable to encode call", err)
	}
	return ethereum.CallMsg{From: c.from, To: &contract, Data: data}, nil
}

// waitMined polls for the transaction receipt until it is mined or the receipt timeout elapses.
func (c *Client) waitMined(ctx context.Context, txHash common.Hash) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.ReceiptTimeout)
	defer cancel()

	ticker := time.NewTicker(c.config.PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.backend.TransactionReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			if receipt.Status == types.ReceiptStatusFailed {
				return chain.NewTransactionError(chain.ErrorKindReverted, "submit", txHash.Hex(), "transaction "+txHash.Hex()+" reverted", nil)
			}
			return nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			clientLogger.Trace("Receipt lookup for ", txHash.Hex(), " failed: ", err.Error())
		}

		select {
		case <-ctx.Done():
			return chain.NewTransactionError(chain.ErrorKindTimeout, "submit", txHash.Hex(), "transaction "+txHash.Hex()+" was not mined", ctx.Err())
		case <-ticker.C:
		}
	}
}

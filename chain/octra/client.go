package octra

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/crytic/abirunner/chain"
	"github.com/crytic/abirunner/logging"
	"github.com/pkg/errors"
	"golang.org/x/net/http2"
)

// clientLogger is the logger used by the Octra client.
var clientLogger = logging.GlobalLogger.NewSubLogger("module", logging.CHAIN_SERVICE)

// balanceResponse is the body returned by GET /balance/{address}.
type balanceResponse struct {
	BalanceRaw json.Number `json:"balance_raw"`
	Nonce      uint64      `json:"nonce"`
}

// viewRequest is the body of POST /contract/call-view.
type viewRequest struct {
	Contract string   `json:"contract"`
	Method   string   `json:"method"`
	Params   []string `json:"params"`
	Caller   string   `json:"caller"`
}

// viewResponse is the body returned by POST /contract/call-view.
type viewResponse struct {
	Status string          `json:"status"`
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

// transactionRequest is the body of POST /call-contract.
type transactionRequest struct {
	Contract  string   `json:"contract"`
	Method    string   `json:"method"`
	Params    []string `json:"params"`
	Caller    string   `json:"caller"`
	Nonce     uint64   `json:"nonce"`
	Timestamp float64  `json:"timestamp"`
	Signature string   `json:"signature"`
	PublicKey string   `json:"public_key"`
}

// transactionResponse is the body returned by POST /call-contract.
type transactionResponse struct {
	TxHash string `json:"tx_hash"`
}

// Client is a chain.Client for nodes exposing the Octra REST API. Transactions are signed with an ed25519 key.
type Client struct {
	config     Config
	httpClient *http.Client
	key        ed25519.PrivateKey
	address    string
	nonces     *nonceTracker

	// now returns the current time, used for transaction timestamps.
	now func() time.Time
}

// NewClient creates a Client acting on behalf of address, signing with key.
func NewClient(config Config, key ed25519.PrivateKey, address string) (*Client, error) {
	if _, err := url.ParseRequestURI(config.Endpoint); err != nil {
		return nil, errors.Wrapf(err, "invalid node endpoint %q", config.Endpoint)
	}
	if config.HTTPTimeout <= 0 {
		config.HTTPTimeout = DefaultHTTPTimeout
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	config.Endpoint = strings.TrimRight(config.Endpoint, "/")

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if err := http2.ConfigureTransport(transport); err != nil {
		return nil, errors.WithStack(err)
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.HTTPTimeout, Transport: transport},
		key:        key,
		address:    address,
		nonces:     &nonceTracker{},
		now:        time.Now,
	}, nil
}

// Balance returns the raw balance and nonce of the provided account.
func (c *Client) Balance(ctx context.Context, address string) (chain.Balance, error) {
	var resp balanceResponse
	if err := c.apiCall(ctx, "balance", http.MethodGet, "/balance/"+url.PathEscape(address), nil, &resp); err != nil {
		return chain.Balance{}, err
	}

	raw, ok := new(big.Int).SetString(resp.BalanceRaw.String(), 10)
	if !ok {
		return chain.Balance{}, chain.NewClientError(chain.ErrorKindRejected, "balance", fmt.Sprintf("malformed balance %q", resp.BalanceRaw), nil)
	}
	return chain.Balance{Raw: raw, Nonce: resp.Nonce, Decimals: Decimals}, nil
}

// Query executes a view call. String results are returned unquoted, other results as their JSON text.
func (c *Client) Query(ctx context.Context, call chain.Call) (string, error) {
	req := viewRequest{
		Contract: call.Contract,
		Method:   call.Method,
		Params:   call.Args.Strings(),
		Caller:   call.Caller,
	}

	var resp viewResponse
	if err := c.apiCall(ctx, "query", http.MethodPost, "/contract/call-view", req, &resp); err != nil {
		return "", err
	}
	if resp.Status != "success" {
		detail := resp.Error
		if detail == "" {
			detail = fmt.Sprintf("status %q", resp.Status)
		}
		return "", chain.NewClientError(chain.ErrorKindRejected, "query", detail, nil)
	}
	return renderResult(resp.Result), nil
}

// renderResult converts a view call result into its payload string.
func renderResult(result json.RawMessage) string {
	trimmed := bytes.TrimSpace(result)
	if len(trimmed) == 0 {
		return "null"
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return s
	}
	return string(trimmed)
}

// SubmitTransaction signs and submits a contract call from the client's account and returns the transaction hash reported by the node. If a
// confirmation timeout is configured, it waits for the transaction to become visible first.
func (c *Client) SubmitTransaction(ctx context.Context, call chain.Call) (string, error) {
	if call.Caller != "" && call.Caller != c.address {
		return "", chain.NewClientError(chain.ErrorKindRejected, "submit", fmt.Sprintf("caller %s is not the signing account %s", call.Caller, c.address), nil)
	}

	balance, err := c.Balance(ctx, c.address)
	if err != nil {
		return "", err
	}
	nonce := c.nonces.next(balance.Nonce)
	timestamp := float64(c.now().UnixMicro()) / 1e6

	signature := ed25519.Sign(c.key, signingBlob(c.address, call.Contract, nonce, timestamp))
	req := transactionRequest{
		Contract:  call.Contract,
		Method:    call.Method,
		Params:    call.Args.Strings(),
		Caller:    c.address,
		Nonce:     nonce,
		Timestamp: timestamp,
		Signature: base64.StdEncoding.EncodeToString(signature),
		PublicKey: base64.StdEncoding.EncodeToString(c.key.Public().(ed25519.PublicKey)),
	}

	var resp transactionResponse
	if err := c.apiCall(ctx, "submit", http.MethodPost, "/call-contract", req, &resp); err != nil {
		return "", err
	}
	c.nonces.commit(nonce)
	clientLogger.Debug("Submitted ", call.Method, " with nonce ", nonce, ": ", resp.TxHash)

	if resp.TxHash != "" && c.config.ConfirmationTimeout > 0 {
		if err := c.waitForTransaction(ctx, resp.TxHash); err != nil {
			return "", err
		}
	}
	return resp.TxHash, nil
}

// signingBlob builds the message signed for a contract call. Field order is fixed by the node.
func signingBlob(from string, to string, nonce uint64, timestamp float64) []byte {
	return []byte(fmt.Sprintf(`{"from":"%s","to_":"%s","amount":"0","nonce":%d,"ou":"1","timestamp":%s}`,
		from, to, nonce, strconv.FormatFloat(timestamp, 'f', -1, 64)))
}

// waitForTransaction polls the node until the transaction is known or the confirmation timeout elapses.
func (c *Client) waitForTransaction(ctx context.Context, txHash string) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.ConfirmationTimeout)
	defer cancel()

	ticker := time.NewTicker(c.config.PollInterval)
	defer ticker.Stop()

	for {
		err := c.apiCall(ctx, "confirm", http.MethodGet, "/tx/"+url.PathEscape(txHash), nil, nil)
		if err == nil {
			return nil
		}
		clientLogger.Trace("Transaction ", txHash, " not yet confirmed: ", err.Error())

		select {
		case <-ctx.Done():
			return chain.NewTransactionError(chain.ErrorKindTimeout, "confirm", txHash, "transaction "+txHash+" was not confirmed", ctx.Err())
		case <-ticker.C:
		}
	}
}

// apiCall performs a request against the node and decodes the JSON response into out, if out is not nil. Responses
// with a status of 400 or above are rejected with the response body as detail.
func (c *Client) apiCall(ctx context.Context, op string, method string, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.WithStack(err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.Endpoint+path, reader)
	if err != nil {
		return errors.WithStack(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return chain.NewClientError(chain.ErrorKindTransport, op, "", errors.WithStack(err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return chain.NewClientError(chain.ErrorKindTransport, op, "unable to read response", errors.WithStack(err))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return chain.NewClientError(chain.ErrorKindRejected, op, fmt.Sprintf("api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(data))), nil)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return chain.NewClientError(chain.ErrorKindTransport, op, "malformed response", errors.WithStack(err))
	}
	return nil
}

package octra

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/crytic/abirunner/chain"
	"github.com/crytic/abirunner/execution"
	"github.com/crytic/abirunner/execution/valuegeneration"
	"github.com/crytic/abirunner/schema"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testCaller   = "octCaller"
	testContract = "octContract"
)

// testNode is a minimal in-memory Octra node.
type testNode struct {
	lock         sync.Mutex
	nonce        uint64
	transactions []transactionRequest
	views        []viewRequest
	confirmAfter int
	txLookups    int
}

func (n *testNode) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/balance/", func(w http.ResponseWriter, r *http.Request) {
		n.lock.Lock()
		defer n.lock.Unlock()
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte(`{"balance_raw": "12500000", "nonce": ` + jsonNumber(n.nonce) + `}`))
	})
	mux.HandleFunc("/contract/call-view", func(w http.ResponseWriter, r *http.Request) {
		n.lock.Lock()
		defer n.lock.Unlock()
		var req viewRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		n.views = append(n.views, req)
		switch req.Method {
		case "greetCaller":
			_, _ = w.Write([]byte(`{"status": "success", "result": "Hello, ` + req.Caller + `"}`))
		case "dotProduct":
			_, _ = w.Write([]byte(`{"status": "success", "result": 42}`))
		case "broken":
			_, _ = w.Write([]byte(`{"status": "error", "error": "method reverted"}`))
		default:
			http.Error(w, "unknown method", http.StatusNotFound)
		}
	})
	mux.HandleFunc("/call-contract", func(w http.ResponseWriter, r *http.Request) {
		n.lock.Lock()
		defer n.lock.Unlock()
		var req transactionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		n.transactions = append(n.transactions, req)
		_, _ = w.Write([]byte(`{"tx_hash": "hash-` + jsonNumber(req.Nonce) + `"}`))
	})
	mux.HandleFunc("/tx/", func(w http.ResponseWriter, r *http.Request) {
		n.lock.Lock()
		defer n.lock.Unlock()
		n.txLookups++
		if n.txLookups <= n.confirmAfter {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	})
	return mux
}

func jsonNumber(v uint64) string {
	data, _ := json.Marshal(v)
	return string(data)
}

// newTestClient starts a node and returns a client connected to it.
func newTestClient(t *testing.T, node *testNode, config Config) (*Client, ed25519.PrivateKey) {
	t.Helper()
	server := httptest.NewServer(node.handler(t))
	t.Cleanup(server.Close)

	seed := make([]byte, ed25519.SeedSize)
	key := ed25519.NewKeyFromSeed(seed)
	config.Endpoint = server.URL + "/"
	client, err := NewClient(config, key, testCaller)
	require.NoError(t, err)
	client.now = func() time.Time { return time.Unix(1700000000, 250000000) }
	return client, key
}

// TestBalance verifies the raw balance and nonce are decoded.
func TestBalance(t *testing.T) {
	client, _ := newTestClient(t, &testNode{nonce: 7}, Config{})

	balance, err := client.Balance(context.Background(), testCaller)
	require.NoError(t, err)
	assert.Equal(t, "12500000", balance.Raw.String())
	assert.EqualValues(t, 7, balance.Nonce)
	assert.EqualValues(t, Decimals, balance.Decimals)
}

// TestQuery verifies view calls send rendered parameters and return the result verbatim.
func TestQuery(t *testing.T) {
	node := &testNode{}
	client, _ := newTestClient(t, node, Config{})

	result, err := client.Query(context.Background(), chain.Call{Contract: testContract, Method: "greetCaller", Caller: testCaller})
	require.NoError(t, err)
	assert.Equal(t, "Hello, octCaller", result)

	args := valuegeneration.InvocationArgs{
		{Name: "a", Type: schema.ParamTypeInteger, Value: uint256.NewInt(5)},
		{Name: "b", Type: schema.ParamTypeBoolean, Value: true},
	}
	result, err = client.Query(context.Background(), chain.Call{Contract: testContract, Method: "dotProduct", Caller: testCaller, Args: args})
	require.NoError(t, err)
	assert.Equal(t, "42", result)

	require.Len(t, node.views, 2)
	assert.Equal(t, []string{"5", "true"}, node.views[1].Params)
	assert.Equal(t, testContract, node.views[1].Contract)
}

// TestQueryErrors verifies unsuccessful statuses and HTTP errors are rejected client errors.
func TestQueryErrors(t *testing.T) {
	client, _ := newTestClient(t, &testNode{}, Config{})

	for _, method := range []string{"broken", "missing"} {
		_, err := client.Query(context.Background(), chain.Call{Contract: testContract, Method: method, Caller: testCaller})
		var clientErr *chain.ClientError
		require.ErrorAs(t, err, &clientErr)
		assert.Equal(t, chain.ErrorKindRejected, clientErr.Kind)
	}
}

// TestTransportError verifies an unreachable node is a transport error.
func TestTransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	client, err := NewClient(Config{Endpoint: server.URL, HTTPTimeout: time.Second}, ed25519.NewKeyFromSeed(make([]byte, 32)), testCaller)
	require.NoError(t, err)

	_, err = client.Balance(context.Background(), testCaller)
	var clientErr *chain.ClientError
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, chain.ErrorKindTransport, clientErr.Kind)
}

// TestSubmitTransaction verifies transactions carry the next nonce and a valid signature over the signing blob.
func TestSubmitTransaction(t *testing.T) {
	node := &testNode{nonce: 3}
	client, key := newTestClient(t, node, Config{})

	txHash, err := client.SubmitTransaction(context.Background(), chain.Call{Contract: testContract, Method: "claimToken", Caller: testCaller})
	require.NoError(t, err)
	assert.Equal(t, "hash-4", txHash)

	require.Len(t, node.transactions, 1)
	tx := node.transactions[0]
	assert.EqualValues(t, 4, tx.Nonce)
	assert.Equal(t, 1700000000.25, tx.Timestamp)
	assert.Empty(t, tx.Params)

	publicKey, err := base64.StdEncoding.DecodeString(tx.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, []byte(key.Public().(ed25519.PublicKey)), publicKey)

	signature, err := base64.StdEncoding.DecodeString(tx.Signature)
	require.NoError(t, err)
	blob := `{"from":"octCaller","to_":"octContract","amount":"0","nonce":4,"ou":"1","timestamp":1700000000.25}`
	assert.Equal(t, blob, string(signingBlob(testCaller, testContract, 4, 1700000000.25)))
	assert.True(t, ed25519.Verify(publicKey, []byte(blob), signature))
}

// TestSubmitTransactionNonceKeepsIncreasing verifies a lagging node nonce does not cause nonce reuse.
func TestSubmitTransactionNonceKeepsIncreasing(t *testing.T) {
	node := &testNode{nonce: 3}
	client, _ := newTestClient(t, node, Config{})

	for i := 0; i < 3; i++ {
		_, err := client.SubmitTransaction(context.Background(), chain.Call{Contract: testContract, Method: "claimToken", Caller: testCaller})
		require.NoError(t, err)
	}

	require.Len(t, node.transactions, 3)
	assert.EqualValues(t, 4, node.transactions[0].Nonce)
	assert.EqualValues(t, 5, node.transactions[1].Nonce)
	assert.EqualValues(t, 6, node.transactions[2].Nonce)
}

// TestSubmitTransactionConfirmation verifies the client polls until the transaction is visible.
func TestSubmitTransactionConfirmation(t *testing.T) {
	node := &testNode{confirmAfter: 2}
	client, _ := newTestClient(t, node, Config{ConfirmationTimeout: 5 * time.Second, PollInterval: 10 * time.Millisecond})

	txHash, err := client.SubmitTransaction(context.Background(), chain.Call{Contract: testContract, Method: "claimToken", Caller: testCaller})
	require.NoError(t, err)
	assert.Equal(t, "hash-1", txHash)
	assert.Equal(t, 3, node.txLookups)
}

// TestSubmitTransactionConfirmationTimeout verifies an unconfirmed transaction is a timeout error.
func TestSubmitTransactionConfirmationTimeout(t *testing.T) {
	node := &testNode{confirmAfter: 1 << 30}
	client, _ := newTestClient(t, node, Config{ConfirmationTimeout: 50 * time.Millisecond, PollInterval: 10 * time.Millisecond})

	_, err := client.SubmitTransaction(context.Background(), chain.Call{Contract: testContract, Method: "claimToken", Caller: testCaller})
	var clientErr *chain.ClientError
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, chain.ErrorKindTimeout, clientErr.Kind)
	assert.Equal(t, "hash-1", clientErr.TxID)
	assert.True(t, clientErr.Accepted())
	assert.Len(t, node.transactions, 1)
}

// TestSubmitTransactionRejectsForeignCaller verifies transactions are only signed for the client's own account.
func TestSubmitTransactionRejectsForeignCaller(t *testing.T) {
	node := &testNode{}
	client, _ := newTestClient(t, node, Config{})

	_, err := client.SubmitTransaction(context.Background(), chain.Call{Contract: testContract, Method: "claimToken", Caller: "octSomeoneElse"})
	var clientErr *chain.ClientError
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, chain.ErrorKindRejected, clientErr.Kind)
	assert.False(t, clientErr.Accepted())
	assert.Empty(t, node.transactions)

	txHash, err := client.SubmitTransaction(context.Background(), chain.Call{Contract: testContract, Method: "claimToken"})
	require.NoError(t, err)
	assert.Equal(t, "hash-1", txHash)
	assert.Equal(t, testCaller, node.transactions[0].Caller)
}

// TestPipelineSubmitsUnconfirmedWriteOnce runs a write method whose transaction never confirms through a pipeline
// allowing several attempts, and verifies the node receives a single transaction.
func TestPipelineSubmitsUnconfirmedWriteOnce(t *testing.T) {
	node := &testNode{confirmAfter: 1 << 30}
	client, _ := newTestClient(t, node, Config{ConfirmationTimeout: 30 * time.Millisecond, PollInterval: 10 * time.Millisecond})

	s, err := schema.Parse([]byte(`{"contract": "octContract", "methods": [{"name": "claimToken", "type": "call"}]}`), schema.FormatJSON, "inline", false)
	require.NoError(t, err)
	seed := uint64(1)
	generator := valuegeneration.NewPlaceholderValueGenerator(&valuegeneration.PlaceholderValueGeneratorConfig{StringPlaceholder: "hello"}, valuegeneration.NewRandomProvider(&seed))
	synthesizer := valuegeneration.NewSynthesizer(valuegeneration.SynthesizerConfig{IntegerMin: 1, IntegerMax: 100}, generator)

	pipeline := execution.NewPipeline(execution.PipelineConfig{WriteAttempts: 3}, s, synthesizer, client, testCaller)
	report, err := pipeline.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, execution.OutcomeStatusFailed, report.Outcomes[0].Status)
	assert.Equal(t, 1, report.Outcomes[0].Attempts)
	assert.Equal(t, "hash-1", report.Outcomes[0].Payload)
	assert.Len(t, node.transactions, 1)
}

// TestNewClientRejectsBadEndpoint verifies the endpoint must be an absolute URL.
func TestNewClientRejectsBadEndpoint(t *testing.T) {
	_, err := NewClient(Config{Endpoint: "not a url"}, nil, testCaller)
	assert.Error(t, err)
}

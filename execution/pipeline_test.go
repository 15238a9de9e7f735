package execution

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/crytic/abirunner/chain"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const scenarioSchema = `{
	"contract": "octContract",
	"methods": [
		{"name": "greeting", "mutability": "read", "params": []},
		{"name": "claim", "mutability": "write", "params": [{"name": "amount", "type": "integer"}]}
	]
}`

// expectBalance registers the starting balance lookup every run performs.
func expectBalance(client *chain.MockClient) *gomock.Call {
	return client.EXPECT().Balance(gomock.Any(), testWallet).Return(chain.Balance{Raw: big.NewInt(12_500_000), Nonce: 3, Decimals: 6}, nil)
}

// newTestPipeline creates a pipeline without pacing or retry delays.
func newTestPipeline(t *testing.T, source string, client chain.Client, writeAttempts int) *Pipeline {
	return NewPipeline(PipelineConfig{WriteAttempts: writeAttempts}, mustParseSchema(t, source), newTestSynthesizer(fixedProvider(41)), client, testWallet)
}

// TestPipelineScenario runs a read and a write method and verifies both are recorded in order with their payloads.
func TestPipelineScenario(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := chain.NewMockClient(ctrl)

	var submitted chain.Call
	gomock.InOrder(
		expectBalance(client),
		client.EXPECT().Query(gomock.Any(), gomock.Any()).Return("Hello, oct1abcWallet", nil),
		client.EXPECT().SubmitTransaction(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, call chain.Call) (string, error) {
			submitted = call
			return "tx-1", nil
		}),
	)

	report, err := newTestPipeline(t, scenarioSchema, client, 3).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Outcomes, 2)
	assert.Equal(t, "greeting", report.Outcomes[0].Method)
	assert.Equal(t, OutcomeStatusOK, report.Outcomes[0].Status)
	assert.Equal(t, "Hello, oct1abcWallet", report.Outcomes[0].Payload)
	assert.Equal(t, 1, report.Outcomes[0].Attempts)

	assert.Equal(t, "claim", report.Outcomes[1].Method)
	assert.Equal(t, OutcomeStatusOK, report.Outcomes[1].Status)
	assert.Equal(t, "tx-1", report.Outcomes[1].Payload)
	assert.Equal(t, []string{"42"}, report.Outcomes[1].Args)

	require.Len(t, submitted.Args, 1)
	amount := submitted.Args[0].Value.(*uint256.Int)
	assert.True(t, amount.Uint64() >= 1 && amount.Uint64() <= 100)
	assert.Equal(t, "octContract", submitted.Contract)
	assert.Equal(t, testWallet, submitted.Caller)

	assert.Equal(t, testWallet, report.WalletAddress)
	assert.Equal(t, "octContract", report.Contract)
	assert.Equal(t, "12.5", report.StartingBalance.String())
	assert.False(t, report.FinishedAt.Before(report.StartedAt))
	assert.Equal(t, 2, report.Succeeded())
}

// TestPipelineContinuesAfterFailures verifies a transport failure and an unrecognized parameter type only fail their
// own methods.
func TestPipelineContinuesAfterFailures(t *testing.T) {
	source := `{"contract": "c", "methods": [
		{"name": "first", "type": "view"},
		{"name": "broken", "type": "view", "params": [{"name": "x", "type": "bytes32"}]},
		{"name": "flaky", "type": "view"},
		{"name": "last", "type": "view"}
	]}`

	ctrl := gomock.NewController(t)
	client := chain.NewMockClient(ctrl)
	gomock.InOrder(
		expectBalance(client),
		client.EXPECT().Query(gomock.Any(), gomock.Any()).Return("1", nil),
		client.EXPECT().Query(gomock.Any(), gomock.Any()).Return("", chain.NewClientError(chain.ErrorKindTransport, "query", "", errors.New("connection reset"))),
		client.EXPECT().Query(gomock.Any(), gomock.Any()).Return("4", nil),
	)

	report, err := newTestPipeline(t, source, client, 3).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Outcomes, 4)
	names := []string{}
	for _, outcome := range report.Outcomes {
		names = append(names, outcome.Method)
	}
	assert.Equal(t, []string{"first", "broken", "flaky", "last"}, names)

	assert.True(t, report.Outcomes[0].Succeeded())
	assert.Equal(t, OutcomeStatusFailed, report.Outcomes[1].Status)
	assert.Contains(t, report.Outcomes[1].Error, "bytes32")
	assert.Equal(t, 0, report.Outcomes[1].Attempts)
	assert.Equal(t, OutcomeStatusFailed, report.Outcomes[2].Status)
	assert.Contains(t, report.Outcomes[2].Error, "connection reset")
	assert.Equal(t, "4", report.Outcomes[3].Payload)
	assert.Equal(t, 2, report.Failed())
}

// TestPipelineRetriesWrites verifies writes the chain did not accept are retried up to the attempt limit while reads
// are not.
func TestPipelineRetriesWrites(t *testing.T) {
	source := `{"contract": "c", "methods": [{"name": "read", "type": "view"}, {"name": "write", "type": "call"}, {"name": "doomed", "type": "call"}]}`

	ctrl := gomock.NewController(t)
	client := chain.NewMockClient(ctrl)
	submitErr := chain.NewClientError(chain.ErrorKindRejected, "submit", "nonce too low", nil)
	gomock.InOrder(
		expectBalance(client),
		client.EXPECT().Query(gomock.Any(), gomock.Any()).Return("", errors.New("timeout")).Times(1),
		client.EXPECT().SubmitTransaction(gomock.Any(), gomock.Any()).Return("", submitErr).Times(2),
		client.EXPECT().SubmitTransaction(gomock.Any(), gomock.Any()).Return("tx-ok", nil),
		client.EXPECT().SubmitTransaction(gomock.Any(), gomock.Any()).Return("", submitErr).Times(3),
	)

	report, err := newTestPipeline(t, source, client, 3).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, OutcomeStatusFailed, report.Outcomes[0].Status)
	assert.Equal(t, 1, report.Outcomes[0].Attempts)
	assert.Equal(t, "tx-ok", report.Outcomes[1].Payload)
	assert.Equal(t, 3, report.Outcomes[1].Attempts)
	assert.Equal(t, OutcomeStatusFailed, report.Outcomes[2].Status)
	assert.Equal(t, 3, report.Outcomes[2].Attempts)
	assert.Contains(t, report.Outcomes[2].Error, "nonce too low")
}

// TestPipelineDoesNotResubmitAcceptedWrites verifies a write the chain accepted is never submitted again, whether it
// timed out, reverted or failed in an unclassified way, and that the accepted transaction is kept in the outcome.
func TestPipelineDoesNotResubmitAcceptedWrites(t *testing.T) {
	source := `{"contract": "c", "methods": [{"name": "slow", "type": "call"}, {"name": "reverts", "type": "call"}, {"name": "odd", "type": "call"}]}`

	ctrl := gomock.NewController(t)
	client := chain.NewMockClient(ctrl)
	gomock.InOrder(
		expectBalance(client),
		client.EXPECT().SubmitTransaction(gomock.Any(), gomock.Any()).
			Return("", chain.NewTransactionError(chain.ErrorKindTimeout, "confirm", "tx-slow", "transaction tx-slow was not confirmed", context.DeadlineExceeded)).Times(1),
		client.EXPECT().SubmitTransaction(gomock.Any(), gomock.Any()).
			Return("", chain.NewTransactionError(chain.ErrorKindReverted, "submit", "tx-reverted", "transaction tx-reverted reverted", nil)).Times(1),
		client.EXPECT().SubmitTransaction(gomock.Any(), gomock.Any()).Return("", errors.New("unable to sign")).Times(1),
	)

	report, err := newTestPipeline(t, source, client, 3).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Outcomes, 3)
	assert.Equal(t, OutcomeStatusFailed, report.Outcomes[0].Status)
	assert.Equal(t, 1, report.Outcomes[0].Attempts)
	assert.Equal(t, "tx-slow", report.Outcomes[0].Payload)
	assert.Contains(t, report.Outcomes[0].Error, "not confirmed")

	assert.Equal(t, OutcomeStatusFailed, report.Outcomes[1].Status)
	assert.Equal(t, 1, report.Outcomes[1].Attempts)
	assert.Equal(t, "tx-reverted", report.Outcomes[1].Payload)

	assert.Equal(t, 1, report.Outcomes[2].Attempts)
	assert.Empty(t, report.Outcomes[2].Payload)
}

// TestPipelineEmptyTransactionID verifies a write without a transaction identifier is a failure.
func TestPipelineEmptyTransactionID(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := chain.NewMockClient(ctrl)
	gomock.InOrder(
		expectBalance(client),
		client.EXPECT().SubmitTransaction(gomock.Any(), gomock.Any()).Return("", nil),
	)

	report, err := newTestPipeline(t, `{"methods": [{"name": "w", "type": "call"}]}`, client, 1).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeStatusFailed, report.Outcomes[0].Status)
	assert.Contains(t, report.Outcomes[0].Error, ErrNoTransactionID.Error())
}

// TestPipelineBalanceFailureIsFatal verifies no method is invoked if the starting balance cannot be fetched.
func TestPipelineBalanceFailureIsFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := chain.NewMockClient(ctrl)
	client.EXPECT().Balance(gomock.Any(), testWallet).Return(chain.Balance{}, errors.New("unreachable"))

	report, err := newTestPipeline(t, scenarioSchema, client, 3).Run(context.Background())
	assert.Nil(t, report)
	var invocationErr *InvocationError
	require.ErrorAs(t, err, &invocationErr)
	assert.Empty(t, invocationErr.Method)
}

// TestPipelineCancellation verifies cancelled runs still record every method.
func TestPipelineCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctrl := gomock.NewController(t)
	client := chain.NewMockClient(ctrl)
	gomock.InOrder(
		expectBalance(client),
		client.EXPECT().Query(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, call chain.Call) (string, error) {
			cancel()
			return "done", nil
		}),
	)

	report, err := newTestPipeline(t, scenarioSchema, client, 3).Run(ctx)
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 2)
	assert.True(t, report.Outcomes[0].Succeeded())
	assert.Equal(t, OutcomeStatusFailed, report.Outcomes[1].Status)
	assert.Equal(t, context.Canceled.Error(), report.Outcomes[1].Error)
}

// TestPipelineStateChanges verifies the state machine transitions emitted during a run.
func TestPipelineStateChanges(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := chain.NewMockClient(ctrl)
	expectBalance(client)
	client.EXPECT().Query(gomock.Any(), gomock.Any()).Return("hi", nil)
	client.EXPECT().SubmitTransaction(gomock.Any(), gomock.Any()).Return("tx", nil)

	pipeline := newTestPipeline(t, scenarioSchema, client, 3)
	var changes []StateChange
	pipeline.StateChanges.Subscribe(func(change StateChange) {
		changes = append(changes, change)
	})

	_, err := pipeline.Run(context.Background())
	require.NoError(t, err)

	states := make([]State, len(changes))
	for i, change := range changes {
		states[i] = change.State
	}
	assert.Equal(t, []State{StatePending, StatePending, StateInvoking, StateRecorded, StateInvoking, StateRecorded, StateComplete}, states)
	require.NotNil(t, changes[3].Outcome)
	assert.Equal(t, "greeting", changes[3].Outcome.Method)
	assert.Equal(t, -1, changes[6].Index)
}

// TestPipelinePacesCalls verifies the call interval separates consecutive invocations.
func TestPipelinePacesCalls(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := chain.NewMockClient(ctrl)
	expectBalance(client)

	var calledAt []time.Time
	client.EXPECT().Query(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, call chain.Call) (string, error) {
		calledAt = append(calledAt, time.Now())
		return "ok", nil
	}).Times(3)

	source := `{"methods": [{"name": "a", "type": "view"}, {"name": "b", "type": "view"}, {"name": "c", "type": "view"}]}`
	interval := 50 * time.Millisecond
	pipeline := NewPipeline(PipelineConfig{WriteAttempts: 1, CallInterval: interval}, mustParseSchema(t, source), newTestSynthesizer(fixedProvider(0)), client, testWallet)

	_, err := pipeline.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, calledAt, 3)
	// Allow some slack for the limiter's token accounting.
	assert.GreaterOrEqual(t, calledAt[2].Sub(calledAt[0]), 2*interval-10*time.Millisecond)
}

// TestPipelineEmptySchema verifies a schema without methods yields an empty report.
func TestPipelineEmptySchema(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := chain.NewMockClient(ctrl)
	expectBalance(client)

	report, err := newTestPipeline(t, `{"methods": []}`, client, 3).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Outcomes)
}

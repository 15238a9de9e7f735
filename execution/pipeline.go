package execution

import (
	"context"
	"time"

	"github.com/crytic/abirunner/chain"
	"github.com/crytic/abirunner/events"
	"github.com/crytic/abirunner/execution/valuegeneration"
	"github.com/crytic/abirunner/logging"
	"github.com/crytic/abirunner/logging/colors"
	"github.com/crytic/abirunner/schema"
	"github.com/crytic/abirunner/utils"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// State describes where a method is in the execution pipeline.
type State int

const (
	// StatePending describes a method that has not been invoked yet.
	StatePending State = iota
	// StateInvoking describes the method currently being synthesized and invoked.
	StateInvoking
	// StateRecorded describes a method whose outcome has been recorded.
	StateRecorded
	// StateComplete describes a run in which every method has been recorded.
	StateComplete
)

// String returns a human-readable name of the state.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateInvoking:
		return "invoking"
	case StateRecorded:
		return "recorded"
	case StateComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// StateChange describes a single pipeline state transition.
type StateChange struct {
	// Index is the position of the method in the schema. It is -1 for StateComplete.
	Index int
	// Method is the name of the method. It is empty for StateComplete.
	Method string
	// State is the state entered.
	State State
	// Outcome is the recorded outcome for StateRecorded, nil otherwise.
	Outcome *OutcomeRecord
}

// PipelineConfig describes the pacing and retry policy of a Pipeline.
type PipelineConfig struct {
	// WriteAttempts is the number of times a write method is invoked before it is recorded as failed. Values below
	// one are treated as one.
	WriteAttempts int
	// RetryDelay is the delay between write attempts.
	RetryDelay time.Duration
	// CallInterval is the minimum delay between two method invocations. Zero disables pacing.
	CallInterval time.Duration
}

// Pipeline executes every method of a schema once, in order, recording an outcome for each.
type Pipeline struct {
	// StateChanges publishes every state transition of a run.
	StateChanges events.EventEmitter[StateChange]

	config        PipelineConfig
	schema        *schema.Schema
	synthesizer   *valuegeneration.Synthesizer
	client        chain.Client
	dispatcher    *Dispatcher
	walletAddress string
	logger        *logging.Logger
}

// NewPipeline creates a Pipeline executing the schema's methods through client on behalf of walletAddress.
func NewPipeline(config PipelineConfig, s *schema.Schema, synthesizer *valuegeneration.Synthesizer, client chain.Client, walletAddress string) *Pipeline {
	if config.WriteAttempts < 1 {
		config.WriteAttempts = 1
	}
	return &Pipeline{
		config:        config,
		schema:        s,
		synthesizer:   synthesizer,
		client:        client,
		dispatcher:    NewDispatcher(client, s.Contract(), walletAddress),
		walletAddress: walletAddress,
		logger:        logging.GlobalLogger.NewSubLogger("module", logging.EXECUTION_SERVICE),
	}
}

// Run fetches the wallet's starting balance and then synthesizes, invokes and records every method in schema order.
// Method failures are recorded and do not stop the run; if ctx is cancelled, the remaining methods are recorded as
// failed with the context error. Returns an error only if the starting balance cannot be fetched or the report
// cannot be assembled.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	meta := RunMetadata{
		RunID:         uuid.New(),
		Contract:      p.schema.Contract(),
		SchemaDigest:  p.schema.Digest(),
		WalletAddress: p.walletAddress,
		StartedAt:     time.Now(),
	}

	balance, err := p.client.Balance(ctx, p.walletAddress)
	if err != nil {
		return nil, &InvocationError{Cause: errors.Wrap(err, "unable to fetch starting balance")}
	}
	if balance.Raw != nil {
		meta.StartingBalance = decimal.NewFromBigInt(balance.Raw, -balance.Decimals)
	}
	p.logger.Info("Wallet ", colors.Bold, p.walletAddress, colors.Reset, " balance: ", colors.Bold, meta.StartingBalance.String(), colors.Reset, " (nonce ", balance.Nonce, ")")

	methods := p.schema.Methods()
	for i, method := range methods {
		p.emit(StateChange{Index: i, Method: method.Name, State: StatePending})
	}

	var limiter *rate.Limiter
	if p.config.CallInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(p.config.CallInterval), 1)
	}

	outcomes := make([]OutcomeRecord, 0, len(methods))
	for i, method := range methods {
		p.emit(StateChange{Index: i, Method: method.Name, State: StateInvoking})

		outcome := p.execute(ctx, limiter, method)
		outcomes = append(outcomes, outcome)
		p.logOutcome(outcome)
		p.emit(StateChange{Index: i, Method: method.Name, State: StateRecorded, Outcome: &outcome})
	}

	meta.FinishedAt = time.Now()
	report, err := Assemble(meta, methods, outcomes)
	if err != nil {
		return nil, err
	}
	p.emit(StateChange{Index: -1, State: StateComplete})
	return report, nil
}

// execute synthesizes and invokes a single method, retrying writes, and returns its outcome.
func (p *Pipeline) execute(ctx context.Context, limiter *rate.Limiter, method schema.MethodSpec) OutcomeRecord {
	start := time.Now()
	outcome := OutcomeRecord{
		Method:     method.Name,
		Label:      method.DisplayName(),
		Mutability: method.Mutability,
		Args:       []string{},
	}
	fail := func(err error) OutcomeRecord {
		outcome.Status = OutcomeStatusFailed
		outcome.Error = err.Error()
		outcome.Duration = time.Since(start)
		return outcome
	}

	if utils.CheckContextDone(ctx) {
		return fail(ctx.Err())
	}
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return fail(err)
		}
	}

	p.logger.Info(colors.LEFT_ARROW, " Executing ", colors.Bold, outcome.Label, colors.Reset, " (", method.Mutability.String(), ")")

	args, err := p.synthesizer.Synthesize(method, p.walletAddress)
	if err != nil {
		return fail(err)
	}
	outcome.Args = args.Strings()

	attempts := 1
	if method.Mutability == schema.MutabilityWrite {
		attempts = p.config.WriteAttempts
	}

	var result CallResult
	for attempt := 1; attempt <= attempts; attempt++ {
		outcome.Attempts = attempt
		result, err = p.dispatcher.Invoke(ctx, method, args)
		if err == nil {
			break
		}
		if attempt == attempts || !retryable(err) {
			break
		}

		p.logger.Warn("Attempt ", attempt, "/", attempts, " of ", outcome.Label, " failed: ", err.Error())
		if waitErr := utils.SleepContext(ctx, p.config.RetryDelay); waitErr != nil {
			err = waitErr
			break
		}
	}
	if err != nil {
		var clientErr *chain.ClientError
		if errors.As(err, &clientErr) && clientErr.TxID != "" {
			outcome.Payload = clientErr.TxID
		}
		return fail(err)
	}

	outcome.Status = OutcomeStatusOK
	outcome.Payload = result.Payload
	outcome.Duration = time.Since(start)
	return outcome
}

// retryable returns whether a failed write may be submitted again. Only submissions the chain did not accept are
// retried, so a method is never executed on chain more than once.
func retryable(err error) bool {
	if errors.Is(err, ErrNoTransactionID) {
		return true
	}
	var clientErr *chain.ClientError
	if !errors.As(err, &clientErr) || clientErr.Accepted() {
		return false
	}
	return clientErr.Kind == chain.ErrorKindTransport || clientErr.Kind == chain.ErrorKindRejected
}

// logOutcome logs the recorded outcome of a method.
func (p *Pipeline) logOutcome(outcome OutcomeRecord) {
	switch {
	case !outcome.Succeeded():
		p.logger.Error(colors.RedBold, colors.CROSS_MARK, " ", outcome.Label, colors.Reset, ": ", outcome.Error)
	case outcome.Mutability == schema.MutabilityWrite:
		p.logger.Info(colors.GreenBold, colors.CHECK_MARK, " ", outcome.Label, colors.Reset, ": TX Hash ", outcome.Payload)
	default:
		p.logger.Info(colors.GreenBold, colors.CHECK_MARK, " ", outcome.Label, colors.Reset, ": ", outcome.Payload)
	}
}

// emit logs a state transition and publishes it to StateChanges subscribers.
func (p *Pipeline) emit(change StateChange) {
	p.logger.Debug("Method ", change.Method, " is ", change.State.String())
	p.StateChanges.Publish(change)
}

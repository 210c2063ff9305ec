// Package transfer runs one native SOL transfer through its lifecycle:
// resolve the sender, check its balance, build and sign, submit, confirm.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/rs/zerolog"

	"github.com/eigerco/blocktransfer/internal/keys"
	"github.com/eigerco/blocktransfer/internal/ledger"
	"github.com/eigerco/blocktransfer/internal/safemath"
	"github.com/eigerco/blocktransfer/pkg/log"
)

// Ledger is the part of the cluster the executor talks to.
type Ledger interface {
	GetBalance(ctx context.Context, account solana.PublicKey) (uint64, error)
	GetLatestBlockReference(ctx context.Context) (solana.Hash, error)
	SubmitTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	GetTransactionStatus(ctx context.Context, sig solana.Signature) (ledger.Status, error)
}

// Sink receives every outcome the executor produces.
type Sink interface {
	Record(ctx context.Context, outcome Outcome) error
}

type Option func(*Executor)

// WithFeeReserve keeps lamports aside for fees: the balance must cover amount+reserve.
func WithFeeReserve(lamports uint64) Option {
	return func(e *Executor) {
		e.feeReserve = lamports
	}
}

func WithSinks(sinks ...Sink) Option {
	return func(e *Executor) {
		e.sinks = append(e.sinks, sinks...)
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(e *Executor) {
		e.log = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		e.now = now
	}
}

// Executor is safe for concurrent use as long as the Ledger is.
type Executor struct {
	ledger     Ledger
	feeReserve uint64
	sinks      []Sink
	log        zerolog.Logger
	now        func() time.Time
}

func NewExecutor(l Ledger, opts ...Option) *Executor {
	e := &Executor{
		ledger: l,
		log:    log.Transfer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// attempt carries the state of one Execute call across stages.
type attempt struct {
	req     Request
	started time.Time
	stage   Stage
	sender  string
	sig     *solana.Signature
}

// Execute runs req to completion and returns its outcome. The error is nil
// only when the outcome is StatusSuccess, otherwise it is a *Error.
func (e *Executor) Execute(ctx context.Context, req Request) (Outcome, error) {
	a := &attempt{req: req, started: e.now(), stage: StageResolve}
	status, err := e.run(ctx, a)

	outcome := Outcome{
		AttemptID:  req.ID(),
		Sender:     a.sender,
		Recipient:  req.Recipient(),
		Amount:     req.Amount(),
		Signature:  a.sig,
		Status:     status,
		Stage:      a.stage,
		FinishedAt: e.now(),
	}
	outcome.Elapsed = outcome.FinishedAt.Sub(a.started)
	if err != nil {
		outcome.Reason = err.Error()
		err = &Error{
			AttemptID: req.ID(),
			Sender:    a.sender,
			Recipient: req.Recipient(),
			Stage:     a.stage,
			Err:       err,
		}
	}

	e.logOutcome(outcome)
	e.record(ctx, outcome)
	return outcome, err
}

func (e *Executor) run(ctx context.Context, a *attempt) (Status, error) {
	id, err := keys.Resolve(a.req.senderSecret)
	if err != nil {
		return StatusFailed, err
	}
	a.sender = id.Address.String()
	recipient, err := keys.ParseAddress(a.req.Recipient())
	if err != nil {
		return StatusFailed, err
	}

	a.stage = StageBalanceCheck
	required, ok := safemath.Add64(a.req.Amount(), e.feeReserve)
	if !ok {
		return StatusFailed, fmt.Errorf("amount plus fee reserve: %w", safemath.ErrOverflow)
	}
	balance, err := e.ledger.GetBalance(ctx, id.Address)
	if err != nil {
		return StatusFailed, err
	}
	if balance < required {
		return StatusFailed, &InsufficientFundsError{Sender: id.Address, Required: required, Available: balance}
	}

	a.stage = StageBuildAndSign
	tx, err := e.buildAndSign(ctx, id, recipient, a.req.Amount())
	if err != nil {
		return StatusFailed, err
	}

	a.stage = StageSubmit
	sig, err := e.ledger.SubmitTransaction(ctx, tx)
	if err != nil {
		return StatusFailed, fmt.Errorf("%w: %w", ErrSubmitFailed, err)
	}
	a.sig = &sig

	a.stage = StageConfirm
	status, err := e.ledger.GetTransactionStatus(ctx, sig)
	if err != nil {
		// the transaction left the process, so its fate is not known
		return StatusUnknown, fmt.Errorf("%w: %w", ErrUnknownOutcome, err)
	}
	switch status.State {
	case ledger.Succeeded:
		return StatusSuccess, nil
	case ledger.Failed:
		return StatusFailed, &ledger.OnChainError{Reason: status.Reason}
	default:
		return StatusUnknown, fmt.Errorf("%w: signature %s not observed", ErrUnknownOutcome, sig)
	}
}

func (e *Executor) buildAndSign(ctx context.Context, id keys.Identity, recipient solana.PublicKey, amount uint64) (*solana.Transaction, error) {
	blockhash, err := e.ledger.GetLatestBlockReference(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			system.NewTransferInstruction(amount, id.Address, recipient).Build(),
		},
		blockhash,
		solana.TransactionPayer(id.Address),
	)
	if err != nil {
		return nil, fmt.Errorf("build transaction: %w", err)
	}
	if _, err := tx.Sign(id.Signer()); err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	return tx, nil
}

func (e *Executor) logOutcome(o Outcome) {
	var event *zerolog.Event
	switch o.Status {
	case StatusSuccess:
		event = e.log.Info()
	case StatusUnknown:
		event = e.log.Warn()
	default:
		event = e.log.Error()
	}
	event = event.
		Str("attempt", o.AttemptID.String()).
		Str("from", o.Sender).
		Str("to", o.Recipient).
		Str("amount_sol", ledger.FormatSOL(o.Amount)).
		Stringer("stage", o.Stage).
		Dur("elapsed", o.Elapsed)
	if o.Signature != nil {
		event = event.Stringer("signature", o.Signature)
	}
	if o.Reason != "" {
		event = event.Str("reason", o.Reason)
	}
	event.Msgf("transfer %s", o.Status)
}

func (e *Executor) record(ctx context.Context, o Outcome) {
	var errs []error
	for _, sink := range e.sinks {
		if err := sink.Record(ctx, o); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		e.log.Warn().Err(err).Str("attempt", o.AttemptID.String()).Msg("failed to record outcome")
	}
}

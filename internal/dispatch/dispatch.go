// Package dispatch fans a transfer out from every sender to every recipient
// and collects all outcomes.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/eigerco/blocktransfer/internal/ledger"
	"github.com/eigerco/blocktransfer/internal/transfer"
	"github.com/eigerco/blocktransfer/pkg/log"
)

// ErrTaskFailed marks a task that crashed instead of producing an outcome.
var ErrTaskFailed = errors.New("transfer task failed")

// TaskError carries the recovered panic of a crashed task.
type TaskError struct {
	Recipient string
	Panic     any
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("%v for recipient %s: %v", ErrTaskFailed, e.Recipient, e.Panic)
}

func (e *TaskError) Unwrap() error {
	return ErrTaskFailed
}

// Executor runs a single transfer.
type Executor interface {
	Execute(ctx context.Context, req transfer.Request) (transfer.Outcome, error)
}

type Option func(*Dispatcher)

// WithConcurrency bounds the number of transfers in flight. 0 means no bound.
func WithConcurrency(n int) Option {
	return func(d *Dispatcher) {
		d.concurrency = n
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(d *Dispatcher) {
		d.log = logger
	}
}

type Dispatcher struct {
	exec        Executor
	concurrency int
	log         zerolog.Logger
}

func New(exec Executor, opts ...Option) *Dispatcher {
	d := &Dispatcher{exec: exec, log: log.Dispatch}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Result holds one entry per sender/recipient pair.
type Result struct {
	Successes []transfer.Outcome
	Failures  []error
}

func (r Result) SuccessCount() int { return len(r.Successes) }
func (r Result) FailureCount() int { return len(r.Failures) }
func (r Result) Total() int        { return len(r.Successes) + len(r.Failures) }

// Run sends amount lamports from each sender to each recipient. Every
// transfer runs to completion; a failing one never stops the others.
func (d *Dispatcher) Run(ctx context.Context, senders, recipients []string, amount uint64) Result {
	var (
		mu     sync.Mutex
		result Result
	)
	collect := func(outcome transfer.Outcome, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			result.Failures = append(result.Failures, err)
			return
		}
		result.Successes = append(result.Successes, outcome)
	}

	d.log.Info().
		Int("senders", len(senders)).
		Int("recipients", len(recipients)).
		Str("amount_sol", ledger.FormatSOL(amount)).
		Msg("starting fan-out")

	var g errgroup.Group
	if d.concurrency > 0 {
		g.SetLimit(d.concurrency)
	}
	for _, sender := range senders {
		for _, recipient := range recipients {
			req := transfer.NewRequest(sender, recipient, amount)
			g.Go(func() error {
				collect(d.execute(ctx, req))
				return nil
			})
		}
	}
	_ = g.Wait() // tasks never return an error

	d.log.Info().
		Int("successful", result.SuccessCount()).
		Int("failed", result.FailureCount()).
		Msg("fan-out finished")
	return result
}

func (d *Dispatcher) execute(ctx context.Context, req transfer.Request) (outcome transfer.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Str("attempt", req.ID().String()).Interface("panic", r).Msg("transfer task crashed")
			outcome, err = transfer.Outcome{}, &TaskError{Recipient: req.Recipient(), Panic: r}
		}
	}()
	outcome, err = d.exec.Execute(ctx, req)
	if err == nil && !outcome.Succeeded() {
		err = fmt.Errorf("transfer %s finished with status %s", req.ID(), outcome.Status)
	}
	return outcome, err
}

// Summary writes a human readable report of the run.
func (r Result) Summary(w io.Writer) error {
	p := &printer{w: w}
	p.printf("\n=== Transfer Summary ===\n")
	p.printf("Total transfers: %d\n", r.Total())
	p.printf("Successful: %d\n", r.SuccessCount())
	p.printf("Failed: %d\n", r.FailureCount())

	if len(r.Failures) > 0 {
		p.printf("\nFailed transfers:\n")
		for _, err := range r.Failures {
			p.printf("- %v\n", err)
		}
	}

	if len(r.Successes) > 0 {
		p.printf("\nSuccessful transfers:\n")
		for _, o := range r.Successes {
			signature := "-"
			if o.Signature != nil {
				signature = o.Signature.String()
			}
			p.printf("- From: %s\n  To: %s\n  Amount: %s SOL\n  Signature: %s\n  Time: %s\n",
				o.Sender, o.Recipient, ledger.FormatSOL(o.Amount), signature, o.Elapsed)
		}
	}
	return p.err
}

type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

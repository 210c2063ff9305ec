package transfer

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	"github.com/eigerco/blocktransfer/internal/ledger"
	"github.com/eigerco/blocktransfer/internal/safemath"
)

var (
	ErrSubmitFailed   = errors.New("submit failed")
	ErrUnknownOutcome = errors.New("transaction outcome unknown")
)

// InsufficientFundsError is returned when the sender balance does not cover
// the amount plus the fee reserve.
type InsufficientFundsError struct {
	Sender    solana.PublicKey
	Required  uint64
	Available uint64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient balance for sender %s. Required: %s SOL, Available: %s SOL",
		e.Sender, ledger.FormatSOL(e.Required), ledger.FormatSOL(e.Available))
}

// Shortfall is how many lamports are missing.
func (e *InsufficientFundsError) Shortfall() uint64 {
	missing, ok := safemath.Sub64(e.Required, e.Available)
	if !ok {
		return 0
	}
	return missing
}

// Error wraps every non-successful attempt with the context needed to act on it.
type Error struct {
	AttemptID uuid.UUID
	Sender    string
	Recipient string
	Stage     Stage
	Err       error
}

func (e *Error) Error() string {
	sender := e.Sender
	if sender == "" {
		sender = "<undecodable sender>"
	}
	return fmt.Sprintf("transfer from %s to %s failed at %s: %v", sender, e.Recipient, e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

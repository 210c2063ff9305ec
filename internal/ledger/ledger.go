// Package ledger is the boundary to the Solana cluster: balance reads, recent
// blockhash lookups, transaction submission and signature status polling.
package ledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go/rpc"
)

// State of a submitted transaction as observed by one status poll.
type State uint8

const (
	Pending State = iota // not (yet) observed by the cluster
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Status is the result of a single signature status query.
type Status struct {
	State  State
	Reason string // on-chain error, set only when State is Failed
}

var ErrUnknownCommitment = errors.New("unknown commitment level")

// TransportError means the request never got an answer from the cluster:
// connection failures, timeouts, malformed responses.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("ledger %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// OnChainError means the cluster itself rejected or reverted the transaction.
type OnChainError struct {
	Code   int
	Reason string
}

func (e *OnChainError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("rejected by ledger (code %d): %s", e.Code, e.Reason)
	}
	return "rejected by ledger: " + e.Reason
}

// ParseCommitment maps a configured commitment name to the RPC type.
func ParseCommitment(name string) (rpc.CommitmentType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "processed":
		return rpc.CommitmentProcessed, nil
	case "", "confirmed":
		return rpc.CommitmentConfirmed, nil
	case "finalized":
		return rpc.CommitmentFinalized, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCommitment, name)
	}
}

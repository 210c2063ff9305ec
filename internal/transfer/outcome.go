package transfer

import (
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
)

// Status is the final classification of a transfer attempt.
type Status uint8

const (
	StatusFailed Status = iota
	StatusSuccess
	StatusUnknown
)

var statusNames = map[Status]string{
	StatusFailed:  "failed",
	StatusSuccess: "success",
	StatusUnknown: "unknown",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	for status, name := range statusNames {
		if name == string(text) {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("unknown transfer status %q", text)
}

// Stage is a step of the transfer state machine. Stages only move forward.
type Stage uint8

const (
	StageResolve Stage = iota
	StageBalanceCheck
	StageBuildAndSign
	StageSubmit
	StageConfirm
)

var stageNames = map[Stage]string{
	StageResolve:      "resolve",
	StageBalanceCheck: "balance-check",
	StageBuildAndSign: "build-and-sign",
	StageSubmit:       "submit",
	StageConfirm:      "confirm",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("stage(%d)", uint8(s))
}

func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Stage) UnmarshalText(text []byte) error {
	for stage, name := range stageNames {
		if name == string(text) {
			*s = stage
			return nil
		}
	}
	return fmt.Errorf("unknown transfer stage %q", text)
}

// Outcome is produced exactly once per attempt and never changed afterwards.
type Outcome struct {
	AttemptID  uuid.UUID         `json:"attempt_id"`
	Sender     string            `json:"sender"` // empty when the secret could not be decoded
	Recipient  string            `json:"recipient"`
	Amount     uint64            `json:"amount_lamports"`
	Signature  *solana.Signature `json:"signature,omitempty"` // set once submit succeeded
	Status     Status            `json:"status"`
	Stage      Stage             `json:"stage"` // last stage entered
	Reason     string            `json:"reason,omitempty"`
	Elapsed    time.Duration     `json:"elapsed_ns"`
	FinishedAt time.Time         `json:"finished_at"`
}

// Succeeded reports whether the transfer is confirmed without error.
func (o Outcome) Succeeded() bool {
	return o.Status == StatusSuccess
}

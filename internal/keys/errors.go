package keys

import (
	"errors"
	"strings"
)

var (
	ErrUnrecognizedFormat = errors.New("unrecognized secret format, expected byte array, hex or base58")
	ErrInvalidAddress     = errors.New("invalid address")
	ErrEmptySecret        = errors.New("empty secret")
	ErrNotApplicable      = errors.New("encoding not applicable")
	ErrDecodePanic        = errors.New("decoder panicked")
)

// StrategyFailure records why one encoding was rejected.
type StrategyFailure struct {
	Encoding string
	Err      error
}

// DecodeError is returned when no encoding yields a valid keypair.
// It never contains the secret itself.
type DecodeError struct {
	Failures []StrategyFailure
}

func (e *DecodeError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.Encoding+": "+f.Err.Error())
	}
	return ErrUnrecognizedFormat.Error() + " (" + strings.Join(parts, "; ") + ")"
}

func (e *DecodeError) Unwrap() error {
	return ErrUnrecognizedFormat
}

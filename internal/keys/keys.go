// Package keys turns configured secret text into a signing identity.
//
// Secrets may be written as a bracketed byte list ("[12, 250, ...]", the
// format produced by solana-keygen), as hex with an optional 0x prefix, or as
// a base-58 string. Decoding is a pure transform.
package keys

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"

	"github.com/eigerco/blocktransfer/internal/crypto/ed25519"
)

// Identity is a public address plus the private material able to sign for it.
// It is derived per transfer attempt and never persisted.
type Identity struct {
	Address    solana.PublicKey
	PrivateKey solana.PrivateKey
}

// Signer returns the key getter expected by solana.Transaction.Sign.
func (id Identity) Signer() func(solana.PublicKey) *solana.PrivateKey {
	return func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(id.Address) {
			pk := id.PrivateKey
			return &pk
		}
		return nil
	}
}

type strategy struct {
	encoding string
	decode   func(secret string) ([]byte, error)
}

// strategies are tried in order, the first one producing a valid keypair wins.
var strategies = []strategy{
	{encoding: "byte array", decode: decodeByteArray},
	{encoding: "hex", decode: decodeHex},
	{encoding: "base58", decode: decodeBase58},
}

// Resolve decodes secret into an Identity.
func Resolve(secret string) (Identity, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return Identity{}, &DecodeError{Failures: []StrategyFailure{{Encoding: "any", Err: ErrEmptySecret}}}
	}

	var failures []StrategyFailure
	for _, s := range strategies {
		raw, err := attempt(s, secret)
		if err == nil {
			err = ed25519.ValidateKeypair(raw)
		}
		if err != nil {
			failures = append(failures, StrategyFailure{Encoding: s.encoding, Err: err})
			continue
		}
		pk := solana.PrivateKey(raw)
		return Identity{Address: pk.PublicKey(), PrivateKey: pk}, nil
	}
	return Identity{}, &DecodeError{Failures: failures}
}

// attempt runs a single strategy, converting a panic into an error so that a
// malformed secret can never take the process down.
func attempt(s strategy, secret string) (raw []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			raw = nil
			err = fmt.Errorf("%w: %v", ErrDecodePanic, r)
		}
	}()
	return s.decode(secret)
}

func decodeByteArray(secret string) ([]byte, error) {
	if !strings.HasPrefix(secret, "[") || !strings.HasSuffix(secret, "]") {
		return nil, ErrNotApplicable
	}
	var values []int
	if err := json.Unmarshal([]byte(secret), &values); err != nil {
		return nil, fmt.Errorf("parse byte array: %w", err)
	}
	raw := make([]byte, len(values))
	for i, v := range values {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("byte array element %d out of range", i)
		}
		raw[i] = byte(v)
	}
	return raw, nil
}

func decodeHex(secret string) ([]byte, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(secret, "0x"))
	if err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}
	return raw, nil
}

func decodeBase58(secret string) ([]byte, error) {
	pk, err := solana.PrivateKeyFromBase58(secret)
	if err != nil {
		return nil, fmt.Errorf("decode base58: %w", err)
	}
	return pk, nil
}

// ParseAddress decodes a base-58 account address.
func ParseAddress(address string) (solana.PublicKey, error) {
	pub, err := solana.PublicKeyFromBase58(strings.TrimSpace(address))
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w %q: %v", ErrInvalidAddress, address, err)
	}
	return pub, nil
}

// Package ed25519 provides a drop-in replacement for crypto/ed25519
// with ZIP-215 compliant signature verification.
package ed25519

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"fmt"
	"io"

	"github.com/hdevalence/ed25519consensus"
)

type (
	PublicKey  = ed25519.PublicKey
	PrivateKey = ed25519.PrivateKey
)

const (
	PublicKeySize  = ed25519.PublicKeySize
	PrivateKeySize = ed25519.PrivateKeySize
	SignatureSize  = ed25519.SignatureSize
	SeedSize       = ed25519.SeedSize
)

var (
	ErrKeyLength      = errors.New("invalid private key length")
	ErrPublicMismatch = errors.New("public key does not match seed")
	ErrProbeSignature = errors.New("probe signature does not verify")
)

// probeMessage is signed and verified to prove a keypair is usable.
var probeMessage = []byte("blocktransfer keypair probe")

// GenerateKey uses the standard library's key generation.
func GenerateKey(rand io.Reader) (PublicKey, PrivateKey, error) {
	return ed25519.GenerateKey(rand)
}

// NewKeyFromSeed uses the standard library's function.
func NewKeyFromSeed(seed []byte) PrivateKey {
	return ed25519.NewKeyFromSeed(seed)
}

// Sign uses the standard library's signing function.
func Sign(privateKey PrivateKey, message []byte) []byte {
	return ed25519.Sign(privateKey, message)
}

// Verify uses the hdevalence/ed25519consensus library for
// ZIP-215 compliant verification.
func Verify(publicKey PublicKey, message, sig []byte) bool {
	return ed25519consensus.Verify(publicKey, message, sig)
}

// ZeroPublicKey is pre-allocated to avoid allocations in IsEmpty.
var ZeroPublicKey = make([]byte, PublicKeySize)

// IsEmpty checks if the given public key is empty or all zeros.
func IsEmpty(pk PublicKey) bool {
	return len(pk) == 0 || bytes.Equal(pk, ZeroPublicKey)
}

// ValidateKeypair checks that raw is a 64 byte seed||public keypair whose
// public half is derived from the seed and which produces verifiable signatures.
func ValidateKeypair(raw []byte) error {
	if len(raw) != PrivateKeySize {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrKeyLength, len(raw), PrivateKeySize)
	}
	derived := NewKeyFromSeed(raw[:SeedSize])
	pub := PublicKey(raw[SeedSize:])
	if IsEmpty(pub) || !bytes.Equal(derived[SeedSize:], pub) {
		return ErrPublicMismatch
	}
	if !Verify(pub, probeMessage, Sign(derived, probeMessage)) {
		return ErrProbeSignature
	}
	return nil
}

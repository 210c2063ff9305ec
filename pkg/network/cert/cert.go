// Package cert generates and checks the self-signed Ed25519 certificates
// used by feed endpoints that are not backed by a public CA.
package cert

import (
	"bytes"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"net"
	"time"

	"github.com/eigerco/blocktransfer/internal/crypto/ed25519"
)

// Generator creates TLS certificates with Ed25519 keys.
type Generator struct {
	config Config
}

// Config contains the parameters needed for certificate generation.
type Config struct {
	// PublicKey is the Ed25519 public key to embed in the certificate
	PublicKey ed25519.PublicKey
	// PrivateKey is used to sign the certificate
	PrivateKey ed25519.PrivateKey
	// Hosts are DNS names or IP addresses the certificate is issued for
	Hosts []string
	// CertValidityPeriod defines how long the certificate remains valid
	CertValidityPeriod time.Duration
}

// NewGenerator creates a new certificate generator with the given configuration.
func NewGenerator(config Config) *Generator {
	return &Generator{config: config}
}

// GenerateCertificate creates a new self-signed TLS certificate usable for
// both server and client authentication.
func (g *Generator) GenerateCertificate() (*tls.Certificate, error) {
	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}

	template := &x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			CommonName: "blockfeed",
		},
		NotBefore: time.Now(),
		NotAfter:  time.Now().Add(g.config.CertValidityPeriod),
		KeyUsage:  x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{
			x509.ExtKeyUsageServerAuth,
			x509.ExtKeyUsageClientAuth,
		},
		SignatureAlgorithm:    x509.PureEd25519,
		PublicKeyAlgorithm:    x509.Ed25519,
		BasicConstraintsValid: true,
	}
	for _, host := range g.config.Hosts {
		if ip := net.ParseIP(host); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, host)
		}
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, template, g.config.PublicKey, g.config.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}

	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}

	return &tls.Certificate{
		Certificate: [][]byte{certDER},
		PrivateKey:  g.config.PrivateKey,
		Leaf:        cert,
	}, nil
}

// Validator checks self-signed feed certificates. When PinnedKey is set the
// certificate must carry exactly that key.
type Validator struct {
	PinnedKey ed25519.PublicKey
}

// NewValidator creates a new certificate validator.
func NewValidator(pinned ed25519.PublicKey) *Validator {
	return &Validator{PinnedKey: pinned}
}

// ValidateCertificate checks that a certificate uses Ed25519, matches the
// pinned key if any, and is within its validity period.
func (v *Validator) ValidateCertificate(cert *x509.Certificate) error {
	if cert.SignatureAlgorithm != x509.PureEd25519 {
		return fmt.Errorf("invalid signature algorithm: expected Ed25519")
	}

	pubKey, err := v.ExtractPublicKey(cert)
	if err != nil {
		return err
	}
	if len(v.PinnedKey) > 0 && !bytes.Equal(pubKey, v.PinnedKey) {
		return fmt.Errorf("certificate key does not match pinned key")
	}

	now := time.Now()
	if now.Before(cert.NotBefore) {
		return fmt.Errorf("certificate is not yet valid")
	}
	if now.After(cert.NotAfter) {
		return fmt.Errorf("certificate has expired")
	}
	return nil
}

// ExtractPublicKey retrieves the Ed25519 public key from a certificate.
func (v *Validator) ExtractPublicKey(cert *x509.Certificate) (ed25519.PublicKey, error) {
	pubKey, ok := cert.PublicKey.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("certificate public key is not an Ed25519 key")
	}
	return pubKey, nil
}

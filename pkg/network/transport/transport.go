// Package transport dials and accepts the QUIC connections that carry the
// block feed.
package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/rs/zerolog"

	"github.com/eigerco/blocktransfer/pkg/log"
	"github.com/eigerco/blocktransfer/pkg/network/protocol"
)

const (
	// DefaultIdleTimeout defines the maximum duration a connection can be idle before timing out
	DefaultIdleTimeout = 30 * time.Second

	// DefaultHandshakeTimeout bounds the QUIC and TLS handshake
	DefaultHandshakeTimeout = 10 * time.Second
)

// CertValidator performs TLS certificate validation.
type CertValidator interface {
	ValidateCertificate(cert *x509.Certificate) error
}

// DialConfig contains the parameters for connecting to a feed endpoint.
type DialConfig struct {
	Addr             string        // host:port
	ServerName       string        // defaults to the host part of Addr
	HandshakeTimeout time.Duration // connect timeout
	IdleTimeout      time.Duration
	// InsecureSkipVerify disables chain verification. CertValidator, when set,
	// still runs against the presented certificate.
	InsecureSkipVerify bool
	CertValidator      CertValidator
	RootCAs            *x509.CertPool
}

func (c DialConfig) quicConfig() *quic.Config {
	handshake := c.HandshakeTimeout
	if handshake <= 0 {
		handshake = DefaultHandshakeTimeout
	}
	idle := c.IdleTimeout
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	return &quic.Config{
		HandshakeIdleTimeout: handshake,
		MaxIdleTimeout:       idle,
		KeepAlivePeriod:      idle / 2,
	}
}

func (c DialConfig) tlsConfig() (*tls.Config, error) {
	serverName := c.ServerName
	if serverName == "" {
		host, _, err := net.SplitHostPort(c.Addr)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDialFailed, err)
		}
		serverName = host
	}

	conf := &tls.Config{
		ServerName:         serverName,
		NextProtos:         protocol.AcceptableProtocols(),
		MinVersion:         tls.VersionTLS13,
		RootCAs:            c.RootCAs,
		InsecureSkipVerify: c.InsecureSkipVerify,
	}
	if c.CertValidator != nil {
		validator := c.CertValidator
		conf.VerifyPeerCertificate = func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			if len(rawCerts) == 0 {
				return fmt.Errorf("%w: no peer certificate provided", ErrInvalidCertificate)
			}
			cert, err := x509.ParseCertificate(rawCerts[0])
			if err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidCertificate, err)
			}
			if err := validator.ValidateCertificate(cert); err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidCertificate, err)
			}
			return nil
		}
	}
	return conf, nil
}

// Dial connects to a feed endpoint and checks the negotiated protocol.
func Dial(ctx context.Context, config DialConfig) (*Conn, error) {
	tlsConf, err := config.tlsConfig()
	if err != nil {
		return nil, err
	}

	qConn, err := quic.DialAddr(ctx, config.Addr, tlsConf, config.quicConfig())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDialFailed, err)
	}

	negotiated := qConn.ConnectionState().TLS.NegotiatedProtocol
	if err := protocol.ValidateALPNProtocol(negotiated); err != nil {
		_ = qConn.CloseWithError(0, "unsupported protocol")
		return nil, fmt.Errorf("%w: %v", ErrInvalidProtocol, err)
	}

	log.Stream.Debug().Str("addr", config.Addr).Str("protocol", negotiated).Msg("feed connection established")
	return newConn(qConn), nil
}

// Listener accepts feed connections. It is used by the feed simulator and tests.
type Listener struct {
	listener *quic.Listener
	log      zerolog.Logger
}

// Listen starts a QUIC listener presenting cert.
func Listen(addr string, cert *tls.Certificate, idleTimeout time.Duration) (*Listener, error) {
	if cert == nil {
		return nil, fmt.Errorf("TLS certificate required")
	}
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{*cert},
		NextProtos:   protocol.AcceptableProtocols(),
		MinVersion:   tls.VersionTLS13,
	}
	listener, err := quic.ListenAddr(addr, tlsConfig, &quic.Config{
		MaxIdleTimeout: idleTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrListenerFailed, err)
	}
	return &Listener{listener: listener, log: log.Stream}, nil
}

// Accept waits for the next connection. It returns net.ErrClosed once the
// listener is closed.
func (l *Listener) Accept(ctx context.Context) (*Conn, error) {
	qConn, err := l.listener.Accept(ctx)
	if err != nil {
		if errors.Is(err, quic.ErrServerClosed) {
			return nil, net.ErrClosed
		}
		return nil, err
	}
	l.log.Debug().Stringer("remote", qConn.RemoteAddr()).Msg("accepted feed connection")
	return newConn(qConn), nil
}

func (l *Listener) Addr() net.Addr {
	return l.listener.Addr()
}

func (l *Listener) Close() error {
	return l.listener.Close()
}

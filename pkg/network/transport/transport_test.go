package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/blocktransfer/internal/crypto/ed25519"
	"github.com/eigerco/blocktransfer/pkg/network"
	"github.com/eigerco/blocktransfer/pkg/network/cert"
)

func newCertificate(t *testing.T) (ed25519.PublicKey, *tls.Certificate) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	c, err := cert.NewGenerator(cert.Config{
		PublicKey:          pub,
		PrivateKey:         priv,
		Hosts:              []string{"localhost", "127.0.0.1"},
		CertValidityPeriod: time.Hour,
	}).GenerateCertificate()
	require.NoError(t, err)
	return pub, c
}

// startEcho serves one connection and echoes framed messages back.
func startEcho(t *testing.T, c *tls.Certificate) *Listener {
	l, err := Listen("127.0.0.1:0", c, time.Second*5)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	go func() {
		ctx := context.Background()
		conn, err := l.Accept(ctx)
		if err != nil {
			return
		}
		stream, err := conn.AcceptStream(ctx)
		if err != nil {
			return
		}
		for {
			msg, err := network.ReadMessageWithContext(ctx, stream)
			if err != nil {
				return
			}
			if err := network.WriteMessageWithContext(ctx, stream, msg.Content); err != nil {
				return
			}
		}
	}()
	return l
}

func TestDialLoopback(t *testing.T) {
	pub, c := newCertificate(t)
	l := startEcho(t, c)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := Dial(ctx, DialConfig{
		Addr:               l.Addr().String(),
		HandshakeTimeout:   2 * time.Second,
		InsecureSkipVerify: true,
		CertValidator:      cert.NewValidator(pub),
	})
	require.NoError(t, err)
	assert.Equal(t, "blockfeed/0", conn.QConn.ConnectionState().TLS.NegotiatedProtocol)

	stream, err := conn.OpenStream(ctx)
	require.NoError(t, err)
	defer stream.Close()

	for _, payload := range [][]byte{[]byte("hello"), {0x81, 0x00}} {
		require.NoError(t, network.WriteMessageWithContext(ctx, stream, payload))
		msg, err := network.ReadMessageWithContext(ctx, stream)
		require.NoError(t, err)
		assert.Equal(t, payload, msg.Content)
	}
}

func TestDialWithRootCAs(t *testing.T) {
	_, c := newCertificate(t)
	l := startEcho(t, c)

	pool := x509.NewCertPool()
	pool.AddCert(c.Leaf)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := Dial(ctx, DialConfig{
		Addr:       l.Addr().String(),
		ServerName: "localhost",
		RootCAs:    pool,
	})
	require.NoError(t, err)
	require.NoError(t, conn.Close())
}

func TestDialRejectsPinMismatch(t *testing.T) {
	_, c := newCertificate(t)
	l := startEcho(t, c)
	other, _ := newCertificate(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := Dial(ctx, DialConfig{
		Addr:               l.Addr().String(),
		HandshakeTimeout:   time.Second,
		InsecureSkipVerify: true,
		CertValidator:      cert.NewValidator(other),
	})
	require.ErrorIs(t, err, ErrDialFailed)
}

func TestDialUntrusted(t *testing.T) {
	_, c := newCertificate(t)
	l := startEcho(t, c)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := Dial(ctx, DialConfig{Addr: l.Addr().String(), HandshakeTimeout: time.Second})
	require.ErrorIs(t, err, ErrDialFailed)
}

func TestDialBadAddress(t *testing.T) {
	_, err := Dial(context.Background(), DialConfig{Addr: "no-port"})
	require.ErrorIs(t, err, ErrDialFailed)
}

func TestListenRequiresCertificate(t *testing.T) {
	_, err := Listen("127.0.0.1:0", nil, 0)
	require.Error(t, err)
}

func TestAcceptAfterClose(t *testing.T) {
	_, c := newCertificate(t)
	l, err := Listen("127.0.0.1:0", c, 0)
	require.NoError(t, err)
	require.NoError(t, l.Close())

	_, err = l.Accept(context.Background())
	assert.ErrorIs(t, err, net.ErrClosed)
}

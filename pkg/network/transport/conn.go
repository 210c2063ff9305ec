package transport

import (
	"context"
	"fmt"
	"io"
	"net"

	"github.com/quic-go/quic-go"
)

// Conn represents a QUIC connection with a feed peer.
type Conn struct {
	QConn quic.Connection
}

func newConn(qConn quic.Connection) *Conn {
	return &Conn{QConn: qConn}
}

// OpenStream opens a new bidirectional stream bound to the connection: closing
// the returned stream closes the connection too.
func (c *Conn) OpenStream(ctx context.Context) (io.ReadWriteCloser, error) {
	stream, err := c.QConn.OpenStreamSync(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStreamFailed, err)
	}
	return &connStream{Stream: stream, conn: c}, nil
}

// AcceptStream accepts the next stream opened by the peer.
func (c *Conn) AcceptStream(ctx context.Context) (io.ReadWriteCloser, error) {
	stream, err := c.QConn.AcceptStream(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to accept QUIC stream: %w", err)
	}
	return &connStream{Stream: stream, conn: c}, nil
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.QConn.RemoteAddr()
}

// Close closes the connection and cancels all associated streams.
func (c *Conn) Close() error {
	return c.QConn.CloseWithError(0, "")
}

// connStream closes both stream directions and the owning connection.
type connStream struct {
	quic.Stream
	conn *Conn
}

func (s *connStream) Close() error {
	s.Stream.CancelRead(0)
	err := s.Stream.Close()
	if cerr := s.conn.Close(); err == nil {
		err = cerr
	}
	return err
}

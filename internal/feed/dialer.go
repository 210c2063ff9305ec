package feed

import (
	"context"
	"time"

	"github.com/eigerco/blocktransfer/pkg/network/transport"
)

// Dialer opens a feed stream.
type Dialer interface {
	Dial(ctx context.Context) (*Conn, error)
}

// QUICDialer dials a feed endpoint over QUIC and opens one bidirectional
// stream per session.
type QUICDialer struct {
	Config         transport.DialConfig
	ConnectTimeout time.Duration
}

func NewQUICDialer(config transport.DialConfig) *QUICDialer {
	return &QUICDialer{Config: config, ConnectTimeout: config.HandshakeTimeout}
}

func (d *QUICDialer) Dial(ctx context.Context) (*Conn, error) {
	if d.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.ConnectTimeout)
		defer cancel()
	}

	conn, err := transport.Dial(ctx, d.Config)
	if err != nil {
		return nil, err
	}
	stream, err := conn.OpenStream(ctx)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return NewConn(stream), nil
}

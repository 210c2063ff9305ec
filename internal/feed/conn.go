package feed

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/eigerco/blocktransfer/pkg/network"
)

// duplex moves framed payloads over a stream. Sends are serialized so
// concurrent writers never interleave frames.
type duplex struct {
	rwc    io.ReadWriteCloser
	sendMu sync.Mutex
	once   sync.Once
	err    error
}

func (d *duplex) send(ctx context.Context, payload []byte) error {
	d.sendMu.Lock()
	defer d.sendMu.Unlock()
	return network.WriteMessageWithContext(ctx, d.rwc, payload)
}

func (d *duplex) recv(ctx context.Context) ([]byte, error) {
	msg, err := network.ReadMessageWithContext(ctx, d.rwc)
	if err != nil {
		return nil, err
	}
	return msg.Content, nil
}

// Close closes the underlying stream. It is safe to call more than once.
func (d *duplex) Close() error {
	d.once.Do(func() {
		d.err = d.rwc.Close()
	})
	return d.err
}

// Conn is the client side of a feed stream.
type Conn struct {
	duplex
}

func NewConn(rwc io.ReadWriteCloser) *Conn {
	return &Conn{duplex{rwc: rwc}}
}

func (c *Conn) Send(ctx context.Context, req Request) error {
	payload, err := EncodeRequest(req)
	if err != nil {
		return err
	}
	return c.send(ctx, payload)
}

// Recv returns the next update. io.EOF means the server ended the stream.
func (c *Conn) Recv(ctx context.Context) (Update, error) {
	payload, err := c.recv(ctx)
	if err != nil {
		return nil, err
	}
	update, err := DecodeUpdate(payload)
	if err != nil {
		return nil, fmt.Errorf("decode update: %w", err)
	}
	return update, nil
}

// ServerConn is the server side of a feed stream.
type ServerConn struct {
	duplex
}

func NewServerConn(rwc io.ReadWriteCloser) *ServerConn {
	return &ServerConn{duplex{rwc: rwc}}
}

func (c *ServerConn) Send(ctx context.Context, update Update) error {
	payload, err := EncodeUpdate(update)
	if err != nil {
		return err
	}
	return c.send(ctx, payload)
}

// SendRaw writes an arbitrary payload, bypassing the encoder.
func (c *ServerConn) SendRaw(ctx context.Context, payload []byte) error {
	return c.send(ctx, payload)
}

func (c *ServerConn) Recv(ctx context.Context) (Request, error) {
	payload, err := c.recv(ctx)
	if err != nil {
		return nil, err
	}
	req, err := DecodeRequest(payload)
	if err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	return req, nil
}

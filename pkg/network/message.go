// Package network holds the wire framing shared by feed clients and servers.
package network

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxMessageSize bounds a single frame. Larger frames are rejected before
// any content is allocated.
const MaxMessageSize = 16 << 20

var ErrMessageTooLarge = errors.New("message exceeds maximum size")

// Message represents a protocol message that includes both size and content.
// The size is encoded as a little-endian uint32 followed by the actual content bytes.
type Message struct {
	Size    uint32
	Content []byte
}

// WriteMessageWithContext writes a message to an io.Writer with context cancellation support.
// The message format is:
//   - 4 bytes: content size as little-endian uint32
//   - N bytes: content itself
//
// When ctx is cancelled the call returns immediately, but the write already
// handed to w keeps going in the background.
func WriteMessageWithContext(ctx context.Context, w io.Writer, content []byte) error {
	if len(content) > MaxMessageSize {
		return fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(content))
	}

	done := make(chan error, 1)
	go func() {
		frame := make([]byte, 4+len(content))
		binary.LittleEndian.PutUint32(frame, uint32(len(content)))
		copy(frame[4:], content)

		if _, err := w.Write(frame); err != nil {
			done <- fmt.Errorf("failed to write message: %w", err)
			return
		}
		done <- nil
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type readResult struct {
	msg *Message
	err error
}

// ReadMessageWithContext reads a message from an io.Reader with context cancellation support.
// A clean end of stream before the size prefix is reported as io.EOF.
func ReadMessageWithContext(ctx context.Context, r io.Reader) (*Message, error) {
	done := make(chan readResult, 1)

	go func() {
		var sizeBuf [4]byte
		if _, err := io.ReadFull(r, sizeBuf[:]); err != nil {
			if errors.Is(err, io.EOF) {
				done <- readResult{nil, io.EOF}
				return
			}
			done <- readResult{nil, fmt.Errorf("failed to read message size: %w", err)}
			return
		}

		size := binary.LittleEndian.Uint32(sizeBuf[:])
		if size > MaxMessageSize {
			done <- readResult{nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, size)}
			return
		}

		content := make([]byte, size)
		if _, err := io.ReadFull(r, content); err != nil {
			done <- readResult{nil, fmt.Errorf("failed to read message content: %w", err)}
			return
		}

		done <- readResult{&Message{Size: size, Content: content}, nil}
	}()

	select {
	case result := <-done:
		return result.msg, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Package subscriber keeps a block feed subscription open and starts one
// transfer for every block the feed announces.
package subscriber

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/eigerco/blocktransfer/internal/feed"
	"github.com/eigerco/blocktransfer/internal/ledger"
	"github.com/eigerco/blocktransfer/internal/transfer"
	"github.com/eigerco/blocktransfer/pkg/log"
)

// Executor runs a single transfer.
type Executor interface {
	Execute(ctx context.Context, req transfer.Request) (transfer.Outcome, error)
}

// Target describes the transfer made for every block.
type Target struct {
	SenderSecret string
	Recipient    string
	Amount       uint64 // lamports
}

type Option func(*Subscriber)

// WithKeepalive makes the client ping the server every interval. A ping still
// unanswered at the next tick closes the session.
func WithKeepalive(interval time.Duration) Option {
	return func(s *Subscriber) {
		s.keepalive = interval
	}
}

// WithToken sets the token sent with the subscribe request.
func WithToken(token string) Option {
	return func(s *Subscriber) {
		s.token = token
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Subscriber) {
		s.log = logger
	}
}

type Subscriber struct {
	dialer    feed.Dialer
	exec      Executor
	target    Target
	token     string
	keepalive time.Duration
	log       zerolog.Logger
	session   Session
}

func New(dialer feed.Dialer, exec Executor, target Target, opts ...Option) *Subscriber {
	s := &Subscriber{
		dialer: dialer,
		exec:   exec,
		target: target,
		log:    log.Stream,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Subscriber) State() State {
	return s.session.State()
}

// Run subscribes and consumes the feed until it ends. It returns an error
// wrapping ErrConnect when the subscription cannot be set up and one wrapping
// ErrStreamBroken when reading fails afterwards. The end of the stream, an
// unrecognized message and ctx cancellation all return nil. In-flight
// transfers are waited for before Run returns.
func (s *Subscriber) Run(ctx context.Context) error {
	if err := s.session.begin(); err != nil {
		return err
	}
	defer s.session.close()

	s.log.Info().Msg("connecting to block feed")
	conn, err := s.dialer.Dial(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnect, err)
	}
	defer conn.Close()

	subscribe := feed.SubscribeRequest{
		Commitment: feed.CommitmentProcessed,
		Filter:     feed.FilterBlocks,
		Token:      s.token,
	}
	if err := conn.Send(ctx, subscribe); err != nil {
		return fmt.Errorf("%w: subscribe: %w", ErrConnect, err)
	}
	s.session.connected()
	s.log.Info().Msg("subscribed to block updates")

	// transfers outlive a cancelled ctx so their outcomes are still reported
	var transfers errgroup.Group
	defer func() {
		_ = conn.Close()
		s.session.close()
		_ = transfers.Wait()
		s.log.Info().Msg("feed session closed")
	}()

	var dead atomic.Bool
	if s.keepalive > 0 {
		kaCtx, stop := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			s.runKeepalive(kaCtx, conn, &dead)
		}()
		defer func() {
			stop()
			<-done
		}()
	}

	transferCtx := context.WithoutCancel(ctx)
	for {
		update, err := conn.Recv(ctx)
		if err != nil {
			switch {
			case dead.Load():
				return fmt.Errorf("%w: %w", ErrStreamBroken, ErrPongTimeout)
			case ctx.Err() != nil:
				s.log.Info().Msg("subscription cancelled")
				return nil
			case errors.Is(err, io.EOF):
				s.log.Info().Msg("stream ended by server")
				return nil
			default:
				s.log.Error().Err(err).Msg("stream error")
				return fmt.Errorf("%w: %w", ErrStreamBroken, err)
			}
		}

		switch u := update.(type) {
		case feed.BlockUpdate:
			s.logBlock(u)
			req := transfer.NewRequest(s.target.SenderSecret, s.target.Recipient, s.target.Amount)
			transfers.Go(func() error {
				s.runTransfer(transferCtx, u.Slot, req)
				return nil
			})
		case feed.Ping:
			if err := conn.Send(ctx, feed.Pong{ID: u.ID}); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("%w: pong: %w", ErrStreamBroken, err)
			}
			s.log.Debug().Uint32("id", u.ID).Msg("answered ping")
		case feed.Pong:
			if s.session.pong(u.ID) {
				s.log.Debug().Uint32("id", u.ID).Msg("keepalive answered")
			}
		case feed.Unrecognized:
			s.log.Warn().Uint8("tag", u.Tag).Msg("unrecognized message, closing stream")
			return nil
		}
	}
}

func (s *Subscriber) runKeepalive(ctx context.Context, conn *feed.Conn, dead *atomic.Bool) {
	ticker := time.NewTicker(s.keepalive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		id, alive := s.session.keepaliveTick()
		if !alive {
			s.log.Warn().Dur("interval", s.keepalive).Msg("keepalive ping not answered, closing stream")
			dead.Store(true)
			_ = conn.Close()
			return
		}
		if id == 0 {
			continue
		}
		if err := conn.Send(ctx, feed.Ping{ID: id}); err != nil {
			s.log.Debug().Err(err).Msg("failed to send keepalive ping")
			return
		}
	}
}

func (s *Subscriber) logBlock(b feed.BlockUpdate) {
	event := s.log.Info().
		Uint64("slot", b.Slot).
		Uint64("parent_slot", b.ParentSlot).
		Str("hash", b.HashString())
	if t := b.Time(); !t.IsZero() {
		event = event.Time("timestamp", t)
	} else {
		event = event.Str("timestamp", "unknown")
	}
	event.Msg("new block")
}

func (s *Subscriber) runTransfer(ctx context.Context, slot uint64, req transfer.Request) {
	s.log.Info().
		Uint64("slot", slot).
		Str("attempt", req.ID().String()).
		Str("to", req.Recipient()).
		Str("amount_sol", ledger.FormatSOL(req.Amount())).
		Msg("sending transfer for block")

	outcome, err := s.exec.Execute(ctx, req)
	if err != nil {
		s.log.Error().Err(err).Uint64("slot", slot).Str("attempt", req.ID().String()).Msg("block transfer failed")
		return
	}
	event := s.log.Info().Uint64("slot", slot).Str("attempt", req.ID().String())
	if outcome.Signature != nil {
		event = event.Stringer("signature", outcome.Signature)
	}
	event.Msg("block transfer confirmed")
}

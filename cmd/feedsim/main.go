package main

import (
	"context"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/eigerco/blocktransfer/internal/crypto/ed25519"
	"github.com/eigerco/blocktransfer/internal/feed"
	"github.com/eigerco/blocktransfer/pkg/log"
	"github.com/eigerco/blocktransfer/pkg/network/cert"
	"github.com/eigerco/blocktransfer/pkg/network/transport"
)

// main serves a local block feed for trying the subscriber without a validator.
// go run ./cmd/feedsim -listen 127.0.0.1:4433
func main() {
	listen := flag.String("listen", "127.0.0.1:4433", "UDP address to listen on")
	interval := flag.Duration("interval", 400*time.Millisecond, "Time between blocks")
	pingEvery := flag.Int("ping-every", 5, "Send a ping every N blocks, 0 disables")
	flag.Parse()

	log.Init(log.Options{LogLevel: zerolog.InfoLevel})

	if err := serve(*listen, *interval, *pingEvery); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func serve(addr string, interval time.Duration, pingEvery int) error {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return err
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	tlsCert, err := cert.NewGenerator(cert.Config{
		PublicKey:          pub,
		PrivateKey:         priv,
		Hosts:              []string{host, "localhost"},
		CertValidityPeriod: 24 * time.Hour,
	}).GenerateCertificate()
	if err != nil {
		return err
	}

	listener, err := transport.Listen(addr, tlsCert, 0)
	if err != nil {
		return err
	}
	defer listener.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Stream.Info().Stringer("addr", listener.Addr()).Msg("feed simulator listening, use insecure_skip_verify")
	for {
		conn, err := listener.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go session(ctx, conn, interval, pingEvery)
	}
}

// session streams blocks to one subscriber until it goes away.
func session(ctx context.Context, conn *transport.Conn, interval time.Duration, pingEvery int) {
	logger := log.Stream.With().Stringer("remote", conn.RemoteAddr()).Logger()
	defer conn.Close()

	stream, err := conn.AcceptStream(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("no stream opened")
		return
	}
	server := feed.NewServerConn(stream)
	defer server.Close()

	serveFeed(ctx, server, logger, interval, pingEvery)
}

// serveFeed waits for the subscribe request, then emits one block per
// interval and a Ping after every pingEvery blocks. Client pings are answered
// while blocks are being sent.
func serveFeed(ctx context.Context, server *feed.ServerConn, logger zerolog.Logger, interval time.Duration, pingEvery int) {
	req, err := server.Recv(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("no subscribe request")
		return
	}
	sub, ok := req.(feed.SubscribeRequest)
	if !ok {
		logger.Warn().Msgf("expected subscribe, got %T", req)
		return
	}
	logger.Info().Stringer("commitment", sub.Commitment).Msg("subscriber joined")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		defer cancel()
		for {
			req, err := server.Recv(ctx)
			if err != nil {
				return
			}
			switch r := req.(type) {
			case feed.Ping:
				if err := server.Send(ctx, feed.Pong{ID: r.ID}); err != nil {
					return
				}
			case feed.Pong:
				logger.Info().Uint32("id", r.ID).Msg("pong")
			}
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	slot := uint64(time.Now().Unix())
	for n := 1; ; n++ {
		select {
		case <-ctx.Done():
			logger.Info().Msg("subscriber left")
			return
		case <-ticker.C:
		}

		update := feed.BlockUpdate{Slot: slot, ParentSlot: slot - 1, BlockTime: time.Now().Unix()}
		_, _ = rand.Read(update.Hash[:])
		if err := server.Send(ctx, update); err != nil {
			return
		}
		slot++

		if pingEvery > 0 && n%pingEvery == 0 {
			if err := server.Send(ctx, feed.Ping{ID: uint32(n)}); err != nil {
				return
			}
		}
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/eigerco/blocktransfer/internal/config"
	"github.com/eigerco/blocktransfer/internal/dispatch"
	"github.com/eigerco/blocktransfer/internal/feed"
	"github.com/eigerco/blocktransfer/internal/ledger"
	"github.com/eigerco/blocktransfer/internal/report"
	"github.com/eigerco/blocktransfer/internal/store"
	"github.com/eigerco/blocktransfer/internal/subscriber"
	"github.com/eigerco/blocktransfer/internal/transfer"
	"github.com/eigerco/blocktransfer/pkg/db/pebble"
	"github.com/eigerco/blocktransfer/pkg/log"
	"github.com/eigerco/blocktransfer/pkg/network/cert"
	"github.com/eigerco/blocktransfer/pkg/network/transport"
)

func newLedger(cfg *config.Config) (*ledger.RPCClient, error) {
	rpcCfg, err := cfg.RPC()
	if err != nil {
		return nil, err
	}
	return ledger.NewRPCClient(rpcCfg), nil
}

func runBalances(ctx context.Context, cfg *config.Config) error {
	client, err := newLedger(cfg)
	if err != nil {
		return err
	}
	balances, err := ledger.Balances(ctx, client, cfg.Wallets)
	if err != nil {
		return err
	}
	for _, b := range balances {
		fmt.Println(b)
	}
	return nil
}

// newExecutor wires the ledger client and the configured outcome sinks. The
// returned cleanup closes the sinks.
func newExecutor(cfg *config.Config) (*transfer.Executor, func(), error) {
	client, err := newLedger(cfg)
	if err != nil {
		return nil, nil, err
	}

	var (
		sinks   []transfer.Sink
		closers []func() error
	)
	if cfg.JournalPath != "" {
		kv, err := pebble.Open(cfg.JournalPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open journal: %w", err)
		}
		journal := store.NewOutcomes(kv)
		sinks = append(sinks, report.NewJournalSink(journal))
		closers = append(closers, journal.Close)
	}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher := report.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		sinks = append(sinks, publisher)
		closers = append(closers, publisher.Close)
	}
	if cfg.AMQP.URL != "" {
		publisher, err := report.NewAMQPSink(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			closeAll(closers)
			return nil, nil, fmt.Errorf("connect amqp: %w", err)
		}
		sinks = append(sinks, publisher)
		closers = append(closers, publisher.Close)
	}

	cleanup := func() { closeAll(closers) }
	exec := transfer.NewExecutor(client,
		transfer.WithFeeReserve(cfg.FeeReserveLamports),
		transfer.WithSinks(sinks...),
	)
	return exec, cleanup, nil
}

func closeAll(closers []func() error) {
	for _, c := range closers {
		if err := c(); err != nil {
			log.Root.Warn().Err(err).Msg("failed to close outcome sink")
		}
	}
}

func runFanout(ctx context.Context, cfg *config.Config) error {
	amount, err := cfg.Amount()
	if err != nil {
		return err
	}
	exec, cleanup, err := newExecutor(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	result := dispatch.New(exec, dispatch.WithConcurrency(cfg.Concurrency)).
		Run(ctx, cfg.SenderKeys(), cfg.Recipients, amount)
	return result.Summary(os.Stdout)
}

func runSubscribe(ctx context.Context, cfg *config.Config) error {
	amount, err := cfg.Amount()
	if err != nil {
		return err
	}
	exec, cleanup, err := newExecutor(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	addr, err := feedAddr(cfg.GRPCEndpoint)
	if err != nil {
		return err
	}
	dialCfg := transport.DialConfig{
		Addr:               addr,
		HandshakeTimeout:   cfg.ConnectTimeout,
		IdleTimeout:        cfg.RequestTimeout,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}
	if cfg.InsecureSkipVerify {
		dialCfg.CertValidator = cert.NewValidator(nil)
	}

	opts := []subscriber.Option{subscriber.WithToken(cfg.GRPCAPIKey)}
	if cfg.KeepaliveInterval > 0 {
		opts = append(opts, subscriber.WithKeepalive(cfg.KeepaliveInterval))
	}
	target := subscriber.Target{
		SenderSecret: cfg.SenderKey,
		Recipient:    cfg.Recipient,
		Amount:       amount,
	}

	err = subscriber.New(feed.NewQUICDialer(dialCfg), exec, target, opts...).Run(ctx)
	if errors.Is(err, subscriber.ErrStreamBroken) {
		// only setup failures are fatal
		log.Stream.Error().Err(err).Msg("subscription ended")
		return nil
	}
	return err
}

func runJournal(cfg *config.Config, attempt string) error {
	kv, err := pebble.Open(cfg.JournalPath)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	journal := store.NewOutcomes(kv)
	defer journal.Close()

	var outcomes []transfer.Outcome
	if attempt != "" {
		id, err := uuid.Parse(attempt)
		if err != nil {
			return fmt.Errorf("%w: attempt id %q: %v", config.ErrConfig, attempt, err)
		}
		o, err := journal.Get(id)
		if err != nil {
			return err
		}
		outcomes = append(outcomes, o)
	} else {
		outcomes, err = journal.List()
		if err != nil {
			return err
		}
	}
	for _, o := range outcomes {
		fmt.Println(journalLine(o))
	}
	return nil
}

func journalLine(o transfer.Outcome) string {
	signature := "-"
	if o.Signature != nil {
		signature = o.Signature.String()
	}
	return strings.TrimSpace(fmt.Sprintf("%s %s %-8s %s -> %s %s SOL sig=%s %s",
		o.FinishedAt.Format(time.RFC3339), o.AttemptID, o.Status,
		o.Sender, o.Recipient, ledger.FormatSOL(o.Amount), signature, o.Reason))
}

// feedAddr accepts host:port or a URL such as https://host:port.
func feedAddr(endpoint string) (string, error) {
	endpoint = strings.TrimSpace(endpoint)
	if !strings.Contains(endpoint, "://") {
		return endpoint, nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("%w: grpc_endpoint: %v", config.ErrConfig, err)
	}
	if u.Port() == "" {
		return u.Hostname() + ":443", nil
	}
	return u.Host, nil
}

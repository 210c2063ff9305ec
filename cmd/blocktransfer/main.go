package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/eigerco/blocktransfer/internal/config"
	"github.com/eigerco/blocktransfer/pkg/log"
)

// main runs one mode and exits.
// go run ./cmd/blocktransfer -config config.yaml -mode fanout
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "config.yaml", "Path to the YAML configuration")
	modeName := flag.String("mode", "", "One of balances, fanout, subscribe, journal")
	logLevel := flag.String("log-level", "", "Overrides log.level")
	logFormat := flag.String("log-format", "", "Overrides log.format (console or json)")
	attempt := flag.String("attempt", "", "journal mode: print only this attempt id")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	mode, err := config.ParseMode(*modeName)
	if err != nil {
		return err
	}
	cfg, err := config.Load(*configPath, flagSet("config"))
	if err != nil {
		return err
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	logOpts, err := cfg.Logging()
	if err != nil {
		return err
	}
	log.Init(logOpts)

	if err := cfg.Validate(mode); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Root.Info().Str("mode", string(mode)).Str("rpc", cfg.RPCEndpoint).Msg("starting")
	switch mode {
	case config.ModeBalances:
		return runBalances(ctx, cfg)
	case config.ModeFanout:
		return runFanout(ctx, cfg)
	case config.ModeSubscribe:
		return runSubscribe(ctx, cfg)
	case config.ModeJournal:
		return runJournal(cfg, *attempt)
	}
	return nil
}

// flagSet reports whether name was given on the command line.
func flagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

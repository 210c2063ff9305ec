// Package config loads the YAML configuration with environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/eigerco/blocktransfer/internal/ledger"
	"github.com/eigerco/blocktransfer/pkg/log"
)

// EnvPrefix prefixes every environment override, e.g. BLOCKTRANSFER_RPC_ENDPOINT.
const EnvPrefix = "BLOCKTRANSFER"

var ErrConfig = errors.New("invalid configuration")

// Mode selects what the process does.
type Mode string

const (
	ModeBalances  Mode = "balances"
	ModeFanout    Mode = "fanout"
	ModeSubscribe Mode = "subscribe"
	ModeJournal   Mode = "journal"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeBalances, ModeFanout, ModeSubscribe, ModeJournal:
		return m, nil
	default:
		return "", fmt.Errorf("%w: unknown mode %q", ErrConfig, s)
	}
}

type Sender struct {
	Key string `mapstructure:"key"`
}

type Kafka struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type AMQP struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type Config struct {
	RPCEndpoint    string        `mapstructure:"rpc_endpoint"`
	Commitment     string        `mapstructure:"commitment"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	ConfirmTimeout time.Duration `mapstructure:"confirm_timeout"`

	// balances
	Wallets []string `mapstructure:"wallets"`

	// fanout
	Senders     []Sender `mapstructure:"senders"`
	Recipients  []string `mapstructure:"recipients"`
	AmountSOL   string   `mapstructure:"amount_sol"`
	Concurrency int      `mapstructure:"concurrency"`

	// subscribe
	SenderKey          string        `mapstructure:"sender_key"`
	Recipient          string        `mapstructure:"recipient"`
	GRPCEndpoint       string        `mapstructure:"grpc_endpoint"`
	GRPCAPIKey         string        `mapstructure:"grpc_api_key"`
	ConnectTimeout     time.Duration `mapstructure:"connect_timeout"`
	KeepaliveInterval  time.Duration `mapstructure:"keepalive_interval"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`

	FeeReserveLamports uint64 `mapstructure:"fee_reserve_lamports"`
	JournalPath        string `mapstructure:"journal_path"`
	Kafka              Kafka  `mapstructure:"kafka"`
	AMQP               AMQP   `mapstructure:"amqp"`
	Log                Log    `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("rpc_endpoint", ledger.DefaultEndpoint)
	v.SetDefault("commitment", "confirmed")
	v.SetDefault("request_timeout", 10*time.Second)
	v.SetDefault("confirm_timeout", 30*time.Second)
	v.SetDefault("wallets", []string{})
	v.SetDefault("recipients", []string{})
	v.SetDefault("amount_sol", "0")
	v.SetDefault("concurrency", 0)
	v.SetDefault("sender_key", "")
	v.SetDefault("recipient", "")
	v.SetDefault("grpc_endpoint", "")
	v.SetDefault("grpc_api_key", "")
	v.SetDefault("connect_timeout", 10*time.Second)
	v.SetDefault("keepalive_interval", time.Duration(0))
	v.SetDefault("insecure_skip_verify", false)
	v.SetDefault("fee_reserve_lamports", 0)
	v.SetDefault("journal_path", "")
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "")
	v.SetDefault("amqp.url", "")
	v.SetDefault("amqp.exchange", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Load reads the YAML file at path and applies environment overrides on top
// of it. A missing file is an error when required is set and is skipped
// otherwise, so the implicit default path may be absent.
func Load(path string, required bool) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			missing := errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
			if !missing || required {
				return nil, fmt.Errorf("%w: read %s: %v", ErrConfig, path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if err := cfg.validateCommon(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validateCommon() error {
	if _, err := ledger.ParseCommitment(c.Commitment); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if _, err := log.ParseLogLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %v", ErrConfig, err)
	}
	if _, err := log.ParseLoggerType(c.Log.Format); err != nil {
		return fmt.Errorf("%w: log.format: %v", ErrConfig, err)
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("%w: concurrency must not be negative", ErrConfig)
	}
	if c.RequestTimeout <= 0 || c.ConfirmTimeout <= 0 || c.ConnectTimeout <= 0 {
		return fmt.Errorf("%w: timeouts must be positive", ErrConfig)
	}
	return nil
}

// Validate checks that everything mode needs is present.
func (c *Config) Validate(mode Mode) error {
	var missing []string
	need := func(ok bool, key string) {
		if !ok {
			missing = append(missing, key)
		}
	}

	switch mode {
	case ModeBalances:
		need(len(c.Wallets) > 0, "wallets")
	case ModeFanout:
		need(len(c.Senders) > 0, "senders")
		need(len(c.Recipients) > 0, "recipients")
		for i, s := range c.Senders {
			need(strings.TrimSpace(s.Key) != "", fmt.Sprintf("senders[%d].key", i))
		}
	case ModeSubscribe:
		need(c.SenderKey != "", "sender_key")
		need(c.Recipient != "", "recipient")
		need(c.GRPCEndpoint != "", "grpc_endpoint")
	case ModeJournal:
		need(c.JournalPath != "", "journal_path")
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrConfig, mode)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrConfig, strings.Join(missing, ", "))
	}

	if mode == ModeFanout || mode == ModeSubscribe {
		amount, err := c.Amount()
		if err != nil {
			return err
		}
		if amount == 0 {
			return fmt.Errorf("%w: amount_sol must be positive", ErrConfig)
		}
	}
	return nil
}

// Amount converts amount_sol to lamports.
func (c *Config) Amount() (uint64, error) {
	sol, err := decimal.NewFromString(strings.TrimSpace(c.AmountSOL))
	if err != nil {
		return 0, fmt.Errorf("%w: amount_sol %q: %v", ErrConfig, c.AmountSOL, err)
	}
	lamports, err := ledger.SOLToLamports(sol)
	if err != nil {
		return 0, fmt.Errorf("%w: amount_sol: %v", ErrConfig, err)
	}
	return lamports, nil
}

// SenderKeys returns the configured fan-out sender secrets.
func (c *Config) SenderKeys() []string {
	keys := make([]string, len(c.Senders))
	for i, s := range c.Senders {
		keys[i] = s.Key
	}
	return keys
}

// RPC builds the ledger client configuration.
func (c *Config) RPC() (ledger.RPCConfig, error) {
	commitment, err := ledger.ParseCommitment(c.Commitment)
	if err != nil {
		return ledger.RPCConfig{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	return ledger.RPCConfig{
		Endpoint:       c.RPCEndpoint,
		Commitment:     commitment,
		RequestTimeout: c.RequestTimeout,
		ConfirmTimeout: c.ConfirmTimeout,
	}, nil
}

// Logging returns the logger options.
func (c *Config) Logging() (log.Options, error) {
	level, err := log.ParseLogLevel(c.Log.Level)
	if err != nil {
		return log.Options{}, fmt.Errorf("%w: log.level: %v", ErrConfig, err)
	}
	typ, err := log.ParseLoggerType(c.Log.Format)
	if err != nil {
		return log.Options{}, fmt.Errorf("%w: log.format: %v", ErrConfig, err)
	}
	return log.Options{LogLevel: level, Type: typ}, nil
}

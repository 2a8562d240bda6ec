package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"transfer-ever/internal/bus"
	"transfer-ever/pkg/logger"
)

// Environment variables honoured by Load.
const (
	EnvConfigPath = "TRANSFERD_CONFIG"
	EnvNetwork    = "ELIFE_STELLAR_HORIZON"
	EnvIssuer     = "EVER_ISSUER"
	EnvWallet     = "TRANSFERD_WALLET"
)

// DefaultPath is used when TRANSFERD_CONFIG is unset.
const DefaultPath = "configs/transferd.json"

// Config is the full daemon configuration.
type Config struct {
	Ledger   LedgerConfig   `json:"ledger"`
	Wallet   WalletConfig   `json:"wallet"`
	Bus      BusConfig      `json:"bus"`
	Journal  JournalConfig  `json:"journal"`
	Server   ServerConfig   `json:"server"`
	Log      logger.Config  `json:"log"`
	Alerting AlertingConfig `json:"alerting"`
}

// LedgerConfig controls the Stellar side of the saga. Empty home asset
// fields keep the built-in EVER asset.
type LedgerConfig struct {
	NetworksFile       string `json:"networks_file"`
	Network            string `json:"network"`
	HTTPTimeoutSeconds int    `json:"http_timeout_seconds"`
	RateLimit          int    `json:"rate_limit"`
	HomeAssetCode      string `json:"home_asset_code"`
	HomeAssetIssuer    string `json:"home_asset_issuer"`
	MinimumAmount      string `json:"minimum_amount"`
	StartingBalance    string `json:"starting_balance"`
	TxTimeoutSeconds   int    `json:"tx_timeout_seconds"`
}

// HTTPTimeout returns the Horizon client timeout.
func (c LedgerConfig) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// TxTimeout returns the validity window of submitted transactions.
func (c LedgerConfig) TxTimeout() time.Duration {
	return time.Duration(c.TxTimeoutSeconds) * time.Second
}

// Minimum parses MinimumAmount.
func (c LedgerConfig) Minimum() (decimal.Decimal, error) {
	return decimal.NewFromString(c.MinimumAmount)
}

// WalletConfig locates the avatar key file.
type WalletConfig struct {
	Path string `json:"path"`
}

// BusConfig selects and configures the message transport.
type BusConfig struct {
	Driver       string         `json:"driver"`
	Workers      int            `json:"workers"`
	CommandTopic string         `json:"command_topic"`
	ReplyTopic   string         `json:"reply_topic"`
	AlertTopic   string         `json:"alert_topic"`
	BufferSize   int            `json:"buffer_size"`
	Redis        RedisConfig    `json:"redis"`
	RabbitMQ     RabbitMQConfig `json:"rabbitmq"`
	NATS         NATSConfig     `json:"nats"`
}

// RedisConfig configures the Redis list transport.
type RedisConfig struct {
	Address          string `json:"address"`
	Password         string `json:"password"`
	DB               int    `json:"db"`
	KeyPrefix        string `json:"key_prefix"`
	BlockWaitSeconds int    `json:"block_wait_seconds"`
}

// RabbitMQConfig configures the AMQP transport.
type RabbitMQConfig struct {
	URL        string `json:"url"`
	Prefetch   int    `json:"prefetch"`
	Durable    bool   `json:"durable"`
	AutoDelete bool   `json:"auto_delete"`
}

// NATSConfig configures the NATS transport.
type NATSConfig struct {
	URL        string `json:"url"`
	Name       string `json:"name"`
	QueueGroup string `json:"queue_group"`
}

// JournalConfig selects where funding runs are recorded.
type JournalConfig struct {
	Driver                 string `json:"driver"`
	DSN                    string `json:"dsn"`
	MaxOpenConns           int    `json:"max_open_conns"`
	MaxIdleConns           int    `json:"max_idle_conns"`
	ConnMaxLifetimeSeconds int    `json:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int    `json:"conn_max_idle_time_seconds"`
}

// ServerConfig controls the ops HTTP listener.
type ServerConfig struct {
	Address string `json:"address"`
	Enabled *bool  `json:"enabled"`
}

// IsEnabled reports whether the ops API should be started.
func (c ServerConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// AlertingConfig selects alert channels.
type AlertingConfig struct {
	Log bool `json:"log"`
	Bus bool `json:"bus"`
}

// Load reads the JSON file at path. An empty path falls back to
// TRANSFERD_CONFIG and then DefaultPath.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		path = DefaultPath
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(content, filepath.Dir(path))
}

// Parse decodes raw JSON, resolving relative paths against baseDir.
func Parse(content []byte, baseDir string) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyEnv()
	cfg.applyDefaults(baseDir)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv(EnvNetwork); ok {
		c.Ledger.Network = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvIssuer)); v != "" {
		c.Ledger.HomeAssetIssuer = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvWallet)); v != "" {
		c.Wallet.Path = v
	}
}

func (c *Config) applyDefaults(baseDir string) {
	if c.Ledger.NetworksFile != "" && !filepath.IsAbs(c.Ledger.NetworksFile) {
		c.Ledger.NetworksFile = filepath.Join(baseDir, c.Ledger.NetworksFile)
	}
	if c.Ledger.HTTPTimeoutSeconds <= 0 {
		c.Ledger.HTTPTimeoutSeconds = 60
	}
	if c.Ledger.MinimumAmount == "" {
		c.Ledger.MinimumAmount = "100"
	}
	if c.Ledger.StartingBalance == "" {
		c.Ledger.StartingBalance = "5"
	}
	if c.Ledger.TxTimeoutSeconds <= 0 {
		c.Ledger.TxTimeoutSeconds = 30
	}

	if c.Bus.Driver == "" {
		c.Bus.Driver = "memory"
	}
	if c.Bus.Workers <= 0 {
		c.Bus.Workers = 4
	}
	if c.Bus.CommandTopic == "" {
		c.Bus.CommandTopic = bus.TopicCommands
	}
	if c.Bus.ReplyTopic == "" {
		c.Bus.ReplyTopic = bus.TopicReplies
	}
	if c.Bus.AlertTopic == "" {
		c.Bus.AlertTopic = bus.TopicAlerts
	}
	if c.Bus.BufferSize <= 0 {
		c.Bus.BufferSize = 64
	}
	if c.Bus.Redis.BlockWaitSeconds <= 0 {
		c.Bus.Redis.BlockWaitSeconds = 5
	}

	if c.Journal.Driver == "" {
		c.Journal.Driver = "memory"
	}
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Log.Audit.Path != "" && !filepath.IsAbs(c.Log.Audit.Path) {
		c.Log.Audit.Path = filepath.Join(baseDir, c.Log.Audit.Path)
	}
	// The audit log channel is always on when nothing else is selected.
	if !c.Alerting.Log && !c.Alerting.Bus {
		c.Alerting.Log = true
	}
}

// Validate checks values the defaults cannot repair.
func (c *Config) Validate() error {
	var errs []error
	minimum, err := c.Ledger.Minimum()
	if err != nil || !minimum.IsPositive() {
		errs = append(errs, fmt.Errorf("ledger.minimum_amount %q must be a positive number", c.Ledger.MinimumAmount))
	}
	if start, err := decimal.NewFromString(c.Ledger.StartingBalance); err != nil || !start.IsPositive() {
		errs = append(errs, fmt.Errorf("ledger.starting_balance %q must be a positive number", c.Ledger.StartingBalance))
	}
	switch c.Bus.Driver {
	case "memory":
	case "redis":
		if c.Bus.Redis.Address == "" {
			errs = append(errs, errors.New("bus.redis.address is required"))
		}
	case "rabbitmq":
		if c.Bus.RabbitMQ.URL == "" {
			errs = append(errs, errors.New("bus.rabbitmq.url is required"))
		}
	case "nats":
		if c.Bus.NATS.URL == "" {
			errs = append(errs, errors.New("bus.nats.url is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported bus driver %q", c.Bus.Driver))
	}
	switch c.Journal.Driver {
	case "memory":
	case "mysql":
		if c.Journal.DSN == "" {
			errs = append(errs, errors.New("journal.dsn is required for mysql"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported journal driver %q", c.Journal.Driver))
	}
	return errors.Join(errs...)
}

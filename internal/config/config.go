package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type RPCConfig struct {
	URL       string        `yaml:"url"`        // e.g. https://soroban-testnet.stellar.org
	Timeout   time.Duration `yaml:"timeout"`    // request timeout
	PageLimit int           `yaml:"page_limit"` // max events per getEvents call
}

type IndexerConfig struct {
	URL     string        `yaml:"url"`   // GraphQL endpoint; empty disables the historical backlog
	Token   string        `yaml:"token"` // optional bearer token
	Timeout time.Duration `yaml:"timeout"`
}

type RelayConfig struct {
	URL        string        `yaml:"url"`   // fee-paying submission relay; empty disables POST /api/messages
	Token      string        `yaml:"token"` // bearer token issued by the relay
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	Backoff    time.Duration `yaml:"backoff"`
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

type FeedConfig struct {
	Interval time.Duration `yaml:"interval"` // poll period, default 12s (~ledger close cadence x2)
	// LookbackLedgers is the initial live-fetch window, counted in ledger
	// sequences. 17280 ledgers is roughly 24h at ~5s per ledger.
	LookbackLedgers uint32 `yaml:"lookback_ledgers"`
}

type Config struct {
	ContractID string        `yaml:"contract_id"` // chat contract, C... strkey
	ListenAddr string        `yaml:"listen_addr"` // HTTP API bind address
	RPC        RPCConfig     `yaml:"rpc"`
	Indexer    IndexerConfig `yaml:"indexer"`
	Relay      RelayConfig   `yaml:"relay"`
	Feed       FeedConfig    `yaml:"feed"`
}

const (
	DefaultInterval  = 12 * time.Second
	DefaultLookback  = 17280
	DefaultPageLimit = 1000
)

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.RPC.Timeout <= 0 {
		c.RPC.Timeout = 15 * time.Second
	}
	if c.RPC.PageLimit <= 0 {
		c.RPC.PageLimit = DefaultPageLimit
	}
	if c.Indexer.Timeout <= 0 {
		c.Indexer.Timeout = 10 * time.Second
	}
	if c.Relay.Timeout <= 0 {
		c.Relay.Timeout = 30 * time.Second
	}
	if c.Relay.MaxRetries <= 0 {
		c.Relay.MaxRetries = 3
	}
	if c.Feed.Interval <= 0 {
		c.Feed.Interval = DefaultInterval
	}
	if c.Feed.LookbackLedgers == 0 {
		c.Feed.LookbackLedgers = DefaultLookback
	}
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.ContractID) == "" {
		return errors.New("contract_id is required")
	}
	if !strings.HasPrefix(c.ContractID, "C") {
		return fmt.Errorf("contract_id %q is not a contract strkey", c.ContractID)
	}
	if strings.TrimSpace(c.RPC.URL) == "" {
		return errors.New("rpc.url is required")
	}
	return nil
}

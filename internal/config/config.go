package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config captures runtime settings for a time-authority deployment. Pricing
// is static per deployment; it is never negotiated per request.
type Config struct {
	Server struct {
		Listen                 string `yaml:"listen"`
		ReadTimeoutSeconds     int    `yaml:"read_timeout_seconds"`
		WriteTimeoutSeconds    int    `yaml:"write_timeout_seconds"`
		ShutdownTimeoutSeconds int    `yaml:"shutdown_timeout_seconds"`
	} `yaml:"server"`

	Pricing struct {
		Amount      float64 `yaml:"amount"`
		Currency    string  `yaml:"currency"`
		Network     string  `yaml:"network"`
		Recipient   string  `yaml:"recipient"`
		Description string  `yaml:"description"`
	} `yaml:"pricing"`

	Ledger struct {
		Path     string `yaml:"path"`
		IDScheme string `yaml:"id_scheme"`
	} `yaml:"ledger"`

	Verifier struct {
		Mode            string `yaml:"mode"`
		FacilitatorName string `yaml:"facilitator_name"`
		FacilitatorURL  string `yaml:"facilitator_url"`
		APIKey          string `yaml:"api_key"`
		TimeoutSeconds  int    `yaml:"timeout_seconds"`
	} `yaml:"verifier"`

	Logging struct {
		Service string `yaml:"service"`
		Version string `yaml:"version"`
		Commit  string `yaml:"commit"`
		Region  string `yaml:"region"`
	} `yaml:"logging"`
}

// Load reads and validates config from disk.
func Load(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	cfg.expandEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = "127.0.0.1:8000"
	}
	if c.Server.ReadTimeoutSeconds <= 0 {
		c.Server.ReadTimeoutSeconds = 10
	}
	if c.Server.WriteTimeoutSeconds <= 0 {
		c.Server.WriteTimeoutSeconds = 20
	}
	if c.Server.ShutdownTimeoutSeconds <= 0 {
		c.Server.ShutdownTimeoutSeconds = 15
	}
	if c.Pricing.Amount == 0 {
		c.Pricing.Amount = 0.01
	}
	if c.Pricing.Currency == "" {
		c.Pricing.Currency = "USDC"
	}
	if c.Pricing.Network == "" {
		c.Pricing.Network = "base"
	}
	if c.Pricing.Description == "" {
		c.Pricing.Description = "Time Authority timestamp witness service"
	}
	if c.Ledger.Path == "" {
		c.Ledger.Path = "transaction_log.jsonl"
	}
	if c.Ledger.IDScheme == "" {
		c.Ledger.IDScheme = "random8"
	}
	if c.Verifier.Mode == "" {
		c.Verifier.Mode = "simulated"
	}
	if c.Verifier.FacilitatorName == "" {
		c.Verifier.FacilitatorName = "coinbase"
	}
	if c.Verifier.FacilitatorURL == "" {
		c.Verifier.FacilitatorURL = "https://api.coinbase.com/v1/x402"
	}
	if c.Verifier.TimeoutSeconds <= 0 {
		c.Verifier.TimeoutSeconds = 10
	}
	if c.Logging.Service == "" {
		c.Logging.Service = "time-authority"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "dev"
	}
	if c.Logging.Commit == "" {
		c.Logging.Commit = "unknown"
	}
	if c.Logging.Region == "" {
		c.Logging.Region = "local"
	}
}

func (c *Config) validate() error {
	if c.Pricing.Amount < 0 {
		return errors.New("pricing.amount must not be negative")
	}
	if c.Pricing.Recipient == "" {
		return errors.New("pricing.recipient is required")
	}
	switch strings.TrimSpace(strings.ToLower(c.Ledger.IDScheme)) {
	case "random8", "uuid":
	default:
		return errors.New("ledger.id_scheme must be one of random8|uuid")
	}
	switch strings.TrimSpace(strings.ToLower(c.Verifier.Mode)) {
	case "simulated", "facilitator":
	default:
		return errors.New("verifier.mode must be one of simulated|facilitator")
	}
	if strings.EqualFold(c.Verifier.Mode, "facilitator") {
		u, err := url.Parse(c.Verifier.FacilitatorURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("verifier.facilitator_url is not a valid url: %q", c.Verifier.FacilitatorURL)
		}
	}
	return nil
}

func (c *Config) expandEnv() {
	c.Pricing.Recipient = os.ExpandEnv(strings.TrimSpace(c.Pricing.Recipient))
	c.Ledger.Path = os.ExpandEnv(strings.TrimSpace(c.Ledger.Path))
	c.Verifier.APIKey = os.ExpandEnv(strings.TrimSpace(c.Verifier.APIKey))
}

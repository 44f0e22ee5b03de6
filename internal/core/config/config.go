package config

import (
	"time"

	redisclient "github.com/vietddude/scamradar/internal/infra/redis"
	"github.com/vietddude/scamradar/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server         ServerConfig       `yaml:"server"`
	Logging        LoggingConfig      `yaml:"logging"`
	Etherscan      EtherscanConfig    `yaml:"etherscan"`
	Rarible        RaribleConfig      `yaml:"rarible"`
	Model          ModelConfig        `yaml:"model"`
	Explain        ExplainConfig      `yaml:"explain"`
	Redis          redisclient.Config `yaml:"redis"`
	Database       postgres.Config    `yaml:"database"`
	RequestTimeout time.Duration      `yaml:"request_timeout"`
	Retention      time.Duration      `yaml:"retention"` // stored detections, 0 keeps everything
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Port    int `yaml:"port"`     // ops: /health, /metrics
	APIPort int `yaml:"api_port"` // detection API, 0 disables it
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// EtherscanConfig configures the block-explorer API.
type EtherscanConfig struct {
	BaseURL        string        `yaml:"base_url"`
	ChainID        int           `yaml:"chain_id"`
	Keys           []string      `yaml:"keys"`
	Timeout        time.Duration `yaml:"timeout"`
	RatePerKey     int           `yaml:"rate_per_key"` // requests per second, 0 = unlimited
	MaxPerCategory int           `yaml:"max_per_category"`
	MaxTotal       int           `yaml:"max_total"`
}

// RaribleConfig configures the collection-statistics API.
type RaribleConfig struct {
	BaseURL       string        `yaml:"base_url"`
	Blockchain    string        `yaml:"blockchain"`
	Keys          []string      `yaml:"keys"`
	Timeout       time.Duration `yaml:"timeout"`
	EnrichTimeout time.Duration `yaml:"enrich_timeout"`
	StatsTTL      time.Duration `yaml:"stats_ttl"`
	RatePerKey    int           `yaml:"rate_per_key"`
	USDPerETH     float64       `yaml:"usd_per_eth"`
	USDFallback   *bool         `yaml:"usd_fallback"`
}

// ModelConfig points at the opaque training artifacts.
type ModelConfig struct {
	Weights             string `yaml:"weights"`
	Stats               string `yaml:"stats"`
	AccountFeatures     string `yaml:"account_features"`
	TransactionFeatures string `yaml:"transaction_features"`
}

// ExplainConfig selects and tunes the attribution strategy.
type ExplainConfig struct {
	Strategy       string  `yaml:"strategy"` // gradient, shapley
	BackgroundSize int     `yaml:"background_size"`
	Permutations   int     `yaml:"permutations"`
	Tolerance      float64 `yaml:"tolerance"`
	Sigmoid        bool    `yaml:"sigmoid"`  // attribute probabilities instead of logits
	Narrator       string  `yaml:"narrator"` // template, none
}
